package approval

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/jitaccess/pkg/apperr"
	"github.com/platinummonkey/jitaccess/pkg/observability"
	"github.com/platinummonkey/jitaccess/pkg/storage"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, storage.Migrate(context.Background(), db))
	return db
}

func newTestMachine(t *testing.T) (*StateMachine, *observability.Metrics) {
	t.Helper()
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	return NewStateMachine(NewSQLStore(setupTestDB(t)), nil, metrics), metrics
}

func submitPending(t *testing.T, m *StateMachine, id string) {
	t.Helper()
	ctx := context.Background()

	_, err := m.Submit(ctx, sampleSubmission(id))
	require.NoError(t, err)
	_, err = m.Validate(ctx, id, true, "")
	require.NoError(t, err)
}

func TestStateMachine_Submit(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMachine(t)

	sub := sampleSubmission("")
	r, err := m.Submit(ctx, sub)
	require.NoError(t, err)
	assert.NotEmpty(t, r.RequestID)

	got, err := m.Get(ctx, r.RequestID)
	require.NoError(t, err)
	assert.Equal(t, StatusSubmitted, got.Status())

	_, err = m.Submit(ctx, Submission{RequestID: r.RequestID, RequestUserID: "alice"})
	assert.ErrorIs(t, err, ErrRequestExists)

	_, err = m.Submit(ctx, Submission{RequestID: "r-anon"})
	assert.Equal(t, apperr.CodeBadRequest, apperr.CodeOf(err))
}

func TestStateMachine_HappyPath(t *testing.T) {
	ctx := context.Background()
	m, metrics := newTestMachine(t)
	submitPending(t, m, "r1")

	approved, err := m.Approve(ctx, "r1", "bob", "ok")
	require.NoError(t, err)
	assert.Equal(t, "bob", approved.ApprovedBy)
	assert.Equal(t, "alice", approved.RequestUserID)

	_, err = m.RecordApprovalOutcome(ctx, "r1", true, "granted")
	require.NoError(t, err)

	revoked, err := m.Revoke(ctx, "r1", "bob", "done")
	require.NoError(t, err)
	require.NotNil(t, revoked.ApprovalAction)
	assert.Equal(t, "granted", revoked.ApprovalAction.Message)

	final, err := m.RecordRevocationOutcome(ctx, "r1", true, "removed")
	require.NoError(t, err)
	assert.Equal(t, StatusRevokedActionSucceeded, final.Status())

	got, err := m.Get(ctx, "r1")
	require.NoError(t, err)
	done := got.(*RevokedActionSucceeded)
	assert.Equal(t, "removed", done.RevokeAction.Message)
	assert.Equal(t, "bob", done.ApprovedBy)
	assert.Equal(t, "done", done.RevokeComment)

	assert.Equal(t, float64(1), testutil.ToFloat64(
		metrics.TransitionsTotal.WithLabelValues("pending", "approved", "applied")))
}

func TestStateMachine_ValidationFailed(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMachine(t)

	_, err := m.Submit(ctx, sampleSubmission("r1"))
	require.NoError(t, err)

	r, err := m.Validate(ctx, "r1", false, "unknown permission")
	require.NoError(t, err)
	assert.Equal(t, StatusValidationFailed, r.Status())

	_, err = m.Approve(ctx, "r1", "bob", "")
	assert.ErrorIs(t, err, ErrNotInRequiredStatus)
}

func TestStateMachine_WrongStatus(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMachine(t)
	submitPending(t, m, "r1")

	_, err := m.Revoke(ctx, "r1", "bob", "")
	assert.ErrorIs(t, err, ErrNotInRequiredStatus)
	assert.Equal(t, apperr.CodeBadRequest, apperr.CodeOf(err))

	_, err = m.RecordApprovalOutcome(ctx, "r1", true, "")
	assert.ErrorIs(t, err, ErrNotInRequiredStatus)

	_, err = m.Reject(ctx, "r1", "bob", "no")
	require.NoError(t, err)

	_, err = m.Cancel(ctx, "r1", "alice", "")
	assert.ErrorIs(t, err, ErrNotInRequiredStatus)
}

func TestStateMachine_MissingRequest(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMachine(t)

	_, err := m.Approve(ctx, "nope", "bob", "")
	assert.ErrorIs(t, err, ErrNotInRequiredStatus)

	_, err = m.Get(ctx, "nope")
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestStateMachine_RevokeFromApproved(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMachine(t)
	submitPending(t, m, "r1")

	_, err := m.Approve(ctx, "r1", "bob", "")
	require.NoError(t, err)

	revoked, err := m.Revoke(ctx, "r1", "bob", "")
	require.NoError(t, err)
	assert.Nil(t, revoked.ApprovalAction)

	r, err := m.RecordRevocationOutcome(ctx, "r1", false, "boom")
	require.NoError(t, err)
	assert.Equal(t, StatusRevokedActionFailed, r.Status())
}

func TestStateMachine_ConcurrentApprove(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMachine(t)
	submitPending(t, m, "r1")

	const approvers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
		errs []error
	)
	for i := 0; i < approvers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Approve(ctx, "r1", "bob", "")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
				return
			}
			errs = append(errs, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	require.Len(t, errs, approvers-1)
	for _, err := range errs {
		assert.ErrorIs(t, err, ErrNotInRequiredStatus)
	}
}

func TestStateMachine_List(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMachine(t)

	submitPending(t, m, "r1")
	_, err := m.Submit(ctx, sampleSubmission("r2"))
	require.NoError(t, err)
	submitPending(t, m, "r3")

	page, err := m.List(ctx, ListFilter{Status: StatusPending, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "r1", page.Items[0].Base().RequestID)
	require.NotEmpty(t, page.NextCursor)

	page, err = m.List(ctx, ListFilter{Status: StatusPending, Limit: 1, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "r3", page.Items[0].Base().RequestID)
	assert.Empty(t, page.NextCursor)

	body, err := json.Marshal(page)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"status":"pending"`)
	assert.NotContains(t, string(body), "next_cursor")

	page, err = m.List(ctx, ListFilter{RequestUserID: "carol"})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}

func TestSQLStore_TransitionRejectsIllegalMove(t *testing.T) {
	ctx := context.Background()
	store := NewSQLStore(setupTestDB(t))

	require.NoError(t, store.Create(ctx, &Submitted{Submission: sampleSubmission("r1")}))

	err := store.Transition(ctx, StatusSubmitted, &Approved{Pending: Pending{Submission: sampleSubmission("r1")}})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotInRequiredStatus)

	got, err := store.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, StatusSubmitted, got.Status())
}
