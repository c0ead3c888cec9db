package approval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/jitaccess/pkg/apperr"
	"github.com/platinummonkey/jitaccess/pkg/observability"
)

// StateMachine advances requests along the legal transitions. Every
// transition reads the current variant, builds its successor, and commits it
// with one conditional write; concurrent attempts on the same request have
// exactly one winner.
type StateMachine struct {
	store   Store
	logger  *observability.Logger
	metrics *observability.Metrics
	now     func() time.Time
	newID   func() string
}

// NewStateMachine creates a new state machine over store
func NewStateMachine(store Store, logger *observability.Logger, metrics *observability.Metrics) *StateMachine {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, io.Discard)
	}
	return &StateMachine{
		store:   store,
		logger:  logger,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   func() string { return uuid.New().String() },
	}
}

// Get returns the current variant of a request
func (m *StateMachine) Get(ctx context.Context, requestID string) (Request, error) {
	return m.store.Get(ctx, requestID)
}

// Submit records a new request. A missing request id is generated.
func (m *StateMachine) Submit(ctx context.Context, sub Submission) (*Submitted, error) {
	if sub.RequestID == "" {
		sub.RequestID = m.newID()
	}
	if sub.RequestUserID == "" {
		return nil, apperr.BadRequestf("request_user_id is required")
	}
	if sub.RequestDate.IsZero() {
		sub.RequestDate = m.now()
	}

	r := &Submitted{Submission: sub}
	if err := m.store.Create(ctx, r); err != nil {
		return nil, err
	}

	m.logger.WithGrant(sub.RequestID, "", sub.RequestUserID).Info("Approval request submitted")
	return r, nil
}

// load fetches the request and checks it against the allowed predecessor
// statuses. A missing request and a wrong status produce the same error.
func (m *StateMachine) load(ctx context.Context, requestID string, from ...Status) (Request, error) {
	r, err := m.store.Get(ctx, requestID)
	if errors.Is(err, ErrRequestNotFound) {
		return nil, ErrNotInRequiredStatus
	}
	if err != nil {
		return nil, err
	}

	for _, s := range from {
		if r.Status() == s {
			return r, nil
		}
	}
	return nil, ErrNotInRequiredStatus
}

func (m *StateMachine) commit(ctx context.Context, current, next Request) error {
	from, to := current.Status(), next.Status()
	err := m.store.Transition(ctx, from, next)
	m.metrics.RecordTransition(string(from), string(to), err == nil)

	logger := m.logger.WithRequest(next.Base().RequestID).WithFields(map[string]interface{}{
		"from": string(from),
		"to":   string(to),
	})
	if err != nil {
		logger.WithError(err).Warn("Status transition rejected")
		return err
	}
	logger.Info("Status transition applied")
	return nil
}

// Validate moves a submitted request to pending, or to validationFailed when
// valid is false
func (m *StateMachine) Validate(ctx context.Context, requestID string, valid bool, message string) (Request, error) {
	current, err := m.load(ctx, requestID, StatusSubmitted)
	if err != nil {
		return nil, err
	}
	sub := current.(*Submitted)

	validation := Validation{ValidatedDate: m.now(), ValidationMessage: message}
	var next Request
	if valid {
		next = &Pending{Submission: sub.Submission, Validation: validation}
	} else {
		next = &ValidationFailed{Submission: sub.Submission, Validation: validation}
	}

	if err := m.commit(ctx, current, next); err != nil {
		return nil, err
	}
	return next, nil
}

// Approve moves a pending request to approved
func (m *StateMachine) Approve(ctx context.Context, requestID, approver, comment string) (*Approved, error) {
	current, err := m.load(ctx, requestID, StatusPending)
	if err != nil {
		return nil, err
	}

	next := &Approved{
		Pending:         *current.(*Pending),
		ApprovedDate:    m.now(),
		ApprovedBy:      approver,
		ApprovalComment: comment,
	}
	if err := m.commit(ctx, current, next); err != nil {
		return nil, err
	}
	return next, nil
}

// Reject moves a pending request to rejected
func (m *StateMachine) Reject(ctx context.Context, requestID, approver, comment string) (*Rejected, error) {
	current, err := m.load(ctx, requestID, StatusPending)
	if err != nil {
		return nil, err
	}

	next := &Rejected{
		Pending:          *current.(*Pending),
		RejectedDate:     m.now(),
		RejectedBy:       approver,
		RejectionComment: comment,
	}
	if err := m.commit(ctx, current, next); err != nil {
		return nil, err
	}
	return next, nil
}

// Cancel moves a pending request to canceled
func (m *StateMachine) Cancel(ctx context.Context, requestID, by, comment string) (*Canceled, error) {
	current, err := m.load(ctx, requestID, StatusPending)
	if err != nil {
		return nil, err
	}

	next := &Canceled{
		Pending:       *current.(*Pending),
		CanceledDate:  m.now(),
		CanceledBy:    by,
		CancelComment: comment,
	}
	if err := m.commit(ctx, current, next); err != nil {
		return nil, err
	}
	return next, nil
}

// RecordApprovalOutcome stores the result of the grant for an approved request
func (m *StateMachine) RecordApprovalOutcome(ctx context.Context, requestID string, succeeded bool, message string) (Request, error) {
	current, err := m.load(ctx, requestID, StatusApproved)
	if err != nil {
		return nil, err
	}
	approved := *current.(*Approved)

	outcome := ActionOutcome{Date: m.now(), Message: message}
	var next Request
	if succeeded {
		next = &ApprovedActionSucceeded{Approved: approved, ApprovalAction: outcome}
	} else {
		next = &ApprovedActionFailed{Approved: approved, ApprovalAction: outcome}
	}

	if err := m.commit(ctx, current, next); err != nil {
		return nil, err
	}
	return next, nil
}

// Revoke moves a granted request to revoked. Requests still in approved,
// written before grant outcomes were recorded, are accepted too.
func (m *StateMachine) Revoke(ctx context.Context, requestID, by, comment string) (*Revoked, error) {
	current, err := m.load(ctx, requestID, StatusApprovedActionSucceeded, StatusApproved)
	if err != nil {
		return nil, err
	}

	next := &Revoked{
		RevokedDate:   m.now(),
		RevokedBy:     by,
		RevokeComment: comment,
	}
	switch r := current.(type) {
	case *ApprovedActionSucceeded:
		outcome := r.ApprovalAction
		next.Approved = r.Approved
		next.ApprovalAction = &outcome
	case *Approved:
		next.Approved = *r
	default:
		return nil, fmt.Errorf("unexpected request variant %T", current)
	}

	if err := m.commit(ctx, current, next); err != nil {
		return nil, err
	}
	return next, nil
}

// RecordRevocationOutcome stores the result of the revoke for a revoked request
func (m *StateMachine) RecordRevocationOutcome(ctx context.Context, requestID string, succeeded bool, message string) (Request, error) {
	current, err := m.load(ctx, requestID, StatusRevoked)
	if err != nil {
		return nil, err
	}
	revoked := *current.(*Revoked)

	outcome := ActionOutcome{Date: m.now(), Message: message}
	var next Request
	if succeeded {
		next = &RevokedActionSucceeded{Revoked: revoked, RevokeAction: outcome}
	} else {
		next = &RevokedActionFailed{Revoked: revoked, RevokeAction: outcome}
	}

	if err := m.commit(ctx, current, next); err != nil {
		return nil, err
	}
	return next, nil
}

// List pages through requests
func (m *StateMachine) List(ctx context.Context, filter ListFilter) (Page, error) {
	page, err := m.store.List(ctx, filter)
	if err != nil {
		return Page{}, err
	}
	return Page{Items: page.Items, NextCursor: page.NextCursor}, nil
}

// Page is a page of requests that encodes each one with its status
type Page struct {
	Items      []Request
	NextCursor string
}

// MarshalJSON implements json.Marshaler
func (p Page) MarshalJSON() ([]byte, error) {
	items := make([]Envelope, 0, len(p.Items))
	for _, r := range p.Items {
		items = append(items, Envelope{Request: r})
	}
	return json.Marshal(struct {
		Items      []Envelope `json:"items"`
		NextCursor string     `json:"next_cursor,omitempty"`
	}{Items: items, NextCursor: p.NextCursor})
}
