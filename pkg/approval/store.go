package approval

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/platinummonkey/jitaccess/pkg/apperr"
	"github.com/platinummonkey/jitaccess/pkg/pagination"
)

var (
	// ErrNotInRequiredStatus is returned by every transition whose request is
	// missing or not in the predecessor status. Both cases share one value.
	ErrNotInRequiredStatus = apperr.New(apperr.CodeBadRequest, "request does not exist or is not in the required status")

	// ErrRequestExists is returned when submitting a request id twice
	ErrRequestExists = apperr.New(apperr.CodeBadRequest, "request already exists")

	// ErrRequestNotFound is returned by direct lookups
	ErrRequestNotFound = apperr.New(apperr.CodeNotFound, "request not found")
)

// ListFilter selects requests for List
type ListFilter struct {
	Status        Status
	RequestUserID string
	Limit         int
	Cursor        string
}

// Store persists approval requests
type Store interface {
	// Create inserts a new request; fails with ErrRequestExists if the id is taken
	Create(ctx context.Context, r Request) error
	// Get returns the request or ErrRequestNotFound
	Get(ctx context.Context, requestID string) (Request, error)
	// Transition replaces the request with next only while its stored status
	// is still from. Fails with ErrNotInRequiredStatus otherwise.
	Transition(ctx context.Context, from Status, next Request) error
	// List pages through requests ordered by id
	List(ctx context.Context, filter ListFilter) (pagination.Page[Request], error)
}

// SQLStore implements Store on database/sql
type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLStore creates a new SQL-backed request store
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Create inserts a request
func (s *SQLStore) Create(ctx context.Context, r Request) error {
	body, err := Marshal(r)
	if err != nil {
		return err
	}

	base := r.Base()
	now := s.now()
	query := `
		INSERT INTO approval_requests (request_id, status, request_user_id, body, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT DO NOTHING
	`

	result, err := s.db.ExecContext(ctx, query, base.RequestID, string(r.Status()), base.RequestUserID, string(body), now, now)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrRequestExists, base.RequestID)
	}
	return nil
}

// Get retrieves a request by id
func (s *SQLStore) Get(ctx context.Context, requestID string) (Request, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM approval_requests WHERE request_id = $1`, requestID).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrRequestNotFound, requestID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get request: %w", err)
	}

	return Unmarshal([]byte(body))
}

// Transition performs the conditional status write
func (s *SQLStore) Transition(ctx context.Context, from Status, next Request) error {
	if !CanTransition(from, next.Status()) {
		return fmt.Errorf("illegal transition %s -> %s", from, next.Status())
	}

	body, err := Marshal(next)
	if err != nil {
		return err
	}

	query := `
		UPDATE approval_requests
		SET status = $1, body = $2, updated_at = $3
		WHERE request_id = $4 AND status = $5
	`

	result, err := s.db.ExecContext(ctx, query, string(next.Status()), string(body), s.now(), next.Base().RequestID, string(from))
	if err != nil {
		return fmt.Errorf("failed to update request status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update request status: %w", err)
	}
	if rows == 0 {
		return ErrNotInRequiredStatus
	}
	return nil
}

// List returns one page of requests
func (s *SQLStore) List(ctx context.Context, filter ListFilter) (pagination.Page[Request], error) {
	fetch := func(ctx context.Context, after string, limit int) ([]Request, string, error) {
		query := `SELECT request_id, body FROM approval_requests WHERE request_id > $1`
		args := []interface{}{after}
		argCount := 2

		if filter.Status != "" {
			query += fmt.Sprintf(" AND status = $%d", argCount)
			args = append(args, string(filter.Status))
			argCount++
		}

		if filter.RequestUserID != "" {
			query += fmt.Sprintf(" AND request_user_id = $%d", argCount)
			args = append(args, filter.RequestUserID)
			argCount++
		}

		query += fmt.Sprintf(" ORDER BY request_id LIMIT $%d", argCount)
		args = append(args, limit+1)

		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, "", fmt.Errorf("failed to list requests: %w", err)
		}
		defer rows.Close()

		var (
			items []Request
			ids   []string
		)
		for rows.Next() {
			var id, body string
			if err := rows.Scan(&id, &body); err != nil {
				return nil, "", fmt.Errorf("failed to scan request: %w", err)
			}
			r, err := Unmarshal([]byte(body))
			if err != nil {
				return nil, "", err
			}
			items = append(items, r)
			ids = append(ids, id)
		}
		if err := rows.Err(); err != nil {
			return nil, "", fmt.Errorf("failed to list requests: %w", err)
		}

		next := ""
		if len(items) > limit {
			items = items[:limit]
			next = ids[limit-1]
		}
		return items, next, nil
	}

	return pagination.FetchPage[Request](ctx, fetch, filter.Cursor, filter.Limit)
}
