package permissions

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/platinummonkey/jitaccess/pkg/pagination"
)

// Store persists PermissionInfo records keyed by permission id
type Store interface {
	// Create inserts info unless a record with the same id exists, compared
	// without regard to case. Returns ErrExists otherwise.
	Create(ctx context.Context, info *PermissionInfo) error
	// Get returns the record with exactly this id or ErrNotFound
	Get(ctx context.Context, permissionID string) (*PermissionInfo, error)
	// GetFold returns the record whose id equals permissionID ignoring case
	GetFold(ctx context.Context, permissionID string) (*PermissionInfo, error)
	// Update replaces an existing record. Returns ErrNotFound if it is absent.
	Update(ctx context.Context, info *PermissionInfo) error
	// Delete removes the record; deleting an absent record succeeds
	Delete(ctx context.Context, permissionID string) error
	// List pages through records ordered by id
	List(ctx context.Context, filter ListFilter) (pagination.Page[*PermissionInfo], error)
}

// SQLStore implements Store on database/sql. Queries use $n placeholders and
// run unchanged on PostgreSQL and SQLite.
type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLStore creates a new SQL-backed permission store
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

const permissionColumns = `permission_id, name, description, aws_account_id, permission_set_name_id,
	managed_policy_names, custom_policy_names, session_duration, group_id, permission_set_arn,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPermission(row rowScanner) (*PermissionInfo, error) {
	var (
		info        PermissionInfo
		managedJSON string
		customJSON  string
	)

	err := row.Scan(
		&info.PermissionID,
		&info.Name,
		&info.Description,
		&info.AWSAccountID,
		&info.PermissionSetNameID,
		&managedJSON,
		&customJSON,
		&info.SessionDuration,
		&info.GroupID,
		&info.PermissionSetARN,
		&info.CreatedAt,
		&info.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(managedJSON), &info.ManagedPolicyNames); err != nil {
		return nil, fmt.Errorf("failed to unmarshal managed policy names: %w", err)
	}
	if err := json.Unmarshal([]byte(customJSON), &info.CustomPolicyNames); err != nil {
		return nil, fmt.Errorf("failed to unmarshal custom policy names: %w", err)
	}

	return &info, nil
}

func marshalNames(names []string) (string, error) {
	if names == nil {
		names = []string{}
	}
	data, err := json.Marshal(names)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Create inserts a new record
func (s *SQLStore) Create(ctx context.Context, info *PermissionInfo) error {
	managedJSON, err := marshalNames(info.ManagedPolicyNames)
	if err != nil {
		return fmt.Errorf("failed to marshal managed policy names: %w", err)
	}
	customJSON, err := marshalNames(info.CustomPolicyNames)
	if err != nil {
		return fmt.Errorf("failed to marshal custom policy names: %w", err)
	}

	now := s.now()
	query := `
		INSERT INTO permissions (permission_id, permission_key, name, description, aws_account_id,
			permission_set_name_id, managed_policy_names, custom_policy_names, session_duration,
			group_id, permission_set_arn, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT DO NOTHING
	`

	result, err := s.db.ExecContext(ctx, query,
		info.PermissionID,
		strings.ToLower(info.PermissionID),
		info.Name,
		info.Description,
		info.AWSAccountID,
		info.PermissionSetNameID,
		managedJSON,
		customJSON,
		info.SessionDuration,
		info.GroupID,
		info.PermissionSetARN,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create permission: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to create permission: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrExists, info.PermissionID)
	}

	info.CreatedAt = now
	info.UpdatedAt = now
	return nil
}

// Get retrieves a record by exact id
func (s *SQLStore) Get(ctx context.Context, permissionID string) (*PermissionInfo, error) {
	query := `SELECT ` + permissionColumns + ` FROM permissions WHERE permission_id = $1`

	info, err := scanPermission(s.db.QueryRowContext(ctx, query, permissionID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, permissionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get permission: %w", err)
	}
	return info, nil
}

// GetFold retrieves a record by id ignoring case
func (s *SQLStore) GetFold(ctx context.Context, permissionID string) (*PermissionInfo, error) {
	query := `SELECT ` + permissionColumns + ` FROM permissions WHERE permission_key = $1`

	info, err := scanPermission(s.db.QueryRowContext(ctx, query, strings.ToLower(permissionID)))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, permissionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get permission: %w", err)
	}
	return info, nil
}

// Update replaces the mutable fields of an existing record
func (s *SQLStore) Update(ctx context.Context, info *PermissionInfo) error {
	managedJSON, err := marshalNames(info.ManagedPolicyNames)
	if err != nil {
		return fmt.Errorf("failed to marshal managed policy names: %w", err)
	}
	customJSON, err := marshalNames(info.CustomPolicyNames)
	if err != nil {
		return fmt.Errorf("failed to marshal custom policy names: %w", err)
	}

	now := s.now()
	query := `
		UPDATE permissions
		SET name = $1, description = $2, managed_policy_names = $3, custom_policy_names = $4,
			session_duration = $5, group_id = $6, permission_set_arn = $7, updated_at = $8
		WHERE permission_id = $9
	`

	result, err := s.db.ExecContext(ctx, query,
		info.Name,
		info.Description,
		managedJSON,
		customJSON,
		info.SessionDuration,
		info.GroupID,
		info.PermissionSetARN,
		now,
		info.PermissionID,
	)
	if err != nil {
		return fmt.Errorf("failed to update permission: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update permission: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, info.PermissionID)
	}

	info.UpdatedAt = now
	return nil
}

// Delete removes a record
func (s *SQLStore) Delete(ctx context.Context, permissionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM permissions WHERE permission_id = $1`, permissionID)
	if err != nil {
		return fmt.Errorf("failed to delete permission: %w", err)
	}
	return nil
}

// List returns one page of records. The native continuation token is the
// last permission id of the previous page.
func (s *SQLStore) List(ctx context.Context, filter ListFilter) (pagination.Page[*PermissionInfo], error) {
	fetch := func(ctx context.Context, after string, limit int) ([]*PermissionInfo, string, error) {
		query := `SELECT ` + permissionColumns + ` FROM permissions WHERE permission_id > $1`
		args := []interface{}{after}
		argCount := 2

		if filter.AWSAccountID != "" {
			query += fmt.Sprintf(" AND aws_account_id = $%d", argCount)
			args = append(args, filter.AWSAccountID)
			argCount++
		}

		if filter.NamePrefix != "" {
			// substr keeps the comparison case-sensitive on both drivers
			query += fmt.Sprintf(" AND substr(name, 1, $%d) = $%d", argCount, argCount+1)
			args = append(args, utf8.RuneCountInString(filter.NamePrefix), filter.NamePrefix)
			argCount += 2
		}

		query += fmt.Sprintf(" ORDER BY permission_id LIMIT $%d", argCount)
		args = append(args, limit+1)

		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, "", fmt.Errorf("failed to list permissions: %w", err)
		}
		defer rows.Close()

		var items []*PermissionInfo
		for rows.Next() {
			info, err := scanPermission(rows)
			if err != nil {
				return nil, "", fmt.Errorf("failed to scan permission: %w", err)
			}
			items = append(items, info)
		}
		if err := rows.Err(); err != nil {
			return nil, "", fmt.Errorf("failed to list permissions: %w", err)
		}

		next := ""
		if len(items) > limit {
			items = items[:limit]
			next = items[limit-1].PermissionID
		}
		return items, next, nil
	}

	return pagination.FetchPage[*PermissionInfo](ctx, fetch, filter.Cursor, filter.Limit)
}
