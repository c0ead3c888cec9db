package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_Memory(t *testing.T) {
	ctx := context.Background()

	db, err := Open(ctx, DefaultConfig())
	require.NoError(t, err)
	defer db.Close()

	var count int
	err = db.QueryRowContext(ctx, `SELECT COUNT(*) FROM permissions`).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	err = db.QueryRowContext(ctx, `SELECT COUNT(*) FROM approval_requests`).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// applying the schema again is a no-op
	require.NoError(t, Migrate(ctx, db))
}

func TestOpen_UnsupportedType(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Type = "filesystem"

	_, err := Open(context.Background(), cfg)
	assert.Error(t, err)
}

func TestOpen_PostgresRequiresURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Type = TypePostgres

	_, err := Open(context.Background(), cfg)
	assert.Error(t, err)
}

func TestMigrate_PropagatesError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS permissions").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_permissions_account_name").
		WillReturnError(errors.New("permission denied"))

	err = Migrate(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migration 1 failed")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewRedisClient(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cfg := DefaultConfig()
	cfg.RedisURL = "redis://" + mr.Addr()

	client, err := NewRedisClient(context.Background(), cfg)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestNewRedisClient_InvalidURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RedisURL = "invalid://url"

	_, err := NewRedisClient(context.Background(), cfg)
	assert.Error(t, err)
}
