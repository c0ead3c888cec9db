package app

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/jitaccess/pkg/approval"
	"github.com/platinummonkey/jitaccess/pkg/approvalflow"
	"github.com/platinummonkey/jitaccess/pkg/config"
	"github.com/platinummonkey/jitaccess/pkg/middleware"
	"github.com/platinummonkey/jitaccess/pkg/observability"
	"github.com/platinummonkey/jitaccess/pkg/permissions"
	"github.com/platinummonkey/jitaccess/pkg/retry"
	"github.com/platinummonkey/jitaccess/pkg/storage"
)

func memoryConfig() *config.Config {
	cfg := storage.DefaultConfig()
	return &config.Config{
		Storage: cfg,
		ControlPlane: config.ControlPlaneConfig{
			Type:     config.ControlPlaneMemory,
			Prefix:   "jit",
			DevUsers: []string{"alice"},
		},
		Retry:         retry.Config{MaxAttempts: 2},
		Observability: config.ObservabilityConfig{MetricsEnabled: true},
		Reconciler:    config.ReconcilerConfig{Schedule: "@hourly", Workers: 2},
	}
}

func TestNew_MemoryEndToEnd(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, memoryConfig(), nil)
	require.NoError(t, err)
	defer a.Close()

	info, err := a.Provisioner.CreatePermission(ctx, permissions.CreateInput{
		Name:               "Unit-test",
		AWSAccountID:       "123456789012",
		ManagedPolicyNames: []string{"ReadOnlyAccess"},
	})
	require.NoError(t, err)

	_, err = a.Flow.Submit(ctx, approval.Submission{
		RequestID:      "r1",
		RequestUserID:  "alice",
		InputResources: []approval.Resource{{Type: approvalflow.ResourceTypePermission, ID: info.PermissionID}},
	})
	require.NoError(t, err)
	require.True(t, a.Flow.Validate(ctx, "r1").Success)
	res := a.Flow.Approved(ctx, "r1", "bob", "")
	require.True(t, res.Success, res.Message)

	summary, err := a.Reconciler().Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.InSync)

	status := a.HealthChecker("test").Check(ctx)
	assert.Equal(t, observability.StatusHealthy, status.Status)
	assert.Contains(t, status.Dependencies, "database")
	assert.Contains(t, status.Dependencies, "controlplane")
}

func TestNew_WithRedisCache(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cfg := memoryConfig()
	cfg.Storage.CacheEnabled = true
	cfg.Storage.CacheTTL = time.Minute
	cfg.Storage.RedisURL = "redis://" + mr.Addr()

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.NotNil(t, a.Redis)
	assert.Contains(t, a.HealthChecker("").Check(context.Background()).Dependencies, "redis")
	assert.NoError(t, a.Close())
}

func TestNew_RateLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := memoryConfig()
	a, err := New(ctx, cfg, nil)
	require.NoError(t, err)
	assert.Nil(t, a.RateLimiter)
	require.NoError(t, a.Close())

	cfg.Server.RateLimit = middleware.RateLimitConfig{RequestsPerWindow: 5, WindowDuration: time.Minute}
	a, err = New(ctx, cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &middleware.RateLimiter{}, a.RateLimiter)
	require.NoError(t, a.Close())

	mr := miniredis.RunT(t)
	cfg.Storage.RedisURL = "redis://" + mr.Addr()
	a, err = New(ctx, cfg, nil)
	require.NoError(t, err)
	require.NotNil(t, a.Redis, "rate limiting alone opens redis")
	assert.IsType(t, &middleware.DistributedRateLimiter{}, a.RateLimiter)
	require.NoError(t, a.Close())
}

func TestNew_InvalidControlPlane(t *testing.T) {
	cfg := memoryConfig()
	cfg.ControlPlane.Type = "azure"

	_, err := New(context.Background(), cfg, nil)
	assert.Error(t, err)
}
