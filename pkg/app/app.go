// Package app wires configuration into the running components shared by
// the API server and the reconciler.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/platinummonkey/jitaccess/pkg/approval"
	"github.com/platinummonkey/jitaccess/pkg/approvalflow"
	"github.com/platinummonkey/jitaccess/pkg/config"
	"github.com/platinummonkey/jitaccess/pkg/controlplane"
	"github.com/platinummonkey/jitaccess/pkg/middleware"
	"github.com/platinummonkey/jitaccess/pkg/observability"
	"github.com/platinummonkey/jitaccess/pkg/permissions"
	"github.com/platinummonkey/jitaccess/pkg/provisioning"
	"github.com/platinummonkey/jitaccess/pkg/storage"
)

// App holds the wired components
type App struct {
	Config       *config.Config
	Logger       *observability.Logger
	Registry     *prometheus.Registry
	Metrics      *observability.Metrics
	DB           *sql.DB
	Redis        *redis.Client
	RateLimiter  middleware.Limiter
	ControlPlane controlplane.Client
	Provisioner  *provisioning.Provisioner
	Machine      *approval.StateMachine
	Flow         *approvalflow.Flow
}

// New opens the record store, the optional cache and the control plane and
// builds the provisioner and approval flow on top of them
func New(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*App, error) {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, io.Discard)
	}

	a := &App{Config: cfg, Logger: logger}
	if cfg.Observability.MetricsEnabled {
		a.Registry = prometheus.NewRegistry()
		a.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		a.Metrics = observability.NewMetrics(a.Registry)
	}

	db, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	a.DB = db
	logger.WithField("type", cfg.Storage.Type).Info("Record store ready")

	if cfg.Storage.RedisURL != "" && (cfg.Storage.CacheEnabled || cfg.Server.RateLimit.Enabled()) {
		a.Redis, err = storage.NewRedisClient(ctx, cfg.Storage)
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	var store permissions.Store = permissions.NewSQLStore(db)
	if cfg.Storage.CacheEnabled {
		store = permissions.NewCachedStore(store, a.Redis, cfg.Storage.L1CacheSize, cfg.Storage.CacheTTL, a.Metrics)
		logger.WithField("redis", a.Redis != nil).Info("Permission cache enabled")
	}

	if cfg.Server.RateLimit.Enabled() {
		a.RateLimiter = newRateLimiter(ctx, cfg.Server.RateLimit, a.Redis)
		logger.WithFields(map[string]interface{}{
			"requests": cfg.Server.RateLimit.RequestsPerWindow,
			"window":   cfg.Server.RateLimit.WindowDuration.String(),
			"redis":    a.Redis != nil,
		}).Info("Rate limiting enabled")
	}

	client, err := newControlPlane(ctx, cfg.ControlPlane, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	if cfg.Observability.OTelEnabled {
		otelMetrics, err := observability.NewOTelMetrics()
		if err != nil {
			a.Close()
			return nil, err
		}
		client = controlplane.Instrument(client, otelMetrics)
	}
	a.ControlPlane = client

	a.Provisioner = provisioning.NewProvisioner(client, store, provisioning.Config{
		Prefix: cfg.ControlPlane.Prefix,
		Retry:  cfg.Retry,
	}, logger, a.Metrics)
	a.Machine = approval.NewStateMachine(approval.NewSQLStore(db), logger, a.Metrics)
	a.Flow = approvalflow.NewFlow(a.Machine, a.Provisioner, logger)
	return a, nil
}

// newRateLimiter shares limits through Redis when available and falls back
// to per-process buckets otherwise
func newRateLimiter(ctx context.Context, cfg middleware.RateLimitConfig, redisClient *redis.Client) middleware.Limiter {
	if redisClient != nil {
		return middleware.NewDistributedRateLimiter(redisClient, cfg, "")
	}
	limiter := middleware.NewRateLimiter(cfg)
	limiter.StartCleanup(ctx)
	return limiter
}

func newControlPlane(ctx context.Context, cfg config.ControlPlaneConfig, logger *observability.Logger) (controlplane.Client, error) {
	switch cfg.Type {
	case config.ControlPlaneAWS:
		client, err := controlplane.NewAWSClient(ctx, cfg.AWS)
		if err != nil {
			return nil, fmt.Errorf("failed to create AWS control plane: %w", err)
		}
		logger.WithFields(map[string]interface{}{
			"region":            cfg.AWS.Region,
			"instance_arn":      cfg.AWS.InstanceARN,
			"identity_store_id": cfg.AWS.IdentityStoreID,
		}).Info("Using IAM Identity Center control plane")
		return client, nil

	case config.ControlPlaneMemory:
		client := controlplane.NewMemoryClient()
		for _, user := range cfg.DevUsers {
			client.AddUser(user)
		}
		logger.WithField("users", len(cfg.DevUsers)).Warn("Using in-memory control plane; state is lost on exit")
		return client, nil

	default:
		return nil, fmt.Errorf("unsupported control plane: %s", cfg.Type)
	}
}

// HealthChecker covers the record store, the cache and the control plane.
// The control plane probe is optional so a throttled provider only degrades
// readiness.
func (a *App) HealthChecker(version string) *observability.HealthChecker {
	checker := observability.NewHealthChecker(a.DB, a.Redis, version)
	checker.AddProbe("controlplane", func(ctx context.Context) error {
		_, _, err := a.ControlPlane.ListPermissionSets(ctx, "", 1)
		return err
	}, false)
	return checker
}

// Reconciler returns a reconciler over the app's provisioner
func (a *App) Reconciler() *provisioning.Reconciler {
	return provisioning.NewReconciler(a.Provisioner, a.Config.Reconciler.Workers)
}

// Close releases the cache and record store connections
func (a *App) Close() error {
	var errs []error
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}
	return errors.Join(errs...)
}
