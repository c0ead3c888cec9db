package provisioning

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/jitaccess/pkg/apperr"
	"github.com/platinummonkey/jitaccess/pkg/controlplane"
	"github.com/platinummonkey/jitaccess/pkg/observability"
	"github.com/platinummonkey/jitaccess/pkg/permissions"
	"github.com/platinummonkey/jitaccess/pkg/retry"
)

var tracer = otel.Tracer("jitaccess/provisioning")

// Saga names used in logs and metrics
const (
	SagaCreate = "create_permission"
	SagaUpdate = "update_permission"
	SagaDelete = "delete_permission"
	SagaGrant  = "grant_user"
	SagaRevoke = "revoke_user"
)

// Config configures a Provisioner
type Config struct {
	// Prefix is the first segment of every permission id
	Prefix string
	Retry  retry.Config
	// ResolverPageSize bounds list calls made while resolving names; zero
	// uses the provider maximum
	ResolverPageSize int
}

// DefaultConfig returns the default provisioner configuration
func DefaultConfig() Config {
	return Config{
		Prefix: "jit",
		Retry:  retry.DefaultConfig(),
	}
}

// Provisioner runs the provisioning and deprovisioning sagas against the
// control plane and keeps the permission records in step with them
type Provisioner struct {
	client   controlplane.Client
	resolver controlplane.Resolver
	upserter *controlplane.Upserter
	store    permissions.Store
	retry    *retry.Policy
	prefix   string
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewProvisioner creates a new provisioner
func NewProvisioner(client controlplane.Client, store permissions.Store, config Config, logger *observability.Logger, metrics *observability.Metrics) *Provisioner {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, io.Discard)
	}
	if config.Prefix == "" {
		config.Prefix = DefaultConfig().Prefix
	}

	resolver := controlplane.NewListingResolver(client, config.ResolverPageSize)
	return &Provisioner{
		client:   client,
		resolver: resolver,
		upserter: controlplane.NewUpserter(client, resolver),
		store:    store,
		retry:    retry.NewPolicy(config.Retry),
		prefix:   config.Prefix,
		logger:   logger,
		metrics:  metrics,
	}
}

// WithRetryPolicy replaces the retry policy, mostly for tests
func (p *Provisioner) WithRetryPolicy(policy *retry.Policy) *Provisioner {
	clone := *p
	clone.retry = policy
	return &clone
}

// Prefix returns the permission id prefix
func (p *Provisioner) Prefix() string {
	return p.prefix
}

// saga runs the steps of one saga invocation
type saga struct {
	name    string
	logger  *observability.Logger
	metrics *observability.Metrics
}

// run executes fn as the saga named name. The saga runs detached from the
// caller's cancellation so a started step is never abandoned halfway.
func (p *Provisioner) run(ctx context.Context, name, permissionID string, fn func(context.Context, *saga) error) error {
	ctx = context.WithoutCancel(ctx)
	ctx, span := tracer.Start(ctx, "saga."+name,
		trace.WithAttributes(
			attribute.String("saga", name),
			attribute.String("permission_id", permissionID),
		),
	)
	defer span.End()

	s := &saga{
		name: name,
		logger: observability.WithTraceContext(ctx,
			observability.FromContext(observability.WithLogger(ctx, p.logger)),
		).WithSaga(name, permissionID),
		metrics: p.metrics,
	}

	err := fn(ctx, s)
	p.metrics.ObserveSagaRun(name, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.WithError(err).Error("Saga failed")
		return err
	}

	span.SetStatus(codes.Ok, "")
	s.logger.Info("Saga completed")
	return nil
}

// step runs one saga step, logging and timing it. The first failing step
// ends the saga with its error.
func (s *saga) step(ctx context.Context, name string, fn func(context.Context) error) error {
	logger := s.logger.WithStep(name)
	logger.Debug("Saga step started")

	start := time.Now()
	err := fn(ctx)
	s.metrics.ObserveSagaStep(s.name, name, err, time.Since(start))

	if err != nil {
		logger.WithError(err).Warn("Saga step failed")
		return err
	}
	logger.Debug("Saga step finished")
	return nil
}

// retryInProgress retries fn while the control plane reports a conflicting
// operation on the same resource
func (p *Provisioner) retryInProgress(ctx context.Context, operation string, fn func(context.Context) error) error {
	policy := p.retry.OnRetry(func(attempt int, delay time.Duration, err error) {
		p.metrics.RecordRetry(operation)
		p.logger.WithFields(map[string]interface{}{
			"operation": operation,
			"attempt":   attempt,
			"delay":     delay.String(),
		}).WithError(err).Info("Retrying control plane operation")
	})
	return policy.Do(ctx, controlplane.IsOperationInProgress, fn)
}

// ignore returns nil when err matches one of the tolerated conditions
func ignore(err error, tolerated ...func(error) bool) error {
	for _, ok := range tolerated {
		if ok(err) {
			return nil
		}
	}
	return err
}

// nameTaken converts a name collision with a resource this system cannot
// adopt into a caller error
func nameTaken(err error, resource, name string) error {
	if err != nil && errors.Is(err, controlplane.ErrNameTaken) {
		return apperr.Wrap(apperr.CodeBadRequest, err, fmt.Sprintf("%s name %q is already taken", resource, name))
	}
	return err
}
