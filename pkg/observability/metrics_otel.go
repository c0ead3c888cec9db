package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics holds OpenTelemetry instruments for control plane calls.
// They are exported over OTLP next to the Prometheus registry.
type OTelMetrics struct {
	callsTotal   metric.Int64Counter
	callDuration metric.Float64Histogram
	callsPending metric.Int64UpDownCounter
}

// NewOTelMetrics creates the instruments on the global meter provider
func NewOTelMetrics() (*OTelMetrics, error) {
	meter := otel.Meter("github.com/platinummonkey/jitaccess")

	m := &OTelMetrics{}
	var err error

	m.callsTotal, err = meter.Int64Counter(
		"jitaccess.controlplane.calls",
		metric.WithDescription("Total number of control plane API calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create control plane call counter: %w", err)
	}

	m.callDuration, err = meter.Float64Histogram(
		"jitaccess.controlplane.duration",
		metric.WithDescription("Control plane API call duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create control plane duration histogram: %w", err)
	}

	m.callsPending, err = meter.Int64UpDownCounter(
		"jitaccess.controlplane.pending",
		metric.WithDescription("Control plane API calls currently in flight"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create control plane pending counter: %w", err)
	}

	return m, nil
}

// StartControlPlaneCall marks a call as in flight and returns the function
// that records its outcome. Safe on a nil receiver.
func (m *OTelMetrics) StartControlPlaneCall(ctx context.Context, operation string) func(err error) {
	if m == nil {
		return func(error) {}
	}

	start := time.Now()
	op := attribute.String("operation", operation)
	m.callsPending.Add(ctx, 1, metric.WithAttributes(op))

	return func(err error) {
		attrs := metric.WithAttributes(op, attribute.String("status", statusLabel(err)))
		m.callsPending.Add(ctx, -1, metric.WithAttributes(op))
		m.callsTotal.Add(ctx, 1, attrs)
		m.callDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	}
}
