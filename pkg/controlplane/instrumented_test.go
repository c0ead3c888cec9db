package controlplane

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/platinummonkey/jitaccess/pkg/observability"
)

var _ Client = (*Instrumented)(nil)

func TestInstrument_NilMetrics(t *testing.T) {
	client := NewMemoryClient()
	assert.Same(t, client, Instrument(client, nil))
}

func TestInstrument_RecordsCalls(t *testing.T) {
	ctx := context.Background()
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	otel.SetMeterProvider(provider)
	t.Cleanup(func() { _ = provider.Shutdown(ctx) })

	metrics, err := observability.NewOTelMetrics()
	require.NoError(t, err)

	mem := NewMemoryClient()
	client := Instrument(mem, metrics)

	groupID, err := client.CreateGroup(ctx, "jit-Admin-123456789012", "")
	require.NoError(t, err)
	mem.InjectErrors("DeleteGroup", errors.New("throttled"))
	assert.Error(t, client.DeleteGroup(ctx, groupID))
	require.NoError(t, client.DeleteGroup(ctx, groupID))
	assert.Equal(t, 2, mem.Calls("DeleteGroup"))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "jitaccess.controlplane.calls" {
				continue
			}
			for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
				total += dp.Value
			}
		}
	}
	assert.EqualValues(t, 3, total)
}
