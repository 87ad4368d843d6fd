package observability

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestRecordersAreNoopWithoutMetrics(t *testing.T) {
	metricsMu.Lock()
	appMetrics = nil
	metricsMu.Unlock()

	ctx := context.Background()
	RecordAuthLogin(ctx, "success")
	RecordAuthLogout(ctx, "success")
	RecordSessionOperation(ctx, "create", "success")
	RecordTokenOperation(ctx, "consume", "invalid")
	RecordCacheEvent(ctx, "session", "miss")
	RecordRoleMutation(ctx, "create")
	RecordRepositoryOperation(ctx, "session", "upsert", "success")
}

func TestRecordRepositoryOperationCounts(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := newAppMetrics(mp.Meter(instrumentationName))
	if err != nil {
		t.Fatalf("create metrics: %v", err)
	}
	metricsMu.Lock()
	appMetrics = m
	metricsMu.Unlock()
	t.Cleanup(func() {
		metricsMu.Lock()
		appMetrics = nil
		metricsMu.Unlock()
	})

	ctx := context.Background()
	RecordRepositoryOperation(ctx, "token", "consume", "success")
	RecordRepositoryOperation(ctx, "token", "consume", "success")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect metrics: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if md.Name != "repository.operations" {
				continue
			}
			sum, ok := md.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("unexpected data type %T", md.Data)
			}
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	if total != 2 {
		t.Fatalf("expected 2 repository operations, got %d", total)
	}
}
