package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics_RegistersOnCustomRegistry(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.SchedulerDispatched.Inc()
	m.SchedulerSkipped.WithLabelValues("throttled").Add(2)
	m.BusDeadLettered.WithLabelValues("pricewatch:raw", "max_deliveries").Inc()

	if got := testutil.ToFloat64(m.SchedulerSkipped.WithLabelValues("throttled")); got != 2 {
		t.Errorf("skipped{throttled} = %v, want 2", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "pricewatch_scheduler_dispatched_total" {
			found = true
		}
	}
	if !found {
		t.Error("pricewatch_scheduler_dispatched_total not registered")
	}
}

func TestNewMetrics_DuplicateRegistrationPanics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	NewMetrics(reg)

	defer func() {
		if recover() == nil {
			t.Error("second NewMetrics on the same registry should panic")
		}
	}()
	NewMetrics(reg)
}

func TestTracer_NoopProvider(t *testing.T) {
	t.Parallel()

	tr := NewTracer()
	ctx, span := tr.ExecuteSpan(context.Background(), "cmd-1", 7, "https://shop.example/p")
	RecordError(span, errors.New("boom"))
	RecordError(span, nil)
	span.End()

	if ctx == nil {
		t.Fatal("ExecuteSpan() returned nil context")
	}
}
