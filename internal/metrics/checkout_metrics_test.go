package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func newTestMetrics(t *testing.T) (*CheckoutMetrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return newCheckoutMetricsWithRegisterer(reg), reg
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		var total float64
		for _, metric := range family.GetMetric() {
			switch {
			case metric.GetCounter() != nil:
				total += metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				total += metric.GetGauge().GetValue()
			}
		}
		return total
	}
	return 0
}

func TestNewCheckoutMetrics_Fields(t *testing.T) {
	m, _ := newTestMetrics(t)

	if m.placementStarted == nil {
		t.Error("placementStarted counter should not be nil")
	}
	if m.placementCompleted == nil {
		t.Error("placementCompleted counter should not be nil")
	}
	if m.placementRejected == nil {
		t.Error("placementRejected counter vec should not be nil")
	}
	if m.placementFailed == nil {
		t.Error("placementFailed counter should not be nil")
	}
	if m.rollbacks == nil {
		t.Error("rollbacks counter should not be nil")
	}
	if m.placementDuration == nil {
		t.Error("placementDuration histogram should not be nil")
	}
	if m.activePlacements == nil {
		t.Error("activePlacements gauge should not be nil")
	}
}

func TestCheckoutMetrics_Counters(t *testing.T) {
	m, reg := newTestMetrics(t)

	m.RecordPlacementStarted()
	m.RecordPlacementStarted()
	m.RecordPlacementCompleted()
	m.RecordPlacementRejected("insufficient_stock")
	m.RecordPlacementFailed()
	m.RecordRollback()
	m.RecordPlacementFinished()
	m.RecordPlacementDuration(25 * time.Millisecond)

	if got := counterValue(t, reg, "vstore_placement_started_total"); got != 2 {
		t.Errorf("placement started = %v, want 2", got)
	}
	if got := counterValue(t, reg, "vstore_placement_completed_total"); got != 1 {
		t.Errorf("placement completed = %v, want 1", got)
	}
	if got := counterValue(t, reg, "vstore_placement_rejected_total"); got != 1 {
		t.Errorf("placement rejected = %v, want 1", got)
	}
	if got := counterValue(t, reg, "vstore_placement_rollbacks_total"); got != 1 {
		t.Errorf("rollbacks = %v, want 1", got)
	}
	// Две записи started и одна finished: активных должно остаться 1.
	if got := counterValue(t, reg, "vstore_active_placements"); got != 1 {
		t.Errorf("active placements = %v, want 1", got)
	}
}

func TestCheckoutMetrics_RejectedLabels(t *testing.T) {
	m, reg := newTestMetrics(t)

	m.RecordPlacementRejected("insufficient_stock")
	m.RecordPlacementRejected("insufficient_stock")
	m.RecordPlacementRejected("validation")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	var rejected *dto.MetricFamily
	for _, family := range families {
		if family.GetName() == "vstore_placement_rejected_total" {
			rejected = family
		}
	}
	if rejected == nil {
		t.Fatal("rejected metric family not found")
	}
	if len(rejected.GetMetric()) != 2 {
		t.Fatalf("expected 2 label values, got %d", len(rejected.GetMetric()))
	}
}

func TestCheckoutMetrics_DoubleRegisterReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := newCheckoutMetricsWithRegisterer(reg)
	second := newCheckoutMetricsWithRegisterer(reg)

	first.RecordPlacementCompleted()
	second.RecordPlacementCompleted()

	if got := counterValue(t, reg, "vstore_placement_completed_total"); got != 2 {
		t.Errorf("shared counter = %v, want 2", got)
	}
}
