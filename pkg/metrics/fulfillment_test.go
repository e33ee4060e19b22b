package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestFulfillmentMetricsExport(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewFulfillmentMetrics(reg)

	m.IncTransition("in_delivery")
	m.IncTransitionError("INVALID_TRANSITION")
	m.IncClaimAttempt("won")
	m.IncClaimAttempt("lost")
	m.IncCallback("paid")
	m.ObservePricingDuration(3 * time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "order_transitions_total", "to_status", "in_delivery"); err != nil {
		t.Fatalf("fetch transitions: %v", err)
	} else if got != 1 {
		t.Fatalf("expected transitions=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "delivery_claim_attempts_total", "outcome", "lost"); err != nil {
		t.Fatalf("fetch claims: %v", err)
	} else if got != 1 {
		t.Fatalf("expected lost claims=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "payment_callbacks_total", "result", "paid"); err != nil {
		t.Fatalf("fetch callbacks: %v", err)
	} else if got != 1 {
		t.Fatalf("expected callbacks=1, got %f", got)
	}

	mf := findMetricFamily(mfs, "pricing_duration_seconds")
	if mf == nil {
		t.Fatal("pricing histogram not exported")
	}
	if sum := mf.GetMetric()[0].GetHistogram().GetSampleSum(); sum <= 0 {
		t.Fatalf("expected pricing duration sum > 0, got %f", sum)
	}
}

func TestNilReceiverIsNoop(t *testing.T) {
	var m *FulfillmentMetrics
	m.IncTransition("completed")
	m.IncClaimAttempt("won")
	m.ObservePricingDuration(time.Millisecond)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
