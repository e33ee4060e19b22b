package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// FulfillmentMetrics records counters and latencies for the order lifecycle.
type FulfillmentMetrics struct {
	transitions      *prometheus.CounterVec
	transitionErrors *prometheus.CounterVec
	claimAttempts    *prometheus.CounterVec
	callbacks        *prometheus.CounterVec
	pricingDuration  prometheus.Histogram
	requestDuration  *prometheus.HistogramVec
}

// NewFulfillmentMetrics registers the fulfillment metrics on the provided registerer.
func NewFulfillmentMetrics(reg prometheus.Registerer) *FulfillmentMetrics {
	if reg == nil {
		return &FulfillmentMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_total",
		Help: "Committed order state transitions by target status.",
	}, []string{"to_status"})
	transitionErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transition_errors_total",
		Help: "Rejected order state transitions by error code.",
	}, []string{"code"})
	claimAttempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "delivery_claim_attempts_total",
		Help: "Courier claim attempts by outcome.",
	}, []string{"outcome"})
	callbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_callbacks_total",
		Help: "Payment gateway callbacks by result.",
	}, []string{"result"})
	pricingDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pricing_duration_seconds",
		Help:    "Duration of order price computation in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method", "status"})
	reg.MustRegister(transitions, transitionErrors, claimAttempts, callbacks, pricingDuration, requestDuration)
	return &FulfillmentMetrics{
		transitions:      transitions,
		transitionErrors: transitionErrors,
		claimAttempts:    claimAttempts,
		callbacks:        callbacks,
		pricingDuration:  pricingDuration,
		requestDuration:  requestDuration,
	}
}

// IncTransition counts one committed transition into toStatus.
func (m *FulfillmentMetrics) IncTransition(toStatus string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(toStatus)).Inc()
}

// IncTransitionError counts one rejected transition by error code.
func (m *FulfillmentMetrics) IncTransitionError(code string) {
	if m == nil || m.transitionErrors == nil {
		return
	}
	m.transitionErrors.WithLabelValues(normalizeLabel(code)).Inc()
}

// IncClaimAttempt counts a courier claim attempt ("won" or "lost").
func (m *FulfillmentMetrics) IncClaimAttempt(outcome string) {
	if m == nil || m.claimAttempts == nil {
		return
	}
	m.claimAttempts.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncCallback counts one gateway callback by result.
func (m *FulfillmentMetrics) IncCallback(result string) {
	if m == nil || m.callbacks == nil {
		return
	}
	m.callbacks.WithLabelValues(normalizeLabel(result)).Inc()
}

// ObservePricingDuration records how long one price computation took.
func (m *FulfillmentMetrics) ObservePricingDuration(duration time.Duration) {
	if m == nil || m.pricingDuration == nil {
		return
	}
	m.pricingDuration.Observe(duration.Seconds())
}

// ObserveRequest records one HTTP request duration.
func (m *FulfillmentMetrics) ObserveRequest(route, method, status string, duration time.Duration) {
	if m == nil || m.requestDuration == nil {
		return
	}
	m.requestDuration.WithLabelValues(normalizeLabel(route), normalizeLabel(method), normalizeLabel(status)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
