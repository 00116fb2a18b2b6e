package metrics

import "github.com/prometheus/client_golang/prometheus"

// PaymentMetrics tracks the payment-request lifecycle.
type PaymentMetrics struct {
	created     *prometheus.CounterVec
	transitions *prometheus.CounterVec
	rejections  *prometheus.CounterVec
	dropped     *prometheus.CounterVec
}

// NewPaymentMetrics registers lifecycle metrics on reg. A nil registerer
// yields a no-op collector.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	created := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payment_requests_created_total",
		Help:      "Payment requests created, by currency and kind.",
	}, []string{"currency", "kind"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payment_request_transitions_total",
		Help:      "Winning lifecycle transitions, by resulting status.",
	}, []string{"status"})
	rejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payment_settle_rejections_total",
		Help:      "Settlement attempts that did not produce a transaction, by reason.",
	}, []string{"reason"})
	dropped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notification_events_dropped_total",
		Help:      "Status events dropped because a sink was full.",
	}, []string{"sink"})
	reg.MustRegister(created, transitions, rejections, dropped)
	return &PaymentMetrics{
		created:     created,
		transitions: transitions,
		rejections:  rejections,
		dropped:     dropped,
	}
}

func (m *PaymentMetrics) IncCreated(currency, kind string) {
	if m == nil || m.created == nil {
		return
	}
	m.created.WithLabelValues(normalizeLabel(currency), normalizeLabel(kind)).Inc()
}

func (m *PaymentMetrics) IncTransition(status string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(status)).Inc()
}

func (m *PaymentMetrics) IncSettleRejected(reason string) {
	if m == nil || m.rejections == nil {
		return
	}
	m.rejections.WithLabelValues(normalizeLabel(reason)).Inc()
}

func (m *PaymentMetrics) IncDropped(sink string) {
	if m == nil || m.dropped == nil {
		return
	}
	m.dropped.WithLabelValues(normalizeLabel(sink)).Inc()
}
