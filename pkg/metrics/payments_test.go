package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestPaymentMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPaymentMetrics(reg)

	m.IncCreated("USDC", "fixed")
	m.IncCreated("USDC", "fixed")
	m.IncTransition("paid")
	m.IncSettleRejected("already_settled")
	m.IncDropped("")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "stablecoin_payment_requests_created_total", "currency", "USDC"); err != nil || got != 2 {
		t.Fatalf("expected created=2, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "stablecoin_payment_request_transitions_total", "status", "paid"); err != nil || got != 1 {
		t.Fatalf("expected paid transition=1, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "stablecoin_payment_settle_rejections_total", "reason", "already_settled"); err != nil || got != 1 {
		t.Fatalf("expected rejection=1, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "stablecoin_notification_events_dropped_total", "sink", "unknown"); err != nil || got != 1 {
		t.Fatalf("expected dropped with normalized label, got %f (%v)", got, err)
	}
}

func TestNilPaymentMetricsAreSafe(t *testing.T) {
	var m *PaymentMetrics
	m.IncCreated("USDT", "open")
	m.IncTransition("expired")
	m.IncSettleRejected("expired")
	m.IncDropped("hub")
}
