package notifications

import (
	"time"

	"github.com/deliajin33/stablecoin/pkg/enums"
)

// StatusEvent reports that a payment request reached a new status.
type StatusEvent struct {
	RequestID     string                     `json:"requestId"`
	MerchantID    string                     `json:"merchantId,omitempty"`
	Status        enums.PaymentRequestStatus `json:"status"`
	OccurredAt    time.Time                  `json:"occurredAt"`
	TransactionID string                     `json:"transactionId,omitempty"`
}

// Terminal reports whether no further events will follow for the request.
func (e StatusEvent) Terminal() bool {
	return e.Status.IsTerminal()
}

// EventType names the event for downstream consumers, e.g. "payment_request.paid".
func (e StatusEvent) EventType() string {
	return "payment_request." + e.Status.String()
}

// Listener observes every published event. Implementations must not block.
type Listener interface {
	OnStatusEvent(StatusEvent)
}

// ListenerFunc adapts a function into a Listener.
type ListenerFunc func(StatusEvent)

func (f ListenerFunc) OnStatusEvent(e StatusEvent) { f(e) }
