package enums

import "fmt"

// PaymentRequestStatus tracks the lifecycle of a payment request.
type PaymentRequestStatus string

const (
	PaymentRequestStatusPending   PaymentRequestStatus = "pending"
	PaymentRequestStatusPaid      PaymentRequestStatus = "paid"
	PaymentRequestStatusExpired   PaymentRequestStatus = "expired"
	PaymentRequestStatusCancelled PaymentRequestStatus = "cancelled"
)

var validPaymentRequestStatuses = []PaymentRequestStatus{
	PaymentRequestStatusPending,
	PaymentRequestStatusPaid,
	PaymentRequestStatusExpired,
	PaymentRequestStatusCancelled,
}

// String implements fmt.Stringer.
func (s PaymentRequestStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known PaymentRequestStatus.
func (s PaymentRequestStatus) IsValid() bool {
	for _, candidate := range validPaymentRequestStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status can never change again.
func (s PaymentRequestStatus) IsTerminal() bool {
	switch s {
	case PaymentRequestStatusPaid, PaymentRequestStatusExpired, PaymentRequestStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether next is reachable from s in one step.
// Only pending requests move, and only into a terminal status.
func (s PaymentRequestStatus) CanTransitionTo(next PaymentRequestStatus) bool {
	return s == PaymentRequestStatusPending && next.IsTerminal()
}

// ParsePaymentRequestStatus converts raw input into a PaymentRequestStatus.
func ParsePaymentRequestStatus(value string) (PaymentRequestStatus, error) {
	for _, candidate := range validPaymentRequestStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment request status %q", value)
}
