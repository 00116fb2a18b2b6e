package enums

import "fmt"

// PaymentRequestKind distinguishes fixed-amount requests from open ones.
type PaymentRequestKind string

const (
	PaymentRequestKindFixed PaymentRequestKind = "fixed"
	PaymentRequestKindOpen  PaymentRequestKind = "open"
)

var validPaymentRequestKinds = []PaymentRequestKind{
	PaymentRequestKindFixed,
	PaymentRequestKindOpen,
}

// String implements fmt.Stringer.
func (k PaymentRequestKind) String() string {
	return string(k)
}

// IsValid reports whether the kind is recognized.
func (k PaymentRequestKind) IsValid() bool {
	for _, candidate := range validPaymentRequestKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParsePaymentRequestKind converts raw input into a PaymentRequestKind.
func ParsePaymentRequestKind(value string) (PaymentRequestKind, error) {
	for _, candidate := range validPaymentRequestKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment request kind %q", value)
}
