// Package paycode renders payment requests as opaque scannable payloads and
// parses them back. A payload is descriptive only: it carries no secret and
// presenting it grants nothing.
package paycode

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/deliajin33/stablecoin/pkg/enums"
	pkgerrors "github.com/deliajin33/stablecoin/pkg/errors"
)

const (
	// Version is the wire version written by Encode.
	Version = 1

	prefix      = "scp1."
	payloadType = "payment"
	maxLen      = 2048
)

// ErrMalformedPayload is the cause of every Decode failure.
var ErrMalformedPayload = errors.New("malformed payment payload")

// Fields are the public request fields carried by a payload.
type Fields struct {
	Version    int
	RequestID  string
	MerchantID string
	Currency   enums.Currency
	// Amount is nil for open-amount requests.
	Amount    *decimal.Decimal
	ExpiresAt time.Time
}

type wire struct {
	V    int     `json:"v"`
	Type string  `json:"type"`
	ID   string  `json:"id"`
	MID  string  `json:"mid,omitempty"`
	Cur  string  `json:"cur"`
	Amt  *string `json:"amt,omitempty"`
	Exp  string  `json:"exp"`
}

// Encode serializes f into a versioned payload.
func Encode(f Fields) (string, error) {
	if strings.TrimSpace(f.RequestID) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "request id required")
	}
	if !f.Currency.IsValid() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "unsupported currency")
	}
	if f.ExpiresAt.IsZero() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "expiry required")
	}
	w := wire{
		V:    Version,
		Type: payloadType,
		ID:   f.RequestID,
		MID:  f.MerchantID,
		Cur:  f.Currency.String(),
		Exp:  f.ExpiresAt.UTC().Format(time.RFC3339Nano),
	}
	if f.Amount != nil {
		amt := FormatAmount(*f.Amount)
		w.Amt = &amt
	}
	raw, err := json.Marshal(w)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode payload")
	}
	return prefix + base64.RawURLEncoding.EncodeToString(raw), nil
}

// Decode parses a payload produced by Encode. Every failure wraps
// ErrMalformedPayload and carries pkgerrors.CodeMalformedPayload.
func Decode(payload string) (Fields, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return Fields{}, malformed(nil, "payload is empty")
	}
	if len(payload) > maxLen {
		return Fields{}, malformed(nil, "payload too long")
	}
	if !strings.HasPrefix(payload, prefix) {
		return Fields{}, malformed(nil, "unknown payload prefix")
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(payload, prefix))
	if err != nil {
		return Fields{}, malformed(err, "payload is not valid base64")
	}

	var w wire
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&w); err != nil {
		return Fields{}, malformed(err, "payload is not valid json")
	}
	if w.V != Version {
		return Fields{}, malformed(nil, fmt.Sprintf("unsupported payload version %d", w.V))
	}
	if w.Type != payloadType {
		return Fields{}, malformed(nil, "unsupported payload type")
	}
	if strings.TrimSpace(w.ID) == "" {
		return Fields{}, malformed(nil, "payload missing request id")
	}
	currency, err := enums.ParseCurrency(w.Cur)
	if err != nil {
		return Fields{}, malformed(err, "payload currency unsupported")
	}
	exp, err := time.Parse(time.RFC3339Nano, w.Exp)
	if err != nil || exp.IsZero() {
		return Fields{}, malformed(err, "payload expiry invalid")
	}

	out := Fields{
		Version:    w.V,
		RequestID:  w.ID,
		MerchantID: w.MID,
		Currency:   currency,
		ExpiresAt:  exp.UTC(),
	}
	if w.Amt != nil {
		amt, err := decimal.NewFromString(*w.Amt)
		if err != nil {
			return Fields{}, malformed(err, "payload amount invalid")
		}
		if amt.IsNegative() {
			return Fields{}, malformed(nil, "payload amount negative")
		}
		if !AmountInRange(amt) {
			return Fields{}, malformed(nil, "payload amount out of range")
		}
		out.Amount = &amt
	}
	return out, nil
}

// Bounds on decimal amounts accepted from callers. Rounding, comparing or
// formatting a decimal costs time proportional to its exponent, so anything
// outside these bounds is rejected before it reaches arithmetic.
const (
	MaxAmountFractionDigits = 36
	MaxAmountIntegerDigits  = 30
)

// AmountInRange reports whether d has at most MaxAmountFractionDigits
// decimal places and MaxAmountIntegerDigits integer digits. It inspects
// the exponent and coefficient only and never rescales d.
func AmountInRange(d decimal.Decimal) bool {
	exp := d.Exponent()
	if exp < -MaxAmountFractionDigits || exp > MaxAmountIntegerDigits {
		return false
	}
	coef := d.Coefficient()
	digits := len(coef.Abs(coef).String())
	return digits+int(exp) <= MaxAmountIntegerDigits
}

// FormatAmount renders d keeping its scale, so "12.50" stays "12.50".
func FormatAmount(d decimal.Decimal) string {
	places := int32(0)
	if exp := d.Exponent(); exp < 0 {
		places = -exp
	}
	return d.StringFixed(places)
}

func malformed(cause error, msg string) error {
	if cause == nil {
		cause = ErrMalformedPayload
	} else {
		cause = fmt.Errorf("%w: %w", ErrMalformedPayload, cause)
	}
	return pkgerrors.Wrap(pkgerrors.CodeMalformedPayload, cause, msg)
}
