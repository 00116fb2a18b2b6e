package paycode

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/deliajin33/stablecoin/pkg/enums"
	pkgerrors "github.com/deliajin33/stablecoin/pkg/errors"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	amount := decimal.RequireFromString("12.50")
	in := Fields{
		RequestID:  "3f6c1b2e-8a7d-4c1e-9b1a-2f3e4d5c6b7a",
		MerchantID: "merchant-42",
		Currency:   enums.CurrencyUSDC,
		Amount:     &amount,
		ExpiresAt:  time.Date(2026, 5, 1, 10, 15, 0, 123456789, time.UTC),
	}

	payload, err := Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.HasPrefix(payload, "scp1.") {
		t.Fatalf("unexpected payload prefix %q", payload)
	}

	out, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.Version != Version {
		t.Fatalf("expected version %d got %d", Version, out.Version)
	}
	if out.RequestID != in.RequestID || out.MerchantID != in.MerchantID || out.Currency != in.Currency {
		t.Fatalf("identity fields mismatch: %+v", out)
	}
	if out.Amount == nil || !out.Amount.Equal(amount) {
		t.Fatalf("amount mismatch: %v", out.Amount)
	}
	if out.Amount.Exponent() != -2 {
		t.Fatalf("amount scale lost: %s", out.Amount)
	}
	if !out.ExpiresAt.Equal(in.ExpiresAt) {
		t.Fatalf("expiry mismatch: %s vs %s", out.ExpiresAt, in.ExpiresAt)
	}
}

func TestEncodeDecodeOpenAmount(t *testing.T) {
	payload, err := Encode(Fields{
		RequestID: "req-open",
		Currency:  enums.CurrencyUSDT,
		ExpiresAt: time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.Amount != nil {
		t.Fatalf("expected open amount, got %s", out.Amount)
	}
}

func TestDecodeMalformed(t *testing.T) {
	encode := func(raw string) string {
		return prefix + base64.RawURLEncoding.EncodeToString([]byte(raw))
	}
	tests := map[string]string{
		"empty":           "",
		"no prefix":       "hello",
		"bad base64":      prefix + "***",
		"bad json":        encode("{"),
		"unknown version": encode(`{"v":9,"type":"payment","id":"a","cur":"USDC","exp":"2026-05-01T00:00:00Z"}`),
		"wrong type":      encode(`{"v":1,"type":"transfer","id":"a","cur":"USDC","exp":"2026-05-01T00:00:00Z"}`),
		"missing id":      encode(`{"v":1,"type":"payment","cur":"USDC","exp":"2026-05-01T00:00:00Z"}`),
		"bad currency":    encode(`{"v":1,"type":"payment","id":"a","cur":"DOGE","exp":"2026-05-01T00:00:00Z"}`),
		"bad expiry":      encode(`{"v":1,"type":"payment","id":"a","cur":"USDC","exp":"tomorrow"}`),
		"bad amount":      encode(`{"v":1,"type":"payment","id":"a","cur":"USDC","amt":"ten","exp":"2026-05-01T00:00:00Z"}`),
		"negative amount": encode(`{"v":1,"type":"payment","id":"a","cur":"USDC","amt":"-1","exp":"2026-05-01T00:00:00Z"}`),
		"tiny exponent":   encode(`{"v":1,"type":"payment","id":"a","cur":"USDC","amt":"1e-50000000","exp":"2026-05-01T00:00:00Z"}`),
		"huge amount":     encode(`{"v":1,"type":"payment","id":"a","cur":"USDC","amt":"1e40","exp":"2026-05-01T00:00:00Z"}`),
		"unknown field":   encode(`{"v":1,"type":"payment","id":"a","cur":"USDC","exp":"2026-05-01T00:00:00Z","secret":"x"}`),
	}
	for name, payload := range tests {
		_, err := Decode(payload)
		if err == nil {
			t.Fatalf("%s: expected error", name)
		}
		if !errors.Is(err, ErrMalformedPayload) {
			t.Fatalf("%s: expected ErrMalformedPayload, got %v", name, err)
		}
		if pkgerrors.CodeOf(err) != pkgerrors.CodeMalformedPayload {
			t.Fatalf("%s: expected malformed code, got %s", name, pkgerrors.CodeOf(err))
		}
	}
}

func TestAmountInRange(t *testing.T) {
	tests := map[string]bool{
		"0":                                true,
		"12.50":                            true,
		"0.000000000000000000000000000001": true,
		"999999999999999999999999999999":   true,
		"1000000000000000000000000000000":  false,
		"1e30":                             false,
		"1e-37":                            false,
		"1e-2000000000":                    false,
	}
	for raw, want := range tests {
		if got := AmountInRange(decimal.RequireFromString(raw)); got != want {
			t.Fatalf("%s: expected %v, got %v", raw, want, got)
		}
	}
}

func TestEncodeRejectsIncompleteFields(t *testing.T) {
	if _, err := Encode(Fields{Currency: enums.CurrencyUSDC, ExpiresAt: time.Now()}); err == nil {
		t.Fatal("expected error without request id")
	}
	if _, err := Encode(Fields{RequestID: "a", Currency: "EUR", ExpiresAt: time.Now()}); err == nil {
		t.Fatal("expected error for unsupported currency")
	}
}
