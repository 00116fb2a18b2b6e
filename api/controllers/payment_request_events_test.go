package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/deliajin33/stablecoin/internal/paymentrequests"
	pkgerrors "github.com/deliajin33/stablecoin/pkg/errors"
)

func TestPaymentRequestEventsTerminalSnapshot(t *testing.T) {
	f := newFixture(t)
	created := f.createVia(t, `{"currency":"USDT"}`)
	f.clock.Advance(paymentrequests.DefaultWindow + time.Second)

	rec := serve(PaymentRequestEvents(f.svc, f.logg, time.Hour), call{method: http.MethodGet, target: "/", params: map[string]string{requestIDParam: created.ID}})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
	body := rec.Body.String()
	if !strings.HasPrefix(body, "event: snapshot\n") || !strings.Contains(body, `"status":"expired"`) {
		t.Fatalf("unexpected stream %q", body)
	}
}

func TestPaymentRequestEventsStreamsSettlement(t *testing.T) {
	f := newFixture(t)
	created := f.createVia(t, `{"amount":"1.5","currency":"USDC"}`)

	rec := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		PaymentRequestEvents(f.svc, f.logg, time.Hour).ServeHTTP(rec, call{method: http.MethodGet, target: "/", params: map[string]string{requestIDParam: created.ID}}.request())
	}()

	deadline := time.Now().Add(2 * time.Second)
	for f.hub.SubscriberCount(created.ID) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("stream never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	amount := decimal.RequireFromString("1.5")
	if _, err := f.svc.Settle(context.Background(), paymentrequests.SettleInput{RequestID: created.ID, PayerRef: "p", Amount: &amount, Currency: "USDC"}); err != nil {
		t.Fatalf("settle: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("stream did not end after terminal event")
	}
	body := rec.Body.String()
	if !strings.Contains(body, "event: snapshot\n") || !strings.Contains(body, "event: payment_request.paid\n") {
		t.Fatalf("unexpected stream %q", body)
	}
}

func TestPaymentRequestEventsEndsWithClient(t *testing.T) {
	f := newFixture(t)
	created := f.createVia(t, `{"currency":"USDT"}`)

	base := call{method: http.MethodGet, target: "/", params: map[string]string{requestIDParam: created.ID}}.request()
	ctx, cancel := context.WithCancel(base.Context())
	req := base.WithContext(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		PaymentRequestEvents(f.svc, f.logg, time.Hour).ServeHTTP(httptest.NewRecorder(), req)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for f.hub.SubscriberCount(created.ID) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("stream never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("stream did not end when the client left")
	}
	deadline = time.Now().Add(2 * time.Second)
	for f.hub.SubscriberCount(created.ID) != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscription leaked after disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPaymentRequestEventsUnknownRequest(t *testing.T) {
	f := newFixture(t)
	rec := serve(PaymentRequestEvents(f.svc, f.logg, time.Hour), call{method: http.MethodGet, target: "/", params: map[string]string{requestIDParam: "missing"}})
	expectError(t, rec, http.StatusNotFound, string(pkgerrors.CodeNotFound))
}
