package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/deliajin33/stablecoin/api/middleware"
	"github.com/deliajin33/stablecoin/internal/notifications"
	"github.com/deliajin33/stablecoin/internal/paymentrequests"
	"github.com/deliajin33/stablecoin/pkg/clock"
	"github.com/deliajin33/stablecoin/pkg/logger"
)

var controllerEpoch = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	svc   paymentrequests.Service
	clock *clock.Manual
	hub   *notifications.Hub
	logg  *logger.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	hub, err := notifications.NewHub(notifications.HubParams{Logger: logg})
	if err != nil {
		t.Fatalf("hub: %v", err)
	}
	clk := clock.NewManual(controllerEpoch)
	svc, err := paymentrequests.NewService(paymentrequests.ServiceParams{
		Store:  paymentrequests.NewMemoryStore(),
		Clock:  clk,
		Hub:    hub,
		Logger: logg,
	})
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return &fixture{svc: svc, clock: clk, hub: hub, logg: logg}
}

type call struct {
	method   string
	target   string
	body     string
	merchant string
	params   map[string]string
}

func (c call) request() *http.Request {
	var body io.Reader
	if c.body != "" {
		body = strings.NewReader(c.body)
	}
	req := httptest.NewRequest(c.method, c.target, body)
	rc := chi.NewRouteContext()
	for k, v := range c.params {
		rc.URLParams.Add(k, v)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rc)
	if c.merchant != "" {
		ctx = middleware.WithMerchantID(ctx, c.merchant)
	}
	return req.WithContext(ctx)
}

func serve(h http.Handler, c call) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, c.request())
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	envelope := struct {
		Data any `json:"data"`
	}{Data: dest}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode error response: %v (%s)", err, rec.Body.String())
	}
	return envelope.Error.Code
}

func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("expected %d got %d: %s", status, rec.Code, rec.Body.String())
	}
	if got := errorCode(t, rec); got != code {
		t.Fatalf("expected code %s got %s", code, got)
	}
}

func (f *fixture) createVia(t *testing.T, body string) paymentrequests.PaymentRequestView {
	t.Helper()
	rec := serve(CreatePaymentRequest(f.svc, f.logg), call{method: http.MethodPost, target: "/api/v1/payment-requests", body: body, merchant: "merchant-1"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	var view paymentrequests.PaymentRequestView
	decodeData(t, rec, &view)
	return view
}
