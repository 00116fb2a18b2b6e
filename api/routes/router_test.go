package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/deliajin33/stablecoin/api/controllers"
	"github.com/deliajin33/stablecoin/internal/cron"
	"github.com/deliajin33/stablecoin/internal/notifications"
	"github.com/deliajin33/stablecoin/internal/paymentrequests"
	"github.com/deliajin33/stablecoin/pkg/clock"
	"github.com/deliajin33/stablecoin/pkg/config"
	"github.com/deliajin33/stablecoin/pkg/logger"
	"github.com/deliajin33/stablecoin/pkg/metrics"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type memoryRedis struct {
	mu     sync.Mutex
	data   map[string]string
	counts map[string]int64
}

func newMemoryRedis() *memoryRedis {
	return &memoryRedis{data: map[string]string{}, counts: map[string]int64{}}
}

func (m *memoryRedis) LoadReplay(_ context.Context, scope, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[scope+"|"+key]
	return v, ok, nil
}

func (m *memoryRedis) SaveReplay(_ context.Context, scope, key, payload string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[scope+"|"+key]; ok {
		return false, nil
	}
	m.data[scope+"|"+key] = payload
	return true, nil
}

func (m *memoryRedis) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[scope]++
	return m.counts[scope] <= limit, m.counts[scope], nil
}

type testServer struct {
	handler http.Handler
	clock   *clock.Manual
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	reg := prometheus.NewRegistry()
	paymentMetrics := metrics.NewPaymentMetrics(reg)

	hub, err := notifications.NewHub(notifications.HubParams{Logger: logg, Metrics: paymentMetrics})
	if err != nil {
		t.Fatalf("hub: %v", err)
	}
	clk := clock.NewManual(time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC))
	svc, err := paymentrequests.NewService(paymentrequests.ServiceParams{
		Store:   paymentrequests.NewMemoryStore(),
		Clock:   clk,
		Hub:     hub,
		Logger:  logg,
		Metrics: paymentMetrics,
	})
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	expiry, err := cron.NewRequestExpiryJob(cron.RequestExpiryJobParams{Logger: logg, Sweeper: svc, Clock: clk})
	if err != nil {
		t.Fatalf("expiry job: %v", err)
	}
	registry, err := cron.NewRegistry(expiry)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	cronSvc, err := cron.NewService(cron.ServiceParams{Logger: logg, Registry: registry})
	if err != nil {
		t.Fatalf("cron: %v", err)
	}

	cache := newMemoryRedis()
	cfg := &config.Config{
		App:       config.AppConfig{Env: "dev"},
		HTTP:      config.HTTPConfig{CORSOrigins: []string{"http://localhost:3000"}},
		RateLimit: config.RateLimitConfig{SettleLimit: 2, SettleWindow: time.Minute},
	}
	handler := NewRouter(Dependencies{
		Config:      cfg,
		Logger:      logg,
		Payments:    svc,
		Cron:        cronSvc,
		Idempotency: cache,
		RateLimiter: cache,
		Readiness:   map[string]controllers.Pinger{"redis": stubPinger{}},
		Metrics:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})
	return &testServer{handler: handler, clock: clk}
}

func (s *testServer) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "10.1.1.1:4000"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func dataField(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	envelope := struct {
		Data any `json:"data"`
	}{Data: dest}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v (%s)", err, rec.Body.String())
	}
}

func TestRouterHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	if rec := s.do(http.MethodGet, "/health/live", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("live: %d", rec.Code)
	}
	if rec := s.do(http.MethodGet, "/health/ready", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("ready: %d", rec.Code)
	}
	if rec := s.do(http.MethodGet, "/health/live", "", nil); rec.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}

	s.do(http.MethodPost, "/api/v1/payment-requests", `{"currency":"USDT"}`, map[string]string{
		"X-Merchant-Id":   "m-1",
		"Idempotency-Key": "k-1",
	})
	rec := s.do(http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "payment_requests_created_total") {
		t.Fatalf("expected payment metrics exposed, got %d", rec.Code)
	}

	rec = s.do(http.MethodGet, "/nope", "", nil)
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), `"NOT_FOUND"`) {
		t.Fatalf("expected enveloped 404, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestRouterPaymentLifecycle(t *testing.T) {
	s := newTestServer(t)
	merchant := map[string]string{"X-Merchant-Id": "m-1", "Idempotency-Key": "create-1"}

	rec := s.do(http.MethodPost, "/api/v1/payment-requests", `{"amount":"7.25","currency":"USDC"}`, merchant)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	var created paymentrequests.PaymentRequestView
	dataField(t, rec, &created)

	replay := s.do(http.MethodPost, "/api/v1/payment-requests", `{"amount":"7.25","currency":"USDC"}`, merchant)
	var replayed paymentrequests.PaymentRequestView
	dataField(t, replay, &replayed)
	if replay.Code != http.StatusCreated || replayed.ID != created.ID {
		t.Fatalf("expected idempotent replay of %s, got %d %s", created.ID, replay.Code, replayed.ID)
	}

	rec = s.do(http.MethodPost, "/api/v1/payment-requests", `{"currency":"USDC"}`, map[string]string{"X-Merchant-Id": "m-1"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected missing idempotency key rejected, got %d", rec.Code)
	}

	rec = s.do(http.MethodGet, "/api/v1/payment-requests/"+created.ID, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: %d", rec.Code)
	}

	settlePath := "/api/v1/payment-requests/" + created.ID + "/settle"
	rec = s.do(http.MethodPost, settlePath, `{"payerRef":"w-1","currency":"USDC"}`, map[string]string{"Idempotency-Key": "settle-1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("settle: %d %s", rec.Code, rec.Body.String())
	}
	rec = s.do(http.MethodPost, settlePath, `{"payerRef":"w-2","currency":"USDC"}`, map[string]string{"Idempotency-Key": "settle-2"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("second settle: expected 409, got %d", rec.Code)
	}
	rec = s.do(http.MethodPost, settlePath, `{"payerRef":"w-3","currency":"USDC"}`, map[string]string{"Idempotency-Key": "settle-3"})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third settle from one client: expected 429, got %d", rec.Code)
	}

	rec = s.do(http.MethodGet, "/api/v1/merchants/m-1/transactions", "", map[string]string{"X-Merchant-Id": "m-1"})
	var txs paymentrequests.TransactionListResult
	dataField(t, rec, &txs)
	if len(txs.Items) != 1 || txs.Items[0].Amount != "7.25" {
		t.Fatalf("unexpected transactions %+v", txs.Items)
	}

	rec = s.do(http.MethodGet, "/api/v1/payment-requests/"+created.ID+"/events", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"paid"`) {
		t.Fatalf("events: %d %s", rec.Code, rec.Body.String())
	}
}

func TestRouterAdminCronRun(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodPost, "/api/v1/payment-requests", `{"currency":"USDT"}`, map[string]string{"X-Merchant-Id": "m-1", "Idempotency-Key": "c"})
	var created paymentrequests.PaymentRequestView
	dataField(t, rec, &created)

	s.clock.Advance(paymentrequests.DefaultWindow)
	rec = s.do(http.MethodPost, "/api/admin/v1/cron/run", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cron run: %d %s", rec.Code, rec.Body.String())
	}
	var report cron.CycleReport
	dataField(t, rec, &report)
	if report.Skipped || len(report.Jobs) != 1 || report.Jobs[0].Error != "" {
		t.Fatalf("unexpected report %+v", report)
	}

	rec = s.do(http.MethodGet, "/api/admin/v1/summary", "", nil)
	var summary paymentrequests.Summary
	dataField(t, rec, &summary)
	if summary.Requests["expired"] != 1 {
		t.Fatalf("expected the swept request counted as expired, got %+v", summary.Requests)
	}
}
