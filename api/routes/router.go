package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/deliajin33/stablecoin/api/controllers"
	"github.com/deliajin33/stablecoin/api/middleware"
	"github.com/deliajin33/stablecoin/api/responses"
	"github.com/deliajin33/stablecoin/internal/paymentrequests"
	"github.com/deliajin33/stablecoin/pkg/config"
	pkgerrors "github.com/deliajin33/stablecoin/pkg/errors"
	"github.com/deliajin33/stablecoin/pkg/logger"
	pkgredis "github.com/deliajin33/stablecoin/pkg/redis"
)

// Dependencies are the collaborators the router wires into handlers. Optional
// fields are left nil when the backing service is not configured.
type Dependencies struct {
	Config   *config.Config
	Logger   *logger.Logger
	Payments paymentrequests.Service

	// Cron is nil when scheduled maintenance is disabled.
	Cron        controllers.CycleRunner
	Idempotency pkgredis.IdempotencyStore
	RateLimiter pkgredis.RateLimiter
	Readiness   map[string]controllers.Pinger
	// Metrics defaults to the global Prometheus handler.
	Metrics        http.Handler
	EventHeartbeat time.Duration
}

func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	logg := deps.Logger
	svc := deps.Payments

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.HTTP.CORSOrigins),
		middleware.MerchantContext(logg),
	)
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		responses.WriteError(req.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		responses.WriteError(req.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "method not allowed"))
	})

	metricsHandler := deps.Metrics
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Readiness))
	})

	settlePolicy := middleware.NewRateLimitPolicy("settle", cfg.RateLimit.SettleWindow, cfg.RateLimit.SettleLimit)

	r.Route("/api/v1", func(r chi.Router) {
		if deps.Idempotency != nil {
			r.Use(middleware.Idempotency(deps.Idempotency, logg))
		}

		r.Route("/payment-requests", func(r chi.Router) {
			r.Post("/", controllers.CreatePaymentRequest(svc, logg))
			r.Route("/{requestId}", func(r chi.Router) {
				r.Get("/", controllers.GetPaymentRequest(svc, logg))
				r.With(middleware.RateLimit(settlePolicy, deps.RateLimiter, logg)).
					Post("/settle", controllers.SettlePaymentRequest(svc, logg))
				r.Post("/cancel", controllers.CancelPaymentRequest(svc, logg))
				r.Get("/events", controllers.PaymentRequestEvents(svc, logg, deps.EventHeartbeat))
			})
		})

		r.Post("/payloads/decode", controllers.DecodePayload(svc, logg))

		r.Route("/merchants/{merchantId}", func(r chi.Router) {
			r.Get("/payment-requests", controllers.MerchantPaymentRequests(svc, logg))
			r.Get("/transactions", controllers.MerchantTransactions(svc, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Get("/summary", controllers.AdminSummary(svc, logg))
		r.Post("/cron/run", controllers.AdminRunCron(deps.Cron, logg))
	})

	return r
}
