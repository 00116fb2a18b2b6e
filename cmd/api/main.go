package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/deliajin33/stablecoin/api/controllers"
	"github.com/deliajin33/stablecoin/api/routes"
	"github.com/deliajin33/stablecoin/internal/cron"
	"github.com/deliajin33/stablecoin/internal/notifications"
	"github.com/deliajin33/stablecoin/internal/paymentrequests"
	"github.com/deliajin33/stablecoin/pkg/clock"
	"github.com/deliajin33/stablecoin/pkg/config"
	"github.com/deliajin33/stablecoin/pkg/instance"
	"github.com/deliajin33/stablecoin/pkg/logger"
	"github.com/deliajin33/stablecoin/pkg/metrics"
	"github.com/deliajin33/stablecoin/pkg/pubsub"
	"github.com/deliajin33/stablecoin/pkg/redis"
)

const serviceName = "stablecoin-api"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"instance": instance.GetID(),
	})

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "api stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api shut down gracefully")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	paymentMetrics := metrics.NewPaymentMetrics(prometheus.DefaultRegisterer)
	cronMetrics := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)

	hub, err := notifications.NewHub(notifications.HubParams{
		Logger:  logg,
		Metrics: paymentMetrics,
		Buffer:  cfg.Notifications.SubscriberBuffer,
	})
	if err != nil {
		return fmt.Errorf("notification hub: %w", err)
	}

	deps := routes.Dependencies{
		Config:    cfg,
		Logger:    logg,
		Readiness: map[string]controllers.Pinger{},
	}

	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return fmt.Errorf("bootstrap redis: %w", err)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(ctx, "error closing redis", err)
			}
		}()
		deps.Idempotency = redisClient
		deps.RateLimiter = redisClient
		deps.Readiness["redis"] = redisClient
	} else {
		logg.Warn(ctx, "redis not configured; idempotency keys and settle throttling disabled")
	}

	var forwarder *notifications.Forwarder
	if cfg.PubSub.Enabled() {
		psClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			return fmt.Errorf("bootstrap pubsub: %w", err)
		}
		defer func() {
			if err := psClient.Close(); err != nil {
				logg.Error(ctx, "error closing pubsub", err)
			}
		}()
		publisher := psClient.StatusPublisher()
		if publisher == nil {
			return errors.New("pubsub status publisher unavailable")
		}
		defer publisher.Stop()

		forwarder, err = notifications.NewForwarder(notifications.ForwarderParams{
			Logger:    logg,
			Publisher: publisher,
			Metrics:   paymentMetrics,
			QueueSize: cfg.Notifications.ForwarderQueue,
		})
		if err != nil {
			return fmt.Errorf("status forwarder: %w", err)
		}
		hub.AddListener(forwarder)
		deps.Readiness["pubsub"] = psClient
	}

	feeRate := cfg.Payments.FeeRate
	svc, err := paymentrequests.NewService(paymentrequests.ServiceParams{
		Store:          paymentrequests.NewMemoryStore(),
		Clock:          clock.System(),
		Hub:            hub,
		Logger:         logg,
		Metrics:        paymentMetrics,
		Window:         cfg.Payments.RequestWindow,
		StaticWindow:   cfg.Payments.StaticWindow,
		FeeRate:        &feeRate,
		MaxAmountScale: cfg.Payments.MaxAmountScale,
		Network:        cfg.Payments.Network,
	})
	if err != nil {
		return fmt.Errorf("payment service: %w", err)
	}
	deps.Payments = svc

	var cronSvc *cron.Service
	if cfg.Cron.Enabled {
		cronSvc, err = newCronService(cfg, logg, svc, cronMetrics)
		if err != nil {
			return err
		}
		deps.Cron = cronSvc
	}

	addr := ":" + port(cfg)
	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		// Event streams observe shutdown through the request context.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logg.Info(logg.WithField(gctx, "addr", addr), "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if cronSvc != nil {
		g.Go(func() error {
			return ignoreCanceled(cronSvc.Run(gctx))
		})
	}
	if forwarder != nil {
		g.Go(func() error {
			return ignoreCanceled(forwarder.Run(gctx))
		})
	}
	return g.Wait()
}

func newCronService(cfg *config.Config, logg *logger.Logger, svc paymentrequests.Service, cronMetrics *metrics.CronJobMetrics) (*cron.Service, error) {
	expiry, err := cron.NewRequestExpiryJob(cron.RequestExpiryJobParams{
		Logger:  logg,
		Sweeper: svc,
	})
	if err != nil {
		return nil, fmt.Errorf("expiry job: %w", err)
	}
	retention, err := cron.NewRequestRetentionJob(cron.RequestRetentionJobParams{
		Logger:    logg,
		Pruner:    svc,
		Retention: cfg.Cron.Retention,
	})
	if err != nil {
		return nil, fmt.Errorf("retention job: %w", err)
	}
	registry, err := cron.NewRegistry(expiry, retention)
	if err != nil {
		return nil, fmt.Errorf("cron registry: %w", err)
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Metrics:  cronMetrics,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		return nil, fmt.Errorf("cron service: %w", err)
	}
	return service, nil
}

func port(cfg *config.Config) string {
	if p := os.Getenv("PORT"); p != "" {
		return p
	}
	return cfg.App.Port
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
