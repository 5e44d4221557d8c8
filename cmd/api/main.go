package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/promptforge/promptforge-backend/api/routes"
	"github.com/promptforge/promptforge-backend/internal/catalog"
	checkoutsvc "github.com/promptforge/promptforge-backend/internal/checkout"
	"github.com/promptforge/promptforge-backend/internal/generation"
	"github.com/promptforge/promptforge-backend/internal/ledger"
	stripewebhook "github.com/promptforge/promptforge-backend/internal/webhooks/stripe"
	"github.com/promptforge/promptforge-backend/pkg/config"
	"github.com/promptforge/promptforge-backend/pkg/db"
	"github.com/promptforge/promptforge-backend/pkg/gemini"
	"github.com/promptforge/promptforge-backend/pkg/instance"
	"github.com/promptforge/promptforge-backend/pkg/logger"
	"github.com/promptforge/promptforge-backend/pkg/metrics"
	"github.com/promptforge/promptforge-backend/pkg/migrate"
	"github.com/promptforge/promptforge-backend/pkg/redis"
	pkgstripe "github.com/promptforge/promptforge-backend/pkg/stripe"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := pkgstripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	geminiClient, err := gemini.NewClient(cfg.Gemini)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap gemini", err)
		os.Exit(1)
	}

	offeringCatalog, err := catalog.New(stripeClient.Environment(), cfg.Catalog.Offerings)
	if err != nil {
		logg.Error(context.Background(), "failed to build offering catalog", err)
		os.Exit(1)
	}

	generationService, err := generation.NewService(geminiClient, cfg.Gemini)
	if err != nil {
		logg.Error(context.Background(), "failed to create generation service", err)
		os.Exit(1)
	}

	checkoutService, err := checkoutsvc.NewService(checkoutsvc.ServiceParams{
		Catalog:      offeringCatalog,
		StripeClient: checkoutsvc.NewStripeClient(stripeClient),
		Config:       cfg.Checkout,
		BaseURL:      cfg.App.BaseURL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	ledgerService, err := ledger.NewService(ledger.NewRepository(dbClient.DB()), dbClient, cfg.Ledger)
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Catalog: offeringCatalog,
		Ledger:  ledgerService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Webhook.IdempotencyTTL, "stripe-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create idempotency guard", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	webhookMetrics := metrics.NewWebhookMetrics(registry)
	generationMetrics := metrics.NewGenerationMetrics(registry)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:             cfg,
			Logger:             logg,
			DBPinger:           dbClient,
			RedisPinger:        redisClient,
			GenerationService:  generationService,
			CheckoutService:    checkoutService,
			LedgerService:      ledgerService,
			StripeClient:       stripeClient,
			StripeWebhookSvc:   webhookService,
			StripeWebhookGuard: webhookGuard,
			WebhookMetrics:     webhookMetrics,
			GenerationMetrics:  generationMetrics,
			MetricsHTTPHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.App.RequestTimeout,
		WriteTimeout:      cfg.App.RequestTimeout,
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-shutdownCtx.Done():
		logg.Info(ctx, "shutting down api server")
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(timeoutCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
			os.Exit(1)
		}
	}
}
