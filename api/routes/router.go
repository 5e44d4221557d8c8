package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/promptforge/promptforge-backend/api/controllers"
	webhookcontrollers "github.com/promptforge/promptforge-backend/api/controllers/webhooks"
	"github.com/promptforge/promptforge-backend/api/middleware"
	checkoutsvc "github.com/promptforge/promptforge-backend/internal/checkout"
	"github.com/promptforge/promptforge-backend/internal/generation"
	"github.com/promptforge/promptforge-backend/internal/ledger"
	stripewebhook "github.com/promptforge/promptforge-backend/internal/webhooks/stripe"
	"github.com/promptforge/promptforge-backend/pkg/config"
	"github.com/promptforge/promptforge-backend/pkg/logger"
	"github.com/promptforge/promptforge-backend/pkg/metrics"
	"github.com/promptforge/promptforge-backend/pkg/stripe"
)

// RouterParams carries everything the HTTP surface depends on.
type RouterParams struct {
	Config *config.Config
	Logger *logger.Logger

	DBPinger    controllers.Pinger
	RedisPinger controllers.Pinger

	GenerationService generation.Service
	CheckoutService   checkoutsvc.Service
	LedgerService     ledger.Service

	StripeClient       *stripe.Client
	StripeWebhookSvc   *stripewebhook.Service
	StripeWebhookGuard *stripewebhook.IdempotencyGuard
	WebhookMetrics     *metrics.WebhookMetrics
	GenerationMetrics  *metrics.GenerationMetrics
	MetricsHTTPHandler http.Handler
}

func NewRouter(p RouterParams) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(p.Logger),
		middleware.RequestID(p.Logger),
		middleware.Logging(p.Logger),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(p.Config))
		r.Get("/ready", controllers.HealthReady(p.Config, p.Logger, map[string]controllers.Pinger{
			"db":    p.DBPinger,
			"redis": p.RedisPinger,
		}))
	})

	metricsHandler := p.MetricsHTTPHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/generate", controllers.Generate(p.GenerationService, p.GenerationMetrics, p.Logger))
		r.Post("/checkout/session", controllers.CreateCheckoutSession(p.CheckoutService, p.Logger))
		r.Get("/credits/{userId}", controllers.GetCredits(p.LedgerService, p.Logger))

		r.Route("/webhooks", func(r chi.Router) {
			r.Post("/stripe", webhookcontrollers.StripeWebhook(p.StripeWebhookSvc, p.StripeClient, p.StripeWebhookGuard, p.WebhookMetrics, p.Logger))
		})
	})

	return r
}
