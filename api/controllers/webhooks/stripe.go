package webhooks

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/promptforge/promptforge-backend/api/responses"
	stripewebhook "github.com/promptforge/promptforge-backend/internal/webhooks/stripe"
	pkgerrors "github.com/promptforge/promptforge-backend/pkg/errors"
	"github.com/promptforge/promptforge-backend/pkg/logger"
	"github.com/promptforge/promptforge-backend/pkg/metrics"
)

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) (stripewebhook.Outcome, error)
}

type stripeWebhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type stripeClient interface {
	SigningSecret() string
}

// StripeWebhook receives provider deliveries, verifies them, and hands them
// to the reconciler. Every non-2xx here makes the provider redeliver, so
// only retryable failures may produce one.
func StripeWebhook(svc StripeWebhookService, client stripeClient, guard stripeWebhookGuard, m *metrics.WebhookMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if client == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe client unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		sigHeader := r.Header.Get("Stripe-Signature")
		if sigHeader == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "stripe signature missing"))
			return
		}

		event, err := webhook.ConstructEvent(payload, sigHeader, client.SigningSecret())
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "verify signature"))
			return
		}

		if logg != nil {
			ctx = logg.WithEventID(ctx, event.ID)
		}

		// Redis fast path. Advisory only: the ledger's own marker decides,
		// this just spares the database on hot redeliveries.
		alreadyProcessed, err := guard.CheckAndMark(ctx, event.ID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if alreadyProcessed {
			m.IncOutcome(string(event.Type), string(stripewebhook.OutcomeDuplicate))
			responses.WriteSuccess(w, map[string]string{"outcome": string(stripewebhook.OutcomeDuplicate)})
			return
		}

		start := time.Now()
		outcome, err := svc.HandleEvent(ctx, &event)
		m.ObserveDuration(string(event.Type), time.Since(start))
		if err != nil {
			// Release the reservation so the redelivery is not filtered out
			// before it reaches the ledger again.
			_ = guard.Delete(ctx, event.ID)
			m.IncOutcome(string(event.Type), "error")
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(logg.WithField(ctx, "outcome", string(outcome)), "webhook.processed")
		}
		m.IncOutcome(string(event.Type), string(outcome))
		responses.WriteSuccess(w, map[string]string{"outcome": string(outcome)})
	}
}
