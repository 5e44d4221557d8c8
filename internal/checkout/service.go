package checkout

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/promptforge/promptforge-backend/internal/catalog"
	"github.com/promptforge/promptforge-backend/pkg/config"
	"github.com/promptforge/promptforge-backend/pkg/enums"
	pkgerrors "github.com/promptforge/promptforge-backend/pkg/errors"
)

// Service opens hosted checkout sessions for catalog offerings.
type Service interface {
	CreateSession(ctx context.Context, input CreateSessionInput) (*Session, error)
}

// CreateSessionInput captures everything the caller contributes to a session.
// Success and cancel URLs are optional overrides.
type CreateSessionInput struct {
	UserID     string
	UserEmail  string
	OfferingID string
	SuccessURL string
	CancelURL  string
}

// Session is the redirect handle returned to the frontend.
type Session struct {
	ID  string `json:"session_id"`
	URL string `json:"url"`
}

// ServiceParams groups dependencies for the checkout service.
type ServiceParams struct {
	Catalog      *catalog.Catalog
	StripeClient StripeCheckoutClient
	Config       config.CheckoutConfig
	BaseURL      string
}

type service struct {
	catalog    *catalog.Catalog
	stripe     StripeCheckoutClient
	lifetime   map[string]struct{}
	successURL string
	cancelURL  string
}

// NewService builds a checkout service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog required")
	}
	if params.StripeClient == nil {
		return nil, fmt.Errorf("stripe client required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(params.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("base url required")
	}

	lifetime := make(map[string]struct{}, len(params.Config.LifetimeOfferingIDs))
	for _, id := range params.Config.LifetimeOfferingIDs {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			lifetime[trimmed] = struct{}{}
		}
	}

	return &service{
		catalog:    params.Catalog,
		stripe:     params.StripeClient,
		lifetime:   lifetime,
		successURL: baseURL + params.Config.SuccessPath,
		cancelURL:  baseURL + params.Config.CancelPath,
	}, nil
}

func (s *service) CreateSession(ctx context.Context, input CreateSessionInput) (*Session, error) {
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	offering, err := s.catalog.Resolve(input.OfferingID)
	if err != nil {
		return nil, err
	}

	mode := s.modeFor(offering)

	successURL := strings.TrimSpace(input.SuccessURL)
	if successURL == "" {
		successURL = s.successURL
	}
	cancelURL := strings.TrimSpace(input.CancelURL)
	if cancelURL == "" {
		cancelURL = s.cancelURL
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(mode)),
		SuccessURL:        stripe.String(successURL),
		CancelURL:         stripe.String(cancelURL),
		ClientReferenceID: stripe.String(userID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(offering.PriceRef),
				Quantity: stripe.Int64(1),
			},
		},
	}
	if email := strings.TrimSpace(input.UserEmail); email != "" {
		params.CustomerEmail = stripe.String(email)
	}

	// The webhook reconciler reads these back off the completed session, so
	// every fact it needs to apply the event is denormalized here.
	params.AddMetadata("user_id", userID)
	params.AddMetadata("offering_id", offering.ID)
	params.AddMetadata("kind", string(offering.Kind))
	params.AddMetadata("price_ref", offering.PriceRef)
	if offering.Kind == enums.OfferingKindCreditPack {
		params.AddMetadata("credit_amount", strconv.FormatInt(offering.CreditAmount, 10))
	}

	created, err := s.stripe.CreateSession(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}

	return &Session{ID: created.ID, URL: created.URL}, nil
}

// modeFor picks the billing mode: credit packs and lifetime plans bill once,
// everything else subscribes.
func (s *service) modeFor(offering catalog.Offering) enums.CheckoutMode {
	if offering.Kind != enums.OfferingKindSubscription {
		return enums.CheckoutModePayment
	}
	if _, ok := s.lifetime[offering.ID]; ok {
		return enums.CheckoutModePayment
	}
	return enums.CheckoutModeSubscription
}
