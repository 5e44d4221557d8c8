package stripewebhook

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"strconv"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/promptforge/promptforge-backend/internal/catalog"
	"github.com/promptforge/promptforge-backend/internal/ledger"
	"github.com/promptforge/promptforge-backend/pkg/enums"
	pkgerrors "github.com/promptforge/promptforge-backend/pkg/errors"
)

// Outcome is what a verified event did to the ledger.
type Outcome string

const (
	// OutcomeApplied means this delivery mutated the ledger.
	OutcomeApplied Outcome = "applied"
	// OutcomeDuplicate means an earlier delivery of the same event already
	// mutated the ledger.
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeIgnored means the event is not one this ledger acts on.
	OutcomeIgnored Outcome = "ignored"
)

type ServiceParams struct {
	Catalog *catalog.Catalog
	Ledger  ledger.Service
}

// Service reconciles verified Stripe events into the credit ledger.
type Service struct {
	catalog *catalog.Catalog
	ledger  ledger.Service
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Catalog == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "catalog required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger service required")
	}
	return &Service{catalog: params.Catalog, ledger: params.Ledger}, nil
}

// HandleEvent applies one verified event. Redelivered events come back as
// OutcomeDuplicate without error so the caller acknowledges them.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) (Outcome, error) {
	if event == nil || event.Data == nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	if event.ID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "stripe event id required")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session")
		}
		return s.handleSessionCompleted(ctx, event, &session)
	case stripe.EventTypeCustomerSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode subscription")
		}
		return s.handleSubscriptionDeleted(ctx, event, &sub)
	default:
		return OutcomeIgnored, nil
	}
}

func (s *Service) handleSessionCompleted(ctx context.Context, event *stripe.Event, session *stripe.CheckoutSession) (Outcome, error) {
	// Completed sessions with payment still pending are delivered again as a
	// separate event once the charge settles.
	switch session.PaymentStatus {
	case stripe.CheckoutSessionPaymentStatusPaid, stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
	default:
		return OutcomeIgnored, nil
	}

	userID := strings.TrimSpace(session.Metadata["user_id"])
	if userID == "" {
		userID = strings.TrimSpace(session.ClientReferenceID)
	}
	if userID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "session carries no user identity")
	}

	offeringID := strings.TrimSpace(session.Metadata["offering_id"])
	if offeringID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "session carries no offering id")
	}

	offering, err := s.catalog.Resolve(offeringID)
	if err != nil {
		return "", err
	}

	// The session metadata was written by our checkout service. Disagreement
	// with the catalog means the session was not, so nothing is granted.
	if kind := strings.TrimSpace(session.Metadata["kind"]); kind != "" && kind != string(offering.Kind) {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "session kind does not match catalog").
			WithDetails(map[string]string{"offering_id": offering.ID, "kind": kind})
	}

	switch offering.Kind {
	case enums.OfferingKindCreditPack:
		// Checkout always stamps credit_amount on pack sessions; a missing
		// key means the session was built elsewhere.
		raw := strings.TrimSpace(session.Metadata["credit_amount"])
		amount, parseErr := strconv.ParseInt(raw, 10, 64)
		if raw == "" || parseErr != nil || amount != offering.CreditAmount {
			return "", pkgerrors.New(pkgerrors.CodeValidation, "session credit amount does not match catalog").
				WithDetails(map[string]string{"offering_id": offering.ID, "credit_amount": raw})
		}
		_, err = s.ledger.ApplyCredit(ctx, ledger.ApplyCreditInput{
			ProviderEventID:  event.ID,
			EventType:        string(event.Type),
			UserID:           userID,
			OfferingID:       offering.ID,
			CreditAmount:     offering.CreditAmount,
			PriceRef:         offering.PriceRef,
			SessionID:        session.ID,
			AmountTotalCents: session.AmountTotal,
			Currency:         string(session.Currency),
		})
	case enums.OfferingKindSubscription:
		subscriptionID := ""
		if session.Subscription != nil {
			subscriptionID = session.Subscription.ID
		}
		err = s.ledger.SetSubscriptionActive(ctx, ledger.ActivateSubscriptionInput{
			ProviderEventID:        event.ID,
			EventType:              string(event.Type),
			UserID:                 userID,
			PriceRef:               offering.PriceRef,
			ProviderSubscriptionID: subscriptionID,
			SessionID:              session.ID,
		})
	}
	if err != nil {
		if stdErrors.Is(err, ledger.ErrDuplicateEvent) {
			return OutcomeDuplicate, nil
		}
		return "", err
	}
	return OutcomeApplied, nil
}

func (s *Service) handleSubscriptionDeleted(ctx context.Context, event *stripe.Event, sub *stripe.Subscription) (Outcome, error) {
	if sub.ID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "subscription id required")
	}

	deactivated, err := s.ledger.SetSubscriptionInactive(ctx, ledger.DeactivateSubscriptionInput{
		ProviderEventID:        event.ID,
		EventType:              string(event.Type),
		ProviderSubscriptionID: sub.ID,
	})
	if err != nil {
		if stdErrors.Is(err, ledger.ErrDuplicateEvent) {
			return OutcomeDuplicate, nil
		}
		return "", err
	}
	if !deactivated {
		return OutcomeIgnored, nil
	}
	return OutcomeApplied, nil
}
