package stripewebhook

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stripe/stripe-go/v84"

	"github.com/promptforge/promptforge-backend/internal/catalog"
	"github.com/promptforge/promptforge-backend/internal/ledger"
	"github.com/promptforge/promptforge-backend/pkg/config"
	"github.com/promptforge/promptforge-backend/pkg/db/models"
	pkgerrors "github.com/promptforge/promptforge-backend/pkg/errors"
)

type fakeLedger struct {
	applyFn      func(ctx context.Context, input ledger.ApplyCreditInput) (*models.UserCredits, error)
	activateFn   func(ctx context.Context, input ledger.ActivateSubscriptionInput) error
	deactivateFn func(ctx context.Context, input ledger.DeactivateSubscriptionInput) (bool, error)

	lastApply      *ledger.ApplyCreditInput
	lastActivate   *ledger.ActivateSubscriptionInput
	lastDeactivate *ledger.DeactivateSubscriptionInput
}

func (f *fakeLedger) ApplyCredit(ctx context.Context, input ledger.ApplyCreditInput) (*models.UserCredits, error) {
	f.lastApply = &input
	if f.applyFn != nil {
		return f.applyFn(ctx, input)
	}
	return &models.UserCredits{UserID: input.UserID, Available: input.CreditAmount, TotalEarned: input.CreditAmount}, nil
}

func (f *fakeLedger) SetSubscriptionActive(ctx context.Context, input ledger.ActivateSubscriptionInput) error {
	f.lastActivate = &input
	if f.activateFn != nil {
		return f.activateFn(ctx, input)
	}
	return nil
}

func (f *fakeLedger) SetSubscriptionInactive(ctx context.Context, input ledger.DeactivateSubscriptionInput) (bool, error) {
	f.lastDeactivate = &input
	if f.deactivateFn != nil {
		return f.deactivateFn(ctx, input)
	}
	return true, nil
}

func (f *fakeLedger) GetCredits(ctx context.Context, userID string) (*models.UserCredits, error) {
	return &models.UserCredits{UserID: userID}, nil
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New("test", []config.OfferingConfig{
		{ID: "credits_50", Kind: "credit_pack", CreditAmount: 50, TestPriceRef: "price_test_50", LivePriceRef: "price_live_50"},
		{ID: "pro_monthly", Kind: "subscription", TestPriceRef: "price_test_pro", LivePriceRef: "price_live_pro"},
	})
	if err != nil {
		t.Fatalf("failed to build catalog: %v", err)
	}
	return c
}

func newTestService(t *testing.T, fake *fakeLedger) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Catalog: testCatalog(t), Ledger: fake})
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}
	return svc
}

func sessionEvent(t *testing.T, session map[string]any) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(session)
	if err != nil {
		t.Fatalf("failed to marshal session: %v", err)
	}
	return &stripe.Event{
		ID:   "evt_1",
		Type: stripe.EventTypeCheckoutSessionCompleted,
		Data: &stripe.EventData{Raw: raw},
	}
}

func paidCreditSession() map[string]any {
	return map[string]any{
		"id":             "cs_test_abc",
		"payment_status": "paid",
		"amount_total":   999,
		"currency":       "usd",
		"metadata": map[string]string{
			"user_id":       "u1",
			"offering_id":   "credits_50",
			"kind":          "credit_pack",
			"credit_amount": "50",
			"price_ref":     "price_test_50",
		},
	}
}

func TestHandleEvent_CreditPackApplied(t *testing.T) {
	fake := &fakeLedger{}
	svc := newTestService(t, fake)

	outcome, err := svc.HandleEvent(context.Background(), sessionEvent(t, paidCreditSession()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeApplied {
		t.Fatalf("expected applied, got %s", outcome)
	}

	input := fake.lastApply
	if input == nil {
		t.Fatal("expected ApplyCredit call")
	}
	if input.ProviderEventID != "evt_1" {
		t.Fatalf("expected event id to key the grant, got %q", input.ProviderEventID)
	}
	if input.CreditAmount != 50 || input.OfferingID != "credits_50" || input.UserID != "u1" {
		t.Fatalf("unexpected grant input: %+v", input)
	}
	if input.SessionID != "cs_test_abc" || input.AmountTotalCents != 999 {
		t.Fatalf("unexpected audit fields: %+v", input)
	}
}

func TestHandleEvent_DuplicateDeliveryIsAcknowledged(t *testing.T) {
	fake := &fakeLedger{
		applyFn: func(context.Context, ledger.ApplyCreditInput) (*models.UserCredits, error) {
			return nil, ledger.ErrDuplicateEvent
		},
	}
	svc := newTestService(t, fake)

	outcome, err := svc.HandleEvent(context.Background(), sessionEvent(t, paidCreditSession()))
	if err != nil {
		t.Fatalf("duplicates must not error: %v", err)
	}
	if outcome != OutcomeDuplicate {
		t.Fatalf("expected duplicate, got %s", outcome)
	}
}

func TestHandleEvent_SubscriptionActivation(t *testing.T) {
	fake := &fakeLedger{}
	svc := newTestService(t, fake)

	session := map[string]any{
		"id":             "cs_test_sub",
		"payment_status": "paid",
		"subscription":   "sub_123",
		"metadata": map[string]string{
			"user_id":     "u1",
			"offering_id": "pro_monthly",
			"kind":        "subscription",
		},
	}
	outcome, err := svc.HandleEvent(context.Background(), sessionEvent(t, session))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeApplied {
		t.Fatalf("expected applied, got %s", outcome)
	}

	input := fake.lastActivate
	if input == nil {
		t.Fatal("expected SetSubscriptionActive call")
	}
	if input.UserID != "u1" || input.ProviderSubscriptionID != "sub_123" {
		t.Fatalf("unexpected activation input: %+v", input)
	}
	if fake.lastApply != nil {
		t.Fatal("subscription sessions must not grant credits")
	}
}

func TestHandleEvent_UnpaidSessionIgnored(t *testing.T) {
	fake := &fakeLedger{}
	svc := newTestService(t, fake)

	session := paidCreditSession()
	session["payment_status"] = "unpaid"
	outcome, err := svc.HandleEvent(context.Background(), sessionEvent(t, session))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeIgnored {
		t.Fatalf("expected ignored, got %s", outcome)
	}
	if fake.lastApply != nil {
		t.Fatal("unpaid sessions must not touch the ledger")
	}
}

func TestHandleEvent_ClientReferenceFallback(t *testing.T) {
	fake := &fakeLedger{}
	svc := newTestService(t, fake)

	session := paidCreditSession()
	session["client_reference_id"] = "u2"
	session["metadata"] = map[string]string{
		"offering_id":   "credits_50",
		"kind":          "credit_pack",
		"credit_amount": "50",
	}
	outcome, err := svc.HandleEvent(context.Background(), sessionEvent(t, session))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeApplied {
		t.Fatalf("expected applied, got %s", outcome)
	}
	if fake.lastApply.UserID != "u2" {
		t.Fatalf("expected client reference fallback, got %q", fake.lastApply.UserID)
	}
}

func TestHandleEvent_MalformedSessions(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(session map[string]any)
		contains string
	}{
		{
			name: "missing user identity",
			mutate: func(session map[string]any) {
				session["metadata"] = map[string]string{"offering_id": "credits_50"}
			},
		},
		{
			name: "missing offering id",
			mutate: func(session map[string]any) {
				session["metadata"] = map[string]string{"user_id": "u1"}
			},
		},
		{
			name: "unknown offering",
			mutate: func(session map[string]any) {
				session["metadata"] = map[string]string{"user_id": "u1", "offering_id": "credits_9000"}
			},
		},
		{
			name: "kind mismatch",
			mutate: func(session map[string]any) {
				meta := session["metadata"].(map[string]string)
				meta["kind"] = "subscription"
			},
		},
		{
			name: "tampered credit amount",
			mutate: func(session map[string]any) {
				meta := session["metadata"].(map[string]string)
				meta["credit_amount"] = "5000"
			},
		},
		{
			name: "missing credit amount",
			mutate: func(session map[string]any) {
				meta := session["metadata"].(map[string]string)
				delete(meta, "credit_amount")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeLedger{}
			svc := newTestService(t, fake)

			session := paidCreditSession()
			tt.mutate(session)
			_, err := svc.HandleEvent(context.Background(), sessionEvent(t, session))
			typed := pkgerrors.As(err)
			if typed == nil || typed.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
			if fake.lastApply != nil || fake.lastActivate != nil {
				t.Fatal("malformed events must not touch the ledger")
			}
		})
	}
}

func TestHandleEvent_SubscriptionDeleted(t *testing.T) {
	fake := &fakeLedger{}
	svc := newTestService(t, fake)

	raw, _ := json.Marshal(map[string]any{"id": "sub_123"})
	event := &stripe.Event{
		ID:   "evt_del_1",
		Type: stripe.EventTypeCustomerSubscriptionDeleted,
		Data: &stripe.EventData{Raw: raw},
	}

	outcome, err := svc.HandleEvent(context.Background(), event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeApplied {
		t.Fatalf("expected applied, got %s", outcome)
	}
	if fake.lastDeactivate == nil || fake.lastDeactivate.ProviderSubscriptionID != "sub_123" {
		t.Fatalf("unexpected deactivation input: %+v", fake.lastDeactivate)
	}
}

func TestHandleEvent_SubscriptionDeletedUnknownUser(t *testing.T) {
	fake := &fakeLedger{
		deactivateFn: func(context.Context, ledger.DeactivateSubscriptionInput) (bool, error) {
			return false, nil
		},
	}
	svc := newTestService(t, fake)

	raw, _ := json.Marshal(map[string]any{"id": "sub_missing"})
	event := &stripe.Event{
		ID:   "evt_del_2",
		Type: stripe.EventTypeCustomerSubscriptionDeleted,
		Data: &stripe.EventData{Raw: raw},
	}

	outcome, err := svc.HandleEvent(context.Background(), event)
	if err != nil {
		t.Fatalf("unknown subscriptions must be acknowledged: %v", err)
	}
	if outcome != OutcomeIgnored {
		t.Fatalf("expected ignored, got %s", outcome)
	}
}

func TestHandleEvent_UnrelatedEventTypeIgnored(t *testing.T) {
	fake := &fakeLedger{}
	svc := newTestService(t, fake)

	event := &stripe.Event{
		ID:   "evt_other",
		Type: stripe.EventTypeInvoicePaid,
		Data: &stripe.EventData{Raw: json.RawMessage(`{}`)},
	}
	outcome, err := svc.HandleEvent(context.Background(), event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeIgnored {
		t.Fatalf("expected ignored, got %s", outcome)
	}
}

func TestHandleEvent_MissingEventData(t *testing.T) {
	svc := newTestService(t, &fakeLedger{})

	if _, err := svc.HandleEvent(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil event")
	}
	if _, err := svc.HandleEvent(context.Background(), &stripe.Event{ID: "evt_1", Type: stripe.EventTypeCheckoutSessionCompleted}); err == nil {
		t.Fatal("expected error for missing data")
	}
}
