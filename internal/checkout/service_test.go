package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/stripe/stripe-go/v84"

	"github.com/promptforge/promptforge-backend/internal/catalog"
	"github.com/promptforge/promptforge-backend/pkg/config"
	pkgerrors "github.com/promptforge/promptforge-backend/pkg/errors"
)

type fakeStripeClient struct {
	createFn func(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	last     *stripe.CheckoutSessionParams
}

func (f *fakeStripeClient) CreateSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.last = params
	if f.createFn != nil {
		return f.createFn(ctx, params)
	}
	return &stripe.CheckoutSession{ID: "cs_test_abc", URL: "https://checkout.example/cs_test_abc"}, nil
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New("test", []config.OfferingConfig{
		{ID: "credits_50", Kind: "credit_pack", CreditAmount: 50, TestPriceRef: "price_test_50", LivePriceRef: "price_live_50"},
		{ID: "pro_monthly", Kind: "subscription", TestPriceRef: "price_test_pro", LivePriceRef: "price_live_pro"},
		{ID: "pro_lifetime", Kind: "subscription", TestPriceRef: "price_test_life", LivePriceRef: "price_live_life"},
	})
	if err != nil {
		t.Fatalf("failed to build catalog: %v", err)
	}
	return c
}

func newTestService(t *testing.T, client StripeCheckoutClient) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Catalog:      testCatalog(t),
		StripeClient: client,
		Config: config.CheckoutConfig{
			LifetimeOfferingIDs: []string{"pro_lifetime"},
			SuccessPath:         "/account?checkout=success",
			CancelPath:          "/account?checkout=canceled",
		},
		BaseURL: "https://promptforge.example",
	})
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}
	return svc
}

func metadataOf(params *stripe.CheckoutSessionParams) map[string]string {
	if params == nil {
		return nil
	}
	return params.Metadata
}

func TestService_CreateSession_CreditPack(t *testing.T) {
	client := &fakeStripeClient{}
	svc := newTestService(t, client)

	session, err := svc.CreateSession(context.Background(), CreateSessionInput{
		UserID:     "u1",
		UserEmail:  "u1@example.com",
		OfferingID: "credits_50",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.ID != "cs_test_abc" || session.URL == "" {
		t.Fatalf("unexpected session: %+v", session)
	}

	params := client.last
	if got := stripe.StringValue(params.Mode); got != "payment" {
		t.Fatalf("expected payment mode, got %q", got)
	}
	if got := stripe.StringValue(params.LineItems[0].Price); got != "price_test_50" {
		t.Fatalf("expected test price ref, got %q", got)
	}
	if got := stripe.StringValue(params.ClientReferenceID); got != "u1" {
		t.Fatalf("expected client reference id u1, got %q", got)
	}
	if got := stripe.StringValue(params.CustomerEmail); got != "u1@example.com" {
		t.Fatalf("expected customer email, got %q", got)
	}
	if got := stripe.StringValue(params.SuccessURL); got != "https://promptforge.example/account?checkout=success" {
		t.Fatalf("unexpected success url %q", got)
	}

	meta := metadataOf(params)
	for key, want := range map[string]string{
		"user_id":       "u1",
		"offering_id":   "credits_50",
		"kind":          "credit_pack",
		"credit_amount": "50",
		"price_ref":     "price_test_50",
	} {
		if meta[key] != want {
			t.Fatalf("metadata %q = %q, want %q", key, meta[key], want)
		}
	}
}

func TestService_CreateSession_SubscriptionMode(t *testing.T) {
	client := &fakeStripeClient{}
	svc := newTestService(t, client)

	_, err := svc.CreateSession(context.Background(), CreateSessionInput{
		UserID:     "u1",
		OfferingID: "pro_monthly",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := stripe.StringValue(client.last.Mode); got != "subscription" {
		t.Fatalf("expected subscription mode, got %q", got)
	}
	meta := metadataOf(client.last)
	if meta["kind"] != "subscription" {
		t.Fatalf("expected subscription kind metadata, got %q", meta["kind"])
	}
	if _, ok := meta["credit_amount"]; ok {
		t.Fatal("subscription sessions must not carry credit_amount metadata")
	}
}

func TestService_CreateSession_LifetimePlanBillsOnce(t *testing.T) {
	client := &fakeStripeClient{}
	svc := newTestService(t, client)

	_, err := svc.CreateSession(context.Background(), CreateSessionInput{
		UserID:     "u1",
		OfferingID: "pro_lifetime",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := stripe.StringValue(client.last.Mode); got != "payment" {
		t.Fatalf("expected payment mode for lifetime plan, got %q", got)
	}
}

func TestService_CreateSession_URLOverrides(t *testing.T) {
	client := &fakeStripeClient{}
	svc := newTestService(t, client)

	_, err := svc.CreateSession(context.Background(), CreateSessionInput{
		UserID:     "u1",
		OfferingID: "credits_50",
		SuccessURL: "https://app.example/done",
		CancelURL:  "https://app.example/back",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := stripe.StringValue(client.last.SuccessURL); got != "https://app.example/done" {
		t.Fatalf("unexpected success url %q", got)
	}
	if got := stripe.StringValue(client.last.CancelURL); got != "https://app.example/back" {
		t.Fatalf("unexpected cancel url %q", got)
	}
}

func TestService_CreateSession_Validation(t *testing.T) {
	client := &fakeStripeClient{}
	svc := newTestService(t, client)
	ctx := context.Background()

	tests := []struct {
		name  string
		input CreateSessionInput
	}{
		{"missing user id", CreateSessionInput{OfferingID: "credits_50"}},
		{"missing offering id", CreateSessionInput{UserID: "u1"}},
		{"unknown offering", CreateSessionInput{UserID: "u1", OfferingID: "credits_9000"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateSession(ctx, tt.input)
			typed := pkgerrors.As(err)
			if typed == nil || typed.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
	if client.last != nil {
		t.Fatal("stripe must not be called for invalid input")
	}
}

func TestService_CreateSession_ProviderFailure(t *testing.T) {
	client := &fakeStripeClient{
		createFn: func(context.Context, *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
			return nil, errors.New("stripe unreachable")
		},
	}
	svc := newTestService(t, client)

	_, err := svc.CreateSession(context.Background(), CreateSessionInput{
		UserID:     "u1",
		OfferingID: "credits_50",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestNewService_Validation(t *testing.T) {
	if _, err := NewService(ServiceParams{StripeClient: &fakeStripeClient{}, BaseURL: "x"}); err == nil {
		t.Fatal("expected error for missing catalog")
	}
	if _, err := NewService(ServiceParams{Catalog: testCatalog(t), BaseURL: "x"}); err == nil {
		t.Fatal("expected error for missing stripe client")
	}
	if _, err := NewService(ServiceParams{Catalog: testCatalog(t), StripeClient: &fakeStripeClient{}}); err == nil {
		t.Fatal("expected error for missing base url")
	}
}
