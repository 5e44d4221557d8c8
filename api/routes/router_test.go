package routes

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/promptforge/promptforge-backend/internal/checkout"
	"github.com/promptforge/promptforge-backend/internal/generation"
	"github.com/promptforge/promptforge-backend/internal/ledger"
	"github.com/promptforge/promptforge-backend/pkg/config"
	"github.com/promptforge/promptforge-backend/pkg/db/models"
	"github.com/promptforge/promptforge-backend/pkg/gemini"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type stubGeneration struct{}

func (stubGeneration) Generate(context.Context, generation.GenerateInput) (*gemini.GenerateResult, error) {
	return &gemini.GenerateResult{Text: "ok"}, nil
}

type stubCheckout struct{}

func (stubCheckout) CreateSession(context.Context, checkout.CreateSessionInput) (*checkout.Session, error) {
	return &checkout.Session{ID: "cs_test_abc", URL: "https://checkout.example"}, nil
}

type stubLedger struct{}

func (stubLedger) ApplyCredit(context.Context, ledger.ApplyCreditInput) (*models.UserCredits, error) {
	return nil, nil
}

func (stubLedger) SetSubscriptionActive(context.Context, ledger.ActivateSubscriptionInput) error {
	return nil
}

func (stubLedger) SetSubscriptionInactive(context.Context, ledger.DeactivateSubscriptionInput) (bool, error) {
	return false, nil
}

func (stubLedger) GetCredits(_ context.Context, userID string) (*models.UserCredits, error) {
	return &models.UserCredits{UserID: userID}, nil
}

func newTestRouter() http.Handler {
	return NewRouter(RouterParams{
		Config:            &config.Config{App: config.AppConfig{Env: "dev"}},
		DBPinger:          stubPinger{},
		RedisPinger:       stubPinger{},
		GenerationService: stubGeneration{},
		CheckoutService:   stubCheckout{},
		LedgerService:     stubLedger{},
	})
}

func TestRouter_Routes(t *testing.T) {
	router := newTestRouter()

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"health live", http.MethodGet, "/health/live", "", http.StatusOK},
		{"health ready", http.MethodGet, "/health/ready", "", http.StatusOK},
		{"metrics", http.MethodGet, "/metrics", "", http.StatusOK},
		{"generate", http.MethodPost, "/api/v1/generate", `{"prompt":"p"}`, http.StatusOK},
		{"generate wrong method", http.MethodGet, "/api/v1/generate", "", http.StatusMethodNotAllowed},
		{"checkout session", http.MethodPost, "/api/v1/checkout/session", `{"user_id":"u1","offering_id":"credits_50"}`, http.StatusOK},
		{"credits", http.MethodGet, "/api/v1/credits/u1", "", http.StatusOK},
		{"unknown route", http.MethodGet, "/api/v1/nope", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req *http.Request
			if tt.body != "" {
				req = httptest.NewRequest(tt.method, tt.path, bytes.NewBufferString(tt.body))
				req.Header.Set("Content-Type", "application/json")
			} else {
				req = httptest.NewRequest(tt.method, tt.path, nil)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("%s %s: expected %d, got %d (%s)", tt.method, tt.path, tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}
