package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/promptforge/promptforge-backend/api/responses"
	"github.com/promptforge/promptforge-backend/internal/ledger"
	pkgerrors "github.com/promptforge/promptforge-backend/pkg/errors"
	"github.com/promptforge/promptforge-backend/pkg/logger"
)

type creditsResponse struct {
	UserID         string     `json:"user_id"`
	Available      int64      `json:"available"`
	TotalEarned    int64      `json:"total_earned"`
	LastPurchaseAt *time.Time `json:"last_purchase_at,omitempty"`
}

// GetCredits returns the user's balance. Users the ledger has never seen get
// a zero balance, not a 404.
func GetCredits(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		userID := chi.URLParam(r, "userId")
		credits, err := svc.GetCredits(ctx, userID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, creditsResponse{
			UserID:         credits.UserID,
			Available:      credits.Available,
			TotalEarned:    credits.TotalEarned,
			LastPurchaseAt: credits.LastPurchaseAt,
		})
	}
}
