package controllers

import (
	"net/http"

	"github.com/promptforge/promptforge-backend/api/responses"
	"github.com/promptforge/promptforge-backend/api/validators"
	checkoutsvc "github.com/promptforge/promptforge-backend/internal/checkout"
	pkgerrors "github.com/promptforge/promptforge-backend/pkg/errors"
	"github.com/promptforge/promptforge-backend/pkg/logger"
)

type checkoutSessionRequest struct {
	UserID     string `json:"user_id" validate:"required"`
	UserEmail  string `json:"user_email,omitempty" validate:"omitempty,email"`
	OfferingID string `json:"offering_id" validate:"required"`
	SuccessURL string `json:"success_url,omitempty" validate:"omitempty,url"`
	CancelURL  string `json:"cancel_url,omitempty" validate:"omitempty,url"`
}

// CreateCheckoutSession opens a hosted checkout session and returns the
// redirect URL.
func CreateCheckoutSession(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload checkoutSessionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		session, err := svc.CreateSession(ctx, checkoutsvc.CreateSessionInput{
			UserID:     payload.UserID,
			UserEmail:  payload.UserEmail,
			OfferingID: payload.OfferingID,
			SuccessURL: payload.SuccessURL,
			CancelURL:  payload.CancelURL,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, session)
	}
}
