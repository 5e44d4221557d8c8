package controllers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/promptforge/promptforge-backend/api/responses"
	"github.com/promptforge/promptforge-backend/api/validators"
	"github.com/promptforge/promptforge-backend/internal/generation"
	pkgerrors "github.com/promptforge/promptforge-backend/pkg/errors"
	"github.com/promptforge/promptforge-backend/pkg/gemini"
	"github.com/promptforge/promptforge-backend/pkg/logger"
	"github.com/promptforge/promptforge-backend/pkg/metrics"
	"github.com/promptforge/promptforge-backend/pkg/types"
)

type generateRequest struct {
	Prompt string `json:"prompt" validate:"required"`
	Model  string `json:"model,omitempty"`
}

type generateResponse struct {
	Text string          `json:"text"`
	Raw  json.RawMessage `json:"raw,omitempty"`
}

// Generate proxies a prompt to the generative model. Upstream failures keep
// their upstream status code so the frontend sees what the model API said.
func Generate(svc generation.Service, m *metrics.GenerationMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "generation service unavailable"))
			return
		}

		var payload generateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			m.IncResult("invalid")
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.Generate(ctx, generation.GenerateInput{
			Prompt: payload.Prompt,
			Model:  payload.Model,
		})
		if err != nil {
			var upstream *gemini.APIError
			if errors.As(err, &upstream) {
				m.IncResult("upstream_error")
				if logg != nil {
					logg.Error(logg.WithField(ctx, "upstream_status", upstream.StatusCode), "generation.upstream_error", err)
				}
				writeUpstreamError(w, upstream)
				return
			}
			m.IncResult("error")
			responses.WriteError(ctx, logg, w, err)
			return
		}

		m.IncResult("ok")
		responses.WriteSuccess(w, generateResponse{Text: result.Text, Raw: result.Raw})
	}
}

func writeUpstreamError(w http.ResponseWriter, upstream *gemini.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(upstream.StatusCode)
	payload := types.ErrorEnvelope{
		Error: types.APIError{
			Code:    "UPSTREAM_ERROR",
			Message: upstream.Message,
		},
	}
	// Best effort; the status line already carries the verdict.
	_ = json.NewEncoder(w).Encode(payload)
}
