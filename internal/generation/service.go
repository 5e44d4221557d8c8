package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/promptforge/promptforge-backend/pkg/config"
	pkgerrors "github.com/promptforge/promptforge-backend/pkg/errors"
	"github.com/promptforge/promptforge-backend/pkg/gemini"
)

// TextGenerator is the upstream model client the service proxies to.
type TextGenerator interface {
	GenerateContent(ctx context.Context, model, prompt string) (*gemini.GenerateResult, error)
}

// Service forwards prompts to the generative model. It adds nothing to the
// model output; upstream results and upstream failures both pass through.
type Service interface {
	Generate(ctx context.Context, input GenerateInput) (*gemini.GenerateResult, error)
}

// GenerateInput is one prompt. Model is optional; empty means the configured
// default.
type GenerateInput struct {
	Prompt string
	Model  string
}

type service struct {
	client       TextGenerator
	defaultModel string
}

// NewService wires the generation proxy.
func NewService(client TextGenerator, cfg config.GeminiConfig) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("text generator required")
	}
	if strings.TrimSpace(cfg.DefaultModel) == "" {
		return nil, fmt.Errorf("default model required")
	}
	return &service{client: client, defaultModel: strings.TrimSpace(cfg.DefaultModel)}, nil
}

func (s *service) Generate(ctx context.Context, input GenerateInput) (*gemini.GenerateResult, error) {
	prompt := strings.TrimSpace(input.Prompt)
	if prompt == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "prompt is required")
	}

	model := strings.TrimSpace(input.Model)
	if model == "" {
		model = s.defaultModel
	}

	result, err := s.client.GenerateContent(ctx, model, prompt)
	if err != nil {
		return nil, err
	}
	return result, nil
}
