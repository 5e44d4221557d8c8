package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/promptforge/promptforge-backend/pkg/config"
)

// Client speaks the generative-language REST surface. It carries no state
// beyond credentials and transport settings.
type Client struct {
	apiKey  string
	baseURL string
	httpc   *http.Client
}

// GenerateResult is the upstream's answer plus its raw envelope so callers
// can relay the full payload untouched.
type GenerateResult struct {
	Text string
	Raw  json.RawMessage
}

// APIError carries the upstream's HTTP status so handlers can pass it
// through verbatim.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gemini: upstream status %d: %s", e.StatusCode, e.Message)
}

// NewClient builds a Gemini REST client from configuration.
func NewClient(cfg config.GeminiConfig) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("gemini base url is required")
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	ResponseMIMEType string `json:"response_mime_type"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// GenerateContent sends one prompt to the named model and returns the first
// candidate's text. Upstream failures come back as *APIError with the
// upstream status attached.
func (c *Client) GenerateContent(ctx context.Context, model, prompt string) (*GenerateResult, error) {
	if model == "" {
		return nil, errors.New("model is required")
	}
	if prompt == "" {
		return nil, errors.New("prompt is required")
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{
			{Role: "user", Parts: []part{{Text: prompt}}},
		},
		GenerationConfig: generationConfig{ResponseMIMEType: "application/json"},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal generate request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		c.baseURL, url.PathEscape(model), url.QueryEscape(c.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call gemini: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read gemini response: %w", err)
	}

	var parsed generateResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: "gemini api error"}
		}
		return nil, fmt.Errorf("decode gemini response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := "gemini api error"
		if parsed.Error != nil && parsed.Error.Message != "" {
			message = parsed.Error.Message
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: message}
	}

	text := ""
	if len(parsed.Candidates) > 0 && len(parsed.Candidates[0].Content.Parts) > 0 {
		text = parsed.Candidates[0].Content.Parts[0].Text
	}

	return &GenerateResult{Text: text, Raw: raw}, nil
}
