// Package gemini is a minimal HTTP client for the Google Generative
// Language API. It exposes a single generateContent operation and
// classifies failures into typed errors so callers never have to
// pattern-match error strings.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Client performs Generative Language API operations. The credential
// and model are per-call parameters so a rotation layer can vary them
// between attempts.
type Client interface {
	GenerateContent(ctx context.Context, credential, model, prompt string, cfg GenerationConfig) (string, error)
}

// GenerationConfig holds the sampling parameters applied to a request.
type GenerationConfig struct {
	Temperature     float64
	MaxOutputTokens int
	TopP            float64
	TopK            int
}

// APIError is a non-2xx HTTP response from the API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gemini: unexpected status %d: %s", e.StatusCode, e.Body)
}

// ContentReason describes why a 2xx response yielded no usable text.
type ContentReason string

const (
	// ReasonSafetyBlocked means the response was flagged by the
	// safety system (finishReason SAFETY).
	ReasonSafetyBlocked ContentReason = "content blocked"
	// ReasonMalformed means the response body was missing the
	// expected candidate text.
	ReasonMalformed ContentReason = "malformed response"
)

// ContentError is a 2xx response that carried no usable text. These
// are deterministic for a given prompt, so retrying them wastes
// attempts.
type ContentError struct {
	Reason ContentReason
}

func (e *ContentError) Error() string {
	return "gemini: " + string(e.Reason)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Generative Language API client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
	TopP            float64 `json:"topP,omitempty"`
	TopK            int     `json:"topK,omitempty"`
}

type generateResponse struct {
	Candidates []candidate `json:"candidates"`
}

type candidate struct {
	Content      *content `json:"content"`
	FinishReason string   `json:"finishReason"`
}

func (c *httpClient) GenerateContent(ctx context.Context, credential, model, prompt string, cfg GenerationConfig) (string, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:     cfg.Temperature,
			MaxOutputTokens: cfg.MaxOutputTokens,
			TopP:            cfg.TopP,
			TopK:            cfg.TopK,
		},
	})
	if err != nil {
		return "", eris.Wrap(err, "gemini: marshal request")
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, model, credential)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", eris.Wrap(err, "gemini: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "gemini: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "gemini: read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &APIError{StatusCode: resp.StatusCode, Body: truncate(string(respBody), 512)}
	}

	var result generateResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", &ContentError{Reason: ReasonMalformed}
	}

	if len(result.Candidates) == 0 {
		return "", &ContentError{Reason: ReasonMalformed}
	}
	cand := result.Candidates[0]
	if cand.FinishReason == "SAFETY" {
		return "", &ContentError{Reason: ReasonSafetyBlocked}
	}
	if cand.Content == nil || len(cand.Content.Parts) == 0 || cand.Content.Parts[0].Text == "" {
		return "", &ContentError{Reason: ReasonMalformed}
	}

	return cand.Content.Parts[0].Text, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
