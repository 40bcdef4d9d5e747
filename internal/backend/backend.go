package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"AssistChat/internal/config"
)

// Request is one generation call
type Request struct {
	Prompt    string
	MaxTokens int
	Stop      []string
}

// Generator produces text for a prompt. Implementations may block for as
// long as the model takes.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GeneratorFunc adapts a function to Generator
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

// Generate calls f
func (f GeneratorFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Settings configures a backend client
type Settings struct {
	Backend string
	Model   string
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// SettingsFromConfig builds Settings from application config
func SettingsFromConfig(cfg config.Config, apiKey string) Settings {
	return Settings{
		Backend: cfg.Backend,
		Model:   cfg.Model,
		BaseURL: cfg.BaseURL,
		APIKey:  apiKey,
		Timeout: cfg.RequestTimeout,
	}
}

// New creates the generator for s.Backend
func New(s Settings) (Generator, error) {
	if s.BaseURL == "" {
		s.BaseURL = config.DefaultBaseURL(s.Backend)
	}
	httpClient := &http.Client{Timeout: s.Timeout}

	switch s.Backend {
	case config.BackendOllama:
		return &OllamaGenerator{BaseURL: s.BaseURL, Model: s.Model, HTTPClient: httpClient}, nil
	case config.BackendOpenAI:
		return &OpenAIGenerator{BaseURL: s.BaseURL, Model: s.Model, APIKey: s.APIKey, HTTPClient: httpClient}, nil
	case config.BackendAnthropic:
		return &AnthropicGenerator{BaseURL: s.BaseURL, Model: s.Model, APIKey: s.APIKey, HTTPClient: httpClient}, nil
	default:
		return nil, fmt.Errorf("unknown backend: %s", s.Backend)
	}
}

// postJSON sends body as JSON and decodes a 200 response into out
func postJSON(ctx context.Context, client *http.Client, backend, url string, headers map[string]string, body, out any) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return &GenerationError{Kind: KindConfig, Backend: backend, Detail: "request could not be encoded", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return &GenerationError{Kind: KindConfig, Backend: backend, Detail: "invalid endpoint", Err: err}
	}
	req.Header.Set("content-type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return transportError(backend, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &GenerationError{Kind: KindMalformed, Backend: backend, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return statusError(backend, resp.StatusCode, resp.Status, respBody)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return &GenerationError{Kind: KindMalformed, Backend: backend, Err: fmt.Errorf("failed to unmarshal response: %w", err)}
	}
	return nil
}

func transportError(backend string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &GenerationError{Kind: KindTimeout, Backend: backend, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &GenerationError{Kind: KindCanceled, Backend: backend, Err: err}
	}
	return &GenerationError{Kind: KindUnavailable, Backend: backend, Err: fmt.Errorf("failed to send request: %w", err)}
}

func statusError(backend string, code int, status string, body []byte) error {
	kind := KindModel
	detail := status
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		kind = KindConfig
		detail = "the API key was rejected"
	case code == http.StatusNotFound:
		detail = "model not found"
	case code == http.StatusTooManyRequests || code == http.StatusServiceUnavailable:
		kind = KindUnavailable
	}

	// Keep the raw body in the wrapped error for logs only
	return &GenerationError{
		Kind:    kind,
		Backend: backend,
		Detail:  detail,
		Err:     fmt.Errorf("API error: %s - %s", status, truncate(string(body), 512)),
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
