package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"AssistChat/internal/config"
)

// OllamaOptions are the model parameters sent with a generate request
type OllamaOptions struct {
	NumPredict int      `json:"num_predict,omitempty"`
	Stop       []string `json:"stop,omitempty"`
}

// OllamaGenerateRequest represents the request body for /api/generate
type OllamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Raw     bool           `json:"raw,omitempty"`
	Options *OllamaOptions `json:"options,omitempty"`
}

// OllamaGenerateResponse represents the response from /api/generate
type OllamaGenerateResponse struct {
	Model           string `json:"model"`
	CreatedAt       string `json:"created_at"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	DoneReason      string `json:"done_reason"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	Error           string `json:"error,omitempty"`
}

// OllamaTagsResponse represents the response from Ollama /api/tags endpoint
type OllamaTagsResponse struct {
	Models []OllamaModel `json:"models"`
}

// OllamaModel represents a single model in the Ollama tags response
type OllamaModel struct {
	Name       string `json:"name"`
	ModifiedAt string `json:"modified_at"`
	Size       int64  `json:"size"`
	Digest     string `json:"digest"`
}

// OllamaGenerator completes raw prompts with a local Ollama server
type OllamaGenerator struct {
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// Generate calls /api/generate without streaming. The prompt is sent raw
// because it already carries its own role markers.
func (g *OllamaGenerator) Generate(ctx context.Context, req Request) (string, error) {
	body := OllamaGenerateRequest{
		Model:  g.Model,
		Prompt: req.Prompt,
		Stream: false,
		Raw:    true,
		Options: &OllamaOptions{
			NumPredict: req.MaxTokens,
			Stop:       req.Stop,
		},
	}

	var apiResp OllamaGenerateResponse
	if err := postJSON(ctx, g.HTTPClient, config.BackendOllama, g.BaseURL+"/api/generate", nil, body, &apiResp); err != nil {
		return "", err
	}

	if apiResp.Error != "" {
		return "", &GenerationError{Kind: KindModel, Backend: config.BackendOllama, Err: fmt.Errorf("ollama: %s", apiResp.Error)}
	}
	if !apiResp.Done {
		return "", &GenerationError{Kind: KindMalformed, Backend: config.BackendOllama, Detail: "incomplete response"}
	}

	return apiResp.Response, nil
}

// ListOllamaModels fetches the models installed on an Ollama server
func ListOllamaModels(ctx context.Context, client *http.Client, baseURL string) ([]OllamaModel, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request (is Ollama running?): %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error: %s - %s", resp.Status, truncate(string(body), 512))
	}

	var tagsResp OllamaTagsResponse
	if err := json.Unmarshal(body, &tagsResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return tagsResp.Models, nil
}
