package backend

import (
	"context"
	"net/http"

	"AssistChat/internal/config"
)

// OpenAICompletionRequest represents the request body for /v1/completions on
// OpenAI-compatible servers (llama.cpp, llama-cpp-python, vLLM)
type OpenAICompletionRequest struct {
	Model     string   `json:"model"`
	Prompt    string   `json:"prompt"`
	MaxTokens int      `json:"max_tokens"`
	Stop      []string `json:"stop,omitempty"`
}

// OpenAICompletionResponse represents the response from /v1/completions
type OpenAICompletionResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int    `json:"index"`
		Text         string `json:"text"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage map[string]interface{} `json:"usage"`
}

// OpenAIGenerator completes prompts with an OpenAI-compatible server
type OpenAIGenerator struct {
	BaseURL    string
	Model      string
	APIKey     string // optional for local servers
	HTTPClient *http.Client
}

// Generate calls /v1/completions
func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (string, error) {
	body := OpenAICompletionRequest{
		Model:     g.Model,
		Prompt:    req.Prompt,
		MaxTokens: req.MaxTokens,
		Stop:      req.Stop,
	}

	var headers map[string]string
	if g.APIKey != "" {
		headers = map[string]string{"Authorization": "Bearer " + g.APIKey}
	}

	var apiResp OpenAICompletionResponse
	if err := postJSON(ctx, g.HTTPClient, config.BackendOpenAI, g.BaseURL+"/v1/completions", headers, body, &apiResp); err != nil {
		return "", err
	}

	if len(apiResp.Choices) == 0 {
		return "", &GenerationError{Kind: KindMalformed, Backend: config.BackendOpenAI, Detail: "no choices in response"}
	}
	return apiResp.Choices[0].Text, nil
}
