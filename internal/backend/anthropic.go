package backend

import (
	"context"
	"net/http"

	"AssistChat/internal/config"
)

// AnthropicRequest represents the request body for Anthropic API
type AnthropicRequest struct {
	Model         string             `json:"model"`
	MaxTokens     int                `json:"max_tokens"`
	Messages      []AnthropicMessage `json:"messages"`
	StopSequences []string           `json:"stop_sequences,omitempty"`
}

// AnthropicMessage represents a message in the conversation
type AnthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AnthropicContent is one block of a response
type AnthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// AnthropicResponse represents the response from Anthropic API
type AnthropicResponse struct {
	ID           string                 `json:"id"`
	Type         string                 `json:"type"`
	Role         string                 `json:"role"`
	Content      []AnthropicContent     `json:"content"`
	Model        string                 `json:"model"`
	StopReason   string                 `json:"stop_reason"`
	StopSequence string                 `json:"stop_sequence"`
	Usage        map[string]interface{} `json:"usage"`
}

// AnthropicGenerator sends the composed prompt as a single user message
type AnthropicGenerator struct {
	BaseURL    string
	Model      string
	APIKey     string
	HTTPClient *http.Client
}

// Generate calls /v1/messages
func (g *AnthropicGenerator) Generate(ctx context.Context, req Request) (string, error) {
	if g.APIKey == "" {
		return "", &GenerationError{Kind: KindConfig, Backend: config.BackendAnthropic, Detail: "ANTHROPIC_API_KEY not set"}
	}

	body := AnthropicRequest{
		Model:         g.Model,
		MaxTokens:     req.MaxTokens,
		Messages:      []AnthropicMessage{{Role: "user", Content: req.Prompt}},
		StopSequences: req.Stop,
	}
	headers := map[string]string{
		"x-api-key":         g.APIKey,
		"anthropic-version": "2023-06-01",
	}

	var apiResp AnthropicResponse
	if err := postJSON(ctx, g.HTTPClient, config.BackendAnthropic, g.BaseURL+"/v1/messages", headers, body, &apiResp); err != nil {
		return "", err
	}

	for _, content := range apiResp.Content {
		if content.Type == "text" {
			return content.Text, nil
		}
	}

	return "", &GenerationError{Kind: KindMalformed, Backend: config.BackendAnthropic, Detail: "empty response"}
}
