package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"AssistChat/internal/config"
)

var testRequest = Request{
	Prompt:    "User: hi\nAssistant:",
	MaxTokens: 200,
	Stop:      []string{"User:", "You:"},
}

func TestOllamaGenerator_Generate(t *testing.T) {
	var got OllamaGenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(OllamaGenerateResponse{Response: " hello there ", Done: true})
	}))
	defer srv.Close()

	g := &OllamaGenerator{BaseURL: srv.URL, Model: "llama3:latest", HTTPClient: srv.Client()}
	text, err := g.Generate(context.Background(), testRequest)

	require.NoError(t, err)
	assert.Equal(t, " hello there ", text)
	assert.Equal(t, "llama3:latest", got.Model)
	assert.Equal(t, testRequest.Prompt, got.Prompt)
	assert.False(t, got.Stream)
	assert.True(t, got.Raw)
	require.NotNil(t, got.Options)
	assert.Equal(t, 200, got.Options.NumPredict)
	assert.Equal(t, []string{"User:", "You:"}, got.Options.Stop)
}

func TestOllamaGenerator_ErrorField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(OllamaGenerateResponse{Error: "out of memory"})
	}))
	defer srv.Close()

	g := &OllamaGenerator{BaseURL: srv.URL, Model: "m", HTTPClient: srv.Client()}
	_, err := g.Generate(context.Background(), testRequest)

	require.Error(t, err)
	assert.Equal(t, KindModel, KindOf(err))
}

func TestOpenAIGenerator_Generate(t *testing.T) {
	var got OpenAICompletionRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/completions", r.URL.Path)
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"text":"We're open.","finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	g := &OpenAIGenerator{BaseURL: srv.URL, Model: "local-model", APIKey: "sk-test", HTTPClient: srv.Client()}
	text, err := g.Generate(context.Background(), testRequest)

	require.NoError(t, err)
	assert.Equal(t, "We're open.", text)
	assert.Equal(t, "Bearer sk-test", auth)
	assert.Equal(t, 200, got.MaxTokens)
	assert.Equal(t, []string{"User:", "You:"}, got.Stop)
}

func TestOpenAIGenerator_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	g := &OpenAIGenerator{BaseURL: srv.URL, HTTPClient: srv.Client()}
	_, err := g.Generate(context.Background(), testRequest)

	assert.Equal(t, KindMalformed, KindOf(err))
}

func TestAnthropicGenerator_Generate(t *testing.T) {
	var got AnthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("x-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"hi"}],"stop_reason":"stop_sequence"}`))
	}))
	defer srv.Close()

	g := &AnthropicGenerator{BaseURL: srv.URL, Model: "claude", APIKey: "key", HTTPClient: srv.Client()}
	text, err := g.Generate(context.Background(), testRequest)

	require.NoError(t, err)
	assert.Equal(t, "hi", text)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, testRequest.Prompt, got.Messages[0].Content)
	assert.Equal(t, []string{"User:", "You:"}, got.StopSequences)
}

func TestAnthropicGenerator_MissingKey(t *testing.T) {
	g := &AnthropicGenerator{BaseURL: "http://unused"}
	_, err := g.Generate(context.Background(), testRequest)

	assert.Equal(t, KindConfig, KindOf(err))
	assert.Contains(t, Describe(err), "ANTHROPIC_API_KEY")
}

func TestStatusErrors(t *testing.T) {
	tests := []struct {
		status int
		kind   Kind
	}{
		{http.StatusNotFound, KindModel},
		{http.StatusInternalServerError, KindModel},
		{http.StatusUnauthorized, KindConfig},
		{http.StatusServiceUnavailable, KindUnavailable},
		{http.StatusTooManyRequests, KindUnavailable},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "secret internal trace", tt.status)
			}))
			defer srv.Close()

			g := &OllamaGenerator{BaseURL: srv.URL, Model: "m", HTTPClient: srv.Client()}
			_, err := g.Generate(context.Background(), testRequest)

			require.Error(t, err)
			assert.Equal(t, tt.kind, KindOf(err))
			assert.NotContains(t, Describe(err), "secret internal trace")
		})
	}
}

func TestMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	g := &OllamaGenerator{BaseURL: srv.URL, Model: "m", HTTPClient: srv.Client()}
	_, err := g.Generate(context.Background(), testRequest)

	assert.Equal(t, KindMalformed, KindOf(err))
}

func TestUnreachableServer(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	g := &OllamaGenerator{BaseURL: url, Model: "m", HTTPClient: &http.Client{}}
	_, err := g.Generate(context.Background(), testRequest)

	assert.Equal(t, KindUnavailable, KindOf(err))
	assert.Contains(t, Describe(err), "could not be reached")
}

func TestClientTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	gen, err := New(Settings{Backend: config.BackendOllama, Model: "m", BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	_, err = gen.Generate(context.Background(), testRequest)
	assert.Equal(t, KindTimeout, KindOf(err))
}

func TestNew(t *testing.T) {
	for _, name := range []string{config.BackendOllama, config.BackendOpenAI, config.BackendAnthropic} {
		gen, err := New(Settings{Backend: name, Model: "m"})
		require.NoError(t, err, name)
		assert.NotNil(t, gen)
	}

	_, err := New(Settings{Backend: "grok"})
	assert.Error(t, err)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "", Describe(nil))
	assert.Equal(t, "the model failed to produce a response.", Describe(errors.New("boom")))
	assert.Equal(t, "the model took too long to respond.",
		Describe(&GenerationError{Kind: KindTimeout, Backend: "ollama"}))
	assert.Equal(t, "the model reported an error (model not found).",
		Describe(&GenerationError{Kind: KindModel, Detail: "model not found"}))
}

func TestListOllamaModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_, _ = w.Write([]byte(`{"models":[{"name":"llama3:latest","size":4661224676},{"name":"phi3:mini","size":2176178913}]}`))
	}))
	defer srv.Close()

	models, err := ListOllamaModels(context.Background(), srv.Client(), srv.URL)
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "llama3:latest", models[0].Name)
	assert.Equal(t, int64(2176178913), models[1].Size)
}

func TestInstrument_PassesThrough(t *testing.T) {
	wantErr := &GenerationError{Kind: KindModel}
	calls := 0
	next := GeneratorFunc(func(ctx context.Context, req Request) (string, error) {
		calls++
		if req.Prompt == "fail" {
			return "", wantErr
		}
		return "ok", nil
	})

	o := Instrument(next, "ollama", "m", tracenoop.NewTracerProvider().Tracer("test"), metricnoop.NewMeterProvider().Meter("test"))

	text, err := o.Generate(context.Background(), Request{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "ok", text)

	_, err = o.Generate(context.Background(), Request{Prompt: "fail"})
	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, 2, calls)
}
