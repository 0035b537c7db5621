package llms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benekli/minerva/pkg/config"
)

func testProviderConfig(t *testing.T, kind config.ProviderKind, host string) *config.LLMProviderConfig {
	t.Helper()
	cfg := &config.LLMProviderConfig{
		Type:   kind,
		APIKey: "test-key",
		Host:   host,
	}
	cfg.SetDefaults()
	cfg.Host = host // SetDefaults only fills an empty host
	cfg.Timeout = config.Duration(5 * time.Second)
	cfg.MaxRetries = 1
	return cfg
}

func TestOpenAIComplete(t *testing.T) {
	var captured openAIRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "hello back"}},
			},
			"usage": map[string]any{"prompt_tokens": 7, "completion_tokens": 3},
		})
	}))
	defer server.Close()

	provider, err := NewOpenAIProvider(testProviderConfig(t, config.ProviderOpenAI, server.URL))
	require.NoError(t, err)

	text, usage, err := provider.Complete(context.Background(),
		[]Message{System("be brief"), User("hello")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello back", text)
	assert.Equal(t, 7, usage.InputTokens)
	assert.Equal(t, 3, usage.OutputTokens)

	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, "user", captured.Messages[1].Role)
}

func TestOpenAICompleteJSONFormat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotNil(t, req.ResponseFormat)
		assert.Equal(t, "json_object", req.ResponseFormat.Type)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": `{"ok":true}`}},
			},
		})
	}))
	defer server.Close()

	provider, err := NewOpenAIProvider(testProviderConfig(t, config.ProviderOpenAI, server.URL))
	require.NoError(t, err)

	text, _, err := provider.Complete(context.Background(),
		[]Message{User("give me json")}, &Options{ResponseFormat: "json"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, text)
}

func TestOpenAICompleteAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "invalid key", "type": "auth_error"},
		})
	}))
	defer server.Close()

	provider, err := NewOpenAIProvider(testProviderConfig(t, config.ProviderOpenAI, server.URL))
	require.NoError(t, err)

	_, _, err = provider.Complete(context.Background(), []Message{User("hi")}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid key")
}

func TestOpenAIRequiresAPIKey(t *testing.T) {
	cfg := &config.LLMProviderConfig{Type: config.ProviderOpenAI, Host: "https://api.example.com/v1"}
	cfg.SetDefaults()
	cfg.APIKey = ""

	_, err := NewOpenAIProvider(cfg)
	assert.Error(t, err)
}

func TestAnthropicComplete(t *testing.T) {
	var captured anthropicRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/messages", r.URL.Path)
		require.Equal(t, "test-key", r.Header.Get("x-api-key"))
		require.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{{"type": "text", "text": "claude says hi"}},
			"usage":   map[string]any{"input_tokens": 5, "output_tokens": 4},
		})
	}))
	defer server.Close()

	provider, err := NewAnthropicProvider(testProviderConfig(t, config.ProviderAnthropic, server.URL))
	require.NoError(t, err)

	text, usage, err := provider.Complete(context.Background(),
		[]Message{System("short answers"), User("hi")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "claude says hi", text)
	assert.Equal(t, 5, usage.InputTokens)

	// System messages hoist into the top-level field, not the message list.
	assert.Equal(t, "short answers", captured.System)
	require.Len(t, captured.Messages, 1)
	assert.Equal(t, "user", captured.Messages[0].Role)
}

func TestGeminiComplete(t *testing.T) {
	var captured geminiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, ":generateContent")
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"role": "model", "parts": []map[string]any{{"text": "gemini says hi"}}}},
			},
			"usageMetadata": map[string]any{"promptTokenCount": 6, "candidatesTokenCount": 2},
		})
	}))
	defer server.Close()

	provider, err := NewGeminiProvider(testProviderConfig(t, config.ProviderGemini, server.URL))
	require.NoError(t, err)

	text, usage, err := provider.Complete(context.Background(),
		[]Message{System("sys"), User("hi"), Assistant("prev"), User("again")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "gemini says hi", text)
	assert.Equal(t, 6, usage.InputTokens)

	require.NotNil(t, captured.SystemInstruction)
	require.Len(t, captured.Contents, 3)
	assert.Equal(t, "user", captured.Contents[0].Role)
	assert.Equal(t, "model", captured.Contents[1].Role)
}

func TestOllamaComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		var req ollamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"message":           map[string]any{"role": "assistant", "content": "local hi"},
			"done":              true,
			"prompt_eval_count": 4,
			"eval_count":        2,
		})
	}))
	defer server.Close()

	provider, err := NewOllamaProvider(testProviderConfig(t, config.ProviderOllama, server.URL))
	require.NoError(t, err)

	text, usage, err := provider.Complete(context.Background(), []Message{User("hi")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "local hi", text)
	assert.Equal(t, 4, usage.InputTokens)
	assert.Equal(t, 2, usage.OutputTokens)
}

func TestOllamaAvailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tags", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	provider, err := NewOllamaProvider(testProviderConfig(t, config.ProviderOllama, server.URL))
	require.NoError(t, err)
	assert.True(t, provider.Available(context.Background()))

	server.Close()
	assert.False(t, provider.Available(context.Background()))
}
