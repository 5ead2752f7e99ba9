package openrouter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"recipe-recommender/internal/core/ai/provider"
	"recipe-recommender/internal/infrastructure/resilience"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSendsChatCompletion(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Title"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"gen-1","model":"openai/gpt-4o-mini","choices":[{"message":{"role":"assistant","content":"[]"}}],"usage":{"prompt_tokens":10,"completion_tokens":2,"total_tokens":12}}`))
	}))
	defer srv.Close()

	c := NewClient(provider.Config{BaseURL: srv.URL, APIKey: "sk-test", MaxTokens: 256}, resilience.DefaultBreakerConfig())
	resp, err := c.Generate(context.Background(), &provider.Request{
		Messages: []provider.Message{
			{Role: provider.RoleSystem, Content: "sys"},
			{Role: provider.RoleUser, Content: "hi"},
		},
		Temperature: 0.3,
	})
	require.NoError(t, err)

	assert.Equal(t, "[]", resp.Content)
	assert.Equal(t, 12, resp.Usage.TotalTokens)
	assert.Equal(t, DefaultModel, got.Model)
	assert.Equal(t, 256, got.MaxTokens)
	assert.InDelta(t, 0.3, got.Temperature, 1e-9)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, provider.RoleSystem, got.Messages[0].Role)
}

func TestGenerateReportsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid key","type":"auth"}}`))
	}))
	defer srv.Close()

	c := NewClient(provider.Config{BaseURL: srv.URL, APIKey: "bad"}, resilience.DefaultBreakerConfig())
	_, err := c.Generate(context.Background(), &provider.Request{Messages: []provider.Message{{Role: "user", Content: "x"}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid key")
}

func TestGenerateEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := NewClient(provider.Config{BaseURL: srv.URL, APIKey: "k"}, resilience.DefaultBreakerConfig())
	_, err := c.Generate(context.Background(), &provider.Request{})
	assert.ErrorIs(t, err, provider.ErrEmptyResponse)
}

func TestGenerateRequiresAPIKey(t *testing.T) {
	c := NewClient(provider.Config{}, resilience.DefaultBreakerConfig())
	_, err := c.Generate(context.Background(), &provider.Request{})
	assert.ErrorIs(t, err, provider.ErrMissingAPIKey)
	assert.Equal(t, DefaultModel, c.GetModel())
}
