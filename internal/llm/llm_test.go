package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"promptpilot/internal/credentials"
)

func TestOpenAIComplete(t *testing.T) {
	var gotAuth, gotOrg string
	var gotBody chatRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		gotOrg = r.Header.Get("OpenAI-Organization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "Hola mundo"}},
			},
			"usage": map[string]int{"prompt_tokens": 12, "completion_tokens": 3},
		})
	}))
	defer srv.Close()

	c := NewOpenAI(credentials.Bundle{APIKey: "sk-test", OrgID: "org-1", APIBase: srv.URL}, 5*time.Second)
	resp, err := c.Complete(context.Background(), Request{
		Model:       "gpt-4",
		Prompt:      "Translate to Spanish: Hello world",
		Temperature: 0.3,
		MaxTokens:   256,
	})

	require.NoError(t, err)
	assert.Equal(t, "Hola mundo", resp.Text)
	assert.Equal(t, 12, resp.InputTokens)
	assert.Equal(t, 3, resp.OutputTokens)
	assert.Greater(t, resp.Elapsed, time.Duration(0))

	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "org-1", gotOrg)
	assert.Equal(t, "gpt-4", gotBody.Model)
	assert.Equal(t, 256, gotBody.MaxTokens)
	require.Len(t, gotBody.Messages, 1)
	assert.Equal(t, "user", gotBody.Messages[0].Role)
}

func TestOpenAIAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"invalid api key"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewOpenAI(credentials.Bundle{APIKey: "sk-bad", APIBase: srv.URL}, 5*time.Second)
	_, err := c.Complete(context.Background(), Request{Model: "gpt-4", Prompt: "p", MaxTokens: 10})

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, KindAuth, reqErr.Kind)
	assert.Equal(t, credentials.ProviderOpenAI, reqErr.Provider)
}

func TestOpenAIRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewOpenAI(credentials.Bundle{APIKey: "sk-test", APIBase: srv.URL}, 5*time.Second)
	_, err := c.Complete(context.Background(), Request{Model: "gpt-4", Prompt: "p", MaxTokens: 10})

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, KindRateLimited, reqErr.Kind)
}

func TestOpenAITimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewOpenAI(credentials.Bundle{APIKey: "sk-test", APIBase: srv.URL}, 5*time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Complete(ctx, Request{Model: "gpt-4", Prompt: "p", MaxTokens: 10})

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, KindTimeout, reqErr.Kind)
}

func TestOpenAIMaxTokensClamped(t *testing.T) {
	var gotBody chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": "ok"}}},
		})
	}))
	defer srv.Close()

	c := NewOpenAI(credentials.Bundle{APIKey: "sk-test", APIBase: srv.URL}, 5*time.Second)
	_, err := c.Complete(context.Background(), Request{Model: "gpt-4", Prompt: "p", MaxTokens: 999999})

	require.NoError(t, err)
	assert.Equal(t, 4096, gotBody.MaxTokens)
}

func TestAnthropicComplete(t *testing.T) {
	var gotKey, gotVersion string
	var gotBody messagesRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/messages", r.URL.Path)
		gotKey = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("anthropic-version")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{{"type": "text", "text": "Hola mundo"}},
			"usage":   map[string]int{"input_tokens": 15, "output_tokens": 4},
		})
	}))
	defer srv.Close()

	c := NewAnthropic(credentials.Bundle{APIKey: "sk_ant_test", APIBase: srv.URL}, 5*time.Second)
	resp, err := c.Complete(context.Background(), Request{
		Model:       "claude-3-sonnet",
		Prompt:      "Translate to Spanish: Hello world",
		Temperature: 0.3,
		MaxTokens:   256,
	})

	require.NoError(t, err)
	assert.Equal(t, "Hola mundo", resp.Text)
	assert.Equal(t, 15, resp.InputTokens)
	assert.Equal(t, 4, resp.OutputTokens)

	assert.Equal(t, "sk_ant_test", gotKey)
	assert.Equal(t, anthropicVersion, gotVersion)
	assert.Equal(t, "claude-3-sonnet", gotBody.Model)
}

func TestAnthropicAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"type":"error"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewAnthropic(credentials.Bundle{APIKey: "sk_ant_bad", APIBase: srv.URL}, 5*time.Second)
	_, err := c.Complete(context.Background(), Request{Model: "claude-3-haiku", Prompt: "p", MaxTokens: 10})

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, KindAuth, reqErr.Kind)
}

func TestAzureComplete(t *testing.T) {
	var gotKey, gotPath, gotVersion string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("api-key")
		gotPath = r.URL.Path
		gotVersion = r.URL.Query().Get("api-version")

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": "Hola mundo"}}},
			"usage":   map[string]int{"prompt_tokens": 9, "completion_tokens": 2},
		})
	}))
	defer srv.Close()

	c := NewAzure(credentials.Bundle{
		APIKey:     "azure-key",
		Endpoint:   srv.URL,
		Deployment: "my-gpt4",
	}, 5*time.Second)
	resp, err := c.Complete(context.Background(), Request{Model: "gpt-4", Prompt: "p", MaxTokens: 128})

	require.NoError(t, err)
	assert.Equal(t, "Hola mundo", resp.Text)
	assert.Equal(t, "azure-key", gotKey)
	assert.Equal(t, "/openai/deployments/my-gpt4/chat/completions", gotPath)
	assert.Equal(t, DefaultAzureAPIVersion, gotVersion)
}

func TestNewFactory(t *testing.T) {
	for _, provider := range credentials.Providers() {
		c, err := New(provider, credentials.Bundle{APIKey: "k"}, time.Second)
		require.NoError(t, err, provider)
		assert.Equal(t, provider, c.Provider())
	}

	_, err := New("ollama", credentials.Bundle{}, time.Second)
	assert.Error(t, err)
}

func TestClassifyStatus(t *testing.T) {
	assert.Equal(t, KindAuth, classifyStatus(401))
	assert.Equal(t, KindAuth, classifyStatus(403))
	assert.Equal(t, KindRateLimited, classifyStatus(429))
	assert.Equal(t, KindServer, classifyStatus(500))
	assert.Equal(t, KindBadRequest, classifyStatus(400))
}
