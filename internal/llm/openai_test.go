package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

func newCompletionServer(t *testing.T, status int, body string, captured *capturedRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		if captured != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewOpenAIClientRequiresKey(t *testing.T) {
	_, err := NewOpenAIClient("")
	require.Error(t, err)
}

func TestOpenAIComplete(t *testing.T) {
	var got capturedRequest
	srv := newCompletionServer(t, http.StatusOK, `{
		"id": "chatcmpl-1",
		"model": "gpt-4-0613",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": "  Fine, thanks!  "}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 12, "completion_tokens": 4, "total_tokens": 16}
	}`, &got)

	client, err := NewOpenAIClient("sk-test", WithBaseURL(srv.URL+"/"))
	require.NoError(t, err)

	resp, err := client.Complete(context.Background(), &CompletionRequest{
		Model: "gpt-4",
		Messages: []ChatMessage{
			{Role: RoleSystem, Content: "You are a character engaging in a conversation."},
			{Role: RoleUser, Content: "Hello, how are you?"},
		},
		MaxTokens:   150,
		Temperature: 0.7,
	})
	require.NoError(t, err)

	assert.Equal(t, "  Fine, thanks!  ", resp.Content)
	assert.Equal(t, "gpt-4-0613", resp.Model)
	assert.Equal(t, 12, resp.TokensIn)
	assert.Equal(t, 4, resp.TokensOut)
	assert.Equal(t, "stop", resp.StopReason)

	assert.Equal(t, "gpt-4", got.Model)
	assert.Equal(t, 150, got.MaxTokens)
	assert.InDelta(t, 0.7, got.Temperature, 1e-6)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, RoleSystem, got.Messages[0].Role)
	assert.Equal(t, "Hello, how are you?", got.Messages[1].Content)
}

func TestOpenAICompleteNoChoices(t *testing.T) {
	srv := newCompletionServer(t, http.StatusOK, `{"id":"x","model":"gpt-4","choices":[]}`, nil)

	client, err := NewOpenAIClient("sk-test", WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), &CompletionRequest{
		Messages: []ChatMessage{{Role: RoleUser, Content: "hi"}},
	})
	require.Error(t, err)
}

func TestOpenAICompleteUpstreamError(t *testing.T) {
	srv := newCompletionServer(t, http.StatusInternalServerError,
		`{"error":{"message":"boom","type":"server_error"}}`, nil)

	client, err := NewOpenAIClient("sk-test", WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), &CompletionRequest{
		Messages: []ChatMessage{{Role: RoleUser, Content: "hi"}},
	})
	require.Error(t, err)
}

func TestNewClientProviders(t *testing.T) {
	c, err := NewClient(ProviderOpenAI, Options{APIKey: "sk"})
	require.NoError(t, err)
	assert.Equal(t, "openai", c.Name())

	c, err = NewClient(ProviderAnthropic, Options{APIKey: "sk-ant"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", c.Name())

	_, err = NewClient("mistral", Options{APIKey: "k"})
	require.Error(t, err)
}

func TestSplitSystem(t *testing.T) {
	system, rest := splitSystem([]ChatMessage{
		{Role: RoleSystem, Content: "a"},
		{Role: RoleUser, Content: "hi"},
		{Role: RoleSystem, Content: "b"},
	})
	assert.Equal(t, "a\nb", system)
	assert.Equal(t, []ChatMessage{{Role: RoleUser, Content: "hi"}}, rest)
}
