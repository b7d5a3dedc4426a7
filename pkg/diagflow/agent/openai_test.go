package agent_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/diagflow/diagflow/pkg/diagflow/agent"
	"github.com/diagflow/diagflow/pkg/diagflow/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const completionResponse = `{
	"model": "kimi-k2-thinking",
	"choices": [{
		"message": {
			"content": "Here is your diagram.",
			"tool_calls": [{
				"id": "call_1",
				"type": "function",
				"function": {
					"name": "validate_and_render",
					"arguments": "{\"engine\":\"mermaid\",\"source\":\"graph TD\"}"
				}
			}]
		},
		"finish_reason": "tool_calls"
	}],
	"usage": {"prompt_tokens": 100, "completion_tokens": 50, "total_tokens": 150}
}`

func TestOpenAIClient_Complete(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(b, &gotBody))
		w.Write([]byte(completionResponse))
	}))
	defer srv.Close()

	c := agent.NewOpenAIClient(
		agent.WithBaseURL(srv.URL),
		agent.WithAPIKey("test-key"),
		agent.WithModel("kimi-k2-thinking"),
	)

	resp, err := c.Complete(context.Background(), agent.Request{
		SystemPrompt: "You draw diagrams.",
		Messages: []agent.Message{
			{Role: agent.RoleUser, Content: "draw a login flow"},
		},
		Tools: []agent.Tool{
			{Name: "validate_and_render", Description: "render", Parameters: json.RawMessage(`{"type":"object"}`)},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "/chat/completions", gotPath)
	assert.Equal(t, "kimi-k2-thinking", gotBody["model"])

	messages := gotBody["messages"].([]any)
	require.Len(t, messages, 2, "system prompt becomes the first message")
	first := messages[0].(map[string]any)
	assert.Equal(t, "system", first["role"])

	tools := gotBody["tools"].([]any)
	require.Len(t, tools, 1)
	tool := tools[0].(map[string]any)
	assert.Equal(t, "function", tool["type"])

	assert.Equal(t, "Here is your diagram.", resp.Content)
	assert.Equal(t, "tool_calls", resp.FinishReason)
	assert.Equal(t, 150, resp.Usage.TotalTokens)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "validate_and_render", resp.ToolCalls[0].Name)

	var args map[string]string
	require.NoError(t, json.Unmarshal(resp.ToolCalls[0].Arguments, &args))
	assert.Equal(t, "mermaid", args["engine"])
}

func TestOpenAIClient_RequestModelOverridesDefault(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		b, _ := io.ReadAll(r.Body)
		json.Unmarshal(b, &body)
		gotModel, _ = body["model"].(string)
		w.Write([]byte(completionResponse))
	}))
	defer srv.Close()

	c := agent.NewOpenAIClient(agent.WithBaseURL(srv.URL), agent.WithModel("default-model"))
	_, err := c.Complete(context.Background(), agent.Request{
		Model:    "override-model",
		Messages: []agent.Message{{Role: agent.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "override-model", gotModel)
}

func TestOpenAIClient_RetriesTransientErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(completionResponse))
	}))
	defer srv.Close()

	c := agent.NewOpenAIClient(
		agent.WithBaseURL(srv.URL),
		agent.WithRetry(retry.Config{MaxAttempts: 3, InitialBackoff: time.Millisecond}),
	)
	resp, err := c.Complete(context.Background(), agent.Request{
		Messages: []agent.Message{{Role: agent.RoleUser, Content: "hi"}},
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.NotEmpty(t, resp.Content)
}

func TestOpenAIClient_PermanentErrorNotRetried(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid api key","type":"auth_error"}}`))
	}))
	defer srv.Close()

	c := agent.NewOpenAIClient(
		agent.WithBaseURL(srv.URL),
		agent.WithRetry(retry.Config{MaxAttempts: 3, InitialBackoff: time.Millisecond}),
	)
	_, err := c.Complete(context.Background(), agent.Request{
		Messages: []agent.Message{{Role: agent.RoleUser, Content: "hi"}},
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)

	var httpErr *retry.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)
	assert.Equal(t, "invalid api key", httpErr.Message)
}

func TestOpenAIClient_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"model":"m","choices":[]}`))
	}))
	defer srv.Close()

	c := agent.NewOpenAIClient(agent.WithBaseURL(srv.URL))
	_, err := c.Complete(context.Background(), agent.Request{
		Messages: []agent.Message{{Role: agent.RoleUser, Content: "hi"}},
	})
	assert.Error(t, err)
}

func TestTokenUsage_Add(t *testing.T) {
	u := agent.TokenUsage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}
	u.Add(agent.TokenUsage{InputTokens: 20, OutputTokens: 10, TotalTokens: 30})

	assert.Equal(t, 30, u.InputTokens)
	assert.Equal(t, 15, u.OutputTokens)
	assert.Equal(t, 45, u.TotalTokens)
}
