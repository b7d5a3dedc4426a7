package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/diagflow/diagflow/pkg/diagflow/retry"
)

// DefaultBaseURL targets an OpenAI-compatible endpoint. Any provider
// speaking the chat completions wire format works (OpenAI, Moonshot,
// OpenRouter, local gateways).
const DefaultBaseURL = "https://api.moonshot.cn/v1"

// OpenAIClient implements Client against the OpenAI chat completions API.
type OpenAIClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	retryCfg   retry.Config
	logger     *slog.Logger
}

// OpenAIOption configures OpenAIClient.
type OpenAIOption func(*OpenAIClient)

// WithBaseURL sets the API base URL. A trailing slash is trimmed.
func WithBaseURL(u string) OpenAIOption {
	return func(c *OpenAIClient) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithAPIKey sets the bearer token.
func WithAPIKey(key string) OpenAIOption {
	return func(c *OpenAIClient) { c.apiKey = key }
}

// WithModel sets the default model.
func WithModel(model string) OpenAIOption {
	return func(c *OpenAIClient) { c.model = model }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) OpenAIOption {
	return func(c *OpenAIClient) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRetry sets the retry policy for transient provider failures.
func WithRetry(cfg retry.Config) OpenAIOption {
	return func(c *OpenAIClient) { c.retryCfg = cfg }
}

// WithLogger sets the structured logger. Default: no logging.
func WithLogger(logger *slog.Logger) OpenAIOption {
	return func(c *OpenAIClient) { c.logger = logger }
}

// NewOpenAIClient creates an OpenAI-compatible chat client.
func NewOpenAIClient(opts ...OpenAIOption) *OpenAIClient {
	c := &OpenAIClient{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		retryCfg:   retry.Default,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Wire types for the chat completions endpoint.

type wireMessage struct {
	Role       string `json:"role"`
	Content    string `json:"content"`
	ToolCallID string `json:"tool_call_id,omitempty"`
}

type wireTool struct {
	Type     string       `json:"type"`
	Function wireFunction `json:"function"`
}

type wireFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type wireRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
	Tools       []wireTool    `json:"tools,omitempty"`
}

type wireToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type wireResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content   string         `json:"content"`
			ToolCalls []wireToolCall `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Complete implements Client.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	payload, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("encode completion request: %w", err)
	}

	resp, err := retry.Do(ctx, c.retryCfg, func(ctx context.Context) (*wireResponse, error) {
		return c.post(ctx, payload)
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("completion response has no choices")
	}
	choice := resp.Choices[0]

	out := &Response{
		Content:      choice.Message.Content,
		Model:        resp.Model,
		FinishReason: choice.FinishReason,
		Duration:     time.Since(start),
		Usage: TokenUsage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}

	if c.logger != nil {
		c.logger.Debug("completion finished",
			"model", out.Model,
			"finish_reason", out.FinishReason,
			"tool_calls", len(out.ToolCalls),
			"total_tokens", out.Usage.TotalTokens,
			"duration_ms", out.Duration.Milliseconds())
	}
	return out, nil
}

func (c *OpenAIClient) buildRequest(req Request) wireRequest {
	model := c.model
	if req.Model != "" {
		model = req.Model
	}

	wr := wireRequest{
		Model:       model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}

	if req.SystemPrompt != "" {
		wr.Messages = append(wr.Messages, wireMessage{Role: string(RoleSystem), Content: req.SystemPrompt})
	}
	for _, m := range req.Messages {
		wr.Messages = append(wr.Messages, wireMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		})
	}
	for _, t := range req.Tools {
		wr.Tools = append(wr.Tools, wireTool{
			Type: "function",
			Function: wireFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return wr
}

func (c *OpenAIClient) post(ctx context.Context, payload []byte) (*wireResponse, error) {
	endpoint := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("completion request: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read completion response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(body))
		var wr wireResponse
		if json.Unmarshal(body, &wr) == nil && wr.Error != nil {
			msg = wr.Error.Message
		}
		return nil, &retry.HTTPError{
			StatusCode: httpResp.StatusCode,
			Endpoint:   "/chat/completions",
			Message:    msg,
		}
	}

	var wr wireResponse
	if err := json.Unmarshal(body, &wr); err != nil {
		return nil, fmt.Errorf("decode completion response: %w", err)
	}
	return &wr, nil
}

var _ Client = (*OpenAIClient)(nil)
