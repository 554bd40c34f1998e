// Package ai generates user-facing copy through the Anthropic Messages API,
// with prompt-version resolution, tone validation, a single repair attempt,
// and static fallbacks so a broken dependency never blocks a suggestion.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	perrors "github.com/pace-labs/pace-engine/internal/errors"
)

const (
	anthropicAPIBase    = "https://api.anthropic.com/v1"
	anthropicAPIVersion = "2023-06-01"

	defaultModel     = "claude-sonnet-4-5-20250929"
	defaultMaxTokens = 1024
)

// Request is one completion call.
type Request struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

// Response is the model's reply.
type Response struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// Client abstracts the model backend so the generation pipeline can be
// tested without network access.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
	ModelID() string
}

// AnthropicClient implements Client against the Anthropic Messages API.
type AnthropicClient struct {
	apiKey string
	model  string
	client *http.Client
	logger zerolog.Logger
}

// AnthropicOption configures the client.
type AnthropicOption func(*AnthropicClient)

// WithModel overrides the default model.
func WithModel(model string) AnthropicOption {
	return func(c *AnthropicClient) { c.model = model }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) AnthropicOption {
	return func(c *AnthropicClient) { c.client = h }
}

// NewAnthropicClient constructs a client. The HTTP client carries no timeout
// of its own; per-call budgets come from the context.
func NewAnthropicClient(apiKey string, logger zerolog.Logger, opts ...AnthropicOption) *AnthropicClient {
	c := &AnthropicClient{
		apiKey: apiKey,
		model:  defaultModel,
		client: &http.Client{},
		logger: logger.With().Str("component", "anthropic").Logger(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ModelID returns the configured model identifier.
func (c *AnthropicClient) ModelID() string { return c.model }

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature,omitempty"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends one blocking completion request. HTTP 429/5xx and
// overloaded responses surface as retryable errors.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (*Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	body, err := json.Marshal(anthropicRequest{
		Model:       c.model,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		System:      req.System,
		Messages:    []anthropicMessage{{Role: "user", Content: req.User}},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		anthropicAPIBase+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic http: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var ar anthropicResponse
	if err := json.Unmarshal(raw, &ar); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || ar.Error != nil {
		apiErr := &perrors.APIError{Service: "anthropic", StatusCode: resp.StatusCode}
		if ar.Error != nil {
			apiErr.Message = ar.Error.Message
			switch ar.Error.Type {
			case "overloaded_error":
				apiErr.Err = perrors.ErrUnavailable
			case "rate_limit_error":
				apiErr.Err = perrors.ErrRateLimit
			}
		}
		return nil, apiErr
	}

	out := &Response{
		InputTokens:  ar.Usage.InputTokens,
		OutputTokens: ar.Usage.OutputTokens,
	}
	for _, block := range ar.Content {
		if block.Type == "text" {
			out.Text += block.Text
		}
	}
	if out.Text == "" {
		return nil, fmt.Errorf("no text content in model response")
	}

	c.logger.Debug().
		Str("model", c.model).
		Int("in_tokens", out.InputTokens).
		Int("out_tokens", out.OutputTokens).
		Msg("anthropic complete")
	return out, nil
}

var jsonBlockRe = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")

// ExtractJSON pulls a fenced ```json block out of model output, or returns
// the trimmed text when there is no fence.
func ExtractJSON(raw string) string {
	if m := jsonBlockRe.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(raw)
}

// completeJSON calls the client and unmarshals the reply into out.
func completeJSON(ctx context.Context, c Client, req Request, out any) error {
	resp, err := c.Complete(ctx, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(ExtractJSON(resp.Text)), out); err != nil {
		return fmt.Errorf("failed to parse model JSON output: %w", err)
	}
	return nil
}
