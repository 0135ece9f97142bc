package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dallenpyrah/OpenCode/internal/config"
	"github.com/dallenpyrah/OpenCode/internal/httpkit"
)

// DefaultBaseURL is the OpenRouter chat-completion endpoint root.
const DefaultBaseURL = "https://openrouter.ai/api/v1"

// APIError reports a non-2xx response from the endpoint.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chat endpoint returned status %d: %s", e.StatusCode, e.Body)
}

// Options configures a Client.
type Options struct {
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string
	// APIKey is sent as a bearer token. Required.
	APIKey string
	// Referer and Title are forwarded as HTTP-Referer and X-Title for
	// app attribution on OpenRouter.
	Referer string
	Title   string
	// Timeout bounds non-streaming requests; zero means 120s. Streaming
	// requests are never bounded by a client timeout, only by ctx.
	Timeout time.Duration
	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Client talks to an OpenRouter-compatible chat-completion endpoint.
// Safe for concurrent use.
type Client struct {
	baseURL string
	apiKey  string
	referer string
	title   string
	http    *http.Client
	stream  *http.Client
	logger  *slog.Logger
}

// New builds a Client. Two underlying HTTP clients are kept: a bounded
// one for blocking completions and an unbounded one for streams, since a
// client timeout would sever a long-lived stream mid-response.
func New(opts Options) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL: baseURL,
		apiKey:  opts.APIKey,
		referer: opts.Referer,
		title:   opts.Title,
		http:    httpkit.NewClient(httpkit.WithTimeout(timeout)),
		stream:  httpkit.NewClient(httpkit.WithTimeout(0)),
		logger:  logger,
	}
}

// Complete sends a blocking chat-completion request and returns the full
// response.
func (c *Client) Complete(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	req.Stream = false
	resp, err := c.post(ctx, c.http, req)
	if err != nil {
		return nil, err
	}
	defer httpkit.DrainAndClose(resp.Body, 4096)

	var out ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding chat response: %w", err)
	}

	c.logger.Log(ctx, config.LevelTrace, "chat completion received",
		"id", out.ID, "model", out.Model, "choices", len(out.Choices))
	if out.Usage != nil {
		c.logger.Debug("token usage",
			"prompt", out.Usage.PromptTokens,
			"completion", out.Usage.CompletionTokens,
			"total", out.Usage.TotalTokens)
	}
	return &out, nil
}

// StreamCompletion sends a streaming chat-completion request and returns
// a decoder over the event stream. The caller must Close the stream.
func (c *Client) StreamCompletion(ctx context.Context, req ChatRequest) (*Stream, error) {
	req.Stream = true
	resp, err := c.post(ctx, c.stream, req)
	if err != nil {
		return nil, err
	}
	return NewStream(resp.Body), nil
}

func (c *Client) post(ctx context.Context, client *http.Client, req ChatRequest) (*http.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding chat request: %w", err)
	}

	c.logger.Log(ctx, config.LevelTrace, "chat request payload", "body", string(body))
	c.logger.Debug("sending chat request",
		"model", req.Model, "messages", len(req.Messages),
		"tools", len(req.Tools), "stream", req.Stream)

	url := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.referer != "" {
		httpReq.Header.Set("HTTP-Referer", c.referer)
	}
	if c.title != "" {
		httpReq.Header.Set("X-Title", c.title)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling chat endpoint: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Body:       httpkit.ReadErrorBody(resp.Body, 4096),
		}
		c.logger.Warn("chat endpoint error", "status", resp.StatusCode, "body", apiErr.Body)
		return nil, apiErr
	}
	return resp, nil
}
