// Package summarizer wraps the OpenAI-compatible chat completion API
// used for chapter summarization.
package summarizer

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"lectern/internal/config"
	"lectern/internal/services"
)

const (
	defaultTimeout        = 60 * time.Second
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryMaxDelay  = 10 * time.Second
)

// Client talks to an OpenAI-compatible chat completion endpoint.
type Client struct {
	api   *openai.Client
	model string

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithRetryMaxAttempts overrides the default retry count (defaults to 3).
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.retryMaxAttempts = attempts
		}
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retryBaseDelay = baseDelay
		c.retryMaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// NewClient constructs a summarizer client from configuration. A
// non-empty BaseURL redirects requests, which lets tests point the
// client at a local server.
func NewClient(cfg config.Summarizer, opts ...Option) *Client {
	apiCfg := openai.DefaultConfig(strings.TrimSpace(cfg.APIKey))
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		apiCfg.BaseURL = baseURL
	}
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	apiCfg.HTTPClient = &http.Client{Timeout: timeout}

	client := &Client{
		api:              openai.NewClientWithConfig(apiCfg),
		model:            strings.TrimSpace(cfg.Model),
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
		sleeper:          time.Sleep,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Complete sends one chat completion request and returns the model
// text. Transient failures (rate limits, server errors, timeouts) are
// retried with exponential backoff.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	}

	var lastErr error
	delay := c.retryBaseDelay
	for attempt := 0; attempt < c.retryMaxAttempts; attempt++ {
		resp, err := c.api.CreateChatCompletion(ctx, req)
		if err == nil {
			if len(resp.Choices) == 0 {
				return "", services.Wrap(services.ErrSummarization, "summarize", "chat completion",
					"response carried no choices", nil)
			}
			return strings.TrimSpace(resp.Choices[0].Message.Content), nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !isRetryable(err) || attempt == c.retryMaxAttempts-1 {
			break
		}
		c.sleeper(delay)
		if next := delay * 2; next <= c.retryMaxDelay {
			delay = next
		}
	}
	return "", services.Wrap(services.ErrSummarization, "summarize", "chat completion",
		"request failed", lastErr)
}

func isRetryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	// Transport-level failures are worth one more try.
	return true
}

// HealthCheck verifies the client is configured well enough to make
// requests. It performs no network call.
func HealthCheck(cfg config.Summarizer) error {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return services.Wrap(services.ErrConfiguration, "summarize", "health check",
			"summarizer api_key is not set", nil)
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return services.Wrap(services.ErrConfiguration, "summarize", "health check",
			"summarizer model is not set", nil)
	}
	return nil
}
