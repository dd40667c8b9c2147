package nlp

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/soundprediction/chronotope/pkg/types"
)

// RetryConfig controls the exponential backoff applied to failed LLM calls.
type RetryConfig struct {
	// MaxRetries is how many times a failed call is reattempted.
	MaxRetries int
	// InitialDelay is the wait before the first retry.
	InitialDelay time.Duration
	// MaxDelay caps the backoff growth.
	MaxDelay time.Duration
	// BackoffMultiplier scales the delay between consecutive retries.
	BackoffMultiplier float64
}

// DefaultRetryConfig is 3 retries starting at one second, doubling up to a
// minute.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:        3,
		InitialDelay:      1 * time.Second,
		MaxDelay:          60 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

func (c *RetryConfig) normalized() *RetryConfig {
	out := *c
	if out.MaxRetries < 0 {
		out.MaxRetries = 3
	}
	if out.InitialDelay <= 0 {
		out.InitialDelay = 1 * time.Second
	}
	if out.MaxDelay <= 0 {
		out.MaxDelay = 60 * time.Second
	}
	if out.BackoffMultiplier <= 0 {
		out.BackoffMultiplier = 2.0
	}
	return &out
}

// RetryClient wraps a Client and reissues calls that fail with transient
// errors. Non-transient errors surface immediately.
type RetryClient struct {
	client Client
	config *RetryConfig
}

// NewRetryClient wraps client with retry behavior. A nil config selects
// DefaultRetryConfig.
func NewRetryClient(client Client, config *RetryConfig) *RetryClient {
	if config == nil {
		config = DefaultRetryConfig()
	}
	return &RetryClient{client: client, config: config.normalized()}
}

// Chat implements Client.
func (r *RetryClient) Chat(ctx context.Context, model string, messages []types.Message) (*types.Response, error) {
	return r.withRetry(ctx, func() (*types.Response, error) {
		return r.client.Chat(ctx, model, messages)
	})
}

// ChatWithStructuredOutput implements Client.
func (r *RetryClient) ChatWithStructuredOutput(ctx context.Context, model string, messages []types.Message, schema *ResponseSchema) (*types.Response, error) {
	return r.withRetry(ctx, func() (*types.Response, error) {
		return r.client.ChatWithStructuredOutput(ctx, model, messages, schema)
	})
}

// ChatWithTools implements Client.
func (r *RetryClient) ChatWithTools(ctx context.Context, model string, messages []types.Message, tools []Tool) (*types.Response, error) {
	return r.withRetry(ctx, func() (*types.Response, error) {
		return r.client.ChatWithTools(ctx, model, messages, tools)
	})
}

// Close implements Client.
func (r *RetryClient) Close() error {
	return r.client.Close()
}

func (r *RetryClient) withRetry(ctx context.Context, call func() (*types.Response, error)) (*types.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(r.backoffDelay(attempt)):
			case <-ctx.Done():
				return nil, fmt.Errorf("retry backoff interrupted: %w", ctx.Err())
			}
		}

		resp, err := call()
		if err == nil {
			return resp, nil
		}
		if !isRetryableError(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("llm call failed after %d retries: %w", r.config.MaxRetries, lastErr)
}

// backoffDelay is InitialDelay * BackoffMultiplier^(attempt-1), capped at
// MaxDelay.
func (r *RetryClient) backoffDelay(attempt int) time.Duration {
	delay := float64(r.config.InitialDelay) * math.Pow(r.config.BackoffMultiplier, float64(attempt-1))
	return time.Duration(math.Min(delay, float64(r.config.MaxDelay)))
}

// Message fragments that mark an error as transient. Provider SDK errors do
// not share a common type, so classification falls back to text.
var retryablePatterns = []string{
	"500", "internal server error",
	"502", "bad gateway",
	"503", "service unavailable",
	"504", "gateway timeout",
	"timeout",
	"connection reset",
	"connection refused",
	"temporary failure",
	"rate limit",
	"too many requests",
	"429",
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) || errors.Is(err, ErrRateLimit) {
		return true
	}

	type httpErrorWithStatusCode interface {
		HTTPStatusCode() int
	}
	if httpErr, ok := err.(httpErrorWithStatusCode); ok {
		code := httpErr.HTTPStatusCode()
		if code >= 500 || code == http.StatusTooManyRequests {
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range retryablePatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
