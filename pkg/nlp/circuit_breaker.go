package nlp

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/soundprediction/chronotope/pkg/alert"
	"github.com/soundprediction/chronotope/pkg/config"
	"github.com/soundprediction/chronotope/pkg/types"
)

// CircuitBreakerClient stops issuing LLM calls once too many in a row fail,
// so a degraded provider cannot stall every ingestion worker at once. An
// alert goes out when the breaker opens.
type CircuitBreakerClient struct {
	client Client
	cb     *gobreaker.CircuitBreaker
}

// NewCircuitBreakerClient wraps client with a circuit breaker named name.
func NewCircuitBreakerClient(client Client, cfg config.CircuitBreakerConfig, alerter alert.Alerter, name string) *CircuitBreakerClient {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    time.Duration(cfg.Interval) * time.Second,
		Timeout:     time.Duration(cfg.Timeout) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && ratio >= cfg.ReadyToTripRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to != gobreaker.StateOpen || alerter == nil {
				return
			}
			_ = alerter.Alert(
				fmt.Sprintf("LLM circuit breaker open: %s", name),
				fmt.Sprintf("Circuit breaker %q moved from %s to %s after repeated call failures. "+
					"LLM-backed ingestion is suspended until the cooldown expires.", name, from, to),
			)
		},
	}

	return &CircuitBreakerClient{
		client: client,
		cb:     gobreaker.NewCircuitBreaker(settings),
	}
}

func (c *CircuitBreakerClient) run(call func() (*types.Response, error)) (*types.Response, error) {
	resp, err := c.cb.Execute(func() (interface{}, error) {
		return call()
	})
	if err != nil {
		return nil, err
	}
	return resp.(*types.Response), nil
}

// Chat implements Client.
func (c *CircuitBreakerClient) Chat(ctx context.Context, model string, messages []types.Message) (*types.Response, error) {
	return c.run(func() (*types.Response, error) {
		return c.client.Chat(ctx, model, messages)
	})
}

// ChatWithStructuredOutput implements Client.
func (c *CircuitBreakerClient) ChatWithStructuredOutput(ctx context.Context, model string, messages []types.Message, schema *ResponseSchema) (*types.Response, error) {
	return c.run(func() (*types.Response, error) {
		return c.client.ChatWithStructuredOutput(ctx, model, messages, schema)
	})
}

// ChatWithTools implements Client.
func (c *CircuitBreakerClient) ChatWithTools(ctx context.Context, model string, messages []types.Message, tools []Tool) (*types.Response, error) {
	return c.run(func() (*types.Response, error) {
		return c.client.ChatWithTools(ctx, model, messages, tools)
	})
}

// Close implements Client.
func (c *CircuitBreakerClient) Close() error {
	return c.client.Close()
}
