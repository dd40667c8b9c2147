package nlp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/soundprediction/chronotope/pkg/types"
)

// flakyClient fails with the scripted errors in order, then succeeds.
type flakyClient struct {
	errs      []error
	calls     int
	lastModel string
}

func (f *flakyClient) step(model string) error {
	f.calls++
	f.lastModel = model
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

func (f *flakyClient) Chat(_ context.Context, model string, _ []types.Message) (*types.Response, error) {
	if err := f.step(model); err != nil {
		return nil, err
	}
	return &types.Response{Content: "ok"}, nil
}

func (f *flakyClient) ChatWithStructuredOutput(_ context.Context, model string, _ []types.Message, _ *ResponseSchema) (*types.Response, error) {
	if err := f.step(model); err != nil {
		return nil, err
	}
	return &types.Response{Content: `{"ok": true}`}, nil
}

func (f *flakyClient) ChatWithTools(_ context.Context, model string, _ []types.Message, _ []Tool) (*types.Response, error) {
	if err := f.step(model); err != nil {
		return nil, err
	}
	return &types.Response{ToolCalls: []types.ToolCall{{ID: "call_1", Name: "query_facts", Arguments: "{}"}}}, nil
}

func (f *flakyClient) Close() error { return nil }

func fastRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:        3,
		InitialDelay:      5 * time.Millisecond,
		MaxDelay:          50 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func repeat(err error, n int) []error {
	out := make([]error, n)
	for i := range out {
		out[i] = err
	}
	return out
}

func TestRetryPassesThroughOnSuccess(t *testing.T) {
	client := &flakyClient{}
	rc := NewRetryClient(client, fastRetryConfig())

	resp, err := rc.Chat(context.Background(), "gpt-5-nano", []types.Message{{Role: RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("content = %q, want ok", resp.Content)
	}
	if client.calls != 1 {
		t.Errorf("calls = %d, want 1", client.calls)
	}
	if client.lastModel != "gpt-5-nano" {
		t.Errorf("model = %q, want gpt-5-nano", client.lastModel)
	}
}

func TestRetryRecoversFromTransientErrors(t *testing.T) {
	client := &flakyClient{errs: repeat(errors.New("503 service unavailable"), 2)}
	rc := NewRetryClient(client, fastRetryConfig())

	start := time.Now()
	resp, err := rc.Chat(context.Background(), "", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("content = %q, want ok", resp.Content)
	}
	if client.calls != 3 {
		t.Errorf("calls = %d, want 3", client.calls)
	}
	// 5ms then 10ms of backoff must have elapsed
	if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
		t.Errorf("elapsed = %v, want >= 15ms of backoff", elapsed)
	}
}

func TestRetryGivesUpAfterBudget(t *testing.T) {
	cause := errors.New("502 bad gateway")
	client := &flakyClient{errs: repeat(cause, 10)}
	rc := NewRetryClient(client, fastRetryConfig())

	_, err := rc.Chat(context.Background(), "", nil)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if !errors.Is(err, cause) {
		t.Errorf("error %v does not wrap the original failure", err)
	}
	if client.calls != 4 {
		t.Errorf("calls = %d, want 4 (initial + 3 retries)", client.calls)
	}
}

func TestRetrySkipsPermanentErrors(t *testing.T) {
	client := &flakyClient{errs: repeat(errors.New("401 unauthorized"), 10)}
	rc := NewRetryClient(client, fastRetryConfig())

	if _, err := rc.Chat(context.Background(), "", nil); err == nil {
		t.Fatal("expected error")
	}
	if client.calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry on permanent error)", client.calls)
	}
}

func TestRetryHonorsRateLimitType(t *testing.T) {
	client := &flakyClient{errs: repeat(NewRateLimitError("slow down"), 2)}
	rc := NewRetryClient(client, fastRetryConfig())

	if _, err := rc.Chat(context.Background(), "", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.calls != 3 {
		t.Errorf("calls = %d, want 3", client.calls)
	}
}

func TestRetryStopsOnContextCancel(t *testing.T) {
	client := &flakyClient{errs: repeat(errors.New("500 internal server error"), 10)}
	rc := NewRetryClient(client, &RetryConfig{
		MaxRetries:        5,
		InitialDelay:      100 * time.Millisecond,
		MaxDelay:          time.Second,
		BackoffMultiplier: 2.0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if _, err := rc.Chat(ctx, "", nil); err == nil {
		t.Fatal("expected context cancellation error")
	}
	if client.calls > 2 {
		t.Errorf("calls = %d, want at most 2 before the deadline", client.calls)
	}
}

func TestRetryCoversToolCalls(t *testing.T) {
	client := &flakyClient{errs: repeat(errors.New("504 gateway timeout"), 1)}
	rc := NewRetryClient(client, fastRetryConfig())

	resp, err := rc.ChatWithTools(context.Background(), "", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Name != "query_facts" {
		t.Errorf("unexpected tool calls: %+v", resp.ToolCalls)
	}
	if client.calls != 2 {
		t.Errorf("calls = %d, want 2", client.calls)
	}
}

func TestBackoffDelayGrowthAndCap(t *testing.T) {
	rc := NewRetryClient(nil, &RetryConfig{
		MaxRetries:        5,
		InitialDelay:      100 * time.Millisecond,
		MaxDelay:          time.Second,
		BackoffMultiplier: 2.0,
	})

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		1000 * time.Millisecond, // capped
	}
	for i, expected := range want {
		if got := rc.backoffDelay(i + 1); got != expected {
			t.Errorf("backoffDelay(%d) = %v, want %v", i+1, got, expected)
		}
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()
	if cfg.MaxRetries != 3 || cfg.InitialDelay != time.Second || cfg.MaxDelay != 60*time.Second || cfg.BackoffMultiplier != 2.0 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

// statusErr exposes an HTTP status code the way provider SDK errors do.
type statusErr struct {
	code int
}

func (e statusErr) Error() string       { return "provider request failed" }
func (e statusErr) HTTPStatusCode() int { return e.code }

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limit type", NewRateLimitError(), true},
		{"rate limit sentinel", ErrRateLimit, true},
		{"500 text", errors.New("500 internal server error"), true},
		{"502 text", errors.New("502 bad gateway"), true},
		{"503 text", errors.New("503 service unavailable"), true},
		{"504 text", errors.New("504 gateway timeout"), true},
		{"timeout text", errors.New("connection timeout"), true},
		{"connection reset", errors.New("connection reset by peer"), true},
		{"rate limit text", errors.New("rate limit exceeded"), true},
		{"429 text", errors.New("429 too many requests"), true},
		{"bad request", errors.New("400 bad request"), false},
		{"unauthorized", errors.New("401 unauthorized"), false},
		{"forbidden", errors.New("403 forbidden"), false},
		{"not found", errors.New("404 not found"), false},
		{"status 500", statusErr{500}, true},
		{"status 503", statusErr{503}, true},
		{"status 429", statusErr{429}, true},
		{"status 400", statusErr{400}, false},
		{"status 404", statusErr{404}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryableError(tt.err); got != tt.want {
				t.Errorf("isRetryableError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
