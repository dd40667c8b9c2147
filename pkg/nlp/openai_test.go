package nlp

import (
	"testing"
	"time"
)

func TestNewOpenAIClientAppliesTimeout(t *testing.T) {
	c, err := NewOpenAIClient("key", Config{Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.httpClient.Timeout != 5*time.Second {
		t.Errorf("http client timeout = %v, want 5s", c.httpClient.Timeout)
	}
}

func TestNewOpenAIClientDefaultTimeout(t *testing.T) {
	c, err := NewOpenAIClient("key", Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.httpClient.Timeout != defaultRequestTimeout {
		t.Errorf("http client timeout = %v, want %v", c.httpClient.Timeout, defaultRequestTimeout)
	}
	if c.config.Model != "gpt-5-nano" {
		t.Errorf("model = %q, want gpt-5-nano", c.config.Model)
	}
}

func TestNewOpenAIClientBaseURL(t *testing.T) {
	if _, err := NewOpenAIClient("", Config{BaseURL: "ftp://example.com"}); err == nil {
		t.Fatal("expected error for non-http scheme")
	}
	if _, err := NewOpenAIClient("", Config{BaseURL: "http://localhost:11434"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
