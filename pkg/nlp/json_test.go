package nlp

import (
	"errors"
	"testing"
)

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"plain json", `{"a": 1}`, `{"a": 1}`},
		{"fenced with tag", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"fenced without tag", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"surrounding whitespace", "  \n```json\n[1, 2]\n```\n  ", `[1, 2]`},
		{"no fence no change", "REGULAR: hello", "REGULAR: hello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripCodeFences(tt.content); got != tt.want {
				t.Errorf("StripCodeFences(%q) = %q, want %q", tt.content, got, tt.want)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Facts []string `json:"facts"`
	}

	t.Run("valid json", func(t *testing.T) {
		var p payload
		err := DecodeJSON(`{"facts": ["a", "b"]}`, &p)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(p.Facts) != 2 {
			t.Errorf("expected 2 facts, got %d", len(p.Facts))
		}
	})

	t.Run("fenced json", func(t *testing.T) {
		var p payload
		err := DecodeJSON("```json\n{\"facts\": [\"a\"]}\n```", &p)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(p.Facts) != 1 {
			t.Errorf("expected 1 fact, got %d", len(p.Facts))
		}
	})

	t.Run("repairs trailing comma", func(t *testing.T) {
		var p payload
		err := DecodeJSON(`{"facts": ["a", "b",]}`, &p)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(p.Facts) != 2 {
			t.Errorf("expected 2 facts, got %d", len(p.Facts))
		}
	})

	t.Run("empty response", func(t *testing.T) {
		var p payload
		err := DecodeJSON("", &p)
		if !errors.Is(err, ErrEmptyResponse) {
			t.Errorf("expected ErrEmptyResponse, got %v", err)
		}
	})
}
