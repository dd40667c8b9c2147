// Package nlp wraps chat-completion language models behind a small client
// interface with retry, circuit breaking and JSON-schema structured output.
package nlp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/soundprediction/chronotope/pkg/types"
)

const (
	// DefaultSmallModel handles classification, extraction and query tooling.
	DefaultSmallModel = "gpt-5-nano"
	// DefaultMidModel handles canonicalisation and causal inference.
	DefaultMidModel = "gpt-5-mini"
)

// Chat message roles.
const (
	RoleSystem    types.Role = "system"
	RoleUser      types.Role = "user"
	RoleAssistant types.Role = "assistant"
)

// ResponseSchema constrains a completion to a named JSON schema.
type ResponseSchema struct {
	Name   string
	Schema json.RawMessage
}

// Tool describes a callable function exposed to the model.
type Tool struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// Client defines the interface for language model operations. The model is a
// parameter of every call; an empty model selects the client's default.
type Client interface {
	// Chat runs a plain chat completion.
	Chat(ctx context.Context, model string, messages []types.Message) (*types.Response, error)

	// ChatWithStructuredOutput runs a completion constrained to the given
	// JSON schema.
	ChatWithStructuredOutput(ctx context.Context, model string, messages []types.Message, schema *ResponseSchema) (*types.Response, error)

	// ChatWithTools runs a completion offering the given tools; the
	// response may carry tool calls instead of content.
	ChatWithTools(ctx context.Context, model string, messages []types.Message, tools []Tool) (*types.Response, error)

	// Close releases any resources held by the client.
	Close() error
}

// Config holds per-client model settings. BaseURL points the client at an
// OpenAI-compatible service when set.
type Config struct {
	Model       string   `json:"model"`
	Temperature *float32 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	BaseURL     string   `json:"base_url,omitempty"`

	// Timeout bounds each completion request end to end; zero falls back to
	// the provider default.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// NewMessage builds a message with the given role.
func NewMessage(role types.Role, content string) types.Message {
	return types.Message{Role: role, Content: content}
}

// NewSystemMessage builds a system message.
func NewSystemMessage(content string) types.Message {
	return NewMessage(RoleSystem, content)
}

// NewUserMessage builds a user message.
func NewUserMessage(content string) types.Message {
	return NewMessage(RoleUser, content)
}

// NewAssistantMessage builds an assistant message.
func NewAssistantMessage(content string) types.Message {
	return NewMessage(RoleAssistant, content)
}
