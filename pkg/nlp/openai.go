package nlp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/soundprediction/chronotope/pkg/types"
)

// defaultRequestTimeout bounds a completion request when the configuration
// carries no timeout of its own.
const defaultRequestTimeout = 60 * time.Second

// OpenAIClient talks to OpenAI or any OpenAI-compatible endpoint.
type OpenAIClient struct {
	client     *openai.Client
	httpClient *http.Client
	config     Config
}

// NewOpenAIClient creates a new OpenAI client. Supports OpenAI-compatible
// services through custom BaseURL configuration.
func NewOpenAIClient(apiKey string, config Config) (*OpenAIClient, error) {
	if config.Timeout <= 0 {
		config.Timeout = defaultRequestTimeout
	}
	if config.Model == "" {
		config.Model = "gpt-5-nano"
	}

	httpClient := &http.Client{Timeout: config.Timeout}

	if config.BaseURL != "" {
		if err := validateBaseURL(config.BaseURL); err != nil {
			return nil, fmt.Errorf("invalid base URL: %w", err)
		}
		if apiKey == "" {
			apiKey = "dummy-key"
		}
	}

	clientConfig := openai.DefaultConfig(apiKey)
	clientConfig.HTTPClient = httpClient
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
		if !hasAPIPath(config.BaseURL) {
			clientConfig.BaseURL = config.BaseURL + "/v1"
		}
	}

	return &OpenAIClient{
		client:     openai.NewClientWithConfig(clientConfig),
		httpClient: httpClient,
		config:     config,
	}, nil
}

// Chat sends a chat completion request.
func (c *OpenAIClient) Chat(ctx context.Context, model string, messages []types.Message) (*types.Response, error) {
	req := c.buildChatRequest(model, messages)

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, wrapOpenAIError(err)
	}
	return c.parseResponse(resp)
}

// ChatWithStructuredOutput sends a chat completion request constrained to a
// JSON schema.
func (c *OpenAIClient) ChatWithStructuredOutput(ctx context.Context, model string, messages []types.Message, schema *ResponseSchema) (*types.Response, error) {
	req := c.buildChatRequest(model, messages)
	if schema != nil {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   schema.Name,
				Schema: schema.Schema,
			},
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, wrapOpenAIError(err)
	}
	return c.parseResponse(resp)
}

// ChatWithTools sends a chat completion request offering tools.
func (c *OpenAIClient) ChatWithTools(ctx context.Context, model string, messages []types.Message, tools []Tool) (*types.Response, error) {
	req := c.buildChatRequest(model, messages)
	req.Tools = make([]openai.Tool, len(tools))
	for i, tool := range tools {
		req.Tools[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  json.RawMessage(tool.Parameters),
			},
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, wrapOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &EmptyResponseError{Message: "no choices returned from openai"}
	}
	choice := resp.Choices[0]
	response := &types.Response{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Model:        resp.Model,
	}
	for _, tc := range choice.Message.ToolCalls {
		response.ToolCalls = append(response.ToolCalls, types.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	fillUsage(response, resp)
	return response, nil
}

// Close implements Client. The underlying HTTP client needs no teardown.
func (c *OpenAIClient) Close() error {
	return nil
}

func (c *OpenAIClient) buildChatRequest(model string, messages []types.Message) openai.ChatCompletionRequest {
	if model == "" {
		model = c.config.Model
	}
	openaiMessages := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		openaiMessages[i] = openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}

	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: openaiMessages,
	}
	if c.config.Temperature != nil {
		req.Temperature = *c.config.Temperature
	}
	if c.config.MaxTokens != nil {
		req.MaxTokens = *c.config.MaxTokens
	}
	return req
}

func (c *OpenAIClient) parseResponse(resp openai.ChatCompletionResponse) (*types.Response, error) {
	if len(resp.Choices) == 0 {
		return nil, &EmptyResponseError{Message: "no choices returned from openai"}
	}
	choice := resp.Choices[0]
	response := &types.Response{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Model:        resp.Model,
	}
	fillUsage(response, resp)
	return response, nil
}

func fillUsage(response *types.Response, resp openai.ChatCompletionResponse) {
	if resp.Usage.TotalTokens > 0 {
		response.TokensUsed = &types.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
}

func wrapOpenAIError(err error) error {
	var apiErr *openai.APIError
	if ok := asAPIError(err, &apiErr); ok && apiErr.HTTPStatusCode == 429 {
		return NewRateLimitError(apiErr.Message)
	}
	return fmt.Errorf("openai chat completion failed: %w", err)
}

func asAPIError(err error, target **openai.APIError) bool {
	for err != nil {
		if apiErr, ok := err.(*openai.APIError); ok {
			*target = apiErr
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}

func validateBaseURL(baseURL string) error {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("base URL must use http or https scheme, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}
	return nil
}

func hasAPIPath(baseURL string) bool {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return false
	}
	return strings.Contains(parsed.Path, "/v1")
}
