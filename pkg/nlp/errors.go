package nlp

import "errors"

var (
	// ErrRateLimit marks a provider-side rate limit. Retryable.
	ErrRateLimit = errors.New("llm rate limit exceeded")

	// ErrEmptyResponse marks a reply with no usable content.
	ErrEmptyResponse = errors.New("llm returned an empty response")
)

// RateLimitError carries the provider's own rate limit message when one is
// available. errors.Is(err, &RateLimitError{}) matches any instance.
type RateLimitError struct {
	Message string
}

// NewRateLimitError wraps an optional provider message in a RateLimitError.
func NewRateLimitError(message ...string) *RateLimitError {
	e := &RateLimitError{}
	if len(message) > 0 {
		e.Message = message[0]
	}
	return e
}

func (e *RateLimitError) Error() string {
	if e.Message == "" {
		return ErrRateLimit.Error()
	}
	return e.Message
}

// Is matches any *RateLimitError regardless of message.
func (e *RateLimitError) Is(target error) bool {
	_, ok := target.(*RateLimitError)
	return ok
}

// EmptyResponseError distinguishes which call produced an empty reply.
type EmptyResponseError struct {
	Message string
}

func (e *EmptyResponseError) Error() string {
	if e.Message == "" {
		return ErrEmptyResponse.Error()
	}
	return e.Message
}

// Is matches any *EmptyResponseError regardless of message.
func (e *EmptyResponseError) Is(target error) bool {
	_, ok := target.(*EmptyResponseError)
	return ok
}
