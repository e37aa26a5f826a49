package llm

import (
	"fmt"
	"net/http"
	"strings"
)

// Kind is the closed taxonomy every provider normalises its errors to.
type Kind string

const (
	AuthError       Kind = "auth_error"
	ConnectionError Kind = "connection_error"
	RateLimitError  Kind = "rate_limit_error"
	TimeoutError    Kind = "timeout_error"
	BadRequestError Kind = "bad_request_error"
	InternalError   Kind = "internal_error"
)

// Retryable reports whether a ProviderError of this Kind is worth retrying
// with backoff. Auth, bad-request, and cancellation are not: retrying them
// wastes a call on an error that will recur identically.
func (k Kind) Retryable() bool {
	switch k {
	case RateLimitError, TimeoutError, InternalError, ConnectionError:
		return true
	default:
		return false
	}
}

// ProviderError is the single error shape every Provider implementation
// returns, collapsing provider-specific error codes into Kind.
type ProviderError struct {
	Kind     Kind
	Provider string
	Model    string
	Cause    error
}

func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (model=%s): %v", e.Provider, e.Kind, e.Model, e.Cause)
	}
	return fmt.Sprintf("%s: %s (model=%s)", e.Provider, e.Kind, e.Model)
}

func (e *ProviderError) Unwrap() error { return e.Cause }

// NewProviderError classifies cause and wraps it as a ProviderError.
func NewProviderError(provider, model string, cause error) *ProviderError {
	return &ProviderError{Kind: Classify(cause), Provider: provider, Model: model, Cause: cause}
}

// WithStatus reclassifies a ProviderError once an HTTP status is known,
// since provider SDKs often surface status codes after the fact.
func (e *ProviderError) WithStatus(status int) *ProviderError {
	e.Kind = classifyStatus(status)
	return e
}

// Classify inspects an arbitrary error's message for known substrings and
// returns the closest Kind. Providers call this for errors their SDK
// doesn't expose a structured status for (e.g. dial failures).
func Classify(err error) Kind {
	if err == nil {
		return InternalError
	}
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return TimeoutError
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "429"), strings.Contains(msg, "too many requests"):
		return RateLimitError
	case strings.Contains(msg, "unauthorized"), strings.Contains(msg, "invalid api key"), strings.Contains(msg, "401"), strings.Contains(msg, "403"):
		return AuthError
	case strings.Contains(msg, "invalid_request"), strings.Contains(msg, "bad request"), strings.Contains(msg, "400"):
		return BadRequestError
	case strings.Contains(msg, "connection"), strings.Contains(msg, "no such host"), strings.Contains(msg, "eof"):
		return ConnectionError
	default:
		return InternalError
	}
}

func classifyStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return AuthError
	case status == http.StatusTooManyRequests:
		return RateLimitError
	case status == http.StatusBadRequest:
		return BadRequestError
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		return TimeoutError
	case status >= 500:
		return InternalError
	default:
		return InternalError
	}
}
