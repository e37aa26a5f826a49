package llm

import (
	"errors"
	"testing"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		msg  string
		want Kind
	}{
		{"context deadline exceeded", TimeoutError},
		{"429 too many requests", RateLimitError},
		{"invalid api key provided", AuthError},
		{"401 unauthorized", AuthError},
		{"invalid_request: missing field", BadRequestError},
		{"connection refused", ConnectionError},
		{"no such host", ConnectionError},
		{"something novel", InternalError},
	}
	for _, tc := range cases {
		if got := Classify(errors.New(tc.msg)); got != tc.want {
			t.Errorf("Classify(%q) = %v, want %v", tc.msg, got, tc.want)
		}
	}
}

func TestKindRetryable(t *testing.T) {
	retryable := []Kind{RateLimitError, TimeoutError, InternalError, ConnectionError}
	for _, k := range retryable {
		if !k.Retryable() {
			t.Errorf("%v.Retryable() = false, want true", k)
		}
	}
	permanent := []Kind{AuthError, BadRequestError}
	for _, k := range permanent {
		if k.Retryable() {
			t.Errorf("%v.Retryable() = true, want false", k)
		}
	}
}

func TestWithStatusReclassifies(t *testing.T) {
	err := NewProviderError("anthropic", "m", errors.New("opaque"))
	if err.WithStatus(429).Kind != RateLimitError {
		t.Fatal("expected status 429 to reclassify as rate limit")
	}
	if err.WithStatus(401).Kind != AuthError {
		t.Fatal("expected status 401 to reclassify as auth")
	}
	if err.WithStatus(503).Kind != InternalError {
		t.Fatal("expected status 503 to reclassify as internal")
	}
}

func TestProviderErrorUnwrap(t *testing.T) {
	cause := errors.New("underlying")
	err := NewProviderError("openai", "m", cause)
	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to see through ProviderError")
	}
}
