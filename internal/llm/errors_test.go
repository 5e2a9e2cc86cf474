package llm

import (
	"errors"
	"testing"
)

func TestRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"no status (network failure)", &ProviderError{Message: "connection refused"}, true},
		{"rate limited", &ProviderError{Status: 429, Message: "rate limited"}, true},
		{"service unavailable", &ProviderError{Status: 503, Message: "overloaded"}, true},
		{"internal server error", &ProviderError{Status: 500, Message: "boom"}, true},
		{"bad gateway", &ProviderError{Status: 502, Message: "bad gateway"}, true},
		{"bad request", &ProviderError{Status: 400, Message: "bad request"}, false},
		{"unauthorized", &ProviderError{Status: 401, Message: "bad key"}, false},
		{"forbidden", &ProviderError{Status: 403, Message: "forbidden"}, false},
		{"not found", &ProviderError{Status: 404, Message: "no such model"}, false},
		{"content error", &ContentError{Message: "no array"}, false},
		{"unclassified error", errors.New("something else"), true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Retryable(tc.err); got != tc.expected {
				t.Errorf("Retryable(%v) = %v, want %v", tc.err, got, tc.expected)
			}
		})
	}
}

func TestRetryableWrappedProviderError(t *testing.T) {
	wrapped := errors.New("outer: " + (&ProviderError{Status: 429}).Error())
	// A plain wrapped string is unclassified and therefore retryable.
	if !Retryable(wrapped) {
		t.Error("expected plain error to be retryable")
	}

	var err error = &ProviderError{Status: 400, Message: "bad", Err: errors.New("inner")}
	if Retryable(err) {
		t.Error("expected 400 to be non-retryable")
	}
}
