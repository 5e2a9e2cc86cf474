package llm

import (
	"errors"
	"fmt"
)

// ProviderError is a transport or provider-level failure. Status holds the
// HTTP status code, or 0 when the failure never produced one (network
// errors, timeouts).
type ProviderError struct {
	Status  int
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("provider error (status %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("provider error: %s", e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ContentError marks a response that arrived but could not be parsed into a
// card array. A malformed response is assumed persistent, so it is never
// retried against the same model.
type ContentError struct {
	Message string
}

func (e *ContentError) Error() string {
	return fmt.Sprintf("content error: %s", e.Message)
}

// Retryable reports whether another attempt against the same model is worth
// making: failures without any status, 429, 503, and all 5xx are transient.
// Everything else (400, 401, 403, parse failures) advances the fallback
// chain immediately.
func Retryable(err error) bool {
	var ce *ContentError
	if errors.As(err, &ce) {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Status == 0 || pe.Status == 429 || pe.Status == 503 || pe.Status >= 500
	}
	// Unclassified failures carry no status.
	return true
}
