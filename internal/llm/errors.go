package llm

import (
	"errors"
	"fmt"
)

// Error taxonomy for the router and adapters.
//
// TransportError, BackendError and EmptyResponseError are absorbed by the
// retry wrapper and the router's fallback traversal. Only StructuredParseError
// (and, with fallback disabled, the last adapter error) ever reach the caller.

// TransportError wraps a network or timeout failure reaching the backend.
type TransportError struct {
	Provider string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// BackendError wraps a non-2xx status or protocol-level failure.
type BackendError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: backend returned status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// EmptyResponseError reports a 2xx response carrying no usable content.
type EmptyResponseError struct {
	Provider string
}

func (e *EmptyResponseError) Error() string {
	return fmt.Sprintf("%s: backend returned empty content", e.Provider)
}

// StructuredParseError reports content that was obtained but does not parse
// as the expected structure. It carries the original raw text so the caller
// can diagnose (or surface) what the model actually said. It is never
// retried: the call itself succeeded.
type StructuredParseError struct {
	Raw string
	Err error
}

func (e *StructuredParseError) Error() string {
	return fmt.Sprintf("structured output did not parse: %v", e.Err)
}

func (e *StructuredParseError) Unwrap() error { return e.Err }

// ErrNoProvidersAvailable is returned only when zero adapters are available
// AND local fallback is disabled. With fallback enabled this condition routes
// straight to the local generator instead of erroring.
var ErrNoProvidersAvailable = errors.New("no providers available")

// Retryable reports whether err is a transient adapter failure that the
// retry wrapper should absorb. Structured-parse failures are not retryable:
// the transport succeeded, the content is just malformed.
func Retryable(err error) bool {
	var te *TransportError
	var be *BackendError
	var ee *EmptyResponseError
	return errors.As(err, &te) || errors.As(err, &be) || errors.As(err, &ee)
}
