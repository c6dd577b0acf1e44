package llm

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes provider failures so the caller can pick the
// right fallback stage and render a readable summary.
type ErrorKind int

const (
	// ErrUnknownProvider means the requested provider is not registered.
	ErrUnknownProvider ErrorKind = iota
	// ErrMissingCredential means no API key was resolvable from config
	// or environment.
	ErrMissingCredential
	// ErrNetwork means the HTTP request itself failed (transport error,
	// timeout, connection refused).
	ErrNetwork
	// ErrUpstream means the backend answered with a non-2xx status.
	ErrUpstream
)

// String returns a human-readable kind name.
func (k ErrorKind) String() string {
	switch k {
	case ErrUnknownProvider:
		return "unknown_provider"
	case ErrMissingCredential:
		return "missing_credential"
	case ErrNetwork:
		return "network"
	case ErrUpstream:
		return "upstream"
	default:
		return "unknown"
	}
}

// ProviderError is the error type raised by the gateway. It carries the
// upstream status and body when available.
type ProviderError struct {
	Kind     ErrorKind
	Provider string
	Status   int    // HTTP status for ErrUpstream, 0 otherwise
	Body     string // upstream response body, truncated
	Err      error  // wrapped cause
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	switch e.Kind {
	case ErrUnknownProvider:
		return fmt.Sprintf("provider '%s' not registered", e.Provider)
	case ErrMissingCredential:
		return fmt.Sprintf("provider '%s' has no resolvable API key", e.Provider)
	case ErrUpstream:
		return fmt.Sprintf("provider '%s' returned status %d: %s", e.Provider, e.Status, e.Body)
	default:
		return fmt.Sprintf("provider '%s' request failed: %v", e.Provider, e.Err)
	}
}

// Unwrap returns the wrapped cause.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Summary returns a short operator-facing description derived from the
// error category, without internal detail.
func (e *ProviderError) Summary() string {
	switch e.Kind {
	case ErrUnknownProvider:
		return "the configured AI provider is not available"
	case ErrMissingCredential:
		return "the AI provider is missing an API key"
	case ErrNetwork:
		return "could not reach the AI provider"
	case ErrUpstream:
		return "the AI provider rejected the request"
	default:
		return "the AI provider call failed"
	}
}

// AsProviderError extracts a *ProviderError from an error chain.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
