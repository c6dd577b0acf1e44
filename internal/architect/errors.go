package architect

import "fmt"

// FailureKind categorizes architecting backend failures. These are
// always absorbed by the fallback chain; callers only ever see them
// inside an Outcome.
type FailureKind int

const (
	// BackendUnavailable means the backend artifact is missing or the
	// process/call could not complete.
	BackendUnavailable FailureKind = iota
	// Timeout means the backend exceeded its wall-clock bound and was
	// killed.
	Timeout
	// MalformedOutput means the backend answered but not with a plan.
	MalformedOutput
)

// String returns a human-readable kind name.
func (k FailureKind) String() string {
	switch k {
	case BackendUnavailable:
		return "backend_unavailable"
	case Timeout:
		return "timeout"
	case MalformedOutput:
		return "malformed_output"
	default:
		return "unknown"
	}
}

// BackendError reports one backend's failure.
type BackendError struct {
	Kind    FailureKind
	Backend string
	Err     error
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("architect backend %s %s: %v", e.Backend, e.Kind, e.Err)
	}
	return fmt.Sprintf("architect backend %s %s", e.Backend, e.Kind)
}

// Unwrap returns the wrapped cause.
func (e *BackendError) Unwrap() error {
	return e.Err
}
