// Package architect turns free-form complex requests into structured
// multi-step execution plans by consulting external architecting
// backends, with a backend-to-backend fallback chain that always
// produces a usable plan.
package architect

import "strings"

// Complexity grades how involved a plan is.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// normalizeComplexity maps arbitrary backend output onto the enum.
func normalizeComplexity(s string) Complexity {
	switch Complexity(strings.ToLower(strings.TrimSpace(s))) {
	case ComplexityLow:
		return ComplexityLow
	case ComplexityHigh:
		return ComplexityHigh
	default:
		return ComplexityMedium
	}
}

// Step is one ordered unit of work in a plan. Ordering is significant;
// execution is strictly sequential.
type Step struct {
	Description string `json:"description"`
	Command     string `json:"command"`
	Critical    bool   `json:"critical"`
}

// Plan is the structured output of architecting.
type Plan struct {
	NeedsAgent    bool       `json:"needsAgent"`
	RequiredInfo  []string   `json:"requiredInfo,omitempty"`
	Steps         []Step     `json:"steps"`
	Dependencies  []string   `json:"dependencies,omitempty"`
	Monitoring    []string   `json:"monitoring,omitempty"`
	Notifications []string   `json:"notifications,omitempty"`
	EstimatedTime string     `json:"estimatedTime,omitempty"`
	Complexity    Complexity `json:"complexity"`
}

// RequiresInteraction reports whether the plan must be surfaced to the
// operator for more input instead of being executed.
func (p *Plan) RequiresInteraction() bool {
	return p.NeedsAgent && len(p.RequiredInfo) > 0
}

// Source tags how a plan was obtained. Keeping the variants explicit
// lets downstream logic switch exhaustively instead of guessing from
// plan contents.
type Source string

const (
	// SourceStructured means a backend returned well-formed plan JSON.
	SourceStructured Source = "structured"
	// SourceFreeText means the fallback backend answered in prose and
	// each non-empty line became a non-critical step.
	SourceFreeText Source = "freetext"
	// SourceDegraded means every backend failed and a minimal
	// single-step plan was synthesized.
	SourceDegraded Source = "degraded"
)

// Outcome is the terminal result of architecting. Plan is never nil:
// total backend failure yields a degraded plan with Success=false.
type Outcome struct {
	Plan    *Plan  `json:"plan"`
	Source  Source `json:"source"`
	Success bool   `json:"success"`
	// Backend that produced the plan ("script", provider name, or "")
	Backend string `json:"backend,omitempty"`
	// Err is the terminal failure when Success is false
	Err error `json:"-"`
}
