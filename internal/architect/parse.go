package architect

import (
	"encoding/json"
	"fmt"
	"strings"
)

// extractJSON pulls the first JSON object out of backend output,
// tolerating markdown code fences and surrounding prose.
func extractJSON(raw string) (string, bool) {
	s := strings.TrimSpace(raw)

	// Strip a fenced block if present.
	if idx := strings.Index(s, "```"); idx >= 0 {
		rest := s[idx+3:]
		rest = strings.TrimPrefix(rest, "json")
		if end := strings.Index(rest, "```"); end >= 0 {
			s = rest[:end]
		} else {
			s = rest
		}
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// ParsePlan decodes backend output into a Plan. It fails when the
// output has no JSON object, the JSON doesn't decode, or the decoded
// object carries neither steps nor an interaction request.
func ParsePlan(raw string) (*Plan, error) {
	payload, ok := extractJSON(raw)
	if !ok {
		return nil, fmt.Errorf("no JSON object in output")
	}

	var plan Plan
	if err := json.Unmarshal([]byte(payload), &plan); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}

	if len(plan.Steps) == 0 && !plan.RequiresInteraction() {
		return nil, fmt.Errorf("plan has no steps and requests no input")
	}

	plan.Complexity = normalizeComplexity(string(plan.Complexity))
	return &plan, nil
}

// FreeTextPlan converts prose output into a plan by treating each
// non-empty line as one non-critical step. The coercion is explicit:
// the caller tags the outcome SourceFreeText.
func FreeTextPlan(raw string) *Plan {
	plan := &Plan{Complexity: ComplexityHigh}

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "```") {
			continue
		}
		plan.Steps = append(plan.Steps, Step{
			Description: line,
			Command:     line,
		})
	}

	return plan
}

// DegradedPlan synthesizes the minimal plan returned when every
// backend failed. Its single step reports the failure and asks for
// manual intervention; it is safe to execute.
func DegradedPlan(request string, cause error) *Plan {
	msg := "architecting unavailable"
	if cause != nil {
		msg = cause.Error()
	}

	return &Plan{
		Complexity: ComplexityHigh,
		Steps: []Step{
			{
				Description: "Report architecting failure and request manual intervention",
				Command: fmt.Sprintf("echo 'Unable to build a plan for: %s (%s). Manual intervention required.'",
					sanitizeForShell(request), sanitizeForShell(msg)),
			},
		},
	}
}

// sanitizeForShell keeps single-quoted echo arguments intact.
func sanitizeForShell(s string) string {
	return strings.ReplaceAll(s, "'", "'\\''")
}
