package architect

import (
	"context"
	"errors"

	"github.com/opspilot/opspilot/internal/config"
	"github.com/opspilot/opspilot/internal/llm"
	"github.com/opspilot/opspilot/internal/logging"
)

// Architect turns a complex request into an executable plan. It tries
// the planning script first, falls back to the AI provider, and when
// both fail returns a degraded single-step plan so the caller always
// has something to execute.
type Architect struct {
	script   *ScriptBackend
	provider Backend
	log      *logging.Logger
}

// New wires an architect from configuration. The gateway may be nil
// when no providers are configured; the provider backend then reports
// itself unavailable at plan time.
func New(cfg *config.Config, gateway *llm.Gateway) *Architect {
	return &Architect{
		script:   NewScriptBackend(cfg.Architect.ScriptPath, cfg.Architect.Timeout),
		provider: NewProviderBackend(gateway, cfg.Architect.FallbackProvider),
		log:      logging.Global().WithComponent("architect"),
	}
}

// NewWithBackends builds an architect from explicit backends.
func NewWithBackends(script *ScriptBackend, provider Backend) *Architect {
	return &Architect{
		script:   script,
		provider: provider,
		log:      logging.Global().WithComponent("architect"),
	}
}

// Plan produces an Outcome for request. The outcome always carries a
// non-nil plan; Success is false only when every backend failed and
// the plan is the degraded placeholder.
func (a *Architect) Plan(ctx context.Context, request string) *Outcome {
	var lastErr error

	if a.script != nil && a.script.Available() {
		outcome, err := a.tryScript(ctx, request)
		if err == nil {
			return outcome
		}
		lastErr = err
		a.log.Warn("Planning script failed, falling back to provider: %v", err)
	}

	if a.provider != nil {
		outcome, err := a.tryProvider(ctx, request)
		if err == nil {
			return outcome
		}
		lastErr = err
		a.log.Warn("Provider planning failed: %v", err)
	}

	if lastErr == nil {
		lastErr = errors.New("no planning backend configured")
	}

	return &Outcome{
		Plan:    DegradedPlan(request, lastErr),
		Source:  SourceDegraded,
		Backend: "none",
		Success: false,
		Err:     lastErr,
	}
}

// tryScript runs the planning script. Its output must be well-formed
// plan JSON; anything else is malformed and falls through to the
// provider, which may still produce a structured plan.
func (a *Architect) tryScript(ctx context.Context, request string) (*Outcome, error) {
	raw, err := a.script.Generate(ctx, request)
	if err != nil {
		return nil, err
	}

	plan, parseErr := ParsePlan(raw)
	if parseErr != nil {
		return nil, &BackendError{
			Kind:    MalformedOutput,
			Backend: a.script.Name(),
			Err:     parseErr,
		}
	}

	return &Outcome{
		Plan:    plan,
		Source:  SourceStructured,
		Backend: a.script.Name(),
		Success: true,
	}, nil
}

// tryProvider runs the AI backend. Structured JSON wins; prose output
// is coerced line by line into a plan rather than discarded, since
// there is no further backend to consult.
func (a *Architect) tryProvider(ctx context.Context, request string) (*Outcome, error) {
	raw, err := a.provider.Generate(ctx, request)
	if err != nil {
		return nil, err
	}

	plan, parseErr := ParsePlan(raw)
	if parseErr == nil {
		return &Outcome{
			Plan:    plan,
			Source:  SourceStructured,
			Backend: a.provider.Name(),
			Success: true,
		}, nil
	}

	free := FreeTextPlan(raw)
	if len(free.Steps) == 0 {
		return nil, &BackendError{
			Kind:    MalformedOutput,
			Backend: a.provider.Name(),
			Err:     parseErr,
		}
	}

	a.log.Debug("Coercing free-text output from %s into %d steps", a.provider.Name(), len(free.Steps))
	return &Outcome{
		Plan:    free,
		Source:  SourceFreeText,
		Backend: a.provider.Name(),
		Success: true,
	}, nil
}
