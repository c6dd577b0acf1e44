package executor

import (
	"context"
	"time"

	"github.com/opspilot/opspilot/internal/architect"
	"github.com/opspilot/opspilot/internal/logging"
	"github.com/opspilot/opspilot/internal/shell"
)

// StepResult records one plan step's execution.
type StepResult struct {
	Index       int           `json:"index"`
	Description string        `json:"description"`
	Command     string        `json:"command"`
	Success     bool          `json:"success"`
	Stdout      string        `json:"stdout,omitempty"`
	Stderr      string        `json:"stderr,omitempty"`
	ExitCode    int           `json:"exitCode"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// ExecutionResult is the executor's terminal report. Results may be
// shorter than the plan when a failure halted iteration; it is never
// longer.
type ExecutionResult struct {
	Success              bool         `json:"success"`
	RequiresInteraction  bool         `json:"requiresInteraction"`
	RequiredInfo         []string     `json:"requiredInfo,omitempty"`
	Results              []StepResult `json:"results"`
	StepsPlanned         int          `json:"stepsPlanned"`
	StepsRun             int          `json:"stepsRun"`
	HaltedAtCriticalStep bool         `json:"haltedAtCriticalStep,omitempty"`
}

// StepObserver is notified after each step completes. Used for live
// streaming; may be nil.
type StepObserver func(result StepResult)

// Executor runs architected plans step by step, strictly in order.
// Steps may depend on their predecessors (install then configure) so
// execution is never parallelized.
type Executor struct {
	runner          *shell.Runner
	continueOnError bool
	log             *logging.Logger
}

// New builds an executor over runner. continueOnError controls
// whether a non-critical step failure halts the remainder of the
// plan.
func New(runner *shell.Runner, continueOnError bool) *Executor {
	return &Executor{
		runner:          runner,
		continueOnError: continueOnError,
		log:             logging.Global().WithComponent("executor"),
	}
}

// Execute runs plan's steps sequentially. When the plan requests
// operator input nothing runs and the result carries the required-info
// list. The returned Success reflects that execution proceeded as the
// plan and policy dictated; per-step failures live in Results.
func (e *Executor) Execute(ctx context.Context, plan *architect.Plan, observer StepObserver) *ExecutionResult {
	result := &ExecutionResult{
		Success:      true,
		StepsPlanned: len(plan.Steps),
	}

	if plan.RequiresInteraction() {
		result.RequiresInteraction = true
		result.RequiredInfo = plan.RequiredInfo
		e.log.Info("Plan requires operator input before execution: %v", plan.RequiredInfo)
		return result
	}

	for i, step := range plan.Steps {
		sr := e.runStep(ctx, i, step)
		result.Results = append(result.Results, sr)
		result.StepsRun++

		if observer != nil {
			observer(sr)
		}

		if sr.Success {
			continue
		}
		if step.Critical {
			e.log.Warn("Critical step %d failed, halting plan: %s", i, sr.Error)
			result.HaltedAtCriticalStep = true
			return result
		}
		if !e.continueOnError {
			e.log.Warn("Step %d failed and continue-on-error is disabled, halting plan", i)
			return result
		}
		e.log.Info("Step %d failed, continuing: %s", i, sr.Error)
	}

	return result
}

func (e *Executor) runStep(ctx context.Context, index int, step architect.Step) StepResult {
	sr := StepResult{
		Index:       index,
		Description: step.Description,
		Command:     step.Command,
	}

	e.log.Debug("Running step %d: %s", index, step.Command)

	res, err := e.runner.Run(ctx, step.Command)
	if res != nil {
		sr.Stdout = res.Stdout
		sr.Stderr = res.Stderr
		sr.ExitCode = res.ExitCode
		sr.Duration = res.Duration
	}
	if err != nil {
		sr.Error = err.Error()
		return sr
	}

	sr.Success = true
	return sr
}
