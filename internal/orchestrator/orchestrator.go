// Package orchestrator composes classification, interpretation,
// architecting, and execution into the single processCommand flow
// every transport calls into.
package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/opspilot/opspilot/internal/architect"
	"github.com/opspilot/opspilot/internal/classify"
	"github.com/opspilot/opspilot/internal/executor"
	"github.com/opspilot/opspilot/internal/history"
	"github.com/opspilot/opspilot/internal/llm"
	"github.com/opspilot/opspilot/internal/logging"
	"github.com/opspilot/opspilot/internal/shell"
)

// Interpreter answers a raw request with interpreted text. An empty
// provider name selects the configured default.
type Interpreter interface {
	Query(ctx context.Context, provider, request string) (string, error)
	DefaultProvider() string
}

// Planner architects a complex request into a plan.
type Planner interface {
	Plan(ctx context.Context, request string) *architect.Outcome
}

// Helper is the in-process interpretation fallback. It receives the
// raw request and returns interpreted text.
type Helper func(request string) (string, error)

// Recorder persists processed commands. A nil recorder disables
// history.
type Recorder interface {
	Record(entry *history.Entry) error
}

// Orchestrator drives one command through classify, branch, and
// envelope assembly. Instances are safe for concurrent use; each
// request carries its own state.
type Orchestrator struct {
	interpreter     Interpreter
	planner         Planner
	executor        *executor.Executor
	runner          *shell.Runner
	cache           *lru.Cache[string, string]
	fallbackEnabled bool
	helperPath      string
	helper          Helper
	history         Recorder
	log             *logging.Logger
}

// Options configure an Orchestrator beyond its required collaborators.
type Options struct {
	// FallbackEnabled turns the caller-level interpretation fallback
	// chain on.
	FallbackEnabled bool
	// HelperPath locates the standalone fallback helper binary.
	HelperPath string
	// Helper is the in-process fallback tried after the binary.
	Helper Helper
	// CacheSize bounds the interpretation cache; zero disables it.
	CacheSize int
	// History receives one entry per processed command.
	History Recorder
}

// New builds an orchestrator.
func New(interpreter Interpreter, planner Planner, exec *executor.Executor, runner *shell.Runner, opts Options) *Orchestrator {
	o := &Orchestrator{
		interpreter:     interpreter,
		planner:         planner,
		executor:        exec,
		runner:          runner,
		fallbackEnabled: opts.FallbackEnabled,
		helperPath:      opts.HelperPath,
		helper:          opts.Helper,
		history:         opts.History,
		log:             logging.Global().WithComponent("orchestrator"),
	}
	if opts.CacheSize > 0 {
		o.cache, _ = lru.New[string, string](opts.CacheSize)
	}
	return o
}

// ProcessCommand runs req through the state machine and returns the
// uniform envelope. It never returns an error; failures are absorbed
// into the envelope.
func (o *Orchestrator) ProcessCommand(ctx context.Context, req Request) *Envelope {
	return o.ProcessCommandObserved(ctx, req, nil)
}

// ProcessCommandObserved is ProcessCommand with a per-step observer
// for live streaming transports.
func (o *Orchestrator) ProcessCommandObserved(ctx context.Context, req Request, observer executor.StepObserver) *Envelope {
	start := time.Now()
	env := &Envelope{
		Command:   req.Command,
		RequestID: uuid.New().String(),
	}

	c := classify.Classify(req.Command)
	o.log.Debug("Classified %q: question=%v complex=%v words=%d", req.Command, c.IsQuestion, c.IsComplex, c.WordCount)

	switch {
	case c.IsQuestion:
		o.handleQuestion(ctx, req.Command, env)
	case c.IsComplex:
		o.handleComplex(ctx, req.Command, env, observer)
	default:
		o.handleSimple(ctx, req, env, observer)
	}

	env.Duration = time.Since(start)
	o.record(env)
	return env
}

// handleQuestion echoes the stripped question text back through the
// shell so the caller receives it as ordinary command output.
func (o *Orchestrator) handleQuestion(ctx context.Context, command string, env *Envelope) {
	env.Type = TypeQuestion

	stripped := classify.StripQuestionMarkers(command)
	echo := fmt.Sprintf("echo %q", stripped)

	res, err := o.runner.Run(ctx, echo)
	sr := stepResult(0, stripped, echo, res, err)
	env.Result = &sr
	env.Success = err == nil
	if err != nil {
		env.Error = "question echo failed"
		env.Details = err.Error()
	}
}

// handleComplex architects the request and executes the resulting
// plan. A degraded plan still executes; the envelope carries the
// architecting failure.
func (o *Orchestrator) handleComplex(ctx context.Context, command string, env *Envelope, observer executor.StepObserver) {
	outcome := o.planner.Plan(ctx, command)
	env.Plan = outcome.Plan
	env.PlanSource = outcome.Source

	execRes := o.executor.Execute(ctx, outcome.Plan, observer)
	if execRes.RequiresInteraction {
		env.Type = TypeInteractive
		env.Success = true
		env.RequiredInfo = execRes.RequiredInfo
		return
	}

	env.Type = TypeArchitected
	env.Results = execRes.Results
	env.Success = outcome.Success
	if !outcome.Success {
		env.Error = "architecting unavailable, degraded plan returned"
		if outcome.Err != nil {
			env.Details = outcome.Err.Error()
		}
	}
}

// handleSimple interprets the command via the gateway and its
// fallback chain. The interpretation is returned, not executed,
// unless the request asked for MCPS expansion.
func (o *Orchestrator) handleSimple(ctx context.Context, req Request, env *Envelope, observer executor.StepObserver) {
	env.Type = TypeSimple

	interpretation, err := o.interpret(ctx, req.Command)
	if err != nil {
		env.Success = false
		env.Interpretation = "echo 'command interpretation unavailable'"
		env.Error = errorSummary(err)
		env.Details = err.Error()
		return
	}

	env.Interpretation = interpretation
	env.Success = true

	if req.MCPS {
		o.runMCPS(ctx, interpretation, env, observer)
	}
}

// interpret resolves a command to interpreted text: cache, then the
// default provider, then the fallback chain.
func (o *Orchestrator) interpret(ctx context.Context, command string) (string, error) {
	if o.cache != nil {
		if cached, ok := o.cache.Get(command); ok {
			o.log.Debug("Interpretation cache hit for %q", command)
			return cached, nil
		}
	}

	text, err := o.interpreter.Query(ctx, "", command)
	if err == nil {
		text = strings.TrimSpace(text)
		if o.cache != nil {
			o.cache.Add(command, text)
		}
		return text, nil
	}

	if !o.fallbackEnabled {
		return "", err
	}
	o.log.Warn("Provider interpretation failed, trying fallback chain: %v", err)

	if text, helperErr := o.runHelperBinary(ctx, command); helperErr == nil {
		return text, nil
	} else if o.helperPath != "" {
		o.log.Warn("Helper binary failed: %v", helperErr)
	}

	if o.helper != nil {
		if text, helperErr := o.helper(command); helperErr == nil {
			return strings.TrimSpace(text), nil
		}
		o.log.Warn("In-process helper failed")
	}

	return "", err
}

// runHelperBinary invokes the standalone helper with the raw request
// and reads interpreted text from stdout.
func (o *Orchestrator) runHelperBinary(ctx context.Context, command string) (string, error) {
	if o.helperPath == "" {
		return "", fmt.Errorf("no helper binary configured")
	}
	if _, err := os.Stat(o.helperPath); err != nil {
		return "", fmt.Errorf("helper binary not found: %w", err)
	}

	cmd := exec.CommandContext(ctx, o.helperPath, command)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("helper binary failed: %w", err)
	}

	text := strings.TrimSpace(stdout.String())
	if text == "" {
		return "", fmt.Errorf("helper binary produced no output")
	}
	return text, nil
}

// runMCPS expands the interpretation into a step list and executes
// each line independently. Line failures are recorded, never halting.
func (o *Orchestrator) runMCPS(ctx context.Context, interpretation string, env *Envelope, observer executor.StepObserver) {
	env.Type = TypeMCPS

	prompt := "Break the following into individual shell commands, one per line, with no commentary or numbering:\n\n" + interpretation
	listing, err := o.interpreter.Query(ctx, "", prompt)
	if err != nil {
		o.log.Warn("Step-list query failed, executing interpretation lines directly: %v", err)
		listing = interpretation
	}

	steps := splitSteps(listing)
	for i, step := range steps {
		res, runErr := o.runner.Run(ctx, step)
		sr := stepResult(i, step, step, res, runErr)
		env.Results = append(env.Results, sr)
		if observer != nil {
			observer(sr)
		}
	}
}

// splitSteps extracts executable lines from a step listing.
func splitSteps(listing string) []string {
	var steps []string
	for _, line := range strings.Split(listing, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "```") || strings.HasPrefix(line, "#") {
			continue
		}
		steps = append(steps, line)
	}
	return steps
}

func stepResult(index int, description, command string, res *shell.Result, err error) executor.StepResult {
	sr := executor.StepResult{
		Index:       index,
		Description: description,
		Command:     command,
	}
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

// errorSummary maps an error to operator-facing text by category,
// keeping the raw message for the details field.
func errorSummary(err error) string {
	if pErr, ok := llm.AsProviderError(err); ok {
		return pErr.Summary()
	}
	return "command interpretation failed"
}

func (o *Orchestrator) record(env *Envelope) {
	if o.history == nil {
		return
	}
	err := o.history.Record(&history.Entry{
		RequestID: env.RequestID,
		Command:   env.Command,
		Type:      string(env.Type),
		Success:   env.Success,
		Duration:  env.Duration,
	})
	if err != nil {
		o.log.Warn("Failed to record history: %v", err)
	}
}
