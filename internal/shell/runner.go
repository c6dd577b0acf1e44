// Package shell executes single host commands with captured output.
// No per-command timeout is enforced here; callers that need a bound
// pass a context with a deadline.
package shell

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Runner executes shell command strings on the host.
type Runner struct {
	// Shell executable (default: first of /bin/bash, /bin/sh found)
	shell string

	// Environment variables to inject
	env []string

	// Working directory for commands (empty = inherit)
	workingDir string

	// maxOutputSize limits output capture per stream (default: 10MB)
	maxOutputSize int
}

// Option configures the Runner.
type Option func(*Runner)

// WithShell sets the shell executable.
func WithShell(shell string) Option {
	return func(r *Runner) {
		if shell != "" {
			r.shell = shell
		}
	}
}

// WithEnvironment adds environment variables.
func WithEnvironment(env []string) Option {
	return func(r *Runner) {
		r.env = append(r.env, env...)
	}
}

// WithWorkingDir sets the directory commands run in.
func WithWorkingDir(dir string) Option {
	return func(r *Runner) {
		r.workingDir = dir
	}
}

// WithMaxOutputSize sets the maximum captured output per stream.
func WithMaxOutputSize(size int) Option {
	return func(r *Runner) {
		if size > 0 {
			r.maxOutputSize = size
		}
	}
}

// NewRunner creates a command runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		shell:         findShell(),
		maxOutputSize: 10 * 1024 * 1024,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// findShell locates an available shell.
func findShell() string {
	shells := []string{"/bin/bash", "/bin/sh", "/usr/bin/bash", "/usr/bin/sh"}
	for _, shell := range shells {
		if _, err := os.Stat(shell); err == nil {
			return shell
		}
	}
	return "/bin/sh"
}

// Result holds the captured streams of a completed command.
type Result struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration"`
}

// ExecError reports a command that failed to spawn or exited non-zero.
// Stderr is carried for diagnostics.
type ExecError struct {
	Message  string
	Stderr   string
	ExitCode int
	Err      error
}

// Error implements the error interface.
func (e *ExecError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s: %s", e.Message, strings.TrimSpace(e.Stderr))
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *ExecError) Unwrap() error {
	return e.Err
}

// Run executes a command string in the configured shell and waits for
// completion. A non-zero exit or spawn failure returns an *ExecError;
// the Result is returned alongside so callers keep the captured output.
func (r *Runner) Run(ctx context.Context, command string) (*Result, error) {
	if strings.TrimSpace(command) == "" {
		return nil, &ExecError{Message: "command cannot be empty"}
	}

	start := time.Now()

	cmd := exec.CommandContext(ctx, r.shell, "-c", command)
	if r.workingDir != "" {
		cmd.Dir = r.workingDir
	}
	cmd.Env = append(os.Environ(), r.env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	result := &Result{
		Stdout:   truncate(stdout.String(), r.maxOutputSize),
		Stderr:   truncate(stderr.String(), r.maxOutputSize),
		Duration: time.Since(start),
	}
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}

	if err != nil {
		message := fmt.Sprintf("command exited with code %d", result.ExitCode)
		if ctx.Err() == context.DeadlineExceeded {
			message = "command timed out"
		} else if ctx.Err() == context.Canceled {
			message = "command cancelled"
		} else if result.ExitCode < 0 {
			message = fmt.Sprintf("command failed to run: %v", err)
		}
		return result, &ExecError{
			Message:  message,
			Stderr:   result.Stderr,
			ExitCode: result.ExitCode,
			Err:      err,
		}
	}

	return result, nil
}

// truncate caps s at max bytes, marking the cut.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "\n... [output truncated]"
}

// ParseCommand extracts the base command name for logging.
func ParseCommand(input string) string {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return ""
	}

	cmd := parts[0]
	if strings.Contains(cmd, "|") {
		segments := strings.Split(cmd, "|")
		cmd = strings.TrimSpace(segments[0])
	}

	return filepath.Base(cmd)
}
