package shell

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRunCapturesStdout(t *testing.T) {
	r := NewRunner()

	result, err := r.Run(context.Background(), "echo hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Stdout != "hello\n" {
		t.Errorf("expected stdout 'hello\\n', got %q", result.Stdout)
	}
	if result.ExitCode != 0 {
		t.Errorf("expected exit code 0, got %d", result.ExitCode)
	}
}

func TestRunCapturesStderr(t *testing.T) {
	r := NewRunner()

	result, err := r.Run(context.Background(), "echo oops 1>&2; exit 3")
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}

	var execErr *ExecError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected *ExecError, got %T", err)
	}
	if execErr.ExitCode != 3 {
		t.Errorf("expected exit code 3, got %d", execErr.ExitCode)
	}
	if !strings.Contains(execErr.Stderr, "oops") {
		t.Errorf("expected stderr to contain 'oops', got %q", execErr.Stderr)
	}
	if result == nil || result.ExitCode != 3 {
		t.Error("expected result alongside error")
	}
}

func TestRunEmptyCommand(t *testing.T) {
	r := NewRunner()

	if _, err := r.Run(context.Background(), "   "); err == nil {
		t.Error("expected error for empty command")
	}
}

func TestRunFalse(t *testing.T) {
	r := NewRunner()

	_, err := r.Run(context.Background(), "false")
	var execErr *ExecError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected *ExecError, got %v", err)
	}
	if execErr.ExitCode != 1 {
		t.Errorf("expected exit code 1, got %d", execErr.ExitCode)
	}
}

func TestRunContextCancellation(t *testing.T) {
	r := NewRunner()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := r.Run(ctx, "sleep 5")
	if err == nil {
		t.Fatal("expected error for cancelled command")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("command was not killed promptly, took %v", elapsed)
	}
}

func TestRunWorkingDir(t *testing.T) {
	dir := t.TempDir()
	r := NewRunner(WithWorkingDir(dir))

	result, err := r.Run(context.Background(), "pwd")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// On macOS /tmp is a symlink, so compare suffixes.
	if !strings.Contains(result.Stdout, dir[strings.LastIndex(dir, "/"):]) {
		t.Errorf("expected pwd output to reference %q, got %q", dir, result.Stdout)
	}
}

func TestRunEnvironment(t *testing.T) {
	r := NewRunner(WithEnvironment([]string{"OPSPILOT_TEST_VAR=present"}))

	result, err := r.Run(context.Background(), "echo $OPSPILOT_TEST_VAR")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Stdout != "present\n" {
		t.Errorf("expected injected env var, got %q", result.Stdout)
	}
}

func TestRunOutputTruncation(t *testing.T) {
	r := NewRunner(WithMaxOutputSize(16))

	result, err := r.Run(context.Background(), "printf 'aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa'")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(result.Stdout, "[output truncated]") {
		t.Errorf("expected truncation marker, got %q", result.Stdout)
	}
}

func TestParseCommand(t *testing.T) {
	testCases := []struct {
		in   string
		want string
	}{
		{"ls -la", "ls"},
		{"/usr/bin/env python", "env"},
		{"cat|wc -l", "cat"},
		{"", ""},
	}

	for _, tc := range testCases {
		if got := ParseCommand(tc.in); got != tc.want {
			t.Errorf("ParseCommand(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
