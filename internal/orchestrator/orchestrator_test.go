package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opspilot/opspilot/internal/architect"
	"github.com/opspilot/opspilot/internal/executor"
	"github.com/opspilot/opspilot/internal/history"
	"github.com/opspilot/opspilot/internal/llm"
	"github.com/opspilot/opspilot/internal/shell"
)

type stubInterpreter struct {
	responses map[string]string
	fallback  string
	err       error
	calls     int
}

func (s *stubInterpreter) Query(ctx context.Context, provider, request string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	if text, ok := s.responses[request]; ok {
		return text, nil
	}
	return s.fallback, nil
}

func (s *stubInterpreter) DefaultProvider() string { return "stub" }

type stubPlanner struct {
	outcome *architect.Outcome
	request string
}

func (s *stubPlanner) Plan(ctx context.Context, request string) *architect.Outcome {
	s.request = request
	return s.outcome
}

type memoryRecorder struct {
	entries []history.Entry
}

func (m *memoryRecorder) Record(entry *history.Entry) error {
	m.entries = append(m.entries, *entry)
	return nil
}

func newTestOrchestrator(t *testing.T, interp Interpreter, planner Planner, opts Options) *Orchestrator {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("orchestrator tests rely on sh")
	}
	runner := shell.NewRunner()
	return New(interp, planner, executor.New(runner, true), runner, opts)
}

func TestProcessQuestion(t *testing.T) {
	o := newTestOrchestrator(t, &stubInterpreter{}, &stubPlanner{}, Options{})

	env := o.ProcessCommand(context.Background(), Request{Command: "_list files?"})
	require.Equal(t, TypeQuestion, env.Type)
	assert.True(t, env.Success)
	require.NotNil(t, env.Result)
	assert.Equal(t, "list files\n", env.Result.Stdout)
	assert.NotEmpty(t, env.RequestID)
}

func TestProcessSimpleReturnsInterpretationOnly(t *testing.T) {
	interp := &stubInterpreter{fallback: "ls -la"}
	o := newTestOrchestrator(t, interp, &stubPlanner{}, Options{})

	env := o.ProcessCommand(context.Background(), Request{Command: "list files"})
	require.Equal(t, TypeSimple, env.Type)
	assert.True(t, env.Success)
	assert.Equal(t, "ls -la", env.Interpretation)
	assert.Empty(t, env.Results, "simple interpretations are not auto-executed")
}

func TestProcessSimpleUsesCache(t *testing.T) {
	interp := &stubInterpreter{fallback: "df -h"}
	o := newTestOrchestrator(t, interp, &stubPlanner{}, Options{CacheSize: 8})

	o.ProcessCommand(context.Background(), Request{Command: "disk usage"})
	o.ProcessCommand(context.Background(), Request{Command: "disk usage"})
	assert.Equal(t, 1, interp.calls)
}

func TestProcessSimpleDegradedWhenProviderFails(t *testing.T) {
	interp := &stubInterpreter{err: &llm.ProviderError{Kind: llm.ErrNetwork, Provider: "openai", Err: errors.New("dial tcp: timeout")}}
	o := newTestOrchestrator(t, interp, &stubPlanner{}, Options{})

	env := o.ProcessCommand(context.Background(), Request{Command: "list files"})
	assert.False(t, env.Success)
	assert.Equal(t, TypeSimple, env.Type)
	assert.Contains(t, env.Interpretation, "echo")
	assert.NotEmpty(t, env.Error)
	assert.Contains(t, env.Details, "dial tcp")
}

func TestFallbackHelperBinary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "helper.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\necho 'uptime'\n"), 0o755))

	interp := &stubInterpreter{err: errors.New("provider down")}
	o := newTestOrchestrator(t, interp, &stubPlanner{}, Options{
		FallbackEnabled: true,
		HelperPath:      path,
	})

	env := o.ProcessCommand(context.Background(), Request{Command: "how long up"})
	assert.True(t, env.Success)
	assert.Equal(t, "uptime", env.Interpretation)
}

func TestFallbackInProcessHelper(t *testing.T) {
	interp := &stubInterpreter{err: errors.New("provider down")}
	o := newTestOrchestrator(t, interp, &stubPlanner{}, Options{
		FallbackEnabled: true,
		Helper: func(request string) (string, error) {
			return "free -m", nil
		},
	})

	env := o.ProcessCommand(context.Background(), Request{Command: "memory status"})
	assert.True(t, env.Success)
	assert.Equal(t, "free -m", env.Interpretation)
}

func TestHeuristicHelper(t *testing.T) {
	tests := []struct {
		request string
		want    string
	}{
		{"check disk space", "df -h"},
		{"how much memory", "free -m"},
		{"list files here", "ls -la"},
		{"show open ports", "ss -tlnp"},
		{"what is the Uptime", "uptime"},
	}
	for _, tt := range tests {
		got, err := HeuristicHelper(tt.request)
		require.NoError(t, err, tt.request)
		assert.Equal(t, tt.want, got, tt.request)
	}

	_, err := HeuristicHelper("deploy the new billing microservice")
	assert.Error(t, err, "unknown phrasings must fail so the chain can degrade")
}

func TestFallbackHeuristicHelperInChain(t *testing.T) {
	interp := &stubInterpreter{err: errors.New("provider down")}
	o := newTestOrchestrator(t, interp, &stubPlanner{}, Options{
		FallbackEnabled: true,
		Helper:          HeuristicHelper,
	})

	env := o.ProcessCommand(context.Background(), Request{Command: "disk usage"})
	assert.True(t, env.Success)
	assert.Equal(t, "df -h", env.Interpretation)
}

func TestFallbackChainExhausted(t *testing.T) {
	interp := &stubInterpreter{err: errors.New("provider down")}
	o := newTestOrchestrator(t, interp, &stubPlanner{}, Options{
		FallbackEnabled: true,
		HelperPath:      filepath.Join(t.TempDir(), "missing"),
		Helper: func(request string) (string, error) {
			return "", errors.New("helper broken")
		},
	})

	env := o.ProcessCommand(context.Background(), Request{Command: "list files"})
	assert.False(t, env.Success)
	assert.Contains(t, env.Details, "provider down")
}

func TestProcessComplexExecutesPlan(t *testing.T) {
	planner := &stubPlanner{outcome: &architect.Outcome{
		Plan: &architect.Plan{Steps: []architect.Step{
			{Description: "first", Command: "echo one"},
			{Description: "second", Command: "echo two"},
		}},
		Source:  architect.SourceStructured,
		Success: true,
	}}
	o := newTestOrchestrator(t, &stubInterpreter{}, planner, Options{})

	env := o.ProcessCommand(context.Background(), Request{Command: "please upgrade all system packages"})
	require.Equal(t, TypeArchitected, env.Type)
	assert.True(t, env.Success)
	require.Len(t, env.Results, 2)
	assert.Equal(t, "one\n", env.Results[0].Stdout)
	assert.Equal(t, "please upgrade all system packages", planner.request)
}

func TestProcessComplexDegradedStillReturnsNormally(t *testing.T) {
	cause := errors.New("both backends down")
	planner := &stubPlanner{outcome: &architect.Outcome{
		Plan:    architect.DegradedPlan("migrate the primary database now", cause),
		Source:  architect.SourceDegraded,
		Success: false,
		Err:     cause,
	}}
	o := newTestOrchestrator(t, &stubInterpreter{}, planner, Options{})

	env := o.ProcessCommand(context.Background(), Request{Command: "migrate the primary database now"})
	require.Equal(t, TypeArchitected, env.Type)
	assert.False(t, env.Success)
	require.Len(t, env.Results, 1, "degraded plan has exactly one step")
	assert.True(t, env.Results[0].Success, "degraded step is executable")
	assert.Contains(t, env.Details, "both backends down")
}

func TestProcessInteractiveShortCircuit(t *testing.T) {
	planner := &stubPlanner{outcome: &architect.Outcome{
		Plan: &architect.Plan{
			NeedsAgent:   true,
			RequiredInfo: []string{"registry credentials"},
			Steps:        []architect.Step{{Description: "never runs", Command: "echo leak"}},
		},
		Source:  architect.SourceStructured,
		Success: true,
	}}
	o := newTestOrchestrator(t, &stubInterpreter{}, planner, Options{})

	env := o.ProcessCommand(context.Background(), Request{Command: "push the image to the private registry"})
	require.Equal(t, TypeInteractive, env.Type)
	assert.True(t, env.Success)
	assert.Equal(t, []string{"registry credentials"}, env.RequiredInfo)
	assert.Empty(t, env.Results)
}

func TestProcessMCPSExecutesEachLine(t *testing.T) {
	interp := &stubInterpreter{
		responses: map[string]string{"show status": "status overview"},
		fallback:  "echo alpha\nfalse\necho beta",
	}
	o := newTestOrchestrator(t, interp, &stubPlanner{}, Options{})

	env := o.ProcessCommand(context.Background(), Request{Command: "show status", MCPS: true})
	require.Equal(t, TypeMCPS, env.Type)
	assert.True(t, env.Success)
	require.Len(t, env.Results, 3)
	assert.True(t, env.Results[0].Success)
	assert.False(t, env.Results[1].Success, "line failures are recorded, not fatal")
	assert.True(t, env.Results[2].Success, "execution continues past a failed line")
}

func TestHistoryRecorded(t *testing.T) {
	rec := &memoryRecorder{}
	o := newTestOrchestrator(t, &stubInterpreter{fallback: "ls"}, &stubPlanner{}, Options{History: rec})

	o.ProcessCommand(context.Background(), Request{Command: "list"})
	require.Len(t, rec.entries, 1)
	assert.Equal(t, "simple", rec.entries[0].Type)
	assert.True(t, rec.entries[0].Success)
	assert.Equal(t, "list", rec.entries[0].Command)
}
