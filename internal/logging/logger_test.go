package logging

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewWithFile(t *testing.T) {
	tempDir := t.TempDir()
	logPath := filepath.Join(tempDir, "logs", "test.log")

	l := New(&Config{Level: LevelDebug, FilePath: logPath, Component: "test"})
	defer l.Close()

	l.Info("hello %s", "world")
	l.Debug("detail")

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	content := string(data)
	if !strings.Contains(content, "hello world") {
		t.Errorf("log file missing info message: %q", content)
	}
	if !strings.Contains(content, "detail") {
		t.Errorf("log file missing debug message: %q", content)
	}
	if !strings.Contains(content, "test") {
		t.Errorf("log file missing component tag: %q", content)
	}
}

func TestLevelFiltering(t *testing.T) {
	tempDir := t.TempDir()
	logPath := filepath.Join(tempDir, "test.log")

	l := New(&Config{Level: LevelWarn, FilePath: logPath})
	defer l.Close()

	l.Debug("should be dropped")
	l.Warn("should be kept")

	data, _ := os.ReadFile(logPath)
	content := string(data)
	if strings.Contains(content, "should be dropped") {
		t.Error("debug message logged despite warn level")
	}
	if !strings.Contains(content, "should be kept") {
		t.Error("warn message missing")
	}
}

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"WARN", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"garbage", LevelInfo},
	}

	for _, tc := range testCases {
		if got := ParseLevel(tc.in); got != tc.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestDetachContext(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	detached := DetachContext(parent)
	cancel()

	if detached.Err() != nil {
		t.Error("detached context should survive parent cancellation")
	}

	withTimeout, tcancel := DetachContextWithTimeout(parent, time.Minute)
	defer tcancel()
	if withTimeout.Err() != nil {
		t.Error("detached context with timeout should not start expired")
	}
	if _, ok := withTimeout.Deadline(); !ok {
		t.Error("expected a deadline on detached context")
	}
}
