package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.LLM.DefaultProvider != "ollama" {
		t.Errorf("expected default provider 'ollama', got '%s'", cfg.LLM.DefaultProvider)
	}

	if cfg.LLM.MaxRetries != 3 {
		t.Errorf("expected 3 retries, got %d", cfg.LLM.MaxRetries)
	}

	if cfg.Architect.Timeout != 30*time.Second {
		t.Errorf("expected 30s architect timeout, got %v", cfg.Architect.Timeout)
	}

	if !cfg.Executor.ContinueOnError {
		t.Error("expected continue_on_error enabled by default")
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got '%s'", cfg.Logging.Level)
	}

	if len(cfg.LLM.Providers) == 0 {
		t.Error("expected default providers to be populated")
	}

	ollama, exists := cfg.LLM.Providers["ollama"]
	if !exists {
		t.Fatal("expected 'ollama' provider to exist")
	}
	if ollama.Endpoint != "http://127.0.0.1:11434" {
		t.Errorf("expected ollama endpoint 'http://127.0.0.1:11434', got '%s'", ollama.Endpoint)
	}
}

func TestLoadFromPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, ".opspilot", "config.yaml")

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("config file was not created")
	}

	if cfg.LLM.DefaultProvider != "ollama" {
		t.Errorf("expected default provider 'ollama', got '%s'", cfg.LLM.DefaultProvider)
	}

	// Round-trip: loading again must produce the same config
	cfg2, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("failed to reload config: %v", err)
	}
	if cfg2.Server.Port != cfg.Server.Port {
		t.Errorf("round-trip changed port: %d vs %d", cfg.Server.Port, cfg2.Server.Port)
	}
}

func TestLoadFromPathPartialFile(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.yaml")

	partial := "llm:\n  default_provider: openai\n  providers:\n    openai:\n      model: gpt-4o-mini\n"
	if err := os.WriteFile(configPath, []byte(partial), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("failed to load partial config: %v", err)
	}

	if cfg.LLM.DefaultProvider != "openai" {
		t.Errorf("expected default provider 'openai', got '%s'", cfg.LLM.DefaultProvider)
	}
	if cfg.LLM.MaxRetries != 3 {
		t.Errorf("expected defaulted max_retries 3, got %d", cfg.LLM.MaxRetries)
	}
	if cfg.Server.Port != 8710 {
		t.Errorf("expected defaulted port 8710, got %d", cfg.Server.Port)
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid default", func(c *Config) {}, false},
		{"empty default provider", func(c *Config) { c.LLM.DefaultProvider = "" }, true},
		{"unknown default provider", func(c *Config) { c.LLM.DefaultProvider = "nope" }, true},
		{"unknown architect fallback", func(c *Config) { c.Architect.FallbackProvider = "nope" }, true},
		{"zero retries", func(c *Config) { c.LLM.MaxRetries = 0 }, true},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, true},
		{"unnamed plugin", func(c *Config) { c.Plugins = []PluginConfig{{Path: "/x"}} }, true},
		{"duplicate plugin", func(c *Config) {
			c.Plugins = []PluginConfig{{Name: "a", Path: "/x"}, {Name: "a", Path: "/y"}}
		}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestHandleSwap(t *testing.T) {
	old := Default()
	h := NewHandle(old)

	if h.Current() != old {
		t.Fatal("expected handle to return initial config")
	}

	// Concurrent readers must always observe a complete Config value,
	// never a partially-applied reload.
	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				cfg := h.Current()
				if _, ok := cfg.LLM.Providers[cfg.LLM.DefaultProvider]; !ok {
					t.Error("observed config with default provider missing from registry")
					return
				}
			}
		}()
	}

	for i := 0; i < 100; i++ {
		next := Default()
		next.LLM.DefaultProvider = "openai"
		h.Swap(next)
		h.Swap(Default())
	}
	close(stop)
	wg.Wait()
}
