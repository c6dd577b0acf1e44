// Package config loads and validates opspilot configuration.
// Configuration is read from ~/.opspilot/config.yaml and can be
// overridden by OPSPILOT_* environment variables. A loaded Config is
// treated as immutable; reload builds a fresh instance and swaps it
// into the process-wide Handle.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration for opspilot.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	LLM       LLMConfig       `mapstructure:"llm" yaml:"llm"`
	Architect ArchitectConfig `mapstructure:"architect" yaml:"architect"`
	Executor  ExecutorConfig  `mapstructure:"executor" yaml:"executor"`
	History   HistoryConfig   `mapstructure:"history" yaml:"history"`
	Plugins   []PluginConfig  `mapstructure:"plugins" yaml:"plugins,omitempty"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

// ServerConfig contains configuration for the HTTP boundary.
type ServerConfig struct {
	// Host to bind (default: 127.0.0.1)
	Host string `mapstructure:"host" yaml:"host"`
	// Port to listen on (default: 8710)
	Port int `mapstructure:"port" yaml:"port"`
}

// LLMConfig contains configuration for AI backends.
type LLMConfig struct {
	// DefaultProvider specifies which provider handles simple requests
	DefaultProvider string `mapstructure:"default_provider" yaml:"default_provider"`
	// Providers maps provider names to their specific configuration
	Providers map[string]ProviderConfig `mapstructure:"providers" yaml:"providers"`
	// FallbackEnabled turns the caller-level fallback chain on
	FallbackEnabled bool `mapstructure:"fallback_enabled" yaml:"fallback_enabled"`
	// FallbackHelper is a path to a standalone helper binary tried when
	// the default provider fails; it receives the raw request as its
	// only argument and must print the interpretation on stdout
	FallbackHelper string `mapstructure:"fallback_helper" yaml:"fallback_helper,omitempty"`
	// MaxRetries bounds attempts within a single provider call
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`
	// RetryDelay is the fixed pause between attempts (e.g. "500ms")
	RetryDelay time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
	// InterpretationCacheSize bounds the LRU cache of interpreted
	// requests (0 disables caching)
	InterpretationCacheSize int `mapstructure:"interpretation_cache_size" yaml:"interpretation_cache_size"`
}

// ProviderConfig contains configuration for a specific AI provider.
type ProviderConfig struct {
	// Endpoint is the API base URL (primarily for local providers)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	// APIKey is the authentication key; falls back to the provider's
	// standard environment variable when empty
	APIKey string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	// Model is the default model for this provider
	Model string `mapstructure:"model" yaml:"model,omitempty"`
	// Temperature default for requests through this provider
	Temperature float64 `mapstructure:"temperature" yaml:"temperature,omitempty"`
	// MaxTokens default for responses
	MaxTokens int `mapstructure:"max_tokens" yaml:"max_tokens,omitempty"`
	// ExtraHeaders are added verbatim to every request
	ExtraHeaders map[string]string `mapstructure:"extra_headers" yaml:"extra_headers,omitempty"`
}

// ArchitectConfig contains configuration for the plan architecting
// pipeline.
type ArchitectConfig struct {
	// ScriptPath is the primary architecting executable; when absent on
	// disk the architect goes straight to the fallback provider
	ScriptPath string `mapstructure:"script_path" yaml:"script_path,omitempty"`
	// Timeout bounds a single architecting backend call
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// FallbackProvider names the AI provider used as backend B
	FallbackProvider string `mapstructure:"fallback_provider" yaml:"fallback_provider"`
}

// ExecutorConfig contains configuration for plan step execution.
type ExecutorConfig struct {
	// Shell overrides shell auto-discovery
	Shell string `mapstructure:"shell" yaml:"shell,omitempty"`
	// WorkingDir is the directory commands run in (empty = inherit)
	WorkingDir string `mapstructure:"working_dir" yaml:"working_dir,omitempty"`
	// ContinueOnError lets non-critical step failures fall through to
	// the next step instead of halting the plan
	ContinueOnError bool `mapstructure:"continue_on_error" yaml:"continue_on_error"`
	// MaxOutputSize caps captured output per command, in bytes
	MaxOutputSize int `mapstructure:"max_output_size" yaml:"max_output_size"`
}

// HistoryConfig contains configuration for the execution audit store.
type HistoryConfig struct {
	// Enabled turns history recording on
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// DBPath is the path to the SQLite history database
	DBPath string `mapstructure:"db_path" yaml:"db_path"`
}

// PluginConfig describes one native extension module to register at
// startup. Modules are validated against the three-call ABI before
// being marked usable; there is no directory scanning.
type PluginConfig struct {
	// Name identifies the module in the registry
	Name string `mapstructure:"name" yaml:"name"`
	// Path is the location of the module artifact
	Path string `mapstructure:"path" yaml:"path"`
	// Enabled controls whether the module is registered
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// LoggingConfig contains configuration for application logging.
type LoggingConfig struct {
	// Level is the log level ("debug", "info", "warn", "error")
	Level string `mapstructure:"level" yaml:"level"`
	// File is the path to the log file
	File string `mapstructure:"file" yaml:"file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".opspilot")

	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8710,
		},
		LLM: LLMConfig{
			DefaultProvider: "ollama",
			Providers: map[string]ProviderConfig{
				"ollama": {
					Endpoint: "http://127.0.0.1:11434",
					Model:    "llama3.2",
				},
				"openai": {
					APIKey: "",
					Model:  "gpt-4o-mini",
				},
				"anthropic": {
					APIKey: "",
					Model:  "claude-3-5-sonnet-20241022",
				},
				"groq": {
					Endpoint: "https://api.groq.com/openai/v1",
					APIKey:   "",
					Model:    "llama-3.3-70b-versatile",
				},
			},
			FallbackEnabled:         true,
			MaxRetries:              3,
			RetryDelay:              500 * time.Millisecond,
			InterpretationCacheSize: 256,
		},
		Architect: ArchitectConfig{
			ScriptPath:       filepath.Join(dataDir, "architect.sh"),
			Timeout:          30 * time.Second,
			FallbackProvider: "ollama",
		},
		Executor: ExecutorConfig{
			ContinueOnError: true,
			MaxOutputSize:   10 * 1024 * 1024,
		},
		History: HistoryConfig{
			Enabled: true,
			DBPath:  filepath.Join(dataDir, "history.db"),
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  filepath.Join(dataDir, "logs", "opspilot.log"),
		},
	}
}

// Load reads configuration from the default location
// (~/.opspilot/config.yaml) and merges with environment variables.
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	return LoadFromPath(filepath.Join(homeDir, ".opspilot", "config.yaml"))
}

// LoadFromPath reads configuration from a specific file path and merges
// with environment variables. If the file doesn't exist, it is created
// with default values.
func LoadFromPath(path string) (*Config, error) {
	path = expandPath(path)

	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeConfigFile(path, Default()); err != nil {
			return nil, fmt.Errorf("failed to write default config: %w", err)
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Example override: OPSPILOT_LLM_DEFAULT_PROVIDER=openai
	v.SetEnvPrefix("OPSPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.History.DBPath = expandPath(cfg.History.DBPath)
	cfg.Logging.File = expandPath(cfg.Logging.File)
	cfg.Architect.ScriptPath = expandPath(cfg.Architect.ScriptPath)
	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults fills in zero values with their defaults so a
// hand-edited partial config file still produces a workable Config.
func (c *Config) applyDefaults() {
	defaults := Default()

	if c.Server.Host == "" {
		c.Server.Host = defaults.Server.Host
	}
	if c.Server.Port == 0 {
		c.Server.Port = defaults.Server.Port
	}
	if c.LLM.MaxRetries == 0 {
		c.LLM.MaxRetries = defaults.LLM.MaxRetries
	}
	if c.LLM.RetryDelay == 0 {
		c.LLM.RetryDelay = defaults.LLM.RetryDelay
	}
	if c.Architect.Timeout == 0 {
		c.Architect.Timeout = defaults.Architect.Timeout
	}
	if c.Executor.MaxOutputSize == 0 {
		c.Executor.MaxOutputSize = defaults.Executor.MaxOutputSize
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Logging.Level
	}
}

// Save writes the current configuration to the default config file.
func (c *Config) Save() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	return c.SaveToPath(filepath.Join(homeDir, ".opspilot", "config.yaml"))
}

// SaveToPath writes the current configuration to a specific file path.
func (c *Config) SaveToPath(path string) error {
	path = expandPath(path)

	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return writeConfigFile(path, c)
}

// GetDataDir returns the opspilot data directory path (~/.opspilot).
func (c *Config) GetDataDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".opspilot")
}

// EnsureDirectories creates all directories opspilot needs at runtime.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.GetDataDir(),
		filepath.Dir(c.Logging.File),
		filepath.Dir(c.History.DBPath),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// Validate checks the configuration for common errors.
func (c *Config) Validate() error {
	if c.LLM.DefaultProvider == "" {
		return fmt.Errorf("llm.default_provider cannot be empty")
	}

	if _, exists := c.LLM.Providers[c.LLM.DefaultProvider]; !exists {
		return fmt.Errorf("default provider '%s' not found in providers map", c.LLM.DefaultProvider)
	}

	if c.Architect.FallbackProvider != "" {
		if _, exists := c.LLM.Providers[c.Architect.FallbackProvider]; !exists {
			return fmt.Errorf("architect fallback provider '%s' not found in providers map", c.Architect.FallbackProvider)
		}
	}

	if c.LLM.MaxRetries < 1 {
		return fmt.Errorf("llm.max_retries must be at least 1")
	}

	if c.Architect.Timeout <= 0 {
		return fmt.Errorf("architect.timeout must be positive")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level '%s', must be one of: debug, info, warn, error", c.Logging.Level)
	}

	seen := make(map[string]bool, len(c.Plugins))
	for _, p := range c.Plugins {
		if p.Name == "" {
			return fmt.Errorf("plugin entries must have a name")
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate plugin name '%s'", p.Name)
		}
		seen[p.Name] = true
	}

	return nil
}

// writeConfigFile writes a Config struct to a YAML file.
// Uses gopkg.in/yaml.v3 directly to ensure proper tag-based serialization.
func writeConfigFile(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// expandPath expands ~ to the user's home directory in a path string.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[1:])
	}
	return path
}
