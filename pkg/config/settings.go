package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// WorkflowSettings controls pipeline execution.
type WorkflowSettings struct {
	MaxParallelSteps      int  `yaml:"max_parallel_steps"`
	DefaultTimeoutSeconds int  `yaml:"default_timeout_seconds"`
	DefaultRetryCount     int  `yaml:"default_retry_count"`
	StopOnError           bool `yaml:"stop_on_error"`
	RepoConcurrency       int  `yaml:"repo_concurrency"`
}

// ServerBindings names the manifest entries that serve each capability.
type ServerBindings struct {
	SourceControl string `yaml:"source_control"`
	Pack          string `yaml:"pack"`
	Chat          string `yaml:"chat"`
	Filesystem    string `yaml:"filesystem"`
}

// SlackSettings controls workflow notifications.
type SlackSettings struct {
	Enabled  *bool  `yaml:"enabled,omitempty"`
	TokenEnv string `yaml:"token_env,omitempty"`
	Channel  string `yaml:"channel,omitempty"`
}

// LLMSettings controls the agentic batch processor.
type LLMSettings struct {
	Model            string `yaml:"model"`
	MaxTokens        int    `yaml:"max_tokens"`
	APIKeyEnv        string `yaml:"api_key_env"`
	BatchSize        int    `yaml:"batch_size"`
	BatchConcurrency int    `yaml:"batch_concurrency"`
}

// GitHubSettings names the token used by the source-control server.
type GitHubSettings struct {
	TokenEnv string `yaml:"token_env,omitempty"`
}

// DashboardSettings controls the live log API.
type DashboardSettings struct {
	Enabled bool   `yaml:"enabled"`
	Port    string `yaml:"port"`
}

// Settings is the decomm.yaml file structure.
type Settings struct {
	Workflow  WorkflowSettings  `yaml:"workflow"`
	Servers   ServerBindings    `yaml:"servers"`
	Slack     SlackSettings     `yaml:"slack"`
	LLM       LLMSettings       `yaml:"llm"`
	GitHub    GitHubSettings    `yaml:"github"`
	Dashboard DashboardSettings `yaml:"dashboard"`
}

// Config is the fully loaded, validated configuration.
type Config struct {
	Settings Settings
	Servers  *ServerRegistry
}

// SlackEnabled reports whether Slack notifications are on. Defaults to true
// when a channel is configured.
func (s SlackSettings) SlackEnabled() bool {
	if s.Enabled != nil {
		return *s.Enabled
	}
	return s.Channel != ""
}

// Manifest and settings file names inside the configuration directory.
const (
	ManifestFileName = "mcp_config.json"
	SettingsFileName = "decomm.yaml"
)

// Initialize loads, merges, validates, and returns ready-to-use
// configuration from configDir.
//
// Steps performed:
//  1. Load decomm.yaml (optional; built-in defaults apply when absent)
//  2. Expand environment variables
//  3. Merge user settings over built-in defaults
//  4. Load and expand the MCP server manifest
//  5. Validate the result
func Initialize(configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	settings, err := loadSettings(filepath.Join(configDir, SettingsFileName))
	if err != nil {
		return nil, err
	}

	registry, err := LoadManifest(filepath.Join(configDir, ManifestFileName))
	if err != nil {
		return nil, err
	}

	cfg := &Config{Settings: settings, Servers: registry}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	log.Info("Configuration initialized",
		"mcp_servers", len(registry.IDs()),
		"max_parallel_steps", settings.Workflow.MaxParallelSteps,
		"slack_enabled", settings.Slack.SlackEnabled())
	return cfg, nil
}

// loadSettings reads and merges decomm.yaml over built-in defaults. A
// missing file yields the defaults unchanged.
func loadSettings(path string) (Settings, error) {
	settings := DefaultSettings()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return settings, NewLoadError(path, err)
	}

	var user Settings
	if err := yaml.Unmarshal(ExpandEnv(data), &user); err != nil {
		return settings, NewLoadError(path, err)
	}

	// User values override defaults; zero values fall through to defaults.
	if err := mergo.Merge(&settings, user, mergo.WithOverride); err != nil {
		return settings, NewLoadError(path, err)
	}
	return settings, nil
}

func (c *Config) validate() error {
	w := c.Settings.Workflow
	if w.MaxParallelSteps < 1 {
		return NewValidationError("workflow", "workflow", "max_parallel_steps", ErrInvalidValue)
	}
	if w.DefaultTimeoutSeconds < 1 {
		return NewValidationError("workflow", "workflow", "default_timeout_seconds", ErrInvalidValue)
	}
	if w.DefaultRetryCount < 0 {
		return NewValidationError("workflow", "workflow", "default_retry_count", ErrInvalidValue)
	}
	if c.Settings.LLM.BatchSize < 1 {
		return NewValidationError("llm", "llm", "batch_size", ErrInvalidValue)
	}

	// Bound capability servers must exist in the manifest. The filesystem
	// capability is optional.
	required := map[string]string{
		"source_control": c.Settings.Servers.SourceControl,
		"pack":           c.Settings.Servers.Pack,
		"chat":           c.Settings.Servers.Chat,
	}
	for field, id := range required {
		if id == "" {
			return NewValidationError("servers", field, field, ErrMissingRequiredField)
		}
		if !c.Servers.Has(id) {
			return NewValidationError("servers", id, field,
				fmt.Errorf("%w: %s", ErrServerNotFound, id))
		}
	}
	if fs := c.Settings.Servers.Filesystem; fs != "" && !c.Servers.Has(fs) {
		return NewValidationError("servers", fs, "filesystem",
			fmt.Errorf("%w: %s", ErrServerNotFound, fs))
	}
	return nil
}
