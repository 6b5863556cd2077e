// Package config loads the crewhub configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ModelTiers maps execution profiles to model names. The coordinator picks a
// tier from task complexity heuristics.
type ModelTiers struct {
	Light    string `yaml:"light"`
	Standard string `yaml:"standard"`
	Heavy    string `yaml:"heavy"`
}

// Webhook is one outbound notification target. Events filters which task
// events are delivered; empty means all.
type Webhook struct {
	URL    string   `yaml:"url"`
	Events []string `yaml:"events,omitempty"`
}

// Config holds all runtime settings.
type Config struct {
	Listen        string   `yaml:"listen"`
	Tokens        []string `yaml:"tokens,omitempty"`
	DataDir       string   `yaml:"dataDir"`
	WorkspaceRoot string   `yaml:"workspaceRoot"`

	Adapter    string     `yaml:"adapter"`
	ModelTiers ModelTiers `yaml:"modelTiers"`

	ExecTimeoutSeconds int `yaml:"execTimeoutSeconds"`
	SchedulerInterval  int `yaml:"schedulerIntervalSeconds"`
	MaxRetries         int `yaml:"maxRetries"`
	ChatHistoryLimit   int `yaml:"chatHistoryLimit"`

	Webhooks []Webhook `yaml:"webhooks,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".crewhub")
	return &Config{
		Listen:        "127.0.0.1:7420",
		DataDir:       base,
		WorkspaceRoot: filepath.Join(base, "workspaces"),
		Adapter:       "claude",
		ModelTiers: ModelTiers{
			Light:    "haiku",
			Standard: "sonnet",
			Heavy:    "opus",
		},
		ExecTimeoutSeconds: 300,
		SchedulerInterval:  5,
		MaxRetries:         3,
		ChatHistoryLimit:   10,
	}
}

// DefaultPath returns the standard config file location.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".crewhub", "config.yaml")
}

// Load reads the config at path, applying defaults for unset fields.
// A missing file is not an error; defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Save writes the config to path, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// ExecTimeout returns the per-invocation wall-clock timeout.
func (c *Config) ExecTimeout() time.Duration {
	return time.Duration(c.ExecTimeoutSeconds) * time.Second
}

// PollInterval returns the scheduler tick interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.SchedulerInterval) * time.Second
}

// DBPath returns the SQLite database location.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "crewhub.db")
}

func (c *Config) applyDefaults() {
	def := Default()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.DataDir == "" {
		c.DataDir = def.DataDir
	}
	if c.WorkspaceRoot == "" {
		c.WorkspaceRoot = def.WorkspaceRoot
	}
	if c.Adapter == "" {
		c.Adapter = def.Adapter
	}
	if c.ModelTiers.Light == "" {
		c.ModelTiers.Light = def.ModelTiers.Light
	}
	if c.ModelTiers.Standard == "" {
		c.ModelTiers.Standard = def.ModelTiers.Standard
	}
	if c.ModelTiers.Heavy == "" {
		c.ModelTiers.Heavy = def.ModelTiers.Heavy
	}
	if c.ExecTimeoutSeconds <= 0 {
		c.ExecTimeoutSeconds = def.ExecTimeoutSeconds
	}
	if c.SchedulerInterval <= 0 {
		c.SchedulerInterval = def.SchedulerInterval
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = def.MaxRetries
	}
	if c.ChatHistoryLimit <= 0 {
		c.ChatHistoryLimit = def.ChatHistoryLimit
	}
}
