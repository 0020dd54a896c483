// Package config loads the runner's configuration via viper: state
// directory, default agent provider, iteration/duration budgets, stagnation
// threshold, agent-retry tuning, and MCP enablement.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// AgentConfig selects and configures the default task-execution provider.
type AgentConfig struct {
	Provider string `mapstructure:"provider"` // "claude-code" (default), "aider", "codex"
	Model    string `mapstructure:"model"`
}

// BudgetConfig bounds how long the Delivery loop may keep iterating on a
// single task before the orchestrator stops it with budget_exhausted.
type BudgetConfig struct {
	MaxIterations int    `mapstructure:"max_iterations"`
	MaxDuration   string `mapstructure:"max_duration"`
}

// RetryConfig tunes the agent-provider retry policy (internal/agent.RunWithRetryLimits).
type RetryConfig struct {
	MaxRateLimitRetries int `mapstructure:"max_rate_limit_retries"`
	MaxTransientRetries int `mapstructure:"max_transient_retries"`
}

// DeliveryConfig tunes the iteration loop's stagnation detection.
type DeliveryConfig struct {
	StagnationThreshold int `mapstructure:"stagnation_threshold"`
}

// MCPConfig controls whether the MCPSelection stage offers MCP servers at
// all, and which entries of the compile-time template table are eligible.
type MCPConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Servers []string `mapstructure:"servers"`
}

// CloudConfig names the structured-logging destination. It is optional:
// internal/observability degrades to plain-logger-only when Project is unset.
type CloudConfig struct {
	Project string `mapstructure:"project"`
	LogName string `mapstructure:"log_name"`
}

// Config is the full runner configuration.
type Config struct {
	StateDir string         `mapstructure:"state_dir"`
	Agent    AgentConfig    `mapstructure:"agent"`
	Budget   BudgetConfig   `mapstructure:"budget"`
	Retry    RetryConfig    `mapstructure:"retry"`
	Delivery DeliveryConfig `mapstructure:"delivery"`
	MCP      MCPConfig      `mapstructure:"mcp"`
	Cloud    CloudConfig    `mapstructure:"cloud"`
}

// Load reads configuration from whatever file/environment viper has already
// been pointed at (cobra's PersistentPreRun wires that up, matching the
// reference controller's cobra.OnInitialize convention) and applies defaults.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(cfg)

	return cfg, nil
}

// applyDefaults fills in every field left unset by file/environment/flags.
func applyDefaults(cfg *Config) {
	if cfg.StateDir == "" {
		cfg.StateDir = ".taskrunner"
	}

	if cfg.Agent.Provider == "" {
		cfg.Agent.Provider = "claude-code"
	}

	if cfg.Budget.MaxIterations == 0 {
		cfg.Budget.MaxIterations = 30
	}

	if cfg.Budget.MaxDuration == "" {
		cfg.Budget.MaxDuration = "2h"
	}

	if cfg.Retry.MaxRateLimitRetries == 0 {
		cfg.Retry.MaxRateLimitRetries = 100
	}

	if cfg.Retry.MaxTransientRetries == 0 {
		cfg.Retry.MaxTransientRetries = 10
	}

	if cfg.Delivery.StagnationThreshold == 0 {
		cfg.Delivery.StagnationThreshold = 3
	}

	if cfg.Cloud.LogName == "" {
		cfg.Cloud.LogName = "taskrunner"
	}
}

// Validate checks field values that applyDefaults alone can't guarantee are
// sane (an operator-supplied file can still set these to garbage).
func (c *Config) Validate() error {
	validAgents := map[string]bool{"claude-code": true, "aider": true, "codex": true}
	if c.Agent.Provider != "" && !validAgents[c.Agent.Provider] {
		return fmt.Errorf("invalid agent provider: %s (must be claude-code, aider, or codex)", c.Agent.Provider)
	}

	if c.Budget.MaxIterations < 0 {
		return fmt.Errorf("budget.max_iterations must not be negative")
	}

	if c.Budget.MaxDuration != "" {
		if _, err := time.ParseDuration(c.Budget.MaxDuration); err != nil {
			return fmt.Errorf("invalid budget.max_duration: %w", err)
		}
	}

	if c.Delivery.StagnationThreshold < 1 {
		return fmt.Errorf("delivery.stagnation_threshold must be at least 1")
	}

	if c.Retry.MaxRateLimitRetries < 0 || c.Retry.MaxTransientRetries < 0 {
		return fmt.Errorf("retry limits must not be negative")
	}

	return nil
}

// ValidateForRun performs the additional checks required before the
// orchestrator drives a task, beyond the structural checks in Validate.
func (c *Config) ValidateForRun() error {
	if err := c.Validate(); err != nil {
		return err
	}

	if c.StateDir == "" {
		return fmt.Errorf("state_dir is required")
	}

	return nil
}
