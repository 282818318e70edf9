// Package config loads and validates the validator runtime configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the root configuration for the validator runtime: the tool
// dispatcher's HTTP surface, the sandbox backend, the batch scheduler,
// Bittensor request authentication, and the ambient logging/observability
// stack.
type Config struct {
	Version       int                 `yaml:"version"`
	Server        ServerConfig        `yaml:"server"`
	Sandbox       SandboxConfig       `yaml:"sandbox"`
	Scheduler     SchedulerConfig     `yaml:"scheduler"`
	Retry         RetryConfig         `yaml:"retry"`
	Bittensor     BittensorConfig     `yaml:"bittensor"`
	LLM           LLMConfig           `yaml:"llm"`
	Pricing       PricingConfig       `yaml:"pricing"`
	Logging       LoggingConfig       `yaml:"logging"`
	Observability ObservabilityConfig `yaml:"observability"`
	Staging       StagingConfig       `yaml:"staging"`
}

// StagingConfig controls where agent artifacts are staged for sandbox mounts.
type StagingConfig struct {
	// StateDir is the root directory under which content-addressed agent
	// artifacts are staged, e.g. {state_dir}/platform_agents/{sha256_hex}/agent.py.
	StateDir string `yaml:"state_dir"`
}

// Load reads a YAML (or JSON/JSON5) config file, resolving $include
// directives, then expands, decodes, defaults, and validates it.
func Load(path string) (*Config, error) {
	raw, err := LoadRaw(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := decodeRawConfig(raw)
	if err != nil {
		return nil, err
	}

	if cfg.Version != 0 {
		if err := ValidateVersion(cfg.Version); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applySandboxDefaults(&cfg.Sandbox)
	applySchedulerDefaults(&cfg.Scheduler)
	applyRetryDefaults(&cfg.Retry)
	applyBittensorDefaults(&cfg.Bittensor)
	applyLLMDefaults(&cfg.LLM)
	applyLoggingDefaults(&cfg.Logging)
	applyObservabilityDefaults(&cfg.Observability)
	if strings.TrimSpace(cfg.Staging.StateDir) == "" {
		cfg.Staging.StateDir = "/var/lib/caster-validator"
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.ToolExecutePort == 0 {
		cfg.ToolExecutePort = 8080
	}
	if cfg.MetricsPort == 0 {
		cfg.MetricsPort = 9090
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 15 * time.Second
	}
}

func applyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}
	if value := strings.TrimSpace(os.Getenv("VALIDATOR_HOST")); value != "" {
		cfg.Server.Host = value
	}
	if value := strings.TrimSpace(os.Getenv("VALIDATOR_TOOL_EXECUTE_PORT")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			cfg.Server.ToolExecutePort = parsed
		}
	}
	if value := strings.TrimSpace(os.Getenv("VALIDATOR_METRICS_PORT")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			cfg.Server.MetricsPort = parsed
		}
	}
	if value := strings.TrimSpace(os.Getenv("VALIDATOR_STATE_DIR")); value != "" {
		cfg.Staging.StateDir = value
	}
	if value := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); value != "" {
		cfg.LLM.APIKey = value
	}
}

// ConfigValidationError aggregates all validation failures found while
// checking a decoded Config.
type ConfigValidationError struct {
	Issues []string
}

func (e *ConfigValidationError) Error() string {
	return "config validation failed:\n- " + strings.Join(e.Issues, "\n- ")
}

func validateConfig(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	var issues []string

	if cfg.Server.ToolExecutePort <= 0 || cfg.Server.ToolExecutePort > 65535 {
		issues = append(issues, "server.tool_execute_port must be between 1 and 65535")
	}
	if cfg.Sandbox.PoolSize < 0 {
		issues = append(issues, "sandbox.pool_size must be >= 0")
	}
	if cfg.Sandbox.DefaultMemoryMB <= 0 {
		issues = append(issues, "sandbox.default_memory_mb must be > 0")
	}
	if cfg.Sandbox.DefaultCPU <= 0 {
		issues = append(issues, "sandbox.default_cpu must be > 0")
	}
	if cfg.Scheduler.SessionTTL <= 0 {
		issues = append(issues, "scheduler.session_ttl must be > 0")
	}
	if cfg.Scheduler.BudgetUSD <= 0 {
		issues = append(issues, "scheduler.budget_usd must be > 0")
	}
	if cfg.Retry.MaxAttempts <= 0 {
		issues = append(issues, "retry.max_attempts must be > 0")
	}
	if cfg.Retry.Factor <= 1 {
		issues = append(issues, "retry.factor must be > 1")
	}
	if cfg.Bittensor.AllowedClockSkew < 0 {
		issues = append(issues, "bittensor.allowed_clock_skew must be >= 0")
	}

	if len(issues) > 0 {
		return &ConfigValidationError{Issues: issues}
	}
	return nil
}
