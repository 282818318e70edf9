package config

// RetryConfig configures the retry runner's exponential backoff policy.
// Field names mirror backoff.BackoffPolicy so the config can be converted
// with a straight field copy.
type RetryConfig struct {
	InitialMs   int64   `yaml:"initial_ms"`
	MaxMs       int64   `yaml:"max_ms"`
	Factor      float64 `yaml:"factor"`
	Jitter      float64 `yaml:"jitter"`
	MaxAttempts int     `yaml:"max_attempts"`
}

func applyRetryDefaults(cfg *RetryConfig) {
	if cfg.InitialMs == 0 {
		cfg.InitialMs = 250
	}
	if cfg.MaxMs == 0 {
		cfg.MaxMs = 10_000
	}
	if cfg.Factor == 0 {
		cfg.Factor = 2.0
	}
	if cfg.Jitter == 0 {
		cfg.Jitter = 0.2
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
}
