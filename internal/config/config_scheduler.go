package config

import "time"

// SchedulerConfig configures the batch scheduler: per-claim session
// lifetime, per-session budget, and the entrypoint miner agents expose.
type SchedulerConfig struct {
	// Entrypoint is the sandbox HTTP entrypoint name invoked for each claim,
	// e.g. "evaluate_criterion".
	Entrypoint string `yaml:"entrypoint"`

	// SessionTTL is how long a session remains ACTIVE after issuance.
	SessionTTL time.Duration `yaml:"session_ttl"`

	// BudgetUSD is the per-session tool-call spending ceiling.
	BudgetUSD float64 `yaml:"budget_usd"`

	// MaxConcurrentCandidates bounds how many candidate sandboxes the
	// scheduler keeps alive at once. The reference scheduler runs candidates
	// strictly sequentially (MaxConcurrentCandidates=1); higher values trade
	// the "exactly-one-outcome-per-candidate" ordering guarantee for
	// throughput and are opt-in.
	MaxConcurrentCandidates int `yaml:"max_concurrent_candidates"`
}

func applySchedulerDefaults(cfg *SchedulerConfig) {
	if cfg.Entrypoint == "" {
		cfg.Entrypoint = "evaluate_criterion"
	}
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 10 * time.Minute
	}
	if cfg.BudgetUSD == 0 {
		cfg.BudgetUSD = 0.50
	}
	if cfg.MaxConcurrentCandidates == 0 {
		cfg.MaxConcurrentCandidates = 1
	}
}
