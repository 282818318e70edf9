package config

import "time"

// BittensorConfig controls verification of sr25519-signed platform
// callbacks (the "Bittensor ss58=..., sig=..." auth header).
type BittensorConfig struct {
	// NetUID restricts verification to hotkeys registered on this subnet.
	NetUID int `yaml:"netuid"`

	// AllowedSS58 is an optional allow-list of caller hotkeys. Empty means
	// any hotkey with a valid signature is accepted (subnet membership is
	// checked by the metagraph collaborator, out of scope here).
	AllowedSS58 []string `yaml:"allowed_ss58"`

	// AllowedClockSkew bounds how far a request's declared timestamp may
	// drift from the server clock before it is rejected as stale.
	AllowedClockSkew time.Duration `yaml:"allowed_clock_skew"`
}

func applyBittensorDefaults(cfg *BittensorConfig) {
	if cfg.AllowedClockSkew == 0 {
		cfg.AllowedClockSkew = 5 * time.Minute
	}
}
