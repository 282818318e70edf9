package config

import "time"

// SandboxConfig configures the Docker-backed miner-agent sandbox pool.
// Grounded on internal/tools/sandbox's Config/Option shape in the teacher
// repo; Firecracker and Daytona backends are named for parity but the
// validator only ever selects BackendDocker.
type SandboxConfig struct {
	// Backend selects the isolation technology. Only "docker" is wired.
	Backend string `yaml:"backend"`

	// PoolSize is the number of warm sandbox slots to keep ready.
	PoolSize int `yaml:"pool_size"`

	// MaxPoolSize caps concurrent sandboxes across all in-flight candidates.
	MaxPoolSize int `yaml:"max_pool_size"`

	// DefaultTimeout bounds a single entrypoint invocation inside the sandbox.
	DefaultTimeout time.Duration `yaml:"default_timeout"`

	// DefaultCPU is the number of CPUs made available to the container.
	DefaultCPU float64 `yaml:"default_cpu"`

	// DefaultMemoryMB is the memory limit in megabytes for the container.
	DefaultMemoryMB int `yaml:"default_memory_mb"`

	// PidsLimit caps the number of processes/threads inside the container.
	PidsLimit int `yaml:"pids_limit"`

	// NetworkEnabled allows the container outbound network access. The
	// validator always runs with this false; miner code reaches external
	// services only through the proxied tool dispatcher.
	NetworkEnabled bool `yaml:"network_enabled"`

	// Image is the container image that hosts the sandbox worker binary.
	Image string `yaml:"image"`

	// WorkerEntrypointPort is the port the in-container worker listens on.
	WorkerEntrypointPort int `yaml:"worker_entrypoint_port"`
}

func applySandboxDefaults(cfg *SandboxConfig) {
	if cfg.Backend == "" {
		cfg.Backend = "docker"
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = 1
	}
	if cfg.MaxPoolSize == 0 {
		cfg.MaxPoolSize = 8
	}
	if cfg.DefaultTimeout == 0 {
		cfg.DefaultTimeout = 90 * time.Second
	}
	if cfg.DefaultCPU == 0 {
		cfg.DefaultCPU = 1.0
	}
	if cfg.DefaultMemoryMB == 0 {
		cfg.DefaultMemoryMB = 512
	}
	if cfg.PidsLimit == 0 {
		cfg.PidsLimit = 100
	}
	if cfg.Image == "" {
		cfg.Image = "caster-validator/sandbox-worker:latest"
	}
	if cfg.WorkerEntrypointPort == 0 {
		cfg.WorkerEntrypointPort = 8181
	}
}
