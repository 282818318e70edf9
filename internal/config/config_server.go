package config

import "time"

// ServerConfig configures the validator's HTTP surfaces: the tool
// dispatcher's execute endpoint and the Prometheus metrics listener.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	ToolExecutePort int           `yaml:"tool_execute_port"`
	MetricsPort     int           `yaml:"metrics_port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}
