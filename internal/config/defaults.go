package config

import "time"

const (
	// DefaultEnvironment is used when neither flag nor config selects one
	DefaultEnvironment = "dev"
	// DefaultParallel is the worker count when nothing else is configured
	DefaultParallel = 2
)

// GetDefaultConfig returns the built-in configuration
func GetDefaultConfig() ScenctlConfig {
	enabled := false
	return ScenctlConfig{
		Root:        "features",
		Parallel:    DefaultParallel,
		Environment: DefaultEnvironment,
		Timeout:     30 * time.Minute,
		Report: ReportConfig{
			Enabled: &enabled,
			Dir:     "target/scenctl-reports",
			Formats: []string{"json"},
		},
		Environments: map[string]Environment{},
	}
}
