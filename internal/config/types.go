package config

import (
	"time"
)

// ScenctlConfig is the top-level configuration structure for scenctl.
type ScenctlConfig struct {
	// Root is the directory searched for feature files
	Root string `yaml:"root,omitempty"`
	// Parallel is the number of concurrent scenario workers
	Parallel int `yaml:"parallel,omitempty"`
	// Tags are tag expression terms applied when --tags is not given
	Tags []string `yaml:"tags,omitempty"`
	// Environment is the environment selected when --env is not given
	Environment string `yaml:"environment,omitempty"`
	// Timeout bounds the whole run
	Timeout time.Duration `yaml:"timeout,omitempty"`
	// ScenarioTimeout applies to scenarios without their own timeout
	ScenarioTimeout time.Duration `yaml:"scenarioTimeout,omitempty"`
	// Report configures the report artifacts
	Report ReportConfig `yaml:"report,omitempty"`
	// History is the SQLite database recording past runs
	History string `yaml:"history,omitempty"`
	// Environments maps environment names to their variables
	Environments map[string]Environment `yaml:"environments,omitempty"`
}

// ReportConfig controls artifact output.
type ReportConfig struct {
	// Enabled turns artifact output on; nil means "not set in this layer"
	Enabled *bool `yaml:"enabled,omitempty"`
	// Dir is where report files are written
	Dir string `yaml:"dir,omitempty"`
	// Formats lists the artifact formats: json, cucumber
	Formats []string `yaml:"formats,omitempty"`
}

// IsEnabled reports whether artifact output is switched on
func (r ReportConfig) IsEnabled() bool {
	return r.Enabled != nil && *r.Enabled
}

// Environment is a named set of variables used to expand ${name}
// placeholders in feature files.
type Environment struct {
	Vars map[string]string `yaml:"vars,omitempty"`
}
