package runner

import (
	"fmt"
	"time"

	"scenctl/internal/report"
	"scenctl/internal/tags"
)

// MaxParallelism is the highest accepted worker count
const MaxParallelism = 64

// Config is the configuration of one run. It is built once per invocation
// and not changed after Validate.
type Config struct {
	// Parallelism is the number of concurrent workers
	Parallelism int
	// Tags selects the scenarios to run; empty selects all
	Tags tags.Expression
	// OutputArtifactEnabled turns on report files and history
	OutputArtifactEnabled bool
	// ReportDir is where report files are written
	ReportDir string
	// Formats lists report file formats
	Formats []string
	// HistoryPath is the SQLite history database; empty disables history
	HistoryPath string
	// Environment is the selected environment name
	Environment string
	// ScenarioTimeout applies to scenarios without their own timeout
	ScenarioTimeout time.Duration
	// Timeout bounds the scenario execution phase of the run
	Timeout time.Duration
}

// Validate checks the configuration before any scenario is discovered
func (c Config) Validate() error {
	if c.Parallelism < 1 || c.Parallelism > MaxParallelism {
		return fmt.Errorf("parallelism must be between 1 and %d, got %d", MaxParallelism, c.Parallelism)
	}
	if c.ScenarioTimeout < 0 {
		return fmt.Errorf("scenario timeout must not be negative, got %v", c.ScenarioTimeout)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %v", c.Timeout)
	}
	for _, f := range c.Formats {
		if !report.ValidFormat(f) {
			return fmt.Errorf("unknown report format %q (supported: %s, %s)", f, report.FormatJSON, report.FormatCucumber)
		}
	}
	if c.OutputArtifactEnabled && c.ReportDir == "" {
		return fmt.Errorf("report directory is required when report output is enabled")
	}
	return nil
}

// ReportConfig is the part of the configuration the reporter needs
func (c Config) ReportConfig() report.Config {
	return report.Config{
		ArtifactsEnabled: c.OutputArtifactEnabled,
		Dir:              c.ReportDir,
		Formats:          c.Formats,
		HistoryPath:      c.HistoryPath,
		Environment:      c.Environment,
		Tags:             c.Tags.String(),
		Parallelism:      c.Parallelism,
	}
}
