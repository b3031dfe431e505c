package report

import (
	"strings"

	"scenctl/internal/summary"
)

const (
	// FormatJSON selects the detailed JSON report file
	FormatJSON = "json"
	// FormatCucumber selects the Cucumber JSON report file
	FormatCucumber = "cucumber"
)

// Config is the run information a Reporter needs besides the summary
type Config struct {
	// ArtifactsEnabled turns on the file and history sinks
	ArtifactsEnabled bool
	// Dir is the directory report files are written to
	Dir string
	// Formats selects file sinks; empty means json only
	Formats []string
	// HistoryPath enables the SQLite history sink when set
	HistoryPath string
	// Environment is the selected environment name
	Environment string
	// Tags is the canonical tag expression of the run
	Tags string
	// Parallelism is the worker count of the run
	Parallelism int
}

// Document is the machine-readable form of a run, shared by the JSON
// console output and the JSON report file.
type Document struct {
	Tool        string  `json:"tool"`
	Verdict     Verdict `json:"verdict"`
	Environment string  `json:"environment,omitempty"`
	Tags        string  `json:"tags,omitempty"`
	Parallelism int     `json:"parallelism,omitempty"`
	summary.RunSummary
}

// NewDocument builds the Document for s
func NewDocument(s summary.RunSummary, cfg Config) Document {
	return Document{
		Tool:        "scenctl",
		Verdict:     VerdictOf(s),
		Environment: cfg.Environment,
		Tags:        cfg.Tags,
		Parallelism: cfg.Parallelism,
		RunSummary:  s,
	}
}

// ValidFormat reports whether name is a known report file format
func ValidFormat(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case FormatJSON, FormatCucumber:
		return true
	}
	return false
}
