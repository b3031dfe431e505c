package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"scenctl/internal/history"
	"scenctl/internal/scenario"
	"scenctl/internal/summary"
)

// Sink persists a run outside the console
type Sink interface {
	// Name identifies the sink in messages
	Name() string
	// Write stores the run and returns where it went
	Write(ctx context.Context, s summary.RunSummary, cfg Config) (string, error)
}

// sinksFor returns the sinks selected by cfg in a stable order
func sinksFor(cfg Config, now func() time.Time) ([]Sink, error) {
	if !cfg.ArtifactsEnabled {
		return nil, nil
	}

	formats := cfg.Formats
	if len(formats) == 0 {
		formats = []string{FormatJSON}
	}

	var sinks []Sink
	seen := make(map[string]bool)
	for _, f := range formats {
		f = strings.ToLower(strings.TrimSpace(f))
		if seen[f] {
			continue
		}
		seen[f] = true
		switch f {
		case FormatJSON:
			sinks = append(sinks, &jsonFileSink{now: now})
		case FormatCucumber:
			sinks = append(sinks, &cucumberSink{now: now})
		default:
			return nil, fmt.Errorf("unknown report format %q", f)
		}
	}
	if cfg.HistoryPath != "" {
		sinks = append(sinks, &historySink{})
	}
	return sinks, nil
}

// reportFileName builds "scenctl-<kind>-<timestamp>.json"
func reportFileName(kind string, t time.Time) string {
	return fmt.Sprintf("scenctl-%s-%s.json", kind, t.Format("20060102-150405"))
}

func writeJSONFile(dir, name string, v any) (string, error) {
	if dir == "" {
		dir = "."
	}
	// Create report directory if it doesn't exist
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report to JSON: %w", err)
	}

	fullPath := filepath.Join(dir, name)
	if err := os.WriteFile(fullPath, jsonData, 0644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}
	return fullPath, nil
}

// jsonFileSink saves the detailed JSON report
type jsonFileSink struct {
	now func() time.Time
}

func (s *jsonFileSink) Name() string { return "json report" }

func (s *jsonFileSink) Write(_ context.Context, sum summary.RunSummary, cfg Config) (string, error) {
	return writeJSONFile(cfg.Dir, reportFileName("test-report", s.now()), NewDocument(sum, cfg))
}

// cucumberSink saves a Cucumber JSON report, one element per feature file
type cucumberSink struct {
	now func() time.Time
}

func (s *cucumberSink) Name() string { return "cucumber report" }

func (s *cucumberSink) Write(_ context.Context, sum summary.RunSummary, cfg Config) (string, error) {
	return writeJSONFile(cfg.Dir, reportFileName("cucumber", s.now()), CucumberFeatures(sum))
}

// historySink appends the run to the SQLite history
type historySink struct{}

func (s *historySink) Name() string { return "history" }

func (s *historySink) Write(ctx context.Context, sum summary.RunSummary, cfg Config) (string, error) {
	store, err := history.Open(cfg.HistoryPath)
	if err != nil {
		return "", err
	}
	defer store.Close()

	id, err := store.Record(ctx, history.NewRun(sum, VerdictOf(sum).String(), cfg.Environment, cfg.Tags, cfg.Parallelism))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s (run #%d)", cfg.HistoryPath, id), nil
}

// Cucumber JSON document types

type cucumberTag struct {
	Name string `json:"name"`
	Line int    `json:"line"`
}

type cucumberResult struct {
	Status       string `json:"status"`
	Duration     int64  `json:"duration"`
	ErrorMessage string `json:"error_message,omitempty"`
}

type cucumberStep struct {
	Keyword string         `json:"keyword"`
	Name    string         `json:"name"`
	Line    int            `json:"line"`
	Result  cucumberResult `json:"result"`
}

type cucumberElement struct {
	ID          string         `json:"id"`
	Keyword     string         `json:"keyword"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Line        int            `json:"line"`
	Type        string         `json:"type"`
	Tags        []cucumberTag  `json:"tags"`
	Steps       []cucumberStep `json:"steps"`
}

// CucumberFeature is one feature entry of a Cucumber JSON report
type CucumberFeature struct {
	URI         string            `json:"uri"`
	ID          string            `json:"id"`
	Keyword     string            `json:"keyword"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Line        int               `json:"line"`
	Elements    []cucumberElement `json:"elements"`
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func slug(s string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

// CucumberFeatures groups scenario records by feature file, keeping the
// order in which files first appear. Each scenario becomes one element with
// a single step carrying its outcome.
func CucumberFeatures(sum summary.RunSummary) []CucumberFeature {
	features := make([]CucumberFeature, 0)
	byURI := make(map[string]int)

	for _, rec := range sum.Scenarios {
		uri := rec.Path
		if uri == "" {
			uri = rec.ID
		}
		idx, ok := byURI[uri]
		if !ok {
			name := rec.Feature
			if name == "" {
				name = uri
			}
			features = append(features, CucumberFeature{
				URI:      uri,
				ID:       slug(name),
				Keyword:  "Feature",
				Name:     name,
				Line:     1,
				Elements: make([]cucumberElement, 0),
			})
			idx = len(features) - 1
			byURI[uri] = idx
		}

		f := &features[idx]
		line := rec.Index + 1
		tags := make([]cucumberTag, 0, len(rec.Tags))
		for _, t := range rec.Tags {
			tags = append(tags, cucumberTag{Name: "@" + t, Line: line})
		}

		result := cucumberResult{Status: "passed", Duration: rec.Duration.Nanoseconds()}
		if rec.Kind != scenario.KindSuccess {
			result.Status = "failed"
			result.ErrorMessage = summary.FormatFailure(rec.ID, rec.Outcome())
		}

		f.Elements = append(f.Elements, cucumberElement{
			ID:      f.ID + ";" + slug(rec.Name),
			Keyword: "Scenario",
			Name:    rec.Name,
			Line:    line,
			Type:    "scenario",
			Tags:    tags,
			Steps: []cucumberStep{{
				Keyword: "* ",
				Name:    rec.Name,
				Line:    line,
				Result:  result,
			}},
		})
	}
	return features
}
