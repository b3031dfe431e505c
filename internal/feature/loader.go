package feature

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"scenctl/internal/scenario"
	"scenctl/internal/tags"
	"scenctl/pkg/logging"
)

// Source discovers feature files below a root and turns their scenarios into
// executable units. It implements scenario.Source.
type Source struct {
	vars   map[string]string
	client *http.Client
}

// Option configures a Source
type Option func(*Source)

// WithHTTPClient sets the client used by HTTP steps
func WithHTTPClient(client *http.Client) Option {
	return func(s *Source) {
		s.client = client
	}
}

// NewSource creates a Source that expands placeholders from vars
func NewSource(vars map[string]string, opts ...Option) *Source {
	s := &Source{
		vars:   vars,
		client: &http.Client{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ scenario.Source = (*Source)(nil)

// IsFeatureFile reports whether name looks like a feature file
func IsFeatureFile(name string) bool {
	return strings.HasSuffix(name, ".feature.yaml") || strings.HasSuffix(name, ".feature.yml")
}

// FindFiles returns the feature files below root in lexical order. root may
// also be a single feature file.
func FindFiles(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{root}, nil
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if IsFeatureFile(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// LoadFile reads, validates and decodes a single feature file
func LoadFile(path string) (*Feature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feature %s: %w", path, err)
	}

	if err := ValidateFeature(data); err != nil {
		return nil, fmt.Errorf("feature %s: %w", path, err)
	}

	var f Feature
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse feature %s: %w", path, err)
	}
	return &f, nil
}

// Discover loads every feature file below root. It fails with a
// *scenario.DiscoveryError when root is unreadable, holds no scenarios, or
// any feature file is invalid.
func (s *Source) Discover(ctx context.Context, root string) ([]*scenario.Unit, error) {
	files, err := FindFiles(root)
	if err != nil {
		return nil, scenario.NewDiscoveryError(root, "unreadable scenario root", err)
	}
	if len(files) == 0 {
		return nil, scenario.NewDiscoveryError(root, "no feature files found", nil)
	}

	baseRoot := root
	if info, err := os.Stat(root); err == nil && !info.IsDir() {
		baseRoot = filepath.Dir(root)
	}

	var units []*scenario.Unit
	seen := make(map[string]bool)

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, scenario.NewDiscoveryError(root, "discovery interrupted", err)
		}

		f, err := LoadFile(path)
		if err != nil {
			return nil, scenario.NewDiscoveryError(root, "invalid feature file", err)
		}

		rel, err := filepath.Rel(baseRoot, path)
		if err != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)

		for _, sc := range f.Scenarios {
			id := rel + ":" + sc.Name
			if seen[id] {
				return nil, scenario.NewDiscoveryError(root, "duplicate scenario", fmt.Errorf("scenario id %q defined twice", id))
			}
			seen[id] = true

			units = append(units, s.buildUnit(f, sc, id, rel, filepath.Dir(path), len(units)))
		}

		logging.Debug(subsystem, "Loaded %d scenarios from %s", len(f.Scenarios), rel)
	}

	if len(units) == 0 {
		return nil, scenario.NewDiscoveryError(root, "no scenarios defined", nil)
	}

	return units, nil
}

func (s *Source) buildUnit(f *Feature, sc Scenario, id, rel, dir string, index int) *scenario.Unit {
	steps := make([]Step, 0, len(f.Background)+len(sc.Steps))
	steps = append(steps, f.Background...)
	steps = append(steps, sc.Steps...)

	x := &executor{
		client:  s.client,
		vars:    newExpander(s.vars),
		baseDir: dir,
	}

	return &scenario.Unit{
		ID:      id,
		Name:    sc.Name,
		Feature: f.Feature,
		Path:    rel,
		Tags:    mergeTags(f.Tags, sc.Tags),
		Index:   index,
		Timeout: sc.Timeout,
		Run: func(ctx context.Context) scenario.Outcome {
			return x.runSteps(ctx, steps)
		},
	}
}

// mergeTags normalizes and de-duplicates tags, keeping first occurrence order
func mergeTags(lists ...[]string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, list := range lists {
		for _, t := range list {
			n := tags.Normalize(t)
			if n == "" || seen[n] {
				continue
			}
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}
