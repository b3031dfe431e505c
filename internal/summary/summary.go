// Package summary folds scenario results into a RunSummary.
package summary

import (
	"fmt"
	"strings"
	"time"

	"scenctl/internal/scenario"
)

// ScenarioRecord is the per-scenario line of a RunSummary
type ScenarioRecord struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Feature  string        `json:"feature,omitempty"`
	Path     string        `json:"path,omitempty"`
	Tags     []string      `json:"tags,omitempty"`
	Index    int           `json:"index"`
	Kind     scenario.Kind `json:"kind"`
	Message  string        `json:"message,omitempty"`
	Cause    string        `json:"cause,omitempty"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
}

// Outcome rebuilds the scenario outcome of the record
func (r ScenarioRecord) Outcome() scenario.Outcome {
	return scenario.Outcome{Kind: r.Kind, Message: r.Message, Cause: r.Cause}
}

// RunSummary holds the aggregate counts and failure detail of one run
type RunSummary struct {
	Total           int              `json:"total"`
	Passed          int              `json:"passed"`
	Failed          int              `json:"failed"`
	Errored         int              `json:"errored"`
	FailureMessages []string         `json:"failure_messages"`
	Scenarios       []ScenarioRecord `json:"scenarios"`
	StartTime       time.Time        `json:"start_time"`
	EndTime         time.Time        `json:"end_time"`
	Duration        time.Duration    `json:"duration"`
}

// Aggregate builds a RunSummary from results in a single pass. It is pure:
// the same input always yields the same summary. Timing fields are left for
// the caller to fill.
func Aggregate(results []scenario.Result) RunSummary {
	s := RunSummary{
		FailureMessages: make([]string, 0),
		Scenarios:       make([]ScenarioRecord, 0, len(results)),
	}

	for _, r := range results {
		s.Total++
		switch r.Outcome.Kind {
		case scenario.KindSuccess:
			s.Passed++
		case scenario.KindFailure:
			s.Failed++
			s.FailureMessages = append(s.FailureMessages, FormatFailure(r.ID, r.Outcome))
		default:
			s.Errored++
			s.FailureMessages = append(s.FailureMessages, FormatFailure(r.ID, r.Outcome))
		}

		var tags []string
		if len(r.Tags) > 0 {
			tags = append([]string(nil), r.Tags...)
		}
		s.Scenarios = append(s.Scenarios, ScenarioRecord{
			ID:       r.ID,
			Name:     r.Name,
			Feature:  r.Feature,
			Path:     r.Path,
			Tags:     tags,
			Index:    r.Index,
			Kind:     r.Outcome.Kind,
			Message:  r.Outcome.Message,
			Cause:    r.Outcome.Cause,
			Started:  r.Started,
			Duration: r.Duration,
		})
	}

	return s
}

// FormatFailure renders the failure line for a non-successful outcome:
// "<id>: <message>", followed by the first line of the cause for errors.
// Stack traces are left out so the line is stable between runs.
func FormatFailure(id string, o scenario.Outcome) string {
	msg := o.Message
	if msg == "" {
		msg = string(o.Kind)
	}
	line := fmt.Sprintf("%s: %s", id, msg)
	if o.Kind == scenario.KindError && o.Cause != "" && !isStackTrace(o.Cause) {
		cause, _, _ := strings.Cut(o.Cause, "\n")
		if cause = strings.TrimSpace(cause); cause != "" {
			line += ": " + cause
		}
	}
	return line
}

// isStackTrace reports whether cause is a goroutine dump from debug.Stack
func isStackTrace(cause string) bool {
	return strings.HasPrefix(cause, "goroutine ")
}

// Succeeded reports whether the run had no failures and no errors
func (s RunSummary) Succeeded() bool {
	return s.Failed == 0 && s.Errored == 0
}

// SuccessRate is the percentage of passed scenarios
func (s RunSummary) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Passed) / float64(s.Total) * 100
}
