package scenario

import (
	"context"
	"time"
)

// Kind identifies the variant of an Outcome
type Kind string

const (
	// KindSuccess indicates the scenario passed
	KindSuccess Kind = "success"
	// KindFailure indicates an expectation did not hold
	KindFailure Kind = "failure"
	// KindError indicates the scenario could not be executed as written
	KindError Kind = "error"
)

// Outcome is the result of executing one Unit
type Outcome struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message,omitempty"`
	// Cause is optional extra detail for KindError (wrapped error, stack trace)
	Cause string `json:"cause,omitempty"`
}

// Success returns a passing outcome
func Success() Outcome {
	return Outcome{Kind: KindSuccess}
}

// Failure returns an assertion-level failure outcome
func Failure(message string) Outcome {
	return Outcome{Kind: KindFailure, Message: message}
}

// Error returns an error outcome. cause may be empty.
func Error(message, cause string) Outcome {
	return Outcome{Kind: KindError, Message: message, Cause: cause}
}

// Passed reports whether the outcome is a success
func (o Outcome) Passed() bool {
	return o.Kind == KindSuccess
}

// RunFunc executes a scenario body. Implementations should honour ctx
// cancellation; the scheduler abandons bodies that outlive their timeout.
type RunFunc func(ctx context.Context) Outcome

// Unit is one executable scenario
type Unit struct {
	// ID uniquely identifies the unit within a discovery
	ID string
	// Name is the human-readable scenario name
	Name string
	// Feature is the name of the feature (file) the unit belongs to
	Feature string
	// Path is the feature file the unit was loaded from, relative to the root
	Path string
	// Tags are normalized tag names without a leading '@'
	Tags []string
	// Index is the position of the unit in discovery order
	Index int
	// Timeout overrides the scheduler default when positive
	Timeout time.Duration
	// Run executes the scenario
	Run RunFunc
}

// HasTag reports whether the unit carries the given normalized tag
func (u *Unit) HasTag(tag string) bool {
	for _, t := range u.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Result pairs a unit with the outcome of its single execution
type Result struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Feature  string        `json:"feature,omitempty"`
	Path     string        `json:"path,omitempty"`
	Tags     []string      `json:"tags,omitempty"`
	Index    int           `json:"index"`
	Outcome  Outcome       `json:"outcome"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
}

// NewResult builds a Result for unit u
func NewResult(u *Unit, outcome Outcome, started time.Time, duration time.Duration) Result {
	return Result{
		ID:       u.ID,
		Name:     u.Name,
		Feature:  u.Feature,
		Path:     u.Path,
		Tags:     u.Tags,
		Index:    u.Index,
		Outcome:  outcome,
		Started:  started,
		Duration: duration,
	}
}

// Source discovers scenario units below a root location
type Source interface {
	// Discover returns all units in discovery order or a *DiscoveryError
	Discover(ctx context.Context, root string) ([]*Unit, error)
}
