// Package runner wires scenario discovery, tag selection, parallel
// execution, aggregation and reporting into a single run.
package runner

import (
	"context"
	"errors"
	"time"

	"scenctl/internal/report"
	"scenctl/internal/scenario"
	"scenctl/internal/scheduler"
	"scenctl/internal/summary"
	"scenctl/internal/tags"
	"scenctl/pkg/logging"
)

const subsystem = "Runner"

// Exit codes of a run
const (
	ExitPass      = 0
	ExitFail      = 1
	ExitDiscovery = 2
	ExitReport    = 3
)

// ErrInvalidConfig marks configuration errors found before discovery
var ErrInvalidConfig = errors.New("invalid run configuration")

// Reporter turns a summary into a verdict
type Reporter interface {
	Report(ctx context.Context, s summary.RunSummary, cfg report.Config) (report.Verdict, error)
}

// Observer is notified as scenarios start and finish. Methods are called
// from worker goroutines and must be safe for concurrent use.
type Observer interface {
	ScenarioStarted(u *scenario.Unit)
	ScenarioFinished(r scenario.Result)
}

// PlanObserver is an Observer that also wants the selected units before
// execution starts
type PlanObserver interface {
	ScenariosPlanned(units []*scenario.Unit)
}

// Result is the outcome of a completed run
type Result struct {
	Summary summary.RunSummary
	Verdict report.Verdict
	// ReportErr holds sink or output errors; they do not change the verdict
	ReportErr error
}

// ExitCode maps the result to a process exit status
func (r *Result) ExitCode() int {
	if r.Verdict != report.Pass {
		return ExitFail
	}
	if r.ReportErr != nil {
		return ExitReport
	}
	return ExitPass
}

// Runner executes scenario runs
type Runner struct {
	source    scenario.Source
	reporter  Reporter
	observers []Observer
	now       func() time.Time
}

// Option configures a Runner
type Option func(*Runner)

// WithObserver adds an observer of scenario progress
func WithObserver(o Observer) Option {
	return func(r *Runner) {
		if o != nil {
			r.observers = append(r.observers, o)
		}
	}
}

// WithClock sets the time source used for run timings
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// New creates a Runner
func New(source scenario.Source, reporter Reporter, opts ...Option) *Runner {
	r := &Runner{
		source:   source,
		reporter: reporter,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Select discovers the units below root and returns those matching expr in
// discovery order. Discovery failures are returned unchanged.
func (r *Runner) Select(ctx context.Context, root string, expr tags.Expression) ([]*scenario.Unit, error) {
	units, err := r.source.Discover(ctx, root)
	if err != nil {
		return nil, err
	}
	if expr.IsEmpty() {
		logging.Info(subsystem, "No tag expression, selecting all %d scenarios", len(units))
		return units, nil
	}
	selected := tags.Select(units, expr)
	logging.Info(subsystem, "Selected %d of %d scenarios (tags: %q)", len(selected), len(units), expr.String())
	return selected, nil
}

// Run discovers, filters, executes, aggregates and reports. An error is
// returned only for an invalid configuration or a failed discovery, in
// which case no scenario has been executed. Scenario failures are part of
// the returned Result.
func (r *Runner) Run(ctx context.Context, root string, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}

	selected, err := r.Select(ctx, root, cfg.Tags)
	if err != nil {
		logging.Error(subsystem, err, "Discovery failed")
		return nil, err
	}

	for _, o := range r.observers {
		if p, ok := o.(PlanObserver); ok {
			p.ScenariosPlanned(selected)
		}
	}

	execCtx := ctx
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	start := r.now()
	results := scheduler.Execute(execCtx, selected, scheduler.Options{
		Parallelism:    cfg.Parallelism,
		DefaultTimeout: cfg.ScenarioTimeout,
		OnStart: func(workerID int, u *scenario.Unit) {
			logging.Debug(subsystem, "Worker %d executing scenario: %s", workerID, u.ID)
			for _, o := range r.observers {
				o.ScenarioStarted(u)
			}
		},
		OnComplete: func(_ int, res scenario.Result) {
			for _, o := range r.observers {
				o.ScenarioFinished(res)
			}
		},
	})
	end := r.now()

	scheduler.SortByDiscovery(results)
	s := summary.Aggregate(results)
	s.StartTime = start
	s.EndTime = end
	s.Duration = end.Sub(start)

	logging.Info(subsystem, "Run finished: %d passed, %d failed, %d errors of %d",
		s.Passed, s.Failed, s.Errored, s.Total)

	// Reporting uses the caller's context so artifacts are still written
	// after the execution timeout fired.
	verdict, reportErr := r.reporter.Report(ctx, s, cfg.ReportConfig())
	if reportErr != nil {
		logging.Warn(subsystem, "Report output incomplete: %v", reportErr)
	}

	return &Result{Summary: s, Verdict: verdict, ReportErr: reportErr}, nil
}

// ExitCode maps the return values of Run to a process exit status
func ExitCode(res *Result, err error) int {
	if err != nil {
		return ExitDiscovery
	}
	if res == nil {
		return ExitFail
	}
	return res.ExitCode()
}
