package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/mattn/go-runewidth"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"scenctl/internal/scenario"
	"scenctl/internal/summary"
	"scenctl/pkg/logging"
)

// Style selects how a Reporter renders to its writer
type Style int

const (
	// StyleConsole is the human-readable summary
	StyleConsole Style = iota
	// StyleQuiet prints failures and a one-line result only
	StyleQuiet
	// StyleJSON prints the run Document as JSON
	StyleJSON
)

// maxIDWidth caps the scenario id column
const maxIDWidth = 60

// Reporter renders a RunSummary, persists it to the configured sinks and
// derives the run verdict.
type Reporter struct {
	out     io.Writer
	style   Style
	verbose bool
	now     func() time.Time
	sinks   []Sink
	custom  bool
	colors  palette
	title   cases.Caser

	mu sync.Mutex
}

// Option configures a Reporter
type Option func(*Reporter)

// WithStyle selects console, quiet or JSON output
func WithStyle(s Style) Option {
	return func(r *Reporter) { r.style = s }
}

// WithVerbose prints scenario progress lines while the run is going
func WithVerbose(v bool) Option {
	return func(r *Reporter) { r.verbose = v }
}

// WithSinks replaces the sinks selected from Config. They still run only
// when artifacts are enabled.
func WithSinks(sinks ...Sink) Option {
	return func(r *Reporter) {
		r.sinks = sinks
		r.custom = true
	}
}

// WithClock sets the time source used for report file names
func WithClock(now func() time.Time) Option {
	return func(r *Reporter) { r.now = now }
}

// New creates a Reporter writing to out
func New(out io.Writer, opts ...Option) *Reporter {
	r := &Reporter{
		out:   out,
		style: StyleConsole,
		now:   time.Now,
		title: cases.Title(language.English),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.colors = newPalette(out)
	return r
}

// ScenariosPlanned is called once the selected scenarios are known
func (r *Reporter) ScenariosPlanned(units []*scenario.Unit) {
	if !r.verbose || r.style != StyleConsole {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "🧪 Running %d scenarios\n", len(units))
}

// ScenarioStarted is called by workers when a scenario begins
func (r *Reporter) ScenarioStarted(u *scenario.Unit) {
	if !r.verbose || r.style != StyleConsole {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "🎯 Starting scenario: %s\n", u.ID)
}

// ScenarioFinished is called by workers when a scenario completes
func (r *Reporter) ScenarioFinished(res scenario.Result) {
	if !r.verbose || r.style != StyleConsole {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "%s %s (%v)\n", r.symbol(res.Outcome.Kind), res.ID, res.Duration.Round(time.Millisecond))
	if !res.Outcome.Passed() {
		fmt.Fprintf(r.out, "   %s\n", summary.FormatFailure(res.ID, res.Outcome))
	}
}

// Report writes the summary, persists it to every enabled sink and returns
// the verdict. Sink errors are joined and returned next to the verdict; the
// verdict depends on the summary alone. The writer is flushed before return.
func (r *Reporter) Report(ctx context.Context, s summary.RunSummary, cfg Config) (Verdict, error) {
	verdict := VerdictOf(s)

	r.mu.Lock()
	defer r.mu.Unlock()

	s.Scenarios = sortedRecords(s.Scenarios)

	var errs []error
	switch r.style {
	case StyleJSON:
		if err := r.writeJSON(s, cfg); err != nil {
			errs = append(errs, err)
		}
	case StyleQuiet:
		r.writeQuiet(s, verdict)
	default:
		r.writeConsole(s, cfg, verdict)
	}

	locations, sinkErr := r.runSinks(ctx, s, cfg)
	if sinkErr != nil {
		errs = append(errs, sinkErr)
	}
	if r.style == StyleConsole {
		for _, loc := range locations {
			fmt.Fprintf(r.out, "📄 Report saved to: %s\n", loc)
		}
	}
	if sinkErr != nil && r.style != StyleJSON {
		fmt.Fprintf(r.out, "⚠️  Failed to save report: %v\n", sinkErr)
	}

	if err := flush(r.out); err != nil {
		errs = append(errs, fmt.Errorf("failed to flush report output: %w", err))
	}

	return verdict, errors.Join(errs...)
}

// runSinks writes every sink concurrently and joins their errors
func (r *Reporter) runSinks(ctx context.Context, s summary.RunSummary, cfg Config) ([]string, error) {
	if !cfg.ArtifactsEnabled {
		return nil, nil
	}

	sinks := r.sinks
	if !r.custom {
		var err error
		sinks, err = sinksFor(cfg, r.now)
		if err != nil {
			return nil, err
		}
	}

	locations := make([]string, len(sinks))
	errs := make([]error, len(sinks))

	var g errgroup.Group
	for i, sink := range sinks {
		g.Go(func() error {
			loc, err := sink.Write(ctx, s, cfg)
			if err != nil {
				logging.Error("Report", err, "Sink %s failed", sink.Name())
				errs[i] = fmt.Errorf("%s: %w", sink.Name(), err)
				return nil
			}
			logging.Debug("Report", "Sink %s wrote %s", sink.Name(), loc)
			locations[i] = loc
			return nil
		})
	}
	_ = g.Wait()

	written := make([]string, 0, len(locations))
	for _, loc := range locations {
		if loc != "" {
			written = append(written, loc)
		}
	}
	return written, errors.Join(errs...)
}

func (r *Reporter) writeConsole(s summary.RunSummary, cfg Config, verdict Verdict) {
	w := r.out
	c := r.colors

	fmt.Fprintf(w, "\n%s\n", c.heading.Render("🏁 Scenario Run Complete"))
	if cfg.Environment != "" {
		fmt.Fprintf(w, "🌍 Environment: %s\n", r.title.String(cfg.Environment))
	}
	if cfg.Tags != "" {
		fmt.Fprintf(w, "🏷️  Tags: %s\n", cfg.Tags)
	}
	if cfg.Parallelism > 0 {
		fmt.Fprintf(w, "⚙️  Parallel workers: %d\n", cfg.Parallelism)
	}
	fmt.Fprintf(w, "⏱️  Duration: %v\n", s.Duration.Round(time.Millisecond))

	if len(s.Scenarios) == 0 {
		fmt.Fprintf(w, "%s\n", c.muted.Render("∅ No scenarios matched"))
	} else {
		fmt.Fprintf(w, "📋 Scenarios:\n")
		width := idColumnWidth(s.Scenarios)
		for _, rec := range s.Scenarios {
			id := runewidth.FillRight(runewidth.Truncate(rec.ID, width, "…"), width)
			fmt.Fprintf(w, "   %s %s  %s\n", r.symbol(rec.Kind), id,
				c.muted.Render(fmt.Sprintf("(%v)", rec.Duration.Round(time.Millisecond))))
		}
	}

	fmt.Fprintf(w, "📊 Results:\n")
	fmt.Fprintf(w, "   ✅ Passed: %d\n", s.Passed)
	if s.Failed > 0 {
		fmt.Fprintf(w, "   ❌ Failed: %d\n", s.Failed)
	}
	if s.Errored > 0 {
		fmt.Fprintf(w, "   💥 Errors: %d\n", s.Errored)
	}
	fmt.Fprintf(w, "   📈 Total: %d\n", s.Total)
	fmt.Fprintf(w, "   📏 Success Rate: %.1f%%\n", s.SuccessRate())

	if len(s.FailureMessages) > 0 {
		fmt.Fprintf(w, "❗ Failures:\n")
		for _, msg := range s.FailureMessages {
			fmt.Fprintf(w, "   • %s\n", msg)
		}
	}

	label := fmt.Sprintf("Verdict: %s", r.title.String(verdict.String()))
	if verdict == Pass {
		fmt.Fprintf(w, "\n%s\n", c.success.Render("🎉 All scenarios passed! "+label))
	} else {
		fmt.Fprintf(w, "\n%s\n", c.failure.Render("💔 Some scenarios failed. "+label))
	}
}

func (r *Reporter) writeQuiet(s summary.RunSummary, verdict Verdict) {
	for _, msg := range s.FailureMessages {
		fmt.Fprintf(r.out, "❌ %s\n", msg)
	}
	if verdict == Pass {
		fmt.Fprintf(r.out, "✅ All %d scenarios passed\n", s.Passed)
	} else {
		fmt.Fprintf(r.out, "❌ %d/%d scenarios failed\n", s.Failed+s.Errored, s.Total)
	}
}

func (r *Reporter) writeJSON(s summary.RunSummary, cfg Config) error {
	jsonData, err := json.MarshalIndent(NewDocument(s, cfg), "", "  ")
	if err != nil {
		fmt.Fprintf(r.out, `{"error": "Failed to marshal results: %v"}`+"\n", err)
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	fmt.Fprintln(r.out, string(jsonData))
	return nil
}

// symbol returns the colored symbol for a scenario outcome
func (r *Reporter) symbol(k scenario.Kind) string {
	switch k {
	case scenario.KindSuccess:
		return r.colors.success.Render("✅")
	case scenario.KindFailure:
		return r.colors.failure.Render("❌")
	case scenario.KindError:
		return r.colors.errored.Render("💥")
	default:
		return "❓"
	}
}

func idColumnWidth(records []summary.ScenarioRecord) int {
	width := 0
	for _, rec := range records {
		if w := runewidth.StringWidth(rec.ID); w > width {
			width = w
		}
	}
	if width > maxIDWidth {
		width = maxIDWidth
	}
	return width
}

// sortedRecords returns a copy of records in discovery order
func sortedRecords(records []summary.ScenarioRecord) []summary.ScenarioRecord {
	out := append([]summary.ScenarioRecord(nil), records...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// flush pushes buffered output to its destination. Sync errors from
// terminals and pipes, which cannot be synced, are ignored.
func flush(w io.Writer) error {
	switch f := w.(type) {
	case interface{ Flush() error }:
		return f.Flush()
	case interface{ Sync() error }:
		if err := f.Sync(); err != nil {
			logging.Debug("Report", "Sync of report output failed: %v", err)
		}
	}
	return nil
}
