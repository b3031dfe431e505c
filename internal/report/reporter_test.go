package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scenctl/internal/history"
	"scenctl/internal/scenario"
	"scenctl/internal/summary"
)

func result(id string, index int, o scenario.Outcome) scenario.Result {
	return scenario.Result{
		ID:       id,
		Name:     strings.TrimPrefix(id, "users.yaml:"),
		Feature:  "Users API",
		Path:     "users.yaml",
		Tags:     []string{"api"},
		Index:    index,
		Outcome:  o,
		Duration: 10 * time.Millisecond,
	}
}

func allPassing() summary.RunSummary {
	return summary.Aggregate([]scenario.Result{
		result("users.yaml:a", 0, scenario.Success()),
		result("users.yaml:b", 1, scenario.Success()),
		result("users.yaml:c", 2, scenario.Success()),
	})
}

func oneFailing() summary.RunSummary {
	return summary.Aggregate([]scenario.Result{
		result("users.yaml:a", 0, scenario.Success()),
		result("users.yaml:b", 1, scenario.Failure("expected 5 got 4")),
		result("users.yaml:c", 2, scenario.Success()),
	})
}

type flushBuffer struct {
	bytes.Buffer
	flushed bool
}

func (b *flushBuffer) Flush() error {
	b.flushed = true
	return nil
}

type fakeSink struct {
	name  string
	loc   string
	err   error
	calls int
}

func (s *fakeSink) Name() string { return s.name }

func (s *fakeSink) Write(context.Context, summary.RunSummary, Config) (string, error) {
	s.calls++
	return s.loc, s.err
}

func TestVerdict(t *testing.T) {
	assert.Equal(t, Pass, VerdictOf(allPassing()))
	assert.Equal(t, 0, Pass.ExitCode())
	assert.Equal(t, Fail, VerdictOf(oneFailing()))
	assert.Equal(t, 1, Fail.ExitCode())
	assert.Equal(t, Pass, VerdictOf(summary.Aggregate(nil)), "an empty run passes")

	text, err := Fail.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "fail", string(text))
}

func TestVerdict_UnmarshalText(t *testing.T) {
	var v Verdict
	require.NoError(t, v.UnmarshalText([]byte("fail")))
	assert.Equal(t, Fail, v)
	require.NoError(t, v.UnmarshalText([]byte("pass")))
	assert.Equal(t, Pass, v)
	assert.Error(t, v.UnmarshalText([]byte("maybe")))

	var doc struct {
		Verdict Verdict `json:"verdict"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"verdict":"fail"}`), &doc))
	assert.Equal(t, Fail, doc.Verdict)
}

func TestReport_AllSuccess(t *testing.T) {
	out := &flushBuffer{}
	r := New(out)

	verdict, err := r.Report(context.Background(), allPassing(), Config{Environment: "dev", Parallelism: 2})
	require.NoError(t, err)

	assert.Equal(t, Pass, verdict)
	assert.Equal(t, 0, verdict.ExitCode())
	assert.True(t, out.flushed, "writer must be flushed before Report returns")

	text := out.String()
	assert.Contains(t, text, "Environment: Dev")
	assert.Contains(t, text, "Passed: 3")
	assert.Contains(t, text, "Total: 3")
	assert.Contains(t, text, "Verdict: Pass")
	assert.NotContains(t, text, "Failures:")
}

func TestReport_SingleFailure(t *testing.T) {
	out := &flushBuffer{}
	s := oneFailing()
	require.Equal(t, []string{"users.yaml:b: expected 5 got 4"}, s.FailureMessages)

	verdict, err := New(out).Report(context.Background(), s, Config{})
	require.NoError(t, err)

	assert.Equal(t, Fail, verdict)
	assert.NotEqual(t, 0, verdict.ExitCode())
	assert.Contains(t, out.String(), "Failed: 1")
	assert.Contains(t, out.String(), "users.yaml:b: expected 5 got 4")
	assert.Contains(t, out.String(), "Verdict: Fail")
}

func TestReport_ScenariosInDiscoveryOrder(t *testing.T) {
	s := summary.Aggregate([]scenario.Result{
		result("users.yaml:third", 2, scenario.Success()),
		result("users.yaml:first", 0, scenario.Error("panic: boom", "")),
		result("users.yaml:second", 1, scenario.Success()),
	})

	var out bytes.Buffer
	_, err := New(&out).Report(context.Background(), s, Config{})
	require.NoError(t, err)

	text := out.String()
	first := strings.Index(text, "users.yaml:first")
	second := strings.Index(text, "users.yaml:second")
	third := strings.Index(text, "users.yaml:third")
	require.True(t, first >= 0 && second >= 0 && third >= 0)
	assert.Less(t, first, second)
	assert.Less(t, second, third)
	assert.Contains(t, text, "Errors: 1")
}

func TestReport_Quiet(t *testing.T) {
	var out bytes.Buffer
	_, err := New(&out, WithStyle(StyleQuiet)).Report(context.Background(), oneFailing(), Config{})
	require.NoError(t, err)

	assert.Equal(t, "❌ users.yaml:b: expected 5 got 4\n❌ 1/3 scenarios failed\n", out.String())

	out.Reset()
	_, err = New(&out, WithStyle(StyleQuiet)).Report(context.Background(), allPassing(), Config{})
	require.NoError(t, err)
	assert.Equal(t, "✅ All 3 scenarios passed\n", out.String())
}

func TestReport_JSON(t *testing.T) {
	var out bytes.Buffer
	verdict, err := New(&out, WithStyle(StyleJSON)).Report(context.Background(), oneFailing(),
		Config{Environment: "dev", Tags: "@api"})
	require.NoError(t, err)
	assert.Equal(t, Fail, verdict)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &doc))
	assert.Equal(t, "fail", doc["verdict"])
	assert.Equal(t, "dev", doc["environment"])
	assert.EqualValues(t, 3, doc["total"])
	assert.EqualValues(t, 1, doc["failed"])
	assert.Equal(t, []any{"users.yaml:b: expected 5 got 4"}, doc["failure_messages"])
}

func TestReport_SinksOnlyWhenEnabled(t *testing.T) {
	sink := &fakeSink{name: "fake", loc: "somewhere"}

	var out bytes.Buffer
	_, err := New(&out, WithSinks(sink)).Report(context.Background(), allPassing(), Config{})
	require.NoError(t, err)
	assert.Equal(t, 0, sink.calls)

	_, err = New(&out, WithSinks(sink)).Report(context.Background(), allPassing(), Config{ArtifactsEnabled: true})
	require.NoError(t, err)
	assert.Equal(t, 1, sink.calls)
	assert.Contains(t, out.String(), "Report saved to: somewhere")
}

func TestReport_SinkErrorsJoinedVerdictUnchanged(t *testing.T) {
	errA := errors.New("disk full")
	errB := errors.New("database locked")
	ok := &fakeSink{name: "ok", loc: "fine.json"}
	a := &fakeSink{name: "a", err: errA}
	b := &fakeSink{name: "b", err: errB}

	out := &flushBuffer{}
	verdict, err := New(out, WithSinks(a, ok, b)).Report(context.Background(), allPassing(), Config{ArtifactsEnabled: true})

	assert.Equal(t, Pass, verdict)
	require.Error(t, err)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.Equal(t, 1, ok.calls)
	assert.True(t, out.flushed)
	assert.Contains(t, out.String(), "Failed to save report")
}

func TestReport_FileSinks(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	clock := func() time.Time { return time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC) }

	var out bytes.Buffer
	cfg := Config{
		ArtifactsEnabled: true,
		Dir:              dir,
		Formats:          []string{"json", "cucumber", "json"},
		HistoryPath:      filepath.Join(dir, "history.db"),
		Environment:      "dev",
	}
	verdict, err := New(&out, WithClock(clock)).Report(context.Background(), oneFailing(), cfg)
	require.NoError(t, err)
	assert.Equal(t, Fail, verdict)

	data, err := os.ReadFile(filepath.Join(dir, "scenctl-test-report-20260506-070809.json"))
	require.NoError(t, err)
	var doc Document
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, 3, doc.Total)
	assert.Equal(t, "dev", doc.Environment)

	data, err = os.ReadFile(filepath.Join(dir, "scenctl-cucumber-20260506-070809.json"))
	require.NoError(t, err)
	var features []CucumberFeature
	require.NoError(t, json.Unmarshal(data, &features))
	require.Len(t, features, 1)
	assert.Len(t, features[0].Elements, 3)

	store, err := history.Open(cfg.HistoryPath)
	require.NoError(t, err)
	defer store.Close()
	runs, err := store.Recent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "fail", runs[0].Verdict)
	assert.Equal(t, []string{"users.yaml:b: expected 5 got 4"}, runs[0].Failures)
}

func TestReport_UnknownFormat(t *testing.T) {
	var out bytes.Buffer
	verdict, err := New(&out).Report(context.Background(), allPassing(),
		Config{ArtifactsEnabled: true, Dir: t.TempDir(), Formats: []string{"xml"}})
	assert.Equal(t, Pass, verdict)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown report format "xml"`)
}

func TestCucumberFeatures(t *testing.T) {
	s := summary.Aggregate([]scenario.Result{
		{ID: "a.yaml:one", Name: "one", Feature: "Alpha", Path: "a.yaml", Index: 0, Tags: []string{"smoke"}, Outcome: scenario.Success()},
		{ID: "b.yaml:two", Name: "two", Feature: "Beta", Path: "b.yaml", Index: 1, Outcome: scenario.Failure("expected 5 got 4")},
		{ID: "a.yaml:three", Name: "three", Feature: "Alpha", Path: "a.yaml", Index: 2, Outcome: scenario.Error("boom", "stack\nmore")},
	})

	features := CucumberFeatures(s)
	require.Len(t, features, 2)

	assert.Equal(t, "a.yaml", features[0].URI)
	assert.Equal(t, "alpha", features[0].ID)
	require.Len(t, features[0].Elements, 2)
	assert.Equal(t, "alpha;one", features[0].Elements[0].ID)
	assert.Equal(t, []cucumberTag{{Name: "@smoke", Line: 1}}, features[0].Elements[0].Tags)
	assert.Equal(t, "passed", features[0].Elements[0].Steps[0].Result.Status)
	assert.Equal(t, "failed", features[0].Elements[1].Steps[0].Result.Status)
	assert.Equal(t, "a.yaml:three: boom: stack", features[0].Elements[1].Steps[0].Result.ErrorMessage)

	assert.Equal(t, "Beta", features[1].Name)
	assert.Equal(t, "b.yaml:two: expected 5 got 4", features[1].Elements[0].Steps[0].Result.ErrorMessage)
}

func TestFlushSyncErrorIgnored(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer f.Close()
	assert.NoError(t, flush(f))
}
