package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/spf13/cobra"

	"scenctl/internal/report"
	"scenctl/internal/runner"
	"scenctl/internal/scenario"
	"scenctl/internal/summary"
)

func TestSetVersion(t *testing.T) {
	originalVersion := rootCmd.Version
	defer func() { rootCmd.Version = originalVersion }()

	SetVersion("1.2.3-test")
	if rootCmd.Version != "1.2.3-test" {
		t.Errorf("Expected version to be 1.2.3-test, got %s", rootCmd.Version)
	}
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "scenctl" {
		t.Errorf("Expected Use to be 'scenctl', got %s", rootCmd.Use)
	}
	if rootCmd.Short == "" || rootCmd.Long == "" {
		t.Error("Expected Short and Long descriptions to be set")
	}
	if !rootCmd.SilenceUsage || !rootCmd.SilenceErrors {
		t.Error("Expected SilenceUsage and SilenceErrors to be true")
	}
	if rootCmd.PersistentFlags().Lookup("config") == nil {
		t.Error("Expected persistent --config flag")
	}
}

func TestSubcommands(t *testing.T) {
	found := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		found[c.Name()] = true
	}

	for _, expected := range []string{"run", "list", "history", "mcp-server", "version", "self-update"} {
		if !found[expected] {
			t.Errorf("Expected subcommand %s to be registered", expected)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	originalVersion := rootCmd.Version
	defer func() { rootCmd.Version = originalVersion }()
	rootCmd.Version = "1.0.0"

	var buf bytes.Buffer
	versionCmd := newVersionCmd()
	versionCmd.SetOut(&buf)
	versionCmd.SetArgs(nil)
	if err := versionCmd.Execute(); err != nil {
		t.Fatalf("Error executing version command: %v", err)
	}
	if buf.String() != "scenctl version 1.0.0\n" {
		t.Errorf("Unexpected version output %q", buf.String())
	}
}

func TestVersionTemplate(t *testing.T) {
	testCmd := &cobra.Command{Use: "test", Version: "1.0.0"}
	testCmd.SetVersionTemplate(`{{printf "scenctl version %s\n" .Version}}`)

	var buf bytes.Buffer
	testCmd.SetOut(&buf)
	testCmd.SetArgs([]string{"--version"})
	if err := testCmd.Execute(); err != nil {
		t.Fatalf("Error executing version flag: %v", err)
	}
	if buf.String() != "scenctl version 1.0.0\n" {
		t.Errorf("Unexpected version output %q", buf.String())
	}
}

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"plain error", errors.New("boom"), 1},
		{"usage error", usageError(errors.New("bad flag")), 2},
		{"discovery error", scenario.NewDiscoveryError("f.feature.yaml", "invalid feature file", errors.New("bad yaml")), 2},
		{"wrapped discovery error", fmt.Errorf("listing: %w", scenario.NewDiscoveryError("f", "invalid feature file", errors.New("x"))), 2},
		{"silent failure", &exitError{code: 1}, 1},
		{"report failure", &exitError{code: 3, err: errors.New("disk full")}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCodeFor(tt.err); got != tt.want {
				t.Errorf("exitCodeFor() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestExitErrorMessage(t *testing.T) {
	if got := (&exitError{code: 1}).Error(); got != "exit status 1" {
		t.Errorf("Unexpected message %q", got)
	}
	inner := errors.New("inner")
	ee := &exitError{code: 2, err: inner}
	if ee.Error() != "inner" || !errors.Is(ee, inner) {
		t.Errorf("exitError should expose the wrapped error, got %q", ee.Error())
	}
}

func TestResultError(t *testing.T) {
	passed := &runner.Result{Summary: summary.RunSummary{Total: 1, Passed: 1}}
	failed := &runner.Result{Summary: summary.RunSummary{Total: 1, Failed: 1}, Verdict: report.Fail}

	if err := resultError(passed, nil); err != nil {
		t.Errorf("Expected nil for a passing run, got %v", err)
	}

	err := resultError(failed, nil)
	var ee *exitError
	if !errors.As(err, &ee) || ee.code != runner.ExitFail || ee.err != nil {
		t.Errorf("Expected silent exit status 1, got %#v", err)
	}

	passedWithReportErr := &runner.Result{
		Summary:   summary.RunSummary{Total: 1, Passed: 1},
		ReportErr: errors.New("disk full"),
	}
	err = resultError(passedWithReportErr, nil)
	if !errors.As(err, &ee) || ee.code != runner.ExitReport {
		t.Errorf("Expected exit status 3, got %v", err)
	}

	err = resultError(nil, scenario.NewDiscoveryError("x.feature.yaml", "invalid feature file", errors.New("bad")))
	if exitCodeFor(err) != runner.ExitDiscovery {
		t.Errorf("Expected exit status 2 for discovery errors, got %d", exitCodeFor(err))
	}
}
