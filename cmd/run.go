package cmd

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"scenctl/internal/config"
	"scenctl/internal/feature"
	"scenctl/internal/progress"
	"scenctl/internal/report"
	"scenctl/internal/runner"
	"scenctl/internal/tags"
	"scenctl/internal/watch"
	"scenctl/pkg/logging"
)

// runOptions holds the flags of the run command
type runOptions struct {
	tags            []string
	parallel        int
	report          bool
	reportDir       string
	formats         []string
	history         string
	env             string
	timeout         time.Duration
	scenarioTimeout time.Duration
	verbose         bool
	debug           bool
	logLevelName    string
	insecure        bool
	quiet           bool
	json            bool
	watch           bool
	tui             bool
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run [root]",
		Short: "Run the scenarios selected by a tag expression",
		Long: `The run command discovers feature files below root (default: the configured
root, "features"), selects scenarios with --tags, executes them with
--parallel workers and prints a summary with every failure.

Tag expressions:
  @smoke            scenarios tagged smoke
  ~@skipme          scenarios not tagged skipme
  @api,@ui          scenarios tagged api or ui
  --tags @api --tags ~@slow   both terms must hold

Exit status:
  0  all selected scenarios passed
  1  at least one scenario failed or errored
  2  discovery or configuration error, nothing was executed
  3  all scenarios passed but a report could not be written

Example usage:
  scenctl run                                  # Run everything below ./features
  scenctl run e2e --tags @api --tags ~@skipme  # Select by tags
  scenctl run --parallel 8 --env qa            # 8 workers, qa variables
  scenctl run --report --format json,cucumber  # Write report files
  scenctl run --report=false                   # Skip configured reports
  scenctl run --watch                          # Re-run on feature file changes`,
		Args: cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if _, err := opts.logLevel(); err != nil {
				return usageError(err)
			}
			if cmd.Flags().Changed("parallel") && (opts.parallel < 1 || opts.parallel > runner.MaxParallelism) {
				return usageError(fmt.Errorf("parallel workers must be between 1 and %d, got %d", runner.MaxParallelism, opts.parallel))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(cmd, args, opts)
		},
	}

	// Scenario selection and execution
	cmd.Flags().StringArrayVar(&opts.tags, "tags", nil, "Tag expression term; repeat to AND terms (e.g. --tags @api --tags ~@skipme)")
	cmd.Flags().IntVar(&opts.parallel, "parallel", config.DefaultParallel, fmt.Sprintf("Number of parallel workers (1-%d)", runner.MaxParallelism))
	cmd.Flags().StringVar(&opts.env, "env", config.DefaultEnvironment, "Environment whose variables expand ${name} placeholders")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Overall execution timeout (0 uses the configured value)")
	cmd.Flags().DurationVar(&opts.scenarioTimeout, "scenario-timeout", 0, "Timeout for scenarios without their own")

	// Reporting
	cmd.Flags().BoolVar(&opts.report, "report", false, "Write report files and history (use --report=false to disable a configured report)")
	cmd.Flags().StringVar(&opts.reportDir, "report-dir", "", "Directory for report files")
	cmd.Flags().StringSliceVar(&opts.formats, "format", nil, "Report file formats: json, cucumber")
	cmd.Flags().StringVar(&opts.history, "history", "", "SQLite database recording run history")

	// Output and debugging
	cmd.Flags().BoolVar(&opts.verbose, "verbose", false, "Print scenario progress and info logs")
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&opts.logLevelName, "log-level", "", "Log level: debug, info, warn or error (overrides --verbose and --debug)")
	cmd.Flags().BoolVar(&opts.insecure, "insecure-skip-tls-verify", false, "Do not verify TLS certificates in HTTP steps")
	cmd.Flags().BoolVar(&opts.quiet, "quiet", false, "Only print failures and the final result")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print the run result as JSON")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "Re-run when feature files change")
	cmd.Flags().BoolVar(&opts.tui, "tui", false, "Show a live progress view")

	cmd.MarkFlagsMutuallyExclusive("quiet", "json")
	cmd.MarkFlagsMutuallyExclusive("tui", "json")
	cmd.MarkFlagsMutuallyExclusive("tui", "watch")

	_ = cmd.RegisterFlagCompletionFunc("format", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{report.FormatJSON, report.FormatCucumber}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

// logLevel picks the log level from the output flags
func (o *runOptions) logLevel() (logging.LogLevel, error) {
	switch {
	case o.logLevelName != "":
		return logging.ParseLevel(o.logLevelName)
	case o.debug:
		return logging.LevelDebug, nil
	case o.verbose:
		return logging.LevelInfo, nil
	default:
		return logging.LevelWarn, nil
	}
}

// sourceOptions configures how feature steps reach the network
func (o *runOptions) sourceOptions() []feature.Option {
	if !o.insecure {
		return nil
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	return []feature.Option{feature.WithHTTPClient(&http.Client{Transport: transport})}
}

func (o *runOptions) style() report.Style {
	switch {
	case o.json:
		return report.StyleJSON
	case o.quiet:
		return report.StyleQuiet
	default:
		return report.StyleConsole
	}
}

// buildRunConfig layers explicitly set flags over the loaded configuration
func buildRunConfig(cmd *cobra.Command, args []string, opts *runOptions, cfg config.ScenctlConfig) (runner.Config, string, error) {
	flags := cmd.Flags()

	root := cfg.Root
	if len(args) > 0 {
		root = args[0]
	}

	rc := runner.Config{
		Parallelism:           cfg.Parallel,
		OutputArtifactEnabled: cfg.Report.IsEnabled(),
		ReportDir:             cfg.Report.Dir,
		Formats:               cfg.Report.Formats,
		HistoryPath:           cfg.History,
		Environment:           cfg.Environment,
		ScenarioTimeout:       cfg.ScenarioTimeout,
		Timeout:               cfg.Timeout,
	}
	if rc.Parallelism == 0 {
		rc.Parallelism = config.DefaultParallel
	}
	if rc.Environment == "" {
		rc.Environment = config.DefaultEnvironment
	}

	if flags.Changed("parallel") {
		rc.Parallelism = opts.parallel
	}
	if flags.Changed("report") {
		rc.OutputArtifactEnabled = opts.report
	}
	if flags.Changed("report-dir") {
		rc.ReportDir = opts.reportDir
	}
	if flags.Changed("format") {
		rc.Formats = opts.formats
	}
	if flags.Changed("history") {
		rc.HistoryPath = opts.history
	}
	if flags.Changed("env") {
		rc.Environment = opts.env
	}
	if flags.Changed("timeout") {
		rc.Timeout = opts.timeout
	}
	if flags.Changed("scenario-timeout") {
		rc.ScenarioTimeout = opts.scenarioTimeout
	}

	terms := cfg.Tags
	if flags.Changed("tags") {
		terms = opts.tags
	}
	expr, err := tags.Compile(terms...)
	if err != nil {
		return runner.Config{}, "", fmt.Errorf("invalid tag expression: %w", err)
	}
	rc.Tags = expr

	if err := rc.Validate(); err != nil {
		return runner.Config{}, "", err
	}
	return rc, root, nil
}

func runScenarios(cmd *cobra.Command, args []string, opts *runOptions) error {
	// Create context with signal handling
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	level, err := opts.logLevel()
	if err != nil {
		return usageError(err)
	}
	logging.InitForCLI(level, cmd.ErrOrStderr())

	cfg, err := loadConfig()
	if err != nil {
		return usageError(err)
	}
	runCfg, root, err := buildRunConfig(cmd, args, opts, cfg)
	if err != nil {
		return usageError(err)
	}
	vars, err := cfg.Vars(runCfg.Environment)
	if err != nil {
		return usageError(err)
	}
	source := feature.NewSource(vars, opts.sourceOptions()...)

	execute := func(ctx context.Context, out io.Writer, extra ...runner.Option) (*runner.Result, error) {
		rep := report.New(out, report.WithStyle(opts.style()), report.WithVerbose(opts.verbose))
		runOpts := append([]runner.Option{runner.WithObserver(rep)}, extra...)
		return runner.New(source, rep, runOpts...).Run(ctx, root, runCfg)
	}

	out := cmd.OutOrStdout()
	switch {
	case opts.tui:
		// The report is printed once the view has closed
		var buf bytes.Buffer
		var res *runner.Result
		var runErr error
		err := progress.Run(ctx, level, func(ctx context.Context, tr *progress.Tracker) error {
			res, runErr = execute(ctx, &buf, runner.WithObserver(tr))
			return runErr
		})
		logging.InitForCLI(level, cmd.ErrOrStderr())
		fmt.Fprint(out, buf.String())
		if err != nil && runErr == nil {
			return err
		}
		return resultError(res, runErr)

	case opts.watch:
		return watchScenarios(ctx, cmd, root, execute)

	default:
		return resultError(execute(ctx, out))
	}
}

// watchScenarios runs once, then again after every feature file change
// until interrupted. Failed runs do not end the watch.
func watchScenarios(ctx context.Context, cmd *cobra.Command, root string,
	execute func(context.Context, io.Writer, ...runner.Option) (*runner.Result, error)) error {
	out := cmd.OutOrStdout()

	runOnce := func(ctx context.Context) {
		if err := resultError(execute(ctx, out)); err != nil {
			var ee *exitError
			if !errors.As(err, &ee) || ee.err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "❌ %v\n", err)
			}
		}
	}

	// The watcher must exist before the first run starts
	w, err := watch.New(root, watch.DefaultDebounce)
	if err != nil {
		return usageError(err)
	}

	runOnce(ctx)

	fmt.Fprintf(out, "👀 Watching %s for changes (Ctrl+C to stop)\n", root)
	return w.Run(ctx, func(ctx context.Context) {
		fmt.Fprintf(out, "\n🔄 Change detected, re-running scenarios\n")
		runOnce(ctx)
	})
}

// resultError converts the outcome of a run into the command error that
// carries its exit status
func resultError(res *runner.Result, err error) error {
	code := runner.ExitCode(res, err)
	switch {
	case code == runner.ExitPass:
		return nil
	case err != nil:
		return &exitError{code: code, err: err}
	case code == runner.ExitReport:
		return &exitError{code: code, err: fmt.Errorf("report output failed: %w", res.ReportErr)}
	default:
		// failures were already reported
		return &exitError{code: code}
	}
}
