package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"scenctl/internal/history"
	"scenctl/internal/report"
	"scenctl/pkg/logging"
)

func newHistoryCmd() *cobra.Command {
	var (
		path    string
		limit   int
		asJSON  bool
		verdict string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent runs recorded in the history database",
		Long: `Lists the most recent runs recorded by "scenctl run --report" when a
history database is configured, newest first, with their failures.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logging.InitForCLI(logging.LevelWarn, cmd.ErrOrStderr())

			var only report.Verdict
			if verdict != "" {
				if err := only.UnmarshalText([]byte(verdict)); err != nil {
					return usageError(err)
				}
			}

			if !cmd.Flags().Changed("history") {
				cfg, err := loadConfig()
				if err != nil {
					return usageError(err)
				}
				path = cfg.History
			}
			if path == "" {
				return usageError(fmt.Errorf("no history database configured, use --history or set history in the config file"))
			}

			store, err := history.Open(path)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if verdict != "" {
				runs = filterRuns(runs, only)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				data, err := json.MarshalIndent(runs, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal history: %w", err)
				}
				fmt.Fprintln(out, string(data))
				return nil
			}

			if len(runs) == 0 {
				fmt.Fprintf(out, "No matching runs recorded in %s\n", path)
				return nil
			}
			for _, r := range runs {
				fmt.Fprintln(out, history.FormatRun(r))
				for _, msg := range r.Failures {
					fmt.Fprintf(out, "   • %s\n", msg)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "history", "", "SQLite history database (default: history from the config file)")
	cmd.Flags().IntVar(&limit, "limit", 10, "Number of runs to show (0 shows all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the runs as JSON")
	cmd.Flags().StringVar(&verdict, "verdict", "", "Only show runs with this verdict: pass or fail")

	return cmd
}

// filterRuns keeps the runs that ended with verdict v
func filterRuns(runs []history.Run, v report.Verdict) []history.Run {
	var kept []history.Run
	for _, r := range runs {
		if r.Verdict == v.String() {
			kept = append(kept, r)
		}
	}
	return kept
}
