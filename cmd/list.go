package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"scenctl/internal/config"
	"scenctl/internal/feature"
	"scenctl/internal/runner"
	"scenctl/internal/tags"
	"scenctl/pkg/logging"
)

func newListCmd() *cobra.Command {
	var (
		tagTerms []string
		env      string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "list [root]",
		Short: "List the scenarios selected by a tag expression",
		Long: `Discovers the feature files below root and prints the id and tags of
every scenario the tag expression selects, without running anything.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logging.InitForCLI(logging.LevelWarn, cmd.ErrOrStderr())

			cfg, err := loadConfig()
			if err != nil {
				return usageError(err)
			}
			root := cfg.Root
			if len(args) > 0 {
				root = args[0]
			}
			terms := cfg.Tags
			if cmd.Flags().Changed("tags") {
				terms = tagTerms
			}
			expr, err := tags.Compile(terms...)
			if err != nil {
				return usageError(fmt.Errorf("invalid tag expression: %w", err))
			}
			if !cmd.Flags().Changed("env") && cfg.Environment != "" {
				env = cfg.Environment
			}
			vars, err := cfg.Vars(env)
			if err != nil {
				return usageError(err)
			}

			units, err := runner.New(feature.NewSource(vars), nil).Select(cmd.Context(), root, expr)
			if err != nil {
				return usageError(err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				type listed struct {
					ID   string   `json:"id"`
					Tags []string `json:"tags,omitempty"`
				}
				items := make([]listed, 0, len(units))
				for _, u := range units {
					items = append(items, listed{ID: u.ID, Tags: u.Tags})
				}
				data, err := json.MarshalIndent(items, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal scenarios: %w", err)
				}
				fmt.Fprintln(out, string(data))
				return nil
			}

			width := 0
			for _, u := range units {
				if w := runewidth.StringWidth(u.ID); w > width {
					width = w
				}
			}
			for _, u := range units {
				line := runewidth.FillRight(u.ID, width)
				if len(u.Tags) > 0 {
					line += "  @" + strings.Join(u.Tags, " @")
				}
				fmt.Fprintln(out, strings.TrimRight(line, " "))
			}
			fmt.Fprintf(out, "📋 %d scenarios selected\n", len(units))
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&tagTerms, "tags", nil, "Tag expression term; repeat to AND terms")
	cmd.Flags().StringVar(&env, "env", config.DefaultEnvironment, "Environment whose variables expand ${name} placeholders")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the scenarios as JSON")

	return cmd
}
