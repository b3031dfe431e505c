package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"scenctl/internal/config"
	"scenctl/internal/mcptools"
	"scenctl/internal/runner"
	"scenctl/internal/tags"
	"scenctl/pkg/logging"
)

func newMCPServerCmd() *cobra.Command {
	var (
		env   string
		debug bool
	)

	cmd := &cobra.Command{
		Use:   "mcp-server [root]",
		Short: "Serve scenario tools to AI assistants over MCP (stdio)",
		Long: `Runs an MCP server on stdin/stdout that exposes two tools:

  scenario_list  list the scenarios selected by a tag expression
  scenario_run   run them and return the JSON report

Configure it in your AI assistant's MCP settings as a stdio server with the
command "scenctl mcp-server". Logs go to stderr.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			level := logging.LevelWarn
			if debug {
				level = logging.LevelDebug
			}
			// stdout carries the protocol
			logging.InitForCLI(level, os.Stderr)

			cfg, err := loadConfig()
			if err != nil {
				return usageError(err)
			}
			root := cfg.Root
			if len(args) > 0 {
				root = args[0]
			}
			if !cmd.Flags().Changed("env") && cfg.Environment != "" {
				env = cfg.Environment
			}
			expr, err := tags.Compile(cfg.Tags...)
			if err != nil {
				return usageError(fmt.Errorf("invalid tag expression in config: %w", err))
			}

			parallel := cfg.Parallel
			if parallel == 0 {
				parallel = config.DefaultParallel
			}
			tools := mcptools.NewTools(mcptools.Options{
				Root:        root,
				Environment: env,
				Defaults: runner.Config{
					Parallelism:     parallel,
					Tags:            expr,
					HistoryPath:     cfg.History,
					ScenarioTimeout: cfg.ScenarioTimeout,
					Timeout:         cfg.Timeout,
				},
				Vars: cfg.Vars,
			})

			if err := mcptools.ServeStdio(mcptools.NewServer(rootCmd.Version, tools)); err != nil {
				return fmt.Errorf("MCP server error: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&env, "env", config.DefaultEnvironment, "Default environment for tool calls")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging on stderr")

	return cmd
}
