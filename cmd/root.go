package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"scenctl/internal/config"
	"scenctl/internal/runner"
	"scenctl/internal/scenario"
)

// configFile is an explicit configuration file given with --config
var configFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "scenctl",
	Short: "Run tagged scenario tests in parallel",
	Long: `scenctl discovers declarative test scenarios in YAML feature files,
selects them with tag expressions, executes them concurrently and reports a
single pass/fail verdict with the detail of every failure.`,
	// SilenceUsage is set to true to prevent printing usage message on errors
	// handled by us (e.g. failed scenarios, invalid feature files)
	SilenceUsage: true,
	// Errors are printed by Execute so that a failed run does not add an
	// "Error:" line after its own report
	SilenceErrors: true,
}

// exitError carries the process exit status of a command. A nil err means
// the command already reported the problem.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

// usageError wraps configuration and flag errors, which exit with status 2
func usageError(err error) error {
	return &exitError{code: runner.ExitDiscovery, err: err}
}

// exitCodeFor maps a command error to the process exit status
func exitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	var de *scenario.DiscoveryError
	if errors.As(err, &de) {
		return runner.ExitDiscovery
	}
	return 1
}

// SetVersion sets the version for the root command
func SetVersion(v string) {
	rootCmd.Version = v // Set cobra's version field as well
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	// Set up version template
	rootCmd.SetVersionTemplate(`{{printf "scenctl version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		var ee *exitError
		if !errors.As(err, &ee) || ee.err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
	os.Exit(exitCodeFor(err))
}

// loadConfig loads the explicit --config file or the layered configuration
func loadConfig() (config.ScenctlConfig, error) {
	if configFile != "" {
		return config.LoadConfigFile(configFile)
	}
	return config.LoadConfig()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Configuration file (default: ~/.config/scenctl/config.yaml layered with ./.scenctl/config.yaml)")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newMCPServerCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
}
