package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/raphi011/han/internal/config"
	"github.com/raphi011/han/internal/log"
	"github.com/raphi011/han/internal/output"
)

var (
	// Global flags
	verbose bool
	quiet   bool

	// Shared state injected into commands
	workDir string
)

// Command group IDs for organizing help output
const (
	GroupHooks  = "hooks"
	GroupState  = "state"
	GroupConfig = "config"
)

// exitCodeError ends the process with a specific exit code. The command has
// already printed everything the caller needs.
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "han",
		Short: "Plugin hook orchestration for coding assistants",
		Long: `han runs the validation hooks declared by enabled plugins when the host
assistant reports a lifecycle event.

Each invocation handles one event: it works out which files the session
touched, selects the matching hooks, runs them with bounded parallelism and
dependency ordering, and reports an allow/deny decision or a summary.`,
		SilenceUsage:               true,
		SilenceErrors:              true,
		SuggestionsMinimumDistance: 2, // Enable typo suggestions
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if verbose && quiet {
				return fmt.Errorf("--verbose and --quiet are mutually exclusive")
			}
			// Flags are parsed now; rebuild the logger with them.
			ctx := log.WithLogger(cmd.Context(), log.New(os.Stderr, verbose, quiet))
			cmd.SetContext(ctx)
			return nil
		},
		// Run is not set - shows help when no subcommand provided
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show hook commands and diagnostics")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress all log output")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	cmd.Version = versionString()
	cmd.SetVersionTemplate("{{.Version}}\n")

	cmd.AddGroup(
		&cobra.Group{ID: GroupHooks, Title: "Hook Commands:"},
		&cobra.Group{ID: GroupState, Title: "State Commands:"},
		&cobra.Group{ID: GroupConfig, Title: "Configuration Commands:"},
	)

	// Hook commands
	cmd.AddCommand(newHookCmd())
	cmd.AddCommand(newPluginCmd())

	// State commands
	cmd.AddCommand(newCheckpointCmd())
	cmd.AddCommand(newCacheCmd())

	// Config commands
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newCompletionCmd())

	return cmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	// Load config
	loadedCfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	if err := loadedCfg.ApplyEnv(os.Getenv); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	// Get working directory
	workDir, err = os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "han: failed to get working directory: %v\n", err)
		os.Exit(1)
	}

	// Create context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ctx = config.WithConfig(ctx, &loadedCfg)
	ctx = log.WithLogger(ctx, log.New(os.Stderr, false, false))
	// Add output printer (stdout for primary data)
	ctx = output.WithPrinter(ctx, os.Stdout)

	rootCmd.SetContext(ctx)

	err = rootCmd.Execute()
	var exitErr *exitCodeError
	if errors.As(err, &exitErr) {
		cancel()
		os.Exit(exitErr.code)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "Run 'han -h' for help")
		cancel()
		os.Exit(1)
	}
}
