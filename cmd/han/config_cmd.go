package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/raphi011/han/internal/config"
	"github.com/raphi011/han/internal/git"
	"github.com/raphi011/han/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config",
		Short:   "Manage configuration",
		Aliases: []string{"cfg"},
		GroupID: GroupConfig,
		Long: `Manage han configuration.

Global config: ~/.config/han/config.toml (HAN_CONFIG overrides)
Local config:  .han.toml (in the project root)

HAN_STATE_DIR, HAN_NO_CACHE, HAN_NO_CHECKPOINTS and HAN_NO_FAIL_FAST
override both.`,
		Example: `  han config init          # Create default global config
  han config init --local  # Create local project config
  han config show          # Show effective config`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var (
		force  bool
		stdout bool
		local  bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create default config file",
		Args:  cobra.NoArgs,
		Long: `Create default config file.

Without flags, creates the global config.
With --local, creates .han.toml in the current project root.`,
		Example: `  han config init           # Create global config
  han config init --local   # Create local project config
  han config init -f        # Overwrite existing config
  han config init -s        # Print config to stdout`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())

			if local {
				return initLocalConfig(cmd, force, stdout)
			}
			if stdout {
				out.Print(config.DefaultConfig())
				return nil
			}

			path, err := config.Init(force)
			if err != nil {
				return fmt.Errorf("%w (use -f to overwrite)", err)
			}
			out.Printf("Created config file: %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing config")
	cmd.Flags().BoolVarP(&stdout, "stdout", "s", false, "Print config to stdout")
	cmd.Flags().BoolVar(&local, "local", false, "Create per-project .han.toml instead of global config")

	return cmd
}

func initLocalConfig(cmd *cobra.Command, force, stdout bool) error {
	ctx := cmd.Context()
	out := output.FromContext(ctx)
	configContent := config.DefaultLocalConfig()

	if stdout {
		out.Print(configContent)
		return nil
	}

	root, err := git.RepoRoot(ctx, workDir)
	if err != nil {
		return fmt.Errorf("find project root: %w", err)
	}
	configPath := filepath.Join(root, config.LocalConfigFileName)

	if !force {
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("local config already exists: %s (use -f to overwrite)", configPath)
		}
	}

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		return err
	}

	out.Printf("Created local config: %s\n", configPath)
	return nil
}

func newConfigShowCmd() *cobra.Command {
	var (
		dir        string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Args:  cobra.NoArgs,
		Long: `Show effective configuration.

Prints the global config merged with the project's .han.toml and the HAN_*
environment overrides, as TOML.`,
		Example: `  han config show          # Effective config for the current project
  han config show --json   # Output as JSON`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := output.FromContext(ctx)

			p, err := loadProject(ctx, dir)
			if err != nil {
				return err
			}

			if jsonOutput {
				return out.JSON(p.Config)
			}

			global, _ := config.Path()
			out.Printf("# Global config: %s\n", global)
			localPath := filepath.Join(p.Root, config.LocalConfigFileName)
			if _, err := os.Stat(localPath); err == nil {
				out.Printf("# Local config:  %s\n", localPath)
			} else {
				out.Printf("# Local config:  (none)\n")
			}
			out.Printf("# State dir:     %s\n\n", p.StateDir)

			return toml.NewEncoder(out.Writer()).Encode(p.Config)
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "C", "", "Project directory (default: working directory)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
