package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/raphi011/han/internal/checkpoint"
	"github.com/raphi011/han/internal/output"
	"github.com/raphi011/han/internal/report"
)

func newCheckpointCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "checkpoint",
		Short:   "Manage file-state checkpoints",
		Aliases: []string{"cp"},
		GroupID: GroupState,
		Long: `Manage file-state checkpoints.

A checkpoint records the content hash of every tracked file when a session
or subagent starts. Stop events validate only what changed since then.
'han hook run SessionStart' captures checkpoints automatically; these
commands are for inspection and scripting.`,
		Example: `  han checkpoint capture --session abc
  han checkpoint diff --session abc
  han checkpoint list
  han checkpoint clean --max-age 1h`,
	}

	cmd.AddCommand(newCheckpointCaptureCmd())
	cmd.AddCommand(newCheckpointDiffCmd())
	cmd.AddCommand(newCheckpointListCmd())
	cmd.AddCommand(newCheckpointCleanCmd())

	return cmd
}

// checkpointTarget is the scope and id selected by --session or --agent.
type checkpointTarget struct {
	session string
	agent   string
}

func (c *checkpointTarget) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&c.session, "session", "", "Session id")
	cmd.Flags().StringVar(&c.agent, "agent", "", "Subagent id")
	cmd.MarkFlagsMutuallyExclusive("session", "agent")
	cmd.MarkFlagsOneRequired("session", "agent")
}

func (c *checkpointTarget) scope() (checkpoint.Scope, string) {
	if c.agent != "" {
		return checkpoint.AgentScope, c.agent
	}
	return checkpoint.SessionScope, c.session
}

func newCheckpointCaptureCmd() *cobra.Command {
	var (
		dir    string
		target checkpointTarget
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Record the current state of tracked files",
		Long: `Record the current state of tracked files.

An existing checkpoint for the same session or agent is kept as is.
Use --force to replace it with the current state.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := loadProject(ctx, dir)
			if err != nil {
				return err
			}
			scope, id := target.scope()
			store := p.Checkpoints()
			capture := store.Capture
			if force {
				capture = store.Replace
			}
			cp, err := capture(ctx, scope, id)
			if err != nil {
				return err
			}
			output.FromContext(ctx).Printf("Captured %s checkpoint %s (%d files)\n", scope, id, len(cp.Files))
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "C", "", "Project directory (default: working directory)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Replace an existing checkpoint")
	target.register(cmd)
	return cmd
}

func newCheckpointDiffCmd() *cobra.Command {
	var (
		dir        string
		target     checkpointTarget
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Show files changed since a checkpoint",
		Args:  cobra.NoArgs,
		Long: `Show files changed since a checkpoint.

Without a stored checkpoint every tracked file is reported as added.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := output.FromContext(ctx)

			p, err := loadProject(ctx, dir)
			if err != nil {
				return err
			}
			scope, id := target.scope()
			diff, err := p.Checkpoints().Diff(ctx, scope, id)
			if err != nil {
				return err
			}

			if jsonOutput {
				return out.JSON(diff)
			}
			if diff.Fallback {
				out.Printf("No %s checkpoint %s; showing all tracked files\n", scope, id)
			}
			for _, f := range diff.Added {
				out.Printf("A %s\n", f)
			}
			for _, f := range diff.Modified {
				out.Printf("M %s\n", f)
			}
			for _, f := range diff.Removed {
				out.Printf("D %s\n", f)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "C", "", "Project directory (default: working directory)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	target.register(cmd)
	return cmd
}

func newCheckpointListCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List the project's checkpoints, newest first",
		Aliases: []string{"ls"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := output.FromContext(ctx)

			p, err := loadProject(ctx, dir)
			if err != nil {
				return err
			}
			list, err := p.Checkpoints().List()
			if err != nil {
				return err
			}
			if len(list) == 0 {
				out.Println("No checkpoints")
				return nil
			}
			rows := make([][]string, 0, len(list))
			for _, cp := range list {
				rows = append(rows, []string{
					string(cp.Scope),
					cp.ID,
					cp.CreatedAt.Local().Format("2006-01-02 15:04:05"),
					fmt.Sprintf("%d", cp.Files),
				})
			}
			return report.WriteStyled(out.Writer(), report.RenderTable([]string{"SCOPE", "ID", "CREATED", "FILES"}, rows))
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "C", "", "Project directory (default: working directory)")
	return cmd
}

func newCheckpointCleanCmd() *cobra.Command {
	var (
		dir    string
		maxAge time.Duration
	)

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove expired checkpoints of all projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := loadProject(ctx, dir)
			if err != nil {
				return err
			}
			age := maxAge
			if age == 0 {
				age = p.Config.Checkpoints.MaxAge.Std()
			}
			n, err := p.Checkpoints().Clean(ctx, age)
			if err != nil {
				return err
			}
			output.FromContext(ctx).Printf("Removed %d checkpoints older than %s\n", n, age)
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "C", "", "Project directory (default: working directory)")
	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "Remove checkpoints older than this (default from config)")
	return cmd
}
