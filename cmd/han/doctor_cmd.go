package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raphi011/han/internal/doctor"
)

func newDoctorCmd() *cobra.Command {
	var (
		dir string
		fix bool
	)

	cmd := &cobra.Command{
		Use:     "doctor",
		Short:   "Diagnose and repair issues",
		GroupID: GroupConfig,
		Args:    cobra.NoArgs,
		Long: `Diagnose plugin, hook and state issues.

Checks:
- Configured and enabled plugins resolve to a directory
- Resolved plugins declare hooks
- Hook declarations are valid and free of dependency cycles
- Checkpoints past their max age
- Cache entries that cannot be read
- git is installed

Only state issues can be repaired automatically.`,
		Example: `  han doctor          # Check for issues
  han doctor --fix    # Clean expired checkpoints and corrupt cache entries`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := loadProject(ctx, dir)
			if err != nil {
				return err
			}
			issues, err := doctor.Run(ctx, p, fix)
			if err != nil {
				return err
			}
			if len(issues) > 0 && !fix {
				return fmt.Errorf("%d issues found", len(issues))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "C", "", "Project directory (default: working directory)")
	cmd.Flags().BoolVar(&fix, "fix", false, "Auto-fix recoverable issues")

	return cmd
}
