package main

import (
	"github.com/spf13/cobra"

	"github.com/raphi011/han/internal/output"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "cache",
		Short:   "Manage cached hook results",
		GroupID: GroupState,
		Long: `Manage cached hook results.

A hook that passed is not run again while its command, directory and the
content of its matched files stay the same.`,
	}
	cmd.AddCommand(newCacheStatusCmd())
	cmd.AddCommand(newCacheClearCmd())
	return cmd
}

func newCacheStatusCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show how many results are cached for the project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := loadProject(ctx, dir)
			if err != nil {
				return err
			}
			c := p.Cache()
			out := output.FromContext(ctx)
			out.Printf("%d cached results in %s\n", c.Size(), c.Dir())
			if !p.Config.Cache.Enabled {
				out.Println("Cache is disabled")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "C", "", "Project directory (default: working directory)")
	return cmd
}

func newCacheClearCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Forget all cached results and failure counts of the project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := loadProject(ctx, dir)
			if err != nil {
				return err
			}
			n, err := p.Cache().Clear()
			if err != nil {
				return err
			}
			output.FromContext(ctx).Printf("Removed %d cached results\n", n)
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "C", "", "Project directory (default: working directory)")
	return cmd
}
