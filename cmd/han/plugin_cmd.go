package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raphi011/han/internal/output"
	"github.com/raphi011/han/internal/report"
)

func newPluginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "plugin",
		Short:   "Inspect resolved plugins",
		GroupID: GroupHooks,
	}
	cmd.AddCommand(newPluginListCmd())
	return cmd
}

// pluginInfo is the JSON form of a resolved plugin.
type pluginInfo struct {
	Name        string `json:"name"`
	Marketplace string `json:"marketplace,omitempty"`
	Source      string `json:"source"`
	Root        string `json:"root"`
	Hooks       int    `json:"hooks"`
}

func newPluginListCmd() *cobra.Command {
	var (
		dir        string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List enabled plugins and where they were found",
		Aliases: []string{"ls"},
		Args:    cobra.NoArgs,
		Long: `List enabled plugins and where they were found.

Plugins come from the host settings (enabledPlugins, resolved through the
declared marketplaces) and from [plugins] in han's own config. Plugins that
could not be resolved are reported as warnings.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := output.FromContext(ctx)

			p, err := loadProject(ctx, dir)
			if err != nil {
				return err
			}

			counts := make(map[string]int)
			for _, d := range p.Registry.All() {
				counts[d.Plugin]++
			}
			infos := make([]pluginInfo, 0, len(p.Plugins))
			for _, pl := range p.Plugins {
				infos = append(infos, pluginInfo{
					Name:        pl.Name,
					Marketplace: pl.Marketplace,
					Source:      string(pl.Source),
					Root:        pl.Root,
					Hooks:       counts[pl.Name],
				})
			}

			if jsonOutput {
				return out.JSON(infos)
			}
			if len(infos) == 0 {
				out.Println("No plugins enabled")
			} else {
				rows := make([][]string, 0, len(infos))
				for _, i := range infos {
					rows = append(rows, []string{i.Name, i.Source, i.Marketplace, fmt.Sprintf("%d", i.Hooks), i.Root})
				}
				if err := report.WriteStyled(out.Writer(), report.RenderTable([]string{"PLUGIN", "SOURCE", "MARKETPLACE", "HOOKS", "ROOT"}, rows)); err != nil {
					return err
				}
			}
			for _, w := range p.Warnings {
				out.Printf("warning: %s\n", w)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "C", "", "Project directory (default: working directory)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
