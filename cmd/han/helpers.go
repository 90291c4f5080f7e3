package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"

	"github.com/raphi011/han/internal/claude"
	"github.com/raphi011/han/internal/config"
	"github.com/raphi011/han/internal/engine"
	"github.com/raphi011/han/internal/hooks"
)

// loadProject loads the project containing dir (the working directory when
// empty) and applies HAN_* overrides on top of its merged config.
func loadProject(ctx context.Context, dir string) (*engine.Project, error) {
	if dir == "" {
		dir = workDir
	}
	if dir == "" {
		var err error
		if dir, err = os.Getwd(); err != nil {
			return nil, err
		}
	}

	claudeDir, err := claude.GetConfigDir()
	if err != nil {
		return nil, err
	}

	p, err := engine.Load(ctx, config.FromContext(ctx), dir, claudeDir)
	if err != nil {
		return nil, err
	}
	if err := p.ApplyEnv(os.Getenv); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}
	return p, nil
}

// checkRefs validates hook refs against the registry, suggesting close
// matches for unknown ones.
func checkRefs(p *engine.Project, refs []string) error {
	known := p.Registry.Refs()
	for _, ref := range refs {
		if _, ok := p.Registry.Lookup(ref); ok {
			continue
		}
		msg := fmt.Sprintf("unknown hook %q", ref)
		if s := suggest(ref, known, 3); len(s) > 0 {
			msg += fmt.Sprintf(" (did you mean %s?)", strings.Join(s, ", "))
		}
		return fmt.Errorf("%s", msg)
	}
	return nil
}

// suggest returns up to limit candidates that fuzzy-match input, best first.
func suggest(input string, candidates []string, limit int) []string {
	matches := fuzzy.Find(input, candidates)
	if len(matches) == 0 {
		// Fall back to matching the hook name alone, so "lint" finds "web/lint".
		if i := strings.LastIndex(input, "/"); i >= 0 {
			matches = fuzzy.Find(input[i+1:], candidates)
		}
	}
	var out []string
	for _, m := range matches {
		if len(out) == limit {
			break
		}
		out = append(out, m.Str)
	}
	return out
}

// parseEvent parses an event argument, suggesting the closest known name.
func parseEvent(s string) (hooks.Event, error) {
	e, err := hooks.ParseEvent(s)
	if err == nil {
		return e, nil
	}
	names := make([]string, len(hooks.KnownEvents))
	for i, k := range hooks.KnownEvents {
		names[i] = string(k)
	}
	if near := suggest(s, names, 1); len(near) > 0 {
		return "", fmt.Errorf("%w (did you mean %s?)", err, near[0])
	}
	return "", err
}

// completeEvents provides event name completion.
func completeEvents(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var out []string
	for _, e := range hooks.KnownEvents {
		if strings.HasPrefix(string(e), toComplete) {
			out = append(out, string(e))
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

// completeHookRefs provides plugin/hook completion for --only, using the
// config attached to the command's context.
func completeHookRefs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	dir, _ := cmd.Flags().GetString("dir")
	p, err := loadProject(ctx, dir)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var out []string
	for _, ref := range p.Registry.Refs() {
		if strings.HasPrefix(ref, toComplete) {
			out = append(out, ref)
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}
