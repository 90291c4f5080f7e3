package doctor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/raphi011/han/internal/engine"
	"github.com/raphi011/han/internal/git"
	"github.com/raphi011/han/internal/hooks"
	"github.com/raphi011/han/internal/match"
	"github.com/raphi011/han/internal/registry"
)

// checkPluginIssues reports unresolved plugins and plugins without hooks.
func checkPluginIssues(p *engine.Project) []Issue {
	var issues []Issue

	hookWarnings := p.Registry.Warnings()
	for _, w := range p.Warnings {
		if slices.Contains(hookWarnings, w) {
			continue
		}
		issues = append(issues, Issue{Key: "config", Description: w})
	}

	for _, pl := range p.Plugins {
		defs, _, err := registry.LoadPlugin(pl)
		if err != nil || len(defs) > 0 {
			// unreadable manifests already surface as registry warnings
			continue
		}
		issues = append(issues, Issue{
			Key:         pl.Name,
			Description: fmt.Sprintf("declares no hooks (%s)", pl.Root),
		})
	}
	return issues
}

// checkHookIssues reports dropped hooks, unknown dependencies and cycles.
func checkHookIssues(p *engine.Project) []Issue {
	var issues []Issue
	for _, w := range p.Registry.Warnings() {
		issues = append(issues, Issue{Key: "manifest", Description: w})
	}

	for _, e := range hooks.KnownEvents {
		err := match.CheckCycles(p.Registry.ForEvent(e))
		var cycle *match.CycleError
		if errors.As(err, &cycle) {
			issues = append(issues, Issue{
				Key:         string(e),
				Description: cycle.Error(),
			})
		}
	}
	return issues
}

// checkStateIssues reports expired checkpoints and corrupt cache entries.
func checkStateIssues(p *engine.Project, stats *Stats) []Issue {
	var issues []Issue

	if err := git.CheckGit(); err != nil {
		issues = append(issues, Issue{
			Key:         "git",
			Description: "git not found; tracked files are found by walking the tree",
		})
	}

	maxAge := p.Config.Checkpoints.MaxAge.Std()
	list, err := p.Checkpoints().List()
	if err != nil {
		issues = append(issues, Issue{Key: p.Checkpoints().Dir(), Description: fmt.Sprintf("cannot read checkpoints: %v", err)})
	}
	stats.Checkpoints = len(list)
	cutoff := time.Now().Add(-maxAge)
	for _, cp := range list {
		// the cleanup sweep goes by modification time, so doctor does too
		info, err := os.Stat(cp.Path)
		if err == nil && info.ModTime().Before(cutoff) {
			issues = append(issues, Issue{
				Key:         filepath.Base(cp.Path),
				Description: fmt.Sprintf("%s checkpoint older than %s", cp.Scope, maxAge),
				FixAction:   FixCleanCheckpoints,
			})
		}
	}

	valid, corrupt := p.Cache().Verify()
	stats.CacheValid = valid
	for _, path := range corrupt {
		issues = append(issues, Issue{
			Key:         path,
			Description: "cache entry cannot be decoded",
			FixAction:   FixRemoveCacheEntry,
		})
	}
	return issues
}
