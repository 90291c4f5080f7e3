// Package engine wires plugin resolution, matching, change detection,
// caching, execution and reporting into one event invocation.
//
// Every han invocation handles exactly one event and exits. Configuration
// problems never abort an invocation: they become warnings attached to the
// report. Only a dependency cycle among matched hooks changes the outcome
// class (exit code 3).
package engine

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/raphi011/han/internal/cache"
	"github.com/raphi011/han/internal/checkpoint"
	"github.com/raphi011/han/internal/claude"
	"github.com/raphi011/han/internal/config"
	"github.com/raphi011/han/internal/git"
	"github.com/raphi011/han/internal/history"
	"github.com/raphi011/han/internal/log"
	"github.com/raphi011/han/internal/match"
	"github.com/raphi011/han/internal/plugin"
	"github.com/raphi011/han/internal/registry"
	"github.com/raphi011/han/internal/storage"
)

// Project is everything han knows about one project before an event runs:
// effective config, resolved plugins and the hook registry.
type Project struct {
	Root      string // project root (git top level, else the working directory)
	WorkDir   string // directory han was invoked from
	ClaudeDir string
	StateDir  string
	Config    *config.Config // global config merged with the project's .han.toml
	Plugins   []plugin.Plugin
	Registry  *registry.Registry
	Tools     *match.Tools
	Warnings  []string
}

// Load resolves the project containing workDir. cfg is the global config
// (with env overrides applied); claudeDir is the host config directory.
func Load(ctx context.Context, cfg *config.Config, workDir, claudeDir string) (*Project, error) {
	l := log.FromContext(ctx)

	workDir, err := filepath.Abs(workDir)
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}
	root, err := git.RepoRoot(ctx, workDir)
	if err != nil {
		return nil, fmt.Errorf("find project root: %w", err)
	}

	p := &Project{Root: root, WorkDir: workDir, ClaudeDir: claudeDir, Config: cfg}
	warn := func(msg string, args ...any) {
		l.Warn(msg, args...)
		p.Warnings = append(p.Warnings, log.Format(msg, args...))
	}

	local, err := config.LoadLocal(root)
	if err != nil {
		warn("ignoring project config", "file", filepath.Join(root, config.LocalConfigFileName), "error", err)
	} else {
		p.Config = config.MergeLocal(cfg, local)
	}

	p.StateDir, err = storage.StateDir(p.Config.StateDir)
	if err != nil {
		return nil, fmt.Errorf("state directory: %w", err)
	}

	settings, errs := claude.LoadSettings(claude.SettingsFiles(claudeDir, root, p.Config.SettingsFiles))
	for _, e := range errs {
		warn("ignoring host settings", "error", e)
	}

	resolver := &plugin.Resolver{
		WorkDir:        workDir,
		MarketplaceDir: p.Config.EffectiveMarketplaceDir(claudeDir),
		Settings:       settings,
		Declared:       p.Config.Plugins,
	}
	plugins, warnings := resolver.Resolve(ctx)
	p.Plugins = plugins
	p.Warnings = append(p.Warnings, warnings...)

	p.Registry = registry.Build(ctx, plugins)
	p.Warnings = append(p.Warnings, p.Registry.Warnings()...)
	p.Tools = match.NewTools(p.Config.Tools.Aliases)

	l.Debug("project loaded", "root", root, "plugins", len(plugins), "hooks", len(p.Registry.All()))
	return p, nil
}

// Checkpoints returns the project's checkpoint store.
func (p *Project) Checkpoints() *checkpoint.Store {
	return checkpoint.New(p.StateDir, p.Root)
}

// Cache returns the project's result cache.
func (p *Project) Cache() *cache.Cache {
	return cache.New(p.StateDir, p.Root)
}

// HistoryPath returns the execution history file.
func (p *Project) HistoryPath() string {
	return history.Path(p.StateDir)
}

// ApplyEnv applies HAN_* overrides on top of the merged config, so the
// environment beats the project file.
func (p *Project) ApplyEnv(getenv func(string) string) error {
	c := *p.Config
	if err := c.ApplyEnv(getenv); err != nil {
		return err
	}
	p.Config = &c
	return nil
}
