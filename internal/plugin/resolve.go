package plugin

import (
	"context"
	"path/filepath"
	"sort"

	"github.com/raphi011/han/internal/claude"
	"github.com/raphi011/han/internal/config"
	"github.com/raphi011/han/internal/log"
)

// Resolver turns host settings and declared plugins into plugin roots.
type Resolver struct {
	WorkDir        string // host working directory; relative paths resolve against it
	MarketplaceDir string // cloned marketplace cache root
	Settings       *claude.Settings
	Declared       map[string]config.PluginConfig
}

// Resolve returns the resolved plugins sorted by name, plus one warning per
// plugin that could not be resolved.
func (r *Resolver) Resolve(ctx context.Context) ([]Plugin, []string) {
	l := log.FromContext(ctx)
	resolved := make(map[string]Plugin)
	var warnings []string

	warn := func(msg string, args ...any) {
		l.Warn(msg, args...)
		warnings = append(warnings, log.Format(msg, args...))
	}

	if r.Settings != nil {
		for _, ref := range r.Settings.Enabled() {
			if d, ok := r.Declared[ref.Name]; ok {
				if !d.IsEnabled() {
					l.Debug("plugin disabled by config", "plugin", ref.Name)
					continue
				}
				if d.Path != "" {
					// Declared paths are handled below and take precedence.
					continue
				}
			}

			p, ok := r.fromSettings(ref)
			if !ok {
				if dev, ok := r.devFallback(ref.Name); ok {
					l.Debug("using working directory as plugin", "plugin", ref.Name, "root", dev.Root)
					resolved[ref.Name] = dev
					continue
				}
				warn("plugin not found, skipping", "plugin", ref.Name, "marketplace", ref.Marketplace, "path", p.Root)
				continue
			}
			resolved[ref.Name] = p
		}
	}

	for name, d := range r.Declared {
		if !d.IsEnabled() || d.Path == "" {
			continue
		}
		root := r.abs(d.Path)
		if !isDir(root) {
			if dev, ok := r.devFallback(name); ok {
				resolved[name] = dev
				continue
			}
			warn("plugin path does not exist, skipping", "plugin", name, "path", root)
			continue
		}
		resolved[name] = Plugin{Name: name, Source: SourceLocal, Root: root}
	}

	out := make([]Plugin, 0, len(resolved))
	for _, p := range resolved {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	sort.Strings(warnings)

	return out, warnings
}

// fromSettings resolves a host-settings reference. On failure the returned
// plugin carries the path that was tried.
func (r *Resolver) fromSettings(ref claude.PluginRef) (Plugin, bool) {
	p := Plugin{Name: ref.Name, Marketplace: ref.Marketplace}

	mp, known := r.Settings.Marketplaces[ref.Marketplace]
	if known && mp.Kind == claude.MarketplaceDirectory {
		base := r.abs(mp.Path)
		p.Source = SourceLocal
		p.Root = r.abs(filepath.Join(base, marketplacePluginPath(base, ref.Name)))
	} else {
		if ref.Marketplace == "" || r.MarketplaceDir == "" {
			return p, false
		}
		base := filepath.Join(r.MarketplaceDir, ref.Marketplace)
		p.Source = SourceMarketplace
		p.Root = filepath.Clean(filepath.Join(base, marketplacePluginPath(base, ref.Name)))
	}

	return p, isDir(p.Root)
}

// devFallback returns the working directory as plugin name when it looks like
// that plugin's source tree: a hook manifest at its root, and either a
// .claude-plugin/plugin.json naming the plugin or a matching directory name.
func (r *Resolver) devFallback(name string) (Plugin, bool) {
	if r.WorkDir == "" || FindManifest(r.WorkDir) == "" {
		return Plugin{}, false
	}
	if pluginJSONName(r.WorkDir) != name && filepath.Base(r.WorkDir) != name {
		return Plugin{}, false
	}
	return Plugin{Name: name, Source: SourceDevFallback, Root: r.WorkDir}, true
}

func (r *Resolver) abs(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(r.WorkDir, path)
}
