// Package plugin resolves enabled plugin references to plugin root
// directories.
//
// A plugin comes from one of three sources:
//
//   - local: a path declared in han's config, or a plugin inside a
//     directory marketplace declared in host settings
//   - marketplace: a plugin inside a cloned marketplace under the
//     marketplace cache root
//   - dev-fallback: the working directory itself, when it is the plugin's
//     own source tree
//
// Resolution never fails as a whole: unresolvable plugins are dropped with a
// warning and the rest are returned.
package plugin

import (
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"
)

// Source identifies how a plugin root was resolved.
type Source string

const (
	SourceLocal       Source = "local"
	SourceMarketplace Source = "marketplace"
	SourceDevFallback Source = "dev-fallback"
)

// Plugin is a resolved plugin. Immutable once resolved.
type Plugin struct {
	Name        string
	Marketplace string
	Source      Source
	Root        string // absolute
}

// ManifestFiles are the hook manifest names looked up in a plugin root, in order.
var ManifestFiles = []string{"han-plugin.yml", "han-plugin.yaml", "han-plugin.toml"}

// FindManifest returns the path of the first manifest file present in dir,
// or "" if there is none.
func FindManifest(dir string) string {
	for _, name := range ManifestFiles {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// pluginJSONName returns the name declared in dir/.claude-plugin/plugin.json.
func pluginJSONName(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, ".claude-plugin", "plugin.json"))
	if err != nil {
		return ""
	}
	return gjson.GetBytes(data, "name").String()
}

// marketplacePluginPath returns the path of plugin name inside a marketplace
// checkout, from .claude-plugin/marketplace.json when it lists the plugin
// with a string source, else the plugin name.
func marketplacePluginPath(base, name string) string {
	data, err := os.ReadFile(filepath.Join(base, ".claude-plugin", "marketplace.json"))
	if err != nil {
		return name
	}

	rel := name
	gjson.GetBytes(data, "plugins").ForEach(func(_, p gjson.Result) bool {
		if p.Get("name").String() != name {
			return true
		}
		if src := p.Get("source"); src.Type == gjson.String && src.String() != "" {
			rel = src.String()
		}
		return false
	})
	return rel
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
