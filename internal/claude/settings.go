package claude

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

// MarketplaceKind distinguishes local directory marketplaces from cloned ones.
type MarketplaceKind string

const (
	MarketplaceDirectory MarketplaceKind = "directory"
	MarketplaceCloned    MarketplaceKind = "cloned"
)

// Marketplace is an entry of extraKnownMarketplaces.
type Marketplace struct {
	Name string
	Kind MarketplaceKind
	Path string // only set for directory marketplaces, verbatim from settings
}

// PluginRef is one enabledPlugins entry ("name@marketplace": bool).
type PluginRef struct {
	Name        string
	Marketplace string
	Enabled     bool
	Source      string // settings file that last set this entry
}

// Settings is the merged view of the host settings files.
type Settings struct {
	Plugins      []PluginRef
	Marketplaces map[string]Marketplace
}

// Enabled returns the enabled plugin references.
func (s *Settings) Enabled() []PluginRef {
	var out []PluginRef
	for _, p := range s.Plugins {
		if p.Enabled {
			out = append(out, p)
		}
	}
	return out
}

// SettingsFiles returns the host settings files to read, lowest priority first:
// the user file, any extra files, then the project's shared and local files.
func SettingsFiles(configDir, projectRoot string, extra []string) []string {
	files := []string{filepath.Join(configDir, "settings.json")}
	files = append(files, extra...)
	if projectRoot != "" {
		files = append(files,
			filepath.Join(projectRoot, ".claude", "settings.json"),
			filepath.Join(projectRoot, ".claude", "settings.local.json"),
		)
	}
	return files
}

// LoadSettings reads and merges the given settings files. Missing files are
// skipped. Unreadable or invalid files are reported as warnings and skipped;
// LoadSettings itself never fails.
func LoadSettings(files []string) (*Settings, []error) {
	s := &Settings{Marketplaces: make(map[string]Marketplace)}
	plugins := make(map[string]PluginRef)
	var warnings []error

	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				warnings = append(warnings, fmt.Errorf("read settings %s: %w", file, err))
			}
			continue
		}
		if !gjson.ValidBytes(data) {
			warnings = append(warnings, fmt.Errorf("parse settings %s: invalid JSON", file))
			continue
		}

		doc := gjson.ParseBytes(data)

		doc.Get("enabledPlugins").ForEach(func(key, value gjson.Result) bool {
			name, marketplace, _ := strings.Cut(key.String(), "@")
			if name == "" {
				warnings = append(warnings, fmt.Errorf("settings %s: empty plugin name in %q", file, key.String()))
				return true
			}
			plugins[key.String()] = PluginRef{
				Name:        name,
				Marketplace: marketplace,
				Enabled:     value.Bool(),
				Source:      file,
			}
			return true
		})

		doc.Get("extraKnownMarketplaces").ForEach(func(key, value gjson.Result) bool {
			mp := Marketplace{Name: key.String(), Kind: MarketplaceCloned}
			if value.Get("source.source").String() == string(MarketplaceDirectory) {
				mp.Kind = MarketplaceDirectory
				mp.Path = value.Get("source.path").String()
			}
			s.Marketplaces[mp.Name] = mp
			return true
		})
	}

	for _, p := range plugins {
		s.Plugins = append(s.Plugins, p)
	}
	sort.Slice(s.Plugins, func(i, j int) bool {
		if s.Plugins[i].Name != s.Plugins[j].Name {
			return s.Plugins[i].Name < s.Plugins[j].Name
		}
		return s.Plugins[i].Marketplace < s.Plugins[j].Marketplace
	})

	return s, warnings
}
