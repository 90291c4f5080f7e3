package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// manifest is the on-disk shape of han-plugin.{yml,yaml,toml}.
type manifest struct {
	Name  string             `yaml:"name" toml:"name"`
	Hooks map[string]rawHook `yaml:"hooks" toml:"hooks"`
}

// rawHook is a hook as written by a plugin author, before validation.
type rawHook struct {
	Event       stringList `yaml:"event" toml:"event"`
	Events      stringList `yaml:"events" toml:"events"`
	Command     string     `yaml:"command" toml:"command"`
	Description string     `yaml:"description" toml:"description"`
	ToolFilter  stringList `yaml:"toolFilter" toml:"toolFilter"`
	FileFilter  stringList `yaml:"fileFilter" toml:"fileFilter"`
	IfChanged   stringList `yaml:"ifChanged" toml:"ifChanged"`
	DirsWith    stringList `yaml:"dirsWith" toml:"dirsWith"`
	DirTest     string     `yaml:"dirTest" toml:"dirTest"`
	TimeoutMs   *int64     `yaml:"timeoutMs" toml:"timeoutMs"`
	Timeout     *int64     `yaml:"timeout" toml:"timeout"` // milliseconds, alias of timeoutMs
	DependsOn   stringList `yaml:"dependsOn" toml:"dependsOn"`
	Cache       *bool      `yaml:"cache" toml:"cache"`
}

// stringList accepts either a single string or a list of strings.
type stringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *stringList) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			*s = nil
			return nil
		}
		*s = stringList{n.Value}
		return nil
	case yaml.SequenceNode:
		var v []string
		if err := n.Decode(&v); err != nil {
			return err
		}
		*s = v
		return nil
	}
	return fmt.Errorf("line %d: expected a string or a list of strings", n.Line)
}

// UnmarshalTOML implements toml.Unmarshaler.
func (s *stringList) UnmarshalTOML(v any) error {
	switch x := v.(type) {
	case string:
		*s = stringList{x}
		return nil
	case []any:
		out := make(stringList, 0, len(x))
		for _, item := range x {
			str, ok := item.(string)
			if !ok {
				return fmt.Errorf("expected a list of strings, got %T element", item)
			}
			out = append(out, str)
		}
		*s = out
		return nil
	}
	return fmt.Errorf("expected a string or a list of strings, got %T", v)
}

// readManifest parses a han-plugin manifest file by extension.
func readManifest(path string) (*manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m manifest
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), &m); err != nil {
			return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
		}
	default:
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
		}
	}
	return &m, nil
}

// splitPipes flattens "Edit|Write" style entries and drops empty items.
func splitPipes(in []string) []string {
	var out []string
	for _, item := range in {
		for part := range strings.SplitSeq(item, "|") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
