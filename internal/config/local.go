package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// LocalConfigFileName is the per-project override file, read from the project root.
const LocalConfigFileName = ".han.toml"

// LocalConfig holds per-project configuration overrides from .han.toml.
// Pointer fields indicate "not set" (inherit from global).
type LocalConfig struct {
	Execution   LocalExecution          `toml:"execution"`
	Cache       LocalCache              `toml:"cache"`
	Checkpoints LocalCheckpoints        `toml:"checkpoints"`
	Tools       ToolsConfig             `toml:"tools"`   // merged by key
	Plugins     map[string]PluginConfig `toml:"plugins"` // merged by name, enabled=false removes
}

// LocalExecution holds local execution overrides
type LocalExecution struct {
	Concurrency *int      `toml:"concurrency"`
	Timeout     *Duration `toml:"timeout"`
	FailFast    *bool     `toml:"fail_fast"`
	MaxAttempts *int      `toml:"max_attempts"`
	OutputLimit *int      `toml:"output_limit"`
}

// LocalCache holds local cache overrides
type LocalCache struct {
	Enabled *bool `toml:"enabled"`
}

// LocalCheckpoints holds local checkpoint overrides
type LocalCheckpoints struct {
	Enabled *bool     `toml:"enabled"`
	MaxAge  *Duration `toml:"max_age"`
}

// LoadLocal reads a per-project .han.toml from the given project root.
// Returns nil (no error) if the file doesn't exist.
// Returns an error only on parse or validation failure.
func LoadLocal(projectRoot string) (*LocalConfig, error) {
	configFile := filepath.Join(projectRoot, LocalConfigFileName)

	data, err := os.ReadFile(configFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read local config %s: %w", configFile, err)
	}

	var local LocalConfig
	if err := toml.Unmarshal(data, &local); err != nil {
		return nil, fmt.Errorf("failed to parse local config %s: %w", configFile, err)
	}

	if err := local.validate(configFile); err != nil {
		return nil, err
	}

	// Plugin paths in a project file are relative to the project.
	for name, p := range local.Plugins {
		if p.Path == "" || filepath.IsAbs(p.Path) || p.Path[0] == '~' {
			expanded, err := ExpandPath(p.Path)
			if err != nil {
				return nil, fmt.Errorf("expand plugins.%s.path: %w", name, err)
			}
			p.Path = expanded
		} else {
			p.Path = filepath.Join(projectRoot, p.Path)
		}
		local.Plugins[name] = p
	}

	return &local, nil
}

// defaultLocalConfig is the template for han config init --local
const defaultLocalConfig = `# han project config
# Place this file at the root of your project.
# Settings here override ~/.config/han/config.toml for this project only.

# [execution]
# concurrency = 2
# timeout = "5m"
# fail_fast = false

# [cache]
# enabled = false

# [checkpoints]
# enabled = true

# Plugins used only by this project (paths relative to the project root)
# [plugins.house-rules]
# path = "tools/han-plugin"
#
# Disable a globally declared plugin here
# [plugins.noisy]
# enabled = false
`

// DefaultLocalConfig returns the default local configuration template content.
func DefaultLocalConfig() string {
	return defaultLocalConfig
}
