package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Defaults for execution and state settings.
const (
	DefaultConcurrency   = 4
	DefaultTimeout       = 10 * time.Minute
	DefaultMaxAttempts   = 3
	DefaultOutputLimit   = 4000
	DefaultCheckpointAge = 24 * time.Hour
)

// Duration is a time.Duration that decodes from TOML strings like "90s".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// ExecutionConfig controls how hooks are run.
type ExecutionConfig struct {
	Concurrency int      `toml:"concurrency"`  // max simultaneous hook processes
	Timeout     Duration `toml:"timeout"`      // per-hook default, overridden by timeoutMs
	FailFast    bool     `toml:"fail_fast"`    // skip not-yet-started hooks after a failure
	MaxAttempts int      `toml:"max_attempts"` // consecutive failures before a gating event allows (0 = unlimited)
	OutputLimit int      `toml:"output_limit"` // bytes of output kept in deny reasons
}

// CacheConfig controls the result cache.
type CacheConfig struct {
	Enabled bool `toml:"enabled"`
}

// CheckpointConfig controls checkpoint capture and cleanup.
type CheckpointConfig struct {
	Enabled bool     `toml:"enabled"`
	MaxAge  Duration `toml:"max_age"`
}

// ToolsConfig maps host tool names to canonical tool names.
type ToolsConfig struct {
	Aliases map[string]string `toml:"aliases"`
}

// PluginConfig declares a plugin directly, bypassing host settings.
// Enabled defaults to true; a project config can set it to false to
// disable a globally declared plugin.
type PluginConfig struct {
	Path    string `toml:"path"`
	Enabled *bool  `toml:"enabled"`
}

// IsEnabled returns whether the plugin is enabled (default true).
func (p PluginConfig) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

// Config holds the han configuration
type Config struct {
	StateDir       string                  `toml:"state_dir"`       // checkpoints, cache and history (default ~/.han)
	MarketplaceDir string                  `toml:"marketplace_dir"` // cloned marketplaces (default ~/.claude/plugins/marketplaces)
	SettingsFiles  []string                `toml:"settings_files"`  // extra host settings files, lowest priority first
	Execution      ExecutionConfig         `toml:"execution"`
	Cache          CacheConfig             `toml:"cache"`
	Checkpoints    CheckpointConfig        `toml:"checkpoints"`
	Tools          ToolsConfig             `toml:"tools"`
	Plugins        map[string]PluginConfig `toml:"plugins"`
}

// Default returns the default configuration
func Default() Config {
	return Config{
		Execution: ExecutionConfig{
			Concurrency: DefaultConcurrency,
			Timeout:     Duration(DefaultTimeout),
			FailFast:    true,
			MaxAttempts: DefaultMaxAttempts,
			OutputLimit: DefaultOutputLimit,
		},
		Cache:       CacheConfig{Enabled: true},
		Checkpoints: CheckpointConfig{Enabled: true, MaxAge: Duration(DefaultCheckpointAge)},
	}
}

// ValidatePath checks that the path is absolute or starts with ~
// Returns error if path is relative (like "." or "..")
func ValidatePath(path, fieldName string) error {
	if path == "" {
		return nil
	}
	if path[0] == '~' {
		return nil
	}
	if !filepath.IsAbs(path) {
		return fmt.Errorf("%s must be absolute or start with ~, got: %q", fieldName, path)
	}
	return nil
}

// ExpandPath expands a leading ~ to the user's home directory
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if len(path) >= 2 && path[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expand ~: %w", err)
		}
		return filepath.Join(home, path[2:]), nil
	}
	if path == "~" {
		return os.UserHomeDir()
	}
	return path, nil
}

// Path returns the path to the global config file.
// HAN_CONFIG overrides the default ~/.config/han/config.toml.
func Path() (string, error) {
	if p := os.Getenv("HAN_CONFIG"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "han", "config.toml"), nil
}

// Load reads the global config.
// Returns Default() if the file doesn't exist (no error).
// Returns an error only if the file exists but is invalid.
func Load() (Config, error) {
	path, err := Path()
	if err != nil {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile reads config from path on top of the defaults.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Default(), fmt.Errorf("failed to read config file: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return Default(), err
	}

	return cfg, nil
}

// normalize validates and expands paths after decoding.
func (c *Config) normalize() error {
	if err := ValidatePath(c.StateDir, "state_dir"); err != nil {
		return err
	}
	if err := ValidatePath(c.MarketplaceDir, "marketplace_dir"); err != nil {
		return err
	}

	var err error
	if c.StateDir, err = ExpandPath(c.StateDir); err != nil {
		return fmt.Errorf("expand state_dir: %w", err)
	}
	if c.MarketplaceDir, err = ExpandPath(c.MarketplaceDir); err != nil {
		return fmt.Errorf("expand marketplace_dir: %w", err)
	}
	for i, f := range c.SettingsFiles {
		if c.SettingsFiles[i], err = ExpandPath(f); err != nil {
			return fmt.Errorf("expand settings_files[%d]: %w", i, err)
		}
	}

	if err := c.validate(); err != nil {
		return err
	}
	for name, p := range c.Plugins {
		if p.Path, err = ExpandPath(p.Path); err != nil {
			return fmt.Errorf("expand plugins.%s.path: %w", name, err)
		}
		c.Plugins[name] = p
	}
	return nil
}

// EffectiveMarketplaceDir returns the marketplace cache root.
func (c *Config) EffectiveMarketplaceDir(claudeDir string) string {
	if c.MarketplaceDir != "" {
		return c.MarketplaceDir
	}
	return filepath.Join(claudeDir, "plugins", "marketplaces")
}

const defaultConfig = `# han configuration

# Directory for checkpoints, cache entries and execution history
# Must be an absolute path or start with ~
# state_dir = "~/.han"

# Where cloned plugin marketplaces live
# marketplace_dir = "~/.claude/plugins/marketplaces"

# Additional host settings files to read enabledPlugins from.
# The user and project .claude/settings*.json files are always read.
# settings_files = ["~/work/shared-settings.json"]

[execution]
# Maximum number of hook processes running at once
concurrency = 4
# Default timeout per hook (a hook's timeoutMs takes precedence)
timeout = "10m"
# Skip hooks that have not started yet once any hook fails
fail_fast = true
# After this many consecutive failures of the same hook, gating events
# report the failure but allow the action (0 = never give up)
max_attempts = 3
# Bytes of captured output included in deny reasons
output_limit = 4000

[cache]
enabled = true

[checkpoints]
enabled = true
# Checkpoints older than this are removed by the cleanup sweep
max_age = "24h"

# Extra host tool names mapped to canonical tools
# (edit, write, bash, read, notebook_edit)
# [tools.aliases]
# apply_patch = "edit"

# Plugins declared directly, without host settings
# [plugins.my-plugin]
# path = "~/src/my-plugin"
#
# Disable a plugin for this machine
# [plugins.noisy]
# enabled = false
`

// DefaultConfig returns the default configuration template content.
func DefaultConfig() string {
	return defaultConfig
}

// Init creates a default config file at Path().
// If force is true, overwrites existing file
// Returns the path to the created file
func Init(force bool) (string, error) {
	path, err := Path()
	if err != nil {
		return "", err
	}

	if !force {
		if _, err := os.Stat(path); err == nil {
			return "", errors.New("config file already exists: " + path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", err
	}

	if err := os.WriteFile(path, []byte(defaultConfig), 0644); err != nil {
		return "", err
	}

	return path, nil
}
