// Package config handles loading and validation of han configuration.
//
// Configuration is read from ~/.config/han/config.toml (or the file named by
// HAN_CONFIG), overlaid by a per-project .han.toml, then by environment
// variables.
//
// # Configuration Sources (highest priority first)
//
//   - HAN_STATE_DIR, HAN_NO_CACHE, HAN_NO_CHECKPOINTS, HAN_NO_FAIL_FAST
//   - Project .han.toml (pointer fields; unset values inherit)
//   - Global config file
//   - Default values
//
// # Key Settings
//
//   - state_dir: checkpoints, cache entries and history (default ~/.han)
//   - marketplace_dir: where cloned plugin marketplaces live
//   - [execution]: concurrency, timeout, fail_fast, max_attempts, output_limit
//   - [cache] enabled, [checkpoints] enabled and max_age
//   - [tools.aliases]: extra host tool names mapped to canonical tools
//
// # Plugins
//
// Plugins are normally enabled through the host's settings.json. They can
// also be declared directly:
//
//	[plugins.house-rules]
//	path = "~/src/house-rules"
//
// In .han.toml, relative plugin paths resolve against the project root, and
// enabled = false disables a plugin for that project.
//
// # Path Validation
//
// Directory paths in the global file must be absolute or start with ~ (no
// relative paths like "." or "..") to avoid confusion about the working
// directory.
package config
