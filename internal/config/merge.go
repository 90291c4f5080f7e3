package config

import "maps"

// MergeLocal merges a local per-project config into a global config,
// returning a new Config without mutating the global.
// Returns global unchanged if local is nil.
func MergeLocal(global *Config, local *LocalConfig) *Config {
	if local == nil {
		return global
	}

	// Shallow copy: StateDir, MarketplaceDir and SettingsFiles are global-only.
	merged := *global

	if v := local.Execution.Concurrency; v != nil {
		merged.Execution.Concurrency = *v
	}
	if v := local.Execution.Timeout; v != nil {
		merged.Execution.Timeout = *v
	}
	if v := local.Execution.FailFast; v != nil {
		merged.Execution.FailFast = *v
	}
	if v := local.Execution.MaxAttempts; v != nil {
		merged.Execution.MaxAttempts = *v
	}
	if v := local.Execution.OutputLimit; v != nil {
		merged.Execution.OutputLimit = *v
	}

	if v := local.Cache.Enabled; v != nil {
		merged.Cache.Enabled = *v
	}
	if v := local.Checkpoints.Enabled; v != nil {
		merged.Checkpoints.Enabled = *v
	}
	if v := local.Checkpoints.MaxAge; v != nil {
		merged.Checkpoints.MaxAge = *v
	}

	if len(local.Tools.Aliases) > 0 {
		merged.Tools.Aliases = make(map[string]string, len(global.Tools.Aliases)+len(local.Tools.Aliases))
		maps.Copy(merged.Tools.Aliases, global.Tools.Aliases)
		maps.Copy(merged.Tools.Aliases, local.Tools.Aliases)
	}

	merged.Plugins = mergePlugins(global.Plugins, local.Plugins)

	return &merged
}

// mergePlugins merges local plugin declarations into global ones.
// Local entries with the same name override global entries.
// Local entries with enabled=false stay as disabled markers, which also
// suppress plugins enabled through host settings.
func mergePlugins(global, local map[string]PluginConfig) map[string]PluginConfig {
	if len(local) == 0 {
		return global
	}

	merged := make(map[string]PluginConfig, len(global)+len(local))
	maps.Copy(merged, global)

	for name, p := range local {
		if !p.IsEnabled() {
			merged[name] = p
			continue
		}
		if p.Path == "" {
			// enabled = true without a path re-enables the global declaration.
			if g, ok := global[name]; ok {
				g.Enabled = p.Enabled
				merged[name] = g
				continue
			}
		}
		merged[name] = p
	}

	return merged
}
