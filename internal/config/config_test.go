package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()
	if cfg.Execution.Concurrency != DefaultConcurrency {
		t.Errorf("concurrency = %d, want %d", cfg.Execution.Concurrency, DefaultConcurrency)
	}
	if time.Duration(cfg.Execution.Timeout) != 10*time.Minute {
		t.Errorf("timeout = %s, want 10m", cfg.Execution.Timeout)
	}
	if !cfg.Execution.FailFast {
		t.Error("fail_fast should default to true")
	}
	if !cfg.Cache.Enabled || !cfg.Checkpoints.Enabled {
		t.Error("cache and checkpoints should default to enabled")
	}
	if time.Duration(cfg.Checkpoints.MaxAge) != 24*time.Hour {
		t.Errorf("max_age = %s, want 24h", cfg.Checkpoints.MaxAge)
	}
}

func TestLoadFile_Nonexistent(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Execution.Concurrency != DefaultConcurrency {
		t.Errorf("missing file should yield defaults, got concurrency %d", cfg.Execution.Concurrency)
	}
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
state_dir = "/var/lib/han"
settings_files = ["/etc/han/settings.json"]

[execution]
concurrency = 8
timeout = "90s"
fail_fast = false

[cache]
enabled = false

[tools.aliases]
apply_patch = "edit"

[plugins.house-rules]
path = "/src/house-rules"
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.StateDir != "/var/lib/han" {
		t.Errorf("state_dir = %q", cfg.StateDir)
	}
	if len(cfg.SettingsFiles) != 1 || cfg.SettingsFiles[0] != "/etc/han/settings.json" {
		t.Errorf("settings_files = %v", cfg.SettingsFiles)
	}
	if cfg.Execution.Concurrency != 8 {
		t.Errorf("concurrency = %d, want 8", cfg.Execution.Concurrency)
	}
	if time.Duration(cfg.Execution.Timeout) != 90*time.Second {
		t.Errorf("timeout = %s, want 1m30s", cfg.Execution.Timeout)
	}
	if cfg.Execution.FailFast {
		t.Error("fail_fast = true, want false")
	}
	// Unset keys keep their defaults.
	if cfg.Execution.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("max_attempts = %d, want default %d", cfg.Execution.MaxAttempts, DefaultMaxAttempts)
	}
	if cfg.Cache.Enabled {
		t.Error("cache.enabled = true, want false")
	}
	if !cfg.Checkpoints.Enabled {
		t.Error("checkpoints.enabled should keep its default")
	}
	if cfg.Tools.Aliases["apply_patch"] != "edit" {
		t.Errorf("tools.aliases = %v", cfg.Tools.Aliases)
	}
	p, ok := cfg.Plugins["house-rules"]
	if !ok || p.Path != "/src/house-rules" || !p.IsEnabled() {
		t.Errorf("plugins.house-rules = %+v", p)
	}
}

func TestLoadFile_ExpandsHome(t *testing.T) {
	t.Parallel()

	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	cfg, err := LoadFile(writeConfig(t, `state_dir = "~/state"`))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if want := filepath.Join(home, "state"); cfg.StateDir != want {
		t.Errorf("state_dir = %q, want %q", cfg.StateDir, want)
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad toml", "state_dir = [[[", "failed to parse"},
		{"relative state dir", `state_dir = "./state"`, "state_dir must be absolute"},
		{"negative concurrency", "[execution]\nconcurrency = -1", "execution.concurrency"},
		{"bad duration", "[execution]\ntimeout = \"soon\"", "failed to parse"},
		{"unknown canonical tool", "[tools.aliases]\nzap = \"explode\"", `"edit", "write", "bash", "read", or "notebook_edit"`},
		{"relative plugin path", "[plugins.x]\npath = \"x\"", "plugins.x.path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := LoadFile(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidatePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path    string
		wantErr bool
	}{
		{"", false},
		{"/abs/path", false},
		{"~/state", false},
		{"~", false},
		{".", true},
		{"../state", true},
		{"relative", true},
	}

	for _, tt := range tests {
		err := ValidatePath(tt.path, "state_dir")
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidatePath(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
		}
	}
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		"HAN_STATE_DIR":      "/tmp/han-state",
		"HAN_NO_CACHE":       "1",
		"HAN_NO_CHECKPOINTS": "true",
		"HAN_NO_FAIL_FAST":   "nope",
	}
	cfg := Default()
	if err := cfg.ApplyEnv(func(k string) string { return env[k] }); err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}

	if cfg.StateDir != "/tmp/han-state" {
		t.Errorf("state_dir = %q", cfg.StateDir)
	}
	if cfg.Cache.Enabled {
		t.Error("HAN_NO_CACHE=1 should disable the cache")
	}
	if cfg.Checkpoints.Enabled {
		t.Error("HAN_NO_CHECKPOINTS=true should disable checkpoints")
	}
	if !cfg.Execution.FailFast {
		t.Error("unparseable HAN_NO_FAIL_FAST should be ignored")
	}
}

func TestDefaultConfigTemplateParses(t *testing.T) {
	t.Parallel()

	var cfg Config
	if _, err := toml.Decode(DefaultConfig(), &cfg); err != nil {
		t.Fatalf("default template does not parse: %v", err)
	}
	if cfg.Execution.Concurrency != DefaultConcurrency {
		t.Errorf("template concurrency = %d, want %d", cfg.Execution.Concurrency, DefaultConcurrency)
	}
	if time.Duration(cfg.Checkpoints.MaxAge) != DefaultCheckpointAge {
		t.Errorf("template max_age = %s, want %s", cfg.Checkpoints.MaxAge, DefaultCheckpointAge)
	}

	var local LocalConfig
	if _, err := toml.Decode(DefaultLocalConfig(), &local); err != nil {
		t.Fatalf("local template does not parse: %v", err)
	}
}

func TestEffectiveMarketplaceDir(t *testing.T) {
	t.Parallel()

	cfg := Default()
	if got := cfg.EffectiveMarketplaceDir("/home/u/.claude"); got != "/home/u/.claude/plugins/marketplaces" {
		t.Errorf("EffectiveMarketplaceDir() = %q", got)
	}
	cfg.MarketplaceDir = "/mp"
	if got := cfg.EffectiveMarketplaceDir("/home/u/.claude"); got != "/mp" {
		t.Errorf("EffectiveMarketplaceDir() = %q, want /mp", got)
	}
}

func TestWithConfig_FromContext(t *testing.T) {
	t.Parallel()

	if got := FromContext(context.Background()); got == nil || got.Execution.Concurrency != DefaultConcurrency {
		t.Errorf("FromContext on empty context = %+v, want defaults", got)
	}

	cfg := Default()
	cfg.StateDir = "/x"
	if got := FromContext(WithConfig(context.Background(), &cfg)); got != &cfg {
		t.Error("FromContext did not return the attached config")
	}
}
