package config

import (
	"context"
	"strconv"
)

// ApplyEnv applies HAN_* environment overrides using getenv (usually os.Getenv).
// Boolean variables accept anything strconv.ParseBool does; unparseable
// values are ignored.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("HAN_STATE_DIR"); v != "" {
		expanded, err := ExpandPath(v)
		if err != nil {
			return err
		}
		c.StateDir = expanded
	}
	if envBool(getenv, "HAN_NO_CACHE") {
		c.Cache.Enabled = false
	}
	if envBool(getenv, "HAN_NO_CHECKPOINTS") {
		c.Checkpoints.Enabled = false
	}
	if envBool(getenv, "HAN_NO_FAIL_FAST") {
		c.Execution.FailFast = false
	}
	return nil
}

func envBool(getenv func(string) string, key string) bool {
	b, err := strconv.ParseBool(getenv(key))
	return err == nil && b
}

type ctxKey struct{}

// WithConfig returns a new context carrying cfg.
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, ctxKey{}, cfg)
}

// FromContext returns the Config from context, or defaults if none is stored.
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(ctxKey{}).(*Config); ok {
		return cfg
	}
	d := Default()
	return &d
}
