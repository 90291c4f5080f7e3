package config

import (
	"fmt"
	"slices"
	"strings"
)

// CanonicalTools is the vocabulary tool aliases may map to.
var CanonicalTools = []string{"edit", "write", "bash", "read", "notebook_edit"}

// validate checks value ranges and enums of a decoded global config.
func (c *Config) validate() error {
	if c.Execution.Concurrency < 0 {
		return fmt.Errorf("invalid execution.concurrency %d: must not be negative", c.Execution.Concurrency)
	}
	if c.Execution.Timeout < 0 {
		return fmt.Errorf("invalid execution.timeout %s: must not be negative", c.Execution.Timeout)
	}
	if c.Execution.MaxAttempts < 0 {
		return fmt.Errorf("invalid execution.max_attempts %d: must not be negative", c.Execution.MaxAttempts)
	}
	if err := validateAliases(c.Tools.Aliases, ""); err != nil {
		return err
	}
	for name, p := range c.Plugins {
		if err := ValidatePath(p.Path, "plugins."+name+".path"); err != nil {
			return err
		}
	}
	return nil
}

// validate checks a decoded local config; contextInfo names the file.
func (l *LocalConfig) validate(contextInfo string) error {
	if v := l.Execution.Concurrency; v != nil && *v < 0 {
		return fmt.Errorf("invalid execution.concurrency %d in %s: must not be negative", *v, contextInfo)
	}
	if v := l.Execution.Timeout; v != nil && *v < 0 {
		return fmt.Errorf("invalid execution.timeout %s in %s: must not be negative", *v, contextInfo)
	}
	if v := l.Execution.MaxAttempts; v != nil && *v < 0 {
		return fmt.Errorf("invalid execution.max_attempts %d in %s: must not be negative", *v, contextInfo)
	}
	return validateAliases(l.Tools.Aliases, contextInfo)
}

func validateAliases(aliases map[string]string, contextInfo string) error {
	for from, to := range aliases {
		if err := validateEnum(to, "tools.aliases."+from, CanonicalTools); err != nil {
			if contextInfo != "" {
				return fmt.Errorf("%w in %s", err, contextInfo)
			}
			return err
		}
	}
	return nil
}

// validateEnum checks that value (if non-empty) is one of the allowed values.
// Returns a formatted error mentioning the field name and allowed options.
func validateEnum(value, field string, allowed []string) error {
	if value == "" {
		return nil
	}
	if !slices.Contains(allowed, value) {
		return fmt.Errorf("invalid %s %q: must be %s", field, value, formatOptions(allowed))
	}
	return nil
}

// formatOptions formats a list of allowed values for error messages.
// E.g., ["a", "b", "c"] -> `"a", "b", or "c"`
func formatOptions(opts []string) string {
	quoted := make([]string, len(opts))
	for i, o := range opts {
		quoted[i] = fmt.Sprintf("%q", o)
	}
	if len(quoted) <= 2 {
		return strings.Join(quoted, " or ")
	}
	return strings.Join(quoted[:len(quoted)-1], ", ") + ", or " + quoted[len(quoted)-1]
}
