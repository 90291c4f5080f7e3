package match

import (
	"slices"
	"strings"
)

// builtinTools maps host-specific tool names to the canonical vocabulary.
var builtinTools = map[string]string{
	"Edit":                        "edit",
	"MultiEdit":                   "edit",
	"str_replace_based_edit_tool": "edit",
	"replace":                     "edit",
	"Write":                       "write",
	"create_file":                 "write",
	"write_file":                  "write",
	"Bash":                        "bash",
	"run_shell_command":           "bash",
	"Read":                        "read",
	"view":                        "read",
	"read_file":                   "read",
	"NotebookEdit":                "notebook_edit",
}

// Tools normalizes tool names. The zero value uses only the built-in table.
type Tools struct {
	aliases map[string]string
}

// NewTools returns a normalizer with extra aliases (host name -> canonical).
// Extra aliases take precedence over the built-in table.
func NewTools(aliases map[string]string) *Tools {
	return &Tools{aliases: aliases}
}

// Canonical returns the canonical name for a host tool name.
// Unknown names are lowercased.
func (t *Tools) Canonical(name string) string {
	name = strings.TrimSpace(name)
	if t != nil {
		if c, ok := t.aliases[name]; ok {
			return c
		}
	}
	if c, ok := builtinTools[name]; ok {
		return c
	}
	return strings.ToLower(name)
}

// Allowed reports whether tool passes filter. Both sides are normalized, so
// a filter of "Edit" admits MultiEdit and str_replace_based_edit_tool.
// An empty filter admits every tool.
func (t *Tools) Allowed(filter []string, tool string) bool {
	if len(filter) == 0 {
		return true
	}
	if tool == "" {
		return false
	}
	c := t.Canonical(tool)
	return slices.ContainsFunc(filter, func(f string) bool {
		return t.Canonical(f) == c
	})
}
