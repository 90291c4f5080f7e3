package hooks

import (
	"regexp"
	"strings"
)

// shellQuote escapes a string for safe use in shell commands.
// It wraps the value in single quotes and escapes any embedded single quotes.
func shellQuote(s string) string {
	// e.g., "it's" becomes 'it'\''s'
	return "'" + strings.ReplaceAll(s, "'", "'\\''") + "'"
}

// Vars holds the values for placeholder substitution.
type Vars struct {
	Files      []string // touched files, relative to Dir
	Dir        string   // absolute evaluation directory
	Root       string   // absolute project root
	PluginRoot string
	Event      Event
	Session    string
}

// placeholderRegex matches {name} and {name:raw}.
var placeholderRegex = regexp.MustCompile(`\{(files|dir|root|plugin-root|event|session)(:raw)?\}`)

// SubstitutePlaceholders replaces placeholders with shell-quoted values.
//
//   - {files}: each file quoted separately, space-separated; empty when no files
//   - {dir}, {root}, {plugin-root}, {event}, {session}: one quoted word
//   - {name:raw}: the value unquoted, for embedding inside existing quotes
//
// Unknown {words} are left untouched so shell brace expressions keep working.
func SubstitutePlaceholders(command string, v Vars) string {
	return placeholderRegex.ReplaceAllStringFunc(command, func(match string) string {
		sub := placeholderRegex.FindStringSubmatch(match)
		raw := sub[2] == ":raw"

		if sub[1] == "files" {
			if raw {
				return strings.Join(v.Files, " ")
			}
			quoted := make([]string, len(v.Files))
			for i, f := range v.Files {
				quoted[i] = shellQuote(f)
			}
			return strings.Join(quoted, " ")
		}

		var val string
		switch sub[1] {
		case "dir":
			val = v.Dir
		case "root":
			val = v.Root
		case "plugin-root":
			val = v.PluginRoot
		case "event":
			val = string(v.Event)
		case "session":
			val = v.Session
		}
		if raw {
			return val
		}
		return shellQuote(val)
	})
}

// Env returns the environment variables exported to hook processes.
// HAN_FILES is newline-separated.
func Env(v Vars) []string {
	return []string{
		"HAN_FILES=" + strings.Join(v.Files, "\n"),
		"HAN_DIR=" + v.Dir,
		"HAN_EVENT=" + string(v.Event),
		"HAN_SESSION_ID=" + v.Session,
		"CLAUDE_PLUGIN_ROOT=" + v.PluginRoot,
		"CLAUDE_PROJECT_DIR=" + v.Root,
	}
}
