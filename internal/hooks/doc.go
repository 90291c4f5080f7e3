// Package hooks defines the types shared by every stage of a hook run:
// lifecycle events, hook definitions parsed from plugin manifests, and the
// per-hook results the reporter consumes.
//
// # Events
//
// Gating events (PreToolUse, UserPromptSubmit, Stop, SubagentStop) can block
// the host's action and are answered with an allow/deny decision. All other
// events are validation events and get a pass/fail summary.
//
// # Placeholder Substitution
//
// Hook commands may reference:
//
//   - {files}: touched files, relative to the evaluation directory
//   - {dir}: absolute evaluation directory
//   - {root}: absolute project root
//   - {plugin-root}: the owning plugin's directory
//   - {event}: the firing event name
//   - {session}: the session id
//
// Values are shell-quoted; append :raw ({files:raw}) for the unquoted value.
// The same values are exported as HAN_FILES, HAN_DIR, HAN_EVENT,
// HAN_SESSION_ID, CLAUDE_PLUGIN_ROOT and CLAUDE_PROJECT_DIR.
package hooks
