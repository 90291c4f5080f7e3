package hooks

import (
	"fmt"
	"slices"
	"time"
)

// Event is a host lifecycle event name.
type Event string

const (
	SessionStart     Event = "SessionStart"
	SessionEnd       Event = "SessionEnd"
	UserPromptSubmit Event = "UserPromptSubmit"
	PreToolUse       Event = "PreToolUse"
	PostToolUse      Event = "PostToolUse"
	Notification     Event = "Notification"
	Stop             Event = "Stop"
	SubagentStart    Event = "SubagentStart"
	SubagentStop     Event = "SubagentStop"
	PreCompact       Event = "PreCompact"
)

// KnownEvents lists every event a hook may bind to.
var KnownEvents = []Event{
	SessionStart, SessionEnd, UserPromptSubmit, PreToolUse, PostToolUse,
	Notification, Stop, SubagentStart, SubagentStop, PreCompact,
}

// ParseEvent validates an event name. Names are case-sensitive.
func ParseEvent(s string) (Event, error) {
	e := Event(s)
	if !slices.Contains(KnownEvents, e) {
		return "", fmt.Errorf("unknown event %q", s)
	}
	return e, nil
}

// IsGating reports whether the event's result can block the triggering action.
// Gating events produce an allow/deny decision; all others a summary.
func (e Event) IsGating() bool {
	switch e {
	case PreToolUse, UserPromptSubmit, Stop, SubagentStop:
		return true
	}
	return false
}

// Skip reasons reported on results that were not executed.
const (
	SkipNoFiles    = "no matching files"
	SkipFailFast   = "fail-fast"
	SkipDependency = "dependency failed"
)

// Definition is one hook parsed from a plugin manifest.
// Definitions are immutable once the registry is built.
type Definition struct {
	Name        string
	Plugin      string
	PluginRoot  string
	Events      []Event
	Command     string
	Description string
	ToolFilter  []string      // tool names as declared, normalized at match time; empty = any tool
	FileFilter  []string      // doublestar globs; empty = no file filter
	DirsWith    []string      // marker files; hook runs once per directory containing one
	DirTest     string        // shell predicate, exit 0 = applies
	Timeout     time.Duration // 0 = executor default
	DependsOn   []string      // refs (plugin/name) after resolution
	Cache       bool
}

// Ref returns the hook's unique reference, plugin/name.
func (d *Definition) Ref() string {
	return d.Plugin + "/" + d.Name
}

// BoundTo reports whether the hook triggers on e.
func (d *Definition) BoundTo(e Event) bool {
	return slices.Contains(d.Events, e)
}

// Result is the outcome of one hook in one evaluation directory.
type Result struct {
	Plugin     string
	Name       string
	Dir        string // evaluation directory, relative to the project root
	Files      []string
	ExitCode   int
	Stdout     string
	Stderr     string
	Started    time.Time
	Finished   time.Time
	Duration   time.Duration
	Skipped    bool
	SkipReason string
	CacheHit   bool
	TimedOut   bool
	Err        error // start failure or internal error
}

// Ref returns plugin/name of the hook that produced the result.
func (r *Result) Ref() string {
	return r.Plugin + "/" + r.Name
}

// Failed reports whether the hook ran and did not succeed.
// Skipped results never count as failures.
func (r *Result) Failed() bool {
	if r.Skipped {
		return false
	}
	return r.ExitCode != 0 || r.TimedOut || r.Err != nil
}

// AnyFailed reports whether any result failed.
func AnyFailed(results []Result) bool {
	for i := range results {
		if results[i].Failed() {
			return true
		}
	}
	return false
}
