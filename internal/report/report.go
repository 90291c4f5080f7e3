// Package report turns hook results into the payload returned to the host.
//
// Gating events get a Decision: allow, or deny with the failing hooks'
// output as the reason. All other events get a Summary listing every hook.
// Table renders a Summary for humans.
package report

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/raphi011/han/internal/cache"
	"github.com/raphi011/han/internal/config"
	"github.com/raphi011/han/internal/hooks"
)

// Decision values.
const (
	Allow = "allow"
	Deny  = "deny"
)

// Decision is the result payload of a gating event.
type Decision struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason,omitempty"`
}

// Blocked reports whether the decision denies the action.
func (d Decision) Blocked() bool {
	return d.Decision == Deny
}

// Options tune how results are reported.
type Options struct {
	// OutputLimit caps the captured output quoted per hook, keeping the
	// tail. <= 0 uses config.DefaultOutputLimit.
	OutputLimit int
	// Exhausted holds the slots (cache.Slot) of failed hooks that reached
	// max_attempts; their failures are reported but do not deny.
	Exhausted map[string]bool
	// Notices are appended to the reason, e.g. a dependency cycle.
	Notices []string
}

func (o Options) limit() int {
	if o.OutputLimit <= 0 {
		return config.DefaultOutputLimit
	}
	return o.OutputLimit
}

// NewDecision decides a gating event. Any failed hook denies unless it has
// exhausted its attempts. Skipped hooks never deny.
func NewDecision(results []hooks.Result, opts Options) Decision {
	var blocking, forgiven []string
	for i := range results {
		r := &results[i]
		if !r.Failed() {
			continue
		}
		if opts.Exhausted[cache.Slot(r.Plugin, r.Name, r.Dir)] {
			forgiven = append(forgiven, fmt.Sprintf("%s failed again in %s; not blocking after repeated failures", r.Ref(), r.Dir))
			continue
		}
		blocking = append(blocking, failureText(r, opts.limit()))
	}

	var parts []string
	parts = append(parts, blocking...)
	parts = append(parts, forgiven...)
	parts = append(parts, opts.Notices...)
	d := Decision{Decision: Allow, Reason: strings.Join(parts, "\n\n")}
	if len(blocking) > 0 {
		d.Decision = Deny
	}
	return d
}

// DenyWith returns a deny decision with reason.
func DenyWith(reason string) Decision {
	return Decision{Decision: Deny, Reason: reason}
}

func failureText(r *hooks.Result, limit int) string {
	var status string
	switch {
	case r.TimedOut:
		status = "timed out"
	case r.Err != nil:
		status = "error: " + r.Err.Error()
	default:
		status = fmt.Sprintf("exit %d", r.ExitCode)
	}

	head := fmt.Sprintf("%s failed in %s (%s)", r.Ref(), r.Dir, status)
	out := strings.TrimSpace(strings.TrimSpace(r.Stdout) + "\n" + strings.TrimSpace(r.Stderr))
	if out == "" {
		return head
	}
	return head + ":\n" + Tail(out, limit)
}

// Tail returns at most the last limit bytes of s, cut at a line boundary when
// one is available and never inside a UTF-8 sequence, prefixed with a
// truncation marker.
func Tail(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	start := len(s) - limit
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	cut := s[start:]
	if i := strings.IndexByte(cut, '\n'); i >= 0 && i < len(cut)-1 {
		cut = cut[i+1:]
	}
	return "...(truncated)\n" + cut
}

// HookReport is one hook's entry in a Summary.
type HookReport struct {
	Name       string `json:"name"`
	Plugin     string `json:"plugin"`
	Dir        string `json:"dir"`
	ExitCode   int    `json:"exitCode"`
	DurationMs int64  `json:"durationMs"`
	CacheHit   bool   `json:"cacheHit"`
	Skipped    bool   `json:"skipped"`
	SkipReason string `json:"skipReason,omitempty"`
	TimedOut   bool   `json:"timedOut"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	Error      string `json:"error,omitempty"`
}

// Failed reports whether the hook ran and did not pass.
func (h HookReport) Failed() bool {
	return !h.Skipped && (h.ExitCode != 0 || h.TimedOut || h.Error != "")
}

// Summary is the result payload of a validation event.
type Summary struct {
	Event    hooks.Event  `json:"event"`
	RunID    string       `json:"runId"`
	Passed   bool         `json:"passed"`
	Hooks    []HookReport `json:"hooks"`
	Warnings []string     `json:"warnings,omitempty"`
}

// NewSummary builds the summary of a run. Output is trimmed to the option's
// limit.
func NewSummary(event hooks.Event, runID string, results []hooks.Result, opts Options) Summary {
	s := Summary{Event: event, RunID: runID, Passed: true, Hooks: make([]HookReport, 0, len(results))}
	for i := range results {
		r := &results[i]
		h := HookReport{
			Name:       r.Name,
			Plugin:     r.Plugin,
			Dir:        r.Dir,
			ExitCode:   r.ExitCode,
			DurationMs: r.Duration.Milliseconds(),
			CacheHit:   r.CacheHit,
			Skipped:    r.Skipped,
			SkipReason: r.SkipReason,
			TimedOut:   r.TimedOut,
			Stdout:     Tail(r.Stdout, opts.limit()),
			Stderr:     Tail(r.Stderr, opts.limit()),
		}
		if r.Err != nil {
			h.Error = r.Err.Error()
		}
		if r.Failed() {
			s.Passed = false
		}
		s.Hooks = append(s.Hooks, h)
	}
	s.Warnings = append(s.Warnings, opts.Notices...)
	return s
}
