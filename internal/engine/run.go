package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/raphi011/han/internal/cache"
	"github.com/raphi011/han/internal/checkpoint"
	"github.com/raphi011/han/internal/claude"
	"github.com/raphi011/han/internal/executor"
	"github.com/raphi011/han/internal/git"
	"github.com/raphi011/han/internal/history"
	"github.com/raphi011/han/internal/hooks"
	"github.com/raphi011/han/internal/log"
	"github.com/raphi011/han/internal/match"
	"github.com/raphi011/han/internal/report"
	"github.com/raphi011/han/internal/transcript"
)

// Exit codes of an event invocation.
const (
	ExitOK          = 0 // allowed, or all hooks passed
	ExitFailed      = 1 // a validation event had failing hooks
	ExitDenied      = 2 // a gating event was denied
	ExitConfigError = 3 // dependency cycle among matched hooks
)

// Request describes one event invocation.
type Request struct {
	Event          hooks.Event
	ToolName       string
	ToolPaths      []string // files named by the tool call, absolute or relative to the working directory
	Files          []string // explicit touched files; replaces change detection when set
	Scope          string   // restrict matching to this directory, absolute or relative to the root; empty = project root
	SessionID      string
	AgentID        string
	TranscriptPath string
	Only           []string // restrict to these hook refs
	Predicate      match.Predicate
}

// Outcome is the result of an event invocation.
type Outcome struct {
	RunID    string
	Event    hooks.Event
	Gating   bool
	Decision report.Decision // gating events only
	Summary  report.Summary
	Results  []hooks.Result
	Touched  []string
	ExitCode int
}

// Blocked reports whether the outcome denies a gating event.
func (o *Outcome) Blocked() bool {
	return o.Gating && o.Decision.Blocked()
}

// Run handles one event: optional checkpoint capture, touched-file
// detection, matching, execution and reporting.
func (p *Project) Run(ctx context.Context, req Request) (*Outcome, error) {
	l := log.FromContext(ctx)
	cfg := p.Config
	runID := uuid.NewString()
	warnings := append([]string(nil), p.Warnings...)
	warn := func(msg string, args ...any) {
		l.Warn(msg, args...)
		warnings = append(warnings, log.Format(msg, args...))
	}

	p.captureCheckpoint(ctx, req, warn)

	touched, err := p.touchedPaths(ctx, req, warn)
	if err != nil {
		return nil, err
	}

	reg := p.Registry
	if len(req.Only) > 0 {
		reg = reg.Only(req.Only)
	}
	m := &match.Matcher{Registry: reg, Tools: p.Tools, Predicate: req.Predicate}
	matched, err := m.Match(ctx, match.Context{
		Event:        req.Event,
		ToolName:     req.ToolName,
		TouchedPaths: touched,
		Root:         p.Root,
		Dir:          p.scopeDir(req.Scope),
	})

	out := &Outcome{RunID: runID, Event: req.Event, Gating: req.Event.IsGating(), Touched: touched}
	opts := report.Options{OutputLimit: cfg.Execution.OutputLimit}

	var cycle *match.CycleError
	if errors.As(err, &cycle) {
		notice := fmt.Sprintf("hook configuration error: %v", cycle)
		l.Warn("dependency cycle", "cycle", strings.Join(cycle.Cycle, " -> "))
		opts.Notices = append(warnings, notice)
		out.Summary = report.NewSummary(req.Event, runID, nil, opts)
		out.Summary.Passed = false
		out.Decision = report.DenyWith(notice)
		out.ExitCode = ExitConfigError
		return out, nil
	}
	if err != nil {
		return nil, err
	}

	var c *cache.Cache
	if cfg.Cache.Enabled {
		c = p.Cache()
	}
	ex := executor.New(executor.Options{
		Root:        p.Root,
		Event:       req.Event,
		SessionID:   req.SessionID,
		Concurrency: cfg.Execution.Concurrency,
		Timeout:     cfg.Execution.Timeout.Std(),
		FailFast:    cfg.Execution.FailFast,
		Cache:       c,
	})
	results := ex.Run(ctx, matched.Matches)

	for _, s := range matched.Skipped {
		results = append(results, hooks.Result{
			Plugin:     s.Hook.Plugin,
			Name:       s.Hook.Name,
			Dir:        s.Dir,
			Skipped:    true,
			SkipReason: hooks.SkipNoFiles,
		})
	}
	out.Results = results

	opts.Exhausted = p.recordAttempts(ctx, results, warn)
	opts.Notices = warnings

	run := history.Run{ID: runID, Event: req.Event, Session: req.SessionID, Root: p.Root}
	if err := history.Append(p.HistoryPath(), run, results); err != nil {
		l.Warn("history not written", "error", err)
	}

	out.Summary = report.NewSummary(req.Event, runID, results, opts)
	switch {
	case out.Gating:
		// Warnings stay in the summary; a decision carries only what blocks.
		out.Decision = report.NewDecision(results, report.Options{
			OutputLimit: cfg.Execution.OutputLimit,
			Exhausted:   opts.Exhausted,
		})
		if out.Decision.Blocked() {
			out.ExitCode = ExitDenied
		}
	case !out.Summary.Passed:
		out.ExitCode = ExitFailed
	}

	l.Debug("event handled", "event", req.Event, "runId", runID, "hooks", len(results), "exit", out.ExitCode)
	return out, nil
}

// ErrorOutcome reports an invocation that could not be handled at all.
// A gating event is denied with err as the reason so the action it guards
// does not go through unvalidated; any other event reports a failed summary.
func ErrorOutcome(e hooks.Event, err error) *Outcome {
	runID := uuid.NewString()
	reason := fmt.Sprintf("han: internal error: %v", err)
	out := &Outcome{RunID: runID, Event: e, Gating: e.IsGating()}
	out.Summary = report.NewSummary(e, runID, nil, report.Options{Notices: []string{reason}})
	out.Summary.Passed = false
	if out.Gating {
		out.Decision = report.DenyWith(reason)
		out.ExitCode = ExitDenied
	} else {
		out.ExitCode = ExitFailed
	}
	return out
}

// captureCheckpoint snapshots the tree when a session or subagent starts,
// then sweeps expired checkpoints.
func (p *Project) captureCheckpoint(ctx context.Context, req Request, warn func(string, ...any)) {
	if !p.Config.Checkpoints.Enabled {
		return
	}
	var scope checkpoint.Scope
	var id string
	switch req.Event {
	case hooks.SessionStart:
		scope, id = checkpoint.SessionScope, req.SessionID
	case hooks.SubagentStart:
		scope, id = checkpoint.AgentScope, req.AgentID
	default:
		return
	}
	if id == "" {
		return
	}

	store := p.Checkpoints()
	if _, err := store.Capture(ctx, scope, id); err != nil {
		warn("checkpoint not captured", "scope", scope, "id", id, "error", err)
	}
	if _, err := store.Clean(ctx, p.Config.Checkpoints.MaxAge.Std()); err != nil {
		log.FromContext(ctx).Debug("checkpoint sweep failed", "error", err)
	}
}

// touchedPaths determines the files the event is about, relative to the root.
//
// Explicit files win, then the tool call's own files. Start events have
// nothing touched yet. Otherwise the diff against the session (or subagent)
// checkpoint, narrowed by the session transcript; without a checkpoint, every
// tracked file.
func (p *Project) touchedPaths(ctx context.Context, req Request, warn func(string, ...any)) ([]string, error) {
	l := log.FromContext(ctx)

	if len(req.Files) > 0 {
		return p.relativize(req.Files), nil
	}
	if len(req.ToolPaths) > 0 {
		return p.relativize(req.ToolPaths), nil
	}

	switch req.Event {
	case hooks.SessionStart, hooks.SubagentStart:
		return nil, nil
	}

	scope, id := checkpoint.SessionScope, req.SessionID
	if req.Event == hooks.SubagentStop && req.AgentID != "" {
		scope, id = checkpoint.AgentScope, req.AgentID
	}

	if !p.Config.Checkpoints.Enabled || id == "" {
		files, err := git.ListFiles(ctx, p.Root)
		if err != nil {
			return nil, fmt.Errorf("list files: %w", err)
		}
		l.Debug("no checkpoint scope, using all tracked files", "files", len(files))
		return files, nil
	}

	diff, err := p.Checkpoints().Diff(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if diff.Fallback {
		warn("no checkpoint, validating all tracked files", "scope", scope, "id", id)
		return diff.Paths(), nil
	}
	if scope != checkpoint.SessionScope {
		return diff.Paths(), nil
	}

	tp := req.TranscriptPath
	if tp == "" {
		tp = claude.TranscriptPath(p.ClaudeDir, p.Root, req.SessionID)
	}
	scoped := transcript.Scope(diff.Paths(), tp, p.Root, p.Tools)
	if scoped.Degraded {
		l.Debug("transcript unavailable, using the full checkpoint diff", "transcript", tp)
	}
	return scoped.Paths, nil
}

// relativize maps paths (absolute, or relative to the working directory) to
// root-relative slash paths. Paths outside the root are dropped.
func (p *Project) relativize(paths []string) []string {
	var out []string
	for _, path := range paths {
		if !filepath.IsAbs(path) {
			path = filepath.Join(p.WorkDir, path)
		}
		rel, err := filepath.Rel(p.Root, filepath.Clean(path))
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		out = append(out, filepath.ToSlash(rel))
	}
	return out
}

// scopeDir resolves a request scope against the project root.
func (p *Project) scopeDir(scope string) string {
	if scope == "" || filepath.IsAbs(scope) {
		return scope
	}
	return filepath.Join(p.Root, scope)
}

// recordAttempts updates consecutive failure counts and returns the slots
// whose failures no longer block.
func (p *Project) recordAttempts(ctx context.Context, results []hooks.Result, warn func(string, ...any)) map[string]bool {
	maxAttempts := p.Config.Execution.MaxAttempts
	c := p.Cache()
	exhausted := make(map[string]bool)
	for i := range results {
		r := &results[i]
		if r.Skipped || r.CacheHit {
			continue
		}
		slot := cache.Slot(r.Plugin, r.Name, r.Dir)
		n, err := c.RecordAttempt(slot, r.Failed())
		if err != nil {
			log.FromContext(ctx).Debug("attempt not recorded", "slot", slot, "error", err)
			continue
		}
		if r.Failed() && c.Exhausted(slot, maxAttempts) {
			exhausted[slot] = true
			warn("hook keeps failing, no longer blocking", "hook", r.Ref(), "dir", r.Dir, "failures", n)
		}
	}
	return exhausted
}
