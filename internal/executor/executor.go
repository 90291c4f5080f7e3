// Package executor runs matched hooks as shell processes.
//
// Hooks run with bounded parallelism. A hook starts only after every matched
// hook it depends on has finished, and is skipped if one of them did not
// pass. With fail-fast enabled, the first failure skips every hook that has
// not started yet; hooks already running finish normally. Each hook runs in
// its own process group and the whole group is killed when its timeout
// expires.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/raphi011/han/internal/cache"
	"github.com/raphi011/han/internal/config"
	"github.com/raphi011/han/internal/hooks"
	"github.com/raphi011/han/internal/log"
	"github.com/raphi011/han/internal/match"
)

// waitDelay bounds how long Wait blocks on output pipes held open by
// orphaned grandchildren after the hook process exits.
const waitDelay = 2 * time.Second

// Options configures a batch run.
type Options struct {
	Root        string // absolute project root
	Event       hooks.Event
	SessionID   string
	Concurrency int           // <= 0 uses config.DefaultConcurrency
	Timeout     time.Duration // per hook unless the hook sets its own; <= 0 uses config.DefaultTimeout
	FailFast    bool
	// Cache, when set, short-circuits hooks whose inputs are unchanged since
	// they last passed and records new outcomes.
	Cache *cache.Cache
}

// Executor runs batches of matched hooks.
type Executor struct {
	opts Options
}

// New creates an executor.
func New(opts Options) *Executor {
	if opts.Concurrency <= 0 {
		opts.Concurrency = config.DefaultConcurrency
	}
	if opts.Timeout <= 0 {
		opts.Timeout = config.DefaultTimeout
	}
	return &Executor{opts: opts}
}

// Run executes matches, which must be in dependency order, and returns one
// result per match in the same order.
func (e *Executor) Run(ctx context.Context, matches []match.Match) []hooks.Result {
	l := log.FromContext(ctx)
	results := make([]hooks.Result, len(matches))
	done := make([]chan struct{}, len(matches))
	for i := range done {
		done[i] = make(chan struct{})
	}

	prereqs := make([][]int, len(matches))
	for i, m := range matches {
		for j := range i {
			if slices.Contains(m.Hook.DependsOn, matches[j].Hook.Ref()) {
				prereqs[i] = append(prereqs[i], j)
			}
		}
	}

	var failed atomic.Bool

	// Launching in dependency order keeps the pool from filling with hooks
	// whose prerequisites have not been scheduled.
	var g errgroup.Group
	g.SetLimit(e.opts.Concurrency)
	for i, m := range matches {
		g.Go(func() error {
			defer close(done[i])

			for _, j := range prereqs[i] {
				<-done[j]
			}

			r := e.runOne(ctx, m, prereqs[i], results, &failed)
			if r.Failed() {
				failed.Store(true)
			}
			results[i] = r
			return nil
		})
	}
	_ = g.Wait()

	l.Debug("batch finished", "event", e.opts.Event, "hooks", len(matches), "failed", failed.Load())
	return results
}

func (e *Executor) runOne(ctx context.Context, m match.Match, prereqs []int, results []hooks.Result, failed *atomic.Bool) (r hooks.Result) {
	r = hooks.Result{Plugin: m.Hook.Plugin, Name: m.Hook.Name, Dir: m.Dir, Files: m.Files}

	defer func() {
		if p := recover(); p != nil {
			r.Err = fmt.Errorf("hook panicked: %v", p)
			r.ExitCode = -1
			r.Finished = time.Now()
			if r.Started.IsZero() {
				r.Started = r.Finished
			}
			r.Duration = r.Finished.Sub(r.Started)
		}
	}()

	for _, j := range prereqs {
		if dep := results[j]; dep.Failed() || dep.Skipped {
			r.Skipped = true
			r.SkipReason = hooks.SkipDependency
			return r
		}
	}
	if e.opts.FailFast && failed.Load() {
		r.Skipped = true
		r.SkipReason = hooks.SkipFailFast
		return r
	}
	if err := ctx.Err(); err != nil {
		r.Err = err
		r.ExitCode = -1
		return r
	}

	key := e.cacheKey(ctx, m)
	if key != "" {
		if _, ok := e.opts.Cache.Lookup(key); ok {
			now := time.Now()
			r.CacheHit = true
			r.Started, r.Finished = now, now
			log.FromContext(ctx).Debug("cache hit", "hook", m.Hook.Ref(), "dir", m.Dir)
			return r
		}
	}

	r = e.execute(ctx, m, r)

	if key != "" && r.Err == nil && !r.TimedOut {
		entry := cache.Entry{
			Plugin:     r.Plugin,
			Hook:       r.Name,
			Dir:        r.Dir,
			ExitCode:   r.ExitCode,
			DurationMs: r.Duration.Milliseconds(),
		}
		if err := e.opts.Cache.Record(key, entry); err != nil {
			log.FromContext(ctx).Warn("cache write failed", "hook", m.Hook.Ref(), "error", err)
		}
	}
	return r
}

// cacheKey returns "" when the match is not cacheable: caching is off, the
// hook opted out or there are no input files to key on.
func (e *Executor) cacheKey(ctx context.Context, m match.Match) string {
	if e.opts.Cache == nil || !m.Hook.Cache || len(m.Files) == 0 {
		return ""
	}
	files, err := cache.HashFiles(ctx, e.opts.Root, m.Files)
	if err != nil {
		log.FromContext(ctx).Debug("hashing inputs failed, not caching", "hook", m.Hook.Ref(), "error", err)
		return ""
	}
	return cache.Key(m.Hook.Plugin, m.Hook.Name, m.Dir, m.Hook.Command, files)
}

func (e *Executor) execute(ctx context.Context, m match.Match, r hooks.Result) hooks.Result {
	timeout := m.Hook.Timeout
	if timeout <= 0 {
		timeout = e.opts.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dir := m.AbsDir(e.opts.Root)
	vars := hooks.Vars{
		Files:      m.RelFiles(),
		Dir:        dir,
		Root:       e.opts.Root,
		PluginRoot: m.Hook.PluginRoot,
		Event:      e.opts.Event,
		Session:    e.opts.SessionID,
	}
	script := hooks.SubstitutePlaceholders(m.Hook.Command, vars)

	cmd := exec.CommandContext(ctx, "sh", "-c", script)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), hooks.Env(vars)...)
	setProcGroup(cmd)
	cmd.Cancel = func() error {
		return killProcGroup(cmd)
	}
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	finish := log.FromContext(ctx).Command(m.Dir, m.Hook.Ref(), script)
	r.Started = time.Now()
	runErr := cmd.Run()
	r.Finished = time.Now()
	r.Duration = r.Finished.Sub(r.Started)
	finish(r.Duration)

	r.Stdout = stdout.String()
	r.Stderr = stderr.String()

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		r.TimedOut = true
		r.ExitCode = -1
		r.Stderr += fmt.Sprintf("\nhook timed out after %s", timeout)
	case ctx.Err() != nil:
		r.Err = ctx.Err()
		r.ExitCode = -1
	case runErr != nil:
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			r.ExitCode = exitErr.ExitCode()
		} else if cmd.ProcessState != nil {
			// Exited, but a background child kept the output pipes open.
			r.ExitCode = cmd.ProcessState.ExitCode()
		} else {
			r.Err = fmt.Errorf("start hook: %w", runErr)
			r.ExitCode = -1
		}
	}
	return r
}
