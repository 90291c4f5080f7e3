package executor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/raphi011/han/internal/cache"
	"github.com/raphi011/han/internal/hooks"
	"github.com/raphi011/han/internal/match"
)

func hook(name, command string, deps ...string) match.Match {
	return match.Match{
		Hook: &hooks.Definition{Plugin: "p", Name: name, Command: command, DependsOn: deps, Cache: true},
		Dir:  ".",
	}
}

func TestRun_Outcomes(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	e := New(Options{Root: root, Event: hooks.Stop, SessionID: "s1"})

	results := e.Run(context.Background(), []match.Match{
		hook("ok", "echo out; echo err >&2"),
		hook("fail", "exit 3"),
	})
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}

	ok := results[0]
	if ok.Failed() || ok.ExitCode != 0 {
		t.Errorf("ok result = %+v", ok)
	}
	if ok.Stdout != "out\n" || ok.Stderr != "err\n" {
		t.Errorf("captured stdout=%q stderr=%q", ok.Stdout, ok.Stderr)
	}
	if ok.Started.IsZero() || ok.Finished.Before(ok.Started) {
		t.Errorf("bad timestamps: %v -> %v", ok.Started, ok.Finished)
	}

	if fail := results[1]; !fail.Failed() || fail.ExitCode != 3 {
		t.Errorf("fail result exit=%d failed=%v, want 3/true", fail.ExitCode, fail.Failed())
	}
}

func TestRun_PlaceholdersAndEnv(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	sub := filepath.Join(root, "svc")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	m := match.Match{
		Hook: &hooks.Definition{
			Plugin:     "p",
			Name:       "env",
			PluginRoot: "/plugins/p",
			Command:    `printf '%s|' {files} "$HAN_EVENT" "$HAN_SESSION_ID" "$CLAUDE_PLUGIN_ROOT" "$(pwd)"`,
		},
		Dir:   "svc",
		Files: []string{"svc/a b.go", "svc/c.go"},
	}
	e := New(Options{Root: root, Event: hooks.PostToolUse, SessionID: "sess"})
	r := e.Run(context.Background(), []match.Match{m})[0]
	if r.Failed() {
		t.Fatalf("hook failed: %+v", r)
	}

	pwd, _ := filepath.EvalSymlinks(sub)
	want := "a b.go|c.go|PostToolUse|sess|/plugins/p|"
	if !strings.HasPrefix(r.Stdout, want) {
		t.Errorf("stdout = %q, want prefix %q", r.Stdout, want)
	}
	if got := strings.TrimSuffix(strings.TrimPrefix(r.Stdout, want), "|"); got != sub && got != pwd {
		t.Errorf("hook ran in %q, want %q", got, sub)
	}
}

func TestRun_Timeout(t *testing.T) {
	t.Parallel()

	m := hook("slow", "sleep 10 & sleep 10; wait")
	m.Hook.Timeout = 200 * time.Millisecond

	start := time.Now()
	r := New(Options{Root: t.TempDir()}).Run(context.Background(), []match.Match{m})[0]

	if !r.TimedOut || !r.Failed() {
		t.Errorf("TimedOut=%v Failed=%v, want true/true", r.TimedOut, r.Failed())
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("timeout took %s; the process group was not killed", elapsed)
	}
}

func TestRun_StartFailure(t *testing.T) {
	t.Parallel()

	m := hook("nodir", "true")
	m.Dir = "does/not/exist"
	r := New(Options{Root: t.TempDir()}).Run(context.Background(), []match.Match{m})[0]
	if r.Err == nil || !r.Failed() {
		t.Errorf("result = %+v, want a failed result with Err", r)
	}
}

func TestRun_DependencyOrder(t *testing.T) {
	t.Parallel()

	e := New(Options{Root: t.TempDir(), Concurrency: 4})
	results := e.Run(context.Background(), []match.Match{
		hook("fmt", "sleep 0.2"),
		hook("other", "true"),
		hook("check", "true", "p/fmt"),
	})

	fmtRes, check := results[0], results[2]
	if fmtRes.Failed() || check.Failed() {
		t.Fatalf("unexpected failure: %+v %+v", fmtRes, check)
	}
	if check.Started.Before(fmtRes.Finished) {
		t.Errorf("check started %v before fmt finished %v", check.Started, fmtRes.Finished)
	}
}

func TestRun_DependencyFailed(t *testing.T) {
	t.Parallel()

	e := New(Options{Root: t.TempDir(), FailFast: false})
	results := e.Run(context.Background(), []match.Match{
		hook("fmt", "exit 1"),
		hook("check", "true", "p/fmt"),
		hook("after-check", "true", "p/check"),
		hook("independent", "true"),
	})

	if !results[0].Failed() {
		t.Error("fmt should fail")
	}
	for _, r := range results[1:3] {
		if !r.Skipped || r.SkipReason != hooks.SkipDependency {
			t.Errorf("%s: skipped=%v reason=%q, want dependency skip", r.Name, r.Skipped, r.SkipReason)
		}
	}
	if r := results[3]; r.Skipped || r.Failed() {
		t.Errorf("independent hook should run without fail-fast: %+v", r)
	}
}

func TestRun_FailFast(t *testing.T) {
	t.Parallel()

	t.Run("serial", func(t *testing.T) {
		t.Parallel()
		e := New(Options{Root: t.TempDir(), Concurrency: 1, FailFast: true})
		results := e.Run(context.Background(), []match.Match{
			hook("a", "exit 1"),
			hook("b", "true"),
			hook("c", "true"),
		})
		if !results[0].Failed() {
			t.Error("a should fail")
		}
		for _, r := range results[1:] {
			if !r.Skipped || r.SkipReason != hooks.SkipFailFast {
				t.Errorf("%s: skipped=%v reason=%q, want fail-fast", r.Name, r.Skipped, r.SkipReason)
			}
		}
	})

	t.Run("running hooks finish", func(t *testing.T) {
		t.Parallel()
		e := New(Options{Root: t.TempDir(), Concurrency: 2, FailFast: true})
		results := e.Run(context.Background(), []match.Match{
			hook("a", "exit 1"),
			hook("b", "sleep 0.3; echo done"),
			hook("c", "true"),
		})
		if !results[0].Failed() {
			t.Error("a should fail")
		}
		if b := results[1]; b.Skipped || b.Failed() || b.Stdout != "done\n" {
			t.Errorf("b should finish normally: %+v", b)
		}
		if c := results[2]; !c.Skipped || c.SkipReason != hooks.SkipFailFast {
			t.Errorf("c: skipped=%v reason=%q, want fail-fast", c.Skipped, c.SkipReason)
		}
	})

	t.Run("disabled", func(t *testing.T) {
		t.Parallel()
		e := New(Options{Root: t.TempDir(), Concurrency: 1, FailFast: false})
		results := e.Run(context.Background(), []match.Match{
			hook("a", "exit 1"),
			hook("b", "true"),
		})
		if results[1].Skipped {
			t.Error("b should run when fail-fast is off")
		}
	})
}

func TestRun_Cache(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.go"), []byte("package a\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	counter := filepath.Join(t.TempDir(), "runs")

	c := cache.New(t.TempDir(), root)
	e := New(Options{Root: root, Cache: c})

	m := hook("lint", "echo x >> "+counter)
	m.Files = []string{"a.go"}

	runs := func() int {
		data, _ := os.ReadFile(counter)
		return strings.Count(string(data), "x")
	}

	first := e.Run(context.Background(), []match.Match{m})[0]
	second := e.Run(context.Background(), []match.Match{m})[0]
	if first.CacheHit || !second.CacheHit {
		t.Errorf("CacheHit first=%v second=%v, want false/true", first.CacheHit, second.CacheHit)
	}
	if runs() != 1 {
		t.Errorf("hook ran %d times, want 1", runs())
	}

	if err := os.WriteFile(filepath.Join(root, "a.go"), []byte("package a\n\n// edited\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if third := e.Run(context.Background(), []match.Match{m})[0]; third.CacheHit {
		t.Error("edited input should miss the cache")
	}
	if runs() != 2 {
		t.Errorf("hook ran %d times, want 2", runs())
	}

	noFiles := hook("nofiles", "true")
	e.Run(context.Background(), []match.Match{noFiles})
	if r := e.Run(context.Background(), []match.Match{noFiles})[0]; r.CacheHit {
		t.Error("hooks without input files are never cached")
	}
}

func TestRun_FailureIsNotCached(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.go"), []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}
	flag := filepath.Join(t.TempDir(), "fail")
	if err := os.WriteFile(flag, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	c := cache.New(t.TempDir(), root)
	e := New(Options{Root: root, Cache: c})

	m := hook("check", "test ! -e "+flag)
	m.Files = []string{"a.go"}

	if r := e.Run(context.Background(), []match.Match{m})[0]; !r.Failed() {
		t.Fatal("check should fail while the flag exists")
	}
	if c.Size() != 0 {
		t.Errorf("cache size = %d after a failure, want 0", c.Size())
	}

	if err := os.Remove(flag); err != nil {
		t.Fatal(err)
	}
	if r := e.Run(context.Background(), []match.Match{m})[0]; r.Failed() || r.CacheHit {
		t.Fatalf("second run = %+v, want an executed pass", r)
	}
	if c.Size() != 1 {
		t.Errorf("cache size = %d after a pass, want 1", c.Size())
	}
}
