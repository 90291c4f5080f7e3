package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/raphi011/han/internal/config"
	"github.com/raphi011/han/internal/event"
	"github.com/raphi011/han/internal/hooks"
	"github.com/raphi011/han/internal/output"
	"github.com/raphi011/han/internal/report"
)

const lintPlugin = `
hooks:
  lint:
    events: [Stop, PostToolUse]
    command: 'if grep -q TODO {files}; then echo "found TODO" >&2; exit 1; fi'
    fileFilter: "**/*.txt"
`

// testEnv is a project with one declared plugin and an isolated state dir.
type testEnv struct {
	root string
	cfg  *config.Config
}

// newTestEnv isolates the test from the user's host settings and HAN_*
// overrides. Tests using it cannot run in parallel.
func newTestEnv(t *testing.T, manifest string) *testEnv {
	t.Helper()

	t.Setenv("CLAUDE_CONFIG_DIR", t.TempDir())
	for _, k := range []string{"HAN_STATE_DIR", "HAN_NO_CACHE", "HAN_NO_CHECKPOINTS", "HAN_NO_FAIL_FAST"} {
		t.Setenv(k, "")
	}

	root := t.TempDir()
	pluginDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(pluginDir, "han-plugin.yml"), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.StateDir = t.TempDir()
	cfg.Plugins = map[string]config.PluginConfig{"text": {Path: pluginDir}}
	return &testEnv{root: root, cfg: &cfg}
}

func (e *testEnv) write(t *testing.T, rel, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(e.root, rel), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// run executes han with args and stdin, returning stdout, stderr and the error.
func (e *testEnv) run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	ctx := config.WithConfig(context.Background(), e.cfg)
	ctx = output.WithPrinter(ctx, &stdout)

	cmd := newRootCmd()
	cmd.SetArgs(append(args, "--dir", e.root))
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func exitCode(err error) int {
	var exitErr *exitCodeError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	if err != nil {
		return -1
	}
	return 0
}

func TestHookRun_GatingDeny(t *testing.T) {
	env := newTestEnv(t, lintPlugin)
	env.write(t, "notes.txt", "TODO: finish\n")

	stdout, stderr, err := env.run(t, `{"hook_event_name":"Stop","session_id":"s1"}`, "hook", "run", "--no-checkpoints")
	if got := exitCode(err); got != 2 {
		t.Fatalf("exit code = %d (err %v), want 2", got, err)
	}

	var d report.Decision
	if err := json.Unmarshal([]byte(stdout), &d); err != nil {
		t.Fatalf("stdout is not a decision: %v\n%s", err, stdout)
	}
	if d.Decision != report.Deny {
		t.Errorf("decision = %q, want deny", d.Decision)
	}
	if !strings.Contains(d.Reason, "found TODO") || !strings.Contains(stderr, "found TODO") {
		t.Errorf("reason = %q, stderr = %q; both should carry the hook output", d.Reason, stderr)
	}
}

func TestHookRun_GatingAllow(t *testing.T) {
	env := newTestEnv(t, lintPlugin)
	env.write(t, "notes.txt", "all done\n")

	stdout, _, err := env.run(t, "", "hook", "run", "Stop", "--no-checkpoints")
	if err != nil {
		t.Fatalf("run error = %v", err)
	}
	if !strings.Contains(stdout, `"decision": "allow"`) {
		t.Errorf("stdout = %q, want an allow decision", stdout)
	}
}

func TestHookRun_Summary(t *testing.T) {
	env := newTestEnv(t, lintPlugin)
	env.write(t, "a.txt", "TODO\n")
	env.write(t, "b.txt", "fine\n")

	// PostToolUse is not gating: it reports a summary and exits 1 on failure.
	payload := `{"hook_event_name":"PostToolUse","tool_name":"Edit","tool_input":{"file_path":"b.txt"}}`
	stdout, _, err := env.run(t, payload, "hook", "run")
	if err != nil {
		t.Fatalf("run error = %v", err)
	}
	var s report.Summary
	if err := json.Unmarshal([]byte(stdout), &s); err != nil {
		t.Fatalf("stdout is not a summary: %v\n%s", err, stdout)
	}
	if !s.Passed || len(s.Hooks) != 1 || s.Hooks[0].Name != "lint" {
		t.Errorf("summary = %+v, want lint passing on b.txt only", s)
	}

	// The flag replaces the payload's file.
	_, _, err = env.run(t, payload, "hook", "run", "--file", "a.txt")
	if got := exitCode(err); got != 1 {
		t.Errorf("exit code = %d (err %v), want 1", got, err)
	}
}

func TestHookRun_TextFormat(t *testing.T) {
	env := newTestEnv(t, lintPlugin)
	env.write(t, "a.txt", "fine\n")

	stdout, _, err := env.run(t, "", "hook", "run", "PostToolUse", "--file", "a.txt", "--format", "text")
	if err != nil {
		t.Fatalf("run error = %v", err)
	}
	if !strings.Contains(stdout, "text/lint") || !strings.Contains(stdout, "1 passed") {
		t.Errorf("stdout = %q, want the result table", stdout)
	}
}

func TestHookRun_UnknownOnly(t *testing.T) {
	env := newTestEnv(t, lintPlugin)

	_, _, err := env.run(t, "", "hook", "run", "Stop", "--only", "text/lnt")
	if err == nil || !strings.Contains(err.Error(), "did you mean text/lint") {
		t.Errorf("err = %v, want a suggestion for text/lint", err)
	}
}

func TestHookRun_NoEvent(t *testing.T) {
	env := newTestEnv(t, lintPlugin)

	_, _, err := env.run(t, "{}", "hook", "run")
	if err == nil || !strings.Contains(err.Error(), "no event") {
		t.Errorf("err = %v, want a missing event error", err)
	}
}

func TestHookListAndHistory(t *testing.T) {
	env := newTestEnv(t, lintPlugin)
	env.write(t, "a.txt", "fine\n")

	stdout, _, err := env.run(t, "", "hook", "list", "--json")
	if err != nil {
		t.Fatalf("list error = %v", err)
	}
	var infos []hookInfo
	if err := json.Unmarshal([]byte(stdout), &infos); err != nil {
		t.Fatalf("list output: %v\n%s", err, stdout)
	}
	if len(infos) != 1 || infos[0].Ref != "text/lint" || !slices.Contains(infos[0].Events, "Stop") {
		t.Errorf("hooks = %+v, want text/lint bound to Stop", infos)
	}

	if _, _, err := env.run(t, "", "hook", "run", "PostToolUse", "--file", "a.txt"); err != nil {
		t.Fatalf("run error = %v", err)
	}
	stdout, _, err = env.run(t, "", "hook", "history", "--json")
	if err != nil {
		t.Fatalf("history error = %v", err)
	}
	if !strings.Contains(stdout, `"hook": "lint"`) {
		t.Errorf("history = %q, want the lint run", stdout)
	}
}

func TestHookExplain(t *testing.T) {
	env := newTestEnv(t, lintPlugin)
	env.write(t, "a.txt", "TODO\n")

	stdout, _, err := env.run(t, "", "hook", "explain", "PostToolUse", "--file", "a.txt", "--file", "b.go")
	if err != nil {
		t.Fatalf("explain error = %v", err)
	}
	if !strings.Contains(stdout, "2 touched files") || !strings.Contains(stdout, "text/lint") {
		t.Errorf("stdout = %q, want touched files and the matching hook", stdout)
	}
	// Explaining never executes hooks, so nothing is recorded.
	stdout, _, _ = env.run(t, "", "hook", "history")
	if !strings.Contains(stdout, "No hooks executed yet") {
		t.Errorf("history = %q, want it empty", stdout)
	}
}

func TestBuildRequest(t *testing.T) {
	t.Parallel()

	payload := &event.Payload{
		SessionID:      "s1",
		ToolName:       "Write",
		ToolPaths:      []string{"a.go"},
		TranscriptPath: "/t.jsonl",
		TouchedPaths:   []string{"x.go"},
	}

	tests := []struct {
		name  string
		flags requestFlags
		check func(t *testing.T, f requestFlags)
	}{
		{
			name:  "payload only",
			flags: requestFlags{},
			check: func(t *testing.T, f requestFlags) {
				req := f.buildRequest(hooks.Stop, payload)
				if req.SessionID != "s1" || req.ToolName != "Write" || req.Files[0] != "x.go" {
					t.Errorf("request = %+v, want payload fields", req)
				}
			},
		},
		{
			name:  "flags win",
			flags: requestFlags{session: "s2", tool: "Edit", files: []string{"y.go"}, agent: "a1"},
			check: func(t *testing.T, f requestFlags) {
				req := f.buildRequest(hooks.SubagentStop, payload)
				if req.SessionID != "s2" || req.ToolName != "Edit" || req.Files[0] != "y.go" || req.AgentID != "a1" {
					t.Errorf("request = %+v, want flag overrides", req)
				}
				if req.TranscriptPath != "/t.jsonl" {
					t.Errorf("TranscriptPath = %q, want the payload's", req.TranscriptPath)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tt.check(t, tt.flags)
		})
	}
}

func TestSuggest(t *testing.T) {
	t.Parallel()

	refs := []string{"go/lint", "go/test", "web/lint", "web/format"}

	tests := []struct {
		input string
		want  string
	}{
		{"go/lnt", "go/lint"},
		{"wfmt", "web/format"},
		{"other/format", "web/format"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			got := suggest(tt.input, refs, 3)
			if len(got) == 0 || got[0] != tt.want {
				t.Errorf("suggest(%q) = %v, want %q first", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseEvent_Suggestion(t *testing.T) {
	t.Parallel()

	if _, err := parseEvent("Stop"); err != nil {
		t.Fatalf("parseEvent(Stop) error = %v", err)
	}
	_, err := parseEvent("SubagntStop")
	if err == nil || !strings.Contains(err.Error(), "did you mean SubagentStop") {
		t.Errorf("err = %v, want a SubagentStop suggestion", err)
	}
}

func TestHookRun_LoadErrorIsReported(t *testing.T) {
	tests := []struct {
		name     string
		event    string
		exitCode int
	}{
		{"gating event is denied", "Stop", 2},
		{"other event fails", "PostToolUse", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, lintPlugin)
			// A state directory that is a regular file cannot be created.
			env.write(t, "state", "")
			env.cfg.StateDir = filepath.Join(env.root, "state")

			stdout, stderr, err := env.run(t, "", "hook", "run", tt.event)
			if got := exitCode(err); got != tt.exitCode {
				t.Fatalf("exit code = %d (err %v), want %d", got, err, tt.exitCode)
			}
			if !strings.Contains(stdout, "internal error") {
				t.Errorf("stdout = %q, want the error reported", stdout)
			}
			if tt.exitCode == 2 && !strings.Contains(stderr, "internal error") {
				t.Errorf("stderr = %q, want the deny reason", stderr)
			}
		})
	}
}

func TestHookRun_RelativeScope(t *testing.T) {
	env := newTestEnv(t, lintPlugin)
	if err := os.MkdirAll(filepath.Join(env.root, "svc"), 0o755); err != nil {
		t.Fatal(err)
	}
	env.write(t, "svc/a.txt", "TODO\n")
	env.write(t, "b.txt", "TODO\n")

	stdout, _, err := env.run(t, "", "hook", "run", "Stop", "--no-checkpoints", "--scope", "svc")
	if got := exitCode(err); got != 2 {
		t.Fatalf("exit code = %d (err %v), want 2", got, err)
	}
	var d report.Decision
	if err := json.Unmarshal([]byte(stdout), &d); err != nil {
		t.Fatalf("stdout is not a decision: %v\n%s", err, stdout)
	}
	if !strings.Contains(d.Reason, "svc") || strings.Contains(d.Reason, "internal error") {
		t.Errorf("reason = %q, want lint to fail in svc", d.Reason)
	}
}

func TestCompleteHookRefs(t *testing.T) {
	env := newTestEnv(t, lintPlugin)

	// The plugin is only declared in the context's config, so completing
	// it proves that config is used.
	cmd := newHookRunCmd()
	cmd.SetContext(config.WithConfig(context.Background(), env.cfg))
	if err := cmd.Flags().Set("dir", env.root); err != nil {
		t.Fatal(err)
	}

	got, _ := completeHookRefs(cmd, nil, "text/")
	if !slices.Equal(got, []string{"text/lint"}) {
		t.Errorf("completions = %v, want [text/lint]", got)
	}
}
