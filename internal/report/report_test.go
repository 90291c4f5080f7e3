package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/raphi011/han/internal/cache"
	"github.com/raphi011/han/internal/hooks"
)

func results() []hooks.Result {
	return []hooks.Result{
		{Plugin: "go", Name: "fmt", Dir: ".", Duration: 120 * time.Millisecond},
		{Plugin: "go", Name: "vet", Dir: "svc", ExitCode: 1, Stdout: "vet: bad\n", Stderr: "exit status 1\n"},
		{Plugin: "go", Name: "test", Dir: "svc", Skipped: true, SkipReason: hooks.SkipDependency},
	}
}

func TestNewDecision(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		results    []hooks.Result
		opts       Options
		want       string
		wantReason []string
	}{
		{
			name:    "all pass",
			results: results()[:1],
			want:    Allow,
		},
		{
			name:       "failure denies with output",
			results:    results(),
			want:       Deny,
			wantReason: []string{"go/vet failed in svc (exit 1)", "vet: bad", "exit status 1"},
		},
		{
			name:       "timeout",
			results:    []hooks.Result{{Plugin: "p", Name: "slow", Dir: ".", TimedOut: true, ExitCode: -1}},
			want:       Deny,
			wantReason: []string{"p/slow failed in . (timed out)"},
		},
		{
			name:       "start error",
			results:    []hooks.Result{{Plugin: "p", Name: "x", Dir: ".", ExitCode: -1, Err: errors.New("no such dir")}},
			want:       Deny,
			wantReason: []string{"error: no such dir"},
		},
		{
			name:       "exhausted attempts allow with notice",
			results:    results(),
			opts:       Options{Exhausted: map[string]bool{cache.Slot("go", "vet", "svc"): true}},
			want:       Allow,
			wantReason: []string{"not blocking after repeated failures"},
		},
		{
			name:       "skipped only",
			results:    results()[2:],
			want:       Allow,
			wantReason: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := NewDecision(tt.results, tt.opts)
			if d.Decision != tt.want {
				t.Errorf("Decision = %q, want %q (reason %q)", d.Decision, tt.want, d.Reason)
			}
			for _, want := range tt.wantReason {
				if !strings.Contains(d.Reason, want) {
					t.Errorf("Reason = %q, want it to contain %q", d.Reason, want)
				}
			}
			if tt.wantReason == nil && d.Reason != "" {
				t.Errorf("Reason = %q, want empty", d.Reason)
			}
		})
	}
}

func TestDecision_JSON(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(NewDecision(results()[:1], Options{}))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"decision":"allow"}` {
		t.Errorf("json = %s", data)
	}
}

func TestTail(t *testing.T) {
	t.Parallel()

	if got := Tail("short", 100); got != "short" {
		t.Errorf("Tail(short) = %q", got)
	}

	long := strings.Repeat("line of noise\n", 50) + "the real error"
	got := Tail(long, 40)
	if !strings.HasPrefix(got, "...(truncated)\n") {
		t.Errorf("Tail() = %q, want truncation marker", got)
	}
	if !strings.HasSuffix(got, "the real error") {
		t.Errorf("Tail() = %q, want the last line kept", got)
	}
	if len(got) > 40+len("...(truncated)\n") {
		t.Errorf("Tail() returned %d bytes, over the limit", len(got))
	}
}

func TestTail_MultiByte(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		s     string
		limit int
		want  string
	}{
		{"two-byte runes", strings.Repeat("é", 30), 7, "ééé"},
		{"three-byte runes", strings.Repeat("日本", 10), 8, "日本"},
		{"four-byte runes", "ok " + strings.Repeat("🚀", 5), 6, "🚀"},
		{"cut on a boundary", strings.Repeat("é", 30), 6, "ééé"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Tail(tt.s, tt.limit)
			body := strings.TrimPrefix(got, "...(truncated)\n")
			if !utf8.ValidString(got) {
				t.Errorf("Tail() = %q, not valid UTF-8", got)
			}
			if body != tt.want {
				t.Errorf("Tail() body = %q, want %q", body, tt.want)
			}
		})
	}
}

func TestNewSummary(t *testing.T) {
	t.Parallel()

	s := NewSummary(hooks.PostToolUse, "run-1", results(), Options{Notices: []string{"plugin x: manifest invalid"}})
	if s.Passed {
		t.Error("Passed = true with a failing hook")
	}
	if s.RunID != "run-1" || s.Event != hooks.PostToolUse {
		t.Errorf("summary header = %q %q", s.RunID, s.Event)
	}
	if len(s.Hooks) != 3 {
		t.Fatalf("got %d hooks, want 3", len(s.Hooks))
	}
	if h := s.Hooks[0]; h.DurationMs != 120 || h.Failed() {
		t.Errorf("hooks[0] = %+v", h)
	}
	if h := s.Hooks[2]; !h.Skipped || h.SkipReason != hooks.SkipDependency || h.Failed() {
		t.Errorf("hooks[2] = %+v", h)
	}
	if len(s.Warnings) != 1 {
		t.Errorf("Warnings = %v", s.Warnings)
	}

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{`"runId":"run-1"`, `"exitCode":1`, `"cacheHit":false`, `"skipReason":"dependency failed"`} {
		if !bytes.Contains(data, []byte(key)) {
			t.Errorf("summary JSON missing %s: %s", key, data)
		}
	}
}

func TestWriteTable(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	s := NewSummary(hooks.Stop, "run-1", results(), Options{})
	if err := WriteTable(&buf, s); err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	if strings.Contains(out, "\x1b[") {
		t.Errorf("output to a non-terminal should have no ANSI escapes: %q", out)
	}
	for _, want := range []string{"STATUS", "go/fmt", "go/vet", "FAIL", "skip", "dependency failed", "vet: bad", "1 passed, 1 failed, 1 skipped"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestTable_Empty(t *testing.T) {
	t.Parallel()

	out := Table(Summary{Event: hooks.Stop, Passed: true})
	if !strings.Contains(out, "no hooks matched Stop") {
		t.Errorf("Table() = %q", out)
	}
}
