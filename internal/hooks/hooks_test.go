package hooks

import (
	"errors"
	"slices"
	"testing"
)

func TestParseEvent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Event
		wantErr bool
	}{
		{"Stop", Stop, false},
		{"PreToolUse", PreToolUse, false},
		{"SubagentStart", SubagentStart, false},
		{"stop", "", true},
		{"", "", true},
		{"Build", "", true},
	}

	for _, tt := range tests {
		got, err := ParseEvent(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseEvent(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseEvent(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEvent_IsGating(t *testing.T) {
	t.Parallel()

	gating := []Event{PreToolUse, UserPromptSubmit, Stop, SubagentStop}
	for _, e := range KnownEvents {
		if got, want := e.IsGating(), slices.Contains(gating, e); got != want {
			t.Errorf("%s.IsGating() = %v, want %v", e, got, want)
		}
	}
}

func TestDefinition(t *testing.T) {
	t.Parallel()

	d := &Definition{Name: "check", Plugin: "fmt", Events: []Event{Stop, SubagentStop}}
	if d.Ref() != "fmt/check" {
		t.Errorf("Ref() = %q, want fmt/check", d.Ref())
	}
	if !d.BoundTo(SubagentStop) {
		t.Error("BoundTo(SubagentStop) = false, want true")
	}
	if d.BoundTo(PreToolUse) {
		t.Error("BoundTo(PreToolUse) = true, want false")
	}
}

func TestResult_Failed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		r    Result
		want bool
	}{
		{"success", Result{}, false},
		{"non-zero exit", Result{ExitCode: 1}, true},
		{"timeout", Result{ExitCode: -1, TimedOut: true}, true},
		{"start failure", Result{Err: errors.New("exec: not found")}, true},
		{"skipped", Result{Skipped: true, SkipReason: SkipFailFast}, false},
		{"cache hit", Result{CacheHit: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.r.Failed(); got != tt.want {
				t.Errorf("Failed() = %v, want %v", got, tt.want)
			}
		})
	}

	if !AnyFailed([]Result{{}, {ExitCode: 2}}) {
		t.Error("AnyFailed should report the failing result")
	}
	if AnyFailed([]Result{{}, {Skipped: true}}) {
		t.Error("AnyFailed should ignore skipped results")
	}
}
