package transcript

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func toolUse(name, key, path string) string {
	return fmt.Sprintf(`{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"ok"},{"type":"tool_use","id":"t","name":%q,"input":{%q:%q}}]}}`, name, key, path)
}

func writeTranscript(t *testing.T, lines ...string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "session.jsonl")
	if err := os.WriteFile(p, []byte(strings.Join(lines, "\n")+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestWritten(t *testing.T) {
	t.Parallel()

	root := "/work/project"
	p := writeTranscript(t,
		`{"type":"user","message":{"role":"user","content":"fix the bug"}}`,
		toolUse("Edit", "file_path", "/work/project/a.go"),
		toolUse("MultiEdit", "file_path", "/work/project/pkg/b.go"),
		toolUse("Write", "file_path", "c.go"),
		toolUse("NotebookEdit", "notebook_path", "/work/project/nb.ipynb"),
		toolUse("Read", "file_path", "/work/project/read-only.go"),
		toolUse("Edit", "file_path", "/elsewhere/x.go"),
		toolUse("Edit", "file_path", "/work/project/a.go"),
		`{not json`,
		`{"type":"tool_result","content":"done"}`,
	)

	got, err := Written(p, root, nil)
	if err != nil {
		t.Fatalf("Written() error = %v", err)
	}
	want := []string{"a.go", "c.go", "nb.ipynb", "pkg/b.go"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Written() = %v, want %v", got, want)
	}
}

func TestWritten_Missing(t *testing.T) {
	t.Parallel()

	if _, err := Written(filepath.Join(t.TempDir(), "none.jsonl"), "/r", nil); err == nil {
		t.Error("expected error for a missing transcript")
	}
}

func TestScope_IsolatesSessions(t *testing.T) {
	t.Parallel()

	root := "/work/project"
	diff := []string{"a.go", "b.go"}
	s1 := writeTranscript(t, toolUse("Edit", "file_path", "/work/project/a.go"))
	s2 := writeTranscript(t, toolUse("Write", "file_path", "/work/project/b.go"))

	got1 := Scope(diff, s1, root, nil)
	got2 := Scope(diff, s2, root, nil)
	if got1.Degraded || got2.Degraded {
		t.Fatal("readable transcripts should not degrade")
	}
	if want := []string{"a.go"}; !reflect.DeepEqual(got1.Paths, want) {
		t.Errorf("session 1 paths = %v, want %v", got1.Paths, want)
	}
	if want := []string{"b.go"}; !reflect.DeepEqual(got2.Paths, want) {
		t.Errorf("session 2 paths = %v, want %v", got2.Paths, want)
	}
}

func TestScope_Degraded(t *testing.T) {
	t.Parallel()

	diff := []string{"a.go", "b.go"}
	tests := []struct {
		name string
		path string
	}{
		{"no transcript", ""},
		{"unreadable transcript", filepath.Join(t.TempDir(), "missing.jsonl")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Scope(diff, tt.path, "/r", nil)
			if !got.Degraded {
				t.Error("Degraded = false, want true")
			}
			if !reflect.DeepEqual(got.Paths, diff) {
				t.Errorf("Paths = %v, want the full diff", got.Paths)
			}
		})
	}
}
