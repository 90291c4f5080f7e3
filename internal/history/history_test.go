package history

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/raphi011/han/internal/hooks"
)

func TestAppendRecent(t *testing.T) {
	t.Parallel()

	path := Path(t.TempDir())
	run := Run{ID: "run-1", Event: hooks.Stop, Session: "s1", Root: "/work/project"}
	results := []hooks.Result{
		{Plugin: "go", Name: "fmt", Dir: ".", Duration: 50 * time.Millisecond, Finished: time.Now()},
		{Plugin: "go", Name: "vet", Dir: ".", ExitCode: 1},
		{Plugin: "go", Name: "test", Dir: ".", Skipped: true, SkipReason: hooks.SkipFailFast},
	}
	if err := Append(path, run, results); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	recs, err := Recent(path, 0)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2 (skipped results are not recorded)", len(recs))
	}
	if r := recs[0]; r.RunID != "run-1" || r.Hook != "fmt" || r.DurationMs != 50 || !r.Passed() {
		t.Errorf("recs[0] = %+v", r)
	}
	if recs[1].Passed() {
		t.Error("vet should be recorded as failed")
	}
}

func TestRecent_Tail(t *testing.T) {
	t.Parallel()

	path := Path(t.TempDir())
	for i := range 10 {
		r := []hooks.Result{{Plugin: "p", Name: "h", Dir: ".", ExitCode: i}}
		if err := Append(path, Run{ID: "r", Event: hooks.Stop}, r); err != nil {
			t.Fatal(err)
		}
	}

	recs, err := Recent(path, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 3 {
		t.Fatalf("got %d records, want 3", len(recs))
	}
	if recs[0].ExitCode != 7 || recs[2].ExitCode != 9 {
		t.Errorf("tail exit codes = %d..%d, want 7..9", recs[0].ExitCode, recs[2].ExitCode)
	}
}

func TestRecent_MissingAndMalformed(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if recs, err := Recent(Path(dir), 5); err != nil || recs != nil {
		t.Errorf("Recent() on missing file = %v, %v", recs, err)
	}

	path := filepath.Join(dir, FileName)
	data := "{broken\n" + `{"run_id":"ok","plugin":"p","hook":"h"}` + "\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	recs, err := Recent(path, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].RunID != "ok" {
		t.Errorf("Recent() = %+v, want the one valid record", recs)
	}
}
