// Package history keeps an append-only log of executed hooks.
//
// Each executed hook (including cache hits) appends one JSON line to
// <state_dir>/history.jsonl. Lines are appended with a single write, so
// concurrent han processes interleave whole records. `han hook history`
// reads the tail.
package history

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/raphi011/han/internal/hooks"
	"github.com/raphi011/han/internal/storage"
)

// FileName is the history file inside the state directory.
const FileName = "history.jsonl"

// Record is one executed hook.
type Record struct {
	RunID      string    `json:"run_id"`
	Time       time.Time `json:"time"`
	Event      string    `json:"event"`
	Session    string    `json:"session,omitempty"`
	Root       string    `json:"root"`
	Plugin     string    `json:"plugin"`
	Hook       string    `json:"hook"`
	Dir        string    `json:"dir"`
	ExitCode   int       `json:"exit_code"`
	DurationMs int64     `json:"duration_ms"`
	CacheHit   bool      `json:"cache_hit"`
	TimedOut   bool      `json:"timed_out,omitempty"`
}

// Passed reports whether the recorded run passed.
func (r Record) Passed() bool {
	return r.ExitCode == 0 && !r.TimedOut
}

// Path returns the history file path in stateDir.
func Path(stateDir string) string {
	return filepath.Join(stateDir, FileName)
}

// Run identifies the invocation the results belong to.
type Run struct {
	ID      string
	Event   hooks.Event
	Session string
	Root    string
}

// Append records every executed result. Skipped results are not recorded.
func Append(path string, run Run, results []hooks.Result) error {
	for i := range results {
		r := &results[i]
		if r.Skipped {
			continue
		}
		at := r.Finished
		if at.IsZero() {
			at = time.Now()
		}
		rec := Record{
			RunID:      run.ID,
			Time:       at.UTC(),
			Event:      string(run.Event),
			Session:    run.Session,
			Root:       run.Root,
			Plugin:     r.Plugin,
			Hook:       r.Name,
			Dir:        r.Dir,
			ExitCode:   r.ExitCode,
			DurationMs: r.Duration.Milliseconds(),
			CacheHit:   r.CacheHit,
			TimedOut:   r.TimedOut,
		}
		if err := storage.AppendJSONLine(path, rec); err != nil {
			return fmt.Errorf("append history: %w", err)
		}
	}
	return nil
}

// Recent returns up to n of the most recent records, oldest first.
// n <= 0 returns all records. A missing file yields no records; malformed
// lines are skipped.
func Recent(path string, n int) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []Record
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			continue
		}
		out = append(out, rec)
		if n > 0 && len(out) > 2*n {
			out = append(out[:0], out[len(out)-n:]...)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	if n > 0 && len(out) > n {
		out = out[len(out)-n:]
	}
	return out, nil
}
