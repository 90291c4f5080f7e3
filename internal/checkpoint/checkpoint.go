// Package checkpoint snapshots the content hashes of a project's tracked files
// so later events can compute exactly which files changed.
//
// A checkpoint is captured when a session or subagent starts and is never
// modified afterwards. Files live under
//
//	<state_dir>/checkpoints/<project-key>/<scope>-<id>.json
//
// and are written atomically, so concurrent sessions in the same project each
// see only their own snapshot.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/raphi011/han/internal/digest"
	"github.com/raphi011/han/internal/git"
	"github.com/raphi011/han/internal/log"
	"github.com/raphi011/han/internal/storage"
)

// ErrNoCheckpoint is returned when no checkpoint exists for a scope and id.
var ErrNoCheckpoint = errors.New("no checkpoint")

// Scope distinguishes session checkpoints from subagent checkpoints.
type Scope string

const (
	SessionScope Scope = "session"
	AgentScope   Scope = "agent"
)

// ParseScope validates a scope name.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case SessionScope, AgentScope:
		return Scope(s), nil
	}
	return "", fmt.Errorf("invalid scope %q (valid: %s, %s)", s, SessionScope, AgentScope)
}

// Checkpoint is a snapshot of tracked file hashes.
type Checkpoint struct {
	Scope     Scope             `json:"scope"`
	ID        string            `json:"id"`
	Root      string            `json:"root"`
	CreatedAt time.Time         `json:"created_at"`
	Files     map[string]string `json:"files"` // root-relative path -> sha256 hex
}

// Diff is the set of files that changed since a checkpoint.
type Diff struct {
	Added    []string `json:"added"`
	Modified []string `json:"modified"`
	Removed  []string `json:"removed"`
	// Fallback is set when the checkpoint was missing or unreadable. Every
	// tracked file is then reported in Added.
	Fallback bool `json:"fallback"`
}

// Paths returns the touched-file set: added, modified and removed paths,
// sorted.
func (d *Diff) Paths() []string {
	out := make([]string, 0, len(d.Added)+len(d.Modified)+len(d.Removed))
	out = append(out, d.Added...)
	out = append(out, d.Modified...)
	out = append(out, d.Removed...)
	sort.Strings(out)
	return out
}

// Info describes a stored checkpoint without its file map.
type Info struct {
	Scope     Scope
	ID        string
	CreatedAt time.Time
	Files     int
	Path      string
}

// Store reads and writes the checkpoints of one project.
type Store struct {
	base string // <state_dir>/checkpoints
	root string
}

// New returns a store for the project at root.
func New(stateDir, root string) *Store {
	return &Store{base: filepath.Join(stateDir, "checkpoints"), root: root}
}

// Dir returns the directory holding this project's checkpoints.
func (s *Store) Dir() string {
	return filepath.Join(s.base, storage.ProjectKey(s.root))
}

var unsafeID = regexp.MustCompile(`[^A-Za-z0-9._-]`)

func (s *Store) path(scope Scope, id string) string {
	return filepath.Join(s.Dir(), string(scope)+"-"+unsafeID.ReplaceAllString(id, "_")+".json")
}

// Capture hashes every tracked file and stores the snapshot. An existing
// valid checkpoint with the same scope and id is returned unchanged, so a
// repeated start event keeps the baseline of the first one. Only a missing or
// corrupt checkpoint is written.
func (s *Store) Capture(ctx context.Context, scope Scope, id string) (*Checkpoint, error) {
	if id == "" {
		return nil, fmt.Errorf("capture %s checkpoint: empty id", scope)
	}
	if cp, err := s.Load(scope, id); err == nil {
		log.FromContext(ctx).Debug("checkpoint exists, keeping it", "scope", scope, "id", id, "created", cp.CreatedAt)
		return cp, nil
	}
	return s.capture(ctx, scope, id)
}

// Replace captures a fresh snapshot, overwriting any earlier checkpoint with
// the same scope and id.
func (s *Store) Replace(ctx context.Context, scope Scope, id string) (*Checkpoint, error) {
	if id == "" {
		return nil, fmt.Errorf("capture %s checkpoint: empty id", scope)
	}
	return s.capture(ctx, scope, id)
}

func (s *Store) capture(ctx context.Context, scope Scope, id string) (*Checkpoint, error) {
	files, err := s.hashTracked(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture %s checkpoint: %w", scope, err)
	}

	cp := &Checkpoint{
		Scope:     scope,
		ID:        id,
		Root:      s.root,
		CreatedAt: time.Now().UTC(),
		Files:     files,
	}
	if err := storage.SaveJSON(s.path(scope, id), cp); err != nil {
		return nil, fmt.Errorf("save checkpoint: %w", err)
	}

	log.FromContext(ctx).Debug("captured checkpoint", "scope", scope, "id", id, "files", len(files))
	return cp, nil
}

// Load reads a stored checkpoint. A missing checkpoint wraps ErrNoCheckpoint.
func (s *Store) Load(scope Scope, id string) (*Checkpoint, error) {
	var cp Checkpoint
	if err := storage.LoadJSON(s.path(scope, id), &cp); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w for %s %s", ErrNoCheckpoint, scope, id)
		}
		return nil, fmt.Errorf("read %s checkpoint %s: %w", scope, id, err)
	}
	if cp.Files == nil {
		return nil, fmt.Errorf("read %s checkpoint %s: no file table", scope, id)
	}
	return &cp, nil
}

// Diff compares the current tree against the checkpoint. A missing or corrupt
// checkpoint yields a Fallback diff listing every tracked file; only a failure
// to read the current tree is returned as an error.
func (s *Store) Diff(ctx context.Context, scope Scope, id string) (*Diff, error) {
	l := log.FromContext(ctx)

	cp, loadErr := s.Load(scope, id)
	if loadErr != nil {
		l.Debug("checkpoint unavailable, using all tracked files", "scope", scope, "id", id, "error", loadErr)
		files, err := git.ListFiles(ctx, s.root)
		if err != nil {
			return nil, fmt.Errorf("list files: %w", err)
		}
		return &Diff{Added: files, Fallback: true}, nil
	}

	cur, err := s.hashTracked(ctx)
	if err != nil {
		return nil, fmt.Errorf("diff %s checkpoint: %w", scope, err)
	}

	d := compare(cp.Files, cur)
	l.Debug("checkpoint diff", "scope", scope, "id", id,
		"added", len(d.Added), "modified", len(d.Modified), "removed", len(d.Removed))
	return d, nil
}

func compare(old, cur map[string]string) *Diff {
	d := &Diff{}
	for p, h := range cur {
		prev, ok := old[p]
		switch {
		case !ok:
			d.Added = append(d.Added, p)
		case prev != h, h == digest.Unreadable:
			d.Modified = append(d.Modified, p)
		}
	}
	for p := range old {
		if _, ok := cur[p]; !ok {
			d.Removed = append(d.Removed, p)
		}
	}
	sort.Strings(d.Added)
	sort.Strings(d.Modified)
	sort.Strings(d.Removed)
	return d
}

func (s *Store) hashTracked(ctx context.Context) (map[string]string, error) {
	paths, err := git.ListFiles(ctx, s.root)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	files, err := digest.Files(ctx, s.root, paths)
	if err != nil {
		return nil, fmt.Errorf("hash files: %w", err)
	}
	// A file removed between listing and hashing is simply not tracked.
	// Unreadable files stay and always count as modified.
	var unreadable []string
	for p, h := range files {
		switch h {
		case digest.Deleted:
			delete(files, p)
		case digest.Unreadable:
			unreadable = append(unreadable, p)
		}
	}
	if len(unreadable) > 0 {
		sort.Strings(unreadable)
		log.FromContext(ctx).Warn("tracked files not readable", "files", unreadable)
	}
	return files, nil
}

// List returns this project's checkpoints, newest first. Unreadable files
// are skipped.
func (s *Store) List() ([]Info, error) {
	entries, err := os.ReadDir(s.Dir())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var out []Info
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		p := filepath.Join(s.Dir(), e.Name())
		var cp Checkpoint
		if err := storage.LoadJSON(p, &cp); err != nil {
			continue
		}
		out = append(out, Info{Scope: cp.Scope, ID: cp.ID, CreatedAt: cp.CreatedAt, Files: len(cp.Files), Path: p})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Clean removes checkpoints of every project older than maxAge and returns
// how many were removed. Only one process sweeps at a time; if another holds
// the sweep lock Clean returns immediately with zero.
func (s *Store) Clean(ctx context.Context, maxAge time.Duration) (int, error) {
	if err := os.MkdirAll(s.base, 0o755); err != nil {
		return 0, err
	}

	lock := flock.New(filepath.Join(s.base, ".clean.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return 0, fmt.Errorf("lock checkpoint sweep: %w", err)
	}
	if !locked {
		log.FromContext(ctx).Debug("checkpoint sweep already running")
		return 0, nil
	}
	defer lock.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0

	projects, err := os.ReadDir(s.base)
	if err != nil {
		return 0, err
	}
	for _, pd := range projects {
		if !pd.IsDir() {
			continue
		}
		dir := filepath.Join(s.base, pd.Name())
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
				continue
			}
			info, err := e.Info()
			if err != nil || info.ModTime().After(cutoff) {
				continue
			}
			if err := os.Remove(filepath.Join(dir, e.Name())); err == nil {
				removed++
			}
		}
		// Drops the project directory once it is empty; fails harmlessly otherwise.
		_ = os.Remove(dir)
	}

	log.FromContext(ctx).Debug("cleaned checkpoints", "removed", removed, "maxAge", maxAge)
	return removed, nil
}
