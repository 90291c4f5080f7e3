// Package match selects the hooks that apply to a firing event and orders
// them by their declared dependencies.
//
// Filters are conjunctive: tool allow-set, file globs, marker files and the
// dirTest shell predicate. Hooks with marker files expand into one match per
// directory. The result is deterministic for a fixed registry and context.
package match

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/raphi011/han/internal/cmd"
	"github.com/raphi011/han/internal/git"
	"github.com/raphi011/han/internal/hooks"
	"github.com/raphi011/han/internal/log"
	"github.com/raphi011/han/internal/registry"
)

// predicateTimeout bounds a single dirTest evaluation.
const predicateTimeout = 30 * time.Second

// Context is the event context hooks are matched against.
type Context struct {
	Event        hooks.Event
	ToolName     string
	TouchedPaths []string // relative to Root, forward slashes
	Root         string   // absolute project root
	Dir          string   // absolute directory scope; empty means Root
}

// Match is a hook selected to run in one evaluation directory.
type Match struct {
	Hook  *hooks.Definition
	Dir   string   // relative to the project root, "." for the root
	Files []string // touched files relative to the project root
}

// Key identifies the match within a batch.
func (m Match) Key() string {
	return m.Hook.Ref() + "@" + m.Dir
}

// AbsDir returns the evaluation directory as an absolute path.
func (m Match) AbsDir(root string) string {
	return filepath.Join(root, filepath.FromSlash(m.Dir))
}

// RelFiles returns Files relative to the evaluation directory.
func (m Match) RelFiles() []string {
	if m.Dir == "." {
		return m.Files
	}
	out := make([]string, len(m.Files))
	for i, f := range m.Files {
		out[i] = strings.TrimPrefix(f, m.Dir+"/")
	}
	return out
}

// Rejection records why a candidate hook did not match.
type Rejection struct {
	Hook   *hooks.Definition
	Dir    string
	Reason string
}

// Result is the outcome of matching one event.
type Result struct {
	Matches  []Match     // in execution order
	Skipped  []Match     // passed event and tool filters but had no matching files
	Rejected []Rejection // filtered out by tool, marker or predicate
}

// Predicate evaluates a dirTest script in dir; true means the hook applies.
type Predicate func(ctx context.Context, dir, script string) bool

// ShellPredicate runs script with sh -c in dir; exit 0 means the hook applies.
func ShellPredicate(ctx context.Context, dir, script string) bool {
	ctx, cancel := context.WithTimeout(ctx, predicateTimeout)
	defer cancel()
	return cmd.ShellContext(ctx, dir, script, []string{"HAN_DIR=" + dir}) == nil
}

// Matcher selects hooks from a registry.
type Matcher struct {
	Registry  *registry.Registry
	Tools     *Tools
	Predicate Predicate // nil uses ShellPredicate
}

// toolEvents carry a tool name; tool filters only apply to them.
var toolEvents = map[hooks.Event]bool{
	hooks.PreToolUse:  true,
	hooks.PostToolUse: true,
}

type candidate struct {
	dir   string
	files []string
}

// Match selects and orders the hooks for c. The only error is a dependency
// cycle among the matched hooks, returned as *CycleError.
func (m *Matcher) Match(ctx context.Context, c Context) (*Result, error) {
	l := log.FromContext(ctx)
	pred := m.Predicate
	if pred == nil {
		pred = ShellPredicate
	}

	scope := "."
	if c.Dir != "" && c.Dir != c.Root {
		rel, err := filepath.Rel(c.Root, c.Dir)
		if err != nil || strings.HasPrefix(rel, "..") {
			return nil, fmt.Errorf("directory %s is outside project root %s", c.Dir, c.Root)
		}
		scope = filepath.ToSlash(rel)
	}
	files := inScope(c.TouchedPaths, scope)

	markers := newMarkerIndex(c.Root)
	predicates := make(map[string]bool) // script + "\x00" + dir

	res := &Result{}
	for _, d := range m.Registry.ForEvent(c.Event) {
		if toolEvents[c.Event] && !m.Tools.Allowed(d.ToolFilter, c.ToolName) {
			res.Rejected = append(res.Rejected, Rejection{Hook: d, Dir: scope,
				Reason: fmt.Sprintf("tool %q not in toolFilter %v", c.ToolName, d.ToolFilter)})
			continue
		}

		var cands []candidate
		if len(d.DirsWith) > 0 {
			var reason string
			cands, reason = markers.candidates(scope, files, d.DirsWith)
			if reason != "" {
				res.Rejected = append(res.Rejected, Rejection{Hook: d, Dir: scope, Reason: reason})
				continue
			}
		} else {
			cands = []candidate{{dir: scope, files: files}}
		}

		matched, skipped := 0, false
		for _, cand := range cands {
			if len(d.FileFilter) > 0 {
				cand.files = filterGlobs(cand.files, cand.dir, d.FileFilter)
				if len(cand.files) == 0 {
					skipped = true
					continue
				}
			}

			if d.DirTest != "" {
				abs := filepath.Join(c.Root, filepath.FromSlash(cand.dir))
				key := d.DirTest + "\x00" + cand.dir
				ok, seen := predicates[key]
				if !seen {
					ok = pred(ctx, abs, d.DirTest)
					predicates[key] = ok
					l.Debug("dirTest evaluated", "hook", d.Ref(), "dir", cand.dir, "applies", ok)
				}
				if !ok {
					res.Rejected = append(res.Rejected, Rejection{Hook: d, Dir: cand.dir, Reason: "dirTest failed"})
					continue
				}
			}

			res.Matches = append(res.Matches, Match{Hook: d, Dir: cand.dir, Files: cand.files})
			matched++
		}

		if matched == 0 && skipped {
			res.Skipped = append(res.Skipped, Match{Hook: d, Dir: scope})
		}
	}

	ordered, err := orderMatches(res.Matches)
	if err != nil {
		return nil, err
	}
	res.Matches = ordered

	l.Debug("matched hooks", "event", c.Event, "matched", len(res.Matches), "skipped", len(res.Skipped), "rejected", len(res.Rejected))
	return res, nil
}

// inScope returns the paths under scope ("." keeps all), sorted and deduplicated.
func inScope(paths []string, scope string) []string {
	seen := make(map[string]bool, len(paths))
	var out []string
	for _, p := range paths {
		p = path.Clean(filepath.ToSlash(p))
		if scope != "." && p != scope && !strings.HasPrefix(p, scope+"/") {
			continue
		}
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// filterGlobs keeps files (root-relative) whose path relative to dir matches
// any glob.
func filterGlobs(files []string, dir string, globs []string) []string {
	var out []string
	for _, f := range files {
		rel := f
		if dir != "." {
			if !strings.HasPrefix(f, dir+"/") {
				continue
			}
			rel = strings.TrimPrefix(f, dir+"/")
		}
		for _, g := range globs {
			if ok, _ := doublestar.Match(g, rel); ok {
				out = append(out, f)
				break
			}
		}
	}
	return out
}

// markerIndex answers "which directory holds a marker for this path" with
// memoized stat calls.
type markerIndex struct {
	root  string
	stats map[string]bool // root-relative file path -> exists
}

func newMarkerIndex(root string) *markerIndex {
	return &markerIndex{root: root, stats: make(map[string]bool)}
}

func (mi *markerIndex) has(dir string, markers []string) bool {
	for _, m := range markers {
		p := path.Join(dir, m)
		ok, seen := mi.stats[p]
		if !seen {
			_, err := os.Stat(filepath.Join(mi.root, filepath.FromSlash(p)))
			ok = err == nil
			mi.stats[p] = ok
		}
		if ok {
			return true
		}
	}
	return false
}

// nearest returns the closest directory at or above dir (up to the root)
// containing one of markers.
func (mi *markerIndex) nearest(dir string, markers []string) (string, bool) {
	for {
		if mi.has(dir, markers) {
			return dir, true
		}
		if dir == "." {
			return "", false
		}
		dir = path.Dir(dir)
	}
}

// candidates expands a marker hook into evaluation directories. With touched
// files, each file goes to its nearest marker directory. Without touched
// files, every marker directory under scope is a candidate, or the scope
// itself when a marker sits at or above it.
func (mi *markerIndex) candidates(scope string, files, markers []string) ([]candidate, string) {
	if len(files) > 0 {
		groups := make(map[string][]string)
		for _, f := range files {
			if d, ok := mi.nearest(path.Dir(f), markers); ok {
				groups[d] = append(groups[d], f)
			}
		}
		if len(groups) == 0 {
			return nil, fmt.Sprintf("no touched file is in a directory with %v", markers)
		}
		dirs := make([]string, 0, len(groups))
		for d := range groups {
			dirs = append(dirs, d)
		}
		sort.Strings(dirs)
		out := make([]candidate, len(dirs))
		for i, d := range dirs {
			out[i] = candidate{dir: d, files: groups[d]}
		}
		return out, ""
	}

	dirs := mi.discover(scope, markers)
	if len(dirs) == 0 {
		if d, ok := mi.nearest(scope, markers); ok {
			dirs = []string{d}
		}
	}
	if len(dirs) == 0 {
		return nil, fmt.Sprintf("no directory contains %v", markers)
	}
	out := make([]candidate, len(dirs))
	for i, d := range dirs {
		out[i] = candidate{dir: d}
	}
	return out, ""
}

// discover walks scope for directories containing a marker.
func (mi *markerIndex) discover(scope string, markers []string) []string {
	var dirs []string
	start := filepath.Join(mi.root, filepath.FromSlash(scope))
	_ = filepath.WalkDir(start, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if p != start && git.IgnoredDir(d.Name()) {
			return filepath.SkipDir
		}
		rel, err := filepath.Rel(mi.root, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if mi.has(rel, markers) {
			dirs = append(dirs, rel)
		}
		return nil
	})
	sort.Strings(dirs)
	return dirs
}
