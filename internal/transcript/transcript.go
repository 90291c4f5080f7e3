// Package transcript narrows a checkpoint diff to the files a session itself
// wrote, using the host's JSONL conversation transcript.
//
// Two sessions in the same project see each other's edits in their
// checkpoint diffs. The transcript records every tool call a session made, so
// intersecting the diff with the paths passed to file-writing tools
// attributes each change to the session that made it.
package transcript

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/raphi011/han/internal/match"
)

// writingTools are the canonical tool names whose file argument counts as
// written.
var writingTools = map[string]bool{
	"edit":          true,
	"write":         true,
	"notebook_edit": true,
}

// maxLine bounds a single transcript record; tool results can be large.
const maxLine = 16 << 20

// Written returns the root-relative paths (forward slashes, sorted) that
// writing tool calls in the transcript targeted. Paths outside root are
// ignored. Malformed lines are skipped; an unreadable file is an error.
func Written(path, root string, tools *match.Tools) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	seen := make(map[string]bool)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), maxLine)
	for sc.Scan() {
		line := sc.Bytes()
		if !gjson.ValidBytes(line) {
			continue
		}
		uses := gjson.GetBytes(line, `message.content.#(type=="tool_use")#`)
		for _, use := range uses.Array() {
			if !writingTools[tools.Canonical(use.Get("name").String())] {
				continue
			}
			for _, key := range []string{"input.file_path", "input.notebook_path", "input.path"} {
				p := use.Get(key).String()
				if p == "" {
					continue
				}
				if rel, ok := relativize(p, root); ok {
					seen[rel] = true
				}
				break
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}

	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

func relativize(p, root string) (string, bool) {
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	rel, err := filepath.Rel(root, filepath.Clean(p))
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// Scoped is a touched-file set after transcript scoping.
type Scoped struct {
	Paths []string
	// Degraded is set when the transcript could not be used and Paths is the
	// unfiltered diff.
	Degraded bool
}

// Scope intersects diff (root-relative paths) with the files the transcript
// wrote. An empty transcript path, or one that cannot be read, leaves the diff
// unfiltered and marks the result Degraded.
func Scope(diff []string, transcriptPath, root string, tools *match.Tools) Scoped {
	if transcriptPath == "" {
		return Scoped{Paths: diff, Degraded: true}
	}
	written, err := Written(transcriptPath, root, tools)
	if err != nil {
		return Scoped{Paths: diff, Degraded: true}
	}

	mine := make(map[string]bool, len(written))
	for _, p := range written {
		mine[p] = true
	}
	out := make([]string, 0, len(diff))
	for _, p := range diff {
		if mine[p] {
			out = append(out, p)
		}
	}
	return Scoped{Paths: out}
}
