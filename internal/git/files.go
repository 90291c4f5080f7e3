package git

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// ignoredDirs are never descended into by the directory walk.
var ignoredDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
	"vendor":       true,
}

// IgnoredDir reports whether a directory name is skipped when walking a tree
// without git.
func IgnoredDir(name string) bool {
	return ignoredDirs[name]
}

// ListFiles returns the files han considers tracked under root, relative to
// root with forward slashes, sorted.
//
// Inside a git work tree that is every tracked file plus untracked files not
// excluded by .gitignore (git ls-files -co --exclude-standard). Deleted but
// still-indexed files are dropped. Outside git, or when git fails, the tree
// is walked, skipping IgnoredDir directories.
func ListFiles(ctx context.Context, root string) ([]string, error) {
	if CheckGit() == nil && IsInsideRepoPath(ctx, root) {
		out, err := outputGit(ctx, root, "ls-files", "-co", "--exclude-standard", "-z")
		if err == nil {
			return parseLsFiles(root, out), nil
		}
	}
	return walkFiles(root)
}

// parseLsFiles splits NUL-separated ls-files output, dropping duplicates
// (unmerged entries appear once per stage) and paths that no longer exist.
func parseLsFiles(root string, out []byte) []string {
	seen := make(map[string]bool)
	var files []string
	for p := range bytes.SplitSeq(out, []byte{0}) {
		if len(p) == 0 {
			continue
		}
		rel := string(p)
		if seen[rel] {
			continue
		}
		seen[rel] = true
		if !isRegular(filepath.Join(root, filepath.FromSlash(rel))) {
			continue
		}
		files = append(files, rel)
	}
	sort.Strings(files)
	return files
}

func walkFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil // unreadable entries are skipped
		}
		if d.IsDir() {
			if path != root && IgnoredDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func isRegular(path string) bool {
	info, err := os.Lstat(path)
	return err == nil && info.Mode().IsRegular()
}
