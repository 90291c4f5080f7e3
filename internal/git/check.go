package git

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrGitNotFound indicates git is not installed or not in PATH
var ErrGitNotFound = fmt.Errorf("git not found: please install git (https://git-scm.com)")

// CheckGit verifies that git is available in PATH
func CheckGit() error {
	_, err := exec.LookPath("git")
	if err != nil {
		return ErrGitNotFound
	}
	return nil
}

// IsInsideRepoPath returns true if the given path is inside a git work tree
func IsInsideRepoPath(ctx context.Context, path string) bool {
	err := runGit(ctx, path, "rev-parse", "--is-inside-work-tree")
	return err == nil
}

// RepoRoot returns the top-level directory of the work tree containing path.
// Outside a git work tree (or without git) it returns path itself, made
// absolute, so han still works in plain directories.
func RepoRoot(ctx context.Context, path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if CheckGit() != nil {
		return abs, nil
	}
	out, err := outputGit(ctx, abs, "rev-parse", "--show-toplevel")
	if err != nil {
		return abs, nil
	}
	return filepath.Clean(strings.TrimSpace(string(out))), nil
}
