package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func write(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestListFiles_Git(t *testing.T) {
	t.Parallel()

	repo := initRepo(t)
	write(t, repo, ".gitignore", "build/\n*.log\n")
	write(t, repo, "main.go", "package main\n")
	write(t, repo, "pkg/util.go", "package pkg\n")
	write(t, repo, "build/out.bin", "x")
	write(t, repo, "debug.log", "x")
	write(t, repo, "gone.txt", "x")

	c := exec.Command("git", "add", "gone.txt")
	c.Dir = repo
	if out, err := c.CombinedOutput(); err != nil {
		t.Fatalf("git add: %v\n%s", err, out)
	}
	if err := os.Remove(filepath.Join(repo, "gone.txt")); err != nil {
		t.Fatal(err)
	}

	files, err := ListFiles(context.Background(), repo)
	if err != nil {
		t.Fatalf("ListFiles() error = %v", err)
	}

	want := ".gitignore,main.go,pkg/util.go"
	if got := strings.Join(files, ","); got != want {
		t.Errorf("ListFiles() = %s, want %s", got, want)
	}
}

func TestListFiles_Walk(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	if IsInsideRepoPath(context.Background(), root) {
		t.Skip("temp dir is inside a git work tree")
	}
	write(t, root, "a.go", "")
	write(t, root, "sub/b.go", "")
	write(t, root, "node_modules/dep/index.js", "")
	write(t, root, "vendor/x/y.go", "")
	write(t, root, ".git/HEAD", "")

	files, err := ListFiles(context.Background(), root)
	if err != nil {
		t.Fatalf("ListFiles() error = %v", err)
	}
	if got := strings.Join(files, ","); got != "a.go,sub/b.go" {
		t.Errorf("ListFiles() = %s, want a.go,sub/b.go", got)
	}
}

func TestParseLsFiles_Dedup(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	write(t, root, "conflict.go", "")
	write(t, root, "ok.go", "")

	got := parseLsFiles(root, []byte("ok.go\x00conflict.go\x00conflict.go\x00missing.go\x00"))
	if strings.Join(got, ",") != "conflict.go,ok.go" {
		t.Errorf("parseLsFiles() = %v", got)
	}
}

func TestIgnoredDir(t *testing.T) {
	t.Parallel()

	for _, name := range []string{".git", "node_modules", "vendor"} {
		if !IgnoredDir(name) {
			t.Errorf("IgnoredDir(%q) = false", name)
		}
	}
	if IgnoredDir("src") {
		t.Error("IgnoredDir(src) = true")
	}
}
