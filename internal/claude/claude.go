// Package claude reads the host assistant's local configuration: the
// settings files that enable plugins and declare marketplaces, and the
// per-project directory where session transcripts are stored.
package claude

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EncodeProjectPath converts an absolute filesystem path to the directory name
// format used by Claude Code under ~/.claude/projects/.
// The encoding replaces path separators with hyphens.
// Example: "/home/user/myproject" → "-home-user-myproject"
func EncodeProjectPath(absPath string) string {
	absPath = filepath.Clean(absPath)
	absPath = strings.TrimRight(absPath, string(filepath.Separator))
	return strings.ReplaceAll(absPath, string(filepath.Separator), "-")
}

// GetConfigDir returns the Claude Code configuration directory path.
// Checks CLAUDE_CONFIG_DIR env var first, then falls back to ~/.claude.
func GetConfigDir() (string, error) {
	if dir := os.Getenv("CLAUDE_CONFIG_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".claude"), nil
}

// TranscriptPath returns where the host stores the transcript of sessionID
// for the project at projectRoot. The file may not exist.
func TranscriptPath(configDir, projectRoot, sessionID string) string {
	if sessionID == "" {
		return ""
	}
	return filepath.Join(configDir, "projects", EncodeProjectPath(projectRoot), sessionID+".jsonl")
}
