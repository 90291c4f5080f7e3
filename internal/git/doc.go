// Package git answers the two questions han asks about a project: where its
// root is, and which files belong to it.
//
// All operations call the git CLI rather than a Go git library, so user
// configuration (.gitignore, core.excludesFile, safe.directory) applies as it
// does for the user's own git commands. Outside a git work tree, [RepoRoot]
// returns the directory itself and [ListFiles] walks the tree.
package git
