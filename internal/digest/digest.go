// Package digest computes content hashes of project files.
package digest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
)

// Sentinel hashes for paths whose content could not be hashed.
const (
	Deleted    = "deleted"    // the path no longer exists
	Unreadable = "unreadable" // the path exists but could not be read
)

// parallelism bounds concurrent file reads.
const parallelism = 8

// File returns the hex SHA-256 of the file at path, or Deleted if it does
// not exist.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Deleted, nil
		}
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Files hashes paths (relative to root, forward slashes) in parallel and
// returns path -> hash. Missing files map to Deleted and files that cannot be
// read map to Unreadable. Only cancellation of ctx aborts the set.
func Files(ctx context.Context, root string, paths []string) (map[string]string, error) {
	hashes := make([]string, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)

	for i, p := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			h, err := File(filepath.Join(root, filepath.FromSlash(p)))
			if err != nil {
				h = Unreadable
			}
			hashes[i] = h
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]string, len(paths))
	for i, p := range paths {
		out[p] = hashes[i]
	}
	return out, nil
}
