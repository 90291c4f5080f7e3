package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/raphi011/han/internal/digest"
	"github.com/raphi011/han/internal/storage"
)

// FileHash is the content hash of one input file.
type FileHash struct {
	Path string `json:"path"`
	Hash string `json:"hash"`
}

// Entry is a recorded passing run.
type Entry struct {
	Plugin     string    `json:"plugin"`
	Hook       string    `json:"hook"`
	Dir        string    `json:"dir"`
	ExitCode   int       `json:"exit_code"`
	DurationMs int64     `json:"duration_ms"`
	RecordedAt time.Time `json:"recorded_at"`
}

// HashFiles hashes paths (relative to root) and returns them sorted by path.
func HashFiles(ctx context.Context, root string, paths []string) ([]FileHash, error) {
	hashes, err := digest.Files(ctx, root, paths)
	if err != nil {
		return nil, err
	}
	out := make([]FileHash, 0, len(hashes))
	for p, h := range hashes {
		out = append(out, FileHash{Path: p, Hash: h})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Key derives the cache key for one hook run.
func Key(plugin, hook, dir, command string, files []FileHash) string {
	sorted := make([]FileHash, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	h := sha256.New()
	for _, s := range []string{plugin, hook, dir, command} {
		writeField(h, s)
	}
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(sorted)))
	h.Write(n[:])
	for _, f := range sorted {
		writeField(h, f.Path)
		writeField(h, f.Hash)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeField(h hash.Hash, s string) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(s)))
	h.Write(n[:])
	h.Write([]byte(s))
}

// Slot identifies a hook in one directory for attempt counting.
func Slot(plugin, hook, dir string) string {
	return plugin + "/" + hook + "@" + dir
}

// Cache stores the entries of one project.
type Cache struct {
	dir string
	mu  sync.Mutex // serializes attempt updates within the process
}

// New returns the cache for the project at root.
func New(stateDir, root string) *Cache {
	return &Cache{dir: filepath.Join(stateDir, "cache", storage.ProjectKey(root))}
}

// Dir returns the directory holding this project's entries.
func (c *Cache) Dir() string {
	return c.dir
}

func (c *Cache) entryPath(key string) string {
	return filepath.Join(c.dir, key+".json")
}

// Lookup returns the entry stored under key. Missing and unreadable entries
// are misses.
func (c *Cache) Lookup(key string) (Entry, bool) {
	var e Entry
	if err := storage.LoadJSON(c.entryPath(key), &e); err != nil {
		return Entry{}, false
	}
	if e.ExitCode != 0 {
		return Entry{}, false
	}
	return e, true
}

// Record stores a passing entry under key. A failing entry removes whatever
// is stored, so the next run executes again.
func (c *Cache) Record(key string, e Entry) error {
	if e.ExitCode != 0 {
		err := os.Remove(c.entryPath(key))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("invalidate cache entry: %w", err)
		}
		return nil
	}
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now().UTC()
	}
	if err := storage.SaveJSON(c.entryPath(key), e); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}

// Clear removes every entry and attempt counter of the project and returns
// the number of entries removed.
func (c *Cache) Clear() (int, error) {
	n := c.Size()
	if err := os.RemoveAll(c.dir); err != nil {
		return 0, fmt.Errorf("clear cache: %w", err)
	}
	return n, nil
}

// Size returns the number of stored entries.
func (c *Cache) Size() int {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") && e.Name() != attemptsFile {
			n++
		}
	}
	return n
}

// Verify reads every stored entry and returns how many are valid and the
// paths of those that cannot be decoded.
func (c *Cache) Verify() (int, []string) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0, nil
	}
	valid := 0
	var corrupt []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") || e.Name() == attemptsFile {
			continue
		}
		p := filepath.Join(c.dir, e.Name())
		var entry Entry
		if err := storage.LoadJSON(p, &entry); err != nil {
			corrupt = append(corrupt, p)
			continue
		}
		valid++
	}
	return valid, corrupt
}
