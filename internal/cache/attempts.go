package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/raphi011/han/internal/storage"
)

const (
	attemptsFile = "attempts.json"
	attemptsLock = ".attempts.lock"
)

// Failures returns the consecutive failure count of slot.
func (c *Cache) Failures(slot string) int {
	counts := c.loadAttempts()
	return counts[slot]
}

// RecordAttempt updates the consecutive failure count of slot and returns the
// new count. A pass resets the count to zero.
func (c *Cache) RecordAttempt(slot string, failed bool) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return 0, err
	}
	lock := flock.New(filepath.Join(c.dir, attemptsLock))
	if err := lock.Lock(); err != nil {
		return 0, fmt.Errorf("lock attempts: %w", err)
	}
	defer lock.Unlock()

	counts := c.loadAttempts()
	if failed {
		counts[slot]++
	} else {
		if _, ok := counts[slot]; !ok {
			return 0, nil
		}
		delete(counts, slot)
	}

	if err := storage.SaveJSON(filepath.Join(c.dir, attemptsFile), counts); err != nil {
		return 0, fmt.Errorf("write attempts: %w", err)
	}
	return counts[slot], nil
}

// Exhausted reports whether slot has failed at least maxAttempts times in a
// row. A maxAttempts of zero never exhausts.
func (c *Cache) Exhausted(slot string, maxAttempts int) bool {
	return maxAttempts > 0 && c.Failures(slot) >= maxAttempts
}

func (c *Cache) loadAttempts() map[string]int {
	counts := make(map[string]int)
	err := storage.LoadJSON(filepath.Join(c.dir, attemptsFile), &counts)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return make(map[string]int)
	}
	return counts
}
