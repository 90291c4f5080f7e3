package doctor

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/raphi011/han/internal/engine"
	"github.com/raphi011/han/internal/output"
)

// fixAllIssues applies fixes for all fixable issues and returns how many
// were fixed.
func fixAllIssues(ctx context.Context, p *engine.Project, issues []Issue) (int, error) {
	out := output.FromContext(ctx)
	var fixed, failed int
	cleaned := false

	for _, issue := range issues {
		switch issue.FixAction {
		case FixCleanCheckpoints:
			if cleaned {
				fixed++
				continue
			}
			n, err := p.Checkpoints().Clean(ctx, p.Config.Checkpoints.MaxAge.Std())
			if err != nil {
				out.Printf("  ✗ Failed to clean checkpoints: %v\n", err)
				failed++
				continue
			}
			out.Printf("  ✓ Removed %d expired checkpoints\n", n)
			cleaned = true
			fixed++

		case FixRemoveCacheEntry:
			if err := os.Remove(issue.Key); err != nil && !errors.Is(err, fs.ErrNotExist) {
				out.Printf("  ✗ Failed to remove %s: %v\n", issue.Key, err)
				failed++
				continue
			}
			out.Printf("  ✓ Removed corrupt cache entry %s\n", issue.Key)
			fixed++
		}
	}

	if failed > 0 {
		return fixed, errors.New("some issues could not be fixed")
	}
	return fixed, nil
}
