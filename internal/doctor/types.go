package doctor

// IssueCategory groups issues by type.
type IssueCategory string

const (
	// CategoryPlugin represents plugin resolution problems.
	CategoryPlugin IssueCategory = "plugin"
	// CategoryHook represents invalid hook declarations.
	CategoryHook IssueCategory = "hook"
	// CategoryState represents stale or corrupt checkpoints and cache entries.
	CategoryState IssueCategory = "state"
)

// Fix actions.
const (
	FixNone             = ""
	FixCleanCheckpoints = "clean_checkpoints"
	FixRemoveCacheEntry = "remove_cache_entry"
)

// Issue represents a problem detected by doctor.
type Issue struct {
	Key         string        // plugin name, hook ref or file path
	Description string        // human-readable description
	FixAction   string        // what --fix would do, FixNone if not fixable
	Category    IssueCategory // issue category
}

// Stats counts what was checked.
type Stats struct {
	Plugins     int // resolved plugins
	Hooks       int // valid hook definitions
	Checkpoints int // stored checkpoints of the project
	CacheValid  int // decodable cache entries
}
