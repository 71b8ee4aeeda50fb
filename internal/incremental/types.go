// Package incremental tracks file fingerprints between scans so that only
// added, modified, impacted or stale files are analysed again.
package incremental

import (
	"time"

	"fip/internal/finding"
)

// ChangeType represents how a file changed
type ChangeType string

const (
	ChangeAdded     ChangeType = "added"
	ChangeModified  ChangeType = "modified"
	ChangeDeleted   ChangeType = "deleted"
	ChangeUnchanged ChangeType = "unchanged"
	ChangeImpacted  ChangeType = "impacted"
)

// FileEntry is the cached state of one tracked file.
type FileEntry struct {
	Fingerprint  string    `json:"fingerprint"`
	LastModified time.Time `json:"lastModified"`
	Dependencies []string  `json:"dependencies"`
}

// CachedResult holds the findings last produced for a file.
type CachedResult struct {
	Results   []finding.Finding `json:"results"`
	Timestamp time.Time         `json:"timestamp"`
}

// ChangeSet is the outcome of one change-detection pass. Every tracked path
// appears in exactly one of Added, Modified, Deleted or Unchanged. Impacted
// and Stale are subsets of Unchanged.
type ChangeSet struct {
	Added     []string `json:"added"`
	Modified  []string `json:"modified"`
	Deleted   []string `json:"deleted"`
	Unchanged []string `json:"unchanged"`
	Impacted  []string `json:"impacted"`
	Stale     []string `json:"stale"`
	Total     int      `json:"total"`
}

// Changed returns added and modified paths.
func (c *ChangeSet) Changed() []string {
	out := make([]string, 0, len(c.Added)+len(c.Modified))
	out = append(out, c.Added...)
	return append(out, c.Modified...)
}

// FilesToAnalyze returns added ∪ modified ∪ impacted ∪ stale.
func (c *ChangeSet) FilesToAnalyze() []string {
	seen := make(map[string]bool)
	var out []string
	for _, group := range [][]string{c.Added, c.Modified, c.Impacted, c.Stale} {
		for _, p := range group {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return out
}

// HasChanges reports whether any file was added, modified or deleted.
func (c *ChangeSet) HasChanges() bool {
	return len(c.Added)+len(c.Modified)+len(c.Deleted) > 0
}

// Config configures change detection.
type Config struct {
	Extensions       []string      // File extensions to track, with leading dot
	SkipDirs         []string      // Directory names never descended into
	MaxHops          int           // Dependency hops for impacted files (default: 2)
	ResultTTL        time.Duration // Age after which a cached result is stale (default: 24h)
	MaxCachedResults int           // Cached results kept in the snapshot (default: 100)
	Workers          int           // Concurrent fingerprint workers (default: 8)
	SnapshotPath     string        // Snapshot document; a .zst suffix compresses it
}

// DefaultConfig returns the default change detection configuration
func DefaultConfig() Config {
	return Config{
		Extensions: []string{".js", ".jsx", ".ts", ".tsx", ".mjs", ".cjs", ".go", ".py", ".sql", ".json", ".css", ".html", ".vue"},
		SkipDirs: []string{
			"node_modules", "vendor", "dist", "build", "out", "coverage", "bin", "testdata", "__pycache__",
		},
		MaxHops:          2,
		ResultTTL:        24 * time.Hour,
		MaxCachedResults: 100,
		Workers:          8,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if len(c.Extensions) == 0 {
		c.Extensions = d.Extensions
	}
	if c.SkipDirs == nil {
		c.SkipDirs = d.SkipDirs
	}
	if c.MaxHops <= 0 {
		c.MaxHops = d.MaxHops
	}
	if c.ResultTTL <= 0 {
		c.ResultTTL = d.ResultTTL
	}
	if c.MaxCachedResults <= 0 {
		c.MaxCachedResults = d.MaxCachedResults
	}
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	return c
}

// Stats summarises tracker state.
type Stats struct {
	TrackedFiles  int `json:"trackedFiles"`
	Edges         int `json:"edges"`
	CachedResults int `json:"cachedResults"`
}
