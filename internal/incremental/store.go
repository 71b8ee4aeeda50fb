package incremental

import (
	"errors"
	"io/fs"
	"sort"
	"time"

	fiperrors "fip/internal/errors"
	"fip/internal/statefile"
)

const snapshotVersion = "1.0.0"

// snapshot is the persisted tracker document.
type snapshot struct {
	Version      string                         `json:"version"`
	Timestamp    time.Time                      `json:"timestamp"`
	FileCache    []statefile.Pair[FileEntry]    `json:"fileCache"`
	ResultCache  []statefile.Pair[CachedResult] `json:"resultCache"`
	Dependencies []statefile.Pair[[]string]     `json:"dependencies"`
}

// Load replaces the in-memory state with the snapshot at the configured
// path. A missing snapshot leaves the tracker empty and returns nil. A corrupt
// one also leaves it empty and returns a CACHE_CORRUPT error for the caller
// to log.
func (t *Tracker) Load() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.reset()
	if t.cfg.SnapshotPath == "" {
		return nil
	}

	var doc snapshot
	if err := statefile.Read(t.cfg.SnapshotPath, &doc); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			t.logger.Debug("No tracker snapshot, starting empty", "path", t.cfg.SnapshotPath)
			return nil
		}
		return fiperrors.New(fiperrors.CacheCorrupt, "load tracker snapshot", err)
	}

	t.files = statefile.ToMap(doc.FileCache)
	t.results = capResults(statefile.ToMap(doc.ResultCache), t.cfg.MaxCachedResults)
	for file, deps := range statefile.ToMap(doc.Dependencies) {
		t.graph.Set(file, deps)
	}

	t.logger.Debug("Loaded tracker snapshot",
		"files", len(t.files),
		"results", len(t.results),
		"edges", t.graph.EdgeCount(),
	)
	return nil
}

// Save writes the snapshot. Failures return a CACHE_WRITE_FAILED error; the
// in-memory state is unaffected.
func (t *Tracker) Save() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.saveLocked()
}

func (t *Tracker) saveLocked() error {
	if t.cfg.SnapshotPath == "" {
		return nil
	}
	t.results = capResults(t.results, t.cfg.MaxCachedResults)

	doc := snapshot{
		Version:      snapshotVersion,
		Timestamp:    t.now(),
		FileCache:    statefile.Pairs(t.files),
		ResultCache:  statefile.Pairs(t.results),
		Dependencies: statefile.Pairs(t.graph.Map()),
	}
	if err := statefile.Write(t.cfg.SnapshotPath, doc); err != nil {
		return fiperrors.New(fiperrors.CacheWriteFailed, "save tracker snapshot", err)
	}
	return nil
}

// capResults keeps the limit most recent results.
func capResults(results map[string]CachedResult, limit int) map[string]CachedResult {
	if limit <= 0 || len(results) <= limit {
		return results
	}
	keys := make([]string, 0, len(results))
	for k := range results {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ti, tj := results[keys[i]].Timestamp, results[keys[j]].Timestamp
		if ti.Equal(tj) {
			return keys[i] < keys[j]
		}
		return ti.After(tj)
	})

	out := make(map[string]CachedResult, limit)
	for _, k := range keys[:limit] {
		out[k] = results[k]
	}
	return out
}
