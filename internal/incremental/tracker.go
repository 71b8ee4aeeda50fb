package incremental

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"fip/internal/finding"
	"fip/internal/imports"
	"fip/internal/slogutil"
)

// Tracker fingerprints the files under a root and diffs them against the
// previous pass.
type Tracker struct {
	root      string
	cfg       Config
	logger    *slog.Logger
	extractor *imports.Extractor
	now       func() time.Time
	exts      map[string]bool
	skipDirs  map[string]bool

	mu      sync.Mutex
	files   map[string]FileEntry
	results map[string]CachedResult
	graph   *DependencyGraph
}

// NewTracker creates a tracker for root. Call Load to restore a snapshot.
func NewTracker(root string, cfg Config, logger *slog.Logger) *Tracker {
	cfg = cfg.withDefaults()
	t := &Tracker{
		root:      root,
		cfg:       cfg,
		logger:    slogutil.OrDiscard(logger),
		extractor: imports.NewExtractor(),
		now:       time.Now,
		exts:      make(map[string]bool, len(cfg.Extensions)),
		skipDirs:  make(map[string]bool, len(cfg.SkipDirs)),
	}
	for _, ext := range cfg.Extensions {
		t.exts[strings.ToLower(ext)] = true
	}
	for _, dir := range cfg.SkipDirs {
		t.skipDirs[dir] = true
	}
	t.reset()
	return t
}

// SetClock replaces the time source.
func (t *Tracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
}

// Root returns the tracked root directory.
func (t *Tracker) Root() string {
	return t.root
}

func (t *Tracker) reset() {
	t.files = make(map[string]FileEntry)
	t.results = make(map[string]CachedResult)
	t.graph = NewDependencyGraph()
}

// DetectChanges walks the root, fingerprints every tracked file and diffs the
// result against the cache. The cache and snapshot are updated in place.
// Only context cancellation produces an error; unreadable directories and
// files are logged and skipped. A tracked file that is found but cannot be
// read is reported unchanged and stale rather than deleted.
func (t *Tracker) DetectChanges(ctx context.Context) (*ChangeSet, error) {
	paths := t.walk()
	resolver := imports.NewResolver(t.root, paths)

	entries := make([]*FileEntry, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.cfg.Workers)
	for i, rel := range paths {
		i, rel := i, rel
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			entry, err := t.fingerprint(gctx, rel, resolver)
			if err != nil {
				t.logger.Warn("Skipping unreadable file", "path", rel, "error", err.Error())
				return nil
			}
			entries[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	cs := &ChangeSet{}
	seen := make(map[string]bool, len(paths))
	unreadable := make(map[string]bool)
	for i, rel := range paths {
		entry := entries[i]
		if entry == nil {
			// Still present, so a tracked file keeps its entry and is
			// analysed again once it can be read.
			if _, known := t.files[rel]; known {
				seen[rel] = true
				unreadable[rel] = true
				cs.Unchanged = append(cs.Unchanged, rel)
			}
			continue
		}
		seen[rel] = true

		prev, known := t.files[rel]
		switch {
		case !known:
			cs.Added = append(cs.Added, rel)
		case prev.Fingerprint != entry.Fingerprint:
			cs.Modified = append(cs.Modified, rel)
		default:
			cs.Unchanged = append(cs.Unchanged, rel)
		}
		t.files[rel] = *entry
		t.graph.Set(rel, entry.Dependencies)
	}

	for _, rel := range sortedKeys(t.files) {
		if seen[rel] {
			continue
		}
		cs.Deleted = append(cs.Deleted, rel)
		delete(t.files, rel)
		delete(t.results, rel)
		t.graph.Remove(rel)
	}

	cs.Total = len(t.files)
	cs.Impacted = t.graph.Impacted(cs.Changed(), t.cfg.MaxHops)
	for _, rel := range cs.Unchanged {
		if unreadable[rel] || t.isStaleLocked(rel, now) {
			cs.Stale = append(cs.Stale, rel)
		}
	}

	if err := t.saveLocked(); err != nil {
		t.logger.Warn("Failed to save tracker snapshot", "error", err.Error())
	}

	t.logger.Info("Detected changes",
		"added", len(cs.Added),
		"modified", len(cs.Modified),
		"deleted", len(cs.Deleted),
		"impacted", len(cs.Impacted),
		"stale", len(cs.Stale),
		"total", cs.Total,
	)
	return cs, nil
}

// walk returns the slash-separated relative paths of all tracked files.
func (t *Tracker) walk() []string {
	var paths []string
	err := filepath.WalkDir(t.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			t.logger.Warn("Skipping unreadable path", "path", path, "error", err.Error())
			if d != nil && d.IsDir() && path != t.root {
				return filepath.SkipDir
			}
			return nil //nolint:nilerr // one bad subtree must not abort the scan
		}

		if d.IsDir() {
			if path == t.root {
				return nil
			}
			name := d.Name()
			if t.skipDirs[name] || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if !t.exts[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		rel, relErr := filepath.Rel(t.root, path)
		if relErr != nil {
			return nil //nolint:nilerr
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		t.logger.Warn("Directory walk stopped early", "root", t.root, "error", err.Error())
	}
	sort.Strings(paths)
	return paths
}

func (t *Tracker) fingerprint(ctx context.Context, rel string, resolver *imports.Resolver) (*FileEntry, error) {
	abs := filepath.Join(t.root, filepath.FromSlash(rel))
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(data)

	entry := &FileEntry{
		Fingerprint:  hex.EncodeToString(sum[:]),
		LastModified: info.ModTime(),
	}

	if lang, ok := imports.LanguageFromPath(rel); ok {
		specs, err := t.extractor.Extract(ctx, data, lang)
		if err != nil {
			t.logger.Debug("Import extraction failed", "path", rel, "error", err.Error())
		} else {
			entry.Dependencies = resolver.ResolveAll(rel, specs, lang)
		}
	}
	return entry, nil
}

// StoreResult caches the findings produced for path.
func (t *Tracker) StoreResult(path string, results []finding.Finding) {
	t.mu.Lock()
	defer t.mu.Unlock()

	copied := make([]finding.Finding, len(results))
	for i, f := range results {
		copied[i] = f.Clone()
	}
	t.results[path] = CachedResult{Results: copied, Timestamp: t.now()}
}

// CachedResult returns the cached findings for path.
func (t *Tracker) CachedResult(path string) (CachedResult, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.results[path]
	return r, ok
}

// CachedFindings returns the cached findings of every tracked file not in
// exclude.
func (t *Tracker) CachedFindings(exclude []string) []finding.Finding {
	skip := make(map[string]bool, len(exclude))
	for _, p := range exclude {
		skip[p] = true
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var out []finding.Finding
	for _, path := range sortedKeys(t.results) {
		if skip[path] {
			continue
		}
		if _, tracked := t.files[path]; !tracked {
			continue
		}
		out = append(out, t.results[path].Results...)
	}
	return out
}

// IsStale reports whether path has no cached result or one older than the
// configured TTL. Content changes are not considered.
func (t *Tracker) IsStale(path string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.isStaleLocked(path, t.now())
}

func (t *Tracker) isStaleLocked(path string, now time.Time) bool {
	r, ok := t.results[path]
	if !ok {
		return true
	}
	return now.Sub(r.Timestamp) > t.cfg.ResultTTL
}

// Plan returns the analysis plan for cs.
func (t *Tracker) Plan(cs *ChangeSet) AnalysisPlan {
	plan := PlanFor(cs)
	t.logger.Debug("Analysis plan", "strategy", string(plan.Strategy), "files", len(plan.Files), "ratio", plan.Ratio)
	return plan
}

// Files returns the tracked paths, sorted.
func (t *Tracker) Files() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return sortedKeys(t.files)
}

// Entry returns the cache entry of path.
func (t *Tracker) Entry(path string) (FileEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.files[path]
	return e, ok
}

// Dependents returns the files importing path.
func (t *Tracker) Dependents(path string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.graph.Dependents(path)
}

// Stats returns tracker counters.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Stats{
		TrackedFiles:  len(t.files),
		Edges:         t.graph.EdgeCount(),
		CachedResults: len(t.results),
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
