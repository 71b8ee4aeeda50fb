package incremental

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"
	"time"

	fiperrors "fip/internal/errors"
	"fip/internal/finding"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newTestTracker(t *testing.T, root string) *Tracker {
	t.Helper()
	cfg := DefaultConfig()
	cfg.SnapshotPath = filepath.Join(t.TempDir(), "tracker.json")
	return NewTracker(root, cfg, nil)
}

func TestDetectChanges_Completeness(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.js", "console.log('a')")
	writeFile(t, root, "b.js", "console.log('b')")
	writeFile(t, root, "c.js", "console.log('c')")

	tr := newTestTracker(t, root)
	ctx := context.Background()

	first, err := tr.DetectChanges(ctx)
	if err != nil {
		t.Fatalf("DetectChanges: %v", err)
	}
	if !reflect.DeepEqual(first.Added, []string{"a.js", "b.js", "c.js"}) {
		t.Errorf("first pass Added = %v", first.Added)
	}

	writeFile(t, root, "a.js", "console.log('changed')")
	if err := os.Remove(filepath.Join(root, "b.js")); err != nil {
		t.Fatal(err)
	}

	cs, err := tr.DetectChanges(ctx)
	if err != nil {
		t.Fatalf("DetectChanges: %v", err)
	}
	if !reflect.DeepEqual(cs.Modified, []string{"a.js"}) {
		t.Errorf("Modified = %v, want [a.js]", cs.Modified)
	}
	if !reflect.DeepEqual(cs.Deleted, []string{"b.js"}) {
		t.Errorf("Deleted = %v, want [b.js]", cs.Deleted)
	}
	if !reflect.DeepEqual(cs.Unchanged, []string{"c.js"}) {
		t.Errorf("Unchanged = %v, want [c.js]", cs.Unchanged)
	}
	if len(cs.Added) != 0 {
		t.Errorf("Added = %v, want none", cs.Added)
	}

	seen := map[string]string{}
	for name, group := range map[string][]string{"added": cs.Added, "modified": cs.Modified, "deleted": cs.Deleted, "unchanged": cs.Unchanged} {
		for _, p := range group {
			if prev, dup := seen[p]; dup {
				t.Errorf("%s reported as both %s and %s", p, prev, name)
			}
			seen[p] = name
		}
	}
	if cs.Total != 2 {
		t.Errorf("Total = %d, want 2", cs.Total)
	}
}

func TestDetectChanges_ImpactedBoundedToTwoHops(t *testing.T) {
	root := t.TempDir()
	// a -> b -> c -> d
	writeFile(t, root, "a.js", "const b = require('./b');")
	writeFile(t, root, "b.js", "import c from './c';")
	writeFile(t, root, "c.js", "import { d } from './d';")
	writeFile(t, root, "d.js", "export const d = 1;")

	tr := newTestTracker(t, root)
	ctx := context.Background()
	if _, err := tr.DetectChanges(ctx); err != nil {
		t.Fatal(err)
	}

	writeFile(t, root, "d.js", "export const d = 2;")
	cs, err := tr.DetectChanges(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(cs.Modified, []string{"d.js"}) {
		t.Fatalf("Modified = %v", cs.Modified)
	}
	impacted := append([]string(nil), cs.Impacted...)
	sort.Strings(impacted)
	if !reflect.DeepEqual(impacted, []string{"b.js", "c.js"}) {
		t.Errorf("Impacted = %v, want [b.js c.js]", impacted)
	}
	for _, p := range cs.Impacted {
		if p == "a.js" {
			t.Error("a.js is three hops away and must not be impacted")
		}
	}
}

func TestDetectChanges_UnreadableFileIsNotDeleted(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.js", "x")
	writeFile(t, root, "b.js", "y")

	tr := newTestTracker(t, root)
	ctx := context.Background()
	if _, err := tr.DetectChanges(ctx); err != nil {
		t.Fatal(err)
	}
	tr.StoreResult("a.js", []finding.Finding{{ID: "fa"}})
	tr.StoreResult("b.js", nil)
	before, _ := tr.Entry("a.js")

	// A dangling symlink is walked but cannot be read, even by root.
	path := filepath.Join(root, "a.js")
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(filepath.Join(root, "gone.js"), path); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	cs, err := tr.DetectChanges(ctx)
	if err != nil {
		t.Fatalf("DetectChanges: %v", err)
	}
	if len(cs.Deleted) != 0 {
		t.Errorf("Deleted = %v, want none", cs.Deleted)
	}
	if !reflect.DeepEqual(cs.Unchanged, []string{"a.js", "b.js"}) {
		t.Errorf("Unchanged = %v, want [a.js b.js]", cs.Unchanged)
	}
	if !reflect.DeepEqual(cs.Stale, []string{"a.js"}) {
		t.Errorf("Stale = %v, want [a.js]", cs.Stale)
	}
	if cs.Total != 2 {
		t.Errorf("Total = %d, want 2", cs.Total)
	}
	if after, ok := tr.Entry("a.js"); !ok || after.Fingerprint != before.Fingerprint {
		t.Errorf("entry = %+v (ok %v), want the previous fingerprint", after, ok)
	}
	if _, ok := tr.CachedResult("a.js"); !ok {
		t.Error("cached result for the unreadable file was dropped")
	}
}

func TestDetectChanges_SkipsExcludedAndHiddenDirs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/app.js", "x")
	writeFile(t, root, "node_modules/lib/index.js", "x")
	writeFile(t, root, ".git/hooks/pre-commit.js", "x")
	writeFile(t, root, "README.md", "x")

	tr := newTestTracker(t, root)
	cs, err := tr.DetectChanges(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(cs.Added, []string{"src/app.js"}) {
		t.Errorf("Added = %v, want [src/app.js]", cs.Added)
	}
}

func TestDetectChanges_MissingRootIsEmpty(t *testing.T) {
	tr := newTestTracker(t, filepath.Join(t.TempDir(), "does-not-exist"))
	cs, err := tr.DetectChanges(context.Background())
	if err != nil {
		t.Fatalf("DetectChanges: %v", err)
	}
	if cs.Total != 0 || cs.HasChanges() {
		t.Errorf("expected empty change set, got %+v", cs)
	}
}

func TestStaleResults(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.js", "x")
	writeFile(t, root, "b.js", "y")

	tr := newTestTracker(t, root)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tr.SetClock(func() time.Time { return now })
	ctx := context.Background()

	if _, err := tr.DetectChanges(ctx); err != nil {
		t.Fatal(err)
	}
	tr.StoreResult("a.js", []finding.Finding{{ID: "f1", Producer: finding.ProducerSecurity}})
	tr.StoreResult("b.js", nil)

	now = now.Add(time.Hour)
	cs, err := tr.DetectChanges(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(cs.Stale) != 0 {
		t.Errorf("Stale = %v, want none after 1h", cs.Stale)
	}
	if plan := tr.Plan(cs); plan.Strategy != StrategyCached {
		t.Errorf("Strategy = %s, want CACHED", plan.Strategy)
	}

	now = now.Add(24 * time.Hour)
	cs, err = tr.DetectChanges(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(cs.Stale, []string{"a.js", "b.js"}) {
		t.Errorf("Stale = %v, want both files after 25h", cs.Stale)
	}
	if plan := tr.Plan(cs); plan.Strategy != StrategyFull {
		t.Errorf("Strategy = %s, want FULL", plan.Strategy)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	for _, name := range []string{"tracker.json", "tracker.json.zst"} {
		t.Run(name, func(t *testing.T) {
			root := t.TempDir()
			writeFile(t, root, "a.js", "import b from './b';")
			writeFile(t, root, "b.js", "export default 1;")

			cfg := DefaultConfig()
			cfg.SnapshotPath = filepath.Join(t.TempDir(), name)

			first := NewTracker(root, cfg, nil)
			ctx := context.Background()
			if _, err := first.DetectChanges(ctx); err != nil {
				t.Fatal(err)
			}
			first.StoreResult("a.js", []finding.Finding{{ID: "f1", Producer: finding.ProducerDesign, Type: "NO_ALT"}})
			if err := first.Save(); err != nil {
				t.Fatalf("Save: %v", err)
			}

			second := NewTracker(root, cfg, nil)
			if err := second.Load(); err != nil {
				t.Fatalf("Load: %v", err)
			}
			if got := second.Stats(); got.TrackedFiles != 2 || got.Edges != 1 || got.CachedResults != 1 {
				t.Errorf("Stats after load = %+v", got)
			}
			if r, ok := second.CachedResult("a.js"); !ok || len(r.Results) != 1 || r.Results[0].ID != "f1" {
				t.Errorf("CachedResult(a.js) = %+v, %v", r, ok)
			}
			if deps := second.Dependents("b.js"); !reflect.DeepEqual(deps, []string{"a.js"}) {
				t.Errorf("Dependents(b.js) = %v", deps)
			}

			cs, err := second.DetectChanges(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if cs.HasChanges() {
				t.Errorf("expected no changes after reload, got %+v", cs)
			}
		})
	}
}

func TestLoadCorruptSnapshot(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SnapshotPath = filepath.Join(t.TempDir(), "tracker.json")
	if err := os.WriteFile(cfg.SnapshotPath, []byte("{\"fileCache\": [oops"), 0o644); err != nil {
		t.Fatal(err)
	}

	tr := NewTracker(t.TempDir(), cfg, nil)
	err := tr.Load()
	if !fiperrors.Is(err, fiperrors.CacheCorrupt) {
		t.Fatalf("Load() error = %v, want CACHE_CORRUPT", err)
	}
	if got := tr.Stats(); got != (Stats{}) {
		t.Errorf("Stats after corrupt load = %+v, want empty", got)
	}
}

func TestLoadMissingSnapshot(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SnapshotPath = filepath.Join(t.TempDir(), "absent.json")
	if err := NewTracker(t.TempDir(), cfg, nil).Load(); err != nil {
		t.Errorf("Load(missing) = %v, want nil", err)
	}
}

func TestCapResults(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	results := map[string]CachedResult{
		"old.js":    {Timestamp: base},
		"mid.js":    {Timestamp: base.Add(time.Hour)},
		"recent.js": {Timestamp: base.Add(2 * time.Hour)},
	}
	got := capResults(results, 2)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if _, ok := got["old.js"]; ok {
		t.Error("oldest result should have been dropped")
	}
}

func TestCachedFindingsExcludes(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.js", "x")
	writeFile(t, root, "b.js", "y")
	tr := newTestTracker(t, root)
	if _, err := tr.DetectChanges(context.Background()); err != nil {
		t.Fatal(err)
	}
	tr.StoreResult("a.js", []finding.Finding{{ID: "fa"}})
	tr.StoreResult("b.js", []finding.Finding{{ID: "fb"}})

	got := tr.CachedFindings([]string{"a.js"})
	if len(got) != 1 || got[0].ID != "fb" {
		t.Errorf("CachedFindings = %+v", got)
	}
}
