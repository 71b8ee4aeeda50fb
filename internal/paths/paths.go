// Package paths defines the layout of the .fip state directory and
// repo-relative path helpers.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// StateDirName is the per-repository state directory.
const StateDirName = ".fip"

// State file names inside the state directory.
const (
	ConfigFile     = "config.json"
	FeedbackFile   = "feedback.json"
	DatabaseFile   = "fip.db"
	TypesFile      = "types.yaml"
	RulesFile      = "rules.toml"
	MetricsFile    = "metrics.prom"
	trackerFile    = "tracker.json"
	cacheDir       = "cache"
	logsDir        = "logs"
	findingsDir    = "findings"
	remediationDir = "remediation"
)

// Layout resolves state paths for one repository root.
type Layout struct {
	Root string
}

// For returns the layout of root.
func For(root string) Layout {
	return Layout{Root: root}
}

// Dir returns <root>/.fip.
func (l Layout) Dir() string { return filepath.Join(l.Root, StateDirName) }

// Config returns the configuration file path.
func (l Layout) Config() string { return filepath.Join(l.Dir(), ConfigFile) }

// Feedback returns the feedback document path.
func (l Layout) Feedback() string { return filepath.Join(l.Dir(), FeedbackFile) }

// Database returns the run history database path.
func (l Layout) Database() string { return filepath.Join(l.Dir(), DatabaseFile) }

// TypeOverrides returns the type normalizer override table path.
func (l Layout) TypeOverrides() string { return filepath.Join(l.Dir(), TypesFile) }

// Rules returns the correlation rule extension path.
func (l Layout) Rules() string { return filepath.Join(l.Dir(), RulesFile) }

// Metrics returns the Prometheus textfile path.
func (l Layout) Metrics() string { return filepath.Join(l.Dir(), MetricsFile) }

// Findings returns the directory external producers write findings to.
func (l Layout) Findings() string { return filepath.Join(l.Dir(), findingsDir) }

// Remediation returns the directory remediation artifacts are written to.
func (l Layout) Remediation() string { return filepath.Join(l.Dir(), remediationDir) }

// Log returns the log file path.
func (l Layout) Log() string { return filepath.Join(l.Dir(), logsDir, "fip.log") }

// TrackerSnapshot returns the change tracker snapshot path. A compressed
// snapshot carries a .zst suffix.
func (l Layout) TrackerSnapshot(compress bool) string {
	path := filepath.Join(l.Dir(), cacheDir, trackerFile)
	if compress {
		path += ".zst"
	}
	return path
}

// Ensure creates the state directory and its subdirectories.
func (l Layout) Ensure() error {
	for _, dir := range []string{
		l.Dir(),
		filepath.Join(l.Dir(), cacheDir),
		filepath.Join(l.Dir(), logsDir),
		l.Findings(),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// CanonicalizePath converts a path to a slash-separated path relative to
// repoRoot. Symlinks are resolved when the path exists.
func CanonicalizePath(path, repoRoot string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", err
		}
		resolved = path
	}
	rootResolved, err := filepath.EvalSymlinks(repoRoot)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", err
		}
		rootResolved = repoRoot
	}
	rel, err := filepath.Rel(rootResolved, resolved)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// IsWithinRepo reports whether path lies inside repoRoot.
func IsWithinRepo(path, repoRoot string) bool {
	canonical, err := CanonicalizePath(path, repoRoot)
	if err != nil {
		return false
	}
	return canonical != ".." && !strings.HasPrefix(canonical, "../")
}

// JoinRepoPath joins a repo root with a slash-separated relative path.
func JoinRepoPath(repoRoot, canonicalPath string) string {
	parts := strings.Split(strings.ReplaceAll(canonicalPath, "\\", "/"), "/")
	return filepath.Join(append([]string{repoRoot}, parts...)...)
}
