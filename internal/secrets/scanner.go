package secrets

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"fip/internal/finding"
	"fip/internal/slogutil"
)

var skipDirs = map[string]bool{
	".git": true, "node_modules": true, "vendor": true, "__pycache__": true,
	".fip": true, ".venv": true, "dist": true, "build": true,
}

var binaryExts = map[string]bool{
	".exe": true, ".dll": true, ".so": true, ".dylib": true,
	".zip": true, ".tar": true, ".gz": true, ".zst": true,
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".ico": true, ".pdf": true,
	".woff": true, ".woff2": true, ".ttf": true,
	".pyc": true, ".class": true, ".o": true, ".a": true,
}

var lockFiles = map[string]bool{
	"go.sum": true, "package-lock.json": true, "yarn.lock": true, "pnpm-lock.yaml": true,
}

// Scanner scans files for exposed secrets.
type Scanner struct {
	root     string
	opts     Options
	patterns []Pattern
	logger   *slog.Logger
}

// NewScanner creates a scanner for the tree under root.
func NewScanner(root string, opts Options, logger *slog.Logger) *Scanner {
	return &Scanner{
		root:     root,
		opts:     opts.withDefaults(),
		patterns: BuiltinPatterns,
		logger:   slogutil.OrDiscard(logger),
	}
}

// Scan scans files, given relative to the root, or the whole tree when files
// is nil. Unreadable files are skipped. Findings are ordered by severity,
// then file and line.
func (s *Scanner) Scan(ctx context.Context, files []string) ([]finding.Finding, error) {
	if files == nil {
		var err error
		files, err = s.walk()
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", s.root, err)
		}
	}

	var findings []finding.Finding
	seen := make(map[string]bool)
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return findings, err
		}
		if skipFile(rel) {
			continue
		}
		found, err := s.scanFile(rel)
		if err != nil {
			s.logger.Debug("Failed to scan file", "file", rel, "error", err.Error())
			continue
		}
		for _, f := range found {
			key := fmt.Sprintf("%s:%d:%s", f.Location.File, f.Location.Line, f.Metadata.GetString(MetaRule))
			if seen[key] {
				continue
			}
			seen[key] = true
			findings = append(findings, f)
		}
	}

	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() > b.Severity.Rank()
		}
		if a.Location.File != b.Location.File {
			return a.Location.File < b.Location.File
		}
		return a.Location.Line < b.Location.Line
	})
	s.logger.Debug("Secret scan complete", "files", len(files), "findings", len(findings))
	return findings, nil
}

func (s *Scanner) walk() ([]string, error) {
	var files []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // skip inaccessible
		}
		if d.IsDir() {
			if path != s.root && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return nil //nolint:nilerr
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	return files, err
}

func skipFile(rel string) bool {
	base := filepath.Base(rel)
	if lockFiles[base] || strings.HasSuffix(base, ".min.js") || strings.HasSuffix(base, ".backup") {
		return true
	}
	return binaryExts[strings.ToLower(filepath.Ext(base))]
}

func (s *Scanner) scanFile(rel string) ([]finding.Finding, error) {
	path := filepath.Join(s.root, filepath.FromSlash(rel))
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > s.opts.MaxFileSize {
		return nil, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close() //nolint:errcheck

	var findings []finding.Finding
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), s.opts.MaxLineLength*4+1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if strings.IndexByte(line, 0) >= 0 {
			return nil, nil
		}
		if len(line) > s.opts.MaxLineLength {
			continue
		}
		findings = append(findings, s.scanLine(filepath.ToSlash(rel), lineNum, line)...)
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return findings, nil
		}
		return nil, err
	}
	return findings, nil
}

func (s *Scanner) scanLine(rel string, lineNum int, line string) []finding.Finding {
	var out []finding.Finding
	for _, p := range s.patterns {
		if !p.Severity.AtLeast(s.opts.MinSeverity) {
			continue
		}
		for _, m := range p.Regex.FindAllStringSubmatchIndex(line, -1) {
			start, end := m[0], m[1]
			if len(m) >= 4 && m[2] >= 0 {
				start, end = m[2], m[3]
			}
			secret := line[start:end]

			entropy := ShannonEntropy(secret)
			threshold := p.MinEntropy
			if threshold == 0 && !p.specific() {
				threshold = s.opts.MinEntropy
			}
			if threshold > 0 && entropy < threshold {
				continue
			}
			if isLikelyFalsePositive(line, secret) {
				continue
			}
			out = append(out, s.toFinding(p, rel, lineNum, line, start, end, entropy))
		}
	}
	return out
}

func (s *Scanner) toFinding(p Pattern, rel string, lineNum int, line string, start, end int, entropy float64) finding.Finding {
	typ := TypeSecretExposed
	switch p.Type {
	case SecretTypeAWSAccessKey, SecretTypeGoogleAPIKey, SecretTypeNPMToken,
		SecretTypeStripeLiveKey, SecretTypeStripeTestKey, SecretTypeGenericAPIKey:
		typ = TypeAPIKeyExposed
	}
	secret := line[start:end]
	return finding.Finding{
		Producer:    finding.ProducerSecurity,
		Type:        typ,
		Severity:    p.Severity,
		Confidence:  confidence(secret, p),
		Description: p.Description + " exposed",
		Location: finding.Location{
			File:    rel,
			Line:    lineNum,
			Snippet: strings.TrimSpace(redactLine(line, start, end)),
		},
		Metadata: finding.Metadata{
			MetaRule:       finding.String(p.Name),
			MetaSecretType: finding.String(string(p.Type)),
			MetaEntropy:    finding.Number(math.Round(entropy*100) / 100),
			MetaMatch:      finding.String(redactSecret(secret, 4)),
		},
	}
}

// redactSecret keeps the first keep characters of s and masks the rest.
func redactSecret(s string, keep int) string {
	if len(s) <= keep {
		return strings.Repeat("*", len(s))
	}
	return s[:keep] + strings.Repeat("*", len(s)-keep)
}

// redactLine masks line[start:end] with at most 20 asterisks.
func redactLine(line string, start, end int) string {
	if start < 0 || end > len(line) || start >= end {
		return line
	}
	return line[:start] + strings.Repeat("*", min(end-start, 20)) + line[end:]
}
