package autofix

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	fiperrors "fip/internal/errors"
	"fip/internal/paths"
	"fip/internal/slogutil"
)

// BackupSuffix is appended to a file's path to name its backup.
const BackupSuffix = ".backup"

// Applier edits files under a root directory.
type Applier struct {
	root      string
	threshold float64
	logger    *slog.Logger
}

// ApplierOption configures an Applier.
type ApplierOption func(*Applier)

// WithThreshold raises the minimum confidence Apply accepts. Values below
// SuggestThreshold are ignored.
func WithThreshold(threshold float64) ApplierOption {
	return func(a *Applier) {
		if threshold > SuggestThreshold {
			a.threshold = threshold
		}
	}
}

// NewApplier creates an applier resolving relative fix paths against root.
func NewApplier(root string, logger *slog.Logger, opts ...ApplierOption) *Applier {
	a := &Applier{root: root, threshold: SuggestThreshold, logger: slogutil.OrDiscard(logger)}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Apply edits the fix's target file. Before writing, the original content is
// saved next to it with BackupSuffix. A fix below the confidence threshold
// is refused without touching the filesystem. Failures are reported in the
// Result, never as a panic or partial write.
func (a *Applier) Apply(fix Fix) Result {
	res := Result{FindingID: fix.FindingID, File: fix.File}

	if !fix.Available {
		return a.fail(res, fiperrors.FixUnavailable, fix.Reason)
	}
	if fix.Confidence < a.threshold {
		return a.fail(res, fiperrors.FixLowConfidence,
			fmt.Sprintf("confidence %.2f below threshold %.2f", fix.Confidence, a.threshold))
	}
	switch fix.Kind {
	case EditReplace, EditInsert, EditDelete, EditWrap:
	default:
		return a.fail(res, fiperrors.FixUnavailable,
			fmt.Sprintf("%s fixes are not applied in place", fix.Kind))
	}
	if fix.File == "" {
		return a.fail(res, fiperrors.FixApplyFailed, "fix has no target file")
	}

	target := a.resolve(fix.File)
	if a.root != "" && !paths.IsWithinRepo(target, a.root) {
		return a.fail(res, fiperrors.FixApplyFailed, "target is outside "+a.root)
	}
	info, err := os.Stat(target)
	if err != nil {
		return a.fail(res, fiperrors.FixApplyFailed, err.Error())
	}
	original, err := os.ReadFile(target)
	if err != nil {
		return a.fail(res, fiperrors.FixApplyFailed, err.Error())
	}

	updated, err := edit(string(original), fix)
	if err != nil {
		return a.fail(res, fiperrors.FixApplyFailed, err.Error())
	}

	backup := target + BackupSuffix
	if err := os.WriteFile(backup, original, info.Mode().Perm()); err != nil {
		return a.fail(res, fiperrors.FixApplyFailed, "write backup: "+err.Error())
	}
	if err := os.WriteFile(target, []byte(updated), info.Mode().Perm()); err != nil {
		return a.fail(res, fiperrors.FixApplyFailed, "write file: "+err.Error())
	}

	a.logger.Info("Applied fix",
		"finding", fix.FindingID,
		"file", fix.File,
		"kind", string(fix.Kind),
		"backup", backup,
	)
	res.Success = true
	res.Backup = backup
	res.Changes = fix.Changes
	return res
}

// ApplyBulk applies every fix of every group in order and returns one result
// per fix. A failed fix does not stop the ones after it.
func (a *Applier) ApplyBulk(groups []FileGroup) []Result {
	var results []Result
	for _, group := range groups {
		for _, fix := range group.Fixes {
			results = append(results, a.Apply(fix))
		}
	}
	return results
}

func (a *Applier) resolve(file string) string {
	if filepath.IsAbs(file) || a.root == "" {
		return file
	}
	return filepath.Join(a.root, file)
}

func (a *Applier) fail(res Result, code fiperrors.ErrorCode, reason string) Result {
	a.logger.Warn("Fix not applied",
		"finding", res.FindingID,
		"file", res.File,
		"code", string(code),
		"reason", reason,
	)
	res.Success = false
	res.Code = code
	res.Reason = reason
	return res
}

var errAnchorNotFound = errors.New("anchor not found")

// edit returns content with fix applied. Lines are 1-based.
func edit(content string, fix Fix) (string, error) {
	lines := strings.Split(content, "\n")
	switch fix.Kind {
	case EditReplace:
		return replace(content, lines, fix)
	case EditInsert:
		return insert(lines, fix)
	case EditDelete:
		return remove(lines, fix)
	case EditWrap:
		return wrap(lines, fix)
	}
	return "", fmt.Errorf("unsupported edit kind %q", fix.Kind)
}

func replace(content string, lines []string, fix Fix) (string, error) {
	if fix.Pattern != "" {
		re, err := regexp.Compile(fix.Pattern)
		if err != nil {
			return "", fmt.Errorf("compile pattern: %w", err)
		}
		if fix.Line > 0 {
			if err := checkLine(lines, fix.Line); err != nil {
				return "", err
			}
			current := lines[fix.Line-1]
			if !re.MatchString(current) {
				return "", fmt.Errorf("pattern does not match line %d", fix.Line)
			}
			lines[fix.Line-1] = re.ReplaceAllString(current, fix.Replacement)
			return strings.Join(lines, "\n"), nil
		}
		if !re.MatchString(content) {
			return "", errors.New("pattern does not match")
		}
		return re.ReplaceAllString(content, fix.Replacement), nil
	}

	if err := checkLine(lines, fix.Line); err != nil {
		return "", err
	}
	current := lines[fix.Line-1]
	lines[fix.Line-1] = indentOf(current) + strings.TrimLeft(fix.Replacement, " \t")
	return strings.Join(lines, "\n"), nil
}

// insert places the insertion after the first line containing After, before
// the first line containing Before, or after line Line (0 is the top).
func insert(lines []string, fix Fix) (string, error) {
	at := -1
	switch {
	case fix.After != "":
		for i, line := range lines {
			if strings.Contains(line, fix.After) {
				at = i + 1
				break
			}
		}
	case fix.Before != "":
		for i, line := range lines {
			if strings.Contains(line, fix.Before) {
				at = i
				break
			}
		}
	default:
		if fix.Line < 0 || fix.Line > len(lines) {
			return "", fmt.Errorf("line %d out of range (1-%d)", fix.Line, len(lines))
		}
		at = fix.Line
	}
	if at < 0 {
		return "", errAnchorNotFound
	}

	added := strings.Split(fix.Insertion, "\n")
	out := make([]string, 0, len(lines)+len(added))
	out = append(out, lines[:at]...)
	out = append(out, added...)
	out = append(out, lines[at:]...)
	return strings.Join(out, "\n"), nil
}

func remove(lines []string, fix Fix) (string, error) {
	start, end := fix.StartLine, fix.EndLine
	if start == 0 && end == 0 {
		start, end = fix.Line, fix.Line
	}
	if err := checkRange(lines, start, end); err != nil {
		return "", err
	}
	out := append(lines[:start-1:start-1], lines[end:]...)
	return strings.Join(out, "\n"), nil
}

func wrap(lines []string, fix Fix) (string, error) {
	start, end := fix.StartLine, fix.EndLine
	if start == 0 && end == 0 {
		start, end = fix.Line, fix.Line
	}
	if err := checkRange(lines, start, end); err != nil {
		return "", err
	}

	indent := indentOf(lines[start-1])
	var wrapped []string
	for _, line := range strings.Split(fix.WrapStart, "\n") {
		wrapped = append(wrapped, indent+line)
	}
	for _, line := range lines[start-1 : end] {
		wrapped = append(wrapped, "  "+line)
	}
	for _, line := range strings.Split(fix.WrapEnd, "\n") {
		wrapped = append(wrapped, indent+line)
	}

	out := make([]string, 0, len(lines)+len(wrapped))
	out = append(out, lines[:start-1]...)
	out = append(out, wrapped...)
	out = append(out, lines[end:]...)
	return strings.Join(out, "\n"), nil
}

func checkLine(lines []string, line int) error {
	if line < 1 || line > len(lines) {
		return fmt.Errorf("line %d out of range (1-%d)", line, len(lines))
	}
	return nil
}

func checkRange(lines []string, start, end int) error {
	if start < 1 || end < start || end > len(lines) {
		return fmt.Errorf("range %d-%d out of range (1-%d)", start, end, len(lines))
	}
	return nil
}

func indentOf(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}
