// Package autofix generates fixes for findings and applies them to files
// with a backup of the original content.
package autofix

import (
	fiperrors "fip/internal/errors"
	"fip/internal/finding"
)

// EditKind is how a fix changes its target.
type EditKind string

const (
	EditReplace EditKind = "REPLACE"
	EditInsert  EditKind = "INSERT"
	EditDelete  EditKind = "DELETE"
	EditWrap    EditKind = "WRAP"
	EditSQL     EditKind = "SQL"
	EditCreate  EditKind = "CREATE"
)

// Complexity classifies a fix by its number of changes.
type Complexity string

const (
	ComplexityTrivial  Complexity = "TRIVIAL"
	ComplexitySimple   Complexity = "SIMPLE"
	ComplexityModerate Complexity = "MODERATE"
	ComplexityComplex  Complexity = "COMPLEX"
)

// Risk classifies a fix by the kind of file it touches.
type Risk string

const (
	RiskLow    Risk = "LOW"
	RiskMedium Risk = "MEDIUM"
	RiskHigh   Risk = "HIGH"
)

// Confidence thresholds.
const (
	// SuggestThreshold is the minimum confidence Apply accepts.
	SuggestThreshold = 0.8
	// AutoApplyThreshold is the minimum confidence for unattended application.
	AutoApplyThreshold = 0.95
	// DefaultConfidence is used when a template sets none.
	DefaultConfidence = 0.8
)

// Preview shows a fix's effect on the reported snippet.
type Preview struct {
	Before string `json:"before"`
	After  string `json:"after"`
}

// Fix is a generated remediation. When Available is false only Reason and
// the finding fields are set.
type Fix struct {
	Available     bool             `json:"available"`
	Reason        string           `json:"reason,omitempty"`
	FindingID     string           `json:"findingId"`
	Producer      finding.Producer `json:"producer"`
	CanonicalType string           `json:"canonicalType"`

	Kind        EditKind `json:"type,omitempty"`
	File        string   `json:"file,omitempty"`
	Line        int      `json:"line,omitempty"`
	StartLine   int      `json:"startLine,omitempty"`
	EndLine     int      `json:"endLine,omitempty"`
	Pattern     string   `json:"pattern,omitempty"`
	Replacement string   `json:"replacement,omitempty"`
	Insertion   string   `json:"insertion,omitempty"`
	After       string   `json:"after,omitempty"`
	Before      string   `json:"before,omitempty"`
	WrapStart   string   `json:"wrapStart,omitempty"`
	WrapEnd     string   `json:"wrapEnd,omitempty"`
	SQL         string   `json:"sql,omitempty"`
	Content     string   `json:"content,omitempty"`
	Imports     []string `json:"imports,omitempty"`

	Description string     `json:"description,omitempty"`
	Suggestion  string     `json:"suggestion,omitempty"`
	Confidence  float64    `json:"confidence,omitempty"`
	Changes     int        `json:"changes,omitempty"`
	Complexity  Complexity `json:"complexity,omitempty"`
	Risk        Risk       `json:"risk,omitempty"`
	Preview     *Preview   `json:"preview,omitempty"`
}

// AutoApplicable reports whether fix is confident enough to apply without
// review.
func AutoApplicable(fix Fix) bool {
	return fix.Available && fix.Confidence >= AutoApplyThreshold
}

// Result is the outcome of applying one fix.
type Result struct {
	FindingID string              `json:"findingId"`
	File      string              `json:"file"`
	Success   bool                `json:"success"`
	Reason    string              `json:"reason,omitempty"`
	Code      fiperrors.ErrorCode `json:"code,omitempty"`
	Backup    string              `json:"backup,omitempty"`
	Changes   int                 `json:"changes,omitempty"`
}

// FileGroup holds the fixes for one file in ascending line order.
type FileGroup struct {
	File         string `json:"file"`
	Fixes        []Fix  `json:"fixes"`
	TotalChanges int    `json:"totalChanges"`
}
