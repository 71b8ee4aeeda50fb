// Package feedback learns from user feedback on findings and adjusts the
// confidence and severity of future findings with the same shape.
package feedback

import (
	"fmt"
	"strings"
	"time"

	"fip/internal/finding"
)

// Kind is a user feedback signal.
type Kind string

const (
	KindConfirmed     Kind = "CONFIRMED"
	KindFalsePositive Kind = "FALSE_POSITIVE"
	KindAutoFixed     Kind = "AUTO_FIXED"
	KindManuallyFixed Kind = "MANUALLY_FIXED"
)

// Kinds lists the accepted feedback kinds.
var Kinds = []Kind{KindConfirmed, KindFalsePositive, KindAutoFixed, KindManuallyFixed}

// ParseKind parses a feedback kind case-insensitively. Dashes are accepted in
// place of underscores.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(s)), "-", "_"))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown feedback kind: %q", s)
}

// Learning constants.
const (
	ConfirmBoost        = 0.1
	RejectPenalty       = 0.2
	TruePositiveFactor  = 1.2
	FalsePositiveFactor = 0.5

	DefaultHistoryLimit  = 1000
	DefaultHistoryMaxAge = 7 * 24 * time.Hour
	DefaultPatternMaxAge = 30 * 24 * time.Hour

	AutoFixThreshold   = 0.8
	DefaultSuccessRate = 0.5

	recurringHistoryMin  = 10
	recurringCurrentMin  = 5
	correlationThreshold = 0.7
	topIssues            = 10
)

// Pattern is the shape of a finding that feedback generalizes over: its
// canonical type and the context flags of its file. Raw content does not
// participate.
type Pattern struct {
	CanonicalType string `json:"canonicalType"`
	IsTest        bool   `json:"isTest"`
	IsConfig      bool   `json:"isConfig"`
	IsVendor      bool   `json:"isVendor"`
}

// PatternOf extracts the pattern of f.
func PatternOf(f finding.Finding) Pattern {
	return Pattern{
		CanonicalType: f.EffectiveType(),
		IsTest:        f.Location.IsTest(),
		IsConfig:      f.Location.IsConfig(),
		IsVendor:      f.Location.IsVendor(),
	}
}

// Key serializes the pattern, e.g. "XSS_VULNERABILITY|test,config".
func (p Pattern) Key() string {
	var flags []string
	if p.IsTest {
		flags = append(flags, "test")
	}
	if p.IsConfig {
		flags = append(flags, "config")
	}
	if p.IsVendor {
		flags = append(flags, "vendor")
	}
	if len(flags) == 0 {
		return p.CanonicalType + "|-"
	}
	return p.CanonicalType + "|" + strings.Join(flags, ",")
}

// PatternRecord marks a pattern as a known false or true positive.
type PatternRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Factor    float64   `json:"factor"`
}

// FixRecord remembers a pattern that was fixed automatically.
type FixRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Success   bool      `json:"success"`
}

// CorrelationRecord counts the analysis runs an issue appeared in and how
// often each other issue appeared alongside it.
type CorrelationRecord struct {
	Frequency     int            `json:"frequency"`
	CoOccurrences map[string]int `json:"coOccurrences"`
}

// IssueCount is one entry of the common-issue histogram.
type IssueCount struct {
	Issue string `json:"issue"`
	Count int    `json:"count"`
}

// Recommendation types.
const (
	RecommendationRecurring  = "RECURRING_ISSUE"
	RecommendationCorrelated = "CORRELATED_ISSUES"
)

// Recommendation is advice derived from the learned history.
type Recommendation struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Suggestion  string `json:"suggestion"`
}

// Statistics summarises what the store has learned.
type Statistics struct {
	AnalysisRuns        int          `json:"analysisRuns"`
	TotalFindings       int          `json:"totalFindings"`
	ConfirmedIssues     int          `json:"confirmedIssues"`
	FalsePositiveRate   float64      `json:"falsePositiveRate"`
	AverageConfidence   float64      `json:"averageConfidence"`
	LearnedPatterns     int          `json:"learnedPatterns"`
	KnownFalsePositives int          `json:"knownFalsePositives"`
	SuccessfulAutoFixes int          `json:"successfulAutoFixes"`
	CommonIssues        []IssueCount `json:"commonIssues"`
}

// Config tunes a Store.
type Config struct {
	// Path of the persisted document. Empty keeps the store in memory.
	Path             string
	HistoryLimit     int
	HistoryMaxAge    time.Duration
	PatternMaxAge    time.Duration
	OptimizeSchedule string
	CleanupSchedule  string
}

// DefaultConfig returns the default store configuration.
func DefaultConfig() Config {
	return Config{
		HistoryLimit:     DefaultHistoryLimit,
		HistoryMaxAge:    DefaultHistoryMaxAge,
		PatternMaxAge:    DefaultPatternMaxAge,
		OptimizeSchedule: "@every 1h",
		CleanupSchedule:  "@daily",
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = d.HistoryLimit
	}
	if c.HistoryMaxAge <= 0 {
		c.HistoryMaxAge = d.HistoryMaxAge
	}
	if c.PatternMaxAge <= 0 {
		c.PatternMaxAge = d.PatternMaxAge
	}
	if c.OptimizeSchedule == "" {
		c.OptimizeSchedule = d.OptimizeSchedule
	}
	if c.CleanupSchedule == "" {
		c.CleanupSchedule = d.CleanupSchedule
	}
	return c
}
