package finding

import (
	"fmt"
	"strings"
)

// Severity is the ordered severity scale shared by every producer.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// severityOrder lists severities from lowest to highest.
var severityOrder = []Severity{SeverityInfo, SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// Rank returns an integer rank for comparison (info=1, critical=5, unknown=0).
func (s Severity) Rank() int {
	for i, sev := range severityOrder {
		if sev == s {
			return i + 1
		}
	}
	return 0
}

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool {
	return s.Rank() > 0
}

// Lower returns the severity one step below s. Info is the floor.
func (s Severity) Lower() Severity {
	r := s.Rank()
	if r <= 1 {
		return SeverityInfo
	}
	return severityOrder[r-2]
}

// AtLeast reports whether s is at or above other.
func (s Severity) AtLeast(other Severity) bool {
	return s.Rank() >= other.Rank()
}

func (s Severity) String() string {
	return string(s)
}

// ParseSeverity parses a severity string case-insensitively.
// Scanner vocabularies vary, so "moderate" and "warning" map to medium and
// "error" maps to high.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "info", "informational", "note":
		return SeverityInfo, nil
	case "low":
		return SeverityLow, nil
	case "medium", "moderate", "warning":
		return SeverityMedium, nil
	case "high", "error":
		return SeverityHigh, nil
	case "critical", "blocker":
		return SeverityCritical, nil
	default:
		return "", fmt.Errorf("invalid severity: %s", s)
	}
}
