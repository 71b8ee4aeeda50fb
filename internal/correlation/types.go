// Package correlation relates findings reported by different producers and
// synthesizes compound insights from those relations.
package correlation

import (
	"time"

	"fip/internal/finding"
)

// Correlation types produced by the structural rules. Semantic rules use
// their insight name as the type.
const (
	TypeSameFile       = "SAME_FILE"
	TypeSameComponent  = "SAME_COMPONENT"
	TypeRelatedPattern = "RELATED_PATTERN"
)

// Confidence assigned by the structural rules.
const (
	SameFileConfidence       = 0.9
	SameComponentConfidence  = 0.85
	RelatedPatternConfidence = 0.7
)

// InsightHotspot is synthesized when findings from at least
// HotspotProducers distinct producers share one file.
const InsightHotspot = "HOTSPOT"

// HotspotProducers is the number of distinct producers, the sharing one
// included, that make a file a hotspot.
const HotspotProducers = 3

// Priority orders insights.
type Priority string

const (
	PriorityCritical Priority = "CRITICAL"
	PriorityHigh     Priority = "HIGH"
	PriorityMedium   Priority = "MEDIUM"
	PriorityLow      Priority = "LOW"
)

// Rank returns 4 for CRITICAL down to 1 for LOW, 0 when unknown.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// Correlation relates the finding it is stored under to an earlier finding
// from a different producer.
type Correlation struct {
	Type            string           `json:"type"`
	FindingID       string           `json:"findingId"`
	RelatedID       string           `json:"relatedId"`
	Producer        finding.Producer `json:"producer"`
	RelatedProducer finding.Producer `json:"relatedProducer"`
	File            string           `json:"file,omitempty"`
	Confidence      float64          `json:"confidence"`
	CreatedAt       time.Time        `json:"createdAt"`
}

// Insight is a compound observation drawn from a group of correlations.
type Insight struct {
	ID             string             `json:"id"`
	Type           string             `json:"type"`
	Description    string             `json:"description"`
	Producers      []finding.Producer `json:"producers"`
	Priority       Priority           `json:"priority"`
	Recommendation string             `json:"recommendation"`
	File           string             `json:"file,omitempty"`
	FindingIDs     []string           `json:"findingIds"`
	CreatedAt      time.Time          `json:"createdAt"`
}

// Notification is delivered to listeners of a producer whose findings were
// correlated with a newly shared one.
type Notification struct {
	Producer     finding.Producer `json:"producer"`
	Finding      finding.Finding  `json:"finding"`
	Correlations []Correlation    `json:"correlations"`
	Insights     []Insight        `json:"insights"`
}

// Listener receives correlation notifications. Calls are synchronous and
// made without the hub lock held.
type Listener interface {
	OnCorrelation(n Notification)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(n Notification)

// OnCorrelation calls f(n).
func (f ListenerFunc) OnCorrelation(n Notification) { f(n) }

// AllProducers subscribes a listener to every producer's notifications.
const AllProducers finding.Producer = "*"

// Opportunity is a file several producers reported findings for.
type Opportunity struct {
	File      string             `json:"file"`
	Producers []finding.Producer `json:"producers"`
}

// Stats summarises hub state.
type Stats struct {
	Findings     int                      `json:"findings"`
	Correlations int                      `json:"correlations"`
	Insights     int                      `json:"insights"`
	Files        int                      `json:"files"`
	ByProducer   map[finding.Producer]int `json:"byProducer"`
}
