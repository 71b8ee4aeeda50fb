package feedback

import (
	"time"

	"fip/internal/finding"
)

// DataPoint is one observation recorded by a model.
type DataPoint struct {
	Pattern   string
	Value     float64
	Timestamp time.Time
}

// history is a bounded, time-ordered list of observations.
type history struct {
	limit  int
	points []DataPoint
}

func (h *history) add(p DataPoint) {
	h.points = append(h.points, p)
	if over := len(h.points) - h.limit; h.limit > 0 && over > 0 {
		h.points = append(h.points[:0], h.points[over:]...)
	}
}

// prune drops observations older than cutoff and returns how many were
// removed.
func (h *history) prune(cutoff time.Time) int {
	kept := h.points[:0]
	for _, p := range h.points {
		if !p.Timestamp.Before(cutoff) {
			kept = append(kept, p)
		}
	}
	removed := len(h.points) - len(kept)
	h.points = kept
	return removed
}

// Len returns the number of observations held.
func (h *history) Len() int { return len(h.points) }

// Models are not safe for concurrent use; Store serializes access.

// SeverityModel adjusts severity from file context rather than numeric
// blending.
type SeverityModel struct {
	history
}

// Predict returns the adjusted severity for a finding of pattern p: one step
// lower in test code, info in vendored code, and critical preserved in
// configuration.
func (m *SeverityModel) Predict(p Pattern, severity finding.Severity) finding.Severity {
	switch {
	case p.IsTest:
		return severity.Lower()
	case p.IsVendor:
		return finding.SeverityInfo
	case p.IsConfig && severity == finding.SeverityCritical:
		return finding.SeverityCritical
	default:
		return severity
	}
}

// ConfidenceModel keeps additive boost and penalty accumulators per pattern.
type ConfidenceModel struct {
	history
	boosts    map[string]float64
	penalties map[string]float64
}

func newConfidenceModel(limit int) *ConfidenceModel {
	return &ConfidenceModel{
		history:   history{limit: limit},
		boosts:    make(map[string]float64),
		penalties: make(map[string]float64),
	}
}

// Boost raises the prediction for key by amount.
func (m *ConfidenceModel) Boost(key string, amount float64) {
	m.boosts[key] += amount
}

// Penalize lowers the prediction for key by amount.
func (m *ConfidenceModel) Penalize(key string, amount float64) {
	m.penalties[key] += amount
}

// Predict returns base adjusted by the accumulators for key, clamped to
// [0, 1].
func (m *ConfidenceModel) Predict(key string, base float64) float64 {
	return clamp01(base + m.boosts[key] - m.penalties[key])
}

// AverageConfidence is the mean observed confidence, or the default
// confidence when nothing was observed.
func (m *ConfidenceModel) AverageConfidence() float64 {
	if len(m.points) == 0 {
		return finding.DefaultConfidence
	}
	var sum float64
	for _, p := range m.points {
		sum += p.Value
	}
	return sum / float64(len(m.points))
}

// PriorityModel learns from the order in which users fix issues.
type PriorityModel struct {
	history
	userPriorities map[string]float64
}

func newPriorityModel(limit int) *PriorityModel {
	return &PriorityModel{
		history:        history{limit: limit},
		userPriorities: make(map[string]float64),
	}
}

// LearnFromFixOrder records that keys were fixed in the given order. Earlier
// entries get higher priority.
func (m *PriorityModel) LearnFromFixOrder(keys []string, now time.Time) {
	for i, key := range keys {
		priority := float64(100 - i)
		m.userPriorities[key] = priority
		m.add(DataPoint{Pattern: key, Value: priority, Timestamp: now})
	}
}

// Predict returns the learned priority for key.
func (m *PriorityModel) Predict(key string) (float64, bool) {
	p, ok := m.userPriorities[key]
	return p, ok
}

// FixStats counts auto-fix outcomes for one pattern.
type FixStats struct {
	Success int `json:"success"`
	Total   int `json:"total"`
}

// AutoFixModel tracks how often automatic fixes were sufficient.
type AutoFixModel struct {
	history
	rates map[string]*FixStats
}

func newAutoFixModel(limit int) *AutoFixModel {
	return &AutoFixModel{
		history: history{limit: limit},
		rates:   make(map[string]*FixStats),
	}
}

func (m *AutoFixModel) stats(key string) *FixStats {
	s, ok := m.rates[key]
	if !ok {
		s = &FixStats{}
		m.rates[key] = s
	}
	return s
}

// AddSuccessfulFix records an automatic fix that resolved the issue.
func (m *AutoFixModel) AddSuccessfulFix(key string, now time.Time) {
	s := m.stats(key)
	s.Success++
	s.Total++
	m.add(DataPoint{Pattern: key, Value: 1, Timestamp: now})
}

// AddManualFix records an issue that needed a manual fix.
func (m *AutoFixModel) AddManualFix(key string, now time.Time) {
	m.stats(key).Total++
	m.add(DataPoint{Pattern: key, Value: 0, Timestamp: now})
}

// SuccessRate returns the observed auto-fix success rate for key, or 0.5
// without observations.
func (m *AutoFixModel) SuccessRate(key string) float64 {
	s, ok := m.rates[key]
	if !ok || s.Total == 0 {
		return DefaultSuccessRate
	}
	return float64(s.Success) / float64(s.Total)
}

// ShouldAutoFix reports whether the success rate for key exceeds 0.8.
func (m *AutoFixModel) ShouldAutoFix(key string) bool {
	return m.SuccessRate(key) > AutoFixThreshold
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
