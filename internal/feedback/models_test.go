package feedback

import (
	"testing"
	"time"

	"fip/internal/finding"
)

func TestPatternKey(t *testing.T) {
	tests := []struct {
		file string
		want string
	}{
		{"src/app.js", "XSS_VULNERABILITY|-"},
		{"src/app.test.js", "XSS_VULNERABILITY|test"},
		{"config/settings.json", "XSS_VULNERABILITY|config"},
		{"node_modules/lib/index.js", "XSS_VULNERABILITY|vendor"},
	}
	for _, tt := range tests {
		f := finding.Finding{CanonicalType: "XSS_VULNERABILITY", Location: finding.Location{File: tt.file}}
		if got := PatternOf(f).Key(); got != tt.want {
			t.Errorf("PatternOf(%s).Key() = %q, want %q", tt.file, got, tt.want)
		}
	}
}

func TestSeverityModelPredict(t *testing.T) {
	var m SeverityModel
	tests := []struct {
		name string
		p    Pattern
		in   finding.Severity
		want finding.Severity
	}{
		{"test lowers", Pattern{IsTest: true}, finding.SeverityHigh, finding.SeverityMedium},
		{"test floor", Pattern{IsTest: true}, finding.SeverityInfo, finding.SeverityInfo},
		{"vendor info", Pattern{IsVendor: true}, finding.SeverityCritical, finding.SeverityInfo},
		{"config keeps critical", Pattern{IsConfig: true}, finding.SeverityCritical, finding.SeverityCritical},
		{"config other", Pattern{IsConfig: true}, finding.SeverityLow, finding.SeverityLow},
		{"plain", Pattern{}, finding.SeverityHigh, finding.SeverityHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.Predict(tt.p, tt.in); got != tt.want {
				t.Errorf("Predict() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfidenceModelClamps(t *testing.T) {
	m := newConfidenceModel(10)
	for i := 0; i < 20; i++ {
		m.Boost("a", ConfirmBoost)
		m.Penalize("b", RejectPenalty)
	}
	if got := m.Predict("a", 0.9); got != 1 {
		t.Errorf("Predict(a) = %v, want 1", got)
	}
	if got := m.Predict("b", 0.9); got != 0 {
		t.Errorf("Predict(b) = %v, want 0", got)
	}
	if got := m.Predict("c", 0.6); got != 0.6 {
		t.Errorf("Predict(c) = %v, want 0.6", got)
	}
	if got := m.AverageConfidence(); got != finding.DefaultConfidence {
		t.Errorf("AverageConfidence() = %v, want %v", got, finding.DefaultConfidence)
	}
}

func TestHistoryBounded(t *testing.T) {
	h := history{limit: 3}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		h.add(DataPoint{Value: float64(i), Timestamp: base.Add(time.Duration(i) * time.Hour)})
	}
	if h.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", h.Len())
	}
	if h.points[0].Value != 2 {
		t.Errorf("oldest value = %v, want 2", h.points[0].Value)
	}
	if removed := h.prune(base.Add(4 * time.Hour)); removed != 2 {
		t.Errorf("prune() = %d, want 2", removed)
	}
	if h.Len() != 1 {
		t.Errorf("Len() after prune = %d, want 1", h.Len())
	}
}

func TestAutoFixModel(t *testing.T) {
	m := newAutoFixModel(100)
	now := time.Now()
	if got := m.SuccessRate("k"); got != DefaultSuccessRate {
		t.Errorf("SuccessRate() = %v, want %v", got, DefaultSuccessRate)
	}
	for i := 0; i < 9; i++ {
		m.AddSuccessfulFix("k", now)
	}
	m.AddManualFix("k", now)
	if got := m.SuccessRate("k"); got != 0.9 {
		t.Errorf("SuccessRate() = %v, want 0.9", got)
	}
	if !m.ShouldAutoFix("k") {
		t.Error("ShouldAutoFix() = false at 0.9")
	}
	m.AddManualFix("k", now)
	m.AddManualFix("k", now)
	if m.ShouldAutoFix("k") {
		t.Errorf("ShouldAutoFix() = true at %v", m.SuccessRate("k"))
	}
}

func TestPriorityModel(t *testing.T) {
	m := newPriorityModel(100)
	m.LearnFromFixOrder([]string{"a", "b"}, time.Now())
	if got, ok := m.Predict("a"); !ok || got != 100 {
		t.Errorf("Predict(a) = %v, %v; want 100, true", got, ok)
	}
	if got, _ := m.Predict("b"); got != 99 {
		t.Errorf("Predict(b) = %v, want 99", got)
	}
	if _, ok := m.Predict("c"); ok {
		t.Error("Predict(c) ok = true")
	}
}

func TestParseKind(t *testing.T) {
	for _, in := range []string{"confirmed", "FALSE_POSITIVE", "false-positive", " auto_fixed ", "MANUALLY_FIXED"} {
		if _, err := ParseKind(in); err != nil {
			t.Errorf("ParseKind(%q) error = %v", in, err)
		}
	}
	if _, err := ParseKind("maybe"); err == nil {
		t.Error("ParseKind(maybe) error = nil")
	}
}
