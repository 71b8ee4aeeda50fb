package feedback

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	fiperrors "fip/internal/errors"
	"fip/internal/finding"
	"fip/internal/scheduler"
)

var epoch = time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T, path string) (*Store, *scheduler.ManualClock) {
	t.Helper()
	clock := scheduler.NewManualClock(epoch)
	cfg := DefaultConfig()
	cfg.Path = path
	return NewStore(cfg, nil, WithClock(clock)), clock
}

func secret(id, file string) finding.Finding {
	return finding.Finding{
		ID:            id,
		Producer:      finding.ProducerSecurity,
		Type:          "API_KEY_EXPOSED",
		CanonicalType: "HARDCODED_SECRET",
		Severity:      finding.SeverityHigh,
		Confidence:    0.7,
		Location:      finding.Location{File: file, Line: 10},
	}
}

func TestFalsePositiveLowersConfidence(t *testing.T) {
	s, _ := newTestStore(t, "")
	if err := s.RecordFeedback(secret("f_1", "src/a.js"), KindFalsePositive); err != nil {
		t.Fatalf("RecordFeedback() error = %v", err)
	}

	same := secret("f_2", "src/b.js")
	if got := s.AdjustedConfidence(same); got >= same.Confidence {
		t.Errorf("AdjustedConfidence() = %v, want < %v", got, same.Confidence)
	}

	inTest := secret("f_3", "src/b.test.js")
	if got := s.AdjustedConfidence(inTest); got != inTest.Confidence {
		t.Errorf("AdjustedConfidence(test file) = %v, want unchanged %v", got, inTest.Confidence)
	}
}

func TestConfirmedBoostCapped(t *testing.T) {
	s, _ := newTestStore(t, "")
	if err := s.RecordFeedback(secret("f_1", "a.js"), KindConfirmed); err != nil {
		t.Fatal(err)
	}

	f := secret("f_2", "b.js")
	if got, want := s.AdjustedConfidence(f), 0.7*TruePositiveFactor; got < want-1e-9 || got > want+1e-9 {
		t.Errorf("AdjustedConfidence() = %v, want %v", got, want)
	}
	f.Confidence = 0.95
	if got := s.AdjustedConfidence(f); got != 1 {
		t.Errorf("AdjustedConfidence() = %v, want 1", got)
	}
}

func TestFalsePositiveTakesPrecedence(t *testing.T) {
	s, _ := newTestStore(t, "")
	_ = s.RecordFeedback(secret("f_1", "a.js"), KindConfirmed)
	_ = s.RecordFeedback(secret("f_2", "a.js"), KindFalsePositive)

	if got := s.AdjustedConfidence(secret("f_3", "c.js")); got != 0.7*FalsePositiveFactor {
		t.Errorf("AdjustedConfidence() = %v, want %v", got, 0.7*FalsePositiveFactor)
	}
	st := s.Statistics()
	if st.FalsePositiveRate != 0.5 {
		t.Errorf("FalsePositiveRate = %v, want 0.5", st.FalsePositiveRate)
	}
	if st.ConfirmedIssues != 1 {
		t.Errorf("ConfirmedIssues = %d, want 1", st.ConfirmedIssues)
	}
}

func TestMissingConfidenceUsesDefault(t *testing.T) {
	s, _ := newTestStore(t, "")
	f := secret("f_1", "a.js")
	f.Confidence = 0
	if got := s.AdjustedConfidence(f); got != finding.DefaultConfidence {
		t.Errorf("AdjustedConfidence() = %v, want %v", got, finding.DefaultConfidence)
	}
}

func TestRecordFeedbackUnknownKind(t *testing.T) {
	s, _ := newTestStore(t, "")
	if err := s.RecordFeedback(secret("f_1", "a.js"), Kind("MAYBE")); err == nil {
		t.Error("RecordFeedback(MAYBE) error = nil")
	}
}

func TestAdjust(t *testing.T) {
	s, _ := newTestStore(t, "")
	f := secret("f_1", "vendor/lib/keys.js")
	got := s.Adjust(f)
	if got.Severity != finding.SeverityInfo {
		t.Errorf("Severity = %v, want info", got.Severity)
	}
	if f.Severity != finding.SeverityHigh {
		t.Error("Adjust mutated its input")
	}
}

func TestAutoFixFeedback(t *testing.T) {
	s, _ := newTestStore(t, "")
	f := secret("f_1", "a.js")
	if s.ShouldAutoFix(f) {
		t.Error("ShouldAutoFix() = true without history")
	}
	for i := 0; i < 5; i++ {
		_ = s.RecordFeedback(f, KindAutoFixed)
	}
	if !s.ShouldAutoFix(f) {
		t.Errorf("ShouldAutoFix() = false at rate %v", s.AutoFixSuccessRate(f))
	}
	_ = s.RecordFeedback(f, KindManuallyFixed)
	_ = s.RecordFeedback(f, KindManuallyFixed)
	if s.ShouldAutoFix(f) {
		t.Errorf("ShouldAutoFix() = true at rate %v", s.AutoFixSuccessRate(f))
	}
	if got := s.Statistics().SuccessfulAutoFixes; got != 1 {
		t.Errorf("SuccessfulAutoFixes = %d, want 1 (one finding ID)", got)
	}
}

func TestLearnFromAnalysisAndStatistics(t *testing.T) {
	s, _ := newTestStore(t, "")
	run := []finding.Finding{
		secret("f_1", "a.js"),
		secret("f_2", "b.js"),
		{ID: "f_3", Producer: finding.ProducerDatabase, CanonicalType: "MISSING_INDEX", Severity: finding.SeverityMedium, Confidence: 0.9},
	}
	s.LearnFromAnalysis(run)
	s.LearnFromAnalysis(run[:1])

	st := s.Statistics()
	if st.AnalysisRuns != 2 {
		t.Errorf("AnalysisRuns = %d, want 2", st.AnalysisRuns)
	}
	if st.TotalFindings != 4 {
		t.Errorf("TotalFindings = %d, want 4", st.TotalFindings)
	}
	if len(st.CommonIssues) != 2 || st.CommonIssues[0].Issue != "HARDCODED_SECRET-security" || st.CommonIssues[0].Count != 3 {
		t.Errorf("CommonIssues = %+v", st.CommonIssues)
	}
	if want := (0.7*3 + 0.9) / 4; st.AverageConfidence < want-1e-9 || st.AverageConfidence > want+1e-9 {
		t.Errorf("AverageConfidence = %v, want %v", st.AverageConfidence, want)
	}
}

func TestRecommendations(t *testing.T) {
	s, _ := newTestStore(t, "")

	var run []finding.Finding
	for i := 0; i < 6; i++ {
		run = append(run, secret("s", "a.js"))
	}
	run = append(run, finding.Finding{Producer: finding.ProducerDatabase, CanonicalType: "MISSING_INDEX"})
	s.LearnFromAnalysis(run)
	s.LearnFromAnalysis(run)

	recs := s.Recommendations(run)
	var recurring, correlated int
	for _, r := range recs {
		switch r.Type {
		case RecommendationRecurring:
			recurring++
			if !strings.Contains(r.Title, "HARDCODED_SECRET") {
				t.Errorf("recurring title = %q", r.Title)
			}
		case RecommendationCorrelated:
			correlated++
		}
	}
	if recurring != 1 {
		t.Errorf("recurring recommendations = %d, want 1", recurring)
	}
	if correlated != 1 {
		t.Errorf("correlated recommendations = %d, want 1", correlated)
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feedback.json")
	s, _ := newTestStore(t, path)
	s.LearnFromAnalysis([]finding.Finding{secret("f_1", "a.js")})
	if err := s.RecordFeedback(secret("f_1", "a.js"), KindFalsePositive); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("document not written: %v", err)
	}
	for _, field := range []string{`"version"`, `"falsePositives"`, `"commonIssues"`, `"userRejected"`} {
		if !strings.Contains(string(raw), field) {
			t.Errorf("document missing %s", field)
		}
	}

	reloaded, _ := newTestStore(t, path)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	st := reloaded.Statistics()
	if st.AnalysisRuns != 1 || st.KnownFalsePositives != 1 || st.FalsePositiveRate != 1 {
		t.Errorf("Statistics after reload = %+v", st)
	}
	if got := reloaded.AdjustedConfidence(secret("f_9", "z.js")); got >= 0.7 {
		t.Errorf("AdjustedConfidence after reload = %v, want < 0.7", got)
	}
}

func TestLoadMissingAndCorrupt(t *testing.T) {
	dir := t.TempDir()
	s, _ := newTestStore(t, filepath.Join(dir, "missing.json"))
	if err := s.Load(); err != nil {
		t.Errorf("Load(missing) error = %v", err)
	}

	path := filepath.Join(dir, "corrupt.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, _ = newTestStore(t, path)
	err := s.Load()
	if !fiperrors.Is(err, fiperrors.FeedbackCorrupt) {
		t.Fatalf("Load(corrupt) error = %v, want FEEDBACK_CORRUPT", err)
	}
	if st := s.Statistics(); st.AnalysisRuns != 0 || st.KnownFalsePositives != 0 {
		t.Errorf("store not empty after corrupt load: %+v", st)
	}
	s.LearnFromAnalysis(nil)
	if got := s.Statistics().AnalysisRuns; got != 1 {
		t.Errorf("AnalysisRuns = %d, want 1", got)
	}
}

func TestFixOrder(t *testing.T) {
	s, _ := newTestStore(t, "")
	first := secret("f_1", "a.js")
	second := finding.Finding{CanonicalType: "MISSING_INDEX", Location: finding.Location{File: "db.sql"}}
	s.LearnFromFixOrder([]finding.Finding{first, second})

	p1, ok1 := s.PredictPriority(first)
	p2, ok2 := s.PredictPriority(second)
	if !ok1 || !ok2 || p1 <= p2 {
		t.Errorf("PredictPriority = (%v,%v), (%v,%v); want first above second", p1, ok1, p2, ok2)
	}
}
