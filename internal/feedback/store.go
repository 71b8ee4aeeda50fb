package feedback

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"fip/internal/finding"
	"fip/internal/scheduler"
	"fip/internal/slogutil"
)

// Store is the adaptive feedback store. All methods are safe for concurrent
// use.
type Store struct {
	cfg    Config
	logger *slog.Logger
	clock  scheduler.Clock

	mu             sync.Mutex
	falsePositives map[string]PatternRecord
	truePositives  map[string]PatternRecord
	fixPatterns    map[string]FixRecord
	correlations   map[string]*CorrelationRecord
	metrics        metrics
	feedback       feedbackSets

	severity   *SeverityModel
	confidence *ConfidenceModel
	priority   *PriorityModel
	autoFix    *AutoFixModel

	maintenance *scheduler.Scheduler
}

// metrics are running aggregates maintained incrementally.
type metrics struct {
	AnalysisRuns      int
	TotalFindings     int
	ConfirmedIssues   int
	FalsePositiveRate float64
	CommonIssues      map[string]int
}

// feedbackSets hold finding IDs per feedback kind.
type feedbackSets struct {
	UserConfirmed map[string]bool
	UserRejected  map[string]bool
	AutoFixed     map[string]bool
	ManuallyFixed map[string]bool
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for timestamps and maintenance schedules.
func WithClock(clock scheduler.Clock) Option {
	return func(s *Store) { s.clock = clock }
}

// NewStore creates an empty store. Call Load to restore persisted state.
func NewStore(cfg Config, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		cfg:    cfg.withDefaults(),
		logger: slogutil.OrDiscard(logger),
		clock:  scheduler.RealClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.reset()
	s.maintenance = scheduler.New(s.clock, s.logger)
	return s
}

var (
	defaultOnce  sync.Once
	defaultStore *Store
)

// Default returns a lazily built in-memory store for convenience call sites.
func Default() *Store {
	defaultOnce.Do(func() {
		defaultStore = NewStore(DefaultConfig(), nil)
	})
	return defaultStore
}

func (s *Store) reset() {
	s.falsePositives = make(map[string]PatternRecord)
	s.truePositives = make(map[string]PatternRecord)
	s.fixPatterns = make(map[string]FixRecord)
	s.correlations = make(map[string]*CorrelationRecord)
	s.metrics = metrics{CommonIssues: make(map[string]int)}
	s.feedback = feedbackSets{
		UserConfirmed: make(map[string]bool),
		UserRejected:  make(map[string]bool),
		AutoFixed:     make(map[string]bool),
		ManuallyFixed: make(map[string]bool),
	}
	limit := s.cfg.HistoryLimit
	s.severity = &SeverityModel{history: history{limit: limit}}
	s.confidence = newConfidenceModel(limit)
	s.priority = newPriorityModel(limit)
	s.autoFix = newAutoFixModel(limit)
}

// issueKey keys the common-issue histogram and correlation records.
func issueKey(f finding.Finding) string {
	return f.EffectiveType() + "-" + string(f.Producer)
}

// LearnFromAnalysis folds one analysis run into the running aggregates and
// models, then persists the store.
func (s *Store) LearnFromAnalysis(findings []finding.Finding) {
	s.mu.Lock()
	now := s.clock.Now()
	s.metrics.AnalysisRuns++

	present := make(map[string]bool)
	for _, f := range findings {
		key := PatternOf(f).Key()
		issue := issueKey(f)
		s.metrics.CommonIssues[issue]++
		if f.Confidence > 0 {
			s.confidence.add(DataPoint{Pattern: key, Value: f.Confidence, Timestamp: now})
		}
		if f.Severity.Valid() {
			s.severity.add(DataPoint{Pattern: key, Value: float64(f.Severity.Rank()), Timestamp: now})
		}
		present[issue] = true
		s.metrics.TotalFindings++
	}
	for issue := range present {
		rec := s.correlation(issue)
		rec.Frequency++
		for other := range present {
			if other != issue {
				rec.CoOccurrences[other]++
			}
		}
	}
	s.mu.Unlock()

	s.logger.Debug("Learned from analysis",
		"findings", len(findings),
		"distinctIssues", len(present),
	)
	s.persist()
}

func (s *Store) correlation(issue string) *CorrelationRecord {
	rec, ok := s.correlations[issue]
	if !ok {
		rec = &CorrelationRecord{CoOccurrences: make(map[string]int)}
		s.correlations[issue] = rec
	}
	if rec.CoOccurrences == nil {
		rec.CoOccurrences = make(map[string]int)
	}
	return rec
}

// RecordFeedback applies a feedback signal for f. The finding ID joins the
// feedback set of the kind and the finding's pattern updates the pattern
// tables and models, so later findings with the same shape are adjusted.
func (s *Store) RecordFeedback(f finding.Finding, kind Kind) error {
	key := PatternOf(f).Key()

	s.mu.Lock()
	now := s.clock.Now()
	switch kind {
	case KindConfirmed:
		s.feedback.UserConfirmed[f.ID] = true
		s.metrics.ConfirmedIssues++
		s.confidence.Boost(key, ConfirmBoost)
		s.truePositives[key] = PatternRecord{Timestamp: now, Factor: TruePositiveFactor}
	case KindFalsePositive:
		s.feedback.UserRejected[f.ID] = true
		s.confidence.Penalize(key, RejectPenalty)
		s.falsePositives[key] = PatternRecord{Timestamp: now, Factor: FalsePositiveFactor}
	case KindAutoFixed:
		s.feedback.AutoFixed[f.ID] = true
		s.fixPatterns[key] = FixRecord{Timestamp: now, Success: true}
		s.autoFix.AddSuccessfulFix(key, now)
	case KindManuallyFixed:
		s.feedback.ManuallyFixed[f.ID] = true
		s.autoFix.AddManualFix(key, now)
	default:
		s.mu.Unlock()
		return fmt.Errorf("unknown feedback kind: %q", kind)
	}
	s.updateFalsePositiveRate()
	s.mu.Unlock()

	s.logger.Info("Recorded feedback", "finding", f.ID, "kind", string(kind), "pattern", key)
	s.persist()
	return nil
}

func (s *Store) updateFalsePositiveRate() {
	confirmed := len(s.feedback.UserConfirmed)
	rejected := len(s.feedback.UserRejected)
	if total := confirmed + rejected; total > 0 {
		s.metrics.FalsePositiveRate = float64(rejected) / float64(total)
	}
}

// AdjustedConfidence returns the confidence learned for f's pattern. A known
// false-positive pattern takes precedence over a known true-positive one,
// which takes precedence over the confidence model.
func (s *Store) AdjustedConfidence(f finding.Finding) float64 {
	base := f.Confidence
	if base <= 0 {
		base = finding.DefaultConfidence
	}
	key := PatternOf(f).Key()

	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.falsePositives[key]; ok {
		return clamp01(base * rec.Factor)
	}
	if rec, ok := s.truePositives[key]; ok {
		return clamp01(base * rec.Factor)
	}
	return s.confidence.Predict(key, base)
}

// AdjustedSeverity returns the severity adjusted for f's file context.
func (s *Store) AdjustedSeverity(f finding.Finding) finding.Severity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.severity.Predict(PatternOf(f), f.Severity)
}

// Adjust returns a copy of f with learned confidence and severity applied.
func (s *Store) Adjust(f finding.Finding) finding.Finding {
	out := f.Clone()
	out.Confidence = s.AdjustedConfidence(f)
	out.Severity = s.AdjustedSeverity(f)
	return out
}

// LearnFromFixOrder records the order in which the user fixed findings.
func (s *Store) LearnFromFixOrder(fixed []finding.Finding) {
	keys := make([]string, len(fixed))
	for i, f := range fixed {
		keys[i] = PatternOf(f).Key()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.priority.LearnFromFixOrder(keys, s.clock.Now())
}

// PredictPriority returns the user priority learned for f's pattern.
func (s *Store) PredictPriority(f finding.Finding) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.priority.Predict(PatternOf(f).Key())
}

// AutoFixSuccessRate returns the auto-fix success rate for f's pattern.
func (s *Store) AutoFixSuccessRate(f finding.Finding) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoFix.SuccessRate(PatternOf(f).Key())
}

// ShouldAutoFix reports whether fixes for f's pattern have been reliable
// enough to apply without review.
func (s *Store) ShouldAutoFix(f finding.Finding) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoFix.ShouldAutoFix(PatternOf(f).Key())
}

// Recommendations derives advice for the current findings from history.
func (s *Store) Recommendations(findings []finding.Finding) []Recommendation {
	groups := make(map[string]int)
	var order []string
	for _, f := range findings {
		issue := issueKey(f)
		if groups[issue] == 0 {
			order = append(order, issue)
		}
		groups[issue]++
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Recommendation
	for _, issue := range order {
		seen := s.metrics.CommonIssues[issue]
		if seen > recurringHistoryMin && groups[issue] > recurringCurrentMin {
			out = append(out, Recommendation{
				Type:        RecommendationRecurring,
				Title:       fmt.Sprintf("Recurring %s issues", issue),
				Description: fmt.Sprintf("This issue has appeared %d times historically and %d times in the current scan", seen, groups[issue]),
				Suggestion:  "Consider a lint rule or an automated fix",
			})
		}
	}

	sort.Strings(order)
	for _, issue := range order {
		rec, ok := s.correlations[issue]
		if !ok || rec.Frequency == 0 {
			continue
		}
		for _, other := range order {
			if other <= issue {
				continue
			}
			ratio := float64(rec.CoOccurrences[other]) / float64(rec.Frequency)
			if ratio < correlationThreshold {
				continue
			}
			out = append(out, Recommendation{
				Type:        RecommendationCorrelated,
				Title:       fmt.Sprintf("Related issues: %s and %s", issue, other),
				Description: fmt.Sprintf("These issues appear together in %.0f%% of runs", ratio*100),
				Suggestion:  "Fix these issues together",
			})
		}
	}
	return out
}

// Statistics returns a summary of the learned state.
func (s *Store) Statistics() Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Statistics{
		AnalysisRuns:        s.metrics.AnalysisRuns,
		TotalFindings:       s.metrics.TotalFindings,
		ConfirmedIssues:     s.metrics.ConfirmedIssues,
		FalsePositiveRate:   s.metrics.FalsePositiveRate,
		AverageConfidence:   s.confidence.AverageConfidence(),
		LearnedPatterns:     len(s.truePositives),
		KnownFalsePositives: len(s.falsePositives),
		SuccessfulAutoFixes: len(s.feedback.AutoFixed),
		CommonIssues:        topCounts(s.metrics.CommonIssues, topIssues),
	}
}

// HistorySizes returns the number of observations held by each model.
func (s *Store) HistorySizes() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]int{
		"severity":   s.severity.Len(),
		"confidence": s.confidence.Len(),
		"priority":   s.priority.Len(),
		"autoFix":    s.autoFix.Len(),
	}
}

func topCounts(counts map[string]int, n int) []IssueCount {
	out := make([]IssueCount, 0, len(counts))
	for issue, count := range counts {
		out = append(out, IssueCount{Issue: issue, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Issue < out[j].Issue
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
