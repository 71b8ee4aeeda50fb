package feedback

import (
	"errors"
	"io/fs"
	"sort"
	"time"

	fiperrors "fip/internal/errors"
	"fip/internal/statefile"
)

const documentVersion = "1.0.0"

type document struct {
	Version   string          `json:"version"`
	Timestamp time.Time       `json:"timestamp"`
	Patterns  patternsDoc     `json:"patterns"`
	Metrics   metricsDoc      `json:"metrics"`
	Feedback  feedbackSetsDoc `json:"feedback"`
}

type patternsDoc struct {
	FalsePositives []statefile.Pair[PatternRecord]     `json:"falsePositives"`
	TruePositives  []statefile.Pair[PatternRecord]     `json:"truePositives"`
	FixPatterns    []statefile.Pair[FixRecord]         `json:"fixPatterns"`
	Correlations   []statefile.Pair[CorrelationRecord] `json:"correlations"`
}

type metricsDoc struct {
	AnalysisRuns      int                   `json:"analysisRuns"`
	TotalFindings     int                   `json:"totalFindings"`
	ConfirmedIssues   int                   `json:"confirmedIssues"`
	FalsePositiveRate float64               `json:"falsePositiveRate"`
	CommonIssues      []statefile.Pair[int] `json:"commonIssues"`
}

type feedbackSetsDoc struct {
	UserConfirmed []string `json:"userConfirmed"`
	UserRejected  []string `json:"userRejected"`
	AutoFixed     []string `json:"autoFixed"`
	ManuallyFixed []string `json:"manuallyFixed"`
}

// Load replaces the in-memory state with the persisted document. A missing
// document leaves the store empty and returns nil. A corrupt one also leaves
// it empty and returns a FEEDBACK_CORRUPT error for the caller to log.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reset()
	if s.cfg.Path == "" {
		return nil
	}

	var doc document
	if err := statefile.Read(s.cfg.Path, &doc); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug("No feedback document, starting fresh", "path", s.cfg.Path)
			return nil
		}
		return fiperrors.New(fiperrors.FeedbackCorrupt, "load feedback document", err)
	}

	s.falsePositives = statefile.ToMap(doc.Patterns.FalsePositives)
	s.truePositives = statefile.ToMap(doc.Patterns.TruePositives)
	s.fixPatterns = statefile.ToMap(doc.Patterns.FixPatterns)
	for issue, rec := range statefile.ToMap(doc.Patterns.Correlations) {
		if rec.CoOccurrences == nil {
			rec.CoOccurrences = make(map[string]int)
		}
		s.correlations[issue] = &rec
	}

	s.metrics = metrics{
		AnalysisRuns:      doc.Metrics.AnalysisRuns,
		TotalFindings:     doc.Metrics.TotalFindings,
		ConfirmedIssues:   doc.Metrics.ConfirmedIssues,
		FalsePositiveRate: doc.Metrics.FalsePositiveRate,
		CommonIssues:      statefile.ToMap(doc.Metrics.CommonIssues),
	}
	s.feedback = feedbackSets{
		UserConfirmed: toSet(doc.Feedback.UserConfirmed),
		UserRejected:  toSet(doc.Feedback.UserRejected),
		AutoFixed:     toSet(doc.Feedback.AutoFixed),
		ManuallyFixed: toSet(doc.Feedback.ManuallyFixed),
	}

	s.logger.Debug("Loaded feedback document",
		"analysisRuns", s.metrics.AnalysisRuns,
		"falsePositives", len(s.falsePositives),
		"truePositives", len(s.truePositives),
	)
	return nil
}

// Save writes the document. Without a configured path it is a no-op.
func (s *Store) Save() error {
	s.mu.Lock()
	doc := s.snapshot()
	s.mu.Unlock()

	if s.cfg.Path == "" {
		return nil
	}
	if err := statefile.Write(s.cfg.Path, doc); err != nil {
		return fiperrors.New(fiperrors.CacheWriteFailed, "save feedback document", err)
	}
	return nil
}

// persist saves and logs failures.
func (s *Store) persist() {
	if err := s.Save(); err != nil {
		s.logger.Warn("Failed to save feedback document", "path", s.cfg.Path, "error", err.Error())
	}
}

func (s *Store) snapshot() document {
	correlations := make(map[string]CorrelationRecord, len(s.correlations))
	for issue, rec := range s.correlations {
		co := make(map[string]int, len(rec.CoOccurrences))
		for k, v := range rec.CoOccurrences {
			co[k] = v
		}
		correlations[issue] = CorrelationRecord{Frequency: rec.Frequency, CoOccurrences: co}
	}

	return document{
		Version:   documentVersion,
		Timestamp: s.clock.Now(),
		Patterns: patternsDoc{
			FalsePositives: statefile.Pairs(s.falsePositives),
			TruePositives:  statefile.Pairs(s.truePositives),
			FixPatterns:    statefile.Pairs(s.fixPatterns),
			Correlations:   statefile.Pairs(correlations),
		},
		Metrics: metricsDoc{
			AnalysisRuns:      s.metrics.AnalysisRuns,
			TotalFindings:     s.metrics.TotalFindings,
			ConfirmedIssues:   s.metrics.ConfirmedIssues,
			FalsePositiveRate: s.metrics.FalsePositiveRate,
			CommonIssues:      statefile.Pairs(s.metrics.CommonIssues),
		},
		Feedback: feedbackSetsDoc{
			UserConfirmed: fromSet(s.feedback.UserConfirmed),
			UserRejected:  fromSet(s.feedback.UserRejected),
			AutoFixed:     fromSet(s.feedback.AutoFixed),
			ManuallyFixed: fromSet(s.feedback.ManuallyFixed),
		},
	}
}

func toSet(ids []string) map[string]bool {
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}

func fromSet(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
