package priority

import (
	"log/slog"
	"math"
	"sort"

	"fip/internal/finding"
	"fip/internal/slogutil"
	"fip/internal/typemap"
)

// Learned supplies user priorities learned from fix order.
type Learned interface {
	PredictPriority(f finding.Finding) (float64, bool)
}

// Engine prioritizes findings.
type Engine struct {
	weights Weights
	fixable func(finding.Finding) bool
	learned Learned
	logger  *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithWeights replaces the default factor weights.
func WithWeights(w Weights) Option {
	return func(e *Engine) { e.weights = w }
}

// WithFixability sets the predicate deciding whether an auto-fix exists.
func WithFixability(fn func(finding.Finding) bool) Option {
	return func(e *Engine) { e.fixable = fn }
}

// WithLearned blends learned user priorities into the score.
func WithLearned(l Learned) Option {
	return func(e *Engine) { e.learned = l }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// New creates an engine with the default weights and the default type
// normalizer deciding fixability.
func New(opts ...Option) *Engine {
	e := &Engine{
		weights: DefaultWeights(),
		fixable: typemap.Default().IsFixable,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = slogutil.OrDiscard(e.logger)
	return e
}

// Prioritize scores findings and returns them by descending score. Equal
// scores are ordered by finding ID.
func (e *Engine) Prioritize(findings []finding.Finding) []Record {
	deps := InferDependencies(findings)

	records := make([]Record, 0, len(findings))
	for _, f := range findings {
		autoFixable := e.fixable != nil && e.fixable(f)
		r := Record{
			Finding:       f.Clone(),
			AutoFixable:   autoFixable,
			EffortMinutes: EstimateEffort(f, autoFixable),
			Impact:        ImpactScore(f),
			Dependencies:  deps[f.ID],
		}
		r.Score = score(e.weights, f, r.Impact, r.EffortMinutes, r.BlocksOthers())
		if e.learned != nil {
			if learned, ok := e.learned.PredictPriority(f); ok {
				r.Score = int(math.Round((float64(r.Score) + learned) / 2))
			}
		}
		records = append(records, r)
	}

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Score != records[j].Score {
			return records[i].Score > records[j].Score
		}
		return records[i].Finding.ID < records[j].Finding.ID
	})

	e.logger.Debug("Prioritized findings", "count", len(records))
	return records
}

// ActionPlan buckets records, which must be in priority order, by
// cumulative effort: the first 10 minutes are immediate, up to 120 minutes
// today, and the rest this week.
func ActionPlan(records []Record) Plan {
	var plan Plan
	for _, r := range records {
		plan.TotalMinutes += r.EffortMinutes
		switch {
		case plan.TotalMinutes <= ImmediateMinutes:
			plan.Immediate = append(plan.Immediate, r)
		case plan.TotalMinutes <= TodayMinutes:
			plan.Today = append(plan.Today, r)
		default:
			plan.ThisWeek = append(plan.ThisWeek, r)
		}
		if r.BlocksOthers() {
			plan.CriticalPath = append(plan.CriticalPath, r)
		}
	}
	return plan
}

// QuickWins returns records fixable within 10 minutes, ranked by impact per
// minute. A limit of zero or less returns all of them.
func QuickWins(records []Record, limit int) []Record {
	var wins []Record
	for _, r := range records {
		if r.EffortMinutes <= QuickWinMinutes {
			wins = append(wins, r)
		}
	}

	roi := func(r Record) float64 {
		return float64(r.Impact) / math.Max(1, float64(r.EffortMinutes))
	}
	sort.SliceStable(wins, func(i, j int) bool {
		ri, rj := roi(wins[i]), roi(wins[j])
		if ri != rj {
			return ri > rj
		}
		return wins[i].Finding.ID < wins[j].Finding.ID
	})
	if limit > 0 && len(wins) > limit {
		wins = wins[:limit]
	}
	return wins
}
