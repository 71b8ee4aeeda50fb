package incremental

// Strategy classifies how much of the tree a run must analyse.
type Strategy string

const (
	StrategyCached      Strategy = "CACHED"
	StrategyMinimal     Strategy = "MINIMAL"
	StrategyIncremental Strategy = "INCREMENTAL"
	StrategyPartial     Strategy = "PARTIAL"
	StrategyFull        Strategy = "FULL"
)

// Ratio thresholds between strategies.
const (
	minimalThreshold     = 0.10
	incrementalThreshold = 0.30
	partialThreshold     = 0.70
)

// AnalysisPlan lists the files a run must analyse and the resulting strategy.
type AnalysisPlan struct {
	Strategy Strategy `json:"strategy"`
	Files    []string `json:"files"`
	Ratio    float64  `json:"ratio"`
	Total    int      `json:"total"`
}

// Classify maps the share of files needing analysis to a strategy.
func Classify(toAnalyze, total int) (Strategy, float64) {
	if toAnalyze <= 0 || total <= 0 {
		return StrategyCached, 0
	}
	ratio := float64(toAnalyze) / float64(total)
	switch {
	case ratio < minimalThreshold:
		return StrategyMinimal, ratio
	case ratio < incrementalThreshold:
		return StrategyIncremental, ratio
	case ratio < partialThreshold:
		return StrategyPartial, ratio
	default:
		return StrategyFull, ratio
	}
}

// PlanFor builds the analysis plan for a change set.
func PlanFor(cs *ChangeSet) AnalysisPlan {
	files := cs.FilesToAnalyze()
	strategy, ratio := Classify(len(files), cs.Total)
	return AnalysisPlan{Strategy: strategy, Files: files, Ratio: ratio, Total: cs.Total}
}
