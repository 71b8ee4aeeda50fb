package incremental

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		toAnalyze, total int
		want             Strategy
	}{
		{0, 100, StrategyCached},
		{0, 0, StrategyCached},
		{1, 100, StrategyMinimal},
		{9, 100, StrategyMinimal},
		{10, 100, StrategyIncremental},
		{29, 100, StrategyIncremental},
		{30, 100, StrategyPartial},
		{69, 100, StrategyPartial},
		{70, 100, StrategyFull},
		{100, 100, StrategyFull},
	}
	for _, tt := range tests {
		if got, _ := Classify(tt.toAnalyze, tt.total); got != tt.want {
			t.Errorf("Classify(%d, %d) = %s, want %s", tt.toAnalyze, tt.total, got, tt.want)
		}
	}
}

func TestFilesToAnalyzeDedupes(t *testing.T) {
	cs := &ChangeSet{
		Added:    []string{"a"},
		Modified: []string{"b"},
		Impacted: []string{"c", "d"},
		Stale:    []string{"c", "e"},
		Total:    10,
	}
	files := cs.FilesToAnalyze()
	want := []string{"a", "b", "c", "d", "e"}
	if len(files) != len(want) {
		t.Fatalf("FilesToAnalyze() = %v, want %v", files, want)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("FilesToAnalyze()[%d] = %s, want %s", i, files[i], want[i])
		}
	}

	plan := PlanFor(cs)
	if plan.Strategy != StrategyPartial || plan.Ratio != 0.5 {
		t.Errorf("PlanFor() = %+v", plan)
	}
}
