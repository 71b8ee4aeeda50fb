package priority

import (
	"math"
	"testing"

	"fip/internal/finding"
)

func f(id string, producer finding.Producer, typ string, sev finding.Severity, file string, line int) finding.Finding {
	return finding.Finding{
		ID:            id,
		Producer:      producer,
		Type:          typ,
		CanonicalType: typ,
		Severity:      sev,
		Confidence:    0.9,
		Location:      finding.Location{File: file, Line: line},
	}
}

func noFix(finding.Finding) bool { return false }

func TestScoreFormula(t *testing.T) {
	e := New()
	recs := e.Prioritize([]finding.Finding{
		f("f_secret", finding.ProducerSecurity, "HARDCODED_SECRET", finding.SeverityHigh, "a.js", 1),
	})
	r := recs[0]
	if r.EffortMinutes != 5 {
		t.Errorf("EffortMinutes = %d, want 5", r.EffortMinutes)
	}
	if r.Impact != 90 {
		t.Errorf("Impact = %d, want 90", r.Impact)
	}
	// 100 * (0.35*0.75 + 0.25*0.9 + 0.2*1 + 0.1*0.9 + 0.1*0.5) * 1.2
	if r.Score != 99 {
		t.Errorf("Score = %d, want 99", r.Score)
	}
	if !r.AutoFixable {
		t.Error("AutoFixable = false for HARDCODED_SECRET")
	}
}

func TestUserFacingMultiplier(t *testing.T) {
	e := New(WithFixability(noFix))
	plain := f("f_1", finding.ProducerDesign, "MISSING_ARIA", finding.SeverityMedium, "a.jsx", 1)
	facing := f("f_2", finding.ProducerDesign, "MISSING_ARIA", finding.SeverityMedium, "b.jsx", 1)
	facing.Metadata = finding.Metadata{finding.MetaUserFacing: finding.Bool(true)}

	recs := e.Prioritize([]finding.Finding{plain, facing})
	if recs[0].Finding.ID != "f_2" {
		t.Fatalf("user-facing finding not ranked first: %+v", recs)
	}
	if recs[0].Score <= recs[1].Score {
		t.Errorf("Score %d <= %d", recs[0].Score, recs[1].Score)
	}
}

func TestEstimateEffort(t *testing.T) {
	tests := []struct {
		name        string
		sev         finding.Severity
		complexity  string
		autoFixable bool
		want        int
	}{
		{"critical", finding.SeverityCritical, "", false, 45},
		{"critical complex", finding.SeverityCritical, "high", false, 90},
		{"critical complex autofix", finding.SeverityCritical, "high", true, 18},
		{"low simple", finding.SeverityLow, "low", false, 5},
		{"low simple autofix floor", finding.SeverityLow, "low", true, 2},
		{"info", finding.SeverityInfo, "", false, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := f("x", finding.ProducerDesign, "CUSTOM_RULE", tt.sev, "a.js", 1)
			if tt.complexity != "" {
				in.Metadata = finding.Metadata{finding.MetaComplexity: finding.String(tt.complexity)}
			}
			if got := EstimateEffort(in, tt.autoFixable); got != tt.want {
				t.Errorf("EstimateEffort() = %d, want %d", got, tt.want)
			}
		})
	}

	table := f("x", finding.ProducerDatabase, "MISSING_INDEX", finding.SeverityCritical, "a.sql", 1)
	if got := EstimateEffort(table, false); got != 5 {
		t.Errorf("EstimateEffort(MISSING_INDEX) = %d, want 5", got)
	}
}

func TestEffortScore(t *testing.T) {
	tests := map[int]float64{1: 100, 5: 100, 6: 90, 10: 90, 15: 80, 30: 60, 45: 30, 60: 30, 61: 10, 240: 10}
	for minutes, want := range tests {
		if got := EffortScore(minutes); got != want {
			t.Errorf("EffortScore(%d) = %v, want %v", minutes, got, want)
		}
	}
}

func TestBuildErrorBlocksEverything(t *testing.T) {
	build := f("f_build", finding.ProducerTesting, "BUILD_ERROR", finding.SeverityLow, "Makefile", 1)
	others := []finding.Finding{
		f("f_a", finding.ProducerSecurity, "XSS_VULNERABILITY", finding.SeverityCritical, "a.js", 1),
		f("f_b", finding.ProducerDesign, "MISSING_ARIA", finding.SeverityInfo, "b.jsx", 99),
		f("f_c", finding.ProducerDatabase, "SLOW_QUERY", finding.SeverityMedium, "c.sql", 3),
	}

	recs := New().Prioritize(append([]finding.Finding{build}, others...))
	for _, r := range recs {
		if r.Finding.ID == build.ID {
			if got := len(r.BlockedIDs()); got != len(others) {
				t.Errorf("build error blocks %d findings, want %d", got, len(others))
			}
			continue
		}
		blocked := false
		for _, id := range r.BlockedBy() {
			if id == build.ID {
				blocked = true
			}
		}
		if !blocked {
			t.Errorf("%s not blocked by the build error: %+v", r.Finding.ID, r.Dependencies)
		}
	}
}

func TestInferDependencies(t *testing.T) {
	early := f("f_early", finding.ProducerPerformance, "MEMORY_LEAK", finding.SeverityHigh, "a.js", 1)
	late := f("f_late", finding.ProducerDesign, "MISSING_ARIA", finding.SeverityLow, "a.js", 9)
	index := f("f_index", finding.ProducerDatabase, "MISSING_INDEX", finding.SeverityMedium, "schema.sql", 1)
	slow := f("f_slow", finding.ProducerDatabase, "SLOW_QUERY", finding.SeverityMedium, "queries.sql", 1)
	auth := f("f_auth", finding.ProducerSecurity, "MISSING_AUTH", finding.SeverityMedium, "api.js", 1)
	xss := f("f_xss", finding.ProducerSecurity, "XSS_VULNERABILITY", finding.SeverityMedium, "view.js", 1)
	test := f("f_test", finding.ProducerTesting, "MISSING_TEST", finding.SeverityLow, "api.test.js", 1)

	deps := InferDependencies([]finding.Finding{early, late, index, slow, auth, xss, test})

	has := func(id string, typ DependencyType, from, to string) bool {
		for _, d := range deps[id] {
			if d.Type == typ && d.From == from && d.To == to {
				return true
			}
		}
		return false
	}

	cases := []struct {
		name     string
		typ      DependencyType
		from, to string
		want     bool
	}{
		{"same file earlier severe", Blocks, "f_early", "f_late", true},
		{"same file later mild", Blocks, "f_late", "f_early", false},
		{"index before slow query", Blocks, "f_index", "f_slow", true},
		{"auth before security", Blocks, "f_auth", "f_xss", true},
		{"auth not before testing", Blocks, "f_auth", "f_test", false},
		{"testing after security", DependsOn, "f_test", "f_auth", true},
		{"design independent", DependsOn, "f_late", "f_auth", false},
	}
	for _, c := range cases {
		if got := has(c.from, c.typ, c.from, c.to); got != c.want {
			t.Errorf("%s: %s %s->%s = %v, want %v", c.name, c.typ, c.from, c.to, got, c.want)
		}
		if c.want && !has(c.to, c.typ, c.from, c.to) {
			t.Errorf("%s: dependency missing on the target record", c.name)
		}
	}
}

func TestPrioritizeDeterministic(t *testing.T) {
	in := []finding.Finding{
		f("f_3", finding.ProducerDesign, "MISSING_ARIA", finding.SeverityMedium, "a.jsx", 1),
		f("f_1", finding.ProducerDesign, "MISSING_ARIA", finding.SeverityMedium, "b.jsx", 1),
		f("f_2", finding.ProducerDatabase, "SLOW_QUERY", finding.SeverityHigh, "c.sql", 1),
		f("f_4", finding.ProducerSecurity, "SQL_INJECTION", finding.SeverityCritical, "d.js", 1),
	}
	reversed := make([]finding.Finding, len(in))
	for i := range in {
		reversed[len(in)-1-i] = in[i]
	}

	e := New()
	a, b := e.Prioritize(in), e.Prioritize(reversed)
	for i := range a {
		if a[i].Finding.ID != b[i].Finding.ID || a[i].Score != b[i].Score {
			t.Fatalf("order differs at %d: %s/%d vs %s/%d", i, a[i].Finding.ID, a[i].Score, b[i].Finding.ID, b[i].Score)
		}
	}
	if a[0].Finding.ID != "f_4" {
		t.Errorf("first = %s, want f_4", a[0].Finding.ID)
	}
	if a[2].Finding.ID != "f_1" || a[3].Finding.ID != "f_3" {
		t.Errorf("tie not broken by ID: %s, %s", a[2].Finding.ID, a[3].Finding.ID)
	}
}

type fixedLearned map[string]float64

func (l fixedLearned) PredictPriority(f finding.Finding) (float64, bool) {
	v, ok := l[f.ID]
	return v, ok
}

func TestWithLearned(t *testing.T) {
	in := []finding.Finding{f("f_1", finding.ProducerDesign, "MISSING_ARIA", finding.SeverityMedium, "a.jsx", 1)}
	base := New(WithFixability(noFix)).Prioritize(in)[0].Score
	got := New(WithFixability(noFix), WithLearned(fixedLearned{"f_1": 100})).Prioritize(in)[0].Score
	if want := int(math.Round(float64(base+100) / 2)); got != want {
		t.Errorf("Score = %d, want %d", got, want)
	}
}

func TestActionPlan(t *testing.T) {
	mk := func(id string, minutes int, blocks bool) Record {
		r := Record{Finding: finding.Finding{ID: id}, EffortMinutes: minutes}
		if blocks {
			r.Dependencies = []Dependency{{Type: Blocks, From: id, To: "other"}}
		}
		return r
	}
	plan := ActionPlan([]Record{mk("a", 5, false), mk("b", 5, true), mk("c", 30, false), mk("d", 100, false)})

	if len(plan.Immediate) != 2 || len(plan.Today) != 1 || len(plan.ThisWeek) != 1 {
		t.Errorf("buckets = %d/%d/%d, want 2/1/1", len(plan.Immediate), len(plan.Today), len(plan.ThisWeek))
	}
	if plan.TotalMinutes != 140 {
		t.Errorf("TotalMinutes = %d, want 140", plan.TotalMinutes)
	}
	if len(plan.CriticalPath) != 1 || plan.CriticalPath[0].Finding.ID != "b" {
		t.Errorf("CriticalPath = %+v", plan.CriticalPath)
	}
}

func TestQuickWins(t *testing.T) {
	recs := []Record{
		{Finding: finding.Finding{ID: "a"}, EffortMinutes: 2, Impact: 30},
		{Finding: finding.Finding{ID: "b"}, EffortMinutes: 5, Impact: 90},
		{Finding: finding.Finding{ID: "c"}, EffortMinutes: 10, Impact: 50},
		{Finding: finding.Finding{ID: "d"}, EffortMinutes: 20, Impact: 100},
	}
	wins := QuickWins(recs, 0)
	want := []string{"b", "a", "c"}
	if len(wins) != len(want) {
		t.Fatalf("len(QuickWins) = %d, want %d", len(wins), len(want))
	}
	for i, id := range want {
		if wins[i].Finding.ID != id {
			t.Errorf("QuickWins[%d] = %s, want %s", i, wins[i].Finding.ID, id)
		}
	}
	if got := QuickWins(recs, 2); len(got) != 2 {
		t.Errorf("len(QuickWins(limit 2)) = %d, want 2", len(got))
	}
}

func TestWeightsValidate(t *testing.T) {
	if err := DefaultWeights().Validate(); err != nil {
		t.Errorf("DefaultWeights().Validate() = %v", err)
	}
	w := DefaultWeights()
	w.Severity = 0.5
	if err := w.Validate(); err == nil {
		t.Error("Validate() accepted weights summing above 1")
	}
	w = DefaultWeights()
	w.Impact, w.Severity = -0.05, 0.65
	if err := w.Validate(); err == nil {
		t.Error("Validate() accepted a negative weight")
	}
}
