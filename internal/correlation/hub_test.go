package correlation

import (
	"testing"
	"time"

	"fip/internal/finding"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func newTestHub(t *testing.T) (*Hub, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewHub(nil, WithClock(clock.Now)), clock
}

func mk(typ, file string, line int) finding.Finding {
	return finding.Finding{
		Type:     typ,
		Severity: finding.SeverityHigh,
		Location: finding.Location{File: file, Line: line},
	}
}

func countType(cs []Correlation, typ string) int {
	n := 0
	for _, c := range cs {
		if c.Type == typ {
			n++
		}
	}
	return n
}

func findInsight(insights []Insight, typ string) (Insight, bool) {
	for _, in := range insights {
		if in.Type == typ {
			return in, true
		}
	}
	return Insight{}, false
}

func TestShareFinding_DatabasePerformanceEitherOrder(t *testing.T) {
	type share struct {
		producer finding.Producer
		typ      string
	}
	orders := map[string][]share{
		"database first":    {{finding.ProducerDatabase, "N_PLUS_ONE"}, {finding.ProducerPerformance, "SLOW_FUNCTION"}},
		"performance first": {{finding.ProducerPerformance, "SLOW_FUNCTION"}, {finding.ProducerDatabase, "N_PLUS_ONE"}},
	}

	for name, order := range orders {
		t.Run(name, func(t *testing.T) {
			hub, _ := newTestHub(t)
			first := hub.ShareFinding(order[0].producer, mk(order[0].typ, "a.js", 1))
			second := hub.ShareFinding(order[1].producer, mk(order[1].typ, "a.js", 2))

			if got := hub.Correlations(first); len(got) != 0 {
				t.Errorf("first finding has %d correlations, want 0", len(got))
			}
			cs := hub.Correlations(second)
			if countType(cs, TypeSameFile) < 1 {
				t.Fatalf("no SAME_FILE correlation in %+v", cs)
			}
			for _, c := range cs {
				if c.RelatedID != first || c.RelatedProducer != order[0].producer {
					t.Errorf("correlation %+v does not reference the first finding", c)
				}
			}

			in, ok := findInsight(hub.Insights(), "DATABASE_PERFORMANCE_IMPACT")
			if !ok {
				t.Fatal("DATABASE_PERFORMANCE_IMPACT insight missing")
			}
			if in.Priority != PriorityCritical {
				t.Errorf("Priority = %v, want %v", in.Priority, PriorityCritical)
			}
			if in.ID == "" {
				t.Error("insight ID is empty")
			}
		})
	}
}

func TestShareFinding_SameProducerDoesNotCorrelate(t *testing.T) {
	hub, _ := newTestHub(t)
	hub.ShareFinding(finding.ProducerSecurity, mk("XSS", "a.js", 1))
	id := hub.ShareFinding(finding.ProducerSecurity, mk("SQL_INJECTION", "a.js", 2))

	if got := hub.Correlations(id); len(got) != 0 {
		t.Errorf("Correlations = %+v, want none", got)
	}
	if got := hub.Insights(); len(got) != 0 {
		t.Errorf("Insights = %+v, want none", got)
	}
}

func TestShareFinding_SemanticRuleAcrossFiles(t *testing.T) {
	hub, _ := newTestHub(t)
	hub.ShareFinding(finding.ProducerDatabase, mk("N_PLUS_ONE", "models/user.js", 1))
	id := hub.ShareFinding(finding.ProducerPerformance, mk("SLOW_FUNCTION", "routes/users.js", 1))

	cs := hub.Correlations(id)
	if countType(cs, "DATABASE_PERFORMANCE_IMPACT") != 1 {
		t.Errorf("DATABASE_PERFORMANCE_IMPACT count = %d, want 1: %+v", countType(cs, "DATABASE_PERFORMANCE_IMPACT"), cs)
	}
	if countType(cs, TypeSameFile) != 0 {
		t.Errorf("SAME_FILE count = %d, want 0", countType(cs, TypeSameFile))
	}
	if _, ok := findInsight(hub.Insights(), "DATABASE_PERFORMANCE_IMPACT"); !ok {
		t.Error("DATABASE_PERFORMANCE_IMPACT insight missing")
	}
}

func TestShareFinding_ResharingActiveIDIsNoop(t *testing.T) {
	hub, _ := newTestHub(t)
	hub.ShareFinding(finding.ProducerDatabase, mk("N_PLUS_ONE", "a.js", 1))
	slow := mk("SLOW_FUNCTION", "a.js", 2)
	id := hub.ShareFinding(finding.ProducerPerformance, slow)

	var notified int
	hub.Subscribe(AllProducers, ListenerFunc(func(Notification) { notified++ }))

	slow.ID = id
	if got := hub.ShareFinding(finding.ProducerPerformance, slow); got != id {
		t.Fatalf("ShareFinding() = %s, want %s", got, id)
	}
	if got := len(hub.Correlations(id)); got != 2 {
		t.Errorf("len(Correlations) = %d, want 2", got)
	}
	if got := len(hub.Insights()); got != 1 {
		t.Errorf("len(Insights) = %d, want 1", got)
	}
	if got := len(hub.FindingsForFile("a.js")); got != 2 {
		t.Errorf("FindingsForFile = %d findings, want 2", got)
	}
	if notified != 0 {
		t.Errorf("listener notified %d times, want 0", notified)
	}
}

func TestShareFinding_SameComponent(t *testing.T) {
	hub, _ := newTestHub(t)
	a := mk("LARGE_COMPONENT", "src/Cart.jsx", 1)
	a.Metadata = finding.Metadata{finding.MetaComponent: finding.String("Cart")}
	b := mk("UNNECESSARY_RERENDER", "src/CartItem.jsx", 5)
	b.Metadata = finding.Metadata{finding.MetaComponent: finding.String("Cart")}

	hub.ShareFinding(finding.ProducerDesign, a)
	id := hub.ShareFinding(finding.ProducerPerformance, b)

	cs := hub.Correlations(id)
	if countType(cs, TypeSameComponent) != 1 {
		t.Errorf("SAME_COMPONENT count = %d, want 1", countType(cs, TypeSameComponent))
	}
	if countType(cs, TypeSameFile) != 0 {
		t.Errorf("SAME_FILE count = %d, want 0", countType(cs, TypeSameFile))
	}
	if countType(cs, "RENDER_PERFORMANCE") != 1 {
		t.Errorf("RENDER_PERFORMANCE count = %d, want 1", countType(cs, "RENDER_PERFORMANCE"))
	}
	if countType(cs, TypeRelatedPattern) != 1 {
		t.Errorf("RELATED_PATTERN count = %d, want 1", countType(cs, TypeRelatedPattern))
	}
}

func TestShareFinding_Hotspot(t *testing.T) {
	hub, _ := newTestHub(t)
	hub.ShareFinding(finding.ProducerSecurity, mk("HARDCODED_SECRET", "app.js", 3))
	hub.ShareFinding(finding.ProducerTesting, mk("MISSING_TEST", "app.js", 1))
	if _, ok := findInsight(hub.Insights(), InsightHotspot); ok {
		t.Fatal("HOTSPOT synthesized with only two producers")
	}

	hub.ShareFinding(finding.ProducerPerformance, mk("MEMORY_LEAK", "app.js", 20))

	insights := hub.Insights()
	hot, ok := findInsight(insights, InsightHotspot)
	if !ok {
		t.Fatal("HOTSPOT insight missing")
	}
	if hot.Priority != PriorityHigh {
		t.Errorf("Priority = %v, want %v", hot.Priority, PriorityHigh)
	}
	if len(hot.Producers) != 3 {
		t.Errorf("Producers = %v, want 3 entries", hot.Producers)
	}
	if len(hot.FindingIDs) != 3 {
		t.Errorf("FindingIDs = %v, want 3 entries", hot.FindingIDs)
	}
	if _, ok := findInsight(insights, "LEAK_TEST_GAP"); !ok {
		t.Error("LEAK_TEST_GAP insight missing")
	}
}

func TestShareFinding_HotspotCountsDistinctProducers(t *testing.T) {
	hub, _ := newTestHub(t)
	hub.ShareFinding(finding.ProducerSecurity, mk("XSS", "a.js", 1))
	hub.ShareFinding(finding.ProducerSecurity, mk("SQL_INJECTION", "a.js", 2))
	hub.ShareFinding(finding.ProducerDesign, mk("MISSING_ALT", "a.js", 3))

	if in, ok := findInsight(hub.Insights(), InsightHotspot); ok {
		t.Fatalf("HOTSPOT synthesized from two producers: %+v", in)
	}

	hub.ShareFinding(finding.ProducerTesting, mk("MISSING_TEST", "a.js", 4))
	hot, ok := findInsight(hub.Insights(), InsightHotspot)
	if !ok {
		t.Fatal("HOTSPOT insight missing after a third producer")
	}
	if len(hot.Producers) != 3 {
		t.Errorf("Producers = %v, want 3 entries", hot.Producers)
	}
	if len(hot.FindingIDs) != 4 {
		t.Errorf("FindingIDs = %v, want 4 entries", hot.FindingIDs)
	}
}

func TestInsights_OrderedByPriority(t *testing.T) {
	hub, _ := newTestHub(t)
	hub.ShareFinding(finding.ProducerPerformance, mk("MEMORY_LEAK", "leak.js", 1))
	hub.ShareFinding(finding.ProducerTesting, mk("MISSING_TEST", "leak.js", 1))
	hub.ShareFinding(finding.ProducerPerformance, mk("SLOW_FUNCTION", "db.js", 1))
	hub.ShareFinding(finding.ProducerDatabase, mk("N_PLUS_ONE", "db.js", 2))

	insights := hub.Insights()
	if len(insights) != 2 {
		t.Fatalf("len(Insights) = %d, want 2", len(insights))
	}
	if insights[0].Type != "DATABASE_PERFORMANCE_IMPACT" {
		t.Errorf("Insights[0].Type = %s, want DATABASE_PERFORMANCE_IMPACT", insights[0].Type)
	}
	if insights[1].Type != "LEAK_TEST_GAP" {
		t.Errorf("Insights[1].Type = %s, want LEAK_TEST_GAP", insights[1].Type)
	}
}

func TestSubscribe(t *testing.T) {
	hub, _ := newTestHub(t)

	var forTesting, all []Notification
	hub.Subscribe(finding.ProducerTesting, ListenerFunc(func(n Notification) { forTesting = append(forTesting, n) }))
	hub.Subscribe(AllProducers, ListenerFunc(func(n Notification) { all = append(all, n) }))

	hub.ShareFinding(finding.ProducerTesting, mk("MISSING_TEST", "auth.js", 1))
	if len(forTesting) != 0 || len(all) != 0 {
		t.Fatal("notification sent without correlations")
	}

	id := hub.ShareFinding(finding.ProducerSecurity, mk("MISSING_AUTH", "auth.js", 4))
	if len(forTesting) != 1 {
		t.Fatalf("testing listener got %d notifications, want 1", len(forTesting))
	}
	n := forTesting[0]
	if n.Producer != finding.ProducerTesting {
		t.Errorf("Producer = %v, want testing", n.Producer)
	}
	if n.Finding.ID != id {
		t.Errorf("Finding.ID = %s, want %s", n.Finding.ID, id)
	}
	if countType(n.Correlations, "SECURITY_TEST_GAP") != 1 {
		t.Errorf("SECURITY_TEST_GAP missing from %+v", n.Correlations)
	}
	if len(all) != 1 {
		t.Errorf("wildcard listener got %d notifications, want 1", len(all))
	}
}

func TestOpportunities(t *testing.T) {
	hub, _ := newTestHub(t)
	hub.ShareFinding(finding.ProducerSecurity, mk("XSS", "b.js", 1))
	hub.ShareFinding(finding.ProducerDesign, mk("MISSING_ALT", "b.js", 2))
	hub.ShareFinding(finding.ProducerSecurity, mk("XSS", "c.js", 1))
	hub.ShareFinding(finding.ProducerSecurity, mk("WEAK_CRYPTO", "c.js", 9))
	hub.ShareFinding(finding.ProducerTesting, mk("MISSING_TEST", "a.js", 1))
	hub.ShareFinding(finding.ProducerDatabase, mk("SLOW_QUERY", "a.js", 1))

	ops := hub.Opportunities()
	if len(ops) != 2 {
		t.Fatalf("len(Opportunities) = %d, want 2: %+v", len(ops), ops)
	}
	if ops[0].File != "a.js" || ops[1].File != "b.js" {
		t.Errorf("files = %s, %s; want a.js, b.js", ops[0].File, ops[1].File)
	}
	want := []finding.Producer{finding.ProducerDatabase, finding.ProducerTesting}
	for i, p := range want {
		if ops[0].Producers[i] != p {
			t.Errorf("Producers[%d] = %v, want %v", i, ops[0].Producers[i], p)
		}
	}
}

func TestKnowledge(t *testing.T) {
	hub, _ := newTestHub(t)
	q := mk("MISSING_INDEX", "models/user.js", 7)
	q.Metadata = finding.Metadata{finding.MetaTable: finding.String("users")}
	id := hub.ShareFinding(finding.ProducerDatabase, q)
	hub.ShareFinding(finding.ProducerSecurity, mk("XSS", "view.js", 1))

	db := hub.Knowledge(finding.ProducerDatabase)
	if ids := db[IndexTables]["users"]; len(ids) != 1 || ids[0] != id {
		t.Errorf("tables[users] = %v, want [%s]", ids, id)
	}
	if ids := db[IndexQueries]["models/user.js"]; len(ids) != 1 {
		t.Errorf("queries[models/user.js] = %v, want one entry", ids)
	}
	sec := hub.Knowledge(finding.ProducerSecurity)
	if len(sec[IndexVulnerabilities]["view.js"]) != 1 {
		t.Errorf("vulnerabilities = %v", sec[IndexVulnerabilities])
	}
}

func TestPurge(t *testing.T) {
	hub, clock := newTestHub(t)
	old := hub.ShareFinding(finding.ProducerDatabase, mk("N_PLUS_ONE", "a.js", 1))

	clock.now = clock.now.Add(2 * time.Hour)
	recent := hub.ShareFinding(finding.ProducerPerformance, mk("SLOW_FUNCTION", "a.js", 2))
	if len(hub.Correlations(recent)) == 0 {
		t.Fatal("expected correlations before purge")
	}

	if n := hub.Purge(time.Hour); n != 1 {
		t.Fatalf("Purge() = %d, want 1", n)
	}
	if _, ok := hub.Finding(old); ok {
		t.Error("old finding still present")
	}
	if _, ok := hub.Finding(recent); !ok {
		t.Error("recent finding was purged")
	}
	if got := hub.Correlations(recent); len(got) != 0 {
		t.Errorf("correlations referencing purged finding kept: %+v", got)
	}
	if got := hub.FindingsForFile("a.js"); len(got) != 1 {
		t.Errorf("FindingsForFile = %d findings, want 1", len(got))
	}
	if got := len(hub.Insights()); got != 1 {
		t.Errorf("len(Insights) = %d, want 1", got)
	}
	if n := hub.Purge(time.Hour); n != 0 {
		t.Errorf("second Purge() = %d, want 0", n)
	}
}

func TestClearAndStats(t *testing.T) {
	hub, _ := newTestHub(t)
	hub.ShareFinding(finding.ProducerDatabase, mk("N_PLUS_ONE", "a.js", 1))
	hub.ShareFinding(finding.ProducerPerformance, mk("SLOW_FUNCTION", "a.js", 2))

	st := hub.Stats()
	if st.Findings != 2 || st.Files != 1 || st.Insights != 1 {
		t.Errorf("Stats = %+v", st)
	}
	// SAME_FILE plus DATABASE_PERFORMANCE_IMPACT.
	if st.Correlations != 2 {
		t.Errorf("Correlations = %d, want 2", st.Correlations)
	}
	if st.ByProducer[finding.ProducerDatabase] != 1 {
		t.Errorf("ByProducer = %v", st.ByProducer)
	}

	hub.Clear()
	if st := hub.Stats(); st.Findings != 0 || st.Correlations != 0 || st.Insights != 0 {
		t.Errorf("Stats after Clear = %+v", st)
	}
}

func TestWithRules(t *testing.T) {
	rule := SemanticRule{
		Insight:    "CONTRAST_TEST_GAP",
		Source:     finding.ProducerDesign,
		Contains:   "CONTRAST",
		Target:     finding.ProducerTesting,
		Confidence: 0.6,
		Priority:   PriorityLow,
	}
	hub := NewHub(nil, WithRules(rule))
	hub.ShareFinding(finding.ProducerDesign, mk("COLOR_CONTRAST", "button.css", 1))
	hub.ShareFinding(finding.ProducerTesting, mk("MISSING_TEST", "button.css", 1))

	in, ok := findInsight(hub.Insights(), "CONTRAST_TEST_GAP")
	if !ok {
		t.Fatal("custom rule insight missing")
	}
	if in.Priority != PriorityLow {
		t.Errorf("Priority = %v, want LOW", in.Priority)
	}
}

func TestDefault(t *testing.T) {
	if Default() != Default() {
		t.Error("Default() returned different hubs")
	}
}
