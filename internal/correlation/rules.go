package correlation

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"fip/internal/finding"
)

// SemanticRule correlates a source-producer finding whose canonical type
// contains Contains with any finding of the target producer.
type SemanticRule struct {
	Insight        string           `toml:"insight"`
	Source         finding.Producer `toml:"source"`
	Contains       string           `toml:"contains"`
	Target         finding.Producer `toml:"target"`
	Confidence     float64          `toml:"confidence"`
	Priority       Priority         `toml:"priority"`
	Description    string           `toml:"description"`
	Recommendation string           `toml:"recommendation"`
}

// BuiltinRules returns the default semantic rules.
func BuiltinRules() []SemanticRule {
	return []SemanticRule{
		{
			Insight:        "DATABASE_PERFORMANCE_IMPACT",
			Source:         finding.ProducerDatabase,
			Contains:       "N_PLUS_ONE",
			Target:         finding.ProducerPerformance,
			Confidence:     0.95,
			Priority:       PriorityCritical,
			Description:    "N+1 query pattern is degrading runtime performance",
			Recommendation: "Batch the queries or eager-load the relation, then re-measure the slow path",
		},
		{
			Insight:        "SECURITY_TEST_GAP",
			Source:         finding.ProducerSecurity,
			Contains:       "AUTH",
			Target:         finding.ProducerTesting,
			Confidence:     0.8,
			Priority:       PriorityHigh,
			Description:    "Authentication weakness sits in code lacking tests",
			Recommendation: "Add tests covering the authentication paths before changing them",
		},
		{
			Insight:        "RENDER_PERFORMANCE",
			Source:         finding.ProducerDesign,
			Contains:       "COMPONENT",
			Target:         finding.ProducerPerformance,
			Confidence:     0.75,
			Priority:       PriorityMedium,
			Description:    "Component structure issues coincide with render performance problems",
			Recommendation: "Split or memoize the component and profile re-renders",
		},
		{
			Insight:        "QUERY_BOTTLENECK",
			Source:         finding.ProducerDatabase,
			Contains:       "MISSING_INDEX",
			Target:         finding.ProducerPerformance,
			Confidence:     0.9,
			Priority:       PriorityHigh,
			Description:    "Missing index is a likely cause of slow operations",
			Recommendation: "Create the index and verify the query plan",
		},
		{
			Insight:        "INJECTION_DATA_RISK",
			Source:         finding.ProducerSecurity,
			Contains:       "SQL_INJECTION",
			Target:         finding.ProducerDatabase,
			Confidence:     0.9,
			Priority:       PriorityCritical,
			Description:    "SQL injection exposes data flagged by the database scanner",
			Recommendation: "Switch to parameterized queries and review affected tables",
		},
		{
			Insight:        "LEAK_TEST_GAP",
			Source:         finding.ProducerPerformance,
			Contains:       "MEMORY_LEAK",
			Target:         finding.ProducerTesting,
			Confidence:     0.7,
			Priority:       PriorityMedium,
			Description:    "Memory leak in code without adequate tests",
			Recommendation: "Add a regression test that exercises mount and unmount cycles",
		},
	}
}

// Matches reports whether the rule applies with source as the source-side
// finding and target as the target-side finding.
func (r SemanticRule) Matches(source, target finding.Finding) bool {
	return source.Producer == r.Source &&
		target.Producer == r.Target &&
		strings.Contains(strings.ToUpper(source.EffectiveType()), strings.ToUpper(r.Contains))
}

// Validate checks a rule loaded from a file.
func (r SemanticRule) Validate() error {
	if r.Insight == "" {
		return fmt.Errorf("rule without insight name")
	}
	if _, err := finding.ParseProducer(string(r.Source)); err != nil {
		return fmt.Errorf("rule %s: source: %w", r.Insight, err)
	}
	if _, err := finding.ParseProducer(string(r.Target)); err != nil {
		return fmt.Errorf("rule %s: target: %w", r.Insight, err)
	}
	if r.Source == r.Target {
		return fmt.Errorf("rule %s: source and target must differ", r.Insight)
	}
	if r.Contains == "" {
		return fmt.Errorf("rule %s: empty contains", r.Insight)
	}
	if r.Confidence <= 0 || r.Confidence > 1 {
		return fmt.Errorf("rule %s: confidence %v out of range", r.Insight, r.Confidence)
	}
	if r.Priority.Rank() == 0 {
		return fmt.Errorf("rule %s: unknown priority %q", r.Insight, r.Priority)
	}
	return nil
}

type ruleFile struct {
	Rule []SemanticRule `toml:"rule"`
}

// LoadRules reads additional semantic rules from a TOML file of
// [[rule]] tables.
func LoadRules(path string) ([]SemanticRule, error) {
	var doc ruleFile
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return nil, fmt.Errorf("parse rules %s: %w", path, err)
	}
	for i := range doc.Rule {
		r := &doc.Rule[i]
		r.Source = finding.Producer(strings.ToLower(string(r.Source)))
		r.Target = finding.Producer(strings.ToLower(string(r.Target)))
		r.Priority = Priority(strings.ToUpper(string(r.Priority)))
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("rules %s: %w", path, err)
		}
	}
	return doc.Rule, nil
}

// patternClusters groups keywords of related canonical types.
var patternClusters = [][]string{
	{"ENCRYPTION", "HASHING", "CRYPTO", "AUTH"},
	{"QUERY", "INDEX", "N_PLUS_ONE", "DATABASE"},
	{"RENDER", "COMPONENT", "MEMO", "DOM"},
	{"TEST", "COVERAGE", "ASSERTION"},
	{"VALIDATION", "INJECTION", "XSS", "SANITIZ"},
}

// RelatedPattern reports whether both types contain a keyword of the same
// cluster.
func RelatedPattern(a, b string) bool {
	a, b = strings.ToUpper(a), strings.ToUpper(b)
	for _, cluster := range patternClusters {
		if containsAny(a, cluster) && containsAny(b, cluster) {
			return true
		}
	}
	return false
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
