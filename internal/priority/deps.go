package priority

import (
	"strings"

	"fip/internal/finding"
	"fip/internal/typemap"
)

// blockRule reports whether a blocks b and why.
type blockRule func(a, b finding.Finding) (string, bool)

// blockRules are OR'd; the first matching rule supplies the reason.
var blockRules = []blockRule{
	func(a, b finding.Finding) (string, bool) {
		if strings.Contains(a.EffectiveType(), typemap.BuildError) {
			return "build error blocks all other fixes", true
		}
		return "", false
	},
	func(a, b finding.Finding) (string, bool) {
		ok := a.Location.File != "" &&
			a.Location.File == b.Location.File &&
			a.Location.Line < b.Location.Line &&
			a.Severity.AtLeast(finding.SeverityHigh)
		return "earlier severe issue in the same file", ok
	},
	func(a, b finding.Finding) (string, bool) {
		ok := strings.Contains(a.EffectiveType(), typemap.MissingIndex) &&
			strings.Contains(b.EffectiveType(), typemap.SlowQuery)
		return "missing index causes slow query", ok
	},
	func(a, b finding.Finding) (string, bool) {
		ok := a.Producer == finding.ProducerSecurity &&
			b.Producer == finding.ProducerSecurity &&
			strings.Contains(a.EffectiveType(), "AUTH")
		return "authentication must be fixed before other security issues", ok
	},
}

// dependsOnRules report whether a should be fixed after b.
var dependsOnRules = []blockRule{
	func(a, b finding.Finding) (string, bool) {
		ok := a.Producer == finding.ProducerTesting && b.Producer == finding.ProducerSecurity
		return "tests follow the security fix", ok
	},
	func(a, b finding.Finding) (string, bool) {
		ok := a.Producer == finding.ProducerPerformance && b.Severity == finding.SeverityCritical
		return "performance work waits for critical issues", ok
	},
	func(a, b finding.Finding) (string, bool) {
		ok := a.Producer == finding.ProducerPerformance &&
			b.Producer == finding.ProducerDatabase &&
			a.Location.File != "" && a.Location.File == b.Location.File
		return "query fixes change the performance profile", ok
	},
}

func firstMatch(rules []blockRule, a, b finding.Finding) (string, bool) {
	for _, rule := range rules {
		if reason, ok := rule(a, b); ok {
			return reason, true
		}
	}
	return "", false
}

// InferDependencies computes pairwise constraints over findings. The result
// is keyed by finding ID; each constraint appears under both of its ends.
func InferDependencies(findings []finding.Finding) map[string][]Dependency {
	out := make(map[string][]Dependency)
	add := func(d Dependency) {
		out[d.From] = append(out[d.From], d)
		out[d.To] = append(out[d.To], d)
	}

	for i, a := range findings {
		for j, b := range findings {
			if i == j || a.ID == b.ID {
				continue
			}
			if reason, ok := firstMatch(blockRules, a, b); ok {
				add(Dependency{Type: Blocks, From: a.ID, To: b.ID, Reason: reason})
			}
			if reason, ok := firstMatch(dependsOnRules, a, b); ok {
				add(Dependency{Type: DependsOn, From: a.ID, To: b.ID, Reason: reason})
			}
		}
	}
	return out
}
