package priority

import (
	"math"
	"strings"

	"fip/internal/finding"
	"fip/internal/typemap"
)

var severityScores = map[finding.Severity]float64{
	finding.SeverityCritical: 100,
	finding.SeverityHigh:     75,
	finding.SeverityMedium:   50,
	finding.SeverityLow:      25,
	finding.SeverityInfo:     5,
}

// Post-score multipliers.
const (
	securityMultiplier   = 1.2
	userFacingMultiplier = 1.15
)

// effortByType takes precedence over the severity-based estimate.
var effortByType = map[string]int{
	typemap.HardcodedSecret:     5,
	typemap.InsecureRandom:      5,
	typemap.XSSVulnerability:    15,
	typemap.MissingValidation:   15,
	typemap.SQLInjection:        30,
	typemap.WeakCrypto:          20,
	typemap.PathTraversal:       20,
	typemap.MissingAuth:         45,
	typemap.AuthBypass:          60,
	typemap.NPlusOneQuery:       30,
	typemap.DOMQueryInLoop:      10,
	typemap.MissingMemo:         10,
	typemap.UnnecessaryRerender: 15,
	typemap.MemoryLeak:          45,
	typemap.BlockingOperation:   30,
	typemap.MissingAltText:      2,
	typemap.ColorContrast:       5,
	typemap.MissingAria:         5,
	typemap.KeyboardNav:         20,
	typemap.ResponsiveIssue:     30,
	typemap.MissingIndex:        5,
	typemap.SlowQuery:           30,
	typemap.MissingConstraint:   10,
	typemap.Denormalization:     120,
	typemap.MissingTest:         20,
	typemap.LowCoverage:         60,
	typemap.FlakyTest:           30,
	typemap.NoAssertions:        10,
	typemap.BuildError:          15,
}

var effortBySeverity = map[finding.Severity]float64{
	finding.SeverityCritical: 45,
	finding.SeverityHigh:     30,
	finding.SeverityMedium:   15,
	finding.SeverityLow:      10,
	finding.SeverityInfo:     5,
}

// dataExposureTypes raise the impact score.
var dataExposureTypes = map[string]bool{
	typemap.HardcodedSecret: true,
	typemap.SQLInjection:    true,
	typemap.PathTraversal:   true,
	typemap.MissingAuth:     true,
	typemap.AuthBypass:      true,
}

var impactBySeverity = map[finding.Severity]int{
	finding.SeverityCritical: 90,
	finding.SeverityHigh:     70,
	finding.SeverityMedium:   50,
	finding.SeverityLow:      30,
	finding.SeverityInfo:     10,
}

// EstimateEffort returns the minutes needed to fix f.
func EstimateEffort(f finding.Finding, autoFixable bool) int {
	if minutes, ok := effortByType[f.EffectiveType()]; ok {
		return minutes
	}

	base, ok := effortBySeverity[f.Severity]
	if !ok {
		base = effortBySeverity[finding.DefaultSeverity]
	}
	switch strings.ToLower(f.Metadata.GetString(finding.MetaComplexity)) {
	case "high":
		base *= 2
	case "low":
		base *= 0.5
	}
	if autoFixable {
		base = math.Max(2, base*0.2)
	}
	return int(math.Round(base))
}

// EffortScore maps minutes to a 10..100 score; quicker fixes score higher.
func EffortScore(minutes int) float64 {
	switch {
	case minutes <= 5:
		return 100
	case minutes <= 10:
		return 90
	case minutes <= 15:
		return 80
	case minutes <= 30:
		return 60
	case minutes <= 60:
		return 30
	default:
		return 10
	}
}

// ImpactScore rates the consequence of leaving f unfixed, 0..100.
func ImpactScore(f finding.Finding) int {
	score, ok := impactBySeverity[f.Severity]
	if !ok {
		score = impactBySeverity[finding.DefaultSeverity]
	}
	switch f.Producer {
	case finding.ProducerSecurity:
		score += 10
	case finding.ProducerDatabase:
		score += 5
	}
	if f.Metadata.GetBool(finding.MetaUserFacing) {
		score += 15
	}
	if dataExposureTypes[f.EffectiveType()] {
		score += 10
	}
	if score > 100 {
		score = 100
	}
	return score
}

// SeverityScore maps a severity to 5..100.
func SeverityScore(s finding.Severity) float64 {
	if v, ok := severityScores[s]; ok {
		return v
	}
	return severityScores[finding.DefaultSeverity]
}

// score computes the weighted priority score with post multipliers.
func score(w Weights, f finding.Finding, impact, effortMinutes int, blocksOthers bool) int {
	dependency := 50.0
	if blocksOthers {
		dependency = 100
	}
	weighted := w.Severity*SeverityScore(f.Severity)/100 +
		w.Impact*float64(impact)/100 +
		w.Effort*EffortScore(effortMinutes)/100 +
		w.Confidence*f.Confidence +
		w.Dependencies*dependency/100

	value := 100 * weighted
	if f.Producer == finding.ProducerSecurity {
		value *= securityMultiplier
	}
	if f.Metadata.GetBool(finding.MetaUserFacing) {
		value *= userFacingMultiplier
	}
	return int(math.Round(value))
}
