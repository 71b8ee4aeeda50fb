package autofix

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"fip/internal/finding"
	"fip/internal/slogutil"
	"fip/internal/typemap"
)

// Generator produces fixes from findings.
type Generator struct {
	norm   *typemap.Normalizer
	logger *slog.Logger
}

// NewGenerator creates a generator. A nil normalizer uses typemap.Default.
func NewGenerator(norm *typemap.Normalizer, logger *slog.Logger) *Generator {
	if norm == nil {
		norm = typemap.Default()
	}
	return &Generator{norm: norm, logger: slogutil.OrDiscard(logger)}
}

// Generate returns the fix for f. A finding without a template, or whose
// template cannot be filled from its fields, yields a Fix with Available
// false and a reason.
func (g *Generator) Generate(f finding.Finding) Fix {
	prepared := g.norm.Prepare(f)
	fix := Fix{
		FindingID:     prepared.ID,
		Producer:      prepared.Producer,
		CanonicalType: prepared.CanonicalType,
	}

	if reason, ok := unavailable[prepared.CanonicalType]; ok {
		fix.Reason = reason
		return fix
	}
	tmpl, ok := templates[prepared.Producer][prepared.CanonicalType]
	if !ok {
		fix.Reason = fmt.Sprintf("no fix template for %s/%s", prepared.Producer, prepared.CanonicalType)
		return fix
	}

	built, err := tmpl(prepared)
	if err != nil {
		g.logger.Debug("Fix template failed",
			"finding", prepared.ID,
			"type", prepared.CanonicalType,
			"error", err.Error(),
		)
		fix.Reason = "fix generation failed: " + err.Error()
		return fix
	}

	built.Available = true
	built.Reason = ""
	built.FindingID = fix.FindingID
	built.Producer = fix.Producer
	built.CanonicalType = fix.CanonicalType
	if built.File == "" {
		built.File = prepared.Location.File
	}
	if built.Confidence <= 0 {
		built.Confidence = DefaultConfidence
	}
	if built.Changes <= 0 {
		built.Changes = 1
	}
	built.Complexity = ClassifyComplexity(built.Changes)
	built.Risk = ClassifyRisk(prepared.Location.File)
	return built
}

// GenerateAll returns the available fixes for findings, in input order.
func (g *Generator) GenerateAll(findings []finding.Finding) []Fix {
	var fixes []Fix
	for _, f := range findings {
		if fix := g.Generate(f); fix.Available {
			fixes = append(fixes, fix)
		}
	}
	return fixes
}

// ClassifyComplexity maps a change count to a complexity class.
func ClassifyComplexity(changes int) Complexity {
	switch {
	case changes <= 1:
		return ComplexityTrivial
	case changes <= 5:
		return ComplexitySimple
	case changes <= 20:
		return ComplexityModerate
	default:
		return ComplexityComplex
	}
}

// ClassifyRisk estimates the blast radius of editing file.
func ClassifyRisk(file string) Risk {
	p := strings.ToLower(file)
	switch {
	case strings.Contains(p, "auth") || strings.Contains(p, "payment"):
		return RiskHigh
	case strings.Contains(p, "db") || strings.Contains(p, "database") || strings.Contains(p, "api"):
		return RiskMedium
	case strings.Contains(p, "component") || strings.Contains(p, "view"):
		return RiskLow
	default:
		return RiskMedium
	}
}

// GroupByFile groups fixes by target file. Groups keep the order in which
// files first appear; fixes within a group are sorted by ascending line.
func GroupByFile(fixes []Fix) []FileGroup {
	index := make(map[string]int)
	var groups []FileGroup
	for _, fix := range fixes {
		i, ok := index[fix.File]
		if !ok {
			i = len(groups)
			index[fix.File] = i
			groups = append(groups, FileGroup{File: fix.File})
		}
		groups[i].Fixes = append(groups[i].Fixes, fix)
		groups[i].TotalChanges += fix.Changes
	}
	for i := range groups {
		sort.SliceStable(groups[i].Fixes, func(a, b int) bool {
			return groups[i].Fixes[a].firstLine() < groups[i].Fixes[b].firstLine()
		})
	}
	return groups
}

func (f Fix) firstLine() int {
	if f.StartLine > 0 {
		return f.StartLine
	}
	return f.Line
}
