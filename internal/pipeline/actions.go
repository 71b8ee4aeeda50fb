package pipeline

import (
	"errors"
	"fmt"

	"fip/internal/autofix"
	"fip/internal/config"
	fiperrors "fip/internal/errors"
	"fip/internal/feedback"
	"fip/internal/finding"
	"fip/internal/metrics"
	"fip/internal/storage"
)

// ErrUnknownFinding is returned when a finding ID is not known to the
// tracker cache, the hub or the latest recorded run.
var ErrUnknownFinding = errors.New("unknown finding")

// ApplyOptions selects which fixes of a report are applied.
type ApplyOptions struct {
	// AutoOnly limits application to fixes at or above the auto-apply
	// threshold.
	AutoOnly bool
	// FindingIDs limits application to these findings. Empty means all.
	FindingIDs []string
}

// ApplyFixes applies the report's available fixes grouped per file. Every
// attempt is recorded in the run history, counted in metrics and, when it
// succeeds, fed back to the feedback store as an automatic fix.
func (p *Pipeline) ApplyFixes(report *Report, opts ApplyOptions) []autofix.Result {
	wanted := make(map[string]bool, len(opts.FindingIDs))
	for _, id := range opts.FindingIDs {
		wanted[id] = true
	}

	var selected []autofix.Fix
	for _, fix := range report.AvailableFixes() {
		if len(wanted) > 0 && !wanted[fix.FindingID] {
			continue
		}
		if opts.AutoOnly && fix.Confidence < p.cfg.Autofix.AutoApplyThreshold {
			continue
		}
		selected = append(selected, fix)
	}
	if len(selected) == 0 {
		return nil
	}

	applier := autofix.NewApplier(p.root, p.logger, autofix.WithThreshold(p.cfg.Autofix.SuggestThreshold))
	groups := autofix.GroupByFile(selected)
	results := applier.ApplyBulk(groups)

	kinds := make(map[string]autofix.EditKind, len(selected))
	for _, fix := range selected {
		kinds[fix.FindingID] = fix.Kind
	}

	var fixed []finding.Finding
	for _, res := range results {
		p.recordFix(report.RunID, kinds[res.FindingID], res)
		if !res.Success {
			continue
		}
		f, ok := report.Finding(res.FindingID)
		if !ok {
			continue
		}
		fixed = append(fixed, f)
		if err := p.store.RecordFeedback(f, feedback.KindAutoFixed); err != nil {
			p.logger.Warn("Failed to record fix feedback", "finding", f.ID, "error", err.Error())
		}
	}
	if len(fixed) > 0 {
		p.store.LearnFromFixOrder(fixed)
		if err := p.store.Save(); err != nil {
			p.logger.Warn("Failed to save feedback document", "error", err.Error())
		}
	}
	if p.metrics != nil {
		p.exportMetrics()
	}

	p.logger.Info("Applied fixes",
		"attempted", len(results),
		"succeeded", len(fixed),
	)
	return results
}

func (p *Pipeline) recordFix(runID string, kind autofix.EditKind, res autofix.Result) {
	if p.metrics != nil {
		switch {
		case res.Success:
			p.metrics.RecordFix(metrics.FixApplied)
		case res.Code == fiperrors.FixApplyFailed:
			p.metrics.RecordFix(metrics.FixFailed)
		default:
			p.metrics.RecordFix(metrics.FixRefused)
		}
	}
	if p.db == nil {
		return
	}

	_, err := p.db.RecordFix(storage.AppliedFix{
		RunID:     runID,
		FindingID: res.FindingID,
		File:      res.File,
		Kind:      string(kind),
		Success:   res.Success,
		Code:      string(res.Code),
		Reason:    res.Reason,
		Backup:    res.Backup,
		AppliedAt: p.now(),
	})
	if err != nil {
		p.logger.Warn("Failed to record applied fix", "finding", res.FindingID, "error", err.Error())
	}
}

// WriteRemediation writes the report's SQL fixes to the remediation
// directory and the configured migrations directory.
func (p *Pipeline) WriteRemediation(report *Report) ([]string, error) {
	migrations := config.ResolvePath(p.root, p.cfg.Autofix.MigrationsDir)
	return autofix.WriteRemediationArtifacts(report.AvailableFixes(), p.layout.Remediation(), migrations, p.now())
}

// RecordFeedback records user feedback for the finding with id and persists
// the store.
func (p *Pipeline) RecordFeedback(id string, kind feedback.Kind) (finding.Finding, error) {
	f, err := p.LookupFinding(id)
	if err != nil {
		return finding.Finding{}, err
	}
	if err := p.store.RecordFeedback(f, kind); err != nil {
		return finding.Finding{}, err
	}
	if err := p.store.Save(); err != nil {
		return f, err
	}
	return f, nil
}

// LookupFinding finds a finding by ID in the hub, the tracker's cached
// results or, failing those, the most recent recorded run.
func (p *Pipeline) LookupFinding(id string) (finding.Finding, error) {
	if f, ok := p.hub.Finding(id); ok {
		return f, nil
	}
	for _, f := range p.tracker.CachedFindings(nil) {
		if f.ID == id {
			return f, nil
		}
	}

	if p.db != nil {
		runs, err := p.db.RecentRuns(1)
		if err != nil {
			return finding.Finding{}, fmt.Errorf("read run history: %w", err)
		}
		if len(runs) > 0 {
			run, err := p.db.GetRun(runs[0].ID)
			if err != nil {
				return finding.Finding{}, fmt.Errorf("read run %s: %w", runs[0].ID, err)
			}
			for _, rf := range run.Findings {
				if rf.FindingID == id {
					return fromRunFinding(rf), nil
				}
			}
		}
	}
	return finding.Finding{}, fmt.Errorf("%w: %s", ErrUnknownFinding, id)
}

// fromRunFinding rebuilds the parts of a finding that pattern keys use.
func fromRunFinding(rf storage.RunFinding) finding.Finding {
	severity, err := finding.ParseSeverity(rf.Severity)
	if err != nil {
		severity = finding.SeverityMedium
	}
	return finding.Finding{
		ID:            rf.FindingID,
		Producer:      finding.Producer(rf.Producer),
		Type:          rf.Type,
		CanonicalType: rf.CanonicalType,
		Severity:      severity,
		Confidence:    rf.Confidence,
		Location:      finding.Location{File: rf.File, Line: rf.Line},
	}
}
