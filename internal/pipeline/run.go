package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"fip/internal/config"
	fiperrors "fip/internal/errors"
	"fip/internal/finding"
	"fip/internal/metrics"
	"fip/internal/priority"
	"fip/internal/producers"
	"fip/internal/storage"
)

// Run executes one closed-loop pass: detect changes, run producers on the
// files that need analysis, normalize, adjust with learned feedback,
// correlate, learn, prioritize and generate fixes. Producer failures are
// captured in the report; only change detection or cancellation fail the
// run.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	started := p.now()
	report := &Report{
		RunID:     uuid.NewString(),
		Root:      p.root,
		StartedAt: started,
	}

	changes, err := p.tracker.DetectChanges(ctx)
	if err != nil {
		p.recordFailedRun(started)
		return nil, fmt.Errorf("detect changes: %w", err)
	}
	report.Changes = changes
	report.Plan = p.tracker.Plan(changes)

	fresh := p.analyze(ctx, report)
	if err := ctx.Err(); err != nil {
		p.recordFailedRun(started)
		return nil, err
	}

	all := append(p.tracker.CachedFindings(report.Plan.Files), fresh...)
	report.Findings = make([]finding.Finding, len(all))
	for i, f := range all {
		report.Findings[i] = p.store.Adjust(f)
	}

	p.correlate(report.Findings)
	report.Insights = p.hub.Insights()
	report.Opportunities = p.hub.Opportunities()

	p.store.LearnFromAnalysis(report.Findings)
	report.Recommendations = p.store.Recommendations(report.Findings)

	report.Records = p.engine.Prioritize(report.Findings)
	report.ActionPlan = priority.ActionPlan(report.Records)
	report.QuickWins = priority.QuickWins(report.Records, QuickWinLimit)

	ranked := make([]finding.Finding, len(report.Records))
	for i, r := range report.Records {
		ranked[i] = r.Finding
	}
	report.Fixes = p.generator.GenerateAll(ranked)

	report.HealthScore = HealthScore(report.Findings)
	report.FinishedAt = p.now()

	p.recordHistory(report)
	p.recordMetrics(report)
	p.maintain()
	p.persist()

	p.logger.Info("Run complete",
		"run", report.RunID,
		"strategy", string(report.Plan.Strategy),
		"analyzed", len(report.Plan.Files),
		"findings", len(report.Findings),
		"insights", len(report.Insights),
		"health", report.HealthScore,
		"producerErrors", len(report.ProducerErrors),
		"durationMs", report.Duration().Milliseconds(),
	)
	return report, nil
}

// analyze runs every producer on the planned files and returns their
// normalized findings. Results are cached per file only when every producer
// succeeded, so a failed producer's files are analysed again next run.
func (p *Pipeline) analyze(ctx context.Context, report *Report) []finding.Finding {
	files := report.Plan.Files
	if len(files) == 0 || len(p.producers) == 0 {
		p.logger.Debug("Nothing to analyse", "strategy", string(report.Plan.Strategy))
		return nil
	}

	results := p.runProducers(ctx, producers.Request{Root: p.root, Files: files})
	report.Producers = results

	now := p.now()
	var fresh []finding.Finding
	for _, res := range results {
		if res.Err != nil {
			err := fiperrors.New(fiperrors.ProducerFailed, fmt.Sprintf("producer %s failed", res.Producer), res.Err)
			p.logger.Warn("Producer failed", "producer", string(res.Producer), "error", err.Error())
			report.ProducerErrors = append(report.ProducerErrors, ProducerError{
				Producer: res.Producer,
				Error:    res.Err.Error(),
			})
			continue
		}
		for _, f := range res.Findings {
			if f.Producer == "" {
				f.Producer = res.Producer
			}
			fresh = append(fresh, p.normalizer.Prepare(finding.Normalize(f, now)))
		}
	}

	if len(report.ProducerErrors) > 0 {
		p.logger.Warn("Not caching results of a partial run", "files", len(files))
		return fresh
	}

	byFile := make(map[string][]finding.Finding)
	for _, f := range fresh {
		byFile[f.Location.File] = append(byFile[f.Location.File], f)
	}
	for _, file := range files {
		p.tracker.StoreResult(file, byFile[file])
	}
	return fresh
}

// runProducers invokes the producers in parallel. Each result keeps its
// producer's position.
func (p *Pipeline) runProducers(ctx context.Context, req producers.Request) []ProducerResult {
	results := make([]ProducerResult, len(p.producers))
	var wg sync.WaitGroup

	for i, producer := range p.producers {
		wg.Add(1)
		go func(idx int, pr producers.Producer) {
			defer wg.Done()
			start := time.Now()
			findings, err := produce(ctx, pr, req)
			results[idx] = ProducerResult{
				Producer:   pr.Name(),
				Findings:   findings,
				Count:      len(findings),
				DurationMs: time.Since(start).Milliseconds(),
				Err:        err,
			}
		}(i, producer)
	}

	wg.Wait()
	return results
}

// produce calls pr and converts a panic into an error.
func produce(ctx context.Context, pr producers.Producer, req producers.Request) (findings []finding.Finding, err error) {
	defer func() {
		if r := recover(); r != nil {
			findings, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	findings, err = pr.Produce(ctx, req)
	if err != nil {
		return nil, err
	}
	return findings, nil
}

// correlate purges aged findings from the hub and shares the ones it does
// not hold yet.
func (p *Pipeline) correlate(findings []finding.Finding) {
	if purged := p.hub.Purge(p.cfg.MaxFindingAge()); purged > 0 {
		p.logger.Debug("Purged aged findings", "count", purged)
	}
	for _, f := range findings {
		if _, active := p.hub.Finding(f.ID); active {
			continue
		}
		p.hub.ShareFinding(f.Producer, f)
	}
}

func (p *Pipeline) recordHistory(report *Report) {
	if p.db == nil {
		return
	}

	run := storage.Run{
		ID:             report.RunID,
		Root:           report.Root,
		StartedAt:      report.StartedAt,
		FinishedAt:     report.FinishedAt,
		Strategy:       string(report.Plan.Strategy),
		FilesAnalyzed:  len(report.Plan.Files),
		TotalFindings:  len(report.Findings),
		HealthScore:    report.HealthScore,
		ProducerErrors: len(report.ProducerErrors),
		Insights:       len(report.Insights),
	}
	for _, r := range report.Records {
		f := r.Finding
		run.Findings = append(run.Findings, storage.RunFinding{
			FindingID:     f.ID,
			Producer:      string(f.Producer),
			Type:          f.Type,
			CanonicalType: f.EffectiveType(),
			Severity:      string(f.Severity),
			Confidence:    f.Confidence,
			File:          f.Location.File,
			Line:          f.Location.Line,
			Score:         r.Score,
		})
	}

	if err := p.db.RecordRun(run); err != nil {
		p.logger.Warn("Failed to record run", "run", run.ID, "error", err.Error())
	}
}

func (p *Pipeline) recordMetrics(report *Report) {
	if p.metrics == nil {
		return
	}

	for _, f := range report.Findings {
		p.metrics.RecordFinding(string(f.Producer), string(f.Severity))
	}
	for _, pe := range report.ProducerErrors {
		p.metrics.RecordProducerError(string(pe.Producer))
	}

	status := metrics.RunSuccess
	if len(report.ProducerErrors) > 0 {
		status = metrics.RunFailed
	}
	p.metrics.RecordRun(metrics.RunSummary{
		Status:        status,
		Duration:      report.Duration(),
		FinishedAt:    report.FinishedAt,
		Strategy:      string(report.Plan.Strategy),
		FilesAnalyzed: len(report.Plan.Files),
		HealthScore:   report.HealthScore,
		Insights:      len(report.Insights),
	})
	p.exportMetrics()
}

func (p *Pipeline) recordFailedRun(started time.Time) {
	if p.metrics == nil {
		return
	}
	finished := p.now()
	p.metrics.RecordRun(metrics.RunSummary{
		Status:     metrics.RunFailed,
		Duration:   finished.Sub(started),
		FinishedAt: finished,
	})
	p.exportMetrics()
}

// exportMetrics writes the textfile. Failures are logged.
func (p *Pipeline) exportMetrics() {
	path := config.ResolvePath(p.root, p.cfg.Metrics.Textfile)
	if path == "" {
		path = p.layout.Metrics()
	}
	if err := p.metrics.WriteTextfile(path); err != nil {
		p.logger.Warn("Failed to write metrics", "path", path, "error", err.Error())
	}
}

// maintain runs the feedback store's optimize and cleanup passes.
func (p *Pipeline) maintain() {
	pruned := p.store.Optimize()
	evicted := p.store.Cleanup()
	if pruned+evicted > 0 {
		p.logger.Debug("Feedback maintenance", "pruned", pruned, "evicted", evicted)
	}
}

// persist saves tracker and feedback state. Failures are logged; the next
// run then treats more files as changed.
func (p *Pipeline) persist() {
	if err := p.tracker.Save(); err != nil {
		p.logger.Warn("Failed to save tracker snapshot", "error", err.Error())
	}
	if err := p.store.Save(); err != nil {
		p.logger.Warn("Failed to save feedback document", "error", err.Error())
	}
}
