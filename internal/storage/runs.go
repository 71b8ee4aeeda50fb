package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Run is one recorded pipeline run.
type Run struct {
	ID             string       `json:"id"`
	Root           string       `json:"root"`
	StartedAt      time.Time    `json:"startedAt"`
	FinishedAt     time.Time    `json:"finishedAt"`
	Strategy       string       `json:"strategy"`
	FilesAnalyzed  int          `json:"filesAnalyzed"`
	TotalFindings  int          `json:"totalFindings"`
	HealthScore    int          `json:"healthScore"`
	ProducerErrors int          `json:"producerErrors"`
	Insights       int          `json:"insights"`
	Findings       []RunFinding `json:"findings,omitempty"`
}

// RunFinding is a finding as recorded for a run.
type RunFinding struct {
	FindingID     string  `json:"findingId"`
	Producer      string  `json:"producer"`
	Type          string  `json:"type"`
	CanonicalType string  `json:"canonicalType"`
	Severity      string  `json:"severity"`
	Confidence    float64 `json:"confidence"`
	File          string  `json:"file"`
	Line          int     `json:"line"`
	Score         int     `json:"score"`
}

// AppliedFix records one fix application attempt.
type AppliedFix struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"runId,omitempty"`
	FindingID string    `json:"findingId"`
	File      string    `json:"file"`
	Kind      string    `json:"kind"`
	Success   bool      `json:"success"`
	Code      string    `json:"code,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Backup    string    `json:"backup,omitempty"`
	AppliedAt time.Time `json:"appliedAt"`
}

// TypeCount is the number of recorded findings of one canonical type.
type TypeCount struct {
	CanonicalType string `json:"canonicalType"`
	Count         int    `json:"count"`
}

// RecordRun stores run and its findings in one transaction.
func (db *DB) RecordRun(run Run) error {
	return db.WithTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO runs (
				id, root, started_at, finished_at, strategy, files_analyzed,
				total_findings, health_score, producer_errors, insights
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, run.ID, run.Root, formatTime(run.StartedAt), formatTime(run.FinishedAt), run.Strategy,
			run.FilesAnalyzed, run.TotalFindings, run.HealthScore, run.ProducerErrors, run.Insights)
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		stmt, err := tx.Prepare(`
			INSERT INTO run_findings (
				run_id, finding_id, producer, type, canonical_type, severity,
				confidence, file, line, score
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close() //nolint:errcheck

		for _, f := range run.Findings {
			if _, err := stmt.Exec(run.ID, f.FindingID, f.Producer, f.Type, f.CanonicalType, f.Severity,
				f.Confidence, f.File, f.Line, f.Score); err != nil {
				return fmt.Errorf("insert finding %s: %w", f.FindingID, err)
			}
		}
		return nil
	})
}

// RecentRuns returns up to limit runs, newest first, without findings.
func (db *DB) RecentRuns(limit int) ([]Run, error) {
	rows, err := db.conn.Query(`
		SELECT id, root, started_at, finished_at, strategy, files_analyzed,
			total_findings, health_score, producer_errors, insights
		FROM runs
		ORDER BY started_at DESC, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns the run with id and its findings.
func (db *DB) GetRun(id string) (Run, error) {
	row := db.conn.QueryRow(`
		SELECT id, root, started_at, finished_at, strategy, files_analyzed,
			total_findings, health_score, producer_errors, insights
		FROM runs WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Run{}, err
	}
	run.Findings, err = db.runFindings(id)
	return run, err
}

func (db *DB) runFindings(runID string) ([]RunFinding, error) {
	rows, err := db.conn.Query(`
		SELECT finding_id, producer, type, canonical_type, severity, confidence, file, line, score
		FROM run_findings
		WHERE run_id = ?
		ORDER BY score DESC, finding_id
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var out []RunFinding
	for rows.Next() {
		var f RunFinding
		if err := rows.Scan(&f.FindingID, &f.Producer, &f.Type, &f.CanonicalType, &f.Severity,
			&f.Confidence, &f.File, &f.Line, &f.Score); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// TopTypes returns the canonical types recorded most often across all runs.
func (db *DB) TopTypes(limit int) ([]TypeCount, error) {
	rows, err := db.conn.Query(`
		SELECT canonical_type, COUNT(*) AS n
		FROM run_findings
		GROUP BY canonical_type
		ORDER BY n DESC, canonical_type
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var out []TypeCount
	for rows.Next() {
		var tc TypeCount
		if err := rows.Scan(&tc.CanonicalType, &tc.Count); err != nil {
			return nil, err
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

// PruneRuns deletes runs started before cutoff and returns how many were
// removed. Their findings are removed with them.
func (db *DB) PruneRuns(cutoff time.Time) (int, error) {
	res, err := db.conn.Exec("DELETE FROM runs WHERE started_at < ?", formatTime(cutoff))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// RecordFix stores a fix application attempt and returns its ID.
func (db *DB) RecordFix(fix AppliedFix) (int64, error) {
	var runID interface{}
	if fix.RunID != "" {
		runID = fix.RunID
	}
	res, err := db.conn.Exec(`
		INSERT INTO applied_fixes (
			run_id, finding_id, file, kind, success, code, reason, backup, applied_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, fix.FindingID, fix.File, fix.Kind, boolToInt(fix.Success), fix.Code, fix.Reason, fix.Backup,
		formatTime(fix.AppliedAt))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// AppliedFixes returns up to limit fix attempts, newest first.
func (db *DB) AppliedFixes(limit int) ([]AppliedFix, error) {
	rows, err := db.conn.Query(`
		SELECT id, COALESCE(run_id, ''), finding_id, file, kind, success, code, reason, backup, applied_at
		FROM applied_fixes
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var out []AppliedFix
	for rows.Next() {
		var (
			f         AppliedFix
			success   int
			appliedAt string
		)
		if err := rows.Scan(&f.ID, &f.RunID, &f.FindingID, &f.File, &f.Kind, &success, &f.Code, &f.Reason,
			&f.Backup, &appliedAt); err != nil {
			return nil, err
		}
		f.Success = success != 0
		if f.AppliedAt, err = parseTime(appliedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (Run, error) {
	var (
		run               Run
		started, finished string
	)
	if err := s.Scan(&run.ID, &run.Root, &started, &finished, &run.Strategy, &run.FilesAnalyzed,
		&run.TotalFindings, &run.HealthScore, &run.ProducerErrors, &run.Insights); err != nil {
		return Run{}, err
	}
	var err error
	if run.StartedAt, err = parseTime(started); err != nil {
		return Run{}, err
	}
	if run.FinishedAt, err = parseTime(finished); err != nil {
		return Run{}, err
	}
	return run, nil
}

// Timestamps are stored as fixed-width UTC text so they sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
