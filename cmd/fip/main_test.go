package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"fip/internal/autofix"
	"fip/internal/finding"
	"fip/internal/incremental"
	"fip/internal/pipeline"
	"fip/internal/priority"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func TestFormatMinutes(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{0, "0m"},
		{5, "5m"},
		{60, "1h"},
		{90, "1h30m"},
		{240, "4h"},
	}
	for _, tt := range tests {
		if got := formatMinutes(tt.in); got != tt.want {
			t.Errorf("formatMinutes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHealthLabel(t *testing.T) {
	if got := healthLabel(73); got != "73/100" {
		t.Errorf("healthLabel(73) = %q, want %q", got, "73/100")
	}
}

func TestSeverityLabel(t *testing.T) {
	got := severityLabel(finding.SeverityHigh)
	if got != "HIGH    " {
		t.Errorf("severityLabel(high) = %q, want padded HIGH", got)
	}
}

func TestLocation(t *testing.T) {
	if got := location(finding.Location{File: "a.go", Line: 3}); got != "a.go:3" {
		t.Errorf("location = %q, want a.go:3", got)
	}
	if got := location(finding.Location{File: "a.go"}); got != "a.go" {
		t.Errorf("location = %q, want a.go", got)
	}
}

func TestPluralize(t *testing.T) {
	if got := pluralize(1, "fix", "fixes"); got != "1 fix" {
		t.Errorf("pluralize(1) = %q", got)
	}
	if got := pluralize(3, "fix", "fixes"); got != "3 fixes" {
		t.Errorf("pluralize(3) = %q", got)
	}
}

func TestSelectFixes(t *testing.T) {
	fixes := []autofix.Fix{{FindingID: "a"}, {FindingID: "b"}, {FindingID: "c"}}

	if got := selectFixes(fixes, nil); len(got) != 3 {
		t.Errorf("selectFixes(nil) = %d fixes, want 3", len(got))
	}
	got := selectFixes(fixes, []string{"c", "a"})
	if len(got) != 2 || got[0].FindingID != "a" || got[1].FindingID != "c" {
		t.Errorf("selectFixes(c, a) = %+v, want a then c", got)
	}
}

func TestFixTarget(t *testing.T) {
	tests := []struct {
		fix  autofix.Fix
		want string
	}{
		{autofix.Fix{File: "a.js", Line: 4}, "a.js:4"},
		{autofix.Fix{File: "a.js", StartLine: 2, EndLine: 5}, "a.js:2-5"},
		{autofix.Fix{File: "a.js"}, "a.js"},
		{autofix.Fix{SQL: "CREATE INDEX"}, "(sql)"},
	}
	for _, tt := range tests {
		if got := fixTarget(tt.fix); got != tt.want {
			t.Errorf("fixTarget(%+v) = %q, want %q", tt.fix, got, tt.want)
		}
	}
}

func TestHealthGateError(t *testing.T) {
	var err error = &healthGateError{score: 42, failUnder: 60}
	var gate *healthGateError
	if !errors.As(err, &gate) {
		t.Fatal("errors.As failed for healthGateError")
	}
	if !strings.Contains(err.Error(), "42") || !strings.Contains(err.Error(), "60") {
		t.Errorf("Error() = %q, want score and gate", err.Error())
	}
}

func TestPrintScanHuman(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	f := finding.Finding{
		ID:            "f_abc",
		Producer:      "database",
		Type:          "N_PLUS_ONE",
		CanonicalType: "N_PLUS_ONE_QUERY",
		Severity:      finding.SeverityHigh,
		Location:      finding.Location{File: "src/orders.js", Line: 12},
	}
	report := &pipeline.Report{
		RunID:      "run-1",
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
		Plan:       incremental.AnalysisPlan{Strategy: incremental.StrategyFull, Files: []string{"src/orders.js"}, Ratio: 1, Total: 1},
		Producers: []pipeline.ProducerResult{
			{Producer: "database", Count: 1},
			{Producer: "testing", Err: errors.New("boom")},
		},
		ProducerErrors: []pipeline.ProducerError{{Producer: "testing", Error: "boom"}},
		Findings:       []finding.Finding{f},
		Records:        []priority.Record{{Finding: f, Score: 71, EffortMinutes: 30}},
		HealthScore:    92,
	}

	var buf bytes.Buffer
	printScanHuman(&buf, report, 10)
	out := buf.String()

	for _, want := range []string{
		"Run run-1",
		"Strategy: FULL (1 of 1 files, 100%)",
		"testing: boom",
		"1 finding",
		"N_PLUS_ONE_QUERY",
		"src/orders.js:12",
		"effort 30m",
		"Health: 92/100",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("scan output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintRecordsLimit(t *testing.T) {
	records := make([]priority.Record, 4)
	for i := range records {
		records[i] = priority.Record{Finding: finding.Finding{ID: "f", Type: "X", Severity: finding.SeverityLow}}
	}
	var buf bytes.Buffer
	printRecords(&buf, records, 2)
	if !strings.Contains(buf.String(), "... 2 more") {
		t.Errorf("printRecords output = %q, want truncation note", buf.String())
	}
}

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"init", "--root", dir})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		rootFlag = ""
	})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("init error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".fip", "config.json")); err != nil {
		t.Errorf("config.json not written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".fip", "findings")); err != nil {
		t.Errorf("findings directory not created: %v", err)
	}

	buf.Reset()
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("second init error = %v", err)
	}
	if !strings.Contains(buf.String(), "already exists") {
		t.Errorf("second init output = %q, want already exists", buf.String())
	}
}
