package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"fip/internal/finding"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatHuman OutputFormat = "human"
)

func outputFormat() (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(outputFlag)) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatHuman, "":
		return FormatHuman, nil
	default:
		return "", fmt.Errorf("unsupported format: %s", outputFlag)
	}
}

// writeJSON writes v as indented JSON followed by a newline.
func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// render writes v as JSON or through human, depending on --output.
func render(w io.Writer, v any, human func(io.Writer)) error {
	format, err := outputFormat()
	if err != nil {
		return err
	}
	if format == FormatJSON {
		return writeJSON(w, v)
	}
	human(w)
	return nil
}

var (
	red    = color.New(color.FgRed).SprintFunc()
	redB   = color.New(color.FgRed, color.Bold).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
	faint  = color.New(color.Faint).SprintFunc()
)

// severityLabel returns the padded, coloured severity tag.
func severityLabel(s finding.Severity) string {
	label := fmt.Sprintf("%-8s", strings.ToUpper(string(s)))
	switch s {
	case finding.SeverityCritical:
		return redB(label)
	case finding.SeverityHigh:
		return red(label)
	case finding.SeverityMedium:
		return yellow(label)
	case finding.SeverityLow:
		return cyan(label)
	default:
		return faint(label)
	}
}

// healthLabel colours a 0-100 health score.
func healthLabel(score int) string {
	text := fmt.Sprintf("%d/100", score)
	switch {
	case score >= 80:
		return green(text)
	case score >= 60:
		return yellow(text)
	default:
		return red(text)
	}
}

// location renders file:line, or the file alone when the line is unknown.
func location(l finding.Location) string {
	if l.Line > 0 {
		return fmt.Sprintf("%s:%d", l.File, l.Line)
	}
	return l.File
}

// formatMinutes renders an effort estimate.
func formatMinutes(m int) string {
	if m < 60 {
		return fmt.Sprintf("%dm", m)
	}
	if m%60 == 0 {
		return fmt.Sprintf("%dh", m/60)
	}
	return fmt.Sprintf("%dh%dm", m/60, m%60)
}

func pluralize(n int, singular, plural string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, singular)
	}
	return fmt.Sprintf("%d %s", n, plural)
}
