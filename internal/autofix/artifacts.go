package autofix

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	fiperrors "fip/internal/errors"
)

// RemediationFile is the name of the consolidated SQL remediation script.
const RemediationFile = "remediation.sql"

// WriteRemediationArtifacts collects the SQL fixes into dir/remediation.sql
// and a dated copy under migrationsDir named <YYYYMMDD>_remediation.sql. It
// returns the written paths, or nil when there are no SQL fixes. An empty
// migrationsDir skips the migration copy.
func WriteRemediationArtifacts(fixes []Fix, dir, migrationsDir string, now time.Time) ([]string, error) {
	var b strings.Builder
	count := 0
	for _, fix := range fixes {
		if !fix.Available || fix.Kind != EditSQL || fix.SQL == "" {
			continue
		}
		if count == 0 {
			fmt.Fprintf(&b, "-- Remediation script generated %s\n", now.UTC().Format(time.RFC3339))
		}
		fmt.Fprintf(&b, "\n-- %s (%s)\n%s\n", fix.Description, fix.FindingID, fix.SQL)
		count++
	}
	if count == 0 {
		return nil, nil
	}
	script := []byte(b.String())

	targets := []string{filepath.Join(dir, RemediationFile)}
	if migrationsDir != "" {
		targets = append(targets, filepath.Join(migrationsDir, now.UTC().Format("20060102")+"_"+RemediationFile))
	}
	for _, target := range targets {
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return nil, fiperrors.New(fiperrors.FixApplyFailed, "create "+filepath.Dir(target), err)
		}
		if err := os.WriteFile(target, script, 0o644); err != nil {
			return nil, fiperrors.New(fiperrors.FixApplyFailed, "write "+target, err)
		}
	}
	return targets, nil
}
