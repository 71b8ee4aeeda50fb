// Package finding defines the Finding record that flows through every stage of
// the pipeline, together with its severity scale and metadata bag.
package finding

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Producer names the scanner that emitted a finding.
type Producer string

const (
	ProducerSecurity    Producer = "security"
	ProducerPerformance Producer = "performance"
	ProducerDesign      Producer = "design"
	ProducerDatabase    Producer = "database"
	ProducerTesting     Producer = "testing"
)

// Producers lists the known producers in a fixed order.
var Producers = []Producer{
	ProducerSecurity,
	ProducerPerformance,
	ProducerDesign,
	ProducerDatabase,
	ProducerTesting,
}

// ParseProducer parses a producer name case-insensitively.
func ParseProducer(s string) (Producer, error) {
	p := Producer(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Producers {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown producer: %q", s)
}

// Defaults substituted for optional fields a producer may omit.
const (
	DefaultConfidence = 0.7
	DefaultSeverity   = SeverityMedium
)

// Well-known metadata keys.
const (
	MetaVariable   = "variable"
	MetaEnvVar     = "envVar"
	MetaComponent  = "component"
	MetaAlgorithm  = "algorithm"
	MetaTable      = "table"
	MetaColumn     = "column"
	MetaComplexity = "complexity"
	MetaUserFacing = "userFacing"
	MetaFunction   = "function"
	MetaOccurrence = "occurrences"
)

// Location points at the code a finding is about.
type Location struct {
	File    string `json:"file" yaml:"file"`
	Line    int    `json:"line,omitempty" yaml:"line,omitempty"`
	Snippet string `json:"snippet,omitempty" yaml:"snippet,omitempty"`
}

// IsTest reports whether the location is inside test code.
func (l Location) IsTest() bool {
	p := strings.ToLower(l.File)
	return strings.Contains(p, "test") || strings.Contains(p, "spec")
}

// IsConfig reports whether the location is a configuration file.
func (l Location) IsConfig() bool {
	p := strings.ToLower(l.File)
	return strings.Contains(p, "config") || strings.HasSuffix(p, ".json")
}

// IsVendor reports whether the location is third-party code.
func (l Location) IsVendor() bool {
	p := strings.ToLower(l.File)
	return strings.Contains(p, "vendor") || strings.Contains(p, "node_modules")
}

// Finding is a single issue reported by a producer.
//
// Stages never mutate a Finding they received; they work on copies made with
// Clone and return the decorated copy.
type Finding struct {
	ID            string    `json:"id" yaml:"id,omitempty"`
	Producer      Producer  `json:"producer" yaml:"producer,omitempty"`
	Type          string    `json:"type" yaml:"type"`
	CanonicalType string    `json:"canonicalType,omitempty" yaml:"canonicalType,omitempty"`
	Severity      Severity  `json:"severity" yaml:"severity,omitempty"`
	Confidence    float64   `json:"confidence" yaml:"confidence,omitempty"`
	Location      Location  `json:"location" yaml:"location"`
	Metadata      Metadata  `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Description   string    `json:"description,omitempty" yaml:"description,omitempty"`
	DiscoveredAt  time.Time `json:"discoveredAt" yaml:"discoveredAt,omitempty"`
}

// Clone returns a deep copy of f.
func (f Finding) Clone() Finding {
	out := f
	out.Metadata = f.Metadata.Clone()
	return out
}

// EffectiveType returns the canonical type when known, the raw type otherwise.
func (f Finding) EffectiveType() string {
	if f.CanonicalType != "" {
		return f.CanonicalType
	}
	return f.Type
}

// DeriveID computes the stable identifier of a finding from its producer,
// canonical type, location and discovery time. Two findings only share an ID
// when all of these match.
func DeriveID(f Finding) string {
	var b strings.Builder
	b.WriteString(string(f.Producer))
	b.WriteByte('|')
	b.WriteString(f.EffectiveType())
	b.WriteByte('|')
	b.WriteString(f.Location.File)
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(f.Location.Line))
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(f.DiscoveredAt.UnixNano(), 10))

	sum := blake2b.Sum256([]byte(b.String()))
	return "f_" + hex.EncodeToString(sum[:12])
}

// Normalize returns a copy of f with documented defaults substituted for
// missing optional fields: confidence 0.7, severity medium, empty metadata,
// discovery time now, and a derived ID.
func Normalize(f Finding, now time.Time) Finding {
	out := f.Clone()
	if out.Confidence <= 0 {
		out.Confidence = DefaultConfidence
	}
	if out.Confidence > 1 {
		out.Confidence = 1
	}
	if !out.Severity.Valid() {
		if parsed, err := ParseSeverity(string(out.Severity)); err == nil {
			out.Severity = parsed
		} else {
			out.Severity = DefaultSeverity
		}
	}
	if out.DiscoveredAt.IsZero() {
		out.DiscoveredAt = now
	}
	if out.ID == "" {
		out.ID = DeriveID(out)
	}
	return out
}
