// Package typemap maps each producer's local issue vocabulary onto the fixed
// set of canonical issue types used for correlation and fix dispatch.
package typemap

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"gopkg.in/yaml.v3"

	"fip/internal/finding"
)

// Canonical issue types.
const (
	HardcodedSecret     = "HARDCODED_SECRET"
	XSSVulnerability    = "XSS_VULNERABILITY"
	SQLInjection        = "SQL_INJECTION"
	InsecureRandom      = "INSECURE_RANDOM"
	MissingValidation   = "MISSING_VALIDATION"
	WeakCrypto          = "WEAK_CRYPTO"
	PathTraversal       = "PATH_TRAVERSAL"
	MissingAuth         = "MISSING_AUTH"
	AuthBypass          = "AUTH_BYPASS"
	NPlusOneQuery       = "N_PLUS_ONE_QUERY"
	DOMQueryInLoop      = "DOM_QUERY_IN_LOOP"
	MissingMemo         = "MISSING_MEMO"
	UnnecessaryRerender = "UNNECESSARY_RERENDER"
	MemoryLeak          = "MEMORY_LEAK"
	BlockingOperation   = "BLOCKING_OPERATION"
	MissingAltText      = "MISSING_ALT_TEXT"
	ColorContrast       = "COLOR_CONTRAST"
	MissingAria         = "MISSING_ARIA"
	KeyboardNav         = "KEYBOARD_NAV"
	ResponsiveIssue     = "RESPONSIVE_ISSUE"
	MissingIndex        = "MISSING_INDEX"
	SlowQuery           = "SLOW_QUERY"
	MissingConstraint   = "MISSING_CONSTRAINT"
	Denormalization     = "DENORMALIZATION"
	MissingTest         = "MISSING_TEST"
	LowCoverage         = "LOW_COVERAGE"
	FlakyTest           = "FLAKY_TEST"
	NoAssertions        = "NO_ASSERTIONS"
	BuildError          = "BUILD_ERROR"
)

// Fix confidence tiers returned by FixConfidence.
const (
	HighFixConfidence    = 0.9
	MediumFixConfidence  = 0.8
	DefaultFixConfidence = 0.6
)

var builtinTables = map[finding.Producer]map[string]string{
	finding.ProducerSecurity: {
		"API_KEY_EXPOSED":       HardcodedSecret,
		"SECRET_EXPOSED":        HardcodedSecret,
		"EXPOSED_SECRET":        HardcodedSecret,
		"HARDCODED_CREDENTIALS": HardcodedSecret,
		"hardcoded_secret":      HardcodedSecret,
		"XSS":                   XSSVulnerability,
		"XSS_RISK":              XSSVulnerability,
		"DANGEROUS_HTML":        XSSVulnerability,
		"SQL_INJECTION_RISK":    SQLInjection,
		"SQLI":                  SQLInjection,
		"MATH_RANDOM":           InsecureRandom,
		"WEAK_RANDOM":           InsecureRandom,
		"NO_INPUT_VALIDATION":   MissingValidation,
		"UNVALIDATED_INPUT":     MissingValidation,
		"WEAK_HASH":             WeakCrypto,
		"MD5_USAGE":             WeakCrypto,
		"SHA1_USAGE":            WeakCrypto,
		"WEAK_ENCRYPTION":       WeakCrypto,
		"DIRECTORY_TRAVERSAL":   PathTraversal,
		"NO_AUTH":               MissingAuth,
		"UNAUTHENTICATED_ROUTE": MissingAuth,
		"AUTH_WEAKNESS":         AuthBypass,
	},
	finding.ProducerPerformance: {
		"N_PLUS_ONE":          NPlusOneQuery,
		"NPLUSONE":            NPlusOneQuery,
		"DOM_IN_LOOP":         DOMQueryInLoop,
		"QUERY_IN_LOOP_DOM":   DOMQueryInLoop,
		"NO_MEMO":             MissingMemo,
		"MISSING_REACT_MEMO":  MissingMemo,
		"RERENDER":            UnnecessaryRerender,
		"EXCESSIVE_RERENDER":  UnnecessaryRerender,
		"LEAK":                MemoryLeak,
		"EVENT_LISTENER_LEAK": MemoryLeak,
		"TIMER_LEAK":          MemoryLeak,
		"SYNC_OPERATION":      BlockingOperation,
		"SYNC_IO":             BlockingOperation,
		"SLOW_FUNCTION":       BlockingOperation,
	},
	finding.ProducerDesign: {
		"NO_ALT":          MissingAltText,
		"IMG_NO_ALT":      MissingAltText,
		"MISSING_ALT":     MissingAltText,
		"LOW_CONTRAST":    ColorContrast,
		"NO_ARIA":         MissingAria,
		"ARIA_MISSING":    MissingAria,
		"NO_KEYBOARD":     KeyboardNav,
		"KEYBOARD_ACCESS": KeyboardNav,
		"FIXED_WIDTH":     ResponsiveIssue,
		"NOT_RESPONSIVE":  ResponsiveIssue,
	},
	finding.ProducerDatabase: {
		"N_PLUS_ONE":       NPlusOneQuery,
		"N+1":              NPlusOneQuery,
		"NO_INDEX":         MissingIndex,
		"INDEX_MISSING":    MissingIndex,
		"UNINDEXED_FK":     MissingIndex,
		"SLOW_SQL":         SlowQuery,
		"FULL_TABLE_SCAN":  SlowQuery,
		"SELECT_STAR":      SlowQuery,
		"NO_CONSTRAINT":    MissingConstraint,
		"MISSING_FK":       MissingConstraint,
		"MISSING_NOT_NULL": MissingConstraint,
		"DENORMALIZED":     Denormalization,
	},
	finding.ProducerTesting: {
		"NO_TEST":               MissingTest,
		"UNTESTED_FILE":         MissingTest,
		"MISSING_TESTS":         MissingTest,
		"COVERAGE_LOW":          LowCoverage,
		"INSUFFICIENT_COVERAGE": LowCoverage,
		"FLAKY":                 FlakyTest,
		"INTERMITTENT_FAILURE":  FlakyTest,
		"MISSING_ASSERTIONS":    NoAssertions,
		"EMPTY_TEST":            NoAssertions,
		"COMPILE_ERROR":         BuildError,
		"BUILD_FAILURE":         BuildError,
		"BUILD_FAILED":          BuildError,
	},
}

var fixable = map[string]bool{
	HardcodedSecret: true, XSSVulnerability: true, SQLInjection: true, InsecureRandom: true,
	MissingValidation: true, WeakCrypto: true, PathTraversal: true,
	NPlusOneQuery: true, DOMQueryInLoop: true, MissingMemo: true, UnnecessaryRerender: true,
	MemoryLeak: true, BlockingOperation: true,
	MissingAltText: true, ColorContrast: true, MissingAria: true, KeyboardNav: true, ResponsiveIssue: true,
	MissingIndex: true, SlowQuery: true, MissingConstraint: true,
	MissingTest: true, LowCoverage: true, FlakyTest: true, NoAssertions: true,
}

var highConfidence = map[string]bool{
	HardcodedSecret: true, SQLInjection: true, InsecureRandom: true, DOMQueryInLoop: true,
	MissingAltText: true, KeyboardNav: true, MissingIndex: true,
}

var mediumConfidence = map[string]bool{
	XSSVulnerability: true, WeakCrypto: true, PathTraversal: true, NPlusOneQuery: true,
	MissingMemo: true, UnnecessaryRerender: true, ColorContrast: true, MissingAria: true,
	MissingConstraint: true, MissingTest: true, NoAssertions: true,
}

var (
	declPattern   = regexp.MustCompile(`(?:const|let|var)\s+([A-Za-z_$][\w$]*)`)
	assignPattern = regexp.MustCompile(`([A-Za-z_][\w]*)\s*:?=`)
)

// Normalizer canonicalizes producer-local issue types.
type Normalizer struct {
	mu     sync.RWMutex
	tables map[finding.Producer]map[string]string
}

// New returns a normalizer loaded with the builtin tables.
func New() *Normalizer {
	n := &Normalizer{tables: make(map[finding.Producer]map[string]string, len(builtinTables))}
	for producer, table := range builtinTables {
		copied := make(map[string]string, len(table))
		for raw, canonical := range table {
			copied[raw] = canonical
		}
		n.tables[producer] = copied
	}
	return n
}

var (
	defaultOnce sync.Once
	defaultNorm *Normalizer
)

// Default returns a lazily built process-wide normalizer. Prefer passing a
// *Normalizer explicitly; this exists for convenience call sites.
func Default() *Normalizer {
	defaultOnce.Do(func() {
		defaultNorm = New()
	})
	return defaultNorm
}

// Canonicalize maps (producer, rawType) to a canonical type. Unmapped types
// are returned unchanged.
func (n *Normalizer) Canonicalize(producer finding.Producer, rawType string) string {
	n.mu.RLock()
	defer n.mu.RUnlock()

	table, ok := n.tables[producer]
	if !ok {
		return rawType
	}
	if canonical, ok := table[rawType]; ok {
		return canonical
	}
	if canonical, ok := table[strings.ToUpper(rawType)]; ok {
		return canonical
	}
	return rawType
}

// Register adds or replaces a single mapping.
func (n *Normalizer) Register(producer finding.Producer, rawType, canonical string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	table, ok := n.tables[producer]
	if !ok {
		table = make(map[string]string)
		n.tables[producer] = table
	}
	table[rawType] = canonical
}

// LoadOverrides merges a YAML document of the form
//
//	security:
//	  LEAKED_TOKEN: HARDCODED_SECRET
//
// on top of the current tables.
func (n *Normalizer) LoadOverrides(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read type overrides: %w", err)
	}
	var doc map[string]map[string]string
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse type overrides %s: %w", path, err)
	}
	for name, table := range doc {
		producer, err := finding.ParseProducer(name)
		if err != nil {
			return fmt.Errorf("type overrides %s: %w", path, err)
		}
		for raw, canonical := range table {
			n.Register(producer, raw, canonical)
		}
	}
	return nil
}

// IsFixable reports whether a fix template exists for the finding's canonical type.
func (n *Normalizer) IsFixable(f finding.Finding) bool {
	return fixable[n.canonicalOf(f)]
}

// FixConfidence returns the confidence tier of the finding's canonical type.
func (n *Normalizer) FixConfidence(f finding.Finding) float64 {
	canonical := n.canonicalOf(f)
	switch {
	case highConfidence[canonical]:
		return HighFixConfidence
	case mediumConfidence[canonical]:
		return MediumFixConfidence
	default:
		return DefaultFixConfidence
	}
}

// Prepare returns a copy of f with CanonicalType populated from the raw type
// unless one is already set. For secret findings with a snippet it also fills
// metadata.variable and metadata.envVar when a declaration can be recognised;
// a miss leaves metadata untouched.
func (n *Normalizer) Prepare(f finding.Finding) finding.Finding {
	out := f.Clone()
	out.CanonicalType = n.canonicalOf(f)

	if out.CanonicalType == HardcodedSecret && out.Location.Snippet != "" {
		if variable := extractVariable(out.Location.Snippet); variable != "" {
			if out.Metadata.GetString(finding.MetaVariable) == "" {
				out.Metadata[finding.MetaVariable] = finding.String(variable)
			}
			if out.Metadata.GetString(finding.MetaEnvVar) == "" {
				out.Metadata[finding.MetaEnvVar] = finding.String(EnvVarName(variable))
			}
		}
	}
	return out
}

func (n *Normalizer) canonicalOf(f finding.Finding) string {
	if f.CanonicalType != "" {
		return f.CanonicalType
	}
	return n.Canonicalize(f.Producer, f.Type)
}

func extractVariable(snippet string) string {
	if m := declPattern.FindStringSubmatch(snippet); m != nil {
		return m[1]
	}
	if m := assignPattern.FindStringSubmatch(snippet); m != nil {
		return m[1]
	}
	return ""
}

// EnvVarName converts an identifier such as apiKey or api-key to API_KEY.
func EnvVarName(identifier string) string {
	var b strings.Builder
	runes := []rune(identifier)
	for i, r := range runes {
		switch {
		case r == '-' || r == '.' || r == '$':
			b.WriteByte('_')
		case unicode.IsUpper(r) && i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])):
			b.WriteByte('_')
			b.WriteRune(r)
		default:
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return strings.Trim(b.String(), "_")
}
