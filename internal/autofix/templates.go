package autofix

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"

	"fip/internal/finding"
	"fip/internal/typemap"
)

// template builds the edit for one canonical type. Generate fills in the
// finding fields, default confidence and classification.
type template func(f finding.Finding) (Fix, error)

// unavailable marks canonical types that have no automatic fix, with the
// reason reported to the caller.
var unavailable = map[string]string{
	typemap.Denormalization: "requires manual schema redesign",
	typemap.MissingAuth:     "authentication changes need manual review",
	typemap.AuthBypass:      "authentication changes need manual review",
	typemap.BuildError:      "build errors need manual repair",
}

var templates = map[finding.Producer]map[string]template{
	finding.ProducerSecurity: {
		typemap.HardcodedSecret:   fixHardcodedSecret,
		typemap.XSSVulnerability:  fixXSS,
		typemap.SQLInjection:      fixSQLInjection,
		typemap.InsecureRandom:    fixInsecureRandom,
		typemap.MissingValidation: fixMissingValidation,
		typemap.WeakCrypto:        fixWeakCrypto,
		typemap.PathTraversal:     fixPathTraversal,
	},
	finding.ProducerPerformance: {
		typemap.NPlusOneQuery:       fixNPlusOne,
		typemap.DOMQueryInLoop:      fixDOMQueryInLoop,
		typemap.MissingMemo:         fixMissingMemo,
		typemap.UnnecessaryRerender: fixUnnecessaryRerender,
		typemap.MemoryLeak:          fixMemoryLeak,
		typemap.BlockingOperation:   fixBlockingOperation,
	},
	finding.ProducerDesign: {
		typemap.MissingAltText:  fixMissingAltText,
		typemap.ColorContrast:   fixColorContrast,
		typemap.MissingAria:     fixMissingAria,
		typemap.KeyboardNav:     fixKeyboardNav,
		typemap.ResponsiveIssue: fixResponsive,
	},
	finding.ProducerDatabase: {
		typemap.MissingIndex:      fixMissingIndex,
		typemap.SlowQuery:         fixSlowQuery,
		typemap.MissingConstraint: fixMissingConstraint,
	},
	finding.ProducerTesting: {
		typemap.MissingTest:  fixMissingTest,
		typemap.LowCoverage:  fixLowCoverage,
		typemap.FlakyTest:    fixFlakyTest,
		typemap.NoAssertions: fixNoAssertions,
	},
}

var (
	errNoLine     = errors.New("finding has no line")
	errNoSnippet  = errors.New("finding has no snippet")
	errNoVariable = errors.New("no variable name recognised in snippet")

	concatPattern = regexp.MustCompile(`'\s*\+\s*(\w+)\s*\+\s*'`)
	weakAlgos     = []struct {
		pattern     *regexp.Regexp
		replacement string
	}{
		{regexp.MustCompile(`(?i)\bmd5\b`), "sha256"},
		{regexp.MustCompile(`(?i)\bsha1\b`), "sha256"},
		{regexp.MustCompile(`(?i)\bdes\b`), "aes-256-gcm"},
	}
)

func requireLine(f finding.Finding) error {
	if f.Location.Line <= 0 {
		return errNoLine
	}
	return nil
}

func fixHardcodedSecret(f finding.Finding) (Fix, error) {
	if err := requireLine(f); err != nil {
		return Fix{}, err
	}
	variable := f.Metadata.GetString(finding.MetaVariable)
	if variable == "" {
		return Fix{}, errNoVariable
	}
	envVar := f.Metadata.GetString(finding.MetaEnvVar)
	if envVar == "" {
		envVar = "SECRET_KEY"
	}
	replacement := fmt.Sprintf("const %s = process.env.%s;", variable, envVar)
	return Fix{
		Kind:        EditReplace,
		Line:        f.Location.Line,
		Replacement: replacement,
		Description: fmt.Sprintf("Move %s to environment variable %s", variable, envVar),
		Confidence:  0.95,
		Changes:     1,
		Preview:     &Preview{Before: strings.TrimSpace(f.Location.Snippet), After: replacement},
	}, nil
}

func fixXSS(f finding.Finding) (Fix, error) {
	return Fix{
		Kind:        EditReplace,
		Line:        f.Location.Line,
		Pattern:     `innerHTML\s*=\s*([^;]+)`,
		Replacement: "textContent = ${1}",
		Description: "Use textContent instead of innerHTML",
		Confidence:  0.85,
		Changes:     1,
	}, nil
}

func fixSQLInjection(f finding.Finding) (Fix, error) {
	if err := requireLine(f); err != nil {
		return Fix{}, err
	}
	if f.Location.Snippet == "" {
		return Fix{}, errNoSnippet
	}
	params := concatPattern.FindAllStringSubmatch(f.Location.Snippet, -1)
	if len(params) == 0 {
		return Fix{}, errors.New("no string concatenation found in snippet")
	}
	names := make([]string, 0, len(params))
	for _, m := range params {
		names = append(names, m[1])
	}
	replacement := concatPattern.ReplaceAllString(strings.TrimSpace(f.Location.Snippet), "?")
	return Fix{
		Kind:        EditReplace,
		Line:        f.Location.Line,
		Replacement: replacement,
		Description: "Use a parameterized query",
		Suggestion:  "Pass [" + strings.Join(names, ", ") + "] as query parameters",
		Confidence:  0.9,
		Changes:     1,
		Preview:     &Preview{Before: strings.TrimSpace(f.Location.Snippet), After: replacement},
	}, nil
}

func fixInsecureRandom(f finding.Finding) (Fix, error) {
	return Fix{
		Kind:        EditReplace,
		Line:        f.Location.Line,
		Pattern:     `Math\.random\(\)`,
		Replacement: `crypto.randomBytes(32).toString("hex")`,
		Description: "Use a cryptographically secure random source",
		Confidence:  0.9,
		Changes:     1,
		Imports:     []string{"crypto"},
	}, nil
}

func fixMissingValidation(f finding.Finding) (Fix, error) {
	if err := requireLine(f); err != nil {
		return Fix{}, err
	}
	field := f.Metadata.GetString("field")
	if field == "" {
		field = "input"
	}
	return Fix{
		Kind: EditInsert,
		Line: f.Location.Line,
		Insertion: strings.Join([]string{
			fmt.Sprintf("if (!%s || typeof %s !== 'string') {", field, field),
			fmt.Sprintf("  throw new Error('Invalid %s');", field),
			"}",
		}, "\n"),
		Description: "Validate " + field + " before use",
		Confidence:  0.7,
		Changes:     3,
	}, nil
}

func fixWeakCrypto(f finding.Finding) (Fix, error) {
	if err := requireLine(f); err != nil {
		return Fix{}, err
	}
	if f.Location.Snippet == "" {
		return Fix{}, errNoSnippet
	}
	replacement := strings.TrimSpace(f.Location.Snippet)
	for _, algo := range weakAlgos {
		replacement = algo.pattern.ReplaceAllString(replacement, algo.replacement)
	}
	if replacement == strings.TrimSpace(f.Location.Snippet) {
		return Fix{}, errors.New("no weak algorithm found in snippet")
	}
	return Fix{
		Kind:        EditReplace,
		Line:        f.Location.Line,
		Replacement: replacement,
		Description: "Replace weak algorithm with a modern one",
		Confidence:  0.85,
		Changes:     1,
		Preview:     &Preview{Before: strings.TrimSpace(f.Location.Snippet), After: replacement},
	}, nil
}

func fixPathTraversal(f finding.Finding) (Fix, error) {
	if err := requireLine(f); err != nil {
		return Fix{}, err
	}
	return Fix{
		Kind:        EditWrap,
		StartLine:   f.Location.Line,
		EndLine:     f.Location.Line,
		WrapStart:   "const resolvedPath = path.resolve(baseDir, userPath);\nif (resolvedPath.startsWith(baseDir)) {",
		WrapEnd:     "}",
		Description: "Confine the path to the base directory",
		Confidence:  0.8,
		Changes:     2,
		Imports:     []string{"path"},
	}, nil
}

func fixNPlusOne(f finding.Finding) (Fix, error) {
	if err := requireLine(f); err != nil {
		return Fix{}, err
	}
	relation := f.Metadata.GetString("relation")
	if relation == "" {
		relation = "related"
	}
	return Fix{
		Kind:        EditReplace,
		Line:        f.Location.Line,
		Replacement: fmt.Sprintf("const results = await Model.findAll({ include: [{ association: '%s' }] });", relation),
		Description: "Load " + relation + " eagerly instead of per row",
		Confidence:  0.85,
		Changes:     3,
	}, nil
}

func fixDOMQueryInLoop(f finding.Finding) (Fix, error) {
	selector := f.Metadata.GetString("selector")
	if selector == "" {
		selector = ".selector"
	}
	line := f.Location.Line - 1
	if line < 0 {
		line = 0
	}
	return Fix{
		Kind:        EditInsert,
		Line:        line,
		Insertion:   fmt.Sprintf("const cachedElements = document.querySelectorAll('%s');", selector),
		Description: "Hoist the DOM query out of the loop",
		Confidence:  0.9,
		Changes:     2,
	}, nil
}

func fixMissingMemo(f finding.Finding) (Fix, error) {
	if err := requireLine(f); err != nil {
		return Fix{}, err
	}
	component := f.Metadata.GetString(finding.MetaComponent)
	if component == "" {
		return Fix{}, errors.New("finding has no component name")
	}
	return Fix{
		Kind:        EditWrap,
		StartLine:   f.Location.Line,
		EndLine:     f.Location.Line,
		WrapStart:   fmt.Sprintf("const %s = React.memo(", component),
		WrapEnd:     ");",
		Description: "Memoize " + component,
		Confidence:  0.85,
		Changes:     2,
	}, nil
}

func fixUnnecessaryRerender(f finding.Finding) (Fix, error) {
	return Fix{
		Kind:        EditReplace,
		Line:        f.Location.Line,
		Pattern:     `const\s+(\w+)\s*=\s*\(([^)]*)\)\s*=>`,
		Replacement: "const ${1} = useCallback((${2}) =>",
		Description: "Stabilize the callback with useCallback",
		Confidence:  0.8,
		Changes:     1,
	}, nil
}

func fixMemoryLeak(f finding.Finding) (Fix, error) {
	return Fix{
		Kind:  EditInsert,
		After: "useEffect(",
		Insertion: strings.Join([]string{
			"  return () => {",
			"    // release subscriptions and timers",
			"  };",
		}, "\n"),
		Description: "Add a cleanup function to the effect",
		Confidence:  0.75,
		Changes:     3,
	}, nil
}

func fixBlockingOperation(f finding.Finding) (Fix, error) {
	return Fix{
		Kind:        EditReplace,
		Line:        f.Location.Line,
		Pattern:     `function\s+(\w+)\s*\(`,
		Replacement: "async function ${1}(",
		Description: "Make the blocking function asynchronous",
		Confidence:  0.7,
		Changes:     1,
	}, nil
}

func fixMissingAltText(f finding.Finding) (Fix, error) {
	return Fix{
		Kind:        EditReplace,
		Line:        f.Location.Line,
		Pattern:     `<img([^>]*?)\s*/?>`,
		Replacement: `<img${1} alt="Description needed">`,
		Description: "Add alt text to the image",
		Confidence:  0.95,
		Changes:     1,
	}, nil
}

func fixColorContrast(f finding.Finding) (Fix, error) {
	foreground := f.Metadata.GetString("foreground")
	if foreground == "" {
		return Fix{}, errors.New("finding has no foreground color")
	}
	recommendation := f.Metadata.GetString("recommendation")
	if recommendation == "" {
		recommendation = "#000000"
	}
	return Fix{
		Kind:        EditReplace,
		Line:        f.Location.Line,
		Pattern:     `color:\s*` + regexp.QuoteMeta(foreground),
		Replacement: "color: " + recommendation,
		Description: "Raise the text contrast",
		Confidence:  0.8,
		Changes:     1,
	}, nil
}

func fixMissingAria(f finding.Finding) (Fix, error) {
	return Fix{
		Kind:        EditReplace,
		Line:        f.Location.Line,
		Pattern:     `<div([^>]*)onClick`,
		Replacement: `<div${1}role="button" tabIndex={0} onClick`,
		Description: "Expose the clickable element to assistive technology",
		Confidence:  0.85,
		Changes:     1,
	}, nil
}

func fixKeyboardNav(f finding.Finding) (Fix, error) {
	return Fix{
		Kind:        EditReplace,
		Line:        f.Location.Line,
		Pattern:     `onClick=`,
		Replacement: `tabIndex={0} onKeyDown={handleKeyDown} onClick=`,
		Description: "Make the element reachable by keyboard",
		Confidence:  0.9,
		Changes:     1,
	}, nil
}

func fixResponsive(f finding.Finding) (Fix, error) {
	return Fix{
		Kind:        EditReplace,
		Line:        f.Location.Line,
		Pattern:     `width:\s*(\d+)px`,
		Replacement: "width: 100%; max-width: ${1}px",
		Description: "Let the fixed width shrink on small screens",
		Confidence:  0.75,
		Changes:     1,
	}, nil
}

func fixMissingIndex(f finding.Finding) (Fix, error) {
	table := f.Metadata.GetString(finding.MetaTable)
	column := f.Metadata.GetString(finding.MetaColumn)
	if table == "" || column == "" {
		return Fix{}, errors.New("finding has no table or column")
	}
	return Fix{
		Kind:        EditSQL,
		SQL:         fmt.Sprintf("CREATE INDEX idx_%s_%s ON %s(%s);", table, column, table, column),
		Description: fmt.Sprintf("Index %s.%s", table, column),
		Confidence:  0.9,
		Changes:     1,
	}, nil
}

func fixSlowQuery(f finding.Finding) (Fix, error) {
	suggestion := f.Metadata.GetString("suggestion")
	if suggestion == "" {
		suggestion = "Select only the needed columns and add a LIMIT"
	}
	return Fix{
		Kind:        EditReplace,
		Line:        f.Location.Line,
		Pattern:     `SELECT\s+\*`,
		Replacement: "SELECT id",
		Description: "Narrow the query",
		Suggestion:  suggestion,
		Confidence:  0.7,
		Changes:     1,
	}, nil
}

func fixMissingConstraint(f finding.Finding) (Fix, error) {
	table := f.Metadata.GetString(finding.MetaTable)
	column := f.Metadata.GetString(finding.MetaColumn)
	if table == "" || column == "" {
		return Fix{}, errors.New("finding has no table or column")
	}
	return Fix{
		Kind: EditSQL,
		SQL: fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT chk_%s_%s CHECK (%s IS NOT NULL);",
			table, table, column, column),
		Description: fmt.Sprintf("Require %s.%s", table, column),
		Confidence:  0.85,
		Changes:     1,
	}, nil
}

func fixMissingTest(f finding.Finding) (Fix, error) {
	source := f.Location.File
	if source == "" {
		return Fix{}, errors.New("finding has no file")
	}
	ext := path.Ext(source)
	base := strings.TrimSuffix(path.Base(source), ext)
	testFile := strings.TrimSuffix(source, ext) + ".test" + ext
	fn := f.Metadata.GetString(finding.MetaFunction)
	if fn == "" {
		fn = base
	}
	content := strings.Join([]string{
		fmt.Sprintf("const { %s } = require('./%s');", fn, base),
		"",
		fmt.Sprintf("describe('%s', () => {", fn),
		"  it('handles valid input', () => {",
		fmt.Sprintf("    expect(%s).toBeDefined();", fn),
		"  });",
		"",
		"  it('rejects invalid input', () => {",
		fmt.Sprintf("    expect(() => %s(undefined)).toThrow();", fn),
		"  });",
		"});",
		"",
	}, "\n")
	return Fix{
		Kind:        EditCreate,
		File:        testFile,
		Content:     content,
		Description: "Create a test file for " + base,
		Confidence:  0.8,
		Changes:     10,
	}, nil
}

func fixLowCoverage(f finding.Finding) (Fix, error) {
	return Fix{
		Kind:  EditInsert,
		After: "describe(",
		Insertion: strings.Join([]string{
			"  it('handles empty input', () => {});",
			"  it('handles null input', () => {});",
			"  it('handles boundary values', () => {});",
			"  it('handles large input', () => {});",
			"  it('handles malformed input', () => {});",
			"  it('handles concurrent calls', () => {});",
		}, "\n"),
		Description: "Add edge case tests",
		Confidence:  0.75,
		Changes:     6,
	}, nil
}

func fixFlakyTest(f finding.Finding) (Fix, error) {
	return Fix{
		Kind:        EditReplace,
		Line:        f.Location.Line,
		Pattern:     `setTimeout\(([^,]+),\s*\d+\)`,
		Replacement: "await waitFor(${1})",
		Description: "Wait on a condition instead of a fixed delay",
		Confidence:  0.7,
		Changes:     1,
	}, nil
}

func fixNoAssertions(f finding.Finding) (Fix, error) {
	if err := requireLine(f); err != nil {
		return Fix{}, err
	}
	return Fix{
		Kind: EditInsert,
		Line: f.Location.Line,
		Insertion: strings.Join([]string{
			"    expect(result).toBeDefined();",
			"    expect(result).toMatchSnapshot();",
		}, "\n"),
		Description: "Assert on the result",
		Confidence:  0.8,
		Changes:     2,
	}, nil
}
