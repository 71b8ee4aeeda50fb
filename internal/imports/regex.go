package imports

import (
	"regexp"
	"strings"
)

var (
	jsImportFrom = regexp.MustCompile(`(?m)^\s*(?:import|export)\s+(?:type\s+)?[\w*{}\s,$]+?\s+from\s+['"]([^'"]+)['"]`)
	jsImportBare = regexp.MustCompile(`(?m)^\s*import\s+['"]([^'"]+)['"]`)
	jsRequire    = regexp.MustCompile(`\brequire\(\s*['"]([^'"]+)['"]\s*\)`)
	jsDynamic    = regexp.MustCompile(`\bimport\(\s*['"]([^'"]+)['"]\s*\)`)

	goSingle    = regexp.MustCompile(`(?m)^\s*import\s+(?:[\w.]+\s+)?"([^"]+)"`)
	goBlock     = regexp.MustCompile(`(?s)\bimport\s*\((.*?)\)`)
	goBlockSpec = regexp.MustCompile(`(?m)^\s*(?:[\w.]+\s+)?"([^"]+)"`)

	pyFrom   = regexp.MustCompile(`(?m)^\s*from\s+(\.*[\w.]*)\s+import\b`)
	pyImport = regexp.MustCompile(`(?m)^\s*import\s+([\w.]+(?:\s+as\s+\w+)?(?:\s*,\s*[\w.]+(?:\s+as\s+\w+)?)*)`)
)

// ExtractRegex pulls import specifiers out of source with line-oriented
// patterns. It is used when tree-sitter is unavailable or fails to parse.
func ExtractRegex(source []byte, lang Language) []string {
	text := string(source)
	var specs []string

	switch lang {
	case LangJavaScript, LangTypeScript, LangTSX:
		for _, re := range []*regexp.Regexp{jsImportFrom, jsImportBare, jsRequire, jsDynamic} {
			specs = append(specs, submatches(re, text)...)
		}
	case LangGo:
		specs = append(specs, submatches(goSingle, text)...)
		for _, block := range goBlock.FindAllStringSubmatch(text, -1) {
			specs = append(specs, submatches(goBlockSpec, block[1])...)
		}
	case LangPython:
		specs = append(specs, submatches(pyFrom, text)...)
		for _, m := range pyImport.FindAllStringSubmatch(text, -1) {
			for _, part := range strings.Split(m[1], ",") {
				name := strings.Fields(strings.TrimSpace(part))
				if len(name) > 0 {
					specs = append(specs, name[0])
				}
			}
		}
	}
	return dedupe(specs)
}

func submatches(re *regexp.Regexp, text string) []string {
	matches := re.FindAllStringSubmatch(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}
