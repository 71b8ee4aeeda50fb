// Package imports extracts import specifiers from source files and resolves
// them to files inside the scanned tree.
package imports

import (
	"path/filepath"
	"strings"
)

// Language is a source language the extractor understands.
type Language string

const (
	LangGo         Language = "go"
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
	LangTSX        Language = "tsx"
	LangPython     Language = "python"
)

// LanguageFromExtension returns the Language for a file extension.
func LanguageFromExtension(ext string) (Language, bool) {
	switch strings.ToLower(ext) {
	case ".go":
		return LangGo, true
	case ".js", ".mjs", ".cjs", ".jsx":
		return LangJavaScript, true
	case ".ts", ".mts", ".cts":
		return LangTypeScript, true
	case ".tsx":
		return LangTSX, true
	case ".py", ".pyw":
		return LangPython, true
	default:
		return "", false
	}
}

// LanguageFromPath is LanguageFromExtension applied to a path.
func LanguageFromPath(path string) (Language, bool) {
	return LanguageFromExtension(filepath.Ext(path))
}

// dedupe keeps the first occurrence of each specifier.
func dedupe(specs []string) []string {
	if len(specs) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(specs))
	out := specs[:0]
	for _, s := range specs {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
