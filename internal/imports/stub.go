//go:build !cgo

package imports

import "context"

// Extractor finds import specifiers. Without cgo the tree-sitter grammars are
// not linked and extraction is pattern based.
type Extractor struct{}

// NewExtractor creates an extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// IsAvailable reports whether syntax-aware extraction is compiled in.
func IsAvailable() bool {
	return false
}

// Extract returns the import specifiers of source.
func (e *Extractor) Extract(ctx context.Context, source []byte, lang Language) ([]string, error) {
	return ExtractRegex(source, lang), nil
}
