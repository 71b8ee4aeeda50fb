//go:build cgo

package imports

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Extractor finds import specifiers using tree-sitter grammars.
// A fresh parser is created per call so one Extractor can be shared between
// goroutines.
type Extractor struct{}

// NewExtractor creates an extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// IsAvailable reports whether syntax-aware extraction is compiled in.
func IsAvailable() bool {
	return true
}

// Extract returns the import specifiers of source. Parse failures fall back
// to ExtractRegex.
func (e *Extractor) Extract(ctx context.Context, source []byte, lang Language) ([]string, error) {
	tsLang, err := getLanguage(lang)
	if err != nil {
		return nil, err
	}

	parser := sitter.NewParser()
	parser.SetLanguage(tsLang)
	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil || tree == nil {
		return ExtractRegex(source, lang), nil
	}

	var specs []string
	walk(tree.RootNode(), func(n *sitter.Node) {
		specs = append(specs, importsOf(n, source, lang)...)
	})
	return dedupe(specs), nil
}

func getLanguage(lang Language) (*sitter.Language, error) {
	switch lang {
	case LangGo:
		return golang.GetLanguage(), nil
	case LangJavaScript:
		return javascript.GetLanguage(), nil
	case LangTypeScript:
		return typescript.GetLanguage(), nil
	case LangTSX:
		return tsx.GetLanguage(), nil
	case LangPython:
		return python.GetLanguage(), nil
	default:
		return nil, fmt.Errorf("unsupported language: %s", lang)
	}
}

func walk(n *sitter.Node, visit func(*sitter.Node)) {
	if n == nil {
		return
	}
	visit(n)
	for i := 0; i < int(n.NamedChildCount()); i++ {
		walk(n.NamedChild(i), visit)
	}
}

func importsOf(n *sitter.Node, source []byte, lang Language) []string {
	switch lang {
	case LangGo:
		if n.Type() == "import_spec" {
			if path := n.ChildByFieldName("path"); path != nil {
				return []string{unquote(path.Content(source))}
			}
		}
	case LangJavaScript, LangTypeScript, LangTSX:
		switch n.Type() {
		case "import_statement", "export_statement":
			if src := n.ChildByFieldName("source"); src != nil {
				return []string{unquote(src.Content(source))}
			}
		case "call_expression":
			fn := n.ChildByFieldName("function")
			args := n.ChildByFieldName("arguments")
			if fn == nil || args == nil || args.NamedChildCount() == 0 {
				return nil
			}
			name := fn.Content(source)
			if name != "require" && name != "import" {
				return nil
			}
			first := args.NamedChild(0)
			if first.Type() == "string" {
				return []string{unquote(first.Content(source))}
			}
		}
	case LangPython:
		switch n.Type() {
		case "import_statement":
			var out []string
			for i := 0; i < int(n.NamedChildCount()); i++ {
				child := n.NamedChild(i)
				switch child.Type() {
				case "dotted_name":
					out = append(out, child.Content(source))
				case "aliased_import":
					if name := child.ChildByFieldName("name"); name != nil {
						out = append(out, name.Content(source))
					}
				}
			}
			return out
		case "import_from_statement":
			if mod := n.ChildByFieldName("module_name"); mod != nil {
				return []string{mod.Content(source)}
			}
		}
	}
	return nil
}

func unquote(s string) string {
	return strings.Trim(s, "\"'`")
}
