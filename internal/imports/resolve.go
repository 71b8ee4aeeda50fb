package imports

import (
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var (
	jsProbeExts = []string{".js", ".jsx", ".ts", ".tsx", ".mjs", ".cjs"}
	moduleLine  = regexp.MustCompile(`(?m)^module\s+(\S+)`)
)

// Resolver maps import specifiers to files of the scanned tree. All paths it
// accepts and returns are slash separated and relative to the root.
type Resolver struct {
	modulePath string
	files      map[string]bool
	byDir      map[string][]string
}

// NewResolver indexes files. When root holds a go.mod its module path is used
// to resolve Go imports of in-tree packages.
func NewResolver(root string, files []string) *Resolver {
	r := &Resolver{
		files: make(map[string]bool, len(files)),
		byDir: make(map[string][]string),
	}
	for _, f := range files {
		r.files[f] = true
		dir := path.Dir(f)
		r.byDir[dir] = append(r.byDir[dir], f)
	}
	for dir := range r.byDir {
		sort.Strings(r.byDir[dir])
	}
	if data, err := os.ReadFile(filepath.Join(root, "go.mod")); err == nil {
		if m := moduleLine.FindSubmatch(data); m != nil {
			r.modulePath = string(m[1])
		}
	}
	return r
}

// ModulePath returns the Go module path found at the root, if any.
func (r *Resolver) ModulePath() string {
	return r.modulePath
}

// Resolve returns the in-tree files that spec, imported from file from,
// refers to. External and unresolvable specifiers yield nil.
func (r *Resolver) Resolve(from, spec string, lang Language) []string {
	switch lang {
	case LangJavaScript, LangTypeScript, LangTSX:
		return r.resolveJS(from, spec)
	case LangGo:
		return r.resolveGo(spec)
	case LangPython:
		return r.resolvePython(from, spec)
	}
	return nil
}

// ResolveAll resolves every spec and returns the distinct targets, excluding
// from itself.
func (r *Resolver) ResolveAll(from string, specs []string, lang Language) []string {
	var out []string
	for _, spec := range specs {
		for _, target := range r.Resolve(from, spec, lang) {
			if target != from {
				out = append(out, target)
			}
		}
	}
	return dedupe(out)
}

func (r *Resolver) resolveJS(from, spec string) []string {
	if !strings.HasPrefix(spec, ".") {
		return nil
	}
	base := path.Join(path.Dir(from), spec)
	candidates := []string{base}
	for _, ext := range jsProbeExts {
		candidates = append(candidates, base+ext)
	}
	for _, ext := range jsProbeExts {
		candidates = append(candidates, base+"/index"+ext)
	}
	return r.first(candidates)
}

func (r *Resolver) resolveGo(spec string) []string {
	if r.modulePath == "" {
		return nil
	}
	var dir string
	switch {
	case spec == r.modulePath:
		dir = "."
	case strings.HasPrefix(spec, r.modulePath+"/"):
		dir = strings.TrimPrefix(spec, r.modulePath+"/")
	default:
		return nil
	}

	var out []string
	for _, f := range r.byDir[dir] {
		if strings.HasSuffix(f, ".go") && !strings.HasSuffix(f, "_test.go") {
			out = append(out, f)
		}
	}
	return out
}

func (r *Resolver) resolvePython(from, spec string) []string {
	dots := len(spec) - len(strings.TrimLeft(spec, "."))
	rest := strings.ReplaceAll(spec[dots:], ".", "/")

	var bases []string
	if dots > 0 {
		dir := path.Dir(from)
		for i := 1; i < dots; i++ {
			dir = path.Dir(dir)
		}
		bases = append(bases, path.Join(dir, rest))
	} else {
		bases = append(bases, path.Clean(rest), path.Join(path.Dir(from), rest))
	}

	var candidates []string
	for _, base := range bases {
		if rest == "" {
			candidates = append(candidates, path.Join(base, "__init__.py"))
			continue
		}
		candidates = append(candidates, base+".py", path.Join(base, "__init__.py"))
	}
	return r.first(candidates)
}

func (r *Resolver) first(candidates []string) []string {
	for _, c := range candidates {
		if r.files[c] {
			return []string{c}
		}
	}
	return nil
}
