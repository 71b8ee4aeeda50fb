package imports

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

const jsSource = `import React from 'react';
import { helper, other } from "./utils";
import './styles.css';
const db = require('../db');
export { thing } from './thing';

async function load() {
  const mod = await import('./lazy');
  return mod;
}
`

const goSource = `package main

import "fmt"

import (
	"os"
	cfg "example.com/app/internal/config"
	_ "example.com/app/internal/plugins"
)
`

const pySource = `import os, sys
import app.models as models
from . import siblings
from .util import helper
from ..core.base import Base
`

func TestExtractRegex(t *testing.T) {
	tests := []struct {
		name string
		lang Language
		src  string
		want []string
	}{
		{
			name: "javascript",
			lang: LangJavaScript,
			src:  jsSource,
			want: []string{"react", "./utils", "./thing", "./styles.css", "../db", "./lazy"},
		},
		{
			name: "go",
			lang: LangGo,
			src:  goSource,
			want: []string{"fmt", "os", "example.com/app/internal/config", "example.com/app/internal/plugins"},
		},
		{
			name: "python",
			lang: LangPython,
			src:  pySource,
			want: []string{".", ".util", "..core.base", "os", "sys", "app.models"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractRegex([]byte(tt.src), tt.lang)
			if !sameSet(got, tt.want) {
				t.Errorf("ExtractRegex() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtractorFindsRelativeImports(t *testing.T) {
	e := NewExtractor()
	got, err := e.Extract(context.Background(), []byte(jsSource), LangJavaScript)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	for _, want := range []string{"./utils", "../db", "./lazy"} {
		if !contains(got, want) {
			t.Errorf("Extract() = %v, missing %q", got, want)
		}
	}
}

func TestLanguageFromExtension(t *testing.T) {
	tests := map[string]Language{".go": LangGo, ".jsx": LangJavaScript, ".TS": LangTypeScript, ".tsx": LangTSX, ".py": LangPython}
	for ext, want := range tests {
		got, ok := LanguageFromExtension(ext)
		if !ok || got != want {
			t.Errorf("LanguageFromExtension(%q) = %q, %v; want %q", ext, got, ok, want)
		}
	}
	if _, ok := LanguageFromExtension(".rb"); ok {
		t.Error("expected .rb to be unsupported")
	}
}

func TestResolverJavaScript(t *testing.T) {
	r := NewResolver(t.TempDir(), []string{
		"src/app.js",
		"src/utils.ts",
		"src/components/index.jsx",
		"lib/db.js",
	})

	tests := []struct {
		from, spec string
		want       []string
	}{
		{"src/app.js", "./utils", []string{"src/utils.ts"}},
		{"src/app.js", "./components", []string{"src/components/index.jsx"}},
		{"src/app.js", "../lib/db", []string{"lib/db.js"}},
		{"src/app.js", "../lib/db.js", []string{"lib/db.js"}},
		{"src/app.js", "react", nil},
		{"src/app.js", "./missing", nil},
	}
	for _, tt := range tests {
		got := r.Resolve(tt.from, tt.spec, LangJavaScript)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Resolve(%q, %q) = %v, want %v", tt.from, tt.spec, got, tt.want)
		}
	}
}

func TestResolverGo(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example.com/app\n\ngo 1.22\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	r := NewResolver(root, []string{
		"main.go",
		"internal/config/config.go",
		"internal/config/load.go",
		"internal/config/config_test.go",
	})

	if r.ModulePath() != "example.com/app" {
		t.Fatalf("ModulePath() = %q", r.ModulePath())
	}
	got := r.Resolve("main.go", "example.com/app/internal/config", LangGo)
	want := []string{"internal/config/config.go", "internal/config/load.go"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Resolve() = %v, want %v", got, want)
	}
	if got := r.Resolve("main.go", "fmt", LangGo); got != nil {
		t.Errorf("stdlib import resolved to %v", got)
	}
}

func TestResolverPython(t *testing.T) {
	r := NewResolver(t.TempDir(), []string{
		"app/__init__.py",
		"app/models.py",
		"app/api/views.py",
		"app/api/util.py",
	})

	tests := []struct {
		from, spec string
		want       []string
	}{
		{"app/api/views.py", ".util", []string{"app/api/util.py"}},
		{"app/api/views.py", "..models", []string{"app/models.py"}},
		{"app/api/views.py", "app.models", []string{"app/models.py"}},
		{"app/api/views.py", "..", []string{"app/__init__.py"}},
		{"app/api/views.py", "os", nil},
	}
	for _, tt := range tests {
		got := r.Resolve(tt.from, tt.spec, LangPython)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Resolve(%q, %q) = %v, want %v", tt.from, tt.spec, got, tt.want)
		}
	}
}

func TestResolveAllSkipsSelf(t *testing.T) {
	r := NewResolver(t.TempDir(), []string{"a.js", "b.js"})
	got := r.ResolveAll("a.js", []string{"./a", "./b", "./b.js"}, LangJavaScript)
	if !reflect.DeepEqual(got, []string{"b.js"}) {
		t.Errorf("ResolveAll() = %v, want [b.js]", got)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for _, v := range b {
		if !contains(a, v) {
			return false
		}
	}
	return true
}
