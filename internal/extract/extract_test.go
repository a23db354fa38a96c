package extract

import (
	"context"
	"reflect"
	"sort"
	"testing"

	"ctxasm/internal/slogutil"
)

const tsSource = `import React from 'react'
import { useAuth } from './hooks/useAuth'
import type { User } from "../types/user"
import './styles.css'
const cfg = require('./config')

export function LoginForm() {}
export const MAX_ATTEMPTS = 3
export { helper as formatError }
`

func TestExtractPatterns_TypeScript(t *testing.T) {
	got := extractPatterns(LangTypeScript, tsSource)

	wantImports := []string{"react", "./hooks/useAuth", "../types/user", "./styles.css", "./config"}
	if !sameSet(got.Imports, wantImports) {
		t.Errorf("Imports = %v, want %v", got.Imports, wantImports)
	}
	wantExports := []string{"LoginForm", "MAX_ATTEMPTS", "formatError"}
	if !reflect.DeepEqual(got.Exports, wantExports) {
		t.Errorf("Exports = %v, want %v", got.Exports, wantExports)
	}
	if got.Parser != "pattern" {
		t.Errorf("Parser = %q, want pattern", got.Parser)
	}
}

func TestExtractPatterns_Python(t *testing.T) {
	src := "import os, sys\nfrom .models import User\nfrom ..db import session\n\ndef handler():\n    pass\n\ndef _private():\n    pass\n\nclass LoginView:\n    pass\n"
	got := extractPatterns(LangPython, src)

	wantImports := []string{".models", "..db", "os", "sys"}
	if !sameSet(got.Imports, wantImports) {
		t.Errorf("Imports = %v, want %v", got.Imports, wantImports)
	}
	wantExports := []string{"LoginView", "handler"}
	if !reflect.DeepEqual(got.Exports, wantExports) {
		t.Errorf("Exports = %v, want %v", got.Exports, wantExports)
	}
}

func TestExtractPatterns_Go(t *testing.T) {
	src := "package auth\n\nimport (\n\t\"context\"\n\tstore \"example.com/app/internal/store\"\n)\n\nfunc Login() {}\nfunc helper() {}\ntype Session struct{}\n"
	got := extractPatterns(LangGo, src)

	wantImports := []string{"context", "example.com/app/internal/store"}
	if !sameSet(got.Imports, wantImports) {
		t.Errorf("Imports = %v, want %v", got.Imports, wantImports)
	}
	wantExports := []string{"Login", "Session"}
	if !reflect.DeepEqual(got.Exports, wantExports) {
		t.Errorf("Exports = %v, want %v", got.Exports, wantExports)
	}
}

func TestExtractPatterns_CSS(t *testing.T) {
	got := extractPatterns(LangCSS, "@import './base.css';\n@use \"theme\";\n")
	if !sameSet(got.Imports, []string{"./base.css", "theme"}) {
		t.Errorf("Imports = %v", got.Imports)
	}
}

func TestExtract_ImportsMatchAcrossParsers(t *testing.T) {
	e := New(slogutil.NewDiscardLogger())

	got := e.Extract(context.Background(), "src/LoginForm.ts", tsSource)
	wantImports := []string{"react", "./hooks/useAuth", "../types/user", "./styles.css", "./config"}
	if !sameSet(got.Imports, wantImports) {
		t.Errorf("Imports = %v, want %v (parser %s)", got.Imports, wantImports, got.Parser)
	}
	if TreeSitterAvailable() && got.Parser != "treesitter" {
		t.Errorf("Parser = %q, want treesitter when available", got.Parser)
	}
}

func TestExtract_Unsupported(t *testing.T) {
	e := New(nil)
	got := e.Extract(context.Background(), "README.md", "# hello")
	if len(got.Imports) != 0 || len(got.Exports) != 0 {
		t.Errorf("Extract(README.md) = %+v, want empty", got)
	}
}

func TestLanguageFromPath(t *testing.T) {
	tests := []struct {
		path string
		want Language
		ok   bool
	}{
		{"a.ts", LangTypeScript, true},
		{"a.tsx", LangTSX, true},
		{"a.jsx", LangJavaScript, true},
		{"a.py", LangPython, true},
		{"main.go", LangGo, true},
		{"theme.scss", LangCSS, true},
		{"logo.png", "", false},
	}
	for _, tt := range tests {
		got, ok := LanguageFromPath(tt.path)
		if got != tt.want || ok != tt.ok {
			t.Errorf("LanguageFromPath(%q) = %q, %v, want %q, %v", tt.path, got, ok, tt.want, tt.ok)
		}
	}
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x := append([]string(nil), a...)
	y := append([]string(nil), b...)
	sort.Strings(x)
	sort.Strings(y)
	return reflect.DeepEqual(x, y)
}
