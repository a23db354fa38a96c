// Package extract pulls import specifiers and exported names out of source
// files. With cgo it parses Go, JavaScript, TypeScript and Python with
// tree-sitter; every other case falls back to line-oriented patterns.
package extract

import (
	"sort"
	"strings"

	"ctxasm/internal/paths"
)

// Language represents a language the extractor understands.
type Language string

const (
	LangGo         Language = "go"
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
	LangTSX        Language = "tsx"
	LangPython     Language = "python"
	LangRust       Language = "rust"
	LangCSS        Language = "css"
)

// Result holds the edges recorded for one file.
type Result struct {
	// Imports are raw specifiers in source order, deduplicated.
	Imports []string `json:"imports,omitempty"`
	// Exports are exported symbol names, sorted.
	Exports []string `json:"exports,omitempty"`
	// Parser is "treesitter" or "pattern".
	Parser string `json:"parser"`
}

// LanguageFromPath returns the Language for a file path.
func LanguageFromPath(p string) (Language, bool) {
	switch paths.Ext(p) {
	case ".go":
		return LangGo, true
	case ".js", ".mjs", ".cjs", ".jsx":
		return LangJavaScript, true
	case ".ts", ".mts", ".cts":
		return LangTypeScript, true
	case ".tsx":
		return LangTSX, true
	case ".vue", ".svelte":
		// script blocks use ES module syntax
		return LangJavaScript, true
	case ".py", ".pyw":
		return LangPython, true
	case ".rs":
		return LangRust, true
	case ".css", ".scss", ".less":
		return LangCSS, true
	default:
		return "", false
	}
}

type collector struct {
	imports []string
	seen    map[string]bool
	exports map[string]bool
}

func newCollector() *collector {
	return &collector{seen: make(map[string]bool), exports: make(map[string]bool)}
}

func (c *collector) addImport(spec string) {
	spec = strings.TrimSpace(strings.Trim(spec, "\"'`"))
	if spec == "" || c.seen[spec] {
		return
	}
	c.seen[spec] = true
	c.imports = append(c.imports, spec)
}

func (c *collector) addExport(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	c.exports[name] = true
}

func (c *collector) result(parser string) Result {
	exports := make([]string, 0, len(c.exports))
	for name := range c.exports {
		exports = append(exports, name)
	}
	sort.Strings(exports)
	if len(exports) == 0 {
		exports = nil
	}
	return Result{Imports: c.imports, Exports: exports, Parser: parser}
}
