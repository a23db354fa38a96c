package extract

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	esImportFrom   = regexp.MustCompile(`(?m)^\s*(?:import|export)\s+(?:type\s+)?[^'"]*?\s+from\s+['"]([^'"]+)['"]`)
	esImportBare   = regexp.MustCompile(`(?m)^\s*import\s+['"]([^'"]+)['"]`)
	esRequire      = regexp.MustCompile(`\brequire\(\s*['"]([^'"]+)['"]\s*\)`)
	esDynamic      = regexp.MustCompile(`\bimport\(\s*['"]([^'"]+)['"]\s*\)`)
	esExportDecl   = regexp.MustCompile(`(?m)^\s*export\s+(?:default\s+)?(?:async\s+)?(?:function\*?|class|const|let|var|interface|type|enum|abstract\s+class)\s+([A-Za-z_$][\w$]*)`)
	esExportList   = regexp.MustCompile(`(?m)^\s*export\s*\{([^}]*)\}`)
	esExportAnon   = regexp.MustCompile(`(?m)^\s*export\s+default\s+(?:async\s+)?(?:function\s*\(|class\s*\{|\(|\{|[^\sfc])`)
	pyImport       = regexp.MustCompile(`(?m)^\s*import\s+([\w.]+(?:\s*,\s*[\w.]+)*)`)
	pyFromImport   = regexp.MustCompile(`(?m)^\s*from\s+(\.*[\w.]*)\s+import\s+`)
	pyTopLevelDecl = regexp.MustCompile(`(?m)^(?:async\s+)?(?:def|class)\s+([A-Za-z_]\w*)`)
	goImportSingle = regexp.MustCompile(`(?m)^\s*import\s+(?:[\w.]+\s+)?"([^"]+)"`)
	goImportBlock  = regexp.MustCompile(`(?s)import\s*\((.*?)\)`)
	goImportLine   = regexp.MustCompile(`(?m)^\s*(?:[\w.]+\s+)?"([^"]+)"`)
	goTopLevelDecl = regexp.MustCompile(`(?m)^(?:func|type|var|const)\s+(?:\([^)]*\)\s*)?([A-Za-z_]\w*)`)
	rsUse          = regexp.MustCompile(`(?m)^\s*(?:pub\s+)?use\s+([\w:]+)`)
	rsMod          = regexp.MustCompile(`(?m)^\s*(?:pub\s+)?mod\s+(\w+)\s*;`)
	rsPubDecl      = regexp.MustCompile(`(?m)^\s*pub\s+(?:async\s+)?(?:fn|struct|enum|trait|type|const|static)\s+([A-Za-z_]\w*)`)
	cssImport      = regexp.MustCompile(`(?m)@(?:import|use|forward)\s+(?:url\()?['"]([^'"]+)['"]`)
)

// extractPatterns is the regex extractor used without cgo and for languages
// tree-sitter is not wired for.
func extractPatterns(lang Language, content string) Result {
	c := newCollector()
	switch lang {
	case LangJavaScript, LangTypeScript, LangTSX:
		addAll(c, esImportFrom, content)
		addAll(c, esImportBare, content)
		addAll(c, esRequire, content)
		addAll(c, esDynamic, content)
		for _, m := range esExportDecl.FindAllStringSubmatch(content, -1) {
			c.addExport(m[1])
		}
		for _, m := range esExportList.FindAllStringSubmatch(content, -1) {
			for _, name := range exportListNames(m[1]) {
				c.addExport(name)
			}
		}
		if esExportAnon.MatchString(content) {
			c.addExport("default")
		}
	case LangPython:
		for _, m := range pyFromImport.FindAllStringSubmatch(content, -1) {
			c.addImport(m[1])
		}
		for _, m := range pyImport.FindAllStringSubmatch(content, -1) {
			for _, mod := range strings.Split(m[1], ",") {
				c.addImport(mod)
			}
		}
		for _, m := range pyTopLevelDecl.FindAllStringSubmatch(content, -1) {
			if !strings.HasPrefix(m[1], "_") {
				c.addExport(m[1])
			}
		}
	case LangGo:
		addAll(c, goImportSingle, content)
		for _, block := range goImportBlock.FindAllStringSubmatch(content, -1) {
			addAll(c, goImportLine, block[1])
		}
		for _, m := range goTopLevelDecl.FindAllStringSubmatch(content, -1) {
			if isExportedGo(m[1]) {
				c.addExport(m[1])
			}
		}
	case LangRust:
		addAll(c, rsUse, content)
		for _, m := range rsMod.FindAllStringSubmatch(content, -1) {
			c.addImport("./" + m[1])
		}
		for _, m := range rsPubDecl.FindAllStringSubmatch(content, -1) {
			c.addExport(m[1])
		}
	case LangCSS:
		addAll(c, cssImport, content)
	}
	return c.result("pattern")
}

func addAll(c *collector, re *regexp.Regexp, content string) {
	for _, m := range re.FindAllStringSubmatch(content, -1) {
		c.addImport(m[1])
	}
}

// exportListNames parses "a, b as c, default as d" into the exported names.
func exportListNames(list string) []string {
	var names []string
	for _, part := range strings.Split(list, ",") {
		fields := strings.Fields(strings.TrimSpace(part))
		switch {
		case len(fields) == 0:
		case len(fields) >= 3 && fields[len(fields)-2] == "as":
			names = append(names, fields[len(fields)-1])
		default:
			names = append(names, strings.TrimPrefix(fields[len(fields)-1], "type "))
		}
	}
	return names
}

func isExportedGo(name string) bool {
	for _, r := range name {
		return unicode.IsUpper(r)
	}
	return false
}
