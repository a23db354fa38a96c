package deps

import (
	"log/slog"
	"path"
	"sort"
	"strings"

	"ctxasm/internal/classify"
	"ctxasm/internal/extract"
	"ctxasm/internal/paths"
	"ctxasm/internal/slogutil"
)

// Resolver maps a selected file set to its dependency files.
type Resolver interface {
	Resolve(selected []string, files Graph) map[string]string
}

// Options configures an ImportResolver.
type Options struct {
	// Aliases maps an import prefix to a project-relative root, e.g.
	// "@/" -> "src".
	Aliases map[string]string
	// Depth is how many import hops to follow. Values below 1 mean 1.
	Depth int
}

// DefaultAliases are used when Options.Aliases is nil.
func DefaultAliases() map[string]string {
	return map[string]string{"@/": "", "~/": ""}
}

type alias struct {
	prefix string
	root   string
}

// ImportResolver resolves relative and aliased imports against the graph.
// Bare and external specifiers are dropped.
type ImportResolver struct {
	aliases []alias
	depth   int
	logger  *slog.Logger
}

// New creates a resolver.
func New(opts Options, logger *slog.Logger) *ImportResolver {
	aliasMap := opts.Aliases
	if aliasMap == nil {
		aliasMap = DefaultAliases()
	}
	aliases := make([]alias, 0, len(aliasMap))
	for prefix, root := range aliasMap {
		if prefix == "" {
			continue
		}
		aliases = append(aliases, alias{prefix: prefix, root: paths.NormalizePath(root)})
	}
	// Longest prefix wins.
	sort.Slice(aliases, func(i, j int) bool {
		if len(aliases[i].prefix) != len(aliases[j].prefix) {
			return len(aliases[i].prefix) > len(aliases[j].prefix)
		}
		return aliases[i].prefix < aliases[j].prefix
	})

	depth := opts.Depth
	if depth < 1 {
		depth = 1
	}
	return &ImportResolver{aliases: aliases, depth: depth, logger: slogutil.OrDiscard(logger)}
}

// Resolve follows imports from selected up to the configured depth and
// returns path to content for every reached file outside selected. Binary
// files and missing targets are never included.
func (r *ImportResolver) Resolve(selected []string, files Graph) map[string]string {
	inSelected := make(map[string]bool, len(selected))
	for _, p := range selected {
		inSelected[p] = true
	}

	result := make(map[string]string)
	frontier := append([]string(nil), selected...)
	sort.Strings(frontier)

	for level := 0; level < r.depth && len(frontier) > 0; level++ {
		var next []string
		for _, importer := range frontier {
			for _, spec := range files.Imports(importer) {
				target, ok := r.ResolveImport(importer, spec, files)
				if !ok || target == importer || inSelected[target] {
					continue
				}
				if _, seen := result[target]; seen {
					continue
				}
				if classify.IsBinary(target) {
					continue
				}
				result[target] = files.Content(target)
				next = append(next, target)
			}
		}
		sort.Strings(next)
		frontier = next
	}

	r.logger.Debug("Resolved dependencies", "selected", len(selected), "dependencies", len(result))
	return result
}

// ResolveImport maps one import specifier of importer to an existing path.
func (r *ImportResolver) ResolveImport(importer, spec string, files Graph) (string, bool) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return "", false
	}

	lang, _ := extract.LanguageFromPath(importer)
	switch lang {
	case extract.LangGo:
		// Go imports name packages by module path, not files.
		return "", false
	case extract.LangPython:
		return r.resolvePython(importer, spec, files)
	}

	var base string
	switch {
	case strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../") || spec == "." || spec == "..":
		resolved, ok := paths.ResolveRelative(importer, spec)
		if !ok {
			return "", false
		}
		base = resolved
	case strings.HasPrefix(spec, "/"):
		base = paths.NormalizePath(strings.TrimPrefix(spec, "/"))
	default:
		aliased, ok := r.applyAlias(spec)
		if !ok {
			return "", false
		}
		base = aliased
	}
	return probe(base, familyFor(lang), files)
}

func (r *ImportResolver) applyAlias(spec string) (string, bool) {
	for _, a := range r.aliases {
		if strings.HasPrefix(spec, a.prefix) {
			return paths.NormalizePath(path.Join(a.root, strings.TrimPrefix(spec, a.prefix))), true
		}
	}
	return "", false
}

// resolvePython handles "from .mod import x" (leading dots walk up from the
// importer's package) and dotted absolute module names.
func (r *ImportResolver) resolvePython(importer, spec string, files Graph) (string, bool) {
	dots := len(spec) - len(strings.TrimLeft(spec, "."))
	rest := strings.ReplaceAll(spec[dots:], ".", "/")

	var base string
	if dots > 0 {
		dir := path.Dir(importer)
		for i := 1; i < dots; i++ {
			if dir == "." || dir == "" {
				return "", false
			}
			dir = path.Dir(dir)
		}
		base = paths.NormalizePath(path.Join(dir, rest))
	} else {
		base = paths.NormalizePath(rest)
	}
	if base == "" {
		return "", false
	}
	return probe(base, pythonFamily, files)
}

type family struct {
	exts  []string
	index []string
}

var (
	scriptFamily = family{
		exts:  []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs", ".d.ts", ".vue", ".svelte", ".json"},
		index: []string{"index.ts", "index.tsx", "index.js", "index.jsx"},
	}
	pythonFamily = family{exts: []string{".py"}, index: []string{"__init__.py"}}
	rustFamily   = family{exts: []string{".rs"}, index: []string{"mod.rs"}}
	styleFamily  = family{exts: []string{".css", ".scss", ".less"}, index: []string{"index.css"}}
)

func familyFor(lang extract.Language) family {
	switch lang {
	case extract.LangRust:
		return rustFamily
	case extract.LangCSS:
		return styleFamily
	default:
		return scriptFamily
	}
}

// probe tries base, then base plus each extension, then base/index files.
func probe(base string, fam family, files Graph) (string, bool) {
	if base == "" {
		return "", false
	}
	if files.Has(base) {
		return base, true
	}
	for _, ext := range fam.exts {
		if files.Has(base + ext) {
			return base + ext, true
		}
	}
	for _, idx := range fam.index {
		candidate := path.Join(base, idx)
		if files.Has(candidate) {
			return candidate, true
		}
	}
	return "", false
}
