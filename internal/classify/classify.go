// Package classify assigns a category, language and binary flag to a project
// file from its path. It never reads file content.
package classify

import (
	"path"
	"strings"

	"ctxasm/internal/model"
	"ctxasm/internal/paths"
)

// Result is the classification of one file.
type Result struct {
	Category model.Category `json:"category"`
	Language string         `json:"language"`
	IsBinary bool           `json:"isBinary"`
	Size     int64          `json:"size,omitempty"`
}

var binaryExtensions = toSet(
	// images
	".png", ".jpg", ".jpeg", ".gif", ".bmp", ".ico", ".webp", ".tiff", ".psd", ".avif", ".heic",
	// video and audio
	".mp4", ".mov", ".avi", ".mkv", ".webm", ".mp3", ".wav", ".ogg", ".flac", ".m4a",
	// fonts
	".woff", ".woff2", ".ttf", ".otf", ".eot",
	// archives
	".zip", ".tar", ".gz", ".tgz", ".bz2", ".xz", ".7z", ".rar", ".jar", ".war",
	// compiled and binary data
	".exe", ".dll", ".so", ".dylib", ".o", ".a", ".class", ".pyc", ".wasm", ".bin", ".dat",
	".pdf", ".sqlite", ".db",
	// generated
	".map", ".lock",
)

var lockfiles = toSet(
	"package-lock.json", "yarn.lock", "pnpm-lock.yaml", "go.sum", "cargo.lock",
	"poetry.lock", "composer.lock", "gemfile.lock", "bun.lockb", "npm-shrinkwrap.json",
)

var bundledSuffixes = []string{".min.js", ".min.css", ".bundle.js", ".chunk.js", ".min.mjs"}

var configNames = toSet(
	"package.json", "tsconfig.json", "jsconfig.json", "go.mod", "cargo.toml", "pyproject.toml",
	"setup.py", "setup.cfg", "requirements.txt", "pipfile", "gemfile", "makefile", "dockerfile",
	"docker-compose.yml", "docker-compose.yaml", ".babelrc", ".eslintrc", ".eslintrc.json",
	".eslintrc.js", ".prettierrc", ".prettierrc.json", ".editorconfig", ".npmrc", ".nvmrc",
	".gitignore", ".dockerignore", "deno.json", "turbo.json", "nx.json", "angular.json",
	"vercel.json", "netlify.toml", "components.json",
)

var configDataExtensions = toSet(".json", ".yaml", ".yml", ".toml", ".ini")

var languages = map[string]string{
	".go":     "go",
	".ts":     "typescript",
	".mts":    "typescript",
	".cts":    "typescript",
	".tsx":    "tsx",
	".js":     "javascript",
	".mjs":    "javascript",
	".cjs":    "javascript",
	".jsx":    "javascript",
	".py":     "python",
	".rs":     "rust",
	".java":   "java",
	".kt":     "kotlin",
	".kts":    "kotlin",
	".rb":     "ruby",
	".php":    "php",
	".cs":     "csharp",
	".c":      "c",
	".h":      "c",
	".cpp":    "cpp",
	".hpp":    "cpp",
	".swift":  "swift",
	".vue":    "vue",
	".svelte": "svelte",
	".css":    "css",
	".scss":   "scss",
	".less":   "less",
	".html":   "html",
	".json":   "json",
	".yaml":   "yaml",
	".yml":    "yaml",
	".toml":   "toml",
	".md":     "markdown",
	".mdx":    "markdown",
	".sql":    "sql",
	".sh":     "shell",
	".bash":   "shell",
	".proto":  "protobuf",

	".graphql": "graphql",
}

// Classify returns the category, language and binary flag for a file.
// size is informational and may be zero.
func Classify(p string, size int64) Result {
	p = paths.NormalizePath(p)
	lower := strings.ToLower(p)
	base := path.Base(lower)
	ext := paths.Ext(lower)

	r := Result{Language: Language(p), Size: size}
	if IsBinary(p) {
		r.Category = model.CategoryBinary
		r.IsBinary = true
		r.Language = ""
		return r
	}

	segments := strings.Split(lower, "/")
	dirs := segments[:len(segments)-1]

	switch {
	case isTest(base, dirs):
		r.Category = model.CategoryTest
	case isTypeDefinition(base, dirs):
		r.Category = model.CategoryTypes
	case isConfig(base, ext, len(dirs)):
		r.Category = model.CategoryConfig
	case hasDir(dirs, "api", "routes", "handlers", "controllers", "server", "endpoints"):
		r.Category = model.CategoryAPI
	case ext == ".tsx" || ext == ".jsx" || ext == ".vue" || ext == ".svelte" || hasDir(dirs, "components"):
		r.Category = model.CategoryComponent
	case hasDir(dirs, "utils", "util", "lib", "helpers", "shared", "common"):
		r.Category = model.CategoryUtility
	default:
		r.Category = model.CategoryOther
	}
	return r
}

// IsBinary reports whether p is a binary, asset, lockfile or bundled artifact.
func IsBinary(p string) bool {
	lower := strings.ToLower(paths.NormalizePath(p))
	base := path.Base(lower)
	if _, ok := lockfiles[base]; ok {
		return true
	}
	for _, suffix := range bundledSuffixes {
		if strings.HasSuffix(base, suffix) {
			return true
		}
	}
	_, ok := binaryExtensions[paths.Ext(base)]
	return ok
}

// Language returns the language tag for p, or "" when unknown.
func Language(p string) string {
	lower := strings.ToLower(p)
	if strings.HasSuffix(lower, ".d.ts") {
		return "typescript"
	}
	if lang, ok := languages[paths.Ext(lower)]; ok {
		return lang
	}
	switch path.Base(lower) {
	case "dockerfile":
		return "dockerfile"
	case "makefile":
		return "makefile"
	}
	return ""
}

func isTest(base string, dirs []string) bool {
	if strings.HasSuffix(base, "_test.go") ||
		strings.Contains(base, ".test.") ||
		strings.Contains(base, ".spec.") ||
		(strings.HasPrefix(base, "test_") && strings.HasSuffix(base, ".py")) ||
		strings.HasSuffix(base, "_test.py") {
		return true
	}
	return hasDir(dirs, "__tests__", "test", "tests", "__mocks__", "e2e")
}

func isTypeDefinition(base string, dirs []string) bool {
	if strings.HasSuffix(base, ".d.ts") || strings.HasSuffix(base, ".types.ts") {
		return true
	}
	if base == "types.ts" || base == "types.go" || base == "types.py" {
		return true
	}
	return hasDir(dirs, "types", "typings", "interfaces", "@types")
}

func isConfig(base, ext string, depth int) bool {
	if _, ok := configNames[base]; ok {
		return true
	}
	if strings.HasPrefix(base, ".env") {
		return true
	}
	if strings.Contains(base, ".config.") || strings.HasSuffix(base, "rc.js") || strings.HasSuffix(base, "rc.cjs") {
		return true
	}
	if _, ok := configDataExtensions[ext]; ok && depth <= 1 {
		return true
	}
	return false
}

func hasDir(dirs []string, names ...string) bool {
	for _, d := range dirs {
		for _, n := range names {
			if d == n {
				return true
			}
		}
	}
	return false
}

func toSet(items ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
	}
	return set
}
