package extract

import (
	"context"
	"log/slog"

	"ctxasm/internal/slogutil"
)

// Extractor extracts imports and exports from file content.
type Extractor struct {
	parser *treeParser
	logger *slog.Logger
}

// New creates an Extractor. The tree-sitter parser is used when available.
func New(logger *slog.Logger) *Extractor {
	return &Extractor{
		parser: newTreeParser(),
		logger: slogutil.OrDiscard(logger),
	}
}

// Extract returns the import/export edges of the file at path. Unsupported
// languages yield an empty Result. Parse failures fall back to patterns.
func (e *Extractor) Extract(ctx context.Context, path, content string) Result {
	lang, ok := LanguageFromPath(path)
	if !ok || content == "" {
		return Result{Parser: "pattern"}
	}

	if e.parser != nil && e.parser.supports(lang) {
		res, err := e.parser.extract(ctx, lang, []byte(content))
		if err == nil {
			return res
		}
		e.logger.Debug("tree-sitter extraction failed, using patterns", "path", path, "error", err)
	}
	return extractPatterns(lang, content)
}

// TreeSitterAvailable reports whether this build parses with tree-sitter.
func TreeSitterAvailable() bool {
	return treeSitterAvailable
}
