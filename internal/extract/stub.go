//go:build !cgo

package extract

import (
	"context"
	"errors"
)

const treeSitterAvailable = false

// ErrNoCGO is returned when tree-sitter parsing is unavailable due to missing CGO.
var ErrNoCGO = errors.New("tree-sitter extraction requires CGO")

// treeParser is a placeholder for non-CGO builds; New leaves it nil.
type treeParser struct{}

func newTreeParser() *treeParser {
	return nil
}

func (p *treeParser) supports(Language) bool {
	return false
}

func (p *treeParser) extract(context.Context, Language, []byte) (Result, error) {
	return Result{}, ErrNoCGO
}
