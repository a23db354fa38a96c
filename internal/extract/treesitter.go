//go:build cgo

package extract

import (
	"context"
	"fmt"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

const treeSitterAvailable = true

// treeParser wraps a tree-sitter parser. sitter.Parser is not safe for
// concurrent use, so calls are serialized.
type treeParser struct {
	mu     sync.Mutex
	parser *sitter.Parser
}

func newTreeParser() *treeParser {
	return &treeParser{parser: sitter.NewParser()}
}

func (p *treeParser) supports(lang Language) bool {
	_, err := getLanguage(lang)
	return err == nil
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

func (p *treeParser) extract(ctx context.Context, lang Language, source []byte) (Result, error) {
	tsLang, err := getLanguage(lang)
	if err != nil {
		return Result{}, err
	}

	p.mu.Lock()
	p.parser.SetLanguage(tsLang)
	tree, err := p.parser.ParseCtx(ctx, nil, source)
	p.mu.Unlock()
	if err != nil {
		return Result{}, fmt.Errorf("parse error: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return Result{}, fmt.Errorf("syntax errors in source")
	}

	c := newCollector()
	switch lang {
	case LangGo:
		collectGo(root, source, c)
	case LangJavaScript, LangTypeScript, LangTSX:
		collectES(root, source, c)
	case LangPython:
		collectPython(root, source, c)
	}
	return c.result("treesitter"), nil
}

func collectGo(root *sitter.Node, source []byte, c *collector) {
	for _, spec := range findNodes(root, "import_spec") {
		if pathNode := spec.ChildByFieldName("path"); pathNode != nil {
			c.addImport(pathNode.Content(source))
		}
	}
	for _, decl := range findNodes(root, "function_declaration", "method_declaration", "type_spec") {
		if name := decl.ChildByFieldName("name"); name != nil && isExportedGo(name.Content(source)) {
			c.addExport(name.Content(source))
		}
	}
}

func collectES(root *sitter.Node, source []byte, c *collector) {
	for _, stmt := range findNodes(root, "import_statement", "export_statement") {
		if src := stmt.ChildByFieldName("source"); src != nil {
			c.addImport(src.Content(source))
		}
		if stmt.Type() != "export_statement" {
			continue
		}
		collectESExport(stmt, source, c)
	}

	// require("x") and import("x")
	for _, call := range findNodes(root, "call_expression") {
		fn := call.ChildByFieldName("function")
		args := call.ChildByFieldName("arguments")
		if fn == nil || args == nil || args.NamedChildCount() == 0 {
			continue
		}
		name := fn.Content(source)
		if name != "require" && fn.Type() != "import" {
			continue
		}
		if arg := args.NamedChild(0); arg.Type() == "string" {
			c.addImport(arg.Content(source))
		}
	}
}

func collectESExport(stmt *sitter.Node, source []byte, c *collector) {
	if decl := stmt.ChildByFieldName("declaration"); decl != nil {
		if name := decl.ChildByFieldName("name"); name != nil {
			c.addExport(name.Content(source))
			return
		}
		// export const a = 1, b = 2
		for _, d := range findNodes(decl, "variable_declarator") {
			if name := d.ChildByFieldName("name"); name != nil {
				c.addExport(name.Content(source))
			}
		}
		return
	}
	if value := stmt.ChildByFieldName("value"); value != nil {
		c.addExport("default")
		return
	}
	for _, spec := range findNodes(stmt, "export_specifier") {
		if alias := spec.ChildByFieldName("alias"); alias != nil {
			c.addExport(alias.Content(source))
		} else if name := spec.ChildByFieldName("name"); name != nil {
			c.addExport(name.Content(source))
		}
	}
}

func collectPython(root *sitter.Node, source []byte, c *collector) {
	for _, stmt := range findNodes(root, "import_from_statement") {
		if mod := stmt.ChildByFieldName("module_name"); mod != nil {
			c.addImport(mod.Content(source))
		}
	}
	for _, stmt := range findNodes(root, "import_statement") {
		for i := 0; i < int(stmt.NamedChildCount()); i++ {
			child := stmt.NamedChild(i)
			switch child.Type() {
			case "dotted_name":
				c.addImport(child.Content(source))
			case "aliased_import":
				if name := child.ChildByFieldName("name"); name != nil {
					c.addImport(name.Content(source))
				}
			}
		}
	}
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		if child.Type() == "decorated_definition" {
			child = child.ChildByFieldName("definition")
			if child == nil {
				continue
			}
		}
		if child.Type() != "function_definition" && child.Type() != "class_definition" {
			continue
		}
		if name := child.ChildByFieldName("name"); name != nil && !strings.HasPrefix(name.Content(source), "_") {
			c.addExport(name.Content(source))
		}
	}
}

// findNodes walks the tree and collects every node whose type is in types.
func findNodes(root *sitter.Node, types ...string) []*sitter.Node {
	var result []*sitter.Node

	var walk func(*sitter.Node)
	walk = func(node *sitter.Node) {
		if node == nil {
			return
		}
		for _, t := range types {
			if node.Type() == t {
				result = append(result, node)
				break
			}
		}
		for i := uint32(0); i < node.ChildCount(); i++ {
			walk(node.Child(int(i)))
		}
	}

	walk(root)
	return result
}
