// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package extractor

import (
	"context"
	"fmt"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/rtk-project/rtk/pkg/artifact"
)

// TreeSitterExtractor is the grammar-based SymbolExtractor backend:
// precise AST node matching instead of regex, for the languages that
// have a compiled grammar available. Any parse failure is returned as
// an error so the Router falls back to the regex backend for that
// file.
type TreeSitterExtractor struct {
	init sync.Once
	pool map[string]*sync.Pool
}

// NewTreeSitterExtractor constructs the grammar-based backend. Parser
// pools for every supported language are built lazily on first use,
// behind one sync.Once guard.
func NewTreeSitterExtractor() *TreeSitterExtractor {
	return &TreeSitterExtractor{}
}

func (e *TreeSitterExtractor) ensurePools() {
	e.init.Do(func() {
		e.pool = map[string]*sync.Pool{
			"go": {New: func() any {
				p := sitter.NewParser()
				p.SetLanguage(golang.GetLanguage())
				return p
			}},
			"python": {New: func() any {
				p := sitter.NewParser()
				p.SetLanguage(python.GetLanguage())
				return p
			}},
			"javascript": {New: func() any {
				p := sitter.NewParser()
				p.SetLanguage(javascript.GetLanguage())
				return p
			}},
			"typescript": {New: func() any {
				p := sitter.NewParser()
				p.SetLanguage(typescript.GetLanguage())
				return p
			}},
		}
	})
}

// Supports reports whether a compiled grammar exists for language.
func (e *TreeSitterExtractor) Supports(language string) bool {
	e.ensurePools()
	_, ok := e.pool[language]
	return ok
}

func (e *TreeSitterExtractor) Extract(language string, content []byte, limits Limits) (FileOutput, error) {
	e.ensurePools()
	poolEntry, ok := e.pool[language]
	if !ok {
		return FileOutput{}, fmt.Errorf("extractor: no grammar for %s", language)
	}

	parser := poolEntry.Get().(*sitter.Parser)
	defer poolEntry.Put(parser)

	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return FileOutput{}, fmt.Errorf("extractor: parse %s: %w", language, err)
	}
	if tree == nil {
		return FileOutput{}, fmt.Errorf("extractor: nil parse tree for %s", language)
	}
	root := tree.RootNode()
	if root == nil || root.HasError() {
		return FileOutput{}, fmt.Errorf("extractor: syntax error in %s file", language)
	}

	var out FileOutput
	switch language {
	case "go":
		out = walkGo(root, content, limits)
	case "python":
		out = walkPython(root, content, limits)
	case "javascript", "typescript":
		out = walkJSLike(root, content, limits, language == "typescript")
	}
	out.Symbols = capSymbols(out.Symbols, limits.MaxSymbolsPerFile)
	out.Imports = dedupeImports(out.Imports, limits.MaxImportsPerFile)
	return out, nil
}

func nodeText(n *sitter.Node, content []byte) string {
	if n == nil {
		return ""
	}
	return n.Content(content)
}

func walkGo(root *sitter.Node, content []byte, limits Limits) FileOutput {
	var out FileOutput
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		for i := 0; i < int(n.ChildCount()); i++ {
			c := n.Child(i)
			switch c.Type() {
			case "function_declaration":
				if name := c.ChildByFieldName("name"); name != nil {
					out.Symbols = append(out.Symbols, artifact.SymbolRecord{
						Kind: artifact.SymbolFunction, Name: nodeText(name, content),
						Signature:  truncateSignature(nodeText(c, content), limits.MaxSignatureWidth),
						Visibility: goVisibility(nodeText(name, content)),
						Line:       int(c.StartPoint().Row) + 1,
					})
				}
			case "method_declaration":
				if name := c.ChildByFieldName("name"); name != nil {
					out.Symbols = append(out.Symbols, artifact.SymbolRecord{
						Kind: artifact.SymbolMethod, Name: nodeText(name, content),
						Signature:  truncateSignature(nodeText(c, content), limits.MaxSignatureWidth),
						Visibility: goVisibility(nodeText(name, content)),
						Line:       int(c.StartPoint().Row) + 1,
					})
				}
			case "type_spec":
				if name := c.ChildByFieldName("name"); name != nil {
					kind := artifact.SymbolTypeAlias
					if typeNode := c.ChildByFieldName("type"); typeNode != nil {
						switch typeNode.Type() {
						case "struct_type":
							kind = artifact.SymbolStruct
						case "interface_type":
							kind = artifact.SymbolInterface
						}
					}
					out.Symbols = append(out.Symbols, artifact.SymbolRecord{
						Kind: kind, Name: nodeText(name, content),
						Signature:  truncateSignature(nodeText(c, content), limits.MaxSignatureWidth),
						Visibility: goVisibility(nodeText(name, content)),
						Line:       int(c.StartPoint().Row) + 1,
					})
				}
			case "import_spec":
				if pathNode := c.ChildByFieldName("path"); pathNode != nil {
					out.Imports = append(out.Imports, normalizeImport(nodeText(pathNode, content), nil))
				}
			}
			walk(c)
		}
	}
	walk(root)
	return out
}

func walkPython(root *sitter.Node, content []byte, limits Limits) FileOutput {
	var out FileOutput
	var walk func(n *sitter.Node, depth int)
	walk = func(n *sitter.Node, depth int) {
		for i := 0; i < int(n.ChildCount()); i++ {
			c := n.Child(i)
			switch c.Type() {
			case "class_definition":
				if name := c.ChildByFieldName("name"); name != nil {
					out.Symbols = append(out.Symbols, artifact.SymbolRecord{
						Kind: artifact.SymbolClass, Name: nodeText(name, content),
						Signature:  truncateSignature(firstLine(nodeText(c, content)), limits.MaxSignatureWidth),
						Visibility: pythonVisibility(nodeText(name, content)),
						Line:       int(c.StartPoint().Row) + 1,
					})
				}
			case "function_definition":
				kind := artifact.SymbolFunction
				if depth > 0 {
					kind = artifact.SymbolMethod
				}
				if name := c.ChildByFieldName("name"); name != nil {
					out.Symbols = append(out.Symbols, artifact.SymbolRecord{
						Kind: kind, Name: nodeText(name, content),
						Signature:  truncateSignature(firstLine(nodeText(c, content)), limits.MaxSignatureWidth),
						Visibility: pythonVisibility(nodeText(name, content)),
						Line:       int(c.StartPoint().Row) + 1,
					})
				}
			case "import_statement", "import_from_statement":
				out.Imports = append(out.Imports, normalizeImport(pythonImportModule(c, content), nil))
			}
			walk(c, depth+1)
		}
	}
	walk(root, 0)
	return out
}

func walkJSLike(root *sitter.Node, content []byte, limits Limits, typescriptMode bool) FileOutput {
	var out FileOutput
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		for i := 0; i < int(n.ChildCount()); i++ {
			c := n.Child(i)
			switch c.Type() {
			case "class_declaration":
				if name := c.ChildByFieldName("name"); name != nil {
					out.Symbols = append(out.Symbols, artifact.SymbolRecord{
						Kind: artifact.SymbolClass, Name: nodeText(name, content),
						Signature:  truncateSignature(firstLine(nodeText(c, content)), limits.MaxSignatureWidth),
						Visibility: artifact.VisibilityPublic,
						Line:       int(c.StartPoint().Row) + 1,
					})
				}
			case "function_declaration":
				if name := c.ChildByFieldName("name"); name != nil {
					out.Symbols = append(out.Symbols, artifact.SymbolRecord{
						Kind: artifact.SymbolFunction, Name: nodeText(name, content),
						Signature:  truncateSignature(firstLine(nodeText(c, content)), limits.MaxSignatureWidth),
						Visibility: artifact.VisibilityPublic,
						Line:       int(c.StartPoint().Row) + 1,
					})
				}
			case "interface_declaration":
				if typescriptMode {
					if name := c.ChildByFieldName("name"); name != nil {
						out.Symbols = append(out.Symbols, artifact.SymbolRecord{
							Kind: artifact.SymbolInterface, Name: nodeText(name, content),
							Signature:  truncateSignature(firstLine(nodeText(c, content)), limits.MaxSignatureWidth),
							Visibility: artifact.VisibilityPublic,
							Line:       int(c.StartPoint().Row) + 1,
						})
					}
				}
			case "import_statement":
				if lit := findStringLiteral(c); lit != nil {
					out.Imports = append(out.Imports, normalizeImport(nodeText(lit, content), nil))
				}
			}
			walk(c)
		}
	}
	walk(root)
	return out
}

// findStringLiteral returns the first string/string_literal descendant
// of n, used to pull the bare module path out of an import statement
// node without depending on exact grammar punctuation.
func findStringLiteral(n *sitter.Node) *sitter.Node {
	if n.Type() == "string" || n.Type() == "string_literal" {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if found := findStringLiteral(n.Child(i)); found != nil {
			return found
		}
	}
	return nil
}

// pythonImportModule pulls the dotted module name out of an "import
// x.y" or "from x.y import z" node: the dotted_name/identifier child
// that precedes any "import" keyword token.
func pythonImportModule(n *sitter.Node, content []byte) string {
	if mod := n.ChildByFieldName("module_name"); mod != nil {
		return nodeText(mod, content)
	}
	if mod := n.ChildByFieldName("name"); mod != nil {
		return nodeText(mod, content)
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c.Type() == "dotted_name" || c.Type() == "identifier" {
			return nodeText(c, content)
		}
	}
	return ""
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
