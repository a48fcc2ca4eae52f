// # internal/parser/parser.go
package parser

import (
	"errors"
	"fmt"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// Source is a parsed module: its path, raw bytes and syntax tree.
// The tree borrows from Content; callers must Close it when done.
type Source struct {
	Path    string
	Content []byte
	tree    *sitter.Tree
}

func (s *Source) Root() *sitter.Node {
	return s.tree.RootNode()
}

func (s *Source) Close() {
	if s.tree != nil {
		s.tree.Close()
		s.tree = nil
	}
}

func (s *Source) Text(node *sitter.Node) string {
	return string(s.Content[node.StartByte():node.EndByte()])
}

func (s *Source) Location(node *sitter.Node) Location {
	return Location{
		File:   s.Path,
		Line:   int(node.StartPosition().Row) + 1,
		Column: int(node.StartPosition().Column) + 1,
	}
}

type Parser struct {
	lang *sitter.Language
}

func NewParser() *Parser {
	return &Parser{lang: pythonLanguage()}
}

// Parse produces the syntax tree for one module. Syntax errors are
// reported as *ParseError pointing at the first broken node.
func (p *Parser) Parse(path string, content []byte) (*Source, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(p.lang); err != nil {
		return nil, fmt.Errorf("set language: %w", err)
	}

	tree := parser.Parse(content, nil)
	if tree == nil {
		return nil, errors.New("parse failed")
	}

	src := &Source{Path: path, Content: content, tree: tree}

	if node := firstErrorNode(tree.RootNode()); node != nil {
		loc := src.Location(node)
		src.Close()
		return nil, &ParseError{
			Location: loc,
			Message:  fmt.Sprintf("syntax error at line %d, column %d", loc.Line, loc.Column),
		}
	}

	return src, nil
}

func firstErrorNode(node *sitter.Node) *sitter.Node {
	if node.IsError() || node.IsMissing() {
		return node
	}
	if !node.HasError() {
		return nil
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		if found := firstErrorNode(node.Child(i)); found != nil {
			return found
		}
	}
	return node
}
