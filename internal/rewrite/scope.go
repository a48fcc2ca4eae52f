// # internal/rewrite/scope.go
package rewrite

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"pybundle/internal/parser"
)

type scopeKind int

const (
	scopeModule scopeKind = iota
	scopeFunction
	scopeClass
	scopeComprehension
)

// scope tracks the names bound locally in one lexical scope. A name is
// bound for the whole scope regardless of where the binding statement
// sits, matching the source language's local-variable semantics.
type scope struct {
	kind   scopeKind
	bound  map[string]bool
	parent *scope
}

func newScope(kind scopeKind, parent *scope) *scope {
	return &scope{kind: kind, bound: make(map[string]bool), parent: parent}
}

func (s *scope) bind(name string) {
	s.bound[name] = true
}

// shadows reports whether name refers to a local rather than the
// module-scope symbol: bound in the current scope, or in any enclosing
// function or comprehension scope. Class scopes do not enclose nested
// scopes and the module scope holds the globals being renamed.
func (s *scope) shadows(name string) bool {
	for cur := s; cur != nil; cur = cur.parent {
		if cur.kind == scopeModule {
			return false
		}
		if cur != s && cur.kind == scopeClass {
			continue
		}
		if cur.bound[name] {
			return true
		}
	}
	return false
}

// collectBindings gathers every name a scope body binds: assignments,
// walrus targets, loop and with/except targets, def and class names,
// import bindings. It does not descend into nested function, class or
// comprehension scopes, and honors global/nonlocal escape hatches by
// removing their names afterwards.
func collectBindings(src *parser.Source, body *sitter.Node, sc *scope) {
	var escaped []string

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		switch n.Kind() {
		case "function_definition", "class_definition":
			if name := n.ChildByFieldName("name"); name != nil {
				sc.bind(src.Text(name))
			}
			return
		case "lambda", "list_comprehension", "set_comprehension",
			"dictionary_comprehension", "generator_expression":
			return
		case "assignment", "augmented_assignment":
			if left := n.ChildByFieldName("left"); left != nil {
				bindTargets(src, left, sc)
			}
			walk(n.ChildByFieldName("right"))
			return
		case "named_expression":
			if name := n.ChildByFieldName("name"); name != nil {
				sc.bind(src.Text(name))
			}
			walk(n.ChildByFieldName("value"))
			return
		case "for_statement":
			if left := n.ChildByFieldName("left"); left != nil {
				bindTargets(src, left, sc)
			}
		case "as_pattern":
			if alias := n.ChildByFieldName("alias"); alias != nil {
				bindTargets(src, alias, sc)
			}
		case "import_statement", "import_from_statement":
			bindImport(src, n, sc)
			return
		case "global_statement", "nonlocal_statement":
			for i := uint(0); i < n.NamedChildCount(); i++ {
				escaped = append(escaped, src.Text(n.NamedChild(i)))
			}
			return
		}
		for i := uint(0); i < n.NamedChildCount(); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(body)

	for _, name := range escaped {
		delete(sc.bound, name)
	}
}

func bindTargets(src *parser.Source, target *sitter.Node, sc *scope) {
	switch target.Kind() {
	case "identifier":
		sc.bind(src.Text(target))
	case "pattern_list", "tuple_pattern", "list_pattern", "list_splat_pattern", "as_pattern_target":
		for i := uint(0); i < target.NamedChildCount(); i++ {
			bindTargets(src, target.NamedChild(i), sc)
		}
	}
}

func bindParameters(src *parser.Source, params *sitter.Node, sc *scope) {
	if params == nil {
		return
	}
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch n.Kind() {
		case "identifier":
			sc.bind(src.Text(n))
			return
		case "typed_parameter", "default_parameter", "typed_default_parameter":
			// Only the parameter name binds; annotation and default
			// belong to the enclosing scope.
			if name := n.ChildByFieldName("name"); name != nil {
				walk(name)
				return
			}
			if n.NamedChildCount() > 0 {
				walk(n.NamedChild(0))
			}
			return
		case "list_splat_pattern", "dictionary_splat_pattern", "tuple_pattern":
			for i := uint(0); i < n.NamedChildCount(); i++ {
				walk(n.NamedChild(i))
			}
			return
		}
	}
	for i := uint(0); i < params.NamedChildCount(); i++ {
		walk(params.NamedChild(i))
	}
}

func bindImport(src *parser.Source, stmt *sitter.Node, sc *scope) {
	switch stmt.Kind() {
	case "import_statement":
		for i := uint(0); i < stmt.NamedChildCount(); i++ {
			child := stmt.NamedChild(i)
			switch child.Kind() {
			case "dotted_name":
				sc.bind(strings.SplitN(src.Text(child), ".", 2)[0])
			case "aliased_import":
				if alias := child.ChildByFieldName("alias"); alias != nil {
					sc.bind(src.Text(alias))
				}
			}
		}
	case "import_from_statement":
		moduleNode := stmt.ChildByFieldName("module_name")
		for i := uint(0); i < stmt.NamedChildCount(); i++ {
			child := stmt.NamedChild(i)
			if sameNode(child, moduleNode) {
				continue
			}
			switch child.Kind() {
			case "dotted_name", "identifier":
				sc.bind(src.Text(child))
			case "aliased_import":
				if alias := child.ChildByFieldName("alias"); alias != nil {
					sc.bind(src.Text(alias))
				}
			}
		}
	}
}
