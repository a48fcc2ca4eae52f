// # internal/extract/names.go
package extract

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"pybundle/internal/parser"
)

// sameNode reports whether two nodes are the same tree position.
// Accessors hand out freshly allocated *Node values, so pointer
// identity never matches; spans do.
func sameNode(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return false
	}
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte()
}

// freeNames collects every identifier that could be read inside node.
// This is deliberately conservative: no scope resolution happens here,
// only filtering of positions that can never be reads (attribute
// names, keyword-argument names, binding occurrences, import clauses).
func freeNames(src *parser.Source, node *sitter.Node) []string {
	var names []string
	walkReads(src, node, func(name string) {
		names = append(names, name)
	})
	return names
}

func walkReads(src *parser.Source, node *sitter.Node, sink func(string)) {
	if node == nil {
		return
	}

	switch node.Kind() {
	case "identifier":
		sink(src.Text(node))
		return
	case "attribute":
		// x.attr reads x; attr is not a name lookup.
		walkReads(src, node.ChildByFieldName("object"), sink)
		return
	case "keyword_argument":
		walkReads(src, node.ChildByFieldName("value"), sink)
		return
	case "import_statement", "import_from_statement", "future_import_statement":
		// Import clauses bind names, they do not read them.
		return
	case "function_definition", "class_definition":
		// A nested definition reads its decorators, defaults,
		// annotations, superclasses and body free names; its own
		// name is a binding.
		if params := node.ChildByFieldName("parameters"); params != nil {
			for _, n := range parameterDefaultNames(src, params) {
				sink(n)
			}
			for _, n := range parameterAnnotationNames(src, params) {
				sink(n)
			}
		}
		if ret := node.ChildByFieldName("return_type"); ret != nil {
			walkReads(src, ret, sink)
		}
		if supers := node.ChildByFieldName("superclasses"); supers != nil {
			walkReads(src, supers, sink)
		}
		if body := node.ChildByFieldName("body"); body != nil {
			walkReads(src, body, sink)
		}
		return
	case "lambda":
		if params := node.ChildByFieldName("parameters"); params != nil {
			for _, n := range parameterDefaultNames(src, params) {
				sink(n)
			}
		}
		walkReads(src, node.ChildByFieldName("body"), sink)
		return
	}

	for i := uint(0); i < node.NamedChildCount(); i++ {
		walkReads(src, node.NamedChild(i), sink)
	}
}

// parameterDefaultNames returns names read by parameter default values.
func parameterDefaultNames(src *parser.Source, params *sitter.Node) []string {
	var names []string
	for i := uint(0); i < params.NamedChildCount(); i++ {
		p := params.NamedChild(i)
		if value := p.ChildByFieldName("value"); value != nil {
			names = append(names, freeNames(src, value)...)
		}
	}
	return names
}

// parameterAnnotationNames returns names referenced by parameter type
// annotations only.
func parameterAnnotationNames(src *parser.Source, params *sitter.Node) []string {
	var names []string
	for i := uint(0); i < params.NamedChildCount(); i++ {
		p := params.NamedChild(i)
		if typ := p.ChildByFieldName("type"); typ != nil {
			names = append(names, freeNames(src, typ)...)
		}
	}
	return names
}

// targetNames returns the plain names bound by an assignment target
// (identifiers, tuple/list patterns, starred targets). Attribute and
// subscript targets bind nothing new.
func targetNames(src *parser.Source, target *sitter.Node) []string {
	var names []string
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		switch n.Kind() {
		case "identifier":
			names = append(names, src.Text(n))
		case "pattern_list", "tuple_pattern", "list_pattern", "list_splat_pattern":
			for i := uint(0); i < n.NamedChildCount(); i++ {
				walk(n.NamedChild(i))
			}
		case "attribute", "subscript":
			// Mutation of an existing object, not a new binding.
		}
	}
	walk(target)
	return names
}

func hasNonNameTarget(target *sitter.Node) bool {
	switch target.Kind() {
	case "attribute", "subscript":
		return true
	case "pattern_list", "tuple_pattern", "list_pattern":
		for i := uint(0); i < target.NamedChildCount(); i++ {
			if hasNonNameTarget(target.NamedChild(i)) {
				return true
			}
		}
	}
	return false
}

func containsCall(node *sitter.Node) bool {
	if node == nil {
		return false
	}
	switch node.Kind() {
	case "call", "await":
		return true
	case "lambda", "function_definition", "class_definition":
		// Calls inside a deferred body do not run at assignment time.
		return false
	}
	for i := uint(0); i < node.NamedChildCount(); i++ {
		if containsCall(node.NamedChild(i)) {
			return true
		}
	}
	return false
}

// stringListLiterals extracts the string elements of a list or tuple
// literal, for __all__ handling.
func stringListLiterals(src *parser.Source, node *sitter.Node) []string {
	var out []string
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		switch n.Kind() {
		case "string":
			if content := stringContent(src, n); content != "" {
				out = append(out, content)
			}
		case "list", "tuple", "set", "parenthesized_expression", "expression_list":
			for i := uint(0); i < n.NamedChildCount(); i++ {
				walk(n.NamedChild(i))
			}
		}
	}
	walk(node)
	return out
}

// stringContent returns the literal text of a simple string node
// without quotes, or "" when the string has interpolations.
func stringContent(src *parser.Source, str *sitter.Node) string {
	var content string
	for i := uint(0); i < str.NamedChildCount(); i++ {
		child := str.NamedChild(i)
		switch child.Kind() {
		case "string_content":
			content += src.Text(child)
		case "interpolation":
			return ""
		}
	}
	return content
}

// bindingsIn collects the module-scope names a compound statement may
// bind in any of its branches: assignments, defs, imports and loop
// targets, without descending into nested function or class bodies.
func bindingsIn(src *parser.Source, node *sitter.Node) []string {
	var names []string
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		switch n.Kind() {
		case "function_definition", "class_definition":
			if nameNode := n.ChildByFieldName("name"); nameNode != nil {
				names = append(names, src.Text(nameNode))
			}
			return
		case "assignment", "augmented_assignment":
			if left := n.ChildByFieldName("left"); left != nil {
				names = append(names, targetNames(src, left)...)
			}
			if right := n.ChildByFieldName("right"); right != nil {
				walk(right)
			}
			return
		case "named_expression":
			if nameNode := n.ChildByFieldName("name"); nameNode != nil {
				names = append(names, src.Text(nameNode))
			}
		case "for_statement":
			if left := n.ChildByFieldName("left"); left != nil {
				names = append(names, targetNames(src, left)...)
			}
		case "as_pattern":
			if alias := n.ChildByFieldName("alias"); alias != nil {
				names = append(names, targetNames(src, alias)...)
			}
		case "import_statement", "import_from_statement":
			for _, bound := range importBindings(src, n) {
				names = append(names, bound)
			}
			return
		case "lambda":
			return
		}
		for i := uint(0); i < n.NamedChildCount(); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(node)
	return names
}

// importBindings returns the local names an import statement binds.
func importBindings(src *parser.Source, node *sitter.Node) []string {
	var names []string
	switch node.Kind() {
	case "import_statement":
		for i := uint(0); i < node.NamedChildCount(); i++ {
			child := node.NamedChild(i)
			switch child.Kind() {
			case "dotted_name":
				names = append(names, strings.SplitN(src.Text(child), ".", 2)[0])
			case "aliased_import":
				if alias := child.ChildByFieldName("alias"); alias != nil {
					names = append(names, src.Text(alias))
				}
			}
		}
	case "import_from_statement":
		moduleNode := node.ChildByFieldName("module_name")
		for i := uint(0); i < node.NamedChildCount(); i++ {
			child := node.NamedChild(i)
			if sameNode(child, moduleNode) {
				continue
			}
			switch child.Kind() {
			case "dotted_name", "identifier":
				names = append(names, src.Text(child))
			case "aliased_import":
				if alias := child.ChildByFieldName("alias"); alias != nil {
					names = append(names, src.Text(alias))
				}
			}
		}
	}
	return names
}
