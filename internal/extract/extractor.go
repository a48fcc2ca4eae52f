// # internal/extract/extractor.go
package extract

import (
	"sort"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"pybundle/internal/parser"
)

// Extract walks one module's syntax tree and produces its ordered item
// list. It is a pure function of a single module and never fails on a
// tree the parser accepted; ambiguous side-effect status defaults to
// "has side effects" so such items are never pruned.
func Extract(src *parser.Source) *ModuleSource {
	e := &extractor{src: src, out: &ModuleSource{Path: src.Path}}

	root := src.Root()
	for i := uint(0); i < root.NamedChildCount(); i++ {
		stmt := root.NamedChild(i)
		if stmt.Kind() == "comment" {
			continue
		}
		before := len(e.out.Items)
		e.statement(stmt)
		if len(e.out.Items) > before {
			e.nestedImports(stmt, before)
		}
	}

	collectUses(src, e.out)

	for i := range e.out.Items {
		if e.out.Items[i].HasSideEffects {
			e.out.HasSideEffects = true
			break
		}
	}

	return e.out
}

type extractor struct {
	src *parser.Source
	out *ModuleSource
}

func (e *extractor) emit(item Item, node *sitter.Node) {
	item.ID = len(e.out.Items)
	item.StartByte = node.StartByte()
	item.EndByte = node.EndByte()
	item.Location = e.src.Location(node)
	sortUnique(&item.Declares)
	sortUnique(&item.Reads)
	sortUnique(&item.TypeReads)
	e.out.Items = append(e.out.Items, item)
}

func (e *extractor) statement(node *sitter.Node) {
	switch node.Kind() {
	case "import_statement":
		e.plainImport(node)
	case "import_from_statement", "future_import_statement":
		e.fromImport(node)
	case "function_definition":
		e.functionDef(node, node, false)
	case "class_definition":
		e.classDef(node, node, false)
	case "decorated_definition":
		e.decorated(node)
	case "expression_statement":
		e.expression(node)
	case "if_statement":
		e.block(node, KindConditional)
	case "try_statement":
		e.block(node, KindTry)
	case "global_statement", "nonlocal_statement", "pass_statement":
		e.emit(Item{Kind: KindOther}, node)
	default:
		// for/while/with/match/assert/raise/del and anything else:
		// executable top-level code, conservatively side-effecting.
		item := Item{Kind: KindOther, HasSideEffects: true}
		item.Declares = bindingsIn(e.src, node)
		item.Reads = freeNames(e.src, node)
		e.emit(item, node)
	}
}

// plainImport yields one item per imported module so each binding can
// be tracked (and elided) independently. The items share the statement
// span; the printer re-renders imports from their fields, never from
// overlapping source slices.
func (e *extractor) plainImport(node *sitter.Node) {
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		switch child.Kind() {
		case "dotted_name":
			module := e.src.Text(child)
			bound := strings.SplitN(module, ".", 2)[0]
			e.emit(Item{
				Kind:     KindImport,
				Module:   module,
				Declares: []string{bound},
			}, node)
		case "aliased_import":
			name := child.ChildByFieldName("name")
			alias := child.ChildByFieldName("alias")
			if name == nil || alias == nil {
				continue
			}
			e.emit(Item{
				Kind:     KindImport,
				Module:   e.src.Text(name),
				Names:    []ImportedName{{Name: e.src.Text(name), Alias: e.src.Text(alias)}},
				Declares: []string{e.src.Text(alias)},
			}, node)
		}
	}
}

func (e *extractor) fromImport(node *sitter.Node) {
	item := Item{Kind: KindFromImport}

	moduleNode := node.ChildByFieldName("module_name")
	if moduleNode != nil {
		switch moduleNode.Kind() {
		case "relative_import":
			text := e.src.Text(moduleNode)
			item.Level = len(text) - len(strings.TrimLeft(text, "."))
			item.Module = strings.TrimLeft(text, ".")
		default:
			item.Module = e.src.Text(moduleNode)
		}
	}

	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if sameNode(child, moduleNode) {
			continue
		}
		switch child.Kind() {
		case "wildcard_import":
			item.Star = true
		case "dotted_name", "identifier":
			name := e.src.Text(child)
			item.Names = append(item.Names, ImportedName{Name: name})
			item.Declares = append(item.Declares, name)
		case "aliased_import":
			nameNode := child.ChildByFieldName("name")
			aliasNode := child.ChildByFieldName("alias")
			if nameNode == nil || aliasNode == nil {
				continue
			}
			imported := ImportedName{Name: e.src.Text(nameNode), Alias: e.src.Text(aliasNode)}
			item.Names = append(item.Names, imported)
			item.Declares = append(item.Declares, imported.Alias)
		}
	}

	e.emit(item, node)
}

// nestedImports records import statements buried inside a top-level
// statement. They bind no module-scope names, but the dependency they
// express is real: a first-party target has to be bundled for the
// deferred import to resolve.
func (e *extractor) nestedImports(stmt *sitter.Node, itemID int) {
	switch stmt.Kind() {
	case "import_statement", "import_from_statement", "future_import_statement":
		return
	}

	var walk func(n *sitter.Node, inBody bool)
	walk = func(n *sitter.Node, inBody bool) {
		switch n.Kind() {
		case "import_statement":
			for i := uint(0); i < n.NamedChildCount(); i++ {
				child := n.NamedChild(i)
				switch child.Kind() {
				case "dotted_name":
					e.out.NestedImports = append(e.out.NestedImports, NestedImport{
						Plain:    true,
						Module:   e.src.Text(child),
						InBody:   inBody,
						Item:     itemID,
						Location: e.src.Location(n),
					})
				case "aliased_import":
					name := child.ChildByFieldName("name")
					alias := child.ChildByFieldName("alias")
					if name == nil || alias == nil {
						continue
					}
					e.out.NestedImports = append(e.out.NestedImports, NestedImport{
						Plain:    true,
						Module:   e.src.Text(name),
						Names:    []ImportedName{{Name: e.src.Text(name), Alias: e.src.Text(alias)}},
						InBody:   inBody,
						Item:     itemID,
						Location: e.src.Location(n),
					})
				}
			}
			return
		case "import_from_statement":
			ni := NestedImport{InBody: inBody, Item: itemID, Location: e.src.Location(n)}
			moduleNode := n.ChildByFieldName("module_name")
			if moduleNode != nil {
				text := e.src.Text(moduleNode)
				ni.Level = len(text) - len(strings.TrimLeft(text, "."))
				ni.Module = strings.TrimLeft(text, ".")
			}
			for i := uint(0); i < n.NamedChildCount(); i++ {
				child := n.NamedChild(i)
				if sameNode(child, moduleNode) {
					continue
				}
				switch child.Kind() {
				case "wildcard_import":
					ni.Star = true
				case "dotted_name", "identifier":
					ni.Names = append(ni.Names, ImportedName{Name: e.src.Text(child)})
				case "aliased_import":
					name := child.ChildByFieldName("name")
					alias := child.ChildByFieldName("alias")
					if name == nil || alias == nil {
						continue
					}
					ni.Names = append(ni.Names, ImportedName{Name: e.src.Text(name), Alias: e.src.Text(alias)})
				}
			}
			e.out.NestedImports = append(e.out.NestedImports, ni)
			return
		case "function_definition", "class_definition", "lambda":
			inBody = true
		}
		for i := uint(0); i < n.NamedChildCount(); i++ {
			walk(n.NamedChild(i), inBody)
		}
	}
	walk(stmt, false)
}

func (e *extractor) decorated(node *sitter.Node) {
	def := node.ChildByFieldName("definition")
	if def == nil {
		item := Item{Kind: KindOther, HasSideEffects: true}
		item.Reads = freeNames(e.src, node)
		e.emit(item, node)
		return
	}
	switch def.Kind() {
	case "function_definition":
		e.functionDef(node, def, true)
	case "class_definition":
		e.classDef(node, def, true)
	}
}

// functionDef reads every free variable referenced in the body,
// decorators and default values (conservatively: "could this name be
// read"); annotation references go to TypeReads so they stay weak.
func (e *extractor) functionDef(span, def *sitter.Node, decorated bool) {
	nameNode := def.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := e.src.Text(nameNode)

	item := Item{
		Kind:     KindFunctionDef,
		Name:     name,
		Declares: []string{name},
		// Decorators execute at definition time.
		HasSideEffects: decorated,
	}

	if body := def.ChildByFieldName("body"); body != nil {
		item.Reads = freeNames(e.src, body)
	}
	if params := def.ChildByFieldName("parameters"); params != nil {
		item.Reads = append(item.Reads, parameterDefaultNames(e.src, params)...)
		item.TypeReads = append(item.TypeReads, parameterAnnotationNames(e.src, params)...)
	}
	if ret := def.ChildByFieldName("return_type"); ret != nil {
		item.TypeReads = append(item.TypeReads, freeNames(e.src, ret)...)
	}
	if decorated {
		for i := uint(0); i < span.NamedChildCount(); i++ {
			child := span.NamedChild(i)
			if child.Kind() == "decorator" {
				item.Reads = append(item.Reads, freeNames(e.src, child)...)
			}
		}
	}

	e.emit(item, span)
}

func (e *extractor) classDef(span, def *sitter.Node, decorated bool) {
	nameNode := def.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := e.src.Text(nameNode)

	item := Item{
		Kind:           KindClassDef,
		Name:           name,
		Declares:       []string{name},
		HasSideEffects: decorated,
	}

	if supers := def.ChildByFieldName("superclasses"); supers != nil {
		item.Reads = append(item.Reads, freeNames(e.src, supers)...)
	}
	if body := def.ChildByFieldName("body"); body != nil {
		item.Reads = append(item.Reads, freeNames(e.src, body)...)
	}
	if decorated {
		for i := uint(0); i < span.NamedChildCount(); i++ {
			child := span.NamedChild(i)
			if child.Kind() == "decorator" {
				item.Reads = append(item.Reads, freeNames(e.src, child)...)
			}
		}
	}

	e.emit(item, span)
}

func (e *extractor) expression(node *sitter.Node) {
	inner := node.NamedChild(0)
	if inner == nil {
		e.emit(Item{Kind: KindExpression}, node)
		return
	}

	switch inner.Kind() {
	case "assignment":
		e.assignment(node, inner, false)
	case "augmented_assignment":
		e.assignment(node, inner, true)
	case "string":
		// Docstring: pure, prunable.
		e.emit(Item{Kind: KindExpression}, node)
	default:
		item := Item{Kind: KindExpression, HasSideEffects: true}
		item.Reads = freeNames(e.src, inner)
		e.emit(item, node)
	}
}

func (e *extractor) assignment(span, node *sitter.Node, augmented bool) {
	item := Item{Kind: KindAssignment}

	left := node.ChildByFieldName("left")
	right := node.ChildByFieldName("right")

	if left != nil {
		item.Targets = targetNames(e.src, left)
		item.Declares = append(item.Declares, item.Targets...)
		// Attribute/subscript targets mutate existing objects.
		if hasNonNameTarget(left) {
			item.HasSideEffects = true
			item.Reads = append(item.Reads, freeNames(e.src, left)...)
		}
	}
	if augmented && left != nil {
		item.HasSideEffects = true
		item.Reads = append(item.Reads, targetNames(e.src, left)...)
	}
	if right != nil {
		item.Reads = append(item.Reads, freeNames(e.src, right)...)
		if containsCall(right) {
			item.HasSideEffects = true
		}
	}
	if annotation := node.ChildByFieldName("type"); annotation != nil {
		item.TypeReads = append(item.TypeReads, freeNames(e.src, annotation)...)
	}

	// An explicit export list marks every listed name re-exported.
	if len(item.Targets) == 1 && item.Targets[0] == "__all__" && right != nil {
		item.Reexports = stringListLiterals(e.src, right)
		e.out.Reexports = append(e.out.Reexports, item.Reexports...)
	}

	e.emit(item, span)
}

// block captures a conditional or try block as a single item: its
// reads are the union of all names referenced inside, its declares are
// the names any branch may bind at module scope.
func (e *extractor) block(node *sitter.Node, kind ItemKind) {
	item := Item{Kind: kind, HasSideEffects: true}
	item.Declares = bindingsIn(e.src, node)
	item.Reads = freeNames(e.src, node)
	e.emit(item, node)
}

func sortUnique(names *[]string) {
	if len(*names) < 2 {
		return
	}
	sort.Strings(*names)
	out := (*names)[:1]
	for _, n := range (*names)[1:] {
		if n != out[len(out)-1] {
			out = append(out, n)
		}
	}
	*names = out
}
