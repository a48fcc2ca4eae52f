// # internal/rewrite/rewriter.go
package rewrite

import (
	"fmt"
	"sort"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"pybundle/internal/extract"
	"pybundle/internal/parser"
)

// Edit replaces the byte span [Start, End) of the module source.
type Edit struct {
	Start uint
	End   uint
	Text  string
}

// Warning flags a construct the rewriter could not soundly rewrite. It
// never stops processing: an unrewritten dynamic lookup is surfaced
// instead of refusing to bundle.
type Warning struct {
	Message  string
	Location parser.Location
}

// ImportRef describes one import statement for the planner.
type ImportRef struct {
	Plain  bool // "import X" as opposed to "from X import ..."
	Module string
	Level  int
	Names  []extract.ImportedName
	Star   bool
}

// ImportPlanner decides how a nested import statement is rewritten
// when its target has been inlined. handled=false leaves the statement
// untouched (external imports).
type ImportPlanner interface {
	PlanImport(ref ImportRef) (replacement string, handled bool)
}

// Rewriter applies a module's rename map to its syntax tree, tracking
// lexical scopes so local shadowing is never incorrectly renamed.
type Rewriter struct {
	src     *parser.Source
	subst   map[string]string // module-scope name -> bundled name
	planner ImportPlanner

	edits    []Edit
	warnings []Warning
}

func New(src *parser.Source, subst map[string]string, planner ImportPlanner) *Rewriter {
	return &Rewriter{src: src, subst: subst, planner: planner}
}

// Rewrite walks the tree and produces the ordered edit list. The
// rewriter never fails on its own; names it cannot classify are left
// untouched and reported as warnings.
func (r *Rewriter) Rewrite() ([]Edit, []Warning) {
	moduleScope := newScope(scopeModule, nil)
	r.walk(r.src.Root(), moduleScope)
	sort.Slice(r.edits, func(i, j int) bool { return r.edits[i].Start < r.edits[j].Start })
	return r.edits, r.warnings
}

func (r *Rewriter) replace(node *sitter.Node, text string) {
	r.edits = append(r.edits, Edit{Start: node.StartByte(), End: node.EndByte(), Text: text})
}

func (r *Rewriter) warn(node *sitter.Node, format string, args ...any) {
	r.warnings = append(r.warnings, Warning{
		Message:  fmt.Sprintf(format, args...),
		Location: r.src.Location(node),
	})
}

func (r *Rewriter) rename(node *sitter.Node, sc *scope) {
	name := r.src.Text(node)
	if sc.shadows(name) {
		return
	}
	if final, ok := r.subst[name]; ok && final != name {
		r.replace(node, final)
	}
}

func (r *Rewriter) walk(node *sitter.Node, sc *scope) {
	if node == nil {
		return
	}

	switch node.Kind() {
	case "identifier":
		r.rename(node, sc)
		return

	case "attribute":
		// Only the object position is a name lookup.
		r.walk(node.ChildByFieldName("object"), sc)
		return

	case "keyword_argument":
		r.walk(node.ChildByFieldName("value"), sc)
		return

	case "function_definition":
		r.functionDef(node, sc)
		return

	case "class_definition":
		r.classDef(node, sc)
		return

	case "lambda":
		inner := newScope(scopeFunction, sc)
		if params := node.ChildByFieldName("parameters"); params != nil {
			r.walkParameterMeta(params, sc)
			bindParameters(r.src, params, inner)
		}
		if body := node.ChildByFieldName("body"); body != nil {
			collectBindings(r.src, body, inner)
			r.walk(body, inner)
		}
		return

	case "list_comprehension", "set_comprehension", "dictionary_comprehension", "generator_expression":
		r.comprehension(node, sc)
		return

	case "import_statement", "import_from_statement", "future_import_statement":
		if sc.kind != scopeModule {
			r.nestedImport(node, sc)
		}
		// Module-level import items are rendered by the printer.
		return

	case "subscript":
		r.subscript(node, sc)
		return

	case "call":
		if r.getattrCall(node, sc) {
			return
		}
	}

	for i := uint(0); i < node.NamedChildCount(); i++ {
		r.walk(node.NamedChild(i), sc)
	}
}

func (r *Rewriter) functionDef(node *sitter.Node, sc *scope) {
	// The definition site itself is renamed when it declares a
	// module-scope symbol.
	if name := node.ChildByFieldName("name"); name != nil && sc.kind == scopeModule {
		r.rename(name, sc)
	}

	// Annotations and defaults are evaluated in the enclosing scope,
	// not inside the function.
	if params := node.ChildByFieldName("parameters"); params != nil {
		r.walkParameterMeta(params, sc)
	}
	if ret := node.ChildByFieldName("return_type"); ret != nil {
		r.walk(ret, sc)
	}

	inner := newScope(scopeFunction, sc)
	if params := node.ChildByFieldName("parameters"); params != nil {
		bindParameters(r.src, params, inner)
	}
	if body := node.ChildByFieldName("body"); body != nil {
		collectBindings(r.src, body, inner)
		r.walk(body, inner)
	}
}

func (r *Rewriter) classDef(node *sitter.Node, sc *scope) {
	if name := node.ChildByFieldName("name"); name != nil && sc.kind == scopeModule {
		r.rename(name, sc)
	}
	if supers := node.ChildByFieldName("superclasses"); supers != nil {
		r.walk(supers, sc)
	}

	inner := newScope(scopeClass, sc)
	if body := node.ChildByFieldName("body"); body != nil {
		collectBindings(r.src, body, inner)
		r.walk(body, inner)
	}
}

// walkParameterMeta visits parameter annotations and default values in
// the given (enclosing) scope while skipping the parameter names.
func (r *Rewriter) walkParameterMeta(params *sitter.Node, sc *scope) {
	for i := uint(0); i < params.NamedChildCount(); i++ {
		p := params.NamedChild(i)
		if typ := p.ChildByFieldName("type"); typ != nil {
			r.walk(typ, sc)
		}
		if value := p.ChildByFieldName("value"); value != nil {
			r.walk(value, sc)
		}
	}
}

// comprehension opens its own scope; the leftmost iterable is
// evaluated in the enclosing scope, everything else inside.
func (r *Rewriter) comprehension(node *sitter.Node, sc *scope) {
	inner := newScope(scopeComprehension, sc)

	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child.Kind() == "for_in_clause" {
			if left := child.ChildByFieldName("left"); left != nil {
				bindTargets(r.src, left, inner)
			}
		}
	}

	leftmost := true
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child.Kind() != "for_in_clause" {
			r.walk(child, inner)
			continue
		}
		right := child.ChildByFieldName("right")
		if leftmost {
			leftmost = false
			r.walk(right, sc)
		} else {
			r.walk(right, inner)
		}
	}
}

// nestedImport rewrites a function- or class-scoped import whose
// target was inlined into the bundle (the deferral pattern used to
// break function-level cycles). External clauses of the same statement
// are re-emitted verbatim alongside the replacements.
func (r *Rewriter) nestedImport(stmt *sitter.Node, sc *scope) {
	if r.planner == nil {
		return
	}
	var parts []string
	rewrote := false
	for _, ref := range importRefs(r.src, stmt) {
		replacement, handled := r.planner.PlanImport(ref)
		if !handled {
			parts = append(parts, externalClause(ref))
			continue
		}
		rewrote = true
		if replacement != "" {
			parts = append(parts, replacement)
		}
	}
	if !rewrote {
		return
	}
	if len(parts) == 0 {
		// The statement dissolved entirely; the slot still needs a
		// statement in case it is the whole suite.
		parts = []string{"pass"}
	}
	r.replace(stmt, strings.Join(parts, "; "))
}

// externalClause renders one untouched import back to source form.
func externalClause(ref ImportRef) string {
	if ref.Plain {
		if len(ref.Names) > 0 {
			return "import " + ref.Module + " as " + ref.Names[0].Alias
		}
		return "import " + ref.Module
	}
	spec := strings.Repeat(".", ref.Level) + ref.Module
	if ref.Star {
		return "from " + spec + " import *"
	}
	clauses := make([]string, 0, len(ref.Names))
	for _, name := range ref.Names {
		if name.Alias != "" && name.Alias != name.Name {
			clauses = append(clauses, name.Name+" as "+name.Alias)
		} else {
			clauses = append(clauses, name.Name)
		}
	}
	return "from " + spec + " import " + strings.Join(clauses, ", ")
}

// subscript rewrites literal string keys used as dynamic lookups
// against a global namespace, e.g. lookup_table["Name"] or
// globals()["Name"], when the key matches a renamed symbol.
func (r *Rewriter) subscript(node *sitter.Node, sc *scope) {
	object := node.ChildByFieldName("value")
	key := node.ChildByFieldName("subscript")
	r.walk(object, sc)

	if key == nil {
		return
	}
	if key.Kind() != "string" {
		if isGlobalsCall(r.src, object) {
			r.warn(key, "dynamic name lookup with a non-literal key cannot be statically rewritten")
		}
		r.walk(key, sc)
		return
	}
	r.rewriteStringKey(key, sc)
}

// getattrCall rewrites getattr(x, "Name") literal lookups. Returns
// true when the call was fully handled.
func (r *Rewriter) getattrCall(node *sitter.Node, sc *scope) bool {
	fn := node.ChildByFieldName("function")
	if fn == nil || fn.Kind() != "identifier" || r.src.Text(fn) != "getattr" {
		return false
	}
	args := node.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() < 2 {
		return false
	}
	r.walk(args.NamedChild(0), sc)
	name := args.NamedChild(1)
	if name.Kind() == "string" {
		r.rewriteStringKey(name, sc)
	} else {
		r.warn(name, "getattr with a non-literal name cannot be statically rewritten")
		r.walk(name, sc)
	}
	for i := uint(2); i < args.NamedChildCount(); i++ {
		r.walk(args.NamedChild(i), sc)
	}
	return true
}

func (r *Rewriter) rewriteStringKey(str *sitter.Node, sc *scope) {
	for i := uint(0); i < str.NamedChildCount(); i++ {
		child := str.NamedChild(i)
		if child.Kind() != "string_content" {
			continue
		}
		name := r.src.Text(child)
		if sc.shadows(name) {
			continue
		}
		if final, ok := r.subst[name]; ok && final != name {
			r.replace(child, final)
		}
	}
}

// sameNode compares tree positions by span; accessors hand out freshly
// allocated *Node values, so pointer identity never matches.
func sameNode(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return false
	}
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte()
}

func isGlobalsCall(src *parser.Source, node *sitter.Node) bool {
	if node == nil || node.Kind() != "call" {
		return false
	}
	fn := node.ChildByFieldName("function")
	if fn == nil || fn.Kind() != "identifier" {
		return false
	}
	name := src.Text(fn)
	return name == "globals" || name == "vars"
}

// importRefs builds planner descriptions from an import statement.
// A plain import lists one ref per imported module.
func importRefs(src *parser.Source, stmt *sitter.Node) []ImportRef {
	var refs []ImportRef
	switch stmt.Kind() {
	case "import_statement":
		for i := uint(0); i < stmt.NamedChildCount(); i++ {
			child := stmt.NamedChild(i)
			switch child.Kind() {
			case "dotted_name":
				refs = append(refs, ImportRef{Plain: true, Module: src.Text(child)})
			case "aliased_import":
				name := child.ChildByFieldName("name")
				alias := child.ChildByFieldName("alias")
				if name == nil || alias == nil {
					continue
				}
				refs = append(refs, ImportRef{
					Plain:  true,
					Module: src.Text(name),
					Names:  []extract.ImportedName{{Name: src.Text(name), Alias: src.Text(alias)}},
				})
			}
		}
	case "import_from_statement", "future_import_statement":
		ref := ImportRef{}
		moduleNode := stmt.ChildByFieldName("module_name")
		if moduleNode != nil {
			text := src.Text(moduleNode)
			for len(text) > 0 && text[0] == '.' {
				ref.Level++
				text = text[1:]
			}
			ref.Module = text
		}
		for i := uint(0); i < stmt.NamedChildCount(); i++ {
			child := stmt.NamedChild(i)
			if sameNode(child, moduleNode) {
				continue
			}
			switch child.Kind() {
			case "wildcard_import":
				ref.Star = true
			case "dotted_name", "identifier":
				ref.Names = append(ref.Names, extract.ImportedName{Name: src.Text(child)})
			case "aliased_import":
				name := child.ChildByFieldName("name")
				alias := child.ChildByFieldName("alias")
				if name == nil || alias == nil {
					continue
				}
				ref.Names = append(ref.Names, extract.ImportedName{
					Name:  src.Text(name),
					Alias: src.Text(alias),
				})
			}
		}
		refs = append(refs, ref)
	}
	return refs
}
