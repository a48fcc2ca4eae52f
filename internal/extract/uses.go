// # internal/extract/uses.go
package extract

import (
	sitter "github.com/tree-sitter/go-tree-sitter"

	"pybundle/internal/parser"
)

// collectUses records every name read in the module together with its
// lexical context (module level, module-level constant initializer,
// class body, function body). The cycle analyzer classifies circular
// groups from this log.
func collectUses(src *parser.Source, out *ModuleSource) {
	u := &useCollector{src: src, out: out}
	u.walk(src.Root(), UseModuleLevel, "")
}

type useCollector struct {
	src *parser.Source
	out *ModuleSource
}

func (u *useCollector) record(name, attr, assignedTo string, ctx UseContext, node *sitter.Node) {
	u.out.Uses = append(u.out.Uses, NameUse{
		Name:       name,
		Attr:       attr,
		AssignedTo: assignedTo,
		Context:    ctx,
		Location:   u.src.Location(node),
	})
}

func (u *useCollector) walk(node *sitter.Node, ctx UseContext, assignedTo string) {
	if node == nil {
		return
	}

	switch node.Kind() {
	case "identifier":
		u.record(u.src.Text(node), "", assignedTo, ctx, node)
		return

	case "attribute":
		object := node.ChildByFieldName("object")
		attr := node.ChildByFieldName("attribute")
		if object != nil && object.Kind() == "identifier" && attr != nil {
			u.record(u.src.Text(object), u.src.Text(attr), assignedTo, ctx, node)
			return
		}
		u.walk(object, ctx, assignedTo)
		return

	case "keyword_argument":
		u.walk(node.ChildByFieldName("value"), ctx, assignedTo)
		return

	case "import_statement", "import_from_statement", "future_import_statement":
		return

	case "function_definition":
		// Decorators, defaults and annotations evaluate in the
		// enclosing context; the body is deferred to call time.
		if params := node.ChildByFieldName("parameters"); params != nil {
			for i := uint(0); i < params.NamedChildCount(); i++ {
				p := params.NamedChild(i)
				if value := p.ChildByFieldName("value"); value != nil {
					u.walk(value, ctx, assignedTo)
				}
				if typ := p.ChildByFieldName("type"); typ != nil {
					u.walk(typ, ctx, assignedTo)
				}
			}
		}
		if ret := node.ChildByFieldName("return_type"); ret != nil {
			u.walk(ret, ctx, assignedTo)
		}
		u.walk(node.ChildByFieldName("body"), UseFunctionBody, "")
		return

	case "class_definition":
		if supers := node.ChildByFieldName("superclasses"); supers != nil {
			u.walk(supers, ctx, assignedTo)
		}
		bodyCtx := UseClassBody
		if ctx == UseFunctionBody {
			bodyCtx = UseFunctionBody
		}
		u.walk(node.ChildByFieldName("body"), bodyCtx, "")
		return

	case "assignment":
		left := node.ChildByFieldName("left")
		right := node.ChildByFieldName("right")
		rhsCtx := ctx
		target := assignedTo
		// A module-level assignment consuming the value right now is
		// the initialization-order hazard the analyzer looks for.
		if ctx == UseModuleLevel {
			rhsCtx = UseModuleConstant
			if left != nil {
				if names := targetNames(u.src, left); len(names) > 0 {
					target = names[0]
				}
			}
		}
		if left != nil && hasNonNameTarget(left) {
			u.walk(left, ctx, assignedTo)
		}
		u.walk(right, rhsCtx, target)
		if typ := node.ChildByFieldName("type"); typ != nil {
			u.walk(typ, ctx, assignedTo)
		}
		return
	}

	for i := uint(0); i < node.NamedChildCount(); i++ {
		u.walk(node.NamedChild(i), ctx, assignedTo)
	}
}
