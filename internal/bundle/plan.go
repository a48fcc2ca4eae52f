// # internal/bundle/plan.go
package bundle

import (
	"strings"

	"pybundle/internal/extract"
	"pybundle/internal/graph"
	"pybundle/internal/parser"
	"pybundle/internal/printer"
	"pybundle/internal/resolver"
	"pybundle/internal/rewrite"
)

type planKind int

const (
	// planSource emits the item's rewritten source span.
	planSource planKind = iota
	// planText emits synthesized text instead of the span.
	planText
	// planDrop emits nothing; hoist lines may still be lifted to the
	// bundle header.
	planDrop
)

type itemPlan struct {
	kind  planKind
	text  string
	hoist []string
}

// processModule decides, item by item, how a module appears in the
// bundle: which names are substituted, which imports dissolve, hoist or
// become namespace assignments, and what byte edits the body needs.
func (p *pipeline) processModule(mod *graph.Module) error {
	subst := make(map[string]string)

	// Renames of the module's own surviving declarations.
	for i := range mod.Items {
		for _, name := range mod.Items[i].Declares {
			if final, ok := p.reg.RenameFor(mod.ID, name); ok {
				subst[name] = final
			}
		}
	}

	for i := range mod.Items {
		item := &mod.Items[i]
		if item.Kind != extract.KindImport && item.Kind != extract.KindFromImport {
			continue
		}
		ref := graph.ItemRef{Module: mod.ID, Item: item.ID}

		if item.Level == 0 && item.Module == "__future__" {
			// Feature flags must lead the output file and are never
			// elided.
			p.futures = append(p.futures, printer.ExternalImport(false, "__future__", "", fromClauses(item, nil), item.Star))
			p.plans[ref] = itemPlan{kind: planDrop}
			continue
		}
		if p.unused[ref] {
			p.plans[ref] = itemPlan{kind: planDrop}
			continue
		}

		res := p.resolveItem(mod, item)
		switch res.Kind {
		case resolver.External:
			p.planExternal(mod, item, ref, subst)
		case resolver.FirstParty:
			p.planFirstParty(mod, item, ref, res.Module, subst)
		default:
			p.plans[ref] = itemPlan{kind: planDrop}
		}
	}

	src := p.sources[mod.ID]
	rewriter := rewrite.New(src, subst, &nestedPlanner{p: p, mod: mod})
	edits, warnings := rewriter.Rewrite()
	p.edits[mod.ID] = edits
	for _, w := range warnings {
		p.report(Warning, []string{mod.Name}, w.Location, "%s", w.Message)
	}

	p.reg.MarkProcessed(mod.ID)
	p.log.Debug("module processed", "module", mod.Name, "edits", len(edits))
	return nil
}

// planExternal hoists an external import to the bundle header, renaming
// the binding when it lost a conflict.
func (p *pipeline) planExternal(mod *graph.Module, item *extract.Item, ref graph.ItemRef, subst map[string]string) {
	if item.Kind == extract.KindImport {
		bound := item.Declares[0]
		final := p.reg.FinalName(mod.ID, bound)

		var hoist []string
		switch {
		case len(item.Names) > 0:
			// Aliased: rebinding the alias is always expressible.
			hoist = []string{printer.ExternalImport(true, item.Module, final, nil, false)}
		case final == bound:
			hoist = []string{printer.ExternalImport(true, item.Module, "", nil, false)}
		default:
			// "import a.b" binds the package head; an alias clause
			// would bind the leaf instead, so rebind separately.
			hoist = []string{
				printer.ExternalImport(true, item.Module, "", nil, false),
				// The rebind runs before any module body shadows the
				// package head; uses go through the substituted name.
				final + " = " + bound,
			}
		}
		p.plans[ref] = itemPlan{kind: planDrop, hoist: hoist}
		return
	}

	clauses := fromClauses(item, func(bound string) string {
		return p.reg.FinalName(mod.ID, bound)
	})
	p.plans[ref] = itemPlan{
		kind:  planDrop,
		hoist: []string{printer.ExternalImport(false, importSpec(item), "", clauses, item.Star)},
	}
}

// fromClauses renders the name list of a from-import; rename maps a
// bound name to its bundled name and may be nil.
func fromClauses(item *extract.Item, rename func(string) string) []string {
	clauses := make([]string, 0, len(item.Names))
	for _, name := range item.Names {
		bound := name.Bound()
		final := bound
		if rename != nil {
			final = rename(bound)
		}
		if final == name.Name {
			clauses = append(clauses, name.Name)
		} else {
			clauses = append(clauses, name.Name+" as "+final)
		}
	}
	return clauses
}

// planFirstParty dissolves an import of an inlined module. Module
// objects become synthesized namespaces; symbol bindings become pure
// substitutions with no output of their own.
func (p *pipeline) planFirstParty(mod *graph.Module, item *extract.Item, ref graph.ItemRef, targetName string, subst map[string]string) {
	if item.Kind == extract.KindImport {
		bound := item.Declares[0]
		final := p.reg.FinalName(mod.ID, bound)
		var expr string
		if len(item.Names) > 0 {
			// Aliased: the alias binds the leaf module directly.
			expr = p.moduleNamespace(targetName)
		} else {
			expr = p.namespaceChain(targetName)
		}
		p.needsTypes = true
		p.plans[ref] = itemPlan{kind: planText, text: final + " = " + expr}
		return
	}

	target, ok := p.g.ModuleByName(targetName)
	if !ok {
		p.plans[ref] = itemPlan{kind: planDrop}
		return
	}

	if item.Star {
		for _, name := range p.reg.PublicNames(target.ID) {
			home, sym := p.symbolHome(target, name, 0)
			subst[name] = p.reg.ResolveImportAlias(home, sym)
		}
		p.plans[ref] = itemPlan{kind: planDrop}
		return
	}

	var texts []string
	for _, name := range item.Names {
		bound := name.Bound()
		if sub, isSub := p.res.ResolveName(targetName, name.Name); isSub {
			final := p.reg.FinalName(mod.ID, bound)
			p.needsTypes = true
			texts = append(texts, final+" = "+p.moduleNamespace(sub))
			continue
		}
		home, sym := p.symbolHome(target, name.Name, 0)
		subst[bound] = p.reg.ResolveImportAlias(home, sym)
	}
	if len(texts) > 0 {
		p.plans[ref] = itemPlan{kind: planText, text: strings.Join(texts, "\n")}
	} else {
		p.plans[ref] = itemPlan{kind: planDrop}
	}
}

// moduleNamespace synthesizes the namespace literal standing in for one
// inlined module object: every public name mapped to its bundled
// symbol.
func (p *pipeline) moduleNamespace(moduleName string) string {
	return p.moduleNamespaceWith(moduleName, "", "")
}

func (p *pipeline) moduleNamespaceWith(moduleName, childName, childExpr string) string {
	var fields []string
	if mod, ok := p.g.ModuleByName(moduleName); ok {
		for _, name := range p.reg.PublicNames(mod.ID) {
			if name == childName {
				continue
			}
			home, sym := p.symbolHome(mod, name, 0)
			fields = append(fields, name+"="+p.reg.ResolveImportAlias(home, sym))
		}
	}
	if childName != "" {
		fields = append(fields, childName+"="+childExpr)
	}
	return "types.SimpleNamespace(" + strings.Join(fields, ", ") + ")"
}

// namespaceChain builds the nested namespace for an unaliased dotted
// import: "import a.b.c" binds a, with b and c reachable as attributes.
func (p *pipeline) namespaceChain(target string) string {
	parts := strings.Split(target, ".")
	expr := p.moduleNamespace(target)
	for i := len(parts) - 1; i >= 1; i-- {
		prefix := strings.Join(parts[:i], ".")
		expr = p.moduleNamespaceWith(prefix, parts[i], expr)
	}
	return expr
}

// nestedPlanner rewrites function- and class-scoped imports in place:
// inlined targets become local assignments so deferred reads keep
// working after the module boundary disappears.
type nestedPlanner struct {
	p   *pipeline
	mod *graph.Module
}

func (n *nestedPlanner) PlanImport(ref rewrite.ImportRef) (string, bool) {
	res := n.p.res.Resolve(n.mod.Name, n.mod.IsPackage, ref.Module, ref.Level)
	switch res.Kind {
	case resolver.External:
		return "", false
	case resolver.Unresolved:
		n.p.report(Error, []string{n.mod.Name}, parser.Location{File: n.mod.Path},
			"cannot resolve first-party import of %q nested in %s", ref.Module, n.mod.Name)
		return "", false
	}

	if ref.Plain {
		bound := strings.SplitN(res.Module, ".", 2)[0]
		expr := n.p.namespaceChain(res.Module)
		if len(ref.Names) > 0 {
			bound = ref.Names[0].Alias
			expr = n.p.moduleNamespace(res.Module)
		}
		n.p.needsTypes = true
		return bound + " = " + expr, true
	}

	target, ok := n.p.g.ModuleByName(res.Module)
	if !ok {
		return "", false
	}

	var parts []string
	bind := func(bound string, home graph.ModuleID, sym string) {
		// Rebinding a name to itself at function scope would read the
		// unassigned local, so compare against the final bundled name;
		// the deferred token resolves to exactly that name later.
		if bound == n.p.reg.FinalName(home, sym) {
			return
		}
		parts = append(parts, bound+" = "+n.p.reg.ResolveImportAlias(home, sym))
	}

	if ref.Star {
		for _, name := range n.p.reg.PublicNames(target.ID) {
			home, sym := n.p.symbolHome(target, name, 0)
			bind(name, home, sym)
		}
	}
	for _, name := range ref.Names {
		bound := name.Bound()
		if sub, isSub := n.p.res.ResolveName(res.Module, name.Name); isSub {
			n.p.needsTypes = true
			parts = append(parts, bound+" = "+n.p.moduleNamespace(sub))
			continue
		}
		home, sym := n.p.symbolHome(target, name.Name, 0)
		bind(bound, home, sym)
	}

	// An empty replacement tells the rewriter the statement dissolved.
	return strings.Join(parts, "; "), true
}
