// # internal/bundle/edges.go
package bundle

import (
	"strings"

	"pybundle/internal/extract"
	"pybundle/internal/graph"
	"pybundle/internal/registry"
	"pybundle/internal/resolver"
)

// buildEdges wires the dependency graph: intra-module reads between
// items, module-level import edges and cross-module item edges from
// import items to the declarations they pull in. An unresolved
// first-party import is an error; bundling an incomplete project would
// silently produce a broken output.
func (p *pipeline) buildEdges() {
	for _, mod := range p.g.Modules() {
		for i := range mod.Items {
			item := &mod.Items[i]
			from := graph.ItemRef{Module: mod.ID, Item: item.ID}

			for _, name := range item.Reads {
				if ref, ok := p.g.DeclaringItem(mod.ID, name); ok && ref.Item != item.ID {
					p.g.AddDependency(from, ref, graph.Strong)
				}
			}
			for _, name := range item.TypeReads {
				if ref, ok := p.g.DeclaringItem(mod.ID, name); ok && ref.Item != item.ID {
					p.g.AddDependency(from, ref, graph.Weak)
				}
			}

			if item.Kind != extract.KindImport && item.Kind != extract.KindFromImport {
				continue
			}
			res := p.resolveItem(mod, item)
			switch res.Kind {
			case resolver.External:
				// Left in place and hoisted at render time.
			case resolver.Unresolved:
				p.report(Error, []string{mod.Name}, item.Location,
					"cannot resolve first-party import of %q in %s", importSpec(item), mod.Name)
			case resolver.FirstParty:
				p.linkImport(mod, item, from, res.Module)
			}
		}

		for _, ni := range mod.NestedImports {
			res := p.res.Resolve(mod.Name, mod.IsPackage, ni.Module, ni.Level)
			switch res.Kind {
			case resolver.External:
				// Stays in place; resolves against the real module.
			case resolver.Unresolved:
				if ni.InBody {
					p.report(Error, []string{mod.Name}, ni.Location,
						"cannot resolve first-party import of %q nested in %s",
						strings.Repeat(".", ni.Level)+ni.Module, mod.Name)
				}
			case resolver.FirstParty:
				if !ni.InBody {
					// A conditional or try block is emitted as written;
					// an import statement inside it would dangle.
					p.report(Warning, []string{mod.Name}, ni.Location,
						"first-party import of %q inside a module-level block in %s is emitted as written and will not resolve in the bundle",
						res.Module, mod.Name)
					continue
				}
				p.linkNested(mod, ni, res.Module)
			}
		}
	}
}

// linkNested gives a function-scoped first-party import the same module
// and item edges as a top-level one, so the target module is enrolled,
// emitted, and its declarations survive tree shaking.
func (p *pipeline) linkNested(mod *graph.Module, ni extract.NestedImport, targetName string) {
	imp := extract.Item{
		ID:       ni.Item,
		Kind:     extract.KindFromImport,
		Module:   ni.Module,
		Level:    ni.Level,
		Names:    ni.Names,
		Star:     ni.Star,
		Location: ni.Location,
	}
	if ni.Plain {
		imp.Kind = extract.KindImport
	}
	p.linkImport(mod, &imp, graph.ItemRef{Module: mod.ID, Item: ni.Item}, targetName)
}

func (p *pipeline) resolveItem(mod *graph.Module, item *extract.Item) resolver.Resolution {
	return p.res.Resolve(mod.Name, mod.IsPackage, item.Module, item.Level)
}

func importSpec(item *extract.Item) string {
	if item.Level == 0 {
		return item.Module
	}
	return strings.Repeat(".", item.Level) + item.Module
}

// linkImport connects an import item to its first-party target.
// Importing a submodule executes every ancestor package, so module
// edges cover the whole dotted chain.
func (p *pipeline) linkImport(mod *graph.Module, item *extract.Item, from graph.ItemRef, targetName string) {
	parts := strings.Split(targetName, ".")
	for i := range parts {
		prefix := strings.Join(parts[:i+1], ".")
		if ancestor, ok := p.g.ModuleByName(prefix); ok {
			p.g.AddModuleDependency(mod.ID, ancestor.ID)
		}
	}

	target, ok := p.g.ModuleByName(targetName)
	if !ok {
		p.report(Error, []string{mod.Name}, item.Location,
			"first-party module %q resolved but never discovered", targetName)
		return
	}

	if item.Kind == extract.KindImport || item.Star {
		// Namespace and star imports need the target's whole public
		// surface.
		p.linkPublic(from, target)
		return
	}

	for _, name := range item.Names {
		if sub, ok := p.res.ResolveName(targetName, name.Name); ok {
			if subMod, ok := p.g.ModuleByName(sub); ok {
				p.g.AddModuleDependency(mod.ID, subMod.ID)
				p.linkPublic(from, subMod)
				continue
			}
		}
		if ref, ok := p.g.DeclaringItem(target.ID, name.Name); ok {
			p.g.AddDependency(from, ref, graph.Strong)
			continue
		}
		if target.IsInit {
			// Re-export through the package body; keep the whole init.
			p.linkAll(from, target)
			continue
		}
		p.report(Warning, []string{mod.Name, target.Name}, item.Location,
			"%s does not define %q imported by %s", target.Name, name.Name, mod.Name)
	}
}

func (p *pipeline) linkPublic(from graph.ItemRef, target *graph.Module) {
	for i := range target.Items {
		for _, name := range target.Items[i].Declares {
			if registry.Exported(name) {
				p.g.AddDependency(from, graph.ItemRef{Module: target.ID, Item: i}, graph.Strong)
				break
			}
		}
	}
}

func (p *pipeline) linkAll(from graph.ItemRef, target *graph.Module) {
	for i := range target.Items {
		p.g.AddDependency(from, graph.ItemRef{Module: target.ID, Item: i}, graph.Strong)
	}
}

// enroll registers every reachable module's surviving module-scope
// names for conflict detection. Symbol bindings of first-party
// from-imports dissolve during rewriting and never claim a name;
// submodule bindings survive as namespace variables and do.
func (p *pipeline) enroll() {
	p.reg = registry.New(p.g)
	for _, mod := range p.g.Modules() {
		if !p.reach[mod.ID] {
			continue
		}
		items := make([]extract.Item, 0, len(mod.Items))
		for _, item := range mod.Items {
			if item.Kind == extract.KindFromImport && !item.Star {
				res := p.resolveItem(mod, &item)
				if res.Kind == resolver.FirstParty {
					var keep []string
					for _, name := range item.Names {
						if _, ok := p.res.ResolveName(res.Module, name.Name); ok {
							keep = append(keep, name.Bound())
						}
					}
					item.Declares = keep
				}
			}
			items = append(items, item)
		}
		p.reg.RegisterExports(mod.ID, items)
	}
}

// symbolHome chases re-export chains: a symbol imported from a module
// that itself imported it resolves to the module that actually declares
// it, so renames propagate through package __init__ re-exports.
func (p *pipeline) symbolHome(target *graph.Module, symbol string, depth int) (graph.ModuleID, string) {
	if depth > 8 {
		return target.ID, symbol
	}
	for i := range target.Items {
		item := &target.Items[i]
		if item.Kind != extract.KindFromImport || item.Star {
			continue
		}
		for _, name := range item.Names {
			if name.Bound() != symbol {
				continue
			}
			res := p.resolveItem(target, item)
			if res.Kind != resolver.FirstParty {
				return target.ID, symbol
			}
			if _, isSub := p.res.ResolveName(res.Module, name.Name); isSub {
				return target.ID, symbol
			}
			next, ok := p.g.ModuleByName(res.Module)
			if !ok {
				return target.ID, symbol
			}
			return p.symbolHome(next, name.Name, depth+1)
		}
	}
	return target.ID, symbol
}
