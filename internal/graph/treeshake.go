// # internal/graph/treeshake.go
package graph

import "pybundle/internal/extract"

// TreeShake computes the item set that must survive bundling: a
// reachability walk from the given roots that always follows Strong
// edges and follows Weak edges only from items already included. Items
// with side effects are never pruned — top-level module code runs on
// first use in the source language, so dropping it would change
// behavior.
func (g *Graph) TreeShake(roots []ItemRef) map[ItemRef]bool {
	included := make(map[ItemRef]bool)
	queue := make([]ItemRef, 0, len(roots))

	add := func(ref ItemRef) {
		if !included[ref] {
			included[ref] = true
			queue = append(queue, ref)
		}
	}

	for _, root := range roots {
		add(root)
	}
	for _, mod := range g.modules {
		for i := range mod.Items {
			if mod.Items[i].HasSideEffects {
				add(ItemRef{Module: mod.ID, Item: i})
			}
		}
	}

	for len(queue) > 0 {
		ref := queue[0]
		queue = queue[1:]
		// Both edge kinds expand from an included source; an item
		// reachable only through a Weak edge whose source stayed
		// excluded is never visited.
		for _, next := range g.itemAdj[ref] {
			add(next)
		}
	}

	return included
}

// UnusedImport is an import binding with zero readers that bundling
// may elide.
type UnusedImport struct {
	Module ModuleID
	Item   int
	Name   string
}

// UnusedImports applies the elision invariant: a name with no reader
// items whose declaring item is an import, not re-exported, not bound
// by a star-import, in a module that is not a package root.
func (g *Graph) UnusedImports() []UnusedImport {
	var unused []UnusedImport
	for _, mod := range g.modules {
		if mod.IsInit {
			// Package roots commonly import solely to re-export.
			continue
		}
		for i := range mod.Items {
			item := &mod.Items[i]
			if item.Kind != extract.KindImport && item.Kind != extract.KindFromImport {
				continue
			}
			if item.Star {
				continue
			}
			allUnused := len(item.Declares) > 0
			for _, name := range item.Declares {
				state := g.vars[mod.ID][name]
				if state == nil || state.DeclaredBy != item.ID {
					allUnused = false
					break
				}
				if len(state.Readers) > 0 || mod.Reexports[name] {
					allUnused = false
					break
				}
			}
			if allUnused {
				unused = append(unused, UnusedImport{
					Module: mod.ID,
					Item:   item.ID,
					Name:   item.Declares[0],
				})
			}
		}
	}
	return unused
}
