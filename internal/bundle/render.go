// # internal/bundle/render.go
package bundle

import (
	"pybundle/internal/graph"
	"pybundle/internal/printer"
)

// render assembles the output document: the tree-shaken item set of
// every reachable module in dependency order, entry last among equals,
// with external imports lifted to the header.
func (p *pipeline) render(order []graph.ModuleID, entryName string) (*printer.Document, []string, int) {
	roots := p.entryRoots()
	included := p.g.TreeShake(roots)

	doc := &printer.Document{
		Entry:      entryName,
		Futures:    p.futures,
		NeedsTypes: p.needsTypes,
	}

	var emitted []string
	includedItems := 0

	for _, id := range order {
		if !p.reach[id] {
			continue
		}
		mod := p.g.Module(id)
		src := p.sources[id]
		out := printer.ModuleOutput{Name: mod.Name}

		for i := range mod.Items {
			item := &mod.Items[i]
			ref := graph.ItemRef{Module: id, Item: item.ID}
			if !included[ref] {
				continue
			}
			plan := p.plans[ref]
			switch plan.kind {
			case planDrop:
				doc.Externals = append(doc.Externals, plan.hoist...)
			case planText:
				includedItems++
				out.Chunks = append(out.Chunks, printer.Chunk{Text: plan.text})
			default:
				text, err := printer.Slice(src.Content, item.StartByte, item.EndByte, p.edits[id])
				if err != nil {
					// Overlapping edits are a pipeline bug; surface and
					// fall back to the raw span rather than corrupt
					// output silently.
					p.report(Error, []string{mod.Name}, item.Location, "%s", err.Error())
					text = string(src.Content[item.StartByte:item.EndByte])
				}
				includedItems++
				out.Chunks = append(out.Chunks, printer.Chunk{Text: text})
			}
		}

		if len(out.Chunks) > 0 || id == p.entry {
			emitted = append(emitted, mod.Name)
		}
		doc.Modules = append(doc.Modules, out)
	}

	return doc, emitted, includedItems
}

// entryRoots seeds tree shaking with every entry-module item; the entry
// is the program, nothing of it may be shaken away.
func (p *pipeline) entryRoots() []graph.ItemRef {
	entry := p.g.Module(p.entry)
	roots := make([]graph.ItemRef, 0, len(entry.Items))
	for i := range entry.Items {
		roots = append(roots, graph.ItemRef{Module: p.entry, Item: i})
	}
	return roots
}
