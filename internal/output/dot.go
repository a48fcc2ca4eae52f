// # internal/output/dot.go
package output

import (
	"fmt"
	"strings"

	"pybundle/internal/cycles"
	"pybundle/internal/graph"
)

// DOTGenerator renders the module dependency graph for Graphviz, with
// circular-dependency groups highlighted.
type DOTGenerator struct {
	graph *graph.Graph
}

func NewDOTGenerator(g *graph.Graph) *DOTGenerator {
	return &DOTGenerator{graph: g}
}

func (d *DOTGenerator) Generate(groups []*cycles.Group) (string, error) {
	var buf strings.Builder

	buf.WriteString("digraph dependencies {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  node [shape=box, style=rounded, fontname=\"Helvetica\", fontsize=10];\n")
	buf.WriteString("  edge [fontname=\"Helvetica\", fontsize=8, penwidth=1.2];\n")
	buf.WriteString("  splines=polyline;\n")
	buf.WriteString("  overlap=false;\n\n")

	inCycle := make(map[string]bool)
	cycleKind := make(map[string]string)
	member := make(map[graph.ModuleID]*cycles.Group)
	for _, grp := range groups {
		for i, id := range grp.Members {
			member[id] = grp
			inCycle[grp.Names[i]] = true
			cycleKind[grp.Names[i]] = grp.Kind.String()
		}
	}

	for _, mod := range d.graph.Modules() {
		label := fmt.Sprintf("%s\\n(%d items)", mod.Name, len(mod.Items))
		if inCycle[mod.Name] {
			label += "\\n" + cycleKind[mod.Name]
			fmt.Fprintf(&buf, "  %q [label=\"%s\", fillcolor=\"mistyrose\", color=\"red\", style=\"rounded,filled\", penwidth=2.0];\n", mod.Name, label)
		} else {
			fmt.Fprintf(&buf, "  %q [label=\"%s\", color=\"darkslategrey\"];\n", mod.Name, label)
		}
	}
	buf.WriteString("\n")

	for _, mod := range d.graph.Modules() {
		for _, dep := range d.graph.Dependencies(mod.ID) {
			target := d.graph.Module(dep)
			sameGroup := member[mod.ID] != nil && member[mod.ID] == member[dep]
			if sameGroup {
				fmt.Fprintf(&buf, "  %q -> %q [color=\"red\", penwidth=3.0, label=\"CYCLE\"];\n", mod.Name, target.Name)
			} else {
				fmt.Fprintf(&buf, "  %q -> %q [color=\"forestgreen\", penwidth=1.4];\n", mod.Name, target.Name)
			}
		}
	}

	buf.WriteString("}\n")
	return buf.String(), nil
}
