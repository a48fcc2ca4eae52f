// # internal/output/dot_test.go
package output

import (
	"strings"
	"testing"

	"pybundle/internal/cycles"
	"pybundle/internal/graph"
)

func TestGenerate(t *testing.T) {
	g := graph.New()
	a, _ := g.AddModule("a", "/src/a.py", false, false)
	b, _ := g.AddModule("b", "/src/b.py", false, false)
	lib, _ := g.AddModule("lib", "/src/lib.py", false, false)
	g.AddModuleDependency(a, b)
	g.AddModuleDependency(b, a)
	g.AddModuleDependency(a, lib)

	grp := &cycles.Group{
		Members: []graph.ModuleID{a, b},
		Names:   []string{"a", "b"},
		Kind:    cycles.FunctionLevel,
	}

	dot, err := NewDOTGenerator(g).Generate([]*cycles.Group{grp})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if !strings.HasPrefix(dot, "digraph dependencies {") || !strings.HasSuffix(dot, "}\n") {
		t.Errorf("not a digraph:\n%s", dot)
	}
	for _, want := range []string{`"a"`, `"b"`, `"lib"`} {
		if !strings.Contains(dot, want) {
			t.Errorf("missing node %s", want)
		}
	}
	// Cycle members are highlighted, the edge between them labelled.
	if !strings.Contains(dot, "mistyrose") {
		t.Error("cycle members not highlighted")
	}
	if strings.Count(dot, `label="CYCLE"`) != 2 {
		t.Errorf("want both cycle edges labelled:\n%s", dot)
	}
	// The edge out of the cycle stays plain.
	if !strings.Contains(dot, `"a" -> "lib" [color="forestgreen"`) {
		t.Errorf("acyclic edge wrong:\n%s", dot)
	}
}

func TestGenerate_NoCycles(t *testing.T) {
	g := graph.New()
	a, _ := g.AddModule("a", "/src/a.py", false, false)
	b, _ := g.AddModule("b", "/src/b.py", false, false)
	g.AddModuleDependency(a, b)

	dot, err := NewDOTGenerator(g).Generate(nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if strings.Contains(dot, "CYCLE") || strings.Contains(dot, "mistyrose") {
		t.Errorf("acyclic graph must not highlight anything:\n%s", dot)
	}
}
