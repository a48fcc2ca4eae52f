// # internal/graph/graph_test.go
package graph

import (
	"testing"

	"pybundle/internal/extract"
)

func mustAdd(t *testing.T, g *Graph, name string) ModuleID {
	t.Helper()
	id, err := g.AddModule(name, "/src/"+name+".py", false, false)
	if err != nil {
		t.Fatalf("AddModule(%s): %v", name, err)
	}
	return id
}

func TestGraph_AddModuleRejectsDuplicates(t *testing.T) {
	g := New()
	mustAdd(t, g, "app")
	if _, err := g.AddModule("app", "/elsewhere/app.py", false, false); err == nil {
		t.Fatal("expected error on duplicate module name")
	}
}

func TestGraph_SetItemsBuildsVarStates(t *testing.T) {
	g := New()
	id := mustAdd(t, g, "app")
	g.SetItems(id, &extract.ModuleSource{
		Items: []extract.Item{
			{ID: 0, Kind: extract.KindFunctionDef, Name: "helper", Declares: []string{"helper"}},
			{ID: 1, Kind: extract.KindAssignment, Declares: []string{"VALUE"}, Reads: []string{"helper"}},
			{ID: 2, Kind: extract.KindFunctionDef, Name: "main", Declares: []string{"main"}, Reads: []string{"VALUE"}},
		},
	})

	states := g.VarStates(id)
	if states["helper"].DeclaredBy != 0 {
		t.Errorf("helper declared by item %d, want 0", states["helper"].DeclaredBy)
	}
	if got := states["helper"].Readers; len(got) != 1 || got[0] != 1 {
		t.Errorf("helper readers = %v, want [1]", got)
	}
	if got := states["VALUE"].Readers; len(got) != 1 || got[0] != 2 {
		t.Errorf("VALUE readers = %v, want [2]", got)
	}

	ref, ok := g.DeclaringItem(id, "main")
	if !ok || ref.Item != 2 {
		t.Errorf("DeclaringItem(main) = %v, %v", ref, ok)
	}
}

func TestGraph_StrongWinsOverWeak(t *testing.T) {
	g := New()
	a := mustAdd(t, g, "a")
	from := ItemRef{Module: a, Item: 0}
	to := ItemRef{Module: a, Item: 1}

	g.AddDependency(from, to, Weak)
	g.AddDependency(from, to, Strong)
	if g.itemEdges[from][to] != Strong {
		t.Error("Strong edge must replace Weak")
	}

	g.AddDependency(from, to, Weak)
	if g.itemEdges[from][to] != Strong {
		t.Error("Weak edge must not downgrade Strong")
	}
	if len(g.itemAdj[from]) != 1 {
		t.Errorf("adjacency recorded %d entries, want 1", len(g.itemAdj[from]))
	}
}

func TestTopologicalOrder_DependenciesFirst(t *testing.T) {
	g := New()
	app := mustAdd(t, g, "app")
	util := mustAdd(t, g, "util")
	core := mustAdd(t, g, "core")

	// app imports util and core; core imports util.
	g.AddModuleDependency(app, util)
	g.AddModuleDependency(app, core)
	g.AddModuleDependency(core, util)

	order, err := g.TopologicalOrder()
	if err != nil {
		t.Fatalf("TopologicalOrder: %v", err)
	}
	pos := make(map[ModuleID]int)
	for i, id := range order {
		pos[id] = i
	}
	if pos[util] > pos[core] || pos[core] > pos[app] {
		t.Errorf("order %v violates dependencies-first", order)
	}
}

func TestTopologicalOrder_DeterministicTieBreak(t *testing.T) {
	// Independent modules must come out in first-discovery order, every
	// time.
	for run := 0; run < 20; run++ {
		g := New()
		a := mustAdd(t, g, "alpha")
		b := mustAdd(t, g, "beta")
		c := mustAdd(t, g, "gamma")

		order, err := g.TopologicalOrder()
		if err != nil {
			t.Fatalf("TopologicalOrder: %v", err)
		}
		want := []ModuleID{a, b, c}
		for i := range want {
			if order[i] != want[i] {
				t.Fatalf("run %d: order %v, want %v", run, order, want)
			}
		}
	}
}

func TestTopologicalOrder_CycleError(t *testing.T) {
	g := New()
	a := mustAdd(t, g, "a")
	b := mustAdd(t, g, "b")
	g.AddModuleDependency(a, b)
	g.AddModuleDependency(b, a)

	_, err := g.TopologicalOrder()
	cycleErr, ok := err.(*CycleError)
	if !ok {
		t.Fatalf("expected *CycleError, got %v", err)
	}
	if len(cycleErr.Cycles) != 1 || len(cycleErr.Cycles[0]) != 2 {
		t.Errorf("cycles = %v, want one cycle of two modules", cycleErr.Cycles)
	}
}

func TestOrderWithGroups_KeepsGroupTogether(t *testing.T) {
	g := New()
	a := mustAdd(t, g, "a")
	b := mustAdd(t, g, "b")
	lib := mustAdd(t, g, "lib")

	// a <-> b cycle, both depend on lib.
	g.AddModuleDependency(a, b)
	g.AddModuleDependency(b, a)
	g.AddModuleDependency(a, lib)

	order, err := g.OrderWithGroups([][]ModuleID{{a, b}})
	if err != nil {
		t.Fatalf("OrderWithGroups: %v", err)
	}
	if len(order) != 3 {
		t.Fatalf("order has %d modules, want 3", len(order))
	}
	if order[0] != lib {
		t.Errorf("lib must precede the cycle group, got %v", order)
	}
	if order[1] != a || order[2] != b {
		t.Errorf("group members must stay together: %v", order)
	}
}

func TestOrderWithGroups_HonorsCallerMemberOrder(t *testing.T) {
	g := New()
	a := mustAdd(t, g, "a")
	b := mustAdd(t, g, "b")
	g.AddModuleDependency(a, b)
	g.AddModuleDependency(b, a)

	// The caller resolved the cycle by placing b first.
	order, err := g.OrderWithGroups([][]ModuleID{{b, a}})
	if err != nil {
		t.Fatalf("OrderWithGroups: %v", err)
	}
	if order[0] != b || order[1] != a {
		t.Errorf("order = %v, want [b a]", order)
	}
}

func TestTreeShake_WeakEdgeOnlyFromIncludedSource(t *testing.T) {
	g := New()
	id := mustAdd(t, g, "app")
	g.SetItems(id, &extract.ModuleSource{
		Items: []extract.Item{
			{ID: 0, Kind: extract.KindFunctionDef, Declares: []string{"main"}},
			{ID: 1, Kind: extract.KindFunctionDef, Declares: []string{"used"}},
			{ID: 2, Kind: extract.KindClassDef, Declares: []string{"OnlyTyped"}},
			{ID: 3, Kind: extract.KindFunctionDef, Declares: []string{"dead"}},
		},
	})
	root := ItemRef{Module: id, Item: 0}
	g.AddDependency(root, ItemRef{Module: id, Item: 1}, Strong)
	g.AddDependency(ItemRef{Module: id, Item: 3}, ItemRef{Module: id, Item: 2}, Weak)

	included := g.TreeShake([]ItemRef{root})
	if !included[root] || !included[ItemRef{Module: id, Item: 1}] {
		t.Error("strong chain from root must be included")
	}
	if included[ItemRef{Module: id, Item: 3}] {
		t.Error("unreferenced item must be shaken away")
	}
	if included[ItemRef{Module: id, Item: 2}] {
		t.Error("weak target of an excluded source must stay excluded")
	}
}

func TestTreeShake_SideEffectItemsAlwaysKept(t *testing.T) {
	g := New()
	entry := mustAdd(t, g, "entry")
	other := mustAdd(t, g, "other")
	g.SetItems(entry, &extract.ModuleSource{
		Items: []extract.Item{{ID: 0, Kind: extract.KindFunctionDef, Declares: []string{"main"}}},
	})
	g.SetItems(other, &extract.ModuleSource{
		Items: []extract.Item{
			{ID: 0, Kind: extract.KindExpression, HasSideEffects: true},
			{ID: 1, Kind: extract.KindFunctionDef, Declares: []string{"unused"}},
		},
		HasSideEffects: true,
	})

	included := g.TreeShake([]ItemRef{{Module: entry, Item: 0}})
	if !included[ItemRef{Module: other, Item: 0}] {
		t.Error("side-effect item must survive shaking")
	}
	if included[ItemRef{Module: other, Item: 1}] {
		t.Error("pure unreferenced item must not survive")
	}
}

func TestUnusedImports(t *testing.T) {
	g := New()
	id := mustAdd(t, g, "app")
	g.SetItems(id, &extract.ModuleSource{
		Items: []extract.Item{
			{ID: 0, Kind: extract.KindImport, Module: "os", Declares: []string{"os"}},
			{ID: 1, Kind: extract.KindImport, Module: "sys", Declares: []string{"sys"}},
			{ID: 2, Kind: extract.KindFunctionDef, Declares: []string{"main"}, Reads: []string{"sys"}},
		},
	})

	unused := g.UnusedImports()
	if len(unused) != 1 {
		t.Fatalf("unused = %v, want exactly the os import", unused)
	}
	if unused[0].Name != "os" || unused[0].Item != 0 {
		t.Errorf("unused = %+v", unused[0])
	}
}

func TestUnusedImports_SkipsInitAndReexports(t *testing.T) {
	g := New()
	pkg, err := g.AddModule("pkg", "/src/pkg/__init__.py", true, true)
	if err != nil {
		t.Fatal(err)
	}
	g.SetItems(pkg, &extract.ModuleSource{
		Items: []extract.Item{
			{ID: 0, Kind: extract.KindFromImport, Module: "pkg.impl", Declares: []string{"helper"}},
		},
	})

	app := mustAdd(t, g, "app")
	g.SetItems(app, &extract.ModuleSource{
		Items: []extract.Item{
			{ID: 0, Kind: extract.KindImport, Module: "json", Declares: []string{"json"}},
			{ID: 1, Kind: extract.KindAssignment, Targets: []string{"__all__"}, Declares: []string{"__all__"}},
		},
		Reexports: []string{"json"},
	})

	unused := g.UnusedImports()
	for _, u := range unused {
		if u.Module == pkg {
			t.Error("package __init__ imports must never be flagged")
		}
		if u.Name == "json" {
			t.Error("re-exported import must never be flagged")
		}
	}
}
