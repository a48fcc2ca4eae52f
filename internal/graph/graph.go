// # internal/graph/graph.go
package graph

import (
	"fmt"

	"pybundle/internal/extract"
)

// ModuleID addresses a module inside the arena. Ids are assigned in
// first-discovery order and stable for the lifetime of the graph; the
// arena representation keeps cyclic module graphs free of pointer
// cycles.
type ModuleID int

type Module struct {
	ID             ModuleID
	Name           string // dotted module name
	Path           string // absolute file path
	IsPackage      bool
	IsInit         bool
	HasSideEffects bool
	Items          []extract.Item
	Uses           []extract.NameUse
	NestedImports  []extract.NestedImport
	Reexports      map[string]bool
}

// ItemRef addresses one item of one module.
type ItemRef struct {
	Module ModuleID
	Item   int
}

type EdgeKind int

const (
	// Strong: the source item always requires the target.
	Strong EdgeKind = iota
	// Weak: the target is pulled in only while the source item is
	// itself included; type-only references use this.
	Weak
)

// VarState tracks, per symbol name and module, the declaring item and
// the ordered reader/writer item lists. Unused-import detection reads
// it.
type VarState struct {
	DeclaredBy int // item id, -1 when nothing declares the name
	Kind       extract.ItemKind
	Writers    []int
	Readers    []int
}

type Graph struct {
	modules []*Module
	byName  map[string]ModuleID
	byPath  map[string]ModuleID

	// Module-level edges, untyped, adjacency kept in insertion order.
	moduleEdges map[ModuleID]map[ModuleID]bool
	adjacency   map[ModuleID][]ModuleID

	// Item-level edges, typed Strong or Weak.
	itemEdges map[ItemRef]map[ItemRef]EdgeKind
	itemAdj   map[ItemRef][]ItemRef

	vars map[ModuleID]map[string]*VarState
}

func New() *Graph {
	return &Graph{
		byName:      make(map[string]ModuleID),
		byPath:      make(map[string]ModuleID),
		moduleEdges: make(map[ModuleID]map[ModuleID]bool),
		adjacency:   make(map[ModuleID][]ModuleID),
		itemEdges:   make(map[ItemRef]map[ItemRef]EdgeKind),
		itemAdj:     make(map[ItemRef][]ItemRef),
		vars:        make(map[ModuleID]map[string]*VarState),
	}
}

// AddModule registers a module. Identity (name + path) is immutable
// afterwards; re-adding an existing name is an error.
func (g *Graph) AddModule(name, path string, isPackage, isInit bool) (ModuleID, error) {
	if _, ok := g.byName[name]; ok {
		return 0, fmt.Errorf("module already registered: %s", name)
	}
	id := ModuleID(len(g.modules))
	g.modules = append(g.modules, &Module{
		ID:        id,
		Name:      name,
		Path:      path,
		IsPackage: isPackage,
		IsInit:    isInit,
		Reexports: make(map[string]bool),
	})
	g.byName[name] = id
	g.byPath[path] = id
	return id, nil
}

// SetItems populates a module's item list and symbol states from an
// extraction result. Items are never mutated afterwards.
func (g *Graph) SetItems(id ModuleID, src *extract.ModuleSource) {
	mod := g.modules[id]
	mod.Items = src.Items
	mod.Uses = src.Uses
	mod.NestedImports = src.NestedImports
	mod.HasSideEffects = src.HasSideEffects
	for _, name := range src.Reexports {
		mod.Reexports[name] = true
	}

	states := make(map[string]*VarState)
	for i := range src.Items {
		item := &src.Items[i]
		for _, name := range item.Declares {
			state, ok := states[name]
			if !ok {
				state = &VarState{DeclaredBy: item.ID, Kind: item.Kind}
				states[name] = state
			}
			state.Writers = append(state.Writers, item.ID)
		}
	}
	for i := range src.Items {
		item := &src.Items[i]
		for _, name := range item.Reads {
			if state, ok := states[name]; ok && state.DeclaredBy != item.ID {
				state.Readers = append(state.Readers, item.ID)
			}
		}
		for _, name := range item.TypeReads {
			if state, ok := states[name]; ok && state.DeclaredBy != item.ID {
				state.Readers = append(state.Readers, item.ID)
			}
		}
	}
	g.vars[id] = states
}

func (g *Graph) AddModuleDependency(from, to ModuleID) {
	if from == to {
		return
	}
	edges, ok := g.moduleEdges[from]
	if !ok {
		edges = make(map[ModuleID]bool)
		g.moduleEdges[from] = edges
	}
	if edges[to] {
		return
	}
	edges[to] = true
	g.adjacency[from] = append(g.adjacency[from], to)
}

// AddDependency adds a typed item-level edge. Cross-module edges are
// allowed (an import item depends on the declaring item elsewhere).
func (g *Graph) AddDependency(from, to ItemRef, kind EdgeKind) {
	edges, ok := g.itemEdges[from]
	if !ok {
		edges = make(map[ItemRef]EdgeKind)
		g.itemEdges[from] = edges
	}
	if existing, ok := edges[to]; ok {
		// Strong wins over Weak when both are recorded.
		if existing == Strong || kind == Weak {
			return
		}
		edges[to] = Strong
		return
	}
	edges[to] = kind
	g.itemAdj[from] = append(g.itemAdj[from], to)
}

func (g *Graph) ModuleByName(name string) (*Module, bool) {
	id, ok := g.byName[name]
	if !ok {
		return nil, false
	}
	return g.modules[id], true
}

func (g *Graph) ModuleByPath(path string) (*Module, bool) {
	id, ok := g.byPath[path]
	if !ok {
		return nil, false
	}
	return g.modules[id], true
}

func (g *Graph) Module(id ModuleID) *Module {
	return g.modules[id]
}

// Modules returns the arena in first-discovery order.
func (g *Graph) Modules() []*Module {
	return g.modules
}

func (g *Graph) ModuleCount() int {
	return len(g.modules)
}

func (g *Graph) ItemCount() int {
	total := 0
	for _, mod := range g.modules {
		total += len(mod.Items)
	}
	return total
}

// Dependencies returns a module's outgoing edges in insertion order.
func (g *Graph) Dependencies(id ModuleID) []ModuleID {
	return g.adjacency[id]
}

// VarStates returns the per-symbol states of one module.
func (g *Graph) VarStates(id ModuleID) map[string]*VarState {
	return g.vars[id]
}

// DeclaringItem resolves the item declaring name in module id, if any.
func (g *Graph) DeclaringItem(id ModuleID, name string) (ItemRef, bool) {
	state, ok := g.vars[id][name]
	if !ok || state.DeclaredBy < 0 {
		return ItemRef{}, false
	}
	return ItemRef{Module: id, Item: state.DeclaredBy}, true
}
