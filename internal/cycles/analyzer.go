// # internal/cycles/analyzer.go
package cycles

import (
	"fmt"
	"sort"
	"strings"

	"pybundle/internal/extract"
	"pybundle/internal/graph"
)

type Kind int

const (
	// FunctionLevel: every crossing import is read only inside
	// function or method bodies; deferring those reads to call time
	// resolves the cycle.
	FunctionLevel Kind = iota
	// ClassLevel: crossing imports are read at class-construction
	// time; resolvable only if construction order can be arranged.
	ClassLevel
	// ModuleConstants: a crossing import feeds a module-level
	// constant required before the exporting module finishes
	// initializing. A genuine initialization-order paradox.
	ModuleConstants
	// ImportTime: order-sensitive but resolvable by careful
	// topological placement.
	ImportTime
)

func (k Kind) String() string {
	switch k {
	case FunctionLevel:
		return "function-level"
	case ClassLevel:
		return "class-level"
	case ModuleConstants:
		return "module-constants"
	default:
		return "import-time"
	}
}

type ResolutionKind int

const (
	FunctionScopedImport ResolutionKind = iota
	LazyImport
	ModuleSplit
	Unresolvable
)

func (k ResolutionKind) String() string {
	switch k {
	case FunctionScopedImport:
		return "function-scoped-import"
	case LazyImport:
		return "lazy-import"
	case ModuleSplit:
		return "module-split"
	default:
		return "unresolvable"
	}
}

// ImportSite names one crossing import inside a group, for resolution
// advice and diagnostics.
type ImportSite struct {
	Module  string // importing module
	Target  string // imported module (a group member)
	Symbol  string // symbol read, when identifiable
	Context extract.UseContext
}

type Resolution struct {
	Kind    ResolutionKind
	Reason  string
	Imports []ImportSite
}

// Group is a strongly-connected component of two or more modules.
// Created once by the analyzer and never mutated after Analyze.
type Group struct {
	Members    []graph.ModuleID
	Names      []string
	Kind       Kind
	Resolution Resolution

	// For ModuleConstants groups: the constant assignment that
	// creates the paradox.
	ConstantModule string
	ConstantName   string
	SourceModule   string
	SourceSymbol   string
}

// FatalCycleError aborts bundling: at least one group is unresolvable.
type FatalCycleError struct {
	Groups []*Group
}

func (e *FatalCycleError) Error() string {
	parts := make([]string, 0, len(e.Groups))
	for _, grp := range e.Groups {
		parts = append(parts, fmt.Sprintf("cycle [%s]: %s",
			strings.Join(grp.Names, ", "), grp.Resolution.Reason))
	}
	return "unresolvable circular dependency: " + strings.Join(parts, "; ")
}

type Analyzer struct {
	g *graph.Graph
}

func New(g *graph.Graph) *Analyzer {
	return &Analyzer{g: g}
}

// FindGroups returns the non-trivial strongly-connected components of
// the module graph in reverse topological order. Singleton components
// without a self-loop are omitted.
func (a *Analyzer) FindGroups() []*Group {
	var groups []*Group
	for _, component := range a.g.SCCs() {
		if len(component) < 2 {
			continue
		}
		members := append([]graph.ModuleID(nil), component...)
		sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
		names := make([]string, 0, len(members))
		for _, id := range members {
			names = append(names, a.g.Module(id).Name)
		}
		groups = append(groups, &Group{Members: members, Names: names})
	}
	return groups
}

// FindCyclePaths reports the first concrete cycle found per DFS root
// using a three-color walk, for diagnostics.
func (a *Analyzer) FindCyclePaths() [][]string {
	const (
		unvisited  = 0
		inProgress = 1
		done       = 2
	)
	color := make(map[graph.ModuleID]int)
	var cycles [][]string

	var visit func(id graph.ModuleID, path []graph.ModuleID)
	visit = func(id graph.ModuleID, path []graph.ModuleID) {
		color[id] = inProgress
		path = append(path, id)

		for _, next := range a.g.Dependencies(id) {
			switch color[next] {
			case inProgress:
				start := -1
				for i, mod := range path {
					if mod == next {
						start = i
						break
					}
				}
				if start >= 0 {
					names := make([]string, 0, len(path)-start)
					for _, mod := range path[start:] {
						names = append(names, a.g.Module(mod).Name)
					}
					cycles = append(cycles, names)
				}
			case unvisited:
				visit(next, path)
			}
		}

		color[id] = done
	}

	for _, mod := range a.g.Modules() {
		if color[mod.ID] == unvisited {
			visit(mod.ID, nil)
		}
	}
	return cycles
}

// Analyze classifies every group and proposes a resolution. It returns
// a *FatalCycleError when any group is unresolvable; the error names
// every module in the cycle and the exact symbol causing the paradox.
func (a *Analyzer) Analyze() ([]*Group, error) {
	groups := a.FindGroups()
	var fatal []*Group
	for _, grp := range groups {
		grp.Kind = a.Classify(grp)
		grp.Resolution = a.SuggestResolution(grp)
		if grp.Resolution.Kind == Unresolvable {
			fatal = append(fatal, grp)
		}
	}
	if len(fatal) > 0 {
		return groups, &FatalCycleError{Groups: fatal}
	}
	return groups, nil
}

// Classify inspects every cross-member import of the group and decides
// how hard the cycle is to break.
func (a *Analyzer) Classify(grp *Group) Kind {
	sites := a.crossingSites(grp)
	grp.Resolution.Imports = sites

	if len(sites) == 0 {
		return ImportTime
	}

	stuck := a.arrangeMembers(grp, sites)

	sawClass := false
	sawModuleLevel := false
	for _, site := range sites {
		switch site.Context {
		case extract.UseModuleConstant:
			if stuck[site.Module] && stuck[site.Target] {
				// No emission order lets the exporter finish first: a
				// genuine paradox, dominating every other read.
				grp.ConstantModule = site.Module
				grp.SourceModule = site.Target
				grp.SourceSymbol = site.Symbol
				a.fillConstantTarget(grp, site)
				return ModuleConstants
			}
			// Emitting the exporter first satisfies the constant; an
			// order-sensitive read like any other.
			sawModuleLevel = true
		case extract.UseClassBody:
			sawClass = true
		case extract.UseFunctionBody:
			// deferred to call time
		default:
			sawModuleLevel = true
		}
	}

	if sawModuleLevel {
		return ImportTime
	}
	if sawClass {
		return ClassLevel
	}
	return FunctionLevel
}

// arrangeMembers looks for an in-group emission order in which every
// import-time read of another member sees the exporter already
// initialized. On success the group's member order is rewritten to that
// order and nil is returned; otherwise the result is the set of module
// names whose reads admit no such order.
func (a *Analyzer) arrangeMembers(grp *Group, sites []ImportSite) map[string]bool {
	idOf := make(map[string]graph.ModuleID, len(grp.Members))
	for _, id := range grp.Members {
		idOf[a.g.Module(id).Name] = id
	}

	// site.Target must come before site.Module for every read that runs
	// while site.Module initializes. Function-body reads wait until call
	// time and constrain nothing.
	needs := make(map[graph.ModuleID]map[graph.ModuleID]bool)
	for _, site := range sites {
		if site.Context == extract.UseFunctionBody {
			continue
		}
		importer, target := idOf[site.Module], idOf[site.Target]
		if needs[importer] == nil {
			needs[importer] = make(map[graph.ModuleID]bool)
		}
		needs[importer][target] = true
	}

	placed := make(map[graph.ModuleID]bool, len(grp.Members))
	order := make([]graph.ModuleID, 0, len(grp.Members))
	for len(order) < len(grp.Members) {
		advanced := false
		// Members are sorted by id, so ties fall to first discovery.
		for _, id := range grp.Members {
			if placed[id] {
				continue
			}
			ready := true
			for dep := range needs[id] {
				if !placed[dep] {
					ready = false
					break
				}
			}
			if ready {
				placed[id] = true
				order = append(order, id)
				advanced = true
				break
			}
		}
		if !advanced {
			break
		}
	}

	if len(order) < len(grp.Members) {
		stuck := make(map[string]bool)
		for _, id := range grp.Members {
			if !placed[id] {
				stuck[a.g.Module(id).Name] = true
			}
		}
		return stuck
	}

	grp.Members = order
	names := make([]string, 0, len(order))
	for _, id := range order {
		names = append(names, a.g.Module(id).Name)
	}
	grp.Names = names
	return nil
}

// SuggestResolution maps the classification to a strategy.
func (a *Analyzer) SuggestResolution(grp *Group) Resolution {
	res := grp.Resolution
	switch grp.Kind {
	case FunctionLevel:
		res.Kind = FunctionScopedImport
		res.Reason = fmt.Sprintf(
			"all crossing imports in [%s] are read inside function bodies; defer them to call time",
			strings.Join(grp.Names, ", "))
	case ClassLevel:
		if a.classOrderArrangeable(grp) {
			res.Kind = LazyImport
			res.Reason = fmt.Sprintf(
				"class-body reads in [%s] can be satisfied by deferring imports until construction",
				strings.Join(grp.Names, ", "))
		} else {
			res.Kind = ModuleSplit
			res.Reason = fmt.Sprintf(
				"class construction order in [%s] cannot be arranged; split the shared definitions into a leaf module",
				strings.Join(grp.Names, ", "))
		}
	case ModuleConstants:
		res.Kind = Unresolvable
		res.Reason = fmt.Sprintf(
			"module-level constant %s.%s is initialized from %s.%s while %s is still initializing; no import order can satisfy both modules",
			grp.ConstantModule, grp.ConstantName,
			grp.SourceModule, grp.SourceSymbol, grp.SourceModule)
	default:
		// Order-sensitive but placeable; relocating the imports is
		// the safe default.
		res.Kind = FunctionScopedImport
		res.Reason = fmt.Sprintf(
			"imports in [%s] run at import time; exporting modules are placed first and reads are deferred where possible",
			strings.Join(grp.Names, ", "))
	}
	return res
}

// crossingSites lists every read, inside a member, of a name bound by
// an import of another member, together with the lexical context of
// the read.
func (a *Analyzer) crossingSites(grp *Group) []ImportSite {
	member := make(map[graph.ModuleID]bool, len(grp.Members))
	for _, id := range grp.Members {
		member[id] = true
	}

	var sites []ImportSite
	for _, id := range grp.Members {
		mod := a.g.Module(id)

		// Names bound by imports of other group members.
		boundTo := make(map[string]string) // local name -> target module
		symbolOf := make(map[string]string)
		for i := range mod.Items {
			item := &mod.Items[i]
			if item.Kind != extract.KindImport && item.Kind != extract.KindFromImport {
				continue
			}
			target, ok := a.g.ModuleByName(item.Module)
			if !ok || !member[target.ID] {
				continue
			}
			if item.Kind == extract.KindImport {
				for _, bound := range item.Declares {
					boundTo[bound] = target.Name
				}
				continue
			}
			for _, name := range item.Names {
				boundTo[name.Bound()] = target.Name
				symbolOf[name.Bound()] = name.Name
			}
		}
		if len(boundTo) == 0 {
			continue
		}

		for _, use := range mod.Uses {
			target, ok := boundTo[use.Name]
			if !ok {
				continue
			}
			symbol := symbolOf[use.Name]
			if symbol == "" {
				symbol = use.Attr
			}
			sites = append(sites, ImportSite{
				Module:  mod.Name,
				Target:  target,
				Symbol:  symbol,
				Context: use.Context,
			})
		}
	}

	// Imports buried below the top level cross the cycle too: a
	// function-scoped import is the already-deferred form, a block-level
	// one still runs at import time.
	for _, id := range grp.Members {
		mod := a.g.Module(id)
		for _, ni := range mod.NestedImports {
			target, ok := a.g.ModuleByName(ni.Module)
			if !ok || !member[target.ID] {
				continue
			}
			ctx := extract.UseModuleLevel
			if ni.InBody {
				ctx = extract.UseFunctionBody
			}
			if len(ni.Names) == 0 {
				sites = append(sites, ImportSite{Module: mod.Name, Target: target.Name, Context: ctx})
				continue
			}
			for _, name := range ni.Names {
				sites = append(sites, ImportSite{
					Module:  mod.Name,
					Target:  target.Name,
					Symbol:  name.Name,
					Context: ctx,
				})
			}
		}
	}
	return sites
}

func (a *Analyzer) fillConstantTarget(grp *Group, site ImportSite) {
	mod, ok := a.g.ModuleByName(site.Module)
	if !ok {
		return
	}
	for _, use := range mod.Uses {
		if use.Context == extract.UseModuleConstant && use.AssignedTo != "" &&
			(use.Attr == site.Symbol || use.Name == site.Symbol) {
			grp.ConstantName = use.AssignedTo
			return
		}
	}
}

// classOrderArrangeable reports whether class-body crossing reads form
// a DAG among the members, so one construction order satisfies all.
func (a *Analyzer) classOrderArrangeable(grp *Group) bool {
	// Two members whose class bodies read from each other cannot be
	// ordered.
	reads := make(map[string]map[string]bool)
	for _, site := range grp.Resolution.Imports {
		if site.Context != extract.UseClassBody {
			continue
		}
		if reads[site.Module] == nil {
			reads[site.Module] = make(map[string]bool)
		}
		reads[site.Module][site.Target] = true
	}
	for from, targets := range reads {
		for to := range targets {
			if reads[to][from] {
				return false
			}
		}
	}
	return true
}
