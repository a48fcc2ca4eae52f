// # internal/graph/toposort.go
package graph

import (
	"fmt"
	"strings"

	dgraph "github.com/dominikbraun/graph"
)

// CycleError carries the concrete cycles blocking a strict topological
// order. Diagnostics name every module involved.
type CycleError struct {
	Cycles [][]string
}

func (e *CycleError) Error() string {
	if len(e.Cycles) == 0 {
		return "circular imports detected"
	}
	chains := make([]string, 0, len(e.Cycles))
	for _, cycle := range e.Cycles {
		chains = append(chains, strings.Join(cycle, " -> "))
	}
	return fmt.Sprintf("circular imports detected: %s", strings.Join(chains, "; "))
}

// TopologicalOrder orders all modules so dependencies precede their
// importers. Ties are broken by first-discovery order, so output is
// deterministic across runs given identical input ordering. Any cycle
// yields a *CycleError naming the modules involved.
func (g *Graph) TopologicalOrder() ([]ModuleID, error) {
	sccs := g.stronglyConnected()
	for _, component := range sccs {
		if len(component) > 1 {
			return nil, &CycleError{Cycles: g.cycleNames(sccs)}
		}
	}
	groups := make([][]ModuleID, len(sccs))
	copy(groups, sccs)
	return g.OrderWithGroups(groups)
}

// OrderWithGroups orders modules through the condensation of the given
// strongly-connected groups: each group is placed as a unit, members
// inside a group stay in the order the caller handed them (the cycle
// analyzer picks an order satisfying module-level reads). Modules not
// covered by any group form singleton groups.
func (g *Graph) OrderWithGroups(groups [][]ModuleID) ([]ModuleID, error) {
	groupOf := make(map[ModuleID]int, len(g.modules))
	for idx, members := range groups {
		for _, id := range members {
			groupOf[id] = idx
		}
	}
	for _, mod := range g.modules {
		if _, ok := groupOf[mod.ID]; !ok {
			groupOf[mod.ID] = len(groups)
			groups = append(groups, []ModuleID{mod.ID})
		}
	}

	// Discovery rank of a group is its earliest member.
	rank := make([]ModuleID, len(groups))
	for idx, members := range groups {
		lowest := members[0]
		for _, id := range members[1:] {
			if id < lowest {
				lowest = id
			}
		}
		rank[idx] = lowest
	}

	condensed := dgraph.New(dgraph.IntHash, dgraph.Directed())
	for idx := range groups {
		if err := condensed.AddVertex(idx); err != nil {
			return nil, fmt.Errorf("condensation vertex %d: %w", idx, err)
		}
	}
	for _, mod := range g.modules {
		from := groupOf[mod.ID]
		for _, dep := range g.adjacency[mod.ID] {
			to := groupOf[dep]
			if from == to {
				continue
			}
			// Imports point at dependencies; order wants
			// dependencies first.
			if err := condensed.AddEdge(to, from); err != nil && err != dgraph.ErrEdgeAlreadyExists {
				return nil, fmt.Errorf("condensation edge %d->%d: %w", to, from, err)
			}
		}
	}

	orderedGroups, err := dgraph.StableTopologicalSort(condensed, func(a, b int) bool {
		return rank[a] < rank[b]
	})
	if err != nil {
		return nil, fmt.Errorf("condensation sort: %w", err)
	}

	order := make([]ModuleID, 0, len(g.modules))
	for _, idx := range orderedGroups {
		order = append(order, groups[idx]...)
	}
	return order, nil
}

// stronglyConnected runs Tarjan's algorithm over the module-level
// graph and returns all components in reverse topological order.
func (g *Graph) stronglyConnected() [][]ModuleID {
	index := 0
	indexOf := make(map[ModuleID]int, len(g.modules))
	lowLink := make(map[ModuleID]int, len(g.modules))
	onStack := make(map[ModuleID]bool, len(g.modules))
	stack := make([]ModuleID, 0, len(g.modules))
	var components [][]ModuleID

	var strongConnect func(v ModuleID)
	strongConnect = func(v ModuleID) {
		indexOf[v] = index
		lowLink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.adjacency[v] {
			if _, seen := indexOf[w]; !seen {
				strongConnect(w)
				if lowLink[w] < lowLink[v] {
					lowLink[v] = lowLink[w]
				}
			} else if onStack[w] && indexOf[w] < lowLink[v] {
				lowLink[v] = indexOf[w]
			}
		}

		if lowLink[v] != indexOf[v] {
			return
		}

		var component []ModuleID
		for {
			last := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[last] = false
			component = append(component, last)
			if last == v {
				break
			}
		}
		components = append(components, component)
	}

	for _, mod := range g.modules {
		if _, seen := indexOf[mod.ID]; !seen {
			strongConnect(mod.ID)
		}
	}
	return components
}

// SCCs exposes Tarjan components to the cycle analyzer.
func (g *Graph) SCCs() [][]ModuleID {
	return g.stronglyConnected()
}

func (g *Graph) cycleNames(sccs [][]ModuleID) [][]string {
	var cycles [][]string
	for _, component := range sccs {
		if len(component) < 2 {
			continue
		}
		names := make([]string, 0, len(component))
		for _, id := range component {
			names = append(names, g.modules[id].Name)
		}
		cycles = append(cycles, names)
	}
	return cycles
}
