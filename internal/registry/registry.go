// # internal/registry/registry.go
package registry

import (
	"fmt"
	"strings"

	"pybundle/internal/extract"
	"pybundle/internal/graph"
)

// Registry aggregates exported symbol names across all modules,
// detects collisions and assigns deterministic renames. It is a
// single-writer table populated in one pass; renames are write-once so
// output is stable across runs given identical input ordering.
type Registry struct {
	g *graph.Graph

	definers  map[string][]graph.ModuleID // name -> modules declaring it, discovery order
	nameOrder []string

	renames map[renameKey]string
	taken   map[string]bool // every global name in the flat namespace

	processed map[graph.ModuleID]bool
	deferred  map[string]bool // outstanding tokens
}

type renameKey struct {
	module graph.ModuleID
	name   string
}

// Conflict is one bare name defined at module scope by two or more
// modules.
type Conflict struct {
	Name    string
	Modules []graph.ModuleID
}

// InternalError signals a broken pipeline invariant, not user input.
type InternalError struct {
	Message string
}

func (e *InternalError) Error() string {
	return "internal error: " + e.Message
}

func New(g *graph.Graph) *Registry {
	return &Registry{
		g:         g,
		definers:  make(map[string][]graph.ModuleID),
		renames:   make(map[renameKey]string),
		taken:     make(map[string]bool),
		processed: make(map[graph.ModuleID]bool),
		deferred:  make(map[string]bool),
	}
}

// Exported reports whether a module-scope name takes part in conflict
// resolution: names with a single leading underscore are private,
// dunder names are kept.
func Exported(name string) bool {
	if strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__") {
		return true
	}
	return !strings.HasPrefix(name, "_")
}

// RegisterExports populates the name->modules map from a module's
// public item declarations. Call in discovery order; the first
// registrant of a name keeps the undecorated name. The entry module is
// enrolled on equal footing with inlined modules.
func (r *Registry) RegisterExports(id graph.ModuleID, items []extract.Item) {
	seen := make(map[string]bool)
	for i := range items {
		for _, name := range items[i].Declares {
			if seen[name] || !Exported(name) {
				continue
			}
			seen[name] = true
			if _, ok := r.definers[name]; !ok {
				r.nameOrder = append(r.nameOrder, name)
			}
			r.definers[name] = append(r.definers[name], id)
			r.taken[name] = true
		}
	}
}

// DetectConflicts returns every name with two or more defining
// modules, in discovery order.
func (r *Registry) DetectConflicts() []Conflict {
	var conflicts []Conflict
	for _, name := range r.nameOrder {
		mods := r.definers[name]
		if len(mods) > 1 {
			conflicts = append(conflicts, Conflict{
				Name:    name,
				Modules: append([]graph.ModuleID(nil), mods...),
			})
		}
	}
	return conflicts
}

// AssignRenames generates the rename table: for each conflicting name
// the first discoverer keeps the bare name and every later definer
// gets {name}_{n} with n its 1-based occurrence index, bumped past any
// unrelated existing global. Renames are never altered once assigned.
func (r *Registry) AssignRenames() int {
	assigned := 0
	for _, name := range r.nameOrder {
		mods := r.definers[name]
		if len(mods) < 2 {
			continue
		}
		for occurrence, id := range mods[1:] {
			key := renameKey{module: id, name: name}
			if _, done := r.renames[key]; done {
				continue
			}
			n := occurrence + 1
			candidate := fmt.Sprintf("%s_%d", name, n)
			for r.taken[candidate] {
				n++
				candidate = fmt.Sprintf("%s_%d", name, n)
			}
			r.renames[key] = candidate
			r.taken[candidate] = true
			assigned++
		}
	}
	return assigned
}

// RenameFor returns the assigned rename for (module, name), if any.
func (r *Registry) RenameFor(id graph.ModuleID, name string) (string, bool) {
	renamed, ok := r.renames[renameKey{module: id, name: name}]
	return renamed, ok
}

// FinalName is the bundled name of (module, name): the rename when one
// exists, the original otherwise.
func (r *Registry) FinalName(id graph.ModuleID, name string) string {
	if renamed, ok := r.RenameFor(id, name); ok {
		return renamed
	}
	return name
}

// MarkProcessed records that a module's rewrite pass is complete, so
// later alias resolutions against it are direct instead of deferred.
func (r *Registry) MarkProcessed(id graph.ModuleID) {
	r.processed[id] = true
}

// ResolveImportAlias resolves a local alias to its canonical bundled
// reference. When the target module has not been processed yet (the
// usual case inside a circular-dependency group) it returns a deferred
// token of the form "module:symbol" to be re-resolved by
// ResolveDeferred.
func (r *Registry) ResolveImportAlias(target graph.ModuleID, symbol string) string {
	if r.processed[target] {
		return r.FinalName(target, symbol)
	}
	token := DeferredToken(r.g.Module(target).Name, symbol)
	r.deferred[token] = true
	return token
}

// DeferredToken builds the placeholder reference for a not-yet
// processed import target.
func DeferredToken(module, symbol string) string {
	return module + ":" + symbol
}

// IsDeferred reports whether a reference is a placeholder token.
func IsDeferred(ref string) bool {
	return strings.Contains(ref, ":")
}

// ResolveDeferred resolves one token after all modules have been
// processed. A token that still cannot be resolved is a fatal internal
// error, never a user-facing one.
func (r *Registry) ResolveDeferred(token string) (string, error) {
	moduleName, symbol, ok := strings.Cut(token, ":")
	if !ok {
		return "", &InternalError{Message: fmt.Sprintf("malformed deferred token %q", token)}
	}
	mod, ok := r.g.ModuleByName(moduleName)
	if !ok {
		return "", &InternalError{Message: fmt.Sprintf("deferred token %q references unknown module", token)}
	}
	if !r.processed[mod.ID] {
		return "", &InternalError{Message: fmt.Sprintf("deferred token %q target was never processed", token)}
	}
	delete(r.deferred, token)
	return r.FinalName(mod.ID, symbol), nil
}

// OutstandingDeferred returns tokens still unresolved. After the final
// pass this must be empty.
func (r *Registry) OutstandingDeferred() []string {
	var tokens []string
	for token := range r.deferred {
		tokens = append(tokens, token)
	}
	return tokens
}

// PublicNames lists a module's exported module-scope names in item
// order, for star-imports and namespace synthesis.
func (r *Registry) PublicNames(id graph.ModuleID) []string {
	mod := r.g.Module(id)
	seen := make(map[string]bool)
	var names []string
	for i := range mod.Items {
		for _, name := range mod.Items[i].Declares {
			if !seen[name] && Exported(name) {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	if len(mod.Reexports) > 0 {
		filtered := names[:0]
		for _, name := range names {
			if mod.Reexports[name] {
				filtered = append(filtered, name)
			}
		}
		if len(filtered) > 0 {
			names = filtered
		}
	}
	return names
}
