// # internal/resolver/resolver.go
package resolver

import (
	"os"
	"path/filepath"
	"strings"
)

// Kind classifies an import target. FirstParty modules are inlined,
// External imports stay untouched in the output, Unresolved
// first-party imports are fatal.
type Kind int

const (
	FirstParty Kind = iota
	External
	Unresolved
)

func (k Kind) String() string {
	switch k {
	case FirstParty:
		return "first-party"
	case External:
		return "external"
	default:
		return "unresolved"
	}
}

type Resolution struct {
	Kind   Kind
	Module string // canonical dotted name for first-party targets
}

// Resolver maps file paths to dotted module names and import specs to
// first-party modules, external dependencies or resolution failures.
type Resolver struct {
	projectRoot string
	known       map[string]bool // every discovered first-party module
	topLevel    map[string]bool // first path components owned by the project
}

func New(projectRoot string) *Resolver {
	return &Resolver{
		projectRoot: projectRoot,
		known:       make(map[string]bool),
		topLevel:    make(map[string]bool),
	}
}

// Register records a discovered first-party module name.
func (r *Resolver) Register(module string) {
	r.known[module] = true
	r.topLevel[strings.SplitN(module, ".", 2)[0]] = true
	// Parent packages are importable too.
	for {
		dot := strings.LastIndex(module, ".")
		if dot < 0 {
			return
		}
		module = module[:dot]
		r.known[module] = true
	}
}

// ModuleName derives the dotted module name of a file, trimming any
// leading directories that are not packages (no __init__.py).
func (r *Resolver) ModuleName(filePath string) string {
	rel, err := filepath.Rel(r.projectRoot, filePath)
	if err != nil {
		return ""
	}

	parts := strings.Split(rel, string(os.PathSeparator))

	packageStart := 0
	for i := 0; i < len(parts)-1; i++ {
		marker := filepath.Join(r.projectRoot, filepath.Join(parts[:i+1]...), "__init__.py")
		if _, err := os.Stat(marker); os.IsNotExist(err) {
			packageStart = i + 1
		} else {
			break
		}
	}
	parts = parts[packageStart:]

	parts[len(parts)-1] = strings.TrimSuffix(parts[len(parts)-1], ".py")
	if parts[len(parts)-1] == "__init__" {
		parts = parts[:len(parts)-1]
	}

	return strings.Join(parts, ".")
}

// Resolve classifies one import spec seen in fromModule. level counts
// the leading dots of a relative import; fromPackage marks a package
// __init__ module, whose first relative level resolves to itself.
func (r *Resolver) Resolve(fromModule string, fromPackage bool, imported string, level int) Resolution {
	if level > 0 {
		target := r.resolveRelative(fromModule, fromPackage, imported, level)
		if target != "" && r.known[target] {
			return Resolution{Kind: FirstParty, Module: target}
		}
		// Relative imports are first-party by definition.
		return Resolution{Kind: Unresolved, Module: target}
	}

	if r.known[imported] {
		return Resolution{Kind: FirstParty, Module: imported}
	}

	head := strings.SplitN(imported, ".", 2)[0]
	if IsStdlib(head) {
		return Resolution{Kind: External, Module: imported}
	}
	if r.topLevel[head] {
		// The project owns this namespace but the module is missing.
		return Resolution{Kind: Unresolved, Module: imported}
	}
	return Resolution{Kind: External, Module: imported}
}

// ResolveName resolves `from module import name` where name may be a
// submodule rather than a symbol. Returns the submodule's canonical
// name and true when it is one.
func (r *Resolver) ResolveName(module, name string) (string, bool) {
	candidate := module + "." + name
	if module == "" {
		candidate = name
	}
	if r.known[candidate] {
		return candidate, true
	}
	return "", false
}

func (r *Resolver) resolveRelative(fromModule string, fromPackage bool, imported string, level int) string {
	parts := strings.Split(fromModule, ".")
	if fromPackage {
		parts = append(parts, "__init__")
	}
	if level > len(parts) {
		return ""
	}
	base := strings.Join(parts[:len(parts)-level], ".")
	if imported == "" {
		return base
	}
	if base == "" {
		return imported
	}
	return base + "." + imported
}

// IsFirstParty reports whether a dotted name is a discovered module.
func (r *Resolver) IsFirstParty(module string) bool {
	return r.known[module]
}
