// # internal/extract/types.go
package extract

import "pybundle/internal/parser"

type ItemKind int

const (
	KindImport ItemKind = iota
	KindFromImport
	KindFunctionDef
	KindClassDef
	KindAssignment
	KindConditional
	KindTry
	KindExpression
	KindOther
)

func (k ItemKind) String() string {
	switch k {
	case KindImport:
		return "import"
	case KindFromImport:
		return "from-import"
	case KindFunctionDef:
		return "function"
	case KindClassDef:
		return "class"
	case KindAssignment:
		return "assignment"
	case KindConditional:
		return "conditional"
	case KindTry:
		return "try"
	case KindExpression:
		return "expression"
	default:
		return "other"
	}
}

// ImportedName is one entry of a from-import list. Alias is empty when
// the name is bound as itself.
type ImportedName struct {
	Name  string
	Alias string
}

func (n ImportedName) Bound() string {
	if n.Alias != "" {
		return n.Alias
	}
	return n.Name
}

// Item is one top-level statement of a module, the unit of granularity
// tracked by the dependency graph. Items are immutable after extraction.
type Item struct {
	ID   int
	Kind ItemKind

	// Name is the defined name for function/class items.
	Name string

	// Import fields. Module is the raw imported module path with any
	// leading relative dots stripped, Level counts those dots.
	Module string
	Level  int
	Names  []ImportedName
	Star   bool

	// Assignment targets, in source order.
	Targets []string

	Declares []string
	Reads    []string
	// TypeReads are names referenced only from annotations; they become
	// Weak dependency edges so a type-only reference never forces
	// inclusion on its own.
	TypeReads []string

	HasSideEffects bool
	Reexports      []string

	StartByte uint
	EndByte   uint
	Location  parser.Location
}

// UseContext records where, lexically, an imported or global name is
// read. The cycle analyzer classifies circular-dependency groups from
// these contexts.
type UseContext int

const (
	UseModuleLevel UseContext = iota
	UseModuleConstant
	UseClassBody
	UseFunctionBody
)

func (c UseContext) String() string {
	switch c {
	case UseModuleLevel:
		return "module level"
	case UseModuleConstant:
		return "module constant"
	case UseClassBody:
		return "class body"
	default:
		return "function body"
	}
}

// NameUse is one read of a name, with the attribute accessed on it (if
// any) and, for module-level assignments, the target the value feeds.
type NameUse struct {
	Name       string
	Attr       string
	AssignedTo string
	Context    UseContext
	Location   parser.Location
}

// NestedImport is an import statement found below the top level of a
// module: inside a function or class body, or inside a module-level
// conditional or try block. These bind no module-scope names, but a
// first-party target still has to be bundled for the import to resolve.
type NestedImport struct {
	Plain  bool // "import X" as opposed to "from X import ..."
	Module string
	Level  int
	Names  []ImportedName
	Star   bool

	// InBody is true for imports inside function or class bodies, which
	// run only when the enclosing definition executes. Imports inside
	// module-level blocks run at import time.
	InBody bool

	// Item is the id of the enclosing top-level item.
	Item     int
	Location parser.Location
}

// ModuleSource is the extraction result for one module: its ordered
// item list plus the flat name-use log.
type ModuleSource struct {
	Path           string
	Items          []Item
	Uses           []NameUse
	NestedImports  []NestedImport
	Reexports      []string
	HasSideEffects bool
}
