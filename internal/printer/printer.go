// # internal/printer/printer.go
package printer

import (
	"fmt"
	"strings"

	"pybundle/internal/rewrite"
)

// ApplyEdits produces a copy of content with every edit applied. Edits
// must be sorted by start offset and must not overlap; a violation is
// an internal error, never a user-facing one.
func ApplyEdits(content []byte, edits []rewrite.Edit) ([]byte, error) {
	var out []byte
	cursor := uint(0)
	for i, edit := range edits {
		if edit.Start < cursor {
			return nil, fmt.Errorf("internal error: overlapping edit %d at byte %d (cursor %d)", i, edit.Start, cursor)
		}
		if edit.End > uint(len(content)) {
			return nil, fmt.Errorf("internal error: edit %d ends at byte %d past content length %d", i, edit.End, len(content))
		}
		out = append(out, content[cursor:edit.Start]...)
		out = append(out, edit.Text...)
		cursor = edit.End
	}
	out = append(out, content[cursor:]...)
	return out, nil
}

// Slice renders the byte span [start, end) of content with the subset
// of edits falling inside it, offsets shifted to the span.
func Slice(content []byte, start, end uint, edits []rewrite.Edit) (string, error) {
	var local []rewrite.Edit
	for _, edit := range edits {
		if edit.Start >= start && edit.End <= end {
			local = append(local, rewrite.Edit{Start: edit.Start - start, End: edit.End - start, Text: edit.Text})
		}
	}
	rendered, err := ApplyEdits(content[start:end], local)
	if err != nil {
		return "", err
	}
	return string(rendered), nil
}

// Chunk is one emitted piece of a module's body, already rewritten.
type Chunk struct {
	Text string
}

// ModuleOutput is one inlined module in emission order.
type ModuleOutput struct {
	Name   string
	Chunks []Chunk
}

// Document is the assembled bundle before serialization.
type Document struct {
	Entry      string
	Futures    []string // feature-flag imports; must lead the file
	Externals  []string // normalized external import statements, deduped
	NeedsTypes bool     // namespace synthesis uses types.SimpleNamespace
	Modules    []ModuleOutput
}

// Render serializes the document: a header naming the entry, hoisted
// external imports, then each module's surviving items under a banner.
func Render(doc *Document) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "# Bundled from entry module %s.\n", doc.Entry)
	b.WriteString("# Edits to this file will be overwritten.\n")

	seen := map[string]bool{"import types": doc.NeedsTypes}
	if len(doc.Futures) > 0 {
		b.WriteString("\n")
	}
	for _, stmt := range doc.Futures {
		if seen[stmt] {
			continue
		}
		seen[stmt] = true
		b.WriteString(stmt)
		b.WriteString("\n")
	}

	if doc.NeedsTypes || len(doc.Externals) > 0 {
		b.WriteString("\n")
	}
	if doc.NeedsTypes {
		b.WriteString("import types\n")
	}
	for _, stmt := range doc.Externals {
		if seen[stmt] {
			continue
		}
		seen[stmt] = true
		b.WriteString(stmt)
		b.WriteString("\n")
	}

	for _, mod := range doc.Modules {
		if len(mod.Chunks) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n\n# --- %s ---\n", mod.Name)
		for _, chunk := range mod.Chunks {
			text := strings.TrimRight(chunk.Text, "\n")
			if text == "" {
				continue
			}
			b.WriteString("\n")
			b.WriteString(text)
			b.WriteString("\n")
		}
	}

	return []byte(b.String())
}

// ExternalImport renders the canonical text for one external import so
// duplicates across modules collapse to a single hoisted statement.
// Entries of names may carry an "x as y" alias clause.
func ExternalImport(plain bool, module, alias string, names []string, star bool) string {
	if plain {
		if alias != "" {
			return "import " + module + " as " + alias
		}
		return "import " + module
	}
	if star {
		return "from " + module + " import *"
	}
	return "from " + module + " import " + strings.Join(names, ", ")
}
