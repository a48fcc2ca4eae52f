// # internal/resolver/stdlib.go
package resolver

import (
	_ "embed"
	"strings"
)

//go:embed stdlib/python.txt
var pythonStdlibData string

var pythonStdlib = map[string]bool{}

func init() {
	for _, line := range strings.Split(pythonStdlibData, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		pythonStdlib[line] = true
		// Base name too: urllib.request -> urllib.
		pythonStdlib[strings.SplitN(line, ".", 2)[0]] = true
	}
}

// IsStdlib reports whether a top-level module name belongs to the
// standard library of the bundled language.
func IsStdlib(module string) bool {
	return pythonStdlib[strings.SplitN(module, ".", 2)[0]]
}
