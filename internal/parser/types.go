// # internal/parser/types.go
package parser

type Location struct {
	File   string
	Line   int
	Column int
}

// ParseError is fatal and non-retriable: a module that does not parse
// cannot be bundled.
type ParseError struct {
	Location Location
	Message  string
}

func (e *ParseError) Error() string {
	if e.Location.File == "" {
		return e.Message
	}
	return e.Location.File + ": " + e.Message
}
