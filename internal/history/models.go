// # internal/history/models.go
package history

import "time"

const SchemaVersion = 1

// Run is one recorded bundling pass, keyed by a unique run id so watch
// mode can record many runs per second without collisions.
type Run struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	Entry         string    `json:"entry"`
	Succeeded     bool      `json:"succeeded"`
	Modules       int       `json:"modules"`
	Items         int       `json:"items"`
	IncludedItems int       `json:"included_items"`
	Renames       int       `json:"renames"`
	CycleGroups   int       `json:"cycle_groups"`
	ElidedImports int       `json:"elided_imports"`
	OutputBytes   int       `json:"output_bytes"`
	Warnings      int       `json:"warnings"`
	DurationMS    int64     `json:"duration_ms"`
}
