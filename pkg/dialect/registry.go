package dialect

import (
	"sort"
	"strings"
	"sync"
)

// Dialect registry
var (
	dialectsMu sync.RWMutex
	dialects   = make(map[string]*Dialect)
)

// Get returns a dialect by name.
func Get(name string) (*Dialect, bool) {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()
	d, ok := dialects[strings.ToLower(name)]
	return d, ok
}

// Register registers a dialect in the global registry.
func Register(d *Dialect) {
	dialectsMu.Lock()
	defer dialectsMu.Unlock()
	dialects[strings.ToLower(d.Name)] = d
}

// List returns all registered dialect names (sorted).
func List() []string {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()
	names := make([]string, 0, len(dialects))
	for name := range dialects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register(&Dialect{
		Name:          "ansi",
		DefaultSchema: "public",
		Quote:         QuoteDouble,
		DateTruncFn:   "DATE_TRUNC",
		ReservedWords: ansiReserved,
	})
	Register(&Dialect{
		Name:          "duckdb",
		DefaultSchema: "main",
		Quote:         QuoteDouble,
		DateTruncFn:   "DATE_TRUNC",
		ReservedWords: ansiReserved,
	})
	Register(&Dialect{
		Name:          "postgres",
		DefaultSchema: "public",
		Quote:         QuoteDouble,
		DateTruncFn:   "DATE_TRUNC",
		ReservedWords: ansiReserved,
	})
}
