// Package dialect provides SQL dialect configuration for rendering.
//
// This package contains the public contract for dialect definitions used by
// the SQL renderer and the execution adapters. Builtin dialects are
// registered via init(); adapter packages may register additional ones.
package dialect

import (
	"fmt"
	"strings"
)

// QuoteStyle controls identifier quoting.
type QuoteStyle int

const (
	// QuoteDouble quotes identifiers with double quotes.
	QuoteDouble QuoteStyle = iota
	// QuoteBacktick quotes identifiers with backticks.
	QuoteBacktick
)

// Dialect describes the rendering rules for one SQL dialect.
type Dialect struct {
	// Name is the registry key (lower case).
	Name string
	// DefaultSchema is the schema assumed for unqualified tables.
	DefaultSchema string
	// Quote controls identifier quoting for reserved or unusual names.
	Quote QuoteStyle
	// DateTruncFn is the function used for time granularity truncation.
	DateTruncFn string
	// ReservedWords are identifiers that always need quoting.
	ReservedWords map[string]struct{}
}

// QuoteIdent quotes an identifier if the dialect requires it.
// Plain identifiers that are not reserved pass through unquoted so
// rendered SQL stays readable.
func (d *Dialect) QuoteIdent(name string) string {
	if name == "" || !d.needsQuoting(name) {
		return name
	}
	if d.Quote == QuoteBacktick {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d *Dialect) needsQuoting(name string) bool {
	if _, ok := d.ReservedWords[strings.ToUpper(name)]; ok {
		return true
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
			if i == 0 {
				return true
			}
		case c == '_':
		default:
			return true
		}
	}
	return false
}

// QuoteString renders a string literal with single quotes, doubling any
// embedded quotes.
func (d *Dialect) QuoteString(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

// RenderDateTrunc renders a granularity truncation over the given
// rendered argument.
func (d *Dialect) RenderDateTrunc(grain, arg string) string {
	fn := d.DateTruncFn
	if fn == "" {
		fn = "DATE_TRUNC"
	}
	return fmt.Sprintf("%s('%s', %s)", fn, grain, arg)
}

// reserved builds a reserved word set from upper-case words.
func reserved(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// ansiReserved is the minimal reserved word set shared by the builtin
// dialects.
var ansiReserved = reserved(
	"SELECT", "FROM", "WHERE", "GROUP", "ORDER", "BY", "JOIN", "ON",
	"AND", "OR", "NOT", "IN", "AS", "DISTINCT", "LIMIT", "UNION",
	"CASE", "WHEN", "THEN", "ELSE", "END", "NULL", "TRUE", "FALSE",
	"TABLE", "CREATE", "INSERT", "UPDATE", "DELETE", "USER",
)
