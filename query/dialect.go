// Package query builds the statements that wrap a reconstructed CTE
// statement for execution: row limiting, counting and column filters.
package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bawdo/subq/internal/quoting"
)

// Dialect selects placeholder and quoting rules for the target engine.
type Dialect int

const (
	Postgres Dialect = iota
	MySQL
	SQLite
)

// Dialects lists the supported engine names.
var Dialects = []string{"mysql", "postgres", "sqlite"}

// ParseDialect maps an engine name to its Dialect.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "postgres", "postgresql", "pg":
		return Postgres, nil
	case "mysql":
		return MySQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	}
	return Postgres, fmt.Errorf("unknown engine %q (choose: %s)", name, strings.Join(Dialects, ", "))
}

func (d Dialect) String() string {
	switch d {
	case MySQL:
		return "mysql"
	case SQLite:
		return "sqlite"
	default:
		return "postgres"
	}
}

// Placeholder returns the bind marker for the n-th (1-based) parameter.
func (d Dialect) Placeholder(n int) string {
	if d == Postgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// QuoteIdent quotes a column name.
func (d Dialect) QuoteIdent(name string) string {
	if d == MySQL {
		return quoting.Backtick(name)
	}
	return quoting.DoubleQuote(name)
}

// asText casts a column to the engine's text type so that filters compare
// the rendered value regardless of the column type.
func (d Dialect) asText(col string) string {
	if d == MySQL {
		return "CAST(" + col + " AS CHAR)"
	}
	return "CAST(" + col + " AS TEXT)"
}

// likeEscape is the ESCAPE clause needed for backslash-escaped patterns.
// PostgreSQL and MySQL already treat backslash as the LIKE escape.
func (d Dialect) likeEscape() string {
	if d == SQLite {
		return ` ESCAPE '\'`
	}
	return ""
}
