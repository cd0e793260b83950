// Package quoting quotes identifiers and LIKE patterns for the statement
// wrappers built around user SQL.
package quoting

import "strings"

// DoubleQuote quotes a column name the ANSI way (PostgreSQL, SQLite).
// Embedded double quotes are doubled.
func DoubleQuote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Backtick quotes a column name for MySQL. Embedded backticks are doubled.
func Backtick(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// EscapeLikePattern makes %, _ and the backslash escape character match
// literally in a LIKE pattern.
func EscapeLikePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)
	return r.Replace(s)
}

// Contains returns a LIKE pattern matching any value that contains s.
func Contains(s string) string {
	return "%" + EscapeLikePattern(s) + "%"
}
