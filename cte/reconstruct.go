package cte

import "strings"

// Statement is the standalone form of one declaration: a WITH clause that
// re-declares it and every declaration before it, followed by a SELECT of
// its output.
type Statement struct {
	Name     string
	SQL      string
	Position int // 1-based position of the declaration in its WITH clause
}

// Expand builds one Statement per declaration, in order. Declarations that
// share a name each get their own Statement.
func Expand(decls []Declaration) []Statement {
	stmts := make([]Statement, 0, len(decls))
	rendered := make([]string, 0, len(decls))
	recursive := false
	for i, d := range decls {
		rendered = append(rendered, render(d))
		recursive = recursive || d.Recursive

		var b strings.Builder
		if recursive {
			b.WriteString("WITH RECURSIVE\n")
		} else {
			b.WriteString("WITH\n")
		}
		b.WriteString(strings.Join(rendered, ",\n"))
		b.WriteString("\nSELECT * FROM ")
		b.WriteString(d.Name)

		stmts = append(stmts, Statement{Name: d.Name, SQL: b.String(), Position: i + 1})
	}
	return stmts
}

// Collapse keys statements by name. When two statements share a name the
// later one wins, so the earlier one is only reachable through the slice.
func Collapse(stmts []Statement) map[string]string {
	m := make(map[string]string, len(stmts))
	for _, st := range stmts {
		m[st.Name] = st.SQL
	}
	return m
}

// Reconstruct maps each declaration name to its standalone statement.
func Reconstruct(decls []Declaration) map[string]string {
	return Collapse(Expand(decls))
}

// Extract segments sql and expands the result.
func Extract(sql string) []Statement {
	return Expand(Segment(sql))
}

// Duplicates returns the names declared more than once, in order of their
// first repeat.
func Duplicates(decls []Declaration) []string {
	seen := make(map[string]int, len(decls))
	var dups []string
	for _, d := range decls {
		seen[d.Name]++
		if seen[d.Name] == 2 {
			dups = append(dups, d.Name)
		}
	}
	return dups
}

func render(d Declaration) string {
	head := d.Name
	if d.Columns != "" {
		head += " (" + d.Columns + ")"
	}
	return head + " AS (\n" + d.Body + "\n)"
}
