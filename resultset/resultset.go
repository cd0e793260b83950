// Package resultset holds query results as rendered strings and prints
// them as tables.
package resultset

import (
	"database/sql"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Result is a fully materialised query result.
type Result struct {
	Columns   []string
	Rows      [][]string
	Truncated bool  // more rows were available than were scanned
	Total     int64 // total rows of the unlimited statement, -1 if unknown
}

// Scan reads rows into a Result, stopping after max rows (max <= 0 reads
// everything). NULL values are rendered as "NULL".
func Scan(rows *sql.Rows, max int) (*Result, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	r := &Result{Columns: columns, Total: -1}
	for rows.Next() {
		if max > 0 && len(r.Rows) >= max {
			r.Truncated = true
			break
		}
		vals := make([]sql.NullString, len(columns))
		ptrs := make([]any, len(columns))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		row := make([]string, len(columns))
		for i, v := range vals {
			if v.Valid {
				row[i] = v.String
			} else {
				row[i] = "NULL"
			}
		}
		r.Rows = append(r.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return r, nil
}

// Column returns the index of the named column, or -1.
func (r *Result) Column(name string) int {
	for i, c := range r.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Empty reports whether the result has no rows.
func (r *Result) Empty() bool {
	return r == nil || len(r.Rows) == 0
}

// Table builds a go-pretty writer holding the result. Callers pick the
// output form (Render, RenderMarkdown, RenderHTML...).
func (r *Result) Table() table.Writer {
	t := table.NewWriter()
	t.SetStyle(withRawHeader(table.StyleDefault))
	header := make(table.Row, len(r.Columns))
	for i, c := range r.Columns {
		header[i] = c
	}
	t.AppendHeader(header)
	for _, row := range r.Rows {
		tr := make(table.Row, len(row))
		for i, cell := range row {
			tr[i] = cell
		}
		t.AppendRow(tr)
	}
	return t
}

// Render writes the result as a boxed table followed by a row count line.
func Render(w io.Writer, r *Result) {
	if r == nil || len(r.Columns) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return
	}

	t := r.Table()
	t.SetStyle(withRawHeader(table.StyleLight))
	_, _ = fmt.Fprintln(w, t.Render())

	n := len(r.Rows)
	switch {
	case n == 1:
		_, _ = fmt.Fprint(w, "(1 row)")
	default:
		_, _ = fmt.Fprintf(w, "(%d rows)", n)
	}
	switch {
	case r.Total >= 0 && (r.Truncated || r.Total != int64(n)):
		_, _ = fmt.Fprintf(w, " of %d total", r.Total)
	case r.Truncated:
		_, _ = fmt.Fprint(w, ", truncated")
	}
	_, _ = fmt.Fprintln(w)
}

// withRawHeader keeps column names as the database returned them instead
// of upper-casing them.
func withRawHeader(style table.Style) table.Style {
	style.Format.Header = text.FormatDefault
	return style
}
