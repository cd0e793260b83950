package query

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/bawdo/subq/internal/quoting"
)

var limitKeyword = regexp.MustCompile(`(?i)\blimit\b`)

// Limit appends "LIMIT n" to stmt. Statements that already carry a LIMIT
// outside any parentheses are returned unchanged, as are all statements
// when n <= 0.
func Limit(stmt string, n int) string {
	stmt = trimStatement(stmt)
	if n <= 0 || limitKeyword.MatchString(topLevel(stmt)) {
		return stmt
	}
	return stmt + "\nLIMIT " + strconv.Itoa(n)
}

// Count wraps stmt so that it returns a single total_count row.
func Count(stmt string) string {
	return "SELECT COUNT(*) AS total_count FROM (\n" + trimStatement(stmt) + "\n) AS subquery"
}

// Mode selects how filter values are matched.
type Mode int

const (
	Fuzzy Mode = iota // substring match
	Exact
)

// ParseMode maps "fuzzy" or "exact" to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fuzzy", "like":
		return Fuzzy, nil
	case "exact", "eq":
		return Exact, nil
	}
	return Fuzzy, fmt.Errorf("unknown filter mode %q (choose: fuzzy, exact)", s)
}

func (m Mode) String() string {
	if m == Exact {
		return "exact"
	}
	return "fuzzy"
}

// Condition restricts one result column to a value.
type Condition struct {
	Column string
	Value  string
}

var errEmptyColumn = errors.New("filter column must not be empty")

// Filter wraps stmt in a SELECT that applies conds. Values are returned as
// bind parameters, never interpolated. Conditions are emitted in column
// order so that the same filter set always yields the same statement.
func Filter(d Dialect, stmt string, conds []Condition, mode Mode) (string, []any, error) {
	sorted := make([]Condition, len(conds))
	copy(sorted, conds)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Column < sorted[j].Column })

	var b strings.Builder
	b.WriteString("SELECT * FROM (\n")
	b.WriteString(trimStatement(stmt))
	b.WriteString("\n) AS filtered WHERE 1=1")

	params := make([]any, 0, len(sorted))
	for _, c := range sorted {
		if c.Column == "" {
			return "", nil, errEmptyColumn
		}
		col := d.asText(d.QuoteIdent(c.Column))
		ph := d.Placeholder(len(params) + 1)
		b.WriteString(" AND ")
		switch mode {
		case Exact:
			b.WriteString(col + " = " + ph)
			params = append(params, c.Value)
		default:
			b.WriteString(col + " LIKE " + ph + d.likeEscape())
			params = append(params, quoting.Contains(c.Value))
		}
	}
	return b.String(), params, nil
}

// trimStatement drops surrounding whitespace and trailing semicolons so the
// statement can be nested or extended.
func trimStatement(stmt string) string {
	return strings.TrimSpace(strings.TrimRight(strings.TrimSpace(stmt), ";"))
}

// topLevel blanks out everything nested inside parentheses.
func topLevel(stmt string) string {
	out := []byte(stmt)
	depth := 0
	for i := 0; i < len(out); i++ {
		switch out[i] {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
				out[i] = ' '
				continue
			}
		}
		if depth > 0 {
			out[i] = ' '
		}
	}
	return string(out)
}
