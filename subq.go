// Package subq extracts the sub-queries of a WITH clause as standalone,
// runnable statements.
//
// This package re-exports the common entry points from its subpackages.
// Advanced users can import them directly:
//   - github.com/bawdo/subq/cte (segmentation and reconstruction)
//   - github.com/bawdo/subq/query (count, limit and filter wrappers)
//   - github.com/bawdo/subq/resultset (scanning and rendering rows)
package subq

import (
	"github.com/bawdo/subq/cte"
	"github.com/bawdo/subq/query"
)

// --- CTE Types ---

// Declaration is one named sub-query of a WITH clause.
type Declaration = cte.Declaration

// Statement is the standalone, runnable form of a Declaration.
type Statement = cte.Statement

// --- Segmentation and Reconstruction ---

// Segment returns the CTE declarations of sql in declaration order.
func Segment(sql string) []Declaration {
	return cte.Segment(sql)
}

// Reconstruct maps each declaration name to its standalone statement. A
// later declaration overwrites an earlier one with the same name.
func Reconstruct(decls []Declaration) map[string]string {
	return cte.Reconstruct(decls)
}

// Extract segments sql and returns one Statement per declaration, keeping
// duplicate names.
func Extract(sql string) []Statement {
	return cte.Extract(sql)
}

// --- Derived Statements ---

// Count wraps stmt in a COUNT(*) query.
func Count(stmt string) string {
	return query.Count(stmt)
}

// Limit appends a LIMIT clause to stmt unless it already has one.
func Limit(stmt string, n int) string {
	return query.Limit(stmt, n)
}
