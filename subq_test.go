package subq_test

import (
	"testing"

	"github.com/bawdo/subq"
)

// TestSegmentThenReconstruct demonstrates the usual composition.
func TestSegmentThenReconstruct(t *testing.T) {
	sql := "with a as (select 1), b as (select * from a) select * from b"

	stmts := subq.Reconstruct(subq.Segment(sql))
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(stmts))
	}

	expected := "WITH\na AS (\nselect 1\n),\nb AS (\nselect * from a\n)\nSELECT * FROM b"
	if stmts["b"] != expected {
		t.Errorf("Expected:\n%s\nGot:\n%s", expected, stmts["b"])
	}
}

// TestExtractKeepsDuplicates shows the ordered form reaching a shadowed CTE.
func TestExtractKeepsDuplicates(t *testing.T) {
	stmts := subq.Extract("with a as (select 1), a as (select 2) select * from a")
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(stmts))
	}
	if stmts[0].SQL != "WITH\na AS (\nselect 1\n)\nSELECT * FROM a" {
		t.Errorf("first duplicate lost: %q", stmts[0].SQL)
	}
}

// TestCountOfReconstructed demonstrates wrapping a statement for counting.
func TestCountOfReconstructed(t *testing.T) {
	stmt := subq.Reconstruct(subq.Segment("with a as (select 1) select * from a"))["a"]

	got := subq.Count(subq.Limit(stmt, 10))
	expected := "SELECT COUNT(*) AS total_count FROM (\nWITH\na AS (\nselect 1\n)\nSELECT * FROM a\nLIMIT 10\n) AS subquery"
	if got != expected {
		t.Errorf("Expected:\n%s\nGot:\n%s", expected, got)
	}
}
