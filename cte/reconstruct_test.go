package cte

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconstructChain(t *testing.T) {
	t.Parallel()

	got := Reconstruct(Segment("with a as (select 1), b as (select * from a) select * from b"))

	want := map[string]string{
		"a": "WITH\na AS (\nselect 1\n)\nSELECT * FROM a",
		"b": "WITH\na AS (\nselect 1\n),\nb AS (\nselect * from a\n)\nSELECT * FROM b",
	}
	assert.Equal(t, want, got)
}

func TestReconstructEmpty(t *testing.T) {
	t.Parallel()

	got := Reconstruct(Segment("select * from t"))
	require.NotNil(t, got)
	assert.Empty(t, got)

	assert.Empty(t, Reconstruct(nil))
}

func TestExpandIncludesExactlyThePrefix(t *testing.T) {
	t.Parallel()

	var decls []Declaration
	for i := 1; i <= 5; i++ {
		decls = append(decls, Declaration{
			Name: fmt.Sprintf("step_%d", i),
			Body: fmt.Sprintf("select %d as v", i),
		})
	}

	stmts := Expand(decls)
	require.Len(t, stmts, len(decls))

	for k, st := range stmts {
		assert.Equal(t, k+1, st.Position)
		assert.Equal(t, decls[k].Name, st.Name)
		assert.True(t, strings.HasSuffix(st.SQL, "\nSELECT * FROM "+decls[k].Name))

		for j, d := range decls {
			decl := d.Name + " AS (\n" + d.Body + "\n)"
			if j <= k {
				assert.Contains(t, st.SQL, decl, "statement %d must declare %s", k+1, d.Name)
			} else {
				assert.NotContains(t, st.SQL, decl, "statement %d must not declare %s", k+1, d.Name)
			}
		}
	}
}

func TestExpandKeepsDeclarationOrder(t *testing.T) {
	t.Parallel()

	stmts := Extract("with z as (select 1), y as (select * from z), x as (select * from y) select * from x")
	require.Len(t, stmts, 3)

	last := stmts[2].SQL
	zi := strings.Index(last, "z AS (")
	yi := strings.Index(last, "y AS (")
	xi := strings.Index(last, "x AS (")
	assert.True(t, zi < yi && yi < xi, "declarations out of order:\n%s", last)
}

func TestExpandBodiesAreVerbatim(t *testing.T) {
	t.Parallel()

	body := "SELECT id,\n       name\n  FROM users\n WHERE (age > 18)"
	stmts := Expand([]Declaration{{Name: "adults", Body: body}})
	require.Len(t, stmts, 1)
	assert.Equal(t, "WITH\nadults AS (\n"+body+"\n)\nSELECT * FROM adults", stmts[0].SQL)
}

func TestExpandColumnListAndRecursive(t *testing.T) {
	t.Parallel()

	stmts := Extract("WITH RECURSIVE t(n) AS (SELECT 1 UNION ALL SELECT n + 1 FROM t WHERE n < 3), u AS (SELECT n * 2 AS m FROM t) SELECT * FROM u")
	require.Len(t, stmts, 2)

	assert.Equal(t,
		"WITH RECURSIVE\nt (n) AS (\nSELECT 1 UNION ALL SELECT n + 1 FROM t WHERE n < 3\n)\nSELECT * FROM t",
		stmts[0].SQL)
	assert.Equal(t,
		"WITH RECURSIVE\nt (n) AS (\nSELECT 1 UNION ALL SELECT n + 1 FROM t WHERE n < 3\n),\nu AS (\nSELECT n * 2 AS m FROM t\n)\nSELECT * FROM u",
		stmts[1].SQL)
}

func TestCollapseDuplicateNameKeepsLater(t *testing.T) {
	t.Parallel()

	decls := Segment("with a as (select 1), a as (select 2) select * from a")
	require.Len(t, decls, 2)

	stmts := Expand(decls)
	require.Len(t, stmts, 2)
	assert.Equal(t, "WITH\na AS (\nselect 1\n)\nSELECT * FROM a", stmts[0].SQL)

	m := Collapse(stmts)
	require.Len(t, m, 1)
	assert.Equal(t, "WITH\na AS (\nselect 1\n),\na AS (\nselect 2\n)\nSELECT * FROM a", m["a"])

	assert.Equal(t, []string{"a"}, Duplicates(decls))
}

func TestDuplicatesNone(t *testing.T) {
	t.Parallel()

	assert.Empty(t, Duplicates(Segment("with a as (select 1), b as (select 2) select 1")))
}

func TestDuplicatesReportedOnce(t *testing.T) {
	t.Parallel()

	decls := []Declaration{{Name: "a"}, {Name: "b"}, {Name: "a"}, {Name: "a"}, {Name: "b"}}
	assert.Equal(t, []string{"a", "b"}, Duplicates(decls))
}
