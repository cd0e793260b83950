package resultset

import (
	"bytes"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScan(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		rows          func() *sqlmock.Rows
		max           int
		wantRows      [][]string
		wantTruncated bool
	}{
		{
			name: "all rows with null",
			rows: func() *sqlmock.Rows {
				return sqlmock.NewRows([]string{"id", "name"}).
					AddRow(1, "Alice").
					AddRow(2, nil)
			},
			max:      10,
			wantRows: [][]string{{"1", "Alice"}, {"2", "NULL"}},
		},
		{
			name: "truncated at max",
			rows: func() *sqlmock.Rows {
				return sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2).AddRow(3)
			},
			max:           2,
			wantRows:      [][]string{{"1"}, {"2"}},
			wantTruncated: true,
		},
		{
			name: "exactly max is not truncated",
			rows: func() *sqlmock.Rows {
				return sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2)
			},
			max:      2,
			wantRows: [][]string{{"1"}, {"2"}},
		},
		{
			name: "unlimited",
			rows: func() *sqlmock.Rows {
				return sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2).AddRow(3)
			},
			max:      0,
			wantRows: [][]string{{"1"}, {"2"}, {"3"}},
		},
		{
			name: "no rows",
			rows: func() *sqlmock.Rows {
				return sqlmock.NewRows([]string{"id"})
			},
			max: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer func() { _ = db.Close() }()

			mock.ExpectQuery("SELECT").WillReturnRows(tt.rows())

			rows, err := db.Query("SELECT * FROM t")
			require.NoError(t, err)
			defer func() { _ = rows.Close() }()

			r, err := Scan(rows, tt.max)
			require.NoError(t, err)
			assert.Equal(t, tt.wantRows, r.Rows)
			assert.Equal(t, tt.wantTruncated, r.Truncated)
			assert.Equal(t, int64(-1), r.Total)
		})
	}
}

func TestScanRowError(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT").WillReturnRows(
		sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2).RowError(1, errors.New("connection reset")),
	)

	rows, err := db.Query("SELECT 1")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	_, err = Scan(rows, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestColumnAndEmpty(t *testing.T) {
	t.Parallel()

	r := &Result{Columns: []string{"id", "name"}}
	assert.Equal(t, 1, r.Column("name"))
	assert.Equal(t, -1, r.Column("missing"))
	assert.True(t, r.Empty())

	var nilResult *Result
	assert.True(t, nilResult.Empty())
}

func TestRender(t *testing.T) {
	t.Parallel()

	r := &Result{
		Columns: []string{"id", "customer_name"},
		Rows:    [][]string{{"1", "Alice"}, {"2", "Bob"}},
		Total:   -1,
	}
	var buf bytes.Buffer
	Render(&buf, r)
	out := buf.String()

	assert.Contains(t, out, "customer_name")
	assert.NotContains(t, out, "CUSTOMER_NAME")
	assert.Contains(t, out, "Alice")
	assert.Contains(t, out, "(2 rows)\n")
}

func TestRenderFooter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		r    *Result
		want string
	}{
		{"single row", &Result{Columns: []string{"x"}, Rows: [][]string{{"1"}}, Total: 1}, "(1 row)\n"},
		{"limited with total", &Result{Columns: []string{"x"}, Rows: [][]string{{"1"}, {"2"}}, Total: 40}, "(2 rows) of 40 total\n"},
		{"truncated without total", &Result{Columns: []string{"x"}, Rows: [][]string{{"1"}}, Truncated: true, Total: -1}, "(1 row), truncated\n"},
		{"no rows", &Result{Columns: []string{"x"}, Total: 0}, "(0 rows)\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			Render(&buf, tt.r)
			assert.True(t, bytes.HasSuffix(buf.Bytes(), []byte(tt.want)), "got:\n%s", buf.String())
		})
	}
}

func TestRenderNoColumns(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	Render(&buf, &Result{})
	assert.Equal(t, "(0 rows)\n", buf.String())

	buf.Reset()
	Render(&buf, nil)
	assert.Equal(t, "(0 rows)\n", buf.String())
}
