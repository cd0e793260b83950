// Package export writes a query result to a file whose format follows the
// file extension.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bawdo/subq/resultset"
	"github.com/xuri/excelize/v2"
)

var (
	// ErrUnsupportedFormat is returned for extensions without a writer.
	ErrUnsupportedFormat = errors.New("unsupported export format (use .xlsx, .csv, .tsv, .md or .html)")
	// ErrEmpty is returned when there is nothing to export.
	ErrEmpty = errors.New("no rows to export")
)

// utf8BOM lets spreadsheet applications detect the encoding of CSV files.
const utf8BOM = "\ufeff"

type writerFunc func(w io.Writer, r *resultset.Result) error

var writers = map[string]writerFunc{
	".xlsx":     writeXLSX,
	".csv":      writeCSV(','),
	".tsv":      writeCSV('\t'),
	".md":       writeMarkdown,
	".markdown": writeMarkdown,
	".html":     writeHTML,
	".htm":      writeHTML,
}

// Formats lists the supported file extensions.
func Formats() []string {
	return []string{".xlsx", ".csv", ".tsv", ".md", ".html"}
}

// Write exports r to path, replacing any existing file.
func Write(path string, r *resultset.Result) error {
	ext := strings.ToLower(filepath.Ext(path))
	write, ok := writers[ext]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if r.Empty() {
		return ErrEmpty
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	if err := write(f, r); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

func writeCSV(comma rune) writerFunc {
	return func(w io.Writer, r *resultset.Result) error {
		if comma == ',' {
			if _, err := io.WriteString(w, utf8BOM); err != nil {
				return err
			}
		}
		cw := csv.NewWriter(w)
		cw.Comma = comma
		if err := cw.Write(r.Columns); err != nil {
			return err
		}
		if err := cw.WriteAll(r.Rows); err != nil {
			return err
		}
		return cw.Error()
	}
}

// sheetName is the worksheet a new workbook starts with.
const sheetName = "Sheet1"

func writeXLSX(w io.Writer, r *resultset.Result) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := setRow(f, 1, r.Columns); err != nil {
		return err
	}
	for i, row := range r.Rows {
		if err := setRow(f, i+2, row); err != nil {
			return err
		}
	}
	return f.Write(w)
}

func setRow(f *excelize.File, n int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return err
	}
	row := make([]any, len(values))
	for i, v := range values {
		row[i] = v
	}
	return f.SetSheetRow(sheetName, cell, &row)
}

func writeMarkdown(w io.Writer, r *resultset.Result) error {
	_, err := io.WriteString(w, r.Table().RenderMarkdown()+"\n")
	return err
}

func writeHTML(w io.Writer, r *resultset.Result) error {
	_, err := io.WriteString(w, r.Table().RenderHTML()+"\n")
	return err
}
