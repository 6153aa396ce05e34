// Package export re-serialises scoped rows in the source schema, column for
// column, so a download can be fed straight back into the loader.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"sales-dashboard/internal/dataset"
)

const (
	defaultSheet = "Sheet1"
	maxSheetName = 31
)

var sheetNameReplacer = strings.NewReplacer(
	":", "_", "\\", "_", "/", "_", "?", "_", "*", "_", "[", "_", "]", "_",
)

// SheetName turns s into a name Excel accepts: forbidden characters become
// underscores, surrounding apostrophes are dropped and the result is cut to
// 31 characters. An empty result falls back to Sheet1.
func SheetName(s string) string {
	s = sheetNameReplacer.Replace(s)
	if utf8.RuneCountInString(s) > maxSheetName {
		s = string([]rune(s)[:maxSheetName])
	}
	s = strings.Trim(s, "'")
	if strings.TrimSpace(s) == "" {
		return defaultSheet
	}
	return s
}

func columns() []dataset.Column {
	names := dataset.SourceColumns()
	cols := make([]dataset.Column, len(names))
	for i, name := range names {
		cols[i], _ = dataset.Lookup(name)
	}
	return cols
}

// CSV writes a header row followed by every record of d.
func CSV(w io.Writer, d dataset.Dataset) error {
	cols := columns()
	cw := csv.NewWriter(w)

	if err := cw.Write(dataset.SourceColumns()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := make([]string, len(cols))
	for i := 0; i < d.Len(); i++ {
		rec := d.At(i)
		for j, c := range cols {
			row[j] = c.Value(rec).String()
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// XLSX writes the same table as CSV into a single worksheet. Numbers and
// booleans keep their cell types; nulls are left blank.
func XLSX(w io.Writer, d dataset.Dataset, sheet string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet = SheetName(sheet)
	if sheet != defaultSheet {
		if err := f.SetSheetName(defaultSheet, sheet); err != nil {
			return fmt.Errorf("name sheet: %w", err)
		}
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("open sheet: %w", err)
	}

	cols := columns()
	header := make([]any, len(cols))
	for i, c := range cols {
		header[i] = c.Name
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i := 0; i < d.Len(); i++ {
		rec := d.At(i)
		row := make([]any, len(cols))
		for j, c := range cols {
			row[j] = c.Value(rec).Native()
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}
	return f.Write(w)
}
