package dataset

import (
	"bytes"
	"fmt"
	"log"
	"os"

	"github.com/xuri/excelize/v2"
)

// ReadWorkbook loads the multi-sheet workbook at path into a Dataset and
// applies type inference to every sheet. A missing file yields an empty
// dataset, signaling "no data yet" to callers.
func ReadWorkbook(path string) (*Dataset, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Printf("INFO: Workbook '%s' not found. Returning empty dataset.", path)
		return NewDataset(), nil
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook '%s': %w", path, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Printf("WARN: Failed to close workbook '%s': %v", path, err)
		}
	}()

	ds := NewDataset()
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet '%s': %w", sheetName, err)
		}
		ds.SetSheet(sheetName, tableFromRows(rows))
	}

	log.Printf("INFO: Loaded workbook from %s. Sheets: %d", path, len(ds.Names))
	return ds, nil
}

// tableFromRows builds a table from raw cell strings. The first row defines
// the columns; short rows are padded with missing values, excess cells are
// dropped.
func tableFromRows(raw [][]string) *Table {
	t := &Table{Types: make(map[string]ColumnType)}
	if len(raw) == 0 {
		return t
	}
	t.Columns = append(t.Columns, raw[0]...)
	for _, rawRow := range raw[1:] {
		row := make(Row, len(t.Columns))
		for i, col := range t.Columns {
			if i < len(rawRow) && rawRow[i] != "" {
				row[col] = rawRow[i]
			} else {
				row[col] = nil
			}
		}
		t.Rows = append(t.Rows, row)
	}
	t.InferTypes()
	return t
}

// WriteWorkbook rewrites the whole workbook file from the dataset. There is
// no partial-sheet write; the file is replaced in full.
func WriteWorkbook(path string, ds *Dataset) error {
	f, err := buildWorkbook(ds)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to write workbook '%s': %w", path, err)
	}
	log.Printf("INFO: Wrote workbook to %s. Sheets: %d", path, len(ds.Names))
	return nil
}

// MarshalWorkbook serializes the dataset to workbook bytes for a remote put.
func MarshalWorkbook(ds *Dataset) ([]byte, error) {
	f, err := buildWorkbook(ds)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// MarshalTable serializes a single table as a one-sheet workbook, used for
// filtered-result downloads.
func MarshalTable(t *Table, sheetName string) ([]byte, error) {
	ds := NewDataset()
	ds.SetSheet(sheetName, t)
	return MarshalWorkbook(ds)
}

func buildWorkbook(ds *Dataset) (*excelize.File, error) {
	f := excelize.NewFile()
	for i, name := range ds.Names {
		if i == 0 {
			// Reuse the default sheet excelize creates.
			if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
				return nil, fmt.Errorf("failed to name sheet '%s': %w", name, err)
			}
		} else {
			if _, err := f.NewSheet(name); err != nil {
				return nil, fmt.Errorf("failed to create sheet '%s': %w", name, err)
			}
		}

		t := ds.Sheets[name]
		header := make([]any, len(t.Columns))
		for c, col := range t.Columns {
			header[c] = col
		}
		if err := f.SetSheetRow(name, "A1", &header); err != nil {
			return nil, fmt.Errorf("failed to write header of sheet '%s': %w", name, err)
		}
		for rowIdx, row := range t.Rows {
			cells := make([]any, len(t.Columns))
			for c, col := range t.Columns {
				cells[c] = row[col]
			}
			addr, err := excelize.JoinCellName("A", rowIdx+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetSheetRow(name, addr, &cells); err != nil {
				return nil, fmt.Errorf("failed to write row %d of sheet '%s': %w", rowIdx+2, name, err)
			}
		}
	}
	return f, nil
}
