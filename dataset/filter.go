package dataset

import (
	"fmt"
	"strings"
)

// FilterContains returns the rows whose value in column contains keyword,
// compared case-insensitively. Missing values never match. An empty keyword
// matches every row.
func (t *Table) FilterContains(column, keyword string) (*Table, error) {
	if !t.hasColumn(column) {
		return nil, fmt.Errorf("column '%s' does not exist", column)
	}

	out := t.emptyLike()
	needle := strings.ToLower(keyword)
	for _, row := range t.Rows {
		v := row[column]
		if v == nil {
			continue
		}
		if strings.Contains(strings.ToLower(CellString(v)), needle) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}

// FilterRange returns the rows whose numeric value in column lies in
// [min, max]. Rows with missing or non-numeric cells are excluded.
func (t *Table) FilterRange(column string, min, max float64) (*Table, error) {
	if !t.hasColumn(column) {
		return nil, fmt.Errorf("column '%s' does not exist", column)
	}
	if t.Types[column] != TypeNumeric {
		return nil, fmt.Errorf("column '%s' is not numeric", column)
	}

	out := t.emptyLike()
	for _, row := range t.Rows {
		f, isNum := row[column].(float64)
		if !isNum {
			continue
		}
		if f >= min && f <= max {
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}

// TextColumns returns the names of the columns declared text at load time.
func (t *Table) TextColumns() []string {
	return t.columnsOfType(TypeText)
}

// NumericColumns returns the names of the columns declared numeric at load time.
func (t *Table) NumericColumns() []string {
	return t.columnsOfType(TypeNumeric)
}

func (t *Table) columnsOfType(ct ColumnType) []string {
	out := make([]string, 0, len(t.Columns))
	for _, col := range t.Columns {
		if t.Types[col] == ct {
			out = append(out, col)
		}
	}
	return out
}

func (t *Table) hasColumn(column string) bool {
	for _, c := range t.Columns {
		if c == column {
			return true
		}
	}
	return false
}

// emptyLike returns a rowless table sharing this table's column metadata.
func (t *Table) emptyLike() *Table {
	return &Table{
		Columns: t.Columns,
		Types:   t.Types,
		Rows:    make([]Row, 0),
	}
}
