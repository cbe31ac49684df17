// Package dataset models the multi-sheet tabular workbook: typed tables, the
// load-once column type inference rule, the TTL cache over the local file,
// and the row filters exposed by the dashboard.
package dataset

import (
	"strconv"
	"strings"
)

// ColumnType is the declared type of a column, decided once at load and
// stable until the next load.
type ColumnType string

const (
	TypeText    ColumnType = "text"
	TypeNumeric ColumnType = "numeric"
)

// Row maps column name to a scalar cell value: float64, string, or nil for a
// missing value.
type Row map[string]any

// Table is one named sheet. Column identity and order are defined by the
// first read of the sheet.
type Table struct {
	Columns []string              `json:"columns"`
	Types   map[string]ColumnType `json:"types"`
	Rows    []Row                 `json:"rows"`
}

// Dataset is an ordered mapping from sheet name to table.
type Dataset struct {
	Names  []string          `json:"names"`
	Sheets map[string]*Table `json:"sheets"`
}

// NewDataset returns an empty dataset.
func NewDataset() *Dataset {
	return &Dataset{Sheets: make(map[string]*Table)}
}

// Sheet returns the named table, if present.
func (d *Dataset) Sheet(name string) (*Table, bool) {
	t, found := d.Sheets[name]
	return t, found
}

// SetSheet replaces or appends the named table, preserving sheet order.
func (d *Dataset) SetSheet(name string, t *Table) {
	if _, found := d.Sheets[name]; !found {
		d.Names = append(d.Names, name)
	}
	d.Sheets[name] = t
}

// Clone returns a deep copy of the table. Edits flow through copies so the
// cached dataset is only ever replaced wholesale, never mutated in place.
func (t *Table) Clone() *Table {
	out := &Table{
		Columns: append([]string(nil), t.Columns...),
		Types:   make(map[string]ColumnType, len(t.Types)),
		Rows:    make([]Row, len(t.Rows)),
	}
	for k, v := range t.Types {
		out.Types[k] = v
	}
	for i, row := range t.Rows {
		nr := make(Row, len(row))
		for k, v := range row {
			nr[k] = v
		}
		out.Rows[i] = nr
	}
	return out
}

// SameColumns reports whether both tables declare the same column set in the
// same order.
func (t *Table) SameColumns(other *Table) bool {
	if len(t.Columns) != len(other.Columns) {
		return false
	}
	for i, c := range t.Columns {
		if other.Columns[i] != c {
			return false
		}
	}
	return true
}

// CoerceText converts every cell to its text form. Applied when an edit
// changes the column set, so free-form schema changes stay representable.
func (t *Table) CoerceText() {
	for _, row := range t.Rows {
		for k, v := range row {
			if v == nil {
				continue
			}
			row[k] = CellString(v)
		}
	}
	for _, c := range t.Columns {
		t.Types[c] = TypeText
	}
}

// CellString renders a cell value the way it is shown in the grid.
func CellString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return ""
	}
}

// TablesEqual is the structural whole-table equality check the auto-save
// trigger relies on: same columns, same row count, same cell values.
func TablesEqual(a, b *Table) bool {
	if !a.SameColumns(b) || len(a.Rows) != len(b.Rows) {
		return false
	}
	for i := range a.Rows {
		for _, col := range a.Columns {
			if !cellsEqual(a.Rows[i][col], b.Rows[i][col]) {
				return false
			}
		}
	}
	return true
}

func cellsEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	af, aNum := a.(float64)
	bf, bNum := b.(float64)
	if aNum && bNum {
		return af == bf
	}
	if aNum != bNum {
		// A numeric cell and its text rendering count as equal, so a
		// round-trip through the UI does not look like an edit.
		return CellString(a) == CellString(b)
	}
	return a == b
}

// InferTypes applies the load-time type rule: a column becomes numeric when
// at least half of its non-missing values parse cleanly as floats; parseable
// values in a numeric column are converted, the rest stay text.
func (t *Table) InferTypes() {
	if t.Types == nil {
		t.Types = make(map[string]ColumnType, len(t.Columns))
	}
	for _, col := range t.Columns {
		nonMissing, parseable := 0, 0
		for _, row := range t.Rows {
			v := row[col]
			if v == nil {
				continue
			}
			nonMissing++
			if _, ok := parseNumeric(v); ok {
				parseable++
			}
		}
		if nonMissing > 0 && parseable*2 >= nonMissing {
			t.Types[col] = TypeNumeric
			for _, row := range t.Rows {
				if f, ok := parseNumeric(row[col]); ok {
					row[col] = f
				}
			}
		} else {
			t.Types[col] = TypeText
		}
	}
}

func parseNumeric(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// NumericBounds returns the min and max of a numeric column, skipping
// missing and unparseable cells. ok is false when no numeric value exists.
func (t *Table) NumericBounds(column string) (min, max float64, ok bool) {
	for _, row := range t.Rows {
		f, isNum := row[column].(float64)
		if !isNum {
			continue
		}
		if !ok || f < min {
			min = f
		}
		if !ok || f > max {
			max = f
		}
		ok = true
	}
	return min, max, ok
}
