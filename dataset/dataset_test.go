package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInferTypes_MajorityNumericRule(t *testing.T) {
	table := &Table{
		Columns: []string{"qty", "name", "ref"},
		Rows: []Row{
			{"qty": "1", "name": "bolt", "ref": "A-1"},
			{"qty": "2.5", "name": "nut", "ref": "2"},
			{"qty": "n/a", "name": "washer", "ref": "A-3"},
			{"qty": "4", "name": "7", "ref": "A-4"},
		},
	}
	table.InferTypes()

	// 3 of 4 qty values parse: numeric. Parseable cells converted, the rest
	// stay text.
	assert.Equal(t, TypeNumeric, table.Types["qty"])
	assert.Equal(t, float64(1), table.Rows[0]["qty"])
	assert.Equal(t, 2.5, table.Rows[1]["qty"])
	assert.Equal(t, "n/a", table.Rows[2]["qty"])

	// 1 of 4 name values parses: text, values untouched.
	assert.Equal(t, TypeText, table.Types["name"])
	assert.Equal(t, "7", table.Rows[3]["name"])

	// 1 of 4 ref values parses: text.
	assert.Equal(t, TypeText, table.Types["ref"])
}

func TestInferTypes_ExactlyHalfIsNumeric(t *testing.T) {
	table := &Table{
		Columns: []string{"v"},
		Rows: []Row{
			{"v": "10"},
			{"v": "oops"},
		},
	}
	table.InferTypes()
	assert.Equal(t, TypeNumeric, table.Types["v"], "the 50% threshold is inclusive")
}

func TestInferTypes_MissingValuesExcludedFromDenominator(t *testing.T) {
	table := &Table{
		Columns: []string{"v"},
		Rows: []Row{
			{"v": nil},
			{"v": nil},
			{"v": nil},
			{"v": "12"},
		},
	}
	table.InferTypes()
	assert.Equal(t, TypeNumeric, table.Types["v"])
}

func TestInferTypes_AllMissingColumnIsText(t *testing.T) {
	table := &Table{
		Columns: []string{"v"},
		Rows:    []Row{{"v": nil}},
	}
	table.InferTypes()
	assert.Equal(t, TypeText, table.Types["v"])
}

func TestTablesEqual(t *testing.T) {
	base := &Table{
		Columns: []string{"a", "b"},
		Types:   map[string]ColumnType{"a": TypeNumeric, "b": TypeText},
		Rows: []Row{
			{"a": float64(1), "b": "x"},
			{"a": float64(2), "b": nil},
		},
	}

	same := base.Clone()
	assert.True(t, TablesEqual(base, same))

	edited := base.Clone()
	edited.Rows[1]["b"] = "y"
	assert.False(t, TablesEqual(base, edited))

	extraRow := base.Clone()
	extraRow.Rows = append(extraRow.Rows, Row{"a": nil, "b": nil})
	assert.False(t, TablesEqual(base, extraRow))

	reordered := base.Clone()
	reordered.Columns = []string{"b", "a"}
	assert.False(t, TablesEqual(base, reordered))

	// A numeric cell equals its text rendering, so UI round-trips are not
	// phantom edits.
	textual := base.Clone()
	textual.Rows[0]["a"] = "1"
	assert.True(t, TablesEqual(base, textual))
}

func TestClone_IsDeep(t *testing.T) {
	base := &Table{
		Columns: []string{"a"},
		Types:   map[string]ColumnType{"a": TypeNumeric},
		Rows:    []Row{{"a": float64(1)}},
	}
	clone := base.Clone()
	clone.Rows[0]["a"] = float64(99)
	clone.Types["a"] = TypeText

	assert.Equal(t, float64(1), base.Rows[0]["a"])
	assert.Equal(t, TypeNumeric, base.Types["a"])
}

func TestCoerceText(t *testing.T) {
	table := &Table{
		Columns: []string{"a", "b"},
		Types:   map[string]ColumnType{"a": TypeNumeric, "b": TypeText},
		Rows:    []Row{{"a": 2.5, "b": nil}},
	}
	table.CoerceText()

	assert.Equal(t, "2.5", table.Rows[0]["a"])
	assert.Nil(t, table.Rows[0]["b"], "missing stays missing")
	assert.Equal(t, TypeText, table.Types["a"])
}

func TestNumericBounds(t *testing.T) {
	table := &Table{
		Columns: []string{"v"},
		Types:   map[string]ColumnType{"v": TypeNumeric},
		Rows: []Row{
			{"v": float64(5)},
			{"v": nil},
			{"v": float64(-2)},
			{"v": "junk"},
		},
	}
	min, max, ok := table.NumericBounds("v")
	require.True(t, ok)
	assert.Equal(t, float64(-2), min)
	assert.Equal(t, float64(5), max)

	_, _, ok = (&Table{Columns: []string{"v"}, Rows: []Row{{"v": "x"}}}).NumericBounds("v")
	assert.False(t, ok)
}

func TestDataset_SetSheetPreservesOrder(t *testing.T) {
	ds := NewDataset()
	ds.SetSheet("B", &Table{})
	ds.SetSheet("A", &Table{})
	ds.SetSheet("B", &Table{Columns: []string{"x"}})

	assert.Equal(t, []string{"B", "A"}, ds.Names, "replacing a sheet keeps its position")
	tbl, found := ds.Sheet("B")
	require.True(t, found)
	assert.Equal(t, []string{"x"}, tbl.Columns)
}
