package dataset

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func testDataset() *Dataset {
	ds := NewDataset()

	line1 := &Table{
		Columns: []string{"part", "qty"},
		Types:   map[string]ColumnType{"part": TypeText, "qty": TypeNumeric},
		Rows: []Row{
			{"part": "bolt", "qty": float64(12)},
			{"part": "nut", "qty": 3.5},
			{"part": "washer", "qty": nil},
		},
	}
	ds.SetSheet("Line1", line1)

	line2 := &Table{
		Columns: []string{"station"},
		Types:   map[string]ColumnType{"station": TypeText},
		Rows:    []Row{{"station": "press"}},
	}
	ds.SetSheet("Line2", line2)

	return ds
}

func TestReadWorkbook_MissingFileYieldsEmptyDataset(t *testing.T) {
	ds, err := ReadWorkbook(filepath.Join(t.TempDir(), "nope.xlsx"))
	require.NoError(t, err)
	assert.Empty(t, ds.Names)
}

func TestWorkbookRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.xlsx")
	require.NoError(t, WriteWorkbook(path, testDataset()))

	ds, err := ReadWorkbook(path)
	require.NoError(t, err)
	require.Equal(t, []string{"Line1", "Line2"}, ds.Names)

	line1, found := ds.Sheet("Line1")
	require.True(t, found)
	assert.Equal(t, []string{"part", "qty"}, line1.Columns)
	require.Len(t, line1.Rows, 3)

	// Numeric columns round-trip as floats, text as strings, gaps as missing.
	assert.Equal(t, TypeNumeric, line1.Types["qty"])
	assert.Equal(t, "bolt", line1.Rows[0]["part"])
	assert.Equal(t, float64(12), line1.Rows[0]["qty"])
	assert.Equal(t, 3.5, line1.Rows[1]["qty"])
	assert.Nil(t, line1.Rows[2]["qty"])

	line2, found := ds.Sheet("Line2")
	require.True(t, found)
	assert.Equal(t, "press", line2.Rows[0]["station"])
}

func TestMarshalWorkbook_ProducesReadableBytes(t *testing.T) {
	blob, err := MarshalWorkbook(testDataset())
	require.NoError(t, err)
	require.NotEmpty(t, blob)

	f, err := excelize.OpenReader(bytes.NewReader(blob))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Line1", "Line2"}, f.GetSheetList())
}

func TestMarshalTable_SingleSheetExport(t *testing.T) {
	table := &Table{
		Columns: []string{"a"},
		Types:   map[string]ColumnType{"a": TypeNumeric},
		Rows:    []Row{{"a": float64(1)}, {"a": float64(2)}},
	}
	blob, err := MarshalTable(table, "FilteredData")
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(blob))
	require.NoError(t, err)
	defer f.Close()
	require.Equal(t, []string{"FilteredData"}, f.GetSheetList())

	rows, err := f.GetRows("FilteredData")
	require.NoError(t, err)
	require.Len(t, rows, 3, "header plus two data rows")
	assert.Equal(t, []string{"a"}, rows[0])
}

func TestWriteWorkbook_EmptySheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xlsx")
	ds := NewDataset()
	ds.SetSheet("Blank", &Table{Types: map[string]ColumnType{}})
	require.NoError(t, WriteWorkbook(path, ds))

	back, err := ReadWorkbook(path)
	require.NoError(t, err)
	require.Equal(t, []string{"Blank"}, back.Names)
	tbl, _ := back.Sheet("Blank")
	assert.Empty(t, tbl.Rows)
}
