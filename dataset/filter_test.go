package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func filterFixture() *Table {
	return &Table{
		Columns: []string{"part", "qty"},
		Types:   map[string]ColumnType{"part": TypeText, "qty": TypeNumeric},
		Rows: []Row{
			{"part": "Widget-A", "qty": float64(10)},
			{"part": "widget-b", "qty": float64(25)},
			{"part": "Gasket", "qty": nil},
			{"part": nil, "qty": float64(40)},
			{"part": "Sprocket", "qty": "n/a"},
		},
	}
}

func TestFilterContains_CaseInsensitive(t *testing.T) {
	tbl := filterFixture()

	out, err := tbl.FilterContains("part", "WIDGET")
	require.NoError(t, err)
	require.Len(t, out.Rows, 2)
	assert.Equal(t, "Widget-A", out.Rows[0]["part"])
	assert.Equal(t, "widget-b", out.Rows[1]["part"])
}

func TestFilterContains_MissingNeverMatches(t *testing.T) {
	tbl := filterFixture()

	// An empty keyword matches everything except rows with a missing cell.
	out, err := tbl.FilterContains("part", "")
	require.NoError(t, err)
	assert.Len(t, out.Rows, 4)
}

func TestFilterContains_UnknownColumn(t *testing.T) {
	tbl := filterFixture()

	_, err := tbl.FilterContains("nope", "x")
	assert.Error(t, err)
}

func TestFilterRange_InclusiveBounds(t *testing.T) {
	tbl := filterFixture()

	out, err := tbl.FilterRange("qty", 10, 25)
	require.NoError(t, err)
	require.Len(t, out.Rows, 2)
	assert.Equal(t, float64(10), out.Rows[0]["qty"])
	assert.Equal(t, float64(25), out.Rows[1]["qty"])
}

func TestFilterRange_ExcludesMissingAndNonNumeric(t *testing.T) {
	tbl := filterFixture()

	out, err := tbl.FilterRange("qty", -1e308, 1e308)
	require.NoError(t, err)
	// nil and the literal "n/a" cell are both excluded.
	assert.Len(t, out.Rows, 3)
}

func TestFilterRange_RejectsTextColumn(t *testing.T) {
	tbl := filterFixture()

	_, err := tbl.FilterRange("part", 0, 1)
	assert.Error(t, err)
}

func TestColumnPartition(t *testing.T) {
	tbl := filterFixture()

	assert.Equal(t, []string{"part"}, tbl.TextColumns())
	assert.Equal(t, []string{"qty"}, tbl.NumericColumns())
}
