package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStringValueMissingTokens(t *testing.T) {
	for _, raw := range []string{"", "  ", "NA", "NaN", "null", "None"} {
		assert.True(t, NewStringValue(raw).IsMissing(), "expected %q to be missing", raw)
	}
	assert.False(t, NewStringValue("red").IsMissing())
}

func TestValueString(t *testing.T) {
	assert.Equal(t, "1.5", NewNumericValue(1.5).String())
	assert.Equal(t, "100", NewNumericValue(100).String())
	assert.Equal(t, "true", NewBooleanValue(true).String())
	assert.Equal(t, "", NewMissingValue().String())
}

func TestTableCloneIsIndependent(t *testing.T) {
	tbl := NewTable([]string{"a"}, [][]Value{{NewNumericValue(1)}, {NewNumericValue(2)}})
	clone := tbl.Clone()
	clone.Columns[0].Cells[0] = NewNumericValue(99)

	assert.Equal(t, 1.0, tbl.Columns[0].Cells[0].Num)
	assert.Equal(t, 99.0, clone.Columns[0].Cells[0].Num)
}

func TestNewTablePadsShortRows(t *testing.T) {
	tbl := NewTable([]string{"a", "b"}, [][]Value{{NewStringValue("x")}})
	require.NoError(t, tbl.Validate())
	assert.Equal(t, 1, tbl.RowCount())
	assert.True(t, tbl.Columns[1].Cells[0].IsMissing())
}

func TestTableValidate(t *testing.T) {
	tbl := &Table{Columns: []Column{
		{Name: "a", Cells: []Value{NewNumericValue(1)}},
		{Name: "a", Cells: []Value{NewNumericValue(2)}},
	}}
	assert.Error(t, tbl.Validate())

	tbl.Columns[1].Name = "b"
	tbl.Columns[1].Cells = nil
	assert.Error(t, tbl.Validate())
}

func TestPreviewRowsLimit(t *testing.T) {
	rows := make([][]Value, 60)
	for i := range rows {
		rows[i] = []Value{NewNumericValue(float64(i))}
	}
	tbl := NewTable([]string{"n"}, rows)

	preview := tbl.PreviewRows(50)
	require.Len(t, preview, 50)
	assert.Equal(t, "0", preview[0]["n"])
	assert.Len(t, tbl.PreviewRows(-1), 60)
}

func TestParseFileFormat(t *testing.T) {
	f, err := ParseFileFormat(".CSV")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	_, err = ParseFileFormat("parquet")
	assert.Error(t, err)
}
