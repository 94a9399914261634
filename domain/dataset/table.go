package dataset

import (
	"fmt"
)

// Column is a named, ordered sequence of cells
type Column struct {
	Name  string  `json:"name"`
	Cells []Value `json:"cells"`
}

// Table is the in-memory content of a dataset: ordered columns of equal length.
type Table struct {
	Columns []Column `json:"columns"`
}

// NewTable builds a table from a header row and row-major cells. Short rows
// are padded with missing values.
func NewTable(headers []string, rows [][]Value) *Table {
	t := &Table{Columns: make([]Column, len(headers))}
	for j, h := range headers {
		cells := make([]Value, len(rows))
		for i, row := range rows {
			if j < len(row) {
				cells[i] = row[j]
			} else {
				cells[i] = NewMissingValue()
			}
		}
		t.Columns[j] = Column{Name: h, Cells: cells}
	}
	return t
}

// RowCount returns the number of rows
func (t *Table) RowCount() int {
	if t == nil || len(t.Columns) == 0 {
		return 0
	}
	return len(t.Columns[0].Cells)
}

// ColumnCount returns the number of columns
func (t *Table) ColumnCount() int {
	if t == nil {
		return 0
	}
	return len(t.Columns)
}

// ColumnNames returns the ordered column names
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Index returns the position of the named column, or -1
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Column returns the named column
func (t *Table) Column(name string) (*Column, bool) {
	i := t.Index(name)
	if i < 0 {
		return nil, false
	}
	return &t.Columns[i], true
}

// Clone returns a deep copy so callers can transform without touching the source
func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}
	out := &Table{Columns: make([]Column, len(t.Columns))}
	for i, c := range t.Columns {
		out.Columns[i] = c.Clone()
	}
	return out
}

// Clone copies the column cells
func (c Column) Clone() Column {
	cells := make([]Value, len(c.Cells))
	copy(cells, c.Cells)
	return Column{Name: c.Name, Cells: cells}
}

// Row returns the cells of row i in column order
func (t *Table) Row(i int) []Value {
	row := make([]Value, len(t.Columns))
	for j, c := range t.Columns {
		row[j] = c.Cells[i]
	}
	return row
}

// PreviewRows returns up to limit rows as column-name keyed records.
func (t *Table) PreviewRows(limit int) []map[string]string {
	n := t.RowCount()
	if limit >= 0 && limit < n {
		n = limit
	}
	rows := make([]map[string]string, n)
	for i := 0; i < n; i++ {
		rec := make(map[string]string, len(t.Columns))
		for _, c := range t.Columns {
			rec[c.Name] = c.Cells[i].String()
		}
		rows[i] = rec
	}
	return rows
}

// Validate checks the table is rectangular and column names are unique
func (t *Table) Validate() error {
	if t == nil {
		return fmt.Errorf("table is nil")
	}
	seen := make(map[string]bool, len(t.Columns))
	rows := t.RowCount()
	for _, c := range t.Columns {
		if seen[c.Name] {
			return fmt.Errorf("duplicate column name %q", c.Name)
		}
		seen[c.Name] = true
		if len(c.Cells) != rows {
			return fmt.Errorf("column %q has %d cells, expected %d", c.Name, len(c.Cells), rows)
		}
	}
	return nil
}
