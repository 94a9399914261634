package excel

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"tabprep/domain/core"
	"tabprep/domain/dataset"

	"github.com/xuri/excelize/v2"
)

const defaultSheet = "Sheet1"

// Encode writes a table in the given format
func (c *Codec) Encode(w io.Writer, format dataset.FileFormat, table *dataset.Table) error {
	if err := table.Validate(); err != nil {
		return fmt.Errorf("cannot encode table: %w", err)
	}

	switch format {
	case dataset.FormatCSV:
		return c.writeDelimited(w, ',', table)
	case dataset.FormatTSV:
		return c.writeDelimited(w, '\t', table)
	case dataset.FormatXLSX:
		return c.writeExcel(w, table)
	case dataset.FormatJSON:
		return c.writeJSON(w, table)
	default:
		return fmt.Errorf("%w: %q", core.ErrUnsupportedFormat, format)
	}
}

func (c *Codec) writeDelimited(w io.Writer, comma rune, table *dataset.Table) error {
	writer := csv.NewWriter(w)
	writer.Comma = comma

	if err := writer.Write(table.ColumnNames()); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	record := make([]string, table.ColumnCount())
	for i := 0; i < table.RowCount(); i++ {
		for j, col := range table.Columns {
			record[j] = col.Cells[i].String()
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func (c *Codec) writeExcel(w io.Writer, table *dataset.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := defaultSheet
	if c.config.SheetName != "" && c.config.SheetName != defaultSheet {
		if err := f.SetSheetName(defaultSheet, c.config.SheetName); err != nil {
			return fmt.Errorf("failed to name sheet: %w", err)
		}
		sheet = c.config.SheetName
	}

	header := make([]interface{}, table.ColumnCount())
	for j, name := range table.ColumnNames() {
		header[j] = name
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	row := make([]interface{}, table.ColumnCount())
	for i := 0; i < table.RowCount(); i++ {
		for j, col := range table.Columns {
			row[j] = nativeCell(col.Cells[i])
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write Excel file: %w", err)
	}
	return nil
}

// nativeCell returns the Go value a cell is written as; missing cells are nil
func nativeCell(v dataset.Value) interface{} {
	switch v.Type {
	case dataset.ValueTypeNumeric:
		return v.Num
	case dataset.ValueTypeBoolean:
		return v.Bool
	case dataset.ValueTypeString, dataset.ValueTypeTimestamp:
		return v.String()
	}
	return nil
}

// writeJSON writes an array of records with keys in column order
func (c *Codec) writeJSON(w io.Writer, table *dataset.Table) error {
	bw := bufio.NewWriter(w)

	keys := make([][]byte, table.ColumnCount())
	for j, name := range table.ColumnNames() {
		k, err := json.Marshal(name)
		if err != nil {
			return err
		}
		keys[j] = k
	}

	bw.WriteByte('[')
	for i := 0; i < table.RowCount(); i++ {
		if i > 0 {
			bw.WriteByte(',')
		}
		bw.WriteByte('{')
		for j, col := range table.Columns {
			if j > 0 {
				bw.WriteByte(',')
			}
			v, err := json.Marshal(nativeCell(col.Cells[i]))
			if err != nil {
				return fmt.Errorf("failed to encode row %d column %s: %w", i+1, col.Name, err)
			}
			bw.Write(keys[j])
			bw.WriteByte(':')
			bw.Write(v)
		}
		bw.WriteByte('}')
	}
	bw.WriteByte(']')

	return bw.Flush()
}
