package excel

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"tabprep/domain/core"
	"tabprep/domain/dataset"

	"github.com/xuri/excelize/v2"
)

// Codec reads and writes tables as csv, tsv, xlsx or json files
type Codec struct {
	config CodecConfig
}

// NewCodec creates a codec
func NewCodec(config CodecConfig) *Codec {
	return &Codec{config: config}
}

// Decode reads a table in the given format. The first row (or the keys of
// the first json records) names the columns.
func (c *Codec) Decode(r io.Reader, format dataset.FileFormat) (*dataset.Table, error) {
	switch format {
	case dataset.FormatCSV:
		return c.readDelimited(r, ',')
	case dataset.FormatTSV:
		return c.readDelimited(r, '\t')
	case dataset.FormatXLSX:
		return c.readExcel(r)
	case dataset.FormatJSON:
		return c.readJSON(r)
	default:
		return nil, fmt.Errorf("%w: %q", core.ErrUnsupportedFormat, format)
	}
}

// readDelimited reads csv or tsv data
func (c *Codec) readDelimited(r io.Reader, comma rune) (*dataset.Table, error) {
	reader := csv.NewReader(r)
	reader.Comma = comma
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read delimited file: %w", err)
	}
	return c.processRows(rows)
}

// readExcel reads the configured sheet, falling back to the first sheet
func (c *Codec) readExcel(r io.Reader) (*dataset.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("Excel file has no sheets")
	}
	sheet := sheets[0]
	for _, name := range sheets {
		if name == c.config.SheetName {
			sheet = name
			break
		}
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	return c.processRows(rows)
}

// processRows converts raw string rows into a table
func (c *Codec) processRows(rows [][]string) (*dataset.Table, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("file must have at least a header row")
	}

	headers := normalizeHeaders(rows[0])

	data := make([][]dataset.Value, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) == 0 {
			continue
		}
		cells := make([]dataset.Value, 0, len(headers))
		for j, cell := range row {
			if j >= len(headers) {
				break
			}
			if c.config.TrimCells {
				cell = strings.TrimSpace(cell)
			}
			cells = append(cells, dataset.NewStringValue(cell))
		}
		data = append(data, cells)
	}

	return dataset.NewTable(headers, data), nil
}

// readJSON reads an array of flat records. Columns follow the order keys
// are first seen; records lacking a key get a missing cell.
func (c *Codec) readJSON(r io.Reader) (*dataset.Table, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	if err := expectDelim(dec, '['); err != nil {
		return nil, err
	}

	var headers []string
	index := make(map[string]int)
	var records []map[string]dataset.Value

	for dec.More() {
		if err := expectDelim(dec, '{'); err != nil {
			return nil, err
		}
		rec := make(map[string]dataset.Value)
		for dec.More() {
			tok, err := dec.Token()
			if err != nil {
				return nil, fmt.Errorf("failed to read JSON record: %w", err)
			}
			key, ok := tok.(string)
			if !ok {
				return nil, fmt.Errorf("failed to read JSON record: unexpected token %v", tok)
			}
			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				return nil, fmt.Errorf("failed to read JSON value for %q: %w", key, err)
			}
			if _, seen := index[key]; !seen {
				index[key] = len(headers)
				headers = append(headers, key)
			}
			rec[key] = jsonValue(raw)
		}
		if err := expectDelim(dec, '}'); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := expectDelim(dec, ']'); err != nil {
		return nil, err
	}

	rows := make([][]dataset.Value, len(records))
	for i, rec := range records {
		row := make([]dataset.Value, len(headers))
		for j, h := range headers {
			if v, ok := rec[h]; ok {
				row[j] = v
			} else {
				row[j] = dataset.NewMissingValue()
			}
		}
		rows[i] = row
	}
	return dataset.NewTable(headers, rows), nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("failed to read JSON file: expected %q, got %v", want, tok)
	}
	return nil
}

// jsonValue converts a scalar JSON value to a cell; nested values keep their text
func jsonValue(raw json.RawMessage) dataset.Value {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return dataset.NewStringValue(string(raw))
	}
	switch val := v.(type) {
	case nil:
		return dataset.NewMissingValue()
	case bool:
		return dataset.NewBooleanValue(val)
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return dataset.NewNumericValue(f)
		}
		return dataset.NewStringValue(val.String())
	case string:
		return dataset.NewStringValue(val)
	default:
		return dataset.NewStringValue(string(raw))
	}
}

// normalizeHeaders trims header names, names blank headers by position and
// suffixes duplicates so every column name is unique
func normalizeHeaders(row []string) []string {
	headers := make([]string, len(row))
	seen := make(map[string]bool, len(row))
	for i, h := range row {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		candidate := name
		for n := 2; seen[candidate]; n++ {
			candidate = fmt.Sprintf("%s_%d", name, n)
		}
		seen[candidate] = true
		headers[i] = candidate
	}
	return headers
}
