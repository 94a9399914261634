package preprocess

import (
	"math"
	"strconv"
	"strings"

	"tabprep/domain/core"
	"tabprep/domain/dataset"
)

// ChangeKind classifies a change log entry
type ChangeKind string

const (
	ChangeAdded   ChangeKind = "added"
	ChangeRemoved ChangeKind = "removed"
	ChangeImputed ChangeKind = "imputed"
	ChangeScaled  ChangeKind = "scaled"
	ChangeSkipped ChangeKind = "skipped"
)

// Change records one effect of executing a plan
type Change struct {
	Kind   ChangeKind `json:"kind"`
	Column string     `json:"column"`
	Source string     `json:"source,omitempty"` // originating column for expansions
	Detail string     `json:"detail,omitempty"`
}

// ExecutionResult is the transformed table and what happened to produce it
type ExecutionResult struct {
	SourceID      core.ID        `json:"source_id"`
	SourceVersion int            `json:"source_version"`
	Plan          Plan           `json:"plan"`
	Table         *dataset.Table `json:"-"`
	Changes       []Change       `json:"changes"`
	RowCount      int            `json:"row_count"`
	ColumnsBefore int            `json:"columns_before"`
	ColumnsAfter  int            `json:"columns_after"`
	Fingerprint   core.Hash      `json:"fingerprint"`
}

// Preview returns the first rows of the transformed table
func (r *ExecutionResult) Preview(limit int) []map[string]string {
	return r.Table.PreviewRows(limit)
}

// ChangesFor returns the log entries touching a column
func (r *ExecutionResult) ChangesFor(column string) []Change {
	var out []Change
	for _, c := range r.Changes {
		if c.Column == column || c.Source == column {
			out = append(out, c)
		}
	}
	return out
}

// TableFingerprint hashes the canonical text of a table. Two tables share a
// fingerprint only if names, order, cell types and cell contents all match.
func TableFingerprint(t *dataset.Table) core.Hash {
	var b strings.Builder
	for _, c := range t.Columns {
		b.WriteString(strconv.Quote(c.Name))
		b.WriteByte('\n')
		for _, v := range c.Cells {
			b.WriteString(string(v.Type))
			b.WriteByte(':')
			if v.IsNumeric() {
				b.WriteString(strconv.FormatUint(math.Float64bits(v.Num), 16))
			} else {
				b.WriteString(strconv.Quote(v.String()))
			}
			b.WriteByte('\x1f')
		}
		b.WriteByte('\x1e')
	}
	return core.NewHash([]byte(b.String()))
}
