package preprocess

import (
	"bytes"
	"encoding/json"
	"fmt"

	"tabprep/domain/core"
)

// ImputationStrategy selects how missing cells are filled
type ImputationStrategy string

const (
	ImputeMean         ImputationStrategy = "mean"
	ImputeMedian       ImputationStrategy = "median"
	ImputeMostFrequent ImputationStrategy = "most_frequent"
	ImputeConstant     ImputationStrategy = "constant"
	ImputeNone         ImputationStrategy = "none"
)

// Encoding selects how a categorical column is encoded
type Encoding string

const (
	EncodeOneHot Encoding = "one_hot"
	EncodeNone   Encoding = "none"
)

// Scaling selects how numeric values are rescaled
type Scaling string

const (
	ScaleStandard Scaling = "standard"
	ScaleMinMax   Scaling = "minmax"
	ScaleNone     Scaling = "none"
)

func (s ImputationStrategy) Valid() bool {
	switch s {
	case ImputeMean, ImputeMedian, ImputeMostFrequent, ImputeConstant, ImputeNone:
		return true
	}
	return false
}

func (e Encoding) Valid() bool {
	return e == EncodeOneHot || e == EncodeNone
}

func (s Scaling) Valid() bool {
	switch s {
	case ScaleStandard, ScaleMinMax, ScaleNone:
		return true
	}
	return false
}

// Directive holds one column's transformation instructions
type Directive struct {
	Imputation ImputationStrategy `json:"imputation_strategy"`
	Encoding   Encoding           `json:"encoding"`
	Scaling    Scaling            `json:"scaling"`
	FillValue  *string            `json:"fill_value,omitempty"` // constant imputation only
}

// NoOp returns a directive that leaves the column untouched
func NoOp() Directive {
	return Directive{Imputation: ImputeNone, Encoding: EncodeNone, Scaling: ScaleNone}
}

// IsNoOp reports whether the directive changes nothing
func (d Directive) IsNoOp() bool {
	return d.Imputation == ImputeNone && d.Encoding == EncodeNone && d.Scaling == ScaleNone
}

// Validate checks every field holds a known value. Empty fields are
// rejected; use NoOp for an explicit "leave alone".
func (d Directive) Validate() error {
	if !d.Imputation.Valid() {
		return fmt.Errorf("unknown imputation_strategy %q", d.Imputation)
	}
	if !d.Encoding.Valid() {
		return fmt.Errorf("unknown encoding %q", d.Encoding)
	}
	if !d.Scaling.Valid() {
		return fmt.Errorf("unknown scaling %q", d.Scaling)
	}
	return nil
}

// Plan is an ordered mapping from column name to directive. Its JSON form is
// an object keyed by column name, written in column order.
type Plan struct {
	Columns    []string
	Directives map[string]Directive
}

// NewPlan creates an empty plan
func NewPlan() Plan {
	return Plan{Directives: make(map[string]Directive)}
}

// Set adds or replaces the directive for a column, keeping first-seen order
func (p *Plan) Set(column string, d Directive) {
	if p.Directives == nil {
		p.Directives = make(map[string]Directive)
	}
	if _, ok := p.Directives[column]; !ok {
		p.Columns = append(p.Columns, column)
	}
	p.Directives[column] = d
}

// Get returns the directive for a column
func (p Plan) Get(column string) (Directive, bool) {
	d, ok := p.Directives[column]
	return d, ok
}

// Len returns the number of columns covered
func (p Plan) Len() int {
	return len(p.Columns)
}

// Validate checks every directive, reporting offending columns together
func (p Plan) Validate() error {
	var bad []string
	for _, col := range p.Columns {
		if err := p.Directives[col].Validate(); err != nil {
			bad = append(bad, col)
		}
	}
	if len(bad) > 0 {
		return &core.PlanMismatchError{Columns: bad, Reason: "invalid directive values"}
	}
	return nil
}

// Merge applies a partial override on top of the plan. Each field given in
// the override replaces that single field; unspecified fields keep the
// plan's value. Override columns absent from the plan are a mismatch.
func (p Plan) Merge(o PlanOverride) (Plan, error) {
	merged := NewPlan()
	for _, col := range p.Columns {
		merged.Set(col, p.Directives[col])
	}

	var missing []string
	for _, col := range o.Columns {
		base, ok := merged.Directives[col]
		if !ok {
			missing = append(missing, col)
			continue
		}
		merged.Directives[col] = o.Directives[col].apply(base)
	}
	if len(missing) > 0 {
		return Plan{}, core.NewPlanMismatch(missing...)
	}
	if err := merged.Validate(); err != nil {
		return Plan{}, err
	}
	return merged, nil
}

// MarshalJSON writes the plan as an object in column order
func (p Plan) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range p.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(p.Directives[col])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a complete plan object, keeping key order. Every
// directive must give imputation_strategy, encoding and scaling; a partial
// plan is a PlanOverride and is merged onto a recommendation instead.
// Unknown fields are ignored.
func (p *Plan) UnmarshalJSON(data []byte) error {
	out := NewPlan()
	var incomplete []string
	err := decodeOrdered(data, func(col string, raw json.RawMessage) error {
		var o DirectiveOverride
		if err := json.Unmarshal(raw, &o); err != nil {
			return fmt.Errorf("column %q: %w", col, err)
		}
		if !o.complete() {
			incomplete = append(incomplete, col)
			return nil
		}
		out.Set(col, o.apply(Directive{}))
		return nil
	})
	if err != nil {
		return err
	}
	if len(incomplete) > 0 {
		return &core.PlanMismatchError{Columns: incomplete, Reason: "directives missing fields"}
	}
	*p = out
	return nil
}

// DirectiveOverride is a directive with every field optional
type DirectiveOverride struct {
	Imputation *ImputationStrategy `json:"imputation_strategy,omitempty"`
	Encoding   *Encoding           `json:"encoding,omitempty"`
	Scaling    *Scaling            `json:"scaling,omitempty"`
	FillValue  *string             `json:"fill_value,omitempty"`
}

func (o DirectiveOverride) complete() bool {
	return o.Imputation != nil && o.Encoding != nil && o.Scaling != nil
}

func (o DirectiveOverride) apply(base Directive) Directive {
	if o.Imputation != nil {
		base.Imputation = *o.Imputation
	}
	if o.Encoding != nil {
		base.Encoding = *o.Encoding
	}
	if o.Scaling != nil {
		base.Scaling = *o.Scaling
	}
	if o.FillValue != nil {
		v := *o.FillValue
		base.FillValue = &v
	}
	return base
}

// PlanOverride is a caller-supplied partial plan
type PlanOverride struct {
	Columns    []string
	Directives map[string]DirectiveOverride
}

// Set adds or replaces the override for a column
func (o *PlanOverride) Set(column string, d DirectiveOverride) {
	if o.Directives == nil {
		o.Directives = make(map[string]DirectiveOverride)
	}
	if _, ok := o.Directives[column]; !ok {
		o.Columns = append(o.Columns, column)
	}
	o.Directives[column] = d
}

// IsEmpty reports whether the override changes nothing
func (o PlanOverride) IsEmpty() bool {
	return len(o.Columns) == 0
}

// UnmarshalJSON reads an override object in key order
func (o *PlanOverride) UnmarshalJSON(data []byte) error {
	out := PlanOverride{}
	err := decodeOrdered(data, func(col string, raw json.RawMessage) error {
		var d DirectiveOverride
		if err := json.Unmarshal(raw, &d); err != nil {
			return fmt.Errorf("column %q: %w", col, err)
		}
		out.Set(col, d)
		return nil
	})
	if err != nil {
		return err
	}
	*o = out
	return nil
}

// ParseOverride decodes the plan exchange format into an override
func ParseOverride(data []byte) (PlanOverride, error) {
	var o PlanOverride
	if len(bytes.TrimSpace(data)) == 0 {
		return o, nil
	}
	if err := json.Unmarshal(data, &o); err != nil {
		return PlanOverride{}, fmt.Errorf("failed to decode plan override: %w", err)
	}
	return o, nil
}

func decodeOrdered(data []byte, fn func(key string, raw json.RawMessage) error) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("plan must be a JSON object")
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("plan keys must be column names")
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		if err := fn(key, raw); err != nil {
			return err
		}
	}
	_, err = dec.Token()
	return err
}
