package dataset

import (
	"strconv"
	"strings"
	"time"
)

// ValueType defines the storage type for cell values
type ValueType string

const (
	ValueTypeString    ValueType = "string"
	ValueTypeNumeric   ValueType = "numeric"
	ValueTypeBoolean   ValueType = "boolean"
	ValueTypeTimestamp ValueType = "timestamp"
	ValueTypeMissing   ValueType = "missing"
)

// NullTokens are textual cells treated as absent values.
var NullTokens = map[string]bool{
	"NA":   true,
	"N/A":  true,
	"NaN":  true,
	"nan":  true,
	"null": true,
	"NULL": true,
	"None": true,
}

// Value is a single raw table cell. Cells keep the type they were read
// with; text read from delimited files stays a string until a stage
// decides to coerce it.
type Value struct {
	Type ValueType `json:"type"`
	Str  string    `json:"str,omitempty"`
	Num  float64   `json:"num,omitempty"`
	Bool bool      `json:"bool,omitempty"`
	Time time.Time `json:"time,omitempty"`
}

// NewStringValue creates a string value. Blank strings and null tokens
// become missing values.
func NewStringValue(s string) Value {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" || NullTokens[trimmed] {
		return NewMissingValue()
	}
	return Value{Type: ValueTypeString, Str: s}
}

// NewNumericValue creates a numeric value
func NewNumericValue(n float64) Value {
	return Value{Type: ValueTypeNumeric, Num: n}
}

// NewBooleanValue creates a boolean value
func NewBooleanValue(b bool) Value {
	return Value{Type: ValueTypeBoolean, Bool: b}
}

// NewTimestampValue creates a timestamp value
func NewTimestampValue(t time.Time) Value {
	return Value{Type: ValueTypeTimestamp, Time: t}
}

// NewMissingValue creates a missing value
func NewMissingValue() Value {
	return Value{Type: ValueTypeMissing}
}

// IsMissing reports whether the cell is absent
func (v Value) IsMissing() bool {
	return v.Type == ValueTypeMissing || v.Type == ""
}

// IsNumeric returns true if the value is stored as a number
func (v Value) IsNumeric() bool {
	return v.Type == ValueTypeNumeric
}

// String returns the canonical text form of the value. Missing values
// render as the empty string.
func (v Value) String() string {
	switch v.Type {
	case ValueTypeString:
		return v.Str
	case ValueTypeNumeric:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case ValueTypeBoolean:
		return strconv.FormatBool(v.Bool)
	case ValueTypeTimestamp:
		return v.Time.UTC().Format(time.RFC3339Nano)
	}
	return ""
}

// Key returns the identity used for distinct counting.
func (v Value) Key() string {
	if v.Type == ValueTypeString {
		return strings.TrimSpace(v.Str)
	}
	return v.String()
}

// Equal compares two values by type and content
func (v Value) Equal(other Value) bool {
	if v.IsMissing() || other.IsMissing() {
		return v.IsMissing() && other.IsMissing()
	}
	return v.Type == other.Type && v.String() == other.String()
}
