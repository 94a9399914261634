package coercer

import (
	"math"
	"strconv"
	"strings"
	"time"

	"tabprep/domain/dataset"
)

// TypeCoercer handles deterministic parsing of raw cells into numbers and times
type TypeCoercer struct {
	config CoercionConfig
}

// CoercionConfig defines the accepted formats
type CoercionConfig struct {
	TimestampLayouts []string `json:"timestamp_layouts"`
}

// DefaultCoercionConfig returns the common date/time layouts
func DefaultCoercionConfig() CoercionConfig {
	return CoercionConfig{
		TimestampLayouts: []string{
			time.RFC3339,
			"2006-01-02T15:04:05",
			"2006-01-02 15:04:05",
			"2006-01-02",
			"01/02/2006",
			"2006/01/02",
			"02-Jan-2006",
			"20060102",
		},
	}
}

// NewTypeCoercer creates a coercer with the given config
func NewTypeCoercer(config CoercionConfig) *TypeCoercer {
	return &TypeCoercer{config: config}
}

// ParseNumber returns the numeric value of a cell. Numeric cells pass
// through; string cells are parsed leniently (currency symbols, percent
// signs, thousands separators, parenthesised negatives).
func (c *TypeCoercer) ParseNumber(v dataset.Value) (float64, bool) {
	switch v.Type {
	case dataset.ValueTypeNumeric:
		return v.Num, !math.IsNaN(v.Num) && !math.IsInf(v.Num, 0)
	case dataset.ValueTypeString:
		return c.tryParseNumeric(v.Str)
	}
	return 0, false
}

// ParseTimestamp returns the time value of a cell. Only timestamp cells and
// strings matching a configured layout qualify; bare numbers never do.
func (c *TypeCoercer) ParseTimestamp(v dataset.Value) (time.Time, bool) {
	switch v.Type {
	case dataset.ValueTypeTimestamp:
		return v.Time, true
	case dataset.ValueTypeString:
		return c.tryParseTimestamp(v.Str)
	}
	return time.Time{}, false
}

// Coerce converts a raw string into the most specific typed value. Used
// for fill values supplied as text.
func (c *TypeCoercer) Coerce(raw string) dataset.Value {
	v := dataset.NewStringValue(raw)
	if v.IsMissing() {
		return v
	}
	if n, ok := c.tryParseNumeric(raw); ok {
		return dataset.NewNumericValue(n)
	}
	return v
}

// tryParseNumeric attempts to parse as numeric
func (c *TypeCoercer) tryParseNumeric(strVal string) (float64, bool) {
	cleanVal := strings.TrimSpace(strVal)
	if cleanVal == "" {
		return 0, false
	}

	// Handle parentheses for negative numbers: (123) -> -123
	isNegative := false
	if strings.HasPrefix(cleanVal, "(") && strings.HasSuffix(cleanVal, ")") {
		cleanVal = strings.TrimSuffix(strings.TrimPrefix(cleanVal, "("), ")")
		isNegative = true
	}

	for _, symbol := range []string{"$", "€", "£", "¥", "%"} {
		cleanVal = strings.ReplaceAll(cleanVal, symbol, "")
	}
	cleanVal = strings.TrimSpace(cleanVal)

	hasComma := strings.Contains(cleanVal, ",")
	hasPeriod := strings.Contains(cleanVal, ".")
	switch {
	case hasComma && hasPeriod:
		// 1.234,56 (European) vs 1,234.56
		if strings.LastIndex(cleanVal, ",") > strings.LastIndex(cleanVal, ".") {
			cleanVal = strings.ReplaceAll(cleanVal, ".", "")
			cleanVal = strings.ReplaceAll(cleanVal, ",", ".")
		} else {
			cleanVal = strings.ReplaceAll(cleanVal, ",", "")
		}
	case hasComma:
		// Three digits after every comma reads as a thousands separator
		parts := strings.Split(cleanVal, ",")
		grouped := len(parts) > 1
		for _, p := range parts[1:] {
			if len(p) != 3 {
				grouped = false
			}
		}
		if grouped {
			cleanVal = strings.ReplaceAll(cleanVal, ",", "")
		} else if len(parts) == 2 {
			cleanVal = parts[0] + "." + parts[1]
		}
	}

	if isNegative {
		cleanVal = "-" + cleanVal
	}

	val, err := strconv.ParseFloat(cleanVal, 64)
	if err != nil || math.IsInf(val, 0) || math.IsNaN(val) {
		return 0, false
	}
	return val, true
}

// tryParseTimestamp attempts to parse with the configured layouts
func (c *TypeCoercer) tryParseTimestamp(strVal string) (time.Time, bool) {
	s := strings.TrimSpace(strVal)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range c.config.TimestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// AnalyzeTypeDistribution counts how the cells of one column parse
func (c *TypeCoercer) AnalyzeTypeDistribution(cells []dataset.Value) TypeAnalysis {
	analysis := TypeAnalysis{TotalCount: len(cells)}
	distinct := make(map[string]struct{})

	for _, cell := range cells {
		if cell.IsMissing() {
			continue
		}
		analysis.ValidCount++
		distinct[cell.Key()] = struct{}{}

		if _, ok := c.ParseNumber(cell); ok {
			analysis.NumericCount++
		}
		if _, ok := c.ParseTimestamp(cell); ok {
			analysis.TimestampCount++
		}
	}

	analysis.DistinctCount = len(distinct)
	if analysis.ValidCount > 0 {
		analysis.NumericRatio = float64(analysis.NumericCount) / float64(analysis.ValidCount)
		analysis.TimestampRatio = float64(analysis.TimestampCount) / float64(analysis.ValidCount)
	}
	return analysis
}

// TypeAnalysis contains the results of type distribution analysis
type TypeAnalysis struct {
	TotalCount     int     `json:"total_count"`
	ValidCount     int     `json:"valid_count"`
	DistinctCount  int     `json:"distinct_count"`
	NumericCount   int     `json:"numeric_count"`
	TimestampCount int     `json:"timestamp_count"`
	NumericRatio   float64 `json:"numeric_ratio"`
	TimestampRatio float64 `json:"timestamp_ratio"`
}
