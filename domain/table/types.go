package table

import (
	"strconv"
	"time"
)

// ValueType defines the storage type for values
type ValueType string

const (
	ValueTypeString    ValueType = "string"
	ValueTypeNumeric   ValueType = "numeric"
	ValueTypeTimestamp ValueType = "timestamp"
	ValueTypeMissing   ValueType = "missing"
)

// Value is one typed cell. The zero Value is missing.
type Value struct {
	Type         ValueType `json:"type"`
	StringVal    string    `json:"string_val,omitempty"`
	NumericVal   float64   `json:"numeric_val,omitempty"`
	TimestampVal time.Time `json:"timestamp_val,omitempty"`
}

// NewStringValue creates a string value; the empty string is missing
func NewStringValue(s string) Value {
	if s == "" {
		return NewMissingValue()
	}
	return Value{Type: ValueTypeString, StringVal: s}
}

// NewNumericValue creates a numeric value
func NewNumericValue(n float64) Value {
	return Value{Type: ValueTypeNumeric, NumericVal: n}
}

// NewTimestampValue creates a timestamp value
func NewTimestampValue(t time.Time) Value {
	return Value{Type: ValueTypeTimestamp, TimestampVal: t}
}

// NewMissingValue creates a missing value
func NewMissingValue() Value {
	return Value{Type: ValueTypeMissing}
}

// IsMissing reports whether the cell is null/empty.
func (v Value) IsMissing() bool {
	return v.Type == ValueTypeMissing || v.Type == ""
}

// Float returns the numeric payload, if any.
func (v Value) Float() (float64, bool) {
	if v.Type != ValueTypeNumeric {
		return 0, false
	}
	return v.NumericVal, true
}

// String is the stringified form used for membership tests, option lists
// and rendering. Missing values stringify to "".
func (v Value) String() string {
	switch v.Type {
	case ValueTypeString:
		return v.StringVal
	case ValueTypeNumeric:
		return strconv.FormatFloat(v.NumericVal, 'f', -1, 64)
	case ValueTypeTimestamp:
		t := v.TimestampVal
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
			return t.Format("2006-01-02")
		}
		return t.Format("2006-01-02 15:04:05")
	}
	return ""
}

// Column is a named, typed sequence of values aligned by row index.
// Columns reachable from a Table are read-only.
type Column struct {
	Name   string    `json:"name"`
	Type   ValueType `json:"type"`
	Values []Value   `json:"values"`
}

// Len returns the number of rows in the column
func (c *Column) Len() int {
	return len(c.Values)
}

// IsNumeric reports whether the column's inferred type is numeric
func (c *Column) IsNumeric() bool {
	return c.Type == ValueTypeNumeric
}

// Floats returns the non-missing numeric values in row order.
func (c *Column) Floats() []float64 {
	out := make([]float64, 0, len(c.Values))
	for _, v := range c.Values {
		if f, ok := v.Float(); ok {
			out = append(out, f)
		}
	}
	return out
}

// InferType picks numeric when every non-missing value is a number,
// timestamp when every one is a timestamp, and string otherwise.
// A column with no values at all is string.
func InferType(values []Value) ValueType {
	var numeric, timestamps, present int
	for _, v := range values {
		switch v.Type {
		case ValueTypeNumeric:
			numeric++
		case ValueTypeTimestamp:
			timestamps++
		case ValueTypeMissing, "":
			continue
		}
		present++
	}
	switch {
	case present == 0:
		return ValueTypeString
	case numeric == present:
		return ValueTypeNumeric
	case timestamps == present:
		return ValueTypeTimestamp
	default:
		return ValueTypeString
	}
}
