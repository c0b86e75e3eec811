package coercer

import (
	"math"
	"strconv"
	"strings"
	"time"

	"sondajes/domain/table"
)

// TypeCoercer handles deterministic coercion of raw cell text into typed values
type TypeCoercer struct {
	config CoercionConfig
}

// CoercionConfig defines the coercion rules
type CoercionConfig struct {
	// LenientNumbers accepts currency symbols, percent signs, thousands
	// separators, European decimals and (123) negatives.
	LenientNumbers bool `json:"lenient_numbers" yaml:"lenient_numbers"`
	// TimestampFormats are tried in order by ParseTimestamp.
	TimestampFormats []string `json:"timestamp_formats" yaml:"timestamp_formats"`
}

// DefaultTimestampFormats covers ISO forms, the renderings excelize produces
// for the built-in date number formats, and day-first dates.
var DefaultTimestampFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"2006/01/02",
	"02-Jan-2006",
	"01-02-06",
	"1/2/06 15:04",
	"2-Jan-06",
	"Jan-06",
	"02/01/2006",
	"02-01-2006",
}

// DefaultCoercionConfig returns sensible defaults
func DefaultCoercionConfig() CoercionConfig {
	return CoercionConfig{
		LenientNumbers:   false,
		TimestampFormats: DefaultTimestampFormats,
	}
}

// NewTypeCoercer creates a coercer with the given config
func NewTypeCoercer(config CoercionConfig) *TypeCoercer {
	if len(config.TimestampFormats) == 0 {
		config.TimestampFormats = DefaultTimestampFormats
	}
	return &TypeCoercer{config: config}
}

// CoerceText converts the text of a cell to a typed Value. Blank text is
// missing, numbers become numeric, anything else stays a string.
func (c *TypeCoercer) CoerceText(raw string) table.Value {
	if strings.TrimSpace(raw) == "" {
		return table.NewMissingValue()
	}
	if n, ok := c.ParseNumeric(raw); ok {
		return table.NewNumericValue(n)
	}
	return table.NewStringValue(raw)
}

// ParseNumeric parses strictly, or leniently when configured.
func (c *TypeCoercer) ParseNumeric(strVal string) (float64, bool) {
	cleanVal := strings.TrimSpace(strVal)
	if cleanVal == "" {
		return 0, false
	}
	if c.config.LenientNumbers {
		cleanVal = normalizeNumeric(cleanVal)
	}
	val, err := strconv.ParseFloat(cleanVal, 64)
	if err != nil || math.IsInf(val, 0) || math.IsNaN(val) {
		return 0, false
	}
	return val, true
}

// normalizeNumeric handles international formats: parentheses for
// negatives, European decimals, currency symbols
func normalizeNumeric(cleanVal string) string {
	// (123) -> -123
	isNegative := false
	if strings.HasPrefix(cleanVal, "(") && strings.HasSuffix(cleanVal, ")") {
		cleanVal = strings.TrimSuffix(strings.TrimPrefix(cleanVal, "("), ")")
		isNegative = true
	}

	for _, symbol := range []string{"$", "€", "£", "¥", "USD", "EUR", "GBP", "JPY"} {
		cleanVal = strings.ReplaceAll(cleanVal, symbol, "")
	}
	cleanVal = strings.TrimSpace(strings.ReplaceAll(cleanVal, "%", ""))

	hasComma := strings.Contains(cleanVal, ",")
	hasPeriod := strings.Contains(cleanVal, ".")
	hasSpace := strings.Contains(cleanVal, " ")

	switch {
	case hasComma && (hasPeriod || hasSpace):
		// 1.234,56 or 1 234,56 when at most three digits follow the last comma
		commaIdx := strings.LastIndex(cleanVal, ",")
		afterComma := cleanVal[commaIdx+1:]
		if len(afterComma) <= 3 && strings.Trim(afterComma, "0123456789") == "" {
			cleanVal = strings.ReplaceAll(cleanVal, ".", "")
			cleanVal = strings.ReplaceAll(cleanVal, " ", "")
			cleanVal = strings.ReplaceAll(cleanVal, ",", ".")
		} else {
			cleanVal = strings.ReplaceAll(cleanVal, ",", "")
		}
	case hasComma:
		cleanVal = strings.ReplaceAll(cleanVal, ",", ".")
	default:
		cleanVal = strings.ReplaceAll(cleanVal, " ", "")
	}

	if isNegative {
		cleanVal = "-" + cleanVal
	}
	return cleanVal
}

// ParseTimestamp tries each configured layout in order.
func (c *TypeCoercer) ParseTimestamp(strVal string) (time.Time, bool) {
	strVal = strings.TrimSpace(strVal)
	if strVal == "" {
		return time.Time{}, false
	}
	for _, format := range c.config.TimestampFormats {
		if t, err := time.Parse(format, strVal); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
