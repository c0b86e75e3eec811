package coercer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"sondajes/domain/table"
)

func TestCoerceTextStrict(t *testing.T) {
	c := NewTypeCoercer(DefaultCoercionConfig())

	assert.True(t, c.CoerceText("   ").IsMissing())
	assert.Equal(t, table.NewNumericValue(85.5), c.CoerceText("85.5"))
	assert.Equal(t, table.NewNumericValue(-3), c.CoerceText(" -3 "))
	assert.Equal(t, table.NewStringValue("1,000"), c.CoerceText("1,000"))
	assert.Equal(t, table.NewStringValue("SDJ-12"), c.CoerceText("SDJ-12"))
	assert.Equal(t, table.ValueTypeString, c.CoerceText("NaN").Type)
	assert.Equal(t, table.ValueTypeString, c.CoerceText("Inf").Type)
}

func TestParseNumericLenient(t *testing.T) {
	c := NewTypeCoercer(CoercionConfig{LenientNumbers: true})

	cases := map[string]float64{
		"1,000.50": 1000.50,
		"1.234,56": 1234.56,
		"1 234,56": 1234.56,
		"(42)":     -42,
		"$ 12":     12,
		"85%":      85,
		"3,5":      3.5,
		"1.5e3":    1500,
	}
	for in, want := range cases {
		got, ok := c.ParseNumeric(in)
		if assert.True(t, ok, in) {
			assert.InDelta(t, want, got, 1e-9, in)
		}
	}

	_, ok := c.ParseNumeric("abc")
	assert.False(t, ok)
}

func TestParseTimestamp(t *testing.T) {
	c := NewTypeCoercer(DefaultCoercionConfig())

	cases := map[string]time.Time{
		"2025-03-15":          time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC),
		"2025-03-15 08:30:00": time.Date(2025, 3, 15, 8, 30, 0, 0, time.UTC),
		"03-15-25":            time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC),
		"03/15/2025":          time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC),
		"15/03/2025":          time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC),
		"Mar-25":              time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	for in, want := range cases {
		got, ok := c.ParseTimestamp(in)
		if assert.True(t, ok, in) {
			assert.True(t, want.Equal(got), "%s: got %v", in, got)
		}
	}

	for _, bad := range []string{"", "Enero", "2025-13-40", "n/a"} {
		_, ok := c.ParseTimestamp(bad)
		assert.False(t, ok, bad)
	}
}

func TestEmptyFormatsFallBackToDefaults(t *testing.T) {
	c := NewTypeCoercer(CoercionConfig{})
	_, ok := c.ParseTimestamp("2025-01-31")
	assert.True(t, ok)
}
