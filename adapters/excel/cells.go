package excel

import (
	"time"

	"github.com/xuri/excelize/v2"
	"github.com/xuri/nfp"
)

// cellKind is how a stored cell is read, decided by its XML type and, for
// numbers, by its number format.
type cellKind int

const (
	kindNumber cellKind = iota
	kindDateNumber
	kindText
	kindBool
	kindISODate
	kindError
)

// builtInDateFormats are the built-in number format IDs that render dates
// or times of day. Elapsed-time formats (46, 79) are left out: they hold
// durations, not points in time.
var builtInDateFormats = map[int]bool{
	14: true, 15: true, 16: true, 17: true, 18: true, 19: true, 20: true, 21: true, 22: true,
	27: true, 28: true, 29: true, 30: true, 31: true, 32: true, 33: true, 34: true, 35: true, 36: true,
	45: true, 47: true,
	50: true, 51: true, 52: true, 53: true, 54: true, 55: true, 56: true, 57: true, 58: true,
	71: true, 72: true, 73: true, 74: true, 75: true, 76: true, 77: true, 78: true, 80: true, 81: true,
}

// isoDateLayouts are the forms of "d" (ISO 8601) typed cells.
var isoDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05Z",
	"2006-01-02",
	"20060102T150405Z",
	"20060102T150405.999",
}

// sheetCells answers type questions about the cells of one sheet. Style
// lookups are cached per style ID.
type sheetCells struct {
	f          *excelize.File
	sheet      string
	dateStyles map[int]bool
}

func newSheetCells(f *excelize.File, sheet string) *sheetCells {
	return &sheetCells{f: f, sheet: sheet, dateStyles: make(map[int]bool)}
}

// kind classifies the cell at zero-based row r and column c.
func (s *sheetCells) kind(r, c int) cellKind {
	ref, err := excelize.CoordinatesToCellName(c+1, r+1)
	if err != nil {
		return kindNumber
	}
	cellType, err := s.f.GetCellType(s.sheet, ref)
	if err != nil {
		return kindNumber
	}
	switch cellType {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeFormula:
		return kindText
	case excelize.CellTypeBool:
		return kindBool
	case excelize.CellTypeDate:
		return kindISODate
	case excelize.CellTypeError:
		return kindError
	}
	if s.hasDateStyle(ref) {
		return kindDateNumber
	}
	return kindNumber
}

func (s *sheetCells) hasDateStyle(ref string) bool {
	id, err := s.f.GetCellStyle(s.sheet, ref)
	if err != nil {
		return false
	}
	if isDate, ok := s.dateStyles[id]; ok {
		return isDate
	}
	isDate := false
	if style, err := s.f.GetStyle(id); err == nil && style != nil {
		isDate = isDateStyle(style)
	}
	s.dateStyles[id] = isDate
	return isDate
}

// isDateStyle reports whether a style's number format renders a date or a
// time of day.
func isDateStyle(style *excelize.Style) bool {
	if style.CustomNumFmt != nil {
		return isDateFormatCode(*style.CustomNumFmt)
	}
	return builtInDateFormats[style.NumFmt]
}

// isDateFormatCode looks for date/time tokens in the positive section of a
// format code. Quoted literals and escapes are handled by the tokenizer, so
// "0.0 \"m\"" is not a date.
func isDateFormatCode(code string) bool {
	p := nfp.NumberFormatParser()
	sections := p.Parse(code)
	if len(sections) == 0 {
		return false
	}
	isDate := false
	for _, token := range sections[0].Items {
		switch token.TType {
		case nfp.TokenTypeElapsedDateTimes:
			return false
		case nfp.TokenTypeDateTimes:
			isDate = true
		}
	}
	return isDate
}

func parseISODate(raw string) (time.Time, bool) {
	for _, layout := range isoDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
