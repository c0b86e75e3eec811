package excel

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"sondajes/adapters/datareadiness/coercer"
	"sondajes/domain/table"
	"sondajes/internal"
	apperrors "sondajes/internal/errors"

	"github.com/xuri/excelize/v2"
)

// Loader parses spreadsheet workbooks into tables
type Loader struct {
	config  ExcelConfig
	coercer *coercer.TypeCoercer
	periods map[string]bool
	logger  *internal.Logger
}

// NewLoader creates a loader with the given configuration
func NewLoader(config ExcelConfig) *Loader {
	periods := make(map[string]bool, len(config.PeriodColumns))
	for _, name := range config.PeriodColumns {
		if name = strings.TrimSpace(name); name != "" {
			periods[name] = true
		}
	}
	return &Loader{
		config:  config,
		coercer: coercer.NewTypeCoercer(config.CoercionConfig),
		periods: periods,
		logger:  internal.DefaultLogger.With("Loader"),
	}
}

// SheetNames lists the worksheets of a workbook in tab order without
// reading any sheet's cells.
func (l *Loader) SheetNames(source []byte) ([]string, error) {
	f, err := l.open(bytes.NewReader(source))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.GetSheetList(), nil
}

// Load parses one sheet of the workbook in source into a table.
func (l *Loader) Load(source []byte, opts LoadOptions) (*table.Table, error) {
	return l.LoadReader(bytes.NewReader(source), opts)
}

// LoadReader is Load over a stream.
func (l *Loader) LoadReader(r io.Reader, opts LoadOptions) (*table.Table, error) {
	if opts.HeaderSkipRows < 0 {
		return nil, apperrors.ParseError(fmt.Sprintf("header skip rows must be >= 0, got %d", opts.HeaderSkipRows), nil)
	}
	selector, err := ParseColumnRange(opts.ColumnRange)
	if err != nil {
		return nil, err
	}

	startTime := time.Now()
	f, err := l.open(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	l.logger.Debug("workbook opened in %.2fms", float64(time.Since(startTime).Nanoseconds())/1e6)

	if idx, err := f.GetSheetIndex(opts.SheetName); err != nil || idx < 0 {
		return nil, apperrors.SheetNotFound(opts.SheetName, f.GetSheetList())
	}

	readStart := time.Now()
	raw, err := f.GetRows(opts.SheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, apperrors.ParseError(fmt.Sprintf("failed to read sheet %q", opts.SheetName), err)
	}
	formatted, err := f.GetRows(opts.SheetName)
	if err != nil {
		return nil, apperrors.ParseError(fmt.Sprintf("failed to read sheet %q", opts.SheetName), err)
	}
	l.logger.Debug("sheet %q read in %.2fms (%d rows)", opts.SheetName, float64(time.Since(readStart).Nanoseconds())/1e6, len(raw))

	date1904 := false
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}

	cells := newSheetCells(f, opts.SheetName)
	t, err := l.buildTable(raw, formatted, opts.HeaderSkipRows, selector, cells.kind, date1904)
	if err != nil {
		return nil, err
	}
	l.logger.Info("sheet %q loaded (%d columns, %d rows) in %s", opts.SheetName, t.ColumnCount(), t.RowCount(), time.Since(startTime))
	return t, nil
}

func (l *Loader) open(r io.Reader) (*excelize.File, error) {
	opts := excelize.Options{}
	if l.config.UnzipSizeLimit > 0 {
		opts.UnzipSizeLimit = l.config.UnzipSizeLimit
	}
	f, err := excelize.OpenReader(r, opts)
	if err != nil {
		return nil, apperrors.ParseError("file is not a well-formed spreadsheet workbook", err)
	}
	return f, nil
}

// buildTable turns the raw and formatted grids of one sheet into a table.
// kindOf classifies data cells by their zero-based grid position.
func (l *Loader) buildTable(raw, formatted [][]string, skip int, selector ColumnSelector, kindOf func(r, c int) cellKind, date1904 bool) (*table.Table, error) {
	if len(raw) <= skip {
		l.logger.Warn("sheet has %d rows, header expected at row %d; returning an empty table", len(raw), skip+1)
		return table.Empty(), nil
	}

	width := 0
	for _, row := range raw[skip:] {
		if len(row) > width {
			width = len(row)
		}
	}
	if skip < len(formatted) && len(formatted[skip]) > width {
		width = len(formatted[skip])
	}
	cols := selector.Indexes(width)

	var header []string
	if skip < len(formatted) {
		header = formatted[skip]
	}
	names := headerNames(header, cols)

	values := make([][]table.Value, len(cols))
	for r := skip + 1; r < len(raw); r++ {
		rowValues := make([]table.Value, len(cols))
		empty := true
		for j, c := range cols {
			v := table.NewMissingValue()
			if text := strings.TrimSpace(cellAt(raw, r, c)); text != "" {
				v = l.cellValue(text, kindOf(r, c), date1904)
			}
			if !v.IsMissing() {
				empty = false
			}
			rowValues[j] = v
		}
		if empty {
			continue
		}
		for j := range cols {
			values[j] = append(values[j], rowValues[j])
		}
	}

	columns := make([]*table.Column, len(cols))
	for j, name := range names {
		colValues := values[j]
		if colValues == nil {
			colValues = []table.Value{}
		}
		if l.periods[name] {
			colValues = l.toMonthNames(colValues, date1904)
		}
		columns[j] = &table.Column{Name: name, Type: table.InferType(colValues), Values: colValues}
	}
	return table.New(columns)
}

// cellValue types one cell. Text cells keep their text even when it reads
// as a number; number cells become timestamps when their format is a date.
func (l *Loader) cellValue(raw string, kind cellKind, date1904 bool) table.Value {
	if excelErrorValues[raw] {
		return table.NewMissingValue()
	}
	switch kind {
	case kindError:
		return table.NewMissingValue()
	case kindText:
		return table.NewStringValue(raw)
	case kindBool:
		switch raw {
		case "1":
			return table.NewStringValue("TRUE")
		case "0":
			return table.NewStringValue("FALSE")
		}
		return table.NewStringValue(strings.ToUpper(raw))
	case kindISODate:
		if t, ok := parseISODate(raw); ok {
			return table.NewTimestampValue(t)
		}
		return table.NewStringValue(raw)
	case kindDateNumber:
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			if t, err := excelize.ExcelDateToTime(n, date1904); err == nil {
				return table.NewTimestampValue(t)
			}
		}
	}
	if n, err := strconv.ParseFloat(raw, 64); err == nil && !math.IsNaN(n) && !math.IsInf(n, 0) {
		return table.NewNumericValue(n)
	}
	return l.coercer.CoerceText(raw)
}

// toMonthNames replaces period values by their English month name.
// Values that do not read as dates become null.
func (l *Loader) toMonthNames(values []table.Value, date1904 bool) []table.Value {
	out := make([]table.Value, len(values))
	for i, v := range values {
		var (
			t  time.Time
			ok bool
		)
		switch v.Type {
		case table.ValueTypeTimestamp:
			t, ok = v.TimestampVal, true
		case table.ValueTypeNumeric:
			if v.NumericVal > 0 {
				var err error
				t, err = excelize.ExcelDateToTime(v.NumericVal, date1904)
				ok = err == nil
			}
		case table.ValueTypeString:
			t, ok = l.coercer.ParseTimestamp(v.StringVal)
		}
		if !ok {
			out[i] = table.NewMissingValue()
			continue
		}
		out[i] = table.NewStringValue(t.Month().String())
	}
	return out
}

func cellAt(grid [][]string, r, c int) string {
	if r >= len(grid) || c >= len(grid[r]) {
		return ""
	}
	return grid[r][c]
}

// headerNames normalizes the header labels of the selected columns: text is
// trimmed, blanks become "Unnamed: <i>" and repeats get ".1", ".2" suffixes.
func headerNames(header []string, cols []int) []string {
	names := make([]string, len(cols))
	seen := make(map[string]bool, len(cols))
	for j, c := range cols {
		name := ""
		if c < len(header) {
			name = strings.TrimSpace(header[c])
		}
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", j)
		}
		unique := name
		for n := 1; seen[unique]; n++ {
			unique = fmt.Sprintf("%s.%d", name, n)
		}
		seen[unique] = true
		names[j] = unique
	}
	return names
}

// ColumnSelector is a parsed column restriction. The zero value selects
// every column.
type ColumnSelector struct {
	columns []int
}

// ParseColumnRange parses "A:F", "C" or comma lists like "A,C:E" into a
// selector. Letters are case-insensitive; ranges are inclusive.
func ParseColumnRange(spec string) (ColumnSelector, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return ColumnSelector{}, nil
	}
	set := make(map[int]bool)
	for _, part := range strings.Split(spec, ",") {
		bounds := strings.Split(strings.TrimSpace(part), ":")
		if len(bounds) > 2 {
			return ColumnSelector{}, apperrors.ParseError(fmt.Sprintf("invalid column range %q", spec), nil)
		}
		from, err := excelize.ColumnNameToNumber(strings.ToUpper(strings.TrimSpace(bounds[0])))
		if err != nil {
			return ColumnSelector{}, apperrors.ParseError(fmt.Sprintf("invalid column range %q", spec), err)
		}
		to := from
		if len(bounds) == 2 {
			if to, err = excelize.ColumnNameToNumber(strings.ToUpper(strings.TrimSpace(bounds[1]))); err != nil {
				return ColumnSelector{}, apperrors.ParseError(fmt.Sprintf("invalid column range %q", spec), err)
			}
		}
		if from > to {
			return ColumnSelector{}, apperrors.ParseError(fmt.Sprintf("invalid column range %q: start after end", spec), nil)
		}
		for c := from; c <= to; c++ {
			set[c-1] = true
		}
	}
	cols := make([]int, 0, len(set))
	for c := range set {
		cols = append(cols, c)
	}
	sort.Ints(cols)
	return ColumnSelector{columns: cols}, nil
}

// Indexes returns the zero-based selected columns that exist in a sheet of
// the given width.
func (s ColumnSelector) Indexes(width int) []int {
	if s.columns == nil {
		cols := make([]int, width)
		for i := range cols {
			cols[i] = i
		}
		return cols
	}
	cols := make([]int, 0, len(s.columns))
	for _, c := range s.columns {
		if c < width {
			cols = append(cols, c)
		}
	}
	return cols
}
