package excel

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"sondajes/domain/filter"
	"sondajes/domain/table"
	apperrors "sondajes/internal/errors"
	"sondajes/internal/pipeline"
)

const testSheet = "2025 GNRL"

// workbook builds an in-memory xlsx with the given sheet contents. Rows are
// written from A1 down; nil rows are left blank.
func workbook(t *testing.T, sheets map[string][][]interface{}, order ...string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, name := range order {
		if i == 0 {
			require.NoError(t, f.SetSheetName(f.GetSheetName(0), name))
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for r, row := range sheets[name] {
			if row == nil {
				continue
			}
			cell := fmt.Sprintf("A%d", r+1)
			require.NoError(t, f.SetSheetRow(name, cell, &row))
		}
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

// styleDates applies the built-in mm-dd-yy number format to a cell range.
func styleDates(t *testing.T, source []byte, sheet, from, to string) []byte {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(source))
	require.NoError(t, err)
	defer f.Close()
	style, err := f.NewStyle(&excelize.Style{NumFmt: 14})
	require.NoError(t, err)
	require.NoError(t, f.SetCellStyle(sheet, from, to, style))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func titleBlock(n int) [][]interface{} {
	rows := make([][]interface{}, n)
	rows[0] = []interface{}{"REPORTE DE PERFORACIÓN"}
	rows[2] = []interface{}{"Proyecto:", "Mina Norte"}
	rows[n-1] = []interface{}{"Generado", "2025"}
	return rows
}

func drillingSheet() [][]interface{} {
	rows := titleBlock(12)
	rows = append(rows,
		[]interface{}{"  SONDAJE ", "FECHA", "UBICACION", "RECUPERACION", "MES"},
		[]interface{}{"SDJ-001", time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), "Norte", 90, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
		[]interface{}{"SDJ-002", time.Date(2025, 3, 16, 0, 0, 0, 0, time.UTC), "Sur", 80, "2025-02-10"},
		nil,
		[]interface{}{"SDJ-003", nil, nil, 85.5, "sin fecha"},
		[]interface{}{"SDJ-004", time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC), "Norte", 70, nil},
	)
	return rows
}

func drillingWorkbook(t *testing.T) []byte {
	src := workbook(t, map[string][][]interface{}{testSheet: drillingSheet(), "Resumen": {{"x"}}}, testSheet, "Resumen")
	src = styleDates(t, src, testSheet, "B14", "B18")
	return styleDates(t, src, testSheet, "E14", "E18")
}

func TestLoadHeaderSkip(t *testing.T) {
	loader := NewLoader(DefaultExcelConfig())

	tbl, err := loader.Load(drillingWorkbook(t), LoadOptions{SheetName: testSheet, HeaderSkipRows: 12})
	require.NoError(t, err)

	assert.Equal(t, []string{"SONDAJE", "FECHA", "UBICACION", "RECUPERACION", "MES"}, tbl.ColumnNames())
	assert.Equal(t, 4, tbl.RowCount(), "blank row dropped, title block excluded")

	ids, ok := tbl.Column("SONDAJE")
	require.True(t, ok)
	for _, v := range ids.Values {
		assert.Contains(t, v.String(), "SDJ-")
	}
}

func TestLoadInfersTypes(t *testing.T) {
	loader := NewLoader(DefaultExcelConfig())
	tbl, err := loader.Load(drillingWorkbook(t), LoadOptions{SheetName: testSheet, HeaderSkipRows: 12})
	require.NoError(t, err)

	rec, _ := tbl.Column("RECUPERACION")
	assert.Equal(t, table.ValueTypeNumeric, rec.Type)
	assert.Equal(t, []float64{90, 80, 85.5, 70}, rec.Floats())

	fecha, _ := tbl.Column("FECHA")
	assert.Equal(t, table.ValueTypeTimestamp, fecha.Type)
	assert.Equal(t, "2025-03-15", fecha.Values[0].String())
	assert.True(t, fecha.Values[2].IsMissing())

	ub, _ := tbl.Column("UBICACION")
	assert.Equal(t, table.ValueTypeString, ub.Type)
}

func TestLoadPeriodColumnBecomesMonthName(t *testing.T) {
	loader := NewLoader(DefaultExcelConfig())
	tbl, err := loader.Load(drillingWorkbook(t), LoadOptions{SheetName: testSheet, HeaderSkipRows: 12})
	require.NoError(t, err)

	mes, ok := tbl.Column("MES")
	require.True(t, ok)
	assert.Equal(t, table.ValueTypeString, mes.Type)
	assert.Equal(t, "March", mes.Values[0].String())
	assert.Equal(t, "February", mes.Values[1].String())
	assert.True(t, mes.Values[2].IsMissing(), "unparseable period becomes null")
	assert.True(t, mes.Values[3].IsMissing())
}

func TestLoadSheetNotFound(t *testing.T) {
	loader := NewLoader(DefaultExcelConfig())
	_, err := loader.Load(drillingWorkbook(t), LoadOptions{SheetName: "2024 GNRL", HeaderSkipRows: 12})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, apperrors.ErrSheetNotFound))
	assert.Contains(t, err.Error(), "Resumen")
}

func TestLoadMalformedBytes(t *testing.T) {
	loader := NewLoader(DefaultExcelConfig())
	_, err := loader.Load([]byte("not a workbook"), LoadOptions{SheetName: testSheet})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, apperrors.ErrParse))

	_, err = loader.SheetNames([]byte{0x50, 0x4b, 0x03})
	assert.True(t, stderrors.Is(err, apperrors.ErrParse))
}

func TestLoadColumnRange(t *testing.T) {
	loader := NewLoader(DefaultExcelConfig())
	src := drillingWorkbook(t)

	tbl, err := loader.Load(src, LoadOptions{SheetName: testSheet, HeaderSkipRows: 12, ColumnRange: "a:c"})
	require.NoError(t, err)
	assert.Equal(t, []string{"SONDAJE", "FECHA", "UBICACION"}, tbl.ColumnNames())
	assert.Equal(t, 4, tbl.RowCount())

	tbl, err = loader.Load(src, LoadOptions{SheetName: testSheet, HeaderSkipRows: 12, ColumnRange: "A,D"})
	require.NoError(t, err)
	assert.Equal(t, []string{"SONDAJE", "RECUPERACION"}, tbl.ColumnNames())

	_, err = loader.Load(src, LoadOptions{SheetName: testSheet, HeaderSkipRows: 12, ColumnRange: "F:B"})
	assert.True(t, stderrors.Is(err, apperrors.ErrParse))
}

func TestLoadDropsRowsEmptyWithinRange(t *testing.T) {
	loader := NewLoader(DefaultExcelConfig())
	// Only column C is selected; SDJ-003 has no UBICACION and is dropped.
	tbl, err := loader.Load(drillingWorkbook(t), LoadOptions{SheetName: testSheet, HeaderSkipRows: 12, ColumnRange: "C"})
	require.NoError(t, err)
	assert.Equal(t, 3, tbl.RowCount())
}

func TestLoadNormalizesHeaders(t *testing.T) {
	src := workbook(t, map[string][][]interface{}{
		"Hoja1": {
			{"ID", "", "ID", 2025, "ID"},
			{"a", 1, "b", 3, "c"},
		},
	}, "Hoja1")

	tbl, err := NewLoader(DefaultExcelConfig()).Load(src, LoadOptions{SheetName: "Hoja1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ID", "Unnamed: 1", "ID.1", "2025", "ID.2"}, tbl.ColumnNames())
}

func TestLoadErrorCellsAreNull(t *testing.T) {
	src := workbook(t, map[string][][]interface{}{
		"Hoja1": {
			{"LEY", "NOTA"},
			{"#N/A", "ok"},
			{1.5, "#DIV/0!"},
		},
	}, "Hoja1")

	tbl, err := NewLoader(DefaultExcelConfig()).Load(src, LoadOptions{SheetName: "Hoja1"})
	require.NoError(t, err)
	ley, _ := tbl.Column("LEY")
	assert.True(t, ley.Values[0].IsMissing())
	assert.Equal(t, table.ValueTypeNumeric, ley.Type)
	nota, _ := tbl.Column("NOTA")
	assert.True(t, nota.Values[1].IsMissing())
}

func TestLoadShortSheetIsEmpty(t *testing.T) {
	src := workbook(t, map[string][][]interface{}{"Hoja1": titleBlock(3)}, "Hoja1")
	tbl, err := NewLoader(DefaultExcelConfig()).Load(src, LoadOptions{SheetName: "Hoja1", HeaderSkipRows: 12})
	require.NoError(t, err)
	assert.Equal(t, 0, tbl.RowCount())
	assert.Equal(t, 0, tbl.ColumnCount())
}

func TestLoadNegativeSkip(t *testing.T) {
	_, err := NewLoader(DefaultExcelConfig()).Load(drillingWorkbook(t), LoadOptions{SheetName: testSheet, HeaderSkipRows: -1})
	assert.True(t, stderrors.Is(err, apperrors.ErrParse))
}

func TestSheetNames(t *testing.T) {
	names, err := NewLoader(DefaultExcelConfig()).SheetNames(drillingWorkbook(t))
	require.NoError(t, err)
	assert.Equal(t, []string{testSheet, "Resumen"}, names)
}

func TestParseColumnRange(t *testing.T) {
	sel, err := ParseColumnRange("")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, sel.Indexes(3))

	sel, err = ParseColumnRange(" B:D , A ")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, sel.Indexes(10))
	assert.Equal(t, []int{0, 1}, sel.Indexes(2))

	sel, err = ParseColumnRange("Z:AB")
	require.NoError(t, err)
	assert.Equal(t, []int{25, 26, 27}, sel.Indexes(30))

	for _, bad := range []string{"A:B:C", "1:3", "A:", "D:A", "A,,B"} {
		_, err := ParseColumnRange(bad)
		assert.True(t, stderrors.Is(err, apperrors.ErrParse), bad)
	}
}

func TestLoadKeepsTextCellsAsText(t *testing.T) {
	src := workbook(t, map[string][][]interface{}{
		"Hoja1": {
			{"SONDAJE", "RECUPERACION", "VALIDO"},
			{"00123", 90, true},
			{"SDJ-9", 80, false},
			{"(123)", 85, true},
			{"1,5", 70, nil},
			{"$10", 60, nil},
		},
	}, "Hoja1")

	cfg := DefaultExcelConfig()
	cfg.CoercionConfig.LenientNumbers = true
	tbl, err := NewLoader(cfg).Load(src, LoadOptions{SheetName: "Hoja1"})
	require.NoError(t, err)

	ids, ok := tbl.Column("SONDAJE")
	require.True(t, ok)
	assert.Equal(t, table.ValueTypeString, ids.Type)
	var got []string
	for _, v := range ids.Values {
		got = append(got, v.String())
	}
	assert.Equal(t, []string{"00123", "SDJ-9", "(123)", "1,5", "$10"}, got)

	rec, _ := tbl.Column("RECUPERACION")
	assert.Equal(t, table.ValueTypeNumeric, rec.Type)

	valid, _ := tbl.Column("VALIDO")
	assert.Equal(t, "TRUE", valid.Values[0].String())
	assert.Equal(t, "FALSE", valid.Values[1].String())

	found, summary := pipeline.Apply(tbl, filter.Filters{"SONDAJE": filter.Exact("00123")}, pipeline.SummaryOptions{})
	assert.Equal(t, 1, summary.RowCount)
	assert.Equal(t, [][]string{{"00123", "90", "TRUE"}}, found.StringRows())
}

func TestLoadCustomDateFormat(t *testing.T) {
	src := workbook(t, map[string][][]interface{}{
		"Hoja1": {
			{"SONDAJE", "FECHA", "METROS", "DURACION"},
			{"SDJ-1", time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), 12.5, 1.5},
			{"SDJ-2", time.Date(2025, 3, 16, 0, 0, 0, 0, time.UTC), 8, 0.25},
		},
	}, "Hoja1")

	f, err := excelize.OpenReader(bytes.NewReader(src))
	require.NoError(t, err)
	for _, c := range []struct{ from, to, code string }{
		{"B2", "B3", "d mmmm yyyy"},
		{"C2", "C3", `0.0 "m"`},
		{"D2", "D3", "[h]:mm:ss"},
	} {
		code := c.code
		style, err := f.NewStyle(&excelize.Style{CustomNumFmt: &code})
		require.NoError(t, err)
		require.NoError(t, f.SetCellStyle("Hoja1", c.from, c.to, style))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	tbl, err := NewLoader(DefaultExcelConfig()).Load(buf.Bytes(), LoadOptions{SheetName: "Hoja1"})
	require.NoError(t, err)

	fecha, _ := tbl.Column("FECHA")
	assert.Equal(t, table.ValueTypeTimestamp, fecha.Type)
	assert.Equal(t, "2025-03-15", fecha.Values[0].String())

	metros, _ := tbl.Column("METROS")
	assert.Equal(t, table.ValueTypeNumeric, metros.Type)
	duracion, _ := tbl.Column("DURACION")
	assert.Equal(t, table.ValueTypeNumeric, duracion.Type)

	var described []string
	for _, cs := range pipeline.Summarize(tbl, pipeline.SummaryOptions{}).Statistics {
		described = append(described, cs.Column)
	}
	assert.Equal(t, []string{"METROS", "DURACION"}, described)
}

func TestIsDateFormatCode(t *testing.T) {
	for code, want := range map[string]bool{
		"d mmmm yyyy":      true,
		"dd/mm/yyyy hh:mm": true,
		"yyyy-mm-dd":       true,
		"h:mm AM/PM":       true,
		"0.00":             false,
		"#,##0":            false,
		`0.0 "m"`:          false,
		"[h]:mm:ss":        false,
		"General":          false,
	} {
		assert.Equal(t, want, isDateFormatCode(code), code)
	}
}
