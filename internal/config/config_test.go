package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sondajes/domain/table"
	apperrors "sondajes/internal/errors"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(FileEnv, "")
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Minute, cfg.Server.SessionTTL)
	assert.Equal(t, 2.0, cfg.Server.UploadRPS)
	assert.Equal(t, "2025 GNRL", cfg.Workbook.Sheet)
	assert.Equal(t, 12, cfg.Workbook.HeaderSkipRows)
	assert.Equal(t, []string{"MES"}, cfg.Workbook.PeriodColumns)
	assert.False(t, cfg.Workbook.LenientNumbers)
	assert.Equal(t, "SONDAJE", cfg.Dashboard.IdentifierColumn)
	assert.Equal(t, []string{"SONDAJE", "FECHA", "UBICACION", "RECUPERACION"}, cfg.Dashboard.DisplayColumns)
	assert.Equal(t, 85.0, cfg.Dashboard.Threshold)
	assert.Equal(t, int64(50<<20), cfg.MaxUploadBytes())

	opts := cfg.LoadOptions()
	assert.Equal(t, "2025 GNRL", opts.SheetName)
	assert.Equal(t, 12, opts.HeaderSkipRows)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv(FileEnv, "")
	t.Setenv("SONDAJES_WORKBOOK_SHEET", "2024 GNRL")
	t.Setenv("SONDAJES_WORKBOOK_COLUMN_RANGE", "A:F")
	t.Setenv("SONDAJES_DASHBOARD_FILTER_COLUMNS", "UBICACION,TURNO")
	t.Setenv("SONDAJES_DASHBOARD_THRESHOLD", "90.5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "2024 GNRL", cfg.Workbook.Sheet)
	assert.Equal(t, "A:F", cfg.LoadOptions().ColumnRange)
	assert.Equal(t, []string{"UBICACION", "TURNO"}, cfg.Dashboard.FilterColumns)
	assert.Equal(t, 90.5, cfg.SummaryOptions().Threshold)
}

func TestLoadOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sondajes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
workbook:
  sheet: "2023 GNRL"
  period_columns: [MES, PERIODO]
dashboard:
  threshold: 70
`), 0o600))
	t.Setenv(FileEnv, path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "2023 GNRL", cfg.Workbook.Sheet)
	assert.Equal(t, 12, cfg.Workbook.HeaderSkipRows, "keys absent from the file keep their defaults")
	assert.Equal(t, []string{"MES", "PERIODO"}, cfg.ExcelConfig().PeriodColumns)
	assert.Equal(t, 70.0, cfg.Dashboard.Threshold)
}

func TestLoadRejectsUnknownFileKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workbok:\n  sheet: x\n"), 0o600))
	t.Setenv(FileEnv, path)

	_, err := Load()
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeConfigInvalid, apperrors.GetCode(err))
}

func TestValidate(t *testing.T) {
	t.Setenv(FileEnv, "")
	t.Setenv("SONDAJES_WORKBOOK_HEADER_SKIP_ROWS", "-1")
	_, err := Load()
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, apperrors.New(apperrors.CodeConfigInvalid, "")))

	t.Setenv("SONDAJES_WORKBOOK_HEADER_SKIP_ROWS", "12")
	t.Setenv("SONDAJES_WORKBOOK_COLUMN_RANGE", "F:A")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid column range")

	t.Setenv("SONDAJES_WORKBOOK_COLUMN_RANGE", "")
	t.Setenv("SONDAJES_LOG_LEVEL", "verbose")
	_, err = Load()
	assert.Error(t, err)
}

func displayTable(t *testing.T, names ...string) *table.Table {
	t.Helper()
	cols := make([]*table.Column, len(names))
	for i, name := range names {
		cols[i] = &table.Column{Name: name, Type: table.ValueTypeString, Values: []table.Value{}}
	}
	tbl, err := table.New(cols)
	require.NoError(t, err)
	return tbl
}

func TestDefaultDisplay(t *testing.T) {
	dc := DashboardConfig{
		DisplayColumns:     []string{"SONDAJE", " FECHA", "UBICACION", "RECUPERACION"},
		DisplayColumnsWhen: "RECUPERACION",
		DisplayFallback:    2,
	}

	assert.Equal(t, []string{"SONDAJE", "RECUPERACION"},
		dc.DefaultDisplay(displayTable(t, "TURNO", "SONDAJE", "RECUPERACION")),
		"configured columns that were loaded, in configured order")
	assert.Equal(t, []string{"TURNO", "SONDAJE"},
		dc.DefaultDisplay(displayTable(t, "TURNO", "SONDAJE", "LEY")),
		"marker column missing")
	assert.Equal(t, []string{"A", "B"},
		dc.DefaultDisplay(displayTable(t, "A", "B", "RECUPERACION.1")))

	dc.DisplayColumnsWhen = ""
	assert.Equal(t, []string{"UBICACION"}, dc.DefaultDisplay(displayTable(t, "X", "UBICACION")))
	assert.Equal(t, []string{"X"}, dc.DefaultDisplay(displayTable(t, "X")))
}
