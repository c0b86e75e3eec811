package excel

import (
	"sondajes/adapters/datareadiness/coercer"
)

// ExcelConfig holds the static settings of the dataset loader
type ExcelConfig struct {
	CoercionConfig coercer.CoercionConfig `json:"coercion_config" yaml:"coercion_config"`
	// PeriodColumns are reparsed as dates and replaced by the month name.
	PeriodColumns []string `json:"period_columns" yaml:"period_columns"`
	// UnzipSizeLimit caps the decompressed workbook size, in bytes.
	UnzipSizeLimit int64 `json:"unzip_size_limit" yaml:"unzip_size_limit"`
}

// DefaultExcelConfig returns sensible defaults for workbook loading
func DefaultExcelConfig() ExcelConfig {
	return ExcelConfig{
		CoercionConfig: coercer.DefaultCoercionConfig(),
		PeriodColumns:  []string{"MES"},
		UnzipSizeLimit: 256 << 20,
	}
}
