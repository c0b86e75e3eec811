package config

import (
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"sondajes/adapters/excel"
	"sondajes/domain/table"
	"sondajes/internal/errors"
	"sondajes/internal/pipeline"
)

// EnvPrefix prefixes every environment variable, e.g. SONDAJES_SERVER_PORT.
const EnvPrefix = "SONDAJES"

// FileEnv names the optional YAML file read after the environment.
const FileEnv = "SONDAJES_CONFIG_FILE"

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Workbook  WorkbookConfig  `yaml:"workbook" envconfig:"WORKBOOK"`
	Dashboard DashboardConfig `yaml:"dashboard" envconfig:"DASHBOARD"`
	LogLevel  string          `yaml:"log_level" envconfig:"LOG_LEVEL" default:"info" validate:"oneof=error warn info debug trace"`
}

// ServerConfig holds web server settings for both dashboards
type ServerConfig struct {
	Port         int           `yaml:"port" envconfig:"PORT" default:"8080" validate:"min=1,max=65535"`
	LookupPort   int           `yaml:"lookup_port" envconfig:"LOOKUP_PORT" default:"8081" validate:"min=1,max=65535"`
	GinMode      string        `yaml:"gin_mode" envconfig:"GIN_MODE" default:"release" validate:"oneof=debug release test"`
	MaxUploadMB  int64         `yaml:"max_upload_mb" envconfig:"MAX_UPLOAD_MB" default:"50" validate:"gt=0"`
	SessionTTL   time.Duration `yaml:"session_ttl" envconfig:"SESSION_TTL" default:"30m" validate:"gte=0"`
	UploadRPS    float64       `yaml:"upload_rps" envconfig:"UPLOAD_RPS" default:"2" validate:"gte=0"`
	UploadBurst  int           `yaml:"upload_burst" envconfig:"UPLOAD_BURST" default:"5" validate:"gte=1"`
	ReadTimeout  time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"60s"`
}

// WorkbookConfig holds the load parameters used when the user gives none
type WorkbookConfig struct {
	Sheet          string   `yaml:"sheet" envconfig:"SHEET" default:"2025 GNRL" validate:"required"`
	HeaderSkipRows int      `yaml:"header_skip_rows" envconfig:"HEADER_SKIP_ROWS" default:"12" validate:"gte=0"`
	ColumnRange    string   `yaml:"column_range" envconfig:"COLUMN_RANGE"`
	PeriodColumns  []string `yaml:"period_columns" envconfig:"PERIOD_COLUMNS" default:"MES"`
	// LenientNumbers only applies to cells stored as numbers whose value is
	// not plain decimal; text cells always stay text.
	LenientNumbers bool     `yaml:"lenient_numbers" envconfig:"LENIENT_NUMBERS" default:"false"`
}

// DashboardConfig names the columns the dashboards filter and summarize
type DashboardConfig struct {
	IdentifierColumn  string   `yaml:"identifier_column" envconfig:"IDENTIFIER_COLUMN" default:"SONDAJE" validate:"required"`
	FilterColumns     []string `yaml:"filter_columns" envconfig:"FILTER_COLUMNS" default:"SONDAJE,MES"`
	NullFilterColumns []string `yaml:"null_filter_columns" envconfig:"NULL_FILTER_COLUMNS" default:"UBICACION"`
	DisplayColumns    []string `yaml:"display_columns" envconfig:"DISPLAY_COLUMNS" default:"SONDAJE,FECHA,UBICACION,RECUPERACION"`
	// DisplayColumnsWhen enables DisplayColumns only when this column was
	// loaded; otherwise the first DisplayFallback columns are shown.
	DisplayColumnsWhen string  `yaml:"display_columns_when" envconfig:"DISPLAY_COLUMNS_WHEN" default:"RECUPERACION"`
	DisplayFallback    int     `yaml:"display_fallback" envconfig:"DISPLAY_FALLBACK" default:"5" validate:"gt=0"`
	ThresholdColumn    string  `yaml:"threshold_column" envconfig:"THRESHOLD_COLUMN" default:"RECUPERACION"`
	Threshold          float64 `yaml:"threshold" envconfig:"THRESHOLD" default:"85"`
	DistinctColumn     string  `yaml:"distinct_column" envconfig:"DISTINCT_COLUMN" default:"SONDAJE"`
	MaxRows            int     `yaml:"max_rows" envconfig:"MAX_ROWS" default:"500" validate:"gte=0"`
}

// Load reads configuration from environment variables, overlays the YAML
// file named by SONDAJES_CONFIG_FILE when set, and validates the result.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, errors.WithCode(errors.CodeConfigInvalid, err)
	}

	if path := strings.TrimSpace(os.Getenv(FileEnv)); path != "" {
		if err := cfg.overlay(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return &cfg, nil
}

// overlay applies the keys present in a YAML file on top of cfg. Keys absent
// from the file keep their environment or default value.
func (c *Config) overlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, errors.Wrapf(err, "read config file %s", path))
	}
	if err := yaml.UnmarshalStrict(data, c); err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, errors.Wrapf(err, "parse config file %s", path))
	}
	return nil
}

// Validate checks struct-tag constraints and the column range syntax.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.ConfigInvalid(err.Error())
	}
	if _, err := excel.ParseColumnRange(c.Workbook.ColumnRange); err != nil {
		return errors.ConfigInvalid("invalid column range: " + err.Error())
	}
	return nil
}

// LoadOptions returns the default per-upload load parameters.
func (c *Config) LoadOptions() excel.LoadOptions {
	return excel.LoadOptions{
		SheetName:      c.Workbook.Sheet,
		HeaderSkipRows: c.Workbook.HeaderSkipRows,
		ColumnRange:    c.Workbook.ColumnRange,
	}
}

// ExcelConfig returns the loader settings.
func (c *Config) ExcelConfig() excel.ExcelConfig {
	ec := excel.DefaultExcelConfig()
	ec.PeriodColumns = trimAll(c.Workbook.PeriodColumns)
	ec.CoercionConfig.LenientNumbers = c.Workbook.LenientNumbers
	return ec
}

// SummaryOptions returns the threshold and distinct-count settings.
func (c *Config) SummaryOptions() pipeline.SummaryOptions {
	return pipeline.SummaryOptions{
		ThresholdColumn: strings.TrimSpace(c.Dashboard.ThresholdColumn),
		Threshold:       c.Dashboard.Threshold,
		DistinctColumn:  strings.TrimSpace(c.Dashboard.DistinctColumn),
	}
}

// DefaultDisplay picks the columns shown when the user chose none: the
// DisplayColumns present in t when DisplayColumnsWhen was loaded, otherwise
// the first DisplayFallback columns.
func (d DashboardConfig) DefaultDisplay(t *table.Table) []string {
	when := strings.TrimSpace(d.DisplayColumnsWhen)
	if when == "" || t.HasColumn(when) {
		var chosen []string
		for _, name := range d.DisplayColumns {
			if name = strings.TrimSpace(name); t.HasColumn(name) {
				chosen = append(chosen, name)
			}
		}
		if len(chosen) > 0 {
			return chosen
		}
	}

	names := t.ColumnNames()
	if len(names) > d.DisplayFallback {
		names = names[:d.DisplayFallback]
	}
	return names
}

// MaxUploadBytes converts the upload limit to bytes.
func (c *Config) MaxUploadBytes() int64 {
	return c.Server.MaxUploadMB << 20
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
