package excel

// LoadOptions are the per-upload parameters of a load.
type LoadOptions struct {
	SheetName string `json:"sheet_name"`
	// HeaderSkipRows is the height of the title block above the header row.
	HeaderSkipRows int `json:"header_skip_rows"`
	// ColumnRange restricts parsing to column letters, e.g. "A:F" or "A,C:E".
	// Empty means every column.
	ColumnRange string `json:"column_range,omitempty"`
}

// excelErrorValues are rendered formula errors; they load as null cells.
var excelErrorValues = map[string]bool{
	"#N/A":    true,
	"#DIV/0!": true,
	"#VALUE!": true,
	"#REF!":   true,
	"#NAME?":  true,
	"#NUM!":   true,
	"#NULL!":  true,
}
