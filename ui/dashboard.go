package ui

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"sondajes/adapters/excel"
	"sondajes/domain/core"
	"sondajes/domain/filter"
	"sondajes/domain/table"
	"sondajes/internal"
	"sondajes/internal/config"
	apperrors "sondajes/internal/errors"
	"sondajes/internal/metrics"
	"sondajes/internal/pipeline"
	"sondajes/internal/report"
	"sondajes/internal/session"
)

const (
	// filterParamPrefix prefixes the query key of each filter widget, e.g.
	// f.UBICACION=Norte&f.UBICACION=Sur.
	filterParamPrefix = "f."
	columnParam       = "col"
)

var errNoSession = apperrors.NotFound("session")

// Dashboard is the part shared by both shells: sessions, loading and
// running the pipeline. Shells only translate HTTP to these calls.
type Dashboard struct {
	cfg     *config.Config
	loader  *excel.Loader
	store   *session.Store
	metrics *metrics.Metrics
	logger  *internal.Logger
}

// NewDashboard wires the loader and an empty session store.
func NewDashboard(cfg *config.Config, m *metrics.Metrics) *Dashboard {
	return &Dashboard{
		cfg:     cfg,
		loader:  excel.NewLoader(cfg.ExcelConfig()),
		store:   session.NewStore(cfg.Server.SessionTTL),
		metrics: m,
		logger:  internal.DefaultLogger.With("Dashboard"),
	}
}

// Upload registers a workbook and loads opts.SheetName from it. A malformed
// workbook creates no session. When the workbook is fine but the sheet cannot
// be loaded, the session is returned together with the error so the user can
// pick another sheet.
func (d *Dashboard) Upload(fileName string, source []byte, opts excel.LoadOptions) (session.Session, error) {
	start := time.Now()
	sheets, err := d.loader.SheetNames(source)
	if err != nil {
		d.metrics.ObserveLoad(time.Since(start), err)
		return session.Session{}, err
	}
	sess := d.store.Create(fileName, source, sheets)
	d.metrics.SetSessions(len(d.store.IDs()))
	d.logger.Info("session %s created for %q (sha256 %s, %d sheets)", sess.ID, fileName, sess.Digest.Short(), len(sheets))

	loaded, err := d.Load(sess.ID, opts)
	if err != nil {
		return sess, err
	}
	return loaded, nil
}

// Load (re)loads a sheet of the session's workbook, replacing its table.
func (d *Dashboard) Load(id core.ID, opts excel.LoadOptions) (session.Session, error) {
	sess, err := d.store.Get(id)
	if err != nil {
		return session.Session{}, err
	}

	start := time.Now()
	t, err := d.loader.Load(sess.Source(), opts)
	d.metrics.ObserveLoad(time.Since(start), err)
	if err != nil {
		d.logger.Warn("session %s: load of sheet %q failed: %v", id, opts.SheetName, err)
		return sess, err
	}

	var warnings []string
	for _, w := range t.RequireColumns(d.cfg.Dashboard.IdentifierColumn) {
		warnings = append(warnings, w.Error())
	}
	if err := d.store.SetTable(id, opts, t, warnings); err != nil {
		return sess, err
	}
	return d.store.Get(id)
}

// Session fetches a live session.
func (d *Dashboard) Session(id core.ID) (session.Session, error) {
	return d.store.Get(id)
}

// Close drops a session.
func (d *Dashboard) Close(id core.ID) {
	d.store.Delete(id)
	d.metrics.SetSessions(len(d.store.IDs()))
}

// FilterField is the state of one filter widget.
type FilterField struct {
	Column   string
	Choices  []string
	Selected map[string]bool
	WithNull bool
}

// View is one render of the filter dashboard.
type View struct {
	Session  session.Session
	Fields   []FilterField
	Columns  []string
	Display  []string
	Filters  filter.Filters
	Table    *table.Table
	Summary  pipeline.Summary
	Report   report.Report
	Warnings []string
}

// Filter runs the pipeline for the widget selections in query.
func (d *Dashboard) Filter(sess session.Session, query url.Values) View {
	v := View{Session: sess, Warnings: append([]string(nil), sess.Warnings...)}
	if !sess.Loaded() {
		return v
	}
	t := sess.Table
	v.Columns = t.ColumnNames()
	v.Filters = filter.Filters{}

	nullAware := make(map[string]bool)
	for _, col := range d.cfg.Dashboard.NullFilterColumns {
		nullAware[strings.TrimSpace(col)] = true
	}
	for _, col := range d.filterColumns() {
		withNull := nullAware[col]
		choices, ok := pipeline.FilterOptions(t, col, withNull)
		if !ok {
			continue
		}
		selected := query[filterParamPrefix+col]
		field := FilterField{Column: col, Choices: choices, Selected: make(map[string]bool), WithNull: withNull}
		for _, s := range selected {
			field.Selected[s] = true
		}
		v.Fields = append(v.Fields, field)

		if withNull {
			v.Filters[col] = filter.FromSelection(selected)
		} else {
			v.Filters[col] = filter.Membership(selected...)
		}
	}

	filtered, summary := pipeline.Apply(t, v.Filters, d.cfg.SummaryOptions())
	d.metrics.ObserveRun("filter", summary.RowCount)
	v.Display = d.display(t, query[columnParam])
	v.Table = filtered.Project(v.Display)
	v.Summary = summary
	v.Report = report.Report{
		Title:   fmt.Sprintf("%s · %s", sess.FileName, sess.Options.SheetName),
		Table:   v.Table,
		Summary: summary,
		MaxRows: d.cfg.Dashboard.MaxRows,
	}
	return v
}

// Lookup is one render of the SONDAJE lookup dashboard.
type Lookup struct {
	View
	Identifier string
	Query      string
	Searchable bool
	Searched   bool
	Found      bool
}

// Lookup finds the rows whose identifier equals the trimmed query.
func (d *Dashboard) Lookup(sess session.Session, query url.Values) Lookup {
	l := Lookup{
		View:       View{Session: sess, Warnings: append([]string(nil), sess.Warnings...)},
		Identifier: d.cfg.Dashboard.IdentifierColumn,
		Query:      strings.TrimSpace(query.Get("q")),
	}
	if !sess.Loaded() {
		return l
	}
	t := sess.Table
	l.Columns = t.ColumnNames()
	l.Searchable = t.HasColumn(l.Identifier)
	if !l.Searchable || l.Query == "" {
		return l
	}

	l.Searched = true
	l.Filters = filter.Filters{l.Identifier: filter.Exact(l.Query)}
	filtered, summary := pipeline.Apply(t, l.Filters, pipeline.SummaryOptions{})
	d.metrics.ObserveRun("lookup", summary.RowCount)
	if summary.RowCount == 0 {
		l.Warnings = append(l.Warnings, "No se encontró información para ese "+l.Identifier+".")
		return l
	}

	l.Found = true
	l.Display = d.display(filtered, query[columnParam])
	l.Table = filtered.Project(l.Display)
	l.Summary = summary
	l.Report = report.Report{
		Title:   fmt.Sprintf("Resultados para %s: %s", l.Identifier, l.Query),
		Table:   l.Table,
		Summary: summary,
		MaxRows: d.cfg.Dashboard.MaxRows,
	}
	return l
}

// display resolves the columns to show: the caller's choice when given,
// otherwise the configured defaults.
func (d *Dashboard) display(t *table.Table, requested []string) []string {
	var chosen []string
	for _, name := range requested {
		if t.HasColumn(name) {
			chosen = append(chosen, name)
		}
	}
	if len(chosen) > 0 {
		return chosen
	}
	return d.cfg.Dashboard.DefaultDisplay(t)
}

func (d *Dashboard) filterColumns() []string {
	seen := make(map[string]bool)
	var cols []string
	for _, list := range [][]string{d.cfg.Dashboard.FilterColumns, d.cfg.Dashboard.NullFilterColumns} {
		for _, col := range list {
			if col = strings.TrimSpace(col); col != "" && !seen[col] {
				seen[col] = true
				cols = append(cols, col)
			}
		}
	}
	return cols
}

// loadOptions reads sheet, header_skip_rows and column_range from a form,
// falling back to the configured defaults.
func (d *Dashboard) loadOptions(form url.Values) (excel.LoadOptions, error) {
	opts := d.cfg.LoadOptions()
	if sheet := strings.TrimSpace(form.Get("sheet")); sheet != "" {
		opts.SheetName = sheet
	}
	if raw := strings.TrimSpace(form.Get("header_skip_rows")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return opts, apperrors.InvalidInput("header_skip_rows must be a non-negative integer")
		}
		opts.HeaderSkipRows = n
	}
	if _, ok := form["column_range"]; ok {
		opts.ColumnRange = strings.TrimSpace(form.Get("column_range"))
	}
	return opts, nil
}

// readUpload pulls the "file" part out of a multipart request, capped at
// the configured size.
func (d *Dashboard) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	limit := d.cfg.MaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", nil, apperrors.InvalidInput(fmt.Sprintf("file exceeds %d MB", d.cfg.Server.MaxUploadMB))
		}
		return "", nil, apperrors.InvalidInput("expected a multipart form with a file field")
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, apperrors.InvalidInput("no file uploaded")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return "", nil, apperrors.ParseError("failed to read upload", err)
	}
	if len(data) == 0 {
		return "", nil, apperrors.InvalidInput("uploaded file is empty")
	}
	return header.Filename, data, nil
}

// statusFor maps an error to the HTTP status the shells answer with.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrSheetNotFound), errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrParse), errors.Is(err, apperrors.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// userMessage is the text shown for err; internal failures stay generic.
func userMessage(err error) string {
	if statusFor(err) == http.StatusInternalServerError {
		return "Error interno. Intente nuevamente."
	}
	return err.Error()
}
