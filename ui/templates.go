package ui

import (
	"embed"
	"fmt"
	"html/template"
	"net/url"

	"sondajes/adapters/excel"
	"sondajes/domain/core"
	"sondajes/internal/session"
)

//go:embed templates/*.html
var embeddedFiles embed.FS

// parseTemplates loads every page and shared block from the embedded files.
func parseTemplates() (*template.Template, error) {
	funcMap := template.FuncMap{
		"contains": func(list []string, s string) bool {
			for _, v := range list {
				if v == s {
					return true
				}
			}
			return false
		},
	}
	templates, err := template.New("").Funcs(funcMap).ParseFS(embeddedFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return templates, nil
}

// indexPage is the upload form.
type indexPage struct {
	Title    string
	Action   string
	Defaults excel.LoadOptions
	Error    string
	Warnings []string
}

// sheetForm is the sheet selector shown once a workbook is uploaded.
type sheetForm struct {
	Action         string
	Sheets         []string
	Current        string
	HeaderSkipRows int
	ColumnRange    string
}

func newSheetForm(action string, sess session.Session, defaults excel.LoadOptions) sheetForm {
	opts := sess.Options
	if !sess.Loaded() {
		opts = defaults
	}
	return sheetForm{
		Action:         action,
		Sheets:         sess.Sheets,
		Current:        opts.SheetName,
		HeaderSkipRows: opts.HeaderSkipRows,
		ColumnRange:    opts.ColumnRange,
	}
}

// filterPage is the filter dashboard.
type filterPage struct {
	Title     string
	View      View
	Sheet     sheetForm
	Error     string
	Warnings  []string
	ReportURL string
	JSONURL   string
}

// lookupPage is the SONDAJE lookup dashboard.
type lookupPage struct {
	Title    string
	Lookup   Lookup
	Sheet    sheetForm
	Error    string
	Warnings []string
}

// withQuery appends the current query string to path, keeping the filter
// state in links.
func withQuery(path string, q url.Values) string {
	if enc := q.Encode(); enc != "" {
		return path + "?" + enc
	}
	return path
}

func parseSessionID(raw string) (core.ID, error) {
	id, err := core.ParseID(raw)
	if err != nil {
		return "", errNoSession
	}
	return id, nil
}
