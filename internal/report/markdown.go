// Package report renders filtered tables and their summaries as Markdown,
// and Markdown as HTML for the dashboards.
package report

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"sondajes/domain/table"
	"sondajes/internal/pipeline"
)

// Report is everything one dashboard render shows.
type Report struct {
	Title    string
	Table    *table.Table
	Summary  pipeline.Summary
	Warnings []string
	// MaxRows caps the rendered rows; zero renders all of them.
	MaxRows int
}

// Markdown renders the whole report.
func (r Report) Markdown() string {
	var b strings.Builder
	if r.Title != "" {
		fmt.Fprintf(&b, "# %s\n\n", escape(r.Title))
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(&b, "> **Aviso:** %s\n\n", escape(w))
	}
	fmt.Fprintf(&b, "**Filas:** %d\n\n", r.Summary.RowCount)
	if m := r.Summary.BelowThreshold; m != nil {
		fmt.Fprintf(&b, "**Bajo umbral (%s):** %s\n\n", escape(m.Column), m)
	}
	if m := r.Summary.Distinct; m != nil {
		fmt.Fprintf(&b, "**Distintos (%s):** %s\n\n", escape(m.Column), m)
	}
	if r.Table != nil && r.Table.ColumnCount() > 0 {
		b.WriteString("## Datos\n\n")
		b.WriteString(TableMarkdown(r.Table, r.MaxRows))
		b.WriteString("\n")
	}
	b.WriteString("## Resumen estadístico\n\n")
	b.WriteString(StatisticsMarkdown(r.Summary.Statistics))
	return b.String()
}

// HTML renders the report through Markdown.
func (r Report) HTML() template.HTML {
	return HTML(r.Markdown())
}

// TableMarkdown renders t as a pipe table, truncated to maxRows when positive.
func TableMarkdown(t *table.Table, maxRows int) string {
	var b strings.Builder
	names := t.ColumnNames()
	writeRow(&b, names)
	seps := make([]string, len(names))
	for i := range seps {
		seps[i] = "---"
	}
	writeRow(&b, seps)

	rows := t.StringRows()
	shown := rows
	if maxRows > 0 && len(rows) > maxRows {
		shown = rows[:maxRows]
	}
	for _, row := range shown {
		writeRow(&b, row)
	}
	if len(shown) < len(rows) {
		fmt.Fprintf(&b, "\n_%d de %d filas_\n", len(shown), len(rows))
	}
	return b.String()
}

// StatisticsMarkdown renders one row per numeric column.
func StatisticsMarkdown(rows []pipeline.ColumnStats) string {
	if len(rows) == 0 {
		return "_Sin columnas numéricas para resumir._\n"
	}
	var b strings.Builder
	writeRow(&b, []string{"columna", "count", "mean", "std", "min", "25%", "50%", "75%", "max", "mediana"})
	writeRow(&b, []string{"---", "---:", "---:", "---:", "---:", "---:", "---:", "---:", "---:", "---:"})
	for _, cs := range rows {
		writeRow(&b, []string{
			cs.Column,
			fmt.Sprintf("%d", cs.Count),
			number(cs.Mean), number(cs.Std), number(cs.Min),
			number(cs.P25), number(cs.P50), number(cs.P75),
			number(cs.Max), number(cs.Median),
		})
	}
	return b.String()
}

// HTML converts Markdown with tables enabled. Text is rendered as written:
// no typographic substitutions, no autolinks, no raw HTML and only safe
// link targets.
func HTML(md string) template.HTML {
	p := parser.NewWithExtensions(parser.CommonExtensions &^ parser.Autolink)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.SkipHTML | html.Safelink})
	return template.HTML(markdown.ToHTML([]byte(md), p, renderer))
}

func writeRow(b *strings.Builder, cells []string) {
	b.WriteString("|")
	for _, c := range cells {
		b.WriteString(" ")
		b.WriteString(escape(c))
		b.WriteString(" |")
	}
	b.WriteString("\n")
}

// inlineEscaper backslash-escapes every character that starts inline
// Markdown syntax, so cell text renders literally.
var inlineEscaper = strings.NewReplacer(
	"\r\n", " ", "\n", " ", "\r", " ",
	`\`, `\\`, "`", "\\`", "*", `\*`, "_", `\_`, "~", `\~`,
	"[", `\[`, "]", `\]`, "<", `\<`, ">", `\>`, "&", `\&`,
	"!", `\!`, "^", `\^`, "$", `\$`, "|", `\|`,
)

func escape(s string) string {
	return inlineEscaper.Replace(s)
}

func number(f *float64) string {
	if f == nil {
		return pipeline.NotFound
	}
	return fmt.Sprintf("%.2f", *f)
}
