package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"sondajes/adapters/excel"
	"sondajes/domain/filter"
	"sondajes/domain/table"
	"sondajes/internal"
	"sondajes/internal/config"
	apperrors "sondajes/internal/errors"
	"sondajes/internal/pipeline"
	"sondajes/internal/report"
)

// loadFlags are the per-run load parameters shared by every command.
type loadFlags struct {
	sheet       string
	skip        int
	columnRange string
}

func main() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfg config.Config
	rootCmd := &cobra.Command{
		Use:           "sondajes",
		Short:         "Filter and summarize drilling (sondaje) workbooks",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			cfg = *loaded
			internal.DefaultLogger.SetLevel(internal.ParseLogLevel(cfg.LogLevel))
			return nil
		},
	}

	rootCmd.AddCommand(
		newSheetsCmd(&cfg),
		newFilterCmd(&cfg),
		newLookupCmd(&cfg),
	)
	return rootCmd
}

func newSheetsCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "sheets <workbook.xlsx>",
		Short: "List the sheets of a workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := os.ReadFile(args[0])
			if err != nil {
				return apperrors.InvalidInput(fmt.Sprintf("cannot read %s: %v", args[0], err))
			}
			sheets, err := excel.NewLoader(cfg.ExcelConfig()).SheetNames(source)
			if err != nil {
				return err
			}
			for _, name := range sheets {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newFilterCmd(cfg *config.Config) *cobra.Command {
	var lf loadFlags
	var where, whereNull, show []string
	var maxRows int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "filter <workbook.xlsx>",
		Short: "Filter a sheet and print the table and its summary",
		Long: `Filter a sheet with membership filters and print the filtered rows and
their statistics as Markdown.

Example: sondajes filter perforacion.xlsx --where "UBICACION=Norte,Sur" --where-null "TURNO=A,(vacío)"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, opts, err := loadTable(cmd, cfg, lf, args[0])
			if err != nil {
				return err
			}

			filters := filter.Filters{}
			for _, expr := range where {
				col, values, err := parseFilterExpr(expr)
				if err != nil {
					return err
				}
				filters[col] = filter.Membership(values...)
			}
			for _, expr := range whereNull {
				col, values, err := parseFilterExpr(expr)
				if err != nil {
					return err
				}
				filters[col] = filter.FromSelection(values)
			}

			filtered, summary := pipeline.Apply(t, filters, cfg.SummaryOptions())
			display := show
			if len(display) == 0 {
				display = filtered.ColumnNames()
			}
			r := report.Report{
				Title:   fmt.Sprintf("%s · %s", args[0], opts.SheetName),
				Table:   filtered.Project(display),
				Summary: summary,
				MaxRows: maxRows,
			}
			return write(cmd.OutOrStdout(), r, asJSON)
		},
	}

	addLoadFlags(cmd, &lf)
	cmd.Flags().StringArrayVar(&where, "where", nil, `membership filter "COLUMN=v1,v2" (repeatable)`)
	cmd.Flags().StringArrayVar(&whereNull, "where-null", nil, `null-aware filter "COLUMN=v1,`+filter.NullOption+`" (repeatable)`)
	cmd.Flags().StringSliceVar(&show, "show", nil, "columns to display (default: all)")
	cmd.Flags().IntVar(&maxRows, "max-rows", 0, "maximum rows to print (0 prints all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the summary as JSON instead of Markdown")
	return cmd
}

func newLookupCmd(cfg *config.Config) *cobra.Command {
	var lf loadFlags
	var show []string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "lookup <workbook.xlsx> <sondaje>",
		Short: "Show the rows and statistics of one SONDAJE",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, _, err := loadTable(cmd, cfg, lf, args[0])
			if err != nil {
				return err
			}
			identifier := cfg.Dashboard.IdentifierColumn
			if errs := t.RequireColumns(identifier); len(errs) > 0 {
				return errs[0]
			}

			filtered, summary := pipeline.Apply(t, filter.Filters{identifier: filter.Exact(args[1])}, pipeline.SummaryOptions{})
			if summary.RowCount == 0 {
				return apperrors.NotFound(fmt.Sprintf("%s %q", identifier, strings.TrimSpace(args[1])))
			}
			display := show
			if len(display) == 0 {
				display = cfg.Dashboard.DefaultDisplay(filtered)
			}
			r := report.Report{
				Title:   fmt.Sprintf("Resultados para %s: %s", identifier, strings.TrimSpace(args[1])),
				Table:   filtered.Project(display),
				Summary: summary,
			}
			return write(cmd.OutOrStdout(), r, asJSON)
		},
	}

	addLoadFlags(cmd, &lf)
	cmd.Flags().StringSliceVar(&show, "show", nil, "columns to display")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the summary as JSON instead of Markdown")
	return cmd
}

func addLoadFlags(cmd *cobra.Command, lf *loadFlags) {
	cmd.Flags().StringVar(&lf.sheet, "sheet", "", "sheet name (default from SONDAJES_WORKBOOK_SHEET)")
	cmd.Flags().IntVar(&lf.skip, "skip", 0, "title rows above the header (default from SONDAJES_WORKBOOK_HEADER_SKIP_ROWS)")
	cmd.Flags().StringVar(&lf.columnRange, "columns", "", `column letters to read, e.g. "A:F"`)
}

// loadTable reads the workbook with the configured load options, overridden
// by any flag the user set.
func loadTable(cmd *cobra.Command, cfg *config.Config, lf loadFlags, path string) (*table.Table, excel.LoadOptions, error) {
	opts := cfg.LoadOptions()
	if cmd.Flags().Changed("sheet") {
		opts.SheetName = lf.sheet
	}
	if cmd.Flags().Changed("skip") {
		opts.HeaderSkipRows = lf.skip
	}
	if cmd.Flags().Changed("columns") {
		opts.ColumnRange = lf.columnRange
	}

	source, err := os.ReadFile(path)
	if err != nil {
		return nil, opts, apperrors.InvalidInput(fmt.Sprintf("cannot read %s: %v", path, err))
	}
	t, err := excel.NewLoader(cfg.ExcelConfig()).Load(source, opts)
	if err != nil {
		return nil, opts, err
	}
	return t, opts, nil
}

// parseFilterExpr splits "COLUMN=v1,v2" into the column and its values.
func parseFilterExpr(expr string) (string, []string, error) {
	col, rest, ok := strings.Cut(expr, "=")
	col = strings.TrimSpace(col)
	if !ok || col == "" {
		return "", nil, apperrors.InvalidInput(fmt.Sprintf("filter %q must look like COLUMN=value[,value]", expr))
	}
	var values []string
	for _, v := range strings.Split(rest, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	return col, values, nil
}

func write(w io.Writer, r report.Report, asJSON bool) error {
	if !asJSON {
		_, err := io.WriteString(w, r.Markdown())
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Title    string           `json:"title"`
		Columns  []string         `json:"columns"`
		Rows     [][]string       `json:"rows"`
		Summary  pipeline.Summary `json:"summary"`
		Warnings []string         `json:"warnings,omitempty"`
	}{r.Title, r.Table.ColumnNames(), r.Table.StringRows(), r.Summary, r.Warnings})
}
