package table

import (
	"fmt"

	apperrors "sondajes/internal/errors"
)

// Table is an ordered set of uniquely named columns sharing one row count.
// A Table is immutable once built; Select and Project return new tables.
type Table struct {
	columns []*Column
	index   map[string]int
	rows    int
}

// New builds a table, checking that names are unique and that every column
// has the same length.
func New(columns []*Column) (*Table, error) {
	t := &Table{
		columns: make([]*Column, 0, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for i, col := range columns {
		if col == nil {
			return nil, apperrors.InvalidInput(fmt.Sprintf("column %d is nil", i))
		}
		if _, dup := t.index[col.Name]; dup {
			return nil, apperrors.InvalidInput(fmt.Sprintf("duplicate column name %q", col.Name))
		}
		if i == 0 {
			t.rows = col.Len()
		} else if col.Len() != t.rows {
			return nil, apperrors.InvalidInput(fmt.Sprintf("column %q has %d rows, expected %d", col.Name, col.Len(), t.rows))
		}
		t.index[col.Name] = len(t.columns)
		t.columns = append(t.columns, col)
	}
	return t, nil
}

// Empty returns a table with no columns and no rows.
func Empty() *Table {
	return &Table{index: map[string]int{}}
}

// RowCount returns the number of rows.
func (t *Table) RowCount() int {
	return t.rows
}

// ColumnCount returns the number of columns.
func (t *Table) ColumnCount() int {
	return len(t.columns)
}

// ColumnNames returns the column names in table order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// Columns returns the columns in table order.
func (t *Table) Columns() []*Column {
	out := make([]*Column, len(t.columns))
	copy(out, t.columns)
	return out
}

// Column looks a column up by exact name. The boolean is false when the
// table has no such column; callers branch on it instead of probing names.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.columns[i], true
}

// HasColumn reports whether the named column is present.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Row returns the values of row i in column order.
func (t *Table) Row(i int) []Value {
	row := make([]Value, len(t.columns))
	for j, c := range t.columns {
		row[j] = c.Values[i]
	}
	return row
}

// StringRows returns every row stringified, for rendering.
func (t *Table) StringRows() [][]string {
	out := make([][]string, t.rows)
	for i := 0; i < t.rows; i++ {
		row := make([]string, len(t.columns))
		for j, c := range t.columns {
			row[j] = c.Values[i].String()
		}
		out[i] = row
	}
	return out
}

// NumericColumns returns the columns whose inferred type is numeric.
func (t *Table) NumericColumns() []*Column {
	var out []*Column
	for _, c := range t.columns {
		if c.IsNumeric() {
			out = append(out, c)
		}
	}
	return out
}

// Select returns a new table holding the given rows, in the given order.
// Column types are carried over unchanged.
func (t *Table) Select(rows []int) *Table {
	out := &Table{
		columns: make([]*Column, len(t.columns)),
		index:   make(map[string]int, len(t.columns)),
		rows:    len(rows),
	}
	for j, c := range t.columns {
		values := make([]Value, len(rows))
		for k, r := range rows {
			values[k] = c.Values[r]
		}
		out.columns[j] = &Column{Name: c.Name, Type: c.Type, Values: values}
		out.index[c.Name] = j
	}
	return out
}

// Project returns a table restricted to the named columns, in the order
// given. Unknown and repeated names are skipped.
func (t *Table) Project(names []string) *Table {
	out := &Table{index: make(map[string]int, len(names)), rows: t.rows}
	for _, name := range names {
		c, ok := t.Column(name)
		if !ok {
			continue
		}
		if _, dup := out.index[name]; dup {
			continue
		}
		out.index[name] = len(out.columns)
		out.columns = append(out.columns, c)
	}
	return out
}

// RequireColumns returns one soft COLUMN_NOT_FOUND error per missing name.
// The result is meant for user-visible warnings; it never blocks a caller.
func (t *Table) RequireColumns(names ...string) []error {
	var warnings []error
	for _, name := range names {
		if name == "" || t.HasColumn(name) {
			continue
		}
		warnings = append(warnings, apperrors.ColumnNotFound(name))
	}
	return warnings
}
