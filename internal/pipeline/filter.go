// Package pipeline is the filter-and-summary pipeline over a loaded table.
// Every function here is pure: inputs are never mutated and nothing is kept
// between calls.
package pipeline

import (
	"sort"
	"strconv"

	"sondajes/domain/filter"
	"sondajes/domain/table"
	"sondajes/internal"
)

var logger = internal.DefaultLogger.With("Pipeline")

// Filter keeps the rows of t that satisfy every spec in filters. Specs naming
// a column that t does not have are ignored, so filters survive template
// changes between spreadsheet versions. Row order is preserved. When no spec
// narrows anything, t itself is returned.
func Filter(t *table.Table, filters filter.Filters) *table.Table {
	keep := make([]int, t.RowCount())
	for i := range keep {
		keep[i] = i
	}
	narrowed := false

	for _, name := range filters.Columns() {
		spec := filters[name]
		col, ok := t.Column(name)
		if !ok {
			logger.Debug("filter on absent column %q ignored", name)
			continue
		}
		if spec.IsPassThrough() {
			continue
		}
		match := spec.Predicate()
		next := keep[:0:0]
		for _, r := range keep {
			if match(col.Values[r]) {
				next = append(next, r)
			}
		}
		logger.Debug("filter %q (%s): %d -> %d rows", name, spec.Kind, len(keep), len(next))
		keep = next
		narrowed = true
	}

	if !narrowed {
		return t
	}
	return t.Select(keep)
}

// FilterOptions lists the choices for a filter widget on column: the
// distinct non-null stringified values, sorted (numerically for numeric
// columns), followed by filter.NullOption when withNull is set. The boolean
// is false when the column is absent.
func FilterOptions(t *table.Table, column string, withNull bool) ([]string, bool) {
	col, ok := t.Column(column)
	if !ok {
		return nil, false
	}

	seen := make(map[string]bool)
	var options []string
	for _, v := range col.Values {
		if v.IsMissing() {
			continue
		}
		s := v.String()
		if !seen[s] {
			seen[s] = true
			options = append(options, s)
		}
	}

	if col.IsNumeric() {
		sort.Slice(options, func(i, j int) bool {
			a, _ := strconv.ParseFloat(options[i], 64)
			b, _ := strconv.ParseFloat(options[j], 64)
			return a < b
		})
	} else {
		sort.Strings(options)
	}

	if withNull {
		options = append(options, filter.NullOption)
	}
	return options, true
}
