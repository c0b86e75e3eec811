package pipeline

import (
	"math"
	"sort"
	"strconv"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"

	"sondajes/domain/filter"
	"sondajes/domain/table"
)

// NotFound is what an unavailable metric renders as.
const NotFound = "N/A"

// ColumnStats is the descriptive-statistics row of one numeric column.
// Pointers are nil when the statistic is undefined for the sample.
type ColumnStats struct {
	Column string   `json:"column"`
	Count  int      `json:"count"`
	Mean   *float64 `json:"mean"`
	Std    *float64 `json:"std"`
	Min    *float64 `json:"min"`
	P25    *float64 `json:"p25"`
	P50    *float64 `json:"p50"`
	P75    *float64 `json:"p75"`
	Max    *float64 `json:"max"`
	Median *float64 `json:"median"`
}

// Metric is a scalar that depends on a named column and is unavailable when
// that column is missing from the table.
type Metric struct {
	Column string `json:"column"`
	Value  int    `json:"value"`
	Found  bool   `json:"found"`
}

// String renders the value, or NotFound.
func (m Metric) String() string {
	if !m.Found {
		return NotFound
	}
	return strconv.Itoa(m.Value)
}

// SummaryOptions names the columns the optional metrics are computed on.
// An empty column name skips that metric.
type SummaryOptions struct {
	ThresholdColumn string  `json:"threshold_column,omitempty"`
	Threshold       float64 `json:"threshold,omitempty"`
	DistinctColumn  string  `json:"distinct_column,omitempty"`
}

// Summary is derived from a filtered table and never stored.
type Summary struct {
	RowCount       int           `json:"row_count"`
	Statistics     []ColumnStats `json:"statistics"`
	BelowThreshold *Metric       `json:"below_threshold,omitempty"`
	Distinct       *Metric       `json:"distinct,omitempty"`
}

// Apply filters t and summarizes the result.
func Apply(t *table.Table, filters filter.Filters, opts SummaryOptions) (*table.Table, Summary) {
	filtered := Filter(t, filters)
	return filtered, Summarize(filtered, opts)
}

// Summarize computes the summary of t. An empty table has no statistics rows.
func Summarize(t *table.Table, opts SummaryOptions) Summary {
	s := Summary{RowCount: t.RowCount()}
	if s.RowCount > 0 {
		for _, col := range t.NumericColumns() {
			s.Statistics = append(s.Statistics, Describe(col))
		}
	}
	if opts.ThresholdColumn != "" {
		m := BelowThreshold(t, opts.ThresholdColumn, opts.Threshold)
		s.BelowThreshold = &m
	}
	if opts.DistinctColumn != "" {
		m := DistinctCount(t, opts.DistinctColumn)
		s.Distinct = &m
	}
	return s
}

// Describe computes count, mean, sample standard deviation, min, quartiles,
// max and median over the non-null numbers of col. The median is the 50%
// quartile, reported twice.
func Describe(col *table.Column) ColumnStats {
	data := col.Floats()
	cs := ColumnStats{Column: col.Name, Count: len(data)}
	if len(data) == 0 {
		return cs
	}

	mean, _ := stats.Mean(data)
	min, _ := stats.Min(data)
	max, _ := stats.Max(data)
	median, _ := stats.Median(data)

	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	cs.Mean = &mean
	cs.Min = &min
	cs.Max = &max
	cs.P25 = ptr(quantile(sorted, 0.25))
	cs.P50 = &median
	cs.P75 = ptr(quantile(sorted, 0.75))
	cs.Median = cs.P50
	if len(data) > 1 {
		cs.Std = ptr(stat.StdDev(data, nil))
	}
	return cs
}

// BelowThreshold counts rows whose numeric value in column is strictly less
// than threshold. Null and non-numeric cells are not counted.
func BelowThreshold(t *table.Table, column string, threshold float64) Metric {
	col, ok := t.Column(column)
	if !ok {
		return Metric{Column: column}
	}
	n := 0
	for _, v := range col.Values {
		if f, ok := v.Float(); ok && f < threshold {
			n++
		}
	}
	return Metric{Column: column, Value: n, Found: true}
}

// DistinctCount counts distinct non-null stringified values in column.
func DistinctCount(t *table.Table, column string) Metric {
	col, ok := t.Column(column)
	if !ok {
		return Metric{Column: column}
	}
	seen := make(map[string]struct{})
	for _, v := range col.Values {
		if v.IsMissing() {
			continue
		}
		seen[v.String()] = struct{}{}
	}
	return Metric{Column: column, Value: len(seen), Found: true}
}

// quantile interpolates linearly between the closest ranks of a sorted
// sample (position p*(n-1)), matching spreadsheet PERCENTILE.INC.
func quantile(sorted []float64, p float64) float64 {
	pos := p * float64(len(sorted)-1)
	lo := math.Floor(pos)
	hi := math.Ceil(pos)
	if lo == hi {
		return sorted[int(lo)]
	}
	frac := pos - lo
	return sorted[int(lo)] + frac*(sorted[int(hi)]-sorted[int(lo)])
}

func ptr(f float64) *float64 {
	return &f
}
