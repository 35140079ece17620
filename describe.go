package pgutils

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Kind selects between continuous and discrete percentile computation.
type Kind string

const (
	Continuous Kind = "continuous"
	Discrete   Kind = "discrete"
)

// DescribeOptions tune a describe call. A nil Percentiles slice means the
// quartiles (0.25, 0.5, 0.75); pass an explicit empty slice for no
// percentiles at all. An empty Kind means Continuous.
type DescribeOptions struct {
	Percentiles []float64
	Kind        Kind
}

// Summary is the statistical description of one column: a fixed, ordered
// index of statistic labels mapped to values. Cells the database reports as
// NULL (the stddev of a single row, every statistic of an empty table) are
// NaN. Summaries are recomputed on each describe call, never cached.
type Summary struct {
	index []string
	stats map[string]float64
}

// Index returns the statistic labels in their fixed order: count, mean,
// std_dev, minimum, the requested percentiles ascending, maximum.
func (s *Summary) Index() []string {
	return append([]string(nil), s.index...)
}

// Value returns the statistic with the given label, or NaN when the label is
// not part of the summary.
func (s *Summary) Value(label string) float64 {
	if v, ok := s.stats[label]; ok {
		return v
	}
	return math.NaN()
}

// Count returns the non-null row count.
func (s *Summary) Count() int64 { return int64(s.stats["count"]) }

func (s *Summary) Mean() float64   { return s.Value("mean") }
func (s *Summary) StdDev() float64 { return s.Value("std_dev") }
func (s *Summary) Min() float64    { return s.Value("minimum") }
func (s *Summary) Max() float64    { return s.Value("maximum") }

// Percentile returns the statistic for the given percentile, e.g. 0.25 for
// the "25%" cell.
func (s *Summary) Percentile(p float64) float64 {
	return s.Value(percentileLabel(p))
}

// Description is the per-column describe result of a whole table.
type Description struct {
	index   []string
	columns []string
	cells   map[string]*Summary
}

// Index returns the statistic labels, identical across all columns.
func (d *Description) Index() []string {
	return append([]string(nil), d.index...)
}

// Columns returns the described column names in request order.
func (d *Description) Columns() []string {
	return append([]string(nil), d.columns...)
}

// Column returns the summary for one described column, or nil.
func (d *Description) Column(name string) *Summary {
	return d.cells[name]
}

// normalizePercentiles validates and canonicalizes the requested
// percentiles: every entry must lie in [0, 1]; entries are rounded to two
// decimal places, non-positive entries dropped, and the rest sorted
// ascending. nil means the default quartiles.
func normalizePercentiles(percentiles []float64) ([]float64, error) {
	if percentiles == nil {
		percentiles = []float64{0.25, 0.5, 0.75}
	}
	for _, p := range percentiles {
		if p < 0 || p > 1 {
			return nil, fmt.Errorf("%w: percentiles must be numbers between 0 and 1 (got %v)",
				ErrValidation, percentiles)
		}
	}
	out := make([]float64, 0, len(percentiles))
	for _, p := range percentiles {
		p = math.Round(p*100) / 100
		if p > 0 {
			out = append(out, p)
		}
	}
	sort.Float64s(out)
	return out, nil
}

func (k Kind) validate() (Kind, error) {
	switch Kind(strings.ToLower(string(k))) {
	case "":
		return Continuous, nil
	case Continuous:
		return Continuous, nil
	case Discrete:
		return Discrete, nil
	default:
		return "", fmt.Errorf("%w: kind must be %q or %q (got %q)", ErrValidation, Continuous, Discrete, k)
	}
}

func percentileLabel(p float64) string {
	return strconv.Itoa(int(math.Round(p*100))) + "%"
}

func describeIndex(percentiles []float64) []string {
	index := []string{"count", "mean", "std_dev", "minimum"}
	for _, p := range percentiles {
		index = append(index, percentileLabel(p))
	}
	return append(index, "maximum")
}

// describeColumnQuery builds the statistics query for one numeric column.
// Result columns follow the describe index order after the leading column
// name label.
func describeColumnQuery(tableName, column string, percentiles []float64, kind Kind) string {
	percentileFn := "percentile_cont"
	if kind == Discrete {
		percentileFn = "percentile_disc"
	}

	exprs := []string{
		fmt.Sprintf("count(%s)::double precision", column),
		fmt.Sprintf("avg(%s)::double precision", column),
		fmt.Sprintf("stddev(%s)::double precision", column),
		fmt.Sprintf("min(%s)::double precision", column),
	}
	for _, p := range percentiles {
		exprs = append(exprs, fmt.Sprintf("%s(%s) within group (order by %s)::double precision",
			percentileFn, formatFloat(p), column))
	}
	exprs = append(exprs, fmt.Sprintf("max(%s)::double precision", column))

	return fmt.Sprintf("select '%s' as column_name, %s from %s",
		column, strings.Join(exprs, ", "), tableName)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Describe computes count, mean, stddev, minimum, the requested percentiles,
// and maximum for the column. Numeric columns only.
func (c *Column) Describe(ctx context.Context, opts DescribeOptions) (*Summary, error) {
	if err := c.table.valid(); err != nil {
		return nil, err
	}
	if !c.numeric {
		return nil, fmt.Errorf("%w: column %s is not a numeric column of %s", ErrValidation, c.name, c.table.Name())
	}
	percentiles, err := normalizePercentiles(opts.Percentiles)
	if err != nil {
		return nil, err
	}
	kind, err := opts.Kind.validate()
	if err != nil {
		return nil, err
	}

	query := describeColumnQuery(c.table.Name(), c.name, percentiles, kind)
	index := describeIndex(percentiles)

	var label string
	cells := make([]*float64, len(index))
	dest := make([]any, 0, len(index)+1)
	dest = append(dest, &label)
	for i := range cells {
		dest = append(dest, &cells[i])
	}
	if err := c.table.conn.QueryRow(ctx, query).Scan(dest...); err != nil {
		return nil, fmt.Errorf("describing %s.%s: %w", c.table.Name(), c.name, err)
	}
	return newSummary(index, cells), nil
}

// Describe computes the statistical description of the given columns, or of
// every selected numeric column when columns is nil. Result layout matches
// Column.Describe, one summary per column.
func (t *Table) Describe(ctx context.Context, columns []string, opts DescribeOptions) (*Description, error) {
	if err := t.valid(); err != nil {
		return nil, err
	}
	if columns == nil {
		columns = t.NumericColumns()
	}

	percentiles, err := normalizePercentiles(opts.Percentiles)
	if err != nil {
		return nil, err
	}
	kind, err := opts.Kind.validate()
	if err != nil {
		return nil, err
	}

	numeric := t.NumericColumns()
	subqueries := make([]string, 0, len(columns))
	for _, name := range columns {
		if !contains(t.columnNames, name) {
			return nil, fmt.Errorf("%w: %s in table %s", ErrNoSuchColumn, name, t.Name())
		}
		if !contains(numeric, name) {
			return nil, fmt.Errorf("%w: column %s is not a numeric column of %s", ErrValidation, name, t.Name())
		}
		subqueries = append(subqueries, describeColumnQuery(t.Name(), name, percentiles, kind))
	}
	if len(subqueries) == 0 {
		return nil, fmt.Errorf("%w: table %s has no numeric columns to describe", ErrValidation, t.Name())
	}

	query := fmt.Sprintf("select * from (\n%s\n)a", strings.Join(subqueries, "\nunion all\n"))
	index := describeIndex(percentiles)

	rows, err := t.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("describing %s: %w", t.Name(), err)
	}
	defer rows.Close()

	desc := &Description{
		index:   index,
		columns: columns,
		cells:   make(map[string]*Summary, len(columns)),
	}
	for rows.Next() {
		var label string
		cells := make([]*float64, len(index))
		dest := make([]any, 0, len(index)+1)
		dest = append(dest, &label)
		for i := range cells {
			dest = append(dest, &cells[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scanning description row: %w", err)
		}
		desc.cells[label] = newSummary(index, cells)
	}
	return desc, rows.Err()
}

func newSummary(index []string, cells []*float64) *Summary {
	stats := make(map[string]float64, len(index))
	for i, label := range index {
		if cells[i] == nil {
			stats[label] = math.NaN()
		} else {
			stats[label] = *cells[i]
		}
	}
	return &Summary{index: append([]string(nil), index...), stats: stats}
}
