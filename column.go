package pgutils

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"
)

// Sort is an optional sort direction attached to a Column.
type Sort int

const (
	Unsorted Sort = iota
	Ascending
	Descending
)

// Column represents one column of a Table. It keeps a back-reference to its
// parent; the parent's Columns slice owns the instances.
type Column struct {
	name    string
	table   *Table
	numeric bool
	sort    Sort
	cache   memo
}

func newColumn(name string, t *Table) *Column {
	return &Column{
		name:    name,
		table:   t,
		numeric: numericTypes[t.dataTypes[name]],
	}
}

// Name returns the column name.
func (c *Column) Name() string { return c.name }

func (c *Column) String() string { return c.name }

// DType returns the column's data type as reported by the catalog.
func (c *Column) DType() string { return c.table.dataTypes[c.name] }

// IsNumeric reports whether the data type is in the fixed numeric type list.
func (c *Column) IsNumeric() bool { return c.numeric }

// Parent returns the owning table.
func (c *Column) Parent() *Table { return c.table }

// Equal reports whether both columns have the same name and belong to the
// same (nominally identified) table.
func (c *Column) Equal(other *Column) bool {
	return other != nil && c.name == other.name && c.table.Equal(other.table)
}

// Sorted returns a copy of the column with the given sort direction and a
// fresh cache.
func (c *Column) Sorted(dir Sort) *Column {
	return &Column{name: c.name, table: c.table, numeric: c.numeric, sort: dir}
}

// SelectAllQuery returns the SELECT statement for this column, honoring the
// sort direction.
func (c *Column) SelectAllQuery() string {
	query := fmt.Sprintf("select %s from %s", c.name, c.table.Name())
	switch c.sort {
	case Ascending:
		query += " order by 1"
	case Descending:
		query += " order by 1 desc"
	}
	return query
}

// Values fetches every value of the column.
func (c *Column) Values(ctx context.Context) ([]any, error) {
	if err := c.table.valid(); err != nil {
		return nil, err
	}
	rows, err := c.table.conn.Query(ctx, c.SelectAllQuery())
	if err != nil {
		return nil, fmt.Errorf("querying values of %s.%s: %w", c.table.Name(), c.name, err)
	}
	defer rows.Close()

	var out []any
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scanning value of %s: %w", c.name, err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Mean returns the average value, or NaN for an empty table; cached until
// InvalidateCache.
func (c *Column) Mean(ctx context.Context) (float64, error) {
	if !c.numeric {
		return 0, fmt.Errorf("%w: column %s is not a numeric column of %s", ErrValidation, c.name, c.table.Name())
	}
	v, err := c.cache.get("mean", func() (any, error) {
		if err := c.table.valid(); err != nil {
			return nil, err
		}
		query := fmt.Sprintf("select avg(%s)::double precision from (\n%s\n)a", c.name, c.SelectAllQuery())
		var f *float64
		if err := c.table.conn.QueryRow(ctx, query).Scan(&f); err != nil {
			return nil, fmt.Errorf("computing avg of %s.%s: %w", c.table.Name(), c.name, err)
		}
		if f == nil {
			return math.NaN(), nil
		}
		return *f, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

// Min returns the smallest value; cached until InvalidateCache.
func (c *Column) Min(ctx context.Context) (any, error) {
	return c.cache.get("min", func() (any, error) {
		return c.scalarAggregate(ctx, "min")
	})
}

// Max returns the largest value; cached until InvalidateCache.
func (c *Column) Max(ctx context.Context) (any, error) {
	return c.cache.get("max", func() (any, error) {
		return c.scalarAggregate(ctx, "max")
	})
}

// Size returns the row count of the parent table.
func (c *Column) Size(ctx context.Context) (int64, error) {
	return c.table.Count(ctx)
}

func (c *Column) scalarAggregate(ctx context.Context, fn string) (any, error) {
	if err := c.table.valid(); err != nil {
		return nil, err
	}
	query := fmt.Sprintf("select %s(%s) from (\n%s\n)a", fn, c.name, c.SelectAllQuery())
	var v any
	if err := c.table.conn.QueryRow(ctx, query).Scan(&v); err != nil {
		return nil, fmt.Errorf("computing %s of %s.%s: %w", fn, c.table.Name(), c.name, err)
	}
	return v, nil
}

// IsUnique reports whether no value of the column occurs more than once;
// cached until InvalidateCache.
func (c *Column) IsUnique(ctx context.Context) (bool, error) {
	if err := c.table.valid(); err != nil {
		return false, err
	}
	v, err := c.cache.get("is_unique", func() (any, error) {
		query := fmt.Sprintf(queryIsUnique, c.name, c.table.Name())
		var one int
		err := c.table.conn.QueryRow(ctx, query).Scan(&one)
		if errors.Is(err, pgx.ErrNoRows) {
			return true, nil
		}
		if err != nil {
			return nil, fmt.Errorf("checking uniqueness of %s.%s: %w", c.table.Name(), c.name, err)
		}
		return false, nil
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// Unique fetches the distinct values of the column, in no particular order,
// including a possible null. Not cached.
func (c *Column) Unique(ctx context.Context) ([]any, error) {
	if err := c.table.valid(); err != nil {
		return nil, err
	}
	query := fmt.Sprintf("select distinct %s from %s", c.name, c.table.Name())
	rows, err := c.table.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying distinct values of %s.%s: %w", c.table.Name(), c.name, err)
	}
	defer rows.Close()

	var out []any
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scanning distinct value of %s: %w", c.name, err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// InvalidateCache drops the column's memoized aggregates.
func (c *Column) InvalidateCache() {
	c.cache.clear()
}
