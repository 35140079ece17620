package pgutils

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Insert adds a single row covering the selected columns, in selection
// order. It reports whether exactly one row was affected. Cached counts are
// not invalidated automatically.
func (t *Table) Insert(ctx context.Context, values ...any) (bool, error) {
	if err := t.valid(); err != nil {
		return false, err
	}
	if len(values) != len(t.columnNames) {
		return false, fmt.Errorf("%w: expected %d values for columns (%s), got %d",
			ErrValidation, len(t.columnNames), strings.Join(t.columnNames, ","), len(values))
	}
	return t.insert(ctx, t.columnNames, values)
}

// InsertMap adds a single row from a column-name-to-value mapping. Every key
// must be one of the selected columns; missing columns receive their
// defaults.
func (t *Table) InsertMap(ctx context.Context, row map[string]any) (bool, error) {
	if err := t.valid(); err != nil {
		return false, err
	}
	if len(row) == 0 {
		return false, fmt.Errorf("%w: empty row", ErrValidation)
	}

	columns := make([]string, 0, len(row))
	for _, name := range t.columnNames {
		if _, ok := row[name]; ok {
			columns = append(columns, name)
		}
	}
	if len(columns) != len(row) {
		var unknown []string
		for key := range row {
			if !contains(t.columnNames, key) {
				unknown = append(unknown, key)
			}
		}
		sort.Strings(unknown)
		return false, fmt.Errorf("%w: %s in table %s", ErrNoSuchColumn, strings.Join(unknown, ", "), t.Name())
	}

	values := make([]any, len(columns))
	for i, name := range columns {
		values[i] = row[name]
	}
	return t.insert(ctx, columns, values)
}

func (t *Table) insert(ctx context.Context, columns []string, values []any) (bool, error) {
	tag, err := t.conn.Exec(ctx, insertQuery(t.Name(), columns), values...)
	if err != nil {
		return false, fmt.Errorf("inserting into %s: %w", t.Name(), err)
	}
	return tag.RowsAffected() == 1, nil
}

// insertQuery builds the parameterized single-row INSERT statement.
func insertQuery(tableName string, columns []string) string {
	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("insert into %s (%s) values (%s)",
		tableName, strings.Join(columns, ","), strings.Join(placeholders, ","))
}

// CopyRows bulk-loads rows (one slice per row, matching the selected
// columns) via the COPY protocol and returns the number of rows copied.
func (t *Table) CopyRows(ctx context.Context, rows [][]any) (int64, error) {
	if err := t.valid(); err != nil {
		return 0, err
	}
	for i, row := range rows {
		if len(row) != len(t.columnNames) {
			return 0, fmt.Errorf("%w: row %d has %d values, expected %d (%s)",
				ErrValidation, i, len(row), len(t.columnNames), strings.Join(t.columnNames, ","))
		}
	}
	n, err := t.conn.CopyFrom(ctx, pgx.Identifier{t.schema, t.table}, t.columnNames, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("bulk loading %s: %w", t.Name(), err)
	}
	return n, nil
}

// CopyCSVOptions tune a CSV bulk load. Zero values mean comma delimiter, an
// empty string for NULL, no header row, and the table's selected columns.
type CopyCSVOptions struct {
	Delimiter string
	Null      string
	Header    bool
	Columns   []string
}

// CopyCSV streams CSV data from r into the table with a single COPY ... FROM
// STDIN statement and returns the number of rows loaded.
func (t *Table) CopyCSV(ctx context.Context, r io.Reader, opts CopyCSVOptions) (int64, error) {
	if err := t.valid(); err != nil {
		return 0, err
	}
	columns := opts.Columns
	if columns == nil {
		columns = t.columnNames
	}
	var unknown []string
	for _, name := range columns {
		if _, ok := t.dataTypes[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		return 0, fmt.Errorf("%w: %s in table %s", ErrNoSuchColumn, strings.Join(unknown, ", "), t.Name())
	}

	n, err := t.conn.CopyIn(ctx, r, copyCSVQuery(t.Name(), columns, opts))
	if err != nil {
		return 0, fmt.Errorf("copying CSV into %s: %w", t.Name(), err)
	}
	return n, nil
}

// copyCSVQuery builds the COPY ... FROM STDIN statement for a CSV load.
func copyCSVQuery(tableName string, columns []string, opts CopyCSVOptions) string {
	delimiter := opts.Delimiter
	if delimiter == "" {
		delimiter = ","
	}
	query := fmt.Sprintf("copy %s (%s) from stdin delimiter '%s' null '%s' csv",
		tableName, strings.Join(columns, ","), delimiter, opts.Null)
	if opts.Header {
		query += " header"
	}
	return query
}
