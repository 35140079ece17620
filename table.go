package pgutils

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"strings"
)

// Table represents the metadata of one database table plus a selected subset
// of its columns. Column metadata is fetched once at construction and cached
// for the life of the instance; it is never refreshed, even if the underlying
// table changes.
//
// A Table shares its Connection; the connection's lifetime is the caller's
// concern and may exceed the Table's.
type Table struct {
	conn   *Connection
	schema string
	table  string

	columnNames    []string // selected subset, in selection order
	allColumnNames []string // every column, in ordinal order
	dataTypes      map[string]string
	columns        []*Column

	dropped bool
	cache   memo
}

type tableOptions struct {
	schema        string
	columns       []string
	skipExistence bool
}

type TableOption func(*tableOptions)

// WithSchema sets the schema explicitly. It must agree with any schema
// embedded in the table name.
func WithSchema(schema string) TableOption {
	return func(o *tableOptions) { o.schema = schema }
}

// WithColumns restricts the Table to a subset of its columns. Every name must
// exist in the catalog or construction fails with ErrNoSuchColumn.
func WithColumns(columns ...string) TableOption {
	return func(o *tableOptions) { o.columns = columns }
}

// WithoutExistenceCheck skips the catalog existence check at construction.
func WithoutExistenceCheck() TableOption {
	return func(o *tableOptions) { o.skipExistence = true }
}

// Open constructs a Table over an existing database table. name may be bare
// ("events") or schema-qualified ("analytics.events"); a bare name defaults
// to the OS user's schema. A nil conn opens a fresh connection from the
// environment.
func Open(ctx context.Context, conn *Connection, name string, opts ...TableOption) (*Table, error) {
	var o tableOptions
	for _, opt := range opts {
		opt(&o)
	}

	schema, table, err := splitRelationName(name, o.schema)
	if err != nil {
		return nil, err
	}

	if conn == nil {
		conn, err = Connect(ctx, Credentials{})
		if err != nil {
			return nil, err
		}
	}

	t := &Table{conn: conn, schema: schema, table: table}

	if !o.skipExistence {
		ok, err := tableExists(ctx, conn, schema, table)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("table %s %w", t.Name(), ErrTableDoesNotExist)
		}
	}

	if err := t.loadColumnMetadata(ctx); err != nil {
		return nil, err
	}
	if err := t.selectColumns(o.columns); err != nil {
		return nil, err
	}
	return t, nil
}

// splitRelationName resolves (schema, table) from a possibly qualified name
// and an optional explicit schema. Mismatched or unparseable names fail
// before anything touches the database.
func splitRelationName(name, schema string) (string, string, error) {
	parts := strings.Split(name, ".")
	switch len(parts) {
	case 1:
		if schema == "" {
			schema = currentUser()
		}
		return schema, name, nil
	case 2:
		if schema != "" && schema != parts[0] {
			return "", "", fmt.Errorf("%w: schema %q does not match what is specified by the table name %q",
				ErrValidation, schema, name)
		}
		return parts[0], parts[1], nil
	default:
		return "", "", fmt.Errorf("%w: unable to parse table name %q", ErrValidation, name)
	}
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return os.Getenv("USER")
}

func (t *Table) loadColumnMetadata(ctx context.Context) error {
	rows, err := t.conn.Query(ctx, queryColumnMetadata, t.schema, t.table)
	if err != nil {
		return fmt.Errorf("querying column metadata for %s: %w", t.Name(), err)
	}
	defer rows.Close()

	t.dataTypes = make(map[string]string)
	for rows.Next() {
		var name, dataType string
		if err := rows.Scan(&name, &dataType); err != nil {
			return fmt.Errorf("scanning column metadata: %w", err)
		}
		t.allColumnNames = append(t.allColumnNames, name)
		t.dataTypes[name] = dataType
	}
	return rows.Err()
}

func (t *Table) selectColumns(names []string) error {
	if names == nil {
		names = t.allColumnNames
	}
	var unknown []string
	for _, name := range names {
		if _, ok := t.dataTypes[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("%w: %s", ErrNoSuchColumn, strings.Join(unknown, ", "))
	}

	t.columnNames = append([]string(nil), names...)
	t.columns = make([]*Column, len(names))
	for i, name := range names {
		t.columns[i] = newColumn(name, t)
	}
	return nil
}

// Name returns the fully-qualified table name, as used in generated SQL.
func (t *Table) Name() string {
	return t.schema + "." + t.table
}

// Schema returns the schema name.
func (t *Table) Schema() string { return t.schema }

// TableName returns the table name without the schema.
func (t *Table) TableName() string { return t.table }

func (t *Table) String() string { return t.Name() }

// Equal reports nominal table identity: two Tables are equal when they refer
// to the same fully-qualified name. Connection identity is not compared.
func (t *Table) Equal(other *Table) bool {
	return other != nil && t.Name() == other.Name()
}

// Conn returns the shared connection.
func (t *Table) Conn() *Connection { return t.conn }

// ColumnNames returns the selected column names, in selection order.
func (t *Table) ColumnNames() []string {
	return append([]string(nil), t.columnNames...)
}

// AllColumnNames returns every column of the underlying table, in ordinal
// order, regardless of the current selection.
func (t *Table) AllColumnNames() []string {
	return append([]string(nil), t.allColumnNames...)
}

// DataTypes maps each selected column name to its data type.
func (t *Table) DataTypes() map[string]string {
	out := make(map[string]string, len(t.columnNames))
	for _, name := range t.columnNames {
		out[name] = t.dataTypes[name]
	}
	return out
}

// DTypeCounts returns how many selected columns carry each data type.
func (t *Table) DTypeCounts() map[string]int {
	out := make(map[string]int)
	for _, name := range t.columnNames {
		out[t.dataTypes[name]]++
	}
	return out
}

// NumericColumns returns the selected columns whose data type is numeric.
func (t *Table) NumericColumns() []string {
	var out []string
	for _, name := range t.columnNames {
		if numericTypes[t.dataTypes[name]] {
			out = append(out, name)
		}
	}
	return out
}

// NumericArrayColumns returns the selected columns that are arrays of a
// numeric element type (int[], double precision[], ...).
func (t *Table) NumericArrayColumns() []string {
	var out []string
	for _, name := range t.columnNames {
		dt := t.dataTypes[name]
		if strings.HasSuffix(dt, "[]") && numericTypes[strings.TrimSuffix(dt, "[]")] {
			out = append(out, name)
		}
	}
	return out
}

// Column returns the named selected column.
func (t *Table) Column(name string) (*Column, error) {
	for _, col := range t.columns {
		if col.name == name {
			return col, nil
		}
	}
	return nil, fmt.Errorf("%w: %s in table %s", ErrNoSuchColumn, name, t.Name())
}

// Columns returns the selected columns.
func (t *Table) Columns() []*Column {
	return append([]*Column(nil), t.columns...)
}

// Select returns a new Table restricted to the given columns. Metadata is
// shared with the receiver, not re-fetched; the new Table has an empty cache.
func (t *Table) Select(names ...string) (*Table, error) {
	sub := &Table{
		conn:           t.conn,
		schema:         t.schema,
		table:          t.table,
		allColumnNames: t.allColumnNames,
		dataTypes:      t.dataTypes,
		dropped:        t.dropped,
	}
	if err := sub.selectColumns(names); err != nil {
		return nil, err
	}
	return sub, nil
}

// SelectAllQuery returns the SELECT statement covering the selected columns.
func (t *Table) SelectAllQuery() string {
	return fmt.Sprintf("select %s from %s", strings.Join(t.columnNames, ","), t.Name())
}

// Count returns the number of rows. The value is cached until
// InvalidateCache is called.
func (t *Table) Count(ctx context.Context) (int64, error) {
	if err := t.valid(); err != nil {
		return 0, err
	}
	v, err := t.cache.get("count", func() (any, error) {
		var n int64
		query := fmt.Sprintf("select count(1) from %s", t.Name())
		if err := t.conn.QueryRow(ctx, query).Scan(&n); err != nil {
			return nil, fmt.Errorf("counting rows of %s: %w", t.Name(), err)
		}
		return n, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

// Shape returns (row count, selected column count).
func (t *Table) Shape(ctx context.Context) (int64, int, error) {
	n, err := t.Count(ctx)
	if err != nil {
		return 0, 0, err
	}
	return n, len(t.columnNames), nil
}

// Head fetches the first n rows. n must be positive; use Rows for everything.
func (t *Table) Head(ctx context.Context, n int) (*Frame, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: expected a positive number of rows, got %d", ErrValidation, n)
	}
	return t.fetch(ctx, fmt.Sprintf("%s limit %d", t.SelectAllQuery(), n))
}

// Rows fetches every row of the selected columns.
func (t *Table) Rows(ctx context.Context) (*Frame, error) {
	return t.fetch(ctx, t.SelectAllQuery())
}

// SortValues fetches all rows ordered by the given columns. ascending may be
// nil (everything ascending), a single flag broadcast to all by columns, or
// one flag per by column; any other length fails validation.
func (t *Table) SortValues(ctx context.Context, by []string, ascending []bool) (*Frame, error) {
	query, err := t.sortValuesQuery(by, ascending)
	if err != nil {
		return nil, err
	}
	return t.fetch(ctx, query)
}

func (t *Table) sortValuesQuery(by []string, ascending []bool) (string, error) {
	if len(by) == 0 {
		return "", fmt.Errorf("%w: no columns to sort by", ErrValidation)
	}
	var unknown []string
	for _, name := range by {
		if !contains(t.columnNames, name) {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		return "", fmt.Errorf("%w: column names %s not in table %s", ErrNoSuchColumn,
			strings.Join(unknown, ","), t.Name())
	}

	switch len(ascending) {
	case 0:
		ascending = repeat(true, len(by))
	case 1:
		ascending = repeat(ascending[0], len(by))
	case len(by):
	default:
		return "", fmt.Errorf("%w: mismatch between columns to sort by (%v) and ascending flags (%v)",
			ErrValidation, by, ascending)
	}

	terms := make([]string, len(by))
	for i, name := range by {
		terms[i] = name
		if !ascending[i] {
			terms[i] += " desc"
		}
	}
	return t.SelectAllQuery() + " order by " + strings.Join(terms, ", "), nil
}

func (t *Table) fetch(ctx context.Context, query string) (*Frame, error) {
	if err := t.valid(); err != nil {
		return nil, err
	}
	rows, err := t.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", t.Name(), err)
	}
	defer rows.Close()
	return frameFromRows(rows)
}

// InvalidateCache drops every memoized value (row count, describe-derived
// aggregates on columns are per-Column and have their own InvalidateCache).
func (t *Table) InvalidateCache() {
	t.cache.clear()
}

func (t *Table) valid() error {
	if t.dropped {
		return fmt.Errorf("%w: table %s has been dropped", ErrValidation, t.Name())
	}
	return nil
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func repeat(v bool, n int) []bool {
	out := make([]bool, n)
	for i := range out {
		out[i] = v
	}
	return out
}
