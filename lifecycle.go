package pgutils

import (
	"context"
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// Exists reports whether the named table is present in the catalog. name
// follows the same schema-qualification rules as Open.
func Exists(ctx context.Context, conn *Connection, name string, opts ...TableOption) (bool, error) {
	var o tableOptions
	for _, opt := range opts {
		opt(&o)
	}
	schema, table, err := splitRelationName(name, o.schema)
	if err != nil {
		return false, err
	}
	if conn == nil {
		conn, err = Connect(ctx, Credentials{})
		if err != nil {
			return false, err
		}
	}
	return tableExists(ctx, conn, schema, table)
}

func tableExists(ctx context.Context, conn *Connection, schema, table string) (bool, error) {
	var n int64
	if err := conn.QueryRow(ctx, queryTableExists, schema, table).Scan(&n); err != nil {
		return false, fmt.Errorf("checking existence of %s.%s: %w", schema, table, err)
	}
	return n > 0, nil
}

// Create drops the named table if it exists, executes createStmt, and opens
// the resulting table. createStmt is syntax-checked with the PostgreSQL
// parser before anything runs, so a malformed script never drops the old
// table.
func Create(ctx context.Context, conn *Connection, name, createStmt string, opts ...TableOption) (*Table, error) {
	if err := checkCreateStatement(createStmt); err != nil {
		return nil, err
	}

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

	drop := fmt.Sprintf("drop table if exists %s.%s cascade", schema, table)
	if _, err := conn.Exec(ctx, drop); err != nil {
		return nil, fmt.Errorf("dropping existing table %s.%s: %w", schema, table, err)
	}
	if _, err := conn.Exec(ctx, createStmt); err != nil {
		return nil, fmt.Errorf("executing create statement for %s.%s: %w", schema, table, err)
	}

	opts = append(opts, WithSchema(schema), WithoutExistenceCheck())
	return Open(ctx, conn, table, opts...)
}

// Drop drops the underlying database table and invalidates the receiver:
// subsequent query methods fail with a validation error.
func (t *Table) Drop(ctx context.Context) error {
	if err := t.valid(); err != nil {
		return err
	}
	query := fmt.Sprintf("drop table %s cascade", t.Name())
	if _, err := t.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("dropping table %s: %w", t.Name(), err)
	}
	t.dropped = true
	t.cache.clear()
	return nil
}

// checkCreateStatement parses stmt with the real PostgreSQL grammar and
// requires at least one CREATE TABLE (or CREATE TABLE AS) statement.
func checkCreateStatement(stmt string) error {
	trimmed := strings.TrimSpace(stmt)
	if trimmed == "" {
		return fmt.Errorf("%w: empty create statement", ErrValidation)
	}

	tree, err := pg_query.Parse(trimmed)
	if err != nil {
		return fmt.Errorf("%w: parsing create statement: %v", ErrValidation, err)
	}
	if len(tree.Stmts) == 0 {
		return fmt.Errorf("%w: empty create statement", ErrValidation)
	}

	for _, raw := range tree.Stmts {
		if raw.Stmt == nil {
			continue
		}
		switch raw.Stmt.Node.(type) {
		case *pg_query.Node_CreateStmt, *pg_query.Node_CreateTableAsStmt:
			return nil
		}
	}
	return fmt.Errorf("%w: create statement contains no CREATE TABLE", ErrValidation)
}
