package pgutils

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Default environment variable names consulted for credential fields that are
// not passed explicitly.
const (
	DefaultEnvUsername = "pg_username"
	DefaultEnvPassword = "pg_password"
	DefaultEnvHostname = "pg_hostname"
	DefaultEnvDatabase = "pg_database"
)

// Credentials identifies a database to connect to. Any field left empty falls
// back to the environment variable named by the corresponding Env* field
// (pg_username, pg_password, pg_hostname, pg_database when those are empty
// too). All four values must resolve or Connect fails with ErrCredentials
// before anything is dialed.
type Credentials struct {
	Username string
	Password string
	Hostname string // optionally "host:port"
	Database string

	EnvUsername string
	EnvPassword string
	EnvHostname string
	EnvDatabase string
}

func (c Credentials) resolve() (Credentials, error) {
	pick := func(explicit, envName, defaultEnvName string) string {
		if explicit != "" {
			return explicit
		}
		if envName == "" {
			envName = defaultEnvName
		}
		return os.Getenv(envName)
	}

	out := c
	out.Username = pick(c.Username, c.EnvUsername, DefaultEnvUsername)
	out.Password = pick(c.Password, c.EnvPassword, DefaultEnvPassword)
	out.Hostname = pick(c.Hostname, c.EnvHostname, DefaultEnvHostname)
	out.Database = pick(c.Database, c.EnvDatabase, DefaultEnvDatabase)

	if out.Username == "" || out.Password == "" || out.Hostname == "" || out.Database == "" {
		return Credentials{}, fmt.Errorf(
			"%w: unable to resolve username, password, hostname and database (got username=%q hostname=%q database=%q)",
			ErrCredentials, out.Username, out.Hostname, out.Database)
	}
	return out, nil
}

// dsn renders the resolved credentials as a keyword/value connection string.
func (c Credentials) dsn() string {
	host, port := c.Hostname, ""
	if i := strings.LastIndex(host, ":"); i >= 0 {
		host, port = host[:i], host[i+1:]
	}
	parts := []string{
		"host=" + dsnValue(host),
		"user=" + dsnValue(c.Username),
		"password=" + dsnValue(c.Password),
		"dbname=" + dsnValue(c.Database),
	}
	if port != "" {
		parts = append(parts, "port="+dsnValue(port))
	}
	return strings.Join(parts, " ")
}

func dsnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, " '\\") {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// Connection wraps a pgx connection pool. Every statement the rest of this
// package executes goes through it, so instrumentation and query recording
// hang off the connection.
type Connection struct {
	pool  *pgxpool.Pool
	creds Credentials
	inst  Instrumentation
	rec   QueryRecorder
}

type ConnectOption func(*Connection)

// WithInstrumentation attaches a metrics sink to the connection.
func WithInstrumentation(inst Instrumentation) ConnectOption {
	return func(c *Connection) {
		if inst != nil {
			c.inst = inst
		}
	}
}

// WithQueryRecorder attaches a per-statement event recorder to the
// connection.
func WithQueryRecorder(rec QueryRecorder) ConnectOption {
	return func(c *Connection) { c.rec = rec }
}

// Connect resolves creds, opens a pool, and pings it. Connection failures
// from the driver propagate unmodified apart from message context; there is
// no retry policy.
func Connect(ctx context.Context, creds Credentials, opts ...ConnectOption) (*Connection, error) {
	resolved, err := creds.resolve()
	if err != nil {
		return nil, err
	}
	return connect(ctx, resolved.dsn(), resolved, opts...)
}

// ConnectURL opens a connection from a postgres:// URL or keyword/value
// connection string, bypassing environment-variable credential resolution.
func ConnectURL(ctx context.Context, databaseURL string, opts ...ConnectOption) (*Connection, error) {
	return connect(ctx, databaseURL, Credentials{}, opts...)
}

func connect(ctx context.Context, dsn string, creds Credentials, opts ...ConnectOption) (*Connection, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing connection settings: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database (10s timeout): %w", err)
	}

	c := &Connection{pool: pool, creds: creds, inst: NoopInstrumentation{}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Query executes sql and returns the rows. The caller owns the rows and must
// close them.
func (c *Connection) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	start := time.Now()
	rows, err := c.pool.Query(ctx, sql, args...)
	c.observe(ctx, "query", sql, start, err)
	return rows, err
}

// QueryRow executes sql expecting at most one row.
func (c *Connection) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	start := time.Now()
	row := c.pool.QueryRow(ctx, sql, args...)
	c.observe(ctx, "query", sql, start, nil)
	return row
}

// Exec executes a statement that returns no rows.
func (c *Connection) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	start := time.Now()
	tag, err := c.pool.Exec(ctx, sql, args...)
	c.observe(ctx, "exec", sql, start, err)
	return tag, err
}

// Begin starts a transaction; commit and rollback are the returned pgx.Tx's.
func (c *Connection) Begin(ctx context.Context) (pgx.Tx, error) {
	return c.pool.Begin(ctx)
}

// CopyFrom bulk-loads rows into tableName via the PostgreSQL COPY protocol.
func (c *Connection) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, src pgx.CopyFromSource) (int64, error) {
	start := time.Now()
	n, err := c.pool.CopyFrom(ctx, tableName, columnNames, src)
	c.observe(ctx, "copy", "copy "+tableName.Sanitize()+" from stdin", start, err)
	if err == nil {
		c.inst.RecordCopyRows(ctx, n)
	}
	return n, err
}

// CopyIn streams r through a caller-built COPY ... FROM STDIN statement.
func (c *Connection) CopyIn(ctx context.Context, r io.Reader, sql string) (int64, error) {
	conn, err := c.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquiring connection: %w", err)
	}
	defer conn.Release()

	start := time.Now()
	tag, err := conn.Conn().PgConn().CopyFrom(ctx, r, sql)
	c.observe(ctx, "copy", sql, start, err)
	if err != nil {
		return 0, err
	}
	c.inst.RecordCopyRows(ctx, tag.RowsAffected())
	return tag.RowsAffected(), nil
}

// Ping checks that the pool can still reach the database.
func (c *Connection) Ping(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

// Close releases the underlying pool. The connection is shared, longer-lived
// state; releasing it is the caller's responsibility, not any single Table's.
func (c *Connection) Close() {
	c.pool.Close()
}

// Database returns the resolved database name, when the connection was opened
// via Connect.
func (c *Connection) Database() string {
	return c.creds.Database
}

func (c *Connection) observe(ctx context.Context, op, sql string, start time.Time, err error) {
	ms := float64(time.Since(start).Microseconds()) / 1000.0
	c.inst.RecordQueryDuration(ctx, ms)
	if err != nil {
		c.inst.IncrementQueryErrors(ctx)
	} else {
		c.inst.IncrementQueryCount(ctx)
	}
	if c.rec != nil {
		c.rec.Record(ctx, QueryEvent{Op: op, SQL: sql, DurationMS: int64(ms), Err: err})
	}
}
