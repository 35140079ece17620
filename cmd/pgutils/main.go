// Command pgutils is a small console for exploring and loading Postgres
// tables: summary statistics, histograms, sorted previews, and CSV bulk
// loads, using the same credential resolution as the library.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	pgutils "github.com/jackmaney/pg-utils"
	"github.com/jackmaney/pg-utils/internal/config"
	"github.com/jackmaney/pg-utils/internal/querylog"
	"github.com/jackmaney/pg-utils/internal/telemetry"
)

var version = "dev"

const usage = `usage: pgutils <command> [flags] <table> [args]

Commands:
  exists    <table>            report whether the table exists
  count     <table>            count rows
  head      <table>            print the first rows (-n)
  describe  <table> [cols...]  summary statistics for numeric columns
  bins      <table> <column>   histogram bin counts (-bins, 0 = auto)
  sort      <table>            print rows ordered by columns (-by, -desc)
  copy-csv  <table> <file>     bulk load a CSV file via COPY

Run "pgutils <command> -h" for command flags.`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("no command given\n%s", usage)
	}

	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	common := registerCommonFlags(fs)
	cmdFlags := cmd.registerFlags(fs)
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	cfg, err := config.Load(common.overrides())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Logs go to stderr, results go to stdout.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	var connOpts []pgutils.ConnectOption

	if cfg.OTelEnabled {
		shutdown, err := telemetry.Setup(ctx, "pgutils", version)
		if err != nil {
			return fmt.Errorf("initializing telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				logger.Warn("telemetry shutdown", slog.String("error", err.Error()))
			}
		}()
		connOpts = append(connOpts, pgutils.WithInstrumentation(telemetry.NewInstruments()))
	}

	if cfg.QueryLog != "" {
		rec, err := querylog.NewFileRecorder(cfg.QueryLog)
		if err != nil {
			return fmt.Errorf("opening query log: %w", err)
		}
		defer rec.Close()
		connOpts = append(connOpts, pgutils.WithQueryRecorder(rec))
	}

	conn, err := dial(ctx, cfg, connOpts)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer conn.Close()

	logger.Debug("connected",
		slog.String("database", conn.Database()),
		slog.String("command", fs.Name()),
	)

	ctx, cancel := context.WithTimeout(ctx, cfg.QueryTimeout)
	defer cancel()

	return cmd.run(ctx, conn, cfg, cmdFlags, fs.Args())
}

func dial(ctx context.Context, cfg *config.Config, opts []pgutils.ConnectOption) (*pgutils.Connection, error) {
	if cfg.DatabaseURL != "" {
		return pgutils.ConnectURL(ctx, cfg.DatabaseURL, opts...)
	}
	return pgutils.Connect(ctx, cfg.Credentials(), opts...)
}

// command ties a subcommand's flag registration to its runner. registerFlags
// returns an opaque value that run receives back after parsing.
type command struct {
	registerFlags func(fs *flag.FlagSet) any
	run           func(ctx context.Context, conn *pgutils.Connection, cfg *config.Config, flags any, args []string) error
}

var commands = map[string]command{
	"exists":   {registerFlags: noFlags, run: runExists},
	"count":    {registerFlags: noFlags, run: runCount},
	"head":     {registerFlags: headFlags, run: runHead},
	"describe": {registerFlags: describeFlags, run: runDescribe},
	"bins":     {registerFlags: binsFlags, run: runBins},
	"sort":     {registerFlags: sortFlags, run: runSort},
	"copy-csv": {registerFlags: copyCSVFlags, run: runCopyCSV},
}

func noFlags(*flag.FlagSet) any { return nil }

// commonFlags mirror config.Overrides; unset flags leave the env-derived
// values alone.
type commonFlags struct {
	databaseURL  string
	username     string
	password     string
	hostname     string
	database     string
	schema       string
	profile      string
	profilesFile string
	queryTimeout time.Duration
	logLevel     string
	otel         bool
	queryLog     string

	set map[string]bool
	fs  *flag.FlagSet
}

func registerCommonFlags(fs *flag.FlagSet) *commonFlags {
	c := &commonFlags{fs: fs}
	fs.StringVar(&c.databaseURL, "database-url", "", "database connection URL (overrides env)")
	fs.StringVar(&c.username, "username", "", "database username")
	fs.StringVar(&c.password, "password", "", "database password")
	fs.StringVar(&c.hostname, "hostname", "", "database host[:port]")
	fs.StringVar(&c.database, "database", "", "database name")
	fs.StringVar(&c.schema, "schema", "", "default schema for unqualified table names")
	fs.StringVar(&c.profile, "profile", "", "named connection profile")
	fs.StringVar(&c.profilesFile, "profiles-file", "", "path to the profiles YAML file")
	fs.DurationVar(&c.queryTimeout, "query-timeout", 0, "per-command query timeout")
	fs.StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn, error")
	fs.BoolVar(&c.otel, "otel", false, "enable OpenTelemetry tracing and metrics")
	fs.StringVar(&c.queryLog, "query-log", "", "append executed statements to an NDJSON file")
	return c
}

func (c *commonFlags) overrides() config.Overrides {
	seen := make(map[string]bool)
	c.fs.Visit(func(f *flag.Flag) { seen[f.Name] = true })

	o := config.Overrides{
		OTelEnabled: c.otel,
		QueryLog:    c.queryLog,
	}
	if seen["database-url"] {
		o.DatabaseURL = &c.databaseURL
	}
	if seen["username"] {
		o.Username = &c.username
	}
	if seen["password"] {
		o.Password = &c.password
	}
	if seen["hostname"] {
		o.Hostname = &c.hostname
	}
	if seen["database"] {
		o.Database = &c.database
	}
	if seen["schema"] {
		o.Schema = &c.schema
	}
	if seen["profile"] {
		o.Profile = &c.profile
	}
	if seen["profiles-file"] {
		o.ProfilesFile = &c.profilesFile
	}
	if seen["query-timeout"] {
		o.QueryTimeout = &c.queryTimeout
	}
	if seen["log-level"] {
		o.LogLevel = &c.logLevel
	}
	return o
}

func openTable(ctx context.Context, conn *pgutils.Connection, cfg *config.Config, name string) (*pgutils.Table, error) {
	var opts []pgutils.TableOption
	if cfg.Schema != "" {
		opts = append(opts, pgutils.WithSchema(cfg.Schema))
	}
	return pgutils.Open(ctx, conn, name, opts...)
}

func requireArgs(args []string, n int, hint string) error {
	if len(args) != n {
		return fmt.Errorf("expected %s", hint)
	}
	return nil
}

func runExists(ctx context.Context, conn *pgutils.Connection, cfg *config.Config, _ any, args []string) error {
	if err := requireArgs(args, 1, "a table name"); err != nil {
		return err
	}
	var opts []pgutils.TableOption
	if cfg.Schema != "" {
		opts = append(opts, pgutils.WithSchema(cfg.Schema))
	}
	ok, err := pgutils.Exists(ctx, conn, args[0], opts...)
	if err != nil {
		return err
	}
	fmt.Println(ok)
	return nil
}

func runCount(ctx context.Context, conn *pgutils.Connection, cfg *config.Config, _ any, args []string) error {
	if err := requireArgs(args, 1, "a table name"); err != nil {
		return err
	}
	t, err := openTable(ctx, conn, cfg, args[0])
	if err != nil {
		return err
	}
	n, err := t.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Println(n)
	return nil
}

type headOptions struct {
	n int
}

func headFlags(fs *flag.FlagSet) any {
	o := &headOptions{}
	fs.IntVar(&o.n, "n", 10, "number of rows to print")
	return o
}

func runHead(ctx context.Context, conn *pgutils.Connection, cfg *config.Config, flags any, args []string) error {
	if err := requireArgs(args, 1, "a table name"); err != nil {
		return err
	}
	o := flags.(*headOptions)
	t, err := openTable(ctx, conn, cfg, args[0])
	if err != nil {
		return err
	}
	frame, err := t.Head(ctx, o.n)
	if err != nil {
		return err
	}
	fmt.Println(renderFrame(frame))
	return nil
}

type describeOptions struct {
	percentiles string
	kind        string
}

func describeFlags(fs *flag.FlagSet) any {
	o := &describeOptions{}
	fs.StringVar(&o.percentiles, "percentiles", "", "comma-separated percentiles in [0, 1] (default quartiles)")
	fs.StringVar(&o.kind, "kind", "", "percentile interpolation: continuous or discrete")
	return o
}

func runDescribe(ctx context.Context, conn *pgutils.Connection, cfg *config.Config, flags any, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("expected a table name and optional column names")
	}
	o := flags.(*describeOptions)

	opts := pgutils.DescribeOptions{Kind: pgutils.Kind(o.kind)}
	if o.percentiles != "" {
		ps, err := parseFloats(o.percentiles)
		if err != nil {
			return fmt.Errorf("invalid -percentiles: %w", err)
		}
		opts.Percentiles = ps
	}

	t, err := openTable(ctx, conn, cfg, args[0])
	if err != nil {
		return err
	}

	var columns []string
	if len(args) > 1 {
		columns = args[1:]
	}

	desc, err := t.Describe(ctx, columns, opts)
	if err != nil {
		return err
	}
	fmt.Println(renderDescription(desc))
	return nil
}

type binsOptions struct {
	bins int
}

func binsFlags(fs *flag.FlagSet) any {
	o := &binsOptions{}
	fs.IntVar(&o.bins, "bins", 0, "number of bins (0 chooses via the Freedman-Diaconis rule)")
	return o
}

func runBins(ctx context.Context, conn *pgutils.Connection, cfg *config.Config, flags any, args []string) error {
	if err := requireArgs(args, 2, "a table name and a column name"); err != nil {
		return err
	}
	o := flags.(*binsOptions)

	t, err := openTable(ctx, conn, cfg, args[0])
	if err != nil {
		return err
	}
	col, err := t.Column(args[1])
	if err != nil {
		return err
	}

	var bins []pgutils.Bin
	if o.bins > 0 {
		bins, err = col.BinCounts(ctx, o.bins)
	} else {
		bins, err = col.AutoBinCounts(ctx)
	}
	if err != nil {
		return err
	}
	fmt.Println(renderBins(bins))
	return nil
}

type sortOptions struct {
	by   string
	desc string
}

func sortFlags(fs *flag.FlagSet) any {
	o := &sortOptions{}
	fs.StringVar(&o.by, "by", "", "comma-separated sort columns (required)")
	fs.StringVar(&o.desc, "desc", "", "comma-separated subset of -by columns to sort descending")
	return o
}

func runSort(ctx context.Context, conn *pgutils.Connection, cfg *config.Config, flags any, args []string) error {
	if err := requireArgs(args, 1, "a table name"); err != nil {
		return err
	}
	o := flags.(*sortOptions)
	if o.by == "" {
		return fmt.Errorf("-by is required")
	}

	by := splitList(o.by)
	descending := make(map[string]bool)
	for _, c := range splitList(o.desc) {
		descending[c] = true
	}
	ascending := make([]bool, len(by))
	for i, c := range by {
		ascending[i] = !descending[c]
	}

	t, err := openTable(ctx, conn, cfg, args[0])
	if err != nil {
		return err
	}
	frame, err := t.SortValues(ctx, by, ascending)
	if err != nil {
		return err
	}
	fmt.Println(renderFrame(frame))
	return nil
}

type copyCSVOptions struct {
	delimiter string
	null      string
	header    bool
	columns   string
}

func copyCSVFlags(fs *flag.FlagSet) any {
	o := &copyCSVOptions{}
	fs.StringVar(&o.delimiter, "delimiter", ",", "field delimiter")
	fs.StringVar(&o.null, "null", "", "string that represents NULL")
	fs.BoolVar(&o.header, "header", false, "skip a header row")
	fs.StringVar(&o.columns, "columns", "", "comma-separated target columns (default all)")
	return o
}

func runCopyCSV(ctx context.Context, conn *pgutils.Connection, cfg *config.Config, flags any, args []string) error {
	if err := requireArgs(args, 2, "a table name and a CSV file path"); err != nil {
		return err
	}
	o := flags.(*copyCSVOptions)

	t, err := openTable(ctx, conn, cfg, args[0])
	if err != nil {
		return err
	}

	f, err := os.Open(args[1])
	if err != nil {
		return fmt.Errorf("opening CSV file: %w", err)
	}
	defer f.Close()

	n, err := t.CopyCSV(ctx, f, pgutils.CopyCSVOptions{
		Delimiter: o.delimiter,
		Null:      o.null,
		Header:    o.header,
		Columns:   splitList(o.columns),
	})
	if err != nil {
		return err
	}
	fmt.Printf("copied %d rows\n", n)
	return nil
}

func parseFloats(s string) ([]float64, error) {
	parts := splitList(s)
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", p)
		}
		out = append(out, f)
	}
	return out, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
