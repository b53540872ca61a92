package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/xiaonanln/dtnview/config"
	"github.com/xiaonanln/dtnview/util/postgres"
)

const (
	commandInit   = "init"
	commandVerify = "verify"
	commandReset  = "reset"
	commandStatus = "status"
	commandSeries = "series"
	commandPrune  = "prune"
)

// Schema constants - MUST be kept in sync with util/postgres/db.go:InitSchema()
const (
	tableRateHistory = "dtnview_rate_history"
	dropSchemaSQL    = `DROP TABLE IF EXISTS dtnview_rate_history CASCADE;`
)

var (
	// Tables to manage
	tables = []string{tableRateHistory}

	// Indexes per table
	indexes = map[string][]string{
		tableRateHistory: {"idx_dtnview_rate_history_ts"},
	}

	commands = []string{commandInit, commandVerify, commandReset, commandStatus, commandSeries, commandPrune}
)

func main() {
	var (
		configFile = flag.String("config", "", "Path to dtnview YAML configuration file (uses history.postgres)")
		host       = flag.String("host", "localhost", "PostgreSQL host")
		port       = flag.Int("port", 5432, "PostgreSQL port")
		user       = flag.String("user", "dtnview", "PostgreSQL user")
		password   = flag.String("password", "dtnview", "PostgreSQL password")
		database   = flag.String("database", "dtnview", "PostgreSQL database")
		sslmode    = flag.String("sslmode", "disable", "PostgreSQL SSL mode")
		olderThan  = flag.Duration("older-than", 7*24*time.Hour, "Age of the points removed by prune")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <command>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "PostgreSQL rate history management tool for dtnview.\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  init     Initialize database schema (create tables and indexes)\n")
		fmt.Fprintf(os.Stderr, "  verify   Verify database connection and schema\n")
		fmt.Fprintf(os.Stderr, "  reset    Drop and recreate database schema (WARNING: deletes all history)\n")
		fmt.Fprintf(os.Stderr, "  status   Show database status and statistics\n")
		fmt.Fprintf(os.Stderr, "  series   List recorded rate series\n")
		fmt.Fprintf(os.Stderr, "  prune    Delete points older than --older-than\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Initialize schema using the dashboard config file\n")
		fmt.Fprintf(os.Stderr, "  %s --config dtnview.yml init\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  # Drop history older than a day\n")
		fmt.Fprintf(os.Stderr, "  %s --config dtnview.yml --older-than 24h prune\n\n", os.Args[0])
	}

	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Error: command required\n\n")
		flag.Usage()
		os.Exit(1)
	}

	command := flag.Arg(0)
	if !validCommand(command) {
		fmt.Fprintf(os.Stderr, "Error: unknown command '%s'\n\n", command)
		flag.Usage()
		os.Exit(1)
	}

	var pgConfig *postgres.Config
	if *configFile != "" {
		var err error
		pgConfig, err = loadPostgresConfig(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config file: %v\n", err)
			os.Exit(1)
		}
	} else {
		pgConfig = &postgres.Config{
			Host:     *host,
			Port:     *port,
			User:     *user,
			Password: *password,
			Database: *database,
			SSLMode:  *sslmode,
		}
	}

	ctx := context.Background()
	a := &admin{config: pgConfig, in: os.Stdin, out: os.Stdout, olderThan: *olderThan}
	if err := a.execute(ctx, command); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func validCommand(command string) bool {
	for _, c := range commands {
		if c == command {
			return true
		}
	}
	return false
}

// loadPostgresConfig reads the history.postgres block of a dashboard config.
func loadPostgresConfig(path string) (*postgres.Config, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if cfg.History.Postgres == nil {
		return nil, fmt.Errorf("%s has no history.postgres block", path)
	}
	return cfg.History.Postgres, nil
}

type admin struct {
	config    *postgres.Config
	in        io.Reader
	out       io.Writer
	olderThan time.Duration
	now       func() time.Time
}

func (a *admin) execute(ctx context.Context, command string) error {
	switch command {
	case commandInit:
		return a.initSchema(ctx)
	case commandVerify:
		return a.verifyDatabase(ctx)
	case commandReset:
		return a.resetSchema(ctx)
	case commandStatus:
		return a.showStatus(ctx)
	case commandSeries:
		return a.listSeries(ctx)
	case commandPrune:
		return a.prune(ctx)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

func (a *admin) connect(ctx context.Context) (*postgres.DB, error) {
	db, err := postgres.NewDB(a.config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func (a *admin) printTarget() {
	fmt.Fprintf(a.out, "  Host: %s:%d\n", a.config.Host, a.config.Port)
	fmt.Fprintf(a.out, "  Database: %s\n", a.config.Database)
}

func (a *admin) initSchema(ctx context.Context) error {
	fmt.Fprintln(a.out, "Initializing PostgreSQL schema...")
	a.printTarget()

	db, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	fmt.Fprintln(a.out, "✓ Connected to database")

	if err := db.InitSchema(ctx); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	for _, table := range tables {
		exists, err := tableExists(ctx, db, table)
		if err != nil {
			return fmt.Errorf("failed to verify table %s: %w", table, err)
		}
		if !exists {
			return fmt.Errorf("table '%s' was not created", table)
		}
		fmt.Fprintf(a.out, "✓ Table '%s' created\n", table)
	}

	fmt.Fprintln(a.out, "\nDatabase schema initialized successfully!")
	return nil
}

func (a *admin) verifyDatabase(ctx context.Context) error {
	fmt.Fprintln(a.out, "Verifying PostgreSQL database...")
	a.printTarget()

	db, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	fmt.Fprintln(a.out, "✓ Connection successful")

	allTablesExist := true
	for _, table := range tables {
		exists, err := tableExists(ctx, db, table)
		if err != nil {
			return fmt.Errorf("failed to check table %s: %w", table, err)
		}
		if exists {
			fmt.Fprintf(a.out, "✓ Table '%s' exists\n", table)
		} else {
			fmt.Fprintf(a.out, "✗ Table '%s' does not exist\n", table)
			allTablesExist = false
		}
	}
	if !allTablesExist {
		fmt.Fprintln(a.out, "\nSchema is incomplete. Run 'init' command to create tables.")
		return fmt.Errorf("schema verification failed")
	}

	for table, idxList := range indexes {
		for _, idx := range idxList {
			exists, err := indexExists(ctx, db, table, idx)
			if err != nil {
				return fmt.Errorf("failed to check index %s: %w", idx, err)
			}
			if exists {
				fmt.Fprintf(a.out, "✓ Index '%s' exists\n", idx)
			} else {
				fmt.Fprintf(a.out, "✗ Index '%s' does not exist\n", idx)
			}
		}
	}

	fmt.Fprintln(a.out, "\nDatabase verification complete!")
	return nil
}

// confirm asks a yes/no question on a.in.
func (a *admin) confirm(question string) (bool, error) {
	fmt.Fprintf(a.out, "%s (yes/no): ", question)
	scanner := bufio.NewScanner(a.in)
	if !scanner.Scan() {
		return false, fmt.Errorf("failed to read input")
	}
	return strings.ToLower(strings.TrimSpace(scanner.Text())) == "yes", nil
}

func (a *admin) resetSchema(ctx context.Context) error {
	fmt.Fprintln(a.out, "WARNING: This will delete all rate history in the database!")
	ok, err := a.confirm("Are you sure you want to continue?")
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(a.out, "Operation cancelled.")
		return nil
	}

	fmt.Fprintln(a.out, "\nResetting PostgreSQL schema...")
	a.printTarget()

	db, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.Connection().ExecContext(ctx, dropSchemaSQL); err != nil {
		return fmt.Errorf("failed to drop tables: %w", err)
	}
	fmt.Fprintln(a.out, "✓ Dropped existing tables")

	if err := db.InitSchema(ctx); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	fmt.Fprintln(a.out, "✓ Schema recreated successfully")

	fmt.Fprintln(a.out, "\nDatabase schema reset complete!")
	return nil
}

func (a *admin) showStatus(ctx context.Context) error {
	fmt.Fprintln(a.out, "PostgreSQL Rate History Status")
	fmt.Fprintln(a.out, "==============================")
	fmt.Fprintf(a.out, "Host:     %s:%d\n", a.config.Host, a.config.Port)
	fmt.Fprintf(a.out, "Database: %s\n", a.config.Database)
	fmt.Fprintf(a.out, "User:     %s\n\n", a.config.User)

	start := time.Now()
	db, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	fmt.Fprintf(a.out, "Connection: ✓ (latency: %v)\n", time.Since(start))

	var version string
	if err := db.Connection().QueryRowContext(ctx, "SELECT version()").Scan(&version); err != nil {
		return fmt.Errorf("failed to get version: %w", err)
	}
	if len(version) > 80 {
		version = version[:77] + "..."
	}
	fmt.Fprintf(a.out, "Version:    %s\n\n", version)

	exists, err := tableExists(ctx, db, tableRateHistory)
	if err != nil {
		return fmt.Errorf("failed to check table %s: %w", tableRateHistory, err)
	}
	if !exists {
		fmt.Fprintf(a.out, "%s: ✗ (does not exist)\n", tableRateHistory)
		return nil
	}

	var count, seriesCount int64
	var oldest, newest *int64
	err = db.Connection().QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT series), MIN(ts_millis), MAX(ts_millis)
		FROM dtnview_rate_history
	`).Scan(&count, &seriesCount, &oldest, &newest)
	if err != nil {
		return fmt.Errorf("failed to read history statistics: %w", err)
	}
	fmt.Fprintf(a.out, "%s: ✓ (%d points in %d series)\n", tableRateHistory, count, seriesCount)
	if oldest != nil && newest != nil {
		fmt.Fprintf(a.out, "Oldest:     %s\n", formatMillis(*oldest))
		fmt.Fprintf(a.out, "Newest:     %s\n", formatMillis(*newest))
	}

	var dbSize string
	err = db.Connection().QueryRowContext(ctx,
		"SELECT pg_size_pretty(pg_database_size($1))", a.config.Database).Scan(&dbSize)
	if err == nil {
		fmt.Fprintf(a.out, "\nDatabase Size: %s\n", dbSize)
	}
	return nil
}

func (a *admin) listSeries(ctx context.Context) error {
	db, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	series, err := db.ListRateSeries(ctx)
	if err != nil {
		return err
	}
	for _, s := range series {
		fmt.Fprintln(a.out, s)
	}
	fmt.Fprintf(a.out, "\n%d series\n", len(series))
	return nil
}

func (a *admin) prune(ctx context.Context) error {
	if a.olderThan <= 0 {
		return fmt.Errorf("--older-than must be positive")
	}
	now := time.Now
	if a.now != nil {
		now = a.now
	}
	before := now().Add(-a.olderThan).UnixMilli()

	db, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := db.DeleteRatePointsBefore(ctx, before)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "✓ Deleted %d points older than %s\n", n, formatMillis(before))
	return nil
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

func tableExists(ctx context.Context, db *postgres.DB, tableName string) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_schema = 'public'
			AND table_name = $1
		)
	`
	err := db.Connection().QueryRowContext(ctx, query, tableName).Scan(&exists)
	return exists, err
}

func indexExists(ctx context.Context, db *postgres.DB, tableName, indexName string) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT FROM pg_indexes
			WHERE schemaname = 'public'
			AND tablename = $1
			AND indexname = $2
		)
	`
	err := db.Connection().QueryRowContext(ctx, query, tableName, indexName).Scan(&exists)
	return exists, err
}
