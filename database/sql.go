// Package database provides SQL and Redis client utilities.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/microsoft/go-mssqldb"         // SQL Server driver
	_ "github.com/microsoft/go-mssqldb/azuread" // Azure AD auth
	_ "modernc.org/sqlite"                      // SQLite driver
)

// Driver names a supported SQL backend.
type Driver string

// Supported drivers.
const (
	DriverSQLite    Driver = "sqlite"
	DriverSQLServer Driver = "sqlserver"
)

// ParseDriver validates a driver name.
func ParseDriver(name string) (Driver, error) {
	switch Driver(strings.ToLower(name)) {
	case "", DriverSQLite:
		return DriverSQLite, nil
	case DriverSQLServer:
		return DriverSQLServer, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", name)
	}
}

// driverName is the name registered with database/sql.
func (d Driver) driverName() string {
	if d == DriverSQLServer {
		// go-mssqldb/azuread registers this name and accepts fedauth DSNs.
		return "azuresql"
	}
	return "sqlite"
}

// SQLConfig holds SQL connection configuration.
type SQLConfig struct {
	Driver       Driver
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

// DefaultSQLConfig returns sensible defaults.
func DefaultSQLConfig() SQLConfig {
	return SQLConfig{
		Driver:       DriverSQLite,
		DSN:          "file:sinkhole.db",
		MaxOpenConns: 25,
		MaxIdleConns: 5,
		MaxLifetime:  5 * time.Minute,
	}
}

// SQLClient wraps a SQL database connection.
type SQLClient struct {
	db     *sql.DB
	config SQLConfig
}

// NewSQLClient opens and pings a database.
func NewSQLClient(ctx context.Context, config SQLConfig) (*SQLClient, error) {
	if config.Driver == "" {
		config.Driver = DriverSQLite
	}

	db, err := sql.Open(config.Driver.driverName(), config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if config.Driver == DriverSQLite {
		// One connection keeps ":memory:" databases shared and serializes
		// writers.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(config.MaxOpenConns)
		db.SetMaxIdleConns(config.MaxIdleConns)
	}
	db.SetConnMaxLifetime(config.MaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if config.Driver == DriverSQLite {
		for _, pragma := range []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA busy_timeout=5000",
			"PRAGMA foreign_keys=ON",
		} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				db.Close()
				return nil, fmt.Errorf("sqlite: exec %s: %w", pragma, err)
			}
		}
	}

	return &SQLClient{
		db:     db,
		config: config,
	}, nil
}

// DB returns the underlying sql.DB instance.
func (c *SQLClient) DB() *sql.DB {
	return c.db
}

// Driver returns the backend in use.
func (c *SQLClient) Driver() Driver {
	return c.config.Driver
}

// Rebind rewrites "?" placeholders into the driver's syntax.
func (c *SQLClient) Rebind(query string) string {
	return Rebind(c.config.Driver, query)
}

// Rebind rewrites "?" placeholders into @p1, @p2... for SQL Server and
// leaves other queries untouched. Placeholders inside quoted literals are
// not expected.
func Rebind(driver Driver, query string) string {
	if driver != DriverSQLServer {
		return query
	}

	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			sb.WriteString("@p")
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteByte(query[i])
	}
	return sb.String()
}

// Ping checks the database connection.
func (c *SQLClient) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close closes the database connection.
func (c *SQLClient) Close() error {
	return c.db.Close()
}

// Exec executes a query without returning results.
func (c *SQLClient) Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return c.db.ExecContext(ctx, c.Rebind(query), args...)
}

// Query executes a query and returns rows.
func (c *SQLClient) Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return c.db.QueryContext(ctx, c.Rebind(query), args...)
}

// QueryRow executes a query and returns a single row.
func (c *SQLClient) QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return c.db.QueryRowContext(ctx, c.Rebind(query), args...)
}

// Transaction represents a database transaction.
type Transaction struct {
	tx     *sql.Tx
	driver Driver
}

// Begin starts a new transaction.
func (c *SQLClient) Begin(ctx context.Context) (*Transaction, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &Transaction{tx: tx, driver: c.config.Driver}, nil
}

// Commit commits the transaction.
func (t *Transaction) Commit() error {
	return t.tx.Commit()
}

// Rollback rolls back the transaction.
func (t *Transaction) Rollback() error {
	return t.tx.Rollback()
}

// Exec executes a query in the transaction.
func (t *Transaction) Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return t.tx.ExecContext(ctx, Rebind(t.driver, query), args...)
}

// QueryRow executes a query in the transaction and returns a single row.
func (t *Transaction) QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return t.tx.QueryRowContext(ctx, Rebind(t.driver, query), args...)
}

// WithTransaction executes a function within a transaction.
// If the function returns an error, the transaction is rolled back.
// Otherwise, it's committed.
func (c *SQLClient) WithTransaction(ctx context.Context, fn func(*Transaction) error) error {
	tx, err := c.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	return tx.Commit()
}

// Timestamp scans DATETIME columns from either driver. SQL Server returns
// time.Time, SQLite may return text.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	time.DateTime,
	time.RFC3339Nano,
}

// Scan implements sql.Scanner.
func (t *Timestamp) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		t.Time = time.Time{}
		return nil
	case time.Time:
		t.Time = v
		return nil
	case []byte:
		return t.Scan(string(v))
	case string:
		for _, layout := range timestampLayouts {
			if parsed, err := time.Parse(layout, v); err == nil {
				t.Time = parsed
				return nil
			}
		}
		return fmt.Errorf("unrecognized timestamp %q", v)
	default:
		return fmt.Errorf("cannot scan %T into Timestamp", value)
	}
}

// Stats returns database statistics.
func (c *SQLClient) Stats() sql.DBStats {
	return c.db.Stats()
}

// Retry-enabled operations

// ExecWithRetry executes a query with retry logic.
func (c *SQLClient) ExecWithRetry(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	var result sql.Result
	err := RetrySQLOperation(ctx, func() error {
		var execErr error
		result, execErr = c.Exec(ctx, query, args...)
		return execErr
	})
	return result, err
}

// QueryRowWithRetry executes a query with retry and returns a scanner.
// sql.Row cannot be retried after creation, so the query runs on Scan.
func (c *SQLClient) QueryRowWithRetry(ctx context.Context, query string, args ...interface{}) *RetryableRow {
	return &RetryableRow{
		client: c,
		ctx:    ctx,
		query:  query,
		args:   args,
	}
}

// RetryableRow wraps a row query with retry capability.
type RetryableRow struct {
	client *SQLClient
	ctx    context.Context
	query  string
	args   []interface{}
}

// Scan executes the query with retry and scans the result.
func (r *RetryableRow) Scan(dest ...interface{}) error {
	return RetrySQLOperation(r.ctx, func() error {
		return r.client.QueryRow(r.ctx, r.query, r.args...).Scan(dest...)
	})
}
