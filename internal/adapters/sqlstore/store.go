// Package sqlstore implements the persistence gateway on database/sql with
// PostgreSQL (lib/pq) and SQLite (go-sqlite3) drivers.
package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/dogwifhat6/supplychain-lens/internal/domain"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Config holds connection pool settings.
type Config struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	CommandTimeout  time.Duration
}

// Store implements output.PersistenceGateway.
type Store struct {
	db      *sql.DB
	driver  string
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// Open connects to the database and verifies the connection.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if cfg.Driver != DriverPostgres && cfg.Driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, &domain.StorageError{Operation: "open", Key: cfg.Driver, Err: err}
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	s := &Store{
		db:      db,
		driver:  cfg.Driver,
		timeout: cfg.CommandTimeout,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}

	if err := s.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("database connected",
		"driver", cfg.Driver,
		"max_open_conns", cfg.MaxOpenConns,
		"max_idle_conns", cfg.MaxIdleConns,
	)
	return s, nil
}

// Migrate applies the embedded schema. Statements are idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	ddl, err := schemaFS.ReadFile("schema/" + s.driver + ".sql")
	if err != nil {
		return fmt.Errorf("reading schema: %w", err)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	for _, stmt := range strings.Split(string(ddl), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return &domain.StorageError{Operation: "migrate", Err: err}
		}
	}

	s.logger.Info("database schema applied", "driver", s.driver)
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		return &domain.StorageError{Operation: "ping", Err: fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)}
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying pool.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// rebind rewrites ? placeholders into the driver's positional form.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// dateExpr formats a timestamp column as YYYY-MM-DD.
func (s *Store) dateExpr(column string) string {
	if s.driver == DriverPostgres {
		return "to_char(" + column + " AT TIME ZONE 'UTC', 'YYYY-MM-DD')"
	}
	return "strftime('%Y-%m-%d', " + column + ")"
}

func queryErr(op string, err error) error {
	return &domain.StorageError{Operation: op, Err: err}
}
