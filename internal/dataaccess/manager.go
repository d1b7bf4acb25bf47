// Package dataaccess provides transactional SQL scopes for portal handlers.
// A Manager opens one transaction per portal operation; handlers reach it
// through the context with FromContext.
package dataaccess

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"bizcore/pkg/portal"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "modernc.org/sqlite"             // pure go sqlite driver
)

// Driver identifies a SQL backend.
type Driver string

const (
	// DriverNone opens scopes without a database.
	DriverNone Driver = "none"
	// DriverSQLite uses an embedded sqlite file.
	DriverSQLite Driver = "sqlite"
	// DriverPostgres uses a PostgreSQL server through pgx.
	DriverPostgres Driver = "postgres"
)

const (
	defaultSQLitePath = "bizcore.db"
	defaultDSN        = "postgres://localhost/bizcore?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Options selects and configures the backend.
type Options struct {
	Driver      Driver `yaml:"driver"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// Logger receives scope lifecycle messages.
type Logger interface {
	Debug(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Error(string, ...any) {}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the scope logger.
func WithLogger(logger Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// Manager implements portal.Resources on a *sql.DB.
type Manager struct {
	db     *sql.DB
	driver Driver
	logger Logger
}

var _ portal.Resources = (*Manager)(nil)

// Open connects to the configured backend. DriverNone, or an empty driver,
// yields a Manager whose scopes carry no transaction.
func Open(ctx context.Context, opts Options, mopts ...Option) (*Manager, error) {
	switch opts.Driver {
	case "", DriverNone:
		return NewManager(nil, DriverNone, mopts...), nil
	case DriverSQLite:
		db, err := openSQLite(opts.SQLitePath)
		if err != nil {
			return nil, err
		}
		return NewManager(db, DriverSQLite, mopts...), nil
	case DriverPostgres:
		db, err := openPostgres(ctx, opts.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return NewManager(db, DriverPostgres, mopts...), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}

// NewManager wraps an open database.
func NewManager(db *sql.DB, driver Driver, opts ...Option) *Manager {
	m := &Manager{db: db, driver: driver, logger: noopLogger{}}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func openSQLite(path string) (*sql.DB, error) {
	if path == "" {
		path = defaultSQLitePath
	}
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	openMu.Lock()
	db, err := sqlOpen("sqlite", path)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return db, nil
}

func openPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen("pgx", dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// OverrideSQLOpen swaps the sql.Open function for tests and returns a restore
// function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}

// Driver returns the backend in use.
func (m *Manager) Driver() Driver { return m.driver }

// DB exposes the underlying database, nil for DriverNone.
func (m *Manager) DB() *sql.DB { return m.db }

// Close releases the database.
func (m *Manager) Close() error {
	if m.db == nil {
		return nil
	}
	return m.db.Close()
}

// Migrate runs DDL statements outside any scope. Statements use ? placeholders
// regardless of driver.
func (m *Manager) Migrate(ctx context.Context, stmts ...string) error {
	if m.db == nil {
		return nil
	}
	for _, stmt := range stmts {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := m.db.ExecContext(ctx, Rebind(m.driver, stmt)); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Begin implements portal.Resources. A scope opened while the context already
// carries one from this manager joins it: only the outermost scope commits, and
// any failed inner scope forces a rollback.
func (m *Manager) Begin(ctx context.Context, op portal.Operation, typeName string) (context.Context, portal.Scope, error) {
	if tx, ok := FromContext(ctx); ok && tx.owner == m {
		tx.depth++
		return ctx, &scope{tx: tx, nested: true}, nil
	}
	tx := &Tx{owner: m, driver: m.driver, op: op, typeName: typeName, depth: 1}
	if m.db != nil {
		sqlTx, err := m.db.BeginTx(ctx, nil)
		if err != nil {
			return ctx, nil, fmt.Errorf("begin %s %s: %w", op, typeName, err)
		}
		tx.tx = sqlTx
	}
	m.logger.Debug("scope opened", "operation", string(op), "type", typeName, "driver", string(m.driver))
	return context.WithValue(ctx, txKey{}, tx), &scope{tx: tx}, nil
}

type scope struct {
	tx     *Tx
	nested bool
	done   bool
}

func (s *scope) Complete(err error) error {
	if s.done {
		return nil
	}
	s.done = true
	t := s.tx
	if err != nil {
		t.rollbackOnly = true
	}
	t.depth--
	if s.nested {
		return nil
	}
	if t.tx == nil {
		return nil
	}
	if t.rollbackOnly {
		if rbErr := t.tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			t.owner.logger.Error("scope rollback failed", "operation", string(t.op), "type", t.typeName, "error", rbErr)
			return fmt.Errorf("rollback %s %s: %w", t.op, t.typeName, rbErr)
		}
		t.owner.logger.Debug("scope rolled back", "operation", string(t.op), "type", t.typeName)
		return nil
	}
	if cErr := t.tx.Commit(); cErr != nil {
		t.owner.logger.Error("scope commit failed", "operation", string(t.op), "type", t.typeName, "error", cErr)
		return fmt.Errorf("commit %s %s: %w", t.op, t.typeName, cErr)
	}
	t.owner.logger.Debug("scope committed", "operation", string(t.op), "type", t.typeName)
	return nil
}

// Rebind rewrites ? placeholders to $n for postgres. Question marks inside
// single quoted literals are left alone.
func Rebind(driver Driver, query string) string {
	if driver != DriverPostgres || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	quoted := false
	for _, r := range query {
		switch {
		case r == '\'':
			quoted = !quoted
			b.WriteRune(r)
		case r == '?' && !quoted:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
