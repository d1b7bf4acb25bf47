package dataaccess

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"bizcore/internal/dataaccess/testutil"
	"bizcore/pkg/portal"
)

func openSQLiteManager(t *testing.T) *Manager {
	t.Helper()
	m, err := Open(context.Background(), Options{Driver: DriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "scope.db")})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	if err := m.Migrate(context.Background(), `CREATE TABLE notes (id TEXT PRIMARY KEY, body TEXT NOT NULL)`); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return m
}

func countNotes(t *testing.T, m *Manager) int {
	t.Helper()
	var n int
	if err := m.DB().QueryRow(`SELECT COUNT(*) FROM notes`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func insertNote(ctx context.Context, id string) error {
	tx, ok := FromContext(ctx)
	if !ok {
		return errors.New("no scope")
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO notes (id, body) VALUES (?, ?)`, id, "body "+id)
	return err
}

func TestSQLiteScopeCommits(t *testing.T) {
	m := openSQLiteManager(t)
	ctx, scope, err := m.Begin(context.Background(), portal.OperationUpdate, "test.Note")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := insertNote(ctx, "a"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	var body string
	tx, _ := FromContext(ctx)
	if err := tx.QueryRowContext(ctx, `SELECT body FROM notes WHERE id = ?`, "a").Scan(&body); err != nil || body != "body a" {
		t.Fatalf("read inside scope: %q %v", body, err)
	}
	if err := scope.Complete(nil); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got := countNotes(t, m); got != 1 {
		t.Fatalf("expected committed row, got %d", got)
	}
	if err := scope.Complete(nil); err != nil {
		t.Fatalf("second complete must be a no-op: %v", err)
	}
}

func TestSQLiteScopeRollsBackOnFailure(t *testing.T) {
	m := openSQLiteManager(t)
	ctx, scope, err := m.Begin(context.Background(), portal.OperationUpdate, "test.Note")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := insertNote(ctx, "a"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := scope.Complete(errors.New("child handler failed")); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got := countNotes(t, m); got != 0 {
		t.Fatalf("expected rollback, got %d rows", got)
	}
}

func TestNestedScopeFailureRollsBackOuter(t *testing.T) {
	m := openSQLiteManager(t)
	outerCtx, outer, err := m.Begin(context.Background(), portal.OperationUpdate, "test.Note")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := insertNote(outerCtx, "outer"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	innerCtx, inner, err := m.Begin(outerCtx, portal.OperationUpdate, "test.Note")
	if err != nil {
		t.Fatalf("nested begin: %v", err)
	}
	outerTx, _ := FromContext(outerCtx)
	innerTx, _ := FromContext(innerCtx)
	if outerTx != innerTx || innerTx.Depth() != 2 {
		t.Fatalf("nested scope must join the outer transaction")
	}
	if err := insertNote(innerCtx, "inner"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := inner.Complete(errors.New("boom")); err != nil {
		t.Fatalf("inner complete: %v", err)
	}
	if err := outer.Complete(nil); err != nil {
		t.Fatalf("outer complete: %v", err)
	}
	if got := countNotes(t, m); got != 0 {
		t.Fatalf("inner failure must roll back the whole scope, got %d rows", got)
	}
}

func TestNoneDriverScopes(t *testing.T) {
	m, err := Open(context.Background(), Options{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if m.Driver() != DriverNone || m.DB() != nil {
		t.Fatalf("expected database-less manager")
	}
	ctx, scope, err := m.Begin(context.Background(), portal.OperationFetch, "test.Note")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	tx, ok := FromContext(ctx)
	if !ok || tx.Operation() != portal.OperationFetch {
		t.Fatalf("scope must still be reachable")
	}
	if _, err := tx.ExecContext(ctx, `SELECT 1`); !errors.Is(err, ErrNoDatabase) {
		t.Fatalf("expected ErrNoDatabase, got %v", err)
	}
	var n int
	if err := tx.QueryRowContext(ctx, `SELECT 1`).Scan(&n); !errors.Is(err, ErrNoDatabase) {
		t.Fatalf("expected ErrNoDatabase from row, got %v", err)
	}
	if err := scope.Complete(nil); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := m.Migrate(context.Background(), "CREATE TABLE x (id INT)"); err != nil {
		t.Fatalf("migrate without database must be a no-op: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestPostgresThroughPgxDriver(t *testing.T) {
	db, conn := testutil.NewStubDB()
	var gotDriver, gotDSN string
	restore := OverrideSQLOpen(func(driverName, dsn string) (*sql.DB, error) {
		gotDriver, gotDSN = driverName, dsn
		return db, nil
	})
	defer restore()

	m, err := Open(context.Background(), Options{Driver: DriverPostgres})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if gotDriver != "pgx" || gotDSN != defaultDSN {
		t.Fatalf("unexpected open %s %s", gotDriver, gotDSN)
	}
	if err := m.Migrate(context.Background(), `CREATE TABLE notes (id TEXT PRIMARY KEY)`, "  "); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	ctx, outer, _ := m.Begin(context.Background(), portal.OperationUpdate, "test.Note")
	innerCtx, inner, _ := m.Begin(ctx, portal.OperationUpdate, "test.Note")
	if err := insertNote(innerCtx, "a"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	_ = inner.Complete(nil)
	if commits, _ := conn.Outcomes(); commits != 0 {
		t.Fatalf("inner scope must not commit")
	}
	if err := outer.Complete(nil); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if commits, rollbacks := conn.Outcomes(); commits != 1 || rollbacks != 0 {
		t.Fatalf("expected one commit, got %d/%d", commits, rollbacks)
	}
	stmts := conn.Statements()
	if len(stmts) != 2 || stmts[1] != `INSERT INTO notes (id, body) VALUES ($1, $2)` {
		t.Fatalf("unexpected statements %q", stmts)
	}

	ctx, scope, _ := m.Begin(context.Background(), portal.OperationUpdate, "test.Note")
	tx, _ := FromContext(ctx)
	tx.MarkRollback()
	_ = scope.Complete(nil)
	if _, rollbacks := conn.Outcomes(); rollbacks != 1 {
		t.Fatalf("expected marked rollback")
	}
}

func TestPostgresFailures(t *testing.T) {
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	defer restore()

	conn.FailPing = true
	if _, err := Open(context.Background(), Options{Driver: DriverPostgres, PostgresDSN: "postgres://db/x"}); err == nil || !strings.Contains(err.Error(), "ping") {
		t.Fatalf("expected ping error, got %v", err)
	}

	db2, conn2 := testutil.NewStubDB()
	m := NewManager(db2, DriverPostgres)
	conn2.FailBegin = true
	if _, _, err := m.Begin(context.Background(), portal.OperationUpdate, "test.Note"); err == nil {
		t.Fatalf("expected begin error")
	}
	conn2.FailBegin = false
	conn2.FailCommit = true
	_, scope, err := m.Begin(context.Background(), portal.OperationUpdate, "test.Note")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := scope.Complete(nil); err == nil || !strings.Contains(err.Error(), "commit") {
		t.Fatalf("expected commit error, got %v", err)
	}
	conn2.FailExec = true
	if err := m.Migrate(context.Background(), "CREATE TABLE t (id INT)"); err == nil {
		t.Fatalf("expected migrate error")
	}
}

func TestUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), Options{Driver: "mysql"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}

func TestRebind(t *testing.T) {
	tests := []struct {
		driver Driver
		in     string
		want   string
	}{
		{DriverPostgres, "SELECT * FROM t WHERE a = ? AND b = ?", "SELECT * FROM t WHERE a = $1 AND b = $2"},
		{DriverPostgres, "SELECT '?' FROM t WHERE a = ?", "SELECT '?' FROM t WHERE a = $1"},
		{DriverPostgres, "SELECT 1", "SELECT 1"},
		{DriverSQLite, "SELECT * FROM t WHERE a = ?", "SELECT * FROM t WHERE a = ?"},
	}
	for _, tt := range tests {
		if got := Rebind(tt.driver, tt.in); got != tt.want {
			t.Errorf("Rebind(%s, %q) = %q, want %q", tt.driver, tt.in, got, tt.want)
		}
	}
}

func TestSQLiteOpenGoesThroughOverride(t *testing.T) {
	db, conn := testutil.NewStubDB()
	var gotDriver, gotDSN string
	restore := OverrideSQLOpen(func(driverName, dsn string) (*sql.DB, error) {
		gotDriver, gotDSN = driverName, dsn
		return db, nil
	})
	defer restore()

	path := filepath.Join(t.TempDir(), "nested", "seam.db")
	m, err := Open(context.Background(), Options{Driver: DriverSQLite, SQLitePath: path})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if m.Driver() != DriverSQLite || gotDriver != "sqlite" || gotDSN != path {
		t.Fatalf("unexpected open %s %s", gotDriver, gotDSN)
	}
	if stmts := conn.Statements(); len(stmts) != 1 || stmts[0] != "PRAGMA foreign_keys = ON" {
		t.Fatalf("expected foreign key pragma, got %v", stmts)
	}

	restoreFail := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return nil, errors.New("no driver") })
	defer restoreFail()
	if _, err := Open(context.Background(), Options{Driver: DriverSQLite, SQLitePath: path}); err == nil || !strings.Contains(err.Error(), "open sqlite") {
		t.Fatalf("expected open sqlite error, got %v", err)
	}
}
