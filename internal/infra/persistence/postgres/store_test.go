package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"popgraph/internal/entitymodel/sqlbundle"
	"popgraph/internal/infra/persistence/storetest"
	"popgraph/pkg/domain"
)

func TestNewStoreAppliesPostgresDDL(t *testing.T) {
	db, conn := newStubDB()
	restore := OverrideSQLOpen(func(driverName, dsn string) (*sql.DB, error) {
		if driverName != "pgx" || dsn != defaultDSN {
			t.Fatalf("unexpected open(%q, %q)", driverName, dsn)
		}
		return db, nil
	})
	defer restore()

	s, err := NewStore(context.Background(), "")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer func() { _ = s.Close() }()
	want := sqlbundle.SplitStatements(sqlbundle.Postgres())
	got := conn.statements()
	if len(got) != len(want) {
		t.Fatalf("expected %d DDL statements, got %d", len(want), len(got))
	}
	for i := range want {
		if strings.TrimSpace(got[i]) != strings.TrimSpace(want[i]) {
			t.Fatalf("statement %d mismatch:\nwant: %s\ngot:  %s", i, want[i], got[i])
		}
	}
}

func TestNewStoreFailures(t *testing.T) {
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return nil, errors.New("dial") })
	if _, err := NewStore(context.Background(), "postgres://x"); err == nil || !strings.Contains(err.Error(), "open postgres") {
		t.Fatalf("expected open error, got %v", err)
	}
	restore()

	db, conn := newStubDB()
	conn.failPing = true
	restore = OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	defer restore()
	if _, err := NewStore(context.Background(), "postgres://x"); err == nil || !strings.Contains(err.Error(), "ping postgres") {
		t.Fatalf("expected ping error, got %v", err)
	}

	db, conn = newStubDB()
	conn.failExec = true
	restore2 := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	defer restore2()
	if _, err := NewStore(context.Background(), "postgres://x"); err == nil || !strings.Contains(err.Error(), "execute ddl") {
		t.Fatalf("expected ddl error, got %v", err)
	}
}

// TestContractIntegration runs against a live server when
// POPGRAPH_TEST_POSTGRES_DSN points at a disposable database.
func TestContractIntegration(t *testing.T) {
	dsn := os.Getenv("POPGRAPH_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("POPGRAPH_TEST_POSTGRES_DSN not set")
	}
	storetest.Run(t, func(t *testing.T) domain.DatasetStore {
		ctx := context.Background()
		s, err := NewStore(ctx, dsn)
		if err != nil {
			t.Fatalf("NewStore: %v", err)
		}
		if _, err := s.DB().ExecContext(ctx, `TRUNCATE datasets, dataset_rows RESTART IDENTITY CASCADE`); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		return s
	})
}

type stubConn struct {
	mu       sync.Mutex
	execs    []string
	failPing bool
	failExec bool
}

func (c *stubConn) statements() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.execs...)
}

type stubDriver struct{ conn *stubConn }

func (d *stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

func newStubDB() (*sql.DB, *stubConn) {
	conn := &stubConn{}
	name := fmt.Sprintf("stubpg%d", time.Now().UnixNano())
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db, conn
}

func (c *stubConn) Prepare(string) (driver.Stmt, error) { return nil, fmt.Errorf("not implemented") }
func (c *stubConn) Close() error                        { return nil }
func (c *stubConn) Begin() (driver.Tx, error)           { return nil, fmt.Errorf("not implemented") }

func (c *stubConn) Ping(context.Context) error {
	if c.failPing {
		return fmt.Errorf("ping fail")
	}
	return nil
}

func (c *stubConn) ExecContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failExec {
		return nil, fmt.Errorf("exec fail")
	}
	c.execs = append(c.execs, query)
	return driver.RowsAffected(0), nil
}
