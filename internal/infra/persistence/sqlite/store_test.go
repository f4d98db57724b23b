package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"popgraph/internal/infra/persistence/storetest"
	"popgraph/pkg/domain"
)

func TestContractFile(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.DatasetStore {
		s, err := NewStore(context.Background(), filepath.Join(t.TempDir(), "nested", "popgraph.db"))
		if err != nil {
			t.Fatalf("new store: %v", err)
		}
		return s
	})
}

func TestContractInMemory(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.DatasetStore {
		s, err := NewStore(context.Background(), MemoryPath)
		if err != nil {
			t.Fatalf("new store: %v", err)
		}
		return s
	})
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "popgraph.db")
	s, err := NewStore(ctx, path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	res, err := s.UpsertByFingerprint(ctx, "fp", "a.xlsx", storetest.Fixture(2))
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	s, err = NewStore(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = s.Close() }()
	if s.Path() != path {
		t.Fatalf("path=%q", s.Path())
	}
	ds, rows, err := s.Rows(ctx, nil)
	if err != nil || ds.ID != res.DatasetID || len(rows) != 2 {
		t.Fatalf("data lost across reopen: %+v %d %v", ds, len(rows), err)
	}
}

func TestForeignKeysEnforced(t *testing.T) {
	ctx := context.Background()
	s, err := NewStore(ctx, MemoryPath)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer func() { _ = s.Close() }()
	_, err = s.DB().ExecContext(ctx, `INSERT INTO dataset_rows (dataset_id, time_code, age_bracket, total, male, female) VALUES (42, '', '', 0, 0, 0)`)
	if err == nil {
		t.Fatalf("expected orphan row insert to violate the foreign key")
	}
}

func TestOpenFailure(t *testing.T) {
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return nil, errors.New("boom") })
	defer restore()
	if _, err := NewStore(context.Background(), MemoryPath); err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected open error, got %v", err)
	}
}

func TestDSN(t *testing.T) {
	got := dsn("data/pop.db")
	if !strings.HasPrefix(got, "file:data/pop.db?") || !strings.Contains(got, "foreign_keys%281%29") || !strings.Contains(got, "journal_mode") {
		t.Fatalf("unexpected dsn %q", got)
	}
	if mem := dsn(MemoryPath); strings.Contains(mem, "journal_mode") {
		t.Fatalf("memory dsn should not request WAL: %q", mem)
	}
}
