// Package sqlstore implements domain.DatasetStore over database/sql. Engine
// adapters supply a Dialect and an opened *sql.DB.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"popgraph/internal/entitymodel/sqlbundle"
	"popgraph/pkg/domain"
)

var _ domain.DatasetStore = (*Store)(nil)

// rowBatch bounds the rows per multi-row INSERT, keeping the bound parameter
// count under every supported engine's limit.
const rowBatch = 200

// Store is a relational DatasetStore.
type Store struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// New wraps db. Call Migrate before first use.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect, now: time.Now}
}

// DB exposes the pool for adapter tests.
func (s *Store) DB() *sql.DB { return s.db }

// SetClock overrides the creation timestamp source.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// Migrate applies the dialect DDL. Statements are idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	return ApplyDDL(ctx, s.db, s.dialect.DDL)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ApplyDDL executes every statement of ddl in order.
func ApplyDDL(ctx context.Context, db execer, ddl string) error {
	for _, stmt := range sqlbundle.SplitStatements(ddl) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute ddl: %w", err)
		}
	}
	return nil
}

// Close closes the pool.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) persistenceErr(op, fingerprint string, id int64, err error) error {
	return &domain.Error{Kind: domain.ErrPersistence, Op: op, Fingerprint: fingerprint, DatasetID: id, Err: err}
}

// UpsertByFingerprint locates or creates the dataset for fingerprint, deletes
// its rows and inserts rows, all in one transaction.
func (s *Store) UpsertByFingerprint(ctx context.Context, fingerprint, name string, rows []domain.Row) (res domain.UpsertResult, err error) {
	if strings.TrimSpace(fingerprint) == "" {
		return res, s.persistenceErr("upsert", fingerprint, 0, errors.New("empty fingerprint"))
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, s.persistenceErr("upsert", fingerprint, 0, fmt.Errorf("begin: %w", err))
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if s.dialect.LockFingerprint != nil {
		if err := s.dialect.LockFingerprint(ctx, tx, fingerprint); err != nil {
			return res, s.persistenceErr("upsert", fingerprint, 0, err)
		}
	}

	var id int64
	err = tx.QueryRowContext(ctx, s.dialect.rebind(`SELECT id FROM datasets WHERE fingerprint = ?`), fingerprint).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if err := tx.QueryRowContext(ctx,
			s.dialect.rebind(`INSERT INTO datasets (fingerprint, name, created_at) VALUES (?, ?, ?) RETURNING id`),
			fingerprint, nullString(name), s.dialect.timeArg(s.now()),
		).Scan(&id); err != nil {
			return res, s.persistenceErr("upsert", fingerprint, 0, fmt.Errorf("insert dataset: %w", err))
		}
		res.Created = true
	case err != nil:
		return res, s.persistenceErr("upsert", fingerprint, 0, fmt.Errorf("find dataset: %w", err))
	default:
		if _, err := tx.ExecContext(ctx, s.dialect.rebind(`DELETE FROM dataset_rows WHERE dataset_id = ?`), id); err != nil {
			return res, s.persistenceErr("upsert", fingerprint, id, fmt.Errorf("delete rows: %w", err))
		}
	}
	res.DatasetID = id

	if err := s.insertRows(ctx, tx, id, rows); err != nil {
		return res, s.persistenceErr("upsert", fingerprint, id, err)
	}
	if err := tx.Commit(); err != nil {
		return res, s.persistenceErr("upsert", fingerprint, id, fmt.Errorf("commit: %w", err))
	}
	committed = true
	res.RowCount = len(rows)
	return res, nil
}

func (s *Store) insertRows(ctx context.Context, tx *sql.Tx, datasetID int64, rows []domain.Row) error {
	for start := 0; start < len(rows); start += rowBatch {
		end := min(start+rowBatch, len(rows))
		chunk := rows[start:end]
		var b strings.Builder
		b.WriteString(`INSERT INTO dataset_rows (dataset_id, time_code, age_bracket, total, male, female) VALUES `)
		args := make([]any, 0, len(chunk)*6)
		for i, r := range chunk {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString("(?, ?, ?, ?, ?, ?)")
			args = append(args, datasetID, r.TimeCode, r.AgeBracket, r.Total, r.Male, r.Female)
		}
		if _, err := tx.ExecContext(ctx, s.dialect.rebind(b.String()), args...); err != nil {
			return fmt.Errorf("insert rows %d-%d: %w", start, end, err)
		}
	}
	return nil
}

const datasetColumns = `id, fingerprint, name, created_at`

func (s *Store) scanDataset(sc interface{ Scan(...any) error }) (domain.Dataset, error) {
	var (
		ds      domain.Dataset
		name    sql.NullString
		created any
	)
	if err := sc.Scan(&ds.ID, &ds.Fingerprint, &name, &created); err != nil {
		return ds, err
	}
	t, err := scanTime(created)
	if err != nil {
		return ds, err
	}
	ds.Name = name.String
	ds.CreatedAt = t
	return ds, nil
}

func (s *Store) resolveDataset(ctx context.Context, datasetID *int64) (domain.Dataset, error) {
	var row *sql.Row
	if datasetID == nil {
		row = s.db.QueryRowContext(ctx, `SELECT `+datasetColumns+` FROM datasets ORDER BY created_at DESC, id DESC LIMIT 1`)
	} else {
		row = s.db.QueryRowContext(ctx, s.dialect.rebind(`SELECT `+datasetColumns+` FROM datasets WHERE id = ?`), *datasetID)
	}
	ds, err := s.scanDataset(row)
	if errors.Is(err, sql.ErrNoRows) {
		if datasetID == nil {
			return ds, fmt.Errorf("%w: no datasets", domain.ErrNoData)
		}
		return ds, domain.ErrNotFound{Entity: domain.EntityDataset, ID: *datasetID}
	}
	if err != nil {
		return ds, s.persistenceErr("resolve dataset", "", 0, err)
	}
	return ds, nil
}

// Rows returns the resolved dataset and its rows in id order.
func (s *Store) Rows(ctx context.Context, datasetID *int64) (domain.Dataset, []domain.Row, error) {
	ds, err := s.resolveDataset(ctx, datasetID)
	if err != nil {
		return ds, nil, err
	}
	rs, err := s.db.QueryContext(ctx,
		s.dialect.rebind(`SELECT id, dataset_id, time_code, age_bracket, total, male, female FROM dataset_rows WHERE dataset_id = ? ORDER BY id ASC`),
		ds.ID)
	if err != nil {
		return ds, nil, s.persistenceErr("read rows", ds.Fingerprint, ds.ID, err)
	}
	defer func() { _ = rs.Close() }()
	out := make([]domain.Row, 0)
	for rs.Next() {
		var r domain.Row
		if err := rs.Scan(&r.ID, &r.DatasetID, &r.TimeCode, &r.AgeBracket, &r.Total, &r.Male, &r.Female); err != nil {
			return ds, nil, s.persistenceErr("read rows", ds.Fingerprint, ds.ID, err)
		}
		out = append(out, r)
	}
	if err := rs.Err(); err != nil {
		return ds, nil, s.persistenceErr("read rows", ds.Fingerprint, ds.ID, err)
	}
	return ds, out, nil
}

// ListDatasets returns every dataset newest first with its row count.
func (s *Store) ListDatasets(ctx context.Context) ([]domain.DatasetSummary, error) {
	rs, err := s.db.QueryContext(ctx, `SELECT d.id, d.fingerprint, d.name, d.created_at, COUNT(r.id)
FROM datasets d
LEFT JOIN dataset_rows r ON r.dataset_id = d.id
GROUP BY d.id, d.fingerprint, d.name, d.created_at
ORDER BY d.created_at DESC, d.id DESC`)
	if err != nil {
		return nil, s.persistenceErr("list datasets", "", 0, err)
	}
	defer func() { _ = rs.Close() }()
	out := make([]domain.DatasetSummary, 0)
	for rs.Next() {
		var (
			sum     domain.DatasetSummary
			name    sql.NullString
			created any
			count   int64
		)
		if err := rs.Scan(&sum.ID, &sum.Fingerprint, &name, &created, &count); err != nil {
			return nil, s.persistenceErr("list datasets", "", 0, err)
		}
		t, err := scanTime(created)
		if err != nil {
			return nil, s.persistenceErr("list datasets", sum.Fingerprint, sum.ID, err)
		}
		sum.Name = name.String
		sum.CreatedAt = t
		sum.RowCount = int(count)
		out = append(out, sum)
	}
	if err := rs.Err(); err != nil {
		return nil, s.persistenceErr("list datasets", "", 0, err)
	}
	return out, nil
}

// DeleteDataset removes the dataset; the foreign key cascades to its rows.
func (s *Store) DeleteDataset(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.dialect.rebind(`DELETE FROM datasets WHERE id = ?`), id)
	if err != nil {
		return false, s.persistenceErr("delete dataset", "", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, s.persistenceErr("delete dataset", "", id, err)
	}
	return n > 0, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
