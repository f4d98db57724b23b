// Package storetest is a behavioural suite every domain.DatasetStore
// implementation runs from its own tests.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"popgraph/pkg/domain"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) domain.DatasetStore

type clockSetter interface {
	SetClock(func() time.Time)
}

// steppingClock returns a clock that advances one second per call.
func steppingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func open(t *testing.T, factory Factory) domain.DatasetStore {
	t.Helper()
	s := factory(t)
	if c, ok := s.(clockSetter); ok {
		c.SetClock(steppingClock())
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// Fixture returns n rows with distinct brackets and deterministic counts.
func Fixture(n int) []domain.Row {
	out := make([]domain.Row, n)
	for i := range out {
		out[i] = domain.Row{
			TimeCode:   "2020000000",
			AgeBracket: fmt.Sprintf("%d～%d歳", i*5, i*5+4),
			Total:      int64(100 + i),
			Male:       int64(50 + i),
			Female:     50,
		}
	}
	return out
}

// Run executes the contract against factory.
func Run(t *testing.T, factory Factory) {
	t.Run("EmptyStore", func(t *testing.T) { testEmptyStore(t, open(t, factory)) })
	t.Run("CreateThenRead", func(t *testing.T) { testCreateThenRead(t, open(t, factory)) })
	t.Run("ReuploadReplacesRows", func(t *testing.T) { testReupload(t, open(t, factory)) })
	t.Run("LatestAndListOrder", func(t *testing.T) { testLatestAndList(t, open(t, factory)) })
	t.Run("FailedUpsertRollsBack", func(t *testing.T) { testRollback(t, open(t, factory)) })
	t.Run("DeleteCascades", func(t *testing.T) { testDelete(t, open(t, factory)) })
	t.Run("LargeBatchKeepsOrder", func(t *testing.T) { testLargeBatch(t, open(t, factory)) })
	t.Run("ConcurrentSameFingerprint", func(t *testing.T) { testConcurrent(t, open(t, factory)) })
}

func testEmptyStore(t *testing.T, s domain.DatasetStore) {
	ctx := context.Background()
	list, err := s.ListDatasets(ctx)
	if err != nil || len(list) != 0 {
		t.Fatalf("expected empty list, got %v %v", list, err)
	}
	if _, _, err := s.Rows(ctx, nil); !errors.Is(err, domain.ErrNoData) {
		t.Fatalf("expected ErrNoData for latest on empty store, got %v", err)
	}
	missing := int64(99)
	_, _, err = s.Rows(ctx, &missing)
	var nf domain.ErrNotFound
	if !errors.Is(err, domain.ErrNoData) || !errors.As(err, &nf) || nf.ID != 99 {
		t.Fatalf("expected not-found for unknown id, got %v", err)
	}
}

func testCreateThenRead(t *testing.T, s domain.DatasetStore) {
	ctx := context.Background()
	rows := Fixture(3)
	res, err := s.UpsertByFingerprint(ctx, "fp-a", "population.xlsx", rows)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if !res.Created || res.RowCount != 3 || res.DatasetID == 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	ds, got, err := s.Rows(ctx, &res.DatasetID)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if ds.ID != res.DatasetID || ds.Fingerprint != "fp-a" || ds.Name != "population.xlsx" || ds.CreatedAt.IsZero() {
		t.Fatalf("unexpected dataset %+v", ds)
	}
	assertRows(t, got, rows, res.DatasetID)

	empty, err := s.UpsertByFingerprint(ctx, "fp-empty", "", nil)
	if err != nil || !empty.Created || empty.RowCount != 0 {
		t.Fatalf("empty upsert: %+v %v", empty, err)
	}
	ds, got, err = s.Rows(ctx, &empty.DatasetID)
	if err != nil || len(got) != 0 || ds.Name != "" {
		t.Fatalf("empty dataset read: %+v %v %v", ds, got, err)
	}
}

func testReupload(t *testing.T, s domain.DatasetStore) {
	ctx := context.Background()
	first, err := s.UpsertByFingerprint(ctx, "fp-a", "first.xlsx", Fixture(4))
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	before, _, err := s.Rows(ctx, &first.DatasetID)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	second, err := s.UpsertByFingerprint(ctx, "fp-a", "renamed.xlsx", Fixture(4))
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.Created || second.DatasetID != first.DatasetID || second.RowCount != 4 {
		t.Fatalf("re-upload must update in place: %+v vs %+v", second, first)
	}
	ds, rows, err := s.Rows(ctx, &first.DatasetID)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("rows doubled or lost: %d", len(rows))
	}
	if ds.Name != "first.xlsx" || !ds.CreatedAt.Equal(before.CreatedAt) || ds.Fingerprint != "fp-a" {
		t.Fatalf("dataset identity changed: %+v vs %+v", ds, before)
	}
	list, _ := s.ListDatasets(ctx)
	if len(list) != 1 || list[0].RowCount != 4 {
		t.Fatalf("unexpected list %+v", list)
	}
}

func testLatestAndList(t *testing.T, s domain.DatasetStore) {
	ctx := context.Background()
	a, err := s.UpsertByFingerprint(ctx, "fp-a", "a.xlsx", Fixture(2))
	if err != nil {
		t.Fatalf("upsert a: %v", err)
	}
	b, err := s.UpsertByFingerprint(ctx, "fp-b", "b.xlsx", Fixture(5))
	if err != nil {
		t.Fatalf("upsert b: %v", err)
	}
	if a.DatasetID == b.DatasetID {
		t.Fatalf("distinct fingerprints must create distinct datasets")
	}
	// Re-uploading the older dataset does not make it the latest.
	if _, err := s.UpsertByFingerprint(ctx, "fp-a", "a.xlsx", Fixture(3)); err != nil {
		t.Fatalf("re-upsert a: %v", err)
	}
	ds, rows, err := s.Rows(ctx, nil)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if ds.ID != b.DatasetID || len(rows) != 5 {
		t.Fatalf("expected latest dataset b, got %+v with %d rows", ds, len(rows))
	}
	list, err := s.ListDatasets(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != b.DatasetID || list[1].ID != a.DatasetID {
		t.Fatalf("expected newest first, got %+v", list)
	}
	if list[0].RowCount != 5 || list[1].RowCount != 3 {
		t.Fatalf("unexpected row counts %+v", list)
	}
}

func testRollback(t *testing.T, s domain.DatasetStore) {
	ctx := context.Background()
	res, err := s.UpsertByFingerprint(ctx, "fp-a", "a.xlsx", Fixture(3))
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	bad := Fixture(3)
	bad[2].Total = -1
	if _, err := s.UpsertByFingerprint(ctx, "fp-a", "a.xlsx", bad); !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	_, rows, err := s.Rows(ctx, &res.DatasetID)
	if err != nil || len(rows) != 3 {
		t.Fatalf("previous rows must survive a failed upsert: %d %v", len(rows), err)
	}
	if _, err := s.UpsertByFingerprint(ctx, "fp-new", "new.xlsx", bad); !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	list, _ := s.ListDatasets(ctx)
	if len(list) != 1 {
		t.Fatalf("failed create must not leave a dataset behind: %+v", list)
	}
	if _, err := s.UpsertByFingerprint(ctx, "", "x.xlsx", nil); !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected empty fingerprint to be rejected, got %v", err)
	}
}

func testDelete(t *testing.T, s domain.DatasetStore) {
	ctx := context.Background()
	res, err := s.UpsertByFingerprint(ctx, "fp-a", "a.xlsx", Fixture(3))
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	ok, err := s.DeleteDataset(ctx, res.DatasetID)
	if err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if _, _, err := s.Rows(ctx, &res.DatasetID); !errors.Is(err, domain.ErrNoData) {
		t.Fatalf("deleted dataset should not resolve: %v", err)
	}
	ok, err = s.DeleteDataset(ctx, res.DatasetID)
	if err != nil || ok {
		t.Fatalf("second delete: %v %v", ok, err)
	}
	again, err := s.UpsertByFingerprint(ctx, "fp-a", "a.xlsx", Fixture(1))
	if err != nil || !again.Created {
		t.Fatalf("fingerprint should be free after delete: %+v %v", again, err)
	}
	list, _ := s.ListDatasets(ctx)
	if len(list) != 1 || list[0].RowCount != 1 {
		t.Fatalf("orphan rows left behind: %+v", list)
	}
}

func testLargeBatch(t *testing.T, s domain.DatasetStore) {
	ctx := context.Background()
	rows := Fixture(450)
	res, err := s.UpsertByFingerprint(ctx, "fp-big", "big.xlsx", rows)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	_, got, err := s.Rows(ctx, &res.DatasetID)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	assertRows(t, got, rows, res.DatasetID)
}

func testConcurrent(t *testing.T, s domain.DatasetStore) {
	ctx := context.Background()
	const writers = 6
	var wg sync.WaitGroup
	results := make([]domain.UpsertResult, writers)
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = s.UpsertByFingerprint(ctx, "fp-race", "race.xlsx", Fixture(10))
		}(i)
	}
	wg.Wait()
	created := 0
	var id int64
	for i, err := range errs {
		if err != nil {
			// Losing a race may fail cleanly; it must never corrupt state.
			if !errors.Is(err, domain.ErrPersistence) {
				t.Fatalf("writer %d: unexpected error %v", i, err)
			}
			continue
		}
		if results[i].Created {
			created++
		}
		if id != 0 && results[i].DatasetID != id {
			t.Fatalf("writers saw different dataset ids: %d vs %d", id, results[i].DatasetID)
		}
		id = results[i].DatasetID
	}
	if created != 1 {
		t.Fatalf("expected exactly one creator, got %d", created)
	}
	list, _ := s.ListDatasets(ctx)
	if len(list) != 1 || list[0].RowCount != 10 {
		t.Fatalf("expected one dataset with one upload worth of rows, got %+v", list)
	}
}

func assertRows(t *testing.T, got, want []domain.Row, datasetID int64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("row count %d want %d", len(got), len(want))
	}
	var prev int64
	for i, r := range got {
		if r.ID <= prev {
			t.Fatalf("rows not in ascending id order at %d: %d after %d", i, r.ID, prev)
		}
		prev = r.ID
		if r.DatasetID != datasetID {
			t.Fatalf("row %d belongs to %d, want %d", i, r.DatasetID, datasetID)
		}
		w := want[i]
		if r.TimeCode != w.TimeCode || r.AgeBracket != w.AgeBracket || r.Total != w.Total || r.Male != w.Male || r.Female != w.Female {
			t.Fatalf("row %d = %+v want %+v", i, r, w)
		}
	}
}
