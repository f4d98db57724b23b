// Package memory provides an in-memory DatasetStore for tests and ephemeral
// runs. It enforces the same constraints as the relational schema.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"popgraph/pkg/domain"
)

var _ domain.DatasetStore = (*Store)(nil)

type state struct {
	datasets      map[int64]domain.Dataset
	byFingerprint map[string]int64
	rows          map[int64][]domain.Row
	nextDataset   int64
	nextRow       int64
}

// Store keeps datasets in process memory. A single mutex makes every
// operation atomic and serializes upserts.
type Store struct {
	mu  sync.RWMutex
	st  state
	now func() time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		st: state{
			datasets:      make(map[int64]domain.Dataset),
			byFingerprint: make(map[string]int64),
			rows:          make(map[int64][]domain.Row),
		},
		now: time.Now,
	}
}

// SetClock overrides the creation timestamp source.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func persistenceErr(op, fingerprint string, id int64, err error) error {
	return &domain.Error{Kind: domain.ErrPersistence, Op: op, Fingerprint: fingerprint, DatasetID: id, Err: err}
}

// UpsertByFingerprint validates every row before touching state, so a failure
// leaves the previous rows in place.
func (s *Store) UpsertByFingerprint(_ context.Context, fingerprint, name string, rows []domain.Row) (domain.UpsertResult, error) {
	if strings.TrimSpace(fingerprint) == "" {
		return domain.UpsertResult{}, persistenceErr("upsert", fingerprint, 0, errors.New("empty fingerprint"))
	}
	for i, r := range rows {
		if r.Total < 0 || r.Male < 0 || r.Female < 0 {
			return domain.UpsertResult{}, persistenceErr("upsert", fingerprint, 0, fmt.Errorf("row %d: negative count", i))
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	res := domain.UpsertResult{RowCount: len(rows)}
	id, ok := s.st.byFingerprint[fingerprint]
	if !ok {
		s.st.nextDataset++
		id = s.st.nextDataset
		s.st.datasets[id] = domain.Dataset{ID: id, Fingerprint: fingerprint, Name: name, CreatedAt: s.now().UTC()}
		s.st.byFingerprint[fingerprint] = id
		res.Created = true
	}
	res.DatasetID = id

	stored := make([]domain.Row, len(rows))
	for i, r := range rows {
		s.st.nextRow++
		r.ID = s.st.nextRow
		r.DatasetID = id
		stored[i] = r
	}
	s.st.rows[id] = stored
	return res, nil
}

func (s *Store) latestLocked() (domain.Dataset, bool) {
	var (
		best  domain.Dataset
		found bool
	)
	for _, ds := range s.st.datasets {
		if !found || newer(ds, best) {
			best, found = ds, true
		}
	}
	return best, found
}

func newer(a, b domain.Dataset) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// Rows returns a copy of the resolved dataset's rows in id order.
func (s *Store) Rows(_ context.Context, datasetID *int64) (domain.Dataset, []domain.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		ds domain.Dataset
		ok bool
	)
	if datasetID == nil {
		if ds, ok = s.latestLocked(); !ok {
			return ds, nil, fmt.Errorf("%w: no datasets", domain.ErrNoData)
		}
	} else if ds, ok = s.st.datasets[*datasetID]; !ok {
		return ds, nil, domain.ErrNotFound{Entity: domain.EntityDataset, ID: *datasetID}
	}
	out := append(make([]domain.Row, 0, len(s.st.rows[ds.ID])), s.st.rows[ds.ID]...)
	return ds, out, nil
}

// ListDatasets returns all datasets newest first with row counts.
func (s *Store) ListDatasets(context.Context) ([]domain.DatasetSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.DatasetSummary, 0, len(s.st.datasets))
	for id, ds := range s.st.datasets {
		out = append(out, domain.DatasetSummary{Dataset: ds, RowCount: len(s.st.rows[id])})
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[i].Dataset, out[j].Dataset) })
	return out, nil
}

// DeleteDataset removes a dataset and its rows.
func (s *Store) DeleteDataset(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds, ok := s.st.datasets[id]
	if !ok {
		return false, nil
	}
	delete(s.st.datasets, id)
	delete(s.st.byFingerprint, ds.Fingerprint)
	delete(s.st.rows, id)
	return true, nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }
