package core

import (
	"context"
	"fmt"

	"popgraph/internal/blob"
	"popgraph/internal/chart"
	"popgraph/internal/config"
	"popgraph/internal/infra/persistence/memory"
	"popgraph/internal/infra/persistence/postgres"
	"popgraph/internal/infra/persistence/sqlite"
	"popgraph/pkg/domain"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = config.StorageMemory   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = config.StorageSQLite   // embedded sqlite file
	StoragePostgres StorageDriver = config.StoragePostgres // PostgreSQL server
)

// OpenPersistentStore selects a DatasetStore backend. An empty driver means
// sqlite.
func OpenPersistentStore(ctx context.Context, cfg config.StorageConfig) (domain.DatasetStore, error) {
	driver := StorageDriver(cfg.Driver)
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return memory.NewStore(), nil
	case StorageSQLite:
		return sqlite.NewStore(ctx, cfg.SQLitePath)
	case StoragePostgres:
		return postgres.NewStore(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}

// Runtime bundles a Service with the handles it was built from.
type Runtime struct {
	Service *Service
	Store   domain.DatasetStore
	Blobs   blob.Store
}

// Close releases the dataset store.
func (r *Runtime) Close() error {
	if r == nil || r.Store == nil {
		return nil
	}
	return r.Store.Close()
}

// Open builds the dataset store, artifact store, renderer and service
// described by cfg.
func Open(ctx context.Context, cfg config.Config, opts ...ServiceOption) (*Runtime, error) {
	store, err := OpenPersistentStore(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open dataset store: %w", err)
	}
	blobs, err := blob.Open(ctx, cfg.BlobStore())
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open artifact store: %w", err)
	}
	all := append([]ServiceOption{
		WithCategory(cfg.Extract.Category),
		WithSheetOptions(cfg.SheetOptions()),
	}, opts...)
	// The renderer logs through the same sink as the service.
	resolved := defaultServiceOptions()
	for _, opt := range all {
		opt(&resolved)
	}
	renderer := chart.New(blobs,
		chart.WithPrefix(cfg.Chart.Prefix),
		chart.WithSize(cfg.Chart.Width, cfg.Chart.Height),
		chart.WithLogger(resolved.logger),
	)
	return &Runtime{
		Service: NewService(store, renderer, all...),
		Store:   store,
		Blobs:   blobs,
	}, nil
}
