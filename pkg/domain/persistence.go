package domain

import "context"

// DatasetStore owns the Dataset and Row entities. Implementations must make
// UpsertByFingerprint atomic and serialize concurrent upserts of the same
// fingerprint.
type DatasetStore interface {
	// UpsertByFingerprint replaces the rows of the dataset identified by
	// fingerprint, creating the dataset (with name) when none exists. Row IDs
	// and DatasetIDs on the input are ignored.
	UpsertByFingerprint(ctx context.Context, fingerprint, name string, rows []Row) (UpsertResult, error)
	// Rows returns the rows of datasetID ordered by row id ascending. A nil
	// datasetID selects the most recently created dataset. ErrNoData is
	// returned when no dataset resolves.
	Rows(ctx context.Context, datasetID *int64) (Dataset, []Row, error)
	// ListDatasets returns every dataset newest first with its row count.
	ListDatasets(ctx context.Context) ([]DatasetSummary, error)
	// DeleteDataset removes a dataset and, by cascade, its rows. It reports
	// whether the dataset existed.
	DeleteDataset(ctx context.Context, id int64) (bool, error)
	// Close releases the underlying connections.
	Close() error
}
