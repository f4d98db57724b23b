// Package domain defines the persistent entities, derived series types and
// store contracts shared by the popgraph ingestion and rendering pipeline.
package domain

import "time"

// EntityType identifies the type of record stored by a DatasetStore.
type EntityType string

const (
	// EntityDataset identifies a versioned upload keyed by content fingerprint.
	EntityDataset EntityType = "dataset"
	// EntityRow identifies a single extracted population row owned by a dataset.
	EntityRow EntityType = "row"
)

// Dataset is one upload, unique by Fingerprint. Rows are owned exclusively by
// the dataset and are removed with it.
type Dataset struct {
	ID          int64     `json:"id"`
	Fingerprint string    `json:"fingerprint"`
	Name        string    `json:"name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Row is a normalized population record. Counts are never negative.
type Row struct {
	ID         int64  `json:"id"`
	DatasetID  int64  `json:"dataset_id"`
	TimeCode   string `json:"time_code"`
	AgeBracket string `json:"age_bracket"`
	Total      int64  `json:"total"`
	Male       int64  `json:"male"`
	Female     int64  `json:"female"`
}

// DatasetSummary annotates a dataset with its current row count.
type DatasetSummary struct {
	Dataset
	RowCount int `json:"row_count"`
}

// UpsertResult reports the outcome of an upsert-by-fingerprint transaction.
type UpsertResult struct {
	DatasetID int64 `json:"dataset_id"`
	Created   bool  `json:"created"`
	RowCount  int   `json:"row_count"`
}

// SeriesPoint is one bracket of a CanonicalSeries with counts summed across
// every source row sharing the bracket label.
type SeriesPoint struct {
	AgeBracket string `json:"age_bracket"`
	Total      int64  `json:"total"`
	Male       int64  `json:"male"`
	Female     int64  `json:"female"`
}

// CanonicalSeries is ordered by the leading number of the bracket label, then
// by the label itself.
type CanonicalSeries []SeriesPoint

// Labels returns the bracket labels in series order.
func (s CanonicalSeries) Labels() []string {
	out := make([]string, len(s))
	for i, p := range s {
		out[i] = p.AgeBracket
	}
	return out
}

// MaxTotal returns the largest Total in the series, or 0 when empty.
func (s CanonicalSeries) MaxTotal() int64 {
	var max int64
	for _, p := range s {
		if p.Total > max {
			max = p.Total
		}
	}
	return max
}
