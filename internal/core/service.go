// Package core wires extraction, persistence, aggregation and rendering into
// the ingest / list / render operations exposed to callers.
package core

import (
	"context"
	"errors"
	"fmt"

	"popgraph/internal/aggregate"
	"popgraph/internal/chart"
	"popgraph/internal/extract"
	"popgraph/internal/fingerprint"
	"popgraph/internal/logging"
	"popgraph/pkg/domain"
)

// Operation names reported to metrics and tracing.
const (
	OpIngest       = "ingest"
	OpListDatasets = "list_datasets"
	OpSeries       = "series"
	OpRender       = "render"
	OpDelete       = "delete_dataset"
)

// ErrNoRenderer is returned by Render on a service built without a renderer.
var ErrNoRenderer = errors.New("no chart renderer configured")

// Service is the application façade over a DatasetStore and a chart Renderer.
// The store handle is owned by the caller.
type Service struct {
	store    domain.DatasetStore
	renderer *chart.Renderer

	clock     Clock
	logger    Logger
	metrics   MetricsRecorder
	pipeline  PipelineRecorder
	tracer    Tracer
	extractor *extract.Extractor
	sheet     extract.SheetOptions
}

// NewService constructs a service. renderer may be nil when only ingestion
// and reads are needed.
func NewService(store domain.DatasetStore, renderer *chart.Renderer, opts ...ServiceOption) *Service {
	o := defaultServiceOptions()
	for _, opt := range opts {
		opt(&o)
	}
	s := &Service{
		store:     store,
		renderer:  renderer,
		clock:     o.clock,
		logger:    o.logger,
		metrics:   o.metrics,
		tracer:    o.tracer,
		extractor: o.extractor,
		sheet:     o.sheet,
	}
	if p, ok := o.metrics.(PipelineRecorder); ok {
		s.pipeline = p
	}
	return s
}

// Store returns the underlying dataset store.
func (s *Service) Store() domain.DatasetStore { return s.store }

// IngestResult reports what an upload did.
type IngestResult struct {
	DatasetID   int64  `json:"dataset_id"`
	Created     bool   `json:"created"`
	RowCount    int    `json:"row_count"`
	Fingerprint string `json:"fingerprint"`
	// Skipped counts sheet rows dropped by the category filter.
	Skipped int `json:"skipped"`
}

// RenderResult identifies the artifact produced for a dataset.
type RenderResult struct {
	chart.Artifact
	DatasetID  int64 `json:"dataset_id"`
	Categories int   `json:"categories"`
}

func (s *Service) run(ctx context.Context, op string, fn func(context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, op)
	start := s.clock.Now()
	err := fn(ctx)
	s.metrics.Observe(ctx, op, succeeded(op, err), s.clock.Now().Sub(start))
	span.End(err)
	return err
}

// succeeded counts a read that resolved no data as a completed operation.
// Deleting a missing dataset is a caller error.
func succeeded(op string, err error) bool {
	if err == nil {
		return true
	}
	return op != OpDelete && errors.Is(err, domain.ErrNoData)
}

// Ingest validates, fingerprints and extracts an upload, then upserts it by
// fingerprint. Byte-identical content always resolves to the same dataset
// and replaces its rows.
func (s *Service) Ingest(ctx context.Context, filename string, content []byte) (IngestResult, error) {
	ctx, cid := logging.EnsureCorrelationID(ctx)
	var (
		res  IngestResult
		rows int
	)
	err := s.run(ctx, OpIngest, func(ctx context.Context) error {
		if err := extract.ValidateUpload(filename, content); err != nil {
			return &domain.Error{Op: OpIngest, Err: err}
		}
		res.Fingerprint = fingerprint.Sum(content)

		raw, err := extract.ReadSheet(content, s.sheet)
		if err != nil {
			return &domain.Error{Op: OpIngest, Fingerprint: res.Fingerprint, Err: err}
		}
		extracted := s.extractor.Extract(raw)
		res.Skipped = extracted.Skipped
		rows = len(extracted.Rows)
		if len(extracted.Rows) == 0 {
			s.logger.Warn("no rows matched category",
				"correlation_id", cid, "filename", filename, "fingerprint", res.Fingerprint,
				"scanned", extracted.Scanned, "category", s.extractor.Category)
		}

		up, err := s.store.UpsertByFingerprint(ctx, res.Fingerprint, filename, extracted.Rows)
		if err != nil {
			return err
		}
		res.DatasetID, res.Created, res.RowCount = up.DatasetID, up.Created, up.RowCount
		return nil
	})
	if err != nil {
		attrs := []any{
			"correlation_id", cid, "filename", filename, "fingerprint", res.Fingerprint,
			"bytes", len(content), "row_count", rows,
		}
		var de *domain.Error
		if errors.As(err, &de) && de.DatasetID != 0 {
			attrs = append(attrs, "dataset_id", de.DatasetID)
		}
		s.logger.Error("ingest failed", append(attrs, "error", err)...)
		if s.pipeline != nil {
			s.pipeline.IngestFailed()
		}
		return IngestResult{}, err
	}
	s.logger.Info("dataset ingested",
		"correlation_id", cid, "filename", filename, "fingerprint", res.Fingerprint,
		"dataset_id", res.DatasetID, "created", res.Created, "row_count", res.RowCount, "skipped", res.Skipped)
	if s.pipeline != nil {
		s.pipeline.Ingested(res.Created, res.RowCount)
	}
	return res, nil
}

// ListDatasets returns every dataset newest first with its row count. An
// empty store yields an empty slice.
func (s *Service) ListDatasets(ctx context.Context) ([]domain.DatasetSummary, error) {
	var out []domain.DatasetSummary
	err := s.run(ctx, OpListDatasets, func(ctx context.Context) error {
		var err error
		out, err = s.store.ListDatasets(ctx)
		return err
	})
	if err != nil {
		s.logger.Error("list datasets failed", "error", err)
		return nil, err
	}
	if out == nil {
		out = []domain.DatasetSummary{}
	}
	return out, nil
}

// Series loads a dataset (the latest when datasetID is nil) and aggregates
// it. A missing dataset or one without rows yields domain.ErrNoData.
func (s *Service) Series(ctx context.Context, datasetID *int64) (domain.Dataset, domain.CanonicalSeries, error) {
	var (
		ds     domain.Dataset
		series domain.CanonicalSeries
	)
	err := s.run(ctx, OpSeries, func(ctx context.Context) error {
		var err error
		ds, series, err = s.series(ctx, datasetID)
		return err
	})
	return ds, series, err
}

func (s *Service) series(ctx context.Context, datasetID *int64) (domain.Dataset, domain.CanonicalSeries, error) {
	ds, rows, err := s.store.Rows(ctx, datasetID)
	if err != nil {
		return domain.Dataset{}, nil, err
	}
	if len(rows) == 0 {
		return ds, nil, &domain.Error{Kind: domain.ErrNoData, Op: OpSeries, DatasetID: ds.ID, Fingerprint: ds.Fingerprint}
	}
	return ds, aggregate.Series(rows), nil
}

// Render aggregates the selected dataset and replaces the mode's artifact.
// No datasets, an unknown id, or an empty dataset yield domain.ErrNoData and
// leave existing artifacts untouched.
func (s *Service) Render(ctx context.Context, mode chart.Mode, datasetID *int64) (RenderResult, error) {
	if s.renderer == nil {
		return RenderResult{}, ErrNoRenderer
	}
	var res RenderResult
	err := s.run(ctx, OpRender, func(ctx context.Context) error {
		ds, series, err := s.series(ctx, datasetID)
		if err != nil {
			return err
		}
		res.DatasetID, res.Categories = ds.ID, len(series)
		art, err := s.renderer.Render(ctx, mode, series)
		if err != nil {
			return &domain.Error{Op: OpRender, DatasetID: ds.ID, Err: err}
		}
		res.Artifact = art
		return nil
	})
	noData := errors.Is(err, domain.ErrNoData)
	if s.pipeline != nil {
		s.pipeline.Rendered(string(mode), err, noData)
	}
	switch {
	case noData:
		s.logger.Info("nothing to render", "mode", mode, "dataset_id", idAttr(datasetID))
		return RenderResult{}, err
	case err != nil:
		s.logger.Error("render failed", "mode", mode, "dataset_id", idAttr(datasetID), "error", err)
		return RenderResult{}, err
	}
	s.logger.Info("chart rendered", "mode", mode, "dataset_id", res.DatasetID, "key", res.Key, "categories", res.Categories)
	return res, nil
}

// DeleteDataset removes a dataset and its rows. Unknown ids yield a
// domain.ErrNotFound, which also matches domain.ErrNoData.
func (s *Service) DeleteDataset(ctx context.Context, id int64) error {
	err := s.run(ctx, OpDelete, func(ctx context.Context) error {
		existed, err := s.store.DeleteDataset(ctx, id)
		if err != nil {
			return err
		}
		if !existed {
			return &domain.Error{Op: OpDelete, Err: domain.ErrNotFound{Entity: domain.EntityDataset, ID: id}}
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("delete dataset failed", "dataset_id", id, "error", err)
		return err
	}
	s.logger.Info("dataset deleted", "dataset_id", id)
	return nil
}

func idAttr(id *int64) string {
	if id == nil {
		return "latest"
	}
	return fmt.Sprint(*id)
}
