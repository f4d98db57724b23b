// Package metrics exposes Prometheus collectors for ingestion and rendering.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric name.
const Namespace = "popgraph"

// Result label values.
const (
	ResultCreated = "created"
	ResultUpdated = "updated"
	ResultError   = "error"
	ResultSuccess = "success"
	ResultNoData  = "no_data"
)

// Recorder owns a set of collectors registered on one registry.
type Recorder struct {
	registry *prometheus.Registry

	Ingests    *prometheus.CounterVec
	Rows       prometheus.Histogram
	Renders    *prometheus.CounterVec
	Operations *prometheus.HistogramVec
}

// New creates collectors and registers them on a fresh registry together
// with the Go and process collectors.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	r := &Recorder{
		registry: reg,
		Ingests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "ingests_total",
			Help:      "Total uploads ingested by outcome",
		}, []string{"result"}),
		Rows: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "ingested_rows",
			Help:      "Rows written per successful ingest",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		Renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "renders_total",
			Help:      "Total chart renders by mode and outcome",
		}, []string{"mode", "result"}),
		Operations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "operation_duration_seconds",
			Help:      "Service operation latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "result"}),
	}
	reg.MustRegister(
		r.Ingests, r.Rows, r.Renders, r.Operations,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return r
}

// WriteTextfile writes every registered metric to path in the text format
// read by the node exporter textfile collector. The file is replaced
// atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}

// Observe records a service operation outcome.
func (r *Recorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	r.Operations.WithLabelValues(operation, result(success)).Observe(duration.Seconds())
}

// Ingested records a successful ingest of rows.
func (r *Recorder) Ingested(created bool, rows int) {
	res := ResultUpdated
	if created {
		res = ResultCreated
	}
	r.Ingests.WithLabelValues(res).Inc()
	r.Rows.Observe(float64(rows))
}

// IngestFailed records a rejected or rolled back ingest.
func (r *Recorder) IngestFailed() {
	r.Ingests.WithLabelValues(ResultError).Inc()
}

// Rendered records a render attempt for mode. noData marks the normal
// "nothing to draw" outcome separately from failures.
func (r *Recorder) Rendered(mode string, err error, noData bool) {
	res := ResultSuccess
	switch {
	case noData:
		res = ResultNoData
	case err != nil:
		res = ResultError
	}
	r.Renders.WithLabelValues(mode, res).Inc()
}

func result(success bool) string {
	if success {
		return ResultSuccess
	}
	return ResultError
}
