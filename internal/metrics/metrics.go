// Package metrics holds the per-run prometheus counters of a CLIF build. The
// registry is written once at the end of a run as a node_exporter textfile.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
)

// Drop reasons used as the "reason" label of RowsDropped.
const (
	ReasonNonPositiveDuration = "non_positive_duration"
	ReasonUnclassified        = "unclassified"
	ReasonDuplicateInterval   = "duplicate_interval"
	ReasonCollapsed           = "collapsed"
	ReasonDedupUnmapped       = "dedup_unmapped"
)

// Table outcomes used as the "status" label of Tables.
const (
	StatusBuilt       = "built"
	StatusFailed      = "failed"
	StatusUnsupported = "unsupported"
)

// Run is the metric set of one build run, registered on its own registry.
type Run struct {
	reg *prometheus.Registry

	RowsExtracted prometheus.Counter
	RowsDropped   *prometheus.CounterVec
	RowsWritten   *prometheus.CounterVec
	UnmappedKeys  prometheus.Counter
	Tables        *prometheus.CounterVec
	BuildDuration *prometheus.HistogramVec
}

// New creates a Run with every collector registered.
func New() *Run {
	r := &Run{
		reg: prometheus.NewRegistry(),
		RowsExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clif_rows_extracted_total",
			Help: "Raw administration intervals read from the source",
		}),
		RowsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clif_rows_dropped_total",
				Help: "Rows removed during the build, by reason",
			},
			[]string{"reason"},
		),
		RowsWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clif_rows_written_total",
				Help: "Rows persisted per output table",
			},
			[]string{"table"},
		),
		UnmappedKeys: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clif_dedup_unmapped_keys_total",
			Help: "Distinct composite MAR action keys with no dedup mapping",
		}),
		Tables: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clif_tables_total",
				Help: "Requested tables by outcome",
			},
			[]string{"status"},
		),
		BuildDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "clif_build_duration_seconds",
				Help:    "Wall time of one table builder",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
			},
			[]string{"builder"},
		),
	}
	r.reg.MustRegister(
		r.RowsExtracted,
		r.RowsDropped,
		r.RowsWritten,
		r.UnmappedKeys,
		r.Tables,
		r.BuildDuration,
	)
	return r
}

// Registry exposes the underlying registry.
func (r *Run) Registry() *prometheus.Registry { return r.reg }

// WriteTextfile writes the current metric values to path, creating its
// directory if needed.
func (r *Run) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
