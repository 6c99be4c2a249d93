package model

import "time"

// TableSummary captures metrics from building and persisting one output table.
type TableSummary struct {
	Table      string
	Rows       int64
	Path       string
	SHA256     string
	Valid      bool
	Violations int
}

// MedAdminSummary captures metrics from a single medication_admin build.
type MedAdminSummary struct {
	RunID                 string
	RowsExtracted         int64
	RowsNonPositive       int64
	RowsUnclassified      int64
	RowsReclassified      int64
	RowsContinuousIn      int64
	RowsIntermittentIn    int64
	DuplicateIntervals    int64
	PointsCollapsed       int64
	UnmappedCompositeKeys int64
	Tables                []TableSummary
	Duration              time.Duration
}

// RunSummary reports how many requested tables were attempted and built.
type RunSummary struct {
	RunID       string
	Attempted   int
	Built       int
	Failed      []string
	Unsupported []string
	Tables      []TableSummary
	Duration    time.Duration
}
