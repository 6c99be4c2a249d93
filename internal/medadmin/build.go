package medadmin

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/clif-consortium/clifmeds/internal/mappings"
	"github.com/clif-consortium/clifmeds/internal/metrics"
	"github.com/clif-consortium/clifmeds/internal/model"
	"github.com/clif-consortium/clifmeds/internal/validate"
)

// violationLogLimit caps how many individual violations are logged per table.
const violationLogLimit = 20

// PipelineError wraps an error with the phase where it occurred.
type PipelineError struct {
	Phase string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Phase, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// EventStore reads raw administration intervals for a set of item ids.
type EventStore interface {
	FetchIntervals(ctx context.Context, itemIDs []int64) ([]model.RawInterval, error)
}

// Persister writes one output table, replacing any previous version of it.
type Persister interface {
	Persist(ctx context.Context, table string, rows []model.AdminEvent) (model.TableSummary, error)
}

// Deps are the collaborators of one medication_admin build.
type Deps struct {
	Store  EventStore
	Tables *mappings.Tables
	// Persister may be nil, in which case tables are built and validated
	// but not written.
	Persister Persister
	// Location is the wall-clock zone of source timestamps.
	Location *time.Location
	// Outputs selects which of the two med tables to produce; empty means both.
	Outputs []string
	Metrics *metrics.Run
	RunID   string
}

// Result is the outcome of a build: the summary, the finished tables and
// their validation results.
type Result struct {
	Summary    model.MedAdminSummary
	Events     map[string][]model.AdminEvent
	Validation map[string]*validate.Result
}

// Build runs extract → UTC → classify → split → flatten → finalize →
// validate → persist for the medication_admin tables.
func Build(ctx context.Context, log zerolog.Logger, deps Deps) (*Result, error) {
	totalStart := time.Now()
	if deps.Store == nil || deps.Tables == nil {
		return nil, errors.New("medadmin: store and mapping tables are required")
	}
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.New()
	}
	wantCont, wantInt := wants(deps.Outputs)

	res := &Result{
		Summary:    model.MedAdminSummary{RunID: deps.RunID},
		Events:     make(map[string][]model.AdminEvent),
		Validation: make(map[string]*validate.Result),
	}
	sum := &res.Summary

	// Phase 1: Extract
	ids := deps.Tables.Categories.RelevantItemIDs()
	log.Info().Int("item_ids", len(ids)).Msg("extracting administration intervals")
	raw, err := deps.Store.FetchIntervals(ctx, ids)
	if err != nil {
		return nil, &PipelineError{Phase: "extract", Err: err}
	}
	sum.RowsExtracted = int64(len(raw))
	m.RowsExtracted.Add(float64(len(raw)))

	raw, shifted := ToUTCIntervals(raw, loc)
	if shifted > 0 {
		log.Warn().Int("timestamps", shifted).Str("timezone", loc.String()).
			Msg("shifted wall-clock times inside a DST gap forward")
	}

	// Phase 2: Classify
	classified, err := Classify(raw, NewRouteResolver(deps.Tables.Routes), deps.Tables.Categories)
	if err != nil {
		return nil, &PipelineError{Phase: "classify", Err: err}
	}
	classified, nonPositive := DropNonPositive(classified)
	sum.RowsNonPositive = int64(nonPositive)
	m.RowsDropped.WithLabelValues(metrics.ReasonNonPositiveDuration).Add(float64(nonPositive))
	if nonPositive > 0 {
		log.Info().Int("rows", nonPositive).Msg("dropped intervals with non-positive duration")
	}

	// Phase 3: Split
	split := Split(classified)
	if n := len(split.Continuous) + len(split.Intermittent) + split.Dropped(); n != len(classified) {
		return nil, &PipelineError{Phase: "split", Err: fmt.Errorf("%w: split produced %d rows from %d", ErrIntegrity, n, len(classified))}
	}
	sum.RowsUnclassified = int64(split.Dropped())
	sum.RowsReclassified = int64(split.Reclassified)
	sum.RowsContinuousIn = int64(len(split.Continuous))
	sum.RowsIntermittentIn = int64(len(split.Intermittent))
	m.RowsDropped.WithLabelValues(metrics.ReasonUnclassified).Add(float64(split.Dropped()))
	if split.Dropped() > 0 {
		log.Warn().
			Int("rows", split.Dropped()).
			Interface("by_itemid", split.Unclassified).
			Msg("dropped intervals with no continuous/intermittent classification")
	}
	log.Info().
		Int("continuous", len(split.Continuous)).
		Int("intermittent", len(split.Intermittent)).
		Int("reclassified", split.Reclassified).
		Msg("split intervals")

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	groups := NewGroupLookup(deps.Tables.Groups)

	// Phase 4: Flatten + finalize
	if wantCont {
		rows, imputed := ImputeRates(split.Continuous)
		log.Debug().Int("rows", imputed).Msg("imputed missing rates")
		points, stats := FlattenContinuous(rows, deps.Tables.Dedup, log)
		sum.DuplicateIntervals = int64(stats.DuplicateIntervals)
		sum.PointsCollapsed = int64(stats.PointsCollapsed)
		sum.UnmappedCompositeKeys = int64(len(stats.UnmappedKeys))
		m.RowsDropped.WithLabelValues(metrics.ReasonDuplicateInterval).Add(float64(stats.DuplicateIntervals))
		m.RowsDropped.WithLabelValues(metrics.ReasonCollapsed).Add(float64(stats.PointsCollapsed - stats.UnmappedPoints))
		m.RowsDropped.WithLabelValues(metrics.ReasonDedupUnmapped).Add(float64(stats.UnmappedPoints))
		m.UnmappedKeys.Add(float64(len(stats.UnmappedKeys)))

		events, err := Finalize(points, groups)
		if err != nil {
			return nil, &PipelineError{Phase: "finalize", Err: err}
		}
		res.Events[model.TableMedAdminContinuous] = events
	}
	if wantInt {
		events, err := Finalize(FlattenIntermittent(split.Intermittent), groups)
		if err != nil {
			return nil, &PipelineError{Phase: "finalize", Err: err}
		}
		res.Events[model.TableMedAdminIntermittent] = events
	}

	// Phase 5: Validate + persist
	for _, table := range []string{model.TableMedAdminContinuous, model.TableMedAdminIntermittent} {
		events, ok := res.Events[table]
		if !ok {
			continue
		}
		vr := SchemaFor(table).Validate(events)
		res.Validation[table] = vr
		logValidation(log, vr)

		ts := model.TableSummary{Table: table, Rows: int64(len(events)), Valid: vr.Valid(), Violations: len(vr.Violations)}
		if deps.Persister != nil {
			written, err := deps.Persister.Persist(ctx, table, events)
			if err != nil {
				return nil, &PipelineError{Phase: "persist", Err: fmt.Errorf("%s: %w", table, err)}
			}
			ts.Path, ts.SHA256, ts.Rows = written.Path, written.SHA256, written.Rows
			m.RowsWritten.WithLabelValues(table).Add(float64(written.Rows))
		}
		sum.Tables = append(sum.Tables, ts)
	}

	sum.Duration = time.Since(totalStart)
	log.Info().
		Int64("rows_extracted", sum.RowsExtracted).
		Int64("rows_non_positive", sum.RowsNonPositive).
		Int64("rows_unclassified", sum.RowsUnclassified).
		Int64("duplicate_intervals", sum.DuplicateIntervals).
		Int64("points_collapsed", sum.PointsCollapsed).
		Int64("unmapped_keys", sum.UnmappedCompositeKeys).
		Str("total_duration", sum.Duration.String()).
		Msg("medication_admin build complete")
	return res, nil
}

// wants reports which med tables outputs selects.
func wants(outputs []string) (continuous, intermittent bool) {
	if len(outputs) == 0 {
		return true, true
	}
	return slices.Contains(outputs, model.TableMedAdminContinuous),
		slices.Contains(outputs, model.TableMedAdminIntermittent)
}

func logValidation(log zerolog.Logger, vr *validate.Result) {
	if vr.Valid() {
		log.Info().Str("table", vr.Table).Int("rows", vr.Rows).Msg("schema validation passed")
		return
	}
	for i, v := range vr.Violations {
		if i == violationLogLimit {
			break
		}
		log.Info().Str("table", vr.Table).Msg(v.String())
	}
	log.Error().
		Str("table", vr.Table).
		Int("violations", len(vr.Violations)).
		Interface("by_column", vr.ByColumn()).
		Msg("schema validation failed")
}
