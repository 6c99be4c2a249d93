package medadmin

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/clif-consortium/clifmeds/internal/mappings"
	"github.com/clif-consortium/clifmeds/internal/metrics"
	"github.com/clif-consortium/clifmeds/internal/model"
	"github.com/clif-consortium/clifmeds/internal/normalize"
	"github.com/clif-consortium/clifmeds/internal/persist"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) FetchIntervals(ctx context.Context, itemIDs []int64) ([]model.RawInterval, error) {
	args := m.Called(ctx, itemIDs)
	rows, _ := args.Get(0).([]model.RawInterval)
	return rows, args.Error(1)
}

type mockPersister struct {
	mock.Mock
}

func (m *mockPersister) Persist(ctx context.Context, table string, rows []model.AdminEvent) (model.TableSummary, error) {
	args := m.Called(ctx, table, rows)
	if fn, ok := args.Get(0).(func(string, []model.AdminEvent) model.TableSummary); ok {
		return fn(table, rows), args.Error(1)
	}
	return args.Get(0).(model.TableSummary), args.Error(1)
}

// fixtureIntervals covers every path through the pipeline.
func fixtureIntervals() []model.RawInterval {
	longPush := drip(6, 3, 0, 45, "FinishedRunning", 2)
	longPush.OrderCategoryName = normalize.Ptr("05-Med Bolus")
	longPush.OrderCategoryDescription = normalize.Ptr("Bolus")
	longPush.ItemID = 221289 // epinephrine, BOTH

	unknown := drip(7, 4, 0, 5, "FinishedRunning", 1)
	unknown.ItemID = 225158 // NO MAPPING

	return []model.RawInterval{
		drip(1, 1, 0, 5, "ChangeDose/Rate", 5),
		drip(2, 1, 5, 10, "FinishedRunning", 8),
		drip(3, 1, 5, 10, "FinishedRunning", 8),   // exact duplicate
		drip(4, 1, 12, 12, "FinishedRunning", 8), // zero duration
		push(5, 2, 30, 1000, normalize.Ptr("mg")),
		longPush,
		unknown,
	}
}

func TestBuild_EndToEnd(t *testing.T) {
	tables := defaultTables(t)
	store := &mockStore{}
	store.On("FetchIntervals", mock.Anything, tables.Categories.RelevantItemIDs()).Return(fixtureIntervals(), nil)
	persister := &mockPersister{}
	persister.On("Persist", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(func(table string, rows []model.AdminEvent) model.TableSummary {
			return model.TableSummary{Table: table, Rows: int64(len(rows)), Path: "/out/clif_" + table + ".parquet"}
		}, nil)
	m := metrics.New()

	res, err := Build(context.Background(), zerolog.Nop(), Deps{
		Store:     store,
		Tables:    tables,
		Persister: persister,
		Metrics:   m,
		RunID:     "run-1",
	})
	require.NoError(t, err)
	store.AssertExpectations(t)

	sum := res.Summary
	assert.Equal(t, "run-1", sum.RunID)
	assert.Equal(t, int64(7), sum.RowsExtracted)
	assert.Equal(t, int64(1), sum.RowsNonPositive)
	assert.Equal(t, int64(1), sum.RowsUnclassified)
	assert.Equal(t, int64(1), sum.RowsReclassified)
	assert.Equal(t, int64(1), sum.DuplicateIntervals)

	cont := res.Events[model.TableMedAdminContinuous]
	inter := res.Events[model.TableMedAdminIntermittent]
	// Order 1: 0, 5, 10. Order 3: 0, 45.
	assert.Len(t, cont, 5)
	assert.Len(t, inter, 1)
	assert.Equal(t, "given", inter[0].MarActionCategory)

	for table, vr := range res.Validation {
		assert.True(t, vr.Valid(), "%s: %v", table, vr.Violations)
	}
	require.Len(t, sum.Tables, 2)
	assert.Equal(t, "/out/clif_medication_admin_continuous.parquet", sum.Tables[0].Path)
	assert.Equal(t, 5.0, testutil.ToFloat64(m.RowsWritten.WithLabelValues(model.TableMedAdminContinuous)))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.RowsExtracted))
	persister.AssertNumberOfCalls(t, "Persist", 2)
}

func TestBuild_Idempotent(t *testing.T) {
	tables := defaultTables(t)
	run := func() *Result {
		store := &mockStore{}
		store.On("FetchIntervals", mock.Anything, mock.Anything).Return(fixtureIntervals(), nil)
		res, err := Build(context.Background(), zerolog.Nop(), Deps{
			Store:  store,
			Tables: tables,
			Persister: &persist.Persister{
				Root:    t.TempDir(),
				DirName: persist.OutputDirName("", "2.1"),
				Schemas: SchemaFor,
				Log:     zerolog.Nop(),
			},
		})
		require.NoError(t, err)
		return res
	}
	first, second := run(), run()
	assert.Equal(t, first.Events, second.Events)

	require.Len(t, first.Summary.Tables, 2)
	require.Len(t, second.Summary.Tables, 2)
	for i, ts := range first.Summary.Tables {
		other := second.Summary.Tables[i]
		assert.NotEqual(t, ts.Path, other.Path)
		assert.NotEmpty(t, ts.SHA256)
		assert.Equal(t, ts.SHA256, other.SHA256, "%s differs between runs", ts.Table)
	}
}

func TestBuild_DSTGapKeepsKeysUnique(t *testing.T) {
	store := &mockStore{}
	store.On("FetchIntervals", mock.Anything, mock.Anything).Return([]model.RawInterval{
		springForward(1, 1, 0, 1, 30, "Paused", 5),
		springForward(2, 2, 30, 4, 0, "FinishedRunning", 7),
	}, nil)

	res, err := Build(context.Background(), zerolog.Nop(), Deps{
		Store:    store,
		Tables:   defaultTables(t),
		Location: newYork(t),
		Outputs:  []string{model.TableMedAdminContinuous},
	})
	require.NoError(t, err)
	assert.True(t, res.Validation[model.TableMedAdminContinuous].Valid())
	assert.Len(t, res.Events[model.TableMedAdminContinuous], 4)
}

func TestBuild_UnmappedCollapseCountedPerRow(t *testing.T) {
	tables := defaultTables(t)
	tables.Dedup = mappings.NewDedupTable(nil)
	store := &mockStore{}
	store.On("FetchIntervals", mock.Anything, mock.Anything).Return([]model.RawInterval{
		drip(1, 7, 0, 5, "FinishedRunning", 5),
		drip(2, 7, 5, 10, "FinishedRunning", 9),
	}, nil)
	m := metrics.New()

	res, err := Build(context.Background(), zerolog.Nop(), Deps{Store: store, Tables: tables, Metrics: m})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Summary.UnmappedCompositeKeys)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RowsDropped.WithLabelValues(metrics.ReasonDedupUnmapped)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.RowsDropped.WithLabelValues(metrics.ReasonCollapsed)))
}

func TestBuild_SingleOutput(t *testing.T) {
	tables := defaultTables(t)
	store := &mockStore{}
	store.On("FetchIntervals", mock.Anything, mock.Anything).Return(fixtureIntervals(), nil)

	res, err := Build(context.Background(), zerolog.Nop(), Deps{
		Store:   store,
		Tables:  tables,
		Outputs: []string{model.TableMedAdminIntermittent},
	})
	require.NoError(t, err)
	assert.NotContains(t, res.Events, model.TableMedAdminContinuous)
	assert.Contains(t, res.Events, model.TableMedAdminIntermittent)
	require.Len(t, res.Summary.Tables, 1)
	assert.Equal(t, model.TableMedAdminIntermittent, res.Summary.Tables[0].Table)
}

func TestBuild_ExtractErrorCarriesPhase(t *testing.T) {
	store := &mockStore{}
	boom := errors.New("connection refused")
	store.On("FetchIntervals", mock.Anything, mock.Anything).Return(nil, boom)

	_, err := Build(context.Background(), zerolog.Nop(), Deps{Store: store, Tables: defaultTables(t)})
	require.Error(t, err)

	var pe *PipelineError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "extract", pe.Phase)
	assert.ErrorIs(t, err, boom)
}

func TestBuild_PersistErrorStopsBuild(t *testing.T) {
	store := &mockStore{}
	store.On("FetchIntervals", mock.Anything, mock.Anything).Return(fixtureIntervals(), nil)
	persister := &mockPersister{}
	persister.On("Persist", mock.Anything, mock.Anything, mock.Anything).
		Return(model.TableSummary{}, errors.New("disk full")).Once()

	_, err := Build(context.Background(), zerolog.Nop(), Deps{Store: store, Tables: defaultTables(t), Persister: persister})
	var pe *PipelineError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "persist", pe.Phase)
	persister.AssertNumberOfCalls(t, "Persist", 1)
}
