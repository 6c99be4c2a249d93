package medadmin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clif-consortium/clifmeds/internal/mappings"
	"github.com/clif-consortium/clifmeds/internal/model"
	"github.com/clif-consortium/clifmeds/internal/normalize"
)

func defaultTables(t *testing.T) *mappings.Tables {
	t.Helper()
	tables, err := mappings.LoadAll(mappings.NewStore(""))
	require.NoError(t, err)
	return tables
}

func TestClassify_RouteNameAndCategory(t *testing.T) {
	tables := defaultTables(t)
	rows, err := Classify([]model.RawInterval{drip(1, 1, 0, 5, "FinishedRunning", 5)}, NewRouteResolver(tables.Routes), tables.Categories)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, "01-Drips; Main order parameter; Continuous Med; Medications", rows[0].RouteName)
	require.NotNil(t, rows[0].RouteCategory)
	assert.Equal(t, "iv", *rows[0].RouteCategory)
	assert.Equal(t, "norepinephrine", rows[0].MedCategory)
	assert.Equal(t, ClassContinuous, rows[0].ItemClass)
	assert.False(t, rows[0].BolusSignal)
}

func TestRouteResolver_OverrideAndSentinels(t *testing.T) {
	insulin := mappings.RouteKey{"06-Insulin (Non IV)", "", "Main order parameter", "Non Iv Meds", "Medications"}
	rt := &mappings.RouteTable{
		General: []mappings.RouteRule{
			{Key: insulin, Category: "SPECIAL"},
			{Key: mappings.RouteKey{"01-Drips"}, Category: "iv"},
			{Key: mappings.RouteKey{"01-Drips"}, Category: "im"},
		},
		Overrides: []mappings.RouteRule{
			{ItemID: 223258, Key: insulin, Category: "subcutaneous"},
		},
	}
	r := NewRouteResolver(rt)

	tests := []struct {
		name   string
		itemID int64
		key    mappings.RouteKey
		want   *string
	}{
		{"override wins", 223258, insulin, normalize.Ptr("subcutaneous")},
		{"sentinel only resolvable by override", 999, insulin, nil},
		{"first general rule wins", 1, mappings.RouteKey{"01-Drips"}, normalize.Ptr("iv")},
		{"absent fields must match absent", 1, mappings.RouteKey{"01-Drips", "Additive"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Resolve(tt.itemID, tt.key))
		})
	}
}

func TestHasBolusSignal(t *testing.T) {
	base := drip(1, 1, 0, 5, "FinishedRunning", 5)

	byCategory := base
	byCategory.OrderCategoryName = normalize.Ptr("05-Med Bolus")
	byDescription := base
	byDescription.OrderCategoryDescription = normalize.Ptr("Drug Push")
	byStatus := base
	byStatus.Status = "Bolus"

	assert.False(t, HasBolusSignal(&base))
	assert.True(t, HasBolusSignal(&byCategory))
	assert.True(t, HasBolusSignal(&byDescription))
	assert.True(t, HasBolusSignal(&byStatus))
}

func TestClassify_PreservesRowCount(t *testing.T) {
	tables := defaultTables(t)
	var in []model.RawInterval
	for i := range 50 {
		iv := drip(int64(i), int64(i%3), i, i+5, "ChangeDose/Rate", 1)
		if i%4 == 0 {
			iv.ItemID = 1 // not in med_category
		}
		in = append(in, iv)
	}
	out, err := Classify(in, NewRouteResolver(tables.Routes), tables.Categories)
	require.NoError(t, err)
	assert.Len(t, out, len(in))
}

func TestDropNonPositive(t *testing.T) {
	rows := continuous(
		drip(1, 1, 0, 5, "FinishedRunning", 1),
		drip(2, 1, 5, 5, "FinishedRunning", 1),
		drip(3, 1, 9, 7, "FinishedRunning", 1),
	)
	kept, dropped := DropNonPositive(rows)
	assert.Equal(t, 2, dropped)
	require.Len(t, kept, 1)
	assert.Equal(t, int64(1), kept[0].Seq)
}

func TestSplit_Completeness(t *testing.T) {
	bolus := drip(3, 1, 0, 1, "Bolus", 1)
	rows := []Classified{
		{RawInterval: drip(1, 1, 0, 5, "FinishedRunning", 1), ItemClass: ClassContinuous},
		{RawInterval: push(2, 2, 0, 1000, normalize.Ptr("mg")), ItemClass: ClassIntermittent},
		{RawInterval: bolus, ItemClass: ClassBoth, BolusSignal: HasBolusSignal(&bolus)},
		{RawInterval: drip(4, 1, 0, 5, "FinishedRunning", 1), ItemClass: ClassBoth},
		{RawInterval: drip(5, 1, 0, 5, "FinishedRunning", 1), ItemClass: ClassUnknown},
	}
	res := Split(rows)

	assert.Len(t, res.Continuous, 2)
	assert.Len(t, res.Intermittent, 2)
	assert.Equal(t, 1, res.Dropped())
	assert.Equal(t, len(rows), len(res.Continuous)+len(res.Intermittent)+res.Dropped())
	assert.Equal(t, map[int64]int{221906: 1}, res.Unclassified)
}

// Only the five named long-running infusion items move, and only when they
// last more than a minute.
func TestSplit_LongRunningInfusionReclassification(t *testing.T) {
	long := drip(1, 1, 0, 30, "FinishedRunning", 1) // norepinephrine, 30 min
	short := drip(2, 2, 0, 1, "FinishedRunning", 1) // exactly one minute
	other := push(3, 3, 0, 1000, nil)
	other.EndTime = at(60)

	res := Split(intermittent(long, short, other))

	require.Len(t, res.Continuous, 1)
	assert.Equal(t, int64(1), res.Continuous[0].Seq)
	assert.Equal(t, 1, res.Reclassified)
	assert.Len(t, res.Intermittent, 2)
	for _, r := range res.Intermittent {
		assert.NotEqual(t, int64(1), r.Seq)
	}
}
