package medadmin

import (
	"cmp"
	"slices"
	"strings"

	"github.com/clif-consortium/clifmeds/internal/normalize"
)

// FlattenIntermittent emits one "given" point per intermittent interval at
// its start time. The dose unit carries the most recent non-null amount unit
// forward within each (encounter, order, category) partition.
func FlattenIntermittent(rows []Classified) []Point {
	sorted := slices.Clone(rows)
	slices.SortStableFunc(sorted, func(a, b Classified) int {
		return cmp.Or(
			cmp.Compare(a.HadmID, b.HadmID),
			cmp.Compare(a.OrderID, b.OrderID),
			strings.Compare(a.MedCategory, b.MedCategory),
			a.StartTime.Compare(b.StartTime),
			cmp.Compare(a.Seq, b.Seq),
		)
	})

	out := make([]Point, 0, len(sorted))
	var lastUnit *string
	for i, r := range sorted {
		if i == 0 || !samePartition(&sorted[i-1], &r) {
			lastUnit = nil
		}
		if u := normalize.NilIfBlank(r.AmountUnit); u != nil {
			lastUnit = u
		}
		out = append(out, Point{
			HadmID:         r.HadmID,
			OrderID:        r.OrderID,
			MedCategory:    r.MedCategory,
			Instant:        r.StartTime,
			ItemID:         r.ItemID,
			MedName:        r.Label,
			RouteName:      r.RouteName,
			RouteCategory:  r.RouteCategory,
			Side:           SideStart,
			Status:         r.Status,
			Provisional:    r.Status,
			Seq:            r.Seq,
			Dose:           r.Amount,
			DoseUnit:       lastUnit,
			ActionName:     r.Status,
			ActionCategory: CategoryGiven,
		})
	}
	return out
}

func samePartition(a, b *Classified) bool {
	return a.HadmID == b.HadmID && a.OrderID == b.OrderID && a.MedCategory == b.MedCategory
}
