package medadmin

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/clif-consortium/clifmeds/internal/mappings"
	"github.com/clif-consortium/clifmeds/internal/model"
	"github.com/clif-consortium/clifmeds/internal/normalize"
)

// ImputeRates fills a missing rate with amount / duration in minutes and a
// missing rate unit with "<amount unit>/min". Rows that already carry a rate
// are returned unchanged.
func ImputeRates(rows []Classified) ([]Classified, int) {
	out := make([]Classified, len(rows))
	imputed := 0
	for i, r := range rows {
		if r.Rate == nil && r.Amount != nil {
			if mins := r.DurationMinutes(); mins > 0 {
				rate := *r.Amount / mins
				r.Rate = &rate
				imputed++
			}
			if r.RateUnit == nil && r.AmountUnit != nil {
				unit := *r.AmountUnit + "/min"
				r.RateUnit = &unit
			}
		}
		out[i] = r
	}
	return out, imputed
}

// GroupLookup maps med_category to med_group.
type GroupLookup map[string]string

// NewGroupLookup picks, per category, the group with the highest total
// frequency. Among ties a group containing "inhale" (any case) loses to one
// that does not; remaining ties go to the lexically smaller label.
func NewGroupLookup(mappingsIn []mappings.GroupMapping) GroupLookup {
	type cand struct {
		group string
		count int
	}
	byCat := make(map[string]map[string]int)
	for _, m := range mappingsIn {
		if m.MedCategory == "" || m.MedGroup == "" {
			continue
		}
		if byCat[m.MedCategory] == nil {
			byCat[m.MedCategory] = make(map[string]int)
		}
		byCat[m.MedCategory][m.MedGroup] += m.Count
	}

	out := make(GroupLookup, len(byCat))
	for cat, groups := range byCat {
		cands := make([]cand, 0, len(groups))
		for g, n := range groups {
			cands = append(cands, cand{g, n})
		}
		slices.SortFunc(cands, func(a, b cand) int {
			return cmp.Or(
				cmp.Compare(b.count, a.count),
				compareBool(normalize.ContainsFold(a.group, "inhale"), normalize.ContainsFold(b.group, "inhale")),
				strings.Compare(a.group, b.group),
			)
		})
		out[cat] = cands[0].group
	}
	return out
}

// compareBool orders false before true.
func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	}
	return 1
}

// Group returns the med_group of a category, or nil when unmapped.
func (g GroupLookup) Group(category string) *string {
	if v, ok := g[category]; ok {
		return &v
	}
	return nil
}

// ToUTCIntervals reads start and end times as wall-clock time in loc and
// converts them to UTC. Everything downstream groups and orders on the
// converted instants. It returns how many timestamps fell in a
// spring-forward gap and were shifted forward.
func ToUTCIntervals(raw []model.RawInterval, loc *time.Location) ([]model.RawInterval, int) {
	out := make([]model.RawInterval, len(raw))
	shifted := 0
	for i, r := range raw {
		if normalize.Nonexistent(r.StartTime, loc) {
			shifted++
		}
		if normalize.Nonexistent(r.EndTime, loc) {
			shifted++
		}
		r.StartTime = normalize.ToUTC(r.StartTime, loc)
		r.EndTime = normalize.ToUTC(r.EndTime, loc)
		out[i] = r
	}
	return out, shifted
}

// Finalize casts points to output rows: ids become strings, instants are
// stamped UTC, and med_group is attached. The result is sorted by
// (hospitalization_id, med_order_id, med_category, admin_dttm). A row count
// change is ErrIntegrity.
func Finalize(points []Point, groups GroupLookup) ([]model.AdminEvent, error) {
	out := make([]model.AdminEvent, 0, len(points))
	for i := range points {
		p := &points[i]
		out = append(out, model.AdminEvent{
			HospitalizationID: strconv.FormatInt(p.HadmID, 10),
			MedOrderID:        strconv.FormatInt(p.OrderID, 10),
			AdminDttm:         p.Instant.UTC(),
			MedName:           p.MedName,
			MedCategory:       p.MedCategory,
			MedGroup:          groups.Group(p.MedCategory),
			MedRouteName:      nilIfEmpty(p.RouteName),
			MedRouteCategory:  p.RouteCategory,
			MedDose:           p.Dose,
			MedDoseUnit:       normalize.NilIfBlank(p.DoseUnit),
			MarActionName:     p.ActionName,
			MarActionCategory: p.ActionCategory,
		})
	}
	if len(out) != len(points) {
		return nil, fmt.Errorf("%w: dtype casting produced %d rows from %d", ErrIntegrity, len(out), len(points))
	}

	slices.SortStableFunc(out, func(a, b model.AdminEvent) int {
		return cmp.Or(
			strings.Compare(a.HospitalizationID, b.HospitalizationID),
			strings.Compare(a.MedOrderID, b.MedOrderID),
			strings.Compare(a.MedCategory, b.MedCategory),
			a.AdminDttm.Compare(b.AdminDttm),
		)
	})
	return out, nil
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
