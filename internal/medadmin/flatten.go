package medadmin

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/clif-consortium/clifmeds/internal/mappings"
)

// Side tells which end of an interval a point was emitted from.
type Side int

const (
	SideStart Side = iota
	SideEnd
)

// Provisional action names assigned to start-side points.
const (
	ActionStarted       = "[Started]"
	ActionRestarted     = "[Restarted]"
	ActionStartedBolus  = "[Started Bolus]"
	ActionFinishedBolus = "[Finished Bolus]"
)

// MAR action categories.
const (
	CategoryDoseChange = "dose_change"
	CategoryStart      = "start"
	CategoryStop       = "stop"
	CategoryGoing      = "going"
	CategoryOther      = "other"
	CategoryGiven      = "given"
)

var stopActions = []string{
	"FinishedRunning",
	"FinishedRunning, FinishedRunning",
	"Stopped",
	"Paused",
	"Bolus",
}

// Point is one discrete administration event for an order.
type Point struct {
	HadmID      int64
	OrderID     int64
	MedCategory string
	Instant     time.Time

	ItemID        int64
	MedName       string
	RouteName     string
	RouteCategory *string

	Side        Side
	Status      string
	Provisional string
	Rank        int
	// Seq is the source interval's extraction sequence.
	Seq int64

	Dose     *float64
	DoseUnit *string

	ActionName     string
	ActionCategory string
}

// FlattenStats reports what the continuous flattening removed or could not resolve.
type FlattenStats struct {
	DuplicateIntervals int
	PointsCollapsed    int
	// UnmappedPoints is the part of PointsCollapsed dropped from groups with
	// no mar_action_dedup entry.
	UnmappedPoints int
	// UnmappedKeys counts same-instant groups whose composite key has no
	// mar_action_dedup entry.
	UnmappedKeys map[string]int
	// MisconfiguredKeys counts mapped groups with no row named by dose_from.
	MisconfiguredKeys map[string]int
}

// FlattenContinuous turns continuous intervals into one chronological stream
// of MAR actions per order, with one row per (encounter, order, category, instant).
func FlattenContinuous(rows []Classified, dedup *mappings.DedupTable, log zerolog.Logger) ([]Point, FlattenStats) {
	stats := FlattenStats{
		UnmappedKeys:      make(map[string]int),
		MisconfiguredKeys: make(map[string]int),
	}

	unique, removed := DedupIntervals(rows)
	stats.DuplicateIntervals = removed
	if removed > 0 {
		log.Info().Int("removed", removed).Msg("dropped exact duplicate intervals")
	}

	points := Pivot(unique)
	AssignProvisional(points)
	out := Collapse(points, dedup, &stats)
	for i := range out {
		Categorize(&out[i])
	}

	for key, n := range stats.UnmappedKeys {
		log.Warn().Str("composite_key", key).Int("groups", n).
			Msg("no mar_action_dedup entry for coinciding actions; kept first row")
	}
	for key, n := range stats.MisconfiguredKeys {
		log.Warn().Str("composite_key", key).Int("groups", n).
			Msg("mar_action_dedup dose_from matches no row in group; kept first row")
	}
	return out, stats
}

// intervalOrder is the sort applied before exact-duplicate removal. Seq
// makes "keep first" mean first in extraction order.
func intervalOrder(a, b Classified) int {
	return cmp.Or(
		cmp.Compare(a.HadmID, b.HadmID),
		cmp.Compare(a.OrderID, b.OrderID),
		strings.Compare(a.MedCategory, b.MedCategory),
		a.StartTime.Compare(b.StartTime),
		a.EndTime.Compare(b.EndTime),
		cmp.Compare(a.Seq, b.Seq),
	)
}

// DedupIntervals keeps the first interval of every (encounter, order,
// category, start, end) group and returns it in sorted order.
func DedupIntervals(rows []Classified) ([]Classified, int) {
	sorted := slices.Clone(rows)
	slices.SortStableFunc(sorted, intervalOrder)

	out := sorted[:0:0]
	for i, r := range sorted {
		if i > 0 {
			p := sorted[i-1]
			if p.HadmID == r.HadmID && p.OrderID == r.OrderID && p.MedCategory == r.MedCategory &&
				p.StartTime.Equal(r.StartTime) && p.EndTime.Equal(r.EndTime) {
				continue
			}
		}
		out = append(out, r)
	}
	return out, len(rows) - len(out)
}

// Pivot emits a start-side and an end-side point for every interval. Both
// carry the interval's status, rate and rate unit.
func Pivot(rows []Classified) []Point {
	points := make([]Point, 0, 2*len(rows))
	for _, r := range rows {
		base := Point{
			HadmID:        r.HadmID,
			OrderID:       r.OrderID,
			MedCategory:   r.MedCategory,
			ItemID:        r.ItemID,
			MedName:       r.Label,
			RouteName:     r.RouteName,
			RouteCategory: r.RouteCategory,
			Status:        r.Status,
			Seq:           r.Seq,
			Dose:          r.Rate,
			DoseUnit:      r.RateUnit,
		}
		start, end := base, base
		start.Side, start.Instant = SideStart, r.StartTime
		end.Side, end.Instant = SideEnd, r.EndTime
		points = append(points, start, end)
	}
	slices.SortStableFunc(points, pointOrder)
	return points
}

func pointOrder(a, b Point) int {
	return cmp.Or(
		cmp.Compare(a.HadmID, b.HadmID),
		cmp.Compare(a.OrderID, b.OrderID),
		strings.Compare(a.MedCategory, b.MedCategory),
		a.Instant.Compare(b.Instant),
		cmp.Compare(a.Side, b.Side),
		cmp.Compare(a.Seq, b.Seq),
	)
}

func sameOrder(a, b *Point) bool {
	return a.HadmID == b.HadmID && a.OrderID == b.OrderID && a.MedCategory == b.MedCategory
}

// AssignProvisional sets Rank and Provisional on points sorted by pointOrder.
// Rank is the dense 1-based rank of the instant within its order.
func AssignProvisional(points []Point) {
	rank := 0
	for i := range points {
		p := &points[i]
		switch {
		case i == 0 || !sameOrder(&points[i-1], p):
			rank = 1
		case !points[i-1].Instant.Equal(p.Instant):
			rank++
		}
		p.Rank = rank

		switch {
		case p.Status == statusBolus && p.Side == SideStart:
			p.Provisional = ActionStartedBolus
		case p.Status == statusBolus && p.Side == SideEnd:
			p.Provisional = ActionFinishedBolus
		case p.Side == SideStart && rank == 1:
			p.Provisional = ActionStarted
		case p.Side == SideStart:
			p.Provisional = ActionRestarted
		default:
			p.Provisional = p.Status
		}
	}
}

// Collapse reduces each same-instant group of points sorted by pointOrder to
// a single point, resolving conflicts through the dedup table.
func Collapse(points []Point, dedup *mappings.DedupTable, stats *FlattenStats) []Point {
	var out []Point
	for start := 0; start < len(points); {
		end := start + 1
		for end < len(points) && sameOrder(&points[start], &points[end]) &&
			points[start].Instant.Equal(points[end].Instant) {
			end++
		}
		out = append(out, resolveGroup(points[start:end], dedup, stats))
		start = end
	}
	return out
}

func resolveGroup(group []Point, dedup *mappings.DedupTable, stats *FlattenStats) Point {
	if len(group) == 1 {
		p := group[0]
		p.ActionName = p.Provisional
		return p
	}
	stats.PointsCollapsed += len(group) - 1

	// Candidates in a fixed order so "first" does not depend on input order.
	cands := slices.Clone(group)
	slices.SortStableFunc(cands, func(a, b Point) int {
		return cmp.Or(strings.Compare(a.Provisional, b.Provisional), cmp.Compare(a.Seq, b.Seq))
	})
	names := make([]string, len(cands))
	for i, c := range cands {
		names[i] = c.Provisional
	}
	key := mappings.CompositeKey(names)

	entry, ok := dedup.Lookup(key)
	if !ok {
		stats.UnmappedKeys[key]++
		stats.UnmappedPoints += len(group) - 1
		p := cands[0]
		p.ActionName = key
		return p
	}
	for _, c := range cands {
		if c.Provisional == entry.DoseFrom {
			c.ActionName = entry.ActionName
			return c
		}
	}
	stats.MisconfiguredKeys[key]++
	p := cands[0]
	p.ActionName = entry.ActionName
	return p
}

// ActionCategory derives mar_action_category for a continuous action name.
func ActionCategory(name string) string {
	switch {
	case strings.Contains(name, "ChangeDose/Rate") || strings.Contains(name, "Bolus"):
		return CategoryDoseChange
	case name == ActionStarted || name == ActionRestarted:
		return CategoryStart
	case slices.Contains(stopActions, name):
		return CategoryStop
	case strings.Contains(name, ActionRestarted):
		return CategoryGoing
	}
	return CategoryOther
}

// Categorize sets ActionCategory and zeroes the dose of stop actions.
func Categorize(p *Point) {
	p.ActionCategory = ActionCategory(p.ActionName)
	if p.ActionCategory == CategoryStop {
		zero := 0.0
		p.Dose = &zero
	}
}
