package medadmin

import (
	"fmt"
	"strings"

	"github.com/clif-consortium/clifmeds/internal/mappings"
	"github.com/clif-consortium/clifmeds/internal/model"
	"github.com/clif-consortium/clifmeds/internal/normalize"
)

// ItemClass is the per-item continuous/intermittent decision.
type ItemClass string

const (
	ClassUnknown      ItemClass = ""
	ClassContinuous   ItemClass = "continuous"
	ClassIntermittent ItemClass = "intermittent"
	ClassBoth         ItemClass = "both"
)

// ParseItemClass maps a med_category decision label to an ItemClass.
func ParseItemClass(decision string) ItemClass {
	switch strings.ToUpper(strings.TrimSpace(decision)) {
	case "CONTINUOUS":
		return ClassContinuous
	case "INTERMITTENT":
		return ClassIntermittent
	case "BOTH":
		return ClassBoth
	}
	return ClassUnknown
}

// Route categories only the override table may resolve.
var sentinelRouteCategories = []string{"SPECIAL", "UNINFORMATIVE"}

// Bolus-indicating order metadata.
const (
	bolusOrderCategory = "05-Med Bolus"
	statusBolus        = "Bolus"
)

var bolusDescriptions = []string{"Drug Push", "Bolus"}

// Classified is a raw interval with its route and administration class attached.
type Classified struct {
	model.RawInterval

	RouteName     string
	RouteCategory *string
	MedCategory   string
	ItemClass     ItemClass
	BolusSignal   bool
}

// RouteResolver resolves route categories from the general and override tables.
type RouteResolver struct {
	overrides map[overrideKey]string
	general   map[mappings.RouteKey]string
}

type overrideKey struct {
	itemID int64
	key    mappings.RouteKey
}

// NewRouteResolver indexes rt, keeping the first matching rule of each key.
// General rules resolving to a sentinel category are skipped.
func NewRouteResolver(rt *mappings.RouteTable) *RouteResolver {
	r := &RouteResolver{
		overrides: make(map[overrideKey]string),
		general:   make(map[mappings.RouteKey]string),
	}
	for _, rule := range rt.Overrides {
		k := overrideKey{rule.ItemID, rule.Key}
		if _, ok := r.overrides[k]; !ok {
			r.overrides[k] = rule.Category
		}
	}
	for _, rule := range rt.General {
		if isSentinel(rule.Category) {
			continue
		}
		if _, ok := r.general[rule.Key]; !ok {
			r.general[rule.Key] = rule.Category
		}
	}
	return r
}

// Resolve returns the route category for an item and key, or nil.
func (r *RouteResolver) Resolve(itemID int64, key mappings.RouteKey) *string {
	if c, ok := r.overrides[overrideKey{itemID, key}]; ok && c != "" {
		return &c
	}
	if c, ok := r.general[key]; ok && c != "" {
		return &c
	}
	return nil
}

// RouteKeyOf extracts the five route fields of an interval.
func RouteKeyOf(iv *model.RawInterval) mappings.RouteKey {
	return mappings.RouteKey{
		normalize.Deref(iv.OrderCategoryName),
		normalize.Deref(iv.SecondaryOrderCategoryName),
		normalize.Deref(iv.ComponentTypeDescription),
		normalize.Deref(iv.OrderCategoryDescription),
		normalize.Deref(iv.ItemCategory),
	}
}

// RouteName joins the present route fields with "; " in RouteFields order.
func RouteName(key mappings.RouteKey) string {
	parts := make([]string, 0, len(key))
	for _, v := range key {
		if v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, "; ")
}

// HasBolusSignal reports whether an interval's order metadata marks it as a bolus.
func HasBolusSignal(iv *model.RawInterval) bool {
	if normalize.Deref(iv.OrderCategoryName) == bolusOrderCategory {
		return true
	}
	desc := normalize.Deref(iv.OrderCategoryDescription)
	for _, d := range bolusDescriptions {
		if desc == d {
			return true
		}
	}
	return iv.Status == statusBolus
}

// Classify attaches route and class attributes to every interval. It returns
// exactly one Classified per input; any other outcome is ErrIntegrity.
func Classify(intervals []model.RawInterval, routes *RouteResolver, cats *mappings.CategoryTable) ([]Classified, error) {
	out := make([]Classified, 0, len(intervals))
	for i := range intervals {
		iv := intervals[i]
		key := RouteKeyOf(&iv)
		c := Classified{
			RawInterval:   iv,
			RouteName:     RouteName(key),
			RouteCategory: routes.Resolve(iv.ItemID, key),
			BolusSignal:   HasBolusSignal(&iv),
		}
		if e, ok := cats.Lookup(iv.ItemID); ok {
			c.MedCategory = e.MedCategory
			c.ItemClass = ParseItemClass(e.Decision)
		}
		out = append(out, c)
	}
	if len(out) != len(intervals) {
		return nil, fmt.Errorf("%w: route mapping produced %d rows from %d", ErrIntegrity, len(out), len(intervals))
	}
	return out, nil
}

// DropNonPositive removes intervals whose end is not after their start.
func DropNonPositive(rows []Classified) ([]Classified, int) {
	kept := rows[:0:0]
	for _, r := range rows {
		if r.EndTime.After(r.StartTime) {
			kept = append(kept, r)
		}
	}
	return kept, len(rows) - len(kept)
}

func isSentinel(category string) bool {
	for _, s := range sentinelRouteCategories {
		if strings.EqualFold(category, s) {
			return true
		}
	}
	return false
}
