package mappings

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ExcludedDecisions are med_category decisions whose items are never extracted.
var ExcludedDecisions = []string{
	"NO MAPPING",
	"UNSURE",
	"MAPPED ELSEWHERE",
	"NOT AVAILABLE",
	"TO MAP, ELSEWHERE",
}

// CategoryEntry is one row of the med_category table.
type CategoryEntry struct {
	ItemID      int64
	Label       string
	MedCategory string
	Decision    string
}

// CategoryTable maps source item ids to CLIF med_category and decision.
type CategoryTable struct {
	entries map[int64]CategoryEntry
}

// Lookup returns the entry for itemID.
func (c *CategoryTable) Lookup(itemID int64) (CategoryEntry, bool) {
	e, ok := c.entries[itemID]
	return e, ok
}

// Len returns the number of mapped items.
func (c *CategoryTable) Len() int { return len(c.entries) }

// RelevantItemIDs returns, in ascending order, every item whose decision is
// not one of ExcludedDecisions.
func (c *CategoryTable) RelevantItemIDs() []int64 {
	var ids []int64
	for id, e := range c.entries {
		if slices.Contains(ExcludedDecisions, strings.ToUpper(e.Decision)) {
			continue
		}
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// NewCategoryTable builds a CategoryTable from entries. Later duplicates of an
// item id are ignored.
func NewCategoryTable(entries []CategoryEntry) *CategoryTable {
	c := &CategoryTable{entries: make(map[int64]CategoryEntry, len(entries))}
	for _, e := range entries {
		if _, dup := c.entries[e.ItemID]; !dup {
			c.entries[e.ItemID] = e
		}
	}
	return c
}

// RouteFields are the raw order metadata columns, in route-name order.
var RouteFields = [5]string{
	"ordercategoryname",
	"secondaryordercategoryname",
	"ordercomponenttypedescription",
	"ordercategorydescription",
	"category",
}

// RouteKey holds the five RouteFields values; "" is an absent value.
type RouteKey [5]string

// RouteRule maps a RouteKey, optionally scoped to one item, to a route category.
type RouteRule struct {
	ItemID   int64
	Key      RouteKey
	Category string
}

// RouteTable holds the general and the item-specific route rules in file order.
type RouteTable struct {
	General   []RouteRule
	Overrides []RouteRule
}

// DedupEntry resolves one composite key of coinciding MAR actions.
type DedupEntry struct {
	Key        string
	ActionName string
	// DoseFrom names the provisional action whose dose is kept.
	DoseFrom string
}

// DedupTable is the versioned mar_action_dedup table keyed by composite key.
type DedupTable struct {
	entries map[string]DedupEntry
}

// NewDedupTable builds a DedupTable; keys are canonicalized with CompositeKey.
func NewDedupTable(entries []DedupEntry) *DedupTable {
	d := &DedupTable{entries: make(map[string]DedupEntry, len(entries))}
	for _, e := range entries {
		e.Key = CompositeKey(strings.Split(e.Key, ", "))
		d.entries[e.Key] = e
	}
	return d
}

// Lookup returns the entry for a composite key.
func (d *DedupTable) Lookup(key string) (DedupEntry, bool) {
	e, ok := d.entries[key]
	return e, ok
}

// Len returns the number of composite keys.
func (d *DedupTable) Len() int { return len(d.entries) }

// CompositeKey sorts names byte-wise and joins them with ", ".
func CompositeKey(names []string) string {
	s := make([]string, len(names))
	for i, n := range names {
		s[i] = strings.TrimSpace(n)
	}
	slices.Sort(s)
	return strings.Join(s, ", ")
}

// GroupMapping is one med_category to med_group observation with its frequency.
type GroupMapping struct {
	MedCategory string
	MedGroup    string
	Count       int
}

// Tables bundles every mapping needed by the medication builders.
type Tables struct {
	Categories *CategoryTable
	Routes     *RouteTable
	Dedup      *DedupTable
	Groups     []GroupMapping
}

// LoadAll reads every medication mapping table from s.
func LoadAll(s *Store) (*Tables, error) {
	cats, err := LoadCategories(s)
	if err != nil {
		return nil, err
	}
	routes, err := LoadRoutes(s)
	if err != nil {
		return nil, err
	}
	dedup, err := LoadDedup(s)
	if err != nil {
		return nil, err
	}
	groups, err := LoadGroups(s)
	if err != nil {
		return nil, err
	}
	return &Tables{Categories: cats, Routes: routes, Dedup: dedup, Groups: groups}, nil
}

// LoadCategories reads the med_category table.
func LoadCategories(s *Store) (*CategoryTable, error) {
	t, err := s.Load(MedCategory)
	if err != nil {
		return nil, err
	}
	if err := t.Require("itemid", "med_category", "decision"); err != nil {
		return nil, err
	}
	entries := make([]CategoryEntry, 0, len(t.Rows))
	for i := range t.Rows {
		id, err := parseItemID(t, i)
		if err != nil {
			return nil, err
		}
		entries = append(entries, CategoryEntry{
			ItemID:      id,
			Label:       t.Get(i, "label"),
			MedCategory: t.Get(i, "med_category"),
			Decision:    t.Get(i, "decision"),
		})
	}
	return NewCategoryTable(entries), nil
}

// LoadRoutes reads the med_route and med_route_override tables.
func LoadRoutes(s *Store) (*RouteTable, error) {
	general, err := s.Load(MedRoute)
	if err != nil {
		return nil, err
	}
	if err := general.Require(append(RouteFields[:], "med_route_category")...); err != nil {
		return nil, err
	}
	override, err := s.Load(MedRouteOverride)
	if err != nil {
		return nil, err
	}
	if err := override.Require(append([]string{"itemid", "med_route_category"}, RouteFields[:]...)...); err != nil {
		return nil, err
	}

	rt := &RouteTable{}
	for i := range general.Rows {
		rt.General = append(rt.General, RouteRule{
			Key:      routeKey(general, i),
			Category: general.Get(i, "med_route_category"),
		})
	}
	for i := range override.Rows {
		id, err := parseItemID(override, i)
		if err != nil {
			return nil, err
		}
		rt.Overrides = append(rt.Overrides, RouteRule{
			ItemID:   id,
			Key:      routeKey(override, i),
			Category: override.Get(i, "med_route_category"),
		})
	}
	return rt, nil
}

// LoadDedup reads the mar_action_dedup table.
func LoadDedup(s *Store) (*DedupTable, error) {
	t, err := s.Load(MarActionDedup)
	if err != nil {
		return nil, err
	}
	if err := t.Require("mar_action_names", "mar_action_name", "dose_from"); err != nil {
		return nil, err
	}
	entries := make([]DedupEntry, 0, len(t.Rows))
	for i := range t.Rows {
		entries = append(entries, DedupEntry{
			Key:        t.Get(i, "mar_action_names"),
			ActionName: t.Get(i, "mar_action_name"),
			DoseFrom:   t.Get(i, "dose_from"),
		})
	}
	return NewDedupTable(entries), nil
}

// LoadGroups reads the med_group table. A missing n column counts each row once.
func LoadGroups(s *Store) ([]GroupMapping, error) {
	t, err := s.Load(MedGroup)
	if err != nil {
		return nil, err
	}
	if err := t.Require("med_category", "med_group"); err != nil {
		return nil, err
	}
	out := make([]GroupMapping, 0, len(t.Rows))
	for i := range t.Rows {
		n := 1
		if v := t.Get(i, "n"); v != "" {
			n, err = strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("mapping %s row %d: bad n %q: %w", t.Name, i+2, v, err)
			}
		}
		out = append(out, GroupMapping{
			MedCategory: t.Get(i, "med_category"),
			MedGroup:    t.Get(i, "med_group"),
			Count:       n,
		})
	}
	return out, nil
}

func routeKey(t *Table, i int) RouteKey {
	var k RouteKey
	for j, f := range RouteFields {
		k[j] = t.Get(i, f)
	}
	return k
}

func parseItemID(t *Table, i int) (int64, error) {
	v := t.Get(i, "itemid")
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("mapping %s row %d: bad itemid %q: %w", t.Name, i+2, v, err)
	}
	return id, nil
}
