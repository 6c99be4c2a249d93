package medadmin

import "time"

// LongRunningInfusionItemIDs is a named exception list: these items are
// charted as intermittent at times but are titrated infusions. An
// intermittent interval of one of them lasting longer than a minute is
// treated as continuous.
var LongRunningInfusionItemIDs = map[int64]string{
	221906: "Norepinephrine",
	221289: "Epinephrine",
	221749: "Phenylephrine",
	222315: "Vasopressin",
	221662: "Dopamine",
}

const reclassifyMinDuration = time.Minute

// SplitResult partitions classified intervals into the two output streams.
type SplitResult struct {
	Continuous   []Classified
	Intermittent []Classified
	// Unclassified counts rows dropped for having no item class, by item id.
	Unclassified map[int64]int
	Reclassified int
}

// Dropped returns the total number of unclassified rows.
func (s *SplitResult) Dropped() int {
	n := 0
	for _, c := range s.Unclassified {
		n += c
	}
	return n
}

// Split routes each row to exactly one of continuous, intermittent or dropped.
func Split(rows []Classified) SplitResult {
	res := SplitResult{Unclassified: make(map[int64]int)}
	for _, r := range rows {
		switch r.ItemClass {
		case ClassContinuous:
			res.Continuous = append(res.Continuous, r)
		case ClassIntermittent:
			res.Intermittent = append(res.Intermittent, r)
		case ClassBoth:
			if r.BolusSignal {
				res.Intermittent = append(res.Intermittent, r)
			} else {
				res.Continuous = append(res.Continuous, r)
			}
		default:
			res.Unclassified[r.ItemID]++
		}
	}

	kept := res.Intermittent[:0:0]
	for _, r := range res.Intermittent {
		if _, ok := LongRunningInfusionItemIDs[r.ItemID]; ok && r.Duration() > reclassifyMinDuration {
			res.Continuous = append(res.Continuous, r)
			res.Reclassified++
			continue
		}
		kept = append(kept, r)
	}
	res.Intermittent = kept
	return res
}
