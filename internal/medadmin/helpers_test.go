package medadmin

import (
	"time"

	"github.com/clif-consortium/clifmeds/internal/model"
	"github.com/clif-consortium/clifmeds/internal/normalize"
)

var t0 = time.Date(2150, time.January, 1, 10, 0, 0, 0, time.UTC)

// at returns t0 plus min minutes.
func at(min int) time.Time { return t0.Add(time.Duration(min) * time.Minute) }

// drip returns a norepinephrine drip interval charted the way MIMIC charts
// continuous vasopressors.
func drip(seq, order int64, start, end int, status string, rate float64) model.RawInterval {
	return model.RawInterval{
		Seq:                      seq,
		SubjectID:                10001,
		HadmID:                   20001,
		OrderID:                  order,
		StartTime:                at(start),
		EndTime:                  at(end),
		Status:                   status,
		ItemID:                   221906,
		Label:                    "Norepinephrine",
		ItemCategory:             normalize.Ptr("Medications"),
		Rate:                     normalize.Ptr(rate),
		RateUnit:                 normalize.Ptr("mcg/kg/min"),
		Amount:                   normalize.Ptr(rate * float64(end-start)),
		AmountUnit:               normalize.Ptr("mg"),
		OrderCategoryName:        normalize.Ptr("01-Drips"),
		ComponentTypeDescription: normalize.Ptr("Main order parameter"),
		OrderCategoryDescription: normalize.Ptr("Continuous Med"),
	}
}

// push returns a vancomycin IV push, an intermittent item.
func push(seq, order int64, start int, amount float64, unit *string) model.RawInterval {
	return model.RawInterval{
		Seq:                      seq,
		SubjectID:                10001,
		HadmID:                   20001,
		OrderID:                  order,
		StartTime:                at(start),
		EndTime:                  at(start + 1),
		Status:                   "FinishedRunning",
		ItemID:                   225798,
		Label:                    "Vancomycin",
		ItemCategory:             normalize.Ptr("Antibiotics"),
		Amount:                   normalize.Ptr(amount),
		AmountUnit:               unit,
		OrderCategoryName:        normalize.Ptr("08-Antibiotics (IV)"),
		ComponentTypeDescription: normalize.Ptr("Main order parameter"),
		OrderCategoryDescription: normalize.Ptr("Drug Push"),
	}
}

// continuous wraps raw intervals as continuous norepinephrine rows.
func continuous(raw ...model.RawInterval) []Classified {
	out := make([]Classified, len(raw))
	for i, r := range raw {
		out[i] = Classified{RawInterval: r, MedCategory: "norepinephrine", ItemClass: ClassContinuous}
	}
	return out
}

// intermittent wraps raw intervals as intermittent vancomycin rows.
func intermittent(raw ...model.RawInterval) []Classified {
	out := make([]Classified, len(raw))
	for i, r := range raw {
		out[i] = Classified{RawInterval: r, MedCategory: "vancomycin", ItemClass: ClassIntermittent}
	}
	return out
}
