package model

import "time"

// RawInterval is one infusion or bolus record as charted by the source
// system, with its d_items label and category joined in. An infusion whose
// rate changes is charted as several consecutive intervals sharing OrderID.
type RawInterval struct {
	// Seq is the position of the record in extraction order. It is the
	// tie-break for every sort that must be reproducible across runs.
	Seq int64

	SubjectID int64
	HadmID    int64
	// OrderID is MIMIC's linkorderid: stable across rate changes of one order.
	OrderID   int64
	StartTime time.Time
	EndTime   time.Time
	Status    string

	ItemID       int64
	Label        string
	ItemCategory *string

	Rate       *float64
	RateUnit   *string
	Amount     *float64
	AmountUnit *string

	OrderCategoryName          *string
	SecondaryOrderCategoryName *string
	ComponentTypeDescription   *string
	OrderCategoryDescription   *string

	PatientWeight *float64
}

// Duration returns EndTime - StartTime.
func (r *RawInterval) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// DurationMinutes returns the interval length in fractional minutes.
func (r *RawInterval) DurationMinutes() float64 {
	return r.Duration().Minutes()
}

// FromInputEvent converts a Parquet source row into a RawInterval. Label and
// ItemCategory are filled by the caller from d_items.
func FromInputEvent(row *InputEventRow, seq int64) RawInterval {
	return RawInterval{
		Seq:                        seq,
		SubjectID:                  row.SubjectID,
		HadmID:                     row.HadmID,
		OrderID:                    row.LinkOrderID,
		StartTime:                  row.StartTime,
		EndTime:                    row.EndTime,
		Status:                     deref(row.StatusDescription),
		ItemID:                     row.ItemID,
		Rate:                       row.Rate,
		RateUnit:                   row.RateUOM,
		Amount:                     row.Amount,
		AmountUnit:                 row.AmountUOM,
		OrderCategoryName:          row.OrderCategoryName,
		SecondaryOrderCategoryName: row.SecondaryOrderCategoryName,
		ComponentTypeDescription:   row.OrderComponentTypeDescription,
		OrderCategoryDescription:   row.OrderCategoryDescription,
		PatientWeight:              row.PatientWeight,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
