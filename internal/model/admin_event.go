package model

import "time"

// Output table names.
const (
	TableMedAdminContinuous   = "medication_admin_continuous"
	TableMedAdminIntermittent = "medication_admin_intermittent"
)

// AdminEvent is one row of a CLIF medication_admin_* table: a single discrete
// MAR action for one order at one instant.
type AdminEvent struct {
	HospitalizationID string    `parquet:"hospitalization_id"`
	MedOrderID        string    `parquet:"med_order_id"`
	AdminDttm         time.Time `parquet:"admin_dttm,timestamp(microsecond)"`
	MedName           string    `parquet:"med_name"`
	MedCategory       string    `parquet:"med_category"`
	MedGroup          *string   `parquet:"med_group,optional"`
	MedRouteName      *string   `parquet:"med_route_name,optional"`
	MedRouteCategory  *string   `parquet:"med_route_category,optional"`
	MedDose           *float64  `parquet:"med_dose,optional"`
	MedDoseUnit       *string   `parquet:"med_dose_unit,optional"`
	MarActionName     string    `parquet:"mar_action_name"`
	MarActionCategory string    `parquet:"mar_action_category"`
}

// AdminEventColumns returns the ordered column names for COPY into clif.<table>.
func AdminEventColumns() []string {
	return []string{
		"hospitalization_id",
		"med_order_id",
		"admin_dttm",
		"med_name",
		"med_category",
		"med_group",
		"med_route_name",
		"med_route_category",
		"med_dose",
		"med_dose_unit",
		"mar_action_name",
		"mar_action_category",
	}
}

// CopyValues returns the row values in the same order as AdminEventColumns(),
// suitable for pgx CopyFromSource.
func (e *AdminEvent) CopyValues() []any {
	return []any{
		e.HospitalizationID,
		e.MedOrderID,
		e.AdminDttm,
		e.MedName,
		e.MedCategory,
		e.MedGroup,
		e.MedRouteName,
		e.MedRouteCategory,
		e.MedDose,
		e.MedDoseUnit,
		e.MarActionName,
		e.MarActionCategory,
	}
}
