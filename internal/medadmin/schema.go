package medadmin

import (
	"github.com/clif-consortium/clifmeds/internal/model"
	"github.com/clif-consortium/clifmeds/internal/validate"
)

// Permitted med_route_category values per output table.
var (
	ContinuousRouteCategories   = []string{"iv", "subcutaneous", "inhaled"}
	IntermittentRouteCategories = []string{"iv", "subcutaneous", "intramuscular", "inhaled", "enteral", "sublingual", "rectal", "topical"}
)

// Permitted mar_action_category values per output table.
var (
	ContinuousActionCategories   = []string{CategoryDoseChange, CategoryStart, CategoryStop, CategoryGoing, CategoryOther}
	IntermittentActionCategories = []string{CategoryGiven, CategoryOther}
)

// ContinuousSchema is the contract of medication_admin_continuous.
var ContinuousSchema = adminSchema(model.TableMedAdminContinuous, ContinuousRouteCategories, ContinuousActionCategories,
	"hospitalization_id", "med_order_id", "med_category", "admin_dttm")

// IntermittentSchema is the contract of medication_admin_intermittent.
var IntermittentSchema = adminSchema(model.TableMedAdminIntermittent, IntermittentRouteCategories, IntermittentActionCategories)

// SchemaFor returns the schema of an output table.
func SchemaFor(table string) *validate.Schema[model.AdminEvent] {
	if table == model.TableMedAdminIntermittent {
		return IntermittentSchema
	}
	return ContinuousSchema
}

func adminSchema(table string, routes, actions []string, unique ...string) *validate.Schema[model.AdminEvent] {
	type ev = model.AdminEvent
	return &validate.Schema[model.AdminEvent]{
		Table: table,
		Columns: []validate.Column[model.AdminEvent]{
			{Name: "hospitalization_id", Type: validate.String, Get: func(e *ev) any { return e.HospitalizationID }},
			{Name: "med_order_id", Type: validate.String, Get: func(e *ev) any { return e.MedOrderID }},
			{Name: "admin_dttm", Type: validate.Datetime, UTC: true, Get: func(e *ev) any { return e.AdminDttm }},
			{Name: "med_name", Type: validate.String, Get: func(e *ev) any { return e.MedName }},
			{Name: "med_category", Type: validate.String, Get: func(e *ev) any { return e.MedCategory }},
			{Name: "med_group", Type: validate.String, Nullable: true, Get: func(e *ev) any { return e.MedGroup }},
			{Name: "med_route_name", Type: validate.String, Nullable: true, Get: func(e *ev) any { return e.MedRouteName }},
			{Name: "med_route_category", Type: validate.String, Nullable: true, Allowed: routes, Get: func(e *ev) any { return e.MedRouteCategory }},
			{Name: "med_dose", Type: validate.Float, Nullable: true, Get: func(e *ev) any { return e.MedDose }},
			{Name: "med_dose_unit", Type: validate.String, Nullable: true, Get: func(e *ev) any { return e.MedDoseUnit }},
			{Name: "mar_action_name", Type: validate.String, Get: func(e *ev) any { return e.MarActionName }},
			{Name: "mar_action_category", Type: validate.String, Allowed: actions, Get: func(e *ev) any { return e.MarActionCategory }},
		},
		Unique: unique,
	}
}
