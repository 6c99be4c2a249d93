package model

import "time"

// InputEventRow mirrors the subset of the MIMIC-IV icu/inputevents Parquet
// schema read by the medication builders. Every column is optional because
// the columnar copies are produced from CSV and carry no NOT NULL metadata.
type InputEventRow struct {
	SubjectID int64     `parquet:"subject_id,optional"`
	HadmID    int64     `parquet:"hadm_id,optional"`
	StayID    int64     `parquet:"stay_id,optional"`
	StartTime time.Time `parquet:"starttime,optional,timestamp(microsecond)"`
	EndTime   time.Time `parquet:"endtime,optional,timestamp(microsecond)"`
	ItemID    int64     `parquet:"itemid,optional"`

	Amount      *float64 `parquet:"amount,optional"`
	AmountUOM   *string  `parquet:"amountuom,optional"`
	Rate        *float64 `parquet:"rate,optional"`
	RateUOM     *string  `parquet:"rateuom,optional"`
	OrderID     int64    `parquet:"orderid,optional"`
	LinkOrderID int64    `parquet:"linkorderid,optional"`

	OrderCategoryName             *string `parquet:"ordercategoryname,optional"`
	SecondaryOrderCategoryName    *string `parquet:"secondaryordercategoryname,optional"`
	OrderComponentTypeDescription *string `parquet:"ordercomponenttypedescription,optional"`
	OrderCategoryDescription      *string `parquet:"ordercategorydescription,optional"`

	PatientWeight     *float64 `parquet:"patientweight,optional"`
	StatusDescription *string  `parquet:"statusdescription,optional"`
}

// ItemRow mirrors icu/d_items.
type ItemRow struct {
	ItemID   int64   `parquet:"itemid,optional"`
	Label    *string `parquet:"label,optional"`
	Category *string `parquet:"category,optional"`
	LinksTo  *string `parquet:"linksto,optional"`
}
