package source

import (
	"compress/gzip"
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/clif-consortium/clifmeds/internal/model"
	"github.com/clif-consortium/clifmeds/internal/normalize"
)

var fixtureStart = time.Date(2150, time.March, 4, 8, 0, 0, 0, time.UTC)

func fixtureItems() []model.ItemRow {
	return []model.ItemRow{
		{ItemID: 221906, Label: normalize.Ptr("Norepinephrine"), Category: normalize.Ptr("Medications"), LinksTo: normalize.Ptr("inputevents")},
		{ItemID: 225798, Label: normalize.Ptr("Vancomycin"), Category: normalize.Ptr("Antibiotics"), LinksTo: normalize.Ptr("inputevents")},
		{ItemID: 220045, Label: normalize.Ptr("Heart Rate"), Category: normalize.Ptr("Routine Vital Signs"), LinksTo: normalize.Ptr("chartevents")},
		{ItemID: 225158, Label: normalize.Ptr("NaCl 0.9%"), Category: normalize.Ptr("Fluids/Intake"), LinksTo: normalize.Ptr("inputevents")},
	}
}

// fixtureEvents is sorted by (hadm_id, linkorderid, starttime, endtime, orderid).
func fixtureEvents() []model.InputEventRow {
	ev := func(hadm, link, order, item int64, startMin, endMin int, status string) model.InputEventRow {
		return model.InputEventRow{
			SubjectID:                     10000 + hadm,
			HadmID:                        hadm,
			StayID:                        30000 + hadm,
			StartTime:                     fixtureStart.Add(time.Duration(startMin) * time.Minute),
			EndTime:                       fixtureStart.Add(time.Duration(endMin) * time.Minute),
			ItemID:                        item,
			Amount:                        normalize.Ptr(float64(endMin - startMin)),
			AmountUOM:                     normalize.Ptr("mg"),
			Rate:                          normalize.Ptr(0.5),
			RateUOM:                       normalize.Ptr("mcg/kg/min"),
			OrderID:                       order,
			LinkOrderID:                   link,
			OrderCategoryName:             normalize.Ptr("01-Drips"),
			OrderComponentTypeDescription: normalize.Ptr("Main order parameter"),
			OrderCategoryDescription:      normalize.Ptr("Continuous Med"),
			PatientWeight:                 normalize.Ptr(81.2),
			StatusDescription:             normalize.Ptr(status),
		}
	}
	push := ev(1, 50, 50, 225798, 30, 31, "FinishedRunning")
	push.Rate, push.RateUOM = nil, nil
	push.OrderCategoryName = normalize.Ptr("08-Antibiotics (IV)")
	push.OrderCategoryDescription = normalize.Ptr("Drug Push")

	return []model.InputEventRow{
		ev(1, 40, 40, 225158, 0, 60, "FinishedRunning"),
		ev(1, 41, 41, 221906, 0, 10, "ChangeDose/Rate"),
		ev(1, 41, 42, 221906, 10, 25, "FinishedRunning"),
		push,
		ev(2, 60, 60, 221906, 5, 95, "Stopped"),
	}
}

// wantedItems are the item ids the tests fetch: two inputevents items plus a
// chartevents item that must be skipped.
var wantedItems = []int64{220045, 221906, 225798}

func writeParquetFixture(t *testing.T, dir string) {
	t.Helper()
	icu := filepath.Join(dir, "icu")
	for _, sub := range []string{icu, filepath.Join(dir, "hosp")} {
		if err := os.MkdirAll(sub, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	if err := parquet.WriteFile(filepath.Join(icu, "d_items.parquet"), fixtureItems()); err != nil {
		t.Fatalf("write d_items: %v", err)
	}
	if err := parquet.WriteFile(filepath.Join(icu, "inputevents.parquet"), fixtureEvents()); err != nil {
		t.Fatalf("write inputevents: %v", err)
	}
}

func writeCSVFixture(t *testing.T, dir string) {
	t.Helper()
	writeGzipCSV(t, filepath.Join(dir, "d_items.csv.gz"),
		[]string{"itemid", "label", "abbreviation", "linksto", "category"},
		func(emit func(...string)) {
			for _, it := range fixtureItems() {
				emit(strconv.FormatInt(it.ItemID, 10), *it.Label, "", *it.LinksTo, *it.Category)
			}
		})
	writeGzipCSV(t, filepath.Join(dir, "inputevents.csv.gz"),
		[]string{
			"subject_id", "hadm_id", "stay_id", "starttime", "endtime", "itemid",
			"amount", "amountuom", "rate", "rateuom", "orderid", "linkorderid",
			"ordercategoryname", "secondaryordercategoryname", "ordercomponenttypedescription",
			"ordercategorydescription", "patientweight", "statusdescription",
		},
		func(emit func(...string)) {
			for _, e := range fixtureEvents() {
				emit(
					strconv.FormatInt(e.SubjectID, 10),
					strconv.FormatInt(e.HadmID, 10),
					strconv.FormatInt(e.StayID, 10),
					e.StartTime.Format("2006-01-02 15:04:05"),
					e.EndTime.Format("2006-01-02 15:04:05"),
					strconv.FormatInt(e.ItemID, 10),
					fmtFloat(e.Amount), deref(e.AmountUOM),
					fmtFloat(e.Rate), deref(e.RateUOM),
					strconv.FormatInt(e.OrderID, 10),
					strconv.FormatInt(e.LinkOrderID, 10),
					deref(e.OrderCategoryName), deref(e.SecondaryOrderCategoryName),
					deref(e.OrderComponentTypeDescription), deref(e.OrderCategoryDescription),
					fmtFloat(e.PatientWeight), deref(e.StatusDescription),
				)
			}
		})
}

func writeGzipCSV(t *testing.T, path string, header []string, rows func(emit func(...string))) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	gz := gzip.NewWriter(f)
	w := csv.NewWriter(gz)
	if err := w.Write(header); err != nil {
		t.Fatalf("write header: %v", err)
	}
	rows(func(rec ...string) {
		if err := w.Write(rec); err != nil {
			t.Fatalf("write row: %v", err)
		}
	})
	w.Flush()
	if err := w.Error(); err != nil {
		t.Fatalf("flush csv: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}
}

func fmtFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// checkFetched asserts the rows every store must return for wantedItems.
func checkFetched(t *testing.T, got []model.RawInterval) {
	t.Helper()
	if len(got) != 4 {
		t.Fatalf("got %d intervals, want 4", len(got))
	}
	first := got[0]
	if first.ItemID != 221906 || first.OrderID != 41 || first.Status != "ChangeDose/Rate" {
		t.Errorf("first interval = item %d order %d status %q", first.ItemID, first.OrderID, first.Status)
	}
	if first.Label != "Norepinephrine" {
		t.Errorf("label = %q, want Norepinephrine", first.Label)
	}
	if first.ItemCategory == nil || *first.ItemCategory != "Medications" {
		t.Errorf("item category = %v, want Medications", first.ItemCategory)
	}
	if !first.StartTime.Equal(fixtureStart) || !first.EndTime.Equal(fixtureStart.Add(10*time.Minute)) {
		t.Errorf("times = %s..%s", first.StartTime, first.EndTime)
	}
	if first.Rate == nil || *first.Rate != 0.5 {
		t.Errorf("rate = %v, want 0.5", first.Rate)
	}
	if push := got[2]; push.ItemID != 225798 || push.Rate != nil || push.Amount == nil || *push.Amount != 1 {
		t.Errorf("push = item %d rate %v amount %v", push.ItemID, push.Rate, push.Amount)
	}
	for _, iv := range got {
		if iv.ItemID == 225158 || iv.ItemID == 220045 {
			t.Errorf("unexpected item %d returned", iv.ItemID)
		}
	}
}
