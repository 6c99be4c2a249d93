package validate

import (
	"strings"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
)

type row struct {
	ID       string
	Category string
	Dose     *float64
	At       time.Time
}

func testSchema() *Schema[row] {
	return &Schema[row]{
		Table: "t",
		Columns: []Column[row]{
			{Name: "id", Type: String, Get: func(r *row) any { return r.ID }},
			{Name: "category", Type: String, Allowed: []string{"start", "stop"}, Get: func(r *row) any { return r.Category }},
			{Name: "dose", Type: Float, Nullable: true, Get: func(r *row) any { return r.Dose }},
			{Name: "at", Type: Datetime, UTC: true, Get: func(r *row) any { return r.At }},
		},
		Unique: []string{"id", "at"},
	}
}

func TestValidate_Valid(t *testing.T) {
	at := time.Date(2150, 1, 1, 10, 0, 0, 0, time.UTC)
	res := testSchema().Validate([]row{
		{ID: "1", Category: "start", At: at},
		{ID: "1", Category: "stop", At: at.Add(time.Minute)},
	})
	if !res.Valid() {
		t.Fatalf("expected valid, got %v", res.Violations)
	}
	if res.Err() != nil {
		t.Error("Err() should be nil for a valid result")
	}
}

func TestValidate_CollectsAllViolations(t *testing.T) {
	at := time.Date(2150, 1, 1, 10, 0, 0, 0, time.UTC)
	est := time.FixedZone("EST", -5*3600)
	res := testSchema().Validate([]row{
		{ID: "", Category: "start", At: at},           // null id
		{ID: "2", Category: "bogus", At: at},          // bad category
		{ID: "3", Category: "stop", At: at.In(est)},   // not UTC
		{ID: "2", Category: "start", At: at},          // duplicate of row 1
		{ID: "4", Category: "paused", At: at.In(est)}, // two violations in one row
	})
	if res.Valid() {
		t.Fatal("expected invalid result")
	}
	if len(res.Violations) != 6 {
		t.Fatalf("expected 6 violations, got %d: %v", len(res.Violations), res.Violations)
	}
	counts := res.ByColumn()
	if counts["category"] != 2 || counts["at"] != 2 || counts["id"] != 1 || counts["id+at"] != 1 {
		t.Errorf("unexpected per-column counts: %v", counts)
	}

	err := res.Err()
	se, ok := err.(*SchemaError)
	if !ok {
		t.Fatalf("expected *SchemaError, got %T", err)
	}
	if !strings.Contains(se.Error(), "6 schema violations") {
		t.Errorf("unexpected error text: %s", se.Error())
	}
}

func TestValidate_TypeMismatch(t *testing.T) {
	s := &Schema[row]{
		Table: "t",
		Columns: []Column[row]{
			{Name: "id", Type: Float, Get: func(r *row) any { return r.ID }},
		},
	}
	res := s.Validate([]row{{ID: "x"}})
	if len(res.Violations) != 1 || !strings.HasPrefix(res.Violations[0].Check, "dtype float") {
		t.Errorf("expected dtype violation, got %v", res.Violations)
	}
}

type stored struct {
	ID   string    `parquet:"id"`
	Dose *float64  `parquet:"dose,optional"`
	At   time.Time `parquet:"at,timestamp(microsecond)"`
}

func TestCheckParquet(t *testing.T) {
	ps := parquet.SchemaOf(stored{})
	got := testSchema().CheckParquet(ps)
	// category is declared but not stored.
	if len(got) != 1 || got[0].Column != "category" || got[0].Check != "missing column" {
		t.Errorf("unexpected violations: %v", got)
	}
}
