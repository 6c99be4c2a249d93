// mkfixture creates a small MIMIC-IV fixture (icu/inputevents + icu/d_items)
// from a full Parquet copy, keeping every row of a few hospitalizations.
// Two-pass: first scans inputevents to find hospitalizations covering the
// MAR actions the builders care about, then copies their rows.
// Usage: go run ./cmd/mkfixture --in data/mimic-iv-3.1 --out testdata/mimic-small --hadms 40
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	goparquet "github.com/parquet-go/parquet-go"
	"github.com/rs/zerolog"

	"github.com/clif-consortium/clifmeds/internal/medadmin"
	"github.com/clif-consortium/clifmeds/internal/model"
	"github.com/clif-consortium/clifmeds/internal/normalize"
	"github.com/clif-consortium/clifmeds/internal/source"
)

func main() {
	in := flag.String("in", "data/mimic-iv-3.1", "MIMIC-IV parquet root")
	out := flag.String("out", "testdata/mimic-small", "fixture root to write")
	maxHadms := flag.Int("hadms", 40, "max hospitalizations to keep")
	checkOnly := flag.Bool("check", false, "only print stats, don't write")
	flag.Parse()

	store, err := source.NewParquetStore(*in, zerolog.Nop())
	if err != nil {
		fail("open source", err)
	}
	eventsPath, err := store.Layout.Path("inputevents")
	if err != nil {
		fail("locate inputevents", err)
	}
	itemsPath, err := store.Layout.Path("d_items")
	if err != nil {
		fail("locate d_items", err)
	}

	// Pass 1: bucket hospitalizations by the traits they exercise.
	type bucket struct {
		name  string
		hadms []int64
		want  int
	}
	buckets := []*bucket{
		{name: "bolus", want: 8},
		{name: "paused", want: 8},
		{name: "dose_change", want: 8},
		{name: "long_running", want: 8},
		{name: "general", want: *maxHadms},
	}
	bucketMap := make(map[string]*bucket)
	for _, b := range buckets {
		bucketMap[b.name] = b
	}
	seen := make(map[int64]bool)
	place := func(name string, hadm int64) {
		b := bucketMap[name]
		if seen[hadm] || len(b.hadms) >= b.want {
			return
		}
		b.hadms = append(b.hadms, hadm)
		seen[hadm] = true
	}

	var totalRead int
	scan(eventsPath, func(row *model.InputEventRow) {
		totalRead++
		status := normalize.Deref(row.StatusDescription)
		_, longRunning := medadmin.LongRunningInfusionItemIDs[row.ItemID]
		switch {
		case status == "Bolus" || normalize.ContainsFold(normalize.Deref(row.OrderCategoryDescription), "bolus"):
			place("bolus", row.HadmID)
		case status == "Paused":
			place("paused", row.HadmID)
		case status == "ChangeDose/Rate":
			place("dose_change", row.HadmID)
		case longRunning && row.EndTime.Sub(row.StartTime) > 0:
			place("long_running", row.HadmID)
		default:
			place("general", row.HadmID)
		}
	})
	fmt.Printf("Scanned %d rows\n", totalRead)

	// Merge buckets in priority order
	var selected []int64
	for _, b := range buckets {
		for _, h := range b.hadms {
			if len(selected) >= *maxHadms {
				break
			}
			selected = append(selected, h)
		}
	}
	slices.Sort(selected)
	for _, b := range buckets {
		fmt.Printf("  %-12s %d hospitalizations\n", b.name, len(b.hadms))
	}

	if *checkOnly {
		return
	}

	// Pass 2: copy every row of the selected hospitalizations.
	var rows []model.InputEventRow
	scan(eventsPath, func(row *model.InputEventRow) {
		if _, ok := slices.BinarySearch(selected, row.HadmID); ok {
			rows = append(rows, *row)
		}
	})
	var items []model.ItemRow
	scan(itemsPath, func(row *model.ItemRow) { items = append(items, *row) })

	icu := filepath.Join(*out, "icu")
	if err := os.MkdirAll(icu, 0o755); err != nil {
		fail("create output", err)
	}
	if err := os.MkdirAll(filepath.Join(*out, "hosp"), 0o755); err != nil {
		fail("create output", err)
	}
	if err := goparquet.WriteFile(filepath.Join(icu, "inputevents.parquet"), rows); err != nil {
		fail("write inputevents", err)
	}
	if err := goparquet.WriteFile(filepath.Join(icu, "d_items.parquet"), items); err != nil {
		fail("write d_items", err)
	}

	fmt.Printf("Wrote %d inputevents rows for %d hospitalizations and %d items to %s\n",
		len(rows), len(selected), len(items), *out)
}

func scan[T any](path string, fn func(*T)) {
	r, err := source.OpenReader[T](path)
	if err != nil {
		fail("open "+path, err)
	}
	defer r.Close()
	buf := make([]T, 1024)
	for {
		n, readErr := r.Read(buf)
		for i := 0; i < n; i++ {
			fn(&buf[i])
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			fail("read "+path, readErr)
		}
	}
}

func fail(what string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", what, err)
	os.Exit(1)
}
