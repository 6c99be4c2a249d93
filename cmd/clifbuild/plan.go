package main

import (
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/clif-consortium/clifmeds/internal/exitcode"
	"github.com/clif-consortium/clifmeds/internal/logging"
	"github.com/clif-consortium/clifmeds/internal/mappings"
	"github.com/clif-consortium/clifmeds/internal/medadmin"
	"github.com/clif-consortium/clifmeds/internal/model"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Dry-run: build and validate the medication tables without writing",
	RunE:  runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat)
	ctx := context.Background()

	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.ConfigError)
	}
	loc, err := cfg.Location()
	if err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.ConfigError)
	}

	tables, err := mappings.LoadAll(mappings.NewStore(cfg.MappingsDir))
	if err != nil {
		log.Error().Err(err).Msg("loading mapping tables failed")
		os.Exit(exitcode.ConfigError)
	}

	store, closeStore, err := openStore(ctx, log)
	if err != nil {
		log.Error().Err(err).Msg("opening source failed")
		os.Exit(exitcode.SourceError)
	}
	defer closeStore()

	var outputs []string
	for _, t := range cfg.RequestedTables() {
		if t == model.TableMedAdminContinuous || t == model.TableMedAdminIntermittent {
			outputs = append(outputs, t)
		}
	}
	if len(outputs) == 0 {
		log.Error().Strs("tables", cfg.RequestedTables()).Msg("no medication tables requested")
		os.Exit(exitcode.UsageError)
	}

	res, err := medadmin.Build(ctx, log, medadmin.Deps{
		Store:    store,
		Tables:   tables,
		Location: loc,
		Outputs:  outputs,
	})
	if err != nil {
		log.Error().Err(err).Msg("plan failed")
		os.Exit(exitcode.BuildError)
	}

	s := res.Summary
	fmt.Println("=== clifbuild plan ===")
	fmt.Printf("Mapped items:        %d (%d relevant)\n", tables.Categories.Len(), len(tables.Categories.RelevantItemIDs()))
	fmt.Printf("Dedup keys:          %d\n", tables.Dedup.Len())
	fmt.Printf("Rows extracted:      %d\n", s.RowsExtracted)
	fmt.Printf("Non-positive:        %d dropped\n", s.RowsNonPositive)
	fmt.Printf("Unclassified:        %d dropped\n", s.RowsUnclassified)
	fmt.Printf("Reclassified:        %d intermittent → continuous\n", s.RowsReclassified)
	fmt.Printf("Duplicate intervals: %d\n", s.DuplicateIntervals)
	fmt.Printf("Collapsed points:    %d\n", s.PointsCollapsed)
	fmt.Printf("Unmapped dedup keys: %d\n", s.UnmappedCompositeKeys)
	fmt.Println()

	valid := true
	for _, ts := range s.Tables {
		vr := res.Validation[ts.Table]
		status := "OK"
		if !vr.Valid() {
			valid = false
			status = fmt.Sprintf("%d violations", len(vr.Violations))
		}
		fmt.Printf("  %-32s %10d rows  schema %s\n", ts.Table, ts.Rows, status)
		if !vr.Valid() {
			cols := vr.ByColumn()
			names := make([]string, 0, len(cols))
			for c := range cols {
				names = append(names, c)
			}
			slices.Sort(names)
			for _, c := range names {
				fmt.Printf("      %-28s %d\n", c, cols[c])
			}
		}
	}
	if !valid {
		os.Exit(exitcode.PartialSuccess)
	}
	return nil
}
