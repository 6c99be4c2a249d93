package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clif-consortium/clifmeds/internal/db"
	"github.com/clif-consortium/clifmeds/internal/etl"
	"github.com/clif-consortium/clifmeds/internal/exitcode"
	"github.com/clif-consortium/clifmeds/internal/logging"
	"github.com/clif-consortium/clifmeds/internal/mappings"
	"github.com/clif-consortium/clifmeds/internal/medadmin"
	"github.com/clif-consortium/clifmeds/internal/metrics"
	"github.com/clif-consortium/clifmeds/internal/model"
	"github.com/clif-consortium/clifmeds/internal/persist"
)

// MetricsFile is written under <output_root>/logs at the end of a build.
const MetricsFile = "clif_metrics.prom"

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the requested CLIF tables",
	RunE:  runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate(); err != nil {
		setupLog := logging.Setup(cfg.LogFormat)
		setupLog.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.ConfigError)
	}

	runID := uuid.New()
	run, err := logging.SetupRun(logging.RunOptions{
		Format:    cfg.LogFormat,
		OutputDir: cfg.OutputRoot,
		RunID:     runID.String(),
		Level:     zerolog.InfoLevel,
	})
	if err != nil {
		setupLog := logging.Setup(cfg.LogFormat)
		setupLog.Error().Err(err).Msg("log setup failed")
		os.Exit(exitcode.ConfigError)
	}
	defer run.Close()
	log := run.Logger

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

	persister, closePersister, err := newPersister(ctx, log, runID)
	if err != nil {
		log.Error().Err(err).Msg("output setup failed")
		os.Exit(exitCodeOf(err, exitcode.ConfigError))
	}
	defer closePersister()

	m := metrics.New()
	reg := etl.NewRegistry(etl.MedicationAdmin(medadmin.Deps{
		Store:     store,
		Tables:    tables,
		Persister: persister,
		Location:  loc,
		Metrics:   m,
		RunID:     runID.String(),
	}))

	log.Info().
		Str("clif_version", cfg.ClifVersion).
		Str("output", persister.Dir()).
		Bool("s3", persister.Mirror != nil).
		Bool("publish", persister.Publisher != nil).
		Msg("starting build")
	summary, runErr := etl.Run(ctx, log, reg, cfg.RequestedTables(), etl.Options{
		RunID:          runID.String(),
		ExpectedCounts: cfg.ExpectedCounts,
		Metrics:        m,
	})

	if err := m.WriteTextfile(filepath.Join(cfg.OutputRoot, "logs", MetricsFile)); err != nil {
		log.Warn().Err(err).Msg("writing metrics failed")
	}

	if runErr != nil {
		run.Close()
		switch {
		case errors.Is(runErr, model.ErrIntegrity):
			os.Exit(exitcode.IntegrityError)
		case summary.Built > 0:
			os.Exit(exitcode.PartialSuccess)
		default:
			os.Exit(exitcode.BuildError)
		}
	}

	fmt.Printf("Build complete: %d of %d tables built in %s (%.1fs)\n",
		summary.Built, summary.Attempted, persister.Dir(), summary.Duration.Seconds())
	for _, ts := range summary.Tables {
		fmt.Printf("  %-32s %10d rows  sha256 %s\n", ts.Table, ts.Rows, ts.SHA256)
	}
	return nil
}

// setupError is a failure before any table is built, with its exit code.
type setupError struct {
	code int
	err  error
}

func (e *setupError) Error() string { return e.err.Error() }

func (e *setupError) Unwrap() error { return e.err }

// exitCodeOf returns the exit code carried by err, or fallback.
func exitCodeOf(err error, fallback int) int {
	var se *setupError
	if errors.As(err, &se) {
		return se.code
	}
	return fallback
}

// newPersister wires the Parquet writer with the optional S3 mirror and
// Postgres publisher from cfg. An S3 setup failure exits as a config error
// and an unreachable publish database as a connection error.
func newPersister(ctx context.Context, log zerolog.Logger, runID uuid.UUID) (*persist.Persister, func(), error) {
	p := &persist.Persister{
		Root:    cfg.OutputRoot,
		DirName: persist.OutputDirName(cfg.ClifOutputDirName, cfg.ClifVersion),
		Schemas: medadmin.SchemaFor,
		Log:     log,
	}
	closeFn := func() {}

	if cfg.S3.Bucket != "" {
		mirror, err := persist.NewS3Mirror(ctx, persist.S3Config{
			Bucket:    cfg.S3.Bucket,
			Prefix:    cfg.S3.Prefix,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			PathStyle: cfg.S3.PathStyle,
		})
		if err != nil {
			return nil, nil, &setupError{code: exitcode.ConfigError, err: fmt.Errorf("s3 mirror: %w", err)}
		}
		p.Mirror = mirror
	}

	if cfg.PublishDSN != "" {
		pool, err := db.NewPool(ctx, cfg.PublishDSN, db.PoolOptions{MaxConns: 2})
		if err != nil {
			return nil, nil, &setupError{code: exitcode.DBConnError, err: fmt.Errorf("publish database: %w", err)}
		}
		p.Publisher = persist.NewPGPublisher(pool, log, runID, cfg.ClifVersion)
		closeFn = pool.Close
	}
	return p, closeFn, nil
}
