package main

import (
	"context"
	"os"

	"github.com/rs/zerolog"

	"github.com/clif-consortium/clifmeds/internal/db"
	"github.com/clif-consortium/clifmeds/internal/medadmin"
	"github.com/clif-consortium/clifmeds/internal/source"
)

// openStore picks the raw event store: Postgres when source_dsn is set,
// otherwise the Parquet copies, otherwise the CSV extracts. The returned
// func releases the store's resources.
func openStore(ctx context.Context, log zerolog.Logger) (medadmin.EventStore, func(), error) {
	if cfg.SourceDSN != "" {
		pool, err := db.NewPool(ctx, cfg.SourceDSN, db.PoolOptions{ReadOnly: true, MaxConns: 2})
		if err != nil {
			return nil, nil, err
		}
		log.Info().Msg("reading MIMIC-IV from postgres")
		return source.NewPostgresStore(pool, log), pool.Close, nil
	}

	if !cfg.RegenerateSourceParquet {
		store, err := source.NewParquetStore(cfg.MimicParquetDir, log)
		if err != nil {
			return nil, nil, err
		}
		path, err := store.Layout.Path("inputevents")
		if err != nil {
			return nil, nil, err
		}
		if _, err := os.Stat(path); err == nil {
			log.Info().Str("dir", cfg.MimicParquetDir).Msg("reading MIMIC-IV parquet")
			return store, func() {}, nil
		}
		log.Warn().Str("path", path).Msg("inputevents parquet not found, falling back to csv")
	} else {
		log.Info().Msg("regenerate_source_parquet is set, reading MIMIC-IV csv")
	}

	store, err := source.NewCSVStore(cfg.CSVDir(), log)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("dir", cfg.CSVDir()).Msg("reading MIMIC-IV csv")
	return store, func() {}, nil
}
