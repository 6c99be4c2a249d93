package persist

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/clif-consortium/clifmeds/internal/db"
	"github.com/clif-consortium/clifmeds/internal/model"
	"github.com/clif-consortium/clifmeds/internal/source"
	embedsql "github.com/clif-consortium/clifmeds/internal/sql"
)

// Schema is the Postgres schema holding published CLIF tables.
const Schema = "clif"

const publishBatchSize = 5_000

// PGPublisher replaces clif.<table> with the contents of a written Parquet
// file.
type PGPublisher struct {
	pool        *pgxpool.Pool
	log         zerolog.Logger
	runID       uuid.UUID
	clifVersion string
}

// NewPGPublisher returns a publisher over pool. Tables must already exist
// (clifbuild migrate).
func NewPGPublisher(pool *pgxpool.Pool, log zerolog.Logger, runID uuid.UUID, clifVersion string) *PGPublisher {
	return &PGPublisher{pool: pool, log: log, runID: runID, clifVersion: clifVersion}
}

// Publish deletes every row of clif.<table> and copies the file in, in one
// transaction. It records the load in clif.build_run and returns the number
// of rows copied.
func (p *PGPublisher) Publish(ctx context.Context, table, path, sha256 string) (int64, error) {
	ident := pgx.Identifier{Schema, table}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin publish: %w", err)
	}
	defer tx.Rollback(ctx)

	deleted, err := tx.Exec(ctx, "DELETE FROM "+ident.Sanitize())
	if err != nil {
		return 0, fmt.Errorf("clear %s: %w", ident.Sanitize(), err)
	}

	// Producer: stream the Parquet file into a bounded channel.
	prodCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	ch := make(chan *model.AdminEvent, publishBatchSize)
	errc := make(chan error, 1)
	go func() {
		defer close(ch)
		errc <- streamFile(prodCtx, path, ch)
	}()

	src := db.NewChannelSource[*model.AdminEvent](ch, errc)
	copied, err := tx.CopyFrom(ctx, ident, model.AdminEventColumns(), src)
	if err != nil {
		cancel()
		return 0, fmt.Errorf("copy into %s: %w", ident.Sanitize(), err)
	}

	if _, err := tx.Exec(ctx, embedsql.RecordBuild, p.runID, table, copied, sha256, p.clifVersion); err != nil {
		return 0, fmt.Errorf("record build: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit publish: %w", err)
	}

	p.log.Info().
		Str("table", ident.Sanitize()).
		Int64("deleted", deleted.RowsAffected()).
		Int64("copied", copied).
		Msg("published table")
	return copied, nil
}

func streamFile(ctx context.Context, path string, ch chan<- *model.AdminEvent) error {
	r, err := source.OpenReader[model.AdminEvent](path)
	if err != nil {
		return err
	}
	defer r.Close()

	batch := make([]model.AdminEvent, publishBatchSize)
	for {
		clear(batch)
		n, err := r.Read(batch)
		for i := range n {
			ev := batch[i]
			select {
			case ch <- &ev:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
