package source

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/clif-consortium/clifmeds/internal/model"
	"github.com/clif-consortium/clifmeds/internal/normalize"
	embedsql "github.com/clif-consortium/clifmeds/internal/sql"
)

// PostgresStore reads intervals from a MIMIC-IV Postgres build (mimiciv_icu schema).
type PostgresStore struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewPostgresStore returns a store over pool.
func NewPostgresStore(pool *pgxpool.Pool, log zerolog.Logger) *PostgresStore {
	return &PostgresStore{pool: pool, log: log}
}

// FetchIntervals returns the inputevents rows of itemIDs ordered by
// (hadm_id, linkorderid, starttime, endtime, orderid) and then by every
// remaining selected column, so Seq is the same on every run. The count and
// the fetch run in one repeatable-read snapshot; a mismatch is ErrIntegrity.
func (s *PostgresStore) FetchIntervals(ctx context.Context, itemIDs []int64) ([]model.RawInterval, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback(ctx)

	var expected int64
	if err := tx.QueryRow(ctx, embedsql.CountInputEvents, itemIDs).Scan(&expected); err != nil {
		return nil, fmt.Errorf("count inputevents: %w", err)
	}

	rows, err := tx.Query(ctx, embedsql.FetchInputEvents, itemIDs)
	if err != nil {
		return nil, fmt.Errorf("query inputevents: %w", err)
	}
	defer rows.Close()

	out := make([]model.RawInterval, 0, expected)
	for rows.Next() {
		var (
			iv                  model.RawInterval
			hadmID, linkOrderID *int64
			status, label       *string
		)
		if err := rows.Scan(
			&iv.SubjectID,
			&hadmID,
			&linkOrderID,
			&iv.StartTime,
			&iv.EndTime,
			&status,
			&iv.ItemID,
			&label,
			&iv.ItemCategory,
			&iv.Rate,
			&iv.RateUnit,
			&iv.Amount,
			&iv.AmountUnit,
			&iv.OrderCategoryName,
			&iv.SecondaryOrderCategoryName,
			&iv.ComponentTypeDescription,
			&iv.OrderCategoryDescription,
			&iv.PatientWeight,
		); err != nil {
			return nil, fmt.Errorf("scan inputevents row %d: %w", len(out), err)
		}
		iv.Seq = int64(len(out))
		if hadmID != nil {
			iv.HadmID = *hadmID
		}
		if linkOrderID != nil {
			iv.OrderID = *linkOrderID
		}
		iv.Status = normalize.Deref(status)
		iv.Label = normalize.Deref(label)
		out = append(out, iv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inputevents: %w", err)
	}

	if int64(len(out)) != expected {
		return nil, fmt.Errorf("%w: fetched %d inputevents rows, count query reported %d", model.ErrIntegrity, len(out), expected)
	}
	s.log.Info().Int("rows", len(out)).Int("items", len(itemIDs)).Msg("extracted administration intervals")
	return out, nil
}
