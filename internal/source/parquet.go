package source

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/clif-consortium/clifmeds/internal/model"
)

// DefaultBatchSize is the number of rows decoded per Parquet read.
const DefaultBatchSize = 10_000

// ParquetStore reads inputevents and d_items from MIMIC-IV Parquet copies.
type ParquetStore struct {
	Layout    Layout
	BatchSize int
	log       zerolog.Logger
}

// NewParquetStore returns a store over the Parquet files under root.
func NewParquetStore(root string, log zerolog.Logger) (*ParquetStore, error) {
	layout, err := DetectLayout(root, ".parquet")
	if err != nil {
		return nil, err
	}
	log.Debug().Str("root", root).Bool("submodules", layout.Submodules).Msg("detected parquet layout")
	return &ParquetStore{Layout: layout, BatchSize: DefaultBatchSize, log: log}, nil
}

// FetchIntervals streams inputevents and returns the rows of itemIDs in
// file order. Seq is the row's position in the file.
func (s *ParquetStore) FetchIntervals(ctx context.Context, itemIDs []int64) ([]model.RawInterval, error) {
	itemsPath, err := s.Layout.Path("d_items")
	if err != nil {
		return nil, err
	}
	items, err := readAll[model.ItemRow](itemsPath, s.batchSize())
	if err != nil {
		return nil, fmt.Errorf("read d_items: %w", err)
	}
	wanted := selectItems(items, itemIDs, s.log)

	path, err := s.Layout.Path("inputevents")
	if err != nil {
		return nil, err
	}
	r, err := OpenReader[model.InputEventRow](path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if err := RequireColumns(r.Schema(), inputEventColumns...); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	s.log.Info().Str("file", path).Int64("rows", r.NumRows()).Msg("scanning inputevents")
	var out []model.RawInterval
	var scanned int64
	batch := make([]model.InputEventRow, s.batchSize())
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		clear(batch)
		n, err := r.Read(batch)
		for i := range n {
			row := &batch[i]
			if item, ok := wanted[row.ItemID]; ok {
				out = append(out, toInterval(row, scanned+int64(i), item))
			}
		}
		scanned += int64(n)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	if scanned != r.NumRows() {
		return nil, fmt.Errorf("%w: scanned %d of %d inputevents rows", model.ErrIntegrity, scanned, r.NumRows())
	}
	s.log.Info().Int64("scanned", scanned).Int("matched", len(out)).Msg("extracted administration intervals")
	return out, nil
}

func (s *ParquetStore) batchSize() int {
	if s.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return s.BatchSize
}

// readAll reads every row of a small Parquet table.
func readAll[T any](path string, batchSize int) ([]T, error) {
	r, err := OpenReader[T](path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	out := make([]T, 0, r.NumRows())
	batch := make([]T, batchSize)
	for {
		clear(batch)
		n, err := r.Read(batch)
		out = append(out, batch[:n]...)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
	}
}
