package persist

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/clif-consortium/clifmeds/internal/model"
	"github.com/clif-consortium/clifmeds/internal/normalize"
	"github.com/clif-consortium/clifmeds/internal/validate"
)

// Uploader copies a finished file to object storage.
type Uploader interface {
	Key(dirName, fileName string) string
	Upload(ctx context.Context, key, localPath, sha256 string) error
}

// Publisher loads a finished file into a database table.
type Publisher interface {
	Publish(ctx context.Context, table, path, sha256 string) (int64, error)
}

// Persister writes each table to <Root>/<DirName>/clif_<table>.parquet and
// then hands the file to the optional Mirror and Publisher.
type Persister struct {
	Root    string
	DirName string
	// Schemas, when set, returns the declared contract of a table; the
	// written file's physical schema is checked against it.
	Schemas   func(table string) *validate.Schema[model.AdminEvent]
	Mirror    Uploader
	Publisher Publisher
	Log       zerolog.Logger
}

// Dir returns the run's output directory.
func (p *Persister) Dir() string {
	return filepath.Join(p.Root, p.DirName)
}

// Persist replaces the table's file and propagates it.
func (p *Persister) Persist(ctx context.Context, table string, rows []model.AdminEvent) (model.TableSummary, error) {
	path := filepath.Join(p.Dir(), TableFileName(table))
	n, err := WriteTable(path, rows)
	if err != nil {
		return model.TableSummary{}, err
	}
	sha, err := normalize.FileHash(path)
	if err != nil {
		return model.TableSummary{}, fmt.Errorf("hash %s: %w", path, err)
	}
	sum := model.TableSummary{Table: table, Rows: n, Path: path, SHA256: sha}
	p.Log.Info().Str("table", table).Str("path", path).Int64("rows", n).Str("sha256", sha).Msg("wrote table")

	if p.Schemas != nil {
		if s := p.Schemas(table); s != nil {
			schema, err := ReadSchema(path)
			if err != nil {
				return sum, err
			}
			for _, v := range s.CheckParquet(schema) {
				p.Log.Warn().Str("table", table).Str("violation", v.String()).Msg("stored schema mismatch")
			}
		}
	}

	if p.Mirror != nil {
		key := p.Mirror.Key(p.DirName, TableFileName(table))
		if err := p.Mirror.Upload(ctx, key, path, sha); err != nil {
			return sum, fmt.Errorf("mirror %s: %w", table, err)
		}
		p.Log.Info().Str("table", table).Str("key", key).Msg("mirrored table to s3")
	}

	if p.Publisher != nil {
		copied, err := p.Publisher.Publish(ctx, table, path, sha)
		if err != nil {
			return sum, fmt.Errorf("publish %s: %w", table, err)
		}
		if copied != n {
			return sum, fmt.Errorf("%w: published %d rows of %s, file holds %d", model.ErrIntegrity, copied, table, n)
		}
	}
	return sum, nil
}
