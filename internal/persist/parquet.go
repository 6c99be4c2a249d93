// Package persist writes finished CLIF tables: a Parquet file per table
// under the run's output directory, optionally mirrored to S3 and published
// to Postgres. Every write replaces the previous version of the table.
package persist

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"

	"github.com/clif-consortium/clifmeds/internal/model"
)

// CreatedBy is recorded in the footer of every Parquet file written.
const CreatedBy = "clifbuild"

// TableWriter writes AdminEvent rows to a Parquet file with zstd pages of
// 8KB and per-page statistics.
type TableWriter struct {
	file   *os.File
	writer *parquet.GenericWriter[model.AdminEvent]
	count  int
}

// NewTableWriter creates a Parquet writer at filename.
func NewTableWriter(filename string) (*TableWriter, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create parquet file: %w", err)
	}

	writer := parquet.NewGenericWriter[model.AdminEvent](file,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedDefault}),
		parquet.PageBufferSize(8*1024),
		parquet.DataPageStatistics(true),
		parquet.CreatedBy(CreatedBy, "1.0", ""),
	)

	return &TableWriter{file: file, writer: writer}, nil
}

// Write writes a batch of rows.
func (w *TableWriter) Write(rows []model.AdminEvent) (int, error) {
	n, err := w.writer.Write(rows)
	w.count += n
	if err != nil {
		return n, fmt.Errorf("write parquet rows: %w", err)
	}
	return n, nil
}

// Close flushes the final row group and closes the file.
func (w *TableWriter) Close() error {
	if err := w.writer.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return w.file.Close()
}

// Count returns the total number of rows written.
func (w *TableWriter) Count() int {
	return w.count
}

// TableFileName returns the canonical file name of a CLIF table.
func TableFileName(table string) string {
	return "clif_" + table + ".parquet"
}

// OutputDirName returns dirName, or rclif-<version> when dirName is empty.
func OutputDirName(dirName, version string) string {
	if dirName != "" {
		return dirName
	}
	return "rclif-" + version
}

// writeBatchSize is the number of rows handed to the writer per call.
const writeBatchSize = 10_000

// WriteTable replaces path with a Parquet file holding rows. The file is
// written next to path and renamed into place, so readers never see a
// partial table.
func WriteTable(path string, rows []model.AdminEvent) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("create output dir: %w", err)
	}
	tmp := path + ".tmp"
	w, err := NewTableWriter(tmp)
	if err != nil {
		return 0, err
	}
	for start := 0; start < len(rows); start += writeBatchSize {
		end := min(start+writeBatchSize, len(rows))
		if _, err := w.Write(rows[start:end]); err != nil {
			w.Close()
			os.Remove(tmp)
			return 0, err
		}
	}
	if err := w.Close(); err != nil {
		os.Remove(tmp)
		return 0, err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("replace %s: %w", path, err)
	}
	return int64(w.Count()), nil
}

// ReadSchema returns the schema stored in a Parquet file's footer.
func ReadSchema(path string) (*parquet.Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	return pf.Schema(), nil
}
