package source

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/clif-consortium/clifmeds/internal/model"
	"github.com/clif-consortium/clifmeds/internal/normalize"
)

// CSVStore reads inputevents and d_items from the PhysioNet CSV extracts,
// gzipped or plain.
type CSVStore struct {
	Layout Layout
	log    zerolog.Logger
	open   func(path string) (io.ReadCloser, error)
}

// NewCSVStore returns a store over the CSV files under root. It prefers
// .csv.gz and falls back to .csv.
func NewCSVStore(root string, log zerolog.Logger) (*CSVStore, error) {
	for _, ext := range []string{".csv.gz", ".csv"} {
		layout, err := DetectLayout(root, ext)
		if err != nil {
			return nil, err
		}
		path, _ := layout.Path("inputevents")
		if _, err := os.Stat(path); err == nil {
			return &CSVStore{Layout: layout, log: log, open: openFile}, nil
		}
	}
	return nil, fmt.Errorf("no inputevents.csv[.gz] under %s: %w", root, fs.ErrNotExist)
}

func openFile(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

// FetchIntervals reads inputevents and returns the rows of itemIDs in file
// order. Seq is the row's position in the file. The records are counted in a
// separate pass first; a scan that sees a different number is ErrIntegrity.
func (s *CSVStore) FetchIntervals(ctx context.Context, itemIDs []int64) ([]model.RawInterval, error) {
	var items []model.ItemRow
	err := s.scan("d_items", []string{"itemid", "label", "category", "linksto"}, func(r *csvRow) error {
		id, err := r.integer("itemid")
		if err != nil {
			return err
		}
		items = append(items, model.ItemRow{
			ItemID:   id,
			Label:    r.str("label"),
			Category: r.str("category"),
			LinksTo:  r.str("linksto"),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	wanted := selectItems(items, itemIDs, s.log)

	expected, err := s.countRecords("inputevents")
	if err != nil {
		return nil, err
	}

	var out []model.RawInterval
	var seq int64
	err = s.scan("inputevents", inputEventColumns, func(r *csvRow) error {
		defer func() { seq++ }()
		if seq%100_000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		id, err := r.integer("itemid")
		if err != nil {
			return err
		}
		item, ok := wanted[id]
		if !ok {
			return nil
		}
		row, err := r.inputEvent()
		if err != nil {
			return err
		}
		out = append(out, toInterval(row, seq, item))
		return nil
	})
	if err != nil {
		return nil, err
	}
	if seq != expected {
		return nil, fmt.Errorf("%w: scanned %d inputevents records, count pass reported %d", model.ErrIntegrity, seq, expected)
	}
	s.log.Info().Int64("scanned", seq).Int("matched", len(out)).Msg("extracted administration intervals")
	return out, nil
}

// reader opens a table and returns a CSV reader positioned at its header.
func (s *CSVStore) reader(table string) (string, *csv.Reader, func(), error) {
	path, err := s.Layout.Path(table)
	if err != nil {
		return "", nil, nil, err
	}
	open := s.open
	if open == nil {
		open = openFile
	}
	f, err := open(path)
	if err != nil {
		return "", nil, nil, fmt.Errorf("open %s: %w", table, err)
	}

	var in io.Reader = bufio.NewReaderSize(f, 256*1024)
	closeAll := func() { f.Close() }
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(in)
		if err != nil {
			f.Close()
			return "", nil, nil, fmt.Errorf("gunzip %s: %w", path, err)
		}
		closeAll = func() {
			gz.Close()
			f.Close()
		}
		in = gz
	}

	cr := csv.NewReader(in)
	cr.ReuseRecord = true
	return path, cr, closeAll, nil
}

// countRecords returns the number of data records in a table without
// converting any field.
func (s *CSVStore) countRecords(table string) (int64, error) {
	path, cr, closeAll, err := s.reader(table)
	if err != nil {
		return 0, err
	}
	defer closeAll()
	cr.FieldsPerRecord = -1

	if _, err := cr.Read(); err != nil {
		return 0, fmt.Errorf("read %s header: %w", path, err)
	}
	var n int64
	for {
		_, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return 0, fmt.Errorf("count %s: %w", path, err)
		}
		n++
	}
}

// scan calls fn for every data row of a table.
func (s *CSVStore) scan(table string, required []string, fn func(*csvRow) error) error {
	path, cr, closeAll, err := s.reader(table)
	if err != nil {
		return err
	}
	defer closeAll()

	header, err := cr.Read()
	if err != nil {
		return fmt.Errorf("read %s header: %w", path, err)
	}
	row := &csvRow{index: make(map[string]int, len(header))}
	for i, h := range header {
		row.index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, col := range required {
		if _, ok := row.index[col]; !ok {
			return fmt.Errorf("%s: missing required column %s", path, col)
		}
	}

	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		line++
		if err != nil {
			return fmt.Errorf("%s line %d: %w", path, line, err)
		}
		row.rec = rec
		if err := fn(row); err != nil {
			return fmt.Errorf("%s line %d: %w", path, line, err)
		}
	}
}

type csvRow struct {
	index map[string]int
	rec   []string
}

func (r *csvRow) raw(col string) string {
	i, ok := r.index[col]
	if !ok || i >= len(r.rec) {
		return ""
	}
	return strings.TrimSpace(r.rec[i])
}

func (r *csvRow) str(col string) *string {
	v := r.raw(col)
	if v == "" {
		return nil
	}
	return &v
}

func (r *csvRow) integer(col string) (int64, error) {
	v := r.raw(col)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", col, err)
	}
	return n, nil
}

func (r *csvRow) number(col string) (*float64, error) {
	v := r.raw(col)
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", col, err)
	}
	return &f, nil
}

func (r *csvRow) timestamp(col string) (time.Time, error) {
	v := r.raw(col)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := normalize.ParseTimestamp(v, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", col, err)
	}
	return t, nil
}

func (r *csvRow) inputEvent() (*model.InputEventRow, error) {
	var (
		row model.InputEventRow
		err error
	)
	ints := []struct {
		col string
		dst *int64
	}{
		{"subject_id", &row.SubjectID},
		{"hadm_id", &row.HadmID},
		{"stay_id", &row.StayID},
		{"itemid", &row.ItemID},
		{"orderid", &row.OrderID},
		{"linkorderid", &row.LinkOrderID},
	}
	for _, c := range ints {
		if *c.dst, err = r.integer(c.col); err != nil {
			return nil, err
		}
	}
	floats := []struct {
		col string
		dst **float64
	}{
		{"amount", &row.Amount},
		{"rate", &row.Rate},
		{"patientweight", &row.PatientWeight},
	}
	for _, c := range floats {
		if *c.dst, err = r.number(c.col); err != nil {
			return nil, err
		}
	}
	if row.StartTime, err = r.timestamp("starttime"); err != nil {
		return nil, err
	}
	if row.EndTime, err = r.timestamp("endtime"); err != nil {
		return nil, err
	}
	row.AmountUOM = r.str("amountuom")
	row.RateUOM = r.str("rateuom")
	row.OrderCategoryName = r.str("ordercategoryname")
	row.SecondaryOrderCategoryName = r.str("secondaryordercategoryname")
	row.OrderComponentTypeDescription = r.str("ordercomponenttypedescription")
	row.OrderCategoryDescription = r.str("ordercategorydescription")
	row.StatusDescription = r.str("statusdescription")
	return &row, nil
}
