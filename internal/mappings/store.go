package mappings

import (
	"embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

//go:embed data/*.csv
var defaults embed.FS

// Logical names of the mapping tables.
const (
	MedCategory      = "med_category"
	MedRoute         = "med_route"
	MedRouteOverride = "med_route_override"
	MarActionDedup   = "mar_action_dedup"
	MedGroup         = "med_group"
)

// FileName returns the on-disk file name for a logical mapping name.
func FileName(name string) string {
	return fmt.Sprintf("mimic-to-clif-mappings - %s.csv", name)
}

// Store resolves mapping tables by logical name. A file in Dir takes
// precedence over the compiled-in default of the same name.
type Store struct {
	Dir string
}

// NewStore returns a Store reading overrides from dir. An empty dir means
// compiled-in defaults only.
func NewStore(dir string) *Store {
	return &Store{Dir: dir}
}

// Open returns a reader for the named table and the location it came from.
func (s *Store) Open(name string) (io.ReadCloser, string, error) {
	file := FileName(name)
	if s.Dir != "" {
		path := filepath.Join(s.Dir, file)
		f, err := os.Open(path)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, "", fmt.Errorf("open mapping %s: %w", name, err)
		}
	}
	f, err := defaults.Open("data/" + file)
	if err != nil {
		return nil, "", fmt.Errorf("no mapping table named %q: %w", name, err)
	}
	return f, "embedded:" + file, nil
}

// Table is a raw CSV mapping table with a header row.
type Table struct {
	Name   string
	Source string
	Header []string
	Rows   [][]string
	index  map[string]int
}

// Load reads and parses the named table.
func (s *Store) Load(name string) (*Table, error) {
	rc, src, err := s.Open(name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	r := csv.NewReader(rc)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse mapping %s: %w", name, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("mapping %s is empty", name)
	}

	t := &Table{Name: name, Source: src, index: make(map[string]int)}
	for i, h := range records[0] {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		t.Header = append(t.Header, h)
		t.index[h] = i
	}
	for _, rec := range records[1:] {
		if isBlank(rec) {
			continue
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

// Require returns an error naming the first column missing from the header.
func (t *Table) Require(cols ...string) error {
	for _, c := range cols {
		if _, ok := t.index[c]; !ok {
			return fmt.Errorf("mapping %s (%s): missing column %q", t.Name, t.Source, c)
		}
	}
	return nil
}

// Has reports whether the header contains col.
func (t *Table) Has(col string) bool {
	_, ok := t.index[col]
	return ok
}

// Get returns the trimmed cell for col in row i, or "" when absent.
func (t *Table) Get(i int, col string) string {
	j, ok := t.index[col]
	if !ok || j >= len(t.Rows[i]) {
		return ""
	}
	return strings.TrimSpace(t.Rows[i][j])
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
