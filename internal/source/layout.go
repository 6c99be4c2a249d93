// Package source reads raw MIMIC-IV medication administration intervals from
// columnar files, gzipped CSV extracts or a MIMIC-IV Postgres database.
package source

import (
	"fmt"
	"os"
	"path/filepath"
)

// Module membership of the MIMIC-IV tables the builders read.
var (
	hospTables = []string{"admissions", "patients", "transfers", "labevents", "d_labitems", "microbiologyevents", "diagnoses_icd", "procedures_icd"}
	icuTables  = []string{"inputevents", "d_items", "icustays", "chartevents", "procedureevents", "outputevents", "ingredientevents"}
)

// Layout locates MIMIC-IV tables under a source root. Files sit either
// directly under Root or in hosp/ and icu/ subdirectories as in the
// PhysioNet distribution.
type Layout struct {
	Root       string
	Submodules bool
	Ext        string
}

// DetectLayout inspects root and reports whether it uses module subdirectories.
func DetectLayout(root, ext string) (Layout, error) {
	info, err := os.Stat(root)
	if err != nil {
		return Layout{}, fmt.Errorf("source root: %w", err)
	}
	if !info.IsDir() {
		return Layout{}, fmt.Errorf("source root %s is not a directory", root)
	}
	return Layout{
		Root:       root,
		Submodules: isDir(filepath.Join(root, "hosp")) && isDir(filepath.Join(root, "icu")),
		Ext:        ext,
	}, nil
}

// Path returns the file path of a MIMIC-IV table.
func (l Layout) Path(table string) (string, error) {
	module, err := moduleOf(table)
	if err != nil {
		return "", err
	}
	name := table + l.Ext
	if l.Submodules {
		return filepath.Join(l.Root, module, name), nil
	}
	return filepath.Join(l.Root, name), nil
}

func moduleOf(table string) (string, error) {
	for _, t := range hospTables {
		if t == table {
			return "hosp", nil
		}
	}
	for _, t := range icuTables {
		if t == table {
			return "icu", nil
		}
	}
	return "", fmt.Errorf("unknown MIMIC-IV table %q", table)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
