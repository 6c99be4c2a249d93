package config

import (
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/clif-consortium/clifmeds/internal/model"
)

// DefaultTables is the clif_tables selection used when the config names none.
var DefaultTables = []string{model.TableMedAdminContinuous, model.TableMedAdminIntermittent}

// Config holds all runtime configuration for a clifbuild run.
type Config struct {
	ClifVersion             string         `yaml:"clif_version"`
	ClifOutputDirName       string         `yaml:"clif_output_dir_name"`
	OutputRoot              string         `yaml:"output_root"`
	MimicParquetDir         string         `yaml:"mimic_parquet_dir"`
	MimicCSVDir             string         `yaml:"mimic_csv_dir"`
	RegenerateSourceParquet bool           `yaml:"regenerate_source_parquet"`
	SourceTimezone          string         `yaml:"source_timezone"`
	MappingsDir             string         `yaml:"mappings_dir"`
	SourceDSN               string         `yaml:"source_dsn"`
	PublishDSN              string         `yaml:"publish_dsn"`
	S3                      S3             `yaml:"s3"`
	ClifTables              map[string]int `yaml:"clif_tables"`
	ExpectedCounts          map[string]int `yaml:"expected_counts"`

	LogFormat string   `yaml:"-"` // "text" or "json"
	Tables    []string `yaml:"-"` // --tables; overrides ClifTables when set
	DryRun    bool     `yaml:"-"`
}

// S3 configures the optional mirror of the output directory.
type S3 struct {
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		ClifVersion:     "2.1",
		OutputRoot:      "output",
		MimicParquetDir: "data/mimic-iv-3.1",
		SourceTimezone:  "America/New_York",
		LogFormat:       "text",
	}
}

// LoadFromFile reads a YAML config file and merges its values into Config.
// Keys absent from the file keep their current values.
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// CSVDir returns mimic_csv_dir, defaulting to mimic_parquet_dir.
func (c *Config) CSVDir() string {
	if c.MimicCSVDir != "" {
		return c.MimicCSVDir
	}
	return c.MimicParquetDir
}

// RequestedTables returns the tables to build: --tables when given,
// otherwise every clif_tables entry set to 1, in sorted order. With neither,
// DefaultTables.
func (c *Config) RequestedTables() []string {
	if len(c.Tables) > 0 {
		return c.Tables
	}
	if len(c.ClifTables) == 0 {
		return slices.Clone(DefaultTables)
	}
	var out []string
	for name, on := range c.ClifTables {
		if on == 1 {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}

// Location loads SourceTimezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.SourceTimezone)
	if err != nil {
		return nil, fmt.Errorf("source_timezone %q: %w", c.SourceTimezone, err)
	}
	return loc, nil
}

// Validate checks required fields and returns an error if the config is invalid.
func (c *Config) Validate() error {
	if c.ClifVersion == "" {
		return fmt.Errorf("clif_version is required")
	}
	if c.OutputRoot == "" {
		return fmt.Errorf("output_root is required")
	}
	if c.SourceDSN == "" && c.MimicParquetDir == "" {
		return fmt.Errorf("mimic_parquet_dir or source_dsn is required")
	}
	if c.SourceDSN == "" {
		if _, err := os.Stat(c.MimicParquetDir); err != nil {
			return fmt.Errorf("mimic_parquet_dir not accessible: %w", err)
		}
	}
	if c.MappingsDir != "" {
		if _, err := os.Stat(c.MappingsDir); err != nil {
			return fmt.Errorf("mappings_dir not accessible: %w", err)
		}
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.S3.Endpoint != "" && c.S3.Bucket == "" {
		return fmt.Errorf("s3.endpoint set without s3.bucket")
	}
	for name, v := range c.ClifTables {
		if v != 0 && v != 1 {
			return fmt.Errorf("clif_tables.%s must be 0 or 1, got %d", name, v)
		}
	}
	if len(c.RequestedTables()) == 0 {
		return fmt.Errorf("no tables requested")
	}
	return nil
}

// ValidatePublish checks the fields needed to reach the publish database.
func (c *Config) ValidatePublish() error {
	if c.PublishDSN == "" {
		return fmt.Errorf("--publish-dsn or CLIF_PUBLISH_DSN is required")
	}
	return nil
}
