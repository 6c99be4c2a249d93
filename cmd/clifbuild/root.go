package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/clif-consortium/clifmeds/internal/config"
)

var cfg = config.Default()

// Flag values; applied over the config file only when set on the command line.
var (
	configPath string
	outputRoot string
	sourceDSN  string
	publishDSN string
	tables     []string
)

var rootCmd = &cobra.Command{
	Use:   "clifbuild",
	Short: "MIMIC-IV → CLIF medication administration builder",
	Long: "Builds the CLIF medication_admin_continuous and medication_admin_intermittent tables " +
		"from MIMIC-IV inputevents and writes them as Parquet, optionally mirrored to S3 and published to Postgres.",
	PersistentPreRunE: loadConfig,
	SilenceUsage:      true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Path to YAML run configuration")
	pf.StringVar(&cfg.LogFormat, "log-format", "text", "Log format: text or json")
	pf.StringVar(&outputRoot, "output-root", "", "Directory receiving the CLIF output and logs")
	pf.StringVar(&sourceDSN, "source-dsn", os.Getenv("MIMIC_DSN"), "MIMIC-IV Postgres connection string (or set MIMIC_DSN)")
	pf.StringVar(&publishDSN, "publish-dsn", os.Getenv("CLIF_PUBLISH_DSN"), "Postgres receiving published CLIF tables (or set CLIF_PUBLISH_DSN)")
	pf.StringSliceVar(&tables, "tables", nil, "Tables to build, overriding clif_tables")
}

// loadConfig merges the config file and then the flags into cfg.
func loadConfig(cmd *cobra.Command, args []string) error {
	if configPath != "" {
		if err := cfg.LoadFromFile(configPath); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}
	if outputRoot != "" {
		cfg.OutputRoot = outputRoot
	}
	if sourceDSN != "" {
		cfg.SourceDSN = sourceDSN
	}
	if publishDSN != "" {
		cfg.PublishDSN = publishDSN
	}
	if len(tables) > 0 {
		cfg.Tables = tables
	}
	return nil
}
