package main

import (
	"os"

	"github.com/clif-consortium/clifmeds/internal/exitcode"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitcode.UsageError)
	}
}
