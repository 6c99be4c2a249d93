package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestSetupRun_SplitsFiles(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer

	run, err := SetupRun(RunOptions{
		Format:    "text",
		OutputDir: dir,
		RunID:     "run-1",
		Level:     zerolog.InfoLevel,
		Console:   &console,
	})
	if err != nil {
		t.Fatalf("SetupRun: %v", err)
	}
	run.Debug().Msg("hidden")
	run.Info().Msg("loading inputevents")
	run.Warn().Str("table", "medication_admin_continuous").Msg("unmapped composite key")
	if err := run.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	all := readFile(t, filepath.Join(dir, "logs", AllLogFile))
	errs := readFile(t, filepath.Join(dir, "logs", ErrorLogFile))

	if !strings.Contains(all, "📢 INFO") || !strings.Contains(all, "loading inputevents") {
		t.Errorf("all log missing info line:\n%s", all)
	}
	if !strings.Contains(all, "⚠️ WARN") || !strings.Contains(all, "run_id=run-1") {
		t.Errorf("all log missing warn line or run_id:\n%s", all)
	}
	if strings.Contains(all, "hidden") {
		t.Errorf("debug line logged below level:\n%s", all)
	}
	if strings.Contains(errs, "loading inputevents") {
		t.Errorf("error log holds info line:\n%s", errs)
	}
	if !strings.Contains(errs, "unmapped composite key") {
		t.Errorf("error log missing warn line:\n%s", errs)
	}
	if !strings.Contains(console.String(), "unmapped composite key") {
		t.Errorf("console missing warn line:\n%s", console.String())
	}
}

func TestSetupRun_Truncates(t *testing.T) {
	dir := t.TempDir()
	for _, msg := range []string{"first run", "second run"} {
		run, err := SetupRun(RunOptions{Format: "json", OutputDir: dir, Console: &bytes.Buffer{}})
		if err != nil {
			t.Fatalf("SetupRun: %v", err)
		}
		run.Info().Msg(msg)
		run.Close()
	}
	all := readFile(t, filepath.Join(dir, "logs", AllLogFile))
	if strings.Contains(all, "first run") || !strings.Contains(all, "second run") {
		t.Errorf("log not truncated between runs:\n%s", all)
	}
}

func TestFormatLevel(t *testing.T) {
	tests := map[string]string{
		"info":  "📢 INFO  |",
		"error": "❌ ERROR |",
		"fatal": "🆘 FATAL |",
		"trace": "• TRACE |",
	}
	for in, want := range tests {
		if got := FormatLevel(in); got != want {
			t.Errorf("FormatLevel(%q) = %q, want %q", in, got, want)
		}
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}
