package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Log file names under <output>/logs.
const (
	AllLogFile   = "clif_all.log"
	ErrorLogFile = "clif_errors.log"
)

const fileTimeFormat = "2006-01-02 15:04:05"

var levelEmoji = map[string]string{
	zerolog.LevelDebugValue: "🐛",
	zerolog.LevelInfoValue:  "📢",
	zerolog.LevelWarnValue:  "⚠️",
	zerolog.LevelErrorValue: "❌",
	zerolog.LevelFatalValue: "🆘",
	zerolog.LevelPanicValue: "🆘",
}

// FormatLevel renders a level as its emoji followed by the upper-case name.
func FormatLevel(i any) string {
	lvl, _ := i.(string)
	emoji, ok := levelEmoji[lvl]
	if !ok {
		emoji = "•"
	}
	return fmt.Sprintf("%s %-5s |", emoji, strings.ToUpper(lvl))
}

// Setup initializes a zerolog.Logger based on the requested format.
// format can be "text" (human-friendly console) or "json" (structured).
func Setup(format string) zerolog.Logger {
	return zerolog.New(console(os.Stderr, format)).With().Timestamp().Logger()
}

func console(out io.Writer, format string) io.Writer {
	if format == "text" {
		return zerolog.ConsoleWriter{
			Out:         out,
			TimeFormat:  time.RFC3339,
			FormatLevel: FormatLevel,
		}
	}
	return out
}

// RunOptions configures the logger of one build run.
type RunOptions struct {
	Format string
	// OutputDir receives a logs/ directory with the all-levels and the
	// warnings-and-above files. Both are truncated at the start of a run.
	OutputDir string
	RunID     string
	// Level is the minimum level logged; the zero value is debug.
	Level zerolog.Level
	// Console defaults to os.Stderr.
	Console io.Writer
}

// Run is a configured run logger. Close flushes and closes the log files.
type Run struct {
	zerolog.Logger
	files []*os.File
}

// Close closes the log files.
func (r *Run) Close() error {
	var errs []error
	for _, f := range r.files {
		errs = append(errs, f.Close())
	}
	return errors.Join(errs...)
}

// SetupRun builds a logger writing to the console and to the run's log files,
// with run_id on every event.
func SetupRun(opts RunOptions) (*Run, error) {
	dir := filepath.Join(opts.OutputDir, "logs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	all, err := os.Create(filepath.Join(dir, AllLogFile))
	if err != nil {
		return nil, fmt.Errorf("create log file: %w", err)
	}
	errFile, err := os.Create(filepath.Join(dir, ErrorLogFile))
	if err != nil {
		all.Close()
		return nil, fmt.Errorf("create log file: %w", err)
	}

	out := opts.Console
	if out == nil {
		out = os.Stderr
	}
	w := zerolog.MultiLevelWriter(
		console(out, opts.Format),
		fileWriter(all),
		&zerolog.FilteredLevelWriter{
			Writer: zerolog.LevelWriterAdapter{Writer: fileWriter(errFile)},
			Level:  zerolog.WarnLevel,
		},
	)

	ctx := zerolog.New(w).Level(opts.Level).With().Timestamp()
	if opts.RunID != "" {
		ctx = ctx.Str("run_id", opts.RunID)
	}
	return &Run{Logger: ctx.Logger(), files: []*os.File{all, errFile}}, nil
}

func fileWriter(f *os.File) io.Writer {
	return zerolog.ConsoleWriter{
		Out:         f,
		NoColor:     true,
		TimeFormat:  fileTimeFormat,
		FormatLevel: FormatLevel,
	}
}
