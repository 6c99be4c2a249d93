// Package etl runs the requested CLIF table builders in order and keeps
// going when one of them fails.
package etl

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/clif-consortium/clifmeds/internal/medadmin"
	"github.com/clif-consortium/clifmeds/internal/metrics"
	"github.com/clif-consortium/clifmeds/internal/model"
)

// BuildFunc builds the given subset of a builder's tables.
type BuildFunc func(ctx context.Context, log zerolog.Logger, tables []string) ([]model.TableSummary, error)

// Builder produces one or more CLIF tables in a single pass.
type Builder struct {
	Name   string
	Tables []string
	Build  BuildFunc
}

// Registry maps every buildable table name to the builder that produces it.
type Registry map[string]*Builder

// NewRegistry indexes builders by the tables they produce.
func NewRegistry(builders ...*Builder) Registry {
	r := make(Registry)
	for _, b := range builders {
		for _, t := range b.Tables {
			r[t] = b
		}
	}
	return r
}

// PhaseError is the failure of one builder.
type PhaseError struct {
	Table string
	Phase string
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Table, e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}

// Options are the run-wide settings of Run.
type Options struct {
	RunID string
	// ExpectedCounts holds row counts to compare against; zero or absent
	// entries are not checked.
	ExpectedCounts map[string]int
	Metrics        *metrics.Run
}

type job struct {
	builder *Builder
	tables  []string
}

// Run builds every requested table. Builders run in order of their first
// requested table; a builder producing several requested tables runs once.
// Tables with no registered builder are reported as unsupported. The
// returned error joins every builder failure.
func Run(ctx context.Context, log zerolog.Logger, reg Registry, requested []string, opts Options) (model.RunSummary, error) {
	start := time.Now()
	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}
	sum := model.RunSummary{RunID: opts.RunID, Attempted: len(requested)}

	var jobs []*job
	byBuilder := make(map[*Builder]*job)
	for _, t := range requested {
		b, ok := reg[t]
		if !ok {
			sum.Unsupported = append(sum.Unsupported, t)
			m.Tables.WithLabelValues(metrics.StatusUnsupported).Inc()
			log.Warn().Str("table", t).Msg("no builder registered for table, skipping")
			continue
		}
		j, ok := byBuilder[b]
		if !ok {
			j = &job{builder: b}
			byBuilder[b] = j
			jobs = append(jobs, j)
		}
		j.tables = append(j.tables, t)
	}
	log.Info().
		Int("tables", len(requested)).
		Strs("requested", requested).
		Msg("identified clif tables to build")

	var errs []error
	counter := 1
	for _, j := range jobs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		last := counter + len(j.tables) - 1
		blog := log.With().Str("builder", j.builder.Name).Logger()
		blog.Info().
			Str("tables", strings.Join(j.tables, ", ")).
			Msgf("building %s of %d clif tables", span(counter, last), len(requested))
		counter = last + 1

		bstart := time.Now()
		tables, err := j.builder.Build(ctx, blog, j.tables)
		m.BuildDuration.WithLabelValues(j.builder.Name).Observe(time.Since(bstart).Seconds())
		if err != nil {
			pe := &PhaseError{Table: j.builder.Name, Phase: "build", Err: err}
			var pipeErr *medadmin.PipelineError
			if errors.As(err, &pipeErr) {
				pe.Phase = pipeErr.Phase
			}
			blog.Error().Err(err).Str("phase", pe.Phase).Msg("error building tables")
			sum.Failed = append(sum.Failed, j.tables...)
			m.Tables.WithLabelValues(metrics.StatusFailed).Add(float64(len(j.tables)))
			errs = append(errs, pe)
			continue
		}

		for _, ts := range tables {
			sum.Built++
			sum.Tables = append(sum.Tables, ts)
			m.Tables.WithLabelValues(metrics.StatusBuilt).Inc()
			checkExpected(blog, ts, opts.ExpectedCounts)
		}
	}

	sum.Duration = time.Since(start)
	ev := log.Info()
	if len(errs) > 0 || len(sum.Unsupported) > 0 {
		ev = log.Warn()
	}
	ev.Int("attempted", sum.Attempted).
		Int("built", sum.Built).
		Strs("failed", sum.Failed).
		Strs("unsupported", sum.Unsupported).
		Str("duration", sum.Duration.String()).
		Msg("finished building clif tables")
	return sum, errors.Join(errs...)
}

func checkExpected(log zerolog.Logger, ts model.TableSummary, expected map[string]int) {
	want := expected[ts.Table]
	if want <= 0 || int64(want) == ts.Rows {
		return
	}
	log.Warn().
		Str("table", ts.Table).
		Int64("rows", ts.Rows).
		Int("expected", want).
		Msg("row count differs from expected")
}

func span(first, last int) string {
	if first == last {
		return fmt.Sprint(first)
	}
	return fmt.Sprintf("%d & %d", first, last)
}
