// Package pipeline sequences one SalesFlow run: schema validation,
// row cleaning, metrics. The stages always execute in that order and
// the whole run is synchronous; a context can only stop a run from
// starting, never suspend one mid-flight.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/salesflow/salesflow/internal/model"
	"github.com/salesflow/salesflow/pkg/cleaner"
	"github.com/salesflow/salesflow/pkg/metrics"
	"github.com/salesflow/salesflow/pkg/quality"
	"github.com/salesflow/salesflow/pkg/schema"
)

// RunIDLayout formats generated run ids so they sort lexically in
// execution order.
const RunIDLayout = "20060102_150405"

// tracerName identifies this package's spans.
const tracerName = "salesflow/pipeline"

// Source yields one input dataset: a header, then data rows as cell
// slices in file order. Next returns io.EOF after the last row.
type Source interface {
	Header() ([]string, error)
	Next() (cells []string, line int, err error)
}

// Options configures a Coordinator.
type Options struct {
	// RunID overrides the generated id when non-empty.
	RunID string

	// DateLayout is the Go layout for the date column. Defaults to
	// cleaner.DefaultDateLayout.
	DateLayout string

	// Columns renames the required columns for this source.
	Columns schema.Mapping

	// Now supplies the clock for generated run ids and timestamps.
	// Defaults to time.Now.
	Now func() time.Time
}

// Run is the read-only outcome of one execution. External writers
// consume it; nothing mutates it after Execute returns.
type Run struct {
	ID        string
	StartedAt time.Time

	// Accepted and Rejected preserve input order.
	Accepted []model.Record
	Rejected []model.Rejected

	Metrics    metrics.Bundle
	ByCategory *metrics.Table
	ByProduct  *metrics.Table
	ByDay      *metrics.Table

	Quality quality.Summary
}

// NewRunID derives a sortable run id from a timestamp.
func NewRunID(now time.Time) string {
	return now.Format(RunIDLayout)
}

// Coordinator executes runs. It is stateless between runs; run
// identity comes from Options or the clock, never from package
// globals.
type Coordinator struct {
	opts  Options
	clean *cleaner.Cleaner
	now   func() time.Time
}

// New creates a Coordinator.
func New(opts Options) *Coordinator {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Coordinator{
		opts:  opts,
		clean: cleaner.New(cleaner.Config{DateLayout: opts.DateLayout}),
		now:   now,
	}
}

// Execute runs the pipeline over src. A schema failure aborts before
// any data row is read and produces no partial Run. An input whose
// rows are all rejected is not a failure: the Run comes back complete
// with nil optional metrics so the quality summary can explain it.
func (c *Coordinator) Execute(ctx context.Context, src Source) (*Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	started := c.now().UTC()
	runID := c.opts.RunID
	if runID == "" {
		runID = NewRunID(started)
	}

	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "pipeline.execute")
	span.SetAttributes(attribute.String("run.id", runID))
	defer span.End()

	header, err := src.Header()
	if err != nil {
		return nil, fmt.Errorf("run %s: reading header: %w", runID, err)
	}

	resolution, err := c.checkSchema(ctx, header)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}

	rows, err := c.collect(ctx, src, resolution)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}

	accepted, rejected := c.cleanRows(ctx, rows)
	result := c.computeMetrics(ctx, accepted)

	run := &Run{
		ID:         runID,
		StartedAt:  started,
		Accepted:   accepted,
		Rejected:   rejected,
		Metrics:    result.Bundle,
		ByCategory: result.ByCategory,
		ByProduct:  result.ByProduct,
		ByDay:      result.ByDay,
		Quality:    quality.Summarize(len(accepted), rejected),
	}

	span.SetAttributes(
		attribute.Int("rows.total", run.Quality.TotalRows),
		attribute.Int("rows.accepted", run.Quality.Accepted),
		attribute.Int("rows.rejected", run.Quality.Rejected),
	)
	return run, nil
}

func (c *Coordinator) checkSchema(ctx context.Context, header []string) (*schema.Resolution, error) {
	_, span := otel.Tracer(tracerName).Start(ctx, "pipeline.schema")
	defer span.End()

	resolution, err := schema.Check(header, c.opts.Columns)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return resolution, nil
}

// collect drains the source into raw records. It runs only after the
// schema check passed.
func (c *Coordinator) collect(ctx context.Context, src Source, resolution *schema.Resolution) ([]model.Raw, error) {
	_, span := otel.Tracer(tracerName).Start(ctx, "pipeline.collect")
	defer span.End()

	var rows []model.Raw
	for {
		cells, line, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("reading row: %w", err)
		}
		rows = append(rows, resolution.Extract(line, cells))
	}

	span.SetAttributes(attribute.Int("rows.read", len(rows)))
	return rows, nil
}

func (c *Coordinator) cleanRows(ctx context.Context, rows []model.Raw) ([]model.Record, []model.Rejected) {
	_, span := otel.Tracer(tracerName).Start(ctx, "pipeline.clean")
	defer span.End()

	accepted, rejected := c.clean.Clean(rows)
	span.SetAttributes(
		attribute.Int("rows.accepted", len(accepted)),
		attribute.Int("rows.rejected", len(rejected)),
	)
	return accepted, rejected
}

func (c *Coordinator) computeMetrics(ctx context.Context, accepted []model.Record) metrics.Result {
	_, span := otel.Tracer(tracerName).Start(ctx, "pipeline.metrics")
	defer span.End()
	return metrics.Compute(accepted)
}
