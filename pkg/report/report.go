// Package report renders the artifact bundle for a completed run:
// Excel workbook, text summary, PNG charts, rejected rows, the clean
// Parquet export, and a manifest covering all of them.
package report

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/salesflow/salesflow/pkg/pipeline"
)

const tracerName = "salesflow/report"

// Options configures a report writer.
type Options struct {
	// Charts enables the PNG artifacts.
	Charts bool

	// Parquet enables the clean-data export.
	Parquet bool

	// Source describes the input file for the manifest.
	Source SourceInfo

	// ToolVersion is stamped into the manifest.
	ToolVersion string

	// Logger receives per-artifact progress events.
	Logger zerolog.Logger
}

// Writer renders the artifact bundle for one run.
type Writer struct {
	paths Paths
	opts  Options
}

// NewWriter creates a writer targeting dir for the given run id.
func NewWriter(dir, runID string, opts Options) *Writer {
	return &Writer{paths: NewPaths(dir, runID), opts: opts}
}

// Paths exposes the artifact locations.
func (w *Writer) Paths() Paths {
	return w.paths
}

// Write renders every enabled artifact, then the manifest. The
// manifest comes last so its hashes cover final bytes; independent
// artifacts render in parallel.
func (w *Writer) Write(ctx context.Context, run *pipeline.Run) (*Manifest, error) {
	if err := w.paths.EnsureDir(); err != nil {
		return nil, fmt.Errorf("creating report directory: %w", err)
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "report.write")
	defer span.End()

	// Row counts per produced artifact path. Presence in the map
	// marks the artifact as written.
	var (
		mu       sync.Mutex
		produced = make(map[string]int64)
	)
	add := func(path string, rowCount int64) {
		mu.Lock()
		defer mu.Unlock()
		produced[path] = rowCount
	}

	log := w.opts.Logger

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writeExcel(w.paths.Excel(), run); err != nil {
			return fmt.Errorf("excel report: %w", err)
		}
		add(w.paths.Excel(), int64(len(run.Accepted)))
		log.Debug().Str("artifact", w.paths.Excel()).Msg("workbook written")
		return nil
	})

	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writeText(w.paths.Text(), run); err != nil {
			return fmt.Errorf("text report: %w", err)
		}
		add(w.paths.Text(), 0)
		log.Debug().Str("artifact", w.paths.Text()).Msg("summary written")
		return nil
	})

	if w.opts.Charts {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			written, err := writeCategoryChart(w.paths.CategoryChart(), run.ByCategory)
			if err != nil {
				return fmt.Errorf("category chart: %w", err)
			}
			if written {
				add(w.paths.CategoryChart(), 0)
				log.Debug().Str("artifact", w.paths.CategoryChart()).Msg("chart written")
			} else {
				log.Debug().Msg("category chart skipped, nothing to plot")
			}
			return nil
		})

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			written, err := writeDailyChart(w.paths.DailyChart(), run.ByDay)
			if err != nil {
				return fmt.Errorf("daily chart: %w", err)
			}
			if written {
				add(w.paths.DailyChart(), 0)
				log.Debug().Str("artifact", w.paths.DailyChart()).Msg("chart written")
			} else {
				log.Debug().Msg("daily chart skipped, needs at least two days")
			}
			return nil
		})
	}

	if len(run.Rejected) > 0 {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := writeRejects(w.paths.Rejects(), run.Rejected); err != nil {
				return fmt.Errorf("rejects file: %w", err)
			}
			add(w.paths.Rejects(), int64(len(run.Rejected)))
			log.Debug().Str("artifact", w.paths.Rejects()).Msg("rejected rows written")
			return nil
		})
	}

	if w.opts.Parquet {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			n, err := writeParquet(w.paths.Parquet(), run.Accepted)
			if err != nil {
				return fmt.Errorf("parquet export: %w", err)
			}
			add(w.paths.Parquet(), n)
			log.Debug().Str("artifact", w.paths.Parquet()).Int64("rows", n).Msg("parquet written")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	// Fixed artifact order keeps the manifest stable across runs.
	order := []string{
		w.paths.Excel(),
		w.paths.Text(),
		w.paths.CategoryChart(),
		w.paths.DailyChart(),
		w.paths.Rejects(),
		w.paths.Parquet(),
	}
	artifacts := make([]ArtifactInfo, 0, len(order))
	for _, path := range order {
		rowCount, ok := produced[path]
		if !ok {
			continue
		}
		info, err := describeArtifact(path, rowCount)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		artifacts = append(artifacts, info)
	}

	manifest := buildManifest(run, w.opts.Source, artifacts, w.opts.ToolVersion)
	if err := writeManifest(w.paths.Manifest(), manifest); err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("report.artifacts", len(artifacts)+1))
	log.Info().
		Int("artifacts", len(artifacts)+1).
		Str("dir", w.paths.Dir).
		Msg("report bundle complete")

	return manifest, nil
}
