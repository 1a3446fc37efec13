// Package pipeline wires the extract, transform and load stages of the batch
// runs: counts per neighbourhood, per-season extracts and the raw cleaner.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/flood-occurrence-etl/internal/domain"
	"github.com/couchcryptid/flood-occurrence-etl/internal/observability"
)

// OccurrenceExtractor reads the occurrence features.
type OccurrenceExtractor interface {
	Extract(ctx context.Context) ([]domain.Feature, error)
}

// BoundaryExtractor reads the neighbourhood boundary layer.
type BoundaryExtractor interface {
	Extract(ctx context.Context) (domain.BoundaryLayer, error)
}

// BoundaryLoader writes the enriched boundary layer.
type BoundaryLoader interface {
	Load(ctx context.Context, layer domain.EnrichedLayer) error
}

// SeasonLoader writes the per-season partitions.
type SeasonLoader interface {
	Load(ctx context.Context, parts domain.SeasonPartitions) error
}

// RawCleaner repairs a directory of raw collections.
type RawCleaner interface {
	Run(ctx context.Context) (domain.CleanReport, error)
}

// Stage is one named pipeline run.
type Stage interface {
	Name() string
	Run(ctx context.Context) error
}

// Runner executes stages in order and stops at the first failure.
type Runner struct {
	stages  []Stage
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewRunner creates a Runner for the given stages.
func NewRunner(logger *slog.Logger, metrics *observability.Metrics, stages ...Stage) *Runner {
	return &Runner{stages: stages, logger: logger, metrics: metrics}
}

// Run executes every stage. The error of the failing stage is returned
// wrapped with its name.
func (r *Runner) Run(ctx context.Context) error {
	for _, s := range r.stages {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := s.Name()
		start := time.Now()
		r.logger.Info("pipeline started", "pipeline", name)

		err := s.Run(ctx)
		elapsed := time.Since(start)
		r.metrics.PipelineDuration.WithLabelValues(name).Observe(elapsed.Seconds())
		if err != nil {
			r.metrics.PipelineFailures.WithLabelValues(name).Inc()
			r.logger.Error("pipeline failed", "pipeline", name, "error", err, "elapsed", elapsed)
			return fmt.Errorf("%s pipeline: %w", name, err)
		}
		r.metrics.LastSuccess.WithLabelValues(name).Set(float64(domain.Now().Unix()))
		r.logger.Info("pipeline finished", "pipeline", name, "elapsed", elapsed)
	}
	return nil
}
