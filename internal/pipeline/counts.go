package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/flood-occurrence-etl/internal/domain"
	"github.com/couchcryptid/flood-occurrence-etl/internal/observability"
)

// Counts aggregates occurrences per neighbourhood and writes the enriched
// boundary layer.
type Counts struct {
	occurrences OccurrenceExtractor
	boundaries  BoundaryExtractor
	loader      BoundaryLoader
	aggregator  *domain.Aggregator
	enricher    *domain.Enricher
	logger      *slog.Logger
	metrics     *observability.Metrics

	summary domain.RunSummary
}

// NewCounts creates the counts pipeline.
func NewCounts(
	occurrences OccurrenceExtractor,
	boundaries BoundaryExtractor,
	loader BoundaryLoader,
	aggregator *domain.Aggregator,
	enricher *domain.Enricher,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *Counts {
	return &Counts{
		occurrences: occurrences,
		boundaries:  boundaries,
		loader:      loader,
		aggregator:  aggregator,
		enricher:    enricher,
		logger:      logger,
		metrics:     metrics,
	}
}

func (c *Counts) Name() string { return "counts" }

// Summary returns the report of the last successful run.
func (c *Counts) Summary() domain.RunSummary { return c.summary }

// Run reads, aggregates, enriches and writes.
func (c *Counts) Run(ctx context.Context) error {
	features, err := c.occurrences.Extract(ctx)
	if err != nil {
		return fmt.Errorf("extract occurrences: %w", err)
	}

	occurrences, sanitized := domain.SanitizeOccurrences(features)
	c.metrics.RecordSanitize(sanitized)
	logSanitize(c.logger, sanitized)

	agg, err := c.aggregator.Aggregate(occurrences)
	if err != nil {
		return fmt.Errorf("aggregate: %w", err)
	}
	c.metrics.RecordAggregate(agg.Stats)

	layer, err := c.boundaries.Extract(ctx)
	if err != nil {
		return fmt.Errorf("extract boundaries: %w", err)
	}

	enriched, err := c.enricher.Enrich(layer, agg)
	if err != nil {
		return fmt.Errorf("enrich: %w", err)
	}
	c.metrics.RecordEnrich(enriched.Stats)

	if err := c.loader.Load(ctx, enriched); err != nil {
		return fmt.Errorf("load enriched layer: %w", err)
	}
	c.metrics.RecordWritten("enriched", "", len(enriched.Features))

	c.summary = domain.Summarize(enriched)
	logSummary(c.logger, c.summary)
	return nil
}

func logSanitize(logger *slog.Logger, s domain.SanitizeStats) {
	attrs := []any{"total", s.Total, "kept", s.Kept, "rejected", s.RejectedTotal()}
	for _, reason := range domain.RejectReasons {
		if n := s.Rejected[reason]; n > 0 {
			attrs = append(attrs, string(reason), n)
		}
	}
	if s.RejectedTotal() > 0 {
		logger.Warn("occurrences rejected", attrs...)
		return
	}
	logger.Info("occurrences sanitized", attrs...)
}

func logSummary(logger *slog.Logger, s domain.RunSummary) {
	logger.Info("counts summary",
		"boundaries", s.Boundaries,
		"with_occurrences", s.WithOccurrences,
		"total_occurrences", s.TotalOccurrences,
	)
	for _, c := range domain.KnownCategories {
		logger.Info("category total", "category", c.Name, "occurrences", s.CategoryTotals[c.Name])
	}
	for _, d := range append([]domain.DensityStats{s.Density}, s.CategoryDensities...) {
		if d.N == 0 {
			continue
		}
		logger.Info("density per km²", "field", d.Field, "n", d.N, "mean", d.Mean, "max", d.Max, "min", d.Min)
	}
}
