package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/flood-occurrence-etl/internal/observability"
)

// Clean repairs the raw exports before the other pipelines read them.
type Clean struct {
	cleaner RawCleaner
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewClean creates the clean pipeline.
func NewClean(cleaner RawCleaner, logger *slog.Logger, metrics *observability.Metrics) *Clean {
	return &Clean{cleaner: cleaner, logger: logger, metrics: metrics}
}

func (c *Clean) Name() string { return "clean" }

// Run cleans the raw directory. Files that fail are skipped by the cleaner;
// the run fails only when nothing at all could be cleaned.
func (c *Clean) Run(ctx context.Context) error {
	report, err := c.cleaner.Run(ctx)
	if err != nil {
		return fmt.Errorf("clean raw collections: %w", err)
	}
	c.metrics.RecordClean(report.Features)
	if report.Files == 0 && report.Failed > 0 {
		return fmt.Errorf("all %d raw collections failed to clean", report.Failed)
	}
	return nil
}
