package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/flood-occurrence-etl/internal/domain"
	"github.com/couchcryptid/flood-occurrence-etl/internal/observability"
)

// Seasons splits the occurrences by season and hands the partitions to
// every loader in order.
type Seasons struct {
	extractor OccurrenceExtractor
	splitter  *domain.Splitter
	loaders   []SeasonLoader
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewSeasons creates the seasons pipeline. At least one loader is expected.
func NewSeasons(
	extractor OccurrenceExtractor,
	splitter *domain.Splitter,
	logger *slog.Logger,
	metrics *observability.Metrics,
	loaders ...SeasonLoader,
) *Seasons {
	return &Seasons{extractor: extractor, splitter: splitter, loaders: loaders, logger: logger, metrics: metrics}
}

func (s *Seasons) Name() string { return "seasons" }

// Run reads, splits and loads. When the first feature has no date field
// nothing is written and the run still succeeds.
func (s *Seasons) Run(ctx context.Context) error {
	features, err := s.extractor.Extract(ctx)
	if err != nil {
		return fmt.Errorf("extract occurrences: %w", err)
	}

	parts := s.splitter.Split(features)
	s.metrics.RecordSplit(parts.Stats)
	if parts.Stats.NoDateField {
		return nil
	}

	for _, l := range s.loaders {
		if err := l.Load(ctx, parts); err != nil {
			return fmt.Errorf("load seasons: %w", err)
		}
	}
	for _, season := range domain.Seasons {
		if n := len(parts.Get(season)); n > 0 {
			s.metrics.RecordWritten("season", season.String(), n)
		}
	}
	return nil
}
