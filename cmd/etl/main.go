package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/couchcryptid/flood-occurrence-etl/internal/adapter/geojson"
	kafkaadapter "github.com/couchcryptid/flood-occurrence-etl/internal/adapter/kafka"
	"github.com/couchcryptid/flood-occurrence-etl/internal/adapter/shapefile"
	"github.com/couchcryptid/flood-occurrence-etl/internal/config"
	"github.com/couchcryptid/flood-occurrence-etl/internal/domain"
	"github.com/couchcryptid/flood-occurrence-etl/internal/geo"
	"github.com/couchcryptid/flood-occurrence-etl/internal/observability"
	"github.com/couchcryptid/flood-occurrence-etl/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	code := 0
	if err := run(ctx, cfg, logger, metrics); err != nil {
		logger.Error("run failed", "error", err)
		code = 1
	}

	if cfg.MetricsTextfile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsTextfile); err != nil {
			logger.Error("metrics textfile", "error", err)
		}
	}
	stop()
	os.Exit(code)
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) error {
	var stages []pipeline.Stage

	if cfg.Runs(config.PipelineClean) {
		cleaner := geojson.NewCleaner(cfg.RawDir, cfg.CleanDir, logger)
		stages = append(stages, pipeline.NewClean(cleaner, logger, metrics))
	}

	occurrences := geojson.NewOccurrenceReader(cfg.OccurrencesPath, logger)

	if cfg.Runs(config.PipelineCounts) {
		boundaries, err := boundaryExtractor(cfg, logger)
		if err != nil {
			return err
		}
		calc, err := geo.NewCalculator(geo.Method(cfg.AreaMethod))
		if err != nil {
			return err
		}
		stages = append(stages, pipeline.NewCounts(
			occurrences,
			boundaries,
			geojson.NewEnrichedWriter(cfg.EnrichedPath(), logger),
			domain.NewAggregator(cfg.Fields, logger),
			domain.NewEnricher(cfg.Fields, calc, logger),
			logger,
			metrics,
		))
	}

	if cfg.Runs(config.PipelineSeasons) {
		loaders := []pipeline.SeasonLoader{geojson.NewSeasonWriter(cfg.SeasonDir(), logger)}
		if cfg.KafkaEnabled() {
			publisher := kafkaadapter.NewSeasonPublisher(cfg, logger)
			defer func() {
				if err := publisher.Close(); err != nil {
					logger.Error("kafka writer close error", "error", err)
				}
			}()
			loaders = append(loaders, publisher)
			logger.Info("season publishing enabled", "topic", cfg.KafkaSeasonTopic, "brokers", cfg.KafkaBrokers)
		}
		stages = append(stages, pipeline.NewSeasons(
			occurrences,
			domain.NewSplitter(cfg.Fields.DateFields, logger),
			logger,
			metrics,
			loaders...,
		))
	}

	return pipeline.NewRunner(logger, metrics, stages...).Run(ctx)
}

// boundaryExtractor picks the reader for the boundary layer by extension.
func boundaryExtractor(cfg *config.Config, logger *slog.Logger) (pipeline.BoundaryExtractor, error) {
	if cfg.BoundariesPath == "" {
		return nil, fmt.Errorf("boundary layer (set BOUNDARIES_PATH or add Limite_de_Bairros under %s): %w", cfg.DataDir, geojson.ErrNotFound)
	}
	if strings.EqualFold(filepath.Ext(cfg.BoundariesPath), ".zip") {
		return shapefile.NewReader(cfg.BoundariesPath, cfg.BoundaryCRS, logger), nil
	}
	return geojson.NewBoundaryReader(cfg.BoundariesPath, cfg.BoundaryCRS, logger), nil
}
