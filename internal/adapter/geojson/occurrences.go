package geojson

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/flood-occurrence-etl/internal/domain"
)

// OccurrenceReader loads the occurrence collection.
// It implements pipeline.OccurrenceExtractor.
type OccurrenceReader struct {
	path   string
	logger *slog.Logger
}

// NewOccurrenceReader creates a reader for the collection at path.
func NewOccurrenceReader(path string, logger *slog.Logger) *OccurrenceReader {
	return &OccurrenceReader{path: path, logger: logger}
}

// Extract returns every feature of the collection. Features that are not
// JSON objects are skipped and counted; the geometry is not validated here.
func (r *OccurrenceReader) Extract(ctx context.Context) ([]domain.Feature, error) {
	r.logger.Info("reading occurrences", "path", r.path)
	c, err := ReadCollection(ctx, r.path)
	if err != nil {
		return nil, err
	}

	features := make([]domain.Feature, 0, len(c.Features))
	skipped := 0
	for _, raw := range c.Features {
		f, err := domain.ParseFeature(raw)
		if err != nil {
			skipped++
			continue
		}
		features = append(features, f)
	}

	if skipped > 0 {
		r.logger.Warn("malformed features skipped", "count", skipped)
	}
	r.logger.Info("occurrences loaded", "encoding", c.Encoding, "features", len(features))
	return features, nil
}
