package geojson

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/flood-occurrence-etl/internal/domain"
)

type featureDoc struct {
	Type       string            `json:"type"`
	Properties domain.Attributes `json:"properties"`
	Geometry   any               `json:"geometry"`
}

type collectionDoc struct {
	Type     string         `json:"type"`
	Name     string         `json:"name,omitempty"`
	CRS      map[string]any `json:"crs,omitempty"`
	Features any            `json:"features"`
}

// EnrichedWriter writes the enriched boundary layer.
// It implements pipeline.BoundaryLoader.
type EnrichedWriter struct {
	path   string
	logger *slog.Logger
}

// NewEnrichedWriter creates a writer for the file at path.
func NewEnrichedWriter(path string, logger *slog.Logger) *EnrichedWriter {
	return &EnrichedWriter{path: path, logger: logger}
}

// Load overwrites the output file with the enriched layer.
func (w *EnrichedWriter) Load(ctx context.Context, layer domain.EnrichedLayer) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	features := make([]featureDoc, len(layer.Features))
	for i, f := range layer.Features {
		var geometry any
		switch {
		case len(f.Geometry.Raw) > 0:
			geometry = f.Geometry.Raw
		case !f.Geometry.IsEmpty():
			geometry = toGeoJSONGeometry(f.Geometry)
		}
		features[i] = featureDoc{Type: "Feature", Properties: f.Properties, Geometry: geometry}
	}

	doc := collectionDoc{
		Type:     "FeatureCollection",
		Name:     strings.TrimSuffix(filepath.Base(w.path), filepath.Ext(w.path)),
		CRS:      crsMember(layer.CRS),
		Features: features,
	}
	if err := writeDocument(w.path, doc); err != nil {
		return err
	}
	w.logger.Info("enriched layer written", "path", w.path, "features", len(features))
	return nil
}

// SeasonWriter writes one collection per season into a directory.
// It implements pipeline.SeasonLoader.
type SeasonWriter struct {
	dir    string
	logger *slog.Logger
}

// NewSeasonWriter creates a writer for the output directory.
func NewSeasonWriter(dir string, logger *slog.Logger) *SeasonWriter {
	return &SeasonWriter{dir: dir, logger: logger}
}

// SeasonFile returns the path of a season's extract.
func (w *SeasonWriter) SeasonFile(s domain.Season) string {
	return filepath.Join(w.dir, s.String()+".json")
}

// Load writes <season>.json for every non-empty partition with the features
// exactly as read. The file of a season without features is removed so that
// a rerun never leaves a stale extract behind.
func (w *SeasonWriter) Load(ctx context.Context, p domain.SeasonPartitions) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create season dir: %w", err)
	}

	for _, s := range domain.Seasons {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := w.SeasonFile(s)
		features := p.Get(s)
		if len(features) == 0 {
			if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("remove stale %s: %w", path, err)
			}
			continue
		}

		raws := make([]json.RawMessage, len(features))
		for i, f := range features {
			raws[i] = f.Raw
		}
		doc := collectionDoc{Type: "FeatureCollection", Features: raws}
		if err := writeDocument(path, doc); err != nil {
			return err
		}
		w.logger.Info("season extract written", "season", s.String(), "features", len(raws), "path", path)
	}
	return nil
}
