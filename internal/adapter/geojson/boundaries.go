package geojson

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	gj "github.com/paulmach/go.geojson"

	"github.com/couchcryptid/flood-occurrence-etl/internal/domain"
)

// BoundaryReader loads a neighbourhood layer stored as GeoJSON.
// It implements pipeline.BoundaryExtractor.
type BoundaryReader struct {
	path        string
	crsOverride string
	logger      *slog.Logger
}

// NewBoundaryReader creates a reader for the layer at path. A non-empty
// crsOverride replaces whatever the document declares.
func NewBoundaryReader(path, crsOverride string, logger *slog.Logger) *BoundaryReader {
	return &BoundaryReader{path: path, crsOverride: crsOverride, logger: logger}
}

// Extract reads the layer.
func (r *BoundaryReader) Extract(ctx context.Context) (domain.BoundaryLayer, error) {
	r.logger.Info("reading boundaries", "path", r.path)
	c, err := ReadCollection(ctx, r.path)
	if err != nil {
		return domain.BoundaryLayer{}, err
	}

	crs := c.CRS
	if r.crsOverride != "" {
		crs = domain.NormalizeCRS(r.crsOverride)
	}
	layer, err := DecodeBoundaries(c.Features, crs, r.logger)
	if err != nil {
		return domain.BoundaryLayer{}, fmt.Errorf("decode %s: %w", r.path, err)
	}
	r.logger.Info("boundaries loaded", "encoding", c.Encoding, "features", len(layer.Features), "crs", layer.CRS)
	return layer, nil
}

// DecodeBoundaries converts raw polygon features to a boundary layer.
// Geometries that are not polygons or cannot be decoded are replaced by an
// empty geometry and counted; the feature itself is kept.
func DecodeBoundaries(features []json.RawMessage, crs string, logger *slog.Logger) (domain.BoundaryLayer, error) {
	layer := domain.BoundaryLayer{CRS: crs, Features: make([]domain.Boundary, 0, len(features))}
	invalid := 0
	for i, raw := range features {
		f, err := domain.ParseFeature(raw)
		if err != nil {
			return domain.BoundaryLayer{}, fmt.Errorf("feature %d: %w", i, err)
		}
		g, err := ParseGeometry(f.Geometry)
		if err != nil {
			invalid++
			logger.Debug("boundary geometry ignored", "index", i, "error", err)
		}
		layer.Features = append(layer.Features, domain.Boundary{Properties: f.Properties, Geometry: g})
	}
	if invalid > 0 {
		logger.Warn("boundaries with unusable geometry", "count", invalid)
	}
	return layer, nil
}

// ParseGeometry decodes a Polygon or MultiPolygon. A null or absent geometry
// yields an empty Geometry and no error.
func ParseGeometry(raw json.RawMessage) (domain.Geometry, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return domain.Geometry{}, nil
	}

	g, err := gj.UnmarshalGeometry(trimmed)
	if err != nil {
		return domain.Geometry{}, fmt.Errorf("unmarshal geometry: %w", err)
	}

	out := domain.Geometry{Type: string(g.Type), Raw: append(json.RawMessage(nil), trimmed...)}
	switch {
	case g.IsPolygon():
		out.Polygons = []domain.Polygon{toPolygon(g.Polygon)}
	case g.IsMultiPolygon():
		for _, p := range g.MultiPolygon {
			out.Polygons = append(out.Polygons, toPolygon(p))
		}
	default:
		return domain.Geometry{Raw: out.Raw}, fmt.Errorf("unsupported geometry type %q", g.Type)
	}
	return out, nil
}

func toPolygon(rings [][][]float64) domain.Polygon {
	poly := make(domain.Polygon, 0, len(rings))
	for _, ring := range rings {
		r := make(domain.Ring, 0, len(ring))
		for _, pos := range ring {
			if len(pos) < 2 {
				continue
			}
			r = append(r, [2]float64{pos[0], pos[1]})
		}
		poly = append(poly, r)
	}
	return poly
}

// toGeoJSONGeometry rebuilds a geometry for output when the raw bytes are
// not available.
func toGeoJSONGeometry(g domain.Geometry) *gj.Geometry {
	if g.IsEmpty() {
		return nil
	}
	polys := make([][][][]float64, len(g.Polygons))
	for i, p := range g.Polygons {
		rings := make([][][]float64, len(p))
		for j, r := range p {
			coords := make([][]float64, len(r))
			for k, pos := range r {
				coords[k] = []float64{pos[0], pos[1]}
			}
			rings[j] = coords
		}
		polys[i] = rings
	}
	if len(polys) == 1 && g.Type != string(gj.GeometryMultiPolygon) {
		return gj.NewPolygonGeometry(polys[0])
	}
	return gj.NewMultiPolygonGeometry(polys...)
}
