// Package shapefile reads a zipped ESRI shapefile boundary layer.
package shapefile

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	shp "github.com/everystreet/go-shapefile"

	"github.com/couchcryptid/flood-occurrence-etl/internal/adapter/geojson"
	"github.com/couchcryptid/flood-occurrence-etl/internal/domain"
)

// Reader loads the boundary layer from a .zip holding <name>.shp, .shx,
// .dbf and optionally .prj, where <name> is the archive's base name.
// It implements pipeline.BoundaryExtractor.
type Reader struct {
	path        string
	crsOverride string
	logger      *slog.Logger
}

// NewReader creates a reader for the archive at path. A non-empty
// crsOverride replaces the CRS found in the .prj.
func NewReader(path, crsOverride string, logger *slog.Logger) *Reader {
	return &Reader{path: path, crsOverride: crsOverride, logger: logger}
}

// Extract reads every record of the archive.
func (r *Reader) Extract(ctx context.Context) (domain.BoundaryLayer, error) {
	if err := ctx.Err(); err != nil {
		return domain.BoundaryLayer{}, err
	}
	r.logger.Info("reading boundaries", "path", r.path)

	file, err := os.Open(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.BoundaryLayer{}, fmt.Errorf("%s: %w", r.path, geojson.ErrNotFound)
	}
	if err != nil {
		return domain.BoundaryLayer{}, fmt.Errorf("open %s: %w", r.path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return domain.BoundaryLayer{}, fmt.Errorf("stat %s: %w", r.path, err)
	}

	crs := domain.NormalizeCRS(r.crsOverride)
	if crs == "" {
		crs, err = projectionCRS(file, info.Size())
		if err != nil {
			return domain.BoundaryLayer{}, fmt.Errorf("read projection: %w", err)
		}
	}

	dbf, _, err := zipMember(file, info.Size(), ".dbf")
	if err != nil {
		return domain.BoundaryLayer{}, fmt.Errorf("read attribute table: %w", err)
	}
	features, err := scanFeatures(file, info.Size(), filepath.Base(r.path), dbfFieldNames(dbf))
	if err != nil {
		return domain.BoundaryLayer{}, fmt.Errorf("scan %s: %w", r.path, err)
	}

	layer, err := geojson.DecodeBoundaries(features, crs, r.logger)
	if err != nil {
		return domain.BoundaryLayer{}, fmt.Errorf("decode %s: %w", r.path, err)
	}
	r.logger.Info("boundaries loaded", "features", len(layer.Features), "crs", layer.CRS)
	return layer, nil
}

// scanFeatures returns each shapefile record as a raw GeoJSON feature whose
// properties follow the attribute table's column order.
func scanFeatures(ra io.ReaderAt, size int64, name string, fields []string) ([]json.RawMessage, error) {
	scanner, err := shp.NewZipScanner(ra, size, name)
	if err != nil {
		return nil, err
	}
	if err := scanner.Scan(); err != nil {
		return nil, err
	}

	var features []json.RawMessage
	for {
		record := scanner.Record()
		if record == nil {
			break
		}

		shape, err := json.Marshal(record.Shape.GeoJSONFeature())
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", len(features), err)
		}
		parsed, err := domain.ParseFeature(shape)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", len(features), err)
		}

		props := make(domain.Attributes, 0, len(fields))
		for _, field := range fields {
			attr, _ := record.Attributes.Field(field)
			if attr == nil {
				continue
			}
			v := attr.Value()
			if s, isStr := v.(string); isStr {
				v = strings.TrimRight(s, " ")
			}
			props.Set(field, v)
		}

		raw, err := json.Marshal(struct {
			Type       string            `json:"type"`
			Properties domain.Attributes `json:"properties"`
			Geometry   json.RawMessage   `json:"geometry"`
		}{"Feature", props, nullIfEmpty(parsed.Geometry)})
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", len(features), err)
		}
		features = append(features, raw)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return features, nil
}

func nullIfEmpty(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("null")
	}
	return raw
}

// zipMember returns the first archive member with the given extension.
func zipMember(ra io.ReaderAt, size int64, ext string) ([]byte, bool, error) {
	zr, err := zip.NewReader(ra, size)
	if err != nil {
		return nil, false, err
	}
	for _, f := range zr.File {
		if !strings.EqualFold(filepath.Ext(f.Name), ext) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, false, err
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, false, err
		}
		return data, true, nil
	}
	return nil, false, nil
}

// dbfFieldNames lists the column names of a dBase table header in order.
// Descriptors are 32 bytes each, after a 32-byte header, up to a 0x0D byte.
func dbfFieldNames(dbf []byte) []string {
	var names []string
	for off := 32; off+32 <= len(dbf) && dbf[off] != 0x0D; off += 32 {
		name := dbf[off : off+11]
		if i := bytes.IndexByte(name, 0); i >= 0 {
			name = name[:i]
		}
		names = append(names, strings.TrimSpace(string(name)))
	}
	return names
}

// projectionCRS reads the .prj member of the archive, if any, and maps its
// WKT to an EPSG code. A layer without a .prj is assumed to be WGS 84.
func projectionCRS(ra io.ReaderAt, size int64) (string, error) {
	wkt, ok, err := zipMember(ra, size, ".prj")
	if err != nil {
		return "", err
	}
	if !ok {
		return domain.DefaultCRS, nil
	}
	return CRSFromWKT(string(wkt)), nil
}

// wktNames maps the PROJCS/GEOGCS names written by common GIS tools to
// EPSG codes. Order matters: projected names are checked first.
var wktNames = []struct {
	name string
	crs  string
}{
	{"SIRGAS_2000_UTM_Zone_23S", "EPSG:31983"},
	{"SIRGAS 2000 / UTM zone 23S", "EPSG:31983"},
	{"SIRGAS_2000_UTM_Zone_24S", "EPSG:31984"},
	{"SIRGAS 2000 / UTM zone 24S", "EPSG:31984"},
	{"WGS_1984_UTM_Zone_23S", "EPSG:32723"},
	{"WGS 84 / UTM zone 23S", "EPSG:32723"},
	{"GCS_SIRGAS_2000", "EPSG:4674"},
	{"SIRGAS 2000", "EPSG:4674"},
	{"GCS_WGS_1984", "EPSG:4326"},
	{"WGS 84", "EPSG:4326"},
}

// CRSFromWKT returns the EPSG code named by a .prj WKT string. An AUTHORITY
// clause on the outermost element wins over the name table; an unknown
// projection yields "unknown", which area computation rejects.
func CRSFromWKT(wkt string) string {
	if code := outerAuthority(wkt); code != "" {
		return "EPSG:" + code
	}
	for _, n := range wktNames {
		if strings.Contains(wkt, n.name) {
			return n.crs
		}
	}
	return "unknown"
}

// outerAuthority extracts the last AUTHORITY["EPSG","<code>"] clause, which
// belongs to the outermost element in WKT1.
func outerAuthority(wkt string) string {
	const marker = `AUTHORITY["EPSG","`
	i := strings.LastIndex(wkt, marker)
	if i < 0 {
		return ""
	}
	rest := wkt[i+len(marker):]
	end := strings.IndexByte(rest, '"')
	if end <= 0 {
		return ""
	}
	// The outermost element closes right after its authority clause.
	if tail := strings.TrimSpace(rest[end+1:]); tail != "]]" {
		return ""
	}
	return rest[:end]
}
