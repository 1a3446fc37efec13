package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// DefaultCRS is assumed for boundary layers that do not declare a reference
// system.
const DefaultCRS = "EPSG:4326"

// Ring is a closed sequence of x/y positions. For geographic layers x is the
// longitude and y the latitude.
type Ring [][2]float64

// Polygon is an exterior ring followed by zero or more holes.
type Polygon []Ring

// Geometry is a boundary geometry flattened to its polygons. A Polygon
// geometry has one entry; a MultiPolygon has one per member. A null geometry
// has an empty Type and no polygons.
type Geometry struct {
	Type     string
	Polygons []Polygon
	Raw      json.RawMessage
}

// IsEmpty reports whether the geometry has no polygons to measure.
func (g Geometry) IsEmpty() bool { return len(g.Polygons) == 0 }

// Boundary is one neighbourhood polygon with its attributes.
type Boundary struct {
	Properties Attributes
	Geometry   Geometry
}

// BoundaryLayer is the full neighbourhood layer. CRS is empty when the source
// does not declare one.
type BoundaryLayer struct {
	CRS      string
	Features []Boundary
}

// AreaCalculator measures a geometry expressed in the given reference system
// and returns its area in square kilometres.
type AreaCalculator interface {
	AreaKm2(g Geometry, crs string) (float64, error)
}

// NormalizeCRS reduces the common spellings of an EPSG reference to
// "EPSG:<code>": "epsg:4326", "EPSG::31983", "urn:ogc:def:crs:EPSG::31983",
// "urn:ogc:def:crs:OGC:1.3:CRS84" (which is 4326). Unrecognised input is
// returned trimmed and unchanged.
func NormalizeCRS(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	upper := strings.ToUpper(s)
	if strings.HasSuffix(upper, "CRS84") {
		return DefaultCRS
	}
	idx := strings.LastIndex(upper, "EPSG")
	if idx < 0 {
		if _, err := strconv.Atoi(s); err == nil {
			return "EPSG:" + s
		}
		return s
	}
	code := strings.TrimLeft(upper[idx+len("EPSG"):], ":/")
	if i := strings.LastIndexAny(code, ":/"); i >= 0 {
		code = code[i+1:]
	}
	if _, err := strconv.Atoi(code); err != nil {
		return s
	}
	return "EPSG:" + code
}

// EPSGCode extracts the numeric code from a normalised CRS string.
func EPSGCode(crs string) (int, error) {
	norm := NormalizeCRS(crs)
	code, ok := strings.CutPrefix(norm, "EPSG:")
	if !ok {
		return 0, fmt.Errorf("%q: %w", crs, ErrUnsupportedCRS)
	}
	n, err := strconv.Atoi(code)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", crs, ErrUnsupportedCRS)
	}
	return n, nil
}
