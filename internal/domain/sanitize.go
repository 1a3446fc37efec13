package domain

import (
	"bytes"
	"encoding/json"
)

// Point is a WGS-84 longitude/latitude pair, in GeoJSON order.
type Point struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// Occurrence is a feature whose point geometry passed sanitisation.
type Occurrence struct {
	Feature
	Point Point
}

// RejectReason explains why a feature was dropped before aggregation.
type RejectReason string

const (
	RejectNullGeometry         RejectReason = "null_geometry"
	RejectInvalidGeometry      RejectReason = "invalid_geometry"
	RejectMissingCoordinates   RejectReason = "missing_coordinates"
	RejectEmptyCoordinates     RejectReason = "empty_coordinates"
	RejectNonNumericCoordinate RejectReason = "non_numeric_coordinates"
)

// RejectReasons lists every reason in reporting order.
var RejectReasons = []RejectReason{
	RejectNullGeometry,
	RejectInvalidGeometry,
	RejectMissingCoordinates,
	RejectEmptyCoordinates,
	RejectNonNumericCoordinate,
}

// SanitizeStats tallies the outcome of SanitizeOccurrences.
type SanitizeStats struct {
	Total    int
	Kept     int
	Rejected map[RejectReason]int
}

// RejectedTotal is the number of dropped features across all reasons.
func (s SanitizeStats) RejectedTotal() int {
	n := 0
	for _, c := range s.Rejected {
		n += c
	}
	return n
}

// SanitizeOccurrences keeps the features whose geometry is present and whose
// first two coordinates are present and numeric. Numeric strings such as
// "-43.17" are accepted, matching how the exports encode coordinates. Nothing
// here is fatal; dropped features are tallied by reason.
func SanitizeOccurrences(features []Feature) ([]Occurrence, SanitizeStats) {
	stats := SanitizeStats{Total: len(features), Rejected: map[RejectReason]int{}}
	out := make([]Occurrence, 0, len(features))

	for _, f := range features {
		pt, reason := parsePointGeometry(f.Geometry)
		if reason != "" {
			stats.Rejected[reason]++
			continue
		}
		out = append(out, Occurrence{Feature: f, Point: pt})
	}

	stats.Kept = len(out)
	return out, stats
}

// parsePointGeometry extracts the first coordinate pair of a raw geometry.
// It returns a non-empty reason when the geometry is unusable.
func parsePointGeometry(raw json.RawMessage) (Point, RejectReason) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Point{}, RejectNullGeometry
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var geometry map[string]any
	if err := dec.Decode(&geometry); err != nil {
		return Point{}, RejectInvalidGeometry
	}

	coordsVal, ok := geometry["coordinates"]
	if !ok || coordsVal == nil {
		return Point{}, RejectMissingCoordinates
	}
	coords, ok := coordsVal.([]any)
	if !ok {
		return Point{}, RejectNonNumericCoordinate
	}
	// Nested arrays belong to lines and polygons, whatever their length.
	for _, c := range coords {
		switch c.(type) {
		case []any, map[string]any:
			return Point{}, RejectNonNumericCoordinate
		}
	}
	if len(coords) < 2 {
		return Point{}, RejectMissingCoordinates
	}
	for _, c := range coords[:2] {
		if s, isStr := c.(string); isStr && s == "" {
			return Point{}, RejectEmptyCoordinates
		}
	}

	lon, okLon := numericValue(coords[0])
	lat, okLat := numericValue(coords[1])
	if !okLon || !okLat {
		return Point{}, RejectNonNumericCoordinate
	}
	return Point{Lon: lon, Lat: lat}, ""
}
