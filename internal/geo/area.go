// Package geo measures boundary polygons. Layers are reprojected to
// SIRGAS 2000 / UTM zone 23S before a planar area is taken; a spherical
// method on the authalic sphere is available as an alternative.
package geo

import (
	"fmt"
	"math"

	"github.com/golang/geo/s2"
	"github.com/twpayne/go-geom"
	"github.com/wroge/wgs84"

	"github.com/couchcryptid/flood-occurrence-etl/internal/domain"
)

// Method selects how boundaries are measured.
type Method string

const (
	MethodUTM       Method = "utm"
	MethodSpherical Method = "spherical"
)

// EarthRadius is the mean radius of the GRS80 ellipsoid in metres.
const EarthRadius = 6371008.8

const (
	// EPSGAreaGrid is SIRGAS 2000 / UTM zone 23S, the grid areas are measured in.
	EPSGAreaGrid = 31983
	// EPSGLonLat is WGS 84 longitude/latitude.
	EPSGLonLat = 4326
)

var epsg = wgs84.EPSG()

// Calculator implements domain.AreaCalculator.
type Calculator struct {
	method Method
}

// NewCalculator returns a Calculator for the given method. An empty method
// means MethodUTM.
func NewCalculator(method Method) (*Calculator, error) {
	switch method {
	case "":
		method = MethodUTM
	case MethodUTM, MethodSpherical:
	default:
		return nil, fmt.Errorf("unknown area method %q", method)
	}
	return &Calculator{method: method}, nil
}

// AreaKm2 returns the area of g in square kilometres. Any EPSG reference
// system known to wgs84 is accepted.
func (c *Calculator) AreaKm2(g domain.Geometry, crs string) (float64, error) {
	code, err := domain.EPSGCode(crs)
	if err != nil {
		return 0, err
	}

	if c.method == MethodSpherical {
		lonLat := g
		if code != EPSGLonLat {
			if lonLat, err = Reproject(g, code, EPSGLonLat); err != nil {
				return 0, err
			}
		}
		return SphericalArea(lonLat, EarthRadius) / 1e6, nil
	}

	projected := g
	if code != EPSGAreaGrid {
		if projected, err = Reproject(g, code, EPSGAreaGrid); err != nil {
			return 0, err
		}
	}
	return PlanarArea(projected) / 1e6, nil
}

// Reproject transforms every vertex of g between two EPSG systems. Codes
// wgs84 does not know yield non-finite coordinates and ErrUnsupportedCRS.
func Reproject(g domain.Geometry, from, to int) (out domain.Geometry, err error) {
	// Unknown codes are not guaranteed to come back as NaN.
	defer func() {
		if r := recover(); r != nil {
			out, err = domain.Geometry{}, fmt.Errorf("EPSG:%d to EPSG:%d: %w", from, to, domain.ErrUnsupportedCRS)
		}
	}()

	transform := epsg.Transform(from, to)
	out = domain.Geometry{Type: g.Type, Polygons: make([]domain.Polygon, len(g.Polygons))}
	for i, poly := range g.Polygons {
		rings := make(domain.Polygon, len(poly))
		for j, ring := range poly {
			projected := make(domain.Ring, len(ring))
			for k, p := range ring {
				x, y, _ := transform(p[0], p[1], 0)
				if !finite(x) || !finite(y) {
					return domain.Geometry{}, fmt.Errorf("EPSG:%d to EPSG:%d: %w", from, to, domain.ErrUnsupportedCRS)
				}
				projected[k] = [2]float64{x, y}
			}
			rings[j] = projected
		}
		out.Polygons[i] = rings
	}
	return out, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// PlanarArea returns the area of g in squared coordinate units. Holes are
// subtracted; ring orientation does not matter.
func PlanarArea(g domain.Geometry) float64 {
	total := 0.0
	for _, poly := range g.Polygons {
		area := 0.0
		for i, ring := range poly {
			a := ringArea(ring)
			if i == 0 {
				area += a
			} else {
				area -= a
			}
		}
		total += math.Max(area, 0)
	}
	return total
}

// ringArea measures one ring with go-geom, closing it if needed.
func ringArea(ring domain.Ring) float64 {
	if len(ring) < 3 {
		return 0
	}
	flat := make([]float64, 0, 2*len(ring)+2)
	for _, p := range ring {
		flat = append(flat, p[0], p[1])
	}
	if first, last := ring[0], ring[len(ring)-1]; first != last {
		flat = append(flat, first[0], first[1])
	}
	return math.Abs(geom.NewLinearRingFlat(geom.XY, flat).Area())
}

// SphericalArea returns the area of a geographic geometry on a sphere of the
// given radius, in squared radius units. Each ring is measured as an s2 loop
// normalised to enclose at most half the sphere.
func SphericalArea(g domain.Geometry, radius float64) float64 {
	total := 0.0
	for _, poly := range g.Polygons {
		for i, ring := range poly {
			a := loopArea(ring)
			if i == 0 {
				total += a
			} else {
				total -= a
			}
		}
	}
	return math.Max(total, 0) * radius * radius
}

func loopArea(ring domain.Ring) float64 {
	points := make([]s2.Point, 0, len(ring))
	for _, p := range ring {
		pt := s2.PointFromLatLng(s2.LatLngFromDegrees(p[1], p[0]))
		if n := len(points); n > 0 && points[n-1] == pt {
			continue
		}
		points = append(points, pt)
	}
	if n := len(points); n > 1 && points[0] == points[n-1] {
		points = points[:n-1]
	}
	if len(points) < 3 {
		return 0
	}

	loop := s2.LoopFromPoints(points)
	loop.Normalize()
	return loop.Area()
}
