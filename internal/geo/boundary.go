// Package geo provides the geographic primitives for the tracker: the FIR
// boundary test, the sector index, and great-circle distance.
//
// Polygons are loaded from GeoJSON via paulmach/orb and evaluated with a
// planar ray cast. A bounding-box precheck keeps per-point evaluation well
// under the millisecond budget.
package geo

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// Boundary is a single polygon (possibly with holes) used as an outer
// geographic filter.
type Boundary struct {
	multi orb.MultiPolygon
	bound orb.Bound
}

// LoadBoundary reads a GeoJSON file holding the boundary polygon. Feature
// collections, single features, and bare geometries are all accepted; the
// first Polygon or MultiPolygon found wins.
func LoadBoundary(path string) (*Boundary, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read boundary file: %w", err)
	}

	g, err := decodeFirstGeometry(raw)
	if err != nil {
		return nil, fmt.Errorf("parse boundary %s: %w", path, err)
	}

	multi, err := asMultiPolygon(g)
	if err != nil {
		return nil, fmt.Errorf("boundary %s: %w", path, err)
	}

	return &Boundary{multi: multi, bound: multi.Bound()}, nil
}

// Contains reports whether the point is inside the boundary. Points exactly
// on an edge are inside.
func (b *Boundary) Contains(lat, lon float64) bool {
	p := orb.Point{lon, lat}
	if !b.bound.Contains(p) {
		return false
	}
	return planar.MultiPolygonContains(b.multi, p)
}

// decodeFirstGeometry accepts a FeatureCollection, Feature or Geometry
// document and returns the first geometry in it.
func decodeFirstGeometry(raw []byte) (orb.Geometry, error) {
	if fc, err := geojson.UnmarshalFeatureCollection(raw); err == nil {
		if len(fc.Features) == 0 {
			return nil, fmt.Errorf("feature collection is empty")
		}
		return fc.Features[0].Geometry, nil
	}
	if f, err := geojson.UnmarshalFeature(raw); err == nil {
		return f.Geometry, nil
	}
	g, err := geojson.UnmarshalGeometry(raw)
	if err != nil {
		return nil, err
	}
	return g.Geometry(), nil
}

func asMultiPolygon(g orb.Geometry) (orb.MultiPolygon, error) {
	switch t := g.(type) {
	case orb.Polygon:
		return orb.MultiPolygon{t}, nil
	case orb.MultiPolygon:
		return t, nil
	default:
		return nil, fmt.Errorf("geometry is %T, want Polygon or MultiPolygon", g)
	}
}
