package geo

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// Sector is one named airspace volume. Sectors may overlap each other and
// need not tile the FIR.
type Sector struct {
	Name  string
	multi orb.MultiPolygon
	bound orb.Bound
}

// SectorIndex answers point-in-sector queries for every loaded sector.
type SectorIndex struct {
	sectors []Sector
}

// LoadSectors reads a GeoJSON FeatureCollection of sector polygons. Each
// feature must carry a name property ("name", "Name" or "id"). Order is
// preserved from the file.
func LoadSectors(path string) (*SectorIndex, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sector file: %w", err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return nil, fmt.Errorf("parse sectors %s: %w", path, err)
	}

	ix := &SectorIndex{}
	for i, f := range fc.Features {
		name := featureName(f)
		if name == "" {
			return nil, fmt.Errorf("sector feature %d in %s has no name property", i, path)
		}
		multi, err := asMultiPolygon(f.Geometry)
		if err != nil {
			return nil, fmt.Errorf("sector %q: %w", name, err)
		}
		ix.sectors = append(ix.sectors, Sector{Name: name, multi: multi, bound: multi.Bound()})
	}
	if len(ix.sectors) == 0 {
		return nil, fmt.Errorf("sector file %s contains no features", path)
	}
	return ix, nil
}

// Containing returns the names of every sector whose polygon contains the
// point. Points exactly on an edge are admitted into the sector.
func (ix *SectorIndex) Containing(lat, lon float64) []string {
	p := orb.Point{lon, lat}
	var names []string
	for i := range ix.sectors {
		s := &ix.sectors[i]
		if !s.bound.Contains(p) {
			continue
		}
		if planar.MultiPolygonContains(s.multi, p) {
			names = append(names, s.Name)
		}
	}
	return names
}

// Names lists all loaded sector names in file order.
func (ix *SectorIndex) Names() []string {
	names := make([]string, len(ix.sectors))
	for i, s := range ix.sectors {
		names[i] = s.Name
	}
	return names
}

// Len returns the number of loaded sectors.
func (ix *SectorIndex) Len() int { return len(ix.sectors) }

func featureName(f *geojson.Feature) string {
	for _, key := range []string{"name", "Name", "id"} {
		if v, ok := f.Properties[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	if s, ok := f.ID.(string); ok {
		return s
	}
	return ""
}
