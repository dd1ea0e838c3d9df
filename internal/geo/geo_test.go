package geo

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

// A unit square from (10,10) to (20,20) with a 2x2 hole in the middle.
const squareWithHole = `{
	"type": "FeatureCollection",
	"features": [{
		"type": "Feature",
		"properties": {"name": "SQUARE"},
		"geometry": {
			"type": "Polygon",
			"coordinates": [
				[[10,10],[20,10],[20,20],[10,20],[10,10]],
				[[14,14],[16,14],[16,16],[14,16],[14,14]]
			]
		}
	}]
}`

func writeGeoJSON(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "boundary.geojson")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBoundaryContains(t *testing.T) {
	b, err := LoadBoundary(writeGeoJSON(t, squareWithHole))
	if err != nil {
		t.Fatalf("LoadBoundary: %v", err)
	}

	tests := []struct {
		name     string
		lat, lon float64
		want     bool
	}{
		{"center of ring", 12, 12, true},
		{"inside hole", 15, 15, false},
		{"outside bbox", 51.5, -0.12, false},
		{"on outer edge", 10, 15, true},
		{"just outside", 9.999, 15, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.Contains(tt.lat, tt.lon); got != tt.want {
				t.Errorf("Contains(%v, %v) = %v, want %v", tt.lat, tt.lon, got, tt.want)
			}
		})
	}
}

func TestLoadBoundaryBareGeometry(t *testing.T) {
	doc := `{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}`
	b, err := LoadBoundary(writeGeoJSON(t, doc))
	if err != nil {
		t.Fatalf("LoadBoundary: %v", err)
	}
	if !b.Contains(0.5, 0.5) {
		t.Error("Contains(0.5, 0.5) = false, want true")
	}
}

func TestLoadBoundaryErrors(t *testing.T) {
	if _, err := LoadBoundary(filepath.Join(t.TempDir(), "missing.geojson")); err == nil {
		t.Error("expected error for missing file")
	}
	doc := `{"type":"Point","coordinates":[1,2]}`
	if _, err := LoadBoundary(writeGeoJSON(t, doc)); err == nil {
		t.Error("expected error for non-polygon geometry")
	}
}

// Two overlapping sectors: ALPHA covers x 0..10, BRAVO covers x 5..15.
const overlappingSectors = `{
	"type": "FeatureCollection",
	"features": [
		{
			"type": "Feature",
			"properties": {"name": "ALPHA"},
			"geometry": {"type": "Polygon", "coordinates": [[[0,0],[10,0],[10,10],[0,10],[0,0]]]}
		},
		{
			"type": "Feature",
			"properties": {"name": "BRAVO"},
			"geometry": {"type": "Polygon", "coordinates": [[[5,0],[15,0],[15,10],[5,10],[5,0]]]}
		}
	]
}`

func TestSectorIndexContaining(t *testing.T) {
	idx, err := LoadSectors(writeGeoJSON(t, overlappingSectors))
	if err != nil {
		t.Fatalf("LoadSectors: %v", err)
	}
	if idx.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", idx.Len())
	}

	tests := []struct {
		name     string
		lat, lon float64
		want     []string
	}{
		{"only alpha", 5, 2, []string{"ALPHA"}},
		{"overlap region", 5, 7, []string{"ALPHA", "BRAVO"}},
		{"only bravo", 5, 12, []string{"BRAVO"}},
		{"neither", 5, 20, nil},
		{"shared edge is in both", 5, 10, []string{"ALPHA", "BRAVO"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := idx.Containing(tt.lat, tt.lon)
			if len(got) != len(tt.want) {
				t.Fatalf("Containing(%v, %v) = %v, want %v", tt.lat, tt.lon, got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("Containing(%v, %v) = %v, want %v", tt.lat, tt.lon, got, tt.want)
				}
			}
		})
	}
}

func TestLoadSectorsRejectsUnnamed(t *testing.T) {
	doc := `{
		"type": "FeatureCollection",
		"features": [{
			"type": "Feature",
			"properties": {},
			"geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,1],[0,0]]]}
		}]
	}`
	if _, err := LoadSectors(writeGeoJSON(t, doc)); err == nil {
		t.Error("expected error for sector without a name")
	}
}

func TestDistance(t *testing.T) {
	// Sydney (YSSY) to Melbourne (YMML), roughly 706 km.
	got := DistanceMeters(-33.9461, 151.1772, -37.6733, 144.8433)
	if math.Abs(got-706_000) > 10_000 {
		t.Errorf("DistanceMeters(YSSY, YMML) = %.0f m, want about 706 km", got)
	}

	if d := DistanceMeters(-34, 151, -34, 151); d != 0 {
		t.Errorf("zero distance = %v, want 0", d)
	}

	nm := DistanceNM(-33.9461, 151.1772, -37.6733, 144.8433)
	if math.Abs(nm-got/MetersPerNauticalMile) > 1e-9 {
		t.Errorf("DistanceNM = %v, want %v", nm, got/MetersPerNauticalMile)
	}
}
