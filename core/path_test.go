package core

import (
	"errors"
	"math"
	"testing"

	"github.com/signalsfoundry/globe-simulator/model"
)

func TestProject_KnownPoints(t *testing.T) {
	cases := []struct {
		lat, lon float64
		want     Vec3
	}{
		{0, 0, Vec3{X: 1}},
		{0, 90, Vec3{Z: -1}},
		{90, 0, Vec3{Y: 1}},
		{-90, 45, Vec3{Y: -1}},
	}
	for _, tc := range cases {
		got := Project(tc.lat, tc.lon, 1)
		if !vecNear(got, tc.want, 1e-9) {
			t.Errorf("Project(%v, %v) = %v, want %v", tc.lat, tc.lon, got, tc.want)
		}
	}
}

func TestProject_MagnitudeAndDeterminism(t *testing.T) {
	for _, prof := range []Profile{FlightsProfile, PacketsProfile} {
		for lat := -90.0; lat <= 90; lat += 15 {
			for lon := -180.0; lon <= 180; lon += 30 {
				p := prof.Projection.Project(lat, lon, 1.05)
				if math.Abs(p.Norm()-1.05) > 1e-12 {
					t.Fatalf("%s: |Project(%v,%v)| = %v, want 1.05", prof.Name, lat, lon, p.Norm())
				}
				if again := prof.Projection.Project(lat, lon, 1.05); again != p {
					t.Fatalf("%s: Project(%v,%v) not deterministic", prof.Name, lat, lon)
				}
			}
		}
	}
}

func TestProject_PacketsRotatedHalfTurn(t *testing.T) {
	f := FlightsProjection.Project(10, 20, 1)
	p := PacketsProfile.Projection.Project(10, 20, 1)
	if !vecNear(p, Vec3{X: -f.X, Y: f.Y, Z: -f.Z}, 1e-12) {
		t.Errorf("packets projection %v is not flights %v rotated about +Y", p, f)
	}
}

func TestBuildPath_Shape(t *testing.T) {
	origin := model.GeoPoint{Lat: 40.64, Lon: -73.78}
	dest := model.GeoPoint{Lat: 51.47, Lon: -0.45}
	radius := FlightsProfile.PathRadius()

	path, err := BuildPath(FlightsProjection, radius, origin, dest, 50)
	if err != nil {
		t.Fatalf("BuildPath: %v", err)
	}
	if len(path) != 51 || path.Segments() != 50 {
		t.Fatalf("len = %d, segments = %d, want 51/50", len(path), path.Segments())
	}
	if !vecNear(path[0], FlightsProjection.Project(origin.Lat, origin.Lon, radius), 1e-12) {
		t.Errorf("path[0] = %v, want projected origin", path[0])
	}
	if !vecNear(path[50], FlightsProjection.Project(dest.Lat, dest.Lon, radius), 1e-12) {
		t.Errorf("path[50] = %v, want projected destination", path[50])
	}
	for i, p := range path {
		if math.Abs(p.Norm()-radius) > 1e-9 {
			t.Fatalf("|path[%d]| = %v, want %v", i, p.Norm(), radius)
		}
	}
}

func TestBuildPath_RejectsZeroSegments(t *testing.T) {
	_, err := BuildPath(FlightsProjection, 1, model.GeoPoint{}, model.GeoPoint{Lon: 1}, 0)
	if !errors.Is(err, ErrInvalidSegments) {
		t.Fatalf("err = %v, want ErrInvalidSegments", err)
	}
}

func TestPointOnArc_MatchesPathSamples(t *testing.T) {
	origin := model.GeoPoint{Lat: 0, Lon: 0}
	dest := model.GeoPoint{Lat: 0, Lon: 90}
	path, err := BuildPath(FlightsProjection, 1.05, origin, dest, 4)
	if err != nil {
		t.Fatalf("BuildPath: %v", err)
	}
	for i, p := range path {
		got := PointOnArc(FlightsProjection, 1.05, origin, dest, float64(i)/4)
		if !vecNear(got, p, 1e-12) {
			t.Errorf("PointOnArc(%v) = %v, want %v", float64(i)/4, got, p)
		}
	}
}

func TestPathCache_SharesRoutes(t *testing.T) {
	cache, err := NewPathCache(FlightsProjection, 1.05, 8)
	if err != nil {
		t.Fatalf("NewPathCache: %v", err)
	}
	a := model.GeoPoint{Lat: 1, Lon: 2}
	b := model.GeoPoint{Lat: 3, Lon: 4}

	p1, err := cache.Get(a, b, 10)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	p2, _ := cache.Get(a, b, 10)
	if &p1[0] != &p2[0] {
		t.Errorf("same route built twice")
	}
	if _, err := cache.Get(b, a, 10); err != nil {
		t.Fatalf("Get reverse: %v", err)
	}
	if _, err := cache.Get(a, b, 20); err != nil {
		t.Fatalf("Get finer: %v", err)
	}
	if cache.Len() != 3 {
		t.Errorf("Len() = %d, want 3 distinct routes", cache.Len())
	}
	if _, err := cache.Get(a, b, 0); !errors.Is(err, ErrInvalidSegments) {
		t.Errorf("err = %v, want ErrInvalidSegments", err)
	}
}
