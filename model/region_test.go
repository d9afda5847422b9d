package model

import "testing"

func TestClassifyRegion(t *testing.T) {
	cases := []struct {
		name string
		p    GeoPoint
		want string
	}{
		{"new york", GeoPoint{40.64, -73.78}, "USA"},
		{"london", GeoPoint{51.47, -0.45}, "UK"},
		{"frankfurt", GeoPoint{50.03, 8.56}, "Germany"},
		{"moscow", GeoPoint{55.97, 37.41}, "Russia"},
		{"shanghai", GeoPoint{31.14, 121.8}, "China"},
		{"sydney", GeoPoint{-33.94, 151.18}, "Australia"},
		{"mumbai", GeoPoint{19.09, 72.87}, "India"},
		{"open ocean", GeoPoint{0, -30}, RegionOther},
		{"tokyo", GeoPoint{35.55, 139.78}, "Japan"},
		// First match wins where boxes overlap.
		{"beijing", GeoPoint{40.08, 116.58}, "Russia"},
		{"delhi", GeoPoint{28.56, 77.1}, "China"},
	}
	for _, tc := range cases {
		if got := ClassifyRegion(tc.p); got != tc.want {
			t.Errorf("%s %v = %q, want %q", tc.name, tc.p, got, tc.want)
		}
	}
}

func TestRegionContains_ExclusiveLowerLatitude(t *testing.T) {
	russia := CountryRegions[3]
	if russia.Name != "Russia" {
		t.Fatalf("region order changed: %q", russia.Name)
	}
	if russia.Contains(GeoPoint{Lat: 40, Lon: 60}) {
		t.Errorf("latitude 40 should be outside the strict lower bound")
	}
	if !russia.Contains(GeoPoint{Lat: 40.01, Lon: 60}) {
		t.Errorf("latitude 40.01 should be inside")
	}

	usa := CountryRegions[0]
	if !usa.Contains(GeoPoint{Lat: 24, Lon: -100}) {
		t.Errorf("inclusive lower bound rejected its edge")
	}
}
