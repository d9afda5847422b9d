package model

// Region is a named lat/lon bounding box used to bucket geographic samples
// by country on the packet dashboard.
type Region struct {
	Name   string
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
	// ExclusiveMinLat makes the lower latitude bound strict.
	ExclusiveMinLat bool
}

// Contains reports whether p falls inside the box.
func (r Region) Contains(p GeoPoint) bool {
	if r.ExclusiveMinLat {
		if p.Lat <= r.MinLat {
			return false
		}
	} else if p.Lat < r.MinLat {
		return false
	}
	return p.Lat <= r.MaxLat && p.Lon >= r.MinLon && p.Lon <= r.MaxLon
}

// RegionOther is reported when no region matches.
const RegionOther = "Other"

// CountryRegions lists the coarse boxes in match order. Boxes overlap, so the
// first match wins.
var CountryRegions = []Region{
	{Name: "USA", MinLat: 24, MaxLat: 49, MinLon: -125, MaxLon: -66},
	{Name: "UK", MinLat: 50, MaxLat: 60, MinLon: -10, MaxLon: 2},
	{Name: "Germany", MinLat: 47, MaxLat: 55, MinLon: 5, MaxLon: 15},
	{Name: "Russia", MinLat: 40, MaxLat: 90, MinLon: 19, MaxLon: 180, ExclusiveMinLat: true},
	{Name: "China", MinLat: 18, MaxLat: 53, MinLon: 73, MaxLon: 135},
	{Name: "Japan", MinLat: 24, MaxLat: 45, MinLon: 122, MaxLon: 153},
	{Name: "Australia", MinLat: -45, MaxLat: -10, MinLon: 112, MaxLon: 154},
	{Name: "India", MinLat: 8, MaxLat: 37, MinLon: 68, MaxLon: 97},
}

// ClassifyRegion returns the name of the first region containing p.
func ClassifyRegion(p GeoPoint) string {
	for _, r := range CountryRegions {
		if r.Contains(p) {
			return r.Name
		}
	}
	return RegionOther
}
