package core

import (
	"math"

	"github.com/dhconnelly/rtreego"

	"github.com/signalsfoundry/globe-simulator/model"
)

const (
	indexDimensions  = 2
	indexMinChildren = 25
	indexMaxChildren = 50
	// indexPointSize is the half-extent of the rectangle stored per airport.
	indexPointSize = 1e-9
)

// locationKey identifies an airport. In exact mode it is the raw coordinate
// pair; in snapped mode it is the first coordinate pair registered within
// tolerance.
type locationKey struct {
	Lat, Lon float64
}

func exactKey(p model.GeoPoint) locationKey {
	return locationKey{Lat: p.Lat, Lon: p.Lon}
}

type airportItem struct {
	key  locationKey
	seq  int
	rect *rtreego.Rect
}

func (a *airportItem) Bounds() *rtreego.Rect {
	return a.rect
}

// airportIndex merges nearby coordinates onto one canonical key using an
// R-tree box search in (lat, lon) degrees. When several airports lie within
// tolerance the first registered one wins.
type airportIndex struct {
	tree      *rtreego.Rtree
	tolerance float64
}

func newAirportIndex(toleranceDeg float64) *airportIndex {
	return &airportIndex{
		tree:      rtreego.NewTree(indexDimensions, indexMinChildren, indexMaxChildren),
		tolerance: math.Max(toleranceDeg, 0),
	}
}

// nearest returns the earliest registered key within tolerance of p on both
// axes, if any.
func (ix *airportIndex) nearest(p model.GeoPoint) (locationKey, bool) {
	half := math.Max(ix.tolerance, indexPointSize)
	bounds, err := rtreego.NewRect(rtreego.Point{p.Lat - half, p.Lon - half}, []float64{2 * half, 2 * half})
	if err != nil {
		return locationKey{}, false
	}

	var best *airportItem
	for _, s := range ix.tree.SearchIntersect(bounds) {
		item, ok := s.(*airportItem)
		if !ok || item == nil {
			continue
		}
		if math.Abs(item.key.Lat-p.Lat) > ix.tolerance || math.Abs(item.key.Lon-p.Lon) > ix.tolerance {
			continue
		}
		if best == nil || item.seq < best.seq {
			best = item
		}
	}
	if best == nil {
		return locationKey{}, false
	}
	return best.key, true
}

// resolve returns the canonical key for p, registering p as a new airport
// when nothing lies within tolerance.
func (ix *airportIndex) resolve(p model.GeoPoint) locationKey {
	if key, ok := ix.nearest(p); ok {
		return key
	}
	key := exactKey(p)
	ix.tree.Insert(&airportItem{
		key:  key,
		seq:  ix.tree.Size(),
		rect: rtreego.Point{p.Lat, p.Lon}.ToRect(indexPointSize),
	})
	return key
}

func (ix *airportIndex) size() int {
	return ix.tree.Size()
}
