package core

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/signalsfoundry/globe-simulator/model"
)

// DefaultPathCacheSize bounds the number of distinct routes kept.
const DefaultPathCacheSize = 4096

type routeKey struct {
	origin      model.GeoPoint
	destination model.GeoPoint
	segments    int
}

// PathCache shares precomputed paths between flights on the same route.
// Paths are immutable, so a cached path may back any number of flights.
type PathCache struct {
	proj   Projection
	radius float64
	cache  *lru.Cache[routeKey, Path]
}

// NewPathCache builds a cache for one projection and path radius.
func NewPathCache(proj Projection, radius float64, size int) (*PathCache, error) {
	if size <= 0 {
		size = DefaultPathCacheSize
	}
	c, err := lru.New[routeKey, Path](size)
	if err != nil {
		return nil, fmt.Errorf("path cache: %w", err)
	}
	return &PathCache{proj: proj, radius: radius, cache: c}, nil
}

// Get returns the path for the route, building it on a miss.
func (c *PathCache) Get(origin, destination model.GeoPoint, segments int) (Path, error) {
	key := routeKey{origin: origin, destination: destination, segments: segments}
	if p, ok := c.cache.Get(key); ok {
		return p, nil
	}
	p, err := BuildPath(c.proj, c.radius, origin, destination, segments)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, p)
	return p, nil
}

// Len returns the number of cached routes.
func (c *PathCache) Len() int { return c.cache.Len() }
