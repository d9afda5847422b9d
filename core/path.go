package core

import (
	"errors"
	"fmt"

	"github.com/signalsfoundry/globe-simulator/model"
)

// DefaultSegments is the path resolution used when none is configured.
const DefaultSegments = 50

// ErrInvalidSegments is returned when a path is requested with fewer than
// one segment.
var ErrInvalidSegments = errors.New("segments must be >= 1")

// Path is an immutable polyline of segments+1 points from origin to
// destination, lying on a sphere just above the globe. Paths may be shared
// between flights, so callers must not modify them.
type Path []Vec3

// Segments returns the number of line segments in the path.
func (p Path) Segments() int {
	if len(p) == 0 {
		return 0
	}
	return len(p) - 1
}

// BuildPath discretizes the arc between origin and destination. Each sample
// is the straight-line interpolant pushed back out to the path radius
// (lerp, then normalize, then scale); it is not a geodesic.
func BuildPath(proj Projection, radius float64, origin, destination model.GeoPoint, segments int) (Path, error) {
	if segments < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSegments, segments)
	}

	start := proj.Project(origin.Lat, origin.Lon, radius)
	end := proj.Project(destination.Lat, destination.Lon, radius)

	path := make(Path, segments+1)
	for i := 0; i <= segments; i++ {
		t := float64(i) / float64(segments)
		path[i] = Lerp(start, end, t).Normalize().Scale(radius)
	}
	return path, nil
}

// PointOnArc returns the position at progress t along the same arc BuildPath
// samples, without going through a precomputed path.
func PointOnArc(proj Projection, radius float64, origin, destination model.GeoPoint, t float64) Vec3 {
	start := proj.Project(origin.Lat, origin.Lon, 1)
	end := proj.Project(destination.Lat, destination.Lon, 1)
	return Lerp(start, end, t).Normalize().Scale(radius)
}
