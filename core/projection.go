package core

import "math"

// Projection maps geographic coordinates onto the globe. LonOffsetDeg rotates
// the globe about +Y so the texture's prime meridian lines up with the scene
// axes; LatTiltDeg shifts every latitude by a fixed amount. Changing either
// moves every overlay relative to the texture.
type Projection struct {
	LonOffsetDeg float64
	LatTiltDeg   float64
}

// FlightsProjection is the alignment used by the flight globe.
var FlightsProjection = Projection{LonOffsetDeg: 90}

// Project converts (lat, lon) in degrees to a scene position on a sphere of
// the given radius using the flight globe alignment.
func Project(lat, lon, radius float64) Vec3 {
	return FlightsProjection.Project(lat, lon, radius)
}

// Project converts (lat, lon) in degrees to a scene position on a sphere of
// the given radius. Polar angle is measured from +Y, azimuth from +Z toward +X.
func (p Projection) Project(lat, lon, radius float64) Vec3 {
	phi := degToRad(90 - (lat + p.LatTiltDeg))
	theta := degToRad(lon + p.LonOffsetDeg)

	sinPhi := math.Sin(phi)
	return Vec3{
		X: radius * sinPhi * math.Sin(theta),
		Y: radius * math.Cos(phi),
		Z: radius * sinPhi * math.Cos(theta),
	}
}

func degToRad(deg float64) float64 { return deg * math.Pi / 180 }

func radToDeg(rad float64) float64 { return rad * 180 / math.Pi }
