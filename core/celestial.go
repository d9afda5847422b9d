package core

import (
	"math"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
)

// BodyModel positions a scene body (light source or satellite) for a
// simulated instant given in seconds since the session epoch.
type BodyModel interface {
	Position(simSeconds float64) Vec3
}

// SunModel places the sun light over the subsolar point of the simulated
// instant so the day/night terminator follows the clock.
type SunModel struct {
	Epoch      time.Time
	Distance   float64
	Projection Projection
}

// Position implements BodyModel.
func (m SunModel) Position(simSeconds float64) Vec3 {
	lat, lon := m.Subsolar(simSeconds)
	return m.Projection.Project(lat, lon, m.Distance)
}

// Subsolar returns the latitude and longitude, in degrees, where the sun is
// overhead at the simulated instant.
func (m SunModel) Subsolar(simSeconds float64) (lat, lon float64) {
	at := m.Epoch.Add(time.Duration(simSeconds * float64(time.Second))).UTC()
	year, month, day := at.Date()
	hour, min, sec := at.Clock()

	jd := satellite.JDay(year, int(month), day, hour, min, sec)
	gmst := satellite.ThetaG_JD(jd)
	ecef := satellite.ECIToECEF(sunDirectionECI(jd), gmst)

	lat = radToDeg(math.Atan2(ecef.Z, math.Hypot(ecef.X, ecef.Y)))
	lon = radToDeg(math.Atan2(ecef.Y, ecef.X))
	return lat, lon
}

// sunDirectionECI is the low-precision solar position from the Astronomical
// Almanac, good to about 0.01 degrees, as a unit vector.
func sunDirectionECI(jd float64) satellite.Vector3 {
	n := jd - 2451545.0
	meanLon := degToRad(math.Mod(280.460+0.9856474*n, 360))
	meanAnomaly := degToRad(math.Mod(357.528+0.9856003*n, 360))
	eclipticLon := meanLon + degToRad(1.915)*math.Sin(meanAnomaly) + degToRad(0.020)*math.Sin(2*meanAnomaly)
	obliquity := degToRad(23.439 - 0.0000004*n)

	return satellite.Vector3{
		X: math.Cos(eclipticLon),
		Y: math.Cos(obliquity) * math.Sin(eclipticLon),
		Z: math.Sin(obliquity) * math.Sin(eclipticLon),
	}
}

// OrbitModel moves a body on a circle in the equatorial plane.
type OrbitModel struct {
	Radius float64
	// AngularRate is in radians per simulated second.
	AngularRate float64
}

// MoonOrbit is the decorative moon of the flight globe.
var MoonOrbit = OrbitModel{Radius: 10, AngularRate: 0.005}

// Position implements BodyModel.
func (m OrbitModel) Position(simSeconds float64) Vec3 {
	a := simSeconds * m.AngularRate
	return Vec3{X: math.Cos(a) * m.Radius, Z: math.Sin(a) * m.Radius}
}
