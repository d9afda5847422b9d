package core

import (
	"fmt"
	"strings"

	"github.com/skypies/geo"

	"github.com/signalsfoundry/globe-simulator/model"
)

// DefaultFlightDuration is the placeholder duration, in simulated seconds,
// given to every flight under the fixed policy.
const DefaultFlightDuration = 10000.0

// DurationPolicy decides how long a flight takes.
type DurationPolicy interface {
	Duration(origin, destination model.GeoPoint) float64
}

// FixedDuration gives every flight the same duration.
type FixedDuration float64

// Duration implements DurationPolicy.
func (d FixedDuration) Duration(model.GeoPoint, model.GeoPoint) float64 {
	return float64(d)
}

// DistanceDuration derives duration from the great-circle distance at a
// constant cruise speed, with a floor so very short hops stay visible.
type DistanceDuration struct {
	CruiseKmh  float64
	MinSeconds float64
}

// DefaultDistanceDuration models an airliner cruising at 850 km/h with a
// half-hour minimum.
var DefaultDistanceDuration = DistanceDuration{CruiseKmh: 850, MinSeconds: 1800}

// Duration implements DurationPolicy.
func (d DistanceDuration) Duration(origin, destination model.GeoPoint) float64 {
	km := geo.Latlong{Lat: origin.Lat, Long: origin.Lon}.DistKM(geo.Latlong{Lat: destination.Lat, Long: destination.Lon})
	secs := 0.0
	if d.CruiseKmh > 0 {
		secs = km / d.CruiseKmh * 3600
	}
	if secs < d.MinSeconds {
		secs = d.MinSeconds
	}
	return secs
}

// ParseDurationPolicy accepts "fixed", "fixed:<seconds>" and "distance".
func ParseDurationPolicy(s string) (DurationPolicy, error) {
	name, arg, _ := strings.Cut(strings.ToLower(strings.TrimSpace(s)), ":")
	switch name {
	case "", "fixed":
		if arg == "" {
			return FixedDuration(DefaultFlightDuration), nil
		}
		var secs float64
		if _, err := fmt.Sscanf(arg, "%g", &secs); err != nil || secs <= 0 {
			return nil, fmt.Errorf("fixed duration %q: %w", arg, ErrInvalidDuration)
		}
		return FixedDuration(secs), nil
	case "distance":
		return DefaultDistanceDuration, nil
	default:
		return nil, fmt.Errorf("unknown duration policy %q", s)
	}
}
