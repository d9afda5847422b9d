package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownProfile is returned by ProfileByName for unregistered names.
var ErrUnknownProfile = errors.New("unknown profile")

// Palette holds the RGB colours a renderer should use for each layer.
type Palette struct {
	Path       uint32 `json:"path" msgpack:"path"`
	Marker     uint32 `json:"marker" msgpack:"marker"`
	Airport    uint32 `json:"airport" msgpack:"airport"`
	Suspicious uint32 `json:"suspicious" msgpack:"suspicious"`
}

// Profile carries the constants that differ between the globe dashboards.
type Profile struct {
	Name       string
	Projection Projection

	// Altitude is the height of paths and markers above the unit sphere.
	Altitude float64
	// MarkerRadius is the bounding radius of a flight marker.
	MarkerRadius float64
	// AirportRadius is the bounding radius of an airport marker.
	AirportRadius float64
	// LookAhead is the progress offset sampled to orient a marker.
	LookAhead float64
	// ArrivalThreshold is the progress past which a flight counts as arrived.
	ArrivalThreshold float64

	Palette Palette
}

// FlightsProfile is the planet and flights dashboard.
var FlightsProfile = Profile{
	Name:             "flights",
	Projection:       FlightsProjection,
	Altitude:         0.05,
	MarkerRadius:     0.01,
	AirportRadius:    0.01,
	LookAhead:        0.01,
	ArrivalThreshold: 0.99,
	Palette: Palette{
		Path:       0x00ff00,
		Marker:     0xff0000,
		Airport:    0xf7a400,
		Suspicious: 0xff0000,
	},
}

// PacketsProfile is the planet and network packet dashboard. Its texture is
// rotated half a turn relative to the flight globe.
var PacketsProfile = Profile{
	Name:             "packets",
	Projection:       Projection{LonOffsetDeg: -90},
	Altitude:         0.05,
	MarkerRadius:     0.005,
	AirportRadius:    0.005,
	LookAhead:        0.01,
	ArrivalThreshold: 0.99,
	Palette: Palette{
		Path:       0x00ff00,
		Marker:     0x00ff00,
		Airport:    0x4a148c,
		Suspicious: 0xff0000,
	},
}

// ProfileByName looks up a built-in profile.
func ProfileByName(name string) (Profile, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "flights":
		return FlightsProfile, nil
	case "packets":
		return PacketsProfile, nil
	default:
		return Profile{}, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	}
}

// PathRadius is the sphere radius paths and markers are drawn on.
func (p Profile) PathRadius() float64 {
	return 1 + p.Altitude
}
