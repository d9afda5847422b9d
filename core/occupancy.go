package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/signalsfoundry/globe-simulator/model"
)

var (
	// ErrOccupancyUnderflow means a count went negative, which only happens
	// with duplicate departures or airport keys that fail to match.
	ErrOccupancyUnderflow = errors.New("occupancy count went negative")
	// ErrUnknownAirport means a flight references an unregistered airport.
	ErrUnknownAirport = errors.New("airport not registered")
)

// OccupancyKeyMode selects how airport identity is derived from coordinates.
type OccupancyKeyMode int

const (
	// KeyExact groups by bit-identical (lat, lon) pairs.
	KeyExact OccupancyKeyMode = iota
	// KeySnapped merges coordinates within a tolerance onto the first one seen.
	KeySnapped
)

func (m OccupancyKeyMode) String() string {
	if m == KeySnapped {
		return "snapped"
	}
	return "exact"
}

// ParseOccupancyKeyMode accepts "exact" (or empty) and "snapped".
func ParseOccupancyKeyMode(s string) (OccupancyKeyMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "exact":
		return KeyExact, nil
	case "snapped", "snap":
		return KeySnapped, nil
	default:
		return KeyExact, fmt.Errorf("unknown occupancy key mode %q", s)
	}
}

// DefaultSnapToleranceDeg merges airports closer than roughly 100 m.
const DefaultSnapToleranceDeg = 0.001

// AirportCount is the number of planes currently parked at a location.
type AirportCount struct {
	Location model.GeoPoint `json:"location" msgpack:"location"`
	IATA     string         `json:"iata,omitempty" msgpack:"iata,omitempty"`
	Planes   int            `json:"planes" msgpack:"planes"`
}

// Occupancy tracks planes per airport. Counts change only on latch edges.
type Occupancy struct {
	mode  OccupancyKeyMode
	index *airportIndex

	airports map[locationKey]*AirportCount
	order    []locationKey
}

// NewOccupancy returns an empty tracker. toleranceDeg is used only in
// snapped mode.
func NewOccupancy(mode OccupancyKeyMode, toleranceDeg float64) *Occupancy {
	o := &Occupancy{
		mode:     mode,
		airports: make(map[locationKey]*AirportCount),
	}
	if mode == KeySnapped {
		if toleranceDeg <= 0 {
			toleranceDeg = DefaultSnapToleranceDeg
		}
		o.index = newAirportIndex(toleranceDeg)
	}
	return o
}

// Register seeds the tracker from the full flight set: every origin starts
// with one plane per departing flight and every destination is known with
// zero. It binds each flight to its resolved airport keys.
func (o *Occupancy) Register(flights []*Flight) {
	for _, f := range flights {
		f.originKey = o.ensure(f.Record.Origin, f.Record.OriginIATA)
		o.airports[f.originKey].Planes++
		f.destinationKey = o.ensure(f.Record.Destination, f.Record.DestinationIATA)
	}
}

func (o *Occupancy) ensure(p model.GeoPoint, iata string) locationKey {
	key := exactKey(p)
	if o.index != nil {
		key = o.index.resolve(p)
	}
	a, ok := o.airports[key]
	if !ok {
		a = &AirportCount{Location: model.GeoPoint{Lat: key.Lat, Lon: key.Lon}}
		o.airports[key] = a
		o.order = append(o.order, key)
	}
	if a.IATA == "" {
		a.IATA = iata
	}
	return key
}

// Apply adjusts counts for the latch edges of one flight update. A negative
// count is kept and reported with ErrOccupancyUnderflow.
func (o *Occupancy) Apply(f *Flight, ev LatchEvents) error {
	var errs []error
	if ev.Departed {
		a, ok := o.airports[f.originKey]
		switch {
		case !ok:
			errs = append(errs, fmt.Errorf("flight %q origin %v: %w", f.Record.ID, f.Record.Origin, ErrUnknownAirport))
		default:
			a.Planes--
			if a.Planes < 0 {
				errs = append(errs, fmt.Errorf("flight %q origin %v planes=%d: %w", f.Record.ID, a.Location, a.Planes, ErrOccupancyUnderflow))
			}
		}
	}
	if ev.Arrived {
		a, ok := o.airports[f.destinationKey]
		if !ok {
			errs = append(errs, fmt.Errorf("flight %q destination %v: %w", f.Record.ID, f.Record.Destination, ErrUnknownAirport))
		} else {
			a.Planes++
		}
	}
	return errors.Join(errs...)
}

// Lookup returns the counter for p using the tracker's key mode.
func (o *Occupancy) Lookup(p model.GeoPoint) (AirportCount, bool) {
	key := exactKey(p)
	if o.index != nil {
		if k, ok := o.index.nearest(p); ok {
			key = k
		}
	}
	a, ok := o.airports[key]
	if !ok {
		return AirportCount{}, false
	}
	return *a, true
}

// Airports returns a copy of every counter in registration order.
func (o *Occupancy) Airports() []AirportCount {
	out := make([]AirportCount, 0, len(o.order))
	for _, k := range o.order {
		out = append(out, *o.airports[k])
	}
	return out
}

// Len returns the number of known airports.
func (o *Occupancy) Len() int { return len(o.order) }

// Total is the sum of all counts.
func (o *Occupancy) Total() int {
	total := 0
	for _, a := range o.airports {
		total += a.Planes
	}
	return total
}

// Mode reports the key mode.
func (o *Occupancy) Mode() OccupancyKeyMode { return o.mode }
