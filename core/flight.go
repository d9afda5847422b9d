package core

import (
	"errors"
	"fmt"
	"math"

	"github.com/signalsfoundry/globe-simulator/model"
)

// ErrInvalidDuration is returned when a flight is built with a non-positive
// or non-finite duration.
var ErrInvalidDuration = errors.New("duration must be > 0")

// FlightState is derived from simulated time; flights only move forward
// through it.
type FlightState int

const (
	// FlightPending: simulated time is before departure.
	FlightPending FlightState = iota
	// FlightInFlight: departure <= simulated time <= departure+duration.
	FlightInFlight
	// FlightCompleted: simulated time is past the arrival instant.
	FlightCompleted
)

func (s FlightState) String() string {
	switch s {
	case FlightPending:
		return "pending"
	case FlightInFlight:
		return "in_flight"
	case FlightCompleted:
		return "completed"
	default:
		return fmt.Sprintf("FlightState(%d)", int(s))
	}
}

// LatchEvents reports which one-way latches flipped during a single update.
type LatchEvents struct {
	Departed bool
	Arrived  bool
}

// Any reports whether either latch flipped.
func (e LatchEvents) Any() bool { return e.Departed || e.Arrived }

// Flight is one scheduled trajectory. It is created once at load time and
// mutated only by the simulation tick; once completed it stays frozen with
// its full path drawn.
type Flight struct {
	// Index is the flight's creation order and its marker instance slot.
	Index     int
	Record    model.FlightRecord
	StartTime float64
	Duration  float64

	path Path
	line *LineBuffer

	drawnSegment int
	departed     bool
	arrived      bool

	originKey      locationKey
	destinationKey locationKey
}

// NewFlight validates the record and builds a flight over the given path.
// Start time comes from the record's departure seconds.
func NewFlight(index int, rec model.FlightRecord, duration float64, path Path) (*Flight, error) {
	if err := rec.Origin.Validate(); err != nil {
		return nil, fmt.Errorf("flight %q origin: %w", rec.ID, err)
	}
	if err := rec.Destination.Validate(); err != nil {
		return nil, fmt.Errorf("flight %q destination: %w", rec.ID, err)
	}
	if !(duration > 0) || math.IsInf(duration, 0) {
		return nil, fmt.Errorf("flight %q: %w: got %v", rec.ID, ErrInvalidDuration, duration)
	}
	if path.Segments() < 1 {
		return nil, fmt.Errorf("flight %q: %w", rec.ID, ErrInvalidSegments)
	}

	return &Flight{
		Index:          index,
		Record:         rec,
		StartTime:      rec.DepartureSeconds,
		Duration:       duration,
		path:           path,
		line:           NewLineBuffer(path.Segments()),
		drawnSegment:   -1,
		originKey:      exactKey(rec.Origin),
		destinationKey: exactKey(rec.Destination),
	}, nil
}

// EndTime is the scheduled arrival instant in simulated seconds.
func (f *Flight) EndTime() float64 { return f.StartTime + f.Duration }

// State classifies simTime against the flight's schedule.
func (f *Flight) State(simTime float64) FlightState {
	switch {
	case simTime < f.StartTime:
		return FlightPending
	case simTime <= f.EndTime():
		return FlightInFlight
	default:
		return FlightCompleted
	}
}

// Progress returns the unclamped fraction of the flight elapsed at simTime.
func (f *Flight) Progress(simTime float64) float64 {
	if !(f.Duration > 0) {
		return 0
	}
	return (simTime - f.StartTime) / f.Duration
}

// Update advances the path drawing to simTime and returns the number of
// segments committed. Drawing only ever moves forward: earlier times leave
// committed segments in place.
func (f *Flight) Update(simTime float64) (int, error) {
	state := f.State(simTime)
	if state == FlightPending {
		return 0, nil
	}
	f.line.Activate()

	last := f.path.Segments() - 1
	target := last
	if state == FlightInFlight {
		target = int(math.Floor(f.Progress(simTime) * float64(len(f.path)-1)))
		if target > last {
			target = last
		}
	}
	if target <= f.drawnSegment {
		return 0, nil
	}

	appended := 0
	for i := f.drawnSegment + 1; i <= target; i++ {
		if err := f.line.AppendSegment(i, f.path[i], f.path[i+1]); err != nil {
			return appended, fmt.Errorf("flight %q: %w", f.Record.ID, err)
		}
		f.drawnSegment = i
		appended++
	}
	return appended, nil
}

// latch flips the departure latch on the first in-flight observation and the
// arrival latch once progress passes threshold. Departure always fires first.
func (f *Flight) latch(t, threshold float64) LatchEvents {
	var ev LatchEvents
	// Departure fires at any t, not only near t=0, so a flight first seen
	// mid-route still leaves its origin.
	if !f.departed {
		f.departed = true
		ev.Departed = true
	}
	if t > threshold && !f.arrived {
		f.arrived = true
		ev.Arrived = true
	}
	return ev
}

// DrawnSegmentIndex is the last committed segment, or -1 before any.
func (f *Flight) DrawnSegmentIndex() int { return f.drawnSegment }

// Departed reports the departure latch.
func (f *Flight) Departed() bool { return f.departed }

// Arrived reports the arrival latch.
func (f *Flight) Arrived() bool { return f.arrived }

// Path returns the precomputed polyline.
func (f *Flight) Path() Path { return f.path }

// Line returns the progressive vertex buffer.
func (f *Flight) Line() *LineBuffer { return f.line }
