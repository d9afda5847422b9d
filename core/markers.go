package core

import "math"

// MarkerSet holds one transform per flight for a single instanced draw.
// Capacity is fixed at construction and slot i always belongs to the flight
// with Index i.
type MarkerSet struct {
	transforms []Mat4
	placed     []bool
	radius     float64
	writes     uint64

	dirty   bool
	visible bool
}

// NewMarkerSet allocates capacity identity transforms. Slots stay hidden until
// their flight first writes a pose.
func NewMarkerSet(capacity int, radius float64) *MarkerSet {
	s := &MarkerSet{
		transforms: make([]Mat4, capacity),
		placed:     make([]bool, capacity),
		radius:     radius,
		visible:    true,
	}
	for i := range s.transforms {
		s.transforms[i] = IdentityMat4()
	}
	return s
}

// Len returns the fixed capacity.
func (s *MarkerSet) Len() int { return len(s.transforms) }

// BoundingRadius is the radius of every marker's local bounding sphere.
func (s *MarkerSet) BoundingRadius() float64 { return s.radius }

// Instance returns the transform of slot i and whether it has been placed.
func (s *MarkerSet) Instance(i int) (Mat4, bool) {
	if i < 0 || i >= len(s.transforms) {
		return Mat4{}, false
	}
	return s.transforms[i], s.placed[i]
}

// Set writes the transform of slot i and flags the batch for upload.
func (s *MarkerSet) Set(i int, m Mat4) {
	if i < 0 || i >= len(s.transforms) {
		return
	}
	s.transforms[i] = m
	s.placed[i] = true
	s.dirty = true
	s.writes++
}

// Writes counts every Set since construction.
func (s *MarkerSet) Writes() uint64 { return s.writes }

// Transforms exposes the backing array; callers must not modify it.
func (s *MarkerSet) Transforms() []Mat4 { return s.transforms }

// ConsumeDirty returns whether any slot changed since the last call and
// clears the flag.
func (s *MarkerSet) ConsumeDirty() bool {
	d := s.dirty
	s.dirty = false
	return d
}

// SetVisible toggles rendering and picking of the whole set.
func (s *MarkerSet) SetVisible(v bool) { s.visible = v }

// Visible reports the render toggle.
func (s *MarkerSet) Visible() bool { return s.visible }

// Track writes f's pose for simTime and evaluates its latches from the same
// progress value. Pending flights are left alone. A flight first seen after
// its arrival time is frozen at the destination with both latches fired.
func (s *MarkerSet) Track(f *Flight, simTime float64, prof Profile) LatchEvents {
	t := f.Progress(simTime)
	switch {
	case t < 0:
		return LatchEvents{}
	case t <= 1:
		s.Set(f.Index, MarkerPose(prof, f, t))
		return f.latch(t, prof.ArrivalThreshold)
	default:
		if f.departed && f.arrived {
			return LatchEvents{}
		}
		s.Set(f.Index, MarkerPose(prof, f, 1))
		return f.latch(1, prof.ArrivalThreshold)
	}
}

// MarkerPose places a marker at progress t along f's arc, facing the point a
// little further along. The look-ahead sample is clamped to the destination.
func MarkerPose(prof Profile, f *Flight, t float64) Mat4 {
	radius := prof.PathRadius()
	origin, destination := f.Record.Origin, f.Record.Destination

	pos := PointOnArc(prof.Projection, radius, origin, destination, t)
	next := PointOnArc(prof.Projection, radius, origin, destination, math.Min(t+prof.LookAhead, 1))
	return LookAt(pos, next)
}

// StaticMarkers is a fixed set of unrotated markers, used for airports.
type StaticMarkers struct {
	positions []Vec3
	radius    float64
	visible   bool
}

// NewStaticMarkers copies positions into a new set.
func NewStaticMarkers(positions []Vec3, radius float64) *StaticMarkers {
	return &StaticMarkers{
		positions: append([]Vec3(nil), positions...),
		radius:    radius,
		visible:   true,
	}
}

// Len returns the number of markers.
func (s *StaticMarkers) Len() int { return len(s.positions) }

// BoundingRadius is the radius of every marker.
func (s *StaticMarkers) BoundingRadius() float64 { return s.radius }

// Instance returns a translation to marker i.
func (s *StaticMarkers) Instance(i int) (Mat4, bool) {
	if i < 0 || i >= len(s.positions) {
		return Mat4{}, false
	}
	return TranslationMat4(s.positions[i]), true
}

// Position returns the centre of marker i.
func (s *StaticMarkers) Position(i int) Vec3 { return s.positions[i] }

// SetVisible toggles rendering and picking.
func (s *StaticMarkers) SetVisible(v bool) { s.visible = v }

// Visible reports the render toggle.
func (s *StaticMarkers) Visible() bool { return s.visible }
