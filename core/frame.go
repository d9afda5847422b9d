package core

// LineFrame carries one flight's progressive path. Positions is nil when the
// buffer is unchanged since the previous frame and a full frame was not
// requested.
type LineFrame struct {
	Index     int       `json:"index" msgpack:"index"`
	Segments  int       `json:"segments" msgpack:"segments"`
	Positions []float32 `json:"positions,omitempty" msgpack:"positions,omitempty"`
}

// Frame is everything a renderer needs to draw the current simulation state.
type Frame struct {
	// Generation is the tick count the frame reflects. Pass it back to
	// FrameSince to receive only later changes.
	Generation uint64     `json:"generation" msgpack:"generation"`
	SimTime    float64    `json:"sim_time" msgpack:"sim_time"`
	Profile    string     `json:"profile" msgpack:"profile"`
	Palette    Palette    `json:"palette" msgpack:"palette"`
	Visibility Visibility `json:"visibility" msgpack:"visibility"`

	// Markers is set when any instance changed or a full frame was asked for.
	Markers []Mat4 `json:"markers,omitempty" msgpack:"markers,omitempty"`
	Placed  []bool `json:"placed,omitempty" msgpack:"placed,omitempty"`

	Lines         []LineFrame    `json:"lines" msgpack:"lines"`
	CompletePaths map[int][]Vec3 `json:"complete_paths,omitempty" msgpack:"complete_paths,omitempty"`

	Airports []AirportCount `json:"airports" msgpack:"airports"`
	Sun      Vec3           `json:"sun" msgpack:"sun"`
	Moon     Vec3           `json:"moon" msgpack:"moon"`
}

// Frame snapshots the state written by the last tick. An incremental frame
// clears the dirty flags it reports, so each change is uploaded once to the
// single renderer driving the session. A full frame includes every buffer
// and leaves dirty state alone.
func (s *Simulation) Frame(full bool) Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	if full {
		return s.frameLocked(true, func(*Flight) bool { return true }, true)
	}
	markers := s.markers.ConsumeDirty()
	return s.frameLocked(markers, func(f *Flight) bool { return f.line.ConsumeDirty() }, false)
}

// FrameSince returns the buffers changed by ticks after generation since.
// Dirty flags are not touched, so any number of consumers can each keep
// their own cursor.
func (s *Simulation) FrameSince(since uint64) Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.frameLocked(s.markersGen > since, func(f *Flight) bool { return s.lineGen[f.Index] > since }, false)
}

func (s *Simulation) frameLocked(markers bool, lineChanged func(*Flight) bool, full bool) Frame {
	prof := s.cfg.Profile
	fr := Frame{
		Generation: s.ticks,
		SimTime:    s.simTime,
		Profile:    prof.Name,
		Palette:    prof.Palette,
		Visibility: s.visibilityLocked(),
		Airports:   s.occupancy.Airports(),
		Sun:        s.sun.Position(s.simTime),
		Moon:       s.moon.Position(s.simTime),
	}

	if markers {
		fr.Markers = append([]Mat4(nil), s.markers.Transforms()...)
		fr.Placed = append([]bool(nil), s.markers.placed...)
	}

	for _, f := range s.flights {
		line := f.line
		if !line.Active() {
			continue
		}
		lf := LineFrame{Index: f.Index, Segments: line.Written()}
		if lineChanged(f) {
			lf.Positions = append([]float32(nil), line.Positions()[:line.Written()*floatsPerSegment]...)
		}
		fr.Lines = append(fr.Lines, lf)
	}

	if full && s.completePathsVisible {
		fr.CompletePaths = make(map[int][]Vec3, len(s.flights))
		for _, f := range s.flights {
			fr.CompletePaths[f.Index] = f.path
		}
	}
	return fr
}
