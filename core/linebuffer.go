package core

import (
	"errors"
	"fmt"
)

// floatsPerSegment is two endpoints of three coordinates each.
const floatsPerSegment = 6

// ErrSegmentOrder is returned when a segment is appended out of order, twice,
// or past the end of the buffer.
var ErrSegmentOrder = errors.New("segment appended out of order")

// LineBuffer is the vertex buffer of a progressively drawn path. Storage for
// every segment is allocated up front and segments are written exactly once,
// in increasing index order.
type LineBuffer struct {
	positions []float32
	segments  int
	written   int

	dirty   bool
	active  bool
	visible bool
}

// NewLineBuffer allocates a buffer for the given number of segments.
func NewLineBuffer(segments int) *LineBuffer {
	if segments < 0 {
		segments = 0
	}
	return &LineBuffer{
		positions: make([]float32, segments*floatsPerSegment),
		segments:  segments,
		visible:   true,
	}
}

// AppendSegment writes the segment at index. The index must be the next
// unwritten one.
func (b *LineBuffer) AppendSegment(index int, start, end Vec3) error {
	if index != b.written || index >= b.segments {
		return fmt.Errorf("%w: index %d, next %d, capacity %d", ErrSegmentOrder, index, b.written, b.segments)
	}

	off := index * floatsPerSegment
	b.positions[off] = float32(start.X)
	b.positions[off+1] = float32(start.Y)
	b.positions[off+2] = float32(start.Z)
	b.positions[off+3] = float32(end.X)
	b.positions[off+4] = float32(end.Y)
	b.positions[off+5] = float32(end.Z)

	b.written++
	b.dirty = true
	return nil
}

// Activate marks the buffer as part of the scene. It reports true only on the
// first call.
func (b *LineBuffer) Activate() bool {
	if b.active {
		return false
	}
	b.active = true
	return true
}

// Active reports whether the buffer has been activated.
func (b *LineBuffer) Active() bool { return b.active }

// Written returns the number of segments committed so far.
func (b *LineBuffer) Written() int { return b.written }

// Capacity returns the number of segments the buffer can hold.
func (b *LineBuffer) Capacity() int { return b.segments }

// Positions exposes the backing store. Only the first Written()*6 values are
// meaningful; callers must not modify the slice.
func (b *LineBuffer) Positions() []float32 { return b.positions }

// Dirty reports whether segments were appended since the last ConsumeDirty.
func (b *LineBuffer) Dirty() bool { return b.dirty }

// ConsumeDirty returns the dirty flag and clears it. Renderers call this once
// per upload.
func (b *LineBuffer) ConsumeDirty() bool {
	d := b.dirty
	b.dirty = false
	return d
}

// SetVisible toggles rendering only; it never touches committed segments.
func (b *LineBuffer) SetVisible(v bool) { b.visible = v }

// Visible reports the render toggle.
func (b *LineBuffer) Visible() bool { return b.visible }
