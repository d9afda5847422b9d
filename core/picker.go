package core

import "math"

// PickTarget is a batch of instances sharing one bounding sphere centred on
// each instance's local origin.
type PickTarget interface {
	Len() int
	// Instance returns the instance transform and whether the instance is
	// currently shown.
	Instance(i int) (Mat4, bool)
	BoundingRadius() float64
}

// Hit is the nearest intersection found by a Picker.
type Hit struct {
	Index    int     `json:"index" msgpack:"index"`
	Point    Vec3    `json:"point" msgpack:"point"`
	Distance float64 `json:"distance" msgpack:"distance"`
}

// Picker intersects rays with instanced markers. Distances outside
// [Near, Far] are ignored.
//
// Every instance is tested in turn with no spatial index, so cost is linear
// in the instance count. That is fine for a few thousand markers.
type Picker struct {
	Near float64
	Far  float64
}

// DefaultPicker matches a perspective camera with 0.1/1000 clip planes.
var DefaultPicker = Picker{Near: 0.1, Far: 1000}

// Pick returns the nearest instance hit by ray, if any.
func (p Picker) Pick(ray Ray, target PickTarget) (Hit, bool) {
	if target == nil || target.Len() == 0 {
		return Hit{}, false
	}
	far := p.Far
	if far <= 0 {
		far = math.Inf(1)
	}

	radius := target.BoundingRadius()
	best := Hit{Index: -1, Distance: math.Inf(1)}
	for i := 0; i < target.Len(); i++ {
		m, shown := target.Instance(i)
		if !shown {
			continue
		}
		inv, ok := m.Invert()
		if !ok {
			continue
		}

		local := ray.Transform(inv)
		localHit, ok := local.IntersectSphere(Vec3{}, radius)
		if !ok {
			continue
		}

		world := m.TransformPoint(localHit)
		dist := ray.Origin.DistanceTo(world)
		if dist < p.Near || dist > far {
			continue
		}
		if dist < best.Distance {
			best = Hit{Index: i, Point: world, Distance: dist}
		}
	}

	if best.Index < 0 {
		return Hit{}, false
	}
	return best, true
}
