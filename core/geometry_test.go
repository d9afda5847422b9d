package core

import (
	"math"
	"testing"
)

const eps = 1e-9

func vecNear(a, b Vec3, tol float64) bool {
	return a.DistanceTo(b) <= tol
}

func TestMat4InvertRoundTrip(t *testing.T) {
	m := LookAt(Vec3{X: 1, Y: 2, Z: 3}, Vec3{X: -4, Y: 0.5, Z: 7})
	inv, ok := m.Invert()
	if !ok {
		t.Fatalf("expected invertible transform")
	}

	for _, p := range []Vec3{{}, {X: 1}, {X: 0.3, Y: -2, Z: 5}} {
		back := inv.TransformPoint(m.TransformPoint(p))
		if !vecNear(back, p, 1e-9) {
			t.Errorf("inv(m(%v)) = %v", p, back)
		}
	}
}

func TestMat4InvertSingular(t *testing.T) {
	var zero Mat4
	if _, ok := zero.Invert(); ok {
		t.Fatalf("expected singular matrix to be rejected")
	}
}

func TestLookAt_FacesTarget(t *testing.T) {
	pos := Vec3{X: 1.05}
	target := Vec3{X: 1.05, Z: 0.5}
	m := LookAt(pos, target)

	if got := m.Position(); !vecNear(got, pos, eps) {
		t.Fatalf("Position() = %v, want %v", got, pos)
	}
	forward := m.TransformDirection(Vec3{Z: 1})
	if !vecNear(forward, Vec3{Z: 1}, 1e-9) {
		t.Errorf("local +Z maps to %v, want toward target", forward)
	}

	x := Vec3{X: m[0], Y: m[1], Z: m[2]}
	y := Vec3{X: m[4], Y: m[5], Z: m[6]}
	z := Vec3{X: m[8], Y: m[9], Z: m[10]}
	for _, axis := range []Vec3{x, y, z} {
		if math.Abs(axis.Norm()-1) > 1e-9 {
			t.Errorf("axis %v is not unit length", axis)
		}
	}
	if math.Abs(x.Dot(y))+math.Abs(y.Dot(z))+math.Abs(x.Dot(z)) > 1e-9 {
		t.Errorf("basis is not orthogonal: %v %v %v", x, y, z)
	}
}

func TestLookAt_DegenerateInputs(t *testing.T) {
	// Target straight above: forward is parallel to the up hint.
	m := LookAt(Vec3{}, Vec3{Y: 1})
	if _, ok := m.Invert(); !ok {
		t.Errorf("vertical look direction produced a singular basis")
	}
	// Target equal to position.
	m = LookAt(Vec3{X: 1}, Vec3{X: 1})
	if _, ok := m.Invert(); !ok {
		t.Errorf("coincident target produced a singular basis")
	}
}

func TestRayIntersectSphere(t *testing.T) {
	cases := []struct {
		name   string
		ray    Ray
		want   Vec3
		wantOK bool
	}{
		{"front hit", NewRay(Vec3{Z: 5}, Vec3{Z: -1}), Vec3{Z: 1}, true},
		{"inside returns exit", NewRay(Vec3{}, Vec3{X: 2}), Vec3{X: 1}, true},
		{"behind origin", NewRay(Vec3{Z: 5}, Vec3{Z: 1}), Vec3{}, false},
		{"passes beside", NewRay(Vec3{X: 2, Z: 5}, Vec3{Z: -1}), Vec3{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := tc.ray.IntersectSphere(Vec3{}, 1)
			if ok != tc.wantOK {
				t.Fatalf("hit = %v, want %v", ok, tc.wantOK)
			}
			if ok && !vecNear(got, tc.want, 1e-9) {
				t.Errorf("point = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRayTransformMovesIntoLocalSpace(t *testing.T) {
	m := TranslationMat4(Vec3{X: 3})
	inv, _ := m.Invert()
	local := NewRay(Vec3{X: 3, Z: 5}, Vec3{Z: -2}).Transform(inv)

	if !vecNear(local.Origin, Vec3{Z: 5}, eps) {
		t.Errorf("local origin = %v, want (0,0,5)", local.Origin)
	}
	if !vecNear(local.Direction, Vec3{Z: -1}, eps) {
		t.Errorf("local direction = %v, want unit -Z", local.Direction)
	}
}

func TestComposeMat4ColumnMajor(t *testing.T) {
	m := ComposeMat4(Vec3{X: 1}, Vec3{Y: 1}, Vec3{Z: 1}, Vec3{X: 1, Y: 2, Z: 3})
	if m != TranslationMat4(Vec3{X: 1, Y: 2, Z: 3}) {
		t.Fatalf("compose = %v, want a translation", m)
	}
	if m[12] != 1 || m[13] != 2 || m[14] != 3 || m[15] != 1 {
		t.Fatalf("translation not in the last column: %v", m)
	}
	if got := m.Position(); got != (Vec3{X: 1, Y: 2, Z: 3}) {
		t.Fatalf("Position() = %v", got)
	}
	if got := m.TransformDirection(Vec3{X: 2}); !vecNear(got, Vec3{X: 1}, eps) {
		t.Fatalf("direction picked up translation: %v", got)
	}
}
