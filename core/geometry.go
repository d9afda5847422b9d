package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Vec3 is a scene-space vector. The globe is the unit sphere centred on the
// origin with +Y through the north pole.
type Vec3 struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
	Z float64 `json:"z" msgpack:"z"`
}

// DistanceTo returns the straight-line distance between two points.
func (v Vec3) DistanceTo(other Vec3) float64 {
	return v.Sub(other).Norm()
}

// Norm returns the Euclidean norm of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Add returns v + other.
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

// Sub returns v - other.
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Scale returns v * s.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// Dot returns the dot product of two vectors.
func (v Vec3) Dot(other Vec3) float64 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// Cross returns v x other.
func (v Vec3) Cross(other Vec3) Vec3 {
	return Vec3{
		X: v.Y*other.Z - v.Z*other.Y,
		Y: v.Z*other.X - v.X*other.Z,
		Z: v.X*other.Y - v.Y*other.X,
	}
}

// Normalize returns the unit vector in the direction of v. The zero vector
// is returned unchanged.
func (v Vec3) Normalize() Vec3 {
	n := v.Norm()
	if n == 0 {
		return v
	}
	return v.Scale(1 / n)
}

// Lerp interpolates linearly from a to b. t is not clamped.
func Lerp(a, b Vec3, t float64) Vec3 {
	return Vec3{
		X: a.X + (b.X-a.X)*t,
		Y: a.Y + (b.Y-a.Y)*t,
		Z: a.Z + (b.Z-a.Z)*t,
	}
}

func (v Vec3) gl() mgl64.Vec3 { return mgl64.Vec3{v.X, v.Y, v.Z} }

func vec3FromGL(v mgl64.Vec3) Vec3 { return Vec3{X: v[0], Y: v[1], Z: v[2]} }

// Mat4 is a 4x4 affine transform stored column-major, the layout GPU
// instance buffers expect. It shares mgl64.Mat4's memory layout.
type Mat4 [16]float64

func (m Mat4) gl() mgl64.Mat4 { return mgl64.Mat4(m) }

// IdentityMat4 returns the identity transform.
func IdentityMat4() Mat4 {
	return Mat4(mgl64.Ident4())
}

// TranslationMat4 returns a pure translation.
func TranslationMat4(p Vec3) Mat4 {
	return Mat4(mgl64.Translate3D(p.X, p.Y, p.Z))
}

// ComposeMat4 builds a transform from an orthonormal basis and a translation.
func ComposeMat4(xAxis, yAxis, zAxis, position Vec3) Mat4 {
	return Mat4(mgl64.Mat4FromCols(
		xAxis.gl().Vec4(0),
		yAxis.gl().Vec4(0),
		zAxis.gl().Vec4(0),
		position.gl().Vec4(1),
	))
}

// Position returns the translation component.
func (m Mat4) Position() Vec3 {
	return vec3FromGL(m.gl().Col(3).Vec3())
}

// TransformPoint applies the full affine transform to p.
func (m Mat4) TransformPoint(p Vec3) Vec3 {
	return vec3FromGL(mgl64.TransformCoordinate(p.gl(), m.gl()))
}

// TransformDirection applies the linear part of m to d and normalizes the
// result.
func (m Mat4) TransformDirection(d Vec3) Vec3 {
	return vec3FromGL(mgl64.TransformNormal(d.gl(), m.gl())).Normalize()
}

// Invert returns the inverse of m. ok is false when m is singular.
func (m Mat4) Invert() (inv Mat4, ok bool) {
	g := m.gl()
	det := g.Det()
	if det == 0 || math.IsNaN(det) {
		return Mat4{}, false
	}
	return Mat4(g.Inv()), true
}

// LookAt returns a transform placed at position whose local +Z axis points
// toward target, using +Y as the up hint. Degenerate inputs are nudged the
// same way scene graphs usually do so the basis stays orthonormal.
func LookAt(position, target Vec3) Mat4 {
	up := Vec3{Y: 1}

	z := target.Sub(position)
	if z.Dot(z) == 0 {
		z.Z = 1
	}
	z = z.Normalize()

	x := up.Cross(z)
	if x.Dot(x) == 0 {
		if math.Abs(up.Z) == 1 {
			z.X += 0.0001
		} else {
			z.Z += 0.0001
		}
		z = z.Normalize()
		x = up.Cross(z)
	}
	x = x.Normalize()
	y := z.Cross(x)

	return ComposeMat4(x, y, z, position)
}

// Ray is a half-line with a unit direction.
type Ray struct {
	Origin    Vec3
	Direction Vec3
}

// NewRay normalizes dir and returns the ray.
func NewRay(origin, dir Vec3) Ray {
	return Ray{Origin: origin, Direction: dir.Normalize()}
}

// At returns the point at parameter t along the ray.
func (r Ray) At(t float64) Vec3 {
	return r.Origin.Add(r.Direction.Scale(t))
}

// Transform moves the ray into the space described by m.
func (r Ray) Transform(m Mat4) Ray {
	return Ray{Origin: m.TransformPoint(r.Origin), Direction: m.TransformDirection(r.Direction)}
}

// IntersectSphere returns the first point where the ray enters the sphere,
// or the exit point when the origin is inside it.
func (r Ray) IntersectSphere(center Vec3, radius float64) (Vec3, bool) {
	toCenter := center.Sub(r.Origin)
	tca := toCenter.Dot(r.Direction)
	d2 := toCenter.Dot(toCenter) - tca*tca
	r2 := radius * radius
	if d2 > r2 {
		return Vec3{}, false
	}

	thc := math.Sqrt(r2 - d2)
	t0 := tca - thc
	t1 := tca + thc
	if t1 < 0 {
		return Vec3{}, false
	}
	if t0 < 0 {
		return r.At(t1), true
	}
	return r.At(t0), true
}
