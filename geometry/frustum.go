package geometry

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Side identifies one of the six frustum planes.
type Side int

const (
	Near Side = iota
	Far
	Left
	Right
	Top
	Bottom

	sideCount
)

// Frustum is a view volume bounded by six planes whose normals point inside.
type Frustum struct {
	Planes [sideCount]Plane
}

// ComputeFrustum builds the frustum of a perspective camera.
//
// Parameters:
//   - position: the camera position
//   - direction: the view direction, not required to be normalized
//   - up: the camera up vector
//   - fov: the vertical field of view in degrees
//   - ratio: the aspect ratio (width / height)
//   - near, far: distances of the near and far planes along direction
func ComputeFrustum(position, direction, up mgl32.Vec3, fov, ratio, near, far float32) Frustum {
	var f Frustum
	f.Compute(position, direction, up, fov, ratio, near, far)
	return f
}

// Compute recomputes the frustum planes in place. See ComputeFrustum.
func (f *Frustum) Compute(position, direction, up mgl32.Vec3, fov, ratio, near, far float32) {
	tang := float32(math.Tan(float64(DegToRad(fov) * 0.5)))
	nh := near * tang
	nw := nh * ratio

	// z points backward, the camera looks down -z.
	z := Normalized(direction.Mul(-1))
	x := Normalized(up.Cross(z))
	y := z.Cross(x)

	nc := position.Sub(z.Mul(near))
	fc := position.Sub(z.Mul(far))

	f.Planes[Near] = NewPlane(z.Mul(-1), nc)
	f.Planes[Far] = NewPlane(z, fc)

	top := nc.Add(y.Mul(nh))
	f.Planes[Top] = NewPlane(Normalized(top.Sub(position)).Cross(x), top)

	bottom := nc.Sub(y.Mul(nh))
	f.Planes[Bottom] = NewPlane(x.Cross(Normalized(bottom.Sub(position))), bottom)

	left := nc.Sub(x.Mul(nw))
	f.Planes[Left] = NewPlane(Normalized(left.Sub(position)).Cross(y), left)

	right := nc.Add(x.Mul(nw))
	f.Planes[Right] = NewPlane(y.Cross(Normalized(right.Sub(position))), right)
}

// FrustumFromMatrix extracts the frustum planes of a combined
// projection * view matrix (OpenGL clip space, column-major) using the
// Gribb/Hartmann method. Planes are normalized.
func FrustumFromMatrix(viewProj mgl32.Mat4) Frustum {
	r0 := viewProj.Row(0)
	r1 := viewProj.Row(1)
	r2 := viewProj.Row(2)
	r3 := viewProj.Row(3)

	var f Frustum
	f.Planes[Left] = planeFromRow(r3.Add(r0))
	f.Planes[Right] = planeFromRow(r3.Sub(r0))
	f.Planes[Bottom] = planeFromRow(r3.Add(r1))
	f.Planes[Top] = planeFromRow(r3.Sub(r1))
	f.Planes[Near] = planeFromRow(r3.Add(r2))
	f.Planes[Far] = planeFromRow(r3.Sub(r2))
	return f
}

// NewCameraFrustum is ComputeFrustum going through the mgl32 perspective and
// look-at matrices.
func NewCameraFrustum(position, direction, up mgl32.Vec3, fov, ratio, near, far float32) Frustum {
	proj := mgl32.Perspective(DegToRad(fov), ratio, near, far)
	view := mgl32.LookAtV(position, position.Add(direction), up)
	return FrustumFromMatrix(proj.Mul4(view))
}

func planeFromRow(row mgl32.Vec4) Plane {
	return Plane{
		Normal: mgl32.Vec3{row[0], row[1], row[2]},
		D:      row[3],
	}.normalized()
}

// IntersectsSphere reports whether s is inside or intersects the frustum. The
// test is conservative: spheres near the frustum corners may be reported as
// intersecting while being outside.
func (f *Frustum) IntersectsSphere(s Sphere) bool {
	return f.IntersectsPointRadius(s.Center, s.Radius)
}

func (f *Frustum) IntersectsPointRadius(center mgl32.Vec3, radius float32) bool {
	for i := range f.Planes {
		if f.Planes[i].Distance(center) < -radius {
			return false
		}
	}
	return true
}

// ContainsPoint reports whether p is inside the frustum.
func (f *Frustum) ContainsPoint(p mgl32.Vec3) bool {
	return f.IntersectsPointRadius(p, 0)
}
