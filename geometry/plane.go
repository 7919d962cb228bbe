package geometry

import "github.com/go-gl/mathgl/mgl32"

// Plane represents a plane using the equation: n.p + d = 0. The positive
// half-space (n.p + d > 0) is the one the normal points to.
type Plane struct {
	Normal mgl32.Vec3
	D      float32
}

// NewPlane returns the plane with the given normal that goes through point.
func NewPlane(normal, point mgl32.Vec3) Plane {
	return Plane{
		Normal: normal,
		D:      -normal.Dot(point),
	}
}

// Distance returns the signed distance between p and the plane. It is only an
// euclidean distance when the plane normal is unit length.
func (p Plane) Distance(point mgl32.Vec3) float32 {
	return p.Normal.Dot(point) + p.D
}

func (p Plane) normalized() Plane {
	length := p.Normal.Len()
	if length == 0 {
		return p
	}
	inv := 1 / length
	return Plane{
		Normal: p.Normal.Mul(inv),
		D:      p.D * inv,
	}
}
