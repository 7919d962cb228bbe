package geometry

import "github.com/go-gl/mathgl/mgl32"

// Sphere is a bounding sphere.
type Sphere struct {
	Center mgl32.Vec3
	Radius float32
}

func NewSphere(x, y, z, radius float32) Sphere {
	return Sphere{
		Center: mgl32.Vec3{x, y, z},
		Radius: radius,
	}
}
