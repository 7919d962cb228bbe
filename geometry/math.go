package geometry

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// DegToRad converts an angle in degrees to radians.
func DegToRad(deg float32) float32 {
	return deg * math.Pi / 180
}

func EqualWithEpsilon(a float32, b float32, epsilon float64) bool {
	return math.Abs((float64)(a-b)) <= epsilon
}

func VecEqualWithEpsilon(a, b mgl32.Vec3, epsilon float64) bool {
	return EqualWithEpsilon(a[0], b[0], epsilon) &&
		EqualWithEpsilon(a[1], b[1], epsilon) &&
		EqualWithEpsilon(a[2], b[2], epsilon)
}

// Normalized returns v scaled to unit length. A zero vector is returned
// unchanged.
func Normalized(v mgl32.Vec3) mgl32.Vec3 {
	length := v.Len()
	if length == 0 {
		return v
	}
	return v.Mul(1 / length)
}
