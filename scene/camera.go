package scene

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/kenaz/culling"
	"github.com/aukilabs/kenaz/geometry"
	"github.com/go-gl/mathgl/mgl32"
)

// Camera is the point of view entities are culled from.
type Camera struct {
	Position  mgl32.Vec3 `json:"position"`
	Direction mgl32.Vec3 `json:"direction"`
	Up        mgl32.Vec3 `json:"up"`

	// Vertical field of view, in degrees.
	FOV    float32 `json:"fov"`
	Aspect float32 `json:"aspect"`
	Near   float32 `json:"near"`
	Far    float32 `json:"far"`

	// The layers visible from the camera.
	LayerMask uint64 `json:"layer_mask"`
}

// DefaultCamera returns a camera at the origin looking down the x axis.
func DefaultCamera() Camera {
	return Camera{
		Direction: mgl32.Vec3{1, 0, 0},
		Up:        mgl32.Vec3{0, 1, 0},
		FOV:       60,
		Aspect:    16.0 / 9.0,
		Near:      0.1,
		Far:       100,
		LayerMask: culling.DefaultLayerMask,
	}
}

// Validate returns an error when the camera can't produce a frustum.
func (c Camera) Validate() error {
	switch {
	case c.Direction.Len() == 0:
		return errors.New("camera direction is a zero vector").
			WithType(ErrTypeInvalidCamera)

	case c.Up.Len() == 0 || c.Up.Cross(c.Direction).Len() == 0:
		return errors.New("camera up vector is zero or parallel to the direction").
			WithType(ErrTypeInvalidCamera).
			WithTag("up", c.Up).
			WithTag("direction", c.Direction)

	case c.FOV <= 0 || c.FOV >= 180:
		return errors.New("camera field of view is out of range").
			WithType(ErrTypeInvalidCamera).
			WithTag("fov", c.FOV)

	case c.Aspect <= 0:
		return errors.New("camera aspect ratio must be positive").
			WithType(ErrTypeInvalidCamera).
			WithTag("aspect", c.Aspect)

	case c.Near <= 0 || c.Far <= c.Near:
		return errors.New("camera clipping distances are invalid").
			WithType(ErrTypeInvalidCamera).
			WithTag("near", c.Near).
			WithTag("far", c.Far)

	default:
		return nil
	}
}

// Frustum returns the camera view frustum.
func (c Camera) Frustum() geometry.Frustum {
	return geometry.ComputeFrustum(
		c.Position,
		c.Direction,
		c.Up,
		c.FOV,
		c.Aspect,
		c.Near,
		c.Far,
	)
}
