package culling

import (
	"github.com/aukilabs/kenaz/geometry"
	"github.com/go-gl/mathgl/mgl32"
)

// DefaultLayerMask is the layer mask of newly registered volumes.
const DefaultLayerMask uint64 = 1

// Registry stores bounding volumes in parallel arrays indexed by handle.
//
// Registry is not safe for concurrent use. It must not be mutated while an
// asynchronous culling pass reads it.
type Registry struct {
	spheres    []geometry.Sphere
	flags      []bool
	layerMasks []uint64

	// Indexed by slot, never shrinks so that reused slots keep counting.
	generations []uint32
}

// Add registers a sphere, enabled and on the default layer.
func (r *Registry) Add(s geometry.Sphere) Handle {
	i := len(r.spheres)

	r.spheres = append(r.spheres, s)
	r.flags = append(r.flags, true)
	r.layerMasks = append(r.layerMasks, DefaultLayerMask)
	if i == len(r.generations) {
		r.generations = append(r.generations, 1)
	}

	return Handle{
		index:      int32(i),
		generation: r.generations[i],
	}
}

// Insert registers the given spheres and returns their handles in order.
func (r *Registry) Insert(spheres []geometry.Sphere) []Handle {
	handles := make([]Handle, len(spheres))
	for i, s := range spheres {
		handles[i] = r.Add(s)
	}
	return handles
}

// Remove unregisters the volume referred by h.
//
// The last volume is moved into the freed slot. When that happens the moved
// volume's new handle is returned and its previous handle becomes stale.
// Otherwise the returned handle is the zero Handle.
func (r *Registry) Remove(h Handle) (Handle, error) {
	i, err := r.index(h)
	if err != nil {
		return Handle{}, err
	}

	last := len(r.spheres) - 1
	r.generations[i] = nextGeneration(r.generations[i])

	var moved Handle
	if i != last {
		r.spheres[i] = r.spheres[last]
		r.flags[i] = r.flags[last]
		r.layerMasks[i] = r.layerMasks[last]
		r.generations[last] = nextGeneration(r.generations[last])

		moved = Handle{
			index:      int32(i),
			generation: r.generations[i],
		}
	}

	r.spheres = r.spheres[:last]
	r.flags = r.flags[:last]
	r.layerMasks = r.layerMasks[:last]
	return moved, nil
}

func (r *Registry) UpdateRadius(h Handle, radius float32) error {
	i, err := r.index(h)
	if err != nil {
		return err
	}
	r.spheres[i].Radius = radius
	return nil
}

func (r *Registry) UpdatePosition(h Handle, position mgl32.Vec3) error {
	i, err := r.index(h)
	if err != nil {
		return err
	}
	r.spheres[i].Center = position
	return nil
}

func (r *Registry) SetLayerMask(h Handle, mask uint64) error {
	i, err := r.index(h)
	if err != nil {
		return err
	}
	r.layerMasks[i] = mask
	return nil
}

func (r *Registry) LayerMask(h Handle) (uint64, error) {
	i, err := r.index(h)
	if err != nil {
		return 0, err
	}
	return r.layerMasks[i], nil
}

// Enable makes the volume eligible for culling tests.
func (r *Registry) Enable(h Handle) error {
	return r.setFlag(h, true)
}

// Disable excludes the volume from every culling result.
func (r *Registry) Disable(h Handle) error {
	return r.setFlag(h, false)
}

func (r *Registry) IsEnabled(h Handle) (bool, error) {
	i, err := r.index(h)
	if err != nil {
		return false, err
	}
	return r.flags[i], nil
}

func (r *Registry) Sphere(h Handle) (geometry.Sphere, error) {
	i, err := r.index(h)
	if err != nil {
		return geometry.Sphere{}, err
	}
	return r.spheres[i], nil
}

// Len returns the number of registered volumes.
func (r *Registry) Len() int {
	return len(r.spheres)
}

// HandleAt returns the handle of the volume at index i, or the zero Handle
// when i is out of range.
func (r *Registry) HandleAt(i int) Handle {
	if i < 0 || i >= len(r.spheres) {
		return Handle{}
	}
	return Handle{
		index:      int32(i),
		generation: r.generations[i],
	}
}

// Spheres returns the registered spheres, indexed like culling results. The
// returned slice must not be modified.
func (r *Registry) Spheres() []geometry.Sphere {
	return r.spheres
}

// Clear unregisters all the volumes. Every issued handle becomes stale.
func (r *Registry) Clear() {
	for i := range r.spheres {
		r.generations[i] = nextGeneration(r.generations[i])
	}

	r.spheres = r.spheres[:0]
	r.flags = r.flags[:0]
	r.layerMasks = r.layerMasks[:0]
}

func (r *Registry) setFlag(h Handle, v bool) error {
	i, err := r.index(h)
	if err != nil {
		return err
	}
	r.flags[i] = v
	return nil
}

func (r *Registry) index(h Handle) (int, error) {
	i := int(h.index)
	if h.generation == 0 ||
		i < 0 ||
		i >= len(r.spheres) ||
		r.generations[i] != h.generation {
		return 0, staleHandleError(h, len(r.spheres))
	}
	return i, nil
}
