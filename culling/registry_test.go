package culling

import (
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/kenaz/geometry"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"
)

func requireRegistryConsistent(t *testing.T, r *Registry) {
	require.Len(t, r.flags, len(r.spheres))
	require.Len(t, r.layerMasks, len(r.spheres))
	require.GreaterOrEqual(t, len(r.generations), len(r.spheres))
}

func TestRegistryAdd(t *testing.T) {
	var r Registry

	h := r.Add(geometry.NewSphere(1, 2, 3, 4))
	require.True(t, h.IsValid())
	require.Equal(t, 0, h.Index())
	require.Equal(t, 1, r.Len())
	requireRegistryConsistent(t, &r)

	mask, err := r.LayerMask(h)
	require.NoError(t, err)
	require.Equal(t, DefaultLayerMask, mask)

	enabled, err := r.IsEnabled(h)
	require.NoError(t, err)
	require.True(t, enabled)

	s, err := r.Sphere(h)
	require.NoError(t, err)
	require.Equal(t, geometry.NewSphere(1, 2, 3, 4), s)
}

func TestRegistryInsert(t *testing.T) {
	var r Registry

	handles := r.Insert([]geometry.Sphere{
		geometry.NewSphere(0, 0, 0, 1),
		geometry.NewSphere(1, 0, 0, 1),
		geometry.NewSphere(2, 0, 0, 1),
	})
	require.Len(t, handles, 3)
	for i, h := range handles {
		require.Equal(t, i, h.Index())
		require.Equal(t, h, r.HandleAt(i))
	}
	require.Len(t, r.Spheres(), 3)
	requireRegistryConsistent(t, &r)
}

func TestRegistryUpdate(t *testing.T) {
	var r Registry
	h := r.Add(geometry.NewSphere(0, 0, 0, 1))

	require.NoError(t, r.UpdatePosition(h, mgl32.Vec3{4, 5, 6}))
	require.NoError(t, r.UpdateRadius(h, 7))
	require.NoError(t, r.SetLayerMask(h, 0b110))
	require.NoError(t, r.Disable(h))

	s, err := r.Sphere(h)
	require.NoError(t, err)
	require.Equal(t, geometry.NewSphere(4, 5, 6, 7), s)

	mask, err := r.LayerMask(h)
	require.NoError(t, err)
	require.Equal(t, uint64(0b110), mask)

	enabled, err := r.IsEnabled(h)
	require.NoError(t, err)
	require.False(t, enabled)

	require.NoError(t, r.Enable(h))
	enabled, err = r.IsEnabled(h)
	require.NoError(t, err)
	require.True(t, enabled)
}

func TestRegistryRemove(t *testing.T) {
	t.Run("remove moves the last volume", func(t *testing.T) {
		var r Registry
		a := r.Add(geometry.NewSphere(0, 0, 0, 1))
		b := r.Add(geometry.NewSphere(1, 0, 0, 1))
		c := r.Add(geometry.NewSphere(2, 0, 0, 1))
		require.NoError(t, r.SetLayerMask(c, 0b100))
		require.NoError(t, r.Disable(c))

		moved, err := r.Remove(a)
		require.NoError(t, err)
		require.Equal(t, 2, r.Len())
		requireRegistryConsistent(t, &r)

		require.True(t, moved.IsValid())
		require.Equal(t, 0, moved.Index())

		s, err := r.Sphere(moved)
		require.NoError(t, err)
		require.Equal(t, geometry.NewSphere(2, 0, 0, 1), s)

		mask, err := r.LayerMask(moved)
		require.NoError(t, err)
		require.Equal(t, uint64(0b100), mask)

		enabled, err := r.IsEnabled(moved)
		require.NoError(t, err)
		require.False(t, enabled)

		_, err = r.Sphere(b)
		require.NoError(t, err)

		_, err = r.Sphere(a)
		require.True(t, errors.IsType(err, ErrTypeStaleHandle))

		_, err = r.Sphere(c)
		require.True(t, errors.IsType(err, ErrTypeStaleHandle))
	})

	t.Run("remove the last volume", func(t *testing.T) {
		var r Registry
		r.Add(geometry.NewSphere(0, 0, 0, 1))
		last := r.Add(geometry.NewSphere(1, 0, 0, 1))

		moved, err := r.Remove(last)
		require.NoError(t, err)
		require.False(t, moved.IsValid())
		require.Equal(t, 1, r.Len())
		requireRegistryConsistent(t, &r)
	})

	t.Run("reused slot does not revive a stale handle", func(t *testing.T) {
		var r Registry
		h := r.Add(geometry.NewSphere(0, 0, 0, 1))

		_, err := r.Remove(h)
		require.NoError(t, err)

		reused := r.Add(geometry.NewSphere(5, 0, 0, 1))
		require.Equal(t, h.Index(), reused.Index())
		require.NotEqual(t, h, reused)

		err = r.UpdateRadius(h, 3)
		require.True(t, errors.IsType(err, ErrTypeStaleHandle))

		_, err = r.Remove(h)
		require.True(t, errors.IsType(err, ErrTypeStaleHandle))
	})
}

func TestRegistryStaleHandle(t *testing.T) {
	var r Registry
	r.Add(geometry.NewSphere(0, 0, 0, 1))

	handles := []Handle{
		{},
		{index: 1, generation: 1},
		{index: -1, generation: 1},
		{index: 0, generation: 42},
	}

	for _, h := range handles {
		t.Run(h.String(), func(t *testing.T) {
			require.True(t, errors.IsType(r.Enable(h), ErrTypeStaleHandle))
			require.True(t, errors.IsType(r.Disable(h), ErrTypeStaleHandle))
			require.True(t, errors.IsType(r.SetLayerMask(h, 1), ErrTypeStaleHandle))
			require.True(t, errors.IsType(r.UpdateRadius(h, 1), ErrTypeStaleHandle))
			require.True(t, errors.IsType(r.UpdatePosition(h, mgl32.Vec3{}), ErrTypeStaleHandle))

			_, err := r.LayerMask(h)
			require.True(t, errors.IsType(err, ErrTypeStaleHandle))
		})
	}
}

func TestRegistryClear(t *testing.T) {
	var r Registry
	handles := r.Insert([]geometry.Sphere{
		geometry.NewSphere(0, 0, 0, 1),
		geometry.NewSphere(1, 0, 0, 1),
	})

	r.Clear()
	require.Zero(t, r.Len())
	requireRegistryConsistent(t, &r)

	for _, h := range handles {
		_, err := r.Sphere(h)
		require.True(t, errors.IsType(err, ErrTypeStaleHandle))
	}

	h := r.Add(geometry.NewSphere(0, 0, 0, 1))
	require.NotEqual(t, handles[0], h)
}

func TestRegistryHandleAt(t *testing.T) {
	var r Registry
	h := r.Add(geometry.NewSphere(0, 0, 0, 1))

	require.Equal(t, h, r.HandleAt(0))
	require.False(t, r.HandleAt(1).IsValid())
	require.False(t, r.HandleAt(-1).IsValid())
}

func TestNextGeneration(t *testing.T) {
	require.Equal(t, uint32(2), nextGeneration(1))
	require.Equal(t, uint32(1), nextGeneration(^uint32(0)))
}
