package culling

import "fmt"

// Handle identifies a volume in a Registry.
//
// A handle is the volume index tagged with the generation of its slot. Removing
// a volume moves the last volume into the freed slot and bumps the generation
// of both slots, which makes every handle to the removed or moved volume stale.
// The zero Handle is never valid.
type Handle struct {
	index      int32
	generation uint32
}

// Index returns the index of the volume in the registry arrays and in culling
// results.
func (h Handle) Index() int {
	return int(h.index)
}

// IsValid reports whether h was issued by a registry. It does not tell whether
// the volume is still registered.
func (h Handle) IsValid() bool {
	return h.generation != 0
}

func (h Handle) String() string {
	return fmt.Sprintf("%d:%d", h.index, h.generation)
}

func nextGeneration(g uint32) uint32 {
	g++
	if g == 0 {
		g = 1
	}
	return g
}
