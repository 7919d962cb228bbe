package scene

// idGenerator hands out sequential ids starting at 1. Released ids are handed
// out again before new ones, most recently released first. It is not safe for
// concurrent use.
type idGenerator struct {
	current  uint32
	released []uint32
}

func (g *idGenerator) New() uint32 {
	if n := len(g.released); n != 0 {
		id := g.released[n-1]
		g.released = g.released[:n-1]
		return id
	}

	g.current++
	return g.current
}

func (g *idGenerator) Reuse(id uint32) {
	g.released = append(g.released, id)
}
