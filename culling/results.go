package culling

// Subresults are the ascending indices of the volumes that survived a culling
// pass over one contiguous index range.
type Subresults []int

// Results holds one Subresults per worker slot. Slot k covers a lower index
// range than slot k+1, so reading the slots in order gives all the visible
// indices in ascending order.
type Results []Subresults

func newResults(slots int) Results {
	return make(Results, slots)
}

// Count returns the number of visible volumes across all slots.
func (r Results) Count() int {
	var n int
	for _, s := range r {
		n += len(s)
	}
	return n
}

// Flatten appends the indices of all slots to dst, in ascending order.
func (r Results) Flatten(dst []int) []int {
	for _, s := range r {
		dst = append(dst, s...)
	}
	return dst
}

// claim clears the slot and returns it as the single writer destination of a
// pass over capacity volumes.
func (r Results) claim(slot int, capacity int) *Subresults {
	s := &r[slot]
	if cap(*s) < capacity {
		*s = make(Subresults, 0, capacity)
	} else {
		*s = (*s)[:0]
	}
	return s
}

func (r Results) clear() {
	for i := range r {
		r[i] = r[i][:0]
	}
}
