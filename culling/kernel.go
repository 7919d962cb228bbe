package culling

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/kenaz/geometry"
)

// indexRange is the half-open range of volume indices [start, end).
type indexRange struct {
	start int
	end   int
}

func (r indexRange) len() int {
	return r.end - r.start
}

// partition splits [0, count) into one contiguous range per worker. The last
// worker takes the remainder. Ranges are appended to dst.
func partition(count int, workers int, dst []indexRange) []indexRange {
	if count <= 0 || workers <= 0 {
		return dst
	}

	step := count / workers
	for i := 0; i < workers-1; i++ {
		dst = append(dst, indexRange{
			start: i * step,
			end:   (i + 1) * step,
		})
	}
	return append(dst, indexRange{
		start: (workers - 1) * step,
		end:   count,
	})
}

// cullRange appends to out the indices in span of the enabled volumes whose
// layer mask overlaps layerMask and whose sphere intersects frustum.
//
// out must be empty. cullRange only reads the registry, so it can run
// concurrently on disjoint spans with distinct outputs.
func cullRange(r *Registry, span indexRange, frustum *geometry.Frustum, layerMask uint64, out *Subresults) {
	if len(*out) != 0 {
		panic(errors.New("culling into a non-empty result slot").
			WithTag("start", span.start).
			WithTag("end", span.end).
			WithTag("slot_len", len(*out)))
	}

	spheres := r.spheres[span.start:span.end]
	flags := r.flags[span.start:span.end]
	layerMasks := r.layerMasks[span.start:span.end]

	res := *out
	for i := range spheres {
		if flags[i] &&
			layerMasks[i]&layerMask != 0 &&
			frustum.IntersectsSphere(spheres[i]) {
			res = append(res, span.start+i)
		}
	}
	*out = res
}
