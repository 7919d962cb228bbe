package culling

import (
	"sync"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/kenaz/geometry"
	"github.com/aukilabs/kenaz/jobs"
)

const jobName = "culling"

// cullingJob runs the culling kernel over one range of a pass.
type cullingJob struct {
	jobs.Base

	volumes   *Registry
	frustum   *geometry.Frustum
	layerMask uint64
	span      indexRange
	out       *Subresults
	executed  bool
}

func (j *cullingJob) bind(volumes *Registry, frustum *geometry.Frustum, layerMask uint64, span indexRange, out *Subresults) {
	j.volumes = volumes
	j.frustum = frustum
	j.layerMask = layerMask
	j.span = span
	j.out = out
	j.executed = false
}

func (j *cullingJob) Execute() {
	if j.executed {
		panic(errors.New("culling job executed twice").
			WithTag("start", j.span.start).
			WithTag("end", j.span.end))
	}

	cullRange(j.volumes, j.span, j.frustum, j.layerMask, j.out)
	j.executed = true
}

// jobPool is a fixed capacity free list of culling jobs. Jobs give themselves
// back to the pool once executed.
type jobPool struct {
	mutex   sync.Mutex
	storage [MaxWorkers]cullingJob
	free    []*cullingJob

	freeStorage [MaxWorkers]*cullingJob
}

func newJobPool(size int) *jobPool {
	p := &jobPool{}
	p.free = p.freeStorage[:0]

	for i := 0; i < size; i++ {
		j := &p.storage[i]
		j.SetName(jobName)
		j.SetAutoDestroy(func() {
			p.release(j)
		})
		p.free = append(p.free, j)
	}
	return p
}

func (p *jobPool) acquire() *cullingJob {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	n := len(p.free)
	if n == 0 {
		panic(errors.New("culling job pool exhausted").
			WithTag("capacity", cap(p.free)))
	}

	j := p.free[n-1]
	p.free = p.free[:n-1]
	return j
}

func (p *jobPool) release(j *cullingJob) {
	j.volumes = nil
	j.frustum = nil
	j.out = nil

	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.free = append(p.free, j)
}

func (p *jobPool) available() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return len(p.free)
}
