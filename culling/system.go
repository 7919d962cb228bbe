package culling

import (
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/kenaz/geometry"
	"github.com/aukilabs/kenaz/jobs"
)

const (
	// MaxWorkers is the maximum number of jobs a culling pass is split into.
	MaxWorkers = 16

	// DefaultMinEntitiesPerWorker is the default number of volumes per worker
	// under which an asynchronous pass runs synchronously.
	DefaultMinEntitiesPerWorker = 50

	defaultName = "default"
)

// Scheduler is the job scheduler culling passes are dispatched to.
type Scheduler interface {
	// Queues a job for execution on a worker.
	Schedule(jobs.Job)

	// Returns the number of workers executing jobs.
	WorkerCount() int
}

type passState int

const (
	stateIdle passState = iota
	stateSync
	stateAsync
)

// System determines which registered bounding volumes are potentially visible
// from a frustum.
//
// A System, including its embedded Registry, must be used from a single
// goroutine. The registry must not be mutated while an asynchronous pass is
// outstanding, and a new pass must not start before the results of the
// previous asynchronous pass are fetched.
type System struct {
	Registry

	name                 string
	scheduler            Scheduler
	workers              int
	minEntitiesPerWorker int

	results   Results
	pool      *jobPool
	syncPoint jobs.Group
	frustum   geometry.Frustum
	state     passState
	passStart time.Time
}

// Option configures a culling system.
type Option func(*System)

// WithName sets the name used to label the system metrics and logs.
func WithName(name string) Option {
	return func(s *System) {
		s.name = name
	}
}

// WithMinEntitiesPerWorker sets the number of volumes per worker under which
// asynchronous passes run synchronously.
func WithMinEntitiesPerWorker(n int) Option {
	return func(s *System) {
		s.minEntitiesPerWorker = n
	}
}

// New creates a culling system that dispatches asynchronous passes to the
// given scheduler. The scheduler is not owned by the system.
func New(scheduler Scheduler, opts ...Option) (*System, error) {
	if scheduler == nil {
		return nil, errors.New("culling system requires a scheduler").
			WithType(ErrTypeInvalidConfig)
	}

	s := &System{
		name:                 defaultName,
		scheduler:            scheduler,
		workers:              scheduler.WorkerCount(),
		minEntitiesPerWorker: DefaultMinEntitiesPerWorker,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.workers < 1 || s.workers > MaxWorkers {
		return nil, errors.New("scheduler worker count is not supported").
			WithType(ErrTypeInvalidConfig).
			WithTag("system", s.name).
			WithTag("workers", s.workers).
			WithTag("max_workers", MaxWorkers)
	}

	if s.minEntitiesPerWorker < 1 {
		return nil, errors.New("min entities per worker must be positive").
			WithType(ErrTypeInvalidConfig).
			WithTag("system", s.name).
			WithTag("min_entities_per_worker", s.minEntitiesPerWorker)
	}

	s.results = newResults(s.workers)
	s.pool = newJobPool(s.workers)

	logs.WithTag("system", s.name).
		WithTag("workers", s.workers).
		WithTag("min_entities_per_worker", s.minEntitiesPerWorker).
		Info("culling system created")
	return s, nil
}

// Name returns the system name.
func (s *System) Name() string {
	return s.name
}

// WorkerCount returns the number of result slots, which is the number of
// workers of the scheduler.
func (s *System) WorkerCount() int {
	return s.workers
}

// Cull runs a culling pass on the calling goroutine. The visible indices are
// written in the first result slot, the other slots are emptied.
func (s *System) Cull(frustum geometry.Frustum, layerMask uint64) {
	s.ensureNoPassInFlight()

	start := time.Now()
	s.results.clear()

	if n := s.Len(); n != 0 {
		span := indexRange{start: 0, end: n}
		cullRange(&s.Registry, span, &frustum, layerMask, s.results.claim(0, n))
	}

	s.state = stateSync
	instrumentPass(s.name, syncMode, start, s.results.Count(), s.Len())
}

// CullAsync splits a culling pass into one job per worker and schedules the
// jobs. Results must be called to wait for the pass to complete.
//
// When fewer than WorkerCount * MinEntitiesPerWorker volumes are registered,
// the pass runs synchronously as with Cull and no job is scheduled.
func (s *System) CullAsync(frustum geometry.Frustum, layerMask uint64) {
	s.ensureNoPassInFlight()

	count := s.Len()
	if count < s.workers*s.minEntitiesPerWorker {
		instrumentDegradedPass(s.name)
		s.Cull(frustum, layerMask)
		return
	}

	s.passStart = time.Now()
	s.frustum = frustum

	var spans [MaxWorkers]indexRange
	var pending [MaxWorkers]*cullingJob

	ranges := partition(count, s.workers, spans[:0])
	for i, span := range ranges {
		j := s.pool.acquire()
		j.bind(&s.Registry, &s.frustum, layerMask, span, s.results.claim(i, span.len()))
		j.AddDependency(&s.syncPoint)
		pending[i] = j
	}

	s.state = stateAsync
	for _, j := range pending[:len(ranges)] {
		s.scheduler.Schedule(j)
	}
}

// Results returns the result of the latest pass, one slot per worker. It
// blocks until all the jobs of an asynchronous pass are executed.
//
// The returned slots are reused by the next pass.
func (s *System) Results() Results {
	if s.state == stateAsync {
		s.syncPoint.Wait()
		s.state = stateIdle
		instrumentPass(s.name, asyncMode, s.passStart, s.results.Count(), s.Len())
	}
	return s.results
}

// Clear unregisters all the volumes and empties the results.
func (s *System) Clear() {
	s.ensureNoPassInFlight()
	s.Registry.Clear()
	s.results.clear()
}

// Close waits for the outstanding asynchronous pass, if any.
func (s *System) Close() {
	if s.state == stateAsync {
		s.syncPoint.Wait()
		s.state = stateIdle
	}

	logs.WithTag("system", s.name).Info("culling system closed")
}

func (s *System) ensureNoPassInFlight() {
	if s.state != stateAsync {
		return
	}

	if !s.syncPoint.IsDone() {
		panic(errors.New("culling pass started while an asynchronous pass is in flight").
			WithTag("system", s.name).
			WithTag("pending_jobs", s.syncPoint.Pending()))
	}
	s.Results()
}
