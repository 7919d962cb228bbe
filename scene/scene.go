package scene

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/kenaz/culling"
	"github.com/aukilabs/kenaz/featureflag"
	"github.com/aukilabs/kenaz/geometry"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

const (
	defaultWorldSize          = 100
	defaultTimeStep           = time.Millisecond * 15
	defaultLogSummaryInterval = time.Minute
)

// Entity is a snapshot of a scene entity.
type Entity struct {
	ID        uint32     `json:"id"`
	Position  mgl32.Vec3 `json:"position"`
	Velocity  mgl32.Vec3 `json:"velocity"`
	Radius    float32    `json:"radius"`
	LayerMask uint64     `json:"layer_mask"`
	Enabled   bool       `json:"enabled"`
}

// EntityOptions describes an entity to add to a scene.
type EntityOptions struct {
	Position mgl32.Vec3
	Velocity mgl32.Vec3
	Radius   float32

	// The layers the entity belongs to. Zero means culling.DefaultLayerMask.
	LayerMask uint64

	Disabled bool
}

// Frame is the outcome of a scene step.
type Frame struct {
	Number uint64

	// The ids of the entities visible from the camera, in volume order. The
	// slice is shared between frame handlers and must not be modified.
	Visible []uint32

	// Whether the frame requested an asynchronous culling pass.
	Async bool

	// The number of entities in the scene.
	Entities int

	Duration time.Duration
}

// Stats is a snapshot of the scene state.
type Stats struct {
	UUID          string `json:"uuid"`
	Frame         uint64 `json:"frame"`
	Entities      int    `json:"entities"`
	Visible       int    `json:"visible"`
	Workers       int    `json:"workers"`
	FrameDuration string `json:"frame_duration"`
	Camera        Camera `json:"camera"`
}

// Options configures a scene.
type Options struct {
	// Entities bounce back once they reach a coordinate beyond
	// [-WorldSize, WorldSize].
	WorldSize float32

	// The simulated time between two steps.
	TimeStep time.Duration

	// The interval between each frame summary log.
	LogSummaryInterval time.Duration

	// The seed used to populate the scene. Zero picks a time based seed.
	Seed int64

	FeatureFlags featureflag.FeatureFlag
}

type entity struct {
	handle   culling.Handle
	velocity mgl32.Vec3
}

// Scene is a set of moving entities culled against a camera on each step.
type Scene struct {
	UUID string

	culling            *culling.System
	worldSize          float32
	timeStep           time.Duration
	logSummaryInterval time.Duration
	flags              featureflag.FeatureFlag

	mutex     sync.Mutex
	ids       idGenerator
	entities  map[uint32]*entity
	byIndex   []uint32
	camera    Camera
	frame     uint64
	lastFrame Frame
	rng       *rand.Rand

	frameMutex      sync.RWMutex
	frameHandlerIDs idGenerator
	frameHandlers   map[uint32]func(Frame)
}

// New creates a scene whose entities are registered in the given culling
// system. The scene takes over the system registry and must be the only one
// mutating it.
func New(system *culling.System, opts Options) *Scene {
	if opts.WorldSize <= 0 {
		opts.WorldSize = defaultWorldSize
	}
	if opts.TimeStep <= 0 {
		opts.TimeStep = defaultTimeStep
	}
	if opts.LogSummaryInterval <= 0 {
		opts.LogSummaryInterval = defaultLogSummaryInterval
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}

	system.Clear()

	return &Scene{
		UUID:               uuid.NewString(),
		culling:            system,
		worldSize:          opts.WorldSize,
		timeStep:           opts.TimeStep,
		logSummaryInterval: opts.LogSummaryInterval,
		flags:              opts.FeatureFlags,
		entities:           make(map[uint32]*entity),
		camera:             DefaultCamera(),
		rng:                rand.New(rand.NewSource(opts.Seed)),
		frameHandlers:      make(map[uint32]func(Frame)),
	}
}

// AddEntity adds an entity and returns its id.
func (s *Scene) AddEntity(opts EntityOptions) uint32 {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.addEntity(opts)
}

func (s *Scene) addEntity(opts EntityOptions) uint32 {
	h := s.culling.Add(geometry.Sphere{
		Center: opts.Position,
		Radius: opts.Radius,
	})

	// Errors can't happen with a handle that was just returned.
	if opts.LayerMask != 0 {
		s.culling.SetLayerMask(h, opts.LayerMask)
	}
	if opts.Disabled {
		s.culling.Disable(h)
	}

	id := s.ids.New()
	s.entities[id] = &entity{
		handle:   h,
		velocity: opts.Velocity,
	}
	s.byIndex = append(s.byIndex, id)

	instrumentEntityCount(len(s.entities))
	return id
}

// RemoveEntity removes an entity. Its id may be returned by a later call to
// AddEntity.
func (s *Scene) RemoveEntity(id uint32) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	e, ok := s.entities[id]
	if !ok {
		return entityNotFoundError(id)
	}

	moved, err := s.culling.Remove(e.handle)
	if err != nil {
		return errors.New("removing entity volume failed").
			WithTag("entity_id", id).
			Wrap(err)
	}

	last := len(s.byIndex) - 1
	if moved.IsValid() {
		movedID := s.byIndex[last]
		s.entities[movedID].handle = moved
		s.byIndex[moved.Index()] = movedID
	}
	s.byIndex = s.byIndex[:last]

	delete(s.entities, id)
	s.ids.Reuse(id)

	instrumentEntityCount(len(s.entities))
	return nil
}

// MoveEntity sets the position of an entity.
func (s *Scene) MoveEntity(id uint32, position mgl32.Vec3) error {
	return s.updateEntity(id, func(e *entity) error {
		return s.culling.UpdatePosition(e.handle, position)
	})
}

// SetEntityVelocity sets the velocity of an entity, in units per second.
func (s *Scene) SetEntityVelocity(id uint32, velocity mgl32.Vec3) error {
	return s.updateEntity(id, func(e *entity) error {
		e.velocity = velocity
		return nil
	})
}

// SetEntityRadius sets the bounding sphere radius of an entity.
func (s *Scene) SetEntityRadius(id uint32, radius float32) error {
	return s.updateEntity(id, func(e *entity) error {
		return s.culling.UpdateRadius(e.handle, radius)
	})
}

// SetEntityLayer sets the layers an entity belongs to.
func (s *Scene) SetEntityLayer(id uint32, layerMask uint64) error {
	return s.updateEntity(id, func(e *entity) error {
		return s.culling.SetLayerMask(e.handle, layerMask)
	})
}

// EnableEntity makes an entity eligible for visibility.
func (s *Scene) EnableEntity(id uint32) error {
	return s.updateEntity(id, func(e *entity) error {
		return s.culling.Enable(e.handle)
	})
}

// DisableEntity excludes an entity from visibility.
func (s *Scene) DisableEntity(id uint32) error {
	return s.updateEntity(id, func(e *entity) error {
		return s.culling.Disable(e.handle)
	})
}

func (s *Scene) updateEntity(id uint32, update func(*entity) error) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	e, ok := s.entities[id]
	if !ok {
		return entityNotFoundError(id)
	}

	if err := update(e); err != nil {
		return errors.New("updating entity failed").
			WithTag("entity_id", id).
			Wrap(err)
	}
	return nil
}

// Entity returns a snapshot of an entity.
func (s *Scene) Entity(id uint32) (Entity, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	e, ok := s.entities[id]
	if !ok {
		return Entity{}, false
	}
	return s.snapshot(id, e), true
}

// Entities returns a snapshot of all the entities, sorted by id.
func (s *Scene) Entities() []Entity {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	entities := make([]Entity, 0, len(s.entities))
	for id, e := range s.entities {
		entities = append(entities, s.snapshot(id, e))
	}

	sort.Slice(entities, func(i, j int) bool {
		return entities[i].ID < entities[j].ID
	})
	return entities
}

func (s *Scene) snapshot(id uint32, e *entity) Entity {
	sphere, _ := s.culling.Sphere(e.handle)
	mask, _ := s.culling.LayerMask(e.handle)
	enabled, _ := s.culling.IsEnabled(e.handle)

	return Entity{
		ID:        id,
		Position:  sphere.Center,
		Velocity:  e.velocity,
		Radius:    sphere.Radius,
		LayerMask: mask,
		Enabled:   enabled,
	}
}

// EntityCount returns the number of entities.
func (s *Scene) EntityCount() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return len(s.entities)
}

// Populate adds count entities with random positions, radiuses and velocities
// within the scene world and returns their ids.
func (s *Scene) Populate(count int) []uint32 {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	ids := make([]uint32, 0, count)
	speed := s.worldSize / 10

	for i := 0; i < count; i++ {
		ids = append(ids, s.addEntity(EntityOptions{
			Position: s.randomVec3(s.worldSize),
			Velocity: s.randomVec3(speed),
			Radius:   0.5 + s.rng.Float32()*2,
		}))
	}

	logs.WithTag("scene_uuid", s.UUID).
		WithTag("count", count).
		WithTag("entities", len(s.entities)).
		Info("scene populated")
	return ids
}

func (s *Scene) randomVec3(extent float32) mgl32.Vec3 {
	return mgl32.Vec3{
		(s.rng.Float32()*2 - 1) * extent,
		(s.rng.Float32()*2 - 1) * extent,
		(s.rng.Float32()*2 - 1) * extent,
	}
}

// SetCamera sets the camera entities are culled from on the next steps.
func (s *Scene) SetCamera(c Camera) error {
	if err := c.Validate(); err != nil {
		return err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.camera = c
	return nil
}

// Camera returns the current camera.
func (s *Scene) Camera() Camera {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.camera
}

// Step moves the entities by one time step, culls them against the camera and
// dispatches the resulting frame to the frame handlers.
func (s *Scene) Step() Frame {
	start := time.Now()

	s.mutex.Lock()
	s.flags.IfNotSet(featureflag.FlagDisableEntityMotion, func() {
		s.integrate(s.timeStep.Seconds())
	})

	frustum := s.camera.Frustum()
	async := !s.flags.IsSet(featureflag.FlagDisableAsyncCulling)
	if async {
		s.culling.CullAsync(frustum, s.camera.LayerMask)
	} else {
		s.culling.Cull(frustum, s.camera.LayerMask)
	}

	results := s.culling.Results()
	visible := make([]uint32, 0, results.Count())
	for _, subresults := range results {
		for _, i := range subresults {
			visible = append(visible, s.byIndex[i])
		}
	}

	s.frame++
	frame := Frame{
		Number:   s.frame,
		Visible:  visible,
		Async:    async,
		Entities: len(s.entities),
		Duration: time.Since(start),
	}
	s.lastFrame = frame
	s.mutex.Unlock()

	instrumentFrame(start, len(visible))
	logs.WithTag("scene_uuid", s.UUID).
		WithTag("frame", frame.Number).
		WithTag("visible", len(visible)).
		WithTag("duration", frame.Duration).
		Debug("frame stepped")

	s.dispatchFrame(frame)
	return frame
}

func (s *Scene) integrate(seconds float64) {
	spheres := s.culling.Spheres()
	dt := float32(seconds)

	for i, id := range s.byIndex {
		e := s.entities[id]
		if e.velocity == (mgl32.Vec3{}) {
			continue
		}

		position := spheres[i].Center.Add(e.velocity.Mul(dt))
		for axis := range position {
			switch {
			case position[axis] > s.worldSize:
				position[axis] = s.worldSize
				e.velocity[axis] = -e.velocity[axis]

			case position[axis] < -s.worldSize:
				position[axis] = -s.worldSize
				e.velocity[axis] = -e.velocity[axis]
			}
		}

		if err := s.culling.UpdatePosition(e.handle, position); err != nil {
			logs.WithTag("scene_uuid", s.UUID).
				WithTag("entity_id", id).
				Error(errors.New("moving entity failed").Wrap(err))
		}
	}
}

// HandleFrame registers a handler called with each frame. Handlers are called
// on the stepping goroutine and must not block.
func (s *Scene) HandleFrame(h func(Frame)) (cancel func()) {
	s.frameMutex.Lock()
	defer s.frameMutex.Unlock()

	id := s.frameHandlerIDs.New()
	s.frameHandlers[id] = h

	return func() {
		s.frameMutex.Lock()
		defer s.frameMutex.Unlock()

		if _, ok := s.frameHandlers[id]; !ok {
			return
		}
		delete(s.frameHandlers, id)
		s.frameHandlerIDs.Reuse(id)
	}
}

func (s *Scene) dispatchFrame(f Frame) {
	s.frameMutex.RLock()
	defer s.frameMutex.RUnlock()

	for _, h := range s.frameHandlers {
		h(f)
	}
}

// Run steps the scene every frame duration until the context is canceled.
func (s *Scene) Run(ctx context.Context, frameDuration time.Duration) error {
	if frameDuration <= 0 {
		return errors.New("frame duration must be positive").
			WithTag("frame_duration", frameDuration)
	}

	frameTicker := time.NewTicker(frameDuration)
	defer frameTicker.Stop()

	summaryTicker := time.NewTicker(s.logSummaryInterval)
	defer summaryTicker.Stop()

	logs.WithTag("scene_uuid", s.UUID).
		WithTag("frame_duration", frameDuration).
		Info("starting scene loop")

	var summary frameSummary
	for {
		select {
		case <-ctx.Done():
			s.logSummary(&summary)
			logs.WithTag("scene_uuid", s.UUID).
				WithTag("frame", s.Stats().Frame).
				Info("stopping scene loop")
			return nil

		case <-frameTicker.C:
			summary.add(s.Step())

		case <-summaryTicker.C:
			s.logSummary(&summary)
		}
	}
}

type frameSummary struct {
	frames   int
	visible  int
	duration time.Duration
	maxFrame time.Duration
}

func (s *frameSummary) add(f Frame) {
	s.frames++
	s.visible += len(f.Visible)
	s.duration += f.Duration
	if f.Duration > s.maxFrame {
		s.maxFrame = f.Duration
	}
}

func (s *Scene) logSummary(summary *frameSummary) {
	if summary.frames == 0 {
		return
	}

	logs.WithTag("scene_uuid", s.UUID).
		WithTag("time_interval", s.logSummaryInterval).
		WithTag("frames", summary.frames).
		WithTag("avg_visible", summary.visible/summary.frames).
		WithTag("avg_frame_duration", summary.duration/time.Duration(summary.frames)).
		WithTag("max_frame_duration", summary.maxFrame).
		Info("frame summary")

	*summary = frameSummary{}
}

// Stats returns a snapshot of the scene state.
func (s *Scene) Stats() Stats {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return Stats{
		UUID:          s.UUID,
		Frame:         s.frame,
		Entities:      len(s.entities),
		Visible:       len(s.lastFrame.Visible),
		Workers:       s.culling.WorkerCount(),
		FrameDuration: s.lastFrame.Duration.String(),
		Camera:        s.camera,
	}
}
