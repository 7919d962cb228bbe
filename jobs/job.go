package jobs

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
)

const defaultJobName = "job"

// Job is a unit of work executed once by a Manager worker.
//
// Implementations embed Base, which carries the bookkeeping the Manager needs
// to signal dependent groups and release the job after execution.
type Job interface {
	// Runs the job. Execute is called from a worker goroutine.
	Execute()

	base() *Base
}

// Base is the bookkeeping embedded in every Job.
type Base struct {
	name      string
	dependent *Group
	release   func()
}

// SetName sets the name used to label the job metrics.
func (b *Base) SetName(name string) {
	b.name = name
}

func (b *Base) Name() string {
	if b.name == "" {
		return defaultJobName
	}
	return b.name
}

// AddDependency makes g wait for the job: g is not done until the job is
// executed. A job has at most one dependent group per execution.
func (b *Base) AddDependency(g *Group) {
	if b.dependent != nil {
		panic(errors.New("job already has a dependent group").
			WithTag("job", b.Name()))
	}
	b.dependent = g
	g.add()
}

// SetAutoDestroy registers a function called after each execution, before the
// dependent group is signaled. It is used to give the job back to the pool it
// was allocated from.
func (b *Base) SetAutoDestroy(release func()) {
	b.release = release
}

func (b *Base) base() *Base {
	return b
}

func (b *Base) finish() {
	dependent := b.dependent
	b.dependent = nil

	if b.release != nil {
		b.release()
	}
	if dependent != nil {
		dependent.done()
	}
}

// Func is a Job that runs a function.
type Func struct {
	Base

	f func()
}

// NewFunc returns a job that runs f.
func NewFunc(name string, f func()) *Func {
	j := &Func{f: f}
	j.SetName(name)
	return j
}

func (j *Func) Execute() {
	j.f()
}
