package jobs

import (
	"sync"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

// Group is a reusable sync point. It is done when every job that was added
// to it with Base.AddDependency has executed.
//
// The zero value is a done group ready to use.
type Group struct {
	mutex   sync.Mutex
	cond    *sync.Cond
	pending int
}

func (g *Group) add() {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	g.pending++
}

func (g *Group) done() {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	g.pending--
	if g.pending < 0 {
		panic(errors.New("sync point signaled more times than it has dependencies"))
	}
	if g.pending == 0 && g.cond != nil {
		g.cond.Broadcast()
	}
}

// Wait blocks until the group is done.
func (g *Group) Wait() {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	for g.pending > 0 {
		if g.cond == nil {
			g.cond = sync.NewCond(&g.mutex)
		}
		g.cond.Wait()
	}
}

// IsDone reports whether all the jobs the group depends on have executed.
func (g *Group) IsDone() bool {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	return g.pending == 0
}

// Pending returns the number of jobs the group is still waiting for.
func (g *Group) Pending() int {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	return g.pending
}
