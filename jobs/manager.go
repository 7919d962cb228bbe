package jobs

import (
	"runtime"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/logs"
)

const (
	queueSizePerWorker = 16
)

// Manager executes jobs on a fixed set of worker goroutines.
type Manager struct {
	workers int
	queue   chan Job

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewManager starts a manager with the given number of workers. A
// non-positive number starts one worker per CPU.
func NewManager(workers int) *Manager {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	m := &Manager{
		workers: workers,
		queue:   make(chan Job, workers*queueSizePerWorker),
	}

	m.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go m.work()
	}

	logs.WithTag("workers", workers).Debug("job manager started")
	return m
}

// WorkerCount returns the number of worker goroutines.
func (m *Manager) WorkerCount() int {
	return m.workers
}

// Schedule queues j for execution. It blocks when the queue is full.
// Scheduling on a closed manager panics.
func (m *Manager) Schedule(j Job) {
	instrumentScheduledJob(j.base().Name())
	m.queue <- j
}

// Close stops the workers once the queued jobs are executed.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		close(m.queue)
		m.wg.Wait()
		logs.WithTag("workers", m.workers).Debug("job manager stopped")
	})
}

func (m *Manager) work() {
	defer m.wg.Done()

	for j := range m.queue {
		b := j.base()
		name := b.Name()

		start := time.Now()
		j.Execute()
		instrumentExecutedJob(name, start)

		b.finish()
	}
}
