package crawler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// DefaultCapacity is the number of fetch-performing tasks allowed in flight
// when no capacity is configured.
const DefaultCapacity = 10

// TaskFunc is the body of a governed task. The slot is held while the function
// runs unless the function releases it earlier.
type TaskFunc func(ctx context.Context, slot *Slot) error

// Governor bounds the number of simultaneously running tasks and tracks all
// outstanding work, including tasks scheduled by other tasks.
type Governor struct {
	sem      *semaphore.Weighted
	capacity int64
	pending  sync.WaitGroup
	inFlight atomic.Int64
	peak     atomic.Int64
	metrics  *Metrics
	logger   *zap.Logger
}

// NewGovernor returns a Governor with the given capacity. Values below one
// fall back to DefaultCapacity.
func NewGovernor(capacity int, metrics *Metrics, logger *zap.Logger) *Governor {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Governor{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: int64(capacity),
		metrics:  metrics,
		logger:   logger,
	}
}

// Schedule blocks until a capacity slot is free, then starts fn on a new
// goroutine. It must be called before Wait, or from inside a task that has not
// yet returned. An error is returned only when ctx ends while waiting.
func (g *Governor) Schedule(ctx context.Context, name string, fn TaskFunc) (*Task, error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("schedule %s: %w", name, err)
	}
	g.pending.Add(1)
	g.enter()

	task := &Task{name: name, done: make(chan struct{})}
	slot := &Slot{release: g.release}
	go func() {
		defer g.pending.Done()
		defer close(task.done)
		defer slot.Release()
		task.err = g.run(ctx, name, fn, slot)
	}()
	return task, nil
}

// Wait blocks until every scheduled task, and every task those tasks
// scheduled, has returned.
func (g *Governor) Wait() {
	g.pending.Wait()
}

// InFlight is the number of slots currently held.
func (g *Governor) InFlight() int64 {
	return g.inFlight.Load()
}

// Peak is the highest InFlight value observed.
func (g *Governor) Peak() int64 {
	return g.peak.Load()
}

// Capacity is the configured slot count.
func (g *Governor) Capacity() int64 {
	return g.capacity
}

func (g *Governor) run(ctx context.Context, name string, fn TaskFunc, slot *Slot) (err error) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("task panicked",
				zap.String("task", name),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			err = fmt.Errorf("task %s panicked: %v", name, r)
		}
	}()
	return fn(ctx, slot)
}

func (g *Governor) enter() {
	n := g.inFlight.Add(1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}
	g.metrics.setInFlight(n)
}

func (g *Governor) release() {
	n := g.inFlight.Add(-1)
	g.metrics.setInFlight(n)
	g.sem.Release(1)
}

// Slot is one unit of Governor capacity held by a running task.
type Slot struct {
	once    sync.Once
	release func()
}

// Release returns the slot to the Governor. Calling it more than once is a
// no-op; the Governor also calls it when the task returns.
func (s *Slot) Release() {
	if s == nil {
		return
	}
	s.once.Do(s.release)
}

// Task is a handle on one scheduled unit of work.
type Task struct {
	name string
	done chan struct{}
	err  error
}

// Name identifies the task in logs.
func (t *Task) Name() string {
	return t.name
}

// Wait blocks until the task returns and yields its error.
func (t *Task) Wait() error {
	<-t.done
	return t.err
}

// Done is closed once the task has returned.
func (t *Task) Done() <-chan struct{} {
	return t.done
}
