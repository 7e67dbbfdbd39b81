package taskgroup

import "sync"

// Executor schedules a function for execution. It is the seam the spec
// calls "the process-wide executor": TaskGroup uses it to launch the
// goroutine backing every spawned task, and callers may inject their own
// to control scheduling.
type Executor interface {
	// Go schedules fn to run without waiting for fn to finish.
	// SerialExecutor's Go blocks while its action queue is full.
	Go(fn func())
}

// GoroutineExecutor launches one goroutine per scheduled function. Go's
// runtime scheduler already distributes goroutines across GOMAXPROCS, so
// this is the natural translation of the spec's "work-stealing executor"
// option.
type GoroutineExecutor struct{}

// Go implements Executor.
func (GoroutineExecutor) Go(fn func()) { go fn() }

// SerialExecutor runs every scheduled function, one at a time, on a single
// background goroutine. It is grounded on the actionch/loop pattern used by
// the teacher's connection manager (pkg/connmgr.Connmgr): a buffered
// channel of closures drained by one goroutine.
//
// A task's body blocks for its entire lifetime (it races stop_signal
// against the user future), so scheduling TaskGroup tasks themselves onto a
// SerialExecutor would let only one task run at a time and stall every
// other task sharing it — unlike the cooperative single-threaded runtime
// the spec is modelled on, a goroutine here cannot yield mid-block. This
// executor is therefore meant for short, non-blocking callbacks (mirroring
// connmgr's use: map mutations and dial bookkeeping), not as a drop-in
// TaskGroup scheduler; TaskGroup defaults to GoroutineExecutor instead.
type SerialExecutor struct {
	actions chan func()
	once    sync.Once
}

// NewSerialExecutor returns a SerialExecutor with the given queue depth for
// pending actions. Once running, functions are executed strictly in the
// order they were submitted.
func NewSerialExecutor(queueDepth int) *SerialExecutor {
	if queueDepth <= 0 {
		queueDepth = 64
	}
	e := &SerialExecutor{actions: make(chan func(), queueDepth)}
	e.start()
	return e
}

func (e *SerialExecutor) start() {
	e.once.Do(func() {
		go func() {
			for fn := range e.actions {
				fn()
			}
		}()
	})
}

// Go implements Executor. It blocks only if the internal queue is full.
func (e *SerialExecutor) Go(fn func()) {
	e.actions <- fn
}

var (
	globalExecutorOnce sync.Once
	globalExecutor     Executor
)

// globalExecutorInstance returns the process-wide, on-demand-initialized
// executor singleton used by a TaskGroup built without an explicit
// executor. It is never torn down: it owns no resources that require
// release before process exit.
func globalExecutorInstance() Executor {
	globalExecutorOnce.Do(func() {
		globalExecutor = GoroutineExecutor{}
	})
	return globalExecutor
}
