package taskgroup

import (
	"context"

	"github.com/karyon-go/karyon/pkg/condwait"
)

// Future is a unit of user work producing a T. It receives a context that
// is cancelled once the handler's abort is invoked; long-running futures
// should embed a race against ctx.Done() (or against the stop signal that
// TaskGroup.Spawn already races them against) to avoid leaking.
type Future[T any] func(ctx context.Context) T

// Callback is invoked exactly once with the task's outcome, after its
// future has either completed or lost the race to the group's stop signal.
type Callback[T any] func(ctx context.Context, result TaskResult[T])

// handle is the non-generic capability every TaskHandler[T] exposes to a
// TaskGroup, which must hold handlers for many different T in one slice.
type handle interface {
	awaitCancel(ctx context.Context)
}

// TaskHandler owns one spawned unit of work: a future, its completion
// callback, and the bookkeeping needed to await that callback's return and
// then reclaim the goroutine backing the future.
type TaskHandler[T any] struct {
	done   chan struct{} // closed once, after the callback returns
	abort  context.CancelFunc
	result TaskResult[T] // valid for reads only after done is closed
}

// newTaskHandler builds a TaskHandler and schedules its task body on ex.
// The task races stopSignal against fut, invokes cb with the outcome, then
// closes done. done is a plain channel rather than a condwait.CondWait
// because it is signalled exactly once in the handler's lifetime and must
// be observable by a waiter that registers either before or after that
// single signal — a closed channel is the idiomatic Go primitive for
// precisely that one-shot latch, whereas condwait.CondWait's edge-triggered
// semantics (deliberately, for the reusable multi-waiter stop_signal case)
// would drop the signal for a waiter that registers late.
func newTaskHandler[T any](ex Executor, fut Future[T], cb Callback[T], stopSignal *condwait.CondWait) *TaskHandler[T] {
	taskCtx, abort := context.WithCancel(context.Background())
	h := &TaskHandler[T]{done: make(chan struct{}), abort: abort}

	// Register against the stop signal before the task is scheduled, so a
	// Broadcast issued any time after Spawn returns wakes this task.
	waitID, stopCh := stopSignal.Wait()

	ex.Go(func() {
		defer func() { _ = recover() }() // the task itself must never bring the group down

		futCh := make(chan T, 1)
		go func() {
			defer func() { _ = recover() }()
			futCh <- fut(taskCtx)
		}()

		either := Select2(stopCh, futCh)
		// The future winning the race means this waiter was never woken;
		// deregister it so a group handling many short-lived tasks doesn't
		// accumulate one dangling waiter per completed task.
		stopSignal.Cancel(waitID)

		var result TaskResult[T]
		if either.IsLeft {
			result = Cancelled[T]()
		} else {
			result = Completed(either.Right)
		}

		cb(taskCtx, result)

		h.result = result
		close(h.done)
	})

	return h
}

// awaitCancel suspends until the handler's callback has returned — meaning
// the task either completed its future or lost the race to the stop
// signal — or until ctx is done, whichever comes first, then aborts the underlying task's context to let it reclaim any
// resources it's still holding (e.g. a future that kept running in the
// background after losing the Select2 race).
//
// The handler does not itself broadcast the stop signal: that is the
// group's job. This decouples cancellation initiation from per-task
// bookkeeping.
func (h *TaskHandler[T]) awaitCancel(ctx context.Context) {
	select {
	case <-h.done:
	case <-ctx.Done():
	}
	h.abort()
}

// Result returns the task's outcome. It is only meaningful after the
// handler's callback has run; callers that haven't awaited completion
// should not call it.
func (h *TaskHandler[T]) Result() TaskResult[T] {
	return h.result
}

// Done returns a channel closed once this handler's callback has returned.
func (h *TaskHandler[T]) Done() <-chan struct{} {
	return h.done
}
