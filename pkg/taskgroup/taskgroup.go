// Package taskgroup implements a structured, cancellation-propagating
// owner of asynchronous work — a "nursery": once cancelled, every task
// spawned under it is notified, awaited, and its completion callback is
// invoked with an explicit Completed(T) or Cancelled outcome.
package taskgroup

import (
	"context"
	"sync"

	"github.com/karyon-go/karyon/pkg/condwait"
)

// Group owns a collection of spawned tasks and a shared stop signal.
// Cancel broadcasts that signal and then drains every handler added before
// Cancel began, awaiting each one's callback in turn.
//
// A Group has no terminal state: Spawn may be called during or after a
// Cancel in progress. This implementation's policy for that case is
// "tolerate" (see DESIGN.md's Open Question decision) — such a spawn is
// either still in the handler list when the drain loop gets to it (and is
// then woken by the drain loop's broadcast and awaited like any other), or
// it is added after the drain loop has already observed an empty list, in
// which case the Cancel in progress returns without awaiting it. The
// latter task registered its stop-signal waiter after every broadcast of
// that Cancel, so it is not woken by it: it runs until its future
// completes on its own, and it stays in the handler list, where only a
// later Cancel call drains it. At-most-once draining is a natural
// consequence of the handler-list mutex below, not special-cased logic.
type Group struct {
	mu         sync.Mutex
	handlers   []handle
	stopSignal *condwait.CondWait
	executor   Executor
}

// Option configures a Group at construction time.
type Option func(*Group)

// WithExecutor injects a custom Executor instead of the process-wide
// default singleton.
func WithExecutor(ex Executor) Option {
	return func(g *Group) { g.executor = ex }
}

// New returns an empty Group. Without WithExecutor, tasks are scheduled on
// the process-wide executor singleton (lazily initialized on first use,
// never torn down).
func New(opts ...Option) *Group {
	g := &Group{stopSignal: condwait.New()}
	for _, opt := range opts {
		opt(g)
	}
	if g.executor == nil {
		g.executor = globalExecutorInstance()
	}
	return g
}

// Spawn is a package-level generic function rather than a method because
// Go methods cannot carry their own type parameters — a Group must hold
// handlers for many different T in one slice, which is exactly what the
// non-generic handle interface is for.
//
// It builds a TaskHandler that immediately begins racing stopSignal against
// fut on the Group's executor, appends the handler to the Group, and
// returns it to the caller (who may use it for its own bookkeeping, e.g.
// the P2P-consumer pattern of holding a handle to cancel explicitly on a
// shutdown path rather than waiting for a blanket Group.Cancel).
func Spawn[T any](g *Group, fut Future[T], cb Callback[T]) *TaskHandler[T] {
	h := newTaskHandler(g.executor, fut, cb, g.stopSignal)

	g.mu.Lock()
	g.handlers = append(g.handlers, h)
	g.mu.Unlock()

	return h
}

// Len reports the number of handlers currently tracked by the group.
func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.handlers)
}

// IsEmpty reports whether the group currently tracks no handlers.
func (g *Group) IsEmpty() bool {
	return g.Len() == 0
}

// StopSignalWaiters reports how many of this group's tasks are still
// registered against its stop signal — i.e. still racing it against their
// future, rather than having already completed and deregistered. It
// exists for tests and observability, per the same caveat as
// condwait.CondWait.NumWaiters: it is racy against concurrently completing
// tasks.
func (g *Group) StopSignalWaiters() int {
	return g.stopSignal.NumWaiters()
}

// Cancel broadcasts the stop signal — every in-flight task loses its race
// and proceeds to its callback with Cancelled (tasks that had already
// completed normally simply finish their callbacks with Completed) — then
// drains the handler list, awaiting each handler's callback in turn. The
// signal is broadcast again before each handler is awaited, so a task
// spawned during the drain (e.g. from another task's callback) is woken
// too rather than awaited forever. Cancel returns once every handler added
// before it began has finished, or, if ctx is done first, once the
// remaining handlers have been removed from the list without waiting for
// their callbacks. It is safe to call twice: the second call broadcasts an
// already-fired signal to no waiters (a no-op) and drains an empty list
// immediately.
func (g *Group) Cancel(ctx context.Context) {
	g.stopSignal.Broadcast()

	for {
		g.mu.Lock()
		if len(g.handlers) == 0 {
			g.mu.Unlock()
			return
		}
		h := g.handlers[len(g.handlers)-1]
		g.handlers = g.handlers[:len(g.handlers)-1]
		g.mu.Unlock()

		g.stopSignal.Broadcast()
		h.awaitCancel(ctx)
	}
}
