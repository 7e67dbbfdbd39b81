// Package condwait implements an edge-triggered, broadcastable wake
// primitive used to coordinate cancellation between a task group and the
// tasks it owns.
package condwait

import "sync"

// CondWait is a broadcastable one-shot-style condition. Producers call
// Signal to wake a single waiter or Broadcast to wake every waiter
// currently registered. A waiter that registers after Broadcast returns is
// not woken by that broadcast: CondWait models "an event happened", not a
// latch.
//
// The zero value is not usable; construct with New.
type CondWait struct {
	mu      sync.Mutex
	waiters map[uint64]chan struct{}
	nextID  uint64
}

// New returns a ready-to-use CondWait.
func New() *CondWait {
	return &CondWait{waiters: make(map[uint64]chan struct{})}
}

// Wait registers a new waiter and returns its id alongside a channel that
// is closed on the next Signal or Broadcast call. The registration happens
// synchronously, before Wait returns, so a Broadcast that starts after this
// call returned is guaranteed to wake the returned channel — there is no gap
// in which a wakeup can be missed.
//
// A caller that stops waiting for a reason other than being woken (e.g. it
// won a race against the returned channel via some other event) must call
// Cancel(id) to deregister, or the waiter accumulates in this CondWait
// until the next Signal/Broadcast removes it.
func (c *CondWait) Wait() (id uint64, ch <-chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id = c.nextID
	c.nextID++
	wch := make(chan struct{})
	c.waiters[id] = wch
	return id, wch
}

// Cancel deregisters the waiter registered under id, if it is still
// present — i.e. it has not already been woken by Signal or Broadcast. It
// is a no-op otherwise, so it is always safe to call unconditionally once
// a waiter is done with its channel.
func (c *CondWait) Cancel(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.waiters, id)
}

// Signal wakes at most one currently registered waiter. It is a no-op if
// there are none.
func (c *CondWait) Signal() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, ch := range c.waiters {
		delete(c.waiters, id)
		close(ch)
		return
	}
}

// Broadcast wakes every waiter registered at the time of the call. It is a
// no-op if there are none. Waiters that register after Broadcast returns
// are not affected by this call.
func (c *CondWait) Broadcast() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, ch := range c.waiters {
		delete(c.waiters, id)
		close(ch)
	}
}

// NumWaiters reports the number of currently registered waiters. It exists
// for tests and observability; callers should not branch production logic
// on it since it is inherently racy against concurrent Wait/Signal calls.
func (c *CondWait) NumWaiters() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}
