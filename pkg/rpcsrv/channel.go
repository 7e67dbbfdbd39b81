package rpcsrv

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/karyon-go/karyon/pkg/jsonrpc"
)

// SubscriptionBufferCapacity is the default size of a connection's
// outbound notification buffer, used by NewChannel and whenever
// NewChannelWithCapacity is given a non-positive capacity.
const SubscriptionBufferCapacity = 100

// Channel is the per-connection subscription registry: it issues
// subscription ids to pub/sub method handlers, retains a back-reference so
// a handler can later publish, and exposes a single bounded outbound
// stream of notifications to the connection's writer task.
type Channel struct {
	mu      sync.Mutex
	subs    map[uint64]struct{}
	nextID  uint64
	out     chan jsonrpc.Notification
	closed  bool
	closeCh chan struct{}
}

// NewChannel returns a Channel with an empty subscription set and a
// bounded outbound buffer of SubscriptionBufferCapacity.
func NewChannel() *Channel {
	return NewChannelWithCapacity(SubscriptionBufferCapacity)
}

// NewChannelWithCapacity is NewChannel with an overridden buffer capacity,
// for deployments that size rpcconfig.Config.SubscriptionBufferCapacity
// differently than the package default.
func NewChannelWithCapacity(capacity int) *Channel {
	if capacity <= 0 {
		capacity = SubscriptionBufferCapacity
	}
	return &Channel{
		subs:    make(map[uint64]struct{}),
		out:     make(chan jsonrpc.Notification, capacity),
		closeCh: make(chan struct{}),
	}
}

// Subscription is a handle returned to a pub/sub method: it lets the
// method publish further values under the subscription id it was given,
// without the method needing to know about the Channel's internals.
type Subscription struct {
	id     uint64
	method string
	ch     *Channel
}

// ID returns the subscription's id, unique within its Channel.
func (s *Subscription) ID() uint64 { return s.id }

// NewSubscription allocates a fresh id, registers it, and returns a handle
// whose Notify enqueues values addressed to it. Ids are monotonic within a
// Channel.
func (c *Channel) NewSubscription(method string) *Subscription {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = struct{}{}
	c.mu.Unlock()

	return &Subscription{id: id, method: method, ch: c}
}

// Remove drops a subscription. Subsequent Notify calls on it are silently
// discarded.
func (c *Channel) Remove(id uint64) {
	c.mu.Lock()
	delete(c.subs, id)
	c.mu.Unlock()
}

// Notify enqueues a notification for this subscription's method and id. If
// the connection's outbound buffer is full, Notify blocks (applying
// backpressure to the calling method) until space frees up, the channel
// closes, or ctx is done — rate-limiting a slow consumer rather than
// dropping messages. Whether the subscription is still registered is
// checked only when Notify is called; removing it does not unblock a
// Notify that is already waiting.
func (s *Subscription) Notify(ctx context.Context, result json.RawMessage) error {
	return s.ch.publish(ctx, s.id, s.method, result)
}

func (c *Channel) publish(ctx context.Context, id uint64, method string, result json.RawMessage) error {
	c.mu.Lock()
	_, subscribed := c.subs[id]
	closed := c.closed
	c.mu.Unlock()

	if closed || !subscribed {
		return nil
	}

	n := jsonrpc.Notification{
		JSONRPC: jsonrpc.Version,
		Method:  method,
		Params:  jsonrpc.NotificationParams{Subscription: id, Result: result},
	}

	select {
	case c.out <- n:
		return nil
	case <-c.closeCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close is idempotent: it drops all subscriptions and releases the
// outbound buffer. Safe to call from either the reader or the writer task
// of a connection, whichever exits first.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.subs = make(map[uint64]struct{})
	c.mu.Unlock()
	close(c.closeCh)
}

// Out returns the channel's outbound notification stream, the same
// channel for its whole lifetime — read directly by the connection's
// writer task as one case of its select.
func (c *Channel) Out() <-chan jsonrpc.Notification {
	return c.out
}

// Done returns the channel's closed signal: it is closed exactly once, by
// Close. A connection's writer task watches it alongside Out() so the
// writer exits as soon as its connection's other half tears down the
// Channel, rather than only on full-server shutdown.
func (c *Channel) Done() <-chan struct{} {
	return c.closeCh
}
