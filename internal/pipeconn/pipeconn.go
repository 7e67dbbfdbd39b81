// Package pipeconn is an in-memory Listener/Conn pair over net.Pipe,
// grounded on the teacher's use of net.Pipe in pkg/network/tcp_peer_test.go
// to exercise peer handling without a real socket. It exists for rpcsrv's
// own tests; it is not a production transport.
package pipeconn

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"

	"github.com/karyon-go/karyon/pkg/rpcsrv"
)

// Conn wraps one end of a net.Pipe, encoding/decoding JSON values directly
// over it.
type Conn struct {
	nc    net.Conn
	enc   *json.Encoder
	dec   *json.Decoder
	local string
	peer  string
}

func wrap(nc net.Conn, local, peer string) *Conn {
	return &Conn{nc: nc, enc: json.NewEncoder(nc), dec: json.NewDecoder(nc), local: local, peer: peer}
}

// Send encodes v as JSON onto the pipe.
func (c *Conn) Send(_ context.Context, v any) error {
	return c.enc.Encode(v)
}

// Recv decodes the next JSON value's raw bytes off the pipe.
func (c *Conn) Recv(_ context.Context) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.dec.Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// PeerEndpoint returns the label assigned to the remote side.
func (c *Conn) PeerEndpoint() string { return c.peer }

// LocalEndpoint returns the label assigned to this side.
func (c *Conn) LocalEndpoint() string { return c.local }

// Close closes the underlying pipe end.
func (c *Conn) Close() error { return c.nc.Close() }

var _ rpcsrv.Conn = (*Conn)(nil)

// ErrListenerClosed is returned by Dial and Accept once the Listener has
// been closed.
var ErrListenerClosed = errors.New("pipeconn: listener closed")

// Listener hands out in-memory connected pairs: Dial creates one and
// queues its server side for Accept to pick up, mimicking a real
// listener's accept queue without a socket.
type Listener struct {
	addr    string
	pending chan net.Conn
	closed  chan struct{}
	once    sync.Once
}

// NewListener returns a Listener reporting addr as its local endpoint.
func NewListener(addr string) *Listener {
	return &Listener{addr: addr, pending: make(chan net.Conn), closed: make(chan struct{})}
}

// Dial creates a fresh net.Pipe, queues its server side on the listener,
// and returns the client side to the caller.
func (l *Listener) Dial() (*Conn, error) {
	server, client := net.Pipe()
	select {
	case l.pending <- server:
		return wrap(client, "pipe-client", l.addr), nil
	case <-l.closed:
		return nil, ErrListenerClosed
	}
}

// Accept implements rpcsrv.Listener.
func (l *Listener) Accept(ctx context.Context) (rpcsrv.Conn, error) {
	select {
	case nc := <-l.pending:
		return wrap(nc, l.addr, "pipe-peer"), nil
	case <-l.closed:
		return nil, ErrListenerClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// LocalEndpoint implements rpcsrv.Listener.
func (l *Listener) LocalEndpoint() string { return l.addr }

// Close implements rpcsrv.Listener. Idempotent.
func (l *Listener) Close() error {
	l.once.Do(func() { close(l.closed) })
	return nil
}

var _ rpcsrv.Listener = (*Listener)(nil)
