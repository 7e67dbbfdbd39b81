// Package ws is an illustrative WebSocket transport for rpcsrv, grounded
// on the teacher's pkg/services/rpcsrv test suite use of
// github.com/gorilla/websocket (websocket.Dialer, WriteJSON/ReadMessage).
// It is not part of the server core: rpcsrv depends only on the Conn and
// Listener interfaces in pkg/rpcsrv/transport.go.
package ws

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/karyon-go/karyon/pkg/rpcsrv"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Conn wraps one upgraded WebSocket connection.
type Conn struct {
	ws    *websocket.Conn
	mu    sync.Mutex // gorilla requires at most one concurrent writer
	local string
	peer  string
}

// Send implements rpcsrv.Conn.
func (c *Conn) Send(_ context.Context, v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(v)
}

// Recv implements rpcsrv.Conn.
func (c *Conn) Recv(_ context.Context) (json.RawMessage, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

// PeerEndpoint implements rpcsrv.Conn.
func (c *Conn) PeerEndpoint() string { return c.peer }

// LocalEndpoint implements rpcsrv.Conn.
func (c *Conn) LocalEndpoint() string { return c.local }

// Close implements rpcsrv.Conn.
func (c *Conn) Close() error { return c.ws.Close() }

var _ rpcsrv.Conn = (*Conn)(nil)

// ErrListenerClosed is returned by Accept once the Listener has been
// closed.
var ErrListenerClosed = errors.New("ws: listener closed")

// Listener serves one "ws://" or "wss://" endpoint: an http.Server whose
// only handler upgrades every request to a WebSocket and hands the
// resulting Conn to Accept.
type Listener struct {
	addr     string
	ln       net.Listener
	srv      *http.Server
	accepted chan *Conn
	closed   chan struct{}
	once     sync.Once
}

// NewListener builds and starts a Listener for endpoint, e.g.
// "ws://0.0.0.0:1234" or "wss://0.0.0.0:1234". A "wss" endpoint without a
// tlsCfg fails with rpcsrv.ErrTLSConfigRequired; a scheme other than
// ws/wss fails with *rpcsrv.UnsupportedProtocolError — both startup
// errors, matching §6's transport boundary contract.
func NewListener(endpoint string, tlsCfg *tls.Config) (*Listener, error) {
	scheme, addr, ok := splitEndpoint(endpoint)
	if !ok {
		return nil, &rpcsrv.UnsupportedProtocolError{Endpoint: endpoint}
	}
	if scheme == "wss" && tlsCfg == nil {
		return nil, rpcsrv.ErrTLSConfigRequired
	}

	var ln net.Listener
	var err error
	if scheme == "wss" {
		ln, err = tls.Listen("tcp", addr, tlsCfg)
	} else {
		ln, err = net.Listen("tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("ws: listen %s: %w", addr, err)
	}

	l := &Listener{
		addr:     endpoint,
		ln:       ln,
		accepted: make(chan *Conn),
		closed:   make(chan struct{}),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", l.handleUpgrade)
	l.srv = &http.Server{Handler: mux}
	go func() { _ = l.srv.Serve(ln) }()
	return l, nil
}

func splitEndpoint(endpoint string) (scheme, addr string, ok bool) {
	parts := strings.SplitN(endpoint, "://", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	if parts[0] != "ws" && parts[0] != "wss" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func (l *Listener) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn := &Conn{ws: wsConn, local: l.addr, peer: r.RemoteAddr}
	select {
	case l.accepted <- conn:
	case <-l.closed:
		_ = wsConn.Close()
	}
}

// Accept implements rpcsrv.Listener.
func (l *Listener) Accept(ctx context.Context) (rpcsrv.Conn, error) {
	select {
	case c := <-l.accepted:
		return c, nil
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
	l.once.Do(func() {
		close(l.closed)
		_ = l.srv.Close()
	})
	return nil
}

var _ rpcsrv.Listener = (*Listener)(nil)
