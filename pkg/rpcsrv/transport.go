package rpcsrv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Conn is a single transport connection exchanging JSON-RPC messages. Recv
// yields one message's raw bytes (the server core decodes the envelope
// itself, so it can distinguish a malformed envelope from a transport
// failure); Send takes an already-built value (*jsonrpc.Response or
// jsonrpc.Notification) for the transport to encode. The server core never
// constructs a Conn directly — concrete transports (TCP/TLS/WebSocket/Unix)
// are external collaborators specified only at this interface boundary;
// internal/pipeconn and transport/ws are illustrative implementations, not
// part of the core.
type Conn interface {
	Send(ctx context.Context, v any) error
	Recv(ctx context.Context) (json.RawMessage, error)
	PeerEndpoint() string
	LocalEndpoint() string
	Close() error
}

// Listener accepts Conns. The server's accept loop logs any error Accept
// returns and calls it again unless the server is shutting down, so
// Accept must unblock promptly when ctx is cancelled.
type Listener interface {
	Accept(ctx context.Context) (Conn, error)
	LocalEndpoint() string
	Close() error
}

// ErrTLSConfigRequired is returned by a transport constructor when a TLS
// endpoint is requested without a server TLS configuration.
var ErrTLSConfigRequired = errors.New("TLS configuration required")

// UnsupportedProtocolError is returned by a transport constructor for an
// endpoint scheme it does not recognize.
type UnsupportedProtocolError struct {
	Endpoint string
}

func (e *UnsupportedProtocolError) Error() string {
	return fmt.Sprintf("unsupported protocol: %s", e.Endpoint)
}
