// Package rpcsrv implements the JSON-RPC 2.0 server core: an accept loop,
// per-connection reader/writer tasks, and a request-handler state machine,
// all built as tasks spawned into a single taskgroup.Group so that
// shutdown is a single Group.Cancel call away.
package rpcsrv

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/karyon-go/karyon/pkg/jsonrpc"
	"github.com/karyon-go/karyon/pkg/metrics"
	"github.com/karyon-go/karyon/pkg/rpcconfig"
	"github.com/karyon-go/karyon/pkg/taskgroup"
	"go.uber.org/zap"
)

// metricsSampleInterval is how often the accept loop's task group reports
// its size to the karyon_tasks_in_flight gauge.
const metricsSampleInterval = 5 * time.Second

// Server accepts connections on a Listener and dispatches requests across
// a Registry. All of its tasks — the accept loop and every per-connection
// reader/writer/request-handler — share one taskgroup.Group, so Shutdown
// need only cancel that group.
type Server struct {
	log      *zap.Logger
	listener Listener
	registry *Registry
	group    *taskgroup.Group
	cfg      rpcconfig.Config

	// shutdownCtx is cancelled first thing in Shutdown, before the task
	// group's own stop signal is broadcast. A spawned task's own context
	// (passed to its Future by taskgroup.Spawn) is only cancelled once
	// that task's callback has already returned, which is too late to
	// unblock a task that is itself blocked in Listener.Accept or
	// Conn.Recv/Send — so every long-running loop in this package races
	// shutdownCtx directly instead, exactly as the taskgroup contract
	// requires of callers embedding their own cancellation signal.
	shutdownCtx context.Context
	shutdown    context.CancelFunc

	lastAcceptErrLog time.Time
}

// New builds a Server around the given listener, registry, and
// configuration. The registry must already be fully populated: it is
// immutable from this point on.
func New(log *zap.Logger, listener Listener, registry *Registry, cfg rpcconfig.Config) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		log:         log,
		listener:    listener,
		registry:    registry,
		group:       taskgroup.New(),
		cfg:         cfg,
		shutdownCtx: ctx,
		shutdown:    cancel,
	}
}

// Start spawns the accept loop and a metrics sampling loop into the
// server's task group and returns immediately. Both loops run until
// Shutdown; the accept loop logs every Accept error (throttled by
// AcceptErrorLogInterval) and keeps accepting.
func (s *Server) Start() {
	taskgroup.Spawn(s.group,
		func(context.Context) struct{} {
			s.acceptLoop(s.shutdownCtx)
			return struct{}{}
		},
		func(_ context.Context, _ taskgroup.TaskResult[struct{}]) {},
	)

	taskgroup.Spawn(s.group,
		func(context.Context) struct{} {
			s.sampleTaskCountLoop(s.shutdownCtx)
			return struct{}{}
		},
		func(_ context.Context, _ taskgroup.TaskResult[struct{}]) {},
	)
}

func (s *Server) sampleTaskCountLoop(ctx context.Context) {
	ticker := time.NewTicker(metricsSampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.SetTasksInFlight(s.group.Len())
		case <-ctx.Done():
			return
		}
	}
}

// Shutdown is infallible and idempotent: it cancels the server's task
// group, which cancels the accept loop and, transitively, every
// per-connection task spawned into the same group. A second call observes
// an already-broadcast stop signal and an already-drained handler list, so
// it returns immediately.
func (s *Server) Shutdown() {
	s.shutdown()
	_ = s.listener.Close()

	ctx := context.Background()
	if s.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
		defer cancel()
	}
	s.group.Cancel(ctx)
}

// LocalEndpoint returns the address the server's listener is bound to.
func (s *Server) LocalEndpoint() string {
	return s.listener.LocalEndpoint()
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.listener.Accept(ctx)
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if s.cfg.AcceptErrorLogInterval <= 0 || time.Since(s.lastAcceptErrLog) >= s.cfg.AcceptErrorLogInterval {
				s.log.Warn("accept failed, continuing", zap.Error(err))
				s.lastAcceptErrLog = time.Now()
			}
			continue
		}
		s.handleConn(conn)
	}
}

// handleConn installs a fresh Channel, ResponseQueue, writer task, and
// reader task for one accepted connection, then returns — all further
// work for this connection happens on its own tasks.
func (s *Server) handleConn(conn Conn) {
	log := s.log.With(
		zap.String("peer", conn.PeerEndpoint()),
		zap.Stringer("conn", uuid.New()),
	)
	ch := NewChannelWithCapacity(s.cfg.SubscriptionBufferCapacity)
	queue := NewResponseQueue[*jsonrpc.Response]()

	taskgroup.Spawn(s.group,
		func(context.Context) error {
			return writerLoop(s.shutdownCtx, log, conn, queue, ch)
		},
		func(_ context.Context, result taskgroup.TaskResult[error]) {
			ch.Close()
			if v, ok := result.Value(); ok && v != nil {
				log.Debug("writer task ended", zap.Error(v))
			}
		},
	)

	taskgroup.Spawn(s.group,
		func(context.Context) error {
			return readerLoop(s.shutdownCtx, log, conn, s.group, s.registry, ch, queue)
		},
		func(_ context.Context, result taskgroup.TaskResult[error]) {
			ch.Close()
			queue.Close()
			_ = conn.Close()
			if v, ok := result.Value(); ok && v != nil {
				if errors.Is(v, io.EOF) {
					log.Warn("connection dropped")
				} else {
					log.Warn("connection dropped", zap.Error(v))
				}
			}
		},
	)
}
