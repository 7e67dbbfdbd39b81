package rpcsrv

import (
	"context"

	"github.com/karyon-go/karyon/pkg/jsonrpc"
	"go.uber.org/zap"
)

// writerLoop multiplexes queue.Out() and ch.Out() onto conn. It does its
// own priority check (a non-blocking response check, then a blocking
// select over responses, notifications, ch.Done() and ctx.Done())
// rather than calling taskgroup.Select2 directly, because this loop must
// also race ctx.Done() and ch.Done() on every iteration, and Select2 only
// takes two arms. The response-before-notification tie-break is preserved
// exactly: a ready response is always sent before a ready notification is
// even considered. It returns on the first send error, on ctx
// cancellation (full-server shutdown), or once ch.Done() fires (this
// connection's other half has torn the Channel down — e.g. the reader
// task hit EOF and called ch.Close()), so a single dropped connection
// does not leave its writer task, and the TaskHandler tracking it, parked
// until the whole server shuts down.
func writerLoop(ctx context.Context, log *zap.Logger, conn Conn, queue *ResponseQueue[*jsonrpc.Response], ch *Channel) error {
	respCh := queue.Out()
	notifCh := ch.Out()
	doneCh := ch.Done()

	for {
		select {
		case resp := <-respCh:
			if err := sendResponse(ctx, log, conn, resp); err != nil {
				return err
			}
			continue
		default:
		}

		select {
		case resp := <-respCh:
			if err := sendResponse(ctx, log, conn, resp); err != nil {
				return err
			}
			continue
		case n := <-notifCh:
			if ce := log.Check(zap.DebugLevel, "outbound notification"); ce != nil {
				ce.Write(zap.String("method", n.Method))
			}
			if err := conn.Send(ctx, n); err != nil {
				log.Debug("failed to write notification", zap.Error(err))
				return err
			}
			continue
		case <-doneCh:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func sendResponse(ctx context.Context, log *zap.Logger, conn Conn, resp *jsonrpc.Response) error {
	if ce := log.Check(zap.DebugLevel, "outbound response"); ce != nil {
		ce.Write(zap.Bool("isError", resp.Error != nil))
	}
	if err := conn.Send(ctx, resp); err != nil {
		log.Debug("failed to write response", zap.Error(err))
		return err
	}
	return nil
}
