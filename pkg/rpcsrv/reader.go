package rpcsrv

import (
	"context"

	"github.com/karyon-go/karyon/pkg/jsonrpc"
	"github.com/karyon-go/karyon/pkg/taskgroup"
	"go.uber.org/zap"
)

// readerLoop decodes inbound messages off conn and spawns one independent
// request-handler task per message into group, so a slow handler never
// blocks the next message from being read or a concurrent handler from
// finishing first. It returns on the first receive error or ctx
// cancellation.
func readerLoop(ctx context.Context, log *zap.Logger, conn Conn, group *taskgroup.Group, registry *Registry, ch *Channel, queue *ResponseQueue[*jsonrpc.Response]) error {
	for {
		raw, err := conn.Recv(ctx)
		if err != nil {
			log.Debug("connection read failed", zap.Error(err))
			return err
		}

		msg := raw
		taskgroup.Spawn(group,
			func(taskCtx context.Context) struct{} {
				handleRequest(taskCtx, log, registry, ch, queue, msg)
				return struct{}{}
			},
			func(_ context.Context, _ taskgroup.TaskResult[struct{}]) {},
		)
	}
}
