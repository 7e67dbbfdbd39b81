// Command nurseryline is a minimal line-broadcast chat server. It
// illustrates the task-group contract from the outside: one task reads
// standard input and broadcasts lines to every subscriber, held by its own
// small task group so it can be cancelled explicitly on shutdown rather
// than only ever waiting on the server's blanket Cancel — the pattern
// described for a protocol-driven consumer built on top of this package.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/karyon-go/karyon/pkg/rpcconfig"
	"github.com/karyon-go/karyon/pkg/rpcsrv"
	"github.com/karyon-go/karyon/pkg/taskgroup"
	"github.com/karyon-go/karyon/transport/ws"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

// chatRoom fans a broadcast line out to every connection currently
// subscribed via chat.listen.
type chatRoom struct {
	mu   sync.Mutex
	subs []*rpcsrv.Subscription
}

func (r *chatRoom) join(sub *rpcsrv.Subscription) {
	r.mu.Lock()
	r.subs = append(r.subs, sub)
	r.mu.Unlock()
}

func (r *chatRoom) broadcast(ctx context.Context, line string) {
	data, err := json.Marshal(line)
	if err != nil {
		return
	}

	r.mu.Lock()
	subs := append([]*rpcsrv.Subscription(nil), r.subs...)
	r.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Notify(ctx, data)
	}
}

type chatService struct {
	room *chatRoom
}

func (chatService) Name() string { return "chat" }

func (s chatService) GetPubSubMethod(name string) (rpcsrv.PubSubMethod, bool) {
	if name != "listen" {
		return nil, false
	}
	return func(_ context.Context, sub *rpcsrv.Subscription, _ string, _ json.RawMessage) (json.RawMessage, error) {
		s.room.join(sub)
		return json.RawMessage(`null`), nil
	}, true
}

func main() {
	app := &cli.App{
		Name:  "nurseryline",
		Usage: "a line-broadcast chat server over chat.listen subscriptions",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "username", Required: true},
			&cli.StringFlag{Name: "listen-endpoint", Value: "ws://127.0.0.1:3000"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	log, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer log.Sync()

	username := c.String("username")
	endpoint := c.String("listen-endpoint")

	listener, err := ws.NewListener(endpoint, nil)
	if err != nil {
		return fmt.Errorf("nurseryline: %w", err)
	}

	room := &chatRoom{}
	registry := rpcsrv.NewRegistry(nil, []rpcsrv.PubSubRPCService{chatService{room: room}})
	srv := rpcsrv.New(log, listener, registry, rpcconfig.Config{})
	srv.Start()
	log.Info("listening", zap.String("endpoint", srv.LocalEndpoint()))

	ctx := newGraceContext()

	inputGroup := taskgroup.New()
	taskgroup.Spawn(inputGroup,
		func(taskCtx context.Context) struct{} {
			readStdinAndBroadcast(taskCtx, username, room)
			return struct{}{}
		},
		func(_ context.Context, _ taskgroup.TaskResult[struct{}]) {},
	)

	<-ctx.Done()
	log.Info("shutting down")
	inputGroup.Cancel(context.Background())
	srv.Shutdown()
	return nil
}

// readStdinAndBroadcast reads lines from standard input and broadcasts
// each, prefixed with username, until ctx is done. The underlying scanner
// goroutine outlives cancellation (reading os.Stdin cannot itself be
// interrupted by a context) but is harmless to leak for process lifetime.
func readStdinAndBroadcast(ctx context.Context, username string, room *chatRoom) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return
			}
			room.broadcast(ctx, fmt.Sprintf("%s: %s", username, line))
		case <-ctx.Done():
			return
		}
	}
}

func newGraceContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		cancel()
	}()
	return ctx
}
