package main

import (
	"context"
	"testing"
	"time"

	"github.com/karyon-go/karyon/pkg/rpcsrv"
	"github.com/stretchr/testify/require"
)

func TestChatRoomBroadcastsToAllJoinedSubscriptions(t *testing.T) {
	ch := rpcsrv.NewChannel()
	defer ch.Close()

	room := &chatRoom{}
	room.join(ch.NewSubscription("chat.listen"))
	room.join(ch.NewSubscription("chat.listen"))

	room.broadcast(context.Background(), "hello")

	for i := 0; i < 2; i++ {
		select {
		case n := <-ch.Out():
			require.Equal(t, "chat.listen", n.Method)
			require.JSONEq(t, `"hello"`, string(n.Params.Result))
		case <-time.After(time.Second):
			t.Fatal("expected a notification for every joined subscription")
		}
	}
}

func TestChatRoomBroadcastWithNoSubscribersIsNoop(t *testing.T) {
	room := &chatRoom{}
	room.broadcast(context.Background(), "hello")
}
