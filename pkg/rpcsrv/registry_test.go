package rpcsrv_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/karyon-go/karyon/pkg/rpcsrv"
	"github.com/stretchr/testify/require"
)

type echoService struct{}

func (echoService) Name() string { return "echo" }

func (echoService) GetMethod(name string) (rpcsrv.Method, bool) {
	if name != "say" {
		return nil, false
	}
	return func(_ context.Context, params json.RawMessage) (json.RawMessage, error) {
		return params, nil
	}, true
}

type chatService struct{}

func (chatService) Name() string { return "chat" }

func (chatService) GetPubSubMethod(name string) (rpcsrv.PubSubMethod, bool) {
	if name != "listen" {
		return nil, false
	}
	return func(_ context.Context, sub *rpcsrv.Subscription, _ string, _ json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(`null`), nil
	}, true
}

func TestSplitMethodRequiresTwoNonEmptyParts(t *testing.T) {
	cases := []struct {
		in      string
		service string
		method  string
		ok      bool
	}{
		{"echo.say", "echo", "say", true},
		{"chat.room.join", "chat", "room.join", true},
		{"foo", "", "", false},
		{"", "", "", false},
		{".say", "", "", false},
		{"echo.", "", "", false},
	}
	for _, c := range cases {
		svc, method, ok := rpcsrv.SplitMethod(c.in)
		require.Equal(t, c.ok, ok, c.in)
		if ok {
			require.Equal(t, c.service, svc, c.in)
			require.Equal(t, c.method, method, c.in)
		}
	}
}

func TestRegistryResolvesOrdinaryMethod(t *testing.T) {
	r := rpcsrv.NewRegistry([]rpcsrv.RPCService{echoService{}}, nil)
	m, ok := r.ResolveMethod("echo", "say")
	require.True(t, ok)
	out, err := m(context.Background(), json.RawMessage(`"hi"`))
	require.NoError(t, err)
	require.JSONEq(t, `"hi"`, string(out))
}

func TestRegistryResolvesPubSubMethodOnlyFromPubSubTable(t *testing.T) {
	r := rpcsrv.NewRegistry(nil, []rpcsrv.PubSubRPCService{chatService{}})
	_, ok := r.ResolvePubSub("chat", "listen")
	require.True(t, ok)

	_, ok = r.ResolveMethod("chat", "listen")
	require.False(t, ok)
}

func TestRegistryUnknownServiceOrMethod(t *testing.T) {
	r := rpcsrv.NewRegistry([]rpcsrv.RPCService{echoService{}}, nil)

	_, ok := r.ResolveMethod("unknown", "ping")
	require.False(t, ok)

	_, ok = r.ResolveMethod("echo", "missing")
	require.False(t, ok)
}
