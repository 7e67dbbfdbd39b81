package jsonrpc_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/karyon-go/karyon/pkg/jsonrpc"
	"github.com/stretchr/testify/require"
)

func TestResponseRoundTrip(t *testing.T) {
	r := &jsonrpc.Response{
		JSONRPC: jsonrpc.Version,
		ID:      json.RawMessage(`4`),
		Result:  json.RawMessage(`"hi"`),
	}
	data, err := json.Marshal(r)
	require.NoError(t, err)

	var got jsonrpc.Response
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, r.JSONRPC, got.JSONRPC)
	require.JSONEq(t, string(r.ID), string(got.ID))
	require.JSONEq(t, string(r.Result), string(got.Result))
}

func TestRequestRoundTrip(t *testing.T) {
	req := &jsonrpc.Request{
		JSONRPC: jsonrpc.Version,
		ID:      json.RawMessage(`1`),
		Method:  "echo.say",
		Params:  json.RawMessage(`"hi"`),
	}
	data, err := json.Marshal(req)
	require.NoError(t, err)

	var got jsonrpc.Request
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, *req, got)
}

func TestNotificationRoundTrip(t *testing.T) {
	n := &jsonrpc.Notification{
		JSONRPC: jsonrpc.Version,
		Method:  "chat.message",
		Params: jsonrpc.NotificationParams{
			Subscription: 7,
			Result:       json.RawMessage(`"hello"`),
		},
	}
	data, err := json.Marshal(n)
	require.NoError(t, err)

	var got jsonrpc.Notification
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, n.JSONRPC, got.JSONRPC)
	require.Equal(t, n.Method, got.Method)
	require.Equal(t, n.Params.Subscription, got.Params.Subscription)
	require.JSONEq(t, string(n.Params.Result), string(got.Params.Result))
}

// Scenario 2: bad version.
func TestUnsupportedVersionErrorResponse(t *testing.T) {
	err := jsonrpc.NewUnsupportedVersionError()
	resp := err.ToResponse(json.RawMessage(`1`))

	data, marshalErr := json.Marshal(resp)
	require.NoError(t, marshalErr)
	require.JSONEq(t, `{"jsonrpc":"2.0","id":1,"error":{"code":-32600,"message":"Unsupported jsonrpc version"}}`, string(data))
}

// Scenario 3: bad method name.
func TestInvalidRequestErrorResponse(t *testing.T) {
	err := jsonrpc.NewInvalidRequestError()
	resp := err.ToResponse(json.RawMessage(`2`))

	data, marshalErr := json.Marshal(resp)
	require.NoError(t, marshalErr)
	require.JSONEq(t, `{"jsonrpc":"2.0","id":2,"error":{"code":-32600,"message":"Invalid request"}}`, string(data))
}

// Scenario 4: method not found.
func TestMethodNotFoundErrorResponse(t *testing.T) {
	err := jsonrpc.NewMethodNotFoundError()
	resp := err.ToResponse(json.RawMessage(`3`))

	data, marshalErr := json.Marshal(resp)
	require.NoError(t, marshalErr)
	require.JSONEq(t, `{"jsonrpc":"2.0","id":3,"error":{"code":-32601,"message":"Method not found"}}`, string(data))
}

// Scenario 1: parse error, id is null.
func TestParseErrorResponse(t *testing.T) {
	err := jsonrpc.NewParseError()
	resp := err.ToResponse(nil)

	data, marshalErr := json.Marshal(resp)
	require.NoError(t, marshalErr)
	require.JSONEq(t, `{"jsonrpc":"2.0","error":{"code":-32700,"message":"Failed to parse"},"id":null}`, string(data))
}

func TestErrorErrorsAs(t *testing.T) {
	err := jsonrpc.NewInternalError(errors.New("some error"))
	wrapped := fmt.Errorf("some meaningful error: %w", err)

	var actual *jsonrpc.Error
	require.True(t, errors.As(wrapped, &actual))
	require.Equal(t, "Internal error (-32603) - some error", actual.Error())
}

func TestErrorErrorsIs(t *testing.T) {
	err := jsonrpc.NewMethodNotFoundError()
	wrapped := fmt.Errorf("dispatch failed: %w", err)

	ref := jsonrpc.NewMethodNotFoundError()
	require.True(t, errors.Is(wrapped, ref))
	require.False(t, errors.Is(wrapped, jsonrpc.NewInvalidRequestError()))
}
