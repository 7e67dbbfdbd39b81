package rpcsrv

import (
	"context"
	"encoding/json"

	"github.com/karyon-go/karyon/pkg/jsonrpc"
	"github.com/karyon-go/karyon/pkg/metrics"
	"go.uber.org/zap"
)

// handleRequest runs the request-handler state machine for one inbound
// message and pushes exactly one encoded Response onto queue: envelope
// check, version check, method parse, dispatch, envelope out, enqueue.
// It never returns an error of its own — every failure along the way is
// converted to a Response, per the envelope/dispatch/method error
// taxonomy.
func handleRequest(ctx context.Context, log *zap.Logger, registry *Registry, ch *Channel, queue *ResponseQueue[*jsonrpc.Response], raw json.RawMessage) {
	if ce := log.Check(zap.DebugLevel, "new request"); ce != nil {
		ce.Write(zap.ByteString("raw", raw))
	}

	var req jsonrpc.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		log.Debug("failed to parse request envelope", zap.Error(err))
		metrics.ObserveRequest("", "", metrics.OutcomeInvalidRequest)
		queue.Push(jsonrpc.NewParseError().ToResponse(nil))
		return
	}

	if req.JSONRPC != jsonrpc.Version {
		metrics.ObserveRequest("", "", metrics.OutcomeInvalidRequest)
		queue.Push(jsonrpc.NewUnsupportedVersionError().ToResponse(req.ID))
		return
	}

	service, method, ok := SplitMethod(req.Method)
	if !ok {
		metrics.ObserveRequest("", "", metrics.OutcomeInvalidRequest)
		queue.Push(jsonrpc.NewInvalidRequestError().ToResponse(req.ID))
		return
	}

	params := req.Params
	if params == nil {
		params = json.RawMessage(`null`)
	}

	result, err := dispatch(ctx, registry, ch, req.Method, service, method, params)
	if err != nil {
		rpcErr := toErrorResponse(err)
		outcome := metrics.OutcomeError
		if rpcErr.Code == jsonrpc.MethodNotFoundCode {
			outcome = metrics.OutcomeMethodNotFound
		}
		metrics.ObserveRequest(service, method, outcome)
		queue.Push(rpcErr.ToResponse(req.ID))
		return
	}

	metrics.ObserveRequest(service, method, metrics.OutcomeOK)
	queue.Push(&jsonrpc.Response{JSONRPC: jsonrpc.Version, ID: req.ID, Result: result})
}

// dispatch resolves (service, method) against the pub/sub registry first,
// then the ordinary registry, and invokes whichever it finds.
func dispatch(ctx context.Context, registry *Registry, ch *Channel, fullMethod, service, method string, params json.RawMessage) (json.RawMessage, error) {
	if pm, ok := registry.ResolvePubSub(service, method); ok {
		sub := ch.NewSubscription(fullMethod)
		result, err := pm(ctx, sub, fullMethod, params)
		if err != nil {
			ch.Remove(sub.ID())
		}
		return result, err
	}

	if m, ok := registry.ResolveMethod(service, method); ok {
		return m(ctx, params)
	}

	return nil, jsonrpc.NewMethodNotFoundError()
}

// toErrorResponse adapts any error returned by a service method into a
// *jsonrpc.Error. Methods are expected to return *jsonrpc.Error directly
// (e.g. via jsonrpc.NewMethodNotFoundError or a custom one with WithCause),
// but a plain Go error is still accepted and wrapped as an internal error
// rather than panicking the handler task.
func toErrorResponse(err error) *jsonrpc.Error {
	if rpcErr, ok := err.(*jsonrpc.Error); ok {
		return rpcErr
	}
	return jsonrpc.NewInternalError(err)
}
