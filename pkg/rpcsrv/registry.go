package rpcsrv

import (
	"context"
	"encoding/json"
	"strings"
)

// Method is an ordinary service method: given the request's params (or a
// JSON null if absent), it returns a result or an error.
type Method func(ctx context.Context, params json.RawMessage) (json.RawMessage, error)

// PubSubMethod is a subscription-oriented service method. It receives the
// subscription object it should publish further values through, and the
// full "<service>.<method>" name the notifications should carry.
type PubSubMethod func(ctx context.Context, sub *Subscription, fullMethod string, params json.RawMessage) (json.RawMessage, error)

// RPCService exposes a set of ordinary methods under a service name.
type RPCService interface {
	Name() string
	GetMethod(name string) (Method, bool)
}

// PubSubRPCService exposes a set of subscription-oriented methods under a
// service name.
type PubSubRPCService interface {
	Name() string
	GetPubSubMethod(name string) (PubSubMethod, bool)
}

// Registry is the server's two dispatch tables, keyed by service name.
// Built once at server construction via NewRegistry and read-only
// thereafter — callers needing to add a service after construction must
// build a new Registry, there is no hot reload.
type Registry struct {
	services       map[string]RPCService
	pubsubServices map[string]PubSubRPCService
}

// NewRegistry builds an immutable Registry from the given services. A
// later entry with a duplicate name replaces an earlier one, the same
// way a map literal would.
func NewRegistry(services []RPCService, pubsubServices []PubSubRPCService) *Registry {
	r := &Registry{
		services:       make(map[string]RPCService, len(services)),
		pubsubServices: make(map[string]PubSubRPCService, len(pubsubServices)),
	}
	for _, s := range services {
		r.services[s.Name()] = s
	}
	for _, s := range pubsubServices {
		r.pubsubServices[s.Name()] = s
	}
	return r
}

// SplitMethod splits a full method name on its first '.', requiring both
// the service and method parts to be non-empty. Requests that don't
// satisfy this are rejected with InvalidRequest before dispatch is ever
// attempted.
func SplitMethod(full string) (service, method string, ok bool) {
	i := strings.IndexByte(full, '.')
	if i <= 0 || i == len(full)-1 {
		return "", "", false
	}
	return full[:i], full[i+1:], true
}

// ResolvePubSub looks up a pub/sub method by its service and method name
// (the two halves of a "<service>.<method>" name). Checked before ResolveMethod on every dispatch: the same name
// registered in both tables resolves to the pub/sub binding.
func (r *Registry) ResolvePubSub(service, method string) (PubSubMethod, bool) {
	s, ok := r.pubsubServices[service]
	if !ok {
		return nil, false
	}
	return s.GetPubSubMethod(method)
}

// ResolveMethod looks up an ordinary method by its service and method
// name.
func (r *Registry) ResolveMethod(service, method string) (Method, bool) {
	s, ok := r.services[service]
	if !ok {
		return nil, false
	}
	return s.GetMethod(method)
}
