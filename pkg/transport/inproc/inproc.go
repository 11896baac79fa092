// Package inproc implements the in-process transport (SPEC_FULL.md
// §4.4.5): a direct registry of named handlers, envelopes passed by
// reference, no serialization.
package inproc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jocax/qollective-sub002/pkg/envelope"
	"github.com/jocax/qollective-sub002/pkg/qerrors"
	"github.com/jocax/qollective-sub002/pkg/transport"
)

// handlerFunc is the boxed, type-erased shape every registered handler is
// stored as; the generic Register/Dispatch wrappers below restore the
// concrete T/R types at the call site, since Go does not allow generic
// interface methods.
type handlerFunc func(ctx context.Context, env any) (any, error)

// Registry is a named handler directory. It satisfies
// transport.InProcessTransport.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]handlerFunc
}

// NewRegistry constructs an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]handlerFunc)}
}

// register binds name to a raw boxed handler. Prefer the package-level
// generic Register function, which restores type safety at the call site.
func (r *Registry) register(name string, h handlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

func (r *Registry) lookup(name string) (handlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Dispatch satisfies transport.Transport so a Registry can be registered
// under a scheme the same way any other transport is; transport.Send
// always detects the InProcessTransport branch first and calls DispatchRef
// instead, so this path only fires if something dispatches on this
// Registry without going through Send.
func (r *Registry) Dispatch(ctx context.Context, ep transport.Endpoint, envJSON []byte, timeout time.Duration) ([]byte, error) {
	return nil, qerrors.UnsupportedScheme("inproc transport requires DispatchRef, not byte dispatch")
}

// DispatchRef implements transport.InProcessTransport: env is expected to
// be a *envelope.Envelope[T] for whatever T the registered handler expects;
// the handler itself performs the type assertion via the generic Register
// wrapper, so no copy or serialization occurs in between (spec.md §4.4.5).
func (r *Registry) DispatchRef(ctx context.Context, ep transport.Endpoint, env any) (any, error) {
	name := ep.URL.Path
	if name == "" {
		name = ep.URL.Host
	}
	h, ok := r.lookup(name)
	if !ok {
		return nil, qerrors.UnsupportedScheme(fmt.Sprintf("inproc handler %q", name))
	}
	return h(ctx, env)
}

// Register installs a typed handler under name. T is the request payload
// type, R the response payload type; both must match what callers of
// transport.Send[T, R] pass for this endpoint. The handler receives and
// returns full envelopes by reference, with no serialization in between
// (spec.md §4.4.5).
func Register[T any, R any](r *Registry, name string, handler func(ctx context.Context, env *envelope.Envelope[T]) (*envelope.Envelope[R], error)) {
	r.register(name, func(ctx context.Context, boxed any) (any, error) {
		typed, ok := boxed.(*envelope.Envelope[T])
		if !ok {
			return nil, qerrors.Serialization("in-process handler type mismatch", fmt.Errorf("handler %q expected *envelope.Envelope[T], got %T", name, boxed))
		}
		return handler(ctx, typed)
	})
}
