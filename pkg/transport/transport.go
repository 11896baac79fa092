// Package transport implements the unified sender and transport registry
// (SPEC_FULL.md §4.3): endpoint scheme dispatch, per-endpoint connection
// supervision, and the envelope-wrap/unwrap boundary every concrete
// transport sits behind.
package transport

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jocax/qollective-sub002/pkg/codec"
	"github.com/jocax/qollective-sub002/pkg/envelope"
	"github.com/jocax/qollective-sub002/pkg/qerrors"
	"github.com/jocax/qollective-sub002/pkg/supervisor"
)

// Endpoint is a parsed transport address (spec.md §3.3).
type Endpoint struct {
	Scheme string
	Raw    string
	URL    *url.URL
}

// ParseEndpoint splits raw into a scheme and the rest of the address.
// Endpoint parsing is transport-local in spirit but the scheme itself is
// always resolved here so the registry can route to the right Transport
// (spec.md §4.3 step 1).
func ParseEndpoint(raw string) (Endpoint, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return Endpoint{}, qerrors.UnsupportedScheme(raw)
	}
	return Endpoint{Scheme: strings.ToLower(u.Scheme), Raw: raw, URL: u}, nil
}

// Transport dispatches an already-encoded envelope to one endpoint and
// returns the encoded response envelope. Implementations perform whatever
// wire-level translation their protocol needs (header projection, framing,
// subject derivation) but always exchange full JSON envelope bytes at this
// boundary, normalizing internally (spec.md §4.4.1 "server normalizes to
// an internal envelope before dispatch").
type Transport interface {
	Dispatch(ctx context.Context, ep Endpoint, envelopeJSON []byte, timeout time.Duration) ([]byte, error)
}

// PureTransport additionally supports the "pure" raw mode (spec.md
// §4.4.6): payload bypasses envelope wrapping entirely.
type PureTransport interface {
	Transport
	DispatchPure(ctx context.Context, ep Endpoint, payload []byte, timeout time.Duration) ([]byte, error)
}

// InProcessTransport bypasses serialization altogether, passing envelopes
// by reference through a boxed any (spec.md §4.4.5).
type InProcessTransport interface {
	DispatchRef(ctx context.Context, ep Endpoint, env any) (any, error)
}

// Registry maps schemes to Transports and owns one Supervisor per
// endpoint, populated at startup from configuration but open to runtime
// registration (spec.md §4.3).
type Registry struct {
	mu          sync.RWMutex
	transports  map[string]Transport
	supervisors map[string]*supervisor.Supervisor
	supCfg      func(endpoint string) supervisor.Config
}

// NewRegistry constructs an empty Registry. supCfg, if non-nil, customizes
// the Supervisor built for each newly seen endpoint; a nil supCfg uses
// supervisor defaults.
func NewRegistry(supCfg func(endpoint string) supervisor.Config) *Registry {
	return &Registry{
		transports:  make(map[string]Transport),
		supervisors: make(map[string]*supervisor.Supervisor),
		supCfg:      supCfg,
	}
}

// Register binds a Transport to one or more URL schemes.
func (r *Registry) Register(t Transport, schemes ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range schemes {
		r.transports[strings.ToLower(s)] = t
	}
}

// Lookup returns the Transport bound to scheme, if any.
func (r *Registry) Lookup(scheme string) (Transport, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.transports[strings.ToLower(scheme)]
	return t, ok
}

func (r *Registry) supervisorFor(endpoint string) *supervisor.Supervisor {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.supervisors[endpoint]; ok {
		return s
	}
	cfg := supervisor.Config{Endpoint: endpoint}
	if r.supCfg != nil {
		cfg = r.supCfg(endpoint)
	}
	s := supervisor.New(cfg)
	r.supervisors[endpoint] = s
	return s
}

// SupervisorFor exposes the per-endpoint Supervisor for metrics/event
// inspection by callers (e.g. a CLI status command).
func (r *Registry) SupervisorFor(endpoint string) *supervisor.Supervisor {
	return r.supervisorFor(endpoint)
}

// SendOptions customizes one Send call.
type SendOptions struct {
	Timeout         time.Duration
	OverallTimeout  time.Duration
	Tenant          string
	Meta            *envelope.Meta
}

// Send implements the unified sender (spec.md §4.3): wraps payload in an
// envelope, routes by scheme, runs the call under the endpoint's
// supervisor, and unwraps the response — surfacing a RemoteError if the
// response envelope carries one.
func Send[T any, R any](ctx context.Context, reg *Registry, endpointURL string, payload T, opts SendOptions) (R, error) {
	var zero R

	ep, err := ParseEndpoint(endpointURL)
	if err != nil {
		return zero, err
	}

	t, ok := reg.Lookup(ep.Scheme)
	if !ok {
		return zero, qerrors.UnsupportedScheme(ep.Scheme)
	}

	if inproc, ok := t.(InProcessTransport); ok {
		builder := envelope.NewBuilder[T]().WithPayload(payload)
		if opts.Meta != nil {
			builder = builder.WithMeta(opts.Meta)
		}
		if opts.Tenant != "" {
			builder = builder.WithTenant(opts.Tenant)
		}
		env, err := builder.Build()
		if err != nil {
			return zero, err
		}
		result, err := inproc.DispatchRef(ctx, ep, env)
		if err != nil {
			return zero, err
		}
		respEnv, ok := result.(*envelope.Envelope[R])
		if !ok {
			return zero, qerrors.Serialization("in-process dispatch", fmt.Errorf("unexpected response type %T", result))
		}
		return respEnv.AsOutcome()
	}

	builder := envelope.NewBuilder[T]().WithPayload(payload)
	if opts.Meta != nil {
		builder = builder.WithMeta(opts.Meta)
	}
	if opts.Tenant != "" {
		builder = builder.WithTenant(opts.Tenant)
	}
	env, err := builder.Build()
	if err != nil {
		return zero, err
	}

	encoded, err := codec.EncodeJSON(env)
	if err != nil {
		return zero, err
	}

	sup := reg.supervisorFor(endpointURL)

	var respBytes []byte
	runErr := sup.Run(ctx, opts.OverallTimeout, func(ctx context.Context) error {
		b, err := t.Dispatch(ctx, ep, encoded, opts.Timeout)
		if err != nil {
			return err
		}
		respBytes = b
		return nil
	})
	if runErr != nil {
		return zero, runErr
	}

	respEnv, err := codec.DecodeJSON[R](respBytes)
	if err != nil {
		return zero, err
	}
	return respEnv.AsOutcome()
}

// SendPure implements the "pure" raw variant (spec.md §4.4.6): T is
// serialized directly with no envelope, and failures surface as native
// transport errors only.
func SendPure[T any, R any](ctx context.Context, reg *Registry, endpointURL string, payload T, opts SendOptions) (R, error) {
	var zero R

	ep, err := ParseEndpoint(endpointURL)
	if err != nil {
		return zero, err
	}
	t, ok := reg.Lookup(ep.Scheme)
	if !ok {
		return zero, qerrors.UnsupportedScheme(ep.Scheme)
	}
	pure, ok := t.(PureTransport)
	if !ok {
		return zero, qerrors.Validation(fmt.Sprintf("transport for scheme %q does not support pure mode", ep.Scheme), nil)
	}

	body, err := codec.EncodeJSON(&envelope.Envelope[T]{Payload: payload})
	if err != nil {
		return zero, err
	}
	// Pure mode carries only the payload; strip the envelope wrapper.
	rawPayload, err := extractPayload(body)
	if err != nil {
		return zero, err
	}

	sup := reg.supervisorFor(endpointURL)
	var respBytes []byte
	runErr := sup.Run(ctx, opts.OverallTimeout, func(ctx context.Context) error {
		b, err := pure.DispatchPure(ctx, ep, rawPayload, opts.Timeout)
		if err != nil {
			return err
		}
		respBytes = b
		return nil
	})
	if runErr != nil {
		return zero, runErr
	}

	var result R
	if err := unmarshalPure(respBytes, &result); err != nil {
		return zero, err
	}
	return result, nil
}
