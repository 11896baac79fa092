package inproc

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jocax/qollective-sub002/pkg/envelope"
	"github.com/jocax/qollective-sub002/pkg/qerrors"
	"github.com/jocax/qollective-sub002/pkg/transport"
)

func endpointFor(t *testing.T, path string) transport.Endpoint {
	t.Helper()
	u, err := url.Parse("inproc://local" + path)
	require.NoError(t, err)
	return transport.Endpoint{Scheme: "inproc", Raw: u.String(), URL: u}
}

func TestRegistry_DispatchRefRoutesToRegisteredHandler(t *testing.T) {
	r := NewRegistry()
	Register(r, "/echo", func(ctx context.Context, env *envelope.Envelope[string]) (*envelope.Envelope[string], error) {
		return envelope.NewBuilder[string]().WithPayload(env.Payload + "!").Build()
	})

	in, err := envelope.NewBuilder[string]().WithPayload("hi").Build()
	require.NoError(t, err)

	result, err := r.DispatchRef(context.Background(), endpointFor(t, "/echo"), in)
	require.NoError(t, err)

	out, ok := result.(*envelope.Envelope[string])
	require.True(t, ok)
	assert.Equal(t, "hi!", out.Payload)
}

func TestRegistry_DispatchRefUnknownHandlerReturnsUnsupportedScheme(t *testing.T) {
	r := NewRegistry()
	_, err := r.DispatchRef(context.Background(), endpointFor(t, "/missing"), "anything")
	require.Error(t, err)
	assert.Equal(t, qerrors.KindUnsupportedScheme, qerrors.KindOf(err))
}

func TestRegistry_DispatchRefTypeMismatchIsSerializationError(t *testing.T) {
	r := NewRegistry()
	Register(r, "/typed", func(ctx context.Context, env *envelope.Envelope[int]) (*envelope.Envelope[int], error) {
		return envelope.NewBuilder[int]().WithPayload(env.Payload).Build()
	})

	_, err := r.DispatchRef(context.Background(), endpointFor(t, "/typed"), "not an envelope")
	require.Error(t, err)
	assert.Equal(t, qerrors.KindSerialization, qerrors.KindOf(err))
}

func TestRegistry_DispatchReturnsUnsupportedSchemeWithoutDispatchRef(t *testing.T) {
	r := NewRegistry()
	_, err := r.Dispatch(context.Background(), endpointFor(t, "/echo"), []byte(`{}`), 0)
	require.Error(t, err)
	assert.Equal(t, qerrors.KindUnsupportedScheme, qerrors.KindOf(err))
}

func TestRegistry_SatisfiesTransportInterfaces(t *testing.T) {
	var _ transport.Transport = (*Registry)(nil)
	var _ transport.InProcessTransport = (*Registry)(nil)
}
