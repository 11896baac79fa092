package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jocax/qollective-sub002/pkg/codec"
	"github.com/jocax/qollective-sub002/pkg/envelope"
	"github.com/jocax/qollective-sub002/pkg/qerrors"
	"github.com/jocax/qollective-sub002/pkg/supervisor"
)

// fastSupervisorConfig keeps retry-loop tests from waiting on the
// supervisor's default multi-second backoff.
func fastSupervisorConfig(endpoint string) supervisor.Config {
	return supervisor.Config{
		Endpoint: endpoint,
		Retry:    supervisor.RetryConfig{MaxRetries: 1, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, JitterMax: time.Millisecond},
	}
}

func TestParseEndpoint_RejectsMissingScheme(t *testing.T) {
	_, err := ParseEndpoint("not-a-url")
	require.Error(t, err)
	assert.Equal(t, qerrors.KindUnsupportedScheme, qerrors.KindOf(err))
}

func TestParseEndpoint_LowercasesScheme(t *testing.T) {
	ep, err := ParseEndpoint("REST://host/path")
	require.NoError(t, err)
	assert.Equal(t, "rest", ep.Scheme)
}

// fakeTransport echoes the decoded envelope payload back doubled, so a
// round trip through Send is observable without any real wire I/O.
type fakeTransport struct {
	dispatchErr error
	calls       int
}

func (f *fakeTransport) Dispatch(ctx context.Context, ep Endpoint, envJSON []byte, timeout time.Duration) ([]byte, error) {
	f.calls++
	if f.dispatchErr != nil {
		return nil, f.dispatchErr
	}
	env, err := codec.DecodeJSON[string](envJSON)
	if err != nil {
		return nil, err
	}
	out, err := envelope.NewBuilder[string]().WithPayload(env.Payload + env.Payload).Build()
	if err != nil {
		return nil, err
	}
	return codec.EncodeJSON(out)
}

func (f *fakeTransport) DispatchPure(ctx context.Context, ep Endpoint, payload []byte, timeout time.Duration) ([]byte, error) {
	f.calls++
	if f.dispatchErr != nil {
		return nil, f.dispatchErr
	}
	return payload, nil
}

func TestSend_RoundTripsThroughFakeTransport(t *testing.T) {
	reg := NewRegistry(nil)
	ft := &fakeTransport{}
	reg.Register(ft, "fake")

	result, err := Send[string, string](context.Background(), reg, "fake://host/echo", "ab", SendOptions{})
	require.NoError(t, err)
	assert.Equal(t, "abab", result)
	assert.Equal(t, 1, ft.calls)
}

func TestSend_UnknownSchemeIsUnsupportedScheme(t *testing.T) {
	reg := NewRegistry(nil)
	_, err := Send[string, string](context.Background(), reg, "bogus://host/echo", "x", SendOptions{})
	require.Error(t, err)
	assert.Equal(t, qerrors.KindUnsupportedScheme, qerrors.KindOf(err))
}

func TestSend_TransportErrorPropagates(t *testing.T) {
	reg := NewRegistry(fastSupervisorConfig)
	ft := &fakeTransport{dispatchErr: qerrors.ConnectionFailed("boom", nil)}
	reg.Register(ft, "fake")

	_, err := Send[string, string](context.Background(), reg, "fake://host/echo", "x", SendOptions{})
	require.Error(t, err)
	assert.GreaterOrEqual(t, ft.calls, 1)
}

func TestSendPure_RoundTripsRawPayload(t *testing.T) {
	reg := NewRegistry(nil)
	ft := &fakeTransport{}
	reg.Register(ft, "fake")

	result, err := SendPure[string, string](context.Background(), reg, "fake://host/echo", "raw", SendOptions{})
	require.NoError(t, err)
	assert.Equal(t, "raw", result)
}

func TestSendPure_NonPureTransportIsValidationError(t *testing.T) {
	reg := NewRegistry(nil)
	reg.Register(inProcOnlyTransport{}, "ip")

	_, err := SendPure[string, string](context.Background(), reg, "ip://host/echo", "raw", SendOptions{})
	require.Error(t, err)
	assert.Equal(t, qerrors.KindValidation, qerrors.KindOf(err))
}

// inProcOnlyTransport satisfies Transport but not PureTransport.
type inProcOnlyTransport struct{}

func (inProcOnlyTransport) Dispatch(ctx context.Context, ep Endpoint, envJSON []byte, timeout time.Duration) ([]byte, error) {
	return envJSON, nil
}
