package rest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jocax/qollective-sub002/pkg/config"
	"github.com/jocax/qollective-sub002/pkg/envelope"
	"github.com/jocax/qollective-sub002/pkg/qerrors"
	"github.com/jocax/qollective-sub002/pkg/transport"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server, config.RESTConfig) {
	t.Helper()
	cfg := config.RESTConfig{
		RequestTimeout:      time.Second,
		MaxInFlightRequests: 100,
		PreferEnvelopeJSON:  true,
	}
	s := NewServer(cfg)
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return s, srv, cfg
}

func TestServerAndClient_FullEnvelopeRoundTrip(t *testing.T) {
	s, srv, cfg := newTestServer(t)
	s.HandleFunc("/echo", "POST", func(ctx context.Context, envJSON []byte) ([]byte, error) {
		env, err := decodeStringEnvelope(envJSON)
		if err != nil {
			return nil, err
		}
		out, err := envelope.NewBuilder[string]().WithPayload(env.Payload + env.Payload).Build()
		if err != nil {
			return nil, err
		}
		return out.MarshalJSON()
	})

	client, err := NewClientTransport(cfg)
	require.NoError(t, err)

	reg := transport.NewRegistry(nil)
	reg.Register(client, "http")

	result, err := transport.Send[string, string](context.Background(), reg, srv.URL+"/echo", "ab", transport.SendOptions{Timeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, "abab", result)
}

func TestServer_HandlerErrorMapsToHTTPStatus(t *testing.T) {
	s, srv, cfg := newTestServer(t)
	s.HandleFunc("/fail", "POST", func(ctx context.Context, envJSON []byte) ([]byte, error) {
		return nil, qerrors.Validation("bad input", nil)
	})

	client, err := NewClientTransport(cfg)
	require.NoError(t, err)

	reg := transport.NewRegistry(nil)
	reg.Register(client, "http")

	_, err = transport.Send[string, string](context.Background(), reg, srv.URL+"/fail", "x", transport.SendOptions{Timeout: time.Second})
	require.Error(t, err)
	var remote *qerrors.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, string(qerrors.KindValidation), remote.Code)
}

func TestServer_RejectsOverCapacityWithBackpressure(t *testing.T) {
	cfg := config.RESTConfig{RequestTimeout: time.Second, MaxInFlightRequests: 1, PreferEnvelopeJSON: true}
	s := NewServer(cfg)
	s.HandleFunc("/noop", "POST", func(ctx context.Context, envJSON []byte) ([]byte, error) {
		out, err := envelope.NewBuilder[string]().WithPayload("ok").Build()
		if err != nil {
			return nil, err
		}
		return out.MarshalJSON()
	})
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)

	// Drive the raw HTTP endpoint directly: the single-token bucket admits
	// the first request, and the very next one (issued before any refill)
	// is refused with 503 rather than queued. Going through transport.Send
	// here would retry the backpressure away via the supervisor's backoff.
	body := strings.NewReader(`{"meta":{"request_id":"r1"},"payload":"x"}`)
	resp1, err := http.Post(srv.URL+"/noop", "application/json", body)
	require.NoError(t, err)
	resp1.Body.Close()
	assert.Equal(t, http.StatusOK, resp1.StatusCode)

	body2 := strings.NewReader(`{"meta":{"request_id":"r2"},"payload":"x"}`)
	resp2, err := http.Post(srv.URL+"/noop", "application/json", body2)
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp2.StatusCode)
}

func decodeStringEnvelope(data []byte) (*envelope.Envelope[string], error) {
	var e envelope.Envelope[string]
	if err := e.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return &e, nil
}
