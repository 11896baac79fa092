package codec

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jocax/qollective-sub002/pkg/envelope"
)

type payload struct {
	Message string `json:"message"`
}

func buildTestEnvelope(t *testing.T) *envelope.Envelope[payload] {
	t.Helper()
	env, err := envelope.NewBuilder[payload]().
		WithPayload(payload{Message: "hi"}).
		WithTenant("enterprise").
		WithMeta(&envelope.Meta{
			Tracing:  &envelope.Tracing{TraceID: "trace-1", SpanID: "span-1"},
			Security: &envelope.Security{UserID: "u1", AuthMethod: envelope.AuthJWT},
		}).
		WithExtension("x-custom", "value").
		WithTenant("enterprise").
		Build()
	require.NoError(t, err)
	return env
}

func TestJSONCodec_RoundTrip(t *testing.T) {
	env := buildTestEnvelope(t)
	data, err := EncodeJSON(env)
	require.NoError(t, err)

	decoded, err := DecodeJSON[payload](data)
	require.NoError(t, err)

	assert.Equal(t, env.Meta.RequestID, decoded.Meta.RequestID)
	assert.Equal(t, env.Payload, decoded.Payload)
	assert.Equal(t, "value", decoded.Meta.Extensions["x-custom"])
}

func TestLenPrefixedCodec_RoundTrip(t *testing.T) {
	env := buildTestEnvelope(t)
	data, err := EncodeLenPrefixed(env)
	require.NoError(t, err)

	decoded, err := DecodeLenPrefixed[payload](data)
	require.NoError(t, err)

	assert.Equal(t, env.Meta.RequestID, decoded.Meta.RequestID)
	assert.Equal(t, env.Payload, decoded.Payload)
	assert.Equal(t, env.Meta.Tracing.TraceID, decoded.Meta.Tracing.TraceID)
}

func TestPubSubCodec_RoundTrip(t *testing.T) {
	env := buildTestEnvelope(t)
	data, err := EncodePubSub(env)
	require.NoError(t, err)

	decoded, err := DecodePubSub[payload](data)
	require.NoError(t, err)
	assert.Equal(t, env.Payload, decoded.Payload)
}

func TestInProcessCodec_ClonesNotAliases(t *testing.T) {
	env := buildTestEnvelope(t)
	cloned := EncodeInProcess(env)
	cloned.Meta.Tenant = "mutated"
	assert.Equal(t, "enterprise", env.Meta.Tenant)
}

func TestHeaderCodec_RoundTripViaHeaders(t *testing.T) {
	env := buildTestEnvelope(t)
	h, q, err := EncodeHeaders(env.Meta, false)
	require.NoError(t, err)
	assert.Empty(t, q)

	decoded, err := DecodeHeaders(h, url.Values{})
	require.NoError(t, err)

	assert.Equal(t, env.Meta.RequestID, decoded.RequestID)
	assert.Equal(t, env.Meta.Tenant, decoded.Tenant)
	assert.Equal(t, env.Meta.Tracing.TraceID, decoded.Tracing.TraceID)
	assert.Equal(t, env.Meta.Security.UserID, decoded.Security.UserID)
}

func TestHeaderCodec_QueryFallbackEquivalentToHeaders(t *testing.T) {
	env := buildTestEnvelope(t)

	h, _, err := EncodeHeaders(env.Meta, false)
	require.NoError(t, err)
	fromHeaders, err := DecodeHeaders(h, url.Values{})
	require.NoError(t, err)

	_, q, err := EncodeHeaders(env.Meta, true)
	require.NoError(t, err)
	fromQuery, err := DecodeHeaders(http.Header{}, q)
	require.NoError(t, err)

	assert.Equal(t, fromHeaders.RequestID, fromQuery.RequestID)
	assert.Equal(t, fromHeaders.Tenant, fromQuery.Tenant)
}

func TestSubject_ValidatesReservedPrefixAndSegments(t *testing.T) {
	_, err := NewSubject("not-qollective.foo")
	assert.Error(t, err)

	_, err = NewSubject("qollective.a2a.v1.")
	assert.Error(t, err)

	_, err = NewSubject("qollective.a2a..v1")
	assert.Error(t, err)

	s, err := NewSubject("qollective.a2a.v1.discover")
	require.NoError(t, err)
	assert.Equal(t, "qollective.a2a.v1.discover", s.String())
}

func TestQueueGroupName(t *testing.T) {
	assert.Equal(t, "qollective.capability.logging.v1", QueueGroupName("logging", "v1"))
}
