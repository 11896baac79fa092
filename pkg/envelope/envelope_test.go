package envelope

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type greeting struct {
	Message string `json:"message"`
}

func TestBuilder_RequiresPayloadOrError(t *testing.T) {
	_, err := NewBuilder[greeting]().Build()
	require.Error(t, err)
}

func TestBuilder_RejectsBothPayloadAndError(t *testing.T) {
	_, err := NewBuilder[greeting]().
		WithPayload(greeting{Message: "hi"}).
		WithError(&Error{Code: "X", Message: "boom"}).
		Build()
	require.Error(t, err)
}

func TestBuilder_AutoFillsRequestIDAndTimestamp(t *testing.T) {
	env, err := NewBuilder[greeting]().WithPayload(greeting{Message: "hi"}).Build()
	require.NoError(t, err)
	assert.NotEmpty(t, env.Meta.RequestID)
	assert.False(t, env.Meta.Timestamp.IsZero())
}

func TestBuilder_PreservesExplicitRequestID(t *testing.T) {
	env, err := NewBuilder[greeting]().
		WithPayload(greeting{Message: "hi"}).
		WithRequestID("req-123").
		Build()
	require.NoError(t, err)
	assert.Equal(t, "req-123", env.Meta.RequestID)
}

func TestBuilder_RejectsInconsistentTracing(t *testing.T) {
	_, err := NewBuilder[greeting]().
		WithPayload(greeting{Message: "hi"}).
		WithMeta(&Meta{Tracing: &Tracing{SpanID: "span-only"}}).
		Build()
	require.Error(t, err)
}

func TestEnvelope_JSONRoundTrip(t *testing.T) {
	env, err := NewBuilder[greeting]().
		WithPayload(greeting{Message: "hi"}).
		WithTenant("enterprise").
		WithExtension("x-custom", "value").
		Build()
	require.NoError(t, err)

	data, err := json.Marshal(env)
	require.NoError(t, err)

	var decoded Envelope[greeting]
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, env.Meta.RequestID, decoded.Meta.RequestID)
	assert.Equal(t, env.Meta.Tenant, decoded.Meta.Tenant)
	assert.Equal(t, env.Payload, decoded.Payload)
	assert.Equal(t, "value", decoded.Meta.Extensions["x-custom"])
}

func TestEnvelope_EmptyExtensionsNormalizeToAbsent(t *testing.T) {
	env, err := NewBuilder[greeting]().WithPayload(greeting{Message: "hi"}).Build()
	require.NoError(t, err)
	env.Meta.Extensions = map[string]any{}

	data, err := json.Marshal(env)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"extensions"`)
}

func TestEnvelope_AsOutcome_Error(t *testing.T) {
	env, err := NewBuilder[greeting]().
		WithError(&Error{Code: "WARP_CORE_FAILURE", Message: "insufficient crystals"}).
		Build()
	require.NoError(t, err)

	_, outcomeErr := env.AsOutcome()
	require.Error(t, outcomeErr)
	assert.Contains(t, outcomeErr.Error(), "WARP_CORE_FAILURE")
}

func TestEnvelope_AsOutcome_Success(t *testing.T) {
	env, err := NewBuilder[greeting]().WithPayload(greeting{Message: "hi"}).Build()
	require.NoError(t, err)

	payload, outcomeErr := env.AsOutcome()
	require.NoError(t, outcomeErr)
	assert.Equal(t, "hi", payload.Message)
}
