package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jocax/qollective-sub002/pkg/config"
)

func lookupFrom(vars map[string]string) Lookup {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestOverlay_ParsesDocumentedVariables(t *testing.T) {
	cfg := config.Default()
	err := Overlay(cfg, lookupFrom(map[string]string{
		"QOLLECTIVE_TENANT_EXTRACTION": "true",
		"QOLLECTIVE_REST_PORT":         "9999",
		"QOLLECTIVE_NATS_URLS":         "nats://a:4222,nats://b:4222",
		"QOLLECTIVE_DEBUG_LOGGING":     "false",
	}))
	require.NoError(t, err)
	assert.True(t, cfg.TenantExtractionEnabled)
	assert.Equal(t, 9999, cfg.REST.Port)
	assert.Equal(t, []string{"nats://a:4222", "nats://b:4222"}, cfg.NATS.URLs)
	assert.False(t, cfg.Security.DebugLoggingOn)
}

func TestOverlay_TypedErrorOnBadBool(t *testing.T) {
	cfg := config.Default()
	err := Overlay(cfg, lookupFrom(map[string]string{
		"QOLLECTIVE_TENANT_EXTRACTION": "maybe",
	}))
	require.Error(t, err)
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "QOLLECTIVE_TENANT_EXTRACTION", parseErr.Var)
}

func TestOverlay_TypedErrorOnBadNumber(t *testing.T) {
	cfg := config.Default()
	err := Overlay(cfg, lookupFrom(map[string]string{
		"QOLLECTIVE_REST_PORT": "not-a-number",
	}))
	require.Error(t, err)
}

func TestOverlay_EmptyURLListNormalizesToNil(t *testing.T) {
	cfg := config.Default()
	err := Overlay(cfg, lookupFrom(map[string]string{
		"QOLLECTIVE_NATS_URLS": "",
	}))
	require.NoError(t, err)
	assert.Nil(t, cfg.NATS.URLs)
}
