package nats

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jocax/qollective-sub002/pkg/qconst"
	"github.com/jocax/qollective-sub002/pkg/qerrors"
)

func TestSubjectFromPath_ConvertsSlashesToDots(t *testing.T) {
	sub, err := subjectFromPath("/qollective/a2a/v1/discover")
	require.NoError(t, err)
	assert.Equal(t, "qollective.a2a.v1.discover", sub.String())
}

func TestSubjectFromPath_RejectsPathMissingReservedPrefix(t *testing.T) {
	_, err := subjectFromPath("/other/path")
	require.Error(t, err)
	assert.Equal(t, qerrors.KindValidation, qerrors.KindOf(err))
}

func TestSubjectFromPath_RejectsEmptyPath(t *testing.T) {
	_, err := subjectFromPath("/")
	require.Error(t, err)
	assert.Equal(t, qerrors.KindValidation, qerrors.KindOf(err))
}

func TestResolveTLSCertBasePath_PrefersExplicitConfig(t *testing.T) {
	got := ResolveTLSCertBasePath("/configured/path")
	assert.Equal(t, "/configured/path", got)
}

func TestResolveTLSCertBasePath_FallsBackToEnvVar(t *testing.T) {
	t.Setenv(qconst.EnvPrefix+"TLS_CERT_BASE_PATH", "/env/path")
	got := ResolveTLSCertBasePath("")
	assert.Equal(t, "/env/path", got)
}

func TestResolveTLSCertBasePath_FallsBackToRelativeDirWhenPresent(t *testing.T) {
	dir := t.TempDir()
	certDir := filepath.Join(dir, "tests", "certs")
	require.NoError(t, os.MkdirAll(certDir, 0o755))

	oldWD, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(oldWD) })

	got := ResolveTLSCertBasePath("")
	assert.Equal(t, certDir, got)
}

func TestResolveTLSCertBasePath_FallsBackToLegacyAbsolutePath(t *testing.T) {
	dir := t.TempDir()
	oldWD, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(oldWD) })

	got := ResolveTLSCertBasePath("")
	assert.Equal(t, legacyTLSCertBasePath, got)
}
