package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/ini.v1"
)

func writeIni(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.ini")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.ini"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestLoadInvalidSyntax(t *testing.T) {
	path := writeIni(t, "[public\nagent_name = broken")
	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidINI)
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeIni(t, "[public]\nagent_name = test-agent\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "test-agent", cfg.Public.AgentName)
	assert.Equal(t, defaultAPIListenPort, cfg.API.ListenPort)
	assert.Equal(t, defaultNonceTTL, cfg.Cleaner.NoncesInt)
	assert.Equal(t, defaultRequestValidity, cfg.Authorization.RequestValidityInt)
}

func TestLoadMissingSectionTolerated(t *testing.T) {
	path := writeIni(t, "[public]\nagent_name = solo-section\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, defaultDBSSLMode, cfg.Database.SSLMode)
}

func TestLoadGeneratesAndPersistsSecrets(t *testing.T) {
	path := writeIni(t, "[public]\nagent_name = secret-test\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	require.NotEmpty(t, cfg.Authentication.Password)
	require.NotEmpty(t, cfg.Authentication.TokenKey)
	require.NotEmpty(t, cfg.Authorization.RootPassword)
	require.NotEmpty(t, cfg.Authorization.NewTestsPassword)

	persisted, err := ini.Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Authentication.Password,
		persisted.Section("authentication").Key("authentication_password").String())

	// A second load must reuse the persisted secrets rather than generating
	// new ones.
	cfg2, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Authentication.Password, cfg2.Authentication.Password)
	assert.Equal(t, cfg.Authentication.TokenKey, cfg2.Authentication.TokenKey)
}

func TestLoadRejectsInvalidCrossOptionInvariant(t *testing.T) {
	path := writeIni(t, ""+
		"[authorization]\n"+
		"request_validity_int = 600\n"+
		"[cleaner]\n"+
		"nonces_int = 300\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestLoadRejectsInvalidListenIP(t *testing.T) {
	path := writeIni(t, "[api]\nlisten_ip = not-an-ip\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidationFailed)
}
