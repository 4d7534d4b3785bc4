package config

import (
	"os"
	"testing"

	"github.com/adrg/xdg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolateConfigHome points XDG at a temp dir so tests never touch the real
// user configuration.
func isolateConfigHome(t *testing.T) {
	t.Helper()

	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	xdg.Reload()
	t.Cleanup(xdg.Reload)
}

func TestLoadDefaultsWhenNoFileExists(t *testing.T) {
	isolateConfigHome(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "batteries-smoke", cfg.Service)
	assert.True(t, cfg.Enabled, "telemetry defaults to enabled")
	assert.Empty(t, cfg.MedamaServer)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	isolateConfigHome(t)

	cfg := Default()
	cfg.Service = "demo"
	cfg.MedamaServer = "https://analytics.example.com"
	cfg.Enabled = false
	require.NoError(t, cfg.Save())

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "demo", loaded.Service)
	assert.Equal(t, "https://analytics.example.com", loaded.MedamaServer)
	assert.False(t, loaded.Enabled)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	isolateConfigHome(t)

	cfg := Default()
	cfg.SentryDSN = "https://file@ingest.sentry.io/1"
	require.NoError(t, cfg.Save())

	t.Setenv("BATTERIES_SENTRY_DSN", "https://env@ingest.sentry.io/2")
	t.Setenv("BATTERIES_SERVICE", "overridden")

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://env@ingest.sentry.io/2", loaded.SentryDSN)
	assert.Equal(t, "overridden", loaded.Service)
}

func TestLoadRejectsCorruptFile(t *testing.T) {
	isolateConfigHome(t)

	require.NoError(t, EnsureDir())
	require.NoError(t, os.WriteFile(File(), []byte("{not json"), 0600))

	_, err := Load()
	assert.Error(t, err)
}
