package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgsDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := ParseArgs([]string{"--data-dir", dir})
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:46290", cfg.Server.Address)
	assert.Len(t, cfg.Server.AllowedOrigins, 3)
	assert.Equal(t, 2*time.Second, cfg.Query.Timeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Query.RateLimit)
	assert.Equal(t, 3*time.Second, cfg.Query.ExtraInfoCooldown)
	assert.Equal(t, 1500, cfg.Query.BufferSize)
	assert.Equal(t, 5, cfg.Launcher.MaxRetries)
	assert.Equal(t, "vorbis", cfg.Launcher.Marker)
	assert.Zero(t, cfg.Launcher.MarkerTimeout)

	assert.Equal(t, filepath.Join(dir, DatabaseFile), cfg.Storage.Path)
	assert.Equal(t, filepath.Join(dir, GeoIPFile), cfg.GeoIP.Path)
	assert.Equal(t, filepath.Join(dir, "omp", "omp-client.dll"), cfg.Launcher.OMPLibrary)
	assert.Empty(t, cfg.Storage.ImportLegacy)
	assert.False(t, cfg.HasDirectLaunch())
}

func TestParseArgsDirectLaunch(t *testing.T) {
	cfg, err := ParseArgs([]string{
		"--data-dir", t.TempDir(),
		"--host", "127.0.0.1",
		"-p", "7777",
		"-n", "Player",
		"-g", `C:\Games\GTA San Andreas`,
		"-P", "secret",
		"--no-omp",
	})
	require.NoError(t, err)

	assert.True(t, cfg.HasDirectLaunch())
	assert.Equal(t, 7777, cfg.Launch.Port)
	assert.Equal(t, "secret", cfg.Launch.Password)
	assert.True(t, cfg.Launch.NoOMP)
}

func TestParseArgsNamespacesAndEnv(t *testing.T) {
	t.Setenv("OMP_QUERY_TIMEOUT", "5s")
	t.Setenv("OMP_LAUNCHER_MARKER", "audio")

	dir := t.TempDir()
	cfg, err := ParseArgs([]string{
		"--data-dir", dir,
		"--query-rate-limit", "1s",
		"--db-import-legacy",
		"--log-level", "debug",
	})
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Query.Timeout)
	assert.Equal(t, time.Second, cfg.Query.RateLimit)
	assert.Equal(t, "audio", cfg.Launcher.Marker)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, filepath.Join(dir, LegacyStorage), cfg.Storage.ImportLegacy)
}

func TestParseArgsInvalid(t *testing.T) {
	_, err := ParseArgs([]string{"--query-timeout", "soon"})
	assert.Error(t, err)

	_, err = ParseArgs([]string{"--unknown-flag"})
	assert.Error(t, err)
}

func TestLoadEnvFile(t *testing.T) {
	t.Setenv("OMP_QUERY_BUFFER_SIZE", "")
	require.NoError(t, os.Unsetenv("OMP_QUERY_BUFFER_SIZE"))

	path := filepath.Join(t.TempDir(), "launcher.env")
	require.NoError(t, os.WriteFile(path, []byte("OMP_QUERY_BUFFER_SIZE=2048\n"), 0o600))

	args := []string{"--env-file=" + path, "--data-dir", t.TempDir()}
	loadEnvFile(args)

	cfg, err := ParseArgs(args)
	require.NoError(t, err)
	assert.Equal(t, 2048, cfg.Query.BufferSize)
	assert.Equal(t, path, cfg.EnvFile)
}
