package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "tiny", cfg.Model)
	require.Equal(t, "en", cfg.Language)
	require.False(t, cfg.Pro)
	require.Equal(t, 5*time.Second, cfg.Retry.Delay)
	require.Zero(t, cfg.Retry.MaxAttempts)
	require.Equal(t, "127.0.0.1:8787", cfg.Serve.Addr)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
model: base
language: de
pro: true
retry:
  delay: 2s
  max_attempts: 3
serve:
  addr: "0.0.0.0:9000"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "base", cfg.Model)
	require.Equal(t, "de", cfg.Language)
	require.True(t, cfg.Pro)
	require.Equal(t, 2*time.Second, cfg.Retry.Delay)
	require.Equal(t, 3, cfg.Retry.MaxAttempts)
	require.Equal(t, "0.0.0.0:9000", cfg.Serve.Addr)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model: base\n"), 0o644))

	t.Setenv("VOXSCRIBE_MODEL", "small")
	t.Setenv("VOXSCRIBE_PRO", "true")
	t.Setenv("VOXSCRIBE_RETRY_DELAY", "10s")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "small", cfg.Model)
	require.True(t, cfg.Pro)
	require.Equal(t, 10*time.Second, cfg.Retry.Delay)
}

func TestLoadRejectsBadProValue(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("VOXSCRIBE_PRO", "yes-please")

	_, err := Load("")
	require.Error(t, err)
	require.Contains(t, err.Error(), "VOXSCRIBE_PRO")
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mdoel: base\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
