package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loykin/petri/internal/control"
)

func TestDefaultUsesPackageDefaults(t *testing.T) {
	cfg := Default()
	require.Equal(t, control.DefaultSocketPath, cfg.Socket.Path)
	require.Greater(t, cfg.Ring.CapacityBytes, 0)
	require.Greater(t, cfg.Log.MaxSizeMB, 0)
	require.False(t, cfg.Metrics.Enabled)
	require.Empty(t, cfg.History.DSN)
}

func TestLoadWithEmptyPathReturnsDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadOverlaysOntoDefaults(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "petri.toml")
	data := `
[socket]
path = "/tmp/custom.sock"

[metrics]
enabled = true
listen = "127.0.0.1:9191"

[history]
dsn = "sqlite:///tmp/petri-history.db"
`
	require.NoError(t, os.WriteFile(p, []byte(data), 0o644))

	cfg, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, "/tmp/custom.sock", cfg.Socket.Path)
	require.True(t, cfg.Metrics.Enabled)
	require.Equal(t, "127.0.0.1:9191", cfg.Metrics.Listen)
	require.Equal(t, "sqlite:///tmp/petri-history.db", cfg.History.DSN)
	// Fields not present in the file keep their defaults.
	require.Equal(t, Default().Ring.CapacityBytes, cfg.Ring.CapacityBytes)
}

func TestLoadRejectsUnreadableFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.Error(t, err)
}

func TestLogfileConfigMirrorsLogSection(t *testing.T) {
	cfg := Default()
	cfg.Log.MaxSizeMB = 42
	cfg.Log.Compress = true
	lc := cfg.LogfileConfig()
	require.Equal(t, 42, lc.MaxSizeMB)
	require.True(t, lc.Compress)
}
