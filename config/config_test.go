package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	require.Equal(t, 20*time.Millisecond, cfg.FramePeriod())
	require.Equal(t, 960, cfg.FrameSamples())
	require.Equal(t, 960*2*2, cfg.FrameBytes())
	require.Equal(t, "127.0.0.1:5004", cfg.Target())
	require.Equal(t, ":5004", cfg.ListenAddr())
}

func TestLoadMissingFileWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)

	// the defaults were persisted so there is a file to edit
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	again, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, again)
}

func TestLoadUnwritablePathStillYieldsDefaults(t *testing.T) {
	// parent directory does not exist, persisting the defaults fails
	path := filepath.Join(t.TempDir(), "missing", "config.json")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"network": {"ip": "10.0.0.2"},
		"audio": {"frame_duration_ms": 10}
	}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "10.0.0.2", cfg.Network.IP)
	require.Equal(t, 10, cfg.Audio.FrameDurationMS)
	// untouched sections keep their defaults
	require.Equal(t, 5004, cfg.Network.Port)
	require.Equal(t, 48000, cfg.Audio.SampleRate)
	require.Equal(t, 10, cfg.Jitter.MaxDepth)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Audio.Channels = 0
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Jitter.MinDepth = 5
	cfg.Jitter.MaxDepth = 2
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Audio.FrameDurationMS = 0
	require.Error(t, cfg.Validate())
}
