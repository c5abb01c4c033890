package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultValues(t *testing.T) {
	cfg := Default()

	require.Equal(t, 30.0, cfg.Recording.ChunkDurationSeconds)
	require.Equal(t, 16000, cfg.Recording.SampleRate)
	require.Equal(t, 1, cfg.Recording.Channels)
	require.Equal(t, 0.01, cfg.Recording.SilenceThreshold)
	require.Equal(t, 10.0, cfg.Session.SilenceGapSeconds)
	require.Equal(t, 10.0, cfg.Session.MinSessionDuration)
	require.True(t, cfg.Device.AutoDetect)
	require.True(t, cfg.Device.AutoSwitch)
	require.Equal(t, 5.0, cfg.Device.SilenceTimeoutForSwitch)
	require.NotEmpty(t, cfg.Device.FallbackDevices)
	require.Equal(t, 30, cfg.Storage.RetentionDays)
}

func TestFromYAMLMissingKeysKeepDefaults(t *testing.T) {
	doc := []byte(`
recording:
  sample_rate: 48000
storage:
  data_dir: /var/lib/sysrecorder
`)
	cfg, err := FromYAML(doc)
	require.NoError(t, err)

	require.Equal(t, 48000, cfg.Recording.SampleRate)
	require.Equal(t, "/var/lib/sysrecorder", cfg.Storage.DataDir)
	// Keys the document omits keep their defaults, including booleans
	// that default to true.
	require.Equal(t, 30.0, cfg.Recording.ChunkDurationSeconds)
	require.True(t, cfg.Device.AutoDetect)
	require.True(t, cfg.Device.AutoSwitch)
	require.Equal(t, 30, cfg.Storage.RetentionDays)
}

func TestFromYAMLExplicitFalseOverridesDefault(t *testing.T) {
	doc := []byte(`
device:
  auto_detect: false
  auto_switch: false
`)
	cfg, err := FromYAML(doc)
	require.NoError(t, err)
	require.False(t, cfg.Device.AutoDetect)
	require.False(t, cfg.Device.AutoSwitch)
}

func TestFromYAMLIgnoresUnknownKeys(t *testing.T) {
	doc := []byte(`
recording:
  chunk_duration_seconds: 15
transcription:
  model: whisper-large
`)
	cfg, err := FromYAML(doc)
	require.NoError(t, err)
	require.Equal(t, 15.0, cfg.Recording.ChunkDurationSeconds)
}

func TestFromYAMLRejectsMalformedDocument(t *testing.T) {
	_, err := FromYAML([]byte("recording: ["))
	require.Error(t, err)
}

func TestLoadReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("session:\n  silence_gap_seconds: 20\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 20.0, cfg.Session.SilenceGapSeconds)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

func TestApplyDeviceIndex(t *testing.T) {
	cfg := Default()
	require.False(t, cfg.Device.HasDevice)

	cfg.ApplyDeviceIndex(0)
	require.True(t, cfg.Device.HasDevice)
	require.Equal(t, 0, cfg.Device.Device)
}
