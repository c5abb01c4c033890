// Package config holds the typed configuration consumed by the
// recorder and the device supervisor.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the structured configuration document described in the
// system's Cfg component. Unknown keys in a parsed document are
// ignored by yaml.v3's default unmarshal behavior; missing keys take
// the defaults applied by Default.
type Config struct {
	Recording RecordingConfig `yaml:"recording"`
	Session   SessionConfig   `yaml:"session"`
	Device    DeviceConfig    `yaml:"device"`
	Storage   StorageConfig   `yaml:"storage"`
}

// RecordingConfig governs the chunked recorder's capture parameters.
type RecordingConfig struct {
	ChunkDurationSeconds float64 `yaml:"chunk_duration_seconds"`
	SampleRate           int     `yaml:"sample_rate"`
	Channels             int     `yaml:"channels"`
	SilenceThreshold     float64 `yaml:"silence_threshold"`
}

// SessionConfig governs session segmentation policy.
type SessionConfig struct {
	SilenceGapSeconds  float64 `yaml:"silence_gap_seconds"`
	MinSessionDuration float64 `yaml:"min_session_duration"`
}

// DeviceConfig governs device resolution and hot-swap behavior.
type DeviceConfig struct {
	AutoDetect              bool     `yaml:"auto_detect"`
	AutoSwitch              bool     `yaml:"auto_switch"`
	SilenceTimeoutForSwitch float64  `yaml:"silence_timeout_for_switch"`
	PreferredDevice         string   `yaml:"preferred_device"`
	Device                  int      `yaml:"device"`
	HasDevice               bool     `yaml:"-"`
	FallbackDevices         []string `yaml:"fallback_devices"`
}

// StorageConfig governs where chunks/catalog live and retention.
type StorageConfig struct {
	DataDir       string `yaml:"data_dir"`
	RetentionDays int    `yaml:"retention_days"`
}

// Default returns the configuration with every explicit default
// applied.
func Default() *Config {
	return &Config{
		Recording: RecordingConfig{
			ChunkDurationSeconds: 30,
			SampleRate:           16000,
			Channels:             1,
			SilenceThreshold:     0.01,
		},
		Session: SessionConfig{
			SilenceGapSeconds:  10,
			MinSessionDuration: 10,
		},
		Device: DeviceConfig{
			AutoDetect:              true,
			AutoSwitch:              true,
			SilenceTimeoutForSwitch: 5.0,
			FallbackDevices: []string{
				"Voicemeeter Out B1",
				"Stereo Mix",
				"CABLE Output",
			},
		},
		Storage: StorageConfig{
			DataDir:       "data",
			RetentionDays: 30,
		},
	}
}

// Load reads a YAML document from path; any key the document omits
// keeps its default value.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return FromYAML(data)
}

// FromYAML parses a YAML document into a Config seeded with defaults,
// so any key the document omits keeps its default value (including
// the auto_detect/auto_switch booleans, which default to true and
// would otherwise be indistinguishable from an explicit "false" after
// a zero-value unmarshal). Unknown keys are silently ignored, matching
// yaml.v3's default unmarshal behavior.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config document: %w", err)
	}
	return cfg, nil
}

// ApplyDeviceIndex records that an explicit device index was supplied
// (distinct from the zero value, which is a valid malgo-less default
// meaning "no explicit index").
func (c *Config) ApplyDeviceIndex(index int) {
	c.Device.Device = index
	c.Device.HasDevice = true
}
