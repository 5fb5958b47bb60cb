// Package engineconfig persists user-level engine preferences as JSON,
// the way the teacher's client/internal/config package persists UI
// preferences. Device selection, default volume, and effect defaults
// survive a restart; everything else (sources, sync groups, the mixer
// itself) is constructed fresh by the caller each run.
package engineconfig

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config holds persistent engine preferences.
type Config struct {
	SampleRate       int     `json:"sample_rate"`
	Channels         int     `json:"channels"`
	BufferSizeFrames int     `json:"buffer_size_frames"`
	InputDeviceID    int     `json:"input_device_id"`
	OutputDeviceID   int     `json:"output_device_id"`
	MasterVolume     float64 `json:"master_volume"`
	AGCEnabled       bool    `json:"agc_enabled"`
	AGCTargetLevel   int     `json:"agc_target_level"`
	NoiseGateEnabled bool    `json:"noise_gate_enabled"`
	NoiseGateLevel   int     `json:"noise_gate_level"`
	RecordingDir     string  `json:"recording_dir"`
}

// Default returns a Config populated with sensible defaults.
func Default() Config {
	return Config{
		SampleRate:       48000,
		Channels:         2,
		BufferSizeFrames: 512,
		InputDeviceID:    -1,
		OutputDeviceID:   -1,
		MasterVolume:     1.0,
		AGCEnabled:       false,
		AGCTargetLevel:   50,
		NoiseGateEnabled: false,
		NoiseGateLevel:   20,
		RecordingDir:     "recordings",
	}
}

// Path returns the absolute path to the config file.
func Path() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "bken-engine", "config.json"), nil
}

// Load reads the config file and returns it. If the file is missing or
// unreadable, the default config is returned rather than an error — the
// engine must always be constructible.
func Load() Config {
	path, err := Path()
	if err != nil {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Default()
	}
	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Default()
	}
	return cfg
}

// Save writes cfg to disk, creating the directory if needed.
func Save(cfg Config) error {
	path, err := Path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
