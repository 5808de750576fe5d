// Package config manages persistent settings for the audiodevice host
// program. Settings are stored as JSON at
// os.UserConfigDir()/rarity/config.json.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config holds all persistent host-program preferences.
type Config struct {
	InputDeviceID  int           `json:"input_device_id"`
	OutputDeviceID int           `json:"output_device_id"`
	BlockFrames    int           `json:"block_frames"`
	Volume         float64       `json:"volume"`
	RelayKbps      int           `json:"relay_kbps"`
	NoiseGateOn    bool          `json:"noise_gate_on"`
	NoiseGateLevel int           `json:"noise_gate_level"`
	Relays         []RelayEntry  `json:"relays"`
	Presets        []PresetEntry `json:"presets"`
}

// RelayEntry is a saved netrelay peer address, shown to the operator when
// picking where to bridge a graph's audio.
type RelayEntry struct {
	Name string `json:"name"`
	Addr string `json:"addr"`
}

// PresetEntry names a saved set of node parameter values, keyed by node name
// and parameter name, so a graph can be reconfigured to a known sound in one
// step.
type PresetEntry struct {
	Name   string             `json:"name"`
	Values map[string]float64 `json:"values"`
}

// Default returns a Config populated with sensible defaults.
func Default() Config {
	return Config{
		BlockFrames:    960,
		Volume:         1.0,
		RelayKbps:      32,
		NoiseGateLevel: 80,
		InputDeviceID:  -1,
		OutputDeviceID: -1,
		Relays: []RelayEntry{
			{Name: "Local Dev", Addr: "localhost:4433"},
		},
	}
}

// Path returns the absolute path to the config file.
func Path() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "rarity", "config.json"), nil
}

// Load reads the config file and returns it. If the file is missing or
// unreadable, the default config is returned â€” never an error.
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
