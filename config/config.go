package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"go-midihub/sequencer"
)

// PortsConfig names the devices the hub connects to
type PortsConfig struct {
	Input  string `json:"input,omitempty"`
	Output string `json:"output,omitempty"`
}

// MetronomeConfig defines the metronome tick
type MetronomeConfig struct {
	Pitch      uint8 `json:"pitch"`
	Velocity   uint8 `json:"velocity"`
	DurationMs int   `json:"durationMs"`
	Channel    uint8 `json:"channel,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	Ports           PortsConfig     `json:"ports,omitempty"`
	Texture         string          `json:"texture"`
	Passthrough     bool            `json:"passthrough"`
	QPM             float64         `json:"qpm"`
	Metronome       MetronomeConfig `json:"metronome"`
	PlaybackChannel uint8           `json:"playbackChannel,omitempty"`
	Palette         string          `json:"palette,omitempty"` // GIMP .gpl file, built-in if empty
	Debug           bool            `json:"debug,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Texture:     sequencer.Monophonic.String(),
		Passthrough: true,
		QPM:         120,
		Metronome: MetronomeConfig{
			Pitch:      sequencer.DefaultTickPitch,
			Velocity:   sequencer.DefaultTickVelocity,
			DurationMs: int(sequencer.DefaultTickDuration / time.Millisecond),
		},
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-midihub"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found.
// Fields missing from the file keep their defaults.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	path, err := ConfigPath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// HubTexture parses the configured texture
func (c *Config) HubTexture() (sequencer.Texture, error) {
	return sequencer.ParseTexture(c.Texture)
}

// MetronomeOptions converts the tick settings. Zero values keep the
// metronome defaults.
func (c *Config) MetronomeOptions() []sequencer.MetronomeOption {
	m := c.Metronome
	opts := []sequencer.MetronomeOption{sequencer.WithTickChannel(m.Channel)}
	if m.Pitch != 0 {
		opts = append(opts, sequencer.WithTickPitch(m.Pitch))
	}
	if m.Velocity != 0 {
		opts = append(opts, sequencer.WithTickVelocity(m.Velocity))
	}
	if m.DurationMs > 0 {
		opts = append(opts, sequencer.WithTickDuration(time.Duration(m.DurationMs)*time.Millisecond))
	}
	return opts
}

// HubOptions returns the options for a hub built from this config
func (c *Config) HubOptions() []sequencer.HubOption {
	return []sequencer.HubOption{
		sequencer.WithMetronomeOptions(c.MetronomeOptions()...),
		sequencer.WithPlayerOptions(sequencer.WithPlaybackChannel(c.PlaybackChannel)),
	}
}
