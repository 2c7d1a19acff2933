// Package config loads narr settings from a TOML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

const fileName = "config.toml"

// Config holds narration settings. Flags override file values.
type Config struct {
	WPM          int      `toml:"wpm"`
	Voice        string   `toml:"voice"`
	Lang         string   `toml:"lang"`
	Rate         float64  `toml:"rate"`
	Pitch        float64  `toml:"pitch"`
	SpeakCommand string   `toml:"speak_command"`
	Silent       bool     `toml:"silent"`
	SeekDelay    Duration `toml:"seek_delay"`
	ReadyTimeout Duration `toml:"ready_timeout"`
	LogPath      string   `toml:"log_path"`
}

// Duration is a time.Duration written as a string such as "100ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		WPM:          175,
		Lang:         "en",
		Rate:         1,
		Pitch:        1,
		SpeakCommand: "espeak-ng",
		SeekDelay:    Duration{100 * time.Millisecond},
		ReadyTimeout: Duration{10 * time.Second},
	}
}

// Path returns XDG_CONFIG_HOME/narr/config.toml or ~/.config/narr/config.toml
func Path() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "narr", fileName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "narr", fileName)
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	_, err := toml.DecodeFile(path, &cfg)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return Default(), fmt.Errorf("failed to load config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.WPM < 0 {
		return fmt.Errorf("wpm must not be negative, got %d", c.WPM)
	}
	if c.Rate < 0 || c.Rate > 10 {
		return fmt.Errorf("rate must be between 0 and 10, got %g", c.Rate)
	}
	if c.Pitch < 0 || c.Pitch > 2 {
		return fmt.Errorf("pitch must be between 0 and 2, got %g", c.Pitch)
	}
	if c.SeekDelay.Duration < 0 || c.SeekDelay.Duration > time.Second {
		return fmt.Errorf("seek_delay must be between 0 and 1s, got %s", c.SeekDelay)
	}
	return nil
}

// Save writes c to path, creating its directory.
func (c Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(c)
}
