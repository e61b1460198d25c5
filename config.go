package rack

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type (
	Config struct {
		Audio AudioConfig `yaml:"audio"`
		Graph GraphConfig `yaml:"graph"`
		Meter MeterConfig `yaml:"meter"`
		Log   LogConfig   `yaml:"log"`
	}

	AudioConfig struct {
		SampleRate  float64     `yaml:"sampleRate"`
		LatencyHint LatencyHint `yaml:"latencyHint"`
		Channels    int         `yaml:"channels"`
	}

	GraphConfig struct {
		MaxConnections int `yaml:"maxConnections"`
	}

	MeterConfig struct {
		IntervalMs int `yaml:"intervalMs"`
	}

	LogConfig struct {
		Level string `yaml:"level"`
	}
)

const (
	MinSampleRate = 8000
	MaxSampleRate = 384000
)

//go:embed config.yml
var defaultConfigYaml []byte

// DefaultConfig returns the embedded defaults.
func DefaultConfig() Config {
	var c Config
	if err := decodeConfig(defaultConfigYaml, &c); err != nil {
		panic(fmt.Errorf("failed to unmarshal default config: %w", err))
	}
	return c
}

func decodeConfig(b []byte, target *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(target); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// LoadConfig overlays the YAML file at path on the defaults. Fields missing
// from the file keep their default values.
func LoadConfig(path string) (Config, error) {
	c := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("read config: %w", err)
	}
	if err := decodeConfig(b, &c); err != nil {
		return c, fmt.Errorf("parse config %v: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("config %v: %w", path, err)
	}
	return c, nil
}

// UserConfig loads rack/config.yml from the user config directory, falling
// back to the defaults when the file does not exist.
func UserConfig() (Config, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return DefaultConfig(), nil
	}
	c, err := LoadConfig(filepath.Join(configDir, "rack", "config.yml"))
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultConfig(), nil
	}
	return c, err
}

func (c Config) Validate() error {
	if c.Audio.SampleRate < MinSampleRate || c.Audio.SampleRate > MaxSampleRate {
		return fmt.Errorf("sample rate %v outside %v..%v", c.Audio.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if c.Audio.Channels < 1 || c.Audio.Channels > 2 {
		return fmt.Errorf("channels must be 1 or 2, got %d", c.Audio.Channels)
	}
	switch c.Audio.LatencyHint {
	case LatencyInteractive, LatencyBalanced, LatencyPlayback:
	default:
		return fmt.Errorf("unknown latency hint %q", c.Audio.LatencyHint)
	}
	if c.Graph.MaxConnections <= 0 {
		return fmt.Errorf("max connections must be positive, got %d", c.Graph.MaxConnections)
	}
	if c.Meter.IntervalMs <= 0 {
		return fmt.Errorf("meter interval must be positive, got %d", c.Meter.IntervalMs)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	return nil
}

func (c Config) ContextOptions() ContextOptions {
	return ContextOptions{SampleRate: c.Audio.SampleRate, LatencyHint: c.Audio.LatencyHint, Channels: c.Audio.Channels}
}

func (c Config) GraphOptions(logger *slog.Logger) GraphOptions {
	return GraphOptions{MaxConnections: c.Graph.MaxConnections, Logger: logger}
}

func (c Config) MeterInterval() time.Duration {
	return time.Duration(c.Meter.IntervalMs) * time.Millisecond
}

// SlogLevel parses the level name (debug, info, warn, error).
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return level, fmt.Errorf("log level: %w", err)
	}
	return level, nil
}
