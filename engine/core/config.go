package core

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Config is the engine configuration read from a TOML file.
type Config struct {
	Application ApplicationConfig `toml:"application"`
	Log         LogConfig         `toml:"log"`
	Renderer    RendererConfig    `toml:"renderer"`
	Descriptors DescriptorConfig  `toml:"descriptors"`
	Lights      LightsConfig      `toml:"lights"`
}

type ApplicationConfig struct {
	Name   string `toml:"name"`
	StartX uint32 `toml:"start_x"`
	StartY uint32 `toml:"start_y"`
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type RendererConfig struct {
	FramesInFlight int        `toml:"frames_in_flight"`
	ClearColor     [4]float32 `toml:"clear_color"`
	PresentMode    string     `toml:"present_mode"`
	Validation     bool       `toml:"validation"`
}

type DescriptorConfig struct {
	MaxSets        uint32 `toml:"max_sets"`
	UniformBuffers uint32 `toml:"uniform_buffers"`
}

type LightsConfig struct {
	// Ambient holds rgb plus intensity in w.
	Ambient [4]float32 `toml:"ambient"`
}

const (
	MinFramesInFlight = 1
	MaxFramesInFlight = 3
)

func DefaultConfig() *Config {
	return &Config{
		Application: ApplicationConfig{
			Name:   "Prism",
			StartX: 100,
			StartY: 100,
			Width:  1280,
			Height: 720,
		},
		Log: LogConfig{Level: "info"},
		Renderer: RendererConfig{
			FramesInFlight: 2,
			ClearColor:     [4]float32{0.01, 0.01, 0.01, 1.0},
			PresentMode:    "mailbox",
		},
		Lights: LightsConfig{
			Ambient: [4]float32{1.0, 1.0, 1.0, 0.02},
		},
	}
}

// LoadConfig reads path on top of the defaults. A missing file is not an
// error; the defaults are returned instead.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			LogWarn("config file %s not found, using defaults", path)
			return cfg, nil
		}
		return nil, err
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, fmt.Errorf("invalid config %s at %d:%d: %w", path, row, col, err)
		}
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate fills derived defaults and rejects values the renderer cannot use.
func (c *Config) Validate() error {
	if c.Application.Width == 0 || c.Application.Height == 0 {
		return fmt.Errorf("application size must be non-zero, got %dx%d", c.Application.Width, c.Application.Height)
	}
	if c.Renderer.FramesInFlight < MinFramesInFlight || c.Renderer.FramesInFlight > MaxFramesInFlight {
		return fmt.Errorf("frames_in_flight must be in [%d,%d], got %d", MinFramesInFlight, MaxFramesInFlight, c.Renderer.FramesInFlight)
	}
	for i, v := range c.Renderer.ClearColor {
		if v < 0 || v > 1 {
			return fmt.Errorf("clear_color[%d] out of range: %f", i, v)
		}
	}
	switch c.Renderer.PresentMode {
	case "", "mailbox", "fifo", "immediate":
	default:
		return fmt.Errorf("unknown present_mode %q", c.Renderer.PresentMode)
	}
	n := uint32(c.Renderer.FramesInFlight)
	if c.Descriptors.MaxSets == 0 {
		c.Descriptors.MaxSets = n
	}
	if c.Descriptors.UniformBuffers == 0 {
		c.Descriptors.UniformBuffers = n
	}
	if c.Descriptors.MaxSets < n || c.Descriptors.UniformBuffers < n {
		return fmt.Errorf("descriptor pool too small for %d frames in flight", n)
	}
	return nil
}
