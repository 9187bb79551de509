package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

type Config struct {
	ProjectPath string  `yaml:"project" toml:"project"`
	OutputPath  string  `yaml:"output" toml:"output"`
	FPS         int     `yaml:"fps" toml:"fps"`
	Workers     int     `yaml:"workers" toml:"workers"`
	BakeSteps   int     `yaml:"bake_steps" toml:"bake_steps"`
	Tolerance   float64 `yaml:"tolerance" toml:"tolerance"`
	ShowStats   bool    `yaml:"show_stats" toml:"show_stats"`

	Damping DampingConfig `yaml:"damping" toml:"damping"`
	Preview PreviewConfig `yaml:"preview" toml:"preview"`
	Server  ServerConfig  `yaml:"server" toml:"server"`

	BuildVersion string `yaml:"-" toml:"-"`
}

type DampingConfig struct {
	SmoothTime    float64 `yaml:"smooth_time" toml:"smooth_time"` // seconds
	MaxSpeed      float64 `yaml:"max_speed" toml:"max_speed"`     // progress per second, 0 unlimited
	ReducedMotion bool    `yaml:"reduced_motion" toml:"reduced_motion"`
}

type PreviewConfig struct {
	Width       int    `yaml:"width" toml:"width"`
	Height      int    `yaml:"height" toml:"height"`
	Samples     int    `yaml:"samples" toml:"samples"`
	Supersample int    `yaml:"supersample" toml:"supersample"`
	Format      string `yaml:"format" toml:"format"` // png or webp
}

type ServerConfig struct {
	Addr       string `yaml:"addr" toml:"addr"`
	PublicURL  string `yaml:"public_url" toml:"public_url"` // encoded in the QR code, defaults to http://Addr
	QRCodePath string `yaml:"qr_code" toml:"qr_code"`
	Watch      bool   `yaml:"watch" toml:"watch"`
	DebounceMs int    `yaml:"debounce_ms" toml:"debounce_ms"`
}

// Default returns the settings used when no config file is given.
func Default() *Config {
	return &Config{
		FPS:       60,
		BakeSteps: 200,
		Tolerance: 1e-9,
		Damping: DampingConfig{
			SmoothTime: 0.25,
		},
		Preview: PreviewConfig{
			Width:       1280,
			Height:      720,
			Samples:     256,
			Supersample: 2,
			Format:      "png",
		},
		Server: ServerConfig{
			Addr:       "localhost:8080",
			Watch:      true,
			DebounceMs: 150,
		},
	}
}

// Load reads a YAML (.yaml, .yml) or TOML (.toml) file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects values the engine cannot run with.
func (c *Config) Validate() error {
	if c.FPS <= 0 {
		return fmt.Errorf("fps must be positive, got %d", c.FPS)
	}
	if c.BakeSteps <= 0 {
		return fmt.Errorf("bake_steps must be positive, got %d", c.BakeSteps)
	}
	if c.Tolerance < 0 {
		return fmt.Errorf("tolerance must not be negative")
	}
	if c.Damping.SmoothTime < 0 || c.Damping.MaxSpeed < 0 {
		return fmt.Errorf("damping values must not be negative")
	}
	if f := strings.ToLower(c.Preview.Format); f != "png" && f != "webp" {
		return fmt.Errorf("unknown preview format %q", c.Preview.Format)
	}
	return nil
}
