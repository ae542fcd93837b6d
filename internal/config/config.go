// Package config loads beadboard settings from YAML.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/maax3v3/beadboard/internal/aggregation"
	"github.com/maax3v3/beadboard/internal/board"
	"github.com/maax3v3/beadboard/internal/history"
	"github.com/maax3v3/beadboard/internal/imaging"
	"github.com/maax3v3/beadboard/internal/palette"
	"github.com/maax3v3/beadboard/internal/renderer"
	"github.com/maax3v3/beadboard/internal/session"
)

// Config holds all beadboard configuration.
type Config struct {
	Board   BoardConfig  `yaml:"board"`
	Render  RenderConfig `yaml:"render"`
	Merge   MergeConfig  `yaml:"merge"`
	Server  ServerConfig `yaml:"server"`
	Palette string       `yaml:"palette"` // YAML/JSON palette file; empty uses the stock palette
}

// BoardConfig sets up a new board.
type BoardConfig struct {
	Width           int   `yaml:"width"`
	Height          int   `yaml:"height"`
	LockAspectRatio *bool `yaml:"lock_aspect_ratio"`
	HistoryCapacity int   `yaml:"history_capacity"`
}

// RenderConfig controls image export.
type RenderConfig struct {
	CellSize    int `yaml:"cell_size"`
	LegendWidth int `yaml:"legend_width"`
}

// MergeConfig controls rare-color merging.
type MergeConfig struct {
	Threshold float64 `yaml:"threshold"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
}

func (c *Config) defaults() {
	if c.Board.Width <= 0 {
		c.Board.Width = 15
	}
	if c.Board.Height <= 0 {
		c.Board.Height = 15
	}
	c.Board.Width = board.Clamp(c.Board.Width)
	c.Board.Height = board.Clamp(c.Board.Height)
	if c.Board.LockAspectRatio == nil {
		lock := true
		c.Board.LockAspectRatio = &lock
	}
	if c.Board.HistoryCapacity <= 0 || c.Board.HistoryCapacity > history.DefaultCapacity {
		c.Board.HistoryCapacity = history.DefaultCapacity
	}
	if c.Render.CellSize <= 0 {
		c.Render.CellSize = renderer.DefaultConfig().CellSize
	}
	if c.Render.LegendWidth <= 0 {
		c.Render.LegendWidth = renderer.DefaultConfig().LegendWidth
	}
	if c.Merge.Threshold <= 0 || c.Merge.Threshold >= 1 {
		c.Merge.Threshold = aggregation.DefaultThreshold
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout <= 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout <= 0 {
		c.Server.WriteTimeout = 60 * time.Second
	}
	if c.Server.MaxUploadBytes <= 0 {
		c.Server.MaxUploadBytes = 32 << 20
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.defaults()
	return cfg
}

// LoadConfigFile reads a YAML config file. Missing fields take their
// defaults.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(imaging.ExpandPath(path))
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.defaults()
	return cfg, nil
}

// LoadPalette returns the configured palette file, or the stock palette
// when none is set.
func (c *Config) LoadPalette() (palette.Palette, error) {
	if c.Palette == "" {
		return palette.Default(), nil
	}
	return palette.LoadFile(imaging.ExpandPath(c.Palette))
}

// SessionOptions builds session options from the board settings.
func (c *Config) SessionOptions(p palette.Palette, logger *slog.Logger) session.Options {
	return session.Options{
		Width:           c.Board.Width,
		Height:          c.Board.Height,
		LockAspectRatio: *c.Board.LockAspectRatio,
		HistoryCapacity: c.Board.HistoryCapacity,
		Palette:         p,
		Logger:          logger,
	}
}

// Renderer returns the render settings on top of the renderer defaults.
func (c *Config) Renderer() renderer.Config {
	rc := renderer.DefaultConfig()
	rc.CellSize = c.Render.CellSize
	rc.LegendWidth = c.Render.LegendWidth
	return rc
}
