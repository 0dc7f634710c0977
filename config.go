package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v2"

	"github.com/thiefmaster/matrixctl/apis"
	"github.com/thiefmaster/matrixctl/bitmap"
	"github.com/thiefmaster/matrixctl/comm"
)

type paletteConfig struct {
	MaxColors int     `yaml:"maxColors" toml:"maxColors"`
	Threshold *uint32 `yaml:"threshold" toml:"threshold"`
	Exact     bool    `yaml:"exact" toml:"exact"`
}

type scrollConfig struct {
	Interval time.Duration `yaml:"interval" toml:"interval"`
	Color    string        `yaml:"color" toml:"color"`
}

type appConfig struct {
	Port        string               `yaml:"port" toml:"port"`
	Baud        int                  `yaml:"baud" toml:"baud"`
	ReadTimeout time.Duration        `yaml:"readTimeout" toml:"readTimeout"`
	Listen      string               `yaml:"listen" toml:"listen"`
	Brightness  *int                 `yaml:"brightness" toml:"brightness"`
	Palette     paletteConfig        `yaml:"palette" toml:"palette"`
	Scroll      scrollConfig         `yaml:"scroll" toml:"scroll"`
	Feed        apis.HTTPCredentials `yaml:"feed" toml:"feed"`
}

func (c *appConfig) load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("could not open config file: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		md, err := toml.Decode(string(data), c)
		if err != nil {
			return fmt.Errorf("could not parse config file: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return fmt.Errorf("could not parse config file: unknown keys %v", undecoded)
		}
		return nil
	}
	if err = yaml.UnmarshalStrict(data, c); err != nil {
		return fmt.Errorf("could not parse config file: %w", err)
	}
	return nil
}

func (c *appConfig) applyDefaults() {
	if c.Port == "" {
		c.Port = "/dev/rfcomm0"
	}
	if c.Baud == 0 {
		c.Baud = 115200
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 100 * time.Millisecond
	}
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8787"
	}
	if c.Scroll.Interval == 0 {
		c.Scroll.Interval = 200 * time.Millisecond
	}
	if c.Scroll.Color == "" {
		c.Scroll.Color = "#ffffff"
	}
}

func (c *appConfig) validate() error {
	if c.Brightness != nil && (*c.Brightness < 0 || *c.Brightness > 100) {
		return fmt.Errorf("brightness must be between 0 and 100, got %d", *c.Brightness)
	}
	if _, err := bitmap.ParseColor(c.Scroll.Color); err != nil {
		return err
	}
	_, err := c.encoder()
	return err
}

func (c *appConfig) serial() comm.Config {
	return comm.Config{Name: c.Port, Baud: c.Baud, ReadTimeout: c.ReadTimeout}
}

func (c *appConfig) encoder() (*bitmap.Encoder, error) {
	enc := bitmap.NewEncoder()
	if c.Palette.Exact {
		enc = bitmap.NewExactEncoder()
	}
	if c.Palette.MaxColors != 0 {
		enc.MaxColors = c.Palette.MaxColors
	}
	if c.Palette.Threshold != nil {
		enc.Threshold = *c.Palette.Threshold
	}
	if enc.MaxColors < 1 || enc.MaxColors > bitmap.MaxPaletteColors {
		return nil, fmt.Errorf("%w: palette.maxColors must be between 1 and %d", bitmap.ErrInvalidOptions, bitmap.MaxPaletteColors)
	}
	return enc, nil
}

func (c *appConfig) textColor() bitmap.Color {
	fg, _ := bitmap.ParseColor(c.Scroll.Color)
	return fg
}

func loadConfig(path string) (*appConfig, error) {
	c := &appConfig{}
	if path != "" {
		if err := c.load(path); err != nil {
			return nil, err
		}
	}
	c.applyDefaults()
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return c, nil
}
