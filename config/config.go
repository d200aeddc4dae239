// Package config loads the panel wiring and driver settings from YAML.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mklimuk/glcd"
	"github.com/mklimuk/glcd/gpio"
	"github.com/mklimuk/glcd/ks0108"
)

var ErrUnknownBackend = errors.New("unknown backend")

type Backend string

const (
	// BackendSim drives an in-memory panel.
	BackendSim Backend = "sim"
	// BackendHost drives host GPIO through periph.io.
	BackendHost Backend = "host"
	// BackendBoard drives the header of a NanoPi through gobot.
	BackendBoard Backend = "board"
	// BackendExpander drives an MCP23017 on an I2C bus.
	BackendExpander Backend = "expander"
)

var Backends = []Backend{BackendSim, BackendHost, BackendBoard, BackendExpander}

// Expander transports.
const (
	TransportMCP2221 = "mcp2221"
	TransportI2C     = "i2c"
	TransportBoard   = "board"
)

type Expander struct {
	Transport string `yaml:"transport"`
	// Device is the periph bus name for the i2c transport or the bus number
	// for the board transport.
	Device string `yaml:"device"`
	// DeviceID picks one of several MCP2221 bridges.
	DeviceID   int         `yaml:"device_id"`
	Address    uint8       `yaml:"address"`
	Bank       int         `yaml:"bank"`
	Speed      int         `yaml:"speed"`
	RetryLimit int         `yaml:"retry_limit"`
	Pins       glcd.PinMap `yaml:"pins"`
}

type Timing struct {
	Strobe      time.Duration `yaml:"strobe"`
	ResetPulse  time.Duration `yaml:"reset_pulse"`
	PatternStep time.Duration `yaml:"pattern_step"`
}

type Config struct {
	Backend  Backend     `yaml:"backend"`
	Pins     glcd.PinMap `yaml:"pins"`
	Expander Expander    `yaml:"expander"`
	Timing   Timing      `yaml:"timing"`
	// LegacyClamp clamps out of range columns to the left chip.
	LegacyClamp bool `yaml:"legacy_clamp"`
	// Rotated is set for panels mounted upside down.
	Rotated bool   `yaml:"rotated"`
	Font    string `yaml:"font"`
}

func Default() Config {
	return Config{
		Backend: BackendSim,
		Pins:    glcd.DefaultPinMap(),
		Expander: Expander{
			Transport:  TransportMCP2221,
			Device:     "",
			Address:    gpio.DefaultMCP23017Address,
			Speed:      100_000,
			RetryLimit: 3,
			Pins:       gpio.DefaultPinMap(),
		},
		Timing: Timing{
			PatternStep: 100 * time.Millisecond,
		},
		Font: "tomthumb",
	}
}

// Load reads path over the defaults. Unknown keys are rejected.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("could not open config file: %w", err)
	}
	defer f.Close()
	return Read(f)
}

func Read(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("could not decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	known := false
	for _, b := range Backends {
		if c.Backend == b {
			known = true
		}
	}
	if !known {
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Backend)
	}
	if c.Backend == BackendExpander {
		switch c.Expander.Transport {
		case TransportMCP2221, TransportI2C, TransportBoard:
		default:
			return fmt.Errorf("unknown expander transport %q", c.Expander.Transport)
		}
		if c.Expander.Bank != 0 && c.Expander.Bank != 1 {
			return fmt.Errorf("invalid expander bank %d", c.Expander.Bank)
		}
	}
	if c.Timing.Strobe < 0 || c.Timing.ResetPulse < 0 || c.Timing.PatternStep < 0 {
		return fmt.Errorf("negative timing")
	}
	return nil
}

// DriverOpts translates the settings into panel driver options.
func (c Config) DriverOpts() []ks0108.Opt {
	opts := []ks0108.Opt{
		ks0108.WithStrobeDelay(c.Timing.Strobe),
		ks0108.WithResetPulse(c.Timing.ResetPulse),
		ks0108.WithTestPatternStep(c.Timing.PatternStep),
	}
	if c.LegacyClamp {
		opts = append(opts, ks0108.WithLegacyClamp())
	}
	return opts
}

// Write encodes the configuration as YAML.
func (c Config) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("could not encode config: %w", err)
	}
	return enc.Close()
}
