// Package hostpin drives panel lines from the GPIO pins of the host through
// periph.io.
package hostpin

import (
	"context"
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/mklimuk/glcd"
)

// ErrUnknownPin is returned when the host has no pin of the requested name.
var ErrUnknownPin = fmt.Errorf("pin not found in gpio registry")

// Open initializes the host drivers and resolves the pin map against the
// periph GPIO registry.
func Open(m glcd.PinMap) (glcd.Pins, error) {
	if _, err := host.Init(); err != nil {
		return glcd.Pins{}, fmt.Errorf("could not initialize host drivers: %w", err)
	}
	return OpenPins(gpioreg.ByName, m)
}

// OpenPins resolves the pin map with lookup.
func OpenPins(lookup func(name string) gpio.PinIO, m glcd.PinMap) (glcd.Pins, error) {
	return m.Open(func(name string) (glcd.Line, error) {
		p := lookup(name)
		if p == nil {
			return nil, ErrUnknownPin
		}
		return Line{pin: p}, nil
	})
}

// Line adapts a periph pin to a panel line.
type Line struct {
	pin gpio.PinIO
}

func New(pin gpio.PinIO) Line {
	return Line{pin: pin}
}

func (l Line) Out(_ context.Context, level glcd.Level) error {
	if err := l.pin.Out(gpio.Level(level)); err != nil {
		return fmt.Errorf("%s: %w", l.pin.Name(), err)
	}
	return nil
}

func (l Line) In(_ context.Context) error {
	if err := l.pin.In(gpio.Float, gpio.NoEdge); err != nil {
		return fmt.Errorf("%s: %w", l.pin.Name(), err)
	}
	return nil
}

func (l Line) Read(_ context.Context) (glcd.Level, error) {
	return glcd.Level(l.pin.Read()), nil
}

func (l Line) String() string {
	return l.pin.String()
}
