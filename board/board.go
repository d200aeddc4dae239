// Package board drives panel lines from the GPIO header of a single-board
// computer through gobot.
package board

import (
	"context"
	"fmt"
	"log/slog"

	"gobot.io/x/gobot/v2"
	"gobot.io/x/gobot/v2/platforms/friendlyelec/nanopi"
	"gobot.io/x/gobot/v2/system"

	"github.com/mklimuk/glcd"
)

// DigitalPin is the part of gobot.DigitalPinner a panel line needs.
type DigitalPin interface {
	Read() (int, error)
	Write(int) error
	ApplyOptions(...func(gobot.DigitalPinOptioner) bool) error
}

// Board is a connected NanoPi NEO adaptor.
type Board struct {
	adaptor *nanopi.Adaptor
}

func Connect() (*Board, error) {
	a := nanopi.NewNeoAdaptor()
	if err := a.Connect(); err != nil {
		return nil, fmt.Errorf("adaptor connect error: %w", err)
	}
	return &Board{adaptor: a}, nil
}

// Pins resolves the pin map against header pin names of the board.
func (b *Board) Pins(m glcd.PinMap) (glcd.Pins, error) {
	return OpenPins(func(id string) (DigitalPin, error) {
		p, err := b.adaptor.DigitalPin(id)
		if err != nil {
			return nil, err
		}
		return p, nil
	}, m)
}

// I2C returns a transport on bus busNr of the board.
func (b *Board) I2C(busNr int) *I2C {
	return NewI2C(b.adaptor, busNr)
}

func (b *Board) Close() error {
	return b.adaptor.Finalize()
}

func OpenPins(open func(id string) (DigitalPin, error), m glcd.PinMap) (glcd.Pins, error) {
	return m.Open(func(id string) (glcd.Line, error) {
		p, err := open(id)
		if err != nil {
			return nil, err
		}
		return NewLine(id, p), nil
	})
}

type direction int

const (
	unknown direction = iota
	input
	output
)

// Line is a gobot digital pin used as a panel line. The pin is reconfigured
// only when the requested direction differs from the last one applied.
type Line struct {
	id  string
	pin DigitalPin
	dir direction
}

func NewLine(id string, pin DigitalPin) *Line {
	return &Line{id: id, pin: pin}
}

func (l *Line) Out(_ context.Context, level glcd.Level) error {
	v := 0
	if level {
		v = 1
	}
	if l.dir != output {
		if err := l.pin.ApplyOptions(system.WithPinDirectionOutput(v)); err != nil {
			return fmt.Errorf("pin %s: could not switch to output: %w", l.id, err)
		}
		slog.Debug("board: pin direction changed", "pin", l.id, "direction", "out")
		l.dir = output
	}
	if err := l.pin.Write(v); err != nil {
		return fmt.Errorf("pin %s: %w", l.id, err)
	}
	return nil
}

func (l *Line) In(_ context.Context) error {
	if l.dir == input {
		return nil
	}
	if err := l.pin.ApplyOptions(system.WithPinDirectionInput()); err != nil {
		return fmt.Errorf("pin %s: could not switch to input: %w", l.id, err)
	}
	l.dir = input
	return nil
}

func (l *Line) Read(_ context.Context) (glcd.Level, error) {
	v, err := l.pin.Read()
	if err != nil {
		return glcd.Low, fmt.Errorf("pin %s: %w", l.id, err)
	}
	return glcd.Level(v != 0), nil
}

func (l *Line) String() string {
	return "board pin " + l.id
}
