package glcd

import (
	"context"
	"errors"
	"fmt"
)

var ErrBusBusy = fmt.Errorf("I2C engine is busy (command not completed)")

var ErrMissingLine = errors.New("panel line not connected")

// Level is the logic level of a single line.
type Level bool

const (
	Low  Level = false
	High Level = true
)

func (l Level) String() string {
	if l {
		return "High"
	}
	return "Low"
}

// Line is one host-controlled line of the panel connector.
//
// Out configures the line as an output and drives it to level. In releases
// the line (input, high impedance) so the panel may drive it. Read samples
// the current level.
type Line interface {
	Out(ctx context.Context, level Level) error
	In(ctx context.Context) error
	Read(ctx context.Context) (Level, error)
}

// Pins is the full set of lines a dual-controller panel is wired to.
type Pins struct {
	Reset Line
	// CS1 selects the left chip, CS2 the right one.
	CS1 Line
	CS2 Line
	// DI low selects the command register, high the display memory.
	DI Line
	// RW low is write, high is read.
	RW Line
	// E latches the bus; it rests high.
	E  Line
	DB [8]Line
}

// Validate reports the first line that is not connected.
func (p Pins) Validate() error {
	named := []struct {
		name string
		line Line
	}{
		{"RST", p.Reset},
		{"CS1", p.CS1},
		{"CS2", p.CS2},
		{"DI", p.DI},
		{"RW", p.RW},
		{"E", p.E},
	}
	for _, n := range named {
		if n.line == nil {
			return fmt.Errorf("%s: %w", n.name, ErrMissingLine)
		}
	}
	for i, l := range p.DB {
		if l == nil {
			return fmt.Errorf("DB%d: %w", i, ErrMissingLine)
		}
	}
	return nil
}

type AddressableReader interface {
	ReadFromAddr(ctx context.Context, address byte, buffer []byte) error
}

type AddressableWriter interface {
	WriteToAddr(ctx context.Context, address byte, buffer []byte) error
	Release(ctx context.Context) error
}

// I2CBus carries register traffic for port expanders driving the panel.
type I2CBus interface {
	AddressableReader
	AddressableWriter
}
