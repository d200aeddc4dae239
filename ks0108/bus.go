package ks0108

import (
	"context"
	"fmt"
	"time"

	"github.com/mklimuk/glcd"
)

// Direction of the data bus as seen from the host.
type Direction int

const (
	Write Direction = iota
	Read
)

func (d Direction) String() string {
	if d == Read {
		return "read"
	}
	return "write"
}

// Status bits as driven by the panel on DB0..DB7 during a status read.
const (
	statusBitReset = 4
	statusBitOnOff = 5 // low when the display is on
	statusBitBusy  = 7
)

// Status is a snapshot of the panel status register. It is valid only for
// the read that produced it.
type Status struct {
	DisplayOn bool `yaml:"display_on"`
	Resetting bool `yaml:"resetting"`
	Busy      bool `yaml:"busy"`
}

// bus owns the data lines, the read/write line and the enable strobe.
type bus struct {
	pins        glcd.Pins
	strobeDelay time.Duration
}

// setDirection reconfigures the data lines. Going to Read, the lines are
// released before RW is raised; going to Write, RW is lowered before the host
// starts driving them. Reversing either order lets both sides drive the bus.
func (b *bus) setDirection(ctx context.Context, dir Direction) error {
	switch dir {
	case Read:
		for i, l := range b.pins.DB {
			if err := l.In(ctx); err != nil {
				return fmt.Errorf("could not release data line %d: %w", i, err)
			}
		}
		if err := b.pins.RW.Out(ctx, glcd.High); err != nil {
			return fmt.Errorf("could not assert read mode: %w", err)
		}
	default:
		if err := b.pins.RW.Out(ctx, glcd.Low); err != nil {
			return fmt.Errorf("could not assert write mode: %w", err)
		}
		for i, l := range b.pins.DB {
			if err := l.Out(ctx, glcd.Low); err != nil {
				return fmt.Errorf("could not drive data line %d: %w", i, err)
			}
		}
	}
	return nil
}

// setRegister selects the command register (false) or display memory (true).
func (b *bus) setRegister(ctx context.Context, memory bool) error {
	if err := b.pins.DI.Out(ctx, glcd.Level(memory)); err != nil {
		return fmt.Errorf("could not select register: %w", err)
	}
	return nil
}

// strobe pulses E low then high; the panel latches the bus on the pulse.
func (b *bus) strobe(ctx context.Context) error {
	if err := b.pins.E.Out(ctx, glcd.Low); err != nil {
		return fmt.Errorf("could not lower enable line: %w", err)
	}
	b.settle()
	if err := b.pins.E.Out(ctx, glcd.High); err != nil {
		return fmt.Errorf("could not raise enable line: %w", err)
	}
	b.settle()
	return nil
}

func (b *bus) settle() {
	if b.strobeDelay > 0 {
		time.Sleep(b.strobeDelay)
	}
}

// writeByte puts value on the bus, bit 0 on DB0.
func (b *bus) writeByte(ctx context.Context, value byte) error {
	if err := b.setDirection(ctx, Write); err != nil {
		return err
	}
	for i, l := range b.pins.DB {
		if err := l.Out(ctx, glcd.Level(value&(1<<i) != 0)); err != nil {
			return fmt.Errorf("could not drive data line %d: %w", i, err)
		}
	}
	return nil
}

func (b *bus) readStatus(ctx context.Context) (Status, error) {
	var st Status
	if err := b.setDirection(ctx, Read); err != nil {
		return st, err
	}
	if err := b.setRegister(ctx, false); err != nil {
		return st, err
	}
	on, err := b.pins.DB[statusBitOnOff].Read(ctx)
	if err != nil {
		return st, fmt.Errorf("could not read on/off flag: %w", err)
	}
	reset, err := b.pins.DB[statusBitReset].Read(ctx)
	if err != nil {
		return st, fmt.Errorf("could not read reset flag: %w", err)
	}
	busy, err := b.pins.DB[statusBitBusy].Read(ctx)
	if err != nil {
		return st, fmt.Errorf("could not read busy flag: %w", err)
	}
	st.DisplayOn = on == glcd.Low
	st.Resetting = reset == glcd.High
	st.Busy = busy == glcd.High
	return st, nil
}
