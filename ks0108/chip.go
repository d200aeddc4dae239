package ks0108

import (
	"context"
	"fmt"

	"github.com/mklimuk/glcd"
)

const (
	cmdDisplayOnOff byte = 0x3E
	cmdSetAddress   byte = 0x40
	cmdSetPage      byte = 0xB8
	cmdStartLine    byte = 0xC0
)

// selectChips changes the chip select lines. The status read beforehand
// leaves the bus released and in read mode, so a chip that becomes selected
// cannot take whatever is left on the bus for a command.
func (d *Dev) selectChips(ctx context.Context, left, right bool) error {
	if _, err := d.bus.readStatus(ctx); err != nil {
		return fmt.Errorf("could not read status before chip select: %w", err)
	}
	if err := d.bus.pins.CS1.Out(ctx, glcd.Level(left)); err != nil {
		return fmt.Errorf("could not set left chip select: %w", err)
	}
	if err := d.bus.pins.CS2.Out(ctx, glcd.Level(right)); err != nil {
		return fmt.Errorf("could not set right chip select: %w", err)
	}
	return nil
}

// command sends one byte to the command register of the selected chips.
func (d *Dev) command(ctx context.Context, cmd byte) error {
	if err := d.bus.setRegister(ctx, false); err != nil {
		return err
	}
	if err := d.bus.writeByte(ctx, cmd); err != nil {
		return fmt.Errorf("could not write command %#02x: %w", cmd, err)
	}
	if err := d.bus.strobe(ctx); err != nil {
		return fmt.Errorf("could not latch command %#02x: %w", cmd, err)
	}
	return nil
}

// setChipCursor addresses page row and column x on the selected chips.
func (d *Dev) setChipCursor(ctx context.Context, row, x int) error {
	row = clamp(row, RowCount)
	x = clamp(x, ChipWidth)
	if err := d.command(ctx, cmdSetPage|byte(row)); err != nil {
		return err
	}
	return d.command(ctx, cmdSetAddress|byte(x))
}

// setLogicalCursor selects the chip owning logical column x and addresses it.
func (d *Dev) setLogicalCursor(ctx context.Context, row, x int) error {
	if x >= Width {
		x = Width - 1
		if d.opts.LegacyClamp {
			x = Width/2 - 1
		}
	}
	if x < 0 {
		x = 0
	}
	left := x < ChipWidth
	if !left {
		x -= ChipWidth
	}
	if err := d.selectChips(ctx, left, !left); err != nil {
		return err
	}
	return d.setChipCursor(ctx, row, x)
}

// clamp limits v to [0, n).
func clamp(v, n int) int {
	if v >= n {
		return n - 1
	}
	if v < 0 {
		return 0
	}
	return v
}
