// Package ks0108 drives a 128x64 graphic LCD built from two KS0108-class
// column controllers sharing one 8-bit parallel bus.
//
// Each controller owns 64 columns and 8 pages of 8 vertically stacked
// pixels. The driver presents both halves as one surface of RowCount rows
// by Width byte columns; a write crossing the middle of the panel is
// re-addressed on the right chip because the column counter of a chip does
// not roll over into its neighbour.
//
// Every call goes straight to the hardware. Nothing is buffered and the
// cursor is never cached on the host. A Dev is not safe for concurrent use.
package ks0108

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mklimuk/glcd"
)

// Panel geometry.
const (
	RowCount  = 8
	ChipWidth = 64
	Width     = 2 * ChipWidth
	Height    = RowCount * 8
)

// ImageSize is the length of a full panel image in bytes.
const ImageSize = RowCount * Width

type Opts struct {
	// StrobeDelay is held after each edge of the enable pulse.
	StrobeDelay time.Duration
	// ResetPulse is the time the reset line is held low.
	ResetPulse time.Duration
	// TestPatternStep is the delay between scroll steps of TestPattern.
	TestPatternStep time.Duration
	// LegacyClamp clamps out of range logical columns to the last column of
	// the left chip instead of the last column of the panel.
	LegacyClamp bool
	Logger      *slog.Logger
}

type Opt func(*Opts)

func WithStrobeDelay(delay time.Duration) Opt {
	return func(o *Opts) {
		o.StrobeDelay = delay
	}
}

func WithResetPulse(pulse time.Duration) Opt {
	return func(o *Opts) {
		o.ResetPulse = pulse
	}
}

func WithTestPatternStep(step time.Duration) Opt {
	return func(o *Opts) {
		o.TestPatternStep = step
	}
}

func WithLegacyClamp() Opt {
	return func(o *Opts) {
		o.LegacyClamp = true
	}
}

func WithLogger(logger *slog.Logger) Opt {
	return func(o *Opts) {
		o.Logger = logger
	}
}

// Dev is a handle to the panel. It exclusively owns the lines it was
// created with.
type Dev struct {
	bus  bus
	opts Opts
	log  *slog.Logger
}

// New claims pins and brings the panel to a known state: both chips
// selected, enable at its resting high level and a reset pulse issued. The
// display is left off, as it is after any reset.
func New(ctx context.Context, pins glcd.Pins, opts ...Opt) (*Dev, error) {
	if err := pins.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pin set: %w", err)
	}
	config := Opts{
		TestPatternStep: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&config)
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dev{
		bus:  bus{pins: pins, strobeDelay: config.StrobeDelay},
		opts: config,
		log:  logger,
	}
	if err := d.init(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Dev) init(ctx context.Context) error {
	if err := d.selectChips(ctx, true, true); err != nil {
		return err
	}
	if err := d.bus.pins.E.Out(ctx, glcd.High); err != nil {
		return fmt.Errorf("could not raise enable line: %w", err)
	}
	if err := d.bus.pins.Reset.Out(ctx, glcd.High); err != nil {
		return fmt.Errorf("could not release reset line: %w", err)
	}
	st, err := d.bus.readStatus(ctx)
	if err != nil {
		return err
	}
	d.log.Debug("ks0108: status before reset", "display_on", st.DisplayOn, "busy", st.Busy)
	if err := d.bus.pins.Reset.Out(ctx, glcd.Low); err != nil {
		return fmt.Errorf("could not pull reset line: %w", err)
	}
	if d.opts.ResetPulse > 0 {
		time.Sleep(d.opts.ResetPulse)
	}
	if err := d.bus.pins.Reset.Out(ctx, glcd.High); err != nil {
		return fmt.Errorf("could not release reset line: %w", err)
	}
	return nil
}

// Status reads the status register of the currently selected chips.
func (d *Dev) Status(ctx context.Context) (Status, error) {
	return d.bus.readStatus(ctx)
}

// IsDisplayOn reads the on/off flag from a fresh status read.
func (d *Dev) IsDisplayOn(ctx context.Context) (bool, error) {
	st, err := d.bus.readStatus(ctx)
	if err != nil {
		return false, err
	}
	return st.DisplayOn, nil
}

// SetDisplayOn switches both halves of the display on or off. Display memory
// is kept either way.
func (d *Dev) SetDisplayOn(ctx context.Context, on bool) error {
	if err := d.selectChips(ctx, true, true); err != nil {
		return err
	}
	cmd := cmdDisplayOnOff
	if on {
		cmd |= 0x01
	}
	return d.command(ctx, cmd)
}

// SetVerticalScroll sets the display start line on both chips. offset is
// taken modulo Height, negative values wrap from the bottom. Lines scrolled
// off the top reappear at the bottom.
func (d *Dev) SetVerticalScroll(ctx context.Context, offset int) error {
	offset %= Height
	if offset < 0 {
		offset += Height
	}
	if err := d.selectChips(ctx, true, true); err != nil {
		return err
	}
	return d.command(ctx, cmdStartLine|byte(offset))
}

// SetCursor addresses logical row and column x. Columns past the right edge
// are clamped. The next WriteData lands at this position.
func (d *Dev) SetCursor(ctx context.Context, row, x int) error {
	return d.setLogicalCursor(ctx, row, x)
}

// WriteData writes one byte to display memory at the cursor of the selected
// chip, which then advances by one column.
func (d *Dev) WriteData(ctx context.Context, value byte) error {
	// writeByte switches the bus to Write itself
	if err := d.bus.setRegister(ctx, true); err != nil {
		return err
	}
	if err := d.bus.writeByte(ctx, value); err != nil {
		return fmt.Errorf("could not write data %#02x: %w", value, err)
	}
	if err := d.bus.strobe(ctx); err != nil {
		return fmt.Errorf("could not latch data %#02x: %w", value, err)
	}
	return nil
}

// ClearScreen zeroes the memory of both chips.
func (d *Dev) ClearScreen(ctx context.Context) error {
	if err := d.selectChips(ctx, true, true); err != nil {
		return err
	}
	for row := 0; row < RowCount; row++ {
		if err := d.setChipCursor(ctx, row, 0); err != nil {
			return err
		}
		for x := 0; x < ChipWidth; x++ {
			if err := d.WriteData(ctx, 0); err != nil {
				return fmt.Errorf("could not clear row %d: %w", row, err)
			}
		}
	}
	d.log.Debug("ks0108: screen cleared")
	return nil
}

// WriteRow writes data to row starting at column x. Data running past the
// right edge is dropped; an invalid row or start column makes it a no-op.
func (d *Dev) WriteRow(ctx context.Context, row, x int, data []byte) error {
	n, ok := span(row, x, len(data))
	if !ok {
		return nil
	}
	return d.writeSpan(ctx, row, x, n, func(i int) byte { return data[i] })
}

// FillRow writes value count times to row starting at column x, with the
// same clamping as WriteRow.
func (d *Dev) FillRow(ctx context.Context, row, x, count int, value byte) error {
	n, ok := span(row, x, count)
	if !ok {
		return nil
	}
	return d.writeSpan(ctx, row, x, n, func(int) byte { return value })
}

// WriteImage writes a full panel image laid out as RowCount blocks of Width
// bytes. Rows missing from a short buffer are left untouched.
func (d *Dev) WriteImage(ctx context.Context, img []byte) error {
	for row := 0; row < RowCount; row++ {
		start := row * Width
		if start >= len(img) {
			break
		}
		end := min(start+Width, len(img))
		if err := d.WriteRow(ctx, row, 0, img[start:end]); err != nil {
			return fmt.Errorf("could not write image row %d: %w", row, err)
		}
	}
	return nil
}

// span validates a row write and returns the number of bytes that fit.
func span(row, x, count int) (int, bool) {
	if row < 0 || row >= RowCount || x < 0 || x >= Width || count <= 0 {
		return 0, false
	}
	return min(count, Width-x), true
}

// writeSpan addresses (row, x) once and writes n bytes, re-addressing when
// the write reaches the first column of the right chip.
func (d *Dev) writeSpan(ctx context.Context, row, x, n int, next func(int) byte) error {
	if err := d.setLogicalCursor(ctx, row, x); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		col := x + i
		if col == ChipWidth && i > 0 {
			if err := d.setLogicalCursor(ctx, row, col); err != nil {
				return err
			}
		}
		if err := d.WriteData(ctx, next(i)); err != nil {
			return fmt.Errorf("could not write row %d column %d: %w", row, col, err)
		}
	}
	return nil
}

// TestPattern fills every page of both chips with a counting pattern and
// rolls it up through 32 start lines before returning to line 0. It blocks
// for about 32 TestPatternStep periods unless ctx is cancelled first.
func (d *Dev) TestPattern(ctx context.Context) error {
	if err := d.selectChips(ctx, true, true); err != nil {
		return err
	}
	for page := 0; page < RowCount; page++ {
		if err := d.setChipCursor(ctx, page, 0); err != nil {
			return err
		}
		for x := 0; x < ChipWidth; x++ {
			if err := d.WriteData(ctx, byte(x)|byte(page&0x03)<<6); err != nil {
				return err
			}
		}
	}
	d.log.Debug("ks0108: test pattern written, scrolling", "step", d.opts.TestPatternStep)
	for line := 0; line < 32; line++ {
		if err := d.command(ctx, cmdStartLine|byte(line)); err != nil {
			return err
		}
		if err := wait(ctx, d.opts.TestPatternStep); err != nil {
			return err
		}
	}
	return d.SetVerticalScroll(ctx, 0)
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dev) String() string {
	return fmt.Sprintf("ks0108.Dev{%dx%d}", Width, Height)
}
