// Package sim models a dual-controller graphic LCD at the line level.
//
// A Panel hands out glcd.Lines for every connector pin and reacts to them
// the way the hardware does: it latches the data bus on a completed enable
// pulse, decodes commands per selected chip, drives the status byte onto the
// bus in read mode and keeps the display memory of both chips. Protocol
// mistakes that would cause bus contention on real hardware are recorded as
// violations instead of being silently accepted.
package sim

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/mklimuk/glcd"
)

// Panel geometry.
const (
	Pages   = 8
	Columns = 64
	Chips   = 2
	Width   = Chips * Columns
	Height  = Pages * 8
)

// Line names used in events.
const (
	LineReset = "RST"
	LineCS1   = "CS1"
	LineCS2   = "CS2"
	LineDI    = "DI"
	LineRW    = "RW"
	LineE     = "E"
)

// DataLine returns the event name of data line i.
func DataLine(i int) string {
	return fmt.Sprintf("DB%d", i)
}

type Op int

const (
	OpOut Op = iota
	OpIn
	OpRead
)

func (o Op) String() string {
	switch o {
	case OpOut:
		return "out"
	case OpIn:
		return "in"
	default:
		return "read"
	}
}

// Event is one host operation on a line.
type Event struct {
	Line  string
	Op    Op
	Level glcd.Level
}

func (e Event) String() string {
	if e.Op == OpIn {
		return e.Line + ":in"
	}
	return fmt.Sprintf("%s:%s:%s", e.Line, e.Op, e.Level)
}

// Transfer is one byte latched by the panel on an enable pulse.
type Transfer struct {
	// Chips is a bit mask of the selected chips (bit 0 left, bit 1 right).
	Chips uint8
	// Data is true for a display memory write, false for a command.
	Data  bool
	Value byte
}

type chip struct {
	on        bool
	page      int
	addr      int
	startLine int
	ram       [Pages][Columns]byte
}

// Panel is a simulated panel. The zero value is not usable, use New.
type Panel struct {
	mx sync.Mutex

	lines map[string]*line
	db    [8]*line

	chips     [Chips]chip
	resetting bool

	events     []Event
	transfers  []Transfer
	violations []string

	logger *slog.Logger
}

type Opt func(*Panel)

// WithLogger makes the panel report violations to logger.
func WithLogger(logger *slog.Logger) Opt {
	return func(p *Panel) {
		p.logger = logger
	}
}

func New(opts ...Opt) *Panel {
	p := &Panel{
		lines:  make(map[string]*line),
		logger: slog.Default(),
	}
	for _, name := range []string{LineReset, LineCS1, LineCS2, LineDI, LineRW, LineE} {
		p.lines[name] = &line{panel: p, name: name}
	}
	for i := range p.db {
		l := &line{panel: p, name: DataLine(i), data: true, bit: i}
		p.db[i] = l
		p.lines[l.name] = l
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Pins returns the connector lines of the panel.
func (p *Panel) Pins() glcd.Pins {
	pins := glcd.Pins{
		Reset: p.lines[LineReset],
		CS1:   p.lines[LineCS1],
		CS2:   p.lines[LineCS2],
		DI:    p.lines[LineDI],
		RW:    p.lines[LineRW],
		E:     p.lines[LineE],
	}
	for i, l := range p.db {
		pins.DB[i] = l
	}
	return pins
}

// Events returns a copy of the host operations recorded so far.
func (p *Panel) Events() []Event {
	p.mx.Lock()
	defer p.mx.Unlock()
	return append([]Event(nil), p.events...)
}

// Transfers returns a copy of the bytes latched so far.
func (p *Panel) Transfers() []Transfer {
	p.mx.Lock()
	defer p.mx.Unlock()
	return append([]Transfer(nil), p.transfers...)
}

// Violations returns the protocol violations detected so far.
func (p *Panel) Violations() []string {
	p.mx.Lock()
	defer p.mx.Unlock()
	return append([]string(nil), p.violations...)
}

// ClearLog drops recorded events, transfers and violations. Memory and chip
// registers are kept.
func (p *Panel) ClearLog() {
	p.mx.Lock()
	defer p.mx.Unlock()
	p.events = nil
	p.transfers = nil
	p.violations = nil
}

// Memory returns the byte stored by chip at page and column.
func (p *Panel) Memory(chip, page, column int) byte {
	p.mx.Lock()
	defer p.mx.Unlock()
	return p.chips[chip].ram[page][column]
}

// Byte returns the byte at a logical row and column spanning both chips.
func (p *Panel) Byte(row, x int) byte {
	return p.Memory(x/Columns, row, x%Columns)
}

// Frame returns the display memory of both chips as row-major pages of
// Width bytes.
func (p *Panel) Frame() []byte {
	p.mx.Lock()
	defer p.mx.Unlock()
	frame := make([]byte, Pages*Width)
	for c := range p.chips {
		for page := 0; page < Pages; page++ {
			copy(frame[page*Width+c*Columns:], p.chips[c].ram[page][:])
		}
	}
	return frame
}

// DisplayOn reports the on/off register of chip.
func (p *Panel) DisplayOn(chip int) bool {
	p.mx.Lock()
	defer p.mx.Unlock()
	return p.chips[chip].on
}

// StartLine returns the display start line register of chip.
func (p *Panel) StartLine(chip int) int {
	p.mx.Lock()
	defer p.mx.Unlock()
	return p.chips[chip].startLine
}

// Cursor returns the page and column address registers of chip.
func (p *Panel) Cursor(chip int) (page, column int) {
	p.mx.Lock()
	defer p.mx.Unlock()
	return p.chips[chip].page, p.chips[chip].addr
}

// Pixel reports whether the visible pixel at (x, y) is dark, taking the
// start line and on/off state of the owning chip into account.
func (p *Panel) Pixel(x, y int) bool {
	p.mx.Lock()
	defer p.mx.Unlock()
	return p.pixel(x, y)
}

func (p *Panel) pixel(x, y int) bool {
	c := &p.chips[x/Columns]
	if !c.on {
		return false
	}
	line := (y + c.startLine) % Height
	return c.ram[line/8][x%Columns]&(1<<(line%8)) != 0
}

// Raster fills dst (Width*Height*4 bytes, RGBA) with the visible image.
func (p *Panel) Raster(dst []byte, ink, paper [4]byte) {
	p.mx.Lock()
	defer p.mx.Unlock()
	for y := 0; y < Height; y++ {
		for x := 0; x < Width; x++ {
			c := paper
			if p.pixel(x, y) {
				c = ink
			}
			copy(dst[(y*Width+x)*4:], c[:])
		}
	}
}

// String renders the visible image, two pixel rows per text line.
func (p *Panel) String() string {
	p.mx.Lock()
	defer p.mx.Unlock()
	var sb strings.Builder
	for y := 0; y < Height; y += 2 {
		for x := 0; x < Width; x++ {
			top, bottom := p.pixel(x, y), p.pixel(x, y+1)
			switch {
			case top && bottom:
				sb.WriteRune('█')
			case top:
				sb.WriteRune('▀')
			case bottom:
				sb.WriteRune('▄')
			default:
				sb.WriteRune(' ')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func (p *Panel) record(e Event) {
	p.events = append(p.events, e)
}

func (p *Panel) violate(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	p.violations = append(p.violations, msg)
	p.logger.Warn("panel protocol violation", "violation", msg)
}

func (p *Panel) level(name string) glcd.Level {
	return p.lines[name].level
}

func (p *Panel) selected() uint8 {
	var mask uint8
	if p.level(LineCS1) == glcd.High {
		mask |= 1
	}
	if p.level(LineCS2) == glcd.High {
		mask |= 2
	}
	return mask
}

// status builds the status byte of the first selected chip. With no chip
// selected nothing answers and the display reads as off.
func (p *Panel) status() byte {
	var st byte
	mask := p.selected()
	if mask == 0 {
		st |= 1 << 5
	}
	for i := range p.chips {
		if mask&(1<<i) == 0 {
			continue
		}
		if !p.chips[i].on {
			st |= 1 << 5
		}
		break
	}
	if p.resetting {
		st |= 1 << 4
	}
	return st
}

// latch handles a completed enable pulse.
func (p *Panel) latch() {
	if p.level(LineRW) == glcd.High {
		return
	}
	var value byte
	for i, l := range p.db {
		if !l.output {
			p.violate("DB%d floating while latching a write", i)
			continue
		}
		if l.level == glcd.High {
			value |= 1 << i
		}
	}
	t := Transfer{
		Chips: p.selected(),
		Data:  p.level(LineDI) == glcd.High,
		Value: value,
	}
	p.transfers = append(p.transfers, t)
	for i := range p.chips {
		if t.Chips&(1<<i) == 0 {
			continue
		}
		c := &p.chips[i]
		if t.Data {
			c.ram[c.page][c.addr] = value
			c.addr = (c.addr + 1) % Columns
			continue
		}
		switch {
		case value&0xFE == 0x3E:
			c.on = value&0x01 != 0
		case value&0xC0 == 0x40:
			c.addr = int(value & 0x3F)
		case value&0xF8 == 0xB8:
			c.page = int(value & 0x07)
		case value&0xC0 == 0xC0:
			c.startLine = int(value & 0x3F)
		default:
			p.violate("unknown command %#02x", value)
		}
	}
}

func (p *Panel) reset() {
	for i := range p.chips {
		p.chips[i].on = false
		p.chips[i].startLine = 0
		p.chips[i].page = 0
		p.chips[i].addr = 0
	}
}

type line struct {
	panel  *Panel
	name   string
	data   bool
	bit    int
	output bool
	level  glcd.Level
}

func (l *line) Out(ctx context.Context, level glcd.Level) error {
	p := l.panel
	p.mx.Lock()
	defer p.mx.Unlock()
	p.record(Event{Line: l.name, Op: OpOut, Level: level})
	if l.data && p.level(LineRW) == glcd.High {
		p.violate("%s driven by host while panel is in read mode", l.name)
	}
	prev := l.level
	l.output = true
	l.level = level
	switch l.name {
	case LineRW:
		if level == glcd.High {
			for i, d := range p.db {
				if d.output {
					p.violate("read mode asserted while host still drives DB%d", i)
				}
			}
		}
	case LineE:
		if prev == glcd.Low && level == glcd.High {
			p.latch()
		}
	case LineReset:
		if level == glcd.Low {
			p.resetting = true
		} else if p.resetting {
			p.resetting = false
			p.reset()
		}
	}
	return nil
}

func (l *line) In(ctx context.Context) error {
	p := l.panel
	p.mx.Lock()
	defer p.mx.Unlock()
	p.record(Event{Line: l.name, Op: OpIn})
	l.output = false
	return nil
}

func (l *line) Read(ctx context.Context) (glcd.Level, error) {
	p := l.panel
	p.mx.Lock()
	defer p.mx.Unlock()
	level := l.level
	if l.data && !l.output {
		// the panel only drives the bus in read mode; otherwise it floats low
		level = glcd.Low
		if p.level(LineRW) == glcd.High && p.level(LineDI) == glcd.Low {
			level = glcd.Level(p.status()&(1<<l.bit) != 0)
		}
	}
	p.record(Event{Line: l.name, Op: OpRead, Level: level})
	return level, nil
}
