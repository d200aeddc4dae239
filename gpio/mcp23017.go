package gpio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mklimuk/glcd"
)

type registry int

const DefaultMCP23017Address = 0x21

// Registries
const (
	IODIRA registry = iota
	IOPOLA
	GPINTENA
	DEFVALA
	INTCONA
	IOCONA
	GPPUA
	INTFA
	INTCAPA
	GPIOA
	OLATA
	IODIRB
	IOPOLB
	GPINTENB
	DEFVALB
	INTCONB
	IOCONB
	GPPUB
	INTFB
	INTCAPB
	GPIOB
	OLATB
)

var (
	BankAddr = []map[registry]byte{
		{
			IODIRA:   0x00,
			IOPOLA:   0x02,
			GPINTENA: 0x04,
			DEFVALA:  0x06,
			INTCONA:  0x08,
			IOCONA:   0x0A,
			GPPUA:    0x0C,
			INTFA:    0x0E,
			INTCAPA:  0x10,
			GPIOA:    0x12,
			OLATA:    0x14,
			IODIRB:   0x01,
			IOPOLB:   0x03,
			GPINTENB: 0x05,
			DEFVALB:  0x07,
			INTCONB:  0x09,
			IOCONB:   0x0B,
			GPPUB:    0x0D,
			INTFB:    0x0F,
			INTCAPB:  0x11,
			GPIOB:    0x13,
			OLATB:    0x15,
		},
		{
			IODIRA:   0x00,
			IOPOLA:   0x01,
			GPINTENA: 0x02,
			DEFVALA:  0x03,
			INTCONA:  0x04,
			IOCONA:   0x05,
			GPPUA:    0x06,
			INTFA:    0x07,
			INTCAPA:  0x08,
			GPIOA:    0x09,
			OLATA:    0x0A,
			IODIRB:   0x10,
			IOPOLB:   0x11,
			GPINTENB: 0x12,
			DEFVALB:  0x13,
			INTCONB:  0x14,
			IOCONB:   0x15,
			GPPUB:    0x16,
			INTFB:    0x17,
			INTCAPB:  0x18,
			GPIOB:    0x19,
			OLATB:    0x1A,
		},
	}
)

// Port is one of the two 8-bit I/O sets of the expander.
type Port int

const (
	PortA Port = iota
	PortB
)

func (p Port) String() string {
	if p == PortB {
		return "B"
	}
	return "A"
}

// portRegistry maps a port A registry to its port B counterpart.
func portRegistry(p Port, a registry) registry {
	if p == PortB {
		return a + IODIRB - IODIRA
	}
	return a
}

/*
	Steps to drive a panel line:

1. Set the output latch (OLAT) bit to the requested level
2. Clear the IODIR bit so the pin drives the latch
3. Set the IODIR bit again to release the line and read it from GPIO
*/
type MCP23017 struct {
	mx         sync.Mutex
	transport  glcd.I2CBus
	bank       int
	address    byte
	retryLimit int
	// shadow copies of the direction and latch registries, 1 in iodir means
	// input; valid for a port once synced is set
	iodir  [2]byte
	olat   [2]byte
	synced [2]bool
	log   *slog.Logger
}

type Opt func(*MCP23017)

func WithRetryLimit(limit int) Opt {
	return func(m *MCP23017) {
		m.retryLimit = limit
	}
}

// WithBank selects the registry layout matching the IOCON.BANK setting.
func WithBank(bank int) Opt {
	return func(m *MCP23017) {
		m.bank = bank
	}
}

func WithLogger(logger *slog.Logger) Opt {
	return func(m *MCP23017) {
		m.log = logger
	}
}

func NewMCP23017(bus glcd.I2CBus, address byte, opts ...Opt) *MCP23017 {
	m := &MCP23017{
		retryLimit: 1,
		transport:  bus,
		address:    address,
		iodir:      [2]byte{0xFF, 0xFF},
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MCP23017) reg(p Port, a registry) byte {
	return BankAddr[m.bank][portRegistry(p, a)]
}

// write sends value to a registry, releasing the bus and retrying while the
// transport reports it busy.
func (m *MCP23017) write(ctx context.Context, addr byte, value byte, what string) error {
	var err error
	for i := m.retryLimit; i > 0; i-- {
		err = m.transport.WriteToAddr(ctx, m.address, []byte{addr, value})
		if err == nil {
			return nil
		}
		if !errors.Is(err, glcd.ErrBusBusy) {
			return fmt.Errorf("could not %s: %w", what, err)
		}
		// try to release the bus
		_ = m.transport.Release(ctx)
	}
	return fmt.Errorf("could not %s (retry limit reached): %w", what, err)
}

func (m *MCP23017) read(ctx context.Context, addr byte, what string) (byte, error) {
	var err error
	var res byte
	for i := m.retryLimit; i > 0; i-- {
		res, err = m.readRegistry(ctx, addr)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, glcd.ErrBusBusy) {
			return res, fmt.Errorf("could not %s: %w", what, err)
		}
		// try to release the bus
		_ = m.transport.Release(ctx)
	}
	return res, fmt.Errorf("could not %s (retry limit reached): %w", what, err)
}

func (m *MCP23017) readRegistry(ctx context.Context, addr byte) (byte, error) {
	err := m.transport.WriteToAddr(ctx, m.address, []byte{addr})
	if err != nil {
		return 0x00, fmt.Errorf("could not set I/O registry address: %w", err)
	}
	buf := make([]byte, 1)
	err = m.transport.ReadFromAddr(ctx, m.address, buf)
	if err != nil {
		return 0x00, fmt.Errorf("could not read gpio data: %w", err)
	}
	return buf[0], nil
}

// Init sets IODIR registry of port to inout (1 is input).
func (m *MCP23017) Init(ctx context.Context, p Port, inout byte) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	if err := m.write(ctx, m.reg(p, IODIRA), inout, fmt.Sprintf("initialize gpio %s set", p)); err != nil {
		return err
	}
	m.iodir[p] = inout
	return nil
}

// PullUp sets up pull up resistors on port.
func (m *MCP23017) PullUp(ctx context.Context, p Port, settings byte) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	return m.write(ctx, m.reg(p, GPPUA), settings, fmt.Sprintf("set pull-up on gpio %s set", p))
}

func (m *MCP23017) Read(ctx context.Context) ([]byte, error) {
	res := make([]byte, 2)
	var err error
	res[0], err = m.ReadPort(ctx, PortA)
	if err != nil {
		return nil, err
	}
	res[1], err = m.ReadPort(ctx, PortB)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ReadPort reads the pin levels of port.
func (m *MCP23017) ReadPort(ctx context.Context, p Port) (byte, error) {
	m.mx.Lock()
	defer m.mx.Unlock()
	return m.read(ctx, m.reg(p, GPIOA), fmt.Sprintf("read gpio %s set", p))
}

// ReadSettings reads contents of IOCON registry.
func (m *MCP23017) ReadSettings(ctx context.Context, p Port) (byte, error) {
	m.mx.Lock()
	defer m.mx.Unlock()
	return m.read(ctx, m.reg(p, IOCONA), fmt.Sprintf("read settings of gpio %s set", p))
}

func (m *MCP23017) WriteSettings(ctx context.Context, p Port, settings byte) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	return m.write(ctx, m.reg(p, IOCONA), settings, fmt.Sprintf("write settings on gpio %s set", p))
}

// Sync reloads the direction and latch shadows of both ports from the chip.
// The chip keeps its registries across process runs, so the power-on values
// cannot be assumed.
func (m *MCP23017) Sync(ctx context.Context) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	m.synced = [2]bool{}
	for _, p := range []Port{PortA, PortB} {
		if err := m.sync(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (m *MCP23017) sync(ctx context.Context, p Port) error {
	if m.synced[p] {
		return nil
	}
	iodir, err := m.read(ctx, m.reg(p, IODIRA), fmt.Sprintf("read direction of gpio %s set", p))
	if err != nil {
		return err
	}
	olat, err := m.read(ctx, m.reg(p, OLATA), fmt.Sprintf("read latch of gpio %s set", p))
	if err != nil {
		return err
	}
	m.iodir[p], m.olat[p], m.synced[p] = iodir, olat, true
	m.log.Debug("mcp23017: registries synced", "port", p.String(), "iodir", iodir, "olat", olat)
	return nil
}

// SetLevel changes the output latch bit of a pin. Nothing is sent when the
// latch already holds level. The port is synced with the chip on first use.
func (m *MCP23017) SetLevel(ctx context.Context, p Port, bit int, level glcd.Level) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	if err := m.sync(ctx, p); err != nil {
		return err
	}
	next := setBit(m.olat[p], bit, bool(level))
	if next == m.olat[p] {
		return nil
	}
	if err := m.write(ctx, m.reg(p, OLATA), next, fmt.Sprintf("set latch of gpio %s%d", p, bit)); err != nil {
		return err
	}
	m.olat[p] = next
	return nil
}

// SetInput changes the direction bit of a pin. Nothing is sent when the
// direction does not change.
func (m *MCP23017) SetInput(ctx context.Context, p Port, bit int, in bool) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	if err := m.sync(ctx, p); err != nil {
		return err
	}
	next := setBit(m.iodir[p], bit, in)
	if next == m.iodir[p] {
		return nil
	}
	if err := m.write(ctx, m.reg(p, IODIRA), next, fmt.Sprintf("set direction of gpio %s%d", p, bit)); err != nil {
		return err
	}
	m.log.Debug("mcp23017: direction changed", "port", p.String(), "bit", bit, "input", in)
	m.iodir[p] = next
	return nil
}

func setBit(v byte, bit int, on bool) byte {
	if on {
		return v | 1<<bit
	}
	return v &^ (1 << bit)
}

// Line returns a panel line on pin bit of port.
func (m *MCP23017) Line(p Port, bit int) glcd.Line {
	return &line{dev: m, port: p, bit: bit}
}

// Pins resolves a pin map naming expander pins as A0..A7 and B0..B7.
func (m *MCP23017) Pins(pm glcd.PinMap) (glcd.Pins, error) {
	return pm.Open(func(name string) (glcd.Line, error) {
		p, bit, err := ParsePin(name)
		if err != nil {
			return nil, err
		}
		return m.Line(p, bit), nil
	})
}

// ParsePin parses an expander pin name such as "A3" or "b7".
func ParsePin(name string) (Port, int, error) {
	if len(name) != 2 || name[1] < '0' || name[1] > '7' {
		return 0, 0, fmt.Errorf("invalid expander pin %q", name)
	}
	bit := int(name[1] - '0')
	switch name[0] {
	case 'A', 'a':
		return PortA, bit, nil
	case 'B', 'b':
		return PortB, bit, nil
	}
	return 0, 0, fmt.Errorf("invalid expander pin %q", name)
}

// DefaultPinMap puts the data bus on port A and the control lines on the
// low bits of port B.
func DefaultPinMap() glcd.PinMap {
	return glcd.PinMap{
		Reset: "B0",
		CS1:   "B1",
		CS2:   "B2",
		DI:    "B3",
		RW:    "B4",
		E:     "B5",
		DB:    [8]string{"A0", "A1", "A2", "A3", "A4", "A5", "A6", "A7"},
	}
}

type line struct {
	dev  *MCP23017
	port Port
	bit  int
}

// Out sets the latch before turning the pin to output so it never drives a
// stale level.
func (l *line) Out(ctx context.Context, level glcd.Level) error {
	if err := l.dev.SetLevel(ctx, l.port, l.bit, level); err != nil {
		return err
	}
	return l.dev.SetInput(ctx, l.port, l.bit, false)
}

func (l *line) In(ctx context.Context) error {
	return l.dev.SetInput(ctx, l.port, l.bit, true)
}

func (l *line) Read(ctx context.Context) (glcd.Level, error) {
	v, err := l.dev.ReadPort(ctx, l.port)
	if err != nil {
		return glcd.Low, err
	}
	return glcd.Level(v&(1<<l.bit) != 0), nil
}

func (l *line) String() string {
	return fmt.Sprintf("mcp23017 %s%d", l.port, l.bit)
}
