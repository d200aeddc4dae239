package board

import (
	"context"
	"fmt"
	"io"
	"sync"

	"gobot.io/x/gobot/v2/drivers/i2c"

	"github.com/mklimuk/glcd"
)

var _ glcd.I2CBus = &I2C{}

type connection interface {
	io.ReadWriteCloser
}

// I2C carries expander traffic over an I2C bus of the board. One gobot
// connection is kept per device address.
type I2C struct {
	mx    sync.Mutex
	open  func(address int) (connection, error)
	conns map[byte]connection
}

func NewI2C(connector i2c.Connector, busNr int) *I2C {
	return &I2C{
		open: func(address int) (connection, error) {
			return connector.GetI2cConnection(address, busNr)
		},
		conns: make(map[byte]connection),
	}
}

func (b *I2C) conn(address byte) (connection, error) {
	b.mx.Lock()
	defer b.mx.Unlock()
	if c, ok := b.conns[address]; ok {
		return c, nil
	}
	c, err := b.open(int(address))
	if err != nil {
		return nil, fmt.Errorf("could not open i2c connection %x: %w", address, err)
	}
	b.conns[address] = c
	return c, nil
}

func (b *I2C) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	c, err := b.conn(address)
	if err != nil {
		return err
	}
	n, err := c.Read(buffer)
	if err != nil {
		return fmt.Errorf("could not read from i2c bus %x: %w", address, err)
	}
	if n != len(buffer) {
		return fmt.Errorf("short read from i2c bus %x: %d of %d bytes", address, n, len(buffer))
	}
	return nil
}

func (b *I2C) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	c, err := b.conn(address)
	if err != nil {
		return err
	}
	if _, err := c.Write(buffer); err != nil {
		return fmt.Errorf("could not write to i2c bus %x: %w", address, err)
	}
	return nil
}

func (b *I2C) Release(ctx context.Context) error {
	return nil
}

func (b *I2C) Close() error {
	b.mx.Lock()
	defer b.mx.Unlock()
	var first error
	for addr, c := range b.conns {
		if err := c.Close(); err != nil && first == nil {
			first = fmt.Errorf("could not close i2c connection %x: %w", addr, err)
		}
		delete(b.conns, addr)
	}
	return first
}
