package hostpin

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"

	"github.com/mklimuk/glcd"
	"github.com/mklimuk/glcd/ks0108"
)

func testPins() map[string]*gpiotest.Pin {
	res := make(map[string]*gpiotest.Pin)
	for n := 22; n <= 35; n++ {
		name := fmt.Sprintf("%d", n)
		res[name] = &gpiotest.Pin{N: "GPIO" + name, Num: n}
	}
	return res
}

func lookup(pins map[string]*gpiotest.Pin) func(string) gpio.PinIO {
	return func(name string) gpio.PinIO {
		p, ok := pins[name]
		if !ok {
			return nil
		}
		return p
	}
}

func TestLine(t *testing.T) {
	ctx := context.Background()
	p := &gpiotest.Pin{N: "GPIO5", Num: 5}
	l := New(p)

	require.NoError(t, l.Out(ctx, glcd.High))
	assert.Equal(t, gpio.High, p.L)
	level, err := l.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, glcd.High, level)

	require.NoError(t, l.Out(ctx, glcd.Low))
	assert.Equal(t, gpio.Low, p.L)

	require.NoError(t, l.In(ctx))
	assert.Equal(t, gpio.Float, p.P)
}

func TestOpenPins(t *testing.T) {
	pins := testPins()
	set, err := OpenPins(lookup(pins), glcd.DefaultPinMap())
	require.NoError(t, err)
	require.NoError(t, set.Validate())

	require.NoError(t, set.E.Out(context.Background(), glcd.High))
	assert.Equal(t, gpio.High, pins["23"].L)
}

func TestOpenPins_UnknownPin(t *testing.T) {
	pins := testPins()
	delete(pins, "30")
	_, err := OpenPins(lookup(pins), glcd.DefaultPinMap())
	assert.ErrorIs(t, err, ErrUnknownPin)
	assert.Contains(t, err.Error(), "DB2")
}

func TestDriverOverHostPins(t *testing.T) {
	pins := testPins()
	set, err := OpenPins(lookup(pins), glcd.DefaultPinMap())
	require.NoError(t, err)
	ctx := context.Background()
	d, err := ks0108.New(ctx, set)
	require.NoError(t, err)

	require.NoError(t, d.SetVerticalScroll(ctx, 5))
	// the last byte on the bus is the start line command
	var value byte
	for i := 0; i < 8; i++ {
		if pins[fmt.Sprintf("%d", 28+i)].L == gpio.High {
			value |= 1 << i
		}
	}
	assert.Equal(t, byte(0xC5), value)
	assert.Equal(t, gpio.High, pins["23"].L, "enable rests high")
	assert.Equal(t, gpio.Low, pins["27"].L, "write mode after a command")
}
