package i2c

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/glcd/gpio"
)

func TestGenericBus_Expander(t *testing.T) {
	ctx := context.Background()
	playback := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x21, W: []byte{0x00, 0x00}},
			{Addr: 0x21, W: []byte{0x13}},
			{Addr: 0x21, R: []byte{0x81}},
		},
		DontPanic: true,
	}
	bus := NewBus(playback)
	require.NoError(t, bus.SetSpeed(400*physic.KiloHertz))

	m := gpio.NewMCP23017(bus, gpio.DefaultMCP23017Address)
	require.NoError(t, m.Init(ctx, gpio.PortA, 0x00))
	v, err := m.ReadPort(ctx, gpio.PortB)
	require.NoError(t, err)
	assert.Equal(t, byte(0x81), v)
	assert.NoError(t, bus.Close())
}

func TestGenericBus_Errors(t *testing.T) {
	ctx := context.Background()
	bus := NewBus(&i2ctest.Playback{DontPanic: true})
	err := bus.WriteToAddr(ctx, 0x21, []byte{0x01})
	assert.ErrorContains(t, err, "could not write to i2c bus 21")
	err = bus.ReadFromAddr(ctx, 0x21, make([]byte, 1))
	assert.ErrorContains(t, err, "could not read from i2c bus 21")
	assert.NoError(t, bus.Release(ctx))
}
