// Package backend opens the panel lines named by a configuration.
package backend

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/glcd"
	"github.com/mklimuk/glcd/adapter"
	"github.com/mklimuk/glcd/board"
	"github.com/mklimuk/glcd/config"
	"github.com/mklimuk/glcd/gpio"
	"github.com/mklimuk/glcd/hostpin"
	"github.com/mklimuk/glcd/i2c"
	"github.com/mklimuk/glcd/sim"
)

// Backend is an opened set of panel lines.
type Backend struct {
	Pins glcd.Pins
	// Panel is set for the sim backend only.
	Panel  *sim.Panel
	closer []func() error
}

// Open resolves cfg.Backend into panel lines. An expander is synced with
// the chip before its lines are handed out.
func Open(ctx context.Context, cfg config.Config) (*Backend, error) {
	b := &Backend{}
	var err error
	switch cfg.Backend {
	case config.BackendSim:
		b.Panel = sim.New()
		b.Pins = b.Panel.Pins()
	case config.BackendHost:
		b.Pins, err = hostpin.Open(cfg.Pins)
	case config.BackendBoard:
		var nano *board.Board
		nano, err = board.Connect()
		if err == nil {
			b.closer = append(b.closer, nano.Close)
			b.Pins, err = nano.Pins(cfg.Pins)
		}
	case config.BackendExpander:
		var exp *gpio.MCP23017
		exp, err = b.expander(ctx, cfg.Expander)
		if err == nil {
			err = exp.Sync(ctx)
		}
		if err == nil {
			b.Pins, err = exp.Pins(cfg.Expander.Pins)
		}
	default:
		err = fmt.Errorf("%w: %q", config.ErrUnknownBackend, cfg.Backend)
	}
	if err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("could not open %s backend: %w", cfg.Backend, err)
	}
	return b, nil
}

// OpenExpander opens the configured expander without touching its pins.
// Close the returned backend to release the transport.
func OpenExpander(ctx context.Context, cfg config.Expander) (*gpio.MCP23017, *Backend, error) {
	b := &Backend{}
	exp, err := b.expander(ctx, cfg)
	if err != nil {
		_ = b.Close()
		return nil, nil, err
	}
	return exp, b, nil
}

func (b *Backend) expander(ctx context.Context, cfg config.Expander) (*gpio.MCP23017, error) {
	bus, err := b.bus(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return gpio.NewMCP23017(bus, cfg.Address, gpio.WithBank(cfg.Bank), gpio.WithRetryLimit(cfg.RetryLimit)), nil
}

func (b *Backend) bus(ctx context.Context, cfg config.Expander) (glcd.I2CBus, error) {
	switch cfg.Transport {
	case config.TransportMCP2221:
		a := adapter.NewMCP2221(adapter.WithDeviceID(cfg.DeviceID))
		if err := a.Init(ctx, cfg.Speed); err != nil {
			return nil, err
		}
		return a, nil
	case config.TransportI2C:
		bus, err := i2c.NewGenericBus(cfg.Device)
		if err != nil {
			return nil, err
		}
		b.closer = append(b.closer, bus.Close)
		if err := bus.SetSpeed(physic.Frequency(cfg.Speed) * physic.Hertz); err != nil {
			return nil, err
		}
		return bus, nil
	case config.TransportBoard:
		busNr := 0
		if cfg.Device != "" {
			var err error
			busNr, err = strconv.Atoi(cfg.Device)
			if err != nil {
				return nil, fmt.Errorf("invalid board i2c bus %q: %w", cfg.Device, err)
			}
		}
		nano, err := board.Connect()
		if err != nil {
			return nil, err
		}
		bus := nano.I2C(busNr)
		b.closer = append(b.closer, bus.Close, nano.Close)
		return bus, nil
	}
	return nil, fmt.Errorf("unknown expander transport %q", cfg.Transport)
}

// Close releases the transports in the order they were opened.
func (b *Backend) Close() error {
	var errs []error
	for _, c := range b.closer {
		errs = append(errs, c())
	}
	b.closer = nil
	return errors.Join(errs...)
}
