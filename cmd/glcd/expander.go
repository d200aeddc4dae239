package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/glcd/backend"
	"github.com/mklimuk/glcd/cmd/glcd/console"
	"github.com/mklimuk/glcd/gpio"
)

var expanderCmd = cli.Command{
	Name:  "expander",
	Usage: "inspect the MCP23017 the panel hangs off",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "addr", Usage: "hex I2C address, defaults to the configured one"},
	},
	Subcommands: []*cli.Command{
		&expanderReadCmd,
		&expanderStatusCmd,
		&expanderConfigureCmd,
		&expanderPullCmd,
	},
}

func withExpander(fn func(c *cli.Context, exp *gpio.MCP23017) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return console.Exit(1, "could not load config: %v", err)
		}
		if addr := c.String("addr"); addr != "" {
			b, err := hex.DecodeString(addr)
			if err != nil || len(b) != 1 {
				return console.Exit(1, "could not decode address %q", addr)
			}
			cfg.Expander.Address = b[0]
		}
		exp, b, err := backend.OpenExpander(c.Context, cfg.Expander)
		if err != nil {
			return console.Exit(1, "could not open expander: %v", err)
		}
		defer func() { _ = b.Close() }()
		return fn(c, exp)
	}
}

func parsePort(arg string) (gpio.Port, error) {
	switch strings.ToUpper(arg) {
	case "A":
		return gpio.PortA, nil
	case "B":
		return gpio.PortB, nil
	}
	return gpio.PortA, console.Exit(1, "unknown port %q, expected A or B", arg)
}

func portAndByte(c *cli.Context) (gpio.Port, byte, error) {
	if c.NArg() != 2 {
		return 0, 0, console.Exit(1, "expected 2 arguments, got %d", c.NArg())
	}
	p, err := parsePort(c.Args().Get(0))
	if err != nil {
		return 0, 0, err
	}
	data, err := hex.DecodeString(c.Args().Get(1))
	if err != nil || len(data) != 1 {
		return 0, 0, console.Exit(1, "could not decode data %q", c.Args().Get(1))
	}
	return p, data[0], nil
}

var expanderReadCmd = cli.Command{
	Name:  "read",
	Usage: "read pin levels of both ports",
	Action: withExpander(func(c *cli.Context, exp *gpio.MCP23017) error {
		levels, err := exp.Read(c.Context)
		if err != nil {
			return console.Exit(1, "could not read gpio: %v", err)
		}
		fmt.Printf("\nI/O A: %#X\nI/O B: %#X\n", levels[0], levels[1])
		return nil
	}),
}

var expanderStatusCmd = cli.Command{
	Name:      "status",
	Usage:     "read the IOCON registry of a port",
	ArgsUsage: "<port>",
	Action: withExpander(func(c *cli.Context, exp *gpio.MCP23017) error {
		if c.NArg() != 1 {
			return console.Exit(1, "expected 1 argument, got %d", c.NArg())
		}
		p, err := parsePort(c.Args().Get(0))
		if err != nil {
			return err
		}
		data, err := exp.ReadSettings(c.Context, p)
		if err != nil {
			return console.Exit(1, "could not read settings: %v", err)
		}
		fmt.Printf("\nIOCON %s content: %#X\n", p, data)
		return nil
	}),
}

var expanderConfigureCmd = cli.Command{
	Name:      "configure",
	Usage:     "write the IOCON registry of a port",
	ArgsUsage: "<port> <hex byte>",
	Action: withExpander(func(c *cli.Context, exp *gpio.MCP23017) error {
		p, data, err := portAndByte(c)
		if err != nil {
			return err
		}
		if err := exp.WriteSettings(c.Context, p, data); err != nil {
			return console.Exit(1, "could not write settings: %v", err)
		}
		fmt.Printf("\nWrote IOCON %s content: %#X\n", p, data)
		return nil
	}),
}

var expanderPullCmd = cli.Command{
	Name:      "pull",
	Usage:     "set pull up resistors of a port",
	ArgsUsage: "<port> <hex byte>",
	Action: withExpander(func(c *cli.Context, exp *gpio.MCP23017) error {
		p, data, err := portAndByte(c)
		if err != nil {
			return err
		}
		if err := exp.PullUp(c.Context, p, data); err != nil {
			return console.Exit(1, "could not write pull up settings: %v", err)
		}
		fmt.Printf("\nWrote GPPU %s content: %#X\n", p, data)
		return nil
	}),
}
