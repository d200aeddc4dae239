package main

import (
	"context"
	"log/slog"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/glcd/bitmap"
	"github.com/mklimuk/glcd/cmd/glcd/console"
	"github.com/mklimuk/glcd/config"
	"github.com/mklimuk/glcd/ks0108"
	"github.com/mklimuk/glcd/simview"
)

var viewCmd = cli.Command{
	Name:      "view",
	Usage:     "open a window with the simulated panel and draw an image or the test pattern into it",
	ArgsUsage: "[image]",
	Flags: append([]cli.Flag{
		&cli.IntFlag{Name: "scale", Value: 4, Usage: "window pixels per panel pixel"},
	}, bitmapFlags...),
	Action: func(c *cli.Context) error {
		if c.NArg() > 1 {
			return console.Exit(1, "expected at most 1 argument, got %d", c.NArg())
		}
		if err := c.Set("backend", string(config.BackendSim)); err != nil {
			return console.Exit(1, "%v", err)
		}
		var img []byte
		if c.NArg() == 1 {
			var err error
			img, err = bitmap.Load(c.Args().Get(0), bitmapOpts(c)...)
			if err != nil {
				return console.Exit(1, "could not load image: %v", err)
			}
		}
		s, err := openSession(c)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close(c.Context) }()

		ctx, cancel := context.WithCancel(c.Context)
		defer cancel()
		go func() {
			if err := demo(ctx, s.dev, img); err != nil && ctx.Err() == nil {
				slog.Error("panel demo failed", "error", err)
			}
		}()
		err = simview.Run(ctx, s.backend.Panel, simview.WithScale(c.Int("scale")), simview.WithTitle("glcd "+s.dev.String()))
		if err != nil {
			return console.Exit(1, "window error: %v", err)
		}
		return nil
	},
}

// demo shows img, or loops the test pattern when there is none.
func demo(ctx context.Context, dev *ks0108.Dev, img []byte) error {
	if err := dev.ClearScreen(ctx); err != nil {
		return err
	}
	if err := dev.SetDisplayOn(ctx, true); err != nil {
		return err
	}
	if img != nil {
		return dev.WriteImage(ctx, img)
	}
	for ctx.Err() == nil {
		if err := dev.TestPattern(ctx); err != nil {
			return err
		}
	}
	return nil
}
