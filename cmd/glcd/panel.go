package main

import (
	"encoding/hex"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/glcd/bitmap"
	"github.com/mklimuk/glcd/cmd/glcd/console"
	"github.com/mklimuk/glcd/config"
	"github.com/mklimuk/glcd/font"
)

var statusCmd = cli.Command{
	Name:  "status",
	Usage: "read the status register of both chips",
	Action: withPanel(func(c *cli.Context, s *session) error {
		st, err := s.dev.Status(c.Context)
		if err != nil {
			return console.Exit(1, "could not read status: %s", console.Red(err))
		}
		return printYAML(st)
	}),
}

var onCmd = cli.Command{
	Name:  "on",
	Usage: "turn the display on",
	Action: withPanel(func(c *cli.Context, s *session) error {
		if err := s.dev.SetDisplayOn(c.Context, true); err != nil {
			return console.Exit(1, "could not turn display on: %s", console.Red(err))
		}
		return nil
	}),
}

var offCmd = cli.Command{
	Name:  "off",
	Usage: "turn the display off, memory is kept",
	Action: withPanel(func(c *cli.Context, s *session) error {
		if err := s.dev.SetDisplayOn(c.Context, false); err != nil {
			return console.Exit(1, "could not turn display off: %s", console.Red(err))
		}
		return nil
	}),
}

var clearCmd = cli.Command{
	Name:  "clear",
	Usage: "blank the whole panel",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "do not ask for confirmation"},
	},
	Action: withPanel(func(c *cli.Context, s *session) error {
		if !c.Bool("yes") && s.cfg.Backend != config.BackendSim {
			ok, err := console.Confirm("Clear the panel?")
			if err != nil {
				return console.Exit(1, "prompt error: %v", err)
			}
			if !ok {
				console.PInfof(console.PictoStop, "aborted")
				return nil
			}
		}
		if err := s.dev.ClearScreen(c.Context); err != nil {
			return console.Exit(1, "could not clear panel: %s", console.Red(err))
		}
		return nil
	}),
}

var scrollCmd = cli.Command{
	Name:      "scroll",
	Usage:     "set the display start line",
	ArgsUsage: "<offset>",
	Action: withPanel(func(c *cli.Context, s *session) error {
		args, err := intArgs(c, 1)
		if err != nil {
			return err
		}
		if err := s.dev.SetVerticalScroll(c.Context, args[0]); err != nil {
			return console.Exit(1, "could not scroll: %s", console.Red(err))
		}
		return nil
	}),
}

var rowCmd = cli.Command{
	Name:      "row",
	Usage:     "write hex encoded column bytes into a row",
	ArgsUsage: "<row> <x> <hex>",
	Action: withPanel(func(c *cli.Context, s *session) error {
		if c.NArg() != 3 {
			return console.Exit(1, "expected 3 arguments, got %d", c.NArg())
		}
		args, err := intArgs(c, 2)
		if err != nil {
			return err
		}
		data, err := hex.DecodeString(c.Args().Get(2))
		if err != nil {
			return console.Exit(1, "could not decode data: %v", err)
		}
		if err := s.dev.WriteRow(c.Context, args[0], args[1], data); err != nil {
			return console.Exit(1, "could not write row: %s", console.Red(err))
		}
		return nil
	}),
}

var fillCmd = cli.Command{
	Name:      "fill",
	Usage:     "repeat one byte across a row",
	ArgsUsage: "<row> <x> <count> <hex byte>",
	Action: withPanel(func(c *cli.Context, s *session) error {
		if c.NArg() != 4 {
			return console.Exit(1, "expected 4 arguments, got %d", c.NArg())
		}
		args, err := intArgs(c, 3)
		if err != nil {
			return err
		}
		value, err := hex.DecodeString(c.Args().Get(3))
		if err != nil || len(value) != 1 {
			return console.Exit(1, "could not decode fill byte %q", c.Args().Get(3))
		}
		if err := s.dev.FillRow(c.Context, args[0], args[1], args[2], value[0]); err != nil {
			return console.Exit(1, "could not fill row: %s", console.Red(err))
		}
		return nil
	}),
}

var bitmapFlags = []cli.Flag{
	&cli.UintFlag{Name: "threshold", Value: bitmap.DefaultThreshold, Usage: "gray level below which a pixel is dark"},
	&cli.BoolFlag{Name: "invert", Usage: "swap dark and light pixels"},
	&cli.BoolFlag{Name: "fit", Usage: "scale pictures of any size to the panel"},
}

func bitmapOpts(c *cli.Context) []bitmap.Opt {
	opts := []bitmap.Opt{bitmap.WithThreshold(uint8(c.Uint("threshold")))}
	if c.Bool("invert") {
		opts = append(opts, bitmap.WithInvert())
	}
	if c.Bool("fit") {
		opts = append(opts, bitmap.WithFit())
	}
	return opts
}

var imageCmd = cli.Command{
	Name:      "image",
	Usage:     "draw a picture or a raw panel image",
	ArgsUsage: "<path>",
	Flags:     bitmapFlags,
	Action: withPanel(func(c *cli.Context, s *session) error {
		if c.NArg() != 1 {
			return console.Exit(1, "expected 1 argument, got %d", c.NArg())
		}
		img, err := bitmap.Load(c.Args().Get(0), bitmapOpts(c)...)
		if err != nil {
			return console.Exit(1, "could not load image: %v", err)
		}
		if s.cfg.Rotated {
			bitmap.Rotate(img)
		}
		if err := s.dev.WriteImage(c.Context, img); err != nil {
			return console.Exit(1, "could not draw image: %s", console.Red(err))
		}
		return nil
	}),
}

var textCmd = cli.Command{
	Name:      "text",
	Usage:     "write a line of text into a row",
	ArgsUsage: "<row> <x> <text...>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "font", Usage: "font face, defaults to the configured one"},
		&cli.BoolFlag{Name: "clear", Usage: "blank the rest of the row"},
	},
	Action: withPanel(func(c *cli.Context, s *session) error {
		if c.NArg() < 3 {
			return console.Exit(1, "expected at least 3 arguments, got %d", c.NArg())
		}
		args, err := intArgs(c, 2)
		if err != nil {
			return err
		}
		name := s.cfg.Font
		if c.IsSet("font") {
			name = c.String("font")
		}
		face, err := font.ByName(name)
		if err != nil {
			return console.Exit(1, "%v", err)
		}
		opts := []font.Opt{font.WithFace(face)}
		if c.Bool("clear") {
			opts = append(opts, font.WithClearBackground())
		}
		if s.cfg.Rotated {
			opts = append(opts, font.WithRotated())
		}
		text := strings.Join(c.Args().Slice()[2:], " ")
		if err := font.NewWriter(s.dev, opts...).WriteText(c.Context, args[0], args[1], text); err != nil {
			return console.Exit(1, "could not write text: %s", console.Red(err))
		}
		return nil
	}),
}

var patternCmd = cli.Command{
	Name:  "pattern",
	Usage: "run the scrolling test pattern, interrupt to stop",
	Action: withPanel(func(c *cli.Context, s *session) error {
		ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
		defer stop()
		console.PInfof(console.PictoPanel, "running test pattern")
		err := s.dev.TestPattern(ctx)
		if err != nil && ctx.Err() == nil {
			return console.Exit(1, "test pattern failed: %s", console.Red(err))
		}
		console.PInfof(console.PictoFinish, "done")
		return nil
	}),
}

// intArgs parses the first n arguments as integers.
func intArgs(c *cli.Context, n int) ([]int, error) {
	if c.NArg() < n {
		return nil, console.Exit(1, "expected %d arguments, got %d", n, c.NArg())
	}
	res := make([]int, n)
	for i := range res {
		v, err := strconv.Atoi(c.Args().Get(i))
		if err != nil {
			return nil, console.Exit(1, "argument %d: %v", i+1, err)
		}
		res[i] = v
	}
	return res, nil
}

