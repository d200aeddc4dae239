package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/glcd/bitmap"
	"github.com/mklimuk/glcd/cmd/glcd/console"
)

var convertCmd = cli.Command{
	Name:      "convert",
	Usage:     "convert a picture into a raw panel image",
	ArgsUsage: "<picture> <raw>",
	Flags:     bitmapFlags,
	Action: func(c *cli.Context) error {
		if c.NArg() != 2 {
			return console.Exit(1, "expected 2 arguments, got %d", c.NArg())
		}
		f, err := os.Open(c.Args().Get(0))
		if err != nil {
			return console.Exit(1, "could not open picture: %v", err)
		}
		defer f.Close()
		data, err := bitmap.Read(f, bitmapOpts(c)...)
		if err != nil {
			return console.Exit(1, "%v", err)
		}
		if err := os.WriteFile(c.Args().Get(1), data, 0o644); err != nil {
			return console.Exit(1, "could not write raw image: %v", err)
		}
		console.PInfof(console.PictoFinish, "wrote %d bytes to %s", len(data), console.White(c.Args().Get(1)))
		return nil
	},
}

var deconvertCmd = cli.Command{
	Name:      "deconvert",
	Usage:     "render a raw panel image as a PNG picture",
	ArgsUsage: "<raw> <png>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 2 {
			return console.Exit(1, "expected 2 arguments, got %d", c.NArg())
		}
		data, err := os.ReadFile(c.Args().Get(0))
		if err != nil {
			return console.Exit(1, "could not read raw image: %v", err)
		}
		if err := writePNG(c.Args().Get(1), data); err != nil {
			return console.Exit(1, "%v", err)
		}
		console.PInfof(console.PictoFinish, "wrote %s", console.White(c.Args().Get(1)))
		return nil
	},
}

func writePNG(path string, data []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create picture: %w", err)
	}
	if err := bitmap.WritePNG(f, data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
