package main

import (
	"os"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/glcd/cmd/glcd/console"
)

var configCmd = cli.Command{
	Name:  "config",
	Usage: "print the effective configuration",
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return console.Exit(1, "could not load config: %v", err)
		}
		if err := cfg.Write(os.Stdout); err != nil {
			return console.Exit(1, "%v", err)
		}
		return nil
	},
}
