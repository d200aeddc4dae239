package main

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	chlog "github.com/charmbracelet/log"
	"github.com/muesli/termenv"
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/glcd/lcdctx"
)

var version string
var commit string
var date string

func main() {
	os.Exit(run())
}

func run() int {
	err := newApp().Run(os.Args)
	if err != nil {
		var exerr cli.ExitCoder
		if errors.As(err, &exerr) {
			log.Printf("unexpected error: %v", err)
			return exerr.ExitCode()
		}
		log.Printf("unexpected error: %v", err)
		return 1
	}
	return 0
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "glcd"
	app.EnableBashCompletion = true
	app.Version = fmt.Sprintf("%s-%s-%s", version, date, commit)
	app.Usage = "KS0108 graphic lcd cli"
	// exit codes are resolved in run
	app.ExitErrHandler = func(*cli.Context, error) {}
	app.Flags = []cli.Flag{
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "enable verbose logging",
		},
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "panel configuration file",
			EnvVars: []string{"GLCD_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "backend",
			Aliases: []string{"b"},
			Usage:   "override the configured backend (sim, host, board, expander)",
		},
		&cli.BoolFlag{
			Name:  "show",
			Usage: "print the simulated panel after the command",
		},
	}
	app.Before = func(c *cli.Context) error {
		charm := chlog.NewWithOptions(os.Stderr, chlog.Options{
			ReportCaller:    true,
			ReportTimestamp: true,
			TimeFormat:      time.DateTime,
			Prefix:          "glcd",
		})
		charm.SetColorProfile(termenv.TrueColor)
		charm.SetLevel(chlog.InfoLevel)
		if c.Bool("verbose") {
			charm.SetLevel(chlog.DebugLevel)
		}
		slog.SetDefault(slog.New(charm))
		c.Context = lcdctx.SetVerbose(c.Context, c.Bool("verbose"))
		c.Context = lcdctx.SetShow(c.Context, c.Bool("show"))
		return nil
	}
	app.Commands = cli.Commands{
		&statusCmd,
		&onCmd,
		&offCmd,
		&clearCmd,
		&scrollCmd,
		&rowCmd,
		&fillCmd,
		&imageCmd,
		&textCmd,
		&patternCmd,
		&convertCmd,
		&deconvertCmd,
		&viewCmd,
		&configCmd,
		&usbCmd,
		&mcp2221Cmd,
		&expanderCmd,
	}
	return app
}
