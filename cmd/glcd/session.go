package main

import (
	"context"
	"log/slog"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/glcd/backend"
	"github.com/mklimuk/glcd/cmd/glcd/console"
	"github.com/mklimuk/glcd/config"
	"github.com/mklimuk/glcd/ks0108"
	"github.com/mklimuk/glcd/lcdctx"
)

// loadConfig reads the configuration named by --config, or the defaults,
// and applies the --backend override.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return config.Config{}, err
		}
	}
	if b := c.String("backend"); b != "" {
		cfg.Backend = config.Backend(b)
		if err := cfg.Validate(); err != nil {
			return config.Config{}, err
		}
	}
	return cfg, nil
}

// session is a panel opened on the configured backend.
type session struct {
	cfg     config.Config
	dev     *ks0108.Dev
	backend *backend.Backend
}

func openSession(c *cli.Context) (*session, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, console.Exit(1, "could not load config: %v", err)
	}
	b, err := backend.Open(c.Context, cfg)
	if err != nil {
		return nil, console.Exit(1, "%v", err)
	}
	s := &session{cfg: cfg, backend: b}
	s.dev, err = ks0108.New(c.Context, b.Pins, cfg.DriverOpts()...)
	if err != nil {
		_ = s.Close(c.Context)
		return nil, console.Exit(1, "could not initialize panel: %v", err)
	}
	if b.Panel != nil {
		// every invocation gets a fresh simulated panel, which would stay blank
		if err := s.dev.SetDisplayOn(c.Context, true); err != nil {
			_ = s.Close(c.Context)
			return nil, console.Exit(1, "could not turn simulated panel on: %v", err)
		}
	}
	slog.Debug("panel ready", "backend", cfg.Backend, "dev", s.dev)
	return s, nil
}

// Close releases the backend and, when asked to, prints the simulated panel.
func (s *session) Close(ctx context.Context) error {
	if p := s.backend.Panel; p != nil && lcdctx.IsShow(ctx) {
		console.Print(p.String())
		for _, v := range p.Violations() {
			console.Warnf("timing violation: %s", v)
		}
	}
	return s.backend.Close()
}

// withPanel opens a session for the duration of fn.
func withPanel(fn func(c *cli.Context, s *session) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		s, err := openSession(c)
		if err != nil {
			return err
		}
		err = fn(c, s)
		if cerr := s.Close(c.Context); cerr != nil {
			slog.Warn("could not release backend", "error", cerr)
		}
		return err
	}
}
