// Package simview shows a simulated panel in a desktop window.
package simview

import (
	"context"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/mklimuk/glcd/sim"
)

var (
	// Ink and Paper mimic a yellow-green STN panel.
	Ink   = [4]byte{0x20, 0x30, 0x10, 0xFF}
	Paper = [4]byte{0x9C, 0xC8, 0x3C, 0xFF}
)

type Opts struct {
	Title string
	Scale int
}

type Opt func(*Opts)

func WithTitle(title string) Opt {
	return func(o *Opts) {
		o.Title = title
	}
}

func WithScale(scale int) Opt {
	return func(o *Opts) {
		o.Scale = scale
	}
}

// Run opens a window mirroring panel and blocks until the window is closed
// or ctx is done.
func Run(ctx context.Context, panel *sim.Panel, opts ...Opt) error {
	o := Opts{Title: "glcd", Scale: 4}
	for _, opt := range opts {
		opt(&o)
	}
	g := &game{ctx: ctx, panel: panel}
	ebiten.SetWindowTitle(o.Title)
	ebiten.SetWindowSize(sim.Width*o.Scale, sim.Height*o.Scale)
	ebiten.SetTPS(30)
	return ebiten.RunGame(g)
}

type game struct {
	ctx   context.Context
	panel *sim.Panel
	img   *ebiten.Image
	pix   []byte
}

func (g *game) Update() error {
	if g.ctx.Err() != nil {
		return ebiten.Termination
	}
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	if g.img == nil {
		g.img = ebiten.NewImage(sim.Width, sim.Height)
		g.pix = make([]byte, sim.Width*sim.Height*4)
	}
	g.panel.Raster(g.pix, Ink, Paper)
	g.img.WritePixels(g.pix)
	screen.DrawImage(g.img, nil)
}

func (g *game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return sim.Width, sim.Height
}
