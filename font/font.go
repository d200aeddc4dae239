// Package font renders text into single panel rows with tinyfont.
package font

import (
	"context"
	"fmt"
	"image/color"
	"strings"

	"tinygo.org/x/drivers"
	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"

	"github.com/mklimuk/glcd/bitmap"
	"github.com/mklimuk/glcd/ks0108"
)

var (
	Ink   = color.RGBA{A: 0xff}
	Paper = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)

// Face is a font together with the baseline that places its glyphs inside
// an 8 pixel row.
type Face struct {
	Name     string
	Font     tinyfont.Fonter
	Baseline int16
}

var faces = []Face{
	{Name: "tomthumb", Font: &tinyfont.TomThumb, Baseline: 6},
	{Name: "proggy", Font: &proggy.TinySZ8pt7b, Baseline: 7},
}

// DefaultFace is the smallest face, fully legible in one row.
func DefaultFace() Face {
	return faces[0]
}

// ByName looks up a built in face.
func ByName(name string) (Face, error) {
	for _, f := range faces {
		if strings.EqualFold(f.Name, name) {
			return f, nil
		}
	}
	return Face{}, fmt.Errorf("unknown font %q", name)
}

var _ drivers.Displayer = &Row{}

// Row is a one page tall canvas. Bit i of each column byte is pixel row i.
type Row struct {
	cols [ks0108.Width]byte
}

func (r *Row) Size() (x, y int16) {
	return ks0108.Width, 8
}

func (r *Row) SetPixel(x, y int16, c color.RGBA) {
	if x < 0 || x >= ks0108.Width || y < 0 || y >= 8 {
		return
	}
	if dark(c) {
		r.cols[x] |= 1 << y
	} else {
		r.cols[x] &^= 1 << y
	}
}

func (r *Row) Display() error {
	return nil
}

// Bytes returns the first n columns.
func (r *Row) Bytes(n int) []byte {
	n = max(0, min(n, ks0108.Width))
	return append([]byte(nil), r.cols[:n]...)
}

func dark(c color.RGBA) bool {
	return c.A != 0 && (int(c.R)+int(c.G)+int(c.B))/3 < 0x80
}

// Render draws text from column 0 and returns the row with the width the
// text occupies.
func Render(face Face, text string) (*Row, int) {
	r := &Row{}
	tinyfont.WriteLine(r, face.Font, 0, face.Baseline, text, Ink)
	_, w := tinyfont.LineWidth(face.Font, text)
	return r, min(int(w), ks0108.Width)
}

// RowWriter is the panel surface text is written to.
type RowWriter interface {
	WriteRow(ctx context.Context, row, x int, data []byte) error
}

type Writer struct {
	dst             RowWriter
	face            Face
	clearBackground bool
	rotated         bool
}

type Opt func(*Writer)

func WithFace(face Face) Opt {
	return func(w *Writer) {
		w.face = face
	}
}

// WithClearBackground blanks the rest of the row after the text.
func WithClearBackground() Opt {
	return func(w *Writer) {
		w.clearBackground = true
	}
}

// WithRotated writes for a panel mounted upside down.
func WithRotated() Opt {
	return func(w *Writer) {
		w.rotated = true
	}
}

func NewWriter(dst RowWriter, opts ...Opt) *Writer {
	w := &Writer{dst: dst, face: DefaultFace()}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WriteText renders text at logical row and column x. Text running past the
// right edge is cut.
func (w *Writer) WriteText(ctx context.Context, row, x int, text string) error {
	if row < 0 || row >= ks0108.RowCount || x < 0 || x >= ks0108.Width {
		return nil
	}
	r, width := Render(w.face, text)
	n := width
	if w.clearBackground {
		n = ks0108.Width
	}
	data := r.Bytes(min(n, ks0108.Width-x))
	if len(data) == 0 {
		return nil
	}
	if w.rotated {
		row = ks0108.RowCount - 1 - row
		x = ks0108.Width - x - len(data)
		data = bitmap.Rotate(data)
	}
	if err := w.dst.WriteRow(ctx, row, x, data); err != nil {
		return fmt.Errorf("could not write text %q: %w", text, err)
	}
	return nil
}
