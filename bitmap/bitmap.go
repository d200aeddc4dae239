// Package bitmap converts between images and the panel memory layout.
//
// A panel image is ks0108.ImageSize bytes: RowCount pages of Width bytes,
// page after page. Bit i of the byte at (row, x) is the pixel (x, row*8+i)
// and a set bit is a dark pixel.
package bitmap

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"math/bits"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"

	"github.com/mklimuk/glcd/ks0108"
)

var ErrSize = errors.New("image has wrong size")

// DefaultThreshold splits gray levels into dark (below) and light pixels.
const DefaultThreshold = 128

type Opts struct {
	Threshold uint8
	// Invert makes light pixels dark.
	Invert bool
	// Fit scales images of other sizes onto the panel instead of failing.
	Fit bool
}

type Opt func(*Opts)

func WithThreshold(t uint8) Opt {
	return func(o *Opts) {
		o.Threshold = t
	}
}

func WithInvert() Opt {
	return func(o *Opts) {
		o.Invert = true
	}
}

func WithFit() Opt {
	return func(o *Opts) {
		o.Fit = true
	}
}

func options(opts []Opt) Opts {
	o := Opts{Threshold: DefaultThreshold}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Encode packs img, which must be exactly the panel size unless WithFit is
// given, into panel memory layout.
func Encode(img image.Image, opts ...Opt) ([]byte, error) {
	o := options(opts)
	b := img.Bounds()
	if b.Dx() != ks0108.Width || b.Dy() != ks0108.Height {
		if !o.Fit {
			return nil, fmt.Errorf("%w: %dx%d, expected %dx%d", ErrSize, b.Dx(), b.Dy(), ks0108.Width, ks0108.Height)
		}
		img = Fit(img)
		b = img.Bounds()
	}
	data := make([]byte, ks0108.ImageSize)
	for row := 0; row < ks0108.RowCount; row++ {
		for x := 0; x < ks0108.Width; x++ {
			var v byte
			for i := 0; i < 8; i++ {
				gray := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+row*8+i)).(color.Gray)
				dark := gray.Y < o.Threshold
				if dark != o.Invert {
					v |= 1 << i
				}
			}
			data[row*ks0108.Width+x] = v
		}
	}
	return data, nil
}

// Decode unpacks panel memory into a grayscale image, dark pixels black.
func Decode(data []byte) (*image.Gray, error) {
	if len(data) != ks0108.ImageSize {
		return nil, fmt.Errorf("%w: %d bytes, expected %d", ErrSize, len(data), ks0108.ImageSize)
	}
	img := image.NewGray(image.Rect(0, 0, ks0108.Width, ks0108.Height))
	for row := 0; row < ks0108.RowCount; row++ {
		for x := 0; x < ks0108.Width; x++ {
			v := data[row*ks0108.Width+x]
			for i := 0; i < 8; i++ {
				c := color.Gray{Y: 0xFF}
				if v&(1<<i) != 0 {
					c.Y = 0
				}
				img.SetGray(x, row*8+i, c)
			}
		}
	}
	return img, nil
}

// Fit scales img to fit the panel keeping its aspect ratio, centred on a
// white background.
func Fit(img image.Image) image.Image {
	dst := image.NewGray(image.Rect(0, 0, ks0108.Width, ks0108.Height))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	b := img.Bounds()
	if b.Empty() {
		return dst
	}
	w, h := ks0108.Width, b.Dy()*ks0108.Width/b.Dx()
	if h > ks0108.Height {
		w, h = b.Dx()*ks0108.Height/b.Dy(), ks0108.Height
	}
	x0, y0 := (ks0108.Width-w)/2, (ks0108.Height-h)/2
	draw.CatmullRom.Scale(dst, image.Rect(x0, y0, x0+w, y0+h), img, b, draw.Over, nil)
	return dst
}

// IsRaw reports whether path names a raw panel image rather than a picture.
func IsRaw(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".bin", ".raw", ".lcd":
		return true
	}
	return false
}

// Read decodes a picture in any registered format and encodes it.
func Read(r io.Reader, opts ...Opt) ([]byte, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("could not decode image: %w", err)
	}
	data, err := Encode(img, opts...)
	if err != nil {
		return nil, fmt.Errorf("could not encode %s image: %w", format, err)
	}
	return data, nil
}

// Load reads a panel image from path. Raw files are checked for size,
// pictures are converted.
func Load(path string, opts ...Opt) ([]byte, error) {
	if IsRaw(path) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("could not read image file: %w", err)
		}
		if len(data) != ks0108.ImageSize {
			return nil, fmt.Errorf("%w: %d bytes, expected %d", ErrSize, len(data), ks0108.ImageSize)
		}
		return data, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open image file: %w", err)
	}
	defer f.Close()
	return Read(f, opts...)
}

// WritePNG writes panel memory as a PNG picture.
func WritePNG(w io.Writer, data []byte) error {
	img, err := Decode(data)
	if err != nil {
		return err
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("could not encode png: %w", err)
	}
	return nil
}

// Rotate turns panel memory by 180 degrees in place. It works on a full
// image as well as on a segment of a single row.
func Rotate(data []byte) []byte {
	for i, j := 0, len(data)-1; i <= j; i, j = i+1, j-1 {
		data[i], data[j] = bits.Reverse8(data[j]), bits.Reverse8(data[i])
	}
	return data
}
