package bitmap

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/glcd/ks0108"
)

func whiteImage(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xFF
	}
	return img
}

func TestEncode_BitLayout(t *testing.T) {
	img := whiteImage(ks0108.Width, ks0108.Height)
	img.SetGray(0, 0, color.Gray{})    // row 0 bit 0
	img.SetGray(5, 7, color.Gray{})    // row 0 bit 7
	img.SetGray(127, 63, color.Gray{}) // row 7 bit 7
	img.SetGray(64, 9, color.Gray{Y: 127})
	img.SetGray(65, 9, color.Gray{Y: 128})

	data, err := Encode(img)
	require.NoError(t, err)
	require.Len(t, data, ks0108.ImageSize)
	assert.Equal(t, byte(0x01), data[0])
	assert.Equal(t, byte(0x80), data[5])
	assert.Equal(t, byte(0x80), data[7*ks0108.Width+127])
	assert.Equal(t, byte(0x02), data[ks0108.Width+64], "below threshold is dark")
	assert.Equal(t, byte(0x00), data[ks0108.Width+65])
}

func TestEncode_Options(t *testing.T) {
	img := whiteImage(ks0108.Width, ks0108.Height)
	img.SetGray(0, 0, color.Gray{Y: 150})

	data, err := Encode(img, WithThreshold(200))
	require.NoError(t, err)
	assert.Equal(t, byte(0x01), data[0])

	img.SetGray(0, 0, color.Gray{})
	data, err = Encode(img, WithInvert())
	require.NoError(t, err)
	assert.Equal(t, byte(0xFE), data[0])
	assert.Equal(t, byte(0xFF), data[1])
}

func TestEncode_WrongSize(t *testing.T) {
	_, err := Encode(whiteImage(64, 128))
	assert.ErrorIs(t, err, ErrSize)

	data, err := Encode(whiteImage(256, 128), WithFit())
	require.NoError(t, err)
	assert.Equal(t, make([]byte, ks0108.ImageSize), data)
}

func TestEncode_OffsetBounds(t *testing.T) {
	img := image.NewGray(image.Rect(10, 20, 10+ks0108.Width, 20+ks0108.Height))
	for i := range img.Pix {
		img.Pix[i] = 0xFF
	}
	img.SetGray(10, 20, color.Gray{})
	data, err := Encode(img)
	require.NoError(t, err)
	assert.Equal(t, byte(0x01), data[0])
}

func TestDecodeRoundTrip(t *testing.T) {
	data := make([]byte, ks0108.ImageSize)
	for i := range data {
		data[i] = byte(i * 7)
	}
	img, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, color.Gray{Y: 0xFF}, img.GrayAt(0, 0))
	assert.Equal(t, color.Gray{Y: 0}, img.GrayAt(1, 0), "byte 7 sets bit 0")

	again, err := Encode(img)
	require.NoError(t, err)
	assert.Equal(t, data, again)

	_, err = Decode(data[:10])
	assert.ErrorIs(t, err, ErrSize)
}

func TestFit(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 32, 32))
	img := Fit(src)
	assert.Equal(t, image.Rect(0, 0, ks0108.Width, ks0108.Height), img.Bounds())
	gray := img.(*image.Gray)
	assert.Equal(t, uint8(0xFF), gray.GrayAt(0, 32).Y, "left margin stays white")
	assert.Equal(t, uint8(0), gray.GrayAt(64, 32).Y, "centre holds the black source")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	data := make([]byte, ks0108.ImageSize)
	data[3] = 0x3C

	raw := filepath.Join(dir, "logo.bin")
	require.NoError(t, os.WriteFile(raw, data, 0o644))
	got, err := Load(raw)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	short := filepath.Join(dir, "short.bin")
	require.NoError(t, os.WriteFile(short, data[:100], 0o644))
	_, err = Load(short)
	assert.ErrorIs(t, err, ErrSize)

	var buf bytes.Buffer
	require.NoError(t, WritePNG(&buf, data))
	pic := filepath.Join(dir, "logo.png")
	require.NoError(t, os.WriteFile(pic, buf.Bytes(), 0o644))
	got, err = Load(pic)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	decoded, err := png.Decode(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, ks0108.Width, decoded.Bounds().Dx())

	_, err = Load(filepath.Join(dir, "missing.png"))
	assert.Error(t, err)
}

func TestIsRaw(t *testing.T) {
	assert.True(t, IsRaw("a.bin"))
	assert.True(t, IsRaw("A.RAW"))
	assert.False(t, IsRaw("a.png"))
	assert.False(t, IsRaw("a"))
}

func TestRotate(t *testing.T) {
	assert.Equal(t, []byte{0x40, 0x80}, Rotate([]byte{0x01, 0x02}))
	assert.Equal(t, []byte{0x0F, 0x80, 0x01}, Rotate([]byte{0x80, 0x01, 0xF0}))
	assert.Empty(t, Rotate(nil))

	img := make([]byte, ks0108.ImageSize)
	img[0] = 0x01 // top left pixel
	Rotate(img)
	assert.Equal(t, byte(0x80), img[ks0108.ImageSize-1], "lands bottom right")
	got, err := Decode(img)
	require.NoError(t, err)
	assert.Equal(t, color.Gray{Y: 0}, got.GrayAt(ks0108.Width-1, ks0108.Height-1))
}
