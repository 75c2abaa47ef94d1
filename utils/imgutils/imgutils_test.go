package imgutils

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/ftrvxmtrx/tga"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

func checker() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			c := color.NRGBA{A: 0xff}
			if (x+y)%2 == 0 {
				c.R, c.G, c.B = 0xff, 0x80, 0x10
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func sameColors(t *testing.T, want image.Image, got image.Image) {
	require.Equal(t, want.Bounds().Size(), got.Bounds().Size())
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			w := color.NRGBAModel.Convert(want.At(x, y))
			g := color.NRGBAModel.Convert(got.At(got.Bounds().Min.X+x, got.Bounds().Min.Y+y))
			assert.Equal(t, w, g, "pixel %d,%d", x, y)
		}
	}
}

func TestEncode(t *testing.T) {
	img := checker()
	for _, tc := range []struct {
		format string
		decode func([]byte) (image.Image, error)
	}{
		{"png", func(b []byte) (image.Image, error) { return png.Decode(bytes.NewReader(b)) }},
		{"bmp", func(b []byte) (image.Image, error) { return bmp.Decode(bytes.NewReader(b)) }},
		{"tga", func(b []byte) (image.Image, error) { return tga.Decode(bytes.NewReader(b)) }},
	} {
		t.Run(tc.format, func(t *testing.T) {
			data, err := Encode(img, tc.format)
			require.NoError(t, err)
			decoded, err := tc.decode(data)
			require.NoError(t, err)
			sameColors(t, img, decoded)
		})
	}

	data, err := Encode(img, "webp")
	require.NoError(t, err)
	assert.Equal(t, []byte("RIFF"), data[:4])

	_, err = Encode(img, "gif")
	assert.Error(t, err)
}

func TestSaveOpen(t *testing.T) {
	dir := t.TempDir()
	for _, ext := range []string{".tga", ".png"} {
		path := filepath.Join(dir, "checker"+ext)
		require.NoError(t, Save(path, checker()))
		img, err := Open(path)
		require.NoError(t, err)
		sameColors(t, checker(), img)
	}
}
