package imgutils

import (
	"bytes"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"github.com/anthonynsimon/bild/imgio"
	"github.com/ftrvxmtrx/tga"
	"github.com/pkg/errors"
	"golang.org/x/image/bmp"
)

var Formats = []string{"tga", "png", "webp", "bmp"}

// TGAMarshaler is implemented by images that carry their own TGA writer.
type TGAMarshaler interface {
	MarshalTGA() []byte
}

func Encode(img image.Image, format string) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch strings.ToLower(format) {
	case "tga":
		if m, ok := img.(TGAMarshaler); ok {
			return m.MarshalTGA(), nil
		}
		err = tga.Encode(&buf, img)
	case "png":
		err = imgio.PNGEncoder()(&buf, img)
	case "webp":
		err = nativewebp.Encode(&buf, img, nil)
	case "bmp":
		err = bmp.Encode(&buf, img)
	default:
		return nil, errors.Errorf("unknown image format '%s'", format)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "encoding %s", format)
	}
	return buf.Bytes(), nil
}

// Save writes img to path using the extension as the format.
func Save(path string, img image.Image) error {
	data, err := Encode(img, strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return errors.Wrapf(err, "saving '%s'", path)
	}
	return os.WriteFile(path, data, 0666)
}

// Open decodes a tga, png, bmp or webp file.
func Open(path string) (image.Image, error) {
	if strings.EqualFold(filepath.Ext(path), ".tga") {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		img, err := tga.Decode(f)
		return img, errors.Wrapf(err, "decoding '%s'", path)
	}
	img, err := imgio.Open(path)
	return img, errors.Wrapf(err, "decoding '%s'", path)
}
