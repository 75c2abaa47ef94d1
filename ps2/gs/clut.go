package gs

import (
	"image"

	"github.com/mogaika/mgs2_tools/utils"
)

// UnswizzleCLUT restores linear order of a 256 colour CSM1 palette in place.
// The palette is stored as 32 runs of 8 colours where runs 1,2 then 5,6 and
// so on are swapped.
func UnswizzleCLUT(clut []uint32) {
	for i := 1; i+1 < len(clut)/8 && i < 32; i += 4 {
		a := clut[i*8 : i*8+8]
		b := clut[(i+1)*8 : (i+1)*8+8]
		for j := range a {
			a[j], b[j] = b[j], a[j]
		}
	}
}

// AllZero reports a palette that was never uploaded.
func AllZero(clut []uint32) bool {
	for _, c := range clut {
		if c != 0 {
			return false
		}
	}
	return true
}

// PaintPixels resolves palette indices to colours. GS alpha ranges 0..0x80
// and is scaled to 0..0xff.
func PaintPixels(width, height int, indices []byte, clut []uint32) (*image.NRGBA, error) {
	if len(indices) < width*height {
		return nil, utils.DataInconsistencyf("got %d indexes for %dx%d image", len(indices), width, height)
	}
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < width*height; i++ {
		idx := int(indices[i])
		if idx >= len(clut) {
			return nil, utils.DataInconsistencyf("index %d outside of %d colour palette", idx, len(clut))
		}
		c := clut[idx]
		a := byte(c >> 24)
		if a > 0x80 {
			return nil, utils.UnsupportedVariantf("palette colour %d has alpha 0x%x above 0x80", idx, a)
		}
		p := img.Pix[i*4 : i*4+4]
		p[0] = byte(c)
		p[1] = byte(c >> 8)
		p[2] = byte(c >> 16)
		p[3] = byte((uint32(a) * 0xff) / 0x80)
	}
	return img, nil
}
