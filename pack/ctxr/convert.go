package ctxr

import (
	"image"
	"image/draw"

	"github.com/anthonynsimon/bild/transform"

	"github.com/mogaika/mgs2_tools/utils"
)

// ConvertDDS wraps the mipmap chunks into an uncompressed 32-bit DDS.
func (c *CTXR) ConvertDDS() *DDS {
	d := &DDS{}
	h := &d.Header
	h.Flags = DDSD_CAPS_HEIGHT_WIDTH_PIXELFORMAT_MIPMAPCOUNT
	h.Width = uint32(c.Header.Width)
	h.Height = uint32(c.Header.Height)
	h.MipMapCount = uint32(len(c.Chunks))
	h.PixelFormat = NewDDSPixelFormat()
	h.PixelFormat.Flags = DDPF_ALPHAPIXELS_RGB
	h.Caps[0] = DDSCAPS_TEXTURE
	if len(c.Chunks) > 1 {
		h.Caps[0] |= DDSCAPS_MIPMAP
	}

	size := 0
	for _, chunk := range c.Chunks {
		size += len(chunk.Data)
	}
	d.Data = make([]byte, 0, size)
	for _, chunk := range c.Chunks {
		d.Data = append(d.Data, chunk.Data...)
	}
	return d
}

// FromDDS splits a 32-bit DDS into mipmap chunks. Level sizes start at
// width*height*4 and shrink by four per level. name selects the header hint.
func FromDDS(d *DDS, name string) (*CTXR, error) {
	if d.Header.Width > 0xffff || d.Header.Height > 0xffff {
		return nil, utils.UnsupportedVariantf("%dx%d does not fit into header", d.Header.Width, d.Header.Height)
	}
	mipmaps := d.Header.MipMapCount
	if mipmaps == 0 {
		mipmaps = 1
	}
	if mipmaps > 0xff {
		return nil, utils.UnsupportedVariantf("%d mipmaps do not fit into header", mipmaps)
	}

	c := &CTXR{Header: NewHeader()}
	c.Header.Width = uint16(d.Header.Width)
	c.Header.Height = uint16(d.Header.Height)
	c.Header.NumMipmaps = uint8(mipmaps)
	c.Header.Unknown4 = HintForName(name)

	c.Chunks = make([]Chunk, mipmaps)
	pos := 0
	size := int(d.Header.Width) * int(d.Header.Height) * 4
	for i := range c.Chunks {
		if pos+size > len(d.Data) {
			return nil, utils.DataInconsistencyf("mipmap %d needs bytes 0x%x-0x%x, dds has 0x%x",
				i, pos, pos+size, len(d.Data))
		}
		c.Chunks[i].Data = append([]byte(nil), d.Data[pos:pos+size]...)
		pos += size
		size /= 4
	}
	if pos != len(d.Data) {
		Trace.Printf("[ctxr] %s: 0x%x trailing dds bytes dropped", name, len(d.Data)-pos)
	}
	return c, nil
}

// Image decodes mipmap level as 32-bit BGRA pixels.
func (c *CTXR) Image(level int) (*image.NRGBA, error) {
	if level < 0 || level >= len(c.Chunks) {
		return nil, utils.DataInconsistencyf("mipmap %d outside of %d levels", level, len(c.Chunks))
	}
	w, h := int(c.Header.Width)>>uint(level), int(c.Header.Height)>>uint(level)
	if w == 0 {
		w = 1
	}
	if h == 0 {
		h = 1
	}
	data := c.Chunks[level].Data
	if len(data) < w*h*4 {
		return nil, utils.DataInconsistencyf("mipmap %d has 0x%x bytes, %dx%d needs 0x%x", level, len(data), w, h, w*h*4)
	}
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < w*h; i++ {
		img.Pix[i*4+0] = data[i*4+2]
		img.Pix[i*4+1] = data[i*4+1]
		img.Pix[i*4+2] = data[i*4+0]
		img.Pix[i*4+3] = data[i*4+3]
	}
	return img, nil
}

// FromImage encodes img as a BGRA mipmap chain of the given depth, each
// level half the size of the previous one. Zero levels means one.
func FromImage(img image.Image, name string, levels int) (*CTXR, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 || w > 0xffff || h > 0xffff {
		return nil, utils.UnsupportedVariantf("%dx%d does not fit into header", w, h)
	}
	if levels <= 0 {
		levels = 1
	}
	if levels > 0xff {
		return nil, utils.UnsupportedVariantf("%d mipmaps do not fit into header", levels)
	}

	c := &CTXR{Header: NewHeader()}
	c.Header.Width = uint16(w)
	c.Header.Height = uint16(h)
	c.Header.NumMipmaps = uint8(levels)
	c.Header.Unknown4 = HintForName(name)

	c.Chunks = make([]Chunk, levels)
	for i := range c.Chunks {
		lw, lh := w>>uint(i), h>>uint(i)
		if lw == 0 {
			lw = 1
		}
		if lh == 0 {
			lh = 1
		}
		level := img
		if i != 0 {
			level = transform.Resize(img, lw, lh, transform.Linear)
		}
		nrgba := image.NewNRGBA(image.Rect(0, 0, lw, lh))
		draw.Draw(nrgba, nrgba.Bounds(), level, level.Bounds().Min, draw.Src)

		data := make([]byte, lw*lh*4)
		for p := 0; p < lw*lh; p++ {
			data[p*4+0] = nrgba.Pix[p*4+2]
			data[p*4+1] = nrgba.Pix[p*4+1]
			data[p*4+2] = nrgba.Pix[p*4+0]
			data[p*4+3] = nrgba.Pix[p*4+3]
		}
		c.Chunks[i].Data = data
	}
	return c, nil
}
