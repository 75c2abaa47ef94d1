package ctxr

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/mgs2_tools/utils"
)

func patternChunk(size int) []byte {
	b := make([]byte, size)
	for i := range b {
		b[i] = byte(0xa0 + i%7)
	}
	return b
}

func TestSingleMipmapToDDS(t *testing.T) {
	c := &CTXR{Header: NewHeader()}
	c.Header.Width, c.Header.Height = 4, 4
	c.Chunks = []Chunk{{Data: patternChunk(64)}}

	raw, err := c.MarshalToBinary()
	require.NoError(t, err)
	assert.Len(t, raw, HEADER_SIZE+0x60)

	c2, err := NewFromData(raw)
	require.NoError(t, err)
	assert.Equal(t, c.Header, c2.Header)

	d := c2.ConvertDDS()
	assert.Equal(t, uint32(DDSCAPS_TEXTURE), d.Header.Caps[0])
	assert.Zero(t, d.Header.Caps[0]&DDSCAPS_MIPMAP)
	assert.Equal(t, uint32(1), d.Header.MipMapCount)
	assert.Equal(t, patternChunk(64), d.Data)

	ddsRaw, err := d.MarshalToBinary()
	require.NoError(t, err)
	require.Len(t, ddsRaw, DDS_HEADER_SIZE+64)
	assert.Equal(t, []byte("DDS "), ddsRaw[:4])
	assert.Equal(t, uint32(0x2100f), binary.LittleEndian.Uint32(ddsRaw[8:]))
	assert.Equal(t, uint32(0x1000), binary.LittleEndian.Uint32(ddsRaw[0x6c:]))
}

func TestMipmapChain(t *testing.T) {
	d := &DDS{}
	d.Header.Width, d.Header.Height, d.Header.MipMapCount = 8, 8, 3
	d.Data = patternChunk(256 + 64 + 16)

	c, err := FromDDS(d, "textures/hero_spec.dds")
	require.NoError(t, err)
	require.Len(t, c.Chunks, 3)
	assert.Len(t, c.Chunks[0].Data, 256)
	assert.Len(t, c.Chunks[1].Data, 64)
	assert.Len(t, c.Chunks[2].Data, 16)
	assert.Equal(t, HintAlternate, c.Header.Unknown4)

	raw, err := c.MarshalToBinary()
	require.NoError(t, err)
	for _, pos := range []int{HEADER_SIZE, HEADER_SIZE + 0x120, HEADER_SIZE + 0x120 + 0x60} {
		assert.Zero(t, pos%CHUNK_ALIGN)
	}
	assert.Equal(t, uint32(64), binary.BigEndian.Uint32(raw[HEADER_SIZE+0x120:]))

	back, err := NewFromData(raw)
	require.NoError(t, err)
	dd := back.ConvertDDS()
	assert.Equal(t, uint32(DDSCAPS_TEXTURE|DDSCAPS_MIPMAP), dd.Header.Caps[0])
	assert.Equal(t, d.Data, dd.Data)

	again, err := back.MarshalToBinary()
	require.NoError(t, err)
	assert.True(t, bytes.Equal(raw, again))

	d.Data = d.Data[:300]
	_, err = FromDDS(d, "short.dds")
	assert.True(t, errors.Is(err, utils.ErrDataInconsistency))
}

func TestDDSParse(t *testing.T) {
	c := &CTXR{Header: NewHeader()}
	c.Header.Width, c.Header.Height = 2, 2
	c.Chunks = []Chunk{{Data: []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}}}
	raw, err := c.ConvertDDS().MarshalToBinary()
	require.NoError(t, err)

	d, err := NewDDSFromData(raw)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), d.Header.Width)
	assert.Equal(t, uint32(DDPF_ALPHAPIXELS_RGB), d.Header.PixelFormat.Flags)
	assert.Equal(t, c.Chunks[0].Data, d.Data)

	img, err := c.Image(0)
	require.NoError(t, err)
	assert.Equal(t, []byte{3, 2, 1, 4}, img.Pix[:4])

	_, err = NewDDSFromData([]byte("DDX "))
	assert.True(t, errors.Is(err, utils.ErrFormatViolation))
}

func TestHeaderViolations(t *testing.T) {
	c := &CTXR{Header: NewHeader()}
	c.Header.Width, c.Header.Height = 1, 1
	c.Chunks = []Chunk{{Data: []byte{0, 0, 0, 0}}}
	good, err := c.MarshalToBinary()
	require.NoError(t, err)

	var violationTests = []struct {
		offset int
		value  byte
	}{
		{0, 'X'},     // magic
		{7, 6},       // version
		{0x27, 1},    // pad byte
		{0x30, 0xff}, // header padding
	}
	for _, test := range violationTests {
		raw := append([]byte(nil), good...)
		raw[test.offset] = test.value
		_, err := NewFromData(raw)
		assert.True(t, errors.Is(err, utils.ErrFormatViolation), "offset 0x%x: %v", test.offset, err)
	}

	_, err = NewFromData(good[:HEADER_SIZE+2])
	assert.True(t, errors.Is(err, utils.ErrFormatViolation))
}

func TestHintForName(t *testing.T) {
	var hintTests = []struct {
		name string
		hint HeaderHint
	}{
		{"body.dds", HintDefault},
		{"dir_ovl/body.dds", HintDefault},
		{"body_ovl.dds", HintAlternate},
		{"HAIR_ALP.dds", HintAlternate},
		{"gun_spec.dds", HintAlternate},
	}
	for _, test := range hintTests {
		if h := HintForName(test.name); h != test.hint {
			t.Errorf("HintForName(%q)=%v; expected %v", test.name, h, test.hint)
		}
	}
	assert.True(t, IsAlphaBlendedName("tex_a_ovl_alp.bmp"))
	assert.False(t, IsAlphaBlendedName("tex_a_alp.bmp"))
}

func TestFromImage(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 8, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 8; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 0x10, G: 0x20, B: 0x30, A: 0xff})
		}
	}

	c, err := FromImage(img, "sky_alp_ovl", 3)
	require.NoError(t, err)
	assert.Equal(t, uint16(8), c.Header.Width)
	assert.Equal(t, uint16(4), c.Header.Height)
	assert.Equal(t, uint8(3), c.Header.NumMipmaps)
	assert.Equal(t, HintForName("sky_alp_ovl"), c.Header.Unknown4)
	require.Len(t, c.Chunks, 3)
	assert.Len(t, c.Chunks[0].Data, 8*4*4)
	assert.Len(t, c.Chunks[1].Data, 4*2*4)
	assert.Len(t, c.Chunks[2].Data, 2*1*4)
	assert.Equal(t, []byte{0x30, 0x20, 0x10, 0xff}, c.Chunks[0].Data[:4])

	back, err := c.Image(0)
	require.NoError(t, err)
	assert.Equal(t, img.Pix, back.Pix)

	_, err = FromImage(image.NewNRGBA(image.Rect(0, 0, 0, 4)), "x", 1)
	assert.True(t, errors.Is(err, utils.ErrUnsupportedVariant))
}
