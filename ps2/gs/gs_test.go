package gs

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/mgs2_tools/utils"
)

func TestPSMCT32PageRoundTrip(t *testing.T) {
	src := make([]uint32, 64*32)
	for i := range src {
		src[i] = uint32(i)*0x01010101 ^ 0xdeadbeef
	}

	mem := make([]uint32, MemoryWords)
	require.NoError(t, WritePSMCT32(0, 1, 0, 0, 64, 32, src, mem))

	seen := make(map[int]bool)
	for y := 0; y < 32; y++ {
		for x := 0; x < 64; x++ {
			addr := addressPSMCT32(0, 1, x, y)
			if addr < 0 || addr >= pageWords {
				t.Fatalf("(%d,%d) maps to 0x%x outside of first page", x, y, addr)
			}
			if seen[addr] {
				t.Fatalf("(%d,%d) maps to already used word 0x%x", x, y, addr)
			}
			seen[addr] = true
		}
	}

	out, err := ReadPSMCT32(0, 1, 0, 0, 64, 32, mem)
	require.NoError(t, err)
	assert.Equal(t, src, out)

	// sub rectangle reads see the same texels
	sub, err := ReadPSMCT32(0, 1, 8, 4, 4, 2, mem)
	require.NoError(t, err)
	assert.Equal(t, []uint32{src[4*64+8], src[4*64+9], src[4*64+10], src[4*64+11],
		src[5*64+8], src[5*64+9], src[5*64+10], src[5*64+11]}, sub)
}

func TestIndexedPageAddressing(t *testing.T) {
	var layoutTests = []struct {
		name          string
		width, height int
		slots         int
		address       func(x, y int) (int, int)
	}{
		{"PSMT8", 128, 64, 4, func(x, y int) (int, int) { return addressPSMT8(0, 2, x, y) }},
		{"PSMT4", 128, 128, 8, func(x, y int) (int, int) { return addressPSMT4(0, 2, x, y) }},
	}
	for _, test := range layoutTests {
		used := make([]bool, pageWords*test.slots)
		for y := 0; y < test.height; y++ {
			for x := 0; x < test.width; x++ {
				addr, slot := test.address(x, y)
				if addr < 0 || addr >= pageWords || slot < 0 || slot >= test.slots {
					t.Fatalf("%s: (%d,%d) maps to word 0x%x slot %d outside of first page", test.name, x, y, addr, slot)
				}
				if used[addr*test.slots+slot] {
					t.Fatalf("%s: (%d,%d) maps to already used word 0x%x slot %d", test.name, x, y, addr, slot)
				}
				used[addr*test.slots+slot] = true
			}
		}
	}
}

func TestReadPSMT4Nibbles(t *testing.T) {
	mem := make([]uint32, MemoryWords)
	addr, nibble := addressPSMT4(0, 2, 3, 1)
	mem[addr] |= 0xa << (uint(nibble) * 4)

	indices, err := ReadPSMT4(0, 2, 0, 0, 8, 8, mem)
	require.NoError(t, err)
	for i, idx := range indices {
		if i == 1*8+3 {
			assert.Equal(t, byte(0xa), idx)
		} else {
			assert.Equal(t, byte(0), idx, "texel %d", i)
		}
	}
}

func TestSolidRedPSMT4(t *testing.T) {
	mem := make([]uint32, MemoryWords)
	clutRaw := make([]uint32, 16)
	clutRaw[0] = 0x800000ff
	require.NoError(t, WritePSMCT32(16, 1, 0, 0, 8, 2, clutRaw, mem))

	indices, err := ReadPSMT4(0, 1, 0, 0, 8, 8, mem)
	require.NoError(t, err)
	clut, err := ReadPSMCT32(16, 1, 0, 0, 8, 2, mem)
	require.NoError(t, err)
	require.False(t, AllZero(clut))

	img, err := PaintPixels(8, 8, indices, clut)
	require.NoError(t, err)
	for i := 0; i < 64; i++ {
		assert.Equal(t, []byte{0xff, 0, 0, 0xff}, img.Pix[i*4:i*4+4])
	}
}

func TestPaintPixelsRejectsAlpha(t *testing.T) {
	_, err := PaintPixels(1, 1, []byte{0}, []uint32{0x810000ff})
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrUnsupportedVariant))

	_, err = PaintPixels(1, 1, []byte{3}, []uint32{0})
	assert.True(t, errors.Is(err, utils.ErrDataInconsistency))

	img, err := PaintPixels(1, 1, []byte{0}, []uint32{0x40112233})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x33, 0x22, 0x11, 0x7f}, img.Pix)
}

func TestUnswizzleCLUT(t *testing.T) {
	clut := make([]uint32, 256)
	for i := range clut {
		clut[i] = uint32(i)
	}
	UnswizzleCLUT(clut)

	var clutTests = []struct {
		index int
		value uint32
	}{
		{0, 0}, {7, 7}, {8, 16}, {15, 23}, {16, 8}, {23, 15}, {24, 24},
		{40, 48}, {48, 40}, {255, 255}, {232, 240}, {240, 232},
	}
	for _, test := range clutTests {
		if clut[test.index] != test.value {
			t.Errorf("clut[%d]=%d; expected %d", test.index, clut[test.index], test.value)
		}
	}
}

func TestTex0Fields(t *testing.T) {
	fields := Tex0Fields{
		TBP0: 0x1234, TBW: 2, PSM: GS_PSM_PSMT4, TW: 3, TH: 7, TCC: true, TFX: 1,
		CBP: 0x3fff, CPSM: 0, CSM: 0, CSA: 17, CLD: 4,
	}
	tex0 := fields.Tex0()
	assert.Equal(t, fields, tex0.Fields())
	assert.Equal(t, 8, tex0.Width())
	assert.Equal(t, 128, tex0.Height())
	assert.Equal(t, tex0, ParseTex0(tex0.Uint64()))
	assert.Contains(t, tex0.String(), "PSMT4")
}

func TestReadOutsideMemory(t *testing.T) {
	mem := make([]uint32, 64)
	_, err := ReadPSMCT32(0, 1, 0, 0, 64, 32, mem)
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrDataInconsistency))
}
