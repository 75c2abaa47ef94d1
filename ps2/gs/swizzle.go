package gs

import (
	"github.com/mogaika/mgs2_tools/utils"
)

// MemoryWords is the GS local memory size in 32-bit words (4 MiB).
const MemoryWords = 1024 * 1024

const (
	pageWords   = 2048
	blockWords  = 64
	columnWords = 16
)

// PSMCT32 page is 64x32 texels of 8x8 blocks. PSMT8 reuses the same block
// order on a 128x64 page of 16x16 blocks.
var blockArrangement32 = [32]int{
	0, 1, 4, 5, 16, 17, 20, 21,
	2, 3, 6, 7, 18, 19, 22, 23,
	8, 9, 12, 13, 24, 25, 28, 29,
	10, 11, 14, 15, 26, 27, 30, 31,
}

var wordArrangement32 = [16]int{
	0, 1, 4, 5, 8, 9, 12, 13,
	2, 3, 6, 7, 10, 11, 14, 15,
}

var blockArrangement4 = [32]int{
	0, 2, 8, 10,
	1, 3, 9, 11,
	4, 6, 12, 14,
	5, 7, 13, 15,
	16, 18, 24, 26,
	17, 19, 25, 27,
	20, 22, 28, 30,
	21, 23, 29, 31,
}

var columnWordRows = [4][8]int{
	{0, 1, 4, 5, 8, 9, 12, 13},
	{2, 3, 6, 7, 10, 11, 14, 15},
	{8, 9, 12, 13, 0, 1, 4, 5},
	{10, 11, 14, 15, 2, 3, 6, 7},
}

var columnByte8 = [4]int{0, 2, 1, 3}
var columnByte4 = [8]int{0, 2, 4, 6, 1, 3, 5, 7}

// Word within a column for every texel of a 16x4 (PSMT8) or 32x4 (PSMT4)
// column. Odd columns have the top and bottom row pairs swapped.
var columnWord8 [2][16 * 4]int
var columnWord4 [2][32 * 4]int

func init() {
	for c := 0; c < 2; c++ {
		for y := 0; y < 4; y++ {
			row := columnWordRows[(y+2*c)%4]
			for x := 0; x < 16; x++ {
				columnWord8[c][x+y*16] = row[x%8]
			}
			for x := 0; x < 32; x++ {
				columnWord4[c][x+y*32] = row[x%8]
			}
		}
	}
}

func addressPSMCT32(dbp, dbw uint32, x, y int) int {
	page := x/64 + (y/32)*int(dbw)
	block := blockArrangement32[(x%64)/8+((y%32)/8)*8]
	column := (y % 8) / 2
	word := wordArrangement32[(x%8)+(y%2)*8]
	return int(dbp)<<6 + page*pageWords + block*blockWords + column*columnWords + word
}

func checkAddress(addr int, mem []uint32, x, y int) error {
	if addr < 0 || addr >= len(mem) {
		return utils.DataInconsistencyf("texel (%d,%d) maps to word 0x%x outside of %d word memory", x, y, addr, len(mem))
	}
	return nil
}

// WritePSMCT32 stores a linear w*h block of 32-bit texels into GS memory.
func WritePSMCT32(dbp, dbw uint32, x0, y0, w, h int, src []uint32, mem []uint32) error {
	if len(src) < w*h {
		return utils.DataInconsistencyf("source has %d texels, %dx%d needed", len(src), w, h)
	}
	i := 0
	for y := y0; y < y0+h; y++ {
		for x := x0; x < x0+w; x++ {
			addr := addressPSMCT32(dbp, dbw, x, y)
			if err := checkAddress(addr, mem, x, y); err != nil {
				return err
			}
			mem[addr] = src[i]
			i++
		}
	}
	return nil
}

// ReadPSMCT32 reads a w*h rectangle of 32-bit texels at (x0,y0) of the
// buffer starting at block dbp with dbw pages per row.
func ReadPSMCT32(dbp, dbw uint32, x0, y0, w, h int, mem []uint32) ([]uint32, error) {
	result := make([]uint32, w*h)
	i := 0
	for y := y0; y < y0+h; y++ {
		for x := x0; x < x0+w; x++ {
			addr := addressPSMCT32(dbp, dbw, x, y)
			if err := checkAddress(addr, mem, x, y); err != nil {
				return nil, err
			}
			result[i] = mem[addr]
			i++
		}
	}
	return result, nil
}

// Linear2GS lays out a 64 texel wide linear PSMCT32 plane at block 0 of a
// fresh GS memory image. Atlas files keep their planes in this form.
func Linear2GS(raw []uint32, height int) ([]uint32, error) {
	mem := make([]uint32, MemoryWords)
	if err := WritePSMCT32(0, 1, 0, 0, 64, height, raw, mem); err != nil {
		return nil, err
	}
	return mem, nil
}

func addressPSMT8(dbp, dbw uint32, x, y int) (addr int, byt int) {
	page := x/128 + (y/64)*int(dbw>>1)
	px, py := x%128, y%64
	block := blockArrangement32[px/16+(py/16)*8]
	column := (py % 16) / 4
	cx, cy := px%16, py%4
	word := columnWord8[column&1][cx+cy*16]
	byt = columnByte8[cx/8+(cy/2)*2]
	return int(dbp)<<6 + page*pageWords + block*blockWords + column*columnWords + word, byt
}

func addressPSMT4(dbp, dbw uint32, x, y int) (addr int, nibble int) {
	page := x/128 + (y/128)*int(dbw>>1)
	px, py := x%128, y%128
	block := blockArrangement4[px/32+(py/16)*4]
	column := (py % 16) / 4
	cx, cy := px%32, py%4
	word := columnWord4[column&1][cx+cy*32]
	nibble = columnByte4[cx/8+(cy/2)*4]
	return int(dbp)<<6 + page*pageWords + block*blockWords + column*columnWords + word, nibble
}

// ReadPSMT8 returns one palette index per texel. dbw is in 64 texel units
// like in TEX0.
func ReadPSMT8(dbp, dbw uint32, x0, y0, w, h int, mem []uint32) ([]byte, error) {
	result := make([]byte, w*h)
	i := 0
	for y := y0; y < y0+h; y++ {
		for x := x0; x < x0+w; x++ {
			addr, byt := addressPSMT8(dbp, dbw, x, y)
			if err := checkAddress(addr, mem, x, y); err != nil {
				return nil, err
			}
			result[i] = byte(mem[addr] >> (uint(byt) * 8))
			i++
		}
	}
	return result, nil
}

// ReadPSMT4 returns one palette index per texel, two texels share a byte.
func ReadPSMT4(dbp, dbw uint32, x0, y0, w, h int, mem []uint32) ([]byte, error) {
	result := make([]byte, w*h)
	i := 0
	for y := y0; y < y0+h; y++ {
		for x := x0; x < x0+w; x++ {
			addr, nibble := addressPSMT4(dbp, dbw, x, y)
			if err := checkAddress(addr, mem, x, y); err != nil {
				return nil, err
			}
			b := byte(mem[addr] >> (uint(nibble/2) * 8))
			if nibble&1 != 0 {
				result[i] = b >> 4
			} else {
				result[i] = b & 0xf
			}
			i++
		}
	}
	return result, nil
}
