package gs

import "fmt"

const (
	GS_PSM_PSMCT32  = 0x00 // 32 bits per pixel.
	GS_PSM_PSMCT24  = 0x01 // 24 bits per pixel.
	GS_PSM_PSMCT16  = 0x02 // 16 bits per pixel.
	GS_PSM_PSMCT16S = 0x0A // 16 bits per pixel.
	GS_PSM_PSMT8    = 0x13 // 8 bits per pixel, palettized.
	GS_PSM_PSMT4    = 0x14 // 4 bits per pixel, palettized.
	GS_PSM_PSMT8H   = 0x1B // 8 bits per pixel, 24 to 32
	GS_PSM_PSMT4HL  = 0x24 // 4 bits per pixel, 28 to 32
	GS_PSM_PSMT4HH  = 0x2C // 4 bits per pixel, 24 to 27
)

var psmNames = map[uint8]string{
	GS_PSM_PSMCT32:  "PSMCT32",
	GS_PSM_PSMCT24:  "PSMCT24",
	GS_PSM_PSMCT16:  "PSMCT16",
	GS_PSM_PSMCT16S: "PSMCT16S",
	GS_PSM_PSMT8:    "PSMT8",
	GS_PSM_PSMT4:    "PSMT4",
	GS_PSM_PSMT8H:   "PSMT8H",
	GS_PSM_PSMT4HL:  "PSMT4HL",
	GS_PSM_PSMT4HH:  "PSMT4HH",
}

func PsmName(psm uint8) string {
	if name, ok := psmNames[psm]; ok {
		return name
	}
	return fmt.Sprintf("PSM(0x%x)", psm)
}

// Tex0 is the GS TEX0 register as it is stored in texture descriptors.
type Tex0 uint64

func ParseTex0(v uint64) Tex0 { return Tex0(v) }

func (t Tex0) Uint64() uint64 { return uint64(t) }

func (t Tex0) bits(shift, width uint) uint64 {
	return (uint64(t) >> shift) & (1<<width - 1)
}

func (t Tex0) TBP0() uint32 { return uint32(t.bits(0, 14)) }
func (t Tex0) TBW() uint32  { return uint32(t.bits(14, 6)) }
func (t Tex0) PSM() uint8   { return uint8(t.bits(20, 6)) }
func (t Tex0) TW() uint8    { return uint8(t.bits(26, 4)) }
func (t Tex0) TH() uint8    { return uint8(t.bits(30, 4)) }
func (t Tex0) TCC() bool    { return t.bits(34, 1) != 0 }
func (t Tex0) TFX() uint8   { return uint8(t.bits(35, 2)) }
func (t Tex0) CBP() uint32  { return uint32(t.bits(37, 14)) }
func (t Tex0) CPSM() uint8  { return uint8(t.bits(51, 4)) }
func (t Tex0) CSM() uint8   { return uint8(t.bits(55, 1)) }
func (t Tex0) CSA() uint32  { return uint32(t.bits(56, 5)) }
func (t Tex0) CLD() uint8   { return uint8(t.bits(61, 3)) }

// Width and Height are the full texture size, 2^TW by 2^TH.
func (t Tex0) Width() int  { return 1 << t.TW() }
func (t Tex0) Height() int { return 1 << t.TH() }

// Tex0Fields is the unpacked form of Tex0, used to build registers.
type Tex0Fields struct {
	TBP0 uint32
	TBW  uint32
	PSM  uint8
	TW   uint8
	TH   uint8
	TCC  bool
	TFX  uint8
	CBP  uint32
	CPSM uint8
	CSM  uint8
	CSA  uint32
	CLD  uint8
}

func (t Tex0) Fields() Tex0Fields {
	return Tex0Fields{
		TBP0: t.TBP0(), TBW: t.TBW(), PSM: t.PSM(), TW: t.TW(), TH: t.TH(),
		TCC: t.TCC(), TFX: t.TFX(), CBP: t.CBP(), CPSM: t.CPSM(), CSM: t.CSM(),
		CSA: t.CSA(), CLD: t.CLD(),
	}
}

func (f Tex0Fields) Tex0() Tex0 {
	put := func(v uint64, shift, width uint) uint64 {
		return (v & (1<<width - 1)) << shift
	}
	var tcc uint64
	if f.TCC {
		tcc = 1
	}
	return Tex0(put(uint64(f.TBP0), 0, 14) |
		put(uint64(f.TBW), 14, 6) |
		put(uint64(f.PSM), 20, 6) |
		put(uint64(f.TW), 26, 4) |
		put(uint64(f.TH), 30, 4) |
		put(tcc, 34, 1) |
		put(uint64(f.TFX), 35, 2) |
		put(uint64(f.CBP), 37, 14) |
		put(uint64(f.CPSM), 51, 4) |
		put(uint64(f.CSM), 55, 1) |
		put(uint64(f.CSA), 56, 5) |
		put(uint64(f.CLD), 61, 3))
}

func (t Tex0) String() string {
	return fmt.Sprintf("TEX0{tbp0:0x%x tbw:%d psm:%s tw:%d th:%d tcc:%v tfx:%d cbp:0x%x cpsm:%d csm:%d csa:%d cld:%d}",
		t.TBP0(), t.TBW(), PsmName(t.PSM()), t.TW(), t.TH(), t.TCC(), t.TFX(), t.CBP(), t.CPSM(), t.CSM(), t.CSA(), t.CLD())
}
