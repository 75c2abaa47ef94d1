package ctxr

import (
	"github.com/mogaika/mgs2_tools/utils"
)

const (
	DDS_MAGIC            = "DDS "
	DDS_HEADER_SIZE      = 0x80
	DDS_HEADER_FIELDSIZE = 0x7C
	DDS_PIXELFORMAT_SIZE = 0x20
	DDS_RESERVED_SIZE    = 44

	DDSD_CAPS_HEIGHT_WIDTH_PIXELFORMAT_MIPMAPCOUNT = 0x2100f

	DDPF_ALPHAPIXELS_RGB = 0x41

	DDSCAPS_TEXTURE = 0x1000
	DDSCAPS_MIPMAP  = 0x400008 // mipmap | complex
)

type DDSPixelFormat struct {
	Size     uint32
	Flags    uint32
	FourCC   uint32
	BitCount uint32
	BitMasks [4]uint32 // R, G, B, A
}

type DDSHeader struct {
	Flags       uint32
	Height      uint32
	Width       uint32
	Pitch       uint32
	Depth       uint32
	MipMapCount uint32
	Reserved    [DDS_RESERVED_SIZE]byte
	PixelFormat DDSPixelFormat
	Caps        [4]uint32
	Reserved2   uint32
}

// DDS keeps every mipmap level in one blob, largest first.
type DDS struct {
	Header DDSHeader
	Data   []byte `yaml:"-"`
}

func NewDDSPixelFormat() DDSPixelFormat {
	return DDSPixelFormat{
		Size:     DDS_PIXELFORMAT_SIZE,
		BitCount: 32,
		BitMasks: [4]uint32{0xff0000, 0xff00, 0xff, 0xff000000},
	}
}

func NewDDSFromData(buf []byte) (*DDS, error) {
	bs := utils.NewBufStack("dds", buf)
	if magic := string(bs.Read(4)); magic != DDS_MAGIC {
		return nil, utils.FormatViolationf("invalid dds magic %q", magic)
	}
	if size := bs.ReadLU32(); size != DDS_HEADER_FIELDSIZE {
		return nil, utils.FormatViolationf("invalid dds header size 0x%x", size)
	}

	d := &DDS{}
	h := &d.Header
	h.Flags = bs.ReadLU32()
	h.Height = bs.ReadLU32()
	h.Width = bs.ReadLU32()
	h.Pitch = bs.ReadLU32()
	h.Depth = bs.ReadLU32()
	h.MipMapCount = bs.ReadLU32()
	copy(h.Reserved[:], bs.Read(DDS_RESERVED_SIZE))

	pf := &h.PixelFormat
	pf.Size = bs.ReadLU32()
	if pf.Size != DDS_PIXELFORMAT_SIZE {
		return nil, utils.FormatViolationf("invalid pixel format size 0x%x", pf.Size)
	}
	pf.Flags = bs.ReadLU32()
	pf.FourCC = bs.ReadLU32()
	pf.BitCount = bs.ReadLU32()
	for i := range pf.BitMasks {
		pf.BitMasks[i] = bs.ReadLU32()
	}
	for i := range h.Caps {
		h.Caps[i] = bs.ReadLU32()
	}
	h.Reserved2 = bs.ReadLU32()
	if err := bs.Err(); err != nil {
		return nil, err
	}

	d.Data = bs.ReadBytes(bs.Left())
	return d, nil
}

func (d *DDS) MarshalToBinary() ([]byte, error) {
	h := &d.Header
	w := utils.NewBufWriter(DDS_HEADER_SIZE + len(d.Data))
	w.Write([]byte(DDS_MAGIC))
	w.WriteLU32(DDS_HEADER_FIELDSIZE)
	w.WriteLU32(h.Flags)
	w.WriteLU32(h.Height)
	w.WriteLU32(h.Width)
	w.WriteLU32(h.Pitch)
	w.WriteLU32(h.Depth)
	w.WriteLU32(h.MipMapCount)
	w.Write(h.Reserved[:])
	pf := &h.PixelFormat
	w.WriteLU32(DDS_PIXELFORMAT_SIZE)
	w.WriteLU32(pf.Flags)
	w.WriteLU32(pf.FourCC)
	w.WriteLU32(pf.BitCount)
	for _, mask := range pf.BitMasks {
		w.WriteLU32(mask)
	}
	for _, c := range h.Caps {
		w.WriteLU32(c)
	}
	w.WriteLU32(h.Reserved2)
	w.Write(d.Data)
	return w.Bytes(), nil
}
