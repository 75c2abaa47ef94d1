package ctxr

import (
	"github.com/pkg/errors"

	"github.com/mogaika/mgs2_tools/utils"
)

const (
	CTXR_MAGIC       = "TXTR"
	CTXR_VERSION     = 7
	HEADER_SIZE      = 0x80
	CHUNK_ALIGN      = 0x20
	UNKNOWN4_SIZE    = 18
	HEADER_PAD_COUNT = 22
)

// Trace receives decoder tracing when set.
var Trace *utils.Logger

type Header struct {
	Version    uint32
	Width      uint16
	Height     uint16
	Depth      uint16
	Unknown1   uint16
	Unknown2   uint16
	Unknown3   uint16
	Unknown4   HeaderHint
	NumMipmaps uint8
}

// Chunk is one mipmap level.
type Chunk struct {
	Data []byte `yaml:"-"`
}

type CTXR struct {
	Header Header
	Chunks []Chunk
}

func NewHeader() Header {
	return Header{
		Version:    CTXR_VERSION,
		Depth:      1,
		Unknown3:   0x100,
		NumMipmaps: 1,
	}
}

func NewFromData(buf []byte) (*CTXR, error) {
	bs := utils.NewBufStack("ctxr", buf)
	hbs := bs.SubBuf("header", 0).SetSize(HEADER_SIZE)
	if err := hbs.Err(); err != nil {
		return nil, err
	}

	if magic := string(hbs.Read(4)); magic != CTXR_MAGIC {
		return nil, utils.FormatViolationf("invalid magic %q", magic)
	}

	c := &CTXR{}
	h := &c.Header
	h.Version = hbs.ReadBU32()
	if h.Version != CTXR_VERSION {
		return nil, utils.FormatViolationf("unknown version %d", h.Version)
	}
	h.Width = hbs.ReadBU16()
	h.Height = hbs.ReadBU16()
	h.Depth = hbs.ReadBU16()
	h.Unknown1 = hbs.ReadBU16()
	h.Unknown2 = hbs.ReadBU16()
	h.Unknown3 = hbs.ReadBU16()
	copy(h.Unknown4[:], hbs.Read(UNKNOWN4_SIZE))
	h.NumMipmaps = hbs.ReadU8()
	if padByte := hbs.ReadU8(); padByte != 0 {
		return nil, utils.FormatViolationf("header pad byte is 0x%x", padByte)
	}
	for i := 0; i < HEADER_PAD_COUNT; i++ {
		if pad := hbs.ReadBU32(); pad != 0 {
			return nil, utils.FormatViolationf("header padding %d is 0x%x", i, pad)
		}
	}

	chunksBs := bs.SubBuf("chunks", HEADER_SIZE)
	c.Chunks = make([]Chunk, h.NumMipmaps)
	for i := range c.Chunks {
		size := chunksBs.ReadBU32()
		c.Chunks[i].Data = chunksBs.ReadBytes(int(size))
		chunksBs.Align(CHUNK_ALIGN)
		if err := chunksBs.Err(); err != nil {
			return nil, errors.Wrapf(err, "Reading mipmap %d of %d", i, h.NumMipmaps)
		}
	}

	Trace.Printf("[ctxr] %dx%d, %d mipmaps", h.Width, h.Height, h.NumMipmaps)
	return c, nil
}

func (c *CTXR) MarshalToBinary() ([]byte, error) {
	if len(c.Chunks) > 0xff {
		return nil, utils.DataInconsistencyf("%d mipmaps do not fit into header", len(c.Chunks))
	}
	c.Header.NumMipmaps = uint8(len(c.Chunks))

	h := &c.Header
	w := utils.NewBufWriter(HEADER_SIZE)
	w.Write([]byte(CTXR_MAGIC))
	w.WriteBU32(h.Version)
	w.WriteBU16(h.Width)
	w.WriteBU16(h.Height)
	w.WriteBU16(h.Depth)
	w.WriteBU16(h.Unknown1)
	w.WriteBU16(h.Unknown2)
	w.WriteBU16(h.Unknown3)
	w.Write(h.Unknown4[:])
	w.WriteU8(h.NumMipmaps)
	w.WriteU8(0)
	w.Zero(HEADER_PAD_COUNT * 4)

	for _, chunk := range c.Chunks {
		w.WriteBU32(uint32(len(chunk.Data)))
		w.Write(chunk.Data)
		w.Pad(CHUNK_ALIGN)
	}
	return w.Bytes(), nil
}
