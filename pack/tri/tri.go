package tri

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/mogaika/mgs2_tools/ps2/gs"
	"github.com/mogaika/mgs2_tools/utils"
)

const (
	HEADER_SIZE = 0x20
	ENTRY_SIZE  = 0xC0
	PLANE_WIDTH = 64 // words per plane row
	PLANE_ALIGN = 0x10
)

// Trace receives decoder tracing when set.
var Trace *utils.Logger

type Header struct {
	Width      int32
	Height     int32
	ClutHeight uint32
}

// Entry describes one texture placed in the atlas planes.
type Entry struct {
	UOffset, VOffset float32
	UScale, VScale   float32
	TexID            uint32

	UnknownA, UnknownB, UnknownC uint32
	UnknownD, UnknownE, UnknownF uint32

	Register1          gs.Tex0
	UnknownG, UnknownH uint32
	// Register2 is the one textures are decoded with.
	Register2 gs.Tex0
	UnknownI  [10]uint32

	U1, V1, U2, V2, U3, V3 float32
}

type TRI struct {
	Header  Header
	Entries []Entry
	// Raw image and palette planes, PLANE_WIDTH words per row.
	RawImage []uint32 `yaml:"-"`
	RawClut  []uint32 `yaml:"-"`

	byID     map[uint32]int
	gsOnce   sync.Once
	imageMem []uint32
	clutMem  []uint32
	gsMemErr error
}

func NewFromData(buf []byte) (*TRI, error) {
	bs := utils.NewBufStack("tri", buf)

	t := &TRI{}
	if pad := bs.ReadLU32(); pad != 0 {
		return nil, utils.FormatViolationf("header pad is 0x%x", pad)
	}
	t.Header.Width = bs.ReadLI32()
	t.Header.Height = bs.ReadLI32()
	t.Header.ClutHeight = bs.ReadLU32()
	numTexture := bs.ReadLI32()
	if pad := bs.ReadLU32(); pad != 0 {
		return nil, utils.FormatViolationf("header pad2 is 0x%x", pad)
	}
	imageOffset := bs.ReadLI32()
	clutOffset := bs.ReadLI32()
	if err := bs.Err(); err != nil {
		return nil, err
	}
	if numTexture < 0 || t.Header.Height < 0 || imageOffset < 0 || clutOffset < 0 {
		return nil, utils.FormatViolationf("negative header field: %+v textures %d image 0x%x clut 0x%x",
			t.Header, numTexture, imageOffset, clutOffset)
	}

	var err error
	if t.RawImage, err = readPlaneAt(bs, "image", int(imageOffset), int(t.Header.Height)); err != nil {
		return nil, err
	}
	if t.RawClut, err = readPlaneAt(bs, "clut", int(clutOffset), int(t.Header.ClutHeight)); err != nil {
		return nil, err
	}

	t.Entries = make([]Entry, numTexture)
	for i := range t.Entries {
		ebs := bs.SubBuf("entry", HEADER_SIZE+i*ENTRY_SIZE).SetSize(ENTRY_SIZE)
		if err := t.Entries[i].parse(ebs); err != nil {
			return nil, errors.Wrapf(err, "Entry %d", i)
		}
	}
	t.index()

	Trace.Printf("[tri] %dx%d atlas, clut height %d, %d textures", t.Header.Width, t.Header.Height, t.Header.ClutHeight, len(t.Entries))
	return t, nil
}

func readPlaneAt(bs *utils.BufStack, kind string, offset int, rows int) ([]uint32, error) {
	pbs := bs.SubBuf(kind, offset)
	plane := make([]uint32, PLANE_WIDTH*rows)
	for i := range plane {
		plane[i] = pbs.ReadLU32()
		if pbs.Err() != nil {
			break
		}
	}
	if err := pbs.Err(); err != nil {
		return nil, errors.Wrapf(err, "Reading %s plane of %d rows", kind, rows)
	}
	return plane, nil
}

func (e *Entry) parse(bs *utils.BufStack) error {
	checkZero := func(name string, count int) error {
		for i := 0; i < count; i++ {
			if v := bs.ReadLU32(); v != 0 {
				return utils.FormatViolationf("%s[%d] is 0x%x", name, i, v)
			}
		}
		return nil
	}

	e.UOffset = bs.ReadLF()
	e.VOffset = bs.ReadLF()
	e.UScale = bs.ReadLF()
	e.VScale = bs.ReadLF()
	e.TexID = bs.ReadLU32()
	if err := checkZero("pad", 11); err != nil {
		return err
	}
	e.UnknownA = bs.ReadLU32()
	e.UnknownB = bs.ReadLU32()
	e.UnknownC = bs.ReadLU32()
	if err := checkZero("pad2", 1); err != nil {
		return err
	}
	e.UnknownD = bs.ReadLU32()
	e.UnknownE = bs.ReadLU32()
	e.UnknownF = bs.ReadLU32()
	if err := checkZero("pad3", 1); err != nil {
		return err
	}
	e.Register1 = gs.ParseTex0(bs.ReadLU64())
	e.UnknownG = bs.ReadLU32()
	e.UnknownH = bs.ReadLU32()
	e.Register2 = gs.ParseTex0(bs.ReadLU64())
	for i := range e.UnknownI {
		e.UnknownI[i] = bs.ReadLU32()
	}
	e.U1 = bs.ReadLF()
	e.V1 = bs.ReadLF()
	e.U2 = bs.ReadLF()
	e.V2 = bs.ReadLF()
	e.U3 = bs.ReadLF()
	e.V3 = bs.ReadLF()
	if err := checkZero("pad4", 2); err != nil {
		return err
	}
	return bs.Err()
}

func (e *Entry) marshal(w *utils.BufWriter) {
	w.WriteLF(e.UOffset)
	w.WriteLF(e.VOffset)
	w.WriteLF(e.UScale)
	w.WriteLF(e.VScale)
	w.WriteLU32(e.TexID)
	w.Zero(11 * 4)
	w.WriteLU32(e.UnknownA)
	w.WriteLU32(e.UnknownB)
	w.WriteLU32(e.UnknownC)
	w.Zero(4)
	w.WriteLU32(e.UnknownD)
	w.WriteLU32(e.UnknownE)
	w.WriteLU32(e.UnknownF)
	w.Zero(4)
	w.WriteLU64(e.Register1.Uint64())
	w.WriteLU32(e.UnknownG)
	w.WriteLU32(e.UnknownH)
	w.WriteLU64(e.Register2.Uint64())
	for _, v := range e.UnknownI {
		w.WriteLU32(v)
	}
	for _, f := range []float32{e.U1, e.V1, e.U2, e.V2, e.U3, e.V3} {
		w.WriteLF(f)
	}
	w.Zero(2 * 4)
}

// MarshalToBinary writes header and entries, then both planes at 16 byte
// aligned offsets.
func (t *TRI) MarshalToBinary() ([]byte, error) {
	if len(t.RawImage) != PLANE_WIDTH*int(t.Header.Height) {
		return nil, utils.DataInconsistencyf("image plane has %d words, height %d needs %d",
			len(t.RawImage), t.Header.Height, PLANE_WIDTH*int(t.Header.Height))
	}
	if len(t.RawClut) != PLANE_WIDTH*int(t.Header.ClutHeight) {
		return nil, utils.DataInconsistencyf("clut plane has %d words, height %d needs %d",
			len(t.RawClut), t.Header.ClutHeight, PLANE_WIDTH*int(t.Header.ClutHeight))
	}

	imageOffset := utils.AlignUp(HEADER_SIZE+len(t.Entries)*ENTRY_SIZE, PLANE_ALIGN)
	clutOffset := utils.AlignUp(imageOffset+len(t.RawImage)*4, PLANE_ALIGN)

	w := utils.NewBufWriter(clutOffset + len(t.RawClut)*4)
	w.WriteLU32(0)
	w.WriteLI32(t.Header.Width)
	w.WriteLI32(t.Header.Height)
	w.WriteLU32(t.Header.ClutHeight)
	w.WriteLI32(int32(len(t.Entries)))
	w.WriteLU32(0)
	w.WriteLI32(int32(imageOffset))
	w.WriteLI32(int32(clutOffset))

	for i := range t.Entries {
		t.Entries[i].marshal(w)
	}

	w.Seek(imageOffset)
	for _, v := range t.RawImage {
		w.WriteLU32(v)
	}
	w.Seek(clutOffset)
	for _, v := range t.RawClut {
		w.WriteLU32(v)
	}
	return w.Bytes(), nil
}

func (t *TRI) index() {
	t.byID = make(map[uint32]int, len(t.Entries))
	for i := len(t.Entries) - 1; i >= 0; i-- {
		t.byID[t.Entries[i].TexID] = i
	}
}

// IndexOf finds the first entry with texture id.
func (t *TRI) IndexOf(texID uint32) (int, bool) {
	if t.byID == nil || len(t.byID) > len(t.Entries) {
		t.index()
	}
	i, ok := t.byID[texID]
	if ok && (i >= len(t.Entries) || t.Entries[i].TexID != texID) {
		t.index()
		i, ok = t.byID[texID]
	}
	return i, ok
}

// gsMemory lays both planes out in GS memory once. The result is shared
// read only by every entry decode.
func (t *TRI) gsMemory() ([]uint32, []uint32, error) {
	t.gsOnce.Do(func() {
		if t.imageMem, t.gsMemErr = gs.Linear2GS(t.RawImage, int(t.Header.Height)); t.gsMemErr != nil {
			t.gsMemErr = errors.Wrapf(t.gsMemErr, "Image plane")
			return
		}
		if t.clutMem, t.gsMemErr = gs.Linear2GS(t.RawClut, int(t.Header.ClutHeight)); t.gsMemErr != nil {
			t.gsMemErr = errors.Wrapf(t.gsMemErr, "Clut plane")
		}
	})
	return t.imageMem, t.clutMem, t.gsMemErr
}
