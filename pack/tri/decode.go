package tri

import (
	"bytes"
	"encoding/binary"
	"image"
	"log"
	"runtime"
	"sync"

	"github.com/pkg/errors"

	"github.com/mogaika/mgs2_tools/ps2/gs"
	"github.com/mogaika/mgs2_tools/utils"
)

const (
	TGA_HEADER_SIZE = 18
)

// Image is one decoded atlas texture.
type Image struct {
	TexID uint32
	*image.NRGBA
}

// MarshalTGA writes an uncompressed 32-bit top-left TGA.
func (img *Image) MarshalTGA() []byte {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	var buf bytes.Buffer
	buf.Grow(TGA_HEADER_SIZE + w*h*4)
	buf.Write([]byte{0, 0, 2, 0, 0, 0, 0, 0, 0, 0, 0, 0})
	binary.Write(&buf, binary.LittleEndian, [2]int16{int16(w), int16(h)})
	buf.Write([]byte{0x20, 0x20})

	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w; x++ {
			p := row[x*4 : x*4+4]
			buf.Write([]byte{p[2], p[1], p[0], p[3]})
		}
	}
	return buf.Bytes()
}

type clutShape struct {
	w, h int
}

var clutShapes = map[uint8]clutShape{
	gs.GS_PSM_PSMT8: {16, 16},
	gs.GS_PSM_PSMT4: {8, 2},
}

// DecodeEntry renders entry i of the atlas.
func (t *TRI) DecodeEntry(i int) (*Image, error) {
	if i < 0 || i >= len(t.Entries) {
		return nil, utils.DataInconsistencyf("entry %d outside of %d entries", i, len(t.Entries))
	}
	e := &t.Entries[i]
	reg := e.Register2

	psm := reg.PSM()
	shape, ok := clutShapes[psm]
	if !ok {
		return nil, utils.UnsupportedVariantf("texture 0x%x: psm %s", e.TexID, gs.PsmName(psm))
	}
	if reg.CPSM() != 0 || reg.CSM() != 0 {
		return nil, utils.UnsupportedVariantf("texture 0x%x: clut cpsm %d csm %d", e.TexID, reg.CPSM(), reg.CSM())
	}

	imageMem, clutMem, err := t.gsMemory()
	if err != nil {
		return nil, err
	}

	fw, fh := float32(reg.Width()), float32(reg.Height())
	x, y := int(e.UOffset*fw), int(e.VOffset*fh)
	w, h := int(e.UScale*fw+1), int(e.VScale*fh+1)
	if w <= 0 || h <= 0 || x < 0 || y < 0 {
		return nil, utils.DataInconsistencyf("texture 0x%x: rectangle %dx%d at %d,%d", e.TexID, w, h, x, y)
	}
	Trace.Printf("[tri] texture 0x%x: %dx%d at %d,%d %v", e.TexID, w, h, x, y, reg)

	var indices []byte
	if psm == gs.GS_PSM_PSMT8 {
		indices, err = gs.ReadPSMT8(reg.TBP0(), reg.TBW(), x, y, w, h, imageMem)
	} else {
		indices, err = gs.ReadPSMT4(reg.TBP0(), reg.TBW(), x, y, w, h, imageMem)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "Texture 0x%x indexes", e.TexID)
	}

	clut, err := gs.ReadPSMCT32(reg.CBP(), 1, int(reg.CSA())*8, 0, shape.w, shape.h, clutMem)
	if err != nil {
		return nil, errors.Wrapf(err, "Texture 0x%x clut", e.TexID)
	}
	if gs.AllZero(clut) {
		log.Printf("[tri] Warning: %v", utils.TransientAnomalyf("texture 0x%x clut at cbp 0x%x csa %d is empty, retrying from start",
			e.TexID, reg.CBP(), reg.CSA()))
		if clut, err = gs.ReadPSMCT32(0, 1, 0, 0, shape.w, shape.h, clutMem); err != nil {
			return nil, errors.Wrapf(err, "Texture 0x%x clut retry", e.TexID)
		}
		if gs.AllZero(clut) {
			return nil, utils.UnsupportedVariantf("texture 0x%x: clut is empty after retry", e.TexID)
		}
	}
	if psm == gs.GS_PSM_PSMT8 {
		gs.UnswizzleCLUT(clut)
	}

	img, err := gs.PaintPixels(w, h, indices, clut)
	if err != nil {
		return nil, errors.Wrapf(err, "Texture 0x%x", e.TexID)
	}
	return &Image{TexID: e.TexID, NRGBA: img}, nil
}

// DecodeByID renders the first entry with texture id.
func (t *TRI) DecodeByID(texID uint32) (*Image, error) {
	i, ok := t.IndexOf(texID)
	if !ok {
		return nil, utils.DataInconsistencyf("no texture 0x%x in atlas", texID)
	}
	return t.DecodeEntry(i)
}

// Result of one entry decode, kept in entry order.
type Result struct {
	Index int
	TexID uint32
	Image *Image
	Err   error
}

// DecodeAll renders every entry with a pool of workers. Results are indexed
// like Entries, failed entries carry their error.
func (t *TRI) DecodeAll(workers int) []Result {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	total := len(t.Entries)
	results := make([]Result, total)

	// lay out gs memory before workers share it
	t.gsMemory()

	itemChan := make(chan int, workers*2)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range itemChan {
				img, err := t.DecodeEntry(idx)
				results[idx] = Result{Index: idx, TexID: t.Entries[idx].TexID, Image: img, Err: err}
			}
		}()
	}
	for i := 0; i < total; i++ {
		itemChan <- i
	}
	close(itemChan)
	wg.Wait()
	return results
}
