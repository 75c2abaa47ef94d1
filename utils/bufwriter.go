package utils

import (
	"encoding/binary"
	"math"
)

// BufWriter is a growable random access output buffer. Containers with offset
// tables lay out their payload first, then patch the table through the Put*
// helpers at fixed positions.
type BufWriter struct {
	buf []byte
	pos int
}

func NewBufWriter(capacity int) *BufWriter {
	return &BufWriter{buf: make([]byte, 0, capacity)}
}

func (w *BufWriter) Bytes() []byte { return w.buf }
func (w *BufWriter) Len() int      { return len(w.buf) }
func (w *BufWriter) Pos() int      { return w.pos }

// Seek moves the write cursor, growing the buffer with zeroes when needed.
func (w *BufWriter) Seek(pos int) {
	w.grow(pos)
	w.pos = pos
}

func (w *BufWriter) grow(size int) {
	if size > len(w.buf) {
		w.buf = append(w.buf, make([]byte, size-len(w.buf))...)
	}
}

func (w *BufWriter) Write(p []byte) (int, error) {
	w.grow(w.pos + len(p))
	copy(w.buf[w.pos:], p)
	w.pos += len(p)
	return len(p), nil
}

func (w *BufWriter) space(n int) []byte {
	w.grow(w.pos + n)
	b := w.buf[w.pos : w.pos+n]
	w.pos += n
	return b
}

// Pad emits zero bytes up to the next multiple of n.
func (w *BufWriter) Pad(n int) {
	w.Seek(AlignUp(w.pos, n))
}

func (w *BufWriter) Zero(n int) { w.space(n) }

func (w *BufWriter) WriteU8(v byte)     { w.space(1)[0] = v }
func (w *BufWriter) WriteLU16(v uint16) { binary.LittleEndian.PutUint16(w.space(2), v) }
func (w *BufWriter) WriteLU32(v uint32) { binary.LittleEndian.PutUint32(w.space(4), v) }
func (w *BufWriter) WriteLU64(v uint64) { binary.LittleEndian.PutUint64(w.space(8), v) }
func (w *BufWriter) WriteLI16(v int16)  { w.WriteLU16(uint16(v)) }
func (w *BufWriter) WriteLI32(v int32)  { w.WriteLU32(uint32(v)) }
func (w *BufWriter) WriteBU16(v uint16) { binary.BigEndian.PutUint16(w.space(2), v) }
func (w *BufWriter) WriteBU32(v uint32) { binary.BigEndian.PutUint32(w.space(4), v) }
func (w *BufWriter) WriteBI16(v int16)  { w.WriteBU16(uint16(v)) }
func (w *BufWriter) WriteLF(v float32)  { w.WriteLU32(math.Float32bits(v)) }
func (w *BufWriter) WriteBF(v float32)  { w.WriteBU32(math.Float32bits(v)) }

func (w *BufWriter) PutLU32(at int, v uint32) {
	w.grow(at + 4)
	binary.LittleEndian.PutUint32(w.buf[at:], v)
}

func (w *BufWriter) PutBU32(at int, v uint32) {
	w.grow(at + 4)
	binary.BigEndian.PutUint32(w.buf[at:], v)
}
