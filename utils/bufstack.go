package utils

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

// BufStack is a bounded read cursor over an in-memory container. Sub buffers
// remember where they were taken from, so StringTree can show the layout that
// a decoder actually walked. Out of range reads do not panic: they return
// zeroes and latch an error that Err reports.
type BufStack struct {
	parent         *BufStack
	childs         []*BufStack
	buf            []byte
	relativeOffset int
	absoluteOffset int
	size           int
	pos            int
	kind           string
	name           string
	err            error
}

func NewBufStack(kind string, b []byte) *BufStack {
	return &BufStack{
		buf:  b,
		size: len(b),
		kind: kind,
	}
}

func (bs *BufStack) addChild(childBs *BufStack) {
	index := sort.Search(len(bs.childs), func(i int) bool {
		return bs.childs[i].relativeOffset > childBs.relativeOffset
	})
	bs.childs = append(bs.childs, nil)
	copy(bs.childs[index+1:], bs.childs[index:])
	bs.childs[index] = childBs
}

// SubBuf opens a child cursor at offset relative to this buffer. An offset
// outside of the buffer yields an empty child with a latched error.
func (bs *BufStack) SubBuf(kind string, offset int) *BufStack {
	childBs := &BufStack{
		parent:         bs,
		relativeOffset: offset,
		absoluteOffset: bs.absoluteOffset + offset,
		kind:           kind,
	}
	if offset < 0 || offset > len(bs.buf) {
		childBs.err = FormatViolationf("%s: offset 0x%x outside of %v", kind, offset, bs)
	} else {
		childBs.buf = bs.buf[offset:]
		childBs.size = len(childBs.buf)
	}
	bs.addChild(childBs)
	return childBs
}

func (bs *BufStack) SetName(name string) *BufStack {
	bs.name = name
	return bs
}

// SetSize limits the child to size bytes.
func (bs *BufStack) SetSize(size int) *BufStack {
	if size < 0 || size > len(bs.buf) {
		bs.setErr(FormatViolationf("size 0x%x does not fit into %v", size, bs))
		return bs
	}
	bs.size = size
	return bs
}

func (bs *BufStack) Name() string        { return bs.name }
func (bs *BufStack) Size() int           { return bs.size }
func (bs *BufStack) Kind() string        { return bs.kind }
func (bs *BufStack) Parent() *BufStack   { return bs.parent }
func (bs *BufStack) RelativeOffset() int { return bs.relativeOffset }
func (bs *BufStack) AbsoluteOffset() int { return bs.absoluteOffset }
func (bs *BufStack) Pos() int            { return bs.pos }
func (bs *BufStack) Left() int           { return bs.size - bs.pos }
func (bs *BufStack) Err() error          { return bs.err }
func (bs *BufStack) AbsolutePos() int    { return bs.absoluteOffset + bs.pos }
func (bs *BufStack) setErr(err error) {
	if bs.err == nil {
		bs.err = err
	}
}

func (bs *BufStack) String() string {
	return fmt.Sprintf("buf<%v>(%v)[o:0x%x,s:0x%x,ao:0x%x,ae:0x%x]",
		bs.kind, bs.name, bs.relativeOffset, bs.size, bs.absoluteOffset, bs.absoluteOffset+bs.size)
}

func (bs *BufStack) StringChain() string {
	s := bs.String()
	if bs.parent != nil {
		s += fmt.Sprintf("::%s", bs.parent.StringChain())
	}
	return s
}

func (bs *BufStack) stringTree(pad int) string {
	sPad := ""
	for i := 0; i < pad; i++ {
		sPad += ".  "
	}
	s := sPad + bs.String() + "\n"
	pos := 0
	for i, child := range bs.childs {
		if pos >= 0 && child.relativeOffset > pos {
			s += fmt.Sprintf("%s.  gap [o:0x%x,s:0x%x,ao:0x%x,ae:0x%x]\n",
				sPad, pos, child.relativeOffset-pos, bs.absoluteOffset+pos, child.absoluteOffset)
		}
		s += child.stringTree(pad + 1)
		if child.size != 0 {
			pos = child.relativeOffset + child.size
		} else {
			pos = -1
		}
		if child.size > 0 && i != len(bs.childs)-1 {
			if child.relativeOffset+child.size > bs.childs[i+1].relativeOffset {
				s += fmt.Sprintf("%s. [OVERLAP]\n", sPad)
			}
		}
	}
	return s
}

// StringTree dumps every sub buffer opened so far with gaps and overlaps.
func (bs *BufStack) StringTree() string {
	return bs.stringTree(0)
}

func (bs *BufStack) Raw() []byte {
	return bs.buf[:bs.size]
}

// Seek moves the cursor to pos relative to the buffer start.
func (bs *BufStack) Seek(pos int) {
	if pos < 0 || pos > bs.size {
		bs.setErr(FormatViolationf("seek to 0x%x outside of %v", pos, bs.StringChain()))
		return
	}
	bs.pos = pos
}

// Align skips forward to the next multiple of n counted from the absolute
// start of the outermost buffer.
func (bs *BufStack) Align(n int) {
	if rem := bs.AbsolutePos() % n; rem != 0 {
		bs.Skip(n - rem)
	}
}

var zeroes [64]byte

// Read returns the next amount bytes. After a failed read the cursor stays
// put and every following read returns zeroes, or nil for reads longer than
// a typed field.
func (bs *BufStack) Read(amount int) []byte {
	if bs.err != nil || amount < 0 || bs.pos+amount > bs.size {
		if bs.err == nil {
			bs.err = FormatViolationf("read of 0x%x bytes at 0x%x overruns %v", amount, bs.pos, bs.StringChain())
		}
		if amount <= len(zeroes) && amount >= 0 {
			return zeroes[:amount]
		}
		return nil
	}
	oldPos := bs.pos
	bs.pos += amount
	return bs.buf[oldPos:bs.pos]
}

func (bs *BufStack) Skip(amount int) {
	bs.Read(amount)
}

func (bs *BufStack) ReadLU64() uint64 { return binary.LittleEndian.Uint64(bs.Read(8)) }
func (bs *BufStack) ReadLU32() uint32 { return binary.LittleEndian.Uint32(bs.Read(4)) }
func (bs *BufStack) ReadLU16() uint16 { return binary.LittleEndian.Uint16(bs.Read(2)) }
func (bs *BufStack) ReadLI32() int32  { return int32(bs.ReadLU32()) }
func (bs *BufStack) ReadLI16() int16  { return int16(bs.ReadLU16()) }
func (bs *BufStack) ReadBU64() uint64 { return binary.BigEndian.Uint64(bs.Read(8)) }
func (bs *BufStack) ReadBU32() uint32 { return binary.BigEndian.Uint32(bs.Read(4)) }
func (bs *BufStack) ReadBU16() uint16 { return binary.BigEndian.Uint16(bs.Read(2)) }
func (bs *BufStack) ReadBI16() int16  { return int16(bs.ReadBU16()) }
func (bs *BufStack) ReadU8() byte     { return bs.Read(1)[0] }
func (bs *BufStack) ReadLF() float32  { return math.Float32frombits(bs.ReadLU32()) }
func (bs *BufStack) ReadBF() float32  { return math.Float32frombits(bs.ReadBU32()) }
func (bs *BufStack) ReadBytes(n int) []byte {
	return append([]byte(nil), bs.Read(n)...)
}
