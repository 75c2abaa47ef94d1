package cmdl

import (
	"bytes"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/mgs2_tools/utils"
)

const (
	CMDL_MAGIC   = "MODL"
	CMDL_VERSION = 1
	HEADER_SIZE  = 0x10
	// Section and tail offsets count from here.
	BODY_OFFSET   = 0xC
	SECTION_SIZE  = 0x20
	MESH_SIZE     = 67
	PAYLOAD_ALIGN = 0x10

	MESH_UNKNOWN18 = -1
	MESH_FILL      = 0x80

	SECTION_DEFAULT_UNKNOWN06 = 2
)

// Trace receives decoder tracing when set.
var Trace *utils.Logger

var meshFill = bytes.Repeat([]byte{MESH_FILL}, 8)

type Section struct {
	Tag       string
	Unknown04 uint16
	Unknown06 uint16
	Data      SectionData
}

// Mesh is one submesh range of the tail. Face fields count indexes, not
// triangles.
type Mesh struct {
	Min, Max     mgl32.Vec3
	StartVertex  uint32
	VertexCount  uint32
	StartFace    uint32
	FaceCount    uint32
	MeshIndex    uint32
	SubMeshIndex uint32
}

type CMDL struct {
	Sections []Section
	Faces    [][3]uint32
	Meshes   []Mesh
}

func (c *CMDL) Section(tag string) *Section {
	for i := range c.Sections {
		if c.Sections[i].Tag == tag {
			return &c.Sections[i]
		}
	}
	return nil
}

func (c *CMDL) Positions() []mgl32.Vec3 {
	if s := c.Section(TAG_POSITION); s != nil {
		return s.Data.(*PositionSection).Positions
	}
	return nil
}

func (c *CMDL) VertexCount() int {
	return len(c.Positions())
}

func NewFromData(buf []byte) (*CMDL, error) {
	bs := utils.NewBufStack("cmdl", buf)
	if magic := string(bs.Read(4)); magic != CMDL_MAGIC {
		return nil, utils.FormatViolationf("invalid magic %q", magic)
	}
	if version := bs.ReadBU32(); version != CMDL_VERSION {
		return nil, utils.FormatViolationf("unexpected version %d", version)
	}
	tailOffset := int(bs.ReadBU32())
	numSection := int(bs.ReadLU32())
	if err := bs.Err(); err != nil {
		return nil, err
	}
	body := bs.SubBuf("body", BODY_OFFSET)

	c := &CMDL{Sections: make([]Section, numSection)}
	for i := range c.Sections {
		sbs := bs.SubBuf("section", HEADER_SIZE+i*SECTION_SIZE).SetSize(SECTION_SIZE)
		if err := c.Sections[i].parse(sbs, body); err != nil {
			return nil, errors.Wrapf(err, "Section %d", i)
		}
		Trace.Printf("[cmdl] section %d %s: %d elements", i, c.Sections[i].Tag, c.Sections[i].Data.Len())
	}

	tbs := body.SubBuf("tail", tailOffset)
	if err := c.parseTail(tbs); err != nil {
		return nil, errors.Wrapf(err, "Tail at 0x%x", tailOffset)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Section) parse(bs *utils.BufStack, body *utils.BufStack) error {
	s.Tag = string(utils.ReverseBytes(bs.ReadBytes(4)))
	data, err := newSectionData(s.Tag)
	if err != nil {
		return err
	}
	s.Data = data
	s.Unknown04 = bs.ReadLU16()
	s.Unknown06 = bs.ReadLU16()
	dataOffset := int(bs.ReadLU32())
	if pad := bs.ReadLU32(); pad != 0 {
		return utils.FormatViolationf("%s: pad after offset is 0x%x", s.Tag, pad)
	}
	dataSize := int(bs.ReadLU32())
	for i := 0; i < 3; i++ {
		if pad := bs.ReadLU32(); pad != 0 {
			return utils.FormatViolationf("%s: pad %d after size is 0x%x", s.Tag, i, pad)
		}
	}
	if err := bs.Err(); err != nil {
		return err
	}
	if dataSize%data.ElementSize() != 0 {
		return utils.FormatViolationf("%s: size 0x%x is not a multiple of 0x%x", s.Tag, dataSize, data.ElementSize())
	}

	pbs := body.SubBuf(s.Tag, dataOffset).SetSize(dataSize)
	if err := pbs.Err(); err != nil {
		return err
	}
	return data.parse(pbs, dataSize/data.ElementSize())
}

func (c *CMDL) parseTail(bs *utils.BufStack) error {
	numIndexes := bs.ReadBU32()
	if err := bs.Err(); err != nil {
		return err
	}
	if numIndexes%3 != 0 {
		return utils.FormatViolationf("face index count %d is not a multiple of 3", numIndexes)
	}
	if int(numIndexes)*4 > bs.Left() {
		return utils.FormatViolationf("%d face indexes do not fit into 0x%x bytes", numIndexes, bs.Left())
	}
	c.Faces = make([][3]uint32, numIndexes/3)
	for i := range c.Faces {
		c.Faces[i] = [3]uint32{bs.ReadBU32(), bs.ReadBU32(), bs.ReadBU32()}
	}
	if pad := bs.ReadBU32(); pad != 0 {
		return utils.FormatViolationf("pad after faces is 0x%x", pad)
	}
	numMeshes := int(bs.ReadBU32())
	if err := bs.Err(); err != nil {
		return err
	}
	if numMeshes*MESH_SIZE > bs.Left() {
		return utils.FormatViolationf("%d meshes do not fit into 0x%x bytes", numMeshes, bs.Left())
	}
	c.Meshes = make([]Mesh, numMeshes)
	for i := range c.Meshes {
		if err := c.Meshes[i].parse(bs); err != nil {
			return errors.Wrapf(err, "Mesh %d", i)
		}
	}
	return bs.Err()
}

func readBVec3(bs *utils.BufStack) mgl32.Vec3 {
	return mgl32.Vec3{bs.ReadBF(), bs.ReadBF(), bs.ReadBF()}
}

func (m *Mesh) parse(bs *utils.BufStack) error {
	m.Min = readBVec3(bs)
	m.Max = readBVec3(bs)
	if u := bs.ReadBI16(); u != MESH_UNKNOWN18 {
		return utils.FormatViolationf("unknown18 is %d", u)
	}
	if u := bs.ReadU8(); u != 0 {
		return utils.FormatViolationf("unknown1c is %d", u)
	}
	m.StartVertex = bs.ReadBU32()
	m.VertexCount = bs.ReadBU32()
	m.StartFace = bs.ReadBU32()
	m.FaceCount = bs.ReadBU32()
	if u := bs.ReadBU32(); u != 0 {
		return utils.FormatViolationf("unknown2d is 0x%x", u)
	}
	if fill := bs.Read(len(meshFill)); !bytes.Equal(fill, meshFill) {
		return utils.FormatViolationf("unknown2e is %v", utils.DumpToOneLineString(fill))
	}
	if u := bs.ReadBU32(); u != 0 {
		return utils.FormatViolationf("unknown36 is 0x%x", u)
	}
	m.MeshIndex = bs.ReadBU32()
	m.SubMeshIndex = bs.ReadBU32()
	return bs.Err()
}

// Validate checks that every per vertex section has one element per position
// and that faces and submesh ranges stay inside the vertex and index counts.
func (c *CMDL) Validate() error {
	pos := c.Section(TAG_POSITION)
	if pos == nil {
		return utils.DataInconsistencyf("no %s section", TAG_POSITION)
	}
	numVertex := pos.Data.Len()
	for _, s := range c.Sections {
		if s.Data.Len() != numVertex {
			return utils.DataInconsistencyf("section %s has %d elements, %s has %d", s.Tag, s.Data.Len(), TAG_POSITION, numVertex)
		}
	}
	for i, f := range c.Faces {
		for _, idx := range f {
			if int(idx) >= numVertex {
				return utils.DataInconsistencyf("face %d references vertex %d of %d", i, idx, numVertex)
			}
		}
	}
	numIndexes := uint64(len(c.Faces) * 3)
	for i, m := range c.Meshes {
		if uint64(m.StartVertex)+uint64(m.VertexCount) > uint64(numVertex) {
			return utils.DataInconsistencyf("mesh %d submesh %d: vertices %d+%d outside of %d",
				m.MeshIndex, m.SubMeshIndex, m.StartVertex, m.VertexCount, numVertex)
		}
		if m.StartFace%3 != 0 || m.FaceCount%3 != 0 || uint64(m.StartFace)+uint64(m.FaceCount) > numIndexes {
			return utils.DataInconsistencyf("mesh %d submesh %d (record %d): faces %d+%d outside of %d indexes",
				m.MeshIndex, m.SubMeshIndex, i, m.StartFace, m.FaceCount, numIndexes)
		}
	}
	return nil
}

// MarshalToBinary lays out the header, the section table, every section
// payload and the tail, each payload 16 byte aligned. Offsets and sizes are
// computed from the data.
func (c *CMDL) MarshalToBinary() ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	w := utils.NewBufWriter(HEADER_SIZE + SECTION_SIZE*len(c.Sections))
	w.Write([]byte(CMDL_MAGIC))
	w.WriteBU32(CMDL_VERSION)
	w.WriteBU32(0) // tail offset
	w.WriteLU32(uint32(len(c.Sections)))

	w.Seek(HEADER_SIZE + SECTION_SIZE*len(c.Sections))
	offsets := make([]int, len(c.Sections))
	for i, s := range c.Sections {
		if len(s.Tag) != 4 {
			return nil, utils.DataInconsistencyf("section %d tag %q is not 4 bytes", i, s.Tag)
		}
		w.Pad(PAYLOAD_ALIGN)
		offsets[i] = w.Pos()
		s.Data.marshal(w)
	}
	w.Pad(PAYLOAD_ALIGN)
	tailOffset := w.Pos()
	c.marshalTail(w)

	for i, s := range c.Sections {
		w.Seek(HEADER_SIZE + i*SECTION_SIZE)
		w.Write(utils.ReverseBytes([]byte(s.Tag)))
		w.WriteLU16(s.Unknown04)
		w.WriteLU16(s.Unknown06)
		w.WriteLU32(uint32(offsets[i] - BODY_OFFSET))
		w.WriteLU32(0)
		w.WriteLU32(uint32(s.Data.Len() * s.Data.ElementSize()))
		w.Zero(3 * 4)
	}
	w.PutBU32(8, uint32(tailOffset-BODY_OFFSET))
	return w.Bytes(), nil
}

func (c *CMDL) marshalTail(w *utils.BufWriter) {
	w.WriteBU32(uint32(len(c.Faces) * 3))
	for _, f := range c.Faces {
		w.WriteBU32(f[0])
		w.WriteBU32(f[1])
		w.WriteBU32(f[2])
	}
	w.WriteBU32(0)
	w.WriteBU32(uint32(len(c.Meshes)))
	for _, m := range c.Meshes {
		for _, v := range []mgl32.Vec3{m.Min, m.Max} {
			w.WriteBF(v[0])
			w.WriteBF(v[1])
			w.WriteBF(v[2])
		}
		w.WriteBI16(MESH_UNKNOWN18)
		w.WriteU8(0)
		w.WriteBU32(m.StartVertex)
		w.WriteBU32(m.VertexCount)
		w.WriteBU32(m.StartFace)
		w.WriteBU32(m.FaceCount)
		w.WriteBU32(0)
		w.Write(meshFill)
		w.WriteBU32(0)
		w.WriteBU32(m.MeshIndex)
		w.WriteBU32(m.SubMeshIndex)
	}
}

func (c *CMDL) String() string {
	return fmt.Sprintf("CMDL{sections:%d vertices:%d faces:%d meshes:%d}", len(c.Sections), c.VertexCount(), len(c.Faces), len(c.Meshes))
}
