package evm

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/mgs2_tools/config"
	"github.com/mogaika/mgs2_tools/pack/geom"
)

type ModelBone struct {
	Name   string
	Parent int
	World  mgl32.Vec3
}

type ModelMesh struct {
	Flag        uint32
	ColorMap    uint32
	SpecularMap uint32
	EnvMap      uint32

	Positions []mgl32.Vec3
	Normals   []mgl32.Vec3
	UVs       [][]mgl32.Vec2
	Faces     [][3]int
	// nil when the mesh has no weight stream
	Influences [][]Influence
}

// Model is in model units: file positions divided by geom.EVMPositionScale.
type Model struct {
	Bones  []ModelBone
	Meshes []ModelMesh
}

func (e *EVM) relativePositions() []mgl32.Vec3 {
	rel := make([]mgl32.Vec3, len(e.Bones))
	for i := range e.Bones {
		rel[i] = e.Bones[i].Relative
	}
	return rel
}

// BoneWorldPosition walks the parent chain summing stored relative
// positions. The stored world position is not consulted.
func (e *EVM) BoneWorldPosition(bone int) (mgl32.Vec3, error) {
	return geom.WorldPosition(e.Parents(), e.relativePositions(), bone)
}

func (e *EVM) usesBodyRig() bool {
	expected := config.ExpectedParentBones
	if len(e.Bones) < len(expected) {
		return false
	}
	for i, p := range expected {
		if int(e.Bones[i].Parent) != p {
			return false
		}
	}
	return true
}

func (e *EVM) BoneName(i int) string {
	if e.usesBodyRig() {
		return config.BoneName(i, -1)
	}
	return fmt.Sprintf("bone%d", i)
}

func (e *EVM) Decode() (*Model, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	model := &Model{
		Bones:  make([]ModelBone, len(e.Bones)),
		Meshes: make([]ModelMesh, len(e.Meshes)),
	}
	for i := range e.Bones {
		world, err := e.BoneWorldPosition(i)
		if err != nil {
			return nil, err
		}
		model.Bones[i] = ModelBone{
			Name:   e.BoneName(i),
			Parent: int(e.Bones[i].Parent),
			World:  world.Mul(1.0 / geom.EVMPositionScale),
		}
	}
	for i := range e.Meshes {
		if err := decodeMesh(&model.Meshes[i], &e.Meshes[i]); err != nil {
			return nil, errors.Wrapf(err, "Mesh %d", i)
		}
	}
	return model, nil
}

func decodeMesh(mm *ModelMesh, m *Mesh) error {
	mm.Flag = m.Flag
	mm.ColorMap = m.ColorMap
	mm.SpecularMap = m.SpecularMap
	mm.EnvMap = m.EnvironmentMap

	n := len(m.Vertices)
	mm.Positions = make([]mgl32.Vec3, n)
	mm.Normals = make([]mgl32.Vec3, n)
	for i, v := range m.Vertices {
		mm.Positions[i] = geom.Dequantize16Vec(v.Pos, geom.EVMPositionScale)
		mm.Normals[i] = geom.DecodeSkinnedNormal(m.Normals[i].Dir)
	}
	for _, uvs := range m.UVs {
		if uvs == nil {
			continue
		}
		coords := make([]mgl32.Vec2, n)
		for i, uv := range uvs {
			coords[i] = geom.DecodeUV(uv.Coord)
		}
		mm.UVs = append(mm.UVs, coords)
	}

	if m.Weights != nil {
		mm.Influences = make([][]Influence, n)
		for i, w := range m.Weights {
			infl, err := w.Unpack(int(m.NumSkin), m.SkinTable)
			if err != nil {
				return errors.Wrapf(err, "Vertex %d", i)
			}
			mm.Influences[i] = infl
		}
	}

	faces, err := geom.DecodeStrip(m.Closing())
	if err != nil {
		return err
	}
	mm.Faces = faces
	return nil
}
