package kms

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/mgs2_tools/config"
	"github.com/mogaika/mgs2_tools/pack/geom"
)

// Group is one decoded vertex group: flat per vertex arrays and the
// triangles its closing flags describe.
type Group struct {
	Material    int
	ColorMap    uint32
	SpecularMap uint32
	EnvMap      uint32

	Positions []mgl32.Vec3
	Normals   []mgl32.Vec3
	// One slice per present uv channel, V already flipped to the top-left origin.
	UVs   [][]mgl32.Vec2
	Faces [][3]int
	// Weight toward the mesh bone. ParentWeights is nil for root meshes.
	Weights       []float32
	ParentWeights []float32
}

type ModelMesh struct {
	Name   string
	Parent int
	World  mgl32.Vec3
	Groups []Group
}

type Model struct {
	Meshes []ModelMesh
}

func (k *KMS) relativePositions() []mgl32.Vec3 {
	rel := make([]mgl32.Vec3, len(k.Meshes))
	for i := range k.Meshes {
		rel[i] = k.Meshes[i].Pos
	}
	return rel
}

// WorldPosition sums the mesh position with all of its ancestors and the
// header origin.
func (k *KMS) WorldPosition(mesh int) (mgl32.Vec3, error) {
	pos, err := geom.WorldPosition(k.Parents(), k.relativePositions(), mesh)
	if err != nil {
		return mgl32.Vec3{}, err
	}
	return pos.Add(k.Header.Pos), nil
}

// usesBodyRig reports whether the leading meshes follow the shared character
// skeleton, so their bones can get readable names.
func (k *KMS) usesBodyRig() bool {
	expected := config.ExpectedParentBones
	if len(k.Meshes) < len(expected) {
		return false
	}
	for i, p := range expected {
		if int(k.Meshes[i].Parent) != p {
			return false
		}
	}
	return true
}

func (k *KMS) MeshName(i int) string {
	if k.usesBodyRig() {
		return config.BoneName(i, -1)
	}
	return fmt.Sprintf("bone%d", i)
}

// Decode turns the stored streams into model space geometry. Vertices are
// clamped to their mesh bounding box and placed at the mesh world position.
func (k *KMS) Decode() (*Model, error) {
	if err := k.Validate(); err != nil {
		return nil, err
	}
	model := &Model{Meshes: make([]ModelMesh, len(k.Meshes))}
	for i := range k.Meshes {
		m := &k.Meshes[i]
		world, err := k.WorldPosition(i)
		if err != nil {
			return nil, err
		}
		mm := &model.Meshes[i]
		mm.Name = k.MeshName(i)
		mm.Parent = int(m.Parent)
		mm.World = world
		mm.Groups = make([]Group, len(m.VertexGroups))
		for j := range m.VertexGroups {
			if err := decodeGroup(&mm.Groups[j], m, &m.VertexGroups[j], world); err != nil {
				return nil, errors.Wrapf(err, "Mesh %d group %d", i, j)
			}
			mm.Groups[j].Material = j
		}
	}
	return model, nil
}

func decodeGroup(g *Group, m *Mesh, vg *VertexGroup, world mgl32.Vec3) error {
	g.ColorMap = vg.ColorMap
	g.SpecularMap = vg.SpecularMap
	g.EnvMap = vg.EnvironmentMap

	n := len(vg.Vertices)
	g.Positions = make([]mgl32.Vec3, n)
	g.Normals = make([]mgl32.Vec3, n)
	g.Weights = make([]float32, n)
	if m.Parent != -1 {
		g.ParentWeights = make([]float32, n)
	}
	for i, v := range vg.Vertices {
		p := geom.Dequantize16Vec(v.Pos, geom.KMSPositionScale)
		for c := 0; c < 3; c++ {
			p[c] = mgl32.Clamp(p[c], m.Min[c], m.Max[c])
		}
		g.Positions[i] = p.Add(world)
		g.Normals[i] = geom.DecodeSkinnedNormal(vg.Normals[i].Dir)
		w := float32(v.Weight) / geom.UnitScale
		g.Weights[i] = w
		if g.ParentWeights != nil {
			g.ParentWeights[i] = 1 - w
		}
	}

	for _, uvs := range vg.UVs {
		if uvs == nil || isNullUV(uvs) {
			continue
		}
		coords := make([]mgl32.Vec2, len(uvs))
		for i, uv := range uvs {
			coords[i] = geom.DecodeUV(uv)
		}
		g.UVs = append(g.UVs, coords)
	}

	faces, err := geom.DecodeStrip(vg.Closing())
	if err != nil {
		return err
	}
	g.Faces = faces
	return nil
}

// nullUV is what an exporter writes for a vertex without texture coordinates.
var nullUV = UV{0, geom.UnitScale}

func isNullUV(uvs []UV) bool {
	for _, uv := range uvs {
		if uv != nullUV {
			return false
		}
	}
	return true
}
