package gltfutils

import (
	"fmt"
	"io"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

func NewDocument() *gltf.Document {
	return gltf.NewDocument()
}

// Primitive is one triangle list. Joints and Weights are only set for
// skinned geometry.
type Primitive struct {
	Positions []mgl32.Vec3
	Normals   []mgl32.Vec3
	UVs       [][]mgl32.Vec2
	Faces     [][3]int
	Joints    [][4]uint16
	Weights   [][4]float32
	Material  *uint32
}

func vec3s(v []mgl32.Vec3) [][3]float32 {
	r := make([][3]float32, len(v))
	for i := range v {
		r[i] = v[i]
	}
	return r
}

func (p *Primitive) Write(doc *gltf.Document) *gltf.Primitive {
	attributes := make(map[string]uint32)
	attributes["POSITION"] = modeler.WritePosition(doc, vec3s(p.Positions))
	if p.Normals != nil {
		normals := vec3s(p.Normals)
		for i, n := range p.Normals {
			if n.Len() > 0.5 {
				normals[i] = n.Normalize()
			}
		}
		attributes["NORMAL"] = modeler.WriteNormal(doc, normals)
	}
	for iLayer, layer := range p.UVs {
		uvs := make([][2]float32, len(layer))
		for i := range layer {
			uvs[i] = layer[i]
		}
		attributes[fmt.Sprintf("TEXCOORD_%d", iLayer)] = modeler.WriteTextureCoord(doc, uvs)
	}
	if p.Joints != nil {
		attributes["JOINTS_0"] = modeler.WriteJoints(doc, p.Joints)
		attributes["WEIGHTS_0"] = modeler.WriteWeights(doc, p.Weights)
	}

	indices := make([]uint32, 0, len(p.Faces)*3)
	for _, f := range p.Faces {
		indices = append(indices, uint32(f[0]), uint32(f[1]), uint32(f[2]))
	}
	indicesAccessor := modeler.WriteIndices(doc, indices)

	return &gltf.Primitive{
		Indices:    &indicesAccessor,
		Attributes: attributes,
		Material:   p.Material,
	}
}

func AddMesh(doc *gltf.Document, name string, prims []*Primitive) uint32 {
	mesh := &gltf.Mesh{Name: name}
	for _, p := range prims {
		mesh.Primitives = append(mesh.Primitives, p.Write(doc))
	}
	doc.Meshes = append(doc.Meshes, mesh)
	return uint32(len(doc.Meshes) - 1)
}

func AddMaterial(doc *gltf.Document, name string) uint32 {
	doc.Materials = append(doc.Materials, &gltf.Material{
		Name:        name,
		DoubleSided: true,
	})
	return uint32(len(doc.Materials) - 1)
}

func AddNode(doc *gltf.Document, node *gltf.Node) uint32 {
	doc.Nodes = append(doc.Nodes, node)
	return uint32(len(doc.Nodes) - 1)
}

// Joint is a skeleton node placed at its model space position.
type Joint struct {
	Name   string
	Parent int
	World  mgl32.Vec3
}

// AddSkeleton adds joint nodes translated relative to their parents and a
// skin binding them. Parents must form a tree.
func AddSkeleton(doc *gltf.Document, name string, joints []Joint) uint32 {
	base := uint32(len(doc.Nodes))
	skin := &gltf.Skin{Name: name}
	inverseBind := make([][4][4]float32, len(joints))
	for i, j := range joints {
		translation := j.World
		if j.Parent >= 0 {
			translation = j.World.Sub(joints[j.Parent].World)
		}
		AddNode(doc, &gltf.Node{Name: j.Name, Translation: translation})
		skin.Joints = append(skin.Joints, base+uint32(i))

		m := mgl32.Translate3D(-j.World[0], -j.World[1], -j.World[2])
		for c := 0; c < 4; c++ {
			copy(inverseBind[i][c][:], m[c*4:c*4+4])
		}
	}
	for i, j := range joints {
		if j.Parent >= 0 {
			parent := doc.Nodes[base+uint32(j.Parent)]
			parent.Children = append(parent.Children, base+uint32(i))
		}
	}
	if len(joints) != 0 {
		skin.Skeleton = gltf.Index(base)
		ibm := modeler.WriteAccessor(doc, gltf.TargetNone, inverseBind)
		skin.InverseBindMatrices = &ibm
	}
	doc.Skins = append(doc.Skins, skin)
	return uint32(len(doc.Skins) - 1)
}

// ExportBinary writes doc as glb with every node that is nobody's child in
// the scene.
func ExportBinary(w io.Writer, doc *gltf.Document) error {
	child := make(map[uint32]bool)
	for _, node := range doc.Nodes {
		for _, c := range node.Children {
			child[c] = true
		}
	}
	doc.Scenes[0].Nodes = doc.Scenes[0].Nodes[:0]
	for iNode := range doc.Nodes {
		if !child[uint32(iNode)] {
			doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, uint32(iNode))
		}
	}

	encoder := gltf.NewEncoder(w)
	encoder.AsBinary = true
	return encoder.Encode(doc)
}

// Materials hands out one material per name.
type Materials struct {
	doc   *gltf.Document
	index map[string]uint32
}

func NewMaterials(doc *gltf.Document) *Materials {
	return &Materials{doc: doc, index: make(map[string]uint32)}
}

func (m *Materials) Get(name string) *uint32 {
	if name == "" {
		name = "default"
	}
	i, ok := m.index[name]
	if !ok {
		i = AddMaterial(m.doc, name)
		m.index[name] = i
	}
	return gltf.Index(i)
}
