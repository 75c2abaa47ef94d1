package cmdl

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"

	"github.com/mogaika/mgs2_tools/utils"
	"github.com/mogaika/mgs2_tools/utils/gltfutils"
)

// ExportGLTF emits one node per mesh index with a primitive per submesh.
// Submesh faces must stay inside the submesh vertex range.
func (c *CMDL) ExportGLTF() (*gltf.Document, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	doc := gltfutils.NewDocument()
	material := gltfutils.AddMaterial(doc, "default")

	positions := c.Positions()
	var normals []mgl32.Vec3
	if s := c.Section(TAG_NORMAL); s != nil {
		normals = s.Data.(*NormalSection).Normals()
		for i := range normals {
			normals[i] = normals[i].Mul(-1)
		}
	}
	var uvs [][]mgl32.Vec2
	for ch := 0; ch < MAX_UV; ch++ {
		if s := c.Section(UVTag(ch)); s != nil {
			uvs = append(uvs, s.Data.(*UVSection).Coords())
		}
	}

	var order []uint32
	byMesh := make(map[uint32][]*gltfutils.Primitive)
	for i, m := range c.Meshes {
		start, end := int(m.StartVertex), int(m.StartVertex+m.VertexCount)
		p := &gltfutils.Primitive{
			Positions: positions[start:end],
			Material:  gltf.Index(material),
		}
		if normals != nil {
			p.Normals = normals[start:end]
		}
		for _, layer := range uvs {
			p.UVs = append(p.UVs, layer[start:end])
		}
		for _, f := range c.Faces[m.StartFace/3 : (m.StartFace+m.FaceCount)/3] {
			var local [3]int
			for k, idx := range f {
				if int(idx) < start || int(idx) >= end {
					return nil, utils.DataInconsistencyf("mesh %d submesh %d (record %d): face vertex %d outside of %d+%d",
						m.MeshIndex, m.SubMeshIndex, i, idx, start, m.VertexCount)
				}
				local[k] = int(idx) - start
			}
			p.Faces = append(p.Faces, local)
		}
		if _, ok := byMesh[m.MeshIndex]; !ok {
			order = append(order, m.MeshIndex)
		}
		byMesh[m.MeshIndex] = append(byMesh[m.MeshIndex], p)
	}

	for _, iMesh := range order {
		name := fmt.Sprintf("mesh%d", iMesh)
		mesh := gltfutils.AddMesh(doc, name, byMesh[iMesh])
		gltfutils.AddNode(doc, &gltf.Node{Name: name, Mesh: gltf.Index(mesh)})
	}
	return doc, nil
}
