package evm

import (
	"github.com/qmuntal/gltf"

	"github.com/mogaika/mgs2_tools/config"
	"github.com/mogaika/mgs2_tools/utils/gltfutils"
)

func (m *Model) ExportGLTF(lookup *config.TextureLookup) *gltf.Document {
	doc := gltfutils.NewDocument()
	materials := gltfutils.NewMaterials(doc)

	joints := make([]gltfutils.Joint, len(m.Bones))
	for i, b := range m.Bones {
		joints[i] = gltfutils.Joint{Name: b.Name, Parent: b.Parent, World: b.World}
	}
	skin := gltfutils.AddSkeleton(doc, "evm", joints)

	var prims []*gltfutils.Primitive
	for _, mm := range m.Meshes {
		p := &gltfutils.Primitive{
			Positions: mm.Positions,
			Normals:   mm.Normals,
			UVs:       mm.UVs,
			Faces:     mm.Faces,
			Material:  materials.Get(lookup.NiceName(mm.ColorMap)),
		}
		if len(m.Bones) != 0 {
			p.Joints = make([][4]uint16, len(mm.Positions))
			p.Weights = make([][4]float32, len(mm.Positions))
			for v := range mm.Positions {
				if mm.Influences == nil {
					p.Weights[v][0] = 1
					continue
				}
				for k, in := range mm.Influences[v] {
					p.Joints[v][k] = uint16(in.Bone)
					p.Weights[v][k] = in.Weight
				}
			}
		}
		prims = append(prims, p)
	}
	if len(prims) != 0 {
		node := &gltf.Node{Name: "evm", Mesh: gltf.Index(gltfutils.AddMesh(doc, "evm", prims))}
		if len(m.Bones) != 0 {
			node.Skin = gltf.Index(skin)
		}
		gltfutils.AddNode(doc, node)
	}
	return doc
}
