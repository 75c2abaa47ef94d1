package kms

import (
	"github.com/qmuntal/gltf"

	"github.com/mogaika/mgs2_tools/config"
	"github.com/mogaika/mgs2_tools/utils/gltfutils"
)

// ExportGLTF builds a skinned document: one joint per mesh, and one
// primitive per vertex group blended between the mesh joint and its parent.
func (m *Model) ExportGLTF(lookup *config.TextureLookup) *gltf.Document {
	doc := gltfutils.NewDocument()
	materials := gltfutils.NewMaterials(doc)

	joints := make([]gltfutils.Joint, len(m.Meshes))
	for i, mm := range m.Meshes {
		joints[i] = gltfutils.Joint{Name: mm.Name, Parent: mm.Parent, World: mm.World}
	}
	skin := gltfutils.AddSkeleton(doc, "kms", joints)

	var prims []*gltfutils.Primitive
	for i, mm := range m.Meshes {
		for _, g := range mm.Groups {
			p := &gltfutils.Primitive{
				Positions: g.Positions,
				Normals:   g.Normals,
				UVs:       g.UVs,
				Faces:     g.Faces,
				Joints:    make([][4]uint16, len(g.Positions)),
				Weights:   make([][4]float32, len(g.Positions)),
				Material:  materials.Get(lookup.NiceName(g.ColorMap)),
			}
			for v := range g.Positions {
				p.Joints[v][0] = uint16(i)
				p.Weights[v][0] = g.Weights[v]
				if g.ParentWeights != nil {
					p.Joints[v][1] = uint16(mm.Parent)
					p.Weights[v][1] = g.ParentWeights[v]
				}
			}
			prims = append(prims, p)
		}
	}
	if len(prims) != 0 {
		mesh := gltfutils.AddMesh(doc, "kms", prims)
		gltfutils.AddNode(doc, &gltf.Node{Name: "kms", Mesh: gltf.Index(mesh), Skin: gltf.Index(skin)})
	}
	return doc
}
