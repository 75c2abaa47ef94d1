package cmdl

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/mgs2_tools/utils"
	"github.com/mogaika/mgs2_tools/utils/gltfutils"
)

func TestExportGLTF(t *testing.T) {
	c, err := Build(quadSource())
	require.NoError(t, err)

	doc, err := c.ExportGLTF()
	require.NoError(t, err)
	require.Len(t, doc.Meshes, 1)
	require.Len(t, doc.Nodes, 1)
	assert.Equal(t, "mesh0", doc.Nodes[0].Name)

	prims := doc.Meshes[0].Primitives
	require.Len(t, prims, 2)
	assert.Equal(t, uint32(4), doc.Accessors[prims[0].Attributes["POSITION"]].Count)
	assert.Equal(t, uint32(3), doc.Accessors[prims[1].Attributes["POSITION"]].Count)
	assert.Equal(t, uint32(3), doc.Accessors[*prims[1].Indices].Count)
	assert.Contains(t, prims[0].Attributes, "NORMAL")
	assert.Contains(t, prims[0].Attributes, "TEXCOORD_0")

	var buf bytes.Buffer
	require.NoError(t, gltfutils.ExportBinary(&buf, doc))
	assert.Equal(t, []byte("glTF"), buf.Bytes()[:4])
}

func TestExportGLTFFaceOutsideSubmesh(t *testing.T) {
	c, err := Build(quadSource())
	require.NoError(t, err)
	c.Faces[2][0] = 0

	_, err = c.ExportGLTF()
	assert.True(t, errors.Is(err, utils.ErrDataInconsistency), "%v", err)
}
