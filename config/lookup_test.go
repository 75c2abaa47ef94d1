package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLookup(t *testing.T) {
	text := []byte("# texture table\n" +
		"col0 1234.tga tex_a_ovl_alp.bmp\r\n" +
		"\n" +
		"col1\t77.tga\tskin.bmp extra\n" +
		"col2 5.TGA face.bmp")

	tl, err := ParseLookup(text)
	require.NoError(t, err)

	assert.Equal(t, 3, tl.Len())
	assert.Equal(t, "tex_a_ovl_alp.bmp", tl.NiceName(1234))
	assert.Equal(t, "skin.bmp", tl.NiceName(77))
	assert.Equal(t, "face.bmp", tl.NiceName(5))
	assert.Equal(t, "99.tga", tl.NiceName(99))
	assert.Equal(t, "", tl.NiceName(0))

	id, ok := tl.ID("skin.bmp")
	assert.True(t, ok)
	assert.Equal(t, uint32(77), id)

	entries := tl.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, uint32(5), entries[0].ID)
}

func TestParseLookupErrors(t *testing.T) {
	for _, text := range []string{
		"col0 12.tga\n",
		"col0 12.png name\n",
		"col0 abc.tga name\n",
	} {
		_, err := ParseLookup([]byte(text))
		assert.Error(t, err, "%q", text)
	}
}

func TestNilLookup(t *testing.T) {
	var tl *TextureLookup
	assert.Equal(t, "12.tga", tl.NiceName(12))
	assert.Equal(t, 0, tl.Len())
	_, ok := tl.ID("x")
	assert.False(t, ok)
}

func TestBoneNames(t *testing.T) {
	var boneTests = []struct {
		index  int
		finger int
		name   string
	}{
		{0, -1, "HIP"},
		{12, -1, "head"},
		{52, -1, "upper_eyelid_1_R"},
		{60, -1, "bone60"},
		{21, 21, "hand_R"},
		{38, 21, "hand_L"},
		{22, 21, "index_finger_1_R"},
	}
	for _, test := range boneTests {
		if name := BoneName(test.index, test.finger); name != test.name {
			t.Errorf("BoneName(%d,%d)=%q; expected %q", test.index, test.finger, name, test.name)
		}
		index, err := BoneIndex(test.name, test.finger)
		if err != nil || index != test.index {
			t.Errorf("BoneIndex(%q,%d)=%d,%v; expected %d", test.name, test.finger, index, err, test.index)
		}
	}

	_, err := BoneIndex("tail", 0)
	assert.Error(t, err)

	assert.Equal(t, 3, FingerIndex([]string{"HIP", "neck", "hand_R", "head"}))

	name, ok := MGRToBoneName("hand_L")
	assert.True(t, ok)
	assert.Equal(t, "wrist_L", name)
	assert.Len(t, BoneNames(), 53)
	assert.Len(t, FingerNames(), 34)
}

func TestEncoding(t *testing.T) {
	defer SetEncoding("Windows 1252")

	require.NoError(t, SetEncoding("windows-1251"))
	name, err := DecodeName([]byte{0xc0, 'x'})
	require.NoError(t, err)
	assert.Equal(t, "Аx", name)

	require.NoError(t, SetEncoding("Windows 1252"))
	name, err = DecodeName([]byte{0xc0})
	require.NoError(t, err)
	assert.Equal(t, "À", name)

	assert.Error(t, SetEncoding("utf-9"))
	assert.Contains(t, ListEncodings(), "Windows 1251")
}
