package ctxr

import (
	"path/filepath"
	"strings"
)

// HeaderHint is the 18 byte vendor field of the header. Its meaning is
// unknown, textures converted from DDS get one of two known patterns.
type HeaderHint [UNKNOWN4_SIZE]byte

var (
	HintDefault   = HeaderHint{0, 0, 0, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0, 0, 0, 0, 0}
	HintAlternate = HeaderHint{0, 0, 0, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01, 0, 0, 0, 0}
)

var alternateHintMarkers = []string{"spec", "ovl", "alp"}

// IsAlphaBlendedName reports texture names the game draws with alpha blend.
func IsAlphaBlendedName(name string) bool {
	name = strings.ToLower(name)
	return strings.Contains(name, "alp") && strings.Contains(name, "ovl")
}

// HintForName picks the header hint for a texture by its file name:
// specular, overlay and alpha textures use the alternate pattern.
func HintForName(name string) HeaderHint {
	base := strings.ToLower(filepath.Base(name))
	for _, marker := range alternateHintMarkers {
		if strings.Contains(base, marker) {
			return HintAlternate
		}
	}
	return HintDefault
}
