package config

import (
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

var (
	charMapLock sync.RWMutex
	charMap     = charmap.Windows1252
)

// SetEncoding selects the single byte charmap lookup names are decoded with.
// Names compare case insensitively, "windows-1251" selects "Windows 1251".
func SetEncoding(name string) error {
	want := normalizeCharmapName(name)
	for _, enc := range charmap.All {
		if cm, ok := enc.(*charmap.Charmap); ok && normalizeCharmapName(cm.String()) == want {
			charMapLock.Lock()
			charMap = cm
			charMapLock.Unlock()
			return nil
		}
	}
	return errors.Errorf("Unknown encoding %q", name)
}

func normalizeCharmapName(name string) string {
	return strings.NewReplacer(" ", "", "-", "", "_", "").Replace(strings.ToLower(name))
}

func ListEncodings() []string {
	var list []string
	for _, enc := range charmap.All {
		if cm, ok := enc.(*charmap.Charmap); ok {
			list = append(list, cm.String())
		}
	}
	sort.Strings(list)
	return list
}

func GetEncoding() *charmap.Charmap {
	charMapLock.RLock()
	defer charMapLock.RUnlock()
	return charMap
}

// DecodeName converts raw name bytes with the current charmap.
func DecodeName(raw []byte) (string, error) {
	s, _, err := transform.Bytes(GetEncoding().NewDecoder(), raw)
	if err != nil {
		return "", errors.Wrapf(err, "Cannot decode %q as %v", raw, GetEncoding())
	}
	return string(s), nil
}
