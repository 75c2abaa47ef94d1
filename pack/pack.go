package pack

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

type FileLoader func(name string, data []byte) (interface{}, error)

var gHandlers map[string]FileLoader = make(map[string]FileLoader, 0)

func SetHandler(format string, ldr FileLoader) {
	gHandlers[strings.ToUpper(format)] = ldr
}

// Extensions lists registered extensions, sorted.
func Extensions() []string {
	exts := make([]string, 0, len(gHandlers))
	for ext := range gHandlers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

func CallHandler(name string, data []byte) (interface{}, error) {
	ext := strings.ToUpper(filepath.Ext(name))

	if h, found := gHandlers[ext]; found {
		inst, err := h(name, data)
		if err != nil {
			return nil, errors.Wrapf(err, "[pack] %s", filepath.Base(name))
		}
		return inst, nil
	} else {
		return nil, errors.Errorf("[pack] Cannot find handler for '%s' extension", ext)
	}
}

// Marshaler is implemented by every loaded instance that can be written back.
type Marshaler interface {
	MarshalToBinary() ([]byte, error)
}

func Load(path string) (interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "[pack] Cannot read '%s'", path)
	}
	return CallHandler(path, data)
}
