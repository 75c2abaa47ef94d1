package cmdl

import (
	"github.com/mogaika/mgs2_tools/pack"
)

func init() {
	pack.SetHandler(".CMDL", func(name string, data []byte) (interface{}, error) {
		return NewFromData(data)
	})
}
