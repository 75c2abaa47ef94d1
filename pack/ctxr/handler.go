package ctxr

import (
	"github.com/mogaika/mgs2_tools/pack"
)

func init() {
	pack.SetHandler(".CTXR", func(name string, data []byte) (interface{}, error) {
		return NewFromData(data)
	})
	pack.SetHandler(".DDS", func(name string, data []byte) (interface{}, error) {
		return NewDDSFromData(data)
	})
}
