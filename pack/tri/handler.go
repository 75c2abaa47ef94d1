package tri

import (
	"github.com/mogaika/mgs2_tools/pack"
)

func init() {
	pack.SetHandler(".TRI", func(name string, data []byte) (interface{}, error) {
		return NewFromData(data)
	})
}
