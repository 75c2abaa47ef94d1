package kms

import (
	"github.com/mogaika/mgs2_tools/pack"
)

func init() {
	pack.SetHandler(".KMS", func(name string, data []byte) (interface{}, error) {
		return NewFromData(data)
	})
}
