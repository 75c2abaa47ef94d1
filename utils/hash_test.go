package utils

import "testing"

var hashTests = []struct {
	in  string
	out uint32
}{
	{"", 0x1},
	{"a", 0x61},
	{"snake", 0x6891cc},
	{"sna_def", 0x413aa8},
	{"ZZZZZZZ", 0xce8ad3},
}

func TestStrCode(t *testing.T) {
	for _, test := range hashTests {
		result := StrCode(test.in)
		if result != test.out {
			t.Errorf("StrCode(%q)=0x%x; expected 0x%x", test.in, result, test.out)
		}
	}
}
