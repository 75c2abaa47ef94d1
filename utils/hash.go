package utils

const STRCODE_MASK = 0x00ffffff

// StrCode is the 24-bit name hash stored in model headers. Zero is reserved,
// a name hashing to it gets 1.
func StrCode(str string) uint32 {
	var id uint32
	for i := 0; i < len(str); i++ {
		id = (id >> 19) | (id << 5)
		id = (id + uint32(str[i])) & STRCODE_MASK
	}
	if id == 0 {
		return 1
	}
	return id
}
