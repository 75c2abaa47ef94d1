package utils

func ReverseBytes(a []byte) []byte {
	r := make([]byte, len(a))
	j := len(r)
	for _, b := range a {
		j--
		r[j] = b
	}
	return r
}

// AlignUp rounds v up to the next multiple of n.
func AlignUp(v, n int) int {
	if rem := v % n; rem != 0 {
		return v + n - rem
	}
	return v
}
