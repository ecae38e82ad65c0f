package shamap

// EncodeVL prefixes data with the XRPL variable-length header.
func EncodeVL(data []byte) []byte {
	n := len(data)
	var header []byte
	switch {
	case n <= 192:
		header = []byte{byte(n)}
	case n <= 12480:
		n -= 193
		header = []byte{byte(193 + (n >> 8)), byte(n & 0xFF)}
	default:
		n -= 12481
		header = []byte{byte(241 + (n >> 16)), byte((n >> 8) & 0xFF), byte(n & 0xFF)}
	}

	out := make([]byte, 0, len(header)+len(data))
	out = append(out, header...)
	return append(out, data...)
}
