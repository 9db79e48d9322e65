package cat

// EncodeBCD packs the least significant decimal digits of v into packed
// BCD, least significant digit first, two digits per byte with the lower
// digit in the low nibble. digits must be even. Values wider than digits
// are truncated to the low digits.
func EncodeBCD(v uint64, digits int) []byte {
	out := make([]byte, digits/2)
	for i := range out {
		lo := byte(v % 10)
		v /= 10
		hi := byte(v % 10)
		v /= 10
		out[i] = hi<<4 | lo
	}

	return out
}

// DecodeBCD reverses EncodeBCD over the whole slice.
func DecodeBCD(data []byte) uint64 {
	var v uint64
	weight := uint64(1)
	for _, b := range data {
		v += uint64(b&0x0f) * weight
		weight *= 10
		v += uint64(b>>4) * weight
		weight *= 10
	}

	return v
}
