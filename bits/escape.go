package bits

// RemoveEmulationPrevention de-escapes a NAL body into an RBSP by deleting
// every emulation-prevention byte: a 0x03 immediately following two 0x00
// bytes. Single forward pass, O(n) even on pathological inputs with
// back-to-back start-code-like runs.
func RemoveEmulationPrevention(src []byte) []byte {
	dst := make([]byte, 0, len(src))
	zeros := 0
	for _, b := range src {
		if zeros >= 2 && b == 0x03 {
			zeros = 0
			continue
		}
		dst = append(dst, b)
		if b == 0x00 {
			zeros++
		} else {
			zeros = 0
		}
	}
	return dst
}

// AddEmulationPrevention re-escapes an RBSP back into a legal NAL body by
// inserting 0x03 before every byte <= 0x03 that follows two 0x00 bytes.
// Used when rewriting SEI payloads. Exact inverse of
// RemoveEmulationPrevention for any valid RBSP: add(remove(x)) == x.
func AddEmulationPrevention(src []byte) []byte {
	dst := make([]byte, 0, len(src)+len(src)/3+1)
	zeros := 0
	for _, b := range src {
		if zeros >= 2 && b <= 0x03 {
			dst = append(dst, 0x03)
			zeros = 0
		}
		dst = append(dst, b)
		if b == 0x00 {
			zeros++
		} else {
			zeros = 0
		}
	}
	return dst
}
