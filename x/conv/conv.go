// Package conv formats integers into caller-owned buffers without
// pulling in fmt.
package conv

const hexDigits = "0123456789ABCDEF"

// Utoa writes n in base 10 at the end of buf and returns the digits.
// A 20-byte buffer holds any uint64.
func Utoa(buf []byte, n uint64) []byte {
	i := len(buf)
	if i == 0 {
		return buf
	}
	for {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
		if n == 0 || i == 0 {
			return buf[i:]
		}
	}
}

// Hex32 renders a register address as "0x" and eight uppercase digits.
func Hex32(a uint32) string {
	var b [10]byte
	b[0], b[1] = '0', 'x'
	for i := 9; i >= 2; i-- {
		b[i] = hexDigits[a&0xF]
		a >>= 4
	}
	return string(b[:])
}
