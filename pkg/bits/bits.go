// Package bits offers 1-indexed bit helpers matching the notation of the
// ISO 7816 and ETSI coding tables (b8 is the most significant bit, b1 the least).
package bits

// Bit returns a byte with only the n-th bit set (1 to 8).
func Bit(n uint) byte {
	if n < 1 || n > 8 {
		return 0
	}
	return 1 << (n - 1)
}

// IsSet checks if the n-th bit is set (1 to 8).
func IsSet(b byte, n uint) bool {
	return b&Bit(n) != 0
}

// GetRange extracts the value from a range of bits (e.g., bits 4 to 3).
// Example: GetRange(0b00001100, 4, 3) returns 3 (0b11)
func GetRange(b byte, high, low uint) byte {
	if high < low || high > 8 || low < 1 {
		return 0
	}
	return (b >> (low - 1)) & mask(high, low)
}

// SetRange writes v into bits high..low of b and returns the result.
// Bits of v that do not fit in the range are dropped.
// Example: SetRange(0x00, 5, 4, 2) returns 0b00010000.
func SetRange(b byte, high, low uint, v byte) byte {
	if high < low || high > 8 || low < 1 {
		return b
	}
	m := mask(high, low)
	b &^= m << (low - 1)
	return b | (v&m)<<(low-1)
}

// Set returns b with bit n set.
func Set(b byte, n uint) byte {
	return b | Bit(n)
}

// Clear returns b with bit n cleared.
func Clear(b byte, n uint) byte {
	return b &^ Bit(n)
}

// Only reports whether b has no bit set outside of the allowed mask.
// Coding tables use it to reject reserved-for-future-use bits.
func Only(b, allowed byte) bool {
	return b&^allowed == 0
}

func mask(high, low uint) byte {
	width := high - low + 1
	return byte((1 << width) - 1)
}
