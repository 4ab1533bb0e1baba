package tlv

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Hex constructs a byte slice from a series of hex strings.
func Hex(parts ...string) []byte {
	fullHex := strings.Join(parts, "")
	// Clean up spaces to allow format like "00 A4 04 00"
	cleanHex := strings.ReplaceAll(fullHex, " ", "")

	data, err := hex.DecodeString(cleanHex)
	if err != nil {
		panic(fmt.Sprintf("invalid input '%s': %v", cleanHex, err))
	}
	return data
}

// MakeSafeASCII replaces non-printable bytes with '.'.
func MakeSafeASCII(data []byte) string {
	return strings.Map(func(r rune) rune {
		if r >= 32 && r <= 126 {
			return r
		}
		return '.'
	}, string(data))
}

// SwappedBCD decodes semi-octets, low nibble first, as used by ICCIDs and
// TS 23.040 addresses. The 'F' filler ends the digits.
func SwappedBCD(data []byte) string {
	var sb strings.Builder
	for _, b := range data {
		for _, n := range [2]byte{b & 0x0F, b >> 4} {
			if n == 0x0F {
				return sb.String()
			}
			sb.WriteByte("0123456789*#abc"[n])
		}
	}
	return sb.String()
}
