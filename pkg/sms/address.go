package sms

import (
	"fmt"
	"strings"

	"github.com/warthog618/sms/encoding/tpdu"
)

// ADDRESS FIELDS (3GPP TS 23.040, 9.1.2.5 and 9.2.3.7):
// An address is a Type-of-Address octet followed by the digits coded as
// semi-octets, low nibble first, padded with 'F' when the count is odd.
//
//	TP-OA:             digit count ‖ TOA ‖ semi-octets
//	Address TLV (86):  TOA ‖ semi-octets
//
// TOA = 1 ‖ TON(3) ‖ NPI(4). "+33..." selects the international number type.

// Type of number values (TON).
const (
	TONUnknown       = 0x0
	TONInternational = 0x1
	TONNational      = 0x2
)

// NPIISDN is the ISDN/telephone numbering plan (E.164).
const NPIISDN = 0x1

const bcdDigits = "0123456789*#abc"

// Address is a phone number with its type of number and numbering plan.
type Address struct {
	TON    byte
	NPI    byte
	Digits string
}

// ParseAddress parses "+33612345678" (international) or "0612345678"
// (unknown type). An empty string gives an empty address. The extended
// digits a, b and c are accepted in either case.
func ParseAddress(s string) (Address, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	a := Address{TON: TONUnknown, NPI: NPIISDN}
	if strings.HasPrefix(s, "+") {
		a.TON = TONInternational
		s = s[1:]
	}
	for _, r := range s {
		if !strings.ContainsRune(bcdDigits, r) {
			return Address{}, fmt.Errorf("invalid address digit %q in %q", r, s)
		}
	}
	if len(s) > 20 {
		return Address{}, fmt.Errorf("address %q longer than 20 digits", s)
	}
	a.Digits = s
	return a, nil
}

// TypeOfAddress returns the TOA octet.
func (a Address) TypeOfAddress() byte {
	return 0x80 | (a.TON&0x07)<<4 | a.NPI&0x0F
}

func (a Address) String() string {
	if a.TON == TONInternational {
		return "+" + a.Digits
	}
	return a.Digits
}

// TPAddress encodes the address as a TP-OA / TP-DA field.
func (a Address) TPAddress() ([]byte, error) {
	oa := tpdu.Address{TOA: a.TypeOfAddress(), Addr: a.Digits}
	b, err := oa.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("encoding address %q: %w", a, err)
	}
	return b, nil
}

// TLVValue encodes the address as the value of an Address COMPREHENSION-TLV,
// which is the TP-OA without its digit count.
func (a Address) TLVValue() ([]byte, error) {
	if a.Digits == "" {
		return nil, nil
	}
	b, err := a.TPAddress()
	if err != nil {
		return nil, err
	}
	return b[1:], nil
}

func fromTPDU(oa tpdu.Address) Address {
	return Address{
		TON:    (oa.TOA >> 4) & 0x07,
		NPI:    oa.TOA & 0x0F,
		Digits: strings.ToLower(oa.Addr),
	}
}

// parseTPAddress decodes a TP-OA field and returns the number of bytes it used.
func parseTPAddress(b []byte) (Address, int, error) {
	if len(b) < 2 {
		return Address{}, 0, fmt.Errorf("address too short: %d bytes", len(b))
	}
	if need := 2 + (int(b[0])+1)/2; len(b) < need {
		return Address{}, 0, fmt.Errorf("address declares %d digits, %d bytes available", b[0], len(b)-2)
	}
	var oa tpdu.Address
	n, err := oa.UnmarshalBinary(b)
	if err != nil {
		return Address{}, 0, fmt.Errorf("decoding address: %w", err)
	}
	return fromTPDU(oa), n, nil
}

// ParseAddressTLV decodes the value of an Address COMPREHENSION-TLV. The
// digit count is rebuilt from the semi-octets, an 'F' high nibble in the
// last octet marking an odd count.
func ParseAddressTLV(v []byte) (Address, error) {
	if len(v) == 0 {
		return Address{}, fmt.Errorf("empty address")
	}
	digits := 2 * (len(v) - 1)
	if digits > 0 && v[len(v)-1]>>4 == 0x0F {
		digits--
	}
	a, _, err := parseTPAddress(append([]byte{byte(digits)}, v...))
	return a, err
}
