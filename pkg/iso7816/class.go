package iso7816

import (
	"fmt"
	"strings"

	"github.com/gregLibert/simota/pkg/bits"
)

// Class Byte (CLA):
//
// GSM SIM cards (3GPP TS 51.011) use the single class 'A0'. UICC cards
// (ETSI TS 102 221) use the ISO interindustry classes for file access and
// the class '80' for the commands specific to the telecom platform, such as
// ENVELOPE, FETCH or TERMINAL RESPONSE.
//
// ISO interindustry structure (ISO/IEC 7816-4):
// Bit 8: Proprietary (1) or Interindustry (0).
// Bit 7: Type of Interindustry (0=First, 1=Further).
// Bit 5: Command Chaining (0=Last/Only, 1=More follow).
//
// 1. First Interindustry Class (00xx xxxx):
//    - Bits 4-3: Secure Messaging (2 bits, 4 states).
//    - Bits 2-1: Logical Channel number (0-3).
//
// 2. Further Interindustry Class (01xx xxxx):
//    - Bit 6: Secure Messaging (1 bit: No SM or SM active).
//    - Bits 4-1: Logical Channel number minus 4 (encoding 0-15 for channels 4-19).
//
// 3. UICC proprietary classes (1xxx xxxx, ETSI TS 102 221):
//    - '8X' (100x xxxx): bits 2-1 carry channels 0-3, as in the first range.
//    - 'CX' (110x xxxx): bits 4-1 carry channels 4-19, as in the further range.
//    - 'A0' and the classes with bit 6 set carry no channel.

// SecureMessaging defines the security level applied to the APDU.
type SecureMessaging int

const (
	// SMNone indicates no secure messaging or no indication given.
	SMNone SecureMessaging = iota
	// SMProprietary indicates a proprietary format (first interindustry only).
	SMProprietary
	// SMHeaderNoProc indicates ISO SM where the header is not processed.
	SMHeaderNoProc
	// SMHeaderAuth indicates ISO SM with an authenticated header (first interindustry only).
	SMHeaderAuth
)

// Raw values of the classes used by SIM and UICC cards.
const (
	CLA_ISO  byte = 0x00
	CLA_UICC byte = 0x80
	CLA_GSM  byte = 0xA0
)

// Class represents a parsed Class byte (CLA).
type Class struct {
	Raw             byte
	IsProprietary   bool
	IsChained       bool
	SecureMessaging SecureMessaging
	Channel         uint8 // Logical channel number (0-19)
}

// NewClass decodes a raw CLA byte.
func NewClass(cla byte) (Class, error) {
	if cla == 0xFF {
		return Class{}, fmt.Errorf("invalid CLA value: 0xFF is reserved")
	}

	c := Class{Raw: cla}

	// Bit 8 indicates a proprietary class
	if bits.IsSet(cla, 8) {
		c.IsProprietary = true
		// 'A0' (GSM) and bit 6 set: no channel information
		if cla != CLA_GSM && !bits.IsSet(cla, 6) {
			// '8X': channel on bits 2-1, like the first range
			c.Channel = bits.GetRange(cla, 2, 1)
			// 'CX': bit 7 set, channel offset on bits 4-1, like the further range
			if bits.IsSet(cla, 7) {
				c.Channel = bits.GetRange(cla, 4, 1) + 4
			}
		}
		return c, nil
	}

	// Bit 5 is always Command Chaining
	c.IsChained = bits.IsSet(cla, 5)

	// Bit 7 determines the encoding structure
	if !bits.IsSet(cla, 7) {
		// First Interindustry Structure (00xx xxxx)
		// SM is on bits 4-3
		c.SecureMessaging = SecureMessaging(bits.GetRange(cla, 4, 3))
		// Channel is on bits 2-1
		c.Channel = bits.GetRange(cla, 2, 1)
	} else {
		// Further Interindustry Structure (01xx xxxx)
		// SM is on bit 6, a single "ISO SM" state
		if bits.IsSet(cla, 6) {
			c.SecureMessaging = SMHeaderNoProc
		}
		// Channel offset is on bits 4-1 (Value + 4)
		c.Channel = bits.GetRange(cla, 4, 1) + 4
	}
	return c, nil
}

// NewInterindustryClass builds an ISO class for a logical channel, selecting
// the first or further encoding from the channel number.
func NewInterindustryClass(isChained bool, sm SecureMessaging, channel uint8) (Class, error) {
	if channel > 19 {
		return Class{}, fmt.Errorf("channel %d out of range (max 19)", channel)
	}
	// Further Interindustry (Ch 4-19) only supports 1 bit for SM (No SM vs ISO SM)
	if channel >= 4 && (sm == SMProprietary || sm == SMHeaderAuth) {
		return Class{}, fmt.Errorf("SM indicator %d not supported for further interindustry range (ch 4-19)", sm)
	}

	c := Class{IsChained: isChained, SecureMessaging: sm, Channel: channel}
	// Recompute the Raw byte so both views agree
	raw, err := c.Encode()
	if err != nil {
		return Class{}, err
	}
	c.Raw = raw
	return c, nil
}

// ClassGSM returns the 'A0' class of GSM SIM cards.
func ClassGSM() Class {
	return Class{Raw: CLA_GSM, IsProprietary: true}
}

// ClassUICC returns the '80' class used for the telecom commands of a UICC
// on the basic logical channel.
func ClassUICC() Class {
	return Class{Raw: CLA_UICC, IsProprietary: true}
}

// ClassISO returns the '00' interindustry class on the basic logical channel.
func ClassISO() Class {
	return Class{Raw: CLA_ISO}
}

// ParseClass resolves "gsm", "uicc", "iso" or a hex CLA byte such as "A0".
func ParseClass(s string) (Class, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gsm", "sim":
		return ClassGSM(), nil
	case "uicc":
		return ClassUICC(), nil
	case "iso", "":
		return ClassISO(), nil
	}
	var raw byte
	if _, err := fmt.Sscanf(s, "%02X", &raw); err != nil {
		return Class{}, fmt.Errorf("unknown class %q: %w", s, err)
	}
	return NewClass(raw)
}

// Encode converts the Class back to its byte representation.
func (c *Class) Encode() (byte, error) {
	if c.IsProprietary {
		return c.Raw, nil
	}

	var res byte
	// Chaining (Bit 5) is common to both ranges
	if c.IsChained {
		res = bits.Set(res, 5)
	}
	if c.Channel <= 3 {
		// First Interindustry Encoding
		// Set SM (Bits 4-3)
		res = bits.SetRange(res, 4, 3, byte(c.SecureMessaging))
		// Set Channel (Bits 2-1)
		res = bits.SetRange(res, 2, 1, c.Channel)
		return res, nil
	}

	// Further Interindustry Encoding
	res = bits.Set(res, 7) // Indicator for Further Interindustry
	// SM (Bit 6)
	if c.SecureMessaging != SMNone {
		res = bits.Set(res, 6)
	}
	// Set Channel (Bits 4-1, Offset 4)
	return bits.SetRange(res, 4, 1, c.Channel-4), nil
}

// Verbose returns a one-line description of the CLA byte.
func (c Class) Verbose() string {
	switch {
	case c.Raw == CLA_GSM && c.IsProprietary:
		return "CLA: A0 | GSM SIM"
	case c.IsProprietary:
		return fmt.Sprintf("CLA: %02X | Proprietary (UICC telecom) | Channel: %d", c.Raw, c.Channel)
	}

	sm := "None"
	switch c.SecureMessaging {
	case SMProprietary:
		sm = "Proprietary"
	case SMHeaderNoProc:
		sm = "ISO (Header not processed)"
	case SMHeaderAuth:
		sm = "ISO (Header authenticated)"
	}
	return fmt.Sprintf("CLA: %02X | Interindustry | Chained: %t | SM: %s | Channel: %d",
		c.Raw, c.IsChained, sm, c.Channel)
}
