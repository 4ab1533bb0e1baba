package iso7816

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// APDU structures (ISO/IEC 7816-3 and 7816-4):
//
//	C-APDU: CLA INS P1 P2 [Lc Data] [Le]
//	R-APDU: [Data] SW1 SW2
//
// Case 1 carries neither Lc nor Le, case 2 only Le, case 3 only Lc and data,
// case 4 both. Lc and Le are one byte each (short form, up to 255/256) unless
// Nc > 255 or Ne > 256, which switches to the 3 and 2 byte extended form.
//
// SIM cards speak T=0: a command carries Lc or Le, never both. The builders
// of this package leave Le out of case 4 commands and rely on the Client to
// fetch the response data.

// APDU length limits.
const (
	MaxShortLc = 255
	// MaxShortLe is coded as 0x00 in short form.
	MaxShortLe    = 256
	MaxExtendedLc = 65535
	// MaxExtendedLe is coded as 0x0000 in extended form.
	MaxExtendedLe = 65536
)

// CommandAPDU represents a command sent to the card.
type CommandAPDU struct {
	Class       Class
	Instruction Instruction
	P1, P2      byte
	Data        []byte
	Ne          int // Expected response length (0 means none)
}

// NewCommandAPDU creates a basic command.
func NewCommandAPDU(cla Class, ins Instruction, p1, p2 byte, data []byte, ne int) *CommandAPDU {
	return &CommandAPDU{
		Class:       cla,
		Instruction: ins,
		P1:          p1,
		P2:          p2,
		Data:        data,
		Ne:          ne,
	}
}

// Bytes encodes the CommandAPDU into its byte representation (C-APDU).
// Extended length is used when Nc > 255 or Ne > 256.
func (c *CommandAPDU) Bytes() ([]byte, error) {
	class, err := c.Class.Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to encode Class: %w", err)
	}
	nc, ne := len(c.Data), c.Ne
	if nc > MaxExtendedLc || ne > MaxExtendedLe || ne < 0 {
		return nil, fmt.Errorf("lengths out of range: Nc %d, Ne %d", nc, ne)
	}

	buf := bytes.NewBuffer(make([]byte, 0, 4+3+nc+2))
	buf.Write([]byte{class, byte(c.Instruction.Raw), c.P1, c.P2})

	extended := nc > MaxShortLc || ne > MaxShortLe

	if nc > 0 {
		if extended {
			buf.WriteByte(0x00)
			buf.Write(binary.BigEndian.AppendUint16(nil, uint16(nc)))
		} else {
			buf.WriteByte(byte(nc))
		}
		buf.Write(c.Data)
	}

	if ne > 0 {
		switch {
		case !extended:
			// 256 wraps to 00
			buf.WriteByte(byte(ne))
		default:
			// Case 2 extended needs the 00 marker that Lc would have carried.
			if nc == 0 {
				buf.WriteByte(0x00)
			}
			// 65536 wraps to 0000
			buf.Write(binary.BigEndian.AppendUint16(nil, uint16(ne)))
		}
	}

	return buf.Bytes(), nil
}

// String returns a readable representation of the command meta-data.
func (c *CommandAPDU) String() string {
	return fmt.Sprintf("CLA: %02X | %s | P1: %02X, P2: %02X | Lc: %d | Le: %d",
		c.Class.Raw, c.Instruction.Verbose(), c.P1, c.P2, len(c.Data), c.Ne)
}

// ParseCommandAPDU decodes a C-APDU in short or extended form. It is the
// inverse of Bytes and is used to inspect APDUs carried by secured packets.
func ParseCommandAPDU(raw []byte) (*CommandAPDU, error) {
	if len(raw) < 4 {
		return nil, fmt.Errorf("command too short: length %d", len(raw))
	}
	cla, err := NewClass(raw[0])
	if err != nil {
		return nil, err
	}
	ins, err := NewInstruction(InsCode(raw[1]))
	if err != nil {
		return nil, err
	}
	cmd := &CommandAPDU{Class: cla, Instruction: ins, P1: raw[2], P2: raw[3]}

	body := raw[4:]
	switch {
	case len(body) == 0:
		return cmd, nil
	case len(body) == 1:
		cmd.Ne = shortLe(body[0])
		return cmd, nil
	case body[0] != 0x00:
		nc := int(body[0])
		switch len(body) {
		case 1 + nc:
		case 2 + nc:
			cmd.Ne = shortLe(body[1+nc])
		default:
			return nil, fmt.Errorf("Lc %d inconsistent with body length %d", nc, len(body))
		}
		cmd.Data = bytes.Clone(body[1 : 1+nc])
		return cmd, nil
	case len(body) == 3:
		cmd.Ne = extendedLe(body[1:3])
		return cmd, nil
	}

	nc := int(binary.BigEndian.Uint16(body[1:3]))
	switch len(body) {
	case 3 + nc:
	case 5 + nc:
		cmd.Ne = extendedLe(body[3+nc:])
	default:
		return nil, fmt.Errorf("extended Lc %d inconsistent with body length %d", nc, len(body))
	}
	cmd.Data = bytes.Clone(body[3 : 3+nc])
	return cmd, nil
}

func shortLe(b byte) int {
	if b == 0 {
		return MaxShortLe
	}
	return int(b)
}

func extendedLe(b []byte) int {
	if n := int(binary.BigEndian.Uint16(b)); n != 0 {
		return n
	}
	return MaxExtendedLe
}

// ResponseAPDU represents the reply from the card (R-APDU).
type ResponseAPDU struct {
	Data   []byte
	Status StatusWord
}

// ParseResponseAPDU parses raw bytes received from the card into a ResponseAPDU.
// The input must contain at least 2 bytes (SW1, SW2).
func ParseResponseAPDU(raw []byte) (*ResponseAPDU, error) {
	if len(raw) < 2 {
		return nil, fmt.Errorf("response too short: length %d", len(raw))
	}

	indexSW1 := len(raw) - 2
	data := raw[:indexSW1]
	sw1 := raw[indexSW1]
	sw2 := raw[indexSW1+1]

	return &ResponseAPDU{
		Data:   data,
		Status: NewStatusWord(sw1, sw2),
	}, nil
}

// String returns a readable representation of the response.
func (r *ResponseAPDU) String() string {
	return fmt.Sprintf("Data (%d bytes) | Status: %s", len(r.Data), r.Status.Verbose())
}
