package iso7816

import (
	"fmt"

	"github.com/gregLibert/simota/pkg/bits"
)

// Instruction Byte (INS):
//
// The INS byte identifies the command. The values below are the ones handled
// by SIM (3GPP TS 51.011) and UICC (ETSI TS 102 221) cards, plus the
// Toolkit commands of ETSI TS 102 223.
//
// 1. Data Encoding (Bit 1):
//    With the interindustry class, the least significant bit often gives
//    the format of the data field.
//    - 0: Standard or no specific formatting.
//    - 1: BER-TLV encoded data structure.
//    Example: READ BINARY (0xB0) vs READ BINARY (BER-TLV) (0xB1).
//    The GSM class 'A0' has no odd INS: the bit carries no meaning there.
//
// 2. Reserved Ranges:
//    INS values where the upper nibble is '6' or '9' (0x6X or 0x9X) are invalid.
//    They collide with SW1 and the procedure bytes of the T=0 protocol
//    (ISO/IEC 7816-3).

// InsCode is a typed representation of the instruction byte.
type InsCode byte

// Instruction (INS) codes of SIM, UICC and Toolkit commands.
const (
	INS_INVALIDATE         InsCode = 0x04 // DEACTIVATE FILE on a UICC
	INS_TERMINAL_PROFILE   InsCode = 0x10
	INS_FETCH              InsCode = 0x12
	INS_TERMINAL_RESPONSE  InsCode = 0x14
	INS_VERIFY             InsCode = 0x20
	INS_CHANGE_PIN         InsCode = 0x24
	INS_DISABLE_PIN        InsCode = 0x26
	INS_ENABLE_PIN         InsCode = 0x28
	INS_UNBLOCK_PIN        InsCode = 0x2C
	INS_INCREASE           InsCode = 0x32
	INS_REHABILITATE       InsCode = 0x44 // ACTIVATE FILE on a UICC
	INS_MANAGE_CHANNEL     InsCode = 0x70
	INS_MANAGE_SECURE_CHAN InsCode = 0x73
	INS_GET_CHALLENGE      InsCode = 0x84
	INS_AUTHENTICATE       InsCode = 0x88 // RUN GSM ALGORITHM on a SIM
	INS_SEARCH_RECORD      InsCode = 0xA2
	INS_SELECT             InsCode = 0xA4
	INS_READ_BINARY        InsCode = 0xB0
	INS_READ_RECORD        InsCode = 0xB2
	INS_GET_RESPONSE       InsCode = 0xC0
	INS_ENVELOPE           InsCode = 0xC2
	INS_GET_DATA           InsCode = 0xCA
	INS_UPDATE_BINARY      InsCode = 0xD6
	INS_UPDATE_RECORD      InsCode = 0xDC
	INS_CREATE_FILE        InsCode = 0xE0
	INS_DELETE_FILE        InsCode = 0xE4
	INS_TERMINATE_DF       InsCode = 0xE6
	INS_TERMINATE_EF       InsCode = 0xE8
	INS_STATUS             InsCode = 0xF2
	INS_TERMINATE_CARD     InsCode = 0xFE
)

var insNames = map[InsCode]string{
	INS_INVALIDATE:         "INVALIDATE / DEACTIVATE FILE",
	INS_TERMINAL_PROFILE:   "TERMINAL PROFILE",
	INS_FETCH:              "FETCH",
	INS_TERMINAL_RESPONSE:  "TERMINAL RESPONSE",
	INS_VERIFY:             "VERIFY PIN",
	INS_CHANGE_PIN:         "CHANGE PIN",
	INS_DISABLE_PIN:        "DISABLE PIN",
	INS_ENABLE_PIN:         "ENABLE PIN",
	INS_UNBLOCK_PIN:        "UNBLOCK PIN",
	INS_INCREASE:           "INCREASE",
	INS_REHABILITATE:       "REHABILITATE / ACTIVATE FILE",
	INS_MANAGE_CHANNEL:     "MANAGE CHANNEL",
	INS_MANAGE_SECURE_CHAN: "MANAGE SECURE CHANNEL",
	INS_GET_CHALLENGE:      "GET CHALLENGE",
	INS_AUTHENTICATE:       "AUTHENTICATE / RUN GSM ALGORITHM",
	INS_SEARCH_RECORD:      "SEARCH RECORD",
	INS_SELECT:             "SELECT",
	INS_READ_BINARY:        "READ BINARY",
	INS_READ_RECORD:        "READ RECORD",
	INS_GET_RESPONSE:       "GET RESPONSE",
	INS_ENVELOPE:           "ENVELOPE",
	INS_GET_DATA:           "GET DATA",
	INS_UPDATE_BINARY:      "UPDATE BINARY",
	INS_UPDATE_RECORD:      "UPDATE RECORD",
	INS_CREATE_FILE:        "CREATE FILE",
	INS_DELETE_FILE:        "DELETE FILE",
	INS_TERMINATE_DF:       "TERMINATE DF",
	INS_TERMINATE_EF:       "TERMINATE EF",
	INS_STATUS:             "STATUS",
	INS_TERMINATE_CARD:     "TERMINATE CARD USAGE",
}

func (i InsCode) String() string {
	// Unknown codes still print, proprietary applets use their own INS.
	if name, ok := insNames[i]; ok {
		return name
	}
	return fmt.Sprintf("InsCode(%02X)", byte(i))
}

// Instruction represents a parsed Instruction byte (INS).
type Instruction struct {
	Raw      InsCode
	IsBERTLV bool
}

// NewInstruction validates an INS byte. '6X' and '9X' values are rejected.
func NewInstruction(ins InsCode) (Instruction, error) {
	// Validation: values starting with '6' or '9' are invalid for INS.
	switch byte(ins) & 0xF0 {
	case 0x60, 0x90:
		return Instruction{}, fmt.Errorf("invalid INS 0x%02X: 6X and 9X are reserved", byte(ins))
	}
	return Instruction{
		Raw:      ins,
		IsBERTLV: bits.IsSet(byte(ins), 1), // Bit 1 indicates BER-TLV preference
	}, nil
}

// mustInstruction is used by the command builders on known INS constants.
func mustInstruction(ins InsCode) Instruction {
	i, err := NewInstruction(ins)
	if err != nil {
		panic(err)
	}
	return i
}

// Verbose returns a human-readable description of the instruction.
func (i Instruction) Verbose() string {
	format := "Standard"
	if i.IsBERTLV {
		format = "BER-TLV"
	}
	return fmt.Sprintf("INS: 0x%02X | Command: %s | Format: %s", byte(i.Raw), i.Raw, format)
}
