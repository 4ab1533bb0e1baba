package iso7816

import (
	"fmt"

	"github.com/gregLibert/simota/pkg/bits"
)

// Dynamic Status Word Logic:
//
// Most Status Words (SW) are static 2-byte values (e.g., 0x9000). Some ranges
// carry a value in SW2:
//
// 1. '61XX' (ISO) and '9FXX' (GSM SIM): Response available.
//    XX is the number of bytes to retrieve with GET RESPONSE.
//
// 2. '91XX' (SIM/UICC): Normal ending, a proactive command of XX bytes is
//    waiting for a FETCH.
//
// 3. '9EXX' (SIM): Data download error. The card answered an ENVELOPE with
//    an error but has XX bytes of response data (typically a PoR).
//
// 4. '6CXX': Wrong Length. XX is the correct expected length (Le).
//
// 5. '62XX' and '64XX' with XX in [0x02, 0x80]: Triggering by the card.
//
// 6. '63CX': Counter. The lower nibble is a counter value (e.g., PIN retries).

// StatusWord represents the two-byte status response (SW1-SW2) returned by the card.
type StatusWord uint16

// NewStatusWord creates a StatusWord instance from two separate bytes.
func NewStatusWord(sw1, sw2 byte) StatusWord {
	return StatusWord(uint16(sw1)<<8 | uint16(sw2))
}

// SW1 returns the first byte (high byte) of the status word.
func (sw StatusWord) SW1() byte {
	return byte(sw >> 8)
}

// SW2 returns the second byte (low byte) of the status word.
func (sw StatusWord) SW2() byte {
	return byte(sw)
}

// Hex returns the status word as 4 lowercase hex digits, e.g. "6132".
func (sw StatusWord) Hex() string {
	return fmt.Sprintf("%04x", uint16(sw))
}

// IsTriggeringByCard checks if the status indicates a "Triggering by the card" event.
func (sw StatusWord) IsTriggeringByCard() bool {
	sw2 := sw.SW2()
	if sw2 < 0x02 || sw2 > 0x80 {
		return false
	}
	return sw.SW1() == 0x62 || sw.SW1() == 0x64
}

// IsCounter checks if the status indicates a non-volatile memory change counter.
func (sw StatusWord) IsCounter() bool {
	return sw.SW1() == 0x63 && bits.GetRange(sw.SW2(), 8, 5) == 0x0C
}

// IsResponseAvailable reports whether data must be fetched with GET RESPONSE
// (61XX, 9FXX or 9EXX). SW2 gives the number of bytes.
func (sw StatusWord) IsResponseAvailable() bool {
	switch sw.SW1() {
	case 0x61, 0x9F, 0x9E:
		return true
	}
	return false
}

// IsProactive reports a pending proactive command (91XX).
func (sw StatusWord) IsProactive() bool {
	return sw.SW1() == 0x91
}

// IsSuccess returns true for a normal ending: 9000, 61XX, 9FXX or 91XX.
func (sw StatusWord) IsSuccess() bool {
	switch sw.SW1() {
	case 0x61, 0x9F, 0x91:
		return true
	}
	return sw == SW_NO_ERROR
}

// IsWarning returns true if the status indicates a warning (62XX or 63XX).
func (sw StatusWord) IsWarning() bool {
	sw1 := sw.SW1()
	return sw1 == 0x62 || sw1 == 0x63
}

// IsError returns true for execution and checking errors (64XX to 6FXX) and
// for the SIM specific 93XX, 94XX and 98XX ranges.
func (sw StatusWord) IsError() bool {
	sw1 := sw.SW1()
	return (sw1 >= 0x64 && sw1 <= 0x6F) || sw1 == 0x93 || sw1 == 0x94 || sw1 == 0x98
}

// String returns the name of a known status word.
func (sw StatusWord) String() string {
	if name, ok := statusWordNames[sw]; ok {
		return name
	}
	return fmt.Sprintf("StatusWord(%04X)", uint16(sw))
}

// Verbose returns a human-readable description of the status word.
// Dynamic ranges take precedence over the static table.
func (sw StatusWord) Verbose() string {
	sw1 := sw.SW1()
	sw2 := sw.SW2()

	switch {
	case sw.IsTriggeringByCard():
		action := "Warning (Triggering)"
		if sw1 == 0x64 {
			action = "Error/Abort (Triggering)"
		}
		return fmt.Sprintf("[%04X] %s: Card expects query of %d bytes", uint16(sw), action, sw2)
	case sw.IsCounter():
		return fmt.Sprintf("[%04X] Warning: State changed, counter = %d", uint16(sw), bits.GetRange(sw2, 4, 1))
	case sw1 == 0x61 || sw1 == 0x9F:
		return fmt.Sprintf("[%04X] Process completed, %d bytes available", uint16(sw), sw2)
	case sw1 == 0x91:
		return fmt.Sprintf("[%04X] Process completed, proactive command of %d bytes pending", uint16(sw), sw2)
	case sw1 == 0x9E:
		return fmt.Sprintf("[%04X] Data download error, %d bytes of response data available", uint16(sw), sw2)
	case sw1 == 0x6C:
		return fmt.Sprintf("[%04X] Wrong length, correct Le is %d", uint16(sw), sw2)
	}

	if name, ok := statusWordNames[sw]; ok {
		return fmt.Sprintf("[%04X] %s", uint16(sw), name)
	}
	return fmt.Sprintf("[%04X] %s", uint16(sw), sw.genericCategoryDescription())
}

// genericCategoryDescription provides a fallback description based on SW1.
func (sw StatusWord) genericCategoryDescription() string {
	switch sw.SW1() {
	case 0x62:
		return "Warning: NV memory unchanged"
	case 0x63:
		return "Warning: NV memory changed"
	case 0x64:
		return "Execution Error: NV memory unchanged"
	case 0x65:
		return "Execution Error: NV memory changed"
	case 0x66:
		return "Execution Error: Security issue"
	case 0x68:
		return "Checking Error: Function not supported"
	case 0x69:
		return "Checking Error: Command not allowed"
	case 0x6A:
		return "Checking Error: Wrong parameters"
	case 0x92:
		return "Memory management: command successful after internal retry"
	case 0x94:
		return "Referencing management error"
	case 0x98:
		return "Security management error"
	default:
		return "Unknown Status"
	}
}

// Status Word codes defined in ISO/IEC 7816-4, 3GPP TS 51.011 and ETSI TS 102 221.
const (
	SW_NO_ERROR StatusWord = 0x9000

	SW_WARN_NO_INFO            StatusWord = 0x6200
	SW_WARN_TRIGGERING_BY_CARD StatusWord = 0x6202
	SW_WARN_DATA_CORRUPTED     StatusWord = 0x6281
	SW_WARN_EOF_REACHED        StatusWord = 0x6282
	SW_WARN_FILE_DEACTIVATED   StatusWord = 0x6283
	SW_WARN_FCI_BAD_FORMAT     StatusWord = 0x6284
	SW_WARN_TERMINATION_STATE  StatusWord = 0x6285
	SW_WARN_NV_CHANGED_NO_INFO StatusWord = 0x6300
	SW_WARN_FILE_FILLED        StatusWord = 0x6381
	SW_WARN_COUNTER_0          StatusWord = 0x63C0

	SW_ERR_EXEC_NO_INFO       StatusWord = 0x6400
	SW_ERR_NV_CHANGED_NO_INFO StatusWord = 0x6500
	SW_ERR_MEMORY_FAILURE     StatusWord = 0x6581

	SW_ERR_WRONG_LENGTH              StatusWord = 0x6700
	SW_ERR_CHECKING_NO_INFO          StatusWord = 0x6800
	SW_ERR_LOGICAL_CHANNEL_NOT_SUPP  StatusWord = 0x6881
	SW_ERR_SECURE_MESSAGING_NOT_SUPP StatusWord = 0x6882

	SW_ERR_CMD_NOT_ALLOWED_NO_INFO StatusWord = 0x6900
	SW_ERR_CMD_INCOMPATIBLE_FILE   StatusWord = 0x6981
	SW_ERR_SECURITY_STATUS_NOT_SAT StatusWord = 0x6982
	SW_ERR_AUTH_METHOD_BLOCKED     StatusWord = 0x6983
	SW_ERR_REF_DATA_NOT_USABLE     StatusWord = 0x6984
	SW_ERR_COND_OF_USE_NOT_SAT     StatusWord = 0x6985
	SW_ERR_CMD_NOT_ALLOWED_NO_EF   StatusWord = 0x6986

	SW_ERR_INCORRECT_PARAMS_DATA StatusWord = 0x6A80
	SW_ERR_FUNC_NOT_SUPPORTED    StatusWord = 0x6A81
	SW_ERR_FILE_NOT_FOUND        StatusWord = 0x6A82
	SW_ERR_RECORD_NOT_FOUND      StatusWord = 0x6A83
	SW_ERR_NOT_ENOUGH_MEMORY     StatusWord = 0x6A84
	SW_ERR_INCORRECT_PARAMS_P1P2 StatusWord = 0x6A86
	SW_ERR_REF_DATA_NOT_FOUND    StatusWord = 0x6A88

	SW_ERR_WRONG_P1P2        StatusWord = 0x6B00
	SW_ERR_INS_INVALID       StatusWord = 0x6D00
	SW_ERR_CLA_NOT_SUPPORTED StatusWord = 0x6E00
	SW_ERR_UNKNOWN           StatusWord = 0x6F00

	// SIM / UICC specific values.
	SW_SIM_TOOLKIT_BUSY          StatusWord = 0x9300
	SW_SIM_NO_EF_SELECTED        StatusWord = 0x9400
	SW_SIM_OUT_OF_RANGE          StatusWord = 0x9402
	SW_SIM_FILE_NOT_FOUND        StatusWord = 0x9404
	SW_SIM_FILE_INCONSISTENT     StatusWord = 0x9408
	SW_SIM_NO_CHV_INITIALIZED    StatusWord = 0x9802
	SW_SIM_ACCESS_NOT_FULFILLED  StatusWord = 0x9804
	SW_SIM_CHV_CONTRADICTION     StatusWord = 0x9808
	SW_SIM_INVALIDATION_CONFLICT StatusWord = 0x9810
	SW_SIM_CHV_BLOCKED           StatusWord = 0x9840
	SW_SIM_MAX_VALUE_REACHED     StatusWord = 0x9850
)

var statusWordNames = map[StatusWord]string{
	SW_NO_ERROR: "Normal ending of the command",

	SW_WARN_NO_INFO:            "Warning: no information given, NV memory unchanged",
	SW_WARN_TRIGGERING_BY_CARD: "Warning: triggering by the card",
	SW_WARN_DATA_CORRUPTED:     "Warning: part of returned data may be corrupted",
	SW_WARN_EOF_REACHED:        "Warning: end of file or record reached before reading Le bytes",
	SW_WARN_FILE_DEACTIVATED:   "Warning: selected file deactivated",
	SW_WARN_FCI_BAD_FORMAT:     "Warning: file control information not formatted",
	SW_WARN_TERMINATION_STATE:  "Warning: selected file in termination state",
	SW_WARN_NV_CHANGED_NO_INFO: "Warning: no information given, NV memory changed",
	SW_WARN_FILE_FILLED:        "Warning: file filled up by the last write",

	SW_ERR_EXEC_NO_INFO:       "Execution error: NV memory unchanged",
	SW_ERR_NV_CHANGED_NO_INFO: "Execution error: NV memory changed",
	SW_ERR_MEMORY_FAILURE:     "Execution error: memory failure",

	SW_ERR_WRONG_LENGTH:              "Wrong length",
	SW_ERR_CHECKING_NO_INFO:          "Functions in CLA not supported",
	SW_ERR_LOGICAL_CHANNEL_NOT_SUPP:  "Logical channel not supported",
	SW_ERR_SECURE_MESSAGING_NOT_SUPP: "Secure messaging not supported",

	SW_ERR_CMD_NOT_ALLOWED_NO_INFO: "Command not allowed",
	SW_ERR_CMD_INCOMPATIBLE_FILE:   "Command incompatible with file structure",
	SW_ERR_SECURITY_STATUS_NOT_SAT: "Security status not satisfied",
	SW_ERR_AUTH_METHOD_BLOCKED:     "Authentication/PIN method blocked",
	SW_ERR_REF_DATA_NOT_USABLE:     "Referenced data invalidated",
	SW_ERR_COND_OF_USE_NOT_SAT:     "Conditions of use not satisfied",
	SW_ERR_CMD_NOT_ALLOWED_NO_EF:   "Command not allowed (no EF selected)",

	SW_ERR_INCORRECT_PARAMS_DATA: "Incorrect parameters in the data field",
	SW_ERR_FUNC_NOT_SUPPORTED:    "Function not supported",
	SW_ERR_FILE_NOT_FOUND:        "File or application not found",
	SW_ERR_RECORD_NOT_FOUND:      "Record not found",
	SW_ERR_NOT_ENOUGH_MEMORY:     "Not enough memory space in the file",
	SW_ERR_INCORRECT_PARAMS_P1P2: "Incorrect parameters P1-P2",
	SW_ERR_REF_DATA_NOT_FOUND:    "Referenced data not found",

	SW_ERR_WRONG_P1P2:        "Wrong parameters P1-P2",
	SW_ERR_INS_INVALID:       "Instruction code not supported or invalid",
	SW_ERR_CLA_NOT_SUPPORTED: "Class not supported",
	SW_ERR_UNKNOWN:           "Technical problem, no precise diagnosis",

	SW_SIM_TOOLKIT_BUSY:          "SIM Application Toolkit is busy",
	SW_SIM_NO_EF_SELECTED:        "No EF selected",
	SW_SIM_OUT_OF_RANGE:          "Out of range (invalid address)",
	SW_SIM_FILE_NOT_FOUND:        "File ID or pattern not found",
	SW_SIM_FILE_INCONSISTENT:     "File inconsistent with the command",
	SW_SIM_NO_CHV_INITIALIZED:    "No CHV initialized",
	SW_SIM_ACCESS_NOT_FULFILLED:  "Access condition not fulfilled",
	SW_SIM_CHV_CONTRADICTION:     "In contradiction with CHV status",
	SW_SIM_INVALIDATION_CONFLICT: "In contradiction with invalidation status",
	SW_SIM_CHV_BLOCKED:           "Unsuccessful CHV verification, no attempt left",
	SW_SIM_MAX_VALUE_REACHED:     "Increase cannot be performed, max value reached",
}
