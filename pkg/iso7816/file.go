package iso7816

import (
	"fmt"
)

// FILE ACCESS COMMANDS:
//
// READ BINARY ('B0') / UPDATE BINARY ('D6'): P1-P2 is the offset in the
// current transparent EF (15 bits).
//
// READ RECORD ('B2') / UPDATE RECORD ('DC'): P1 is the record number and P2
// the mode on the current linear fixed or cyclic EF:
//   - '02' next record
//   - '03' previous record
//   - '04' absolute (P1) or current (P1 = 00)

// RecordMode selects the record addressed by P1 (P2 coding).
type RecordMode byte

const (
	RecordNext     RecordMode = 0x02
	RecordPrevious RecordMode = 0x03
	RecordAbsolute RecordMode = 0x04
)

func (m RecordMode) String() string {
	switch m {
	case RecordNext:
		return "Next"
	case RecordPrevious:
		return "Previous"
	case RecordAbsolute:
		return "Absolute/Current"
	default:
		return fmt.Sprintf("Unknown Mode (0x%02X)", byte(m))
	}
}

// MaxBinaryOffset is the largest offset P1-P2 can address.
const MaxBinaryOffset = 0x7FFF

func offsetP1P2(offset uint16) (byte, byte) {
	return byte(offset>>8) & 0x7F, byte(offset)
}

// ReadBinary reads n bytes (1 to 256) at offset of the current EF.
func ReadBinary(cla Class, offset uint16, n int) *CommandAPDU {
	p1, p2 := offsetP1P2(offset)
	return NewCommandAPDU(cla, mustInstruction(INS_READ_BINARY), p1, p2, nil, n)
}

// UpdateBinary writes data at offset of the current EF.
func UpdateBinary(cla Class, offset uint16, data []byte) *CommandAPDU {
	p1, p2 := offsetP1P2(offset)
	return NewCommandAPDU(cla, mustInstruction(INS_UPDATE_BINARY), p1, p2, data, 0)
}

// ReadRecord reads a record of n bytes of the current EF.
func ReadRecord(cla Class, record byte, mode RecordMode, n int) *CommandAPDU {
	return NewCommandAPDU(cla, mustInstruction(INS_READ_RECORD), record, byte(mode), nil, n)
}

// UpdateRecord replaces a record of the current EF.
func UpdateRecord(cla Class, record byte, mode RecordMode, data []byte) *CommandAPDU {
	return NewCommandAPDU(cla, mustInstruction(INS_UPDATE_RECORD), record, byte(mode), data, 0)
}
