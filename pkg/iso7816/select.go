package iso7816

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// SELECT COMMAND LOGIC:
// The SELECT command (INS 'A4') makes a file (MF, DF, EF) or an application
// the current one.
//
// On a GSM SIM (class 'A0') P1 and P2 are always '00' and the data is a
// single 2-byte file identifier: a path is walked one SELECT at a time.
//
// On a UICC P1 gives the selection method and P2 the data to return:
// - P1: by file ID, by DF name (AID), by path from the MF, ...
// - P2 bits 4-3: FCI, FCP, FMD or nothing. Bits 2-1: occurrence.

// SelectionMethod defines how the file is targeted (P1).
type SelectionMethod byte

const (
	SelectByFileID          SelectionMethod = 0x00
	SelectChildDF           SelectionMethod = 0x01
	SelectEFUnderCurrentDF  SelectionMethod = 0x02
	SelectParentDF          SelectionMethod = 0x03
	SelectByDFName          SelectionMethod = 0x04 // Select by AID
	SelectPathFromMF        SelectionMethod = 0x08 // Path without the MF identifier
	SelectPathFromCurrentDF SelectionMethod = 0x09
)

// FileOccurrence defines which instance of the file to select (bits 2-1 of P2).
type FileOccurrence byte

const (
	FirstOrOnlyOccurrence FileOccurrence = 0b0000_00_00
	LastOccurrence        FileOccurrence = 0b0000_00_01
	NextOccurrence        FileOccurrence = 0b0000_00_10
	PreviousOccurrence    FileOccurrence = 0b0000_00_11
)

// SelectionControl defines what data to return (bits 4-3 of P2).
type SelectionControl byte

const (
	ReturnFCI    SelectionControl = 0b0000_00_00
	ReturnFCP    SelectionControl = 0b0000_01_00 // UICC answer, template '62'
	ReturnFMD    SelectionControl = 0b0000_10_00
	ReturnNoData SelectionControl = 0b0000_11_00
)

// MF is the file identifier of the Master File.
const MF uint16 = 0x3F00

// NewSelectCommand creates a generic SELECT command.
func NewSelectCommand(cla Class, method SelectionMethod, occurrence FileOccurrence, ctrl SelectionControl, data []byte) *CommandAPDU {
	// P2 Construction: Combine Occurrence (bits 2-1) and Control Info (bits 4-3).
	p2 := byte(ctrl) | byte(occurrence)

	// T=0 Protocol Compatibility:
	// - CASE 3 (Sending Data): Le stays absent, Lc and Le cannot be sent together.
	//   The card answers '61 XX' (UICC) or '9F XX' (GSM SIM) and the Client
	//   fetches the data with GET RESPONSE.
	// - CASE 2 (No Data): MaxShortLe (256) can be requested directly.
	ne := 0
	if len(data) == 0 && ctrl != ReturnNoData {
		ne = MaxShortLe
	}
	return NewCommandAPDU(cla, mustInstruction(INS_SELECT), byte(method), p2, data, ne)
}

// SelectFile selects a file by identifier, the way the card class expects.
func SelectFile(cla Class, fid uint16) *CommandAPDU {
	data := binary.BigEndian.AppendUint16(nil, fid)
	// GSM SIM: P2 must be '00', the GSM response is returned anyway
	if cla.Raw == CLA_GSM {
		return NewSelectCommand(cla, SelectByFileID, FirstOrOnlyOccurrence, ReturnFCI, data)
	}
	return NewSelectCommand(cla, SelectByFileID, FirstOrOnlyOccurrence, ReturnFCP, data)
}

// SelectPath returns the commands selecting the file at path, starting from
// the MF. A GSM SIM gets one SELECT per path element; a UICC gets a single
// SELECT by path, with the leading MF omitted.
func SelectPath(cla Class, path []uint16) []*CommandAPDU {
	if len(path) == 0 {
		return nil
	}
	// GSM SIM: no select by path, walk the path from the MF one file at a time
	if cla.Raw == CLA_GSM || len(path) == 1 {
		cmds := make([]*CommandAPDU, 0, len(path))
		for _, fid := range path {
			cmds = append(cmds, SelectFile(cla, fid))
		}
		return cmds
	}

	// UICC: P1 '08' takes the path from the MF, the MF itself is implicit
	rel := path
	if rel[0] == MF {
		rel = rel[1:]
	}
	data := make([]byte, 0, 2*len(rel))
	for _, fid := range rel {
		data = binary.BigEndian.AppendUint16(data, fid)
	}
	return []*CommandAPDU{NewSelectCommand(cla, SelectPathFromMF, FirstOrOnlyOccurrence, ReturnFCP, data)}
}

// SelectByAID selects an application (e.g. the USIM ADF) by its AID.
func SelectByAID(cla Class, aid []byte) *CommandAPDU {
	return NewSelectCommand(cla, SelectByDFName, FirstOrOnlyOccurrence, ReturnFCP, aid)
}

// ParsePath decodes a path such as "3F00/7F10/6F3A" or "3f007f106f3a".
func ParsePath(s string) ([]uint16, error) {
	// Separators are optional, every file identifier is 4 hex digits
	s = strings.ReplaceAll(strings.TrimSpace(s), "/", "")
	if s == "" || len(s)%4 != 0 {
		return nil, fmt.Errorf("invalid path %q: want 4 hex digits per file", s)
	}
	path := make([]uint16, 0, len(s)/4)
	for i := 0; i < len(s); i += 4 {
		v, err := strconv.ParseUint(s[i:i+4], 16, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid path %q: %w", s, err)
		}
		path = append(path, uint16(v))
	}
	return path, nil
}
