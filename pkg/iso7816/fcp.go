package iso7816

import (
	"encoding/binary"
	"fmt"

	"github.com/gregLibert/simota/pkg/tlv"
	"github.com/moov-io/bertlv"
)

// FILE CONTROL PARAMETERS returned by SELECT.
//
// UICC (ETSI TS 102 221, 11.1.1.3): an FCP template, tag '62'. The file
// descriptor (82) gives the file type and, for record files, the record
// length and count.
//
// GSM SIM (3GPP TS 51.011, 9.2.1): a fixed layout.
//   - bytes 3-4:  file size (EF) or free memory (DF)
//   - bytes 5-6:  file identifier
//   - byte 7:     type of file (01 MF, 02 DF, 04 EF)
//   - byte 14:    structure of EF (00 transparent, 01 linear fixed, 03 cyclic)
//   - byte 15:    record length

// FileType is the kind of a selected file.
type FileType byte

const (
	FileTypeUnknown FileType = iota
	FileTypeMF
	FileTypeDF
	FileTypeEF
)

func (t FileType) String() string {
	switch t {
	case FileTypeMF:
		return "MF"
	case FileTypeDF:
		return "DF"
	case FileTypeEF:
		return "EF"
	default:
		return "Unknown"
	}
}

// EFStructure is the organisation of an elementary file.
type EFStructure byte

const (
	StructureNone EFStructure = iota
	StructureTransparent
	StructureLinearFixed
	StructureCyclic
)

func (s EFStructure) String() string {
	switch s {
	case StructureTransparent:
		return "Transparent"
	case StructureLinearFixed:
		return "Linear Fixed"
	case StructureCyclic:
		return "Cyclic"
	default:
		return "None"
	}
}

// FCPTemplate (File Control Parameters) - Tag '62'.
type FCPTemplate struct {
	FileSize             uint32 `tlv:"80"`
	TotalFileSize        uint32 `tlv:"81"`
	FileDescriptor       []byte `tlv:"82"`
	FileIdentifier       []byte `tlv:"83"`
	DFName               []byte `tlv:"84"`
	ShortFileID          []byte `tlv:"88"`
	LifeCycleStatus      []byte `tlv:"8A"`
	SecurityAttrRef      []byte `tlv:"8B"`
	SecurityAttrCompact  []byte `tlv:"8C"`
	Proprietary          []byte `tlv:"A5"`
	SecurityAttrExpanded []byte `tlv:"AB"`
	PINStatus            []byte `tlv:"C6"`

	Unknown []bertlv.TLV `tlv:",unknown"`
}

// FileInfo describes the file made current by a SELECT.
type FileInfo struct {
	ID        uint16
	Type      FileType
	Structure EFStructure
	// Size is the body size of an EF.
	Size         int
	RecordLength int
	RecordCount  int

	// FCP is nil for a GSM SIM response.
	FCP *FCPTemplate
}

// ParseSelectResponse decodes the response data of a SELECT, in the UICC
// or the GSM format.
func ParseSelectResponse(data []byte) (*FileInfo, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("no response data")
	}
	if data[0] == 0x62 {
		return parseFCP(data)
	}
	return parseGSMResponse(data)
}

func parseFCP(data []byte) (*FileInfo, error) {
	raw, err := tlv.GetValue(data, 0x62)
	if err != nil {
		return nil, fmt.Errorf("FCP template: %w", err)
	}
	fcp := &FCPTemplate{}
	if err := tlv.Unmarshal(raw, fcp); err != nil {
		return nil, fmt.Errorf("FCP template: %w", err)
	}

	info := &FileInfo{FCP: fcp, Size: int(fcp.FileSize)}
	if len(fcp.FileIdentifier) == 2 {
		info.ID = binary.BigEndian.Uint16(fcp.FileIdentifier)
	}

	if len(fcp.FileDescriptor) == 0 {
		return nil, fmt.Errorf("FCP template without file descriptor")
	}
	fd := fcp.FileDescriptor[0]
	switch {
	case fd&0x38 == 0x38:
		info.Type = FileTypeDF
		if info.ID == MF {
			info.Type = FileTypeMF
		}
	default:
		info.Type = FileTypeEF
		switch fd & 0x07 {
		case 0x01:
			info.Structure = StructureTransparent
		case 0x02:
			info.Structure = StructureLinearFixed
		case 0x06:
			info.Structure = StructureCyclic
		}
	}
	if len(fcp.FileDescriptor) >= 5 {
		info.RecordLength = int(binary.BigEndian.Uint16(fcp.FileDescriptor[2:4]))
		info.RecordCount = int(fcp.FileDescriptor[4])
	}
	return info, nil
}

func parseGSMResponse(data []byte) (*FileInfo, error) {
	if len(data) < 13 {
		return nil, fmt.Errorf("GSM response too short: %d bytes", len(data))
	}
	info := &FileInfo{ID: binary.BigEndian.Uint16(data[4:6])}

	switch data[6] {
	case 0x01:
		info.Type = FileTypeMF
	case 0x02:
		info.Type = FileTypeDF
	case 0x04:
		info.Type = FileTypeEF
	default:
		return nil, fmt.Errorf("unknown GSM file type %02X", data[6])
	}
	if info.Type != FileTypeEF {
		return info, nil
	}

	if len(data) < 15 {
		return nil, fmt.Errorf("GSM EF response too short: %d bytes", len(data))
	}
	info.Size = int(binary.BigEndian.Uint16(data[2:4]))
	switch data[13] {
	case 0x00:
		info.Structure = StructureTransparent
	case 0x01:
		info.Structure = StructureLinearFixed
	case 0x03:
		info.Structure = StructureCyclic
	}
	if info.Structure != StructureTransparent {
		info.RecordLength = int(data[14])
		if info.RecordLength > 0 {
			info.RecordCount = info.Size / info.RecordLength
		}
	}
	return info, nil
}
