package sms

import (
	"fmt"
	"strings"

	"github.com/gregLibert/simota/pkg/tlv"
)

// SMS-PP DATA DOWNLOAD (3GPP TS 31.111, 7.1.1):
//
//	D1 L
//	   82 02 83 81    Device identities: network -> UICC
//	   86 L  TOA ...  Address of the service centre (optional)
//	   8B L  TPDU     SMS-DELIVER
//
// The tags inside D1 are COMPREHENSION-TLV: a card may answer with or
// without the comprehension required flag, both are accepted on parsing.

// Device identities (ETSI TS 102 223, 8.7).
const (
	DeviceNetwork = 0x83
	DeviceUICC    = 0x81
)

const tagSMSPPDownload = 0xD1

// Download is the body of an SMS-PP download envelope.
type Download struct {
	DeviceIdentities []byte `tlv:"82,ctlv"`
	Address          []byte `tlv:"86,ctlv" fmt:"bcd"`
	TPDU             []byte `tlv:"8B,ctlv"`
}

type downloadEnvelope struct {
	Download Download `tlv:"D1"`
}

// NewDownload wraps an SMS-DELIVER sent by the service centre smsc, which
// may be empty.
func NewDownload(smsc Address, deliver *Deliver) (*Download, error) {
	tpdu, err := deliver.Bytes()
	if err != nil {
		return nil, err
	}
	addr, err := smsc.TLVValue()
	if err != nil {
		return nil, err
	}
	return &Download{
		DeviceIdentities: []byte{DeviceNetwork, DeviceUICC},
		Address:          addr,
		TPDU:             tpdu,
	}, nil
}

// Envelope encodes the D1 object passed to ENVELOPE.
func (d *Download) Envelope() ([]byte, error) {
	b, err := tlv.Marshal(downloadEnvelope{Download: *d})
	if err != nil {
		return nil, fmt.Errorf("encoding SMS-PP download: %w", err)
	}
	return b, nil
}

// ParseDownload decodes an SMS-PP download envelope.
func ParseDownload(raw []byte) (*Download, error) {
	if len(raw) == 0 || raw[0] != tagSMSPPDownload {
		return nil, fmt.Errorf("not an SMS-PP download envelope")
	}
	var env downloadEnvelope
	if err := tlv.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("parsing SMS-PP download: %w", err)
	}
	if len(env.Download.TPDU) == 0 {
		return nil, fmt.Errorf("SMS-PP download without SMS TPDU")
	}
	return &env.Download, nil
}

// Deliver decodes the SMS-DELIVER carried by the envelope.
func (d *Download) Deliver() (*Deliver, error) {
	return ParseDeliver(d.TPDU)
}

// Describe returns a readable report of the envelope.
func (d *Download) Describe() string {
	var sb strings.Builder
	sb.WriteString("SMS-PP Download:")
	tlv.WriteStructFields(&sb, "Envelope", d)

	if deliver, err := d.Deliver(); err == nil {
		fmt.Fprintf(&sb, "\n    - SMS-DELIVER from %s at %s (PID %02X, DCS %02X)",
			deliver.Originator, deliver.Timestamp.Format("2006-01-02 15:04:05 -07:00"), deliver.PID, deliver.DCS)
		if pkt, err := deliver.Packet(); err == nil {
			fmt.Fprintf(&sb, "\n    - Command packet: %X", pkt)
		}
	}
	return sb.String()
}
