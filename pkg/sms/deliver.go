package sms

import (
	"bytes"
	"fmt"
	"time"

	"github.com/warthog618/sms/encoding/tpdu"
)

// SMS-DELIVER (3GPP TS 23.040, 9.2.2.1) carrying a secured packet
// (3GPP TS 31.115, 4):
//
//	first octet  TP-MTI=00, TP-MMS=1, TP-UDHI=1          -> 44
//	TP-OA        originating address
//	TP-PID       7F  (U)SIM data download
//	TP-DCS       F6  class 2, 8-bit data
//	TP-SCTS      service centre time stamp, 7 semi-octet pairs
//	TP-UDL       user data length in octets
//	TP-UD        UDHL=02 ‖ IEI=70 ‖ IEIDL=00 ‖ command packet
const (
	firstOctetDeliver = 0x44

	PIDDataDownload = 0x7F
	DCSClass2Data   = 0xF6

	// MaxUserData is the capacity of one 8-bit short message.
	MaxUserData = 140

	ieiCommandPacket = 0x70
	sctsSize         = 7
)

// CommandUserData prefixes a command packet with the user data header that
// identifies it. Concatenation is not supported: the result must fit in one
// short message.
func CommandUserData(packet []byte) ([]byte, error) {
	ud := append([]byte{0x02, ieiCommandPacket, 0x00}, packet...)
	if len(ud) > MaxUserData {
		return nil, fmt.Errorf("secured packet of %d bytes exceeds one short message (%d user data octets max)",
			len(packet), MaxUserData-3)
	}
	return ud, nil
}

// CommandPacket returns the command packet from the user data of a secured
// SMS, checking the header that announces it.
func CommandPacket(ud []byte) ([]byte, error) {
	if len(ud) < 1 || len(ud) < 1+int(ud[0]) {
		return nil, fmt.Errorf("user data header truncated")
	}
	udh := ud[1 : 1+int(ud[0])]
	for len(udh) >= 2 {
		iei, l := udh[0], int(udh[1])
		if iei == ieiCommandPacket && l == 0 {
			return ud[1+int(ud[0]):], nil
		}
		if len(udh) < 2+l {
			break
		}
		udh = udh[2+l:]
	}
	return nil, fmt.Errorf("no command packet element in user data header %X", ud[:1+int(ud[0])])
}

// Deliver is an SMS-DELIVER TPDU.
type Deliver struct {
	Originator Address
	PID        byte
	DCS        byte
	Timestamp  time.Time
	UserData   []byte
}

// NewDeliver returns the SMS-DELIVER of a secured command packet.
func NewDeliver(originator Address, packet []byte, ts time.Time) (*Deliver, error) {
	ud, err := CommandUserData(packet)
	if err != nil {
		return nil, err
	}
	return &Deliver{
		Originator: originator,
		PID:        PIDDataDownload,
		DCS:        DCSClass2Data,
		Timestamp:  ts,
		UserData:   ud,
	}, nil
}

// Bytes encodes the TPDU.
func (d *Deliver) Bytes() ([]byte, error) {
	if len(d.UserData) > MaxUserData {
		return nil, fmt.Errorf("user data of %d octets exceeds %d", len(d.UserData), MaxUserData)
	}
	oa, err := d.Originator.TPAddress()
	if err != nil {
		return nil, err
	}
	scts, err := encodeSCTS(d.Timestamp)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteByte(firstOctetDeliver)
	buf.Write(oa)
	buf.WriteByte(d.PID)
	buf.WriteByte(d.DCS)
	buf.Write(scts)
	buf.WriteByte(byte(len(d.UserData)))
	buf.Write(d.UserData)
	return buf.Bytes(), nil
}

// ParseDeliver decodes an 8-bit SMS-DELIVER TPDU.
func ParseDeliver(b []byte) (*Deliver, error) {
	if len(b) < 1 || b[0]&0x03 != 0x00 {
		return nil, fmt.Errorf("not an SMS-DELIVER")
	}
	oa, n, err := parseTPAddress(b[1:])
	if err != nil {
		return nil, fmt.Errorf("TP-OA: %w", err)
	}
	rest := b[1+n:]
	if len(rest) < 2+sctsSize+1 {
		return nil, fmt.Errorf("SMS-DELIVER truncated after TP-OA")
	}
	d := &Deliver{Originator: oa, PID: rest[0], DCS: rest[1]}
	if d.Timestamp, err = decodeSCTS(rest[2 : 2+sctsSize]); err != nil {
		return nil, err
	}
	udl := int(rest[2+sctsSize])
	ud := rest[3+sctsSize:]
	if udl > len(ud) {
		return nil, fmt.Errorf("TP-UDL %d exceeds %d available octets", udl, len(ud))
	}
	d.UserData = ud[:udl]
	return d, nil
}

// Packet returns the command packet carried by the TPDU.
func (d *Deliver) Packet() ([]byte, error) {
	return CommandPacket(d.UserData)
}

// encodeSCTS codes a time stamp; the zone is in quarters of an hour with the
// sign in bit 4 of the first digit.
func encodeSCTS(t time.Time) ([]byte, error) {
	ts := tpdu.Timestamp{Time: t}
	b, err := ts.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("TP-SCTS: %w", err)
	}
	return b, nil
}

func decodeSCTS(b []byte) (time.Time, error) {
	var ts tpdu.Timestamp
	if err := ts.UnmarshalBinary(b); err != nil {
		return time.Time{}, fmt.Errorf("TP-SCTS: %w", err)
	}
	return ts.Time, nil
}
