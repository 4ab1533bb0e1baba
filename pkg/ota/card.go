package ota

import (
	"bytes"
	"crypto/subtle"
	"encoding/binary"

	"github.com/pkg/errors"
)

// The functions below implement the receiving entity of a command packet:
// what the card does with a command and how it builds its Proof of Receipt.
// They are used to simulate a card in tests and to inspect captured packets.

// Command is a verified, deciphered command packet.
type Command struct {
	SPI          SPI
	KIc          byte
	KID          byte
	TAR          TAR
	Counter      Counter
	PaddingCount int
	Integrity    []byte
	// Data is the secured data with the padding removed, usually one or more APDUs.
	Data []byte
}

// DecodeCommand reverses EncodeCommand. The KIc and KID bytes of the packet
// must select the keys of ks.
func DecodeCommand(ks *Keyset, pkt []byte) (*Command, error) {
	if ks == nil {
		return nil, errors.Wrap(ErrKeyNotFound, "nil keyset")
	}
	if len(pkt) < 3 {
		return nil, &LengthError{Field: "command header", Declared: 3, Actual: len(pkt)}
	}
	cpl := int(binary.BigEndian.Uint16(pkt))
	if cpl > len(pkt)-2 {
		return nil, &LengthError{Field: "CPL", Declared: cpl, Actual: len(pkt) - 2}
	}
	pkt = pkt[:2+cpl]

	chl := int(pkt[2])
	if chl < cmdFixedHeader {
		return nil, malformed("CHL %d shorter than the fixed header (%d)", chl, cmdFixedHeader)
	}
	if 1+chl > cpl {
		return nil, &LengthError{Field: "CHL", Declared: chl, Actual: cpl - 1}
	}

	spi, err := ParseSPI(pkt[3:5])
	if err != nil {
		return nil, err
	}
	if err := ks.checkPolicy(spi); err != nil {
		return nil, err
	}
	cmd := &Command{SPI: spi, KIc: pkt[5], KID: pkt[6]}
	if cmd.KIc != ks.KIc() || cmd.KID != ks.KID() {
		return nil, errors.Wrapf(ErrKeyNotFound, "packet selects KIc %02X KID %02X, keyset holds %02X %02X",
			cmd.KIc, cmd.KID, ks.KIc(), ks.KID())
	}
	copy(cmd.TAR[:], pkt[7:10])

	sigLen := ks.integritySize(spi.Integrity)
	if chl-cmdFixedHeader != sigLen {
		return nil, malformed("CHL %d carries a %d-byte RC/CC/DS, policy expects %d", chl, chl-cmdFixedHeader, sigLen)
	}

	plain := pkt
	if spi.Ciphering {
		ciphered := pkt[3+cmdClearPart:]
		if len(ciphered)%ks.crypt.BlockSize != 0 {
			return nil, malformed("ciphered command length %d not a multiple of %d", len(ciphered), ks.crypt.BlockSize)
		}
		deciphered, err := ks.crypt.Decrypt(ks.kic, ciphered)
		if err != nil {
			return nil, errors.Wrap(err, "decipher command")
		}
		plain = append(bytes.Clone(pkt[:3+cmdClearPart]), deciphered...)
	}

	hdrEnd := 3 + cmdFixedHeader
	sig := plain[hdrEnd : hdrEnd+sigLen]
	body := plain[hdrEnd+sigLen:]

	if spi.Integrity != IntegrityNone {
		in := append(bytes.Clone(plain[:hdrEnd]), body...)
		computed, err := ks.integrity(spi.Integrity, in)
		if err != nil {
			return nil, errors.Wrapf(err, "compute %s", spi.Integrity.Short())
		}
		if subtle.ConstantTimeCompare(sig, computed) != 1 {
			return nil, &IntegrityError{Class: spi.Integrity, Received: bytes.Clone(sig), Computed: computed}
		}
		cmd.Integrity = bytes.Clone(sig)
	}

	copy(cmd.Counter[:], plain[3+cmdClearPart:3+cmdClearPart+CounterSize])
	cmd.PaddingCount = int(plain[hdrEnd-1])
	if cmd.PaddingCount > len(body) {
		return nil, &LengthError{Field: "PCNTR", Declared: cmd.PaddingCount, Actual: len(body)}
	}
	if !spi.Ciphering && cmd.PaddingCount != 0 {
		return nil, malformed("PCNTR %d on an unciphered command", cmd.PaddingCount)
	}
	cmd.Data = bytes.Clone(body[:len(body)-cmd.PaddingCount])
	return cmd, nil
}

// EncodeResponse builds the PoR user data a card returns for a command
// received under spi. data is the additional response data, see
// AdditionalData.
func EncodeResponse(ks *Keyset, spi SPI, tar TAR, cntr Counter, status ResponseStatus, data []byte) ([]byte, error) {
	if ks == nil {
		return nil, errors.Wrap(ErrKeyNotFound, "nil keyset")
	}
	if err := spi.Validate(); err != nil {
		return nil, err
	}
	if err := ks.checkPolicy(spi); err != nil {
		return nil, err
	}

	sigLen := ks.integritySize(spi.PoRIntegrity)
	pcntr := 0
	if spi.PoRCiphered {
		pcntr = padLength(CounterSize+1+1+sigLen+len(data), ks.crypt.BlockSize)
	}
	rhl := rspFixedHeader + sigLen
	rpl := 1 + rhl + len(data) + pcntr
	if rpl > MaxPacketLength {
		return nil, &LengthError{Field: "RPL", Declared: rpl, Actual: MaxPacketLength}
	}

	udh := []byte{0x02, ieiResponsePacket, 0x00}
	header := make([]byte, 0, 3+rhl)
	header = binary.BigEndian.AppendUint16(header, uint16(rpl))
	header = append(header, byte(rhl))
	header = append(header, tar[:]...)
	header = append(header, cntr[:]...)
	header = append(header, byte(pcntr), byte(status))

	body := make([]byte, len(data)+pcntr)
	copy(body, data)

	in := make([]byte, 0, len(udh)+len(header)+len(body))
	in = append(in, udh...)
	in = append(in, header...)
	in = append(in, body...)
	sig, err := ks.integrity(spi.PoRIntegrity, in)
	if err != nil {
		return nil, errors.Wrapf(err, "compute %s", spi.PoRIntegrity.Short())
	}

	secured := make([]byte, 0, len(header)-rspClearPart+sigLen+len(body))
	secured = append(secured, header[rspClearPart:]...)
	secured = append(secured, sig...)
	secured = append(secured, body...)
	if spi.PoRCiphered {
		if secured, err = ks.crypt.Encrypt(ks.kic, secured); err != nil {
			return nil, errors.Wrap(err, "cipher PoR")
		}
	}

	out := make([]byte, 0, len(udh)+2+rpl)
	out = append(out, udh...)
	out = append(out, header[:rspClearPart]...)
	return append(out, secured...), nil
}

// AdditionalData formats the additional response data of a PoR: the number
// of executed commands, the last status word and the last response data.
func AdditionalData(count int, sw uint16, last []byte) []byte {
	out := []byte{byte(count), byte(sw >> 8), byte(sw)}
	return append(out, last...)
}
