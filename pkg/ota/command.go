package ota

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// COMMAND PACKET (ETSI TS 102 225, 5.1.1):
//
//	CPL(2) | CHL(1) | SPI(2) | KIc(1) | KID(1) | TAR(3) | CNTR(5) | PCNTR(1) | RC/CC/DS | data
//
// CHL counts the bytes from SPI to RC/CC/DS included, CPL the bytes following it.
// The integrity value is computed over CPL..PCNTR followed by the data and the
// ciphering padding. When ciphering is requested, everything from CNTR onwards
// is zero-padded to the cipher block size and encrypted with KIc; PCNTR holds
// the number of padding bytes.

const (
	// cmdFixedHeader is SPI(2) + KIc(1) + KID(1) + TAR(3) + CNTR(5) + PCNTR(1).
	cmdFixedHeader = 2 + 1 + 1 + TARSize + CounterSize + 1
	// cmdClearPart is the part of the header never ciphered: SPI, KIc, KID, TAR.
	cmdClearPart = 2 + 1 + 1 + TARSize

	// MaxPacketLength is the largest value CPL can carry.
	MaxPacketLength = 0xFFFF
)

// EncodeCommand secures apdu for the application tar according to spi and
// returns the command packet. cntr is written into CNTR when the policy uses a
// counter and ignored otherwise; advancing it is up to the caller.
func EncodeCommand(ks *Keyset, tar TAR, spi SPI, cntr Counter, apdu []byte) ([]byte, error) {
	if ks == nil {
		return nil, errors.Wrap(ErrKeyNotFound, "nil keyset")
	}
	if err := spi.Validate(); err != nil {
		return nil, err
	}
	if err := ks.checkPolicy(spi); err != nil {
		return nil, err
	}

	if spi.Counter == CounterNone {
		cntr = Counter{}
	}

	sigLen := ks.integritySize(spi.Integrity)
	pcntr := 0
	if spi.Ciphering {
		pcntr = padLength(CounterSize+1+sigLen+len(apdu), ks.crypt.BlockSize)
	}

	chl := cmdFixedHeader + sigLen
	cpl := 1 + chl + len(apdu) + pcntr
	if cpl > MaxPacketLength {
		return nil, &LengthError{Field: "CPL", Declared: cpl, Actual: MaxPacketLength}
	}

	spiBytes := spi.Bytes()
	header := make([]byte, 0, 3+chl)
	header = binary.BigEndian.AppendUint16(header, uint16(cpl))
	header = append(header, byte(chl))
	header = append(header, spiBytes[0], spiBytes[1], ks.KIc(), ks.KID())
	header = append(header, tar[:]...)
	header = append(header, cntr[:]...)
	header = append(header, byte(pcntr))

	// data followed by the ciphering padding
	body := make([]byte, len(apdu)+pcntr)
	copy(body, apdu)

	sig, err := ks.integrity(spi.Integrity, append(header[:len(header):len(header)], body...))
	if err != nil {
		return nil, errors.Wrapf(err, "compute %s", spi.Integrity.Short())
	}

	// CNTR | PCNTR | RC/CC/DS | data | padding
	secured := make([]byte, 0, CounterSize+1+sigLen+len(body))
	secured = append(secured, header[3+cmdClearPart:]...)
	secured = append(secured, sig...)
	secured = append(secured, body...)

	if spi.Ciphering {
		secured, err = ks.crypt.Encrypt(ks.kic, secured)
		if err != nil {
			return nil, errors.Wrap(err, "cipher secured data")
		}
	}

	out := make([]byte, 0, 2+cpl)
	out = append(out, header[:3+cmdClearPart]...)
	return append(out, secured...), nil
}
