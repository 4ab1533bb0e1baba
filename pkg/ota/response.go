package ota

import (
	"bytes"
	"crypto/subtle"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/gregLibert/simota/pkg/iso7816"
	"github.com/pkg/errors"
)

// RESPONSE PACKET (ETSI TS 102 225, 5.1.2 and 3GPP TS 31.115, 4.2):
//
// The Proof of Receipt travels as short message user data:
//
//	UDHL | IEI '71' | '00' | RPL(2) | RHL(1) | TAR(3) | CNTR(5) | PCNTR(1) | Status(1) | RC/CC/DS | data
//
// RHL counts TAR to RC/CC/DS included, RPL the bytes following it. When the PoR
// is ciphered, everything after TAR is encrypted with KIc. The integrity value
// covers the user data header, RPL..Status, the data and its padding.
//
// The additional response data (ETSI TS 102 226, 5.1.2) is:
//
//	number of executed commands(1) | last status word(2) | last response data

const (
	// ieiResponsePacket is the Response Packet Identifier in the user data header.
	ieiResponsePacket = 0x71

	// rspFixedHeader is TAR(3) + CNTR(5) + PCNTR(1) + Status(1).
	rspFixedHeader = TARSize + CounterSize + 1 + 1
	// rspClearPart is RPL(2) + RHL(1) + TAR(3), never ciphered.
	rspClearPart = 2 + 1 + TARSize
)

// ResponseStatus is the Response Status Code of a PoR (ETSI TS 102 225 table 5.3).
type ResponseStatus byte

const (
	StatusPoROK                     ResponseStatus = 0x00
	StatusRCCCDSFailed              ResponseStatus = 0x01
	StatusCounterLow                ResponseStatus = 0x02
	StatusCounterHigh               ResponseStatus = 0x03
	StatusCounterBlocked            ResponseStatus = 0x04
	StatusCipheringError            ResponseStatus = 0x05
	StatusUndefinedSecurityError    ResponseStatus = 0x06
	StatusInsufficientMemory        ResponseStatus = 0x07
	StatusMoreTimeNeeded            ResponseStatus = 0x08
	StatusTARUnknown                ResponseStatus = 0x09
	StatusInsufficientSecurityLevel ResponseStatus = 0x0A
	StatusResponseInSMSSubmit       ResponseStatus = 0x0B
	StatusResponseInUSSD            ResponseStatus = 0x0C
)

var responseStatusNames = map[ResponseStatus]string{
	StatusPoROK:                     "por_ok",
	StatusRCCCDSFailed:              "rc_cc_ds_failed",
	StatusCounterLow:                "cntr_low",
	StatusCounterHigh:               "cntr_high",
	StatusCounterBlocked:            "cntr_blocked",
	StatusCipheringError:            "ciphering_error",
	StatusUndefinedSecurityError:    "undefined_security_error",
	StatusInsufficientMemory:        "insufficient_memory",
	StatusMoreTimeNeeded:            "more_time_needed",
	StatusTARUnknown:                "tar_unknown",
	StatusInsufficientSecurityLevel: "insufficient_security_level",
	StatusResponseInSMSSubmit:       "actual_response_sms_submit",
	StatusResponseInUSSD:            "actual_response_ussd",
}

func (s ResponseStatus) String() string {
	if name, ok := responseStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("reserved_%02x", byte(s))
}

// OverallStatus summarizes an exchange for callers.
type OverallStatus string

const (
	PoROK    OverallStatus = "por_ok"
	PoRError OverallStatus = "por_error"
)

// Result is a verified Proof of Receipt.
type Result struct {
	Length       int
	HeaderLength int
	TAR          TAR
	Counter      Counter
	PaddingCount int
	Status       ResponseStatus
	// Integrity is the verified RC/CC/DS value, nil when the policy has none.
	Integrity []byte

	NumberOfResults int
	LastStatusWord  iso7816.StatusWord
	LastResultData  []byte
	Overall         OverallStatus
}

// HasResults reports whether the PoR carried additional response data.
func (r *Result) HasResults() bool {
	return r.NumberOfResults > 0
}

// DecodeOption adds an expectation checked while decoding.
type DecodeOption func(*decodeOptions)

type decodeOptions struct {
	tar     *TAR
	counter *Counter
}

// ExpectTAR rejects a PoR addressed from another application.
func ExpectTAR(tar TAR) DecodeOption {
	return func(o *decodeOptions) { o.tar = &tar }
}

// ExpectCounter rejects a PoR whose counter differs from c. It only applies
// when the SPI uses a counter.
func ExpectCounter(c Counter) DecodeOption {
	return func(o *decodeOptions) { o.counter = &c }
}

// DecodeResponse parses the PoR user data, deciphers it, verifies its
// integrity value and extracts the card's results. On failure only an error
// is returned.
func DecodeResponse(ks *Keyset, spi SPI, data []byte, opts ...DecodeOption) (*Result, error) {
	if ks == nil {
		return nil, errors.Wrap(ErrKeyNotFound, "nil keyset")
	}
	if err := spi.Validate(); err != nil {
		return nil, err
	}
	if err := ks.checkPolicy(spi); err != nil {
		return nil, err
	}
	var o decodeOptions
	for _, opt := range opts {
		opt(&o)
	}

	udh, packet, err := splitUserDataHeader(data)
	if err != nil {
		return nil, err
	}

	if len(packet) < rspClearPart {
		return nil, &LengthError{Field: "response header", Declared: rspClearPart, Actual: len(packet)}
	}
	rpl := int(binary.BigEndian.Uint16(packet))
	if rpl > len(packet)-2 {
		return nil, &LengthError{Field: "RPL", Declared: rpl, Actual: len(packet) - 2}
	}
	packet = packet[:2+rpl]

	rhl := int(packet[2])
	if rhl < rspFixedHeader {
		return nil, malformed("RHL %d shorter than the fixed header (%d)", rhl, rspFixedHeader)
	}
	if 1+rhl > rpl {
		return nil, &LengthError{Field: "RHL", Declared: rhl, Actual: rpl - 1}
	}
	sigLen := ks.integritySize(spi.PoRIntegrity)
	if rhl-rspFixedHeader != sigLen {
		return nil, malformed("RHL %d carries a %d-byte RC/CC/DS, policy expects %d", rhl, rhl-rspFixedHeader, sigLen)
	}

	plain := packet
	if spi.PoRCiphered {
		ciphered := packet[rspClearPart:]
		if len(ciphered)%ks.crypt.BlockSize != 0 {
			return nil, malformed("ciphered PoR length %d not a multiple of %d", len(ciphered), ks.crypt.BlockSize)
		}
		deciphered, err := ks.crypt.Decrypt(ks.kic, ciphered)
		if err != nil {
			return nil, errors.Wrap(err, "decipher PoR")
		}
		plain = append(bytes.Clone(packet[:rspClearPart]), deciphered...)
	}

	hdrEnd := 3 + rspFixedHeader // RPL..Status
	sig := plain[hdrEnd : hdrEnd+sigLen]
	secured := plain[hdrEnd+sigLen:]

	if spi.PoRIntegrity != IntegrityNone {
		in := make([]byte, 0, len(udh)+hdrEnd+len(secured))
		in = append(in, udh...)
		in = append(in, plain[:hdrEnd]...)
		in = append(in, secured...)
		computed, err := ks.integrity(spi.PoRIntegrity, in)
		if err != nil {
			return nil, errors.Wrapf(err, "compute %s", spi.PoRIntegrity.Short())
		}
		if subtle.ConstantTimeCompare(sig, computed) != 1 {
			return nil, &IntegrityError{Class: spi.PoRIntegrity, Received: bytes.Clone(sig), Computed: computed}
		}
	}

	res := &Result{
		Length:       rpl,
		HeaderLength: rhl,
		PaddingCount: int(plain[3+TARSize+CounterSize]),
		Status:       ResponseStatus(plain[hdrEnd-1]),
	}
	copy(res.TAR[:], plain[3:3+TARSize])
	copy(res.Counter[:], plain[3+TARSize:3+TARSize+CounterSize])
	if sigLen > 0 {
		res.Integrity = bytes.Clone(sig)
	}

	if spi.PoRCiphered {
		if res.PaddingCount > len(secured) {
			return nil, &LengthError{Field: "PCNTR", Declared: res.PaddingCount, Actual: len(secured)}
		}
		secured = secured[:len(secured)-res.PaddingCount]
	} else if res.PaddingCount != 0 {
		return nil, malformed("PCNTR %d on an unciphered PoR", res.PaddingCount)
	}

	if o.tar != nil && res.TAR != *o.tar {
		return nil, malformed("PoR from TAR %s, expected %s", res.TAR, *o.tar)
	}
	if o.counter != nil && spi.Counter != CounterNone && res.Counter != *o.counter {
		return nil, &CounterError{Expected: *o.counter, Received: res.Counter}
	}

	if err := res.parseAdditionalData(secured); err != nil {
		return nil, err
	}
	return res, nil
}

func (r *Result) parseAdditionalData(data []byte) error {
	r.Overall = PoRError
	if len(data) > 0 {
		if len(data) < 3 {
			return malformed("additional response data too short (%d bytes)", len(data))
		}
		r.NumberOfResults = int(data[0])
		r.LastStatusWord = iso7816.NewStatusWord(data[1], data[2])
		r.LastResultData = bytes.Clone(data[3:])
	}
	if r.Status == StatusPoROK && (len(data) == 0 || r.LastStatusWord.IsSuccess()) {
		r.Overall = PoROK
	}
	return nil
}

// splitUserDataHeader separates the user data header from the response
// packet and checks that it announces a response packet.
func splitUserDataHeader(data []byte) (udh, packet []byte, err error) {
	if len(data) == 0 {
		return nil, nil, malformed("empty PoR")
	}
	udhl := int(data[0])
	if 1+udhl > len(data) {
		return nil, nil, &LengthError{Field: "UDHL", Declared: udhl, Actual: len(data) - 1}
	}
	udh = data[:1+udhl]

	found := false
	for i := 1; i < len(udh); {
		if i+2 > len(udh) {
			return nil, nil, malformed("truncated information element in user data header")
		}
		iei, l := udh[i], int(udh[i+1])
		if i+2+l > len(udh) {
			return nil, nil, &LengthError{Field: fmt.Sprintf("IE %02X", iei), Declared: l, Actual: len(udh) - i - 2}
		}
		if iei == ieiResponsePacket {
			if l != 0 {
				return nil, nil, malformed("response packet identifier with %d bytes of data", l)
			}
			found = true
		}
		i += 2 + l
	}
	if !found {
		return nil, nil, malformed("user data header does not identify a response packet")
	}
	return udh, data[1+udhl:], nil
}

// Describe renders the PoR in the same report layout as the iso7816 results.
func (r *Result) Describe() string {
	var sb strings.Builder
	sb.WriteString("=== PROOF OF RECEIPT REPORT ===\n")
	sb.WriteString("[1] Response packet\n")
	fmt.Fprintf(&sb, "    + RPL/RHL: %d / %d\n", r.Length, r.HeaderLength)
	fmt.Fprintf(&sb, "    + TAR:     %s\n", r.TAR)
	fmt.Fprintf(&sb, "    + CNTR:    %s\n", r.Counter)
	fmt.Fprintf(&sb, "    + PCNTR:   %d\n", r.PaddingCount)
	if len(r.Integrity) > 0 {
		fmt.Fprintf(&sb, "    + Check:   %X (verified)\n", r.Integrity)
	}
	fmt.Fprintf(&sb, "    + Status:  [%02X] %s\n", byte(r.Status), r.Status)
	sb.WriteString("[=] RESULT OUTCOME:\n")
	fmt.Fprintf(&sb, "    + Commands executed: %d\n", r.NumberOfResults)
	if r.HasResults() {
		fmt.Fprintf(&sb, "    + Last SW:   %s\n", r.LastStatusWord.Verbose())
		if len(r.LastResultData) > 0 {
			fmt.Fprintf(&sb, "    + Last data: %X\n", r.LastResultData)
		}
	}
	fmt.Fprintf(&sb, "    + Overall: %s", r.Overall)
	return sb.String()
}
