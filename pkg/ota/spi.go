package ota

import (
	"fmt"
	"strings"

	"github.com/gregLibert/simota/pkg/bits"
)

// SECURITY PARAMETER INDICATOR (ETSI TS 102 225, 5.1.1):
//
// First octet (command packet):
//   - b2-b1: 00 no RC/CC/DS, 01 RC, 10 CC, 11 DS
//   - b3:    ciphering
//   - b5-b4: 00 no counter, 01 counter available (no replay check),
//     10 process if counter higher, 11 process if counter one higher
//   - b8-b6: reserved
//
// Second octet (Proof of Receipt):
//   - b2-b1: 00 no PoR, 01 PoR required, 10 PoR required only on error, 11 reserved
//   - b4-b3: 00 no RC/CC/DS, 01 RC, 10 CC, 11 DS
//   - b5:    PoR response shall be ciphered
//   - b6:    PoR sent with SMS-SUBMIT (0 = SMS-DELIVER-REPORT)
//   - b8-b7: reserved

// CounterMode is the replay counter handling requested from the card.
type CounterMode uint8

const (
	CounterNone CounterMode = iota
	CounterNoReplayCheck
	CounterMustBeHigher
	CounterMustBeOneHigher
)

var counterModeNames = []string{"no_counter", "counter_no_replay_check", "counter_must_be_higher", "counter_must_be_one_higher"}

func (c CounterMode) String() string {
	if int(c) < len(counterModeNames) {
		return counterModeNames[c]
	}
	return fmt.Sprintf("CounterMode(%d)", c)
}

// Integrity is the integrity class of a direction: RC, CC or DS.
type Integrity uint8

const (
	IntegrityNone Integrity = iota
	IntegrityRC
	IntegrityCC
	IntegrityDS
)

var integrityNames = []string{"no_rc_cc_ds", "rc", "cc", "ds"}

func (i Integrity) String() string {
	if int(i) < len(integrityNames) {
		return integrityNames[i]
	}
	return fmt.Sprintf("Integrity(%d)", i)
}

// Short returns the abbreviation used on the wire documentation (RC, CC, DS).
func (i Integrity) Short() string {
	switch i {
	case IntegrityRC:
		return "RC"
	case IntegrityCC:
		return "CC"
	case IntegrityDS:
		return "DS"
	default:
		return "none"
	}
}

// PoRPolicy tells the card when to send a Proof of Receipt.
type PoRPolicy uint8

const (
	PoRNone PoRPolicy = iota
	PoRRequired
	PoROnError
)

var porPolicyNames = []string{"no_por", "por_required", "por_only_when_error"}

func (p PoRPolicy) String() string {
	if int(p) < len(porPolicyNames) {
		return porPolicyNames[p]
	}
	return fmt.Sprintf("PoRPolicy(%d)", p)
}

// SPI is the decoded security policy of one exchange.
type SPI struct {
	Counter   CounterMode
	Ciphering bool
	Integrity Integrity

	PoR          PoRPolicy
	PoRIntegrity Integrity
	PoRCiphered  bool
	PoRInSubmit  bool
}

// ParseSPI decodes the two SPI octets. Reserved bits and reserved codings
// are rejected.
func ParseSPI(raw []byte) (SPI, error) {
	if len(raw) != 2 {
		return SPI{}, malformed("SPI must be 2 bytes, got %d", len(raw))
	}
	b1, b2 := raw[0], raw[1]

	if !bits.Only(b1, 0x1F) {
		return SPI{}, malformed("SPI first octet %02X has reserved bits set", b1)
	}
	if !bits.Only(b2, 0x3F) {
		return SPI{}, malformed("SPI second octet %02X has reserved bits set", b2)
	}

	spi := SPI{
		Integrity:    Integrity(bits.GetRange(b1, 2, 1)),
		Ciphering:    bits.IsSet(b1, 3),
		Counter:      CounterMode(bits.GetRange(b1, 5, 4)),
		PoR:          PoRPolicy(bits.GetRange(b2, 2, 1)),
		PoRIntegrity: Integrity(bits.GetRange(b2, 4, 3)),
		PoRCiphered:  bits.IsSet(b2, 5),
		PoRInSubmit:  bits.IsSet(b2, 6),
	}
	if err := spi.Validate(); err != nil {
		return SPI{}, err
	}
	return spi, nil
}

// MustParseSPI is like ParseSPI but panics on error. It is meant for
// constant policies.
func MustParseSPI(raw []byte) SPI {
	spi, err := ParseSPI(raw)
	if err != nil {
		panic(err)
	}
	return spi
}

// Validate checks that every field holds a defined coding.
func (s SPI) Validate() error {
	if s.Counter > CounterMustBeOneHigher {
		return malformed("counter mode %d out of range", s.Counter)
	}
	if s.Integrity > IntegrityDS || s.PoRIntegrity > IntegrityDS {
		return malformed("integrity class out of range (command %d, PoR %d)", s.Integrity, s.PoRIntegrity)
	}
	if s.PoR > PoROnError {
		return malformed("PoR policy %d is reserved", s.PoR)
	}
	return nil
}

// Bytes encodes the SPI into its two octets.
func (s SPI) Bytes() [2]byte {
	var b1, b2 byte
	b1 = bits.SetRange(b1, 2, 1, byte(s.Integrity))
	if s.Ciphering {
		b1 = bits.Set(b1, 3)
	}
	b1 = bits.SetRange(b1, 5, 4, byte(s.Counter))

	b2 = bits.SetRange(b2, 2, 1, byte(s.PoR))
	b2 = bits.SetRange(b2, 4, 3, byte(s.PoRIntegrity))
	if s.PoRCiphered {
		b2 = bits.Set(b2, 5)
	}
	if s.PoRInSubmit {
		b2 = bits.Set(b2, 6)
	}
	return [2]byte{b1, b2}
}

// String returns the SPI as 4 hex digits.
func (s SPI) String() string {
	b := s.Bytes()
	return fmt.Sprintf("%02X%02X", b[0], b[1])
}

// Describe renders the policy field by field.
func (s SPI) Describe() string {
	var sb strings.Builder
	b := s.Bytes()
	fmt.Fprintf(&sb, "=== SPI %02X %02X ===\n", b[0], b[1])
	sb.WriteString("[1] Command packet\n")
	fmt.Fprintf(&sb, "    + Counter:    %s\n", s.Counter)
	fmt.Fprintf(&sb, "    + Ciphering:  %t\n", s.Ciphering)
	fmt.Fprintf(&sb, "    + RC/CC/DS:   %s\n", s.Integrity.Short())
	sb.WriteString("[2] Proof of Receipt\n")
	fmt.Fprintf(&sb, "    + Policy:     %s\n", s.PoR)
	fmt.Fprintf(&sb, "    + RC/CC/DS:   %s\n", s.PoRIntegrity.Short())
	fmt.Fprintf(&sb, "    + Ciphered:   %t\n", s.PoRCiphered)
	transport := "SMS-DELIVER-REPORT"
	if s.PoRInSubmit {
		transport = "SMS-SUBMIT"
	}
	fmt.Fprintf(&sb, "    + Sent with:  %s", transport)
	return sb.String()
}

// ParseCounterMode resolves a configuration name such as "no_counter".
func ParseCounterMode(name string) (CounterMode, error) {
	i, err := lookupName(counterModeNames, name, "counter mode")
	return CounterMode(i), err
}

// ParseIntegrity resolves "no_rc_cc_ds", "rc", "cc" or "ds".
func ParseIntegrity(name string) (Integrity, error) {
	i, err := lookupName(integrityNames, name, "integrity class")
	return Integrity(i), err
}

// ParsePoRPolicy resolves "no_por", "por_required" or "por_only_when_error".
func ParsePoRPolicy(name string) (PoRPolicy, error) {
	i, err := lookupName(porPolicyNames, name, "PoR policy")
	return PoRPolicy(i), err
}

func lookupName(names []string, name, what string) (int, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range names {
		if n == name {
			return i, nil
		}
	}
	return 0, malformed("unknown %s %q (want one of %s)", what, name, strings.Join(names, ", "))
}
