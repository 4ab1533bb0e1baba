package ota

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gregLibert/simota/pkg/tlv"
)

func TestParseSPI(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		want SPI
	}{
		{
			name: "AES reference policy",
			raw:  tlv.Hex("06 19"),
			want: SPI{Ciphering: true, Integrity: IntegrityCC, PoR: PoRRequired, PoRIntegrity: IntegrityCC, PoRCiphered: true},
		},
		{
			name: "signed only",
			raw:  tlv.Hex("02 19"),
			want: SPI{Integrity: IntegrityCC, PoR: PoRRequired, PoRIntegrity: IntegrityCC, PoRCiphered: true},
		},
		{
			name: "counter one higher, RC, PoR on error sent with SMS-SUBMIT",
			raw:  tlv.Hex("19 26"),
			want: SPI{Counter: CounterMustBeOneHigher, Integrity: IntegrityRC, PoR: PoROnError, PoRIntegrity: IntegrityRC, PoRInSubmit: true},
		},
		{
			name: "nothing",
			raw:  tlv.Hex("00 00"),
			want: SPI{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSPI(tt.raw)
			if err != nil {
				t.Fatalf("ParseSPI() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseSPI() mismatch (-want +got):\n%s", diff)
			}
			b := got.Bytes()
			if b[0] != tt.raw[0] || b[1] != tt.raw[1] {
				t.Errorf("Bytes() = %X, want %X", b, tt.raw)
			}
		})
	}
}

func TestParseSPIRejects(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{"reserved bit b6 of first octet", tlv.Hex("26 00")},
		{"reserved bit b8 of first octet", tlv.Hex("80 00")},
		{"reserved bit b7 of second octet", tlv.Hex("00 41")},
		{"reserved PoR coding", tlv.Hex("00 03")},
		{"too short", tlv.Hex("06")},
		{"too long", tlv.Hex("06 19 00")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSPI(tt.raw)
			if !errors.Is(err, ErrMalformedPacket) {
				t.Errorf("ParseSPI(%X) error = %v, want ErrMalformedPacket", tt.raw, err)
			}
		})
	}
}

func TestSPIValidate(t *testing.T) {
	if err := (SPI{PoR: 3}).Validate(); !errors.Is(err, ErrMalformedPacket) {
		t.Errorf("PoR 3: error = %v, want ErrMalformedPacket", err)
	}
	if err := (SPI{Integrity: 4}).Validate(); !errors.Is(err, ErrMalformedPacket) {
		t.Errorf("integrity 4: error = %v, want ErrMalformedPacket", err)
	}
}

func TestSPIStringAndDescribe(t *testing.T) {
	spi := MustParseSPI(tlv.Hex("16 39"))
	if spi.String() != "1639" {
		t.Errorf("String() = %q, want 1639", spi.String())
	}

	d := spi.Describe()
	for _, want := range []string{"counter_must_be_higher", "Ciphering:  true", "RC/CC/DS:   CC", "por_required", "SMS-SUBMIT"} {
		if !strings.Contains(d, want) {
			t.Errorf("Describe() missing %q:\n%s", want, d)
		}
	}
}

func TestParseSPIFieldNames(t *testing.T) {
	c, err := ParseCounterMode("counter_must_be_one_higher")
	if err != nil || c != CounterMustBeOneHigher {
		t.Errorf("ParseCounterMode() = %v, %v", c, err)
	}
	i, err := ParseIntegrity("CC")
	if err != nil || i != IntegrityCC {
		t.Errorf("ParseIntegrity() = %v, %v", i, err)
	}
	p, err := ParsePoRPolicy("por_only_when_error")
	if err != nil || p != PoROnError {
		t.Errorf("ParsePoRPolicy() = %v, %v", p, err)
	}
	if _, err := ParsePoRPolicy("always"); !errors.Is(err, ErrMalformedPacket) {
		t.Errorf("ParsePoRPolicy(always) error = %v, want ErrMalformedPacket", err)
	}
}
