package ota

import (
	"errors"
	"strings"
	"testing"

	"github.com/gregLibert/simota/pkg/tlv"
)

var (
	aesKIc = tlv.Hex("200102030405060708090A0B0C0D0E0F")
	aesKID = tlv.Hex("201102030405060708090A0B0C0D0E0F")

	desKIc = tlv.Hex("C21DD66ACAC13CB3BC8B331B24AFB57B")
	desKID = tlv.Hex("12110C78E678C25408233076AA033615")
)

func aesKeyset(t *testing.T) *Keyset {
	t.Helper()
	ks, err := NewKeyset(AlgoAESCBC, 2, aesKIc, AlgoAESCMAC, 2, aesKID)
	if err != nil {
		t.Fatalf("NewKeyset() error = %v", err)
	}
	return ks
}

func tripleDESKeyset(t *testing.T) *Keyset {
	t.Helper()
	ks, err := NewKeyset(AlgoTripleDES2, 3, desKIc, AlgoTripleDES2, 3, desKID)
	if err != nil {
		t.Fatalf("NewKeyset() error = %v", err)
	}
	return ks
}

func TestNewKeyset(t *testing.T) {
	t.Run("selector bytes", func(t *testing.T) {
		ks := aesKeyset(t)
		if ks.KIc() != 0x22 || ks.KID() != 0x22 {
			t.Errorf("KIc/KID = %02X/%02X, want 22/22", ks.KIc(), ks.KID())
		}
		ks = tripleDESKeyset(t)
		if ks.KIc() != 0x35 || ks.KID() != 0x35 {
			t.Errorf("KIc/KID = %02X/%02X, want 35/35", ks.KIc(), ks.KID())
		}
	})

	t.Run("CRC keyset", func(t *testing.T) {
		ks, err := NewKeyset(AlgoNone, 0, nil, AlgoCRC32, 1, nil)
		if err != nil {
			t.Fatal(err)
		}
		if ks.KID() != 0x15 {
			t.Errorf("KID = %02X, want 15", ks.KID())
		}
	})

	t.Run("keys are copied", func(t *testing.T) {
		kic := append([]byte(nil), aesKIc...)
		ks, _ := NewKeyset(AlgoAESCBC, 2, kic, AlgoAESCMAC, 2, aesKID)
		kic[0] ^= 0xFF
		if ks.kic[0] != aesKIc[0] {
			t.Error("keyset shares the caller's key buffer")
		}
	})

	t.Run("String hides keys", func(t *testing.T) {
		ks := aesKeyset(t)
		if ks.KIcIndex() != 2 || ks.KIDIndex() != 2 {
			t.Errorf("indices = %d/%d, want 2/2", ks.KIcIndex(), ks.KIDIndex())
		}
		s := ks.String()
		if want := "KIc 2/aes_cbc (22), KID 2/aes_cmac (22)"; s != want {
			t.Errorf("String() = %q, want %q", s, want)
		}
		if strings.Contains(strings.ToLower(s), "0102030405") {
			t.Errorf("String() leaks key material: %s", s)
		}
	})

	errorCases := []struct {
		name    string
		crypt   AlgorithmID
		kic     []byte
		auth    AlgorithmID
		kid     []byte
		kicIdx  uint8
		wantErr error
	}{
		{"short AES key", AlgoAESCBC, aesKIc[:15], AlgoAESCMAC, aesKID, 1, ErrPolicyAlgorithmMismatch},
		{"short CMAC key", AlgoAESCBC, aesKIc, AlgoAESCMAC, aesKID[:8], 1, ErrPolicyAlgorithmMismatch},
		{"index too large", AlgoAESCBC, aesKIc, AlgoAESCMAC, aesKID, 16, ErrPolicyAlgorithmMismatch},
		{"CMAC as cipher", AlgoAESCMAC, aesKIc, AlgoAESCMAC, aesKID, 1, ErrUnsupportedAlgorithm},
		{"CBC as MAC", AlgoAESCBC, aesKIc, AlgoAESCBC, aesKID, 1, ErrUnsupportedAlgorithm},
		{"DES-ECB disabled", AlgoDESECB, desKIc[:8], AlgoDES, desKID[:8], 1, ErrUnsupportedAlgorithm},
	}
	for _, tt := range errorCases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewKeyset(tt.crypt, tt.kicIdx, tt.kic, tt.auth, 1, tt.kid)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if n := errorKinds(err); n != 1 {
				t.Errorf("error %v matches %d kinds", err, n)
			}
		})
	}
}

func TestKeysetCheckPolicy(t *testing.T) {
	crcOnly, _ := NewKeyset(AlgoNone, 0, nil, AlgoCRC16, 1, nil)
	macOnly, _ := NewKeyset(AlgoNone, 0, nil, AlgoAESCMAC, 1, aesKID)

	tests := []struct {
		name string
		ks   *Keyset
		spi  SPI
		ok   bool
	}{
		{"AES full policy", aesKeyset(t), MustParseSPI(tlv.Hex("16 39")), true},
		{"ciphering without cipher", macOnly, SPI{Ciphering: true}, false},
		{"PoR ciphered without cipher", macOnly, SPI{PoRCiphered: true}, false},
		{"CC with CRC", crcOnly, SPI{Integrity: IntegrityCC}, false},
		{"DS with CRC", crcOnly, SPI{Integrity: IntegrityDS}, false},
		{"RC with MAC", macOnly, SPI{Integrity: IntegrityRC}, false},
		{"PoR RC with MAC", macOnly, SPI{PoRIntegrity: IntegrityRC}, false},
		{"RC with CRC", crcOnly, SPI{Integrity: IntegrityRC, PoRIntegrity: IntegrityRC}, true},
		{"DS with MAC", macOnly, SPI{Integrity: IntegrityDS}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ks.checkPolicy(tt.spi)
			if tt.ok && err != nil {
				t.Errorf("checkPolicy() error = %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrPolicyAlgorithmMismatch) {
				t.Errorf("checkPolicy() error = %v, want ErrPolicyAlgorithmMismatch", err)
			}
		})
	}
}

// errorKinds counts the error kinds err matches.
func errorKinds(err error) int {
	n := 0
	for _, kind := range []error{
		ErrMalformedPacket, ErrUnsupportedAlgorithm, ErrPolicyAlgorithmMismatch,
		ErrIntegrityCheckFailed, ErrKeyNotFound, ErrCounterMismatch,
	} {
		if errors.Is(err, kind) {
			n++
		}
	}
	return n
}
