package tlv

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/moov-io/bertlv"
)

type MockTemplate struct {
	Devices    []byte `tlv:"82,ctlv"`
	Label      []byte `tlv:"50" fmt:"ascii"`
	Priority   []byte `tlv:"87" fmt:"int"`
	Address    []byte `tlv:"86,ctlv" fmt:"bcd"`
	Counter    uint16 `tlv:"9F36"`
	RawData    []byte // No tag
	EmptyField []byte `tlv:"99"`
	Unknown    []bertlv.TLV
}

func TestWriteStructFields(t *testing.T) {
	mock := MockTemplate{
		Devices:  []byte{0x83, 0x81},
		Label:    []byte{'O', 'T', 'A', 0x00},
		Priority: []byte{0x01},
		Address:  []byte{0x21, 0x43, 0xF5},
		Counter:  258,
		RawData:  []byte{0xCA, 0xFE},
		Unknown: []bertlv.TLV{
			{Tag: "9F01", Value: []byte{0x12, 0x34}},
		},
	}
	want := []string{
		"    - Test.Devices (82): 8381",
		`    - Test.Label (50): 4F544100 ("OTA.")`,
		"    - Test.Priority (87): 01 (Dec: 1)",
		"    - Test.Address (86): 2143F5 (12345)",
		"    - Test.Counter (9F36): 258",
		"    - Test.RawData: CAFE",
		"    - Test.Unknown Tag 9F01: 1234",
	}

	for _, input := range []interface{}{&mock, mock} {
		var sb strings.Builder
		WriteStructFields(&sb, "Test", input)
		if diff := cmp.Diff(want, strings.Split(sb.String(), "\n")); diff != "" {
			t.Errorf("Mismatch (-want +got):\n%s", diff)
		}
	}

	t.Run("Nil Pointer", func(t *testing.T) {
		var sb strings.Builder
		WriteStructFields(&sb, "Nil", (*MockTemplate)(nil))
		if sb.Len() != 0 {
			t.Errorf("got %q", sb.String())
		}
	})

	t.Run("Separator", func(t *testing.T) {
		var sb strings.Builder
		sb.WriteString("Header")
		WriteStructFields(&sb, "T", MockTemplate{Priority: []byte{0x02}})
		if !strings.HasPrefix(sb.String(), "Header\n    - T.Priority (87)") {
			t.Errorf("got %q", sb.String())
		}
	})
}
