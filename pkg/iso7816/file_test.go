package iso7816

import (
	"bytes"
	"testing"

	"github.com/gregLibert/simota/pkg/tlv"
)

func TestFileAccessCommands(t *testing.T) {
	gsm := ClassGSM()

	tests := []struct {
		name     string
		cmd      *CommandAPDU
		expected []byte
	}{
		{
			name:     "Read EF_ICCID",
			cmd:      ReadBinary(gsm, 0, 10),
			expected: tlv.Hex("A0 B0 00 00 0A"),
		},
		{
			name:     "Read binary at a 15-bit offset",
			cmd:      ReadBinary(ClassISO(), 0x0123, 256),
			expected: tlv.Hex("00 B0 01 23 00"),
		},
		{
			name:     "Update binary",
			cmd:      UpdateBinary(gsm, 0x0010, tlv.Hex("01 02")),
			expected: tlv.Hex("A0 D6 00 10 02 01 02"),
		},
		{
			name:     "Read record 1 absolute",
			cmd:      ReadRecord(gsm, 1, RecordAbsolute, 0x1C),
			expected: tlv.Hex("A0 B2 01 04 1C"),
		},
		{
			name:     "Update next record",
			cmd:      UpdateRecord(gsm, 0, RecordNext, tlv.Hex("FF FF")),
			expected: tlv.Hex("A0 DC 00 02 02 FF FF"),
		},
		{
			name:     "Envelope",
			cmd:      Envelope(ClassUICC(), tlv.Hex("D1 03 82 01 83")),
			expected: tlv.Hex("80 C2 00 00 05 D1 03 82 01 83"),
		},
		{
			name:     "Get response",
			cmd:      GetResponse(gsm, 0x24),
			expected: tlv.Hex("A0 C0 00 00 24"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cmd.Bytes()
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, tt.expected) {
				t.Errorf("got %X, want %X", got, tt.expected)
			}
		})
	}

	if RecordMode(0x07).String() != "Unknown Mode (0x07)" || RecordNext.String() != "Next" {
		t.Error("unexpected RecordMode names")
	}
}
