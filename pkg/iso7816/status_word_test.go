package iso7816

import (
	"strings"
	"testing"
)

func TestStatusWord_Triggering(t *testing.T) {
	tests := []struct {
		sw     StatusWord
		isTrig bool
	}{
		{NewStatusWord(0x62, 0x02), true},  // Lower bound
		{NewStatusWord(0x62, 0x80), true},  // Upper bound
		{NewStatusWord(0x64, 0x10), true},  // Error triggering
		{NewStatusWord(0x62, 0x01), false}, // Invalid (< 02)
		{NewStatusWord(0x62, 0x81), false}, // Invalid (> 80)
	}

	for _, tt := range tests {
		if got := tt.sw.IsTriggeringByCard(); got != tt.isTrig {
			t.Errorf("SW %04X IsTriggeringByCard = %v, want %v", uint16(tt.sw), got, tt.isTrig)
		}
	}
}

func TestStatusWord_Classification(t *testing.T) {
	tests := []struct {
		sw          StatusWord
		isSuccess   bool
		isWarning   bool
		isError     bool
		isAvailable bool
	}{
		{SW_NO_ERROR, true, false, false, false},
		{NewStatusWord(0x61, 0x10), true, false, false, true},  // ISO bytes available
		{NewStatusWord(0x9F, 0x0F), true, false, false, true},  // GSM bytes available
		{NewStatusWord(0x91, 0x1A), true, false, false, false}, // Proactive command pending
		{NewStatusWord(0x9E, 0x24), false, false, false, true}, // Data download error
		{SW_WARN_EOF_REACHED, false, true, false, false},
		{NewStatusWord(0x63, 0xC2), false, true, false, false}, // Counter
		{SW_ERR_WRONG_LENGTH, false, false, true, false},
		{SW_ERR_FILE_NOT_FOUND, false, false, true, false},
		{SW_SIM_TOOLKIT_BUSY, false, false, true, false},
		{SW_SIM_ACCESS_NOT_FULFILLED, false, false, true, false},
	}

	for _, tt := range tests {
		if got := tt.sw.IsSuccess(); got != tt.isSuccess {
			t.Errorf("SW %04X IsSuccess = %v, want %v", uint16(tt.sw), got, tt.isSuccess)
		}
		if got := tt.sw.IsWarning(); got != tt.isWarning {
			t.Errorf("SW %04X IsWarning = %v, want %v", uint16(tt.sw), got, tt.isWarning)
		}
		if got := tt.sw.IsError(); got != tt.isError {
			t.Errorf("SW %04X IsError = %v, want %v", uint16(tt.sw), got, tt.isError)
		}
		if got := tt.sw.IsResponseAvailable(); got != tt.isAvailable {
			t.Errorf("SW %04X IsResponseAvailable = %v, want %v", uint16(tt.sw), got, tt.isAvailable)
		}
	}
}

func TestStatusWord_Hex(t *testing.T) {
	if got := NewStatusWord(0x61, 0x2F).Hex(); got != "612f" {
		t.Errorf("Hex() = %q, want 612f", got)
	}
	if got := SW_NO_ERROR.String(); got != "Normal ending of the command" {
		t.Errorf("String() = %q", got)
	}
	if got := StatusWord(0x6A8B).String(); got != "StatusWord(6A8B)" {
		t.Errorf("String() = %q", got)
	}
}

func TestStatusWord_Verbose(t *testing.T) {
	tests := []struct {
		sw       StatusWord
		contains string
	}{
		{NewStatusWord(0x62, 0x10), "Card expects query of 16 bytes"},
		{NewStatusWord(0x63, 0xC3), "counter = 3"},
		{NewStatusWord(0x61, 0x20), "32 bytes available"},
		{NewStatusWord(0x9F, 0x0C), "12 bytes available"},
		{NewStatusWord(0x91, 0x1A), "proactive command of 26 bytes"},
		{NewStatusWord(0x9E, 0x24), "Data download error"},
		{NewStatusWord(0x6C, 0x05), "correct Le is 5"},
		{SW_ERR_FILE_NOT_FOUND, "[6A82] File or application not found"},
		{SW_SIM_TOOLKIT_BUSY, "Toolkit is busy"},
		{NewStatusWord(0x69, 0x99), "Command not allowed"},
	}

	for _, tt := range tests {
		got := tt.sw.Verbose()
		if !strings.Contains(got, tt.contains) {
			t.Errorf("Verbose(%04X) = %q; want containing %q", uint16(tt.sw), got, tt.contains)
		}
	}
}
