package iso7816

// ENVELOPE ('C2') transmits a BER-TLV object from the terminal to the card
// application toolkit (ETSI TS 102 221, 10.1.4). SMS-PP data download
// travels this way. The answer, when any, is announced by 61XX/9FXX or, on a
// download error, 9EXX.

// Envelope wraps a BER-TLV object in an ENVELOPE command.
func Envelope(cla Class, tlv []byte) *CommandAPDU {
	return NewCommandAPDU(cla, mustInstruction(INS_ENVELOPE), 0x00, 0x00, tlv, 0)
}

// GetResponse retrieves n bytes of pending response data.
func GetResponse(cla Class, n int) *CommandAPDU {
	return NewCommandAPDU(cla, mustInstruction(INS_GET_RESPONSE), 0x00, 0x00, nil, n)
}
