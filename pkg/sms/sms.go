// Package sms packages secured packets for SMS point-to-point delivery to a
// SIM or UICC: the command packet user data header (3GPP TS 31.115), the
// SMS-DELIVER TPDU (3GPP TS 23.040) and the SMS-PP data download ENVELOPE
// (3GPP TS 31.111).
//
// Usage:
//
//	transport := &sms.EnvelopeTransport{
//		Client:     iso7816.NewClient(card),
//		Class:      iso7816.ClassGSM(),
//		Originator: originator,
//	}
//	por, sw, err := transport.Transmit(ctx, packet)
package sms
