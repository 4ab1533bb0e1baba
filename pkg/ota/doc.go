// Package ota implements the secured packet structure used to administer
// UICC applications remotely (ETSI TS 102 225, 3GPP TS 31.115).
//
// A command is secured for a Toolkit Application Reference (TAR) under a
// Security Parameter Indicator (SPI) with a Keyset holding the ciphering key
// (KIc) and the authentication key (KID):
//
//	ks, _ := ota.NewKeyset(ota.AlgoAESCBC, 2, kic, ota.AlgoAESCMAC, 2, kid)
//	spi := ota.MustParseSPI([]byte{0x06, 0x19})
//	pkt, err := ota.EncodeCommand(ks, tar, spi, cntr, apdu)
//
// The Proof of Receipt returned by the card is verified with the same keyset
// and policy:
//
//	res, err := ota.DecodeResponse(ks, spi, userData, ota.ExpectTAR(tar))
//
// Encoding and decoding are pure functions: the package keeps no state and
// never advances replay counters. A failed decode never yields partial data.
package ota
