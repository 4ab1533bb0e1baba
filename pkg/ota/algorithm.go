package ota

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/des"
	"encoding/binary"
	"hash/crc32"
	"strings"

	"github.com/aead/cmac"
	"github.com/pkg/errors"
	"github.com/sigurn/crc16"
)

// ALGORITHM REGISTRY (ETSI TS 102 225, 5.1.2 and 5.1.3):
//
// The KIc and KID bytes select a key (b8-b5) and an algorithm (b4-b1).
//
//	b2b1: 00 implicit, 01 DES / CRC, 10 AES, 11 proprietary
//	b4b3 for DES:  00 DES-CBC, 01 3DES 2 keys, 10 3DES 3 keys, 11 DES-ECB (KIc only)
//	b4b3 for AES:  00 AES-CBC (KIc), AES-CMAC (KID)
//	b4b3 for CRC:  00 CRC16, 01 CRC32 (KID with RC only)
//
// The set of algorithms is closed. Each entry fixes the padding granularity,
// the accepted key sizes and the width of the integrity value it produces.
// Block ciphers pad with zero bytes; CMAC and CRC consume the data as is.

// AlgorithmID identifies a ciphering or authentication algorithm.
type AlgorithmID uint8

const (
	AlgoNone AlgorithmID = iota
	AlgoDES
	AlgoTripleDES2
	AlgoTripleDES3
	AlgoDESECB
	AlgoAESCBC
	AlgoAESCMAC
	AlgoCRC16
	AlgoCRC32
)

var algorithmNames = map[AlgorithmID]string{
	AlgoNone:       "none",
	AlgoDES:        "des_cbc",
	AlgoTripleDES2: "triple_des_cbc2",
	AlgoTripleDES3: "triple_des_cbc3",
	AlgoDESECB:     "des_ecb",
	AlgoAESCBC:     "aes_cbc",
	AlgoAESCMAC:    "aes_cmac",
	AlgoCRC16:      "crc16",
	AlgoCRC32:      "crc32",
}

// String returns the configuration name of the algorithm.
func (id AlgorithmID) String() string {
	if name, ok := algorithmNames[id]; ok {
		return name
	}
	return "unknown"
}

// ParseAlgorithmID resolves a configuration name such as "triple_des_cbc2".
func ParseAlgorithmID(name string) (AlgorithmID, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for id, n := range algorithmNames {
		if n == name {
			return id, nil
		}
	}
	return 0, errors.Wrapf(ErrUnsupportedAlgorithm, "unknown algorithm name %q", name)
}

const (
	// ccSize is the width of a cryptographic checksum for every MAC family.
	ccSize = 8

	desBlockSize = 8
)

// Algorithm is the resolved strategy for an AlgorithmID.
type Algorithm struct {
	ID AlgorithmID
	// BlockSize is the padding granularity (1 means no padding).
	BlockSize int
	// KeySizes lists the accepted key lengths in bytes.
	KeySizes []int
	// TagSize is the width of the integrity value produced by Sum (0 if none).
	TagSize int
	// Checksum is true for redundancy check algorithms (keyless CRCs).
	Checksum bool

	code    byte
	encrypt func(key, data []byte) ([]byte, error)
	decrypt func(key, data []byte) ([]byte, error)
	sum     func(key, data []byte) ([]byte, error)
}

// CanCipher reports whether the algorithm can be bound to a KIc.
func (a *Algorithm) CanCipher() bool {
	return a.encrypt != nil
}

// CanMAC reports whether the algorithm produces a cryptographic checksum.
func (a *Algorithm) CanMAC() bool {
	return a.sum != nil && !a.Checksum
}

// ValidKeySize reports whether n is one of the accepted key lengths.
func (a *Algorithm) ValidKeySize(n int) bool {
	for _, s := range a.KeySizes {
		if s == n {
			return true
		}
	}
	return false
}

// Pad returns data followed by the zero bytes needed to reach a multiple of
// the block size, and the number of bytes added.
func (a *Algorithm) Pad(data []byte) ([]byte, int) {
	n := padLength(len(data), a.BlockSize)
	if n == 0 {
		return data, 0
	}
	out := make([]byte, len(data)+n)
	copy(out, data)
	return out, n
}

// Encrypt ciphers block aligned data with key.
func (a *Algorithm) Encrypt(key, data []byte) ([]byte, error) {
	if a.encrypt == nil {
		return nil, errors.Wrapf(ErrUnsupportedAlgorithm, "%s cannot cipher", a.ID)
	}
	return a.encrypt(key, data)
}

// Decrypt reverses Encrypt.
func (a *Algorithm) Decrypt(key, data []byte) ([]byte, error) {
	if a.decrypt == nil {
		return nil, errors.Wrapf(ErrUnsupportedAlgorithm, "%s cannot decipher", a.ID)
	}
	return a.decrypt(key, data)
}

// Sum computes the integrity value of data. Block cipher MACs zero-pad the
// input to their block size first.
func (a *Algorithm) Sum(key, data []byte) ([]byte, error) {
	if a.sum == nil {
		return nil, errors.Wrapf(ErrUnsupportedAlgorithm, "%s cannot compute an integrity value", a.ID)
	}
	padded, _ := a.Pad(data)
	return a.sum(key, padded)
}

var crc16Table = crc16.MakeTable(crc16.CRC16_X_25)

var registry = map[AlgorithmID]*Algorithm{
	AlgoNone: {
		ID:        AlgoNone,
		BlockSize: 1,
		KeySizes:  []int{0},
	},
	AlgoDES: {
		ID:        AlgoDES,
		BlockSize: desBlockSize,
		KeySizes:  []int{8},
		TagSize:   ccSize,
		code:      0x1,
		encrypt:   cbcEncrypter(newDES),
		decrypt:   cbcDecrypter(newDES),
		sum:       cbcMAC(newDES),
	},
	AlgoTripleDES2: {
		ID:        AlgoTripleDES2,
		BlockSize: desBlockSize,
		KeySizes:  []int{16},
		TagSize:   ccSize,
		code:      0x5,
		encrypt:   cbcEncrypter(newTripleDES),
		decrypt:   cbcDecrypter(newTripleDES),
		sum:       cbcMAC(newTripleDES),
	},
	AlgoTripleDES3: {
		ID:        AlgoTripleDES3,
		BlockSize: desBlockSize,
		KeySizes:  []int{24},
		TagSize:   ccSize,
		code:      0x9,
		encrypt:   cbcEncrypter(newTripleDES),
		decrypt:   cbcDecrypter(newTripleDES),
		sum:       cbcMAC(newTripleDES),
	},
	AlgoAESCBC: {
		ID:        AlgoAESCBC,
		BlockSize: aes.BlockSize,
		KeySizes:  []int{16, 24, 32},
		code:      0x2,
		encrypt:   cbcEncrypter(aes.NewCipher),
		decrypt:   cbcDecrypter(aes.NewCipher),
	},
	AlgoAESCMAC: {
		ID:        AlgoAESCMAC,
		BlockSize: 1,
		KeySizes:  []int{16, 24, 32},
		TagSize:   ccSize,
		code:      0x2,
		sum:       aesCMAC,
	},
	AlgoCRC16: {
		ID:        AlgoCRC16,
		BlockSize: 1,
		KeySizes:  []int{0},
		TagSize:   2,
		Checksum:  true,
		code:      0x1,
		sum: func(_, data []byte) ([]byte, error) {
			return binary.BigEndian.AppendUint16(nil, crc16.Checksum(data, crc16Table)), nil
		},
	},
	AlgoCRC32: {
		ID:        AlgoCRC32,
		BlockSize: 1,
		KeySizes:  []int{0},
		TagSize:   4,
		Checksum:  true,
		code:      0x5,
		sum: func(_, data []byte) ([]byte, error) {
			return binary.BigEndian.AppendUint32(nil, crc32.ChecksumIEEE(data)), nil
		},
	},
}

// Resolve returns the strategy registered for id. DES-ECB is known to the
// coding tables but not enabled.
func Resolve(id AlgorithmID) (*Algorithm, error) {
	a, ok := registry[id]
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedAlgorithm, "%s (0x%02X)", id, byte(id))
	}
	return a, nil
}

func padLength(n, blockSize int) int {
	if blockSize <= 1 || n%blockSize == 0 {
		return 0
	}
	return blockSize - n%blockSize
}

type blockFactory func(key []byte) (cipher.Block, error)

func newDES(key []byte) (cipher.Block, error) {
	return des.NewCipher(key)
}

// newTripleDES accepts 2-key (K1|K2, expanded to K1|K2|K1) and 3-key material.
func newTripleDES(key []byte) (cipher.Block, error) {
	if len(key) == 16 {
		k := make([]byte, 0, 24)
		k = append(k, key...)
		k = append(k, key[:8]...)
		key = k
	}
	return des.NewTripleDESCipher(key)
}

func cbcEncrypter(newBlock blockFactory) func(key, data []byte) ([]byte, error) {
	return func(key, data []byte) ([]byte, error) {
		block, err := newBlock(key)
		if err != nil {
			return nil, unsupported("cipher setup: %v", err)
		}
		if len(data)%block.BlockSize() != 0 {
			return nil, malformed("CBC encrypt: %d bytes not block aligned", len(data))
		}
		out := make([]byte, len(data))
		cipher.NewCBCEncrypter(block, make([]byte, block.BlockSize())).CryptBlocks(out, data)
		return out, nil
	}
}

func cbcDecrypter(newBlock blockFactory) func(key, data []byte) ([]byte, error) {
	return func(key, data []byte) ([]byte, error) {
		block, err := newBlock(key)
		if err != nil {
			return nil, unsupported("cipher setup: %v", err)
		}
		if len(data)%block.BlockSize() != 0 {
			return nil, malformed("CBC decrypt: %d bytes not block aligned", len(data))
		}
		out := make([]byte, len(data))
		cipher.NewCBCDecrypter(block, make([]byte, block.BlockSize())).CryptBlocks(out, data)
		return out, nil
	}
}

// cbcMAC returns the last block of a zero-IV CBC encryption of data.
func cbcMAC(newBlock blockFactory) func(key, data []byte) ([]byte, error) {
	enc := cbcEncrypter(newBlock)
	return func(key, data []byte) ([]byte, error) {
		if len(data) == 0 {
			data = make([]byte, desBlockSize)
		}
		out, err := enc(key, data)
		if err != nil {
			return nil, err
		}
		return bytes.Clone(out[len(out)-desBlockSize:]), nil
	}
}

// aesCMAC computes an AES-CMAC truncated to its leading ccSize bytes.
func aesCMAC(key, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, unsupported("cipher setup: %v", err)
	}
	h, err := cmac.NewWithTagSize(block, ccSize)
	if err != nil {
		return nil, unsupported("CMAC setup: %v", err)
	}
	if _, err := h.Write(data); err != nil {
		return nil, unsupported("CMAC update: %v", err)
	}
	return h.Sum(nil), nil
}
