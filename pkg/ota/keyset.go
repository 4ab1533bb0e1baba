package ota

import (
	"bytes"
	"fmt"

	"github.com/gregLibert/simota/pkg/bits"
	"github.com/pkg/errors"
)

// MaxKeyIndex is the largest key index encodable in b8-b5 of KIc/KID.
const MaxKeyIndex = 15

// Keyset bundles the ciphering key (KIc) and the authentication key (KID)
// used for one secured channel. It is immutable once built and can be shared
// by concurrent encoders and decoders.
type Keyset struct {
	crypt    *Algorithm
	kic      []byte
	kicIndex uint8
	auth     *Algorithm
	kid      []byte
	kidIndex uint8
}

// NewKeyset validates the algorithms, key sizes and indices and returns a
// Keyset holding private copies of the keys.
func NewKeyset(algoCrypt AlgorithmID, kicIndex uint8, kic []byte, algoAuth AlgorithmID, kidIndex uint8, kid []byte) (*Keyset, error) {
	crypt, err := Resolve(algoCrypt)
	if err != nil {
		return nil, errors.Wrap(err, "KIc algorithm")
	}
	if crypt.ID != AlgoNone && !crypt.CanCipher() {
		return nil, errors.Wrapf(ErrUnsupportedAlgorithm, "%s cannot be used for ciphering", crypt.ID)
	}
	auth, err := Resolve(algoAuth)
	if err != nil {
		return nil, errors.Wrap(err, "KID algorithm")
	}
	if auth.ID != AlgoNone && auth.sum == nil {
		return nil, errors.Wrapf(ErrUnsupportedAlgorithm, "%s cannot be used for integrity", auth.ID)
	}

	if kicIndex > MaxKeyIndex || kidIndex > MaxKeyIndex {
		return nil, mismatch("key index out of range (KIc %d, KID %d, max %d)", kicIndex, kidIndex, MaxKeyIndex)
	}
	if !crypt.ValidKeySize(len(kic)) {
		return nil, mismatch("KIc length %d invalid for %s (want %v)", len(kic), crypt.ID, crypt.KeySizes)
	}
	if !auth.ValidKeySize(len(kid)) {
		return nil, mismatch("KID length %d invalid for %s (want %v)", len(kid), auth.ID, auth.KeySizes)
	}

	return &Keyset{
		crypt:    crypt,
		kic:      bytes.Clone(kic),
		kicIndex: kicIndex,
		auth:     auth,
		kid:      bytes.Clone(kid),
		kidIndex: kidIndex,
	}, nil
}

// CryptAlgorithm returns the algorithm bound to KIc.
func (k *Keyset) CryptAlgorithm() AlgorithmID { return k.crypt.ID }

// AuthAlgorithm returns the algorithm bound to KID.
func (k *Keyset) AuthAlgorithm() AlgorithmID { return k.auth.ID }

// KIcIndex returns the key index of the ciphering key.
func (k *Keyset) KIcIndex() uint8 { return k.kicIndex }

// KIDIndex returns the key index of the authentication key.
func (k *Keyset) KIDIndex() uint8 { return k.kidIndex }

// KIc returns the KIc selector byte. It is coded even when the SPI does not
// request ciphering.
func (k *Keyset) KIc() byte {
	return bits.SetRange(k.crypt.code, 8, 5, k.kicIndex)
}

// KID returns the KID selector byte.
func (k *Keyset) KID() byte {
	return bits.SetRange(k.auth.code, 8, 5, k.kidIndex)
}

// String describes the keyset without revealing key material.
func (k *Keyset) String() string {
	return fmt.Sprintf("KIc %d/%s (%02X), KID %d/%s (%02X)",
		k.KIcIndex(), k.crypt.ID, k.KIc(), k.KIDIndex(), k.auth.ID, k.KID())
}

// checkPolicy enforces that spi can be satisfied with the keyset algorithms.
func (k *Keyset) checkPolicy(spi SPI) error {
	if (spi.Ciphering || spi.PoRCiphered) && !k.crypt.CanCipher() {
		return mismatch("ciphering requested but KIc algorithm is %s", k.crypt.ID)
	}
	if err := k.checkIntegrity(spi.Integrity, "command"); err != nil {
		return err
	}
	return k.checkIntegrity(spi.PoRIntegrity, "PoR")
}

func (k *Keyset) checkIntegrity(class Integrity, direction string) error {
	switch class {
	case IntegrityNone:
		return nil
	case IntegrityRC:
		if !k.auth.Checksum {
			return mismatch("%s redundancy check requires a CRC algorithm, KID algorithm is %s", direction, k.auth.ID)
		}
	case IntegrityCC, IntegrityDS:
		if !k.auth.CanMAC() {
			return mismatch("%s %s requires a MAC algorithm, KID algorithm is %s", direction, class.Short(), k.auth.ID)
		}
	}
	return nil
}

// integrity computes the RC/CC/DS value of data for the given class.
func (k *Keyset) integrity(class Integrity, data []byte) ([]byte, error) {
	if class == IntegrityNone {
		return nil, nil
	}
	return k.auth.Sum(k.kid, data)
}

// integritySize is the width of the RC/CC/DS field for class.
func (k *Keyset) integritySize(class Integrity) int {
	if class == IntegrityNone {
		return 0
	}
	return k.auth.TagSize
}
