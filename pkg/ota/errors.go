package ota

import (
	"encoding/hex"
	"fmt"

	"github.com/pkg/errors"
)

// Error kinds. Every error returned by this package matches exactly one of
// them with errors.Is (ErrCounterExhausted, returned by Counter.Next, is a
// kind of its own); the detail types below carry the structured context.
var (
	// ErrMalformedPacket reports structurally invalid lengths or fields.
	ErrMalformedPacket = errors.New("malformed packet")
	// ErrUnsupportedAlgorithm reports an unknown or disabled algorithm identifier.
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")
	// ErrPolicyAlgorithmMismatch reports an SPI that the keyset cannot satisfy.
	ErrPolicyAlgorithmMismatch = errors.New("security policy does not match keyset algorithms")
	// ErrIntegrityCheckFailed reports a RC/CC/DS mismatch on a received packet.
	ErrIntegrityCheckFailed = errors.New("integrity check failed")
	// ErrKeyNotFound reports a keyset lookup miss.
	ErrKeyNotFound = errors.New("key not found")
	// ErrCounterMismatch reports a PoR counter that differs from the expected one.
	ErrCounterMismatch = errors.New("counter mismatch")
)

// IntegrityError is returned when the integrity value carried by a packet
// differs from the one computed locally. Only integrity values are exposed,
// never key material.
type IntegrityError struct {
	Class    Integrity
	Received []byte
	Computed []byte
}

func (e *IntegrityError) Error() string {
	name := e.Class.Short()
	return fmt.Sprintf("%s: received %s (%s) != computed %s (%s)",
		ErrIntegrityCheckFailed, name, hex.EncodeToString(e.Received), name, hex.EncodeToString(e.Computed))
}

// Is makes errors.Is(err, ErrIntegrityCheckFailed) succeed.
func (e *IntegrityError) Is(target error) bool {
	return target == ErrIntegrityCheckFailed
}

// LengthError is returned when a declared length does not fit the data.
type LengthError struct {
	Field    string
	Declared int
	Actual   int
}

func (e *LengthError) Error() string {
	return fmt.Sprintf("%s: %s declares %d bytes, %d available", ErrMalformedPacket, e.Field, e.Declared, e.Actual)
}

// Is makes errors.Is(err, ErrMalformedPacket) succeed.
func (e *LengthError) Is(target error) bool {
	return target == ErrMalformedPacket
}

// CounterError is returned when a PoR carries an unexpected replay counter.
type CounterError struct {
	Expected Counter
	Received Counter
}

func (e *CounterError) Error() string {
	return fmt.Sprintf("%s: expected %s, received %s", ErrCounterMismatch, e.Expected, e.Received)
}

// Is makes errors.Is(err, ErrCounterMismatch) succeed.
func (e *CounterError) Is(target error) bool {
	return target == ErrCounterMismatch
}

func malformed(format string, args ...interface{}) error {
	return errors.Wrapf(ErrMalformedPacket, format, args...)
}

func unsupported(format string, args ...interface{}) error {
	return errors.Wrapf(ErrUnsupportedAlgorithm, format, args...)
}

func mismatch(format string, args ...interface{}) error {
	return errors.Wrapf(ErrPolicyAlgorithmMismatch, format, args...)
}
